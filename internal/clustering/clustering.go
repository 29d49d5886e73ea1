// Package clustering groups tracks by mood using k-means over audio features.
package clustering

// Track is a track positioned in audio feature space. Feature values are in [0, 1].
type Track struct {
	ID     string
	Name   string
	Artist string

	Energy       float64
	Valence      float64
	Danceability float64
	Acousticness float64
}
