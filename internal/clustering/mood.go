package clustering

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/muesli/clusters"
	"github.com/muesli/kmeans"
)

// MoodConfig holds mood-based clustering parameters.
type MoodConfig struct {
	NumClusters    int // Number of clusters to create (default: 3)
	MinClusterSize int // Minimum tracks per group (smaller clusters become outliers)
}

// DefaultMoodConfig returns the configuration used for a top-tracks page.
func DefaultMoodConfig() MoodConfig {
	return MoodConfig{
		NumClusters:    3,
		MinClusterSize: 2,
	}
}

// MoodGroup is a cluster of tracks with a similar feel.
type MoodGroup struct {
	Name        string             // e.g. "Upbeat Party"
	Description string             // One-line description of the mood
	Tracks      []Track            // Tracks in this group, in input order
	Centroid    map[string]float64 // Average feature values for this cluster
}

// trackObservation wraps a Track to implement clusters.Observation interface.
type trackObservation struct {
	index  int
	coords clusters.Coordinates
}

func (o trackObservation) Coordinates() clusters.Coordinates {
	return o.coords
}

func (o trackObservation) Distance(point clusters.Coordinates) float64 {
	return o.coords.Distance(point)
}

// featureNames defines the audio features used for clustering.
var featureNames = []string{"energy", "valence", "danceability", "acousticness"}

// GroupByMood partitions tracks by audio feature similarity using k-means.
// It returns the groups, largest first, and the tracks that landed in
// clusters smaller than cfg.MinClusterSize. When there are fewer tracks than
// clusters every track is an outlier.
func GroupByMood(tracks []Track, cfg MoodConfig) ([]MoodGroup, []Track, error) {
	if len(tracks) == 0 {
		return nil, nil, nil
	}

	if cfg.NumClusters <= 0 {
		cfg.NumClusters = DefaultMoodConfig().NumClusters
	}

	if len(tracks) < cfg.NumClusters {
		return nil, slices.Clone(tracks), nil
	}

	obs := make(clusters.Observations, len(tracks))
	for i := range tracks {
		obs[i] = trackObservation{index: i, coords: extractFeatures(tracks[i])}
	}

	km := kmeans.New()
	result, err := km.Partition(obs, cfg.NumClusters)
	if err != nil {
		return nil, nil, fmt.Errorf("k-means clustering: %w", err)
	}

	var groups []MoodGroup
	var outliers []Track

	for _, cluster := range result {
		indexes := make([]int, 0, len(cluster.Observations))
		for _, o := range cluster.Observations {
			if to, ok := o.(trackObservation); ok {
				indexes = append(indexes, to.index)
			}
		}
		slices.Sort(indexes)

		clusterTracks := make([]Track, len(indexes))
		for i, idx := range indexes {
			clusterTracks[i] = tracks[idx]
		}

		if len(clusterTracks) == 0 {
			continue
		}
		if len(clusterTracks) < cfg.MinClusterSize {
			outliers = append(outliers, clusterTracks...)
			continue
		}

		centroid := make(map[string]float64, len(featureNames))
		for i, name := range featureNames {
			centroid[name] = cluster.Center[i]
		}

		mood := describeMood(centroid)
		groups = append(groups, MoodGroup{
			Name:        mood.Name,
			Description: mood.Description,
			Tracks:      clusterTracks,
			Centroid:    centroid,
		})
	}

	slices.SortStableFunc(groups, func(a, b MoodGroup) int {
		if c := cmp.Compare(len(b.Tracks), len(a.Tracks)); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})

	return groups, outliers, nil
}

// extractFeatures extracts the audio features used for clustering as a coordinate vector.
func extractFeatures(t Track) clusters.Coordinates {
	return clusters.Coordinates{
		t.Energy,
		t.Valence,
		t.Danceability,
		t.Acousticness,
	}
}
