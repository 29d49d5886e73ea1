package spotify

import "strings"

// TimeRange selects the period Spotify computes top items over.
type TimeRange string

const (
	ShortTerm  TimeRange = "short_term"  // ~4 weeks
	MediumTerm TimeRange = "medium_term" // ~6 months
	LongTerm   TimeRange = "long_term"   // ~1 year
)

// ParseTimeRange parses a time_range query value. Unknown or empty values
// fall back to MediumTerm.
func ParseTimeRange(s string) TimeRange {
	switch tr := TimeRange(s); tr {
	case ShortTerm, MediumTerm, LongTerm:
		return tr
	default:
		return MediumTerm
	}
}

// Label returns a human readable description of the range.
func (tr TimeRange) Label() string {
	switch tr {
	case ShortTerm:
		return "Last 4 weeks"
	case LongTerm:
		return "All time"
	default:
		return "Last 6 months"
	}
}

// Profile is the current user's public profile.
type Profile struct {
	ID          string
	DisplayName string
	Email       string
	Country     string
	Product     string
	Followers   int
	ImageURL    string
	ProfileURL  string
}

// Name returns the display name, or the user id when none is set.
func (p Profile) Name() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.ID
}

// ArtistRef identifies an artist credited on a track.
type ArtistRef struct {
	ID   string
	Name string
}

// Track is a track from the user's top items.
type Track struct {
	ID          string
	Name        string
	Artists     []ArtistRef
	Album       string
	ImageURL    string
	ExternalURL string
	DurationMs  int
	Popularity  int
}

// ArtistNames returns the credited artists joined by ", ".
func (t Track) ArtistNames() string {
	names := make([]string, len(t.Artists))
	for i, a := range t.Artists {
		names[i] = a.Name
	}
	return strings.Join(names, ", ")
}

// Credits reports whether the artist with the given id is credited on t.
func (t Track) Credits(artistID string) bool {
	for _, a := range t.Artists {
		if a.ID == artistID {
			return true
		}
	}
	return false
}

// Artist is a full artist object.
type Artist struct {
	ID          string
	Name        string
	Genres      []string
	Popularity  int
	Followers   int
	ImageURL    string
	ExternalURL string
}

// AudioFeatures holds Spotify's audio analysis values for one track.
// All values except Loudness and Tempo are in [0, 1].
type AudioFeatures struct {
	ID               string
	Danceability     float64
	Energy           float64
	Speechiness      float64
	Acousticness     float64
	Instrumentalness float64
	Liveness         float64
	Valence          float64
	Loudness         float64 // dB, typically -60 to 0
	Tempo            float64 // BPM
	DurationMs       int
}
