package insights

import "github.com/justestif/go-spotify-insights/internal/spotify"

// RadarFeatures are the [0, 1] features drawn on a track's radar chart.
var RadarFeatures = []string{
	"danceability",
	"energy",
	"speechiness",
	"acousticness",
	"instrumentalness",
	"liveness",
	"valence",
}

// profileFeatures are the features compared in a listening profile.
var profileFeatures = append(append([]string{}, RadarFeatures...), "tempo")

// FeatureValue returns the named audio feature of f.
func FeatureValue(f spotify.AudioFeatures, name string) float64 {
	switch name {
	case "danceability":
		return f.Danceability
	case "energy":
		return f.Energy
	case "speechiness":
		return f.Speechiness
	case "acousticness":
		return f.Acousticness
	case "instrumentalness":
		return f.Instrumentalness
	case "liveness":
		return f.Liveness
	case "valence":
		return f.Valence
	case "loudness":
		return f.Loudness
	case "tempo":
		return f.Tempo
	default:
		return 0
	}
}

// FeatureMean summarises one feature across a set of tracks.
type FeatureMean struct {
	Feature string
	Mean    float64
	// Normalized is the mean after min-max scaling the feature across the
	// tracks, so features on different scales can share one chart.
	Normalized float64
}

// FeatureProfile computes the mean of each feature over tracks that have
// features. A feature with no spread normalises to 0.
func FeatureProfile(tracks []TrackFeatures) []FeatureMean {
	var withFeatures []spotify.AudioFeatures
	for _, t := range tracks {
		if t.HasFeatures {
			withFeatures = append(withFeatures, t.Features)
		}
	}
	if len(withFeatures) == 0 {
		return nil
	}

	n := float64(len(withFeatures))
	out := make([]FeatureMean, 0, len(profileFeatures))
	for _, name := range profileFeatures {
		lo, hi, sum := FeatureValue(withFeatures[0], name), FeatureValue(withFeatures[0], name), 0.0
		for _, f := range withFeatures {
			v := FeatureValue(f, name)
			lo, hi = min(lo, v), max(hi, v)
			sum += v
		}

		mean := sum / n
		norm := 0.0
		if hi > lo {
			norm = (mean - lo) / (hi - lo)
		}
		out = append(out, FeatureMean{Feature: name, Mean: mean, Normalized: norm})
	}
	return out
}
