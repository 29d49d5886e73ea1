// Package charts builds Chart.js configurations for the insight pages.
// The browser renders them; the server only decides what is drawn.
package charts

import (
	"encoding/json"
	"fmt"

	"github.com/justestif/go-spotify-insights/internal/insights"
)

// Config is a Chart.js chart configuration.
type Config struct {
	Type    string         `json:"type"`
	Data    Data           `json:"data"`
	Options map[string]any `json:"options,omitempty"`
}

// Data holds a chart's labels and datasets.
type Data struct {
	Labels   []string  `json:"labels"`
	Datasets []Dataset `json:"datasets"`
}

// Dataset is one series of values.
type Dataset struct {
	Label           string    `json:"label,omitempty"`
	Data            []float64 `json:"data"`
	BackgroundColor any       `json:"backgroundColor,omitempty"`
	BorderColor     string    `json:"borderColor,omitempty"`
	BorderWidth     int       `json:"borderWidth,omitempty"`
	Fill            bool      `json:"fill,omitempty"`
}

// JSON encodes the configuration for a data attribute.
func (c Config) JSON() (string, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encoding chart: %w", err)
	}
	return string(b), nil
}

const (
	accent     = "rgba(30, 215, 96, 1)"
	accentFill = "rgba(30, 215, 96, 0.25)"
)

// palette colours pie slices; it repeats for more than ten slices.
var palette = []string{
	"#1db954", "#2e77d0", "#f59b23", "#e8115b", "#8d67ab",
	"#509bf5", "#ff6437", "#af2896", "#148a08", "#b49bc8",
}

func title(text string) map[string]any {
	return map[string]any{"display": true, "text": text}
}

// Radar draws one track's audio features on a 0-1 radial scale.
func Radar(tf insights.TrackFeatures) Config {
	values := make([]float64, len(insights.RadarFeatures))
	for i, name := range insights.RadarFeatures {
		values[i] = insights.FeatureValue(tf.Features, name)
	}

	return Config{
		Type: "radar",
		Data: Data{
			Labels: insights.RadarFeatures,
			Datasets: []Dataset{{
				Label:           tf.Track.Name,
				Data:            values,
				BackgroundColor: accentFill,
				BorderColor:     accent,
				BorderWidth:     2,
				Fill:            true,
			}},
		},
		Options: map[string]any{
			"plugins": map[string]any{
				"title":  title("Audio Features"),
				"legend": map[string]any{"display": false},
			},
			"scales": map[string]any{
				"r": map[string]any{
					"min":   0,
					"max":   1,
					"ticks": map[string]any{"display": false},
				},
			},
		},
	}
}

// ArtistBar draws listening minutes per top artist.
func ArtistBar(artists []insights.ArtistListening) Config {
	labels := make([]string, len(artists))
	values := make([]float64, len(artists))
	for i, a := range artists {
		labels[i] = a.Artist.Name
		values[i] = a.Minutes
	}

	return Config{
		Type: "bar",
		Data: Data{
			Labels: labels,
			Datasets: []Dataset{{
				Label:           "Listening Time (Minutes)",
				Data:            values,
				BackgroundColor: accent,
			}},
		},
		Options: map[string]any{
			"plugins": map[string]any{
				"title":  title(fmt.Sprintf("Top %d Most Listened Artists", len(artists))),
				"legend": map[string]any{"display": false},
			},
			"scales": map[string]any{
				"x": map[string]any{"title": title("Artist")},
				"y": map[string]any{"title": title("Listening Time (Minutes)"), "beginAtZero": true},
			},
		},
	}
}

// GenrePie draws the genre distribution; labels carry the percentage.
func GenrePie(genres []insights.GenreCount) Config {
	labels := make([]string, len(genres))
	values := make([]float64, len(genres))
	colors := make([]string, len(genres))
	for i, g := range genres {
		labels[i] = fmt.Sprintf("%s (%.1f%%)", g.Genre, g.Percent)
		values[i] = float64(g.Count)
		colors[i] = palette[i%len(palette)]
	}

	return Config{
		Type: "pie",
		Data: Data{
			Labels: labels,
			Datasets: []Dataset{{
				Data:            values,
				BackgroundColor: colors,
			}},
		},
		Options: map[string]any{
			"plugins": map[string]any{
				"title": title("Top Genres"),
			},
		},
	}
}

// ProfileBar draws the min-max normalised feature means of a track set.
func ProfileBar(profile []insights.FeatureMean) Config {
	labels := make([]string, len(profile))
	values := make([]float64, len(profile))
	for i, m := range profile {
		labels[i] = m.Feature
		values[i] = m.Normalized
	}

	return Config{
		Type: "bar",
		Data: Data{
			Labels: labels,
			Datasets: []Dataset{{
				Label:           "Normalized Value",
				Data:            values,
				BackgroundColor: accentFill,
				BorderColor:     accent,
				BorderWidth:     1,
			}},
		},
		Options: map[string]any{
			"plugins": map[string]any{
				"title":  title("Normalized Features"),
				"legend": map[string]any{"display": false},
			},
			"scales": map[string]any{
				"y": map[string]any{"min": 0, "max": 1},
			},
		},
	}
}
