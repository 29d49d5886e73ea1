// Package export writes track audio features as CSV.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/google/uuid"

	"github.com/justestif/go-spotify-insights/internal/insights"
)

// Header is the CSV column order.
var Header = []string{
	"id",
	"name",
	"danceability",
	"energy",
	"speechiness",
	"acousticness",
	"instrumentalness",
	"liveness",
	"valence",
	"tempo",
	"duration_ms",
}

// WriteCSV writes a header and one row per track. Feature columns are
// empty for tracks without audio features.
func WriteCSV(w io.Writer, tracks []insights.TrackFeatures) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}

	for _, t := range tracks {
		if err := cw.Write(row(t)); err != nil {
			return fmt.Errorf("writing csv row for %s: %w", t.Track.ID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func row(t insights.TrackFeatures) []string {
	r := make([]string, len(Header))
	r[0] = t.Track.ID
	r[1] = t.Track.Name

	duration := t.Track.DurationMs
	if t.HasFeatures {
		f := t.Features
		for i, v := range []float64{
			f.Danceability, f.Energy, f.Speechiness, f.Acousticness,
			f.Instrumentalness, f.Liveness, f.Valence, f.Tempo,
		} {
			r[2+i] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if f.DurationMs > 0 {
			duration = f.DurationMs
		}
	}
	r[10] = strconv.Itoa(duration)
	return r
}

// Sink saves a CSV per user into a directory, replacing the previous one.
type Sink struct {
	dir string
}

// NewSink creates the directory if needed.
func NewSink(dir string) (*Sink, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating export directory: %w", err)
	}
	return &Sink{dir: dir}, nil
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// FileName returns the export file name for a user.
// Users without an id get a random name.
func FileName(userID string) string {
	name := unsafeChars.ReplaceAllString(userID, "_")
	if name == "" {
		name = uuid.NewString()
	}
	return "track_features_" + name + ".csv"
}

// Save writes tracks to the user's file and returns its path. The file is
// replaced atomically so readers never see a partial export.
func (s *Sink) Save(userID string, tracks []insights.TrackFeatures) (string, error) {
	tmp, err := os.CreateTemp(s.dir, ".export-*.csv")
	if err != nil {
		return "", fmt.Errorf("creating export file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := WriteCSV(tmp, tracks); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("closing export file: %w", err)
	}

	path := filepath.Join(s.dir, FileName(userID))
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("saving export file: %w", err)
	}
	return path, nil
}
