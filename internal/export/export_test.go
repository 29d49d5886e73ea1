package export

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justestif/go-spotify-insights/internal/insights"
	"github.com/justestif/go-spotify-insights/internal/spotify"
)

func sampleTracks() []insights.TrackFeatures {
	return []insights.TrackFeatures{
		{
			Track: spotify.Track{ID: "t1", Name: "Eye In The Sky, Remastered", DurationMs: 1},
			Features: spotify.AudioFeatures{
				Danceability:     0.823,
				Energy:           0.417,
				Speechiness:      0.032,
				Acousticness:     0.562,
				Instrumentalness: 0.001,
				Liveness:         0.0765,
				Valence:          0.522,
				Tempo:            111.928,
				DurationMs:       275000,
			},
			HasFeatures: true,
		},
		{
			Track: spotify.Track{ID: "t2", Name: "No Features", DurationMs: 200000},
		},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleTracks()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, "id,name,danceability,energy,speechiness,acousticness,instrumentalness,liveness,valence,tempo,duration_ms",
		strings.Join(records[0], ","))
	assert.Equal(t, []string{
		"t1", "Eye In The Sky, Remastered",
		"0.823", "0.417", "0.032", "0.562", "0.001", "0.0765", "0.522", "111.928", "275000",
	}, records[1])
	assert.Equal(t, []string{"t2", "No Features", "", "", "", "", "", "", "", "", "200000"}, records[2])
}

func TestWriteCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))
	assert.Equal(t, strings.Join(Header, ",")+"\n", buf.String())
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "track_features_user1.csv", FileName("user1"))
	assert.Equal(t, "track_features_.._etc_passwd.csv", FileName("../etc/passwd"))

	random := FileName("")
	assert.True(t, strings.HasPrefix(random, "track_features_"))
	assert.NotEqual(t, random, FileName(""))
}

func TestSinkSave(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	sink, err := NewSink(dir)
	require.NoError(t, err)

	path, err := sink.Save("user1", sampleTracks())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "track_features_user1.csv"), path)

	// A second save replaces the file.
	path, err = sink.Save("user1", sampleTracks()[:1])
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), "\n"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files are cleaned up")
}
