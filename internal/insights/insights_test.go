package insights

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justestif/go-spotify-insights/internal/spotify"
)

// fakeSource serves canned top items and records artist lookups.
type fakeSource struct {
	tracks      []spotify.Track
	artists     []spotify.Artist
	features    map[string]spotify.AudioFeatures
	featuresErr error
	tracksErr   error
	catalog     map[string]spotify.Artist

	mu            sync.Mutex
	trackLimits   []int
	artistLookups [][]string
}

func (f *fakeSource) TopTracks(_ context.Context, _ spotify.TimeRange, limit int) ([]spotify.Track, error) {
	f.mu.Lock()
	f.trackLimits = append(f.trackLimits, limit)
	f.mu.Unlock()
	if f.tracksErr != nil {
		return nil, f.tracksErr
	}
	return f.tracks[:min(limit, len(f.tracks))], nil
}

func (f *fakeSource) TopArtists(_ context.Context, _ spotify.TimeRange, limit int) ([]spotify.Artist, error) {
	return f.artists[:min(limit, len(f.artists))], nil
}

func (f *fakeSource) AudioFeatures(_ context.Context, ids []string) (map[string]spotify.AudioFeatures, error) {
	if f.featuresErr != nil {
		return nil, f.featuresErr
	}
	out := make(map[string]spotify.AudioFeatures)
	for _, id := range ids {
		if feat, ok := f.features[id]; ok {
			out[id] = feat
		}
	}
	return out, nil
}

func (f *fakeSource) Artists(_ context.Context, ids []string) ([]spotify.Artist, error) {
	f.mu.Lock()
	f.artistLookups = append(f.artistLookups, slices.Clone(ids))
	f.mu.Unlock()

	var out []spotify.Artist
	for _, id := range ids {
		if a, ok := f.catalog[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

type fakeTags struct {
	tags map[string][]string
	err  error
}

func (f fakeTags) ArtistGenres(_ context.Context, artist string, limit int) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	tags := f.tags[artist]
	return tags[:min(limit, len(tags))], nil
}

func track(id string, ms int, artistIDs ...string) spotify.Track {
	t := spotify.Track{ID: id, Name: "Track " + id, DurationMs: ms}
	for _, a := range artistIDs {
		t.Artists = append(t.Artists, spotify.ArtistRef{ID: a, Name: "Artist " + a})
	}
	return t
}

func TestJoinFeatures(t *testing.T) {
	tracks := []spotify.Track{track("t1", 1000, "a"), track("t2", 1000, "a")}
	features := map[string]spotify.AudioFeatures{"t2": {ID: "t2", Energy: 0.9}}

	got := JoinFeatures(tracks, features)

	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].Rank)
	assert.False(t, got[0].HasFeatures)
	assert.Equal(t, 2, got[1].Rank)
	assert.True(t, got[1].HasFeatures)
	assert.Equal(t, 0.9, got[1].Features.Energy)
}

func TestListeningMinutes(t *testing.T) {
	artists := []spotify.Artist{{ID: "a", Name: "A"}, {ID: "b", Name: "B"}, {ID: "c", Name: "C"}}
	tracks := []spotify.Track{
		track("t1", 180000, "a"),
		track("t2", 120000, "a", "b"),
		track("t3", 90000, "b"),
	}

	got := ListeningMinutes(artists, tracks)

	require.Len(t, got, 3)
	assert.InDelta(t, 5.0, got[0].Minutes, 1e-9)
	assert.Equal(t, 2, got[0].TrackCount)
	assert.InDelta(t, 3.5, got[1].Minutes, 1e-9)
	assert.Equal(t, 0.0, got[2].Minutes)
	assert.Equal(t, 3, got[2].Rank)
}

func TestCountGenres(t *testing.T) {
	tracks := []spotify.Track{
		track("t1", 0, "a"),
		track("t2", 0, "a", "b"),
		track("t3", 0, "c"),
	}
	genres := map[string][]string{
		"a": {"rock", "indie"},
		"b": {"pop"},
		"c": {"jazz", "pop"},
	}

	t.Run("counts every credit", func(t *testing.T) {
		got := CountGenres(tracks, genres, 10)
		want := []GenreCount{
			{Genre: "rock", Count: 2},
			{Genre: "indie", Count: 2},
			{Genre: "pop", Count: 2},
			{Genre: "jazz", Count: 1},
		}
		require.Len(t, got, len(want))
		for i := range want {
			assert.Equal(t, want[i].Genre, got[i].Genre, "position %d", i)
			assert.Equal(t, want[i].Count, got[i].Count, "position %d", i)
		}
		assert.InDelta(t, 2.0/7*100, got[0].Percent, 1e-9)
	})

	t.Run("truncates to n", func(t *testing.T) {
		got := CountGenres(tracks, genres, 2)
		require.Len(t, got, 2)
		assert.Equal(t, "rock", got[0].Genre)
		assert.Equal(t, "indie", got[1].Genre)
		assert.InDelta(t, 50.0, got[0].Percent, 1e-9)
	})

	t.Run("no genres", func(t *testing.T) {
		assert.Empty(t, CountGenres(tracks, nil, 10))
	})
}

func TestFeatureProfile(t *testing.T) {
	tracks := []TrackFeatures{
		{HasFeatures: true, Features: spotify.AudioFeatures{Energy: 0.2, Tempo: 100, Valence: 0.5}},
		{HasFeatures: true, Features: spotify.AudioFeatures{Energy: 0.6, Tempo: 140, Valence: 0.5}},
		{HasFeatures: true, Features: spotify.AudioFeatures{Energy: 1.0, Tempo: 120, Valence: 0.5}},
		{HasFeatures: false, Features: spotify.AudioFeatures{Energy: 100}},
	}

	got := FeatureProfile(tracks)
	byName := make(map[string]FeatureMean)
	for _, m := range got {
		byName[m.Feature] = m
	}

	require.Len(t, got, len(RadarFeatures)+1)
	assert.InDelta(t, 0.6, byName["energy"].Mean, 1e-9)
	assert.InDelta(t, 0.5, byName["energy"].Normalized, 1e-9)
	assert.InDelta(t, 120.0, byName["tempo"].Mean, 1e-9)
	assert.InDelta(t, 0.5, byName["tempo"].Normalized, 1e-9)
	assert.Equal(t, 0.0, byName["valence"].Normalized, "no spread normalises to zero")

	assert.Nil(t, FeatureProfile([]TrackFeatures{{HasFeatures: false}}))
}

func TestTopTracks(t *testing.T) {
	var tracks []spotify.Track
	features := make(map[string]spotify.AudioFeatures)
	for i := range 12 {
		id := fmt.Sprintf("t%d", i)
		tracks = append(tracks, track(id, 200000, "a"))
		if i != 3 {
			features[id] = spotify.AudioFeatures{ID: id, Energy: float64(i%2) * 0.9, Valence: 0.5}
		}
	}
	src := &fakeSource{tracks: tracks, features: features}

	report, err := NewService().TopTracks(context.Background(), src, spotify.ShortTerm)
	require.NoError(t, err)

	assert.Equal(t, spotify.ShortTerm, report.TimeRange)
	assert.Equal(t, []int{TopTrackLimit}, src.trackLimits)
	require.Len(t, report.Tracks, TopTrackLimit)
	assert.False(t, report.Tracks[3].HasFeatures)
	assert.True(t, report.Tracks[4].HasFeatures)
	assert.False(t, report.FeaturesUnavailable)
	assert.NotEmpty(t, report.Profile)
}

func TestTopTracksFeaturesUnavailable(t *testing.T) {
	src := &fakeSource{
		tracks:      []spotify.Track{track("t1", 1000, "a")},
		featuresErr: fmt.Errorf("%w: 403", spotify.ErrFeaturesUnavailable),
	}

	report, err := NewService().TopTracks(context.Background(), src, spotify.MediumTerm)
	require.NoError(t, err)
	assert.True(t, report.FeaturesUnavailable)
	require.Len(t, report.Tracks, 1)
	assert.False(t, report.Tracks[0].HasFeatures)
	assert.Nil(t, report.Profile)
	assert.Empty(t, report.Moods)
}

func TestTopTracksErrors(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name    string
		src     *fakeSource
		wantErr error
	}{
		{name: "no tracks", src: &fakeSource{}, wantErr: ErrNoData},
		{name: "tracks fail", src: &fakeSource{tracksErr: boom}, wantErr: boom},
		{name: "features fail", src: &fakeSource{tracks: []spotify.Track{track("t1", 1, "a")}, featuresErr: boom}, wantErr: boom},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewService().TopTracks(context.Background(), tt.src, spotify.MediumTerm)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestTopArtists(t *testing.T) {
	src := &fakeSource{
		artists: []spotify.Artist{{ID: "a", Name: "A"}, {ID: "b", Name: "B"}},
		tracks: []spotify.Track{
			track("t1", 60000, "a"),
			track("t2", 120000, "b"),
			track("t3", 60000, "a"),
		},
	}

	report, err := NewService().TopArtists(context.Background(), src, spotify.LongTerm)
	require.NoError(t, err)

	assert.Equal(t, []int{ListeningTrackLimit}, src.trackLimits, "top tracks fetched once")
	require.Len(t, report.Artists, 2)
	assert.InDelta(t, 2.0, report.Artists[0].Minutes, 1e-9)
	assert.InDelta(t, 2.0, report.Artists[1].Minutes, 1e-9)

	_, err = NewService().TopArtists(context.Background(), &fakeSource{}, spotify.LongTerm)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestTopGenres(t *testing.T) {
	var tracks []spotify.Track
	catalog := make(map[string]spotify.Artist)
	for i := range 60 {
		id := fmt.Sprintf("a%d", i)
		tracks = append(tracks, track(fmt.Sprintf("t%d", i), 1000, id, "shared"))
		catalog[id] = spotify.Artist{ID: id, Genres: []string{"indie"}}
	}
	catalog["shared"] = spotify.Artist{ID: "shared", Genres: []string{"pop"}}
	src := &fakeSource{tracks: tracks, catalog: catalog}

	report, err := NewService(WithConcurrency(2)).TopGenres(context.Background(), src, spotify.MediumTerm)
	require.NoError(t, err)

	// 50 tracks, 51 distinct artists: two lookups, each artist exactly once.
	seen := make(map[string]int)
	for _, batch := range src.artistLookups {
		assert.LessOrEqual(t, len(batch), artistBatchSize)
		for _, id := range batch {
			seen[id]++
		}
	}
	assert.Len(t, seen, 51)
	for id, n := range seen {
		assert.Equal(t, 1, n, "artist %s looked up %d times", id, n)
	}

	require.Len(t, report.Genres, 2)
	assert.Equal(t, GenreCount{Genre: "indie", Count: 50, Percent: 50}, report.Genres[0])
	assert.Equal(t, GenreCount{Genre: "pop", Count: 50, Percent: 50}, report.Genres[1])
	assert.Zero(t, report.FallbackArtists)
}

func TestTopGenresFallback(t *testing.T) {
	src := &fakeSource{
		tracks: []spotify.Track{track("t1", 1, "a"), track("t2", 1, "b"), track("t3", 1, "a")},
		catalog: map[string]spotify.Artist{
			"a": {ID: "a"},
			"b": {ID: "b", Genres: []string{"jazz"}},
		},
	}

	t.Run("without tag source", func(t *testing.T) {
		report, err := NewService().TopGenres(context.Background(), src, spotify.MediumTerm)
		require.NoError(t, err)
		require.Len(t, report.Genres, 1)
		assert.Equal(t, "jazz", report.Genres[0].Genre)
	})

	t.Run("with tag source", func(t *testing.T) {
		tags := fakeTags{tags: map[string][]string{"Artist a": {"soul", "funk", "disco", "boogie"}}}
		report, err := NewService(WithTagSource(tags)).TopGenres(context.Background(), src, spotify.MediumTerm)
		require.NoError(t, err)

		assert.Equal(t, 1, report.FallbackArtists)
		require.Len(t, report.Genres, 4)
		assert.Equal(t, "soul", report.Genres[0].Genre)
		assert.Equal(t, 2, report.Genres[0].Count)
		assert.InDelta(t, 2.0/7*100, report.Genres[0].Percent, 1e-9)
		assert.Equal(t, "jazz", report.Genres[3].Genre)
	})

	t.Run("tag source failure is not fatal", func(t *testing.T) {
		report, err := NewService(WithTagSource(fakeTags{err: errors.New("down")})).TopGenres(context.Background(), src, spotify.MediumTerm)
		require.NoError(t, err)
		assert.Zero(t, report.FallbackArtists)
		require.Len(t, report.Genres, 1)
	})
}

func TestTopGenresNoData(t *testing.T) {
	src := &fakeSource{
		tracks:  []spotify.Track{track("t1", 1, "a")},
		catalog: map[string]spotify.Artist{"a": {ID: "a"}},
	}
	_, err := NewService().TopGenres(context.Background(), src, spotify.MediumTerm)
	assert.ErrorIs(t, err, ErrNoData)
}
