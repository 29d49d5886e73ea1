package spotify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/zmb3/spotify/v2"
	"golang.org/x/time/rate"
)

// fakeAPI serves the subset of the Web API the client uses.
type fakeAPI struct {
	featureCalls atomic.Int32
	artistCalls  atomic.Int32
	featuresCode int
	lastQuery    atomic.Value
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "Bearer test-token" {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"status":401,"message":"No token provided"}}`)
		return
	}
	f.lastQuery.Store(r.URL.Query())
	w.Header().Set("Content-Type", "application/json")

	switch r.URL.Path {
	case "/me":
		fmt.Fprint(w, `{"id":"user1","display_name":"Una","email":"una@example.com","country":"GR",
			"product":"premium","followers":{"total":12},"images":[{"url":"https://img/u.jpg"}],
			"external_urls":{"spotify":"https://open.spotify.com/user/user1"}}`)
	case "/me/top/tracks":
		fmt.Fprint(w, `{"items":[{"id":"t1","name":"Eye In The Sky","duration_ms":275000,"popularity":70,
			"artists":[{"id":"a1","name":"The Alan Parsons Project"}],
			"album":{"name":"Eye In The Sky","images":[{"url":"https://img/t1.jpg"}]}}]}`)
	case "/me/top/artists":
		fmt.Fprint(w, `{"items":[{"id":"a1","name":"The Alan Parsons Project","genres":["art rock","soft rock"],
			"popularity":60,"followers":{"total":1000}}]}`)
	case "/audio-features":
		f.featureCalls.Add(1)
		if f.featuresCode != 0 {
			w.WriteHeader(f.featuresCode)
			fmt.Fprintf(w, `{"error":{"status":%d,"message":"denied"}}`, f.featuresCode)
			return
		}
		ids := strings.Split(r.URL.Query().Get("ids"), ",")
		items := make([]any, len(ids))
		for i, id := range ids {
			if id == "missing" {
				continue
			}
			items[i] = map[string]any{"id": id, "energy": 0.5, "valence": 0.25, "tempo": 120.0, "duration_ms": 1000}
		}
		json.NewEncoder(w).Encode(map[string]any{"audio_features": items})
	case "/artists":
		f.artistCalls.Add(1)
		ids := strings.Split(r.URL.Query().Get("ids"), ",")
		items := make([]any, len(ids))
		for i, id := range ids {
			items[i] = map[string]any{"id": id, "name": "Artist " + id, "genres": []string{"rock"}}
		}
		json.NewEncoder(w).Encode(map[string]any{"artists": items})
	default:
		http.NotFound(w, r)
	}
}

func newTestClient(t *testing.T, api *fakeAPI) *Client {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	return NewFromToken(context.Background(), "test-token",
		WithBaseURL(srv.URL+"/"),
		WithLimiter(rate.NewLimiter(rate.Inf, 1)),
	)
}

func ids(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("id%d", i)
	}
	return out
}

func TestCurrentUser(t *testing.T) {
	c := newTestClient(t, &fakeAPI{})

	p, err := c.CurrentUser(context.Background())
	if err != nil {
		t.Fatalf("CurrentUser() error = %v", err)
	}
	if p.ID != "user1" || p.Name() != "Una" {
		t.Errorf("profile = %+v, want user1/Una", p)
	}
	if p.Followers != 12 {
		t.Errorf("Followers = %d, want 12", p.Followers)
	}
	if p.ImageURL != "https://img/u.jpg" {
		t.Errorf("ImageURL = %q", p.ImageURL)
	}
}

func TestTopTracks(t *testing.T) {
	api := &fakeAPI{}
	c := newTestClient(t, api)

	tracks, err := c.TopTracks(context.Background(), ShortTerm, 10)
	if err != nil {
		t.Fatalf("TopTracks() error = %v", err)
	}
	if len(tracks) != 1 {
		t.Fatalf("got %d tracks, want 1", len(tracks))
	}

	q := api.lastQuery.Load().(url.Values)
	if got := q["time_range"]; len(got) != 1 || got[0] != "short_term" {
		t.Errorf("time_range = %v, want short_term", got)
	}
	if got := q["limit"]; len(got) != 1 || got[0] != "10" {
		t.Errorf("limit = %v, want 10", got)
	}

	tr := tracks[0]
	if tr.DurationMs != 275000 || tr.Album != "Eye In The Sky" || tr.ImageURL != "https://img/t1.jpg" {
		t.Errorf("track = %+v", tr)
	}
	if !tr.Credits("a1") || tr.Credits("a2") {
		t.Errorf("Credits() mismatch for %+v", tr.Artists)
	}
}

func TestTopArtists(t *testing.T) {
	c := newTestClient(t, &fakeAPI{})

	artists, err := c.TopArtists(context.Background(), MediumTerm, 10)
	if err != nil {
		t.Fatalf("TopArtists() error = %v", err)
	}
	if len(artists) != 1 || len(artists[0].Genres) != 2 || artists[0].Followers != 1000 {
		t.Errorf("artists = %+v", artists)
	}
}

func TestAudioFeaturesBatches(t *testing.T) {
	tests := []struct {
		name          string
		totalTracks   int
		expectedCalls int32
	}{
		{"empty", 0, 0},
		{"single track", 1, 1},
		{"exactly 100", 100, 1},
		{"101 tracks", 101, 2},
		{"250 tracks", 250, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{}
			c := newTestClient(t, api)

			got, err := c.AudioFeatures(context.Background(), ids(tt.totalTracks))
			if err != nil {
				t.Fatalf("AudioFeatures() error = %v", err)
			}
			if calls := api.featureCalls.Load(); calls != tt.expectedCalls {
				t.Errorf("got %d API calls, want %d", calls, tt.expectedCalls)
			}
			if len(got) != tt.totalTracks {
				t.Errorf("got %d features, want %d", len(got), tt.totalTracks)
			}
		})
	}
}

func TestAudioFeaturesSkipsMissing(t *testing.T) {
	c := newTestClient(t, &fakeAPI{})

	got, err := c.AudioFeatures(context.Background(), []string{"a", "missing", "b"})
	if err != nil {
		t.Fatalf("AudioFeatures() error = %v", err)
	}
	if _, ok := got["missing"]; ok {
		t.Error("track without features should be absent")
	}
	f, ok := got["a"]
	if !ok {
		t.Fatal("features for a missing")
	}
	if f.Energy != 0.5 || f.Valence != 0.25 || f.Tempo != 120 || f.DurationMs != 1000 {
		t.Errorf("features = %+v", f)
	}
}

func TestAudioFeaturesDenied(t *testing.T) {
	c := newTestClient(t, &fakeAPI{featuresCode: http.StatusForbidden})

	_, err := c.AudioFeatures(context.Background(), []string{"a"})
	if !errors.Is(err, ErrFeaturesUnavailable) {
		t.Errorf("error = %v, want ErrFeaturesUnavailable", err)
	}
}

func TestArtistsBatches(t *testing.T) {
	api := &fakeAPI{}
	c := newTestClient(t, api)

	got, err := c.Artists(context.Background(), ids(120))
	if err != nil {
		t.Fatalf("Artists() error = %v", err)
	}
	if calls := api.artistCalls.Load(); calls != 3 {
		t.Errorf("got %d API calls, want 3", calls)
	}
	if len(got) != 120 || got[119].ID != "id119" {
		t.Errorf("got %d artists, last = %+v", len(got), got[len(got)-1])
	}
}

func TestConvertTrack(t *testing.T) {
	tests := []struct {
		name           string
		track          spotify.FullTrack
		expectedArtist string
		expectedImage  string
	}{
		{
			name: "single artist",
			track: spotify.FullTrack{
				SimpleTrack: spotify.SimpleTrack{
					ID:      "track123",
					Name:    "Test Song",
					Artists: []spotify.SimpleArtist{{Name: "Artist One", ID: "a1"}},
				},
				Album: spotify.SimpleAlbum{Images: []spotify.Image{{URL: "https://img/1"}}},
			},
			expectedArtist: "Artist One",
			expectedImage:  "https://img/1",
		},
		{
			name: "multiple artists",
			track: spotify.FullTrack{
				SimpleTrack: spotify.SimpleTrack{
					ID:   "track456",
					Name: "Collab Track",
					Artists: []spotify.SimpleArtist{
						{Name: "Artist A"},
						{Name: "Artist B"},
						{Name: "Artist C"},
					},
				},
			},
			expectedArtist: "Artist A, Artist B, Artist C",
		},
		{
			name: "no artists",
			track: spotify.FullTrack{
				SimpleTrack: spotify.SimpleTrack{
					ID:      "track000",
					Name:    "Unknown Track",
					Artists: []spotify.SimpleArtist{},
				},
			},
			expectedArtist: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := convertTrack(tt.track)

			if got.ID != tt.track.ID.String() {
				t.Errorf("ID = %q, want %q", got.ID, tt.track.ID)
			}
			if got.ArtistNames() != tt.expectedArtist {
				t.Errorf("ArtistNames() = %q, want %q", got.ArtistNames(), tt.expectedArtist)
			}
			if got.ImageURL != tt.expectedImage {
				t.Errorf("ImageURL = %q, want %q", got.ImageURL, tt.expectedImage)
			}
		})
	}
}

func TestChunks(t *testing.T) {
	tests := []struct {
		name          string
		total         int
		size          int
		expectedSizes []int
	}{
		{"empty", 0, 100, nil},
		{"less than size", 50, 100, []int{50}},
		{"exactly size", 100, 100, []int{100}},
		{"more than size", 250, 100, []int{100, 100, 50}},
		{"artists", 120, 50, []int{50, 50, 20}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := chunks(ids(tt.total), tt.size)
			if len(got) != len(tt.expectedSizes) {
				t.Fatalf("got %d batches, want %d", len(got), len(tt.expectedSizes))
			}
			for i, batch := range got {
				if len(batch) != tt.expectedSizes[i] {
					t.Errorf("batch %d has %d ids, want %d", i, len(batch), tt.expectedSizes[i])
				}
			}
		})
	}
}

func TestParseTimeRange(t *testing.T) {
	tests := []struct {
		in   string
		want TimeRange
	}{
		{"short_term", ShortTerm},
		{"medium_term", MediumTerm},
		{"long_term", LongTerm},
		{"", MediumTerm},
		{"forever", MediumTerm},
	}
	for _, tt := range tests {
		if got := ParseTimeRange(tt.in); got != tt.want {
			t.Errorf("ParseTimeRange(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
