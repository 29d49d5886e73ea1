// Package insights turns a user's Spotify top items into the summaries shown
// on the web pages: per-track audio features, artist listening time and
// genre distribution.
package insights

import (
	"context"
	"errors"

	"github.com/justestif/go-spotify-insights/internal/clustering"
	"github.com/justestif/go-spotify-insights/internal/spotify"
)

// Request sizes, matching what each page shows.
const (
	TopTrackLimit       = 10 // tracks on the top tracks page
	TopArtistLimit      = 10 // artists on the top artists page
	ListeningTrackLimit = 50 // tracks scanned for artist listening time
	GenreTrackLimit     = 50 // tracks scanned for genres
	TopGenreCount       = 10 // genres on the pie chart

	fallbackGenreTags  = 3  // Last.fm tags used per unclassified artist
	artistBatchSize    = 50 // ids per artist lookup
	defaultConcurrency = 4
)

// ErrNoData is returned when Spotify has nothing to summarise for the
// selected time range.
var ErrNoData = errors.New("no data available for the selected time range")

// Source is the Spotify data the summaries are built from.
type Source interface {
	TopTracks(ctx context.Context, tr spotify.TimeRange, limit int) ([]spotify.Track, error)
	TopArtists(ctx context.Context, tr spotify.TimeRange, limit int) ([]spotify.Artist, error)
	AudioFeatures(ctx context.Context, ids []string) (map[string]spotify.AudioFeatures, error)
	Artists(ctx context.Context, ids []string) ([]spotify.Artist, error)
}

// TagSource supplies genre-like tags for artists Spotify has no genres for.
type TagSource interface {
	ArtistGenres(ctx context.Context, artist string, limit int) ([]string, error)
}

// Service builds the summaries. A Service holds no per-user state; the
// Source is passed on every call.
type Service struct {
	tags        TagSource
	concurrency int
	moods       clustering.MoodConfig
}

// Option configures a Service.
type Option func(*Service)

// WithTagSource enables the genre fallback for unclassified artists.
func WithTagSource(ts TagSource) Option {
	return func(s *Service) {
		s.tags = ts
	}
}

// WithConcurrency bounds concurrent lookups per request.
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithMoodConfig sets the clustering parameters for mood groups.
func WithMoodConfig(cfg clustering.MoodConfig) Option {
	return func(s *Service) {
		s.moods = cfg
	}
}

// NewService creates a Service.
func NewService(opts ...Option) *Service {
	s := &Service{
		concurrency: defaultConcurrency,
		moods:       clustering.DefaultMoodConfig(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}
