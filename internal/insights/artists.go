package insights

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/justestif/go-spotify-insights/internal/spotify"
)

// ArtistListening is a top artist with the time the user's top tracks
// credit to them.
type ArtistListening struct {
	Rank       int
	Artist     spotify.Artist
	Minutes    float64
	TrackCount int
}

// TopArtistsReport is the data behind the top artists page.
type TopArtistsReport struct {
	TimeRange spotify.TimeRange
	Artists   []ArtistListening
}

// TopArtists fetches the user's top artists and their listening time over
// the top tracks of the same range.
func (s *Service) TopArtists(ctx context.Context, src Source, tr spotify.TimeRange) (*TopArtistsReport, error) {
	var (
		artists []spotify.Artist
		tracks  []spotify.Track
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		artists, err = src.TopArtists(gctx, tr, TopArtistLimit)
		return err
	})
	g.Go(func() error {
		var err error
		tracks, err = src.TopTracks(gctx, tr, ListeningTrackLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(artists) == 0 {
		return nil, fmt.Errorf("%w: no top artists", ErrNoData)
	}

	return &TopArtistsReport{
		TimeRange: tr,
		Artists:   ListeningMinutes(artists, tracks),
	}, nil
}

// ListeningMinutes sums, for each artist, the duration of the tracks that
// credit them. A track credited to several listed artists counts for each.
func ListeningMinutes(artists []spotify.Artist, tracks []spotify.Track) []ArtistListening {
	out := make([]ArtistListening, len(artists))
	for i, a := range artists {
		var totalMs, count int
		for _, t := range tracks {
			if t.Credits(a.ID) {
				totalMs += t.DurationMs
				count++
			}
		}
		out[i] = ArtistListening{
			Rank:       i + 1,
			Artist:     a,
			Minutes:    float64(totalMs) / (1000 * 60),
			TrackCount: count,
		}
	}
	return out
}
