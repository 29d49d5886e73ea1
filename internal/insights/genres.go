package insights

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/justestif/go-spotify-insights/internal/spotify"
)

// GenreCount is one slice of the genre distribution.
type GenreCount struct {
	Genre   string
	Count   int
	Percent float64 // share of the counts shown
}

// TopGenresReport is the data behind the top genres page.
type TopGenresReport struct {
	TimeRange spotify.TimeRange
	Genres    []GenreCount

	// FallbackArtists counts artists whose genres came from Last.fm.
	FallbackArtists int
}

// TopGenres counts the genres of the artists credited on the user's top
// tracks. Each artist is looked up once however often it is credited.
func (s *Service) TopGenres(ctx context.Context, src Source, tr spotify.TimeRange) (*TopGenresReport, error) {
	tracks, err := src.TopTracks(ctx, tr, GenreTrackLimit)
	if err != nil {
		return nil, err
	}

	ids, names := creditedArtists(tracks)
	genres, err := s.artistGenres(ctx, src, ids)
	if err != nil {
		return nil, err
	}
	fallbacks := s.fillFromTags(ctx, genres, ids, names)

	counts := CountGenres(tracks, genres, TopGenreCount)
	if len(counts) == 0 {
		return nil, fmt.Errorf("%w: no genres", ErrNoData)
	}

	return &TopGenresReport{
		TimeRange:       tr,
		Genres:          counts,
		FallbackArtists: fallbacks,
	}, nil
}

// CountGenres counts genres over every artist credit on tracks and returns
// the n most common, ties in first-seen order.
func CountGenres(tracks []spotify.Track, genresByArtist map[string][]string, n int) []GenreCount {
	counts := make(map[string]int)
	var order []string

	for _, t := range tracks {
		for _, a := range t.Artists {
			for _, g := range genresByArtist[a.ID] {
				if _, ok := counts[g]; !ok {
					order = append(order, g)
				}
				counts[g]++
			}
		}
	}

	top := make([]GenreCount, len(order))
	for i, g := range order {
		top[i] = GenreCount{Genre: g, Count: counts[g]}
	}
	// Stable sort keeps first-seen order among equal counts.
	slices.SortStableFunc(top, func(a, b GenreCount) int {
		return cmp.Compare(b.Count, a.Count)
	})
	if len(top) > n {
		top = top[:n]
	}

	total := 0
	for _, g := range top {
		total += g.Count
	}
	for i := range top {
		top[i].Percent = float64(top[i].Count) * 100 / float64(total)
	}
	return top
}

// creditedArtists returns the distinct artist ids on tracks in first-seen
// order, with their names.
func creditedArtists(tracks []spotify.Track) ([]string, map[string]string) {
	var ids []string
	names := make(map[string]string)
	for _, t := range tracks {
		for _, a := range t.Artists {
			if _, ok := names[a.ID]; ok {
				continue
			}
			names[a.ID] = a.Name
			ids = append(ids, a.ID)
		}
	}
	return ids, names
}

// artistGenres looks up artists in concurrent batches and returns their
// Spotify genres by id.
func (s *Service) artistGenres(ctx context.Context, src Source, ids []string) (map[string][]string, error) {
	var (
		mu     sync.Mutex
		genres = make(map[string][]string, len(ids))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for start := 0; start < len(ids); start += artistBatchSize {
		batch := ids[start:min(start+artistBatchSize, len(ids))]
		g.Go(func() error {
			artists, err := src.Artists(gctx, batch)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			for _, a := range artists {
				genres[a.ID] = a.Genres
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return genres, nil
}

// fillFromTags asks the tag source for artists Spotify gave no genres.
// Tag lookups are best effort: failures are logged and the artist stays
// unclassified. It returns how many artists gained genres.
func (s *Service) fillFromTags(ctx context.Context, genres map[string][]string, ids []string, names map[string]string) int {
	if s.tags == nil {
		return 0
	}
	logger := zerolog.Ctx(ctx)

	var missing []string
	for _, id := range ids {
		if len(genres[id]) == 0 {
			missing = append(missing, id)
		}
	}

	var (
		mu     sync.Mutex
		filled int
	)

	var g errgroup.Group
	g.SetLimit(s.concurrency)

	for _, id := range missing {
		name := names[id]
		g.Go(func() error {
			tags, err := s.tags.ArtistGenres(ctx, name, fallbackGenreTags)
			if err != nil {
				logger.Warn().Err(err).Str("artist", name).Msg("genre fallback lookup failed")
				return nil
			}
			if len(tags) == 0 {
				return nil
			}
			mu.Lock()
			genres[id] = tags
			filled++
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return filled
}
