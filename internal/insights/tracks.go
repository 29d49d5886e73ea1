package insights

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/justestif/go-spotify-insights/internal/clustering"
	"github.com/justestif/go-spotify-insights/internal/spotify"
)

// TrackFeatures is a top track joined with its audio features.
type TrackFeatures struct {
	Rank        int
	Track       spotify.Track
	Features    spotify.AudioFeatures
	HasFeatures bool
}

// TopTracksReport is the data behind the top tracks page.
type TopTracksReport struct {
	TimeRange spotify.TimeRange
	Tracks    []TrackFeatures

	// FeaturesUnavailable is set when Spotify refused audio feature requests.
	FeaturesUnavailable bool

	Moods   []clustering.MoodGroup
	Profile []FeatureMean
}

// TopTracks fetches the user's top tracks with their audio features.
func (s *Service) TopTracks(ctx context.Context, src Source, tr spotify.TimeRange) (*TopTracksReport, error) {
	logger := zerolog.Ctx(ctx)

	tracks, err := src.TopTracks(ctx, tr, TopTrackLimit)
	if err != nil {
		return nil, err
	}
	if len(tracks) == 0 {
		return nil, fmt.Errorf("%w: no top tracks", ErrNoData)
	}

	ids := make([]string, len(tracks))
	for i, t := range tracks {
		ids[i] = t.ID
	}

	report := &TopTracksReport{TimeRange: tr}

	features, err := src.AudioFeatures(ctx, ids)
	switch {
	case errors.Is(err, spotify.ErrFeaturesUnavailable):
		logger.Warn().Err(err).Msg("audio features unavailable, showing tracks without them")
		report.FeaturesUnavailable = true
	case err != nil:
		return nil, err
	}

	report.Tracks = JoinFeatures(tracks, features)
	report.Profile = FeatureProfile(report.Tracks)

	moods, _, err := clustering.GroupByMood(moodTracks(report.Tracks), s.moods)
	if err != nil {
		logger.Warn().Err(err).Msg("mood grouping failed")
	}
	report.Moods = moods

	return report, nil
}

// JoinFeatures pairs each track with its features, keeping the input order.
// Tracks without features are kept with HasFeatures unset.
func JoinFeatures(tracks []spotify.Track, features map[string]spotify.AudioFeatures) []TrackFeatures {
	out := make([]TrackFeatures, len(tracks))
	for i, t := range tracks {
		f, ok := features[t.ID]
		out[i] = TrackFeatures{
			Rank:        i + 1,
			Track:       t,
			Features:    f,
			HasFeatures: ok,
		}
	}
	return out
}

func moodTracks(tracks []TrackFeatures) []clustering.Track {
	var out []clustering.Track
	for _, tf := range tracks {
		if !tf.HasFeatures {
			continue
		}
		out = append(out, clustering.Track{
			ID:           tf.Track.ID,
			Name:         tf.Track.Name,
			Artist:       tf.Track.ArtistNames(),
			Energy:       tf.Features.Energy,
			Valence:      tf.Features.Valence,
			Danceability: tf.Features.Danceability,
			Acousticness: tf.Features.Acousticness,
		})
	}
	return out
}
