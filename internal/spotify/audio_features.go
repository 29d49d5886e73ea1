package spotify

import (
	"context"
	"fmt"
	"net/http"

	"github.com/zmb3/spotify/v2"
)

// AudioFeatures retrieves audio features for the given track ids, keyed by id.
// Batches requests to max 100 tracks per request per Spotify API limits.
// Tracks without available audio features are absent from the result.
// Applications denied access to the endpoint get ErrFeaturesUnavailable.
func (c *Client) AudioFeatures(ctx context.Context, ids []string) (map[string]AudioFeatures, error) {
	out := make(map[string]AudioFeatures, len(ids))

	for i, batch := range chunks(ids, maxTracksPerRequest) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		features, err := c.api.GetAudioFeatures(ctx, toIDs(batch)...)
		if err != nil {
			if code := StatusCode(err); code == http.StatusForbidden || code == http.StatusNotFound {
				return nil, fmt.Errorf("%w: %w", ErrFeaturesUnavailable, err)
			}
			start := i * maxTracksPerRequest
			return nil, fmt.Errorf("fetching audio features (batch %d-%d): %w", start+1, start+len(batch), err)
		}

		for _, f := range features {
			if f == nil {
				continue // Track has no audio features
			}
			out[f.ID.String()] = convertAudioFeatures(f)
		}
	}
	return out, nil
}

// convertAudioFeatures copies audio feature values out of the API type.
func convertAudioFeatures(f *spotify.AudioFeatures) AudioFeatures {
	return AudioFeatures{
		ID:               f.ID.String(),
		Danceability:     float64(f.Danceability),
		Energy:           float64(f.Energy),
		Speechiness:      float64(f.Speechiness),
		Acousticness:     float64(f.Acousticness),
		Instrumentalness: float64(f.Instrumentalness),
		Liveness:         float64(f.Liveness),
		Valence:          float64(f.Valence),
		Loudness:         float64(f.Loudness),
		Tempo:            float64(f.Tempo),
		DurationMs:       int(f.Duration),
	}
}
