package spotify

import (
	"context"
	"fmt"

	"github.com/zmb3/spotify/v2"
)

// TopTracks returns the user's most played tracks over tr, at most limit (≤ 50).
func (c *Client) TopTracks(ctx context.Context, tr TimeRange, limit int) ([]Track, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	page, err := c.api.CurrentUsersTopTracks(ctx,
		spotify.Limit(limit),
		spotify.Timerange(spotify.Range(tr)),
	)
	if err != nil {
		return nil, fmt.Errorf("fetching top tracks: %w", err)
	}

	tracks := make([]Track, len(page.Tracks))
	for i, t := range page.Tracks {
		tracks[i] = convertTrack(t)
	}
	return tracks, nil
}

// TopArtists returns the user's most played artists over tr, at most limit (≤ 50).
func (c *Client) TopArtists(ctx context.Context, tr TimeRange, limit int) ([]Artist, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	page, err := c.api.CurrentUsersTopArtists(ctx,
		spotify.Limit(limit),
		spotify.Timerange(spotify.Range(tr)),
	)
	if err != nil {
		return nil, fmt.Errorf("fetching top artists: %w", err)
	}

	artists := make([]Artist, len(page.Artists))
	for i, a := range page.Artists {
		artists[i] = convertArtist(a)
	}
	return artists, nil
}

// Artists returns full artist objects for ids, in request order.
// Batches requests to max 50 artists per request per Spotify API limits.
// Ids Spotify does not know are skipped.
func (c *Client) Artists(ctx context.Context, ids []string) ([]Artist, error) {
	var artists []Artist
	for i, batch := range chunks(ids, maxArtistsPerRequest) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		page, err := c.api.GetArtists(ctx, toIDs(batch)...)
		if err != nil {
			start := i * maxArtistsPerRequest
			return nil, fmt.Errorf("fetching artists (batch %d-%d): %w", start+1, start+len(batch), err)
		}
		for _, a := range page {
			if a == nil {
				continue
			}
			artists = append(artists, convertArtist(*a))
		}
	}
	return artists, nil
}

// convertTrack converts a Spotify FullTrack to Track.
func convertTrack(t spotify.FullTrack) Track {
	artists := make([]ArtistRef, len(t.Artists))
	for i, a := range t.Artists {
		artists[i] = ArtistRef{ID: a.ID.String(), Name: a.Name}
	}

	track := Track{
		ID:          t.ID.String(),
		Name:        t.Name,
		Artists:     artists,
		Album:       t.Album.Name,
		ExternalURL: t.ExternalURLs["spotify"],
		DurationMs:  int(t.Duration),
		Popularity:  int(t.Popularity),
	}
	if len(t.Album.Images) > 0 {
		track.ImageURL = t.Album.Images[0].URL
	}
	return track
}

// convertArtist converts a Spotify FullArtist to Artist.
func convertArtist(a spotify.FullArtist) Artist {
	artist := Artist{
		ID:          a.ID.String(),
		Name:        a.Name,
		Genres:      a.Genres,
		Popularity:  int(a.Popularity),
		Followers:   int(a.Followers.Count),
		ExternalURL: a.ExternalURLs["spotify"],
	}
	if len(a.Images) > 0 {
		artist.ImageURL = a.Images[0].URL
	}
	return artist
}
