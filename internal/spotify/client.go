// Package spotify provides a wrapper around the Spotify Web API.
package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// Spotify API limits on ids per request.
const (
	maxTracksPerRequest  = 100
	maxArtistsPerRequest = 50
)

// ErrFeaturesUnavailable is returned by AudioFeatures when Spotify refuses
// audio feature requests for this application.
var ErrFeaturesUnavailable = errors.New("audio features unavailable")

// Client wraps the Spotify API client with convenience methods.
type Client struct {
	api     *spotify.Client
	limiter *rate.Limiter
}

// Option configures a Client built by NewFromToken.
type Option func(*options)

type options struct {
	baseURL    string
	limiter    *rate.Limiter
	httpClient *http.Client
}

// WithBaseURL points the client at a different API root (for tests).
func WithBaseURL(url string) Option {
	return func(o *options) {
		o.baseURL = url
	}
}

// WithLimiter paces every API call through l. A limiter is usually shared
// by all clients of a process.
func WithLimiter(l *rate.Limiter) Option {
	return func(o *options) {
		o.limiter = l
	}
}

// WithHTTPClient sets the transport underneath the bearer token.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// New creates a new Spotify client wrapper.
// The underlying client should already be authenticated.
func New(api *spotify.Client, limiter *rate.Limiter) *Client {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	return &Client{api: api, limiter: limiter}
}

// NewFromToken creates a client that authenticates with a bearer access token.
func NewFromToken(ctx context.Context, accessToken string, opts ...Option) *Client {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, o.httpClient)
	}

	src := oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	})
	httpClient := oauth2.NewClient(ctx, src)

	var apiOpts []spotify.ClientOption
	if o.baseURL != "" {
		apiOpts = append(apiOpts, spotify.WithBaseURL(o.baseURL))
	}
	return New(spotify.New(httpClient, apiOpts...), o.limiter)
}

// CurrentUser returns the authenticated user's profile.
func (c *Client) CurrentUser(ctx context.Context) (Profile, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return Profile{}, err
	}
	user, err := c.api.CurrentUser(ctx)
	if err != nil {
		return Profile{}, fmt.Errorf("getting current user: %w", err)
	}

	p := Profile{
		ID:          user.ID,
		DisplayName: user.DisplayName,
		Email:       user.Email,
		Country:     user.Country,
		Product:     user.Product,
		Followers:   int(user.Followers.Count),
		ProfileURL:  user.ExternalURLs["spotify"],
	}
	if len(user.Images) > 0 {
		p.ImageURL = user.Images[0].URL
	}
	return p, nil
}

// StatusCode returns the HTTP status carried by a Spotify API error, or 0.
func StatusCode(err error) int {
	var apiErr spotify.Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	var apiErrPtr *spotify.Error
	if errors.As(err, &apiErrPtr) {
		return apiErrPtr.Status
	}
	return 0
}

// chunks splits ids into consecutive slices of at most size elements.
func chunks(ids []string, size int) [][]string {
	var out [][]string
	for i := 0; i < len(ids); i += size {
		end := min(i+size, len(ids))
		out = append(out, ids[i:end])
	}
	return out
}

func toIDs(ids []string) []spotify.ID {
	out := make([]spotify.ID, len(ids))
	for i, id := range ids {
		out[i] = spotify.ID(id)
	}
	return out
}
