package auth

import (
	"context"
	"errors"
	"net/http"
	"time"

	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
)

// DefaultScopes are the permissions requested from the user at login.
var DefaultScopes = []string{
	spotifyauth.ScopeUserReadEmail,
	spotifyauth.ScopeUserReadPrivate,
	spotifyauth.ScopeUserTopRead,
	spotifyauth.ScopeUserReadRecentlyPlayed,
	spotifyauth.ScopePlaylistReadPrivate,
	spotifyauth.ScopePlaylistModifyPublic,
}

const defaultHTTPTimeout = 10 * time.Second

// AuthorizationService models the Spotify Accounts endpoints.
//
// Refresh may return a record without RefreshToken or Scope when the service
// does not rotate or echo them; Refresher fills those from the prior record.
type AuthorizationService interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (TokenRecord, error)
	Refresh(ctx context.Context, refreshToken string) (TokenRecord, error)
}

// OAuthConfig holds the Spotify application credentials.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	ShowDialog   bool

	// AuthURL and TokenURL default to the Spotify Accounts endpoints.
	AuthURL  string
	TokenURL string

	// HTTPClient is used for token requests. Defaults to a client with a 10s timeout.
	HTTPClient *http.Client
}

// OAuthService implements AuthorizationService with golang.org/x/oauth2.
type OAuthService struct {
	config     *oauth2.Config
	authOpts   []oauth2.AuthCodeOption
	httpClient *http.Client
}

// NewOAuthService creates an OAuthService for the given application credentials.
func NewOAuthService(cfg OAuthConfig) *OAuthService {
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = DefaultScopes
	}
	if cfg.AuthURL == "" {
		cfg.AuthURL = spotifyauth.AuthURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = spotifyauth.TokenURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: defaultHTTPTimeout}
	}

	var opts []oauth2.AuthCodeOption
	if cfg.ShowDialog {
		opts = append(opts, spotifyauth.ShowDialog)
	}

	return &OAuthService{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthURL,
				TokenURL: cfg.TokenURL,
			},
		},
		authOpts:   opts,
		httpClient: cfg.HTTPClient,
	}
}

// Scopes returns the permissions requested at login.
func (s *OAuthService) Scopes() []string {
	return s.config.Scopes
}

// AuthURL returns the Spotify consent page URL for the given state value.
func (s *OAuthService) AuthURL(state string) string {
	return s.config.AuthCodeURL(state, s.authOpts...)
}

// Exchange trades an authorization code for the initial token record.
func (s *OAuthService) Exchange(ctx context.Context, code string) (TokenRecord, error) {
	tok, err := s.config.Exchange(s.clientContext(ctx), code)
	if err != nil {
		return TokenRecord{}, describeTokenError(err)
	}
	return FromOAuth2(tok, s.config.Scopes), nil
}

// Refresh trades a refresh token for a new access token.
// The refresh always hits the token endpoint; the bare token below has no
// access token, so oauth2 never considers it valid.
func (s *OAuthService) Refresh(ctx context.Context, refreshToken string) (TokenRecord, error) {
	src := s.config.TokenSource(s.clientContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return TokenRecord{}, describeTokenError(err)
	}
	return FromOAuth2(tok, nil), nil
}

func (s *OAuthService) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
}

// describeTokenError keeps the OAuth error code and description and drops the
// raw response body.
func describeTokenError(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.ErrorCode != "" {
		if re.ErrorDescription != "" {
			return errors.New(re.ErrorCode + ": " + re.ErrorDescription)
		}
		return errors.New(re.ErrorCode)
	}
	return err
}
