package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Login is the result of starting the authorization flow.
type Login struct {
	URL   string // Spotify consent page to redirect the browser to
	State string // value to verify when the browser returns to the callback
}

// Flow runs the authorization code flow against an AuthorizationService.
type Flow struct {
	service  AuthorizationService
	logger   zerolog.Logger
	newState func() string
}

// FlowOption configures a Flow.
type FlowOption func(*Flow)

// WithFlowLogger sets the logger for the flow.
func WithFlowLogger(l zerolog.Logger) FlowOption {
	return func(f *Flow) {
		f.logger = l
	}
}

// WithStateGenerator replaces the random state generator.
func WithStateGenerator(gen func() string) FlowOption {
	return func(f *Flow) {
		if gen != nil {
			f.newState = gen
		}
	}
}

// NewFlow creates a Flow for the given service.
func NewFlow(service AuthorizationService, opts ...FlowOption) *Flow {
	f := &Flow{
		service:  service,
		logger:   zerolog.Nop(),
		newState: uuid.NewString,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// BeginLogin clears any token held by the session and returns the
// authorization URL the browser must visit. A token left over from a previous
// login never survives a new attempt, even if it is still valid.
func (f *Flow) BeginLogin(ctx context.Context, store TokenStore) (Login, error) {
	if err := store.Clear(ctx); err != nil {
		return Login{}, sessionError(err)
	}

	state := f.newState()
	return Login{
		URL:   f.service.AuthURL(state),
		State: state,
	}, nil
}

// CompleteLogin exchanges the authorization code and stores the resulting
// record as the session's token. Exchange failures are returned as
// *ExchangeError and leave the store unmodified.
func (f *Flow) CompleteLogin(ctx context.Context, store TokenStore, code string) (TokenRecord, error) {
	if code == "" {
		return TokenRecord{}, &ExchangeError{Err: ErrMissingCode}
	}

	rec, err := f.service.Exchange(ctx, code)
	if err != nil {
		f.logger.Error().Err(err).Msg("authorization code exchange failed")
		return TokenRecord{}, &ExchangeError{Err: err}
	}
	if err := rec.Validate(); err != nil {
		return TokenRecord{}, &ExchangeError{Err: err}
	}

	if err := store.Put(ctx, rec); err != nil {
		return TokenRecord{}, sessionError(err)
	}
	return rec, nil
}

// Logout clears the session's token and destroys the session.
func (f *Flow) Logout(ctx context.Context, store SessionStore) error {
	if err := store.Clear(ctx); err != nil {
		return sessionError(err)
	}
	if err := store.Destroy(ctx); err != nil {
		return fmt.Errorf("destroying session: %w", sessionError(err))
	}
	return nil
}
