package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// DefaultExpiryMargin is how close to expiry a token may get before Resolve
// refreshes it. It covers the round trip of the call that follows.
const DefaultExpiryMargin = 60 * time.Second

// DefaultRefreshTimeout bounds a refresh shared by concurrent requests.
const DefaultRefreshTimeout = 30 * time.Second

// State is the outcome of resolving a session's token.
type State int

const (
	StateNoSession State = iota
	StateValid
	StateNearExpiry
	StateRefreshFailed
)

func (s State) String() string {
	switch s {
	case StateNoSession:
		return "no_session"
	case StateValid:
		return "valid"
	case StateNearExpiry:
		return "near_expiry"
	case StateRefreshFailed:
		return "refresh_failed"
	default:
		return "unknown"
	}
}

// Gate resolves a usable token for protected operations, refreshing it when
// it is about to expire.
type Gate struct {
	refresher TokenRefresher
	clock     Clock
	margin    time.Duration
	timeout   time.Duration
	logger    zerolog.Logger
	flight    singleflight.Group
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithClock sets the time source used for expiry checks.
func WithClock(c Clock) GateOption {
	return func(g *Gate) {
		if c != nil {
			g.clock = c
		}
	}
}

// WithExpiryMargin overrides DefaultExpiryMargin. A zero margin refreshes
// only tokens that have already expired; negative values are ignored.
func WithExpiryMargin(d time.Duration) GateOption {
	return func(g *Gate) {
		if d >= 0 {
			g.margin = d
		}
	}
}

// WithRefreshTimeout overrides DefaultRefreshTimeout.
func WithRefreshTimeout(d time.Duration) GateOption {
	return func(g *Gate) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithLogger sets the logger used to report refresh failures.
func WithLogger(l zerolog.Logger) GateOption {
	return func(g *Gate) {
		g.logger = l
	}
}

// NewGate creates a Gate that refreshes through refresher.
func NewGate(refresher TokenRefresher, opts ...GateOption) *Gate {
	g := &Gate{
		refresher: refresher,
		clock:     SystemClock,
		margin:    DefaultExpiryMargin,
		timeout:   DefaultRefreshTimeout,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Margin returns the configured expiry margin.
func (g *Gate) Margin() time.Duration {
	return g.margin
}

// Resolve returns the session's token, refreshed if it is within the expiry
// margin. It returns ErrNotAuthenticated when the session has no token or the
// refresh failed; in the latter case the stored record is left untouched.
// Store failures are returned wrapped in ErrSessionUnavailable, and a caller
// whose ctx ends while waiting on a refresh gets ctx.Err().
func (g *Gate) Resolve(ctx context.Context, store TokenStore) (TokenRecord, error) {
	rec, _, err := g.ResolveState(ctx, store)
	return rec, err
}

// ResolveState is Resolve that also reports which state the session was in.
func (g *Gate) ResolveState(ctx context.Context, store TokenStore) (TokenRecord, State, error) {
	current, err := store.Get(ctx)
	if err != nil {
		return TokenRecord{}, StateNoSession, sessionError(err)
	}
	if current == nil {
		return TokenRecord{}, StateNoSession, ErrNotAuthenticated
	}

	if !g.nearExpiry(*current) {
		return *current, StateValid, nil
	}

	fresh, err := g.refresh(ctx, store, *current)
	if err == nil {
		return fresh, StateNearExpiry, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return TokenRecord{}, StateNearExpiry, ctxErr
	}

	var refreshErr *RefreshError
	if errors.As(err, &refreshErr) {
		g.logger.Warn().
			Err(err).
			Str("session", keyOf(store)).
			Msg("token refresh failed, login required")
		return TokenRecord{}, StateRefreshFailed, ErrNotAuthenticated
	}
	return TokenRecord{}, StateRefreshFailed, sessionError(err)
}

func (g *Gate) nearExpiry(rec TokenRecord) bool {
	remaining := rec.ExpiresAt - g.clock.Now().Unix()
	return remaining < int64(g.margin/time.Second)
}

// refresh performs the refresh and stores the result. Concurrent refreshes of
// the same session share one call to the authorization service. The shared
// call is detached from the caller that started it, so a cancelled request
// cannot fail the others; each caller stops waiting when its own ctx ends.
func (g *Gate) refresh(ctx context.Context, store TokenStore, rec TokenRecord) (TokenRecord, error) {
	key := keyOf(store)
	if key == "" {
		return g.refreshAndStore(ctx, store, rec)
	}

	ch := g.flight.DoChan(key, func() (any, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.timeout)
		defer cancel()
		return g.refreshAndStore(shared, store, rec)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return TokenRecord{}, res.Err
		}
		return res.Val.(TokenRecord).Clone(), nil
	case <-ctx.Done():
		return TokenRecord{}, ctx.Err()
	}
}

func (g *Gate) refreshAndStore(ctx context.Context, store TokenStore, rec TokenRecord) (TokenRecord, error) {
	fresh, err := g.refresher.Refresh(ctx, rec)
	if err != nil {
		return TokenRecord{}, err
	}
	if err := store.Put(ctx, fresh); err != nil {
		return TokenRecord{}, err
	}
	return fresh, nil
}

func keyOf(store TokenStore) string {
	if k, ok := store.(sessionKeyed); ok {
		return k.SessionID()
	}
	return ""
}

func sessionError(err error) error {
	if errors.Is(err, ErrSessionUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrSessionUnavailable, err)
}
