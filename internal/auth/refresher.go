package auth

import "context"

// TokenRefresher exchanges an expiring record for a fresh one.
type TokenRefresher interface {
	Refresh(ctx context.Context, rec TokenRecord) (TokenRecord, error)
}

// Refresher implements TokenRefresher with a single call to the
// authorization service. It never retries.
type Refresher struct {
	service AuthorizationService
}

// NewRefresher creates a Refresher backed by the given service.
func NewRefresher(service AuthorizationService) *Refresher {
	return &Refresher{service: service}
}

// Refresh returns a new record for rec. The refresh token is carried over
// unless the service issued a new one, and the scope is always rec's scope.
// Every failure is reported as a *RefreshError.
func (r *Refresher) Refresh(ctx context.Context, rec TokenRecord) (TokenRecord, error) {
	if rec.RefreshToken == "" {
		return TokenRecord{}, &RefreshError{Err: ErrNoRefreshToken}
	}

	fresh, err := r.service.Refresh(ctx, rec.RefreshToken)
	if err != nil {
		return TokenRecord{}, &RefreshError{Err: err}
	}

	if fresh.RefreshToken == "" {
		fresh.RefreshToken = rec.RefreshToken
	}
	fresh.Scope = rec.Clone().Scope

	if err := fresh.Validate(); err != nil {
		return TokenRecord{}, &RefreshError{Err: err}
	}
	return fresh, nil
}
