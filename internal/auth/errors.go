package auth

import "errors"

var (
	// ErrNotAuthenticated is returned by Gate.Resolve when the session holds no
	// usable token and the caller must send the user through the login flow.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrSessionUnavailable wraps failures of the backing session store.
	// Authentication state is unknowable when this occurs.
	ErrSessionUnavailable = errors.New("session store unavailable")

	// ErrIncompleteToken is returned for token records with missing fields.
	ErrIncompleteToken = errors.New("incomplete token record")

	// ErrNoRefreshToken is returned when a refresh is attempted without a refresh token.
	ErrNoRefreshToken = errors.New("no refresh token available")

	// ErrMissingCode is returned when the authorization callback carries no code.
	ErrMissingCode = errors.New("missing authorization code")
)

// RefreshError reports a failed exchange of a refresh token for a new access
// token, whether the token was rejected or the service was unreachable.
type RefreshError struct {
	Err error
}

func (e *RefreshError) Error() string {
	return "refreshing access token: " + e.Err.Error()
}

func (e *RefreshError) Unwrap() error {
	return e.Err
}

// ExchangeError reports a failed exchange of an authorization code for the
// initial token record. It is shown to the user rather than silently retried.
type ExchangeError struct {
	Err error
}

func (e *ExchangeError) Error() string {
	return "exchanging authorization code: " + e.Err.Error()
}

func (e *ExchangeError) Unwrap() error {
	return e.Err
}
