package auth

import (
	"context"
	"time"
)

// TokenStore is the per-session slot holding at most one TokenRecord.
//
// Get returns (nil, nil) when no record is stored. Put overwrites
// unconditionally. Clear is idempotent. Failures of the underlying session
// storage are reported wrapped in ErrSessionUnavailable.
type TokenStore interface {
	Get(ctx context.Context) (*TokenRecord, error)
	Put(ctx context.Context, rec TokenRecord) error
	Clear(ctx context.Context) error
}

// SessionStore is a TokenStore that can also destroy its whole session.
type SessionStore interface {
	TokenStore
	Destroy(ctx context.Context) error
}

// sessionKeyed is implemented by stores bound to an identifiable session.
// Gate uses the key to collapse concurrent refreshes of the same session.
type sessionKeyed interface {
	SessionID() string
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

// Now calls f.
func (f ClockFunc) Now() time.Time {
	return f()
}

// SystemClock reads the wall clock.
var SystemClock Clock = ClockFunc(time.Now)
