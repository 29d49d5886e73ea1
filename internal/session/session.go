// Package session provides server-side browser sessions: pluggable storage
// backends, the cookie-carrying middleware, and per-request handles that
// expose a session's token slot to the auth package.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/justestif/go-spotify-insights/internal/auth"
)

// DefaultTTL is how long a session lives after it is first written.
const DefaultTTL = 24 * time.Hour

// ErrNotFound is returned by backends for missing or expired sessions.
var ErrNotFound = errors.New("session not found")

// Data is everything stored for one browser session.
type Data struct {
	ID        string
	Token     *auth.TokenRecord
	UserID    string
	UserName  string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Clone returns a deep copy of d.
func (d *Data) Clone() *Data {
	c := *d
	if d.Token != nil {
		tok := d.Token.Clone()
		c.Token = &tok
	}
	return &c
}

// Expired reports whether the session has passed its expiry at now.
func (d *Data) Expired(now time.Time) bool {
	return !now.Before(d.ExpiresAt)
}

// Backend persists session data keyed by session id.
// Implementations must be safe for concurrent use.
type Backend interface {
	// Get returns ErrNotFound for missing or expired sessions.
	Get(ctx context.Context, id string) (*Data, error)
	// Save inserts or replaces the session.
	Save(ctx context.Context, d *Data) error
	// Delete removes the session; deleting a missing session is not an error.
	Delete(ctx context.Context, id string) error
	// DeleteExpired removes expired sessions and returns how many were removed.
	DeleteExpired(ctx context.Context) (int64, error)
	Close() error
}
