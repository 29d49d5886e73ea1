package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/justestif/go-spotify-insights/internal/auth"
)

// Profile is the Spotify identity remembered for a session.
type Profile struct {
	UserID   string
	UserName string
}

// Handle is one request's view of a session. It implements auth.SessionStore
// over the session's token slot.
//
// The session record is created lazily on the first write, so anonymous
// visitors cost nothing in the backend.
type Handle struct {
	id      string
	backend Backend
	ttl     time.Duration
	now     func() time.Time

	// mu serialises read-modify-write cycles made through this handle.
	mu sync.Mutex
}

var _ auth.SessionStore = (*Handle)(nil)

// SessionID returns the session's identifier.
func (h *Handle) SessionID() string {
	return h.id
}

// Get returns the stored token, or nil if there is none.
func (h *Handle) Get(ctx context.Context) (*auth.TokenRecord, error) {
	d, err := h.load(ctx)
	if err != nil {
		return nil, err
	}
	if d == nil || d.Token == nil {
		return nil, nil
	}
	rec := d.Token.Clone()
	return &rec, nil
}

// Put replaces the stored token. Incomplete records are rejected and leave
// the session unchanged.
func (h *Handle) Put(ctx context.Context, rec auth.TokenRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	return h.update(ctx, func(d *Data) {
		tok := rec.Clone()
		d.Token = &tok
	})
}

// Clear removes the stored token and keeps the rest of the session.
func (h *Handle) Clear(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	d, err := h.load(ctx)
	if err != nil {
		return err
	}
	if d == nil || d.Token == nil {
		return nil
	}
	d.Token = nil
	return h.save(ctx, d)
}

// Destroy deletes the whole session record.
func (h *Handle) Destroy(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.backend.Delete(ctx, h.id); err != nil {
		return unavailable(err)
	}
	return nil
}

// SetProfile records who the session belongs to.
func (h *Handle) SetProfile(ctx context.Context, p Profile) error {
	return h.update(ctx, func(d *Data) {
		d.UserID = p.UserID
		d.UserName = p.UserName
	})
}

// Profile returns the session's profile; ok is false if none was recorded.
func (h *Handle) Profile(ctx context.Context) (p Profile, ok bool, err error) {
	d, err := h.load(ctx)
	if err != nil || d == nil || d.UserID == "" {
		return Profile{}, false, err
	}
	return Profile{UserID: d.UserID, UserName: d.UserName}, true, nil
}

func (h *Handle) update(ctx context.Context, mutate func(*Data)) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	d, err := h.load(ctx)
	if err != nil {
		return err
	}
	if d == nil {
		now := h.now()
		d = &Data{
			ID:        h.id,
			CreatedAt: now,
			ExpiresAt: now.Add(h.ttl),
		}
	}
	mutate(d)
	return h.save(ctx, d)
}

// load returns nil, nil for a session that has no record yet.
func (h *Handle) load(ctx context.Context) (*Data, error) {
	d, err := h.backend.Get(ctx, h.id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable(err)
	}
	return d, nil
}

func (h *Handle) save(ctx context.Context, d *Data) error {
	if err := h.backend.Save(ctx, d); err != nil {
		return unavailable(err)
	}
	return nil
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %w", auth.ErrSessionUnavailable, err)
}
