package session

import (
	"context"
	"sync"
	"time"
)

// MemoryBackend keeps sessions in process memory (for development/testing).
type MemoryBackend struct {
	mu       sync.RWMutex
	sessions map[string]*Data
	now      func() time.Time
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		sessions: make(map[string]*Data),
		now:      time.Now,
	}
}

// Get retrieves a copy of a session by ID.
func (b *MemoryBackend) Get(_ context.Context, id string) (*Data, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	d, ok := b.sessions[id]
	if !ok || d.Expired(b.now()) {
		return nil, ErrNotFound
	}
	return d.Clone(), nil
}

// Save stores a copy of the session.
func (b *MemoryBackend) Save(_ context.Context, d *Data) error {
	b.mu.Lock()
	b.sessions[d.ID] = d.Clone()
	b.mu.Unlock()
	return nil
}

// Delete removes a session by ID.
func (b *MemoryBackend) Delete(_ context.Context, id string) error {
	b.mu.Lock()
	delete(b.sessions, id)
	b.mu.Unlock()
	return nil
}

// DeleteExpired removes all expired sessions.
func (b *MemoryBackend) DeleteExpired(context.Context) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	var n int64
	for id, d := range b.sessions {
		if d.Expired(now) {
			delete(b.sessions, id)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored sessions, expired ones included.
func (b *MemoryBackend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.sessions)
}

// Close is a no-op.
func (b *MemoryBackend) Close() error {
	return nil
}
