package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// CookieName is the name of the cookie carrying the session id.
const CookieName = "session_id"

const idBytes = 32

type contextKey struct{}

// Manager issues session cookies and hands out per-request Handles.
type Manager struct {
	backend Backend
	ttl     time.Duration
	secure  bool
	now     func() time.Time
	logger  zerolog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithTTL sets the session lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithSecureCookies marks session cookies Secure (serve over HTTPS only).
func WithSecureCookies(secure bool) Option {
	return func(m *Manager) {
		m.secure = secure
	}
}

// WithLogger sets the logger used by the janitor.
func WithLogger(l zerolog.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// WithNow overrides the clock used for new session records.
func WithNow(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a session manager over backend.
func NewManager(backend Backend, opts ...Option) *Manager {
	m := &Manager{
		backend: backend,
		ttl:     DefaultTTL,
		now:     time.Now,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Handle returns a handle for the session with the given id.
func (m *Manager) Handle(id string) *Handle {
	return &Handle{
		id:      id,
		backend: m.backend,
		ttl:     m.ttl,
		now:     m.now,
	}
}

// Middleware attaches a session Handle to every request. Requests without a
// well-formed session cookie get a fresh id and a Set-Cookie.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := ""
		if c, err := r.Cookie(CookieName); err == nil && validID(c.Value) {
			id = c.Value
		}
		if id == "" {
			var err error
			id, err = newID()
			if err != nil {
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}
			m.setCookie(w, id)
		}

		ctx := NewContext(r.Context(), m.Handle(id))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Renew moves the session's data to a new id and points the cookie at it.
// Call it when the session's privilege level changes, such as after login.
func (m *Manager) Renew(ctx context.Context, w http.ResponseWriter, h *Handle) (*Handle, error) {
	id, err := newID()
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	d, err := m.backend.Get(ctx, h.id)
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		return nil, unavailable(err)
	default:
		d.ID = id
		if err := m.backend.Save(ctx, d); err != nil {
			return nil, unavailable(err)
		}
		if err := m.backend.Delete(ctx, h.id); err != nil {
			return nil, unavailable(err)
		}
	}

	m.setCookie(w, id)
	return m.Handle(id), nil
}

// ClearCookie expires the session cookie in the browser.
func (m *Manager) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// Prune deletes expired sessions.
func (m *Manager) Prune(ctx context.Context) (int64, error) {
	n, err := m.backend.DeleteExpired(ctx)
	if err != nil {
		return 0, fmt.Errorf("pruning sessions: %w", err)
	}
	return n, nil
}

// RunJanitor prunes expired sessions every interval until ctx is done.
func (m *Manager) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := m.Prune(ctx)
			if err != nil {
				if ctx.Err() == nil {
					m.logger.Warn().Err(err).Msg("session cleanup failed")
				}
				continue
			}
			if n > 0 {
				m.logger.Debug().Int64("removed", n).Msg("pruned expired sessions")
			}
		}
	}
}

func (m *Manager) setCookie(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(m.ttl.Seconds()),
	})
}

// NewContext returns a copy of ctx carrying h.
func NewContext(ctx context.Context, h *Handle) context.Context {
	return context.WithValue(ctx, contextKey{}, h)
}

// FromContext returns the session handle attached by Middleware, or nil.
func FromContext(ctx context.Context) *Handle {
	h, _ := ctx.Value(contextKey{}).(*Handle)
	return h
}

// newID creates a cryptographically random session ID.
func newID() (string, error) {
	b := make([]byte, idBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating session id: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func validID(s string) bool {
	if len(s) != idBytes*2 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
