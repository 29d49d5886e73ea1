package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/justestif/go-spotify-insights/internal/auth"
	"github.com/justestif/go-spotify-insights/internal/session"
)

type tokenKey struct{}

// RequireAuth resolves the session's token before calling next. Requests
// without a usable token are sent to /login; a session backend failure is a
// 500.
func RequireAuth(gate *auth.Gate) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := session.FromContext(r.Context())
			if h == nil {
				http.Redirect(w, r, "/login", http.StatusFound)
				return
			}

			rec, err := gate.Resolve(r.Context(), h)
			switch {
			case errors.Is(err, auth.ErrNotAuthenticated):
				http.Redirect(w, r, "/login", http.StatusFound)
				return
			case errors.Is(err, context.Canceled):
				return
			case err != nil:
				hlog.FromRequest(r).Error().Err(err).Msg("resolving session token")
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}

			ctx := context.WithValue(r.Context(), tokenKey{}, rec)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// TokenFromContext returns the token resolved by RequireAuth.
func TokenFromContext(ctx context.Context) (auth.TokenRecord, bool) {
	rec, ok := ctx.Value(tokenKey{}).(auth.TokenRecord)
	return rec, ok
}

// requestLogger installs a per-request zerolog logger carrying the chi
// request id and writes one access log line per request.
func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	withID := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id := middleware.GetReqID(r.Context()); id != "" {
				hlog.FromRequest(r).UpdateContext(func(c zerolog.Context) zerolog.Context {
					return c.Str("req_id", id)
				})
			}
			next.ServeHTTP(w, r)
		})
	}

	access := hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	})

	return func(next http.Handler) http.Handler {
		return hlog.NewHandler(logger)(withID(access(next)))
	}
}
