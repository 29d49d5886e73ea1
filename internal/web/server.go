package web

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/justestif/go-spotify-insights/internal/auth"
	"github.com/justestif/go-spotify-insights/internal/export"
	"github.com/justestif/go-spotify-insights/internal/insights"
	"github.com/justestif/go-spotify-insights/internal/session"
)

// DefaultAddr is the default server address. The redirect URI registered
// with Spotify must point at the same host and port.
const DefaultAddr = "127.0.0.1:5001"

// ServerConfig holds the server's settings and collaborators.
type ServerConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	SecureCookies   bool

	// CleanupInterval is how often expired sessions are pruned; zero disables it.
	CleanupInterval time.Duration

	TemplatesFS fs.FS
	StaticFS    fs.FS

	Flow     *auth.Flow
	Gate     *auth.Gate
	Sessions *session.Manager
	Insights *insights.Service
	NewAPI   APIFactory
	Exports  *export.Sink // optional
	Logger   zerolog.Logger
}

// Server is the HTTP server for the web application.
type Server struct {
	router   chi.Router
	server   *http.Server
	handlers *Handlers
	sessions *session.Manager
	cleanup  time.Duration
	shutdown time.Duration
	logger   zerolog.Logger
}

// NewServer creates a new web server.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Flow == nil || cfg.Gate == nil || cfg.Sessions == nil || cfg.NewAPI == nil {
		return nil, errors.New("server requires a flow, gate, session manager and API factory")
	}
	if cfg.Insights == nil {
		cfg.Insights = insights.NewService()
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	templates, err := NewTemplates(cfg.TemplatesFS)
	if err != nil {
		return nil, fmt.Errorf("loading templates: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		handlers: &Handlers{
			flow:      cfg.Flow,
			sessions:  cfg.Sessions,
			insights:  cfg.Insights,
			newAPI:    cfg.NewAPI,
			exports:   cfg.Exports,
			templates: templates,
			secure:    cfg.SecureCookies,
		},
		sessions: cfg.Sessions,
		cleanup:  cfg.CleanupInterval,
		shutdown: cfg.ShutdownTimeout,
		logger:   cfg.Logger,
	}

	s.setupMiddleware()
	s.setupRoutes(cfg.Gate, cfg.StaticFS)

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Handler returns the server's root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
}

func (s *Server) setupRoutes(gate *auth.Gate, staticFS fs.FS) {
	if staticFS != nil {
		fileServer := http.FileServer(http.FS(staticFS))
		s.router.Handle("/static/*", http.StripPrefix("/static/", fileServer))
	}
	s.router.Get("/healthz", s.handlers.Healthz)

	s.router.Group(func(r chi.Router) {
		r.Use(s.sessions.Middleware)

		r.Get("/", s.handlers.Home)
		r.Get("/login", s.handlers.Login)
		r.Get("/callback", s.handlers.Callback)
		r.Post("/logout", s.handlers.Logout)

		r.Group(func(r chi.Router) {
			r.Use(RequireAuth(gate))

			r.Get("/welcome", s.handlers.Welcome)
			r.Get("/top_tracks", s.handlers.TopTracks)
			r.Get("/top_tracks.csv", s.handlers.TopTracksCSV)
			r.Get("/top_artists", s.handlers.TopArtists)
			r.Get("/top_genres", s.handlers.TopGenres)
		})
	})
}

// Run serves until ctx is cancelled, then shuts down gracefully. Expired
// sessions are pruned in the background while the server runs.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info().Str("addr", s.server.Addr).Msgf("listening on http://%s", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving http: %w", err)
		}
		return nil
	})

	if s.cleanup > 0 {
		g.Go(func() error {
			s.sessions.RunJanitor(ctx, s.cleanup)
			return nil
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		s.logger.Info().Msg("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdown)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	s.logger.Info().Msg("server stopped")
	return nil
}
