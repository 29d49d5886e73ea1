package main

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"
	"golang.org/x/time/rate"

	"github.com/justestif/go-spotify-insights/internal/auth"
	"github.com/justestif/go-spotify-insights/internal/config"
	"github.com/justestif/go-spotify-insights/internal/export"
	"github.com/justestif/go-spotify-insights/internal/insights"
	"github.com/justestif/go-spotify-insights/internal/lastfm"
	"github.com/justestif/go-spotify-insights/internal/logging"
	"github.com/justestif/go-spotify-insights/internal/session"
	"github.com/justestif/go-spotify-insights/internal/spotify"
	"github.com/justestif/go-spotify-insights/internal/web"
	webfs "github.com/justestif/go-spotify-insights/web"
)

const defaultConfigPath = "config.toml"

// Runner holds the dependencies shared by command actions.
type Runner struct {
	output io.Writer
	logOut io.Writer
}

// RunnerOpts configures a Runner.
type RunnerOpts struct {
	Output io.Writer // command results
	LogOut io.Writer // log lines
}

// NewRunner creates a Runner writing to stdout and logging to stderr unless
// told otherwise.
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.LogOut == nil {
		opts.LogOut = os.Stderr
	}
	return &Runner{output: opts.Output, logOut: opts.LogOut}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range []func(*Runner) *cli.Command{
		serveCommand, sessionsCommand, configCommand,
	} {
		commands = append(commands, fn(r))
	}
	return commands
}

// loadConfig reads the configuration and applies command line overrides.
func (r *Runner) loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, err
	}
	if v := cmd.String("log-level"); v != "" {
		cfg.Log.Level = v
	}
	if v := cmd.String("session-backend"); v != "" {
		cfg.Session.Backend = v
	}
	return cfg, nil
}

func (r *Runner) newLogger(cfg *config.Config) (zerolog.Logger, error) {
	return logging.New(cfg.Log.Level, cfg.Log.Format, r.logOut)
}

// Serve runs the web application until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}
	if v := cmd.String("addr"); v != "" {
		cfg.Server.Addr = v
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := r.newLogger(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := session.Open(ctx, cfg.Session.Backend, cfg.Session.DSN())
	if err != nil {
		return fmt.Errorf("opening session backend: %w", err)
	}
	defer backend.Close()

	server, err := r.newServer(cfg, backend, logger)
	if err != nil {
		return err
	}

	logger.Info().
		Str("backend", cfg.Session.Backend).
		Str("redirect_uri", cfg.Spotify.RedirectURI).
		Bool("lastfm", cfg.LastFM.Enabled()).
		Msg("starting spotify-insights")
	return server.Run(ctx)
}

// newServer wires the configured collaborators into a web server.
func (r *Runner) newServer(cfg *config.Config, backend session.Backend, logger zerolog.Logger) (*web.Server, error) {
	accounts := auth.NewOAuthService(auth.OAuthConfig{
		ClientID:     cfg.Spotify.ClientID,
		ClientSecret: cfg.Spotify.ClientSecret,
		RedirectURL:  cfg.Spotify.RedirectURI,
		Scopes:       cfg.Spotify.Scopes,
		ShowDialog:   cfg.Spotify.ShowDialog,
		HTTPClient:   &http.Client{Timeout: cfg.Auth.HTTPTimeout},
	})

	gate := auth.NewGate(auth.NewRefresher(accounts),
		auth.WithExpiryMargin(cfg.Auth.ExpiryMargin),
		auth.WithRefreshTimeout(cfg.Auth.HTTPTimeout),
		auth.WithLogger(logger),
	)
	flow := auth.NewFlow(accounts, auth.WithFlowLogger(logger))

	sessions := session.NewManager(backend,
		session.WithTTL(cfg.Session.TTL),
		session.WithSecureCookies(cfg.Server.SecureCookies),
		session.WithLogger(logger),
	)

	var opts []insights.Option
	if cfg.LastFM.Enabled() {
		tags := lastfm.NewClient(cfg.LastFM.APIKey,
			lastfm.WithLimiter(newLimiter(cfg.LastFM.RequestsPerSecond)),
		)
		opts = append(opts, insights.WithTagSource(tags))
	}

	var exports *export.Sink
	if cfg.Export.Dir != "" {
		var err error
		if exports, err = export.NewSink(cfg.Export.Dir); err != nil {
			return nil, err
		}
	}

	templates, err := fs.Sub(webfs.TemplatesFS, "templates")
	if err != nil {
		return nil, fmt.Errorf("creating templates filesystem: %w", err)
	}
	static, err := fs.Sub(webfs.StaticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("creating static filesystem: %w", err)
	}

	limiter := newLimiter(cfg.Spotify.RequestsPerSecond)
	apiClient := &http.Client{Timeout: cfg.Auth.HTTPTimeout}

	return web.NewServer(web.ServerConfig{
		Addr:            cfg.Server.Addr,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		SecureCookies:   cfg.Server.SecureCookies,
		CleanupInterval: cfg.Session.CleanupInterval,
		TemplatesFS:     templates,
		StaticFS:        static,
		Flow:            flow,
		Gate:            gate,
		Sessions:        sessions,
		Insights:        insights.NewService(opts...),
		NewAPI: func(ctx context.Context, accessToken string) web.SpotifyAPI {
			return spotify.NewFromToken(ctx, accessToken,
				spotify.WithLimiter(limiter),
				spotify.WithHTTPClient(apiClient),
			)
		},
		Exports: exports,
		Logger:  logger,
	})
}

// SessionsPrune deletes expired sessions once and reports how many went.
func (r *Runner) SessionsPrune(ctx context.Context, cmd *cli.Command) error {
	cfg, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.ValidateStorage(); err != nil {
		return err
	}

	backend, err := session.Open(ctx, cfg.Session.Backend, cfg.Session.DSN())
	if err != nil {
		return fmt.Errorf("opening session backend: %w", err)
	}
	defer backend.Close()

	n, err := session.NewManager(backend).Prune(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(r.output, "Removed %d expired session(s)\n", n)
	return nil
}

// ConfigInit writes the example configuration file.
func (r *Runner) ConfigInit(_ context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("path")
	if path == "" {
		path = defaultConfigPath
	}
	if err := config.CreateConfigFile(path); err != nil {
		return err
	}
	fmt.Fprintf(r.output, "Wrote %s\n", path)
	return nil
}

// newLimiter paces requests at rps with a burst of one second's worth;
// zero or negative means unlimited.
func newLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(rps), max(1, int(rps)))
}
