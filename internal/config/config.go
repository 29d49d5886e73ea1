// Package config loads application settings from an optional TOML file,
// a .env file and the environment, in increasing order of precedence.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

//go:embed config.example.toml
var exampleConf []byte

// ErrMissingCredentials is returned when the Spotify client id or secret is unset.
var ErrMissingCredentials = errors.New("missing Spotify credentials: set SPOTIFY_ID and SPOTIFY_SECRET")

// Session backends.
var backends = []string{"memory", "sqlite", "postgres"}

// Config represents the application configuration.
type Config struct {
	Spotify SpotifyConfig `toml:"spotify"`
	Server  ServerConfig  `toml:"server"`
	Session SessionConfig `toml:"session"`
	Auth    AuthConfig    `toml:"auth"`
	LastFM  LastFMConfig  `toml:"lastfm"`
	Log     LogConfig     `toml:"log"`
	Export  ExportConfig  `toml:"export"`
}

// SpotifyConfig contains Spotify application credentials and API settings.
type SpotifyConfig struct {
	ClientID          string   `toml:"client_id"`
	ClientSecret      string   `toml:"client_secret"`
	RedirectURI       string   `toml:"redirect_uri"`
	Scopes            []string `toml:"scopes"`
	ShowDialog        bool     `toml:"show_dialog"`
	RequestsPerSecond float64  `toml:"requests_per_second"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Addr            string        `toml:"addr"`
	SecureCookies   bool          `toml:"secure_cookies"`
	ReadTimeout     time.Duration `toml:"read_timeout"`
	WriteTimeout    time.Duration `toml:"write_timeout"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout"`
}

// SessionConfig selects and tunes the session backend.
type SessionConfig struct {
	Backend         string        `toml:"backend"`
	Path            string        `toml:"path"`
	DatabaseURL     string        `toml:"database_url"`
	TTL             time.Duration `toml:"ttl"`
	CleanupInterval time.Duration `toml:"cleanup_interval"`
}

// DSN returns the backend's data source: the file path for sqlite, the
// connection URL for postgres.
func (s SessionConfig) DSN() string {
	if s.Backend == "postgres" {
		return s.DatabaseURL
	}
	return s.Path
}

// AuthConfig tunes the token lifecycle.
type AuthConfig struct {
	ExpiryMargin time.Duration `toml:"expiry_margin"`
	HTTPTimeout  time.Duration `toml:"http_timeout"`
}

// LastFMConfig contains the optional Last.fm genre fallback settings.
type LastFMConfig struct {
	APIKey            string  `toml:"api_key"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// Enabled reports whether an API key is configured.
func (c LastFMConfig) Enabled() bool {
	return c.APIKey != ""
}

// LogConfig controls log output.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// ExportConfig controls the CSV export directory.
type ExportConfig struct {
	Dir string `toml:"dir"`
}

// DefaultConfig returns a Config with the defaults from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// Load builds the configuration: defaults, then the TOML file at path (if
// path is non-empty), then .env, then the process environment.
func Load(path string) (*Config, error) {
	config := DefaultConfig()

	if path != "" {
		if err := config.merge(path); err != nil {
			return nil, err
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	config.ApplyEnv(os.Getenv)
	return config, nil
}

// merge overlays the TOML file at path. Keys the file sets replace defaults;
// unknown keys are an error.
func (c *Config) merge(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	md, err := toml.Decode(string(data), c)
	if err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown config keys in %s: %s", path, strings.Join(keys, ", "))
	}
	return nil
}

// ApplyEnv overrides settings from environment variables read through getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}

	set(&c.Spotify.ClientID, "SPOTIFY_ID")
	set(&c.Spotify.ClientSecret, "SPOTIFY_SECRET")
	set(&c.Spotify.RedirectURI, "SPOTIFY_REDIRECT_URI")
	set(&c.Session.DatabaseURL, "DATABASE_URL")
	set(&c.Session.Backend, "SESSION_BACKEND")
	set(&c.LastFM.APIKey, "LASTFM_API_KEY")
	set(&c.Log.Level, "LOG_LEVEL")
	set(&c.Server.Addr, "ADDR")
}

// Validate checks the configuration is usable for serving.
func (c *Config) Validate() error {
	if c.Spotify.ClientID == "" || c.Spotify.ClientSecret == "" {
		return ErrMissingCredentials
	}
	if c.Spotify.RedirectURI == "" {
		return errors.New("spotify.redirect_uri must be set")
	}
	return c.ValidateStorage()
}

// ValidateStorage checks the settings needed to open the session backend
// and write logs, without requiring Spotify credentials.
func (c *Config) ValidateStorage() error {
	if !slices.Contains(backends, c.Session.Backend) {
		return fmt.Errorf("unknown session backend %q (want one of %s)", c.Session.Backend, strings.Join(backends, ", "))
	}
	if c.Session.Backend == "sqlite" && c.Session.Path == "" {
		return errors.New("session.path must be set for the sqlite backend")
	}
	if c.Session.Backend == "postgres" && c.Session.DatabaseURL == "" {
		return errors.New("DATABASE_URL must be set for the postgres backend")
	}
	if c.Session.TTL <= 0 {
		return errors.New("session.ttl must be positive")
	}
	if c.Auth.ExpiryMargin < 0 {
		return errors.New("auth.expiry_margin must not be negative")
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.Log.Level, err)
	}
	if c.Log.Format != "console" && c.Log.Format != "json" {
		return fmt.Errorf("invalid log format %q (want console or json)", c.Log.Format)
	}
	return nil
}

// CreateConfigFile writes the example configuration to path.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
