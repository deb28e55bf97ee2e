// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Provider types understood by the catalog factory.
const (
	ProviderBackend         = "backend"
	ProviderSpotify         = "spotify"
	ProviderSpotifyPlaylist = "spotify_playlist"
)

// Engine and transport surface types.
const (
	EngineMPV      = "mpv"
	EngineHeadless = "headless"
	TransportLog   = "log"
	TransportMPRIS = "mpris"
	TransportNone  = "none"
)

// Config represents the application configuration.
type Config struct {
	Server    ServerConfig            `yaml:"server"`
	Control   ControlConfig           `yaml:"control"`
	Catalog   CatalogConfig           `yaml:"catalog"`
	Filters   map[string]FilterConfig `yaml:"filters"`
	Playback  PlaybackConfig          `yaml:"playback"`
	Engines   EnginesConfig           `yaml:"engines"`
	Transport TransportConfig         `yaml:"transport"`
	Backend   BackendConfig           `yaml:"backend"`
	Spotify   SpotifyConfig           `yaml:"spotify"`
	Messages  MessagesConfig          `yaml:"messages"`
}

// ServerConfig represents server configuration.
type ServerConfig struct {
	Addr  string      `yaml:"addr" default:":8080"`
	Hooks HooksConfig `yaml:"hooks"`
}

// HooksConfig represents lifecycle hooks configuration.
type HooksConfig struct {
	OnStarted []string `yaml:"on_started"`
	OnStopped []string `yaml:"on_stopped"`
}

// ControlConfig represents control API configuration.
// An empty token leaves the API open.
type ControlConfig struct {
	Token string `yaml:"token"`
}

// CatalogConfig represents catalog configuration.
type CatalogConfig struct {
	Providers []ProviderConfig `yaml:"providers" validate:"required,min=1,dive"`
}

// ProviderConfig represents a single catalog provider configuration.
type ProviderConfig struct {
	Type        string         `yaml:"type" validate:"required,oneof=backend spotify spotify_playlist"`
	DisplayName string         `yaml:"display_name" validate:"required"`
	Settings    map[string]any `yaml:"settings"`
}

// FilterConfig represents a filter's configuration.
type FilterConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// PlaybackConfig represents playback control configuration.
type PlaybackConfig struct {
	ResolveTimeoutMs int `yaml:"resolve_timeout_ms" default:"0" validate:"gte=0,lte=300000"`
	PlayTimeoutMs    int `yaml:"play_timeout_ms" default:"0" validate:"gte=0,lte=300000"`
}

// ResolveTimeout returns the resolve timeout. Zero means no timeout.
func (p PlaybackConfig) ResolveTimeout() time.Duration {
	return time.Duration(p.ResolveTimeoutMs) * time.Millisecond
}

// PlayTimeout returns the play confirmation timeout. Zero means no timeout.
func (p PlaybackConfig) PlayTimeout() time.Duration {
	return time.Duration(p.PlayTimeoutMs) * time.Millisecond
}

// EnginesConfig represents the two engine slots.
type EnginesConfig struct {
	Primary   EngineConfig `yaml:"primary"`
	Secondary EngineConfig `yaml:"secondary"`
}

// EngineConfig represents one rendering surface.
type EngineConfig struct {
	Type      string   `yaml:"type" default:"mpv" validate:"oneof=mpv headless"`
	Binary    string   `yaml:"binary" default:"mpv"`
	Socket    string   `yaml:"socket"`
	ExtraArgs []string `yaml:"extra_args"`
}

// TransportConfig represents the OS transport control surface.
type TransportConfig struct {
	Type     string `yaml:"type" default:"log" validate:"oneof=log mpris none"`
	Identity string `yaml:"identity" default:"abetube"`
}

// BackendConfig represents the search/stream backend.
type BackendConfig struct {
	BaseURL           string  `yaml:"base_url" validate:"omitempty,url"`
	TimeoutMs         int     `yaml:"timeout_ms" default:"15000" validate:"gt=0"`
	MaxRetries        int     `yaml:"max_retries" default:"2" validate:"gte=0,lte=10"`
	RatePerSecond     float64 `yaml:"rate_per_second" default:"5" validate:"gt=0"`
	Burst             int     `yaml:"burst" default:"5" validate:"gt=0"`
	BreakerFailures   int     `yaml:"breaker_failures" default:"5" validate:"gt=0"`
	BreakerTimeoutSec int     `yaml:"breaker_timeout_sec" default:"30" validate:"gt=0"`
}

// Timeout returns the per-request timeout.
func (b BackendConfig) Timeout() time.Duration {
	return time.Duration(b.TimeoutMs) * time.Millisecond
}

// SpotifyConfig represents Spotify API configuration.
type SpotifyConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	Market       string `yaml:"market" validate:"omitempty,len=2" default:"JP"`
}

// MessagesConfig represents user-facing messages.
type MessagesConfig struct {
	DefaultError   string `yaml:"default_error" default:"Unexpected error"`
	NoQuery        string `yaml:"no_query" default:"No query provided"`
	SearchFailed   string `yaml:"search_failed" default:"Error during search"`
	NoResults      string `yaml:"no_results" default:"No results"`
	ResolveFailed  string `yaml:"resolve_failed" default:"Error fetching video info"`
	PlaybackFailed string `yaml:"playback_failed" default:"Playback error"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for sensitive fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	return Parse(data)
}

// Parse parses configuration from YAML bytes.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	// Set defaults using creasty/defaults
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("SPOTIFY_CLIENT_ID"); v != "" {
		c.Spotify.ClientID = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_SECRET"); v != "" {
		c.Spotify.ClientSecret = v
	}
	if v := os.Getenv("ABETUBE_BACKEND_URL"); v != "" {
		c.Backend.BaseURL = v
	}
	if v := os.Getenv("ABETUBE_CONTROL_TOKEN"); v != "" {
		c.Control.Token = v
	}
}

// GetMessage returns the message for the given code.
func (c *Config) GetMessage(code string) string {
	switch code {
	case "no_query":
		return c.Messages.NoQuery
	case "search_failed":
		return c.Messages.SearchFailed
	case "no_results":
		return c.Messages.NoResults
	case "resolve_failed":
		return c.Messages.ResolveFailed
	case "playback_failed":
		return c.Messages.PlaybackFailed
	default:
		return c.Messages.DefaultError
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}

	if err := c.validateProviderCredentials(); err != nil {
		return err
	}

	return nil
}

// validateProviderCredentials checks that every configured provider has what it needs.
func (c *Config) validateProviderCredentials() error {
	for i, p := range c.Catalog.Providers {
		switch p.Type {
		case ProviderBackend:
			if c.Backend.BaseURL == "" {
				return errors.Newf("provider %d (%s) requires backend.base_url", i, p.Type)
			}
		case ProviderSpotify, ProviderSpotifyPlaylist:
			if c.Spotify.ClientID == "" || c.Spotify.ClientSecret == "" {
				return errors.Newf("provider %d (%s) requires spotify.client_id and spotify.client_secret", i, p.Type)
			}
		}
	}
	return nil
}

// UsesProvider reports whether any catalog provider has the given type.
func (c *Config) UsesProvider(types ...string) bool {
	for _, p := range c.Catalog.Providers {
		for _, t := range types {
			if p.Type == t {
				return true
			}
		}
	}
	return false
}

// IsFilterEnabled checks if a filter is enabled.
func (c *Config) IsFilterEnabled(filterName string) bool {
	if f, ok := c.Filters[filterName]; ok {
		return f.Enabled
	}
	return false
}
