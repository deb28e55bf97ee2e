package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
backend:
  base_url: http://localhost:5000
catalog:
  providers:
    - type: backend
      display_name: YouTube
`

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, EngineMPV, cfg.Engines.Primary.Type)
	assert.Equal(t, "mpv", cfg.Engines.Secondary.Binary)
	assert.Equal(t, TransportLog, cfg.Transport.Type)
	assert.Equal(t, "abetube", cfg.Transport.Identity)
	assert.Equal(t, 15*time.Second, cfg.Backend.Timeout())
	assert.Equal(t, 2, cfg.Backend.MaxRetries)
	assert.Equal(t, 5.0, cfg.Backend.RatePerSecond)
	assert.Equal(t, "JP", cfg.Spotify.Market)
	assert.Zero(t, cfg.Playback.ResolveTimeout())
	assert.Zero(t, cfg.Playback.PlayTimeout())
	assert.Equal(t, "No query provided", cfg.Messages.NoQuery)
	assert.Empty(t, cfg.Control.Token)
}

func TestParse_ExplicitValues(t *testing.T) {
	yaml := `
server:
  addr: ":9090"
  hooks:
    on_started: ["echo started"]
control:
  token: secret
backend:
  base_url: http://localhost:5000
  rate_per_second: 1.5
catalog:
  providers:
    - type: backend
      display_name: YouTube
      settings:
        limit: 5
filters:
  duration_limit_filter:
    enabled: true
    settings:
      max_seconds: 600
playback:
  resolve_timeout_ms: 8000
  play_timeout_ms: 3000
engines:
  primary:
    type: headless
  secondary:
    type: mpv
    socket: /tmp/abetube-secondary.sock
transport:
  type: mpris
`
	cfg, err := Parse([]byte(yaml))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, []string{"echo started"}, cfg.Server.Hooks.OnStarted)
	assert.Equal(t, "secret", cfg.Control.Token)
	assert.Equal(t, 1.5, cfg.Backend.RatePerSecond)
	assert.Equal(t, 5, cfg.Catalog.Providers[0].Settings["limit"])
	assert.True(t, cfg.IsFilterEnabled("duration_limit_filter"))
	assert.False(t, cfg.IsFilterEnabled("duplicate_track_filter"))
	assert.Equal(t, 8*time.Second, cfg.Playback.ResolveTimeout())
	assert.Equal(t, 3*time.Second, cfg.Playback.PlayTimeout())
	assert.Equal(t, EngineHeadless, cfg.Engines.Primary.Type)
	assert.Equal(t, "/tmp/abetube-secondary.sock", cfg.Engines.Secondary.Socket)
	assert.Equal(t, TransportMPRIS, cfg.Transport.Type)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "no providers",
			yaml:    `backend: {base_url: "http://localhost:5000"}`,
			wantErr: "Providers",
		},
		{
			name: "unknown provider type",
			yaml: `
catalog:
  providers:
    - type: soundcloud
      display_name: SC
`,
			wantErr: "Type",
		},
		{
			name: "backend provider without base url",
			yaml: `
catalog:
  providers:
    - type: backend
      display_name: YouTube
`,
			wantErr: "requires backend.base_url",
		},
		{
			name: "spotify provider without credentials",
			yaml: `
catalog:
  providers:
    - type: spotify
      display_name: Spotify
`,
			wantErr: "requires spotify.client_id",
		},
		{
			name: "invalid engine type",
			yaml: minimalYAML + `
engines:
  primary:
    type: vlc
`,
			wantErr: "Type",
		},
		{
			name: "negative timeout",
			yaml: minimalYAML + `
playback:
  resolve_timeout_ms: -1
`,
			wantErr: "ResolveTimeoutMs",
		},
		{
			name: "invalid market",
			yaml: minimalYAML + `
spotify:
  market: JPN
`,
			wantErr: "Market",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParse_EnvironmentOverrides(t *testing.T) {
	t.Setenv("SPOTIFY_CLIENT_ID", "env-id")
	t.Setenv("SPOTIFY_CLIENT_SECRET", "env-secret")
	t.Setenv("ABETUBE_BACKEND_URL", "http://backend.internal:5000")
	t.Setenv("ABETUBE_CONTROL_TOKEN", "env-token")

	yaml := `
catalog:
  providers:
    - type: spotify
      display_name: Spotify
    - type: backend
      display_name: YouTube
`
	cfg, err := Parse([]byte(yaml))
	require.NoError(t, err)

	assert.Equal(t, "env-id", cfg.Spotify.ClientID)
	assert.Equal(t, "env-secret", cfg.Spotify.ClientSecret)
	assert.Equal(t, "http://backend.internal:5000", cfg.Backend.BaseURL)
	assert.Equal(t, "env-token", cfg.Control.Token)
	assert.True(t, cfg.UsesProvider(ProviderSpotify, ProviderSpotifyPlaylist))
	assert.False(t, cfg.UsesProvider(ProviderSpotifyPlaylist))
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:5000", cfg.Backend.BaseURL)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestConfig_GetMessage(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)

	tests := []struct {
		code     string
		expected string
	}{
		{"no_query", "No query provided"},
		{"search_failed", "Error during search"},
		{"no_results", "No results"},
		{"resolve_failed", "Error fetching video info"},
		{"playback_failed", "Playback error"},
		{"anything_else", "Unexpected error"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.expected, cfg.GetMessage(tt.code))
		})
	}
}

func TestLoad_SampleConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "..", "config", "server.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ProviderBackend, cfg.Catalog.Providers[0].Type)
	assert.True(t, cfg.IsFilterEnabled("duplicate_track_filter"))
	assert.False(t, cfg.IsFilterEnabled("duration_limit_filter"))
	assert.Equal(t, TransportLog, cfg.Transport.Type)
}
