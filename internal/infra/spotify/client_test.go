package spotify

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/abetube/internal/domain/track"
)

const trackJSON = `{
	"id": "4uLU6hMCjMI75M1A2tKUQC",
	"name": "Never Gonna Give You Up",
	"artists": [{"name": "Rick Astley"}, {"name": "Guest"}],
	"album": {"name": "Whenever You Need Somebody", "images": [{"url": "https://i.scdn.co/image/abc", "height": 640, "width": 640}]},
	"duration_ms": 213573,
	"preview_url": "https://p.scdn.co/mp3-preview/abc",
	"type": "track"
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := newWithHTTPClient(srv.Client(), Config{BaseURL: srv.URL + "/", Market: "JP"})
	c.retryDelay = time.Millisecond
	return c
}

func TestClient_Search(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "rick", r.URL.Query().Get("q"))
		assert.Equal(t, "track", r.URL.Query().Get("type"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		assert.Equal(t, "JP", r.URL.Query().Get("market"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"tracks": {"items": [` + trackJSON + `], "total": 1, "limit": 5, "offset": 0}}`))
	})

	tracks, err := c.Search(context.Background(), "rick", 5)
	require.NoError(t, err)
	require.Len(t, tracks, 1)

	got := tracks[0]
	assert.Equal(t, "4uLU6hMCjMI75M1A2tKUQC", got.ID)
	assert.Equal(t, "Never Gonna Give You Up", got.Title)
	assert.Equal(t, "Rick Astley, Guest", got.Channel)
	assert.Equal(t, "https://i.scdn.co/image/abc", got.ThumbnailURL)
	assert.Equal(t, 213573*time.Millisecond, got.Duration)
	assert.Equal(t, ProviderName, got.Provider)
}

func TestClient_SearchRequiresQuery(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	_, err := c.Search(context.Background(), "", 5)
	require.Error(t, err)
}

func TestClient_Resolve(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantPrimary string
		wantErr     error
	}{
		{
			name:        "preview available",
			body:        trackJSON,
			wantPrimary: "https://p.scdn.co/mp3-preview/abc",
		},
		{
			name:    "no preview",
			body:    strings.Replace(trackJSON, `"https://p.scdn.co/mp3-preview/abc"`, `null`, 1),
			wantErr: ErrNoPreview,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/tracks/4uLU6hMCjMI75M1A2tKUQC", r.URL.Path)
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(tt.body))
			})

			resolved, err := c.Resolve(context.Background(), track.Track{ID: "spotify:track:4uLU6hMCjMI75M1A2tKUQC"})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantPrimary, resolved.PrimaryURL)
			assert.Empty(t, resolved.FallbackURL)
		})
	}
}

func TestClient_GetPlaylistTracks(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasPrefix(r.URL.Path, "/playlists/37i9dQZF1DXcBWIGoYBM5M"), r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items": [{"track": ` + trackJSON + `}], "total": 1, "limit": 100, "offset": 0}`))
	})

	tracks, err := c.GetPlaylistTracks(context.Background(), "https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M?si=x")
	require.NoError(t, err)
	require.Len(t, tracks, 1)
	assert.Equal(t, "Never Gonna Give You Up", tracks[0].Title)
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error": {"status": 503, "message": "Service unavailable"}}`))
			return
		}
		_, _ = w.Write([]byte(trackJSON))
	})

	_, err := c.Resolve(context.Background(), track.Track{ID: "4uLU6hMCjMI75M1A2tKUQC"})
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error": {"status": 404, "message": "Non existing id"}}`))
	})

	_, err := c.Resolve(context.Background(), track.Track{ID: "missing"})
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestNew_RequiresCredentials(t *testing.T) {
	_, err := New(context.Background(), Config{ClientID: "id"})
	require.Error(t, err)

	c, err := New(context.Background(), Config{ClientID: "id", ClientSecret: "secret"})
	require.NoError(t, err)
	assert.Equal(t, "JP", c.market)
	assert.Equal(t, ProviderName, c.Name())
}

func TestExtractPlaylistID(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Spotify URI format",
			input:    "spotify:playlist:37i9dQZF1DXcBWIGoYBM5M",
			expected: "37i9dQZF1DXcBWIGoYBM5M",
		},
		{
			name:     "Spotify URL format",
			input:    "https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M",
			expected: "37i9dQZF1DXcBWIGoYBM5M",
		},
		{
			name:     "Spotify URL with query params",
			input:    "https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M?si=abc123",
			expected: "37i9dQZF1DXcBWIGoYBM5M",
		},
		{
			name:     "Localized URL",
			input:    "https://open.spotify.com/intl-ja/playlist/37i9dQZF1DXcBWIGoYBM5M/",
			expected: "37i9dQZF1DXcBWIGoYBM5M",
		},
		{
			name:     "Plain playlist ID",
			input:    "37i9dQZF1DXcBWIGoYBM5M",
			expected: "37i9dQZF1DXcBWIGoYBM5M",
		},
		{
			name:     "Empty string",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractPlaylistID(tt.input))
		})
	}
}

func TestExtractTrackID(t *testing.T) {
	assert.Equal(t, "abc", extractTrackID("spotify:track:abc"))
	assert.Equal(t, "abc", extractTrackID("https://open.spotify.com/track/abc?si=1"))
	assert.Equal(t, "abc", extractTrackID(" abc "))
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"rate limit error with 429", errors.New("Error 429: rate limit exceeded"), true},
		{"server error 502", errors.New("502 Bad Gateway"), true},
		{"client error 400", errors.New("400 Bad Request"), false},
		{"generic error", errors.New("something went wrong"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, isRetryable(tt.err))
		})
	}
}
