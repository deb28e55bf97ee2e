package backend

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/abetube/internal/domain/track"
	"github.com/osa030/abetube/internal/infra/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, modify ...func(*Config)) (*Client, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	cfg := Config{
		BaseURL:         srv.URL,
		Timeout:         2 * time.Second,
		RatePerSecond:   1000,
		Burst:           10,
		BreakerFailures: 3,
		BreakerTimeout:  time.Minute,
	}
	for _, m := range modify {
		m(&cfg)
	}
	c, err := New(cfg)
	require.NoError(t, err)
	return c, &hits
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestClient_Search(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "lofi beats", r.URL.Query().Get("q"))
		writeJSON(w, http.StatusOK, `{"results":[
			{"id":"dQw4w9WgXcQ","title":"Song","duration":212.5,"thumbnail":"https://img/a.jpg","channel":"Chan"},
			{"id":"","title":"broken"},
			{"id":"abcdefghijk","title":"","duration":null,"channel":""},
			{"id":"zzzzzzzzzzz","title":"Third","duration":10}
		]}`)
	})

	tracks, err := c.Search(context.Background(), "lofi beats", 2)
	require.NoError(t, err)
	require.Len(t, tracks, 2)

	assert.Equal(t, "dQw4w9WgXcQ", tracks[0].ID)
	assert.Equal(t, "Song", tracks[0].Title)
	assert.Equal(t, "Chan", tracks[0].Channel)
	assert.Equal(t, 212500*time.Millisecond, tracks[0].Duration)
	assert.Equal(t, ProviderName, tracks[0].Provider)

	assert.Equal(t, track.UnknownTitle, tracks[1].Title)
	assert.Equal(t, track.UnknownChannel, tracks[1].Channel)
	assert.True(t, tracks[1].IsLive())
	assert.Equal(t, track.DefaultThumbnail("abcdefghijk"), tracks[1].ThumbnailURL)
}

func TestClient_SearchErrorBody(t *testing.T) {
	c, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, `{"error":"Error during search","details":"yt-dlp exploded"}`)
	})

	_, err := c.Search(context.Background(), "q", 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBackend)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
	assert.Equal(t, "Error during search", statusErr.Message)
	assert.Equal(t, "yt-dlp exploded", statusErr.Details)
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			writeJSON(w, http.StatusBadGateway, `{}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"results":[]}`)
	}, func(cfg *Config) { cfg.MaxRetries = 1 })

	tracks, err := c.Search(context.Background(), "q", 10)
	require.NoError(t, err)
	assert.Empty(t, tracks)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestClient_Resolve(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		body         string
		wantPrimary  string
		wantFallback string
		wantErr      bool
	}{
		{
			name:         "combined and audio",
			status:       http.StatusOK,
			body:         `{"url":"https://cdn/av","audio_url":"https://cdn/a","title":"x"}`,
			wantPrimary:  "https://cdn/av",
			wantFallback: "https://cdn/a",
		},
		{
			name:        "url only",
			status:      http.StatusOK,
			body:        `{"url":"https://cdn/av"}`,
			wantPrimary: "https://cdn/av",
		},
		{
			name:         "audio only",
			status:       http.StatusOK,
			body:         `{"audio_url":"https://cdn/a"}`,
			wantPrimary:  "https://cdn/a",
			wantFallback: "https://cdn/a",
		},
		{
			name:    "error body",
			status:  http.StatusInternalServerError,
			body:    `{"error":"Error fetching video info","details":"private video"}`,
			wantErr: true,
		},
		{
			name:    "bad request",
			status:  http.StatusBadRequest,
			body:    `{"error":"Invalid video ID"}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/stream/dQw4w9WgXcQ", r.URL.Path)
				writeJSON(w, tt.status, tt.body)
			})

			resolved, err := c.Resolve(context.Background(), track.Track{ID: "dQw4w9WgXcQ"})
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrBackend)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantPrimary, resolved.PrimaryURL)
			assert.Equal(t, tt.wantFallback, resolved.FallbackURL)
		})
	}
}

func TestClient_ResolveRejectsInvalidIDWithoutRequest(t *testing.T) {
	c, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"url":"x"}`)
	})

	for _, id := range []string{"", "short", "../../etc/pa", "dQw4w9WgXcQ!", "dQw4w9WgXcQQ"} {
		_, err := c.Resolve(context.Background(), track.Track{ID: id})
		assert.ErrorIs(t, err, ErrInvalidID, id)
	}
	assert.Zero(t, atomic.LoadInt32(hits))
}

func TestClient_BreakerOpensOnServerFailures(t *testing.T) {
	c, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, `{"error":"Unexpected error"}`)
	})

	for i := 0; i < 3; i++ {
		_, err := c.Search(context.Background(), "q", 10)
		require.ErrorIs(t, err, ErrBackend)
	}
	_, err := c.Search(context.Background(), "q", 10)
	require.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(3), atomic.LoadInt32(hits))
}

func TestClient_BreakerIgnoresClientErrors(t *testing.T) {
	c, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, `{"error":"No query provided"}`)
	})

	for i := 0; i < 5; i++ {
		_, err := c.Search(context.Background(), "", 10)
		require.ErrorIs(t, err, ErrBackend)
	}
	assert.Equal(t, int32(5), atomic.LoadInt32(hits))
}

func TestClient_CancelledContext(t *testing.T) {
	c, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"results":[]}`)
	}, func(cfg *Config) {
		cfg.RatePerSecond = 0.001
		cfg.Burst = 1
	})

	_, err := c.Search(context.Background(), "first", 10)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.Search(ctx, "second", 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit wait")
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))
}

func TestNew_InvalidBaseURL(t *testing.T) {
	for _, raw := range []string{"", "localhost:5000", "://bad"} {
		_, err := New(Config{BaseURL: raw})
		assert.Error(t, err, raw)
	}
}

func TestConfigFrom(t *testing.T) {
	cfg := ConfigFrom(config.BackendConfig{
		BaseURL:           "http://localhost:5000",
		TimeoutMs:         1500,
		MaxRetries:        3,
		RatePerSecond:     2,
		Burst:             4,
		BreakerFailures:   6,
		BreakerTimeoutSec: 10,
	})
	assert.Equal(t, 1500*time.Millisecond, cfg.Timeout)
	assert.Equal(t, 10*time.Second, cfg.BreakerTimeout)
	assert.Equal(t, 6, cfg.BreakerFailures)
}
