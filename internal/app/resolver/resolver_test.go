package resolver

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/abetube/internal/domain/source"
	"github.com/osa030/abetube/internal/domain/track"
	"github.com/osa030/abetube/internal/infra/config"
)

func staticResolver(url string) Func {
	return func(context.Context, track.Track) (source.Resolved, error) {
		return source.Resolved{PrimaryURL: url}, nil
	}
}

func TestRouter_DispatchesByProvider(t *testing.T) {
	router := NewRouter(0)
	router.Register("backend", staticResolver("https://backend/media"))
	router.Register("spotify", staticResolver("https://spotify/preview"))

	tests := []struct {
		name     string
		provider string
		wantURL  string
		wantErr  bool
	}{
		{name: "backend", provider: "backend", wantURL: "https://backend/media"},
		{name: "spotify", provider: "spotify", wantURL: "https://spotify/preview"},
		{name: "unknown provider", provider: "soundcloud", wantErr: true},
		{name: "unstamped track", provider: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := router.Resolve(context.Background(), track.Track{ID: "id", Provider: tt.provider})
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrResolve)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantURL, got.PrimaryURL)
		})
	}
	assert.Equal(t, []string{"backend", "spotify"}, router.Providers())
}

func TestRouter_WrapsUpstreamErrors(t *testing.T) {
	upstream := errors.New("video unavailable")
	router := NewRouter(0)
	router.Register("backend", Func(func(context.Context, track.Track) (source.Resolved, error) {
		return source.Resolved{}, upstream
	}))

	_, err := router.Resolve(context.Background(), track.Track{ID: "abc", Provider: "backend"})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrResolve)
	assert.ErrorIs(t, err, upstream)
	var re *ResolveError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "abc", re.TrackID)
	assert.Equal(t, "backend", re.Provider)
}

func TestRouter_RejectsEmptyPrimary(t *testing.T) {
	router := NewRouter(0)
	router.Register("backend", staticResolver(""))

	_, err := router.Resolve(context.Background(), track.Track{ID: "abc", Provider: "backend"})

	assert.ErrorIs(t, err, ErrResolve)
	assert.ErrorIs(t, err, source.ErrNoPrimary)
}

func TestRouter_CollapsesConcurrentResolves(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	router := NewRouter(0)
	router.Register("backend", Func(func(context.Context, track.Track) (source.Resolved, error) {
		calls.Add(1)
		<-release
		return source.Resolved{PrimaryURL: "https://backend/media"}, nil
	}))

	const callers = 5
	var wg sync.WaitGroup
	results := make([]string, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, err := router.Resolve(context.Background(), track.Track{ID: "abc", Provider: "backend"})
			if err == nil {
				results[i] = got.PrimaryURL
			}
		}(i)
	}

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		assert.Equal(t, "https://backend/media", r)
	}

	// nothing is cached once the call returns
	_, err := router.Resolve(context.Background(), track.Track{ID: "abc", Provider: "backend"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRouter_CancelledCallerDoesNotCancelSharedCall(t *testing.T) {
	release := make(chan struct{})
	var sawCancel atomic.Bool
	router := NewRouter(0)
	router.Register("backend", Func(func(ctx context.Context, _ track.Track) (source.Resolved, error) {
		select {
		case <-release:
		case <-ctx.Done():
			sawCancel.Store(true)
			return source.Resolved{}, ctx.Err()
		}
		return source.Resolved{PrimaryURL: "https://backend/media"}, nil
	}))

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstDone := make(chan error, 1)
	go func() {
		_, err := router.Resolve(firstCtx, track.Track{ID: "abc", Provider: "backend"})
		firstDone <- err
	}()

	secondDone := make(chan error, 1)
	go func() {
		time.Sleep(20 * time.Millisecond)
		_, err := router.Resolve(context.Background(), track.Track{ID: "abc", Provider: "backend"})
		secondDone <- err
	}()

	time.Sleep(40 * time.Millisecond)
	cancelFirst()
	assert.ErrorIs(t, <-firstDone, context.Canceled)

	close(release)
	assert.NoError(t, <-secondDone)
	assert.False(t, sawCancel.Load())
}

func TestRouter_Timeout(t *testing.T) {
	router := NewRouter(20 * time.Millisecond)
	router.Register("backend", Func(func(ctx context.Context, _ track.Track) (source.Resolved, error) {
		<-ctx.Done()
		return source.Resolved{}, ctx.Err()
	}))

	_, err := router.Resolve(context.Background(), track.Track{ID: "abc", Provider: "backend"})

	assert.ErrorIs(t, err, ErrResolve)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewRouterFromConfig(t *testing.T) {
	backend := staticResolver("https://backend/media")
	spotify := staticResolver("https://spotify/preview")

	tests := []struct {
		name      string
		providers []config.ProviderConfig
		clients   Clients
		want      []string
		wantErr   string
	}{
		{
			name: "all provider types",
			providers: []config.ProviderConfig{
				{Type: config.ProviderBackend},
				{Type: config.ProviderSpotify},
				{Type: config.ProviderSpotifyPlaylist},
			},
			clients: Clients{Backend: backend, Spotify: spotify},
			want:    []string{"backend", "spotify", "spotify_playlist"},
		},
		{
			name:      "missing client",
			providers: []config.ProviderConfig{{Type: config.ProviderSpotify}},
			clients:   Clients{Backend: backend},
			wantErr:   "no resolver client configured",
		},
		{
			name:      "unsupported type",
			providers: []config.ProviderConfig{{Type: "soundcloud"}},
			wantErr:   "unsupported provider type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{Catalog: config.CatalogConfig{Providers: tt.providers}}

			router, err := NewRouterFromConfig(cfg, tt.clients)

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, router.Providers())
		})
	}
}
