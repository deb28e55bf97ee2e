// Package resolver turns catalog tracks into playable media URLs.
package resolver

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/osa030/abetube/internal/domain/source"
	"github.com/osa030/abetube/internal/domain/track"
)

// ErrResolve matches every *ResolveError.
var ErrResolve = errors.New("source resolution failed")

// ResolveError is a failure to resolve a track.
type ResolveError struct {
	Provider string
	TrackID  string
	Err      error
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("resolve %s/%s: %v", e.Provider, e.TrackID, e.Err)
}

func (e *ResolveError) Unwrap() error {
	return e.Err
}

// Is makes every ResolveError match ErrResolve.
func (e *ResolveError) Is(target error) bool {
	return target == ErrResolve
}

// Resolver resolves a track to its media sources.
type Resolver interface {
	Resolve(ctx context.Context, t track.Track) (source.Resolved, error)
}

// Func adapts a function to Resolver.
type Func func(ctx context.Context, t track.Track) (source.Resolved, error)

// Resolve calls f.
func (f Func) Resolve(ctx context.Context, t track.Track) (source.Resolved, error) {
	return f(ctx, t)
}

// Router dispatches resolution by the track's provider.
// Concurrent resolutions of the same track share one upstream call; nothing
// is cached once the call returns.
type Router struct {
	mu      sync.RWMutex
	routes  map[string]Resolver
	group   singleflight.Group
	timeout time.Duration
}

// NewRouter creates a router. A positive timeout bounds each upstream call.
func NewRouter(timeout time.Duration) *Router {
	return &Router{
		routes:  make(map[string]Resolver),
		timeout: timeout,
	}
}

// Register routes tracks from provider to r.
func (r *Router) Register(provider string, res Resolver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes[provider] = res
}

// Providers returns the registered provider names, sorted.
func (r *Router) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.routes))
	for name := range r.routes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve implements Resolver.
func (r *Router) Resolve(ctx context.Context, t track.Track) (source.Resolved, error) {
	r.mu.RLock()
	res, ok := r.routes[t.Provider]
	r.mu.RUnlock()
	if !ok {
		return source.Resolved{}, &ResolveError{Provider: t.Provider, TrackID: t.ID, Err: errors.New("no resolver for provider")}
	}

	key := t.Provider + "/" + t.ID
	ch := r.group.DoChan(key, func() (any, error) {
		// The shared call outlives any single caller's cancellation.
		callCtx := context.WithoutCancel(ctx)
		if r.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(callCtx, r.timeout)
			defer cancel()
		}
		zlog.Debug().Msgf("resolver: resolving provider=%s id=%s", t.Provider, t.ID)
		return res.Resolve(callCtx, t)
	})

	select {
	case <-ctx.Done():
		return source.Resolved{}, errors.Wrap(ctx.Err(), "resolve cancelled")
	case out := <-ch:
		if out.Err != nil {
			var re *ResolveError
			if errors.As(out.Err, &re) {
				return source.Resolved{}, out.Err
			}
			return source.Resolved{}, &ResolveError{Provider: t.Provider, TrackID: t.ID, Err: out.Err}
		}
		resolved := out.Val.(source.Resolved)
		if err := resolved.Validate(); err != nil {
			return source.Resolved{}, &ResolveError{Provider: t.Provider, TrackID: t.ID, Err: err}
		}
		if out.Shared {
			zlog.Debug().Msgf("resolver: shared resolution provider=%s id=%s", t.Provider, t.ID)
		}
		return resolved, nil
	}
}
