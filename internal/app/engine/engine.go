// Package engine wraps a media surface and tags its events with the
// activation generation they belong to.
package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/abetube/internal/app/notification"
)

// ErrPlayback matches every *PlaybackError.
var ErrPlayback = errors.New("playback error")

// ErrNothingLoaded is returned by Play, Pause and Seek before any source is loaded.
var ErrNothingLoaded = errors.New("no source loaded")

// PlaybackError is a failure reported by, or on behalf of, a media surface.
type PlaybackError struct {
	Role Role
	Op   string
	Err  error
}

func (e *PlaybackError) Error() string {
	return fmt.Sprintf("%s engine: %s: %v", e.Role, e.Op, e.Err)
}

func (e *PlaybackError) Unwrap() error {
	return e.Err
}

// Is makes every PlaybackError match ErrPlayback.
func (e *PlaybackError) Is(target error) bool {
	return target == ErrPlayback
}

// Role identifies an engine slot.
type Role int

const (
	RolePrimary Role = iota
	RoleSecondary
)

// String returns the string representation of the role.
func (r Role) String() string {
	switch r {
	case RolePrimary:
		return "primary"
	case RoleSecondary:
		return "secondary"
	default:
		return "unknown"
	}
}

// Confirmation is the outcome of a successful play request.
type Confirmation int

const (
	// ConfirmedPlaying means the surface started producing sound.
	ConfirmedPlaying Confirmation = iota
	// ConfirmedPaused means the surface accepted the request but stayed paused.
	ConfirmedPaused
)

// String returns the string representation of the confirmation.
func (c Confirmation) String() string {
	switch c {
	case ConfirmedPlaying:
		return "playing"
	case ConfirmedPaused:
		return "paused"
	default:
		return "unknown"
	}
}

// Kind is the type of a media event.
type Kind int

const (
	KindTimeUpdate Kind = iota
	KindEnded
	KindError
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindTimeUpdate:
		return "time_update"
	case KindEnded:
		return "ended"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// SurfaceEvent is what a surface reports about the media it holds.
type SurfaceEvent struct {
	Kind     Kind
	Current  float64
	Duration float64
	Err      error
}

// Surface is a single media player.
// The engine reads Events continuously from New until Close.
type Surface interface {
	Load(ctx context.Context, url string) error
	Play(ctx context.Context) (Confirmation, error)
	Pause(ctx context.Context) error
	Seek(ctx context.Context, seconds float64) error
	Events() <-chan SurfaceEvent
	Close() error
}

// Event is a surface event tagged with the engine role and the generation
// of the most recent Load.
type Event struct {
	Role       Role
	Generation uint64
	Kind       Kind
	Current    float64
	Duration   float64
	Err        error
}

// Engine owns one surface.
type Engine struct {
	role    Role
	surface Surface

	// loadMu serializes loads and guards loadedURL.
	loadMu    sync.Mutex
	loadedURL string

	// generation and loaded are read by the forwarding goroutine without
	// taking loadMu, which may be held across a slow surface call.
	generation atomic.Uint64
	loaded     atomic.Bool

	events    *notification.Mailbox[Event]
	done      chan struct{}
	closeOnce sync.Once
}

// New creates an engine and starts forwarding the surface's events.
func New(role Role, surface Surface) *Engine {
	e := &Engine{
		role:    role,
		surface: surface,
		events:  notification.NewMailbox[Event](),
		done:    make(chan struct{}),
	}
	go e.forward()
	return e
}

// Role returns the engine role.
func (e *Engine) Role() Role {
	return e.role
}

// Generation returns the generation of the last Load.
func (e *Engine) Generation() uint64 {
	return e.generation.Load()
}

// LoadedURL returns the URL currently held by the surface.
func (e *Engine) LoadedURL() string {
	e.loadMu.Lock()
	defer e.loadMu.Unlock()
	return e.loadedURL
}

// HasSource reports whether a source is loaded.
func (e *Engine) HasSource() bool {
	return e.loaded.Load()
}

// Load hands url to the surface and retags subsequent events with generation.
// Loading the URL already held only retags.
func (e *Engine) Load(ctx context.Context, url string, generation uint64) error {
	e.loadMu.Lock()
	defer e.loadMu.Unlock()

	e.generation.Store(generation)
	if url == e.loadedURL && e.loaded.Load() {
		zlog.Debug().Msgf("engine: %s already holds source, retagged generation=%d", e.role, generation)
		return nil
	}

	if err := e.surface.Load(ctx, url); err != nil {
		e.loadedURL = ""
		e.loaded.Store(false)
		return e.fail(err, "load")
	}
	e.loadedURL = url
	e.loaded.Store(true)
	zlog.Debug().Msgf("engine: %s loaded source generation=%d", e.role, generation)
	return nil
}

// Unload forgets the loaded source. Events are ignored until the next Load.
func (e *Engine) Unload(ctx context.Context) {
	e.loadMu.Lock()
	defer e.loadMu.Unlock()

	if !e.loaded.Load() {
		return
	}
	if err := e.surface.Pause(ctx); err != nil {
		zlog.Debug().Msgf("engine: %s pause on unload failed: %v", e.role, err)
	}
	e.loadedURL = ""
	e.loaded.Store(false)
}

// Play asks the surface to start and waits for its confirmation.
func (e *Engine) Play(ctx context.Context) (Confirmation, error) {
	if !e.loaded.Load() {
		return ConfirmedPaused, e.fail(ErrNothingLoaded, "play")
	}
	c, err := e.surface.Play(ctx)
	if err != nil {
		return ConfirmedPaused, e.fail(err, "play")
	}
	return c, nil
}

// Pause pauses the surface.
func (e *Engine) Pause(ctx context.Context) error {
	if !e.loaded.Load() {
		return e.fail(ErrNothingLoaded, "pause")
	}
	if err := e.surface.Pause(ctx); err != nil {
		return e.fail(err, "pause")
	}
	return nil
}

// Seek moves the surface to seconds from the start.
func (e *Engine) Seek(ctx context.Context, seconds float64) error {
	if !e.loaded.Load() {
		return e.fail(ErrNothingLoaded, "seek")
	}
	if err := e.surface.Seek(ctx, seconds); err != nil {
		return e.fail(err, "seek")
	}
	return nil
}

// Events returns the tagged event stream. It is closed after Close.
func (e *Engine) Events() <-chan Event {
	return e.events.Out()
}

// Close stops forwarding and closes the surface.
func (e *Engine) Close() error {
	var err error
	e.closeOnce.Do(func() {
		close(e.done)
		e.events.Close()
		err = e.surface.Close()
	})
	return err
}

func (e *Engine) fail(err error, op string) error {
	return &PlaybackError{Role: e.role, Op: op, Err: err}
}

func (e *Engine) forward() {
	src := e.surface.Events()
	for {
		select {
		case <-e.done:
			return
		case ev, ok := <-src:
			if !ok {
				return
			}
			if !e.loaded.Load() {
				continue
			}
			if ev.Kind == KindError {
				if ev.Err == nil {
					ev.Err = errors.New("media error")
				}
				ev.Err = e.fail(ev.Err, "media")
			}
			e.events.Put(Event{
				Role:       e.role,
				Generation: e.generation.Load(),
				Kind:       ev.Kind,
				Current:    ev.Current,
				Duration:   ev.Duration,
				Err:        ev.Err,
			})
		}
	}
}
