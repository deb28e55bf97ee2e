package playback

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/abetube/internal/app/engine"
	"github.com/osa030/abetube/internal/app/notification"
	"github.com/osa030/abetube/internal/domain/playlist"
	"github.com/osa030/abetube/internal/domain/source"
	"github.com/osa030/abetube/internal/domain/track"
)

// Errors
var (
	ErrOutOfRange      = errors.New("index out of range")
	ErrNotActive       = errors.New("nothing is playing or paused")
	ErrInvalidSeek     = errors.New("seek fraction must be within [0, 1]")
	ErrUnknownDuration = errors.New("duration is unknown")
	ErrClosed          = errors.New("controller closed")
)

// Resolver turns a track into playable media URLs.
type Resolver interface {
	Resolve(ctx context.Context, t track.Track) (source.Resolved, error)
}

// Config holds controller configuration.
type Config struct {
	ResolveTimeout time.Duration // Zero waits for the resolver indefinitely
	PlayTimeout    time.Duration // Zero waits for the engine indefinitely

	// FailureMessage gives the user-facing text for a failure. Nil leaves it empty.
	FailureMessage func(FailureKind) string
}

// Snapshot is a consistent view of the controller.
type Snapshot struct {
	State        State
	Index        int
	Track        *track.Track
	Tracks       []track.Track
	Position     float64
	Duration     float64
	Generation   uint64
	Engine       engine.Role
	FallbackUsed bool
	Message      string // Failure text of the current activation
}

// Controller drives two engines through a playlist.
//
// Every activation and playlist replacement bumps the generation. Resolution
// results, play confirmations and engine events carry the generation they were
// started under and are dropped when it is no longer current.
type Controller struct {
	mu sync.Mutex

	playlist   *playlist.Playlist
	state      State
	generation uint64

	primary   *engine.Engine
	secondary *engine.Engine
	active    engine.Role

	source       source.Resolved
	fallbackUsed bool
	playToken    uint64

	position float64
	duration float64
	message  string

	resolver      Resolver
	config        Config
	resolveCancel context.CancelFunc

	events *notification.Mailbox[Event]

	ctx       context.Context
	cancel    context.CancelFunc
	inflight  sync.WaitGroup
	consumers sync.WaitGroup
	closed    bool
}

// NewController creates a controller that owns both engines.
func NewController(config Config, resolver Resolver, primary, secondary *engine.Engine) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		playlist:  playlist.New(nil),
		state:     StateIdle,
		primary:   primary,
		secondary: secondary,
		active:    engine.RolePrimary,
		resolver:  resolver,
		config:    config,
		events:    notification.NewMailbox[Event](),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, e := range []*engine.Engine{primary, secondary} {
		c.consumers.Add(1)
		go c.consume(e)
	}
	return c
}

// Events returns the event stream. Events are delivered in the order they
// happened and none are dropped.
func (c *Controller) Events() <-chan Event {
	return c.events.Out()
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		State:        c.state,
		Index:        c.playlist.CurrentIndex(),
		Tracks:       c.playlist.Tracks(),
		Position:     c.position,
		Duration:     c.duration,
		Generation:   c.generation,
		Engine:       c.active,
		FallbackUsed: c.fallbackUsed,
		Message:      c.message,
	}
	if t, ok := c.playlist.Current(); ok {
		s.Track = &t
	}
	return s
}

// LoadPlaylist replaces the playlist and returns to idle.
// Any activation in flight is abandoned. The engines are left alone: what
// they hold keeps playing, but their events are dropped from now on.
func (c *Controller) LoadPlaylist(tracks []track.Track) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	c.invalidateLocked()
	c.playlist = playlist.New(tracks)
	c.resetSourceLocked()

	zlog.Info().Msgf("playback: playlist loaded tracks=%d generation=%d", len(tracks), c.generation)
	c.sendLocked(c.eventLocked(EventPlaylistLoaded))
	c.setStateLocked(StateIdle)
}

// Activate starts the track at index. Out-of-range indexes change nothing.
func (c *Controller) Activate(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activateLocked(index)
}

// Next activates the following track. At the end of the playlist it changes nothing.
func (c *Controller) Next() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activateLocked(c.playlist.CurrentIndex() + 1)
}

// Previous activates the preceding track. At the start of the playlist it changes nothing.
func (c *Controller) Previous() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activateLocked(c.playlist.CurrentIndex() - 1)
}

// TogglePlayPause pauses when playing and resumes when paused.
// In any other state it changes nothing.
func (c *Controller) TogglePlayPause() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StatePlaying:
		c.pauseLocked()
		return nil
	case StatePaused:
		c.resumeLocked()
		return nil
	default:
		return errors.Wrapf(ErrNotActive, "state %s", c.state)
	}
}

// Play resumes when paused.
func (c *Controller) Play() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StatePlaying:
		return nil
	case StatePaused:
		c.resumeLocked()
		return nil
	default:
		return errors.Wrapf(ErrNotActive, "state %s", c.state)
	}
}

// Pause pauses when playing.
func (c *Controller) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StatePaused:
		return nil
	case StatePlaying:
		c.pauseLocked()
		return nil
	default:
		return errors.Wrapf(ErrNotActive, "state %s", c.state)
	}
}

// SeekTo moves the active engine to fraction of the known duration.
func (c *Controller) SeekTo(fraction float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if math.IsNaN(fraction) || fraction < 0 || fraction > 1 {
		return errors.Wrapf(ErrInvalidSeek, "fraction %v", fraction)
	}
	if !c.state.Active() {
		return errors.Wrapf(ErrNotActive, "state %s", c.state)
	}
	if c.duration <= 0 {
		return ErrUnknownDuration
	}

	target := fraction * c.duration
	if err := c.activeEngineLocked().Seek(c.ctx, target); err != nil {
		zlog.Warn().Err(err).Msgf("playback: seek failed target=%.1f", target)
		return err
	}
	c.position = target
	c.sendLocked(c.eventLocked(EventProgress))
	return nil
}

// Close abandons all work and closes both engines.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.invalidateLocked()
	c.mu.Unlock()

	c.cancel()
	c.inflight.Wait()

	for _, e := range []*engine.Engine{c.primary, c.secondary} {
		if err := e.Close(); err != nil {
			zlog.Warn().Err(err).Msgf("playback: failed to close %s engine", e.Role())
		}
	}
	c.consumers.Wait()
	c.events.Close()
}

func (c *Controller) activateLocked(index int) error {
	if c.closed {
		return ErrClosed
	}

	t, ok := c.playlist.At(index)
	if !ok {
		zlog.Debug().Msgf("playback: activate ignored index=%d tracks=%d", index, c.playlist.Len())
		return errors.Wrapf(ErrOutOfRange, "index %d", index)
	}

	c.invalidateLocked()
	c.silenceLocked()
	c.playlist.Select(index)
	c.resetSourceLocked()
	gen := c.generation

	zlog.Info().Msgf("playback: activating index=%d id=%s generation=%d", index, t.ID, gen)
	c.sendLocked(c.eventLocked(EventMetadata))
	c.setStateLocked(StateLoading)

	ctx, cancel := c.withTimeout(c.config.ResolveTimeout)
	c.resolveCancel = cancel
	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		defer cancel()
		resolved, err := c.resolver.Resolve(ctx, t)
		c.onResolved(gen, resolved, err)
	}()
	return nil
}

func (c *Controller) onResolved(gen uint64, resolved source.Resolved, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || gen != c.generation {
		zlog.Debug().Msgf("playback: dropping stale resolution generation=%d current=%d", gen, c.generation)
		return
	}
	c.resolveCancel = nil

	if err == nil {
		err = resolved.Validate()
	}
	if err != nil {
		c.failLocked(FailureResolve, errors.Wrap(err, "resolve source"))
		return
	}

	c.source = resolved
	c.active = engine.RolePrimary
	if err := c.primary.Load(c.ctx, resolved.PrimaryURL, gen); err != nil {
		c.recoverLocked(err)
		return
	}
	if resolved.HasDistinctFallback() {
		// The secondary holds the fallback for a mid-playback switch.
		if err := c.secondary.Load(c.ctx, resolved.FallbackURL, gen); err != nil {
			zlog.Warn().Err(err).Msgf("playback: fallback preload failed generation=%d", gen)
		}
	}
	c.startPlayLocked(c.primary)
}

// recoverLocked spends the single fallback attempt of the current activation
// or fails it.
func (c *Controller) recoverLocked(cause error) {
	if c.fallbackUsed || !c.source.HasDistinctFallback() {
		c.failLocked(FailurePlayback, cause)
		return
	}
	c.fallbackUsed = true
	zlog.Warn().Err(cause).Msgf("playback: switching to fallback source state=%s generation=%d", c.state, c.generation)

	if c.state == StateLoading {
		// Not started yet: retry on the primary engine.
		c.active = engine.RolePrimary
		if err := c.primary.Load(c.ctx, c.source.FallbackURL, c.generation); err != nil {
			c.failLocked(FailurePlayback, err)
			return
		}
		c.startPlayLocked(c.primary)
		return
	}

	// Already audible: continue on the secondary engine from the last position.
	// The fallback is normally preloaded; Load only retags it then.
	resume := c.state == StatePlaying
	c.playToken++
	if c.primary.HasSource() {
		if err := c.primary.Pause(c.ctx); err != nil {
			zlog.Debug().Msgf("playback: pause of failed primary engine: %v", err)
		}
	}
	if err := c.secondary.Load(c.ctx, c.source.FallbackURL, c.generation); err != nil {
		c.failLocked(FailurePlayback, err)
		return
	}
	c.active = engine.RoleSecondary
	if c.position > 0 {
		if err := c.secondary.Seek(c.ctx, c.position); err != nil {
			zlog.Warn().Err(err).Msgf("playback: fallback seek failed position=%.1f", c.position)
		}
	}
	if resume {
		c.startPlayLocked(c.secondary)
	}
}

func (c *Controller) startPlayLocked(e *engine.Engine) {
	if c.closed {
		return
	}

	c.playToken++
	token := c.playToken
	gen := c.generation
	role := e.Role()

	ctx, cancel := c.withTimeout(c.config.PlayTimeout)
	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		defer cancel()
		confirmation, err := e.Play(ctx)
		c.onPlayResult(gen, token, role, confirmation, err)
	}()
}

func (c *Controller) onPlayResult(gen, token uint64, role engine.Role, confirmation engine.Confirmation, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || gen != c.generation || token != c.playToken || role != c.active {
		zlog.Debug().Msgf("playback: dropping stale play result generation=%d role=%s", gen, role)
		return
	}

	if err != nil {
		c.recoverLocked(err)
		return
	}

	switch confirmation {
	case engine.ConfirmedPaused:
		c.setStateLocked(StatePaused)
	default:
		c.setStateLocked(StatePlaying)
	}
}

func (c *Controller) pauseLocked() {
	// Invalidate any confirmation still in flight.
	c.playToken++
	for _, e := range []*engine.Engine{c.primary, c.secondary} {
		if !e.HasSource() {
			continue
		}
		if err := e.Pause(c.ctx); err != nil {
			zlog.Warn().Err(err).Msgf("playback: failed to pause %s engine", e.Role())
		}
	}
	c.setStateLocked(StatePaused)
}

func (c *Controller) resumeLocked() {
	c.setStateLocked(StatePlaying)
	c.startPlayLocked(c.activeEngineLocked())
}

func (c *Controller) consume(e *engine.Engine) {
	defer c.consumers.Done()
	for ev := range e.Events() {
		c.handleEngineEvent(ev)
	}
}

func (c *Controller) handleEngineEvent(ev engine.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || ev.Generation != c.generation || ev.Role != c.active {
		return
	}

	switch ev.Kind {
	case engine.KindTimeUpdate:
		c.position = nonNegative(ev.Current)
		c.duration = nonNegative(ev.Duration)
		c.sendLocked(c.eventLocked(EventProgress))

	case engine.KindEnded:
		if !c.state.Active() {
			return
		}
		if c.playlist.IsLast() {
			zlog.Info().Msgf("playback: playlist ended generation=%d", c.generation)
			c.setStateLocked(StateEnded)
			return
		}
		_ = c.activateLocked(c.playlist.CurrentIndex() + 1)

	case engine.KindError:
		// Failures before the first confirmation come back through Play.
		if !c.state.Active() {
			return
		}
		c.recoverLocked(ev.Err)
	}
}

func (c *Controller) failLocked(kind FailureKind, err error) {
	zlog.Error().Err(err).Msgf("playback: %s failure index=%d generation=%d", kind, c.playlist.CurrentIndex(), c.generation)
	if c.config.FailureMessage != nil {
		c.message = c.config.FailureMessage(kind)
	}
	c.setStateLocked(StateFailed)

	ev := c.eventLocked(EventFailure)
	ev.Failure = kind
	ev.Err = err
	c.sendLocked(ev)
}

func (c *Controller) setStateLocked(s State) {
	if c.state == s {
		return
	}
	zlog.Debug().Msgf("playback: state %s -> %s", c.state, s)
	c.state = s
	c.sendLocked(c.eventLocked(EventStateChanged))
}

func (c *Controller) invalidateLocked() {
	c.generation++
	c.playToken++
	if c.resolveCancel != nil {
		c.resolveCancel()
		c.resolveCancel = nil
	}
}

// silenceLocked releases both engines so that only the next activation's
// source is ever loaded.
func (c *Controller) silenceLocked() {
	c.primary.Unload(c.ctx)
	c.secondary.Unload(c.ctx)
}

func (c *Controller) resetSourceLocked() {
	c.source = source.Resolved{}
	c.fallbackUsed = false
	c.active = engine.RolePrimary
	c.position = 0
	c.duration = 0
	c.message = ""
}

func (c *Controller) activeEngineLocked() *engine.Engine {
	if c.active == engine.RoleSecondary {
		return c.secondary
	}
	return c.primary
}

func (c *Controller) eventLocked(t EventType) Event {
	ev := Event{
		Type:       t,
		State:      c.state,
		Index:      c.playlist.CurrentIndex(),
		Position:   c.position,
		Duration:   c.duration,
		Generation: c.generation,
		Message:    c.message,
	}
	if cur, ok := c.playlist.Current(); ok {
		ev.Track = &cur
	}
	return ev
}

func (c *Controller) sendLocked(ev Event) {
	c.events.Put(ev)
}

func (c *Controller) withTimeout(d time.Duration) (context.Context, context.CancelFunc) {
	if d > 0 {
		return context.WithTimeout(c.ctx, d)
	}
	return context.WithCancel(c.ctx)
}

func nonNegative(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
