package transport

import (
	"context"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/abetube/internal/app/notification"
	"github.com/osa030/abetube/internal/app/playback"
)

// Controller receives the inbound commands and provides the state mirrored
// when the bridge starts.
type Controller interface {
	Snapshot() playback.Snapshot
	Play() error
	Pause() error
	TogglePlayPause() error
	Next() error
	Previous() error
}

// EventSource publishes controller events.
type EventSource interface {
	Subscribe(stream notification.Stream[playback.Event]) string
	Unsubscribe(subscriptionID string)
}

// Bridge connects a control surface to the controller.
type Bridge struct {
	surface    ControlSurface
	controller Controller
	source     EventSource
}

// NewBridge creates a bridge.
func NewBridge(surface ControlSurface, controller Controller, source EventSource) *Bridge {
	return &Bridge{
		surface:    surface,
		controller: controller,
		source:     source,
	}
}

// Run mirrors events and dispatches commands until ctx is done.
// It subscribes before publishing the current snapshot, so state changes made
// before or during startup are not lost. All surface calls happen on the
// calling goroutine.
func (b *Bridge) Run(ctx context.Context) error {
	events := make(chan playback.Event)
	subID := b.source.Subscribe(notification.StreamFunc[playback.Event](func(n notification.Notification[playback.Event]) error {
		select {
		case events <- n.Payload:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}))
	defer b.source.Unsubscribe(subID)

	b.publishSnapshot(b.controller.Snapshot())

	commands := b.surface.Commands()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-events:
			b.mirror(ev)
		case cmd, ok := <-commands:
			if !ok {
				commands = nil
				continue
			}
			b.dispatch(cmd)
		}
	}
}

func (b *Bridge) mirror(ev playback.Event) {
	switch ev.Type {
	case playback.EventPlaylistLoaded:
		b.publishMetadata(Metadata{})
	case playback.EventMetadata:
		if ev.Track != nil {
			b.publishMetadata(MetadataFor(*ev.Track))
		}
	case playback.EventStateChanged:
		b.publishState(PlaybackStateFor(ev.State))
	}
}

func (b *Bridge) publishSnapshot(s playback.Snapshot) {
	md := Metadata{}
	if s.Track != nil {
		md = MetadataFor(*s.Track)
	}
	b.publishMetadata(md)
	b.publishState(PlaybackStateFor(s.State))
}

func (b *Bridge) publishMetadata(md Metadata) {
	if err := b.surface.SetMetadata(md); err != nil {
		zlog.Warn().Err(err).Msgf("transport: failed to publish metadata track=%s", md.TrackID)
	}
}

func (b *Bridge) publishState(state PlaybackState) {
	if err := b.surface.SetPlaybackState(state); err != nil {
		zlog.Warn().Err(err).Msgf("transport: failed to publish state=%s", state)
	}
}

func (b *Bridge) dispatch(cmd Command) {
	var err error
	switch cmd {
	case CommandPlay:
		err = b.controller.Play()
	case CommandPause:
		err = b.controller.Pause()
	case CommandToggle:
		err = b.controller.TogglePlayPause()
	case CommandNext:
		err = b.controller.Next()
	case CommandPrevious:
		err = b.controller.Previous()
	default:
		zlog.Warn().Msgf("transport: unknown command=%s", cmd)
		return
	}
	if err != nil {
		zlog.Debug().Msgf("transport: command=%s ignored: %v", cmd, err)
	}
}
