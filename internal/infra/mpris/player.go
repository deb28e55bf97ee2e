package mpris

import (
	"github.com/godbus/dbus/v5"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/abetube/internal/app/transport"
)

const commandBuffer = 16

// player implements the methods of org.mpris.MediaPlayer2.Player.
// Calls arrive on godbus goroutines and are queued without blocking.
type player struct {
	commands chan transport.Command
}

func newPlayer() *player {
	return &player{commands: make(chan transport.Command, commandBuffer)}
}

func (p *player) push(c transport.Command) *dbus.Error {
	select {
	case p.commands <- c:
	default:
		zlog.Warn().Msgf("mpris: command queue full, dropping %s", c)
	}
	return nil
}

func (p *player) Play() *dbus.Error      { return p.push(transport.CommandPlay) }
func (p *player) Pause() *dbus.Error     { return p.push(transport.CommandPause) }
func (p *player) PlayPause() *dbus.Error { return p.push(transport.CommandToggle) }
func (p *player) Next() *dbus.Error      { return p.push(transport.CommandNext) }
func (p *player) Previous() *dbus.Error  { return p.push(transport.CommandPrevious) }

// Stop has no separate meaning here.
func (p *player) Stop() *dbus.Error { return p.push(transport.CommandPause) }

func (p *player) Seek(offset int64) *dbus.Error { return nil }

func (p *player) SetPosition(trackID dbus.ObjectPath, position int64) *dbus.Error { return nil }

func (p *player) OpenUri(uri string) *dbus.Error {
	return dbus.MakeFailedError(errUnsupported)
}
