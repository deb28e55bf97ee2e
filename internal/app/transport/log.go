package transport

import (
	"sync"

	zlog "github.com/rs/zerolog/log"
)

// LogSurface logs the mirrored state. It never produces commands.
type LogSurface struct {
	mu       sync.Mutex
	metadata Metadata
	state    PlaybackState
	commands chan Command
}

// NewLogSurface creates a log surface.
func NewLogSurface() *LogSurface {
	return &LogSurface{
		state:    PlaybackNone,
		commands: make(chan Command),
	}
}

func (s *LogSurface) SetMetadata(md Metadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metadata = md
	if md.IsEmpty() {
		zlog.Info().Msg("transport: metadata cleared")
		return nil
	}
	zlog.Info().Msgf("transport: now playing title=%q artist=%q length=%s", md.Title, md.Artist, md.Length)
	return nil
}

func (s *LogSurface) SetPlaybackState(state PlaybackState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	zlog.Info().Msgf("transport: playback state=%s", state)
	return nil
}

func (s *LogSurface) Commands() <-chan Command {
	return s.commands
}

func (s *LogSurface) Close() error {
	return nil
}

// State returns the last mirrored metadata and playback state.
func (s *LogSurface) State() (Metadata, PlaybackState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metadata, s.state
}
