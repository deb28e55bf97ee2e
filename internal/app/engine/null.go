package engine

import (
	"context"
	"sync"
)

// NullSurface accepts every request and produces no sound and no events.
// It backs engines when no media backend is configured.
type NullSurface struct {
	mu     sync.Mutex
	events chan SurfaceEvent
	closed bool
}

// NewNullSurface creates a NullSurface.
func NewNullSurface() *NullSurface {
	return &NullSurface{events: make(chan SurfaceEvent)}
}

// Load accepts any url.
func (s *NullSurface) Load(context.Context, string) error {
	return nil
}

// Play always confirms playing.
func (s *NullSurface) Play(context.Context) (Confirmation, error) {
	return ConfirmedPlaying, nil
}

// Pause does nothing.
func (s *NullSurface) Pause(context.Context) error {
	return nil
}

// Seek does nothing.
func (s *NullSurface) Seek(context.Context, float64) error {
	return nil
}

// Events returns a channel that only closes.
func (s *NullSurface) Events() <-chan SurfaceEvent {
	return s.events
}

// Close closes the event channel.
func (s *NullSurface) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
	return nil
}
