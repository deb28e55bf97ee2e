// Package enginetest provides a scriptable surface for tests.
package enginetest

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/osa030/abetube/internal/app/engine"
)

// Operation names recorded by Surface.
const (
	OpLoad  = "load"
	OpPlay  = "play"
	OpPause = "pause"
	OpSeek  = "seek"
)

// Call is one recorded surface request.
type Call struct {
	Op      string
	URL     string
	Seconds float64
}

// Surface is an in-memory engine.Surface that records every request.
type Surface struct {
	mu           sync.Mutex
	calls        []Call
	url          string
	loadErrs     map[string]error
	playErrs     map[string]error
	confirmation engine.Confirmation
	playGate     chan struct{}
	events       chan engine.SurfaceEvent
	closed       bool
}

// NewSurface creates a surface that confirms playing by default.
func NewSurface() *Surface {
	return &Surface{
		loadErrs: make(map[string]error),
		playErrs: make(map[string]error),
		events:   make(chan engine.SurfaceEvent, 64),
	}
}

// FailLoad makes loading url fail with err.
func (s *Surface) FailLoad(url string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadErrs[url] = err
}

// RejectPlay makes playing url fail with err.
func (s *Surface) RejectPlay(url string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playErrs[url] = err
}

// ConfirmWith sets the confirmation returned by successful plays.
func (s *Surface) ConfirmWith(c engine.Confirmation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.confirmation = c
}

// HoldPlay makes Play block until the returned function is called.
func (s *Surface) HoldPlay() (release func()) {
	gate := make(chan struct{})
	s.mu.Lock()
	s.playGate = gate
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			if s.playGate == gate {
				s.playGate = nil
			}
			s.mu.Unlock()
			close(gate)
		})
	}
}

// Emit delivers a media event as if the player produced it.
func (s *Surface) Emit(ev engine.SurfaceEvent) {
	s.events <- ev
}

// Calls returns a copy of every recorded request.
func (s *Surface) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// Count returns how many requests of op were recorded.
func (s *Surface) Count(op string) int {
	n := 0
	for _, c := range s.Calls() {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Loads returns the loaded URLs in order.
func (s *Surface) Loads() []string {
	var urls []string
	for _, c := range s.Calls() {
		if c.Op == OpLoad {
			urls = append(urls, c.URL)
		}
	}
	return urls
}

// Load implements engine.Surface.
func (s *Surface) Load(_ context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Op: OpLoad, URL: url})
	if err := s.loadErrs[url]; err != nil {
		return err
	}
	s.url = url
	return nil
}

// Play implements engine.Surface.
func (s *Surface) Play(ctx context.Context) (engine.Confirmation, error) {
	s.mu.Lock()
	s.calls = append(s.calls, Call{Op: OpPlay, URL: s.url})
	gate := s.playGate
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return engine.ConfirmedPaused, errors.Wrap(ctx.Err(), "play not confirmed")
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.playErrs[s.url]; err != nil {
		return engine.ConfirmedPaused, err
	}
	return s.confirmation, nil
}

// Pause implements engine.Surface.
func (s *Surface) Pause(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Op: OpPause, URL: s.url})
	return nil
}

// Seek implements engine.Surface.
func (s *Surface) Seek(_ context.Context, seconds float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Op: OpSeek, URL: s.url, Seconds: seconds})
	return nil
}

// Events implements engine.Surface.
func (s *Surface) Events() <-chan engine.SurfaceEvent {
	return s.events
}

// Close implements engine.Surface.
func (s *Surface) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
	return nil
}
