// Package playback provides the playlist playback state machine.
package playback

// State represents the playback state.
type State int

const (
	StateIdle    State = iota // Nothing activated
	StateLoading              // Resolving or waiting for play confirmation
	StatePlaying              // Engine confirmed playing
	StatePaused               // Paused by the user or confirmed paused
	StateEnded                // Last track finished
	StateFailed               // Resolution or playback failed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateEnded:
		return "ended"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Active reports whether a source is loaded and controllable.
func (s State) Active() bool {
	return s == StatePlaying || s == StatePaused
}
