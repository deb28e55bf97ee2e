package playback

import (
	"github.com/osa030/abetube/internal/domain/track"
)

// EventType represents a playback event type.
type EventType int

const (
	EventPlaylistLoaded EventType = iota // Playlist replaced
	EventStateChanged                    // Status transition
	EventMetadata                        // Active track changed
	EventProgress                        // Position or duration changed
	EventFailure                         // User-visible failure
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventPlaylistLoaded:
		return "playlist_loaded"
	case EventStateChanged:
		return "state_changed"
	case EventMetadata:
		return "metadata"
	case EventProgress:
		return "progress"
	case EventFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// FailureKind classifies a failure event.
type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureResolve
	FailurePlayback
)

// String returns the string representation of the failure kind.
func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureResolve:
		return "resolve"
	case FailurePlayback:
		return "playback"
	default:
		return "unknown"
	}
}

// Event represents a playback event.
type Event struct {
	Type       EventType
	State      State
	Index      int          // Current index or playlist.NoSelection
	Track      *track.Track // Current track (nil when nothing is selected)
	Position   float64      // Seconds
	Duration   float64      // Seconds, 0 when unknown
	Generation uint64
	Failure    FailureKind
	Err        error
	Message    string // User-facing failure text of the current activation
}
