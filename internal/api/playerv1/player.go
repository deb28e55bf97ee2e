// Package playerv1 declares the abetube.v1 PlayerService messages and
// procedures.
package playerv1

// Track is a search result entry.
type Track struct {
	ID              string  `json:"id"`
	Title           string  `json:"title"`
	Channel         string  `json:"channel"`
	ThumbnailURL    string  `json:"thumbnail_url,omitempty"`
	DurationSeconds float64 `json:"duration_seconds"`
	Provider        string  `json:"provider,omitempty"`
}

type SearchRequest struct {
	Query string `json:"query"`
}

type SearchResponse struct {
	Query        string  `json:"query"`
	Provider     string  `json:"provider,omitempty"`
	Message      string  `json:"message,omitempty"`
	Tracks       []Track `json:"tracks"`
	TotalSeconds float64 `json:"total_seconds"`
}

type ActivateRequest struct {
	Index int `json:"index"`
}

type SeekToRequest struct {
	Fraction float64 `json:"fraction"`
}

// CommandRequest is the empty request of the argument-less commands.
type CommandRequest struct{}

// CommandResponse reports whether the command changed anything.
type CommandResponse struct {
	Changed bool `json:"changed"`
}

type GetStatusRequest struct{}

// Status is a snapshot of the player.
type Status struct {
	State        string  `json:"state"`
	Index        int     `json:"index"`
	Track        *Track  `json:"track,omitempty"`
	Tracks       []Track `json:"tracks"`
	Query        string  `json:"query,omitempty"`
	Position     float64 `json:"position"`
	Duration     float64 `json:"duration"`
	Generation   uint64  `json:"generation"`
	Engine       string  `json:"engine"`
	FallbackUsed bool    `json:"fallback_used"`
	Message      string  `json:"message,omitempty"`
}

type WatchStatusRequest struct{}

// Update types. Every other value is a playback event type.
const (
	UpdateSnapshot = "snapshot"
)

// StatusUpdate is one WatchStatus message. The first one of a stream has
// type snapshot and carries Status; the rest mirror playback events.
type StatusUpdate struct {
	SequenceNo uint64  `json:"sequence_no"`
	Type       string  `json:"type"`
	Status     *Status `json:"status,omitempty"`
	State      string  `json:"state"`
	Index      int     `json:"index"`
	Track      *Track  `json:"track,omitempty"`
	Position   float64 `json:"position"`
	Duration   float64 `json:"duration"`
	Failure    string  `json:"failure,omitempty"`
	Message    string  `json:"message,omitempty"`
}
