// Package transport mirrors playback state to an OS media-session control
// surface and feeds the surface's commands back into the controller.
package transport

import (
	"strconv"
	"time"

	"github.com/osa030/abetube/internal/app/playback"
	"github.com/osa030/abetube/internal/domain/track"
)

// ArtworkSizes are the square sizes advertised for every thumbnail.
var ArtworkSizes = []int{96, 128, 192, 256, 384, 512}

// Artwork is one advertised image.
type Artwork struct {
	URL   string
	Sizes string // e.g. "96x96"
	Type  string
}

// Metadata describes the selected track.
type Metadata struct {
	TrackID string
	Title   string
	Artist  string
	Artwork []Artwork
	Length  time.Duration
}

// IsEmpty reports whether nothing is selected.
func (m Metadata) IsEmpty() bool {
	return m.TrackID == "" && m.Title == ""
}

// MetadataFor builds the metadata published for t.
func MetadataFor(t track.Track) Metadata {
	md := Metadata{
		TrackID: t.ID,
		Title:   t.Title,
		Artist:  t.Channel,
		Length:  t.Duration,
	}
	if t.ThumbnailURL != "" {
		md.Artwork = make([]Artwork, 0, len(ArtworkSizes))
		for _, size := range ArtworkSizes {
			md.Artwork = append(md.Artwork, Artwork{
				URL:   t.ThumbnailURL,
				Sizes: sizeString(size),
				Type:  "image/jpeg",
			})
		}
	}
	return md
}

func sizeString(size int) string {
	s := strconv.Itoa(size)
	return s + "x" + s
}

// PlaybackState is the state shown by the control surface.
type PlaybackState string

const (
	PlaybackNone    PlaybackState = "none"
	PlaybackPlaying PlaybackState = "playing"
	PlaybackPaused  PlaybackState = "paused"
)

// PlaybackStateFor maps a controller state to the surface state.
// Loading, ended and failed all show as paused.
func PlaybackStateFor(s playback.State) PlaybackState {
	switch s {
	case playback.StateIdle:
		return PlaybackNone
	case playback.StatePlaying:
		return PlaybackPlaying
	default:
		return PlaybackPaused
	}
}

// Command is an inbound transport command.
type Command string

const (
	CommandPlay     Command = "play"
	CommandPause    Command = "pause"
	CommandToggle   Command = "toggle"
	CommandNext     Command = "next"
	CommandPrevious Command = "previous"
)

// ControlSurface is an OS-level media-session facility.
type ControlSurface interface {
	SetMetadata(Metadata) error
	SetPlaybackState(PlaybackState) error
	// Commands returns the inbound command stream. A surface that never
	// produces commands may return a channel that is never written.
	Commands() <-chan Command
	Close() error
}
