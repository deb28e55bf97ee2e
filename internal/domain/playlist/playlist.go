// Package playlist provides the Playlist domain entity.
package playlist

import "github.com/osa030/abetube/internal/domain/track"

// NoSelection is the current index of a playlist with nothing selected.
const NoSelection = -1

// Playlist is an ordered sequence of tracks plus the current position.
// The current index is NoSelection or a valid index at every observable point.
type Playlist struct {
	tracks       []track.Track
	currentIndex int
}

// New creates a playlist with nothing selected.
func New(tracks []track.Track) *Playlist {
	copied := make([]track.Track, len(tracks))
	copy(copied, tracks)
	return &Playlist{
		tracks:       copied,
		currentIndex: NoSelection,
	}
}

// Len returns the number of tracks.
func (p *Playlist) Len() int {
	return len(p.tracks)
}

// Tracks returns a copy of the tracks.
func (p *Playlist) Tracks() []track.Track {
	result := make([]track.Track, len(p.tracks))
	copy(result, p.tracks)
	return result
}

// InRange reports whether index addresses a track.
func (p *Playlist) InRange(index int) bool {
	return index >= 0 && index < len(p.tracks)
}

// At returns the track at index.
func (p *Playlist) At(index int) (track.Track, bool) {
	if !p.InRange(index) {
		return track.Track{}, false
	}
	return p.tracks[index], true
}

// CurrentIndex returns the selected index or NoSelection.
func (p *Playlist) CurrentIndex() int {
	return p.currentIndex
}

// Current returns the selected track.
func (p *Playlist) Current() (track.Track, bool) {
	return p.At(p.currentIndex)
}

// Select moves the current index. Out-of-range indexes leave it unchanged.
func (p *Playlist) Select(index int) bool {
	if !p.InRange(index) {
		return false
	}
	p.currentIndex = index
	return true
}

// IsLast reports whether the selected track is the last one.
func (p *Playlist) IsLast() bool {
	return p.currentIndex != NoSelection && p.currentIndex == len(p.tracks)-1
}
