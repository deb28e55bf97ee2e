// Package track provides the Track domain entity.
package track

import (
	"fmt"
	"math"
	"time"
)

const (
	// UnknownTitle is used when the catalog returns an entry without a title.
	UnknownTitle = "Unknown Title"
	// UnknownChannel is used when the catalog returns neither a channel nor an uploader.
	UnknownChannel = "Unknown"
)

// Track represents one playable catalog entry.
// Tracks are immutable once received from the catalog; identity is ID.
type Track struct {
	ID           string        // Opaque catalog identifier
	Title        string        // Track title
	Channel      string        // Channel or uploader name
	ThumbnailURL string        // Thumbnail image URL
	Duration     time.Duration // Track duration (0 for live or unknown)
	Provider     string        // Catalog provider that produced the track
}

// New creates a track, applying the catalog defaults for missing fields.
func New(id, title, channel, thumbnailURL string, duration time.Duration) Track {
	if title == "" {
		title = UnknownTitle
	}
	if channel == "" {
		channel = UnknownChannel
	}
	if thumbnailURL == "" && id != "" {
		thumbnailURL = DefaultThumbnail(id)
	}
	if duration < 0 {
		duration = 0
	}
	return Track{
		ID:           id,
		Title:        title,
		Channel:      channel,
		ThumbnailURL: thumbnailURL,
		Duration:     duration,
	}
}

// WithProvider returns a copy of the track stamped with the given provider name.
func (t Track) WithProvider(provider string) Track {
	t.Provider = provider
	return t
}

// TotalDuration sums the known durations. Live tracks count as zero.
func TotalDuration(tracks []Track) time.Duration {
	var total time.Duration
	for _, t := range tracks {
		if !t.IsLive() {
			total += t.Duration
		}
	}
	return total
}

// IsLive reports whether the track has no known duration.
func (t Track) IsLive() bool {
	return t.Duration <= 0
}

// DefaultThumbnail returns the medium-quality thumbnail URL for a video id.
func DefaultThumbnail(id string) string {
	return fmt.Sprintf("https://img.youtube.com/vi/%s/mqdefault.jpg", id)
}

// FormatDuration renders seconds as m:ss.
// Zero, negative and non-finite values render as 0:00.
func FormatDuration(seconds float64) string {
	if seconds <= 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return "0:00"
	}
	total := int64(seconds)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
