// Package source provides the resolved playable source of one track activation.
package source

import "github.com/cockroachdb/errors"

// ErrNoPrimary is returned when a resolution carries no primary URL.
var ErrNoPrimary = errors.New("resolved source has no primary url")

// Resolved holds the candidate URLs for the currently selected track.
// It belongs to exactly one activation and is never reused for another track.
type Resolved struct {
	PrimaryURL  string // Combined audio/video stream
	FallbackURL string // Audio-only stream (empty when absent)
}

// Validate checks that the resolution is playable.
func (r Resolved) Validate() error {
	if r.PrimaryURL == "" {
		return ErrNoPrimary
	}
	return nil
}

// HasDistinctFallback reports whether a fallback exists that differs from the primary.
func (r Resolved) HasDistinctFallback() bool {
	return r.FallbackURL != "" && r.FallbackURL != r.PrimaryURL
}
