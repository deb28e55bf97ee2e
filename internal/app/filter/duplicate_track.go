package filter

import (
	"context"
	"regexp"
	"strings"

	"github.com/osa030/abetube/internal/domain/track"
)

// DuplicateTrackFilter drops results already present earlier in the same result set.
// Detects:
// - Exact track ID matches
// - Re-uploads of the same song on the same channel (normalized title)
// Excludes:
// - Covers (same title on a different channel)
type DuplicateTrackFilter struct{}

// NewDuplicateTrackFilter creates a new duplicate track filter.
func NewDuplicateTrackFilter() *DuplicateTrackFilter {
	return &DuplicateTrackFilter{}
}

// Name returns the filter name.
func (f *DuplicateTrackFilter) Name() string {
	return "duplicate_track_filter"
}

// Description returns the filter description.
func (f *DuplicateTrackFilter) Description() string {
	return "Drops repeated results (same ID, or same song re-uploaded on the same channel)"
}

// ReturnCodes returns possible return codes.
func (f *DuplicateTrackFilter) ReturnCodes() []string {
	return []string{"duplicate_track"}
}

// ValidateConfig validates the filter configuration.
func (f *DuplicateTrackFilter) ValidateConfig(settings map[string]any) error {
	// No configuration needed
	return nil
}

// Check checks if the track duplicates an accepted one.
func (f *DuplicateTrackFilter) Check(ctx context.Context, t track.Track, accepted []track.Track) Result {
	title := normalizeTitle(t.Title)
	for _, prev := range accepted {
		if prev.ID == t.ID {
			return Reject("duplicate_track")
		}
		if title != "" && strings.EqualFold(prev.Channel, t.Channel) && normalizeTitle(prev.Title) == title {
			return Reject("duplicate_track")
		}
	}
	return Accept()
}

var (
	versionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\s*\(.*?remaster.*?\)`),             // "(Remastered 2023)"
		regexp.MustCompile(`\s*\[.*?remaster.*?\]`),             // "[Remastered]"
		regexp.MustCompile(`\s*-?\s*\d{4}\s+remaster(ed)?`),     // "- 2011 Remaster"
		regexp.MustCompile(`\s*-?\s*remaster(ed)?(\s+version)?`), // "- Remastered"
		regexp.MustCompile(`\s*[(\[]\s*official\s+(music\s+)?(video|audio)\s*[)\]]`),
		regexp.MustCompile(`\s*[(\[]\s*(hd|4k|hq)\s*[)\]]`),
		regexp.MustCompile(`\s*[(\[]\s*lyrics?(\s+video)?\s*[)\]]`),
		regexp.MustCompile(`\s*\(.*?version\)`), // "(Single Version)"
		regexp.MustCompile(`\s*\(.*?edit\)`),    // "(Radio Edit)"
	}
	spacePattern = regexp.MustCompile(`\s+`)
)

// normalizeTitle removes upload and version decorations from a title.
func normalizeTitle(title string) string {
	normalized := strings.ToLower(title)
	for _, pattern := range versionPatterns {
		normalized = pattern.ReplaceAllString(normalized, "")
	}
	normalized = spacePattern.ReplaceAllString(strings.TrimSpace(normalized), " ")
	return strings.TrimRight(normalized, " -")
}

func init() {
	Register("duplicate_track_filter", func() Filter {
		return NewDuplicateTrackFilter()
	})
}
