// Package catalog provides track search across the configured catalog providers.
package catalog

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/osa030/abetube/internal/domain/track"
)

// DefaultLimit is the number of results requested when the caller does not say.
const DefaultLimit = 10

// ErrCatalog marks a search that no provider could answer.
var ErrCatalog = errors.New("catalog unavailable")

// Provider is the interface for catalog providers.
type Provider interface {
	// Search returns at most limit tracks matching query.
	Search(ctx context.Context, query string, limit int) ([]track.Track, error)

	// Name returns the provider type (used to route resolution).
	Name() string
}

// Searcher is a remote search client.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]track.Track, error)
}

// PlaylistSource lists the tracks of a remote playlist.
type PlaylistSource interface {
	GetPlaylistTracks(ctx context.Context, playlistURL string) ([]track.Track, error)
}

// SpotifyClient defines the Spotify operations needed by catalog providers.
type SpotifyClient interface {
	Searcher
	PlaylistSource
}
