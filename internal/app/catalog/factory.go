package catalog

import (
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/abetube/internal/infra/config"
)

// Clients holds the remote clients providers can be built on.
// A nil client makes providers of its type unavailable.
type Clients struct {
	Backend Searcher
	Spotify SpotifyClient
}

// NewProviderChainFromConfig creates a provider chain from configuration.
func NewProviderChainFromConfig(cfg *config.Config, clients Clients) (*ProviderChain, error) {
	if len(cfg.Catalog.Providers) == 0 {
		return nil, errors.New("no catalog providers configured")
	}

	var providers []ProviderWithMetadata

	for i, pcfg := range cfg.Catalog.Providers {
		var provider Provider
		var err error
		zlog.Debug().Msgf("catalog: creating provider: index=%d type=%s settings=%+v", i+1, pcfg.Type, pcfg.Settings)
		switch pcfg.Type {
		case config.ProviderBackend:
			if clients.Backend == nil {
				return nil, errors.Newf("provider %d (%s): backend client is not configured", i, pcfg.Type)
			}
			provider, err = NewSearchProvider(pcfg.Type, clients.Backend, pcfg.Settings)

		case config.ProviderSpotify:
			if clients.Spotify == nil {
				return nil, errors.Newf("provider %d (%s): spotify client is not configured", i, pcfg.Type)
			}
			provider, err = NewSearchProvider(pcfg.Type, clients.Spotify, pcfg.Settings)

		case config.ProviderSpotifyPlaylist:
			if clients.Spotify == nil {
				return nil, errors.Newf("provider %d (%s): spotify client is not configured", i, pcfg.Type)
			}
			provider, err = NewPlaylistProvider(pcfg.Type, clients.Spotify, pcfg.Settings)

		default:
			return nil, errors.Newf("unsupported provider type: %s (provider index %d)", pcfg.Type, i)
		}

		if err != nil {
			return nil, errors.Wrapf(err, "failed to create provider (index %d, type %s)", i, pcfg.Type)
		}

		providers = append(providers, ProviderWithMetadata{
			Provider:    provider,
			DisplayName: pcfg.DisplayName,
		})

		zlog.Info().Msgf("catalog: registered provider: index=%d type=%s display_name=%s", i+1, pcfg.Type, pcfg.DisplayName)
	}

	return NewProviderChain(providers), nil
}
