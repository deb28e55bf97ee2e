package resolver

import (
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/abetube/internal/infra/config"
)

// Clients holds the remote clients that can resolve tracks.
type Clients struct {
	Backend Resolver
	Spotify Resolver
}

// NewRouterFromConfig registers a route for every configured catalog provider.
func NewRouterFromConfig(cfg *config.Config, clients Clients) (*Router, error) {
	router := NewRouter(cfg.Playback.ResolveTimeout())

	for i, pcfg := range cfg.Catalog.Providers {
		var res Resolver
		switch pcfg.Type {
		case config.ProviderBackend:
			res = clients.Backend
		case config.ProviderSpotify, config.ProviderSpotifyPlaylist:
			res = clients.Spotify
		default:
			return nil, errors.Newf("unsupported provider type: %s (provider index %d)", pcfg.Type, i)
		}
		if res == nil {
			return nil, errors.Newf("provider %d (%s): no resolver client configured", i, pcfg.Type)
		}
		router.Register(pcfg.Type, res)
		zlog.Debug().Msgf("resolver: registered route provider=%s", pcfg.Type)
	}

	return router, nil
}
