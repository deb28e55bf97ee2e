package main

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/abetube/internal/app/catalog"
	"github.com/osa030/abetube/internal/app/engine"
	"github.com/osa030/abetube/internal/app/filter"
	"github.com/osa030/abetube/internal/app/playback"
	"github.com/osa030/abetube/internal/app/player"
	"github.com/osa030/abetube/internal/app/resolver"
	"github.com/osa030/abetube/internal/app/transport"
	"github.com/osa030/abetube/internal/infra/backend"
	"github.com/osa030/abetube/internal/infra/config"
	"github.com/osa030/abetube/internal/infra/mpris"
	"github.com/osa030/abetube/internal/infra/mpv"
	"github.com/osa030/abetube/internal/infra/spotify"
)

// components holds everything run() drives and tears down.
type components struct {
	player  *player.Manager
	surface transport.ControlSurface
	bridge  *transport.Bridge
}

func newComponents(ctx context.Context, cfg *config.Config) (*components, error) {
	var (
		catalogClients  catalog.Clients
		resolverClients resolver.Clients
	)

	if cfg.UsesProvider(config.ProviderBackend) {
		client, err := backend.New(backend.ConfigFrom(cfg.Backend))
		if err != nil {
			return nil, errors.Wrap(err, "failed to create backend client")
		}
		catalogClients.Backend = client
		resolverClients.Backend = client
	}

	if cfg.UsesProvider(config.ProviderSpotify, config.ProviderSpotifyPlaylist) {
		client, err := spotify.New(ctx, spotify.Config{
			ClientID:     cfg.Spotify.ClientID,
			ClientSecret: cfg.Spotify.ClientSecret,
			Market:       cfg.Spotify.Market,
		})
		if err != nil {
			return nil, errors.Wrap(err, "failed to create Spotify client")
		}
		catalogClients.Spotify = client
		resolverClients.Spotify = client
	}

	chain, err := catalog.NewProviderChainFromConfig(cfg, catalogClients)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create catalog")
	}

	filters, err := filter.NewChainFromConfig(cfg.Filters)
	if err != nil {
		return nil, errors.Wrap(err, "invalid filter config")
	}

	router, err := resolver.NewRouterFromConfig(cfg, resolverClients)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create resolver")
	}

	primary, err := newEngine(ctx, engine.RolePrimary, cfg.Engines.Primary)
	if err != nil {
		return nil, err
	}
	secondary, err := newEngine(ctx, engine.RoleSecondary, cfg.Engines.Secondary)
	if err != nil {
		_ = primary.Close()
		return nil, err
	}

	controller := playback.NewController(playback.Config{
		ResolveTimeout: cfg.Playback.ResolveTimeout(),
		PlayTimeout:    cfg.Playback.PlayTimeout(),
		FailureMessage: player.FailureMessages(cfg),
	}, router, primary, secondary)

	c := &components{
		player: player.NewManager(cfg, chain, filters, controller),
	}

	surface, err := newControlSurface(cfg.Transport)
	if err != nil {
		c.player.Close()
		return nil, err
	}
	if surface != nil {
		c.surface = surface
		c.bridge = transport.NewBridge(surface, controller, c.player)
	}

	zlog.Info().Msgf("Components ready: providers=%d filters=%d routes=%v transport=%s",
		chain.Len(), filters.Len(), router.Providers(), cfg.Transport.Type)
	return c, nil
}

func (c *components) close() {
	c.player.Close()
	if c.surface != nil {
		if err := c.surface.Close(); err != nil {
			zlog.Warn().Err(err).Msg("Failed to close control surface")
		}
	}
}

func newEngine(ctx context.Context, role engine.Role, cfg config.EngineConfig) (*engine.Engine, error) {
	switch cfg.Type {
	case config.EngineHeadless:
		zlog.Info().Msgf("Engine %s: headless", role)
		return engine.New(role, engine.NewNullSurface()), nil
	default:
		surface, err := mpv.Start(ctx, mpv.Config{
			Name:      role.String(),
			Binary:    cfg.Binary,
			Socket:    cfg.Socket,
			ExtraArgs: cfg.ExtraArgs,
			NoVideo:   role == engine.RoleSecondary,
		})
		if err != nil {
			return nil, errors.Wrapf(err, "failed to start %s engine", role)
		}
		return engine.New(role, surface), nil
	}
}

func newControlSurface(cfg config.TransportConfig) (transport.ControlSurface, error) {
	switch cfg.Type {
	case config.TransportNone:
		return nil, nil
	case config.TransportMPRIS:
		s, err := mpris.New(cfg.Identity)
		if err != nil {
			return nil, errors.Wrap(err, "failed to register MPRIS player")
		}
		return s, nil
	default:
		return transport.NewLogSurface(), nil
	}
}
