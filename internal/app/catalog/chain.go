package catalog

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/abetube/internal/domain/track"
)

// ProviderWithMetadata wraps a provider with its metadata.
type ProviderWithMetadata struct {
	Provider    Provider
	DisplayName string
}

// Result is the outcome of a chain search.
type Result struct {
	Tracks      []track.Track
	DisplayName string // Provider that answered, empty when nothing matched
}

// ProviderChain tries providers in order and returns the first non-empty result.
type ProviderChain struct {
	providers []ProviderWithMetadata
}

// NewProviderChain creates a new provider chain.
func NewProviderChain(providers []ProviderWithMetadata) *ProviderChain {
	return &ProviderChain{
		providers: providers,
	}
}

// Search queries providers in order. Tracks are stamped with the provider name.
// A provider error moves on to the next provider; when every provider failed the
// error wraps ErrCatalog. No provider matching anything is not an error.
func (c *ProviderChain) Search(ctx context.Context, query string, limit int) (Result, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	var errs error
	answered := false
	for i, pm := range c.providers {
		if err := ctx.Err(); err != nil {
			return Result{}, errors.Wrap(err, "search cancelled")
		}

		zlog.Debug().Msgf("catalog: trying provider: index=%d total=%d name=%s provider_type=%s",
			i+1, len(c.providers), pm.DisplayName, pm.Provider.Name())

		tracks, err := pm.Provider.Search(ctx, query, limit)
		if err != nil {
			zlog.Warn().Msgf("catalog: provider failed, trying next: provider=%s error=%v", pm.DisplayName, err)
			errs = errors.CombineErrors(errs, errors.Wrapf(err, "provider %s", pm.DisplayName))
			continue
		}
		answered = true

		if len(tracks) == 0 {
			zlog.Debug().Msgf("catalog: provider returned no results: provider=%s", pm.DisplayName)
			continue
		}

		if len(tracks) > limit {
			tracks = tracks[:limit]
		}
		stamped := make([]track.Track, len(tracks))
		for j, t := range tracks {
			stamped[j] = t.WithProvider(pm.Provider.Name())
		}

		zlog.Info().Msgf("catalog: provider returned results: provider=%s count=%d", pm.DisplayName, len(stamped))
		return Result{Tracks: stamped, DisplayName: pm.DisplayName}, nil
	}

	if !answered && errs != nil {
		return Result{}, errors.Wrapf(ErrCatalog, "all providers failed: %v", errs)
	}
	return Result{}, nil
}

// Len returns the number of providers.
func (c *ProviderChain) Len() int {
	return len(c.providers)
}

// Name returns the chain name.
func (c *ProviderChain) Name() string {
	return "provider_chain"
}
