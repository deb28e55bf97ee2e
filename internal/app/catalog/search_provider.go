package catalog

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/abetube/internal/domain/track"
)

// SearchProviderConfig holds settings shared by search-backed providers.
type SearchProviderConfig struct {
	Limit int `yaml:"limit" mapstructure:"limit" default:"10" validate:"gte=1,lte=50"`
}

// SearchProvider exposes a remote search client as a catalog provider.
type SearchProvider struct {
	name     string
	searcher Searcher
	config   *SearchProviderConfig
}

// NewSearchProvider creates a new SearchProvider.
func NewSearchProvider(name string, searcher Searcher, settings map[string]any) (*SearchProvider, error) {
	if searcher == nil {
		return nil, errors.Newf("%s provider: client is not configured", name)
	}

	var config SearchProviderConfig
	if err := mapstructure.Decode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	zlog.Debug().Msgf("catalog: %s provider config: %+v", name, config)
	if err := validator.New().Struct(config); err != nil {
		zlog.Error().Msgf("catalog: %s provider validation failed: %v", name, err)
		return nil, errors.Wrap(err, "validation failed")
	}

	return &SearchProvider{
		name:     name,
		searcher: searcher,
		config:   &config,
	}, nil
}

// Search forwards to the client, capping the limit at the configured maximum.
func (p *SearchProvider) Search(ctx context.Context, query string, limit int) ([]track.Track, error) {
	if limit <= 0 || limit > p.config.Limit {
		limit = p.config.Limit
	}
	return p.searcher.Search(ctx, query, limit)
}

// Name returns the provider name.
func (p *SearchProvider) Name() string {
	return p.name
}
