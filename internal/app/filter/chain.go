package filter

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/abetube/internal/domain/track"
	"github.com/osa030/abetube/internal/infra/config"
)

// Chain executes filters in sequence.
type Chain struct {
	filters []Filter
}

// NewChain creates a new filter chain.
func NewChain() *Chain {
	return &Chain{
		filters: make([]Filter, 0),
	}
}

// NewChainFromConfig builds a chain of every enabled registered filter,
// in name order.
func NewChainFromConfig(filters map[string]config.FilterConfig) (*Chain, error) {
	chain := NewChain()
	for _, name := range RegisteredNames() {
		fc, ok := filters[name]
		if !ok || !fc.Enabled {
			continue
		}
		f := registry[name]()
		if err := f.ValidateConfig(fc.Settings); err != nil {
			return nil, errors.Wrapf(err, "invalid settings for filter %s", name)
		}
		chain.Add(f)
		zlog.Info().Msgf("filter: enabled %s", name)
	}
	for name := range filters {
		if _, ok := registry[name]; !ok {
			return nil, errors.Newf("unknown filter: %s", name)
		}
	}
	return chain, nil
}

// Add adds a filter to the chain.
func (c *Chain) Add(f Filter) {
	c.filters = append(c.filters, f)
}

// Check runs all filters in sequence against t.
// Returns immediately if any filter rejects the track.
func (c *Chain) Check(ctx context.Context, t track.Track, accepted []track.Track) Result {
	for _, f := range c.filters {
		result := f.Check(ctx, t, accepted)
		if !result.Accepted {
			return result
		}
	}
	return Accept()
}

// Apply returns the tracks that pass every filter, keeping their order.
func (c *Chain) Apply(ctx context.Context, tracks []track.Track) []track.Track {
	accepted := make([]track.Track, 0, len(tracks))
	for _, t := range tracks {
		result := c.Check(ctx, t, accepted)
		if !result.Accepted {
			zlog.Debug().Msgf("filter: dropped track=%s code=%s", t.ID, result.Code)
			continue
		}
		accepted = append(accepted, t)
	}
	return accepted
}

// Filters returns all filters in the chain.
func (c *Chain) Filters() []Filter {
	return c.filters
}

// Len returns the number of filters in the chain.
func (c *Chain) Len() int {
	return len(c.filters)
}
