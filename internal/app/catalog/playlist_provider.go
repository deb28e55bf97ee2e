package catalog

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/abetube/internal/domain/track"
)

type PlaylistProviderConfig struct {
	PlaylistURL    string `yaml:"playlist_url" mapstructure:"playlist_url" validate:"required"`
	RefreshMinutes int    `yaml:"refresh_minutes" mapstructure:"refresh_minutes" default:"30" validate:"gte=1"`
}

// PlaylistProvider searches within a configured playlist.
// It keeps the playlist in memory and refetches it after RefreshMinutes.
type PlaylistProvider struct {
	name   string
	source PlaylistSource
	config *PlaylistProviderConfig

	mu        sync.Mutex
	cache     []track.Track
	fetchedAt time.Time
	now       func() time.Time
}

// NewPlaylistProvider creates a new PlaylistProvider.
func NewPlaylistProvider(name string, source PlaylistSource, settings map[string]any) (*PlaylistProvider, error) {
	if source == nil {
		return nil, errors.Newf("%s provider: client is not configured", name)
	}

	var config PlaylistProviderConfig
	if err := mapstructure.Decode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	zlog.Debug().Msgf("catalog: playlist provider config: %+v", config)
	if err := validator.New().Struct(config); err != nil {
		zlog.Error().Msgf("catalog: playlist provider validation failed: %v", err)
		return nil, errors.Wrap(err, "validation failed")
	}

	return &PlaylistProvider{
		name:   name,
		source: source,
		config: &config,
		now:    time.Now,
	}, nil
}

// Search returns playlist tracks whose title or channel contains every word of query.
func (p *PlaylistProvider) Search(ctx context.Context, query string, limit int) ([]track.Track, error) {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 || limit <= 0 {
		return []track.Track{}, nil
	}

	tracks, err := p.tracks(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]track.Track, 0, limit)
	for _, t := range tracks {
		if matches(t, terms) {
			result = append(result, t)
			if len(result) == limit {
				break
			}
		}
	}
	return result, nil
}

// Name returns the provider name.
func (p *PlaylistProvider) Name() string {
	return p.name
}

func (p *PlaylistProvider) tracks(ctx context.Context) ([]track.Track, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ttl := time.Duration(p.config.RefreshMinutes) * time.Minute
	if p.cache != nil && p.now().Sub(p.fetchedAt) < ttl {
		return p.cache, nil
	}

	fetched, err := p.source.GetPlaylistTracks(ctx, p.config.PlaylistURL)
	if err != nil {
		if p.cache != nil {
			zlog.Warn().Msgf("catalog: playlist refresh failed, serving cached tracks: error=%v", err)
			return p.cache, nil
		}
		return nil, errors.Wrap(err, "failed to get playlist tracks")
	}

	zlog.Debug().Msgf("catalog: playlist cached: tracks=%d", len(fetched))
	p.cache = fetched
	p.fetchedAt = p.now()
	return p.cache, nil
}

func matches(t track.Track, terms []string) bool {
	haystack := strings.ToLower(t.Title + " " + t.Channel)
	for _, term := range terms {
		if !strings.Contains(haystack, term) {
			return false
		}
	}
	return true
}
