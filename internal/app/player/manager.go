// Package player provides the player manager, the one playback authority
// shared by every front end.
package player

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/abetube/internal/app/catalog"
	"github.com/osa030/abetube/internal/app/notification"
	"github.com/osa030/abetube/internal/app/playback"
	"github.com/osa030/abetube/internal/domain/track"
	"github.com/osa030/abetube/internal/infra/config"
)

var (
	ErrEmptyQuery = errors.New("empty search query")
	ErrClosed     = errors.New("player closed")
)

// Catalog searches for tracks.
type Catalog interface {
	Search(ctx context.Context, query string, limit int) (catalog.Result, error)
}

// Filter drops unwanted search results.
type Filter interface {
	Apply(ctx context.Context, tracks []track.Track) []track.Track
}

// SearchResult is the outcome of a search.
type SearchResult struct {
	Query    string
	Tracks   []track.Track
	Provider string // Display name of the provider that answered
	Message  string // User-facing note when there is nothing to show

	TotalDuration time.Duration // Sum of the known track durations
}

// Status is the current player status.
type Status struct {
	playback.Snapshot
}

// Manager owns the controller and fans its events out to subscribers.
type Manager struct {
	mu sync.RWMutex

	// Configuration
	config *config.Config

	// Components
	catalog      Catalog
	filterChain  Filter
	playback     *playback.Controller
	notification *notification.Manager[playback.Event]

	lastQuery string

	done      chan struct{}
	closeOnce sync.Once
}

// NewManager creates a player manager and starts its event loop.
func NewManager(cfg *config.Config, cat Catalog, filters Filter, controller *playback.Controller) *Manager {
	m := &Manager{
		config:       cfg,
		catalog:      cat,
		filterChain:  filters,
		playback:     controller,
		notification: notification.NewManager[playback.Event](),
		done:         make(chan struct{}),
	}
	go m.playbackLoop()
	return m
}

// Search queries the catalog and replaces the playlist with the filtered results.
// A catalog failure leaves the playlist untouched and is reported through the
// result message, not as an error.
func (m *Manager) Search(ctx context.Context, query string) (SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return SearchResult{Message: m.config.GetMessage("no_query")}, ErrEmptyQuery
	}
	if m.isClosed() {
		return SearchResult{Query: query}, ErrClosed
	}

	res, err := m.catalog.Search(ctx, query, 0)
	if err != nil {
		if errors.Is(err, catalog.ErrCatalog) {
			zlog.Warn().Msgf("player: search failed: query=%q error=%v", query, err)
			return SearchResult{Query: query, Message: m.config.GetMessage("search_failed")}, nil
		}
		return SearchResult{Query: query}, errors.Wrap(err, "search")
	}

	tracks := res.Tracks
	if m.filterChain != nil {
		tracks = m.filterChain.Apply(ctx, tracks)
	}

	m.mu.Lock()
	m.lastQuery = query
	m.mu.Unlock()
	m.playback.LoadPlaylist(tracks)

	zlog.Info().Msgf("player: search: query=%q provider=%s results=%d kept=%d",
		query, res.DisplayName, len(res.Tracks), len(tracks))

	result := SearchResult{
		Query:         query,
		Tracks:        tracks,
		Provider:      res.DisplayName,
		TotalDuration: track.TotalDuration(tracks),
	}
	if len(tracks) == 0 {
		result.Message = m.config.GetMessage("no_results")
	}
	return result, nil
}

// Activate starts the track at index. It reports whether anything changed.
func (m *Manager) Activate(index int) (bool, error) {
	return m.command("activate", m.playback.Activate(index))
}

// TogglePlayPause pauses or resumes playback.
func (m *Manager) TogglePlayPause() (bool, error) {
	return m.command("toggle", m.playback.TogglePlayPause())
}

// Play resumes playback.
func (m *Manager) Play() (bool, error) {
	return m.command("play", m.playback.Play())
}

// Pause pauses playback.
func (m *Manager) Pause() (bool, error) {
	return m.command("pause", m.playback.Pause())
}

// Next activates the following track.
func (m *Manager) Next() (bool, error) {
	return m.command("next", m.playback.Next())
}

// Previous activates the preceding track.
func (m *Manager) Previous() (bool, error) {
	return m.command("previous", m.playback.Previous())
}

// SeekTo moves to fraction of the current track.
func (m *Manager) SeekTo(fraction float64) (bool, error) {
	return m.command("seek", m.playback.SeekTo(fraction))
}

// command turns requests the controller ignored into a plain false.
func (m *Manager) command(name string, err error) (bool, error) {
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, playback.ErrOutOfRange),
		errors.Is(err, playback.ErrNotActive),
		errors.Is(err, playback.ErrInvalidSeek),
		errors.Is(err, playback.ErrUnknownDuration):
		zlog.Debug().Msgf("player: %s ignored: %v", name, err)
		return false, nil
	case errors.Is(err, playback.ErrClosed):
		return false, ErrClosed
	default:
		zlog.Warn().Err(err).Msgf("player: %s failed", name)
		return false, err
	}
}

// Status returns the current status. The failure message is part of the
// controller snapshot, so a failed state always carries it.
func (m *Manager) Status() Status {
	return Status{Snapshot: m.playback.Snapshot()}
}

// LastQuery returns the query behind the current playlist.
func (m *Manager) LastQuery() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastQuery
}

// Subscribe registers a stream for every subsequent event.
func (m *Manager) Subscribe(stream notification.Stream[playback.Event]) string {
	return m.notification.Subscribe(stream)
}

// Unsubscribe removes a subscription.
func (m *Manager) Unsubscribe(subscriptionID string) {
	m.notification.Unsubscribe(subscriptionID)
}

// SubscriberCount returns the number of subscribers.
func (m *Manager) SubscriberCount() int {
	return m.notification.SubscriberCount()
}

// Done is closed once the event loop has stopped.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// Close stops playback and the event loop and drops every subscription.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		m.playback.Close()
		<-m.done
		m.notification.Close()
	})
}

func (m *Manager) isClosed() bool {
	select {
	case <-m.done:
		return true
	default:
		return false
	}
}

// playbackLoop forwards controller events to subscribers until the controller closes.
func (m *Manager) playbackLoop() {
	defer close(m.done)
	for ev := range m.playback.Events() {
		m.handlePlaybackEvent(ev)
	}
}

func (m *Manager) handlePlaybackEvent(ev playback.Event) {
	switch ev.Type {
	case playback.EventFailure:
		zlog.Warn().Msgf("player: failure: kind=%s index=%d generation=%d message=%q error=%v",
			ev.Failure, ev.Index, ev.Generation, ev.Message, ev.Err)
	case playback.EventStateChanged:
		zlog.Info().Msgf("player: state changed: state=%s index=%d", ev.State, ev.Index)
	case playback.EventMetadata:
		if ev.Track != nil {
			zlog.Info().Msgf("player: now playing: index=%d title=%q channel=%q", ev.Index, ev.Track.Title, ev.Track.Channel)
		}
	}
	m.notification.Broadcast(ev)
}

// FailureMessages returns the configured user-facing text for each failure kind.
func FailureMessages(cfg *config.Config) func(playback.FailureKind) string {
	return func(kind playback.FailureKind) string {
		switch kind {
		case playback.FailureResolve:
			return cfg.GetMessage("resolve_failed")
		case playback.FailurePlayback:
			return cfg.GetMessage("playback_failed")
		default:
			return cfg.GetMessage("")
		}
	}
}
