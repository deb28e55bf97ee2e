// Package backend provides the client for the search and stream backend.
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/hashicorp/go-retryablehttp"
	zlog "github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/osa030/abetube/internal/domain/source"
	"github.com/osa030/abetube/internal/domain/track"
	"github.com/osa030/abetube/internal/infra/config"
)

// ProviderName is the provider name tracks from this backend carry.
const ProviderName = config.ProviderBackend

var (
	// ErrBackend matches every *StatusError.
	ErrBackend = errors.New("backend error")
	// ErrInvalidID is returned for ids the backend would reject.
	ErrInvalidID = errors.New("invalid video id")
)

var videoIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{11}$`)

// ValidID reports whether id is a well-formed video id.
func ValidID(id string) bool {
	return videoIDPattern.MatchString(id)
}

// StatusError is a non-2xx backend answer.
type StatusError struct {
	StatusCode int
	Message    string
	Details    string
}

func (e *StatusError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("backend returned %d: %s (%s)", e.StatusCode, e.Message, e.Details)
	}
	return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Message)
}

// Is makes every StatusError match ErrBackend.
func (e *StatusError) Is(target error) bool {
	return target == ErrBackend
}

// Config holds client configuration.
type Config struct {
	BaseURL         string
	Timeout         time.Duration
	MaxRetries      int
	RatePerSecond   float64
	Burst           int
	BreakerFailures int
	BreakerTimeout  time.Duration
}

// ConfigFrom converts the backend section of the application config.
func ConfigFrom(cfg config.BackendConfig) Config {
	return Config{
		BaseURL:         cfg.BaseURL,
		Timeout:         cfg.Timeout(),
		MaxRetries:      cfg.MaxRetries,
		RatePerSecond:   cfg.RatePerSecond,
		Burst:           cfg.Burst,
		BreakerFailures: cfg.BreakerFailures,
		BreakerTimeout:  time.Duration(cfg.BreakerTimeoutSec) * time.Second,
	}
}

// Client talks to the backend over HTTP.
// Requests are rate limited, retried on transient failures and guarded by a
// circuit breaker that only counts server-side failures.
type Client struct {
	baseURL *url.URL
	http    *retryablehttp.Client
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

// New creates a backend client.
func New(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, errors.Wrap(err, "invalid backend base url")
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, errors.Newf("invalid backend base url: %q", cfg.BaseURL)
	}

	client := retryablehttp.NewClient()
	client.RetryMax = cfg.MaxRetries
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.HTTPClient.Timeout = cfg.Timeout
	client.Logger = leveledLogger{}
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler

	failures := cfg.BreakerFailures
	if failures <= 0 {
		failures = 5
	}
	settings := gobreaker.Settings{
		Name:        "backend",
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(failures)
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !isServerFailure(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			zlog.Warn().Msgf("backend: circuit breaker %s: %s -> %s", name, from, to)
		},
	}

	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		baseURL: base,
		http:    client,
		breaker: gobreaker.NewCircuitBreaker(settings),
		limiter: rate.NewLimiter(limit, burst),
	}, nil
}

type searchResponse struct {
	Results []searchEntry `json:"results"`
}

type searchEntry struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Duration  *float64 `json:"duration"`
	Thumbnail string   `json:"thumbnail"`
	Channel   string   `json:"channel"`
}

type streamResponse struct {
	URL      string `json:"url"`
	AudioURL string `json:"audio_url"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// Search returns up to limit tracks matching query.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]track.Track, error) {
	var resp searchResponse
	if err := c.get(ctx, "/search", url.Values{"q": {query}}, &resp); err != nil {
		return nil, errors.Wrapf(err, "search %q", query)
	}

	tracks := make([]track.Track, 0, len(resp.Results))
	for _, e := range resp.Results {
		if e.ID == "" {
			continue
		}
		var duration time.Duration
		if e.Duration != nil && *e.Duration > 0 {
			duration = time.Duration(*e.Duration * float64(time.Second))
		}
		tracks = append(tracks, track.New(e.ID, e.Title, e.Channel, e.Thumbnail, duration).WithProvider(ProviderName))
		if limit > 0 && len(tracks) == limit {
			break
		}
	}
	zlog.Debug().Msgf("backend: search query=%q results=%d", query, len(tracks))
	return tracks, nil
}

// Resolve returns the stream URLs of t.
// The combined stream is the primary source and the audio-only stream the fallback.
func (c *Client) Resolve(ctx context.Context, t track.Track) (source.Resolved, error) {
	if !ValidID(t.ID) {
		return source.Resolved{}, errors.Wrapf(ErrInvalidID, "%q", t.ID)
	}

	var resp streamResponse
	if err := c.get(ctx, "/stream/"+url.PathEscape(t.ID), nil, &resp); err != nil {
		return source.Resolved{}, errors.Wrapf(err, "stream %s", t.ID)
	}
	resolved := source.Resolved{PrimaryURL: resp.URL, FallbackURL: resp.AudioURL}
	if resolved.PrimaryURL == "" {
		resolved.PrimaryURL = resp.AudioURL
	}
	zlog.Debug().Msgf("backend: resolved id=%s fallback=%t", t.ID, resolved.HasDistinctFallback())
	return resolved, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return errors.Wrap(err, "rate limit wait")
	}

	u := *c.baseURL
	u.Path = c.baseURL.Path + path
	u.RawQuery = query.Encode()

	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.do(ctx, u.String(), out)
	})
	return err
}

func (c *Client) do(ctx context.Context, rawURL string, out any) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return errors.Wrap(err, "failed to read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := &StatusError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var eb errorResponse
		if json.Unmarshal(body, &eb) == nil && eb.Error != "" {
			statusErr.Message = eb.Error
			statusErr.Details = eb.Details
		}
		return statusErr
	}

	var eb errorResponse
	if json.Unmarshal(body, &eb) == nil && eb.Error != "" {
		return &StatusError{StatusCode: resp.StatusCode, Message: eb.Error, Details: eb.Details}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrap(err, "failed to decode response")
	}
	return nil
}

// isServerFailure reports whether err should count against the circuit breaker.
func isServerFailure(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= 500
	}
	return !errors.Is(err, context.Canceled)
}

// leveledLogger routes retryablehttp logs to zerolog.
type leveledLogger struct{}

func (leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	zlog.Error().Fields(keysAndValues).Msg("backend: " + msg)
}

func (leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	zlog.Debug().Fields(keysAndValues).Msg("backend: " + msg)
}

func (leveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	zlog.Trace().Fields(keysAndValues).Msg("backend: " + msg)
}

func (leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	zlog.Warn().Fields(keysAndValues).Msg("backend: " + msg)
}
