package connect

import (
	"context"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"

	playerv1 "github.com/osa030/abetube/internal/api/playerv1"
	"github.com/osa030/abetube/internal/api/playerv1/playerv1connect"
	"github.com/osa030/abetube/internal/app/engine"
	"github.com/osa030/abetube/internal/app/notification"
	"github.com/osa030/abetube/internal/app/playback"
	"github.com/osa030/abetube/internal/app/player"
	"github.com/osa030/abetube/internal/app/resolver"
	"github.com/osa030/abetube/internal/domain/track"
)

// Player is the subset of player.Manager the service needs.
type Player interface {
	Search(ctx context.Context, query string) (player.SearchResult, error)
	Activate(index int) (bool, error)
	TogglePlayPause() (bool, error)
	Next() (bool, error)
	Previous() (bool, error)
	SeekTo(fraction float64) (bool, error)
	Status() player.Status
	LastQuery() string
	Subscribe(stream notification.Stream[playback.Event]) string
	Unsubscribe(subscriptionID string)
	Done() <-chan struct{}
}

// PlayerService implements the PlayerService RPC.
type PlayerService struct {
	player Player
}

// NewPlayerService creates a new PlayerService.
func NewPlayerService(p Player) *PlayerService {
	return &PlayerService{player: p}
}

// Ensure PlayerService implements the interface.
var _ playerv1connect.PlayerServiceHandler = (*PlayerService)(nil)

// Search replaces the playlist with the results for the query.
func (s *PlayerService) Search(
	ctx context.Context,
	req *connect.Request[playerv1.SearchRequest],
) (*connect.Response[playerv1.SearchResponse], error) {
	res, err := s.player.Search(ctx, req.Msg.Query)
	if err != nil {
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&playerv1.SearchResponse{
		Query:        res.Query,
		Provider:     res.Provider,
		Message:      res.Message,
		Tracks:       tracksFrom(res.Tracks),
		TotalSeconds: res.TotalDuration.Seconds(),
	}), nil
}

// Activate starts the track at the requested index.
func (s *PlayerService) Activate(
	ctx context.Context,
	req *connect.Request[playerv1.ActivateRequest],
) (*connect.Response[playerv1.CommandResponse], error) {
	return commandResponse(s.player.Activate(req.Msg.Index))
}

// TogglePlayPause pauses or resumes playback.
func (s *PlayerService) TogglePlayPause(
	ctx context.Context,
	req *connect.Request[playerv1.CommandRequest],
) (*connect.Response[playerv1.CommandResponse], error) {
	return commandResponse(s.player.TogglePlayPause())
}

// Next activates the following track.
func (s *PlayerService) Next(
	ctx context.Context,
	req *connect.Request[playerv1.CommandRequest],
) (*connect.Response[playerv1.CommandResponse], error) {
	return commandResponse(s.player.Next())
}

// Previous activates the preceding track.
func (s *PlayerService) Previous(
	ctx context.Context,
	req *connect.Request[playerv1.CommandRequest],
) (*connect.Response[playerv1.CommandResponse], error) {
	return commandResponse(s.player.Previous())
}

// SeekTo moves to a fraction of the current track.
func (s *PlayerService) SeekTo(
	ctx context.Context,
	req *connect.Request[playerv1.SeekToRequest],
) (*connect.Response[playerv1.CommandResponse], error) {
	return commandResponse(s.player.SeekTo(req.Msg.Fraction))
}

// GetStatus returns the current status.
func (s *PlayerService) GetStatus(
	ctx context.Context,
	req *connect.Request[playerv1.GetStatusRequest],
) (*connect.Response[playerv1.Status], error) {
	return connect.NewResponse(s.status()), nil
}

// WatchStatus sends a snapshot followed by every playback event.
// The subscription is taken before the snapshot so that no event falls
// between the two; events queued meanwhile are held until the snapshot is out.
func (s *PlayerService) WatchStatus(
	ctx context.Context,
	req *connect.Request[playerv1.WatchStatusRequest],
	stream *connect.ServerStream[playerv1.StatusUpdate],
) error {
	updates := newUpdateStreamAdapter(stream)
	subscriptionID := s.player.Subscribe(updates)
	defer s.player.Unsubscribe(subscriptionID)

	status := s.status()
	err := stream.Send(&playerv1.StatusUpdate{
		Type:     playerv1.UpdateSnapshot,
		Status:   status,
		State:    status.State,
		Index:    status.Index,
		Track:    status.Track,
		Position: status.Position,
		Duration: status.Duration,
		Message:  status.Message,
	})
	updates.open(err)
	if err != nil {
		return err
	}

	select {
	case <-ctx.Done():
	case <-s.player.Done():
	}
	return nil
}

func (s *PlayerService) status() *playerv1.Status {
	st := s.player.Status()
	return &playerv1.Status{
		State:        st.State.String(),
		Index:        st.Index,
		Track:        trackFrom(st.Track),
		Tracks:       tracksFrom(st.Tracks),
		Query:        s.player.LastQuery(),
		Position:     st.Position,
		Duration:     st.Duration,
		Generation:   st.Generation,
		Engine:       st.Engine.String(),
		FallbackUsed: st.FallbackUsed,
		Message:      st.Message,
	}
}

// updateStreamAdapter adapts connect.ServerStream to notification.Stream.
// Send blocks until open is called.
type updateStreamAdapter struct {
	stream *connect.ServerStream[playerv1.StatusUpdate]
	ready  chan struct{}
	err    error
}

func newUpdateStreamAdapter(stream *connect.ServerStream[playerv1.StatusUpdate]) *updateStreamAdapter {
	return &updateStreamAdapter{stream: stream, ready: make(chan struct{})}
}

// open releases held notifications. A non-nil err makes every Send fail with it.
func (a *updateStreamAdapter) open(err error) {
	a.err = err
	close(a.ready)
}

func (a *updateStreamAdapter) Send(n notification.Notification[playback.Event]) error {
	<-a.ready
	if a.err != nil {
		return a.err
	}
	return a.stream.Send(updateFrom(n))
}

func updateFrom(n notification.Notification[playback.Event]) *playerv1.StatusUpdate {
	ev := n.Payload
	u := &playerv1.StatusUpdate{
		SequenceNo: n.SequenceNo,
		Type:       ev.Type.String(),
		State:      ev.State.String(),
		Index:      ev.Index,
		Track:      trackFrom(ev.Track),
		Position:   ev.Position,
		Duration:   ev.Duration,
		Message:    ev.Message,
	}
	if ev.Failure != playback.FailureNone {
		u.Failure = ev.Failure.String()
	}
	return u
}

func commandResponse(changed bool, err error) (*connect.Response[playerv1.CommandResponse], error) {
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&playerv1.CommandResponse{Changed: changed}), nil
}

func toConnectError(err error) error {
	switch {
	case errors.Is(err, player.ErrEmptyQuery):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, player.ErrClosed):
		return connect.NewError(connect.CodeUnavailable, err)
	case errors.Is(err, resolver.ErrResolve), errors.Is(err, engine.ErrPlayback):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}

func trackFrom(t *track.Track) *playerv1.Track {
	if t == nil {
		return nil
	}
	out := convertTrack(*t)
	return &out
}

func tracksFrom(tracks []track.Track) []playerv1.Track {
	out := make([]playerv1.Track, len(tracks))
	for i, t := range tracks {
		out[i] = convertTrack(t)
	}
	return out
}

func convertTrack(t track.Track) playerv1.Track {
	return playerv1.Track{
		ID:              t.ID,
		Title:           t.Title,
		Channel:         t.Channel,
		ThumbnailURL:    t.ThumbnailURL,
		DurationSeconds: t.Duration.Seconds(),
		Provider:        t.Provider,
	}
}
