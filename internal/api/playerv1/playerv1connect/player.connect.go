// Package playerv1connect binds abetube.v1.PlayerService to Connect
// handlers and clients.
package playerv1connect

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	playerv1 "github.com/osa030/abetube/internal/api/playerv1"
)

// PlayerServiceName is the fully-qualified name of the PlayerService service.
const PlayerServiceName = "abetube.v1.PlayerService"

// Procedure paths.
const (
	PlayerServiceSearchProcedure          = "/abetube.v1.PlayerService/Search"
	PlayerServiceActivateProcedure        = "/abetube.v1.PlayerService/Activate"
	PlayerServiceTogglePlayPauseProcedure = "/abetube.v1.PlayerService/TogglePlayPause"
	PlayerServiceNextProcedure            = "/abetube.v1.PlayerService/Next"
	PlayerServicePreviousProcedure        = "/abetube.v1.PlayerService/Previous"
	PlayerServiceSeekToProcedure          = "/abetube.v1.PlayerService/SeekTo"
	PlayerServiceGetStatusProcedure       = "/abetube.v1.PlayerService/GetStatus"
	PlayerServiceWatchStatusProcedure     = "/abetube.v1.PlayerService/WatchStatus"
)

// PlayerServiceHandler is implemented by the server.
type PlayerServiceHandler interface {
	Search(context.Context, *connect.Request[playerv1.SearchRequest]) (*connect.Response[playerv1.SearchResponse], error)
	Activate(context.Context, *connect.Request[playerv1.ActivateRequest]) (*connect.Response[playerv1.CommandResponse], error)
	TogglePlayPause(context.Context, *connect.Request[playerv1.CommandRequest]) (*connect.Response[playerv1.CommandResponse], error)
	Next(context.Context, *connect.Request[playerv1.CommandRequest]) (*connect.Response[playerv1.CommandResponse], error)
	Previous(context.Context, *connect.Request[playerv1.CommandRequest]) (*connect.Response[playerv1.CommandResponse], error)
	SeekTo(context.Context, *connect.Request[playerv1.SeekToRequest]) (*connect.Response[playerv1.CommandResponse], error)
	GetStatus(context.Context, *connect.Request[playerv1.GetStatusRequest]) (*connect.Response[playerv1.Status], error)
	WatchStatus(context.Context, *connect.Request[playerv1.WatchStatusRequest], *connect.ServerStream[playerv1.StatusUpdate]) error
}

// NewPlayerServiceHandler returns the mount path and handler for svc.
func NewPlayerServiceHandler(svc PlayerServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(playerv1.Codec{})}, opts...)

	mux := map[string]http.Handler{
		PlayerServiceSearchProcedure:          connect.NewUnaryHandler(PlayerServiceSearchProcedure, svc.Search, opts...),
		PlayerServiceActivateProcedure:        connect.NewUnaryHandler(PlayerServiceActivateProcedure, svc.Activate, opts...),
		PlayerServiceTogglePlayPauseProcedure: connect.NewUnaryHandler(PlayerServiceTogglePlayPauseProcedure, svc.TogglePlayPause, opts...),
		PlayerServiceNextProcedure:            connect.NewUnaryHandler(PlayerServiceNextProcedure, svc.Next, opts...),
		PlayerServicePreviousProcedure:        connect.NewUnaryHandler(PlayerServicePreviousProcedure, svc.Previous, opts...),
		PlayerServiceSeekToProcedure:          connect.NewUnaryHandler(PlayerServiceSeekToProcedure, svc.SeekTo, opts...),
		PlayerServiceGetStatusProcedure:       connect.NewUnaryHandler(PlayerServiceGetStatusProcedure, svc.GetStatus, opts...),
		PlayerServiceWatchStatusProcedure:     connect.NewServerStreamHandler(PlayerServiceWatchStatusProcedure, svc.WatchStatus, opts...),
	}
	return "/" + PlayerServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h, ok := mux[r.URL.Path]; ok {
			h.ServeHTTP(w, r)
			return
		}
		http.NotFound(w, r)
	})
}

// PlayerServiceClient calls abetube.v1.PlayerService.
type PlayerServiceClient struct {
	search          *connect.Client[playerv1.SearchRequest, playerv1.SearchResponse]
	activate        *connect.Client[playerv1.ActivateRequest, playerv1.CommandResponse]
	togglePlayPause *connect.Client[playerv1.CommandRequest, playerv1.CommandResponse]
	next            *connect.Client[playerv1.CommandRequest, playerv1.CommandResponse]
	previous        *connect.Client[playerv1.CommandRequest, playerv1.CommandResponse]
	seekTo          *connect.Client[playerv1.SeekToRequest, playerv1.CommandResponse]
	getStatus       *connect.Client[playerv1.GetStatusRequest, playerv1.Status]
	watchStatus     *connect.Client[playerv1.WatchStatusRequest, playerv1.StatusUpdate]
}

// NewPlayerServiceClient creates a client for the service at baseURL.
func NewPlayerServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *PlayerServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(playerv1.Codec{})}, opts...)
	return &PlayerServiceClient{
		search:          connect.NewClient[playerv1.SearchRequest, playerv1.SearchResponse](httpClient, baseURL+PlayerServiceSearchProcedure, opts...),
		activate:        connect.NewClient[playerv1.ActivateRequest, playerv1.CommandResponse](httpClient, baseURL+PlayerServiceActivateProcedure, opts...),
		togglePlayPause: connect.NewClient[playerv1.CommandRequest, playerv1.CommandResponse](httpClient, baseURL+PlayerServiceTogglePlayPauseProcedure, opts...),
		next:            connect.NewClient[playerv1.CommandRequest, playerv1.CommandResponse](httpClient, baseURL+PlayerServiceNextProcedure, opts...),
		previous:        connect.NewClient[playerv1.CommandRequest, playerv1.CommandResponse](httpClient, baseURL+PlayerServicePreviousProcedure, opts...),
		seekTo:          connect.NewClient[playerv1.SeekToRequest, playerv1.CommandResponse](httpClient, baseURL+PlayerServiceSeekToProcedure, opts...),
		getStatus:       connect.NewClient[playerv1.GetStatusRequest, playerv1.Status](httpClient, baseURL+PlayerServiceGetStatusProcedure, opts...),
		watchStatus:     connect.NewClient[playerv1.WatchStatusRequest, playerv1.StatusUpdate](httpClient, baseURL+PlayerServiceWatchStatusProcedure, opts...),
	}
}

func (c *PlayerServiceClient) Search(ctx context.Context, req *connect.Request[playerv1.SearchRequest]) (*connect.Response[playerv1.SearchResponse], error) {
	return c.search.CallUnary(ctx, req)
}

func (c *PlayerServiceClient) Activate(ctx context.Context, req *connect.Request[playerv1.ActivateRequest]) (*connect.Response[playerv1.CommandResponse], error) {
	return c.activate.CallUnary(ctx, req)
}

func (c *PlayerServiceClient) TogglePlayPause(ctx context.Context, req *connect.Request[playerv1.CommandRequest]) (*connect.Response[playerv1.CommandResponse], error) {
	return c.togglePlayPause.CallUnary(ctx, req)
}

func (c *PlayerServiceClient) Next(ctx context.Context, req *connect.Request[playerv1.CommandRequest]) (*connect.Response[playerv1.CommandResponse], error) {
	return c.next.CallUnary(ctx, req)
}

func (c *PlayerServiceClient) Previous(ctx context.Context, req *connect.Request[playerv1.CommandRequest]) (*connect.Response[playerv1.CommandResponse], error) {
	return c.previous.CallUnary(ctx, req)
}

func (c *PlayerServiceClient) SeekTo(ctx context.Context, req *connect.Request[playerv1.SeekToRequest]) (*connect.Response[playerv1.CommandResponse], error) {
	return c.seekTo.CallUnary(ctx, req)
}

func (c *PlayerServiceClient) GetStatus(ctx context.Context, req *connect.Request[playerv1.GetStatusRequest]) (*connect.Response[playerv1.Status], error) {
	return c.getStatus.CallUnary(ctx, req)
}

func (c *PlayerServiceClient) WatchStatus(ctx context.Context, req *connect.Request[playerv1.WatchStatusRequest]) (*connect.ServerStreamForClient[playerv1.StatusUpdate], error) {
	return c.watchStatus.CallServerStream(ctx, req)
}
