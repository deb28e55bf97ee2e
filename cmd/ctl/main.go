// Package main provides the control CLI entry point.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"

	apiconnect "github.com/osa030/abetube/internal/api/connect"
	playerv1 "github.com/osa030/abetube/internal/api/playerv1"
	"github.com/osa030/abetube/internal/api/playerv1/playerv1connect"
	"github.com/osa030/abetube/internal/domain/track"
)

const requestTimeout = 30 * time.Second

var (
	app    = kingpin.New("abetube-ctl", "abetube control client")
	server = app.Flag("server", "Server address").Default("http://localhost:8080").String()
	token  = app.Flag("token", "Control token (or set ABETUBE_CONTROL_TOKEN env)").Envar("ABETUBE_CONTROL_TOKEN").String()

	searchCmd   = app.Command("search", "Search and load the results as the playlist")
	searchQuery = searchCmd.Arg("query", "Search query").Required().Strings()

	playCmd   = app.Command("play", "Play the track at an index of the playlist")
	playIndex = playCmd.Arg("index", "Zero-based playlist index").Required().Int()

	toggleCmd   = app.Command("toggle", "Toggle play/pause")
	nextCmd     = app.Command("next", "Play the next track")
	previousCmd = app.Command("previous", "Play the previous track").Alias("prev")

	seekCmd      = app.Command("seek", "Seek within the current track")
	seekFraction = seekCmd.Arg("fraction", "Position as a fraction of the duration (0-1)").Required().Float64()

	statusCmd = app.Command("status", "Show player status")
	watchCmd  = app.Command("watch", "Stream status updates until interrupted")
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	var opts []connect.ClientOption
	if *token != "" {
		opts = append(opts, connect.WithInterceptors(apiconnect.NewClientTokenInterceptor(*token)))
	}
	client := playerv1connect.NewPlayerServiceClient(http.DefaultClient, *server, opts...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	switch command {
	case searchCmd.FullCommand():
		err = search(ctx, client, strings.Join(*searchQuery, " "))
	case playCmd.FullCommand():
		err = runCommand(ctx, "play", func(ctx context.Context) (*connect.Response[playerv1.CommandResponse], error) {
			return client.Activate(ctx, connect.NewRequest(&playerv1.ActivateRequest{Index: *playIndex}))
		})
	case toggleCmd.FullCommand():
		err = runCommand(ctx, "toggle", func(ctx context.Context) (*connect.Response[playerv1.CommandResponse], error) {
			return client.TogglePlayPause(ctx, connect.NewRequest(&playerv1.CommandRequest{}))
		})
	case nextCmd.FullCommand():
		err = runCommand(ctx, "next", func(ctx context.Context) (*connect.Response[playerv1.CommandResponse], error) {
			return client.Next(ctx, connect.NewRequest(&playerv1.CommandRequest{}))
		})
	case previousCmd.FullCommand():
		err = runCommand(ctx, "previous", func(ctx context.Context) (*connect.Response[playerv1.CommandResponse], error) {
			return client.Previous(ctx, connect.NewRequest(&playerv1.CommandRequest{}))
		})
	case seekCmd.FullCommand():
		err = runCommand(ctx, "seek", func(ctx context.Context) (*connect.Response[playerv1.CommandResponse], error) {
			return client.SeekTo(ctx, connect.NewRequest(&playerv1.SeekToRequest{Fraction: *seekFraction}))
		})
	case statusCmd.FullCommand():
		err = status(ctx, client)
	case watchCmd.FullCommand():
		err = watch(ctx, client, os.Stdout)
	}

	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func search(ctx context.Context, client *playerv1connect.PlayerServiceClient, query string) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	resp, err := client.Search(ctx, connect.NewRequest(&playerv1.SearchRequest{Query: query}))
	if err != nil {
		return err
	}

	printSearch(os.Stdout, resp.Msg)
	return nil
}

func printSearch(w io.Writer, r *playerv1.SearchResponse) {
	if r.Message != "" {
		fmt.Fprintln(w, r.Message)
	}
	if len(r.Tracks) == 0 {
		return
	}
	fmt.Fprintf(w, "Results for %q from %s (%d, %s total):\n",
		r.Query, r.Provider, len(r.Tracks), track.FormatDuration(r.TotalSeconds))
	for i, t := range r.Tracks {
		fmt.Fprintf(w, "  %2d. %s - %s [%s]\n", i, t.Title, t.Channel, formatLength(t.DurationSeconds))
	}
}

func runCommand(ctx context.Context, name string, call func(context.Context) (*connect.Response[playerv1.CommandResponse], error)) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	resp, err := call(ctx)
	if err != nil {
		return err
	}
	if resp.Msg.Changed {
		fmt.Printf("%s: ok\n", name)
	} else {
		fmt.Printf("%s: nothing to do\n", name)
	}
	return nil
}

func status(ctx context.Context, client *playerv1connect.PlayerServiceClient) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	resp, err := client.GetStatus(ctx, connect.NewRequest(&playerv1.GetStatusRequest{}))
	if err != nil {
		return err
	}
	printStatus(os.Stdout, resp.Msg)
	return nil
}

func printStatus(w io.Writer, s *playerv1.Status) {
	fmt.Fprintln(w, "\n=== PLAYER STATUS ===")
	fmt.Fprintf(w, "State: %s\n", s.State)
	if s.Query != "" {
		fmt.Fprintf(w, "Query: %s\n", s.Query)
	}
	fmt.Fprintf(w, "Playlist: %d tracks\n", len(s.Tracks))

	if s.Track != nil {
		fmt.Fprintf(w, "\nCurrent Track (#%d):\n", s.Index)
		fmt.Fprintf(w, "  Title: %s\n", s.Track.Title)
		fmt.Fprintf(w, "  Channel: %s\n", s.Track.Channel)
		fmt.Fprintf(w, "  Progress: %s / %s\n", track.FormatDuration(s.Position), formatLength(s.Duration))
		fmt.Fprintf(w, "  Engine: %s", s.Engine)
		if s.FallbackUsed {
			fmt.Fprint(w, " (fallback source)")
		}
		fmt.Fprintln(w)
	} else {
		fmt.Fprintln(w, "\nNo track selected")
	}
	if s.Message != "" {
		fmt.Fprintf(w, "\nMessage: %s\n", s.Message)
	}
	fmt.Fprintln(w)
}

func watch(ctx context.Context, client *playerv1connect.PlayerServiceClient, w io.Writer) error {
	stream, err := client.WatchStatus(ctx, connect.NewRequest(&playerv1.WatchStatusRequest{}))
	if err != nil {
		return err
	}
	defer stream.Close()

	for stream.Receive() {
		fmt.Fprintln(w, formatUpdate(stream.Msg()))
	}
	if err := stream.Err(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func formatUpdate(u *playerv1.StatusUpdate) string {
	switch u.Type {
	case playerv1.UpdateSnapshot:
		if u.Track == nil {
			return fmt.Sprintf("[%s] nothing selected", u.State)
		}
		return fmt.Sprintf("[%s] #%d %s - %s", u.State, u.Index, u.Track.Title, u.Track.Channel)
	case "metadata":
		if u.Track == nil {
			return "metadata cleared"
		}
		return fmt.Sprintf("now: #%d %s - %s [%s]", u.Index, u.Track.Title, u.Track.Channel, formatLength(u.Track.DurationSeconds))
	case "progress":
		return fmt.Sprintf("  %s / %s", track.FormatDuration(u.Position), formatLength(u.Duration))
	case "failure":
		return fmt.Sprintf("failure (%s): %s", u.Failure, u.Message)
	case "playlist_loaded":
		return "playlist replaced"
	default:
		return fmt.Sprintf("state: %s", u.State)
	}
}

// formatLength renders a duration in m:ss, or "live" when unknown.
func formatLength(seconds float64) string {
	if seconds <= 0 {
		return "live"
	}
	return track.FormatDuration(seconds)
}
