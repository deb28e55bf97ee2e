// Package main provides the server entry point.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	apiconnect "github.com/osa030/abetube/internal/api/connect"
	"github.com/osa030/abetube/internal/api/playerv1/playerv1connect"
	"github.com/osa030/abetube/internal/app/filter"
	"github.com/osa030/abetube/internal/infra/config"
	"github.com/osa030/abetube/internal/infra/logger"
)

const shutdownTimeout = 10 * time.Second

var (
	app        = kingpin.New("abetube-server", "abetube playlist player")
	configPath = app.Flag("config", "Path to config file").Default("config/server.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()

	listFiltersCmd = app.Command("list-filters", "List available filters and exit")
)

func init() {
	app.Command("start", "Start the player (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if command == listFiltersCmd.FullCommand() {
		printFilters()
		return
	}

	loggerConfig := logger.Config{Output: logger.OutputStdout, Level: "info"}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
	}
	closeLog, err := logger.Init(loggerConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		zlog.Error().Msgf("Server error: %v", err)
		closeLog()
		os.Exit(1)
	}
}

// run wires every component and blocks until ctx is done or a component fails.
func run(ctx context.Context, cfg *config.Config) error {
	c, err := newComponents(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.close()

	var handlerOpts []connect.HandlerOption
	if cfg.Control.Token != "" {
		handlerOpts = append(handlerOpts, connect.WithInterceptors(apiconnect.NewTokenInterceptor(cfg.Control.Token)))
	} else {
		zlog.Warn().Msg("control.token is empty, the control API is unauthenticated")
	}

	mux := http.NewServeMux()
	path, handler := playerv1connect.NewPlayerServiceHandler(apiconnect.NewPlayerService(c.player), handlerOpts...)
	mux.Handle(path, handler)

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           h2c.NewHandler(mux, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", cfg.Server.Addr)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		zlog.Info().Msgf("Starting server: addr=%s", ln.Addr())
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "serve")
		}
		return nil
	})

	if c.bridge != nil {
		g.Go(func() error {
			return c.bridge.Run(gctx)
		})
	}

	g.Go(func() error {
		select {
		case <-gctx.Done():
			zlog.Info().Msg("Shutting down...")
		case <-c.player.Done():
			zlog.Info().Msg("Player stopped, shutting down...")
		}

		// Close the player first so that open WatchStatus streams return.
		c.player.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			zlog.Error().Msgf("Failed to shutdown server: %v", err)
		}
		return nil
	})

	executeHooks(ctx, cfg.Server.Hooks.OnStarted, "on_started")

	err = g.Wait()
	zlog.Info().Msg("Server stopped")
	executeHooks(context.Background(), cfg.Server.Hooks.OnStopped, "on_stopped")
	return err
}

// printFilters prints available filters.
func printFilters() {
	fmt.Println("Available Filters:")
	registry := filter.GetRegistered()
	for _, name := range filter.RegisteredNames() {
		f := registry[name]()
		codes := strings.Join(f.ReturnCodes(), ", ")
		fmt.Printf("  %-30s - %s [codes: %s]\n", f.Name(), f.Description(), codes)
	}
}

// executeHooks runs a list of shell commands.
func executeHooks(ctx context.Context, hooks []string, stage string) {
	if len(hooks) == 0 {
		return
	}

	zlog.Info().Msgf("Executing %s hooks (%d commands)", stage, len(hooks))

	for _, hook := range hooks {
		zlog.Info().Msgf("Executing hook: %s", hook)
		// sh -c allows redirection and pipes
		cmd := exec.CommandContext(ctx, "sh", "-c", hook)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Run(); err != nil {
			zlog.Error().Err(err).Msgf("Failed to execute hook: %s", hook)
		}
	}
}
