// Package mpv provides a rendering surface backed by an mpv process
// controlled over its JSON IPC socket.
package mpv

import (
	"context"
	"encoding/json"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/abetube/internal/app/engine"
)

const (
	socketWaitRetries = 20
	socketWaitDelay   = 100 * time.Millisecond
	quitTimeout       = 3 * time.Second
	progressInterval  = 250 * time.Millisecond
)

// observed properties, by observe_property id
var observed = []string{"time-pos", "duration", "pause", "core-idle", "eof-reached"}

// Config describes how to start mpv.
type Config struct {
	Name      string // Used in logs and the default socket name
	Binary    string
	Socket    string
	ExtraArgs []string
	NoVideo   bool
}

// Args returns the mpv command line for cfg.
func (cfg Config) Args() []string {
	args := []string{
		"--idle=yes",
		"--no-terminal",
		"--really-quiet",
		"--input-ipc-server=" + cfg.Socket,
		"--pause=yes",
	}
	if cfg.NoVideo {
		args = append(args, "--no-video")
	}
	return append(args, cfg.ExtraArgs...)
}

// Surface is an engine.Surface driving one mpv instance.
type Surface struct {
	name   string
	socket string
	conn   *conn

	cmd    *exec.Cmd
	exited chan struct{}

	events    chan engine.SurfaceEvent
	closing   chan struct{}
	closeOnce sync.Once

	mu       sync.Mutex
	coreIdle bool
	paused   bool
	duration float64
	failed   error
	ended    bool
	lastTick time.Time
	changed  chan struct{}

	// seek requested before the file was loaded, applied once duration is known
	pendingSeek float64
}

// Start spawns mpv and attaches to its IPC socket.
func Start(ctx context.Context, cfg Config) (*Surface, error) {
	if cfg.Binary == "" {
		cfg.Binary = "mpv"
	}
	if cfg.Socket == "" {
		cfg.Socket = filepath.Join(os.TempDir(), "abetube-"+cfg.Name+".sock")
	}
	_ = os.Remove(cfg.Socket)

	cmd := exec.Command(cfg.Binary, cfg.Args()...)
	cmd.SysProcAttr = sysProcAttr()
	if err := cmd.Start(); err != nil {
		return nil, errors.Wrapf(err, "start %s", cfg.Binary)
	}
	exited := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(exited)
	}()

	if err := waitForSocket(ctx, cfg.Socket, exited); err != nil {
		_ = killProcess(cmd)
		return nil, errors.Wrap(err, "mpv socket not ready")
	}

	s, err := Attach(ctx, cfg.Name, cfg.Socket)
	if err != nil {
		_ = killProcess(cmd)
		return nil, err
	}
	s.cmd = cmd
	s.exited = exited
	zlog.Info().Msgf("mpv: started name=%s pid=%d socket=%s", cfg.Name, cmd.Process.Pid, cfg.Socket)
	return s, nil
}

// Attach connects to an mpv instance already listening on socket.
func Attach(ctx context.Context, name, socket string) (*Surface, error) {
	s := &Surface{
		name:     name,
		socket:   socket,
		events:   make(chan engine.SurfaceEvent, 64),
		closing:  make(chan struct{}),
		coreIdle: true,
		paused:   true,
		changed:  make(chan struct{}),
	}
	c, err := dial(ctx, socket, s.handleEvent)
	if err != nil {
		return nil, err
	}
	s.conn = c

	for i, prop := range observed {
		if _, err := c.command(ctx, "observe_property", i+1, prop); err != nil {
			_ = c.close()
			return nil, errors.Wrapf(err, "observe %s", prop)
		}
	}
	return s, nil
}

func waitForSocket(ctx context.Context, socket string, exited <-chan struct{}) error {
	for i := 0; i < socketWaitRetries; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-exited:
			return errors.New("mpv exited before socket was ready")
		case <-time.After(socketWaitDelay):
		}
		if _, err := os.Stat(socket); err == nil {
			return nil
		}
	}
	return errors.Newf("socket %s not ready after %d attempts", socket, socketWaitRetries)
}

// Load replaces the current file with rawURL, paused.
func (s *Surface) Load(ctx context.Context, rawURL string) error {
	target, err := sanitizeMediaTarget(rawURL)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.coreIdle = true
	s.paused = true
	s.duration = 0
	s.failed = nil
	s.ended = false
	s.pendingSeek = 0
	s.notifyLocked()
	s.mu.Unlock()

	if _, err := s.conn.command(ctx, "set_property", "pause", true); err != nil {
		return err
	}
	if _, err := s.conn.command(ctx, "loadfile", target, "replace"); err != nil {
		return err
	}
	zlog.Debug().Msgf("mpv: %s loadfile", s.name)
	return nil
}

// Play unpauses and waits until mpv is actually producing output or the
// file fails to open.
func (s *Surface) Play(ctx context.Context) (engine.Confirmation, error) {
	if _, err := s.conn.command(ctx, "set_property", "pause", false); err != nil {
		return engine.ConfirmedPaused, err
	}
	for {
		s.mu.Lock()
		failed, playing, changed := s.failed, !s.coreIdle && !s.paused, s.changed
		s.mu.Unlock()

		if failed != nil {
			return engine.ConfirmedPaused, failed
		}
		if playing {
			return engine.ConfirmedPlaying, nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return engine.ConfirmedPaused, ctx.Err()
		case <-s.conn.done:
			return engine.ConfirmedPaused, ErrClosed
		}
	}
}

// Pause pauses playback.
func (s *Surface) Pause(ctx context.Context) error {
	_, err := s.conn.command(ctx, "set_property", "pause", true)
	return err
}

// Seek moves to seconds from the start. A seek issued while the file is
// still opening is deferred until mpv reports its duration.
func (s *Surface) Seek(ctx context.Context, seconds float64) error {
	_, err := s.conn.command(ctx, "seek", seconds, "absolute")
	if err == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.duration > 0 {
		return err
	}
	zlog.Debug().Msgf("mpv: %s deferring seek to %.1f: %v", s.name, seconds, err)
	s.pendingSeek = seconds
	return nil
}

func (s *Surface) applyPendingSeek(seconds float64) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	if _, err := s.conn.command(ctx, "seek", seconds, "absolute"); err != nil {
		zlog.Warn().Err(err).Msgf("mpv: %s deferred seek to %.1f failed", s.name, seconds)
	}
}

// Events returns the media event stream.
func (s *Surface) Events() <-chan engine.SurfaceEvent {
	return s.events
}

// Close quits mpv, or just disconnects when attached to a foreign instance.
func (s *Surface) Close() error {
	s.closeOnce.Do(func() {
		close(s.closing)
		if s.cmd == nil {
			_ = s.conn.close()
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), quitTimeout)
		defer cancel()
		_, _ = s.conn.command(ctx, "quit")
		select {
		case <-s.exited:
		case <-ctx.Done():
			zlog.Warn().Msgf("mpv: %s did not quit, killing", s.name)
			_ = killProcess(s.cmd)
		}
		_ = s.conn.close()
		_ = os.Remove(s.socket)
	})
	return nil
}

func (s *Surface) handleEvent(msg message) {
	switch msg.Event {
	case "property-change":
		s.handleProperty(msg.Name, msg.Data)
	case "end-file":
		switch msg.Reason {
		case "eof":
			s.markEnded()
		case "error":
			err := errors.Newf("mpv: %s", strings.TrimSpace(msg.FileError))
			if msg.FileError == "" {
				err = errors.New("mpv: failed to open file")
			}
			s.mu.Lock()
			s.failed = err
			s.notifyLocked()
			s.mu.Unlock()
			s.emit(engine.SurfaceEvent{Kind: engine.KindError, Err: err})
		}
	}
}

func (s *Surface) handleProperty(name string, data json.RawMessage) {
	switch name {
	case "time-pos":
		var pos float64
		if json.Unmarshal(data, &pos) != nil {
			return
		}
		s.mu.Lock()
		now := time.Now()
		if now.Sub(s.lastTick) < progressInterval {
			s.mu.Unlock()
			return
		}
		s.lastTick = now
		duration := s.duration
		s.mu.Unlock()
		s.emit(engine.SurfaceEvent{Kind: engine.KindTimeUpdate, Current: pos, Duration: duration})
	case "duration":
		var d float64
		_ = json.Unmarshal(data, &d)
		s.mu.Lock()
		s.duration = d
		pending := s.pendingSeek
		if d > 0 {
			s.pendingSeek = 0
		}
		s.mu.Unlock()
		if d > 0 && pending > 0 {
			// Commands cannot be issued from the read goroutine.
			go s.applyPendingSeek(pending)
		}
	case "pause":
		var v bool
		if json.Unmarshal(data, &v) != nil {
			return
		}
		s.mu.Lock()
		s.paused = v
		s.notifyLocked()
		s.mu.Unlock()
	case "core-idle":
		var v bool
		if json.Unmarshal(data, &v) != nil {
			return
		}
		s.mu.Lock()
		s.coreIdle = v
		s.notifyLocked()
		s.mu.Unlock()
	case "eof-reached":
		var v bool
		if json.Unmarshal(data, &v) == nil && v {
			s.markEnded()
		}
	}
}

// markEnded emits Ended once per loaded file.
func (s *Surface) markEnded() {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	s.mu.Unlock()
	s.emit(engine.SurfaceEvent{Kind: engine.KindEnded})
}

func (s *Surface) notifyLocked() {
	close(s.changed)
	s.changed = make(chan struct{})
}

func (s *Surface) emit(ev engine.SurfaceEvent) {
	select {
	case s.events <- ev:
	case <-s.closing:
	}
}

// sanitizeMediaTarget rejects anything mpv could read as an option.
func sanitizeMediaTarget(link string) (string, error) {
	l := strings.TrimSpace(link)
	if l == "" {
		return "", errors.New("empty URL")
	}
	if strings.ContainsAny(l, "\x00\n\r") {
		return "", errors.New("invalid control characters in URL")
	}
	if strings.HasPrefix(l, "-") {
		return "", errors.New("url must not start with '-'")
	}
	if strings.Contains(l, "://") {
		u, err := url.Parse(l)
		if err != nil {
			return "", errors.Wrap(err, "invalid URL")
		}
		switch strings.ToLower(u.Scheme) {
		case "http", "https":
			return l, nil
		default:
			return "", errors.Newf("unsupported URL scheme: %s", u.Scheme)
		}
	}
	return filepath.Clean(l), nil
}
