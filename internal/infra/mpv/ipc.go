package mpv

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// ErrClosed is returned for commands on a closed connection.
var ErrClosed = errors.New("mpv connection closed")

// commandTimeout bounds a command whose context has no deadline.
const commandTimeout = 5 * time.Second

// message is one line received from the IPC socket: either a reply
// carrying request_id or an event.
type message struct {
	RequestID *int64          `json:"request_id"`
	Error     string          `json:"error"`
	Data      json.RawMessage `json:"data"`
	Event     string          `json:"event"`
	Name      string          `json:"name"`
	Reason    string          `json:"reason"`
	FileError string          `json:"file_error"`
}

type request struct {
	Command   []any `json:"command"`
	RequestID int64 `json:"request_id"`
}

// conn is a persistent JSON-IPC connection. Replies are matched to
// requests by request_id; events go to onEvent on the read goroutine.
type conn struct {
	nc      net.Conn
	onEvent func(message)

	mu      sync.Mutex
	nextID  int64
	pending map[int64]chan message

	done chan struct{}
}

func dial(ctx context.Context, socketPath string, onEvent func(message)) (*conn, error) {
	var d net.Dialer
	nc, err := d.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return nil, errors.Wrapf(err, "connect %s", socketPath)
	}
	c := &conn{
		nc:      nc,
		onEvent: onEvent,
		pending: make(map[int64]chan message),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// command sends args and waits for the matching reply.
// It must not be called from onEvent.
func (c *conn) command(ctx context.Context, args ...any) (json.RawMessage, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, commandTimeout)
		defer cancel()
	}
	ch := make(chan message, 1)

	c.mu.Lock()
	select {
	case <-c.done:
		c.mu.Unlock()
		return nil, ErrClosed
	default:
	}
	c.nextID++
	id := c.nextID
	c.pending[id] = ch
	payload, err := json.Marshal(request{Command: args, RequestID: id})
	if err == nil {
		_, err = c.nc.Write(append(payload, '\n'))
	}
	if err != nil {
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, errors.Wrapf(err, "send %v", args[0])
	}
	c.mu.Unlock()

	select {
	case msg := <-ch:
		if msg.Error != "" && msg.Error != "success" {
			return nil, errors.Newf("mpv %v: %s", args[0], msg.Error)
		}
		return msg.Data, nil
	case <-ctx.Done():
		c.forget(id)
		return nil, ctx.Err()
	case <-c.done:
		return nil, ErrClosed
	}
}

func (c *conn) forget(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, id)
}

func (c *conn) close() error {
	return c.nc.Close()
}

func (c *conn) readLoop() {
	scanner := bufio.NewScanner(c.nc)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	for scanner.Scan() {
		var msg message
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			zlog.Debug().Msgf("mpv: skipping unparseable line: %v", err)
			continue
		}
		if msg.Event != "" {
			if c.onEvent != nil {
				c.onEvent(msg)
			}
			continue
		}
		if msg.RequestID == nil {
			continue
		}
		c.mu.Lock()
		ch, ok := c.pending[*msg.RequestID]
		delete(c.pending, *msg.RequestID)
		c.mu.Unlock()
		if ok {
			ch <- msg
		}
	}

	if err := scanner.Err(); err != nil {
		zlog.Debug().Msgf("mpv: ipc read stopped: %v", err)
	}
	c.mu.Lock()
	close(c.done)
	c.mu.Unlock()
}
