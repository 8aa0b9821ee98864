package ipc

import (
	"bufio"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/jimmystridh/whisperx-transcription/internal/api"
	"github.com/jimmystridh/whisperx-transcription/internal/logging"
)

const (
	// DefaultReconnectDelay is the fixed backoff between connection attempts.
	DefaultReconnectDelay = 5 * time.Second

	dialTimeout  = 2 * time.Second
	writeTimeout = 2 * time.Second
)

// Client owns the socket connection, its read buffer, and the connectivity
// flag. All state lives behind one mutex so concurrent callers never observe
// a half-updated connection, and exactly one read loop runs per epoch.
type Client struct {
	path   string
	delay  time.Duration
	logger *slog.Logger

	mu        sync.Mutex
	conn      net.Conn
	connected bool
	epoch     int
	retry     *time.Timer
	closed    bool
	onConn    func(bool)

	events chan api.Event
	done   chan struct{}
}

// NewClient builds a client for the socket at path. A non-positive delay
// falls back to DefaultReconnectDelay.
func NewClient(path string, delay time.Duration, logger *slog.Logger) *Client {
	if delay <= 0 {
		delay = DefaultReconnectDelay
	}
	return &Client{
		path:   path,
		delay:  delay,
		logger: logging.WithComponent(logger, "ipc"),
		events: make(chan api.Event, 64),
		done:   make(chan struct{}),
	}
}

// Events returns the decoded event stream. The channel spans epochs; a
// reconnect starts delivering the new connection's events on the same
// channel without replaying anything.
func (c *Client) Events() <-chan api.Event {
	return c.events
}

// OnConnectivity registers the observer invoked whenever the connectivity
// flag flips. Register before Connect.
func (c *Client) OnConnectivity(fn func(bool)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onConn = fn
}

// Connected reports the connectivity flag. The flag turns true on the first
// decoded event of an epoch, not on dial success.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Connect is idempotent: a no-op while connected or after Disconnect. A
// failed dial schedules a retry after the fixed backoff and returns without
// error; connection failures surface only through the connectivity flag.
func (c *Client) Connect() {
	c.mu.Lock()
	if c.closed || c.conn != nil {
		c.mu.Unlock()
		return
	}
	if c.retry != nil {
		c.retry.Stop()
		c.retry = nil
	}

	conn, err := net.DialTimeout("unix", c.path, dialTimeout)
	if err != nil {
		c.scheduleRetryLocked()
		c.mu.Unlock()
		c.logger.Debug("dial failed; retry scheduled",
			logging.String("socket", c.path),
			logging.Duration("backoff", c.delay),
			logging.Error(err))
		return
	}

	c.conn = conn
	c.epoch++
	epoch := c.epoch
	c.mu.Unlock()

	c.logger.Debug("connected", logging.String("socket", c.path))
	go c.readLoop(conn, epoch)

	// Ask for an immediate state push so reconnects converge without
	// waiting for the next job transition.
	c.SendCommand(api.CommandStatus)
}

// SendCommand writes one command frame. Silently dropped when not connected.
func (c *Client) SendCommand(command string) {
	payload, err := api.EncodeCommand(command)
	if err != nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if _, err := c.conn.Write(payload); err != nil {
		c.logger.Debug("command write failed", logging.String("command", command), logging.Error(err))
	}
}

// Disconnect releases the connection, cancels any pending reconnect, and
// resets the connectivity flag. The client is not reusable afterwards.
func (c *Client) Disconnect() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.retry != nil {
		c.retry.Stop()
		c.retry = nil
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	notify := c.setConnectedLocked(false)
	c.mu.Unlock()

	close(c.done)
	if notify != nil {
		notify()
	}
}

// readLoop drains one connection. The buffered reader carries partial frames
// across reads and splits exactly on newline boundaries; a trailing partial
// line at stream end is an incomplete frame and is dropped.
func (c *Client) readLoop(conn net.Conn, epoch int) {
	reader := bufio.NewReader(conn)
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			c.handleReadFailure(epoch, err)
			return
		}

		ev, decErr := api.DecodeEvent(line)
		if decErr != nil {
			c.logger.Debug("dropping undecodable line", logging.Error(decErr))
			continue
		}

		c.markConnected(epoch)

		select {
		case c.events <- ev:
		case <-c.done:
			return
		}
	}
}

func (c *Client) markConnected(epoch int) {
	c.mu.Lock()
	if c.closed || c.epoch != epoch {
		c.mu.Unlock()
		return
	}
	notify := c.setConnectedLocked(true)
	c.mu.Unlock()
	if notify != nil {
		notify()
	}
}

func (c *Client) handleReadFailure(epoch int, err error) {
	c.mu.Lock()
	if c.epoch != epoch {
		// A newer connection owns the state; this loop is stale.
		c.mu.Unlock()
		return
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	notify := c.setConnectedLocked(false)
	closed := c.closed
	if !closed {
		c.scheduleRetryLocked()
	}
	c.mu.Unlock()

	if notify != nil {
		notify()
	}
	if !closed {
		c.logger.Debug("read loop ended; retry scheduled",
			logging.Duration("backoff", c.delay),
			logging.Error(err))
	}
}

// setConnectedLocked flips the flag and returns the observer invocation to
// run after the lock is released, or nil when the value did not change.
func (c *Client) setConnectedLocked(value bool) func() {
	if c.connected == value {
		return nil
	}
	c.connected = value
	fn := c.onConn
	if fn == nil {
		return nil
	}
	return func() { fn(value) }
}

// scheduleRetryLocked replaces any pending reconnect timer with exactly one
// new timer. Callers hold c.mu.
func (c *Client) scheduleRetryLocked() {
	if c.retry != nil {
		c.retry.Stop()
	}
	c.retry = time.AfterFunc(c.delay, func() {
		c.mu.Lock()
		c.retry = nil
		closed := c.closed
		c.mu.Unlock()
		if !closed {
			c.Connect()
		}
	})
}
