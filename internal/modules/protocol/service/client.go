package service

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"optionbot/internal/brokererr"
	"optionbot/internal/modules/config"
	"optionbot/pkg/logger"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateAuthenticated
	StateError
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateAuthenticated:
		return "authenticated"
	case StateError:
		return "error"
	default:
		return "disconnected"
	}
}

// Handler receives uncorrelated frames dispatched by logical name.
type Handler func(f Frame)

type ConnEvent string

const (
	EventConnected       ConnEvent = "connected"
	EventDisconnected    ConnEvent = "disconnected"
	EventReconnectFailed ConnEvent = "reconnect_failed"
)

// Client owns one duplex socket to the broker: dial, ssid handshake,
// request/response correlation, heartbeat and bounded reconnection.
type Client struct {
	cfg    *config.Config
	dialer *websocket.Dialer

	mu     sync.Mutex
	conn   *websocket.Conn
	state  State
	authCh chan error    // armed during the handshake window
	done   chan struct{} // closed when the current conn dies
	closed bool          // explicit Close, no reconnect

	writeMu sync.Mutex

	reqSeq atomic.Uint64

	pmu     sync.Mutex
	pending map[string]*pendingRequest

	hmu      sync.RWMutex
	handlers map[string][]Handler
	watchers []func(ConnEvent)

	serverTime atomic.Int64 // ms, last timeSync from the broker
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		cfg:      cfg,
		dialer:   &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		pending:  make(map[string]*pendingRequest),
		handlers: make(map[string][]Handler),
	}
}

// On registers a handler for uncorrelated frames with the given name.
func (c *Client) On(name string, h Handler) {
	c.hmu.Lock()
	defer c.hmu.Unlock()
	c.handlers[name] = append(c.handlers[name], h)
}

// OnConnEvent registers a watcher for connection lifecycle events.
func (c *Client) OnConnEvent(fn func(ConnEvent)) {
	c.hmu.Lock()
	defer c.hmu.Unlock()
	c.watchers = append(c.watchers, fn)
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) nextRequestID() string {
	return strconv.FormatUint(c.reqSeq.Add(1), 10)
}

// Connect dials the broker, performs the ssid handshake and starts the
// read and heartbeat loops. A successful Connect re-arms reconnection
// after a previous exhaustion.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateConnecting || c.state == StateConnected || c.state == StateAuthenticated {
		c.mu.Unlock()
		return nil
	}
	c.state = StateConnecting
	c.closed = false
	c.mu.Unlock()

	conn, _, err := c.dialer.DialContext(ctx, c.cfg.Broker.URL, nil)
	if err != nil {
		c.setState(StateError)
		return errors.Wrapf(brokererr.ErrConnection, "dial %s: %v", c.cfg.Broker.URL, err)
	}

	authCh := make(chan error, 1)
	done := make(chan struct{})

	c.mu.Lock()
	c.conn = conn
	c.state = StateConnected
	c.authCh = authCh
	c.done = done
	c.mu.Unlock()

	go c.readLoop(conn, done)

	auth := authFrame{Name: frameSSID, Msg: c.cfg.Broker.SSID, RequestID: c.nextRequestID()}
	if err := c.writeFrame(conn, auth); err != nil {
		_ = conn.Close()
		c.setState(StateError)
		return errors.Wrap(brokererr.ErrConnection, "send auth frame")
	}

	select {
	case err := <-authCh:
		if err != nil {
			_ = conn.Close()
			c.setState(StateError)
			return err
		}
	case <-time.After(c.cfg.AuthTimeout):
		_ = conn.Close()
		c.setState(StateError)
		return errors.Wrapf(brokererr.ErrAuth, "no auth confirmation within %s", c.cfg.AuthTimeout)
	case <-ctx.Done():
		_ = conn.Close()
		c.setState(StateDisconnected)
		return ctx.Err()
	}

	c.mu.Lock()
	c.state = StateAuthenticated
	c.authCh = nil
	c.mu.Unlock()

	go c.heartbeatLoop(conn, done)

	logger.Info("broker connection authenticated")
	c.emit(EventConnected)
	return nil
}

// Close tears the connection down without reconnecting.
func (c *Client) Close() {
	c.mu.Lock()
	c.closed = true
	conn := c.conn
	c.state = StateDisconnected
	c.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Client) emit(ev ConnEvent) {
	c.hmu.RLock()
	watchers := make([]func(ConnEvent), len(c.watchers))
	copy(watchers, c.watchers)
	c.hmu.RUnlock()
	for _, fn := range watchers {
		fn(ev)
	}
}

func (c *Client) writeFrame(conn *websocket.Conn, v interface{}) error {
	payload, err := sonic.Marshal(v)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, payload)
}

func (c *Client) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer close(done)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			c.onSocketDown(conn, err)
			return
		}

		var f Frame
		if err := sonic.Unmarshal(raw, &f); err != nil {
			logger.Warn("drop undecodable frame: %v", err)
			continue
		}
		c.dispatch(f)
	}
}

// dispatch routes one inbound frame. Correlation consumes the frame
// exactly once: a matched request_id never reaches name handlers.
func (c *Client) dispatch(f Frame) {
	switch f.Name {
	case frameTimeSync, frameHeartbeat:
		var ms int64
		if err := sonic.Unmarshal(f.Payload(), &ms); err == nil {
			c.serverTime.Store(ms)
		}
		return
	case frameSSID, frameProfile, frameAuthenticated:
		if c.resolveAuth(f) {
			return
		}
	}

	if f.RequestID != "" {
		if c.resolvePending(f) {
			return
		}
	}

	c.hmu.RLock()
	hs := append([]Handler(nil), c.handlers[f.Name]...)
	c.hmu.RUnlock()
	for _, h := range hs {
		h(f)
	}
}

// resolveAuth completes the handshake window. An authenticated frame
// carrying false means the ssid was rejected.
func (c *Client) resolveAuth(f Frame) bool {
	c.mu.Lock()
	ch := c.authCh
	c.authCh = nil
	c.mu.Unlock()
	if ch == nil {
		return false
	}

	if f.Name == frameAuthenticated {
		var ok bool
		if err := sonic.Unmarshal(f.Payload(), &ok); err == nil && !ok {
			ch <- errors.Wrap(brokererr.ErrAuth, "ssid rejected by broker")
			return true
		}
	}
	ch <- nil
	return true
}

func (c *Client) onSocketDown(conn *websocket.Conn, cause error) {
	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	wasClosed := c.closed
	c.state = StateDisconnected
	c.mu.Unlock()

	if wasClosed {
		return
	}

	logger.Warn("broker socket down: %v", cause)
	c.emit(EventDisconnected)
	go c.reconnect()
}

// reconnect retries Connect with linearly increasing delay. Exhaustion is
// terminal: nothing is retried until a fresh explicit Connect.
func (c *Client) reconnect() {
	for attempt := 1; attempt <= c.cfg.ReconnectAttempts; attempt++ {
		delay := c.cfg.ReconnectBaseDelay * time.Duration(attempt)
		logger.Info("reconnect attempt %d/%d in %s", attempt, c.cfg.ReconnectAttempts, delay)
		time.Sleep(delay)

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return
		}
		c.state = StateDisconnected
		c.mu.Unlock()

		if err := c.Connect(context.Background()); err == nil {
			return
		} else {
			logger.Warn("reconnect attempt %d failed: %v", attempt, err)
		}
	}

	c.setState(StateError)
	logger.Error("%v after %d attempts", brokererr.ErrReconnectionFailed, c.cfg.ReconnectAttempts)
	c.emit(EventReconnectFailed)
}
