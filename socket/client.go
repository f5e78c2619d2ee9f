// Package socket is the real-time connection handle: one websocket to the CRM server
// carrying named JSON events, with automatic redial.
package socket

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/fistoar/crm-realtime/tool"
	"github.com/fistoar/crm-realtime/types"
)

const writeWait = 5 * time.Second

// ErrAlreadyRunning is returned by Connect when the client is already connected or dialing.
var ErrAlreadyRunning = errors.New("socket: client already running")

// Options configures a Client.
type Options struct {
	URL              string
	Header           http.Header
	PingInterval     time.Duration
	PingTimeout      time.Duration
	HandshakeTimeout time.Duration
	MinDelay         time.Duration // minimum spacing between dials
}

// Envelope is the wire format of every inbound frame.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type lifecycleEntry struct {
	id uint64
	fn types.LifecycleFunc
}

// Client owns the single connection. Handlers for an event run in arrival order on the
// read goroutine.
type Client struct {
	opts    Options
	dialer  *websocket.Dialer
	limiter *rate.Limiter
	kick    chan struct{}

	mu        sync.RWMutex
	handlers  map[string][]types.EventHandler
	lifecycle []lifecycleEntry
	nextID    uint64
	conn      *websocket.Conn
	forced    bool
	cancel    context.CancelFunc
	done      chan struct{}

	connected atomic.Bool
}

// New creates an idle client; call Connect to start dialing.
func New(opts Options) *Client {
	if opts.PingInterval <= 0 {
		opts.PingInterval = 25 * time.Second
	}
	if opts.PingTimeout <= 0 {
		opts.PingTimeout = 20 * time.Second
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = 10 * time.Second
	}
	if opts.MinDelay <= 0 {
		opts.MinDelay = time.Second
	}
	return &Client{
		opts: opts,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: opts.HandshakeTimeout,
		},
		limiter:  rate.NewLimiter(rate.Every(opts.MinDelay), 1),
		kick:     make(chan struct{}, 1),
		handlers: make(map[string][]types.EventHandler),
	}
}

// On adds h for event. Several handlers may be bound to one name.
func (c *Client) On(event string, h types.EventHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[event] = append(c.handlers[event], h)
}

// Off removes every handler bound to event.
func (c *Client) Off(event string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.handlers, event)
}

// OnLifecycle subscribes fn to connection transitions.
func (c *Client) OnLifecycle(fn types.LifecycleFunc) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	id := c.nextID
	c.lifecycle = append(c.lifecycle, lifecycleEntry{id: id, fn: fn})
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, e := range c.lifecycle {
			if e.id == id {
				c.lifecycle = append(c.lifecycle[:i], c.lifecycle[i+1:]...)
				return
			}
		}
	}
}

// Connected is the liveness predicate.
func (c *Client) Connected() bool {
	return c.connected.Load()
}

// Connect starts the dial/read loop in the background.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.run(ctx, c.done)
	return nil
}

// Reconnect drops the current connection and redials without waiting for the pacing delay.
func (c *Client) Reconnect() {
	c.mu.Lock()
	conn := c.conn
	if conn != nil {
		c.forced = true
	}
	c.mu.Unlock()

	if conn != nil {
		if err := conn.Close(); err != nil {
			tool.DefaultLogger.Debugf("[Socket] close for reconnect: %v", err)
		}
	}
	select {
	case c.kick <- struct{}{}:
	default:
	}
}

// Close stops the loop and waits for it to exit. The client can Connect again afterwards.
func (c *Client) Close() error {
	c.mu.Lock()
	cancel, done, conn := c.cancel, c.done, c.conn
	c.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	var err error
	if conn != nil {
		err = conn.Close()
	}
	<-done

	c.mu.Lock()
	c.cancel = nil
	c.done = nil
	c.mu.Unlock()
	return err
}

func (c *Client) emit(status types.LifecycleStatus, reason string) {
	c.mu.RLock()
	subs := make([]types.LifecycleFunc, 0, len(c.lifecycle))
	for _, e := range c.lifecycle {
		subs = append(subs, e.fn)
	}
	c.mu.RUnlock()
	for _, fn := range subs {
		fn(status, reason)
	}
}

func (c *Client) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	everConnected := false
	attempt := 0
	skipPause := false
	for {
		if !skipPause && !c.pause(ctx) {
			return
		}
		skipPause = false

		if everConnected || attempt > 0 {
			attempt++
			c.emit(types.LifecycleReconnecting, strconv.Itoa(attempt))
		} else {
			c.emit(types.LifecycleConnecting, "")
		}

		conn, _, err := c.dialer.DialContext(ctx, c.opts.URL, c.opts.Header)
		if err != nil {
			if ctx.Err() != nil {
				c.emit(types.LifecycleDisconnected, types.ReasonClientDisconnect)
				return
			}
			if isTimeout(err) {
				c.emit(types.LifecycleTimeout, types.ReasonTimeout)
			} else {
				c.emit(types.LifecycleError, err.Error())
			}
			tool.DefaultLogger.Warnf("[Socket] dial %s failed: %v", c.opts.URL, err)
			continue
		}

		c.mu.Lock()
		c.conn = conn
		c.forced = false
		c.mu.Unlock()
		c.connected.Store(true)
		// a Reconnect that raced the dial already got its fresh connection
		select {
		case <-c.kick:
		default:
		}

		if everConnected {
			c.emit(types.LifecycleReconnected, "")
		} else {
			c.emit(types.LifecycleConnected, "")
		}
		everConnected = true
		attempt = 0
		tool.DefaultLogger.Infof("[Socket] connected to %s", c.opts.URL)

		readErr := c.readLoop(ctx, conn)

		c.connected.Store(false)
		c.mu.Lock()
		c.conn = nil
		forced := c.forced
		c.forced = false
		c.mu.Unlock()
		_ = conn.Close()

		if ctx.Err() != nil {
			c.emit(types.LifecycleDisconnected, types.ReasonClientDisconnect)
			return
		}
		if forced {
			tool.DefaultLogger.Infof("[Socket] forced reconnect")
			select {
			case <-c.kick:
			default:
			}
			skipPause = true
			continue
		}
		reason := disconnectReason(readErr)
		tool.DefaultLogger.Warnf("[Socket] disconnected: %s (%v)", reason, readErr)
		c.emit(types.LifecycleDisconnected, reason)
	}
}

// pause waits for the dial limiter; a Reconnect cuts the wait short.
func (c *Client) pause(ctx context.Context) bool {
	r := c.limiter.Reserve()
	delay := r.Delay()
	if delay <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		r.Cancel()
		return false
	case <-c.kick:
		r.Cancel()
		return true
	case <-t.C:
		return true
	}
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) error {
	deadline := c.opts.PingInterval + c.opts.PingTimeout
	extend := func() {
		_ = conn.SetReadDeadline(time.Now().Add(deadline))
	}
	extend()
	conn.SetPongHandler(func(string) error {
		extend()
		return nil
	})
	conn.SetPingHandler(func(data string) error {
		extend()
		err := conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
		if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
			return err
		}
		return nil
	})

	stopPing := make(chan struct{})
	defer close(stopPing)
	go func() {
		ticker := time.NewTicker(c.opts.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stopPing:
				return
			case <-ctx.Done():
				// unblock ReadMessage when Close races with a finishing dial
				_ = conn.Close()
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		extend()
		c.dispatch(data)
	}
}

func (c *Client) dispatch(frame []byte) {
	var env Envelope
	if err := sonic.Unmarshal(frame, &env); err != nil {
		tool.DefaultLogger.Warnf("[Socket] dropping malformed frame: %v", err)
		return
	}
	if env.Event == "" {
		return
	}
	c.mu.RLock()
	handlers := append([]types.EventHandler(nil), c.handlers[env.Event]...)
	c.mu.RUnlock()
	if len(handlers) == 0 {
		tool.DefaultLogger.Debugf("[Socket] no handler for %q", env.Event)
		return
	}
	payload := []byte(env.Data)
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	for _, h := range handlers {
		h(payload)
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// disconnectReason maps a read error to a lifecycle reason code.
func disconnectReason(err error) string {
	var ce *websocket.CloseError
	switch {
	case errors.As(err, &ce):
		return types.ReasonServerDisconnect
	case isTimeout(err):
		return types.ReasonPingTimeout
	default:
		return types.ReasonTransportClose
	}
}
