// Package transport owns the single duplex connection to the RAG
// backend: connect/disconnect lifecycle, bounded reconnection, and
// per-event listener dispatch. It knows nothing about conversation or
// document semantics; payloads pass through as raw bytes in the
// negotiated encoding.
package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/mstanton/ragline/internal/debug"
	"github.com/mstanton/ragline/internal/wire"
)

// ErrNotConnected is returned when sending or registering listeners
// before a connection exists. Callers must connect first; listeners
// cannot be queued against a connection that may never materialize.
var ErrNotConnected = errors.New("transport: not connected")

// Handler receives the raw payload bytes of one event. Decode them
// with the client's Decode method.
type Handler func(payload []byte)

const (
	defaultReconnectAttempts = 5
	defaultReconnectDelay    = 2 * time.Second
	writeTimeout             = 10 * time.Second
)

// Options configures a Client.
type Options struct {
	// ReconnectAttempts bounds how many redials follow a failed dial
	// or a dropped connection. Zero means a single attempt.
	ReconnectAttempts int

	// ReconnectDelay is the fixed delay between redials.
	ReconnectDelay time.Duration

	// Codecs lists the wire encodings in preference order. Defaults to
	// JSON preferred with CBOR fallback.
	Codecs []wire.Codec
}

// Client maintains at most one live websocket connection. All methods
// are safe for concurrent use.
type Client struct {
	url      string
	attempts int
	delay    time.Duration
	codecs   []wire.Codec

	mu        sync.Mutex
	conn      *websocket.Conn
	codec     wire.Codec
	listeners map[string][]Handler
	connected bool
	closing   bool
	dialing   bool
}

// NewClient creates a client for the given websocket URL.
func NewClient(url string, opts Options) *Client {
	if opts.ReconnectAttempts <= 0 {
		opts.ReconnectAttempts = defaultReconnectAttempts
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = defaultReconnectDelay
	}
	if len(opts.Codecs) == 0 {
		opts.Codecs = wire.Codecs()
	}
	return &Client{
		url:      url,
		attempts: opts.ReconnectAttempts,
		delay:    opts.ReconnectDelay,
		codecs:   opts.Codecs,
	}
}

// Connect opens the connection. It is a no-op when already connected
// and never opens a second connection while one is live or pending.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.connected || c.dialing {
		c.mu.Unlock()
		return nil
	}
	c.dialing = true
	c.mu.Unlock()

	conn, codec, err := c.dial(ctx)

	c.mu.Lock()
	c.dialing = false
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.conn = conn
	c.codec = codec
	c.connected = true
	c.closing = false
	if c.listeners == nil {
		c.listeners = make(map[string][]Handler)
	}
	c.mu.Unlock()

	debug.Log("transport: connected to %s (%s)", c.url, codec.Subprotocol())
	go c.readLoop(conn)
	return nil
}

// dial attempts the websocket handshake with the configured retry
// budget, negotiating the wire encoding via subprotocols.
func (c *Client) dial(ctx context.Context) (*websocket.Conn, wire.Codec, error) {
	subprotocols := make([]string, len(c.codecs))
	for i, cd := range c.codecs {
		subprotocols[i] = cd.Subprotocol()
	}

	var lastErr error
	for attempt := 0; attempt <= c.attempts; attempt++ {
		if attempt > 0 {
			debug.Log("transport: retry %d/%d in %s", attempt, c.attempts, c.delay)
			select {
			case <-ctx.Done():
				return nil, nil, ctx.Err()
			case <-time.After(c.delay):
			}
		}

		conn, _, err := websocket.Dial(ctx, c.url, &websocket.DialOptions{
			Subprotocols: subprotocols,
		})
		if err != nil {
			lastErr = err
			continue
		}

		codec := c.codecs[0]
		if negotiated := conn.Subprotocol(); negotiated != "" {
			cd, ok := wire.BySubprotocol(negotiated)
			if !ok {
				conn.Close(websocket.StatusProtocolError, "unsupported subprotocol")
				lastErr = fmt.Errorf("server selected unsupported subprotocol %q", negotiated)
				continue
			}
			codec = cd
		}
		return conn, codec, nil
	}
	return nil, nil, fmt.Errorf("connecting to %s: %w", c.url, lastErr)
}

// Disconnect tears down the connection and releases all listeners.
// Idempotent.
func (c *Client) Disconnect() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.connected = false
	c.closing = true
	c.listeners = nil
	c.mu.Unlock()

	if conn != nil {
		conn.Close(websocket.StatusNormalClosure, "client disconnect")
		debug.Log("transport: disconnected")
	}
}

// IsConnected returns current liveness.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Send pushes one event to the wire.
func (c *Client) Send(event string, payload any) error {
	c.mu.Lock()
	conn, codec, connected := c.conn, c.codec, c.connected
	c.mu.Unlock()

	if conn == nil || !connected {
		return ErrNotConnected
	}

	data, err := codec.EncodeEnvelope(event, payload)
	if err != nil {
		return err
	}

	msgType := websocket.MessageText
	if codec.Binary() {
		msgType = websocket.MessageBinary
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := conn.Write(ctx, msgType, data); err != nil {
		return fmt.Errorf("sending %s: %w", event, err)
	}
	return nil
}

// On registers a handler for an event. Registration requires a live
// connection object.
func (c *Client) On(event string, handler Handler) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}
	c.listeners[event] = append(c.listeners[event], handler)
	return nil
}

// Off removes all handlers registered for an event.
func (c *Client) Off(event string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}
	delete(c.listeners, event)
	return nil
}

// RemoveAllListeners removes every registered handler.
func (c *Client) RemoveAllListeners() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}
	c.listeners = make(map[string][]Handler)
	return nil
}

// Decode unmarshals raw payload bytes using the negotiated encoding.
func (c *Client) Decode(data []byte, v any) error {
	c.mu.Lock()
	codec := c.codec
	c.mu.Unlock()
	if codec == nil {
		codec = c.codecs[0]
	}
	return codec.Unmarshal(data, v)
}

// readLoop reads frames until the connection drops, then redials
// within the retry budget. Listeners survive a reconnect; only
// Disconnect releases them.
func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.Read(context.Background())
		if err == nil {
			c.dispatch(data)
			continue
		}

		c.mu.Lock()
		stale := c.conn != conn
		closing := c.closing
		if !stale {
			c.connected = false
		}
		c.mu.Unlock()
		if stale || closing {
			return
		}

		debug.Log("transport: connection lost: %v", err)

		newConn, codec, dialErr := c.dial(context.Background())

		c.mu.Lock()
		if c.closing || c.conn != conn {
			// Disconnected (or superseded) while redialing.
			c.mu.Unlock()
			if dialErr == nil {
				newConn.Close(websocket.StatusNormalClosure, "superseded")
			}
			return
		}
		if dialErr != nil {
			c.conn = nil
			c.mu.Unlock()
			debug.Error("transport", dialErr, "reconnect failed")
			return
		}
		c.conn = newConn
		c.codec = codec
		c.connected = true
		c.mu.Unlock()

		debug.Log("transport: reconnected (%s)", codec.Subprotocol())
		conn = newConn
	}
}

// dispatch decodes one frame and invokes the registered handlers in
// registration order.
func (c *Client) dispatch(data []byte) {
	c.mu.Lock()
	codec := c.codec
	c.mu.Unlock()
	if codec == nil {
		return
	}

	event, payload, err := codec.DecodeEnvelope(data)
	if err != nil {
		debug.Error("transport", err, "decoding frame")
		return
	}

	c.mu.Lock()
	handlers := append([]Handler(nil), c.listeners[event]...)
	c.mu.Unlock()

	if len(handlers) == 0 {
		debug.Log("transport: no listener for %q", event)
		return
	}
	for _, h := range handlers {
		h(payload)
	}
}
