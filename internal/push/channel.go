package push

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"
)

// Channel is an established push connection. Events is closed after the
// final Disconnected event has been delivered.
type Channel interface {
	Events() <-chan Event
	SendTyping(ctx context.Context, receiverID string, isTyping bool) error
	Close() error
}

// Dialer opens push channels.
type Dialer interface {
	Dial(ctx context.Context) (Channel, error)
}

// TokenSource supplies the credential presented during the handshake.
type TokenSource interface {
	Token() string
}

// ErrClosed is returned when writing to a channel that has been closed.
var ErrClosed = errors.New("push channel closed")

// HandshakeError is returned by Dial when the server rejected the upgrade.
type HandshakeError struct {
	Status int
	Err    error
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("push handshake rejected (HTTP %d): %v", e.Status, e.Err)
}

func (e *HandshakeError) Unwrap() error { return e.Err }

const (
	eventBuffer  = 64
	readLimit    = 1 << 20
	closeTimeout = 5 * time.Second
)

// WSDialer dials the push endpoint over WebSocket.
type WSDialer struct {
	URL    string
	Tokens TokenSource
	// HTTPClient is used for the upgrade request. Nil means http.DefaultClient.
	HTTPClient *http.Client
	// Heartbeat is the interval between pings. Zero disables pinging.
	Heartbeat time.Duration
	Logger    *zap.Logger
}

// Dial connects and starts reading. The returned channel lives until Close is
// called or the connection drops, independent of ctx.
func (d *WSDialer) Dial(ctx context.Context) (Channel, error) {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}

	header := http.Header{}
	if d.Tokens != nil {
		if tok := d.Tokens.Token(); tok != "" {
			header.Set("Authorization", "Bearer "+tok)
		}
	}

	conn, resp, err := websocket.Dial(ctx, d.URL, &websocket.DialOptions{
		HTTPClient: d.HTTPClient,
		HTTPHeader: header,
	})
	if err != nil {
		if resp != nil && resp.StatusCode != http.StatusSwitchingProtocols {
			return nil, &HandshakeError{Status: resp.StatusCode, Err: err}
		}
		return nil, fmt.Errorf("dial push channel: %w", err)
	}
	conn.SetReadLimit(readLimit)

	runCtx, cancel := context.WithCancel(context.Background())
	c := &wsChannel{
		conn:   conn,
		events: make(chan Event, eventBuffer),
		cancel: cancel,
		log:    log,
	}
	go c.readLoop(runCtx)
	if d.Heartbeat > 0 {
		go c.heartbeatLoop(runCtx, d.Heartbeat)
	}
	log.Info("push channel connected", zap.String("url", d.URL))
	return c, nil
}

type wsChannel struct {
	conn   *websocket.Conn
	events chan Event
	cancel context.CancelFunc
	log    *zap.Logger

	mu     sync.Mutex
	closed bool
}

func (c *wsChannel) Events() <-chan Event {
	return c.events
}

func (c *wsChannel) SendTyping(ctx context.Context, receiverID string, isTyping bool) error {
	if c.isClosed() {
		return ErrClosed
	}
	data, err := EncodeTyping(receiverID, isTyping)
	if err != nil {
		return fmt.Errorf("encode typing: %w", err)
	}
	if err := c.conn.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("write typing: %w", err)
	}
	return nil
}

// Close performs a client-initiated close. The read loop then reports
// ReasonClientDisconnect. Calling Close more than once is a no-op.
func (c *wsChannel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- c.conn.Close(websocket.StatusNormalClosure, "client disconnect") }()

	var err error
	select {
	case err = <-done:
	case <-time.After(closeTimeout):
		err = c.conn.CloseNow()
	}
	c.cancel()
	if err != nil && websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("close push channel: %w", err)
	}
	return nil
}

func (c *wsChannel) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *wsChannel) readLoop(ctx context.Context) {
	defer close(c.events)
	defer c.cancel()

	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			reason := c.disconnectReason(err)
			c.log.Info("push channel disconnected", zap.String("reason", reason), zap.Error(err))
			c.events <- Disconnected{Reason: reason}
			return
		}

		evt, err := Decode(data)
		if err != nil {
			if errors.Is(err, ErrUnknownEvent) {
				c.log.Debug("ignoring push event", zap.Error(err))
			} else {
				c.log.Warn("malformed push event", zap.Error(err), zap.Int("bytes", len(data)))
			}
			continue
		}

		select {
		case c.events <- evt:
		case <-ctx.Done():
			c.events <- Disconnected{Reason: c.disconnectReason(ctx.Err())}
			return
		}
	}
}

func (c *wsChannel) disconnectReason(err error) string {
	switch {
	case c.isClosed():
		return ReasonClientDisconnect
	case websocket.CloseStatus(err) != -1:
		return ReasonServerDisconnect
	default:
		return ReasonTransportClose
	}
}

func (c *wsChannel) heartbeatLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, interval)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil && ctx.Err() == nil {
				c.log.Warn("push heartbeat failed", zap.Error(err))
			}
		}
	}
}
