package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rmarchant/polyscout/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// pingPeriod sends pings to the peer at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// handshakeTimeout bounds the WebSocket dial.
	handshakeTimeout = 15 * time.Second

	// updateBuffer is the capacity of the per-connection update channel.
	updateBuffer = 256
)

// WSDialer opens market-channel WebSocket connections to the Polymarket CLOB
// real-time data feed. Each Dial yields one connection subscribed to a fixed
// token set; reconnection is the caller's responsibility.
type WSDialer struct {
	wsURL string
}

// NewWSDialer creates a dialer for the given WebSocket endpoint.
//
// wsURL is the market channel endpoint, e.g.
// "wss://ws-subscriptions-clob.polymarket.com/ws/market".
func NewWSDialer(wsURL string) *WSDialer {
	return &WSDialer{wsURL: wsURL}
}

// Dial connects and subscribes to book updates for the given token ids. The
// returned connection streams updates until it fails or is closed.
func (d *WSDialer) Dial(ctx context.Context, tokenIDs []string) (*WSConn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, d.wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("polymarket/ws: connect: %w", err)
	}

	cmd := WSCommand{
		AssetsIDs: tokenIDs,
		Type:      "market",
	}
	payload, err := json.Marshal(cmd)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("polymarket/ws: marshal subscribe: %w", err)
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		conn.Close()
		return nil, fmt.Errorf("polymarket/ws: subscribe: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	c := &WSConn{
		conn:    conn,
		updates: make(chan domain.BookUpdate, updateBuffer),
		errc:    make(chan error, 1),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	go c.pingLoop()

	return c, nil
}

// WSConn is one live market-channel connection. Updates are consumed via
// Next; a read failure surfaces as an error from Next wrapped with
// domain.ErrWSDisconnect.
type WSConn struct {
	conn    *websocket.Conn
	updates chan domain.BookUpdate
	errc    chan error

	done      chan struct{}
	closeOnce sync.Once
}

// Next blocks until the next book update, a connection failure, ctx
// cancellation, or Close.
func (c *WSConn) Next(ctx context.Context) (domain.BookUpdate, error) {
	select {
	case u := <-c.updates:
		return u, nil
	case err := <-c.errc:
		return domain.BookUpdate{}, err
	case <-c.done:
		return domain.BookUpdate{}, domain.ErrClosed
	case <-ctx.Done():
		return domain.BookUpdate{}, ctx.Err()
	}
}

// Close tears the connection down. Safe to call more than once.
func (c *WSConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait),
		)
		err = c.conn.Close()
	})
	return err
}

// --------------------------------------------------------------------------
// Internal loops
// --------------------------------------------------------------------------

// readLoop reads frames off the socket, converts them to domain updates, and
// delivers them on the updates channel until the connection fails or Close is
// called. It runs in its own goroutine.
func (c *WSConn) readLoop() {
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				c.errc <- fmt.Errorf("polymarket/ws: read: %w (%v)", domain.ErrWSDisconnect, err)
			}
			return
		}

		for _, u := range parseFrame(message) {
			select {
			case c.updates <- u:
			case <-c.done:
				return
			}
		}
	}
}

// pingLoop sends periodic pings to keep the connection alive.
func (c *WSConn) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// parseFrame converts one raw WebSocket frame into zero or more domain book
// updates. The feed delivers either a single JSON object or a JSON array of
// objects; unparseable frames and unknown event types are dropped silently.
func parseFrame(raw []byte) []domain.BookUpdate {
	var batch []json.RawMessage
	if err := json.Unmarshal(raw, &batch); err != nil {
		batch = []json.RawMessage{raw}
	}

	var out []domain.BookUpdate
	for _, msg := range batch {
		var env WSEnvelope
		if err := json.Unmarshal(msg, &env); err != nil {
			continue
		}

		switch env.EventType {
		case "book":
			var book WSBookMessage
			if err := json.Unmarshal(msg, &book); err != nil {
				continue
			}
			out = append(out, book.ToDomainUpdate())

		case "price_change":
			var pc WSPriceChangeMessage
			if err := json.Unmarshal(msg, &pc); err != nil {
				continue
			}
			out = append(out, pc.ToDomainUpdates()...)
		}
	}
	return out
}
