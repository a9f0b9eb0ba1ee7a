package actuator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hallgrim/golem/internal/golemerr"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024 // 512KB
)

// frame is the wire envelope. Requests carry id/type/args; responses
// echo the id alongside ok/data/error.
type frame struct {
	ID    uint64          `json:"id"`
	Type  string          `json:"type,omitempty"`
	Args  map[string]any  `json:"args,omitempty"`
	OK    *bool           `json:"ok,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
}

// WSClient is the websocket implementation of Client. Every dispatch
// carries a monotonically increasing id used to correlate the response
// frame and to trace the command in logs.
type WSClient struct {
	conn   *websocket.Conn
	logger *slog.Logger

	nextID  atomic.Uint64
	send    chan frame
	done    chan struct{}
	closeMu sync.Once

	mu      sync.Mutex
	pending map[uint64]chan *Response
}

// WSClientOption customizes a WSClient.
type WSClientOption func(*WSClient)

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) WSClientOption {
	return func(c *WSClient) { c.logger = l }
}

// DialWS connects to the actuator bridge at url.
func DialWS(ctx context.Context, url string, opts ...WSClientOption) (*WSClient, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial actuator %s: %w", url, err)
	}
	return NewWSClient(conn, opts...), nil
}

// NewWSClient wraps an established connection. Used directly by tests.
func NewWSClient(conn *websocket.Conn, opts ...WSClientOption) *WSClient {
	c := &WSClient{
		conn:    conn,
		logger:  slog.Default(),
		send:    make(chan frame, 16),
		done:    make(chan struct{}),
		pending: make(map[uint64]chan *Response),
	}
	for _, opt := range opts {
		opt(c)
	}

	go c.readPump()
	go c.writePump()
	return c
}

// Dispatch sends one command and waits for its response frame.
func (c *WSClient) Dispatch(ctx context.Context, cmd Command) (*Response, error) {
	id := c.nextID.Add(1)
	ch := make(chan *Response, 1)

	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	start := time.Now()
	select {
	case c.send <- frame{ID: id, Type: cmd.Type, Args: cmd.Args}:
	case <-c.done:
		return nil, golemerr.ErrActuatorClosed()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case resp := <-ch:
		c.logger.Debug("actuator dispatch",
			"id", id,
			"type", cmd.Type,
			"ok", resp.OK,
			"elapsed", time.Since(start))
		return resp, nil
	case <-c.done:
		return nil, golemerr.ErrActuatorClosed()
	case <-ctx.Done():
		c.logger.Warn("actuator dispatch abandoned",
			"id", id,
			"type", cmd.Type,
			"elapsed", time.Since(start))
		return nil, ctx.Err()
	}
}

// Close tears down the connection and fails all pending dispatches.
func (c *WSClient) Close() error {
	c.closeMu.Do(func() {
		close(c.done)
		c.conn.Close()
	})
	return nil
}

// readPump reads response frames and routes them to waiting dispatches.
func (c *WSClient) readPump() {
	defer c.Close()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var f frame
		if err := c.conn.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Error("actuator read failed", "error", err)
			}
			return
		}

		resp := &Response{Data: f.Data, Error: f.Error}
		if f.OK != nil {
			resp.OK = *f.OK
		}

		c.mu.Lock()
		ch, ok := c.pending[f.ID]
		c.mu.Unlock()
		if !ok {
			c.logger.Warn("unmatched actuator frame", "id", f.ID)
			continue
		}
		// Non-blocking: a duplicate frame for a still-pending id must
		// not wedge the read loop behind the filled response buffer.
		select {
		case ch <- resp:
		default:
			c.logger.Warn("duplicate actuator frame dropped", "id", f.ID)
		}
	}
}

// writePump serializes all writes onto one goroutine and keeps the
// connection alive with pings.
func (c *WSClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case f := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(f); err != nil {
				c.logger.Error("actuator write failed", "id", f.ID, "error", err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
