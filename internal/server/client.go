package server

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"candleflow/internal/distributor"
	"candleflow/internal/domain"
	"candleflow/internal/ports"
	"candleflow/internal/subscription"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024
	sendBufferSize = 64
)

// controlMessage is what a client sends over the socket.
type controlMessage struct {
	Op       string `json:"op"` // "subscribe" | "unsubscribe"
	Symbol   string `json:"symbol"`
	Interval string `json:"interval,omitempty"`
}

// envelope is what the server sends back.
type envelope struct {
	Type   string         `json:"type"` // "candle" | "subscribed" | "unsubscribed" | "error"
	Group  string         `json:"group,omitempty"`
	Candle *domain.Candle `json:"candle,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// Client is one connected WebSocket session. It owns the connection: the read
// pump consumes control messages, the write pump is the only writer. Candle
// delivery goes through a buffered channel; a client that cannot keep up has
// candles dropped rather than stalling the fan-out.
type Client struct {
	id          string
	conn        *websocket.Conn
	registry    *subscription.Registry
	distributor *distributor.Distributor
	logger      ports.Logger

	send      chan envelope
	done      chan struct{}
	closeOnce sync.Once
}

func newClient(id string, conn *websocket.Conn, registry *subscription.Registry, dist *distributor.Distributor, logger ports.Logger) *Client {
	return &Client{
		id:          id,
		conn:        conn,
		registry:    registry,
		distributor: dist,
		logger:      logger,
		send:        make(chan envelope, sendBufferSize),
		done:        make(chan struct{}),
	}
}

// ID returns the client's user identifier.
func (c *Client) ID() string { return c.id }

// Send queues a finalized candle for delivery. Never blocks: a full buffer
// fails the delivery for this client only.
func (c *Client) Send(groupKey string, candle domain.Candle) error {
	msg := envelope{Type: "candle", Group: groupKey, Candle: &candle}
	select {
	case <-c.done:
		return fmt.Errorf("client %s: connection closed", c.id)
	case c.send <- msg:
		return nil
	default:
		return fmt.Errorf("client %s: send buffer full, candle dropped", c.id)
	}
}

// run services the connection until it closes, then detaches the client and
// drops its subscriptions.
func (c *Client) run(ctx context.Context) {
	c.distributor.Attach(c)
	defer func() {
		c.close()
		c.distributor.Detach(c.id)
		c.conn.Close()
	}()

	go c.writePump()
	c.readPump(ctx)
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Client) readPump(ctx context.Context) {
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug(ctx, "WebSocket read failed", map[string]interface{}{"userID": c.id, "error": err.Error()})
			}
			return
		}

		var msg controlMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.reply(envelope{Type: "error", Error: "malformed control message"})
			continue
		}
		c.handleControl(ctx, msg)
	}
}

func (c *Client) handleControl(ctx context.Context, msg controlMessage) {
	switch msg.Op {
	case "subscribe":
		interval, ok := domain.ParseInterval(msg.Interval)
		if !ok {
			c.reply(envelope{Type: "error", Error: fmt.Sprintf("unsupported interval %q", msg.Interval)})
			return
		}
		if msg.Symbol == "" {
			c.reply(envelope{Type: "error", Error: "symbol is required"})
			return
		}
		c.registry.Subscribe(c.id, msg.Symbol, interval)
		c.reply(envelope{Type: "subscribed", Group: domain.GroupKey(msg.Symbol, interval)})

	case "unsubscribe":
		if msg.Symbol == "" {
			c.reply(envelope{Type: "error", Error: "symbol is required"})
			return
		}
		// Drops the symbol across all intervals. Unknown symbols are a no-op.
		c.registry.Unsubscribe(c.id, msg.Symbol)
		c.reply(envelope{Type: "unsubscribed", Group: domain.GroupKey(msg.Symbol, "")})

	default:
		c.reply(envelope{Type: "error", Error: fmt.Sprintf("unknown op %q", msg.Op)})
	}
}

func (c *Client) reply(msg envelope) {
	select {
	case <-c.done:
	case c.send <- msg:
	default:
		// Control replies share the candle buffer; drop under pressure.
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
