package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/tbourn/go-marketplace-chat/internal/config"
	"github.com/tbourn/go-marketplace-chat/internal/domain"
)

// Client is one authenticated websocket connection. Its identity is fixed at
// handshake. rooms is owned by the read goroutine.
type Client struct {
	id       string
	identity domain.Identity
	conn     *websocket.Conn
	cfg      config.WSConfig

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	rooms   map[string]struct{}
	limiter *rate.Limiter
	log     zerolog.Logger
}

func newClient(id string, conn *websocket.Conn, identity domain.Identity, cfg config.WSConfig, lg zerolog.Logger) *Client {
	buf := cfg.SendBuffer
	if buf <= 0 {
		buf = 256
	}
	limit := rate.Inf
	if cfg.EventRPS > 0 {
		limit = rate.Limit(cfg.EventRPS)
	}
	return &Client{
		id:       id,
		identity: identity,
		conn:     conn,
		cfg:      cfg,
		send:     make(chan []byte, buf),
		done:     make(chan struct{}),
		rooms:    make(map[string]struct{}),
		limiter:  rate.NewLimiter(limit, max(cfg.EventBurst, 1)),
		log: lg.With().
			Str("conn_id", id).
			Str("user_id", identity.UserID).
			Str("role", string(identity.Role)).
			Logger(),
	}
}

// ID returns the connection id.
func (c *Client) ID() string { return c.id }

// Identity returns the authenticated caller.
func (c *Client) Identity() domain.Identity { return c.identity }

// Emit encodes and queues an event. It never blocks: when the send buffer is
// full the frame is dropped.
func (c *Client) Emit(event string, data any) bool {
	b, err := encode(event, data)
	if err != nil {
		c.log.Error().Err(err).Str("event", event).Msg("encode frame")
		return false
	}
	return c.emitRaw(b)
}

func (c *Client) emitRaw(b []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- b:
		return true
	default:
		wsDropped.Inc()
		c.log.Warn().Msg("send buffer full, dropping frame")
		return false
	}
}

func (c *Client) emitError(msg string) {
	c.Emit(EventError, ErrorPayload{Message: msg})
}

// close stops the write pump. Safe to call more than once.
func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// readPump reads frames until the peer goes away and hands each to handle.
func (c *Client) readPump(handle func([]byte)) {
	if c.cfg.MaxMessageBytes > 0 {
		c.conn.SetReadLimit(c.cfg.MaxMessageBytes)
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug().Err(err).Msg("read")
			}
			return
		}
		handle(data)
	}
}

// writePump drains the send buffer and keeps the connection alive with pings.
// When ctx ends (server shutdown) the peer is told the server is going away.
func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.PingPeriod())
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case <-ctx.Done():
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return
		}
	}
}

// Reject tells an unauthenticated peer why and closes the connection.
func Reject(conn *websocket.Conn, writeWait time.Duration, msg string) {
	defer conn.Close()
	b, err := encode(EventError, ErrorPayload{Message: msg})
	if err != nil {
		return
	}
	deadline := time.Now().Add(writeWait)
	_ = conn.SetWriteDeadline(deadline)
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		return
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, msg), deadline)
}
