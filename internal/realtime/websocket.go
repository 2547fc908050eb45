package realtime

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/bissquit/statusroom/internal/pkg/ctxlog"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// Inbound message types.
const (
	MessageJoinRoom  = "join-org-room"
	MessageLeaveRoom = "leave-org-room"
	MessagePing      = "ping"
)

// Outbound events besides EventUpdateServices.
const (
	EventPong  = "pong"
	EventError = "error"
)

// Connection errors.
var (
	ErrConnClosed     = errors.New("connection closed")
	ErrSendBufferFull = errors.New("send buffer full")
)

// Config holds websocket transport settings.
type Config struct {
	SendBuffer     int
	WriteTimeout   time.Duration
	PongTimeout    time.Duration
	PingInterval   time.Duration
	MaxMessageSize int64
	InboundRate    float64
	InboundBurst   int
	AllowedOrigins []string
}

func (c Config) withDefaults() Config {
	if c.SendBuffer <= 0 {
		c.SendBuffer = 16
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.PongTimeout <= 0 {
		c.PongTimeout = 60 * time.Second
	}
	if c.PingInterval <= 0 || c.PingInterval >= c.PongTimeout {
		c.PingInterval = c.PongTimeout * 9 / 10
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = 4096
	}
	if c.InboundRate <= 0 {
		c.InboundRate = 5
	}
	if c.InboundBurst <= 0 {
		c.InboundBurst = 10
	}
	return c
}

// InboundMessage is a message received from a viewer.
type InboundMessage struct {
	Type           string `json:"type"`
	OrganizationID string `json:"organization_id,omitempty"`
}

// Handler upgrades HTTP requests to websocket connections attached to a hub.
type Handler struct {
	hub      *Hub
	config   Config
	upgrader websocket.Upgrader
}

// NewHandler creates a websocket handler.
func NewHandler(hub *Hub, config Config) *Handler {
	config = config.withDefaults()
	return &Handler{
		hub:    hub,
		config: config,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(config.AllowedOrigins),
		},
	}
}

// ServeHTTP handles GET /ws.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := ctxlog.FromContext(r.Context())

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := newClient(ws, h.config)
	// Detach from the request so middleware timeouts do not end the session.
	ctx := ctxlog.With(context.WithoutCancel(r.Context()), "conn_id", c.id)
	logger = ctxlog.FromContext(ctx)

	connectionsActive.Inc()
	logger.Info("websocket connected")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.writePump(h.hub.Done())
	}()

	h.readLoop(ctx, c)

	h.hub.Leave(c)
	c.close()
	wg.Wait()

	connectionsActive.Dec()
	logger.Info("websocket disconnected")
}

func (h *Handler) readLoop(ctx context.Context, c *client) {
	logger := ctxlog.FromContext(ctx)
	limiter := rate.NewLimiter(rate.Limit(h.config.InboundRate), h.config.InboundBurst)

	c.ws.SetReadLimit(h.config.MaxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(h.config.PongTimeout))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(h.config.PongTimeout))
	})

	for {
		var msg InboundMessage
		if err := c.ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("websocket read failed", "error", err)
			}
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(h.config.PongTimeout))

		if !limiter.Allow() {
			_ = c.Send(errorMessage("rate limit exceeded"))
			continue
		}

		h.dispatch(ctx, c, msg)

		select {
		case <-c.done:
			return
		default:
		}
	}
}

func (h *Handler) dispatch(ctx context.Context, c *client, msg InboundMessage) {
	switch msg.Type {
	case MessageJoinRoom:
		if _, err := uuid.Parse(msg.OrganizationID); err != nil {
			_ = c.Send(errorMessage("invalid organization_id"))
			return
		}
		if err := h.hub.Join(ctx, c, msg.OrganizationID); err != nil {
			ctxlog.FromContext(ctx).Warn("failed to join room",
				"organization_id", msg.OrganizationID,
				"error", err,
			)
			_ = c.Send(errorMessage("failed to join room"))
		}
	case MessageLeaveRoom:
		h.hub.Leave(c)
	case MessagePing:
		_ = c.Send(Message{Event: EventPong})
	default:
		_ = c.Send(errorMessage("unknown message type"))
	}
}

func errorMessage(message string) Message {
	return Message{Event: EventError, Data: map[string]string{"message": message}}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 || slices.Contains(allowed, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(allowed, origin)
	}
}

// client is a websocket connection with a bounded outbound queue.
type client struct {
	id     string
	ws     *websocket.Conn
	config Config

	send      chan Message
	done      chan struct{}
	closeOnce sync.Once
}

func newClient(ws *websocket.Conn, config Config) *client {
	return &client{
		id:     uuid.NewString(),
		ws:     ws,
		config: config,
		send:   make(chan Message, config.SendBuffer),
		done:   make(chan struct{}),
	}
}

func (c *client) ID() string {
	return c.id
}

// Send queues msg without blocking. A full queue closes the connection.
func (c *client) Send(msg Message) error {
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}

	select {
	case c.send <- msg:
		return nil
	default:
		recordDropped("buffer_full")
		c.close()
		return ErrSendBufferFull
	}
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// writePump owns every data write to the socket. Closing the socket on exit
// unblocks the read loop.
func (c *client) writePump(shutdown <-chan struct{}) {
	ticker := time.NewTicker(c.config.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			if err := c.ws.WriteJSON(msg); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.config.WriteTimeout)); err != nil {
				c.close()
				return
			}
		case <-shutdown:
			c.writeClose(websocket.CloseGoingAway, "server shutting down")
			c.close()
			return
		case <-c.done:
			c.writeClose(websocket.CloseNormalClosure, "")
			return
		}
	}
}

func (c *client) writeClose(code int, text string) {
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, text),
		time.Now().Add(c.config.WriteTimeout))
}
