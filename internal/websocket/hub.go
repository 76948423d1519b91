package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/lumenkind/talespin/server/internal/coordinator"
	"github.com/lumenkind/talespin/server/internal/events"
	"github.com/lumenkind/talespin/server/internal/session"
	"github.com/lumenkind/talespin/server/usecase"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024 // 512KB for audio payloads
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Demo deployment: all origins accepted.
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Hub maintains the set of connected clients, one per session.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client

	coord     *coordinator.Coordinator
	lifecycle *usecase.Lifecycle
	logger    *zap.Logger
}

// NewHub creates a hub over the coordinator and lifecycle manager.
func NewHub(coord *coordinator.Coordinator, lifecycle *usecase.Lifecycle, logger *zap.Logger) *Hub {
	return &Hub{
		clients:   make(map[string]*Client),
		coord:     coord,
		lifecycle: lifecycle,
		logger:    logger,
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c.sessionID] = c
	h.mu.Unlock()
	h.logger.Info("Client connected", zap.String("sessionID", c.sessionID))
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if current, ok := h.clients[c.sessionID]; ok && current == c {
		delete(h.clients, c.sessionID)
	}
	h.mu.Unlock()
	h.logger.Info("Client disconnected", zap.String("sessionID", c.sessionID))
}

// Client bridges one websocket connection and its session.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	session *session.Session
	logger  *zap.Logger

	sessionID string

	closeOnce sync.Once
	closed    chan struct{}
}

var _ events.Sender = (*Client)(nil)

// Send marshals the event and queues it for the write pump. Sends on a
// closed or congested connection are dropped silently; the transport
// contract is best-effort delivery, never an error.
func (c *Client) Send(event events.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		c.logger.Error("Failed to marshal event",
			zap.String("sessionID", c.sessionID),
			zap.String("eventType", event.EventType()),
			zap.Error(err))
		return
	}
	select {
	case <-c.closed:
	case c.send <- payload:
	default:
		c.logger.Warn("Dropping event on congested connection",
			zap.String("sessionID", c.sessionID),
			zap.String("eventType", event.EventType()))
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.closed) })
}

// Attach upgrades the request and binds the connection to its session. The
// session must already be bootstrapped.
func Attach(hub *Hub, c echo.Context, sess *session.Session, logger *zap.Logger) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	client := &Client{
		hub:       hub,
		conn:      conn,
		send:      make(chan []byte, 256),
		session:   sess,
		logger:    logger,
		sessionID: sess.ID,
		closed:    make(chan struct{}),
	}
	sess.AttachTransport(client)
	hub.register(client)

	go client.writePump()
	go client.readPump()
	return nil
}

// readPump pumps inbound messages into the coordinator. The connection
// closing tears the session down: transport disconnect and explicit teardown
// both mark the session unusable, whichever comes first.
func (c *Client) readPump() {
	defer func() {
		c.close()
		c.hub.unregister(c)
		c.conn.Close()
		if _, err := c.hub.lifecycle.Teardown(context.Background(), c.sessionID); err != nil {
			c.logger.Error("Teardown after disconnect failed",
				zap.String("sessionID", c.sessionID),
				zap.Error(err))
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error",
					zap.String("sessionID", c.sessionID),
					zap.Error(err))
			}
			return
		}
		c.handleMessage(data)
	}
}

// handleMessage routes one inbound message.
func (c *Client) handleMessage(data []byte) {
	msg, err := ParseInbound(data)
	if err != nil {
		c.logger.Warn("Rejecting inbound message",
			zap.String("sessionID", c.sessionID),
			zap.Error(err))
		return
	}

	switch msg.Type {
	case InboundText:
		c.hub.coord.HandleText(c.session, msg.Text)
	case InboundAudio:
		for _, frame := range msg.Frames() {
			c.hub.coord.HandleAudioFrame(c.session, frame)
		}
	case InboundAudioSessionEnd:
		c.hub.coord.HandleAudioSessionEnd(c.session)
	}
}

// writePump pumps queued events to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.closed:
			c.conn.WriteControl(websocket.CloseMessage, []byte{}, time.Now().Add(writeWait))
			return

		case payload := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.logger.Error("Failed to write message",
					zap.String("sessionID", c.sessionID),
					zap.Error(err))
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
