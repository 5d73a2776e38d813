// internal/server/handlers/websocket.go

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"locale/internal/adapter/eventbus"
	"locale/internal/domain/event"
	"locale/internal/domain/session"
	"locale/internal/service/assistant"
	"locale/internal/service/search"
)

// WebSocketConfig contains configuration for WebSocket connections
type WebSocketConfig struct {
	// Time allowed to write a message to the peer
	WriteWait time.Duration

	// Time allowed to read the next pong message from the peer
	PongWait time.Duration

	// Send pings to peer with this period
	PingPeriod time.Duration

	// Maximum message size allowed from peer
	MaxMessageSize int64

	// Time allowed for a search or chat started over the socket
	RequestTimeout time.Duration
}

// DefaultWebSocketConfig returns the default WebSocket configuration
func DefaultWebSocketConfig() WebSocketConfig {
	return WebSocketConfig{
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		PingPeriod:     (60 * time.Second * 9) / 10,
		MaxMessageSize: 64 * 1024,
		RequestTimeout: 2 * time.Minute,
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler pushes session notifications to the browser and accepts
// search and chat commands
type WebSocketHandler struct {
	store     SessionStore
	bus       eventbus.Bus
	search    *search.Service
	assistant *assistant.Service
	config    WebSocketConfig
	logger    *zap.Logger
}

// NewWebSocketHandler creates a new websocket handler
func NewWebSocketHandler(
	store SessionStore,
	bus eventbus.Bus,
	searchService *search.Service,
	assistantService *assistant.Service,
	config WebSocketConfig,
	logger *zap.Logger,
) *WebSocketHandler {
	return &WebSocketHandler{
		store:     store,
		bus:       bus,
		search:    searchService,
		assistant: assistantService,
		config:    config,
		logger:    logger.Named("websocket"),
	}
}

// WebSocketClient represents a connected WebSocket client
type WebSocketClient struct {
	handler     *WebSocketHandler
	conn        *websocket.Conn
	send        chan []byte
	done        chan struct{}
	closeOnce   sync.Once
	sessionID   string
	unsubscribe func()
	ctx         context.Context
	cancel      context.CancelFunc
}

// incomingMessage is a command sent by the browser
type incomingMessage struct {
	Type    string `json:"type"`
	Strict  bool   `json:"strict,omitempty"`
	Content string `json:"content,omitempty"`
}

// Serve upgrades the connection and subscribes it to the session's notifications
func (h *WebSocketHandler) Serve(w http.ResponseWriter, r *http.Request) {
	st, ok := loadSession(w, r, h.store)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Failed to upgrade to WebSocket", zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	client := &WebSocketClient{
		handler:   h,
		conn:      conn,
		send:      make(chan []byte, 64),
		done:      make(chan struct{}),
		sessionID: st.ID(),
		ctx:       ctx,
		cancel:    cancel,
	}

	unsubscribe, err := h.bus.Subscribe(st.ID(), func(n session.Notification) {
		client.sendJSON(n)
	})
	if err != nil {
		h.logger.Error("Failed to subscribe to session notifications", zap.String("session_id", st.ID()), zap.Error(err))
		client.closeConnection()
		return
	}
	client.unsubscribe = unsubscribe

	go client.writePump()
	go client.readPump()

	client.sendJSON(map[string]interface{}{
		"type":    "welcome",
		"session": st.Snapshot(),
		"time":    time.Now().UTC(),
	})

	h.logger.Info("New WebSocket connection", zap.String("session_id", st.ID()))
}

// readPump reads commands until the peer goes away
func (c *WebSocketClient) readPump() {
	config := c.handler.config

	defer c.closeConnection()

	c.conn.SetReadLimit(config.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(config.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(config.PongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.handler.logger.Warn("WebSocket error", zap.String("session_id", c.sessionID), zap.Error(err))
			}
			return
		}

		c.processIncomingMessage(message)
	}
}

// writePump writes queued messages and keeps the connection alive
func (c *WebSocketClient) writePump() {
	config := c.handler.config
	ticker := time.NewTicker(config.PingPeriod)
	defer func() {
		ticker.Stop()
		c.closeConnection()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// processIncomingMessage runs a search or chat command in the background;
// results arrive as notifications and a direct reply
func (c *WebSocketClient) processIncomingMessage(message []byte) {
	var msg incomingMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.sendError("Invalid message", err)
		return
	}

	switch msg.Type {
	case "search":
		go c.runSearch(msg.Strict)
	case "chat":
		go c.runChat(msg.Content)
	case "ping":
		c.sendJSON(map[string]string{"type": "pong"})
	default:
		c.sendError("Unknown message type: "+msg.Type, nil)
	}
}

func (c *WebSocketClient) runSearch(strict bool) {
	ctx, cancel := context.WithTimeout(c.ctx, c.handler.config.RequestTimeout)
	defer cancel()

	outcome, err := c.handler.search.Search(ctx, c.sessionID, search.Options{Strict: strict})
	if err != nil {
		c.sendError("Search failed", err)
		return
	}
	c.sendJSON(map[string]interface{}{"type": "search.result", "outcome": outcome})
}

func (c *WebSocketClient) runChat(content string) {
	ctx, cancel := context.WithTimeout(c.ctx, c.handler.config.RequestTimeout)
	defer cancel()

	reply, err := c.handler.assistant.Chat(ctx, c.sessionID, content)
	if err != nil {
		c.sendError("Chat failed", err)
		return
	}
	c.sendJSON(map[string]interface{}{"type": "chat.reply", "reply": reply})
}

func (c *WebSocketClient) sendError(message string, err error) {
	resp := errorResponse{Error: message}
	if err != nil {
		resp = errorResponse{Error: message + ": " + err.Error(), Kind: event.KindOf(err)}
	}
	c.sendJSON(map[string]interface{}{"type": "error", "error": resp.Error, "kind": resp.Kind})
}

// sendJSON queues v unless the connection is closing. Slow consumers lose
// messages rather than block the publisher.
func (c *WebSocketClient) sendJSON(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		c.handler.logger.Error("Failed to marshal WebSocket message", zap.Error(err))
		return
	}

	select {
	case <-c.done:
	case c.send <- data:
	default:
		c.handler.logger.Warn("Dropping WebSocket message for slow client", zap.String("session_id", c.sessionID))
	}
}

// closeConnection releases the subscription and the socket exactly once
func (c *WebSocketClient) closeConnection() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.cancel()
		if c.unsubscribe != nil {
			c.unsubscribe()
		}
		c.conn.Close()
		c.handler.logger.Info("WebSocket connection closed", zap.String("session_id", c.sessionID))
	})
}
