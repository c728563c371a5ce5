// Package websocket pushes change events to connected browsers. Each client
// belongs to one session and only sees that session's events.
package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medbliss/medbliss/internal/platform/auth"
	"github.com/medbliss/medbliss/internal/platform/events"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 64
)

// ClientMessage narrows or widens the topics a client receives.
type ClientMessage struct {
	Action string   `json:"action"`
	Topics []string `json:"topics"`
}

// Client is one websocket connection. It starts subscribed to every topic.
type Client struct {
	ID        string
	SessionID string
	Send      chan []byte

	mu     sync.RWMutex
	topics map[string]bool
}

func NewClient(sessionID string) *Client {
	c := &Client{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Send:      make(chan []byte, sendBuffer),
		topics:    make(map[string]bool, len(events.Topics)),
	}
	for _, t := range events.Topics {
		c.topics[t] = true
	}
	return c
}

// Wants reports whether the client is subscribed to topic.
func (c *Client) Wants(topic string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.topics[topic]
}

// Topics returns the client's current subscriptions in events.Topics order.
func (c *Client) Topics() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []string
	for _, t := range events.Topics {
		if c.topics[t] {
			out = append(out, t)
		}
	}
	return out
}

// Process applies a subscribe or unsubscribe message. Unknown topics and
// actions are ignored.
func (c *Client) Process(msg ClientMessage) {
	known := make(map[string]bool, len(events.Topics))
	for _, t := range events.Topics {
		known[t] = true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range msg.Topics {
		if !known[t] {
			continue
		}
		switch msg.Action {
		case "subscribe":
			c.topics[t] = true
		case "unsubscribe":
			delete(c.topics, t)
		}
	}
}

// Hub tracks connected clients by session.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]map[*Client]struct{}
	logger   zerolog.Logger
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		sessions: make(map[string]map[*Client]struct{}),
		logger:   logger.With().Str("component", "websocket").Logger(),
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.sessions[c.SessionID]
	if set == nil {
		set = make(map[*Client]struct{})
		h.sessions[c.SessionID] = set
	}
	set[c] = struct{}{}
}

// Unregister removes the client and closes its Send channel. It is safe to
// call more than once.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.sessions[c.SessionID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.sessions, c.SessionID)
	}
	close(c.Send)
}

// Dispatch queues e for every client of e.SessionID subscribed to e.Topic.
// A client whose buffer is full misses the event.
func (h *Hub) Dispatch(e events.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		h.logger.Error().Err(err).Str("topic", e.Topic).Msg("encode event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.sessions[e.SessionID] {
		if !c.Wants(e.Topic) {
			continue
		}
		select {
		case c.Send <- data:
		default:
			h.logger.Warn().Str("client_id", c.ID).Str("topic", e.Topic).Msg("client buffer full, event dropped")
		}
	}
}

// Subscribe forwards every client-visible topic on bus to Dispatch.
func (h *Hub) Subscribe(bus *events.Bus) error {
	for _, topic := range events.Topics {
		if err := bus.Subscribe(topic, h.Dispatch); err != nil {
			return err
		}
	}
	return nil
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.sessions {
		n += len(set)
	}
	return n
}

func (h *Hub) SessionCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID])
}

// Handler upgrades GET /ws. The session comes from the auth middleware, which
// accepts ?token= because browsers cannot set headers on the upgrade.
type Handler struct {
	hub      *Hub
	upgrader gorillawebsocket.Upgrader
}

// NewHandler allows the given origins; none means any origin.
func NewHandler(hub *Hub, allowedOrigins []string) *Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &Handler{
		hub: hub,
		upgrader: gorillawebsocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(allowed) == 0 || origin == "" || allowed[origin] || allowed["*"]
			},
		},
	}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/ws", h.HandleConnect)
}

func (h *Handler) HandleConnect(c echo.Context) error {
	sid := auth.SessionFromContext(c)
	if sid == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "session required")
	}
	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade has already written the error response.
		return nil
	}

	client := NewClient(sid)
	h.hub.Register(client)
	h.hub.logger.Debug().Str("client_id", client.ID).Str("session_id", sid).Msg("websocket connected")

	go h.writePump(client, ws)
	go h.readPump(client, ws)
	return nil
}

func (h *Handler) readPump(client *Client, ws *gorillawebsocket.Conn) {
	defer func() {
		h.hub.Unregister(client)
		ws.Close()
	}()

	ws.SetReadLimit(4096)
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, message, err := ws.ReadMessage()
		if err != nil {
			return
		}
		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		client.Process(msg)
	}
}

func (h *Handler) writePump(client *Client, ws *gorillawebsocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ws.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				ws.WriteMessage(gorillawebsocket.CloseMessage, []byte{})
				return
			}
			if err := ws.WriteMessage(gorillawebsocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(gorillawebsocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
