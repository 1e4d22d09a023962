package api

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"

	"github.com/example/chat-relay-demo/modules/hub"
)

// Rate limiting constants
const (
	messagesPerSecond = 10
	burstSize         = 20
)

// wsConn adapts a Fiber WebSocket connection to the hub. Writes are
// serialized; the websocket library does not allow concurrent writers.
type wsConn struct {
	sessionID string
	conn      *websocket.Conn
	writeMu   sync.Mutex
}

var _ hub.Conn = (*wsConn)(nil)

func newWSConn(conn *websocket.Conn) *wsConn {
	return &wsConn{
		sessionID: uuid.New().String(),
		conn:      conn,
	}
}

func (c *wsConn) SessionID() string {
	return c.sessionID
}

func (c *wsConn) Send(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(v)
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}

// rateLimiter implements a simple token bucket rate limiter.
type rateLimiter struct {
	tokens     int
	maxTokens  int
	refillRate int // tokens per second
	lastRefill time.Time
	mu         sync.Mutex
}

func newRateLimiter(maxTokens, refillRate int) *rateLimiter {
	return &rateLimiter{
		tokens:     maxTokens,
		maxTokens:  maxTokens,
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

func (r *rateLimiter) allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(r.lastRefill)
	tokensToAdd := int(elapsed.Seconds()) * r.refillRate
	if tokensToAdd > 0 {
		r.tokens += tokensToAdd
		if r.tokens > r.maxTokens {
			r.tokens = r.maxTokens
		}
		r.lastRefill = now
	}

	if r.tokens > 0 {
		r.tokens--
		return true
	}
	return false
}

// handleWebSocket runs a connection's session against the hub.
func (h *Handlers) handleWebSocket(c *websocket.Conn) {
	conn := newWSConn(c)
	sessionID := conn.SessionID()

	// An authenticated connection's identity comes from its token and
	// overrides whatever the join payload claims.
	authUsername := ""
	if token := c.Query("token"); token != "" {
		claims, err := h.authService.ValidateToken(context.Background(), token)
		if err != nil {
			h.sendError(conn, "invalid or expired token")
			_ = conn.Close()
			return
		}
		authUsername = claims.Username
	}

	h.hubModule.Connect(conn)
	limiter := newRateLimiter(burstSize, messagesPerSecond)

	defer func() {
		h.hubModule.Disconnect(context.Background(), sessionID)
		_ = conn.Close()
	}()

	h.logger.Info("WebSocket connected", "sessionID", sessionID)

	for {
		_, msgBytes, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Error("WebSocket error", "sessionID", sessionID, "error", err)
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(msgBytes, &msg); err != nil {
			h.sendError(conn, "invalid message format")
			continue
		}

		h.handleClientMessage(conn, authUsername, limiter, msg)
	}

	h.logger.Info("WebSocket disconnected", "sessionID", sessionID)
}

func (h *Handlers) handleClientMessage(conn *wsConn, authUsername string, limiter *rateLimiter, msg ClientMessage) {
	ctx := context.Background()

	switch msg.Type {
	case "join":
		h.handleJoin(ctx, conn, authUsername, msg.Payload)
	case "leave":
		h.handleLeave(ctx, conn, msg.Payload)
	case "message":
		h.handleRoomMessage(ctx, conn, limiter, msg.Payload)
	case "direct":
		h.handleDirectMessage(ctx, conn, limiter, msg.Payload)
	case "history":
		h.handleHistory(ctx, conn, msg.Payload)
	case "rooms":
		h.handleRoomList(conn)
	default:
		h.sendError(conn, "unknown message type: "+msg.Type)
	}
}

func (h *Handlers) handleJoin(ctx context.Context, conn *wsConn, authUsername string, payload json.RawMessage) {
	var req JoinPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		h.sendError(conn, "invalid join payload")
		return
	}

	identity := req.Username
	if authUsername != "" {
		identity = authUsername
	}
	if req.Room == "" || identity == "" {
		h.sendError(conn, "room and username are required")
		return
	}

	if err := h.hubModule.JoinRoom(ctx, conn.SessionID(), identity, req.Room); err != nil {
		if !hub.IsSessionClosed(err) {
			h.sendError(conn, err.Error())
		}
		return
	}

	_ = conn.Send(map[string]string{
		"type":     "joined",
		"room":     req.Room,
		"username": identity,
	})
}

func (h *Handlers) handleLeave(ctx context.Context, conn *wsConn, payload json.RawMessage) {
	var req LeavePayload
	if err := json.Unmarshal(payload, &req); err != nil {
		h.sendError(conn, "invalid leave payload")
		return
	}
	if req.Room == "" {
		h.sendError(conn, "room is required")
		return
	}

	if err := h.hubModule.LeaveRoom(ctx, conn.SessionID(), req.Room); err != nil {
		if !hub.IsSessionClosed(err) {
			h.sendError(conn, err.Error())
		}
		return
	}

	_ = conn.Send(map[string]string{
		"type": "left",
		"room": req.Room,
	})
}

func (h *Handlers) handleRoomMessage(ctx context.Context, conn *wsConn, limiter *rateLimiter, payload json.RawMessage) {
	if !limiter.allow() {
		h.sendError(conn, "rate limit exceeded, please slow down")
		return
	}

	var req MessagePayload
	if err := json.Unmarshal(payload, &req); err != nil {
		h.sendError(conn, "invalid message payload")
		return
	}
	if req.Room == "" || req.Text == "" {
		h.sendError(conn, "room and text are required")
		return
	}

	if err := h.hubModule.SendRoomMessage(ctx, conn.SessionID(), req.Room, req.Text); err != nil {
		if !hub.IsSessionClosed(err) && !hub.IsPersistenceError(err) {
			h.sendError(conn, err.Error())
		}
	}
}

func (h *Handlers) handleDirectMessage(ctx context.Context, conn *wsConn, limiter *rateLimiter, payload json.RawMessage) {
	if !limiter.allow() {
		h.sendError(conn, "rate limit exceeded, please slow down")
		return
	}

	var req DirectPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		h.sendError(conn, "invalid direct payload")
		return
	}
	if req.To == "" || req.Text == "" {
		h.sendError(conn, "to and text are required")
		return
	}

	if err := h.hubModule.SendDirectMessage(ctx, conn.SessionID(), req.To, req.Text); err != nil {
		if !hub.IsSessionClosed(err) && !hub.IsPersistenceError(err) {
			h.sendError(conn, err.Error())
		}
	}
}

func (h *Handlers) handleHistory(ctx context.Context, conn *wsConn, payload json.RawMessage) {
	var req HistoryPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		h.sendError(conn, "invalid history payload")
		return
	}
	if req.Scope == "" {
		h.sendError(conn, "scope is required")
		return
	}

	messages, err := h.hubModule.History(ctx, req.Scope, req.Limit)
	if err != nil {
		h.sendError(conn, "failed to load history")
		return
	}

	_ = conn.Send(map[string]any{
		"type":     "history",
		"scope":    req.Scope,
		"messages": messages,
	})
}

func (h *Handlers) handleRoomList(conn *wsConn) {
	_ = conn.Send(hub.RoomsUpdatedEvent{
		Type:  hub.EventRoomsUpdated,
		Rooms: h.hubModule.ListRooms(),
	})
}

func (h *Handlers) sendError(conn *wsConn, message string) {
	if err := conn.Send(hub.ErrorEvent{Type: hub.EventError, Error: message}); err != nil {
		h.logger.Error("Failed to send error message", "error", err)
	}
}
