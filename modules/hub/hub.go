package hub

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-monolith/mono/pkg/types"
)

type sessionState int

const (
	stateConnected sessionState = iota
	stateJoined
	stateClosed
)

var errSessionClosed = errors.New("session closed")

type session struct {
	conn  Conn
	state sessionState
}

// Hub ties the registry, membership, directory and router together
// behind a session lifecycle: a connection must bind an identity via
// JoinRoom before it can send, and a closed session's late events are
// dropped.
type Hub struct {
	registry   *Registry
	membership *Membership
	directory  *Directory
	router     *Router
	logger     types.Logger

	mu       sync.RWMutex
	sessions map[string]*session
}

func NewHub(permanentRooms []string, store Store, logger types.Logger) *Hub {
	registry := NewRegistry()
	membership := NewMembership()
	return &Hub{
		registry:   registry,
		membership: membership,
		directory:  NewDirectory(permanentRooms),
		router:     NewRouter(registry, membership, store, logger),
		logger:     logger,
		sessions:   make(map[string]*session),
	}
}

// Connect registers a new session in the Connected state.
func (h *Hub) Connect(conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[conn.SessionID()] = &session{conn: conn, state: stateConnected}
}

// SessionCount returns the number of live sessions.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

func (h *Hub) liveSession(sessionID string) (*session, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.sessions[sessionID]
	if !ok || s.state == stateClosed {
		return nil, false
	}
	return s, true
}

// identityOf resolves the identity a live session is bound to.
func (h *Hub) identityOf(sessionID string) (string, error) {
	if _, ok := h.liveSession(sessionID); !ok {
		return "", errSessionClosed
	}
	identity, ok := h.registry.IdentityOf(sessionID)
	if !ok {
		return "", ErrNotBound
	}
	return identity, nil
}

// JoinRoom binds the session to identity, joins the room, and emits
// membership, directory and lifecycle notices. A live Connected
// session transitions to Joined; a superseded prior connection is
// closed.
func (h *Hub) JoinRoom(ctx context.Context, sessionID, identity, room string) error {
	if err := ValidateIdentity(identity); err != nil {
		return err
	}
	if err := ValidateRoomName(room); err != nil {
		return err
	}
	s, ok := h.liveSession(sessionID)
	if !ok {
		return errSessionClosed
	}

	// A session switching identities abandons the old one: its rooms
	// are left and its binding removed before the new bind, so no
	// membership entry outlives its registry entry.
	if old, bound := h.registry.IdentityOf(sessionID); bound && old != identity {
		for _, r := range h.membership.Rooms(old) {
			h.leaveOne(ctx, r, old)
		}
		h.registry.Unbind(old, sessionID)
		h.logger.Info("identity rebound", "session", sessionID, "from", old, "to", identity)
	}

	prev, superseded := h.registry.Bind(identity, s.conn)
	if superseded {
		h.logger.Info("identity superseded", "identity", identity, "session", prev.SessionID())
		_ = prev.Close()
	}
	h.mu.Lock()
	s.state = stateJoined
	h.mu.Unlock()

	if h.directory.EnsureActive(room) {
		h.broadcastRooms()
	}
	if added := h.membership.Join(room, identity); added {
		h.announce(room)
		if _, err := h.router.RouteSystemNotice(ctx, room, identity, fmt.Sprintf("%s joined the room", identity)); err != nil {
			h.logger.Warn("join notice not persisted", "room", room, "error", err)
		}
	}
	return nil
}

// LeaveRoom removes the session's identity from one room.
func (h *Hub) LeaveRoom(ctx context.Context, sessionID, room string) error {
	identity, err := h.identityOf(sessionID)
	if err != nil {
		return err
	}
	h.leaveOne(ctx, room, identity)
	return nil
}

func (h *Hub) leaveOne(ctx context.Context, room, identity string) {
	removed, emptied := h.membership.Leave(room, identity)
	if !removed {
		return
	}
	if h.directory.RemoveIfEmpty(room, emptied) {
		h.broadcastRooms()
		return
	}
	h.announce(room)
	if _, err := h.router.RouteSystemNotice(ctx, room, identity, fmt.Sprintf("%s left the room", identity)); err != nil {
		h.logger.Warn("leave notice not persisted", "room", room, "error", err)
	}
}

// Disconnect tears the session down: unbinds its identity (unless it
// was superseded) and leaves every joined room. It returns the
// identity and the rooms that were left.
func (h *Hub) Disconnect(ctx context.Context, sessionID string) (string, []string) {
	h.mu.Lock()
	s, ok := h.sessions[sessionID]
	if !ok || s.state == stateClosed {
		h.mu.Unlock()
		return "", nil
	}
	s.state = stateClosed
	delete(h.sessions, sessionID)
	h.mu.Unlock()

	identity, bound := h.registry.IdentityOf(sessionID)
	if !bound {
		// Superseded or never joined; membership now belongs to the
		// new holder, if any.
		return "", nil
	}

	rooms := h.membership.Rooms(identity)
	for _, room := range rooms {
		h.leaveOne(ctx, room, identity)
	}
	h.registry.Unbind(identity, sessionID)
	return identity, rooms
}

// SendRoomMessage routes a room message from the session's identity.
func (h *Hub) SendRoomMessage(ctx context.Context, sessionID, room, body string) (*Message, error) {
	identity, err := h.identityOf(sessionID)
	if err != nil {
		return nil, err
	}
	if err := ValidateRoomName(room); err != nil {
		return nil, err
	}
	if err := ValidateBody(body); err != nil {
		return nil, err
	}
	if !h.membership.Contains(room, identity) {
		return nil, fmt.Errorf("%w: not a member of %s", ErrInvalidRoom, room)
	}
	return h.router.RouteRoomMessage(ctx, room, identity, body)
}

// SendDirectMessage routes a direct message from the session's
// identity to recipient.
func (h *Hub) SendDirectMessage(ctx context.Context, sessionID, recipient, body string) (*Message, error) {
	identity, err := h.identityOf(sessionID)
	if err != nil {
		return nil, err
	}
	if err := ValidateIdentity(recipient); err != nil {
		return nil, err
	}
	if err := ValidateBody(body); err != nil {
		return nil, err
	}
	return h.router.RouteDirectMessage(ctx, identity, recipient, body)
}

// History returns recent messages for a scope, oldest first.
func (h *Hub) History(ctx context.Context, scope string, limit int) ([]Message, error) {
	return h.router.History(ctx, scope, limit)
}

// CreateRoom lists a room explicitly and broadcasts the updated set.
func (h *Hub) CreateRoom(room string) error {
	if err := ValidateRoomName(room); err != nil {
		return err
	}
	if err := h.directory.Create(room); err != nil {
		return err
	}
	h.broadcastRooms()
	return nil
}

// ListRooms returns the advertised room set, sorted.
func (h *Hub) ListRooms() []string {
	return h.directory.ListActive()
}

// Members returns the sorted member list of a room.
func (h *Hub) Members(room string) []string {
	return h.membership.Members(room)
}

// announce pushes the room's membership snapshot to every member.
// It claims the room's routing lock so presence events cannot
// interleave with an in-flight message broadcast.
func (h *Hub) announce(room string) {
	lock := h.router.roomLock(room)
	lock.Lock()
	defer lock.Unlock()

	event := RoomUsersEvent{
		Type:  EventRoomUsers,
		Room:  room,
		Users: h.membership.Members(room),
	}
	for _, identity := range event.Users {
		h.router.deliver(identity, event)
	}
}

// broadcastRooms pushes the directory snapshot to every bound
// connection.
func (h *Hub) broadcastRooms() {
	event := RoomsUpdatedEvent{
		Type:  EventRoomsUpdated,
		Rooms: h.directory.ListActive(),
	}
	for _, identity := range h.registry.Identities() {
		h.router.deliver(identity, event)
	}
}

// CloseAll closes every live session during shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	sessions := make([]*session, 0, len(h.sessions))
	for id, s := range h.sessions {
		s.state = stateClosed
		sessions = append(sessions, s)
		delete(h.sessions, id)
	}
	h.mu.Unlock()

	for _, s := range sessions {
		_ = s.conn.Close()
	}
}
