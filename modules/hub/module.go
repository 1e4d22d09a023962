package hub

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"

	"github.com/example/chat-relay-demo/events"
)

// DefaultPermanentRooms is used when PERMANENT_ROOMS is unset.
var DefaultPermanentRooms = []string{
	"General", "Ventas", "Coordinacion", "Gestion", "Marketing", "Contabilidad", "RRHH",
}

// Module hosts the relay hub and publishes domain events for the
// messages and membership changes flowing through it.
type Module struct {
	logger         types.Logger
	eventBus       mono.EventBus
	store          Store
	hub            *Hub
	permanentRooms []string
}

var (
	_ mono.Module                = (*Module)(nil)
	_ mono.EventBusAwareModule   = (*Module)(nil)
	_ mono.EventEmitterModule    = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

func NewModule(logger types.Logger) *Module {
	return &Module{
		logger:         logger.WithModule("hub"),
		permanentRooms: permanentRoomsFromEnv(),
	}
}

func permanentRoomsFromEnv() []string {
	raw := os.Getenv("PERMANENT_ROOMS")
	if raw == "" {
		return DefaultPermanentRooms
	}
	var rooms []string
	for _, room := range strings.Split(raw, ",") {
		room = strings.TrimSpace(room)
		if room != "" {
			rooms = append(rooms, room)
		}
	}
	if len(rooms) == 0 {
		return DefaultPermanentRooms
	}
	return rooms
}

// SetStore injects the message store before Start.
func (m *Module) SetStore(store Store) {
	m.store = store
}

// Name returns the module name.
func (m *Module) Name() string {
	return "hub"
}

// SetEventBus receives the EventBus from the framework.
func (m *Module) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

// EmitEvents declares the events this module can emit.
func (m *Module) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.MessageSentV1.ToBase(),
		events.UserJoinedV1.ToBase(),
		events.UserLeftV1.ToBase(),
		events.RoomCreatedV1.ToBase(),
	}
}

// Start initializes the hub.
func (m *Module) Start(_ context.Context) error {
	if m.store == nil {
		return fmt.Errorf("hub module requires a message store")
	}
	m.hub = NewHub(m.permanentRooms, m.store, m.logger)
	m.logger.Info("Hub started", "permanentRooms", len(m.permanentRooms))
	return nil
}

// Stop closes every live session.
func (m *Module) Stop(_ context.Context) error {
	if m.hub != nil {
		m.hub.CloseAll()
	}
	m.logger.Info("Hub stopped")
	return nil
}

// Health reports the hub's session count.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	if m.hub == nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: "hub not initialized",
		}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"sessions": m.hub.SessionCount(),
			"rooms":    len(m.hub.ListRooms()),
		},
	}
}

// Connect registers a new session.
func (m *Module) Connect(conn Conn) {
	m.hub.Connect(conn)
}

// Disconnect tears a session down.
func (m *Module) Disconnect(ctx context.Context, sessionID string) {
	identity, rooms := m.hub.Disconnect(ctx, sessionID)
	if identity == "" {
		return
	}
	for _, room := range rooms {
		m.publishLeft(room, identity)
	}
}

// JoinRoom binds the session's identity and joins the room.
func (m *Module) JoinRoom(ctx context.Context, sessionID, identity, room string) error {
	if err := m.hub.JoinRoom(ctx, sessionID, identity, room); err != nil {
		return err
	}
	event := events.UserJoinedEvent{
		Room:      room,
		Username:  identity,
		Timestamp: time.Now(),
	}
	if err := events.UserJoinedV1.Publish(m.eventBus, event, nil); err != nil {
		m.logger.Warn("Failed to publish UserJoined event", "error", err)
	}
	return nil
}

// LeaveRoom removes the session's identity from the room.
func (m *Module) LeaveRoom(ctx context.Context, sessionID, room string) error {
	identity, err := m.hub.identityOf(sessionID)
	if err != nil {
		return err
	}
	if err := m.hub.LeaveRoom(ctx, sessionID, room); err != nil {
		return err
	}
	m.publishLeft(room, identity)
	return nil
}

func (m *Module) publishLeft(room, identity string) {
	event := events.UserLeftEvent{
		Room:      room,
		Username:  identity,
		Timestamp: time.Now(),
	}
	if err := events.UserLeftV1.Publish(m.eventBus, event, nil); err != nil {
		m.logger.Warn("Failed to publish UserLeft event", "error", err)
	}
}

// SendRoomMessage routes a room message from the session's identity.
func (m *Module) SendRoomMessage(ctx context.Context, sessionID, room, body string) error {
	msg, err := m.hub.SendRoomMessage(ctx, sessionID, room, body)
	if err != nil {
		return err
	}
	m.publishSent(msg)
	return nil
}

// SendDirectMessage routes a direct message from the session's
// identity to recipient.
func (m *Module) SendDirectMessage(ctx context.Context, sessionID, recipient, body string) error {
	msg, err := m.hub.SendDirectMessage(ctx, sessionID, recipient, body)
	if err != nil {
		return err
	}
	m.publishSent(msg)
	return nil
}

func (m *Module) publishSent(msg *Message) {
	event := events.MessageSentEvent{
		MessageID: msg.ID,
		Scope:     msg.Scope,
		Sender:    msg.Sender,
		Kind:      string(msg.Kind),
		Timestamp: msg.Timestamp,
	}
	if err := events.MessageSentV1.Publish(m.eventBus, event, nil); err != nil {
		m.logger.Warn("Failed to publish MessageSent event", "error", err)
	}
}

// History returns recent messages for a scope, oldest first.
func (m *Module) History(ctx context.Context, scope string, limit int) ([]Message, error) {
	return m.hub.History(ctx, scope, limit)
}

// CreateRoom adds a room to the directory.
func (m *Module) CreateRoom(room, createdBy string) error {
	if err := m.hub.CreateRoom(room); err != nil {
		return err
	}
	event := events.RoomCreatedEvent{
		Room:      room,
		CreatedBy: createdBy,
		Timestamp: time.Now(),
	}
	if err := events.RoomCreatedV1.Publish(m.eventBus, event, nil); err != nil {
		m.logger.Warn("Failed to publish RoomCreated event", "error", err)
	}
	return nil
}

// ListRooms returns the advertised room set.
func (m *Module) ListRooms() []string {
	return m.hub.ListRooms()
}

// Members returns a room's sorted member list.
func (m *Module) Members(room string) []string {
	return m.hub.Members(room)
}

// IsSessionClosed reports whether err came from an event that arrived
// after its session was closed. Such events are dropped silently.
func IsSessionClosed(err error) bool {
	return errors.Is(err, errSessionClosed)
}
