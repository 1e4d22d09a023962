package hub

import "time"

// Outbound event type strings sent to connections.
const (
	EventRoomUsers      = "room_users"
	EventMessage        = "message"
	EventPrivateMessage = "private_message"
	EventRoomsUpdated   = "rooms_updated"
	EventError          = "error"
)

// RoomUsersEvent carries a room's current membership snapshot.
type RoomUsersEvent struct {
	Type  string   `json:"type"`
	Room  string   `json:"room"`
	Users []string `json:"users"`
}

// MessageEvent carries a routed chat message. Room is set for room
// broadcasts and system notices, Channel for direct messages.
type MessageEvent struct {
	Type      string    `json:"type"`
	Room      string    `json:"room,omitempty"`
	Channel   string    `json:"channel,omitempty"`
	Username  string    `json:"username"`
	Text      string    `json:"text"`
	Kind      string    `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
}

// RoomsUpdatedEvent carries the directory's active room set.
type RoomsUpdatedEvent struct {
	Type  string   `json:"type"`
	Rooms []string `json:"rooms"`
}

// ErrorEvent reports a failure to a single connection.
type ErrorEvent struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}
