package events

import (
	"time"

	"github.com/go-monolith/mono/pkg/helper"
)

// MessageSentEvent is emitted after a message has been persisted and
// broadcast.
type MessageSentEvent struct {
	MessageID string    `json:"message_id"`
	Scope     string    `json:"scope"`
	Sender    string    `json:"sender"`
	Kind      string    `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
}

// UserJoinedEvent is emitted when an identity joins a room.
type UserJoinedEvent struct {
	Room      string    `json:"room"`
	Username  string    `json:"username"`
	Timestamp time.Time `json:"timestamp"`
}

// UserLeftEvent is emitted when an identity leaves a room.
type UserLeftEvent struct {
	Room      string    `json:"room"`
	Username  string    `json:"username"`
	Timestamp time.Time `json:"timestamp"`
}

// RoomCreatedEvent is emitted when a room is added to the directory.
type RoomCreatedEvent struct {
	Room      string    `json:"room"`
	CreatedBy string    `json:"created_by"`
	Timestamp time.Time `json:"timestamp"`
}

// Event definitions for the hub domain.
var (
	MessageSentV1 = helper.EventDefinition[MessageSentEvent](
		"hub",
		"MessageSent",
		"v1",
	)

	UserJoinedV1 = helper.EventDefinition[UserJoinedEvent](
		"hub",
		"UserJoined",
		"v1",
	)

	UserLeftV1 = helper.EventDefinition[UserLeftEvent](
		"hub",
		"UserLeft",
		"v1",
	)

	RoomCreatedV1 = helper.EventDefinition[RoomCreatedEvent](
		"hub",
		"RoomCreated",
		"v1",
	)
)
