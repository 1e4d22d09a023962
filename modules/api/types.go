package api

import "encoding/json"

// ClientMessage is the envelope for inbound WebSocket messages.
type ClientMessage struct {
	Type    string          `json:"type"` // "join", "leave", "message", "direct", "history", "rooms"
	Payload json.RawMessage `json:"payload,omitempty"`
}

// JoinPayload is the payload for joining a room.
type JoinPayload struct {
	Room     string `json:"room"`
	Username string `json:"username"`
}

// LeavePayload is the payload for leaving a room.
type LeavePayload struct {
	Room string `json:"room"`
}

// MessagePayload is the payload for sending a room message.
type MessagePayload struct {
	Room string `json:"room"`
	Text string `json:"text"`
}

// DirectPayload is the payload for sending a direct message.
type DirectPayload struct {
	To   string `json:"to"`
	Text string `json:"text"`
}

// HistoryPayload is the payload for requesting message history.
type HistoryPayload struct {
	Scope string `json:"scope"`
	Limit int    `json:"limit"`
}

// CreateRoomRequest is the body for POST /api/v1/rooms.
type CreateRoomRequest struct {
	Name string `json:"name"`
}

// ErrorResponse is the standard REST error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
