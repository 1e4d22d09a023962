package hub

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
)

// MessageKind distinguishes room broadcasts, direct messages, and notices
// authored by the hub itself.
type MessageKind string

const (
	KindRoom   MessageKind = "room"
	KindDirect MessageKind = "direct"
	KindSystem MessageKind = "system"
)

// Message is a single routed chat message. Once handed to the Store it is
// durable state outside the hub's lifecycle and is never mutated again.
type Message struct {
	ID        string      `json:"id"`
	Scope     string      `json:"scope"` // room name or direct channel id
	Sender    string      `json:"sender"`
	Body      string      `json:"body"`
	Kind      MessageKind `json:"kind"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewMessage builds a message with a fresh id and the current time.
func NewMessage(scope, sender, body string, kind MessageKind) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Scope:     scope,
		Sender:    sender,
		Body:      body,
		Kind:      kind,
		Timestamp: time.Now(),
	}
}

// Store is the persistence collaborator. Save must be durable before it
// returns nil; Query returns the most recent messages for a scope,
// oldest-first.
type Store interface {
	Save(ctx context.Context, msg *Message) error
	Query(ctx context.Context, scope string, limit int) ([]Message, error)
}

// DirectChannelID returns the canonical channel id for a pair of identities.
// The pair is sorted so both parties resolve the same channel.
func DirectChannelID(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return pair[0] + "--" + pair[1]
}

// Conn is a transport-owned connection handle. The hub never owns the
// underlying socket; it only writes outbound events through it.
type Conn interface {
	SessionID() string
	Send(v any) error
	Close() error
}
