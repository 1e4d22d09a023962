package hub

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// Validation limits.
const (
	MaxIdentityLength = 50
	MaxRoomNameLength = 100
	MaxMessageLength  = 5000
)

// Validation errors. Malformed input is rejected before any state mutation.
var (
	ErrInvalidIdentity = errors.New("invalid identity")
	ErrInvalidRoom     = errors.New("invalid room name")
	ErrInvalidMessage  = errors.New("invalid message body")
)

// ValidateIdentity validates a caller-supplied identity.
func ValidateIdentity(identity string) error {
	switch {
	case identity == "":
		return fmt.Errorf("%w: empty", ErrInvalidIdentity)
	case len(identity) > MaxIdentityLength:
		return fmt.Errorf("%w: exceeds %d characters", ErrInvalidIdentity, MaxIdentityLength)
	case !utf8.ValidString(identity):
		return fmt.Errorf("%w: not valid UTF-8", ErrInvalidIdentity)
	}
	return nil
}

// ValidateRoomName validates a room name.
func ValidateRoomName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty", ErrInvalidRoom)
	case len(name) > MaxRoomNameLength:
		return fmt.Errorf("%w: exceeds %d characters", ErrInvalidRoom, MaxRoomNameLength)
	case !utf8.ValidString(name):
		return fmt.Errorf("%w: not valid UTF-8", ErrInvalidRoom)
	}
	return nil
}

// ValidateBody validates a message body.
func ValidateBody(body string) error {
	switch {
	case body == "":
		return fmt.Errorf("%w: empty", ErrInvalidMessage)
	case len(body) > MaxMessageLength:
		return fmt.Errorf("%w: exceeds %d characters", ErrInvalidMessage, MaxMessageLength)
	case !utf8.ValidString(body):
		return fmt.Errorf("%w: not valid UTF-8", ErrInvalidMessage)
	}
	return nil
}
