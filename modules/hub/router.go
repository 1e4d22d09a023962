package hub

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-monolith/mono/pkg/types"
)

const (
	// DefaultHistoryLimit is used when a history request gives no limit.
	DefaultHistoryLimit = 50
	// MaxHistoryLimit caps a history request's limit.
	MaxHistoryLimit = 100

	persistTimeout = 5 * time.Second
)

// ErrPersistence indicates the store rejected a message after the
// retry; the message was not broadcast.
var ErrPersistence = errors.New("message persistence failed")

// IsPersistenceError reports whether err is a store failure. The
// router already reported those to the sender.
func IsPersistenceError(err error) bool {
	return errors.Is(err, ErrPersistence)
}

// SystemSender is the sender identity used for lifecycle notices.
const SystemSender = "system"

// Router delivers messages: persist first, then fan out. A per-room
// mutex serializes routing and presence within one room so delivery
// order matches persistence order.
type Router struct {
	registry   *Registry
	membership *Membership
	store      Store
	logger     types.Logger

	lockMu    sync.Mutex
	roomLocks map[string]*sync.Mutex
}

func NewRouter(registry *Registry, membership *Membership, store Store, logger types.Logger) *Router {
	return &Router{
		registry:   registry,
		membership: membership,
		store:      store,
		logger:     logger,
		roomLocks:  make(map[string]*sync.Mutex),
	}
}

// roomLock returns the mutex serializing the given scope.
func (r *Router) roomLock(scope string) *sync.Mutex {
	r.lockMu.Lock()
	defer r.lockMu.Unlock()
	lock, ok := r.roomLocks[scope]
	if !ok {
		lock = &sync.Mutex{}
		r.roomLocks[scope] = lock
	}
	return lock
}

// persist saves the message with a bounded timeout and one retry.
func (r *Router) persist(ctx context.Context, msg *Message) error {
	save := func() error {
		pctx, cancel := context.WithTimeout(ctx, persistTimeout)
		defer cancel()
		return r.store.Save(pctx, msg)
	}
	if err := save(); err != nil {
		r.logger.Warn("message persistence failed, retrying", "scope", msg.Scope, "error", err)
		if err := save(); err != nil {
			return fmt.Errorf("%w: %v", ErrPersistence, err)
		}
	}
	return nil
}

// RouteRoomMessage persists a room message and broadcasts it to every
// member. On persistence failure only the sender is notified.
func (r *Router) RouteRoomMessage(ctx context.Context, room, sender, body string) (*Message, error) {
	lock := r.roomLock(room)
	lock.Lock()
	defer lock.Unlock()

	msg := NewMessage(room, sender, body, KindRoom)
	if err := r.persist(ctx, msg); err != nil {
		r.reportToSender(sender, "message could not be saved")
		return nil, err
	}

	event := MessageEvent{
		Type:      EventMessage,
		Room:      room,
		Username:  sender,
		Text:      body,
		Kind:      string(KindRoom),
		Timestamp: msg.Timestamp,
	}
	for _, identity := range r.membership.Members(room) {
		r.deliver(identity, event)
	}
	return msg, nil
}

// RouteDirectMessage persists a direct message and delivers it to the
// recipient (if bound) and back to the sender.
func (r *Router) RouteDirectMessage(ctx context.Context, sender, recipient, body string) (*Message, error) {
	channel := DirectChannelID(sender, recipient)
	lock := r.roomLock(channel)
	lock.Lock()
	defer lock.Unlock()

	msg := NewMessage(channel, sender, body, KindDirect)
	if err := r.persist(ctx, msg); err != nil {
		r.reportToSender(sender, "message could not be saved")
		return nil, err
	}

	event := MessageEvent{
		Type:      EventPrivateMessage,
		Channel:   channel,
		Username:  sender,
		Text:      body,
		Kind:      string(KindDirect),
		Timestamp: msg.Timestamp,
	}
	r.deliver(recipient, event)
	if recipient != sender {
		r.deliver(sender, event)
	}
	return msg, nil
}

// RouteSystemNotice persists a lifecycle notice and broadcasts it to
// the room, excluding the subject identity.
func (r *Router) RouteSystemNotice(ctx context.Context, room, subject, body string) (*Message, error) {
	lock := r.roomLock(room)
	lock.Lock()
	defer lock.Unlock()

	msg := NewMessage(room, SystemSender, body, KindSystem)
	if err := r.persist(ctx, msg); err != nil {
		// A lost notice is tolerable; nobody asked for it.
		return nil, err
	}

	event := MessageEvent{
		Type:      EventMessage,
		Room:      room,
		Username:  SystemSender,
		Text:      body,
		Kind:      string(KindSystem),
		Timestamp: msg.Timestamp,
	}
	for _, identity := range r.membership.Members(room) {
		if identity == subject {
			continue
		}
		r.deliver(identity, event)
	}
	return msg, nil
}

// History returns up to limit messages for the scope, oldest first.
func (r *Router) History(ctx context.Context, scope string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	return r.store.Query(ctx, scope, limit)
}

func (r *Router) deliver(identity string, event any) {
	conn, ok := r.registry.Resolve(identity)
	if !ok {
		return
	}
	if err := conn.Send(event); err != nil {
		r.logger.Debug("delivery failed", "identity", identity, "error", err)
	}
}

func (r *Router) reportToSender(sender, reason string) {
	r.deliver(sender, ErrorEvent{Type: EventError, Error: reason})
}
