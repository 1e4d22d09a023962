package hub

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-monolith/mono/pkg/types"
)

// mockLogger implements types.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(msg string, args ...any)         {}
func (m *mockLogger) Info(msg string, args ...any)          {}
func (m *mockLogger) Warn(msg string, args ...any)          {}
func (m *mockLogger) Error(msg string, args ...any)         {}
func (m *mockLogger) With(args ...any) types.Logger         { return m }
func (m *mockLogger) WithError(err error) types.Logger      { return m }
func (m *mockLogger) WithModule(module string) types.Logger { return m }

// fakeConn records everything sent through it.
type fakeConn struct {
	id     string
	mu     sync.Mutex
	events []any
	closed bool
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id}
}

func (c *fakeConn) SessionID() string { return c.id }

func (c *fakeConn) Send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, v)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// messageEvents returns the recorded MessageEvents, optionally
// filtered by kind.
func (c *fakeConn) messageEvents(kind string) []MessageEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []MessageEvent
	for _, event := range c.events {
		if msg, ok := event.(MessageEvent); ok {
			if kind == "" || msg.Kind == kind {
				out = append(out, msg)
			}
		}
	}
	return out
}

func (c *fakeConn) errorEvents() []ErrorEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []ErrorEvent
	for _, event := range c.events {
		if e, ok := event.(ErrorEvent); ok {
			out = append(out, e)
		}
	}
	return out
}

func (c *fakeConn) lastRoomUsers() (RoomUsersEvent, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.events) - 1; i >= 0; i-- {
		if e, ok := c.events[i].(RoomUsersEvent); ok {
			return e, true
		}
	}
	return RoomUsersEvent{}, false
}

func (c *fakeConn) lastRoomsUpdated() (RoomsUpdatedEvent, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.events) - 1; i >= 0; i-- {
		if e, ok := c.events[i].(RoomsUpdatedEvent); ok {
			return e, true
		}
	}
	return RoomsUpdatedEvent{}, false
}

// memStore is an in-memory Store with configurable save failures.
type memStore struct {
	mu        sync.Mutex
	saved     []Message
	failures  int
	lastLimit int
}

func (s *memStore) Save(_ context.Context, msg *Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return errors.New("store unavailable")
	}
	s.saved = append(s.saved, *msg)
	return nil
}

func (s *memStore) Query(_ context.Context, scope string, limit int) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastLimit = limit
	var out []Message
	for _, msg := range s.saved {
		if msg.Scope == scope {
			out = append(out, msg)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *memStore) savedInScope(scope string) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Message
	for _, msg := range s.saved {
		if msg.Scope == scope {
			out = append(out, msg)
		}
	}
	return out
}

func newTestHub(store Store) *Hub {
	return NewHub([]string{"General", "Ventas"}, store, &mockLogger{})
}

func join(t *testing.T, h *Hub, conn *fakeConn, identity, room string) {
	t.Helper()
	h.Connect(conn)
	if err := h.JoinRoom(context.Background(), conn.SessionID(), identity, room); err != nil {
		t.Fatalf("JoinRoom(%s, %s) unexpected error: %v", identity, room, err)
	}
}

func TestHub_JoinRoom(t *testing.T) {
	ctx := context.Background()
	store := &memStore{}
	h := newTestHub(store)

	alice := newFakeConn("s1")
	join(t, h, alice, "alice", "General")

	members := h.Members("General")
	if len(members) != 1 || members[0] != "alice" {
		t.Errorf("Members() = %v, want [alice]", members)
	}

	users, ok := alice.lastRoomUsers()
	if !ok {
		t.Fatal("no room_users event delivered to joiner")
	}
	if users.Room != "General" || len(users.Users) != 1 {
		t.Errorf("room_users = %+v, want room General with 1 user", users)
	}

	// The join notice is persisted but not echoed to the joiner.
	notices := store.savedInScope("General")
	if len(notices) != 1 || notices[0].Kind != KindSystem || notices[0].Sender != SystemSender {
		t.Errorf("persisted notices = %+v, want one system notice", notices)
	}
	if got := alice.messageEvents(string(KindSystem)); len(got) != 0 {
		t.Errorf("joiner received own join notice: %+v", got)
	}

	// Rejoining the same room is a no-op.
	if err := h.JoinRoom(ctx, "s1", "alice", "General"); err != nil {
		t.Fatalf("JoinRoom() rejoin error: %v", err)
	}
	if notices := store.savedInScope("General"); len(notices) != 1 {
		t.Errorf("rejoin persisted another notice, count = %d", len(notices))
	}
}

func TestHub_JoinNoticeReachesOthers(t *testing.T) {
	store := &memStore{}
	h := newTestHub(store)

	alice := newFakeConn("s1")
	bob := newFakeConn("s2")
	join(t, h, alice, "alice", "General")
	join(t, h, bob, "bob", "General")

	notices := alice.messageEvents(string(KindSystem))
	if len(notices) != 1 || notices[0].Username != SystemSender {
		t.Fatalf("alice notices = %+v, want one system notice", notices)
	}
	if notices[0].Text != "bob joined the room" {
		t.Errorf("notice text = %q, want %q", notices[0].Text, "bob joined the room")
	}
	if got := bob.messageEvents(string(KindSystem)); len(got) != 0 {
		t.Errorf("bob received own join notice: %+v", got)
	}
}

func TestHub_DynamicRoomDirectory(t *testing.T) {
	ctx := context.Background()
	store := &memStore{}
	h := newTestHub(store)

	alice := newFakeConn("s1")
	join(t, h, alice, "alice", "Random")

	rooms := h.ListRooms()
	if !contains(rooms, "Random") {
		t.Errorf("ListRooms() = %v, missing Random", rooms)
	}
	if updated, ok := alice.lastRoomsUpdated(); !ok || !contains(updated.Rooms, "Random") {
		t.Errorf("rooms_updated = %+v, want Random listed", updated)
	}

	// Last member leaving delists the dynamic room.
	if err := h.LeaveRoom(ctx, "s1", "Random"); err != nil {
		t.Fatalf("LeaveRoom() error: %v", err)
	}
	if rooms := h.ListRooms(); contains(rooms, "Random") {
		t.Errorf("ListRooms() after leave = %v, Random still listed", rooms)
	}
	if updated, ok := alice.lastRoomsUpdated(); !ok || contains(updated.Rooms, "Random") {
		t.Errorf("rooms_updated after leave = %+v, Random still listed", updated)
	}
}

func TestHub_PermanentRoomSurvivesEmpty(t *testing.T) {
	ctx := context.Background()
	store := &memStore{}
	h := newTestHub(store)

	alice := newFakeConn("s1")
	join(t, h, alice, "alice", "General")
	if err := h.LeaveRoom(ctx, "s1", "General"); err != nil {
		t.Fatalf("LeaveRoom() error: %v", err)
	}

	if rooms := h.ListRooms(); !contains(rooms, "General") {
		t.Errorf("ListRooms() = %v, permanent room delisted", rooms)
	}
}

func TestHub_SendRoomMessage(t *testing.T) {
	ctx := context.Background()
	store := &memStore{}
	h := newTestHub(store)

	alice := newFakeConn("s1")
	bob := newFakeConn("s2")
	join(t, h, alice, "alice", "General")
	join(t, h, bob, "bob", "General")

	msg, err := h.SendRoomMessage(ctx, "s1", "General", "hello")
	if err != nil {
		t.Fatalf("SendRoomMessage() error: %v", err)
	}
	if msg.Kind != KindRoom || msg.Scope != "General" {
		t.Errorf("message = %+v, want room message in General", msg)
	}

	for _, conn := range []*fakeConn{alice, bob} {
		got := conn.messageEvents(string(KindRoom))
		if len(got) != 1 || got[0].Text != "hello" || got[0].Username != "alice" {
			t.Errorf("%s room messages = %+v, want one from alice", conn.id, got)
		}
	}

	// Persisted exactly once, after the join notices.
	var roomMsgs []Message
	for _, saved := range store.savedInScope("General") {
		if saved.Kind == KindRoom {
			roomMsgs = append(roomMsgs, saved)
		}
	}
	if len(roomMsgs) != 1 {
		t.Errorf("persisted room messages = %d, want 1", len(roomMsgs))
	}
}

func TestHub_SendRoomMessage_NotMember(t *testing.T) {
	ctx := context.Background()
	store := &memStore{}
	h := newTestHub(store)

	alice := newFakeConn("s1")
	join(t, h, alice, "alice", "General")

	if _, err := h.SendRoomMessage(ctx, "s1", "Ventas", "hi"); !errors.Is(err, ErrInvalidRoom) {
		t.Errorf("SendRoomMessage() non-member error = %v, want ErrInvalidRoom", err)
	}
}

func TestHub_SendBeforeJoin(t *testing.T) {
	ctx := context.Background()
	store := &memStore{}
	h := newTestHub(store)

	conn := newFakeConn("s1")
	h.Connect(conn)

	if _, err := h.SendRoomMessage(ctx, "s1", "General", "hi"); !errors.Is(err, ErrNotBound) {
		t.Errorf("SendRoomMessage() before join error = %v, want ErrNotBound", err)
	}
}

func TestHub_PersistenceFailureSuppressesBroadcast(t *testing.T) {
	ctx := context.Background()
	store := &memStore{failures: 2} // initial save and its retry both fail
	h := newTestHub(store)

	alice := newFakeConn("s1")
	bob := newFakeConn("s2")
	join(t, h, alice, "alice", "General")
	join(t, h, bob, "bob", "General")

	_, err := h.SendRoomMessage(ctx, "s1", "General", "lost")
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("SendRoomMessage() error = %v, want ErrPersistence", err)
	}

	if got := bob.messageEvents(string(KindRoom)); len(got) != 0 {
		t.Errorf("bob received unpersisted message: %+v", got)
	}
	if got := alice.errorEvents(); len(got) != 1 {
		t.Errorf("alice error events = %+v, want exactly one", got)
	}
	if got := bob.errorEvents(); len(got) != 0 {
		t.Errorf("bob error events = %+v, want none", got)
	}
}

func TestHub_PersistenceRetrySucceeds(t *testing.T) {
	ctx := context.Background()
	store := &memStore{failures: 1} // first save fails, retry succeeds
	h := newTestHub(store)

	alice := newFakeConn("s1")
	bob := newFakeConn("s2")
	join(t, h, alice, "alice", "General")
	join(t, h, bob, "bob", "General")

	if _, err := h.SendRoomMessage(ctx, "s1", "General", "hello"); err != nil {
		t.Fatalf("SendRoomMessage() error after retry: %v", err)
	}
	if got := bob.messageEvents(string(KindRoom)); len(got) != 1 {
		t.Errorf("bob room messages = %+v, want one", got)
	}
}

func TestHub_SendDirectMessage(t *testing.T) {
	ctx := context.Background()
	store := &memStore{}
	h := newTestHub(store)

	alice := newFakeConn("s1")
	bob := newFakeConn("s2")
	join(t, h, alice, "alice", "General")
	join(t, h, bob, "bob", "Ventas")

	msg, err := h.SendDirectMessage(ctx, "s1", "bob", "psst")
	if err != nil {
		t.Fatalf("SendDirectMessage() error: %v", err)
	}
	if msg.Scope != "alice--bob" {
		t.Errorf("message scope = %q, want %q", msg.Scope, "alice--bob")
	}

	// Both parties get the event; sender sees its own echo.
	for _, conn := range []*fakeConn{alice, bob} {
		got := conn.messageEvents(string(KindDirect))
		if len(got) != 1 || got[0].Channel != "alice--bob" || got[0].Text != "psst" {
			t.Errorf("%s direct messages = %+v, want one on alice--bob", conn.id, got)
		}
	}
}

func TestHub_DirectMessageOfflineRecipient(t *testing.T) {
	ctx := context.Background()
	store := &memStore{}
	h := newTestHub(store)

	alice := newFakeConn("s1")
	join(t, h, alice, "alice", "General")

	// Recipient is not connected; the message still persists and the
	// sender still gets the echo.
	if _, err := h.SendDirectMessage(ctx, "s1", "carol", "anyone there"); err != nil {
		t.Fatalf("SendDirectMessage() error: %v", err)
	}
	if saved := store.savedInScope("alice--carol"); len(saved) != 1 {
		t.Errorf("persisted direct messages = %d, want 1", len(saved))
	}
	if got := alice.messageEvents(string(KindDirect)); len(got) != 1 {
		t.Errorf("sender echo = %+v, want one event", got)
	}
}

func TestHub_SupersededConnection(t *testing.T) {
	ctx := context.Background()
	store := &memStore{}
	h := newTestHub(store)

	first := newFakeConn("s1")
	second := newFakeConn("s2")
	join(t, h, first, "alice", "General")
	join(t, h, second, "alice", "General")

	if !first.isClosed() {
		t.Error("superseded connection was not closed")
	}

	// The new connection receives deliveries for the identity.
	if _, err := h.SendRoomMessage(ctx, "s2", "General", "hi"); err != nil {
		t.Fatalf("SendRoomMessage() error: %v", err)
	}
	if got := second.messageEvents(string(KindRoom)); len(got) != 1 {
		t.Errorf("new connection messages = %+v, want one", got)
	}

	// The stale session's disconnect must not tear down membership.
	h.Disconnect(ctx, "s1")
	if members := h.Members("General"); len(members) != 1 || members[0] != "alice" {
		t.Errorf("Members() after stale disconnect = %v, want [alice]", members)
	}
}

func TestHub_RebindToNewIdentity(t *testing.T) {
	ctx := context.Background()
	store := &memStore{}
	h := newTestHub(store)

	conn := newFakeConn("s1")
	join(t, h, conn, "alice", "General")
	if err := h.JoinRoom(ctx, "s1", "bob", "Ventas"); err != nil {
		t.Fatalf("JoinRoom() under new identity error: %v", err)
	}

	// The abandoned identity left its rooms and lost its binding.
	if members := h.Members("General"); len(members) != 0 {
		t.Errorf("Members(General) = %v, want empty after rebind", members)
	}
	if _, ok := h.registry.Resolve("alice"); ok {
		t.Error("Resolve() still finds the abandoned identity")
	}
	got, ok := h.registry.Resolve("bob")
	if !ok || got.SessionID() != "s1" {
		t.Errorf("Resolve(bob) = %v, %v, want session s1", got, ok)
	}

	// Disconnect cleans up the current identity, leaving nothing behind.
	identity, rooms := h.Disconnect(ctx, "s1")
	if identity != "bob" {
		t.Errorf("Disconnect() identity = %q, want bob", identity)
	}
	if len(rooms) != 1 || rooms[0] != "Ventas" {
		t.Errorf("Disconnect() rooms = %v, want [Ventas]", rooms)
	}
	if members := h.Members("Ventas"); len(members) != 0 {
		t.Errorf("Members(Ventas) after disconnect = %v, want empty", members)
	}
	if got := h.registry.Len(); got != 0 {
		t.Errorf("registry Len() = %d, want 0", got)
	}
}

func TestHub_LeaveNoticePersistedWhenRoomEmpties(t *testing.T) {
	ctx := context.Background()
	store := &memStore{}
	h := newTestHub(store)

	alice := newFakeConn("s1")
	join(t, h, alice, "alice", "General")
	if err := h.LeaveRoom(ctx, "s1", "General"); err != nil {
		t.Fatalf("LeaveRoom() error: %v", err)
	}

	found := false
	for _, msg := range store.savedInScope("General") {
		if msg.Kind == KindSystem && msg.Body == "alice left the room" {
			found = true
		}
	}
	if !found {
		t.Error("leave notice not persisted for emptied permanent room")
	}
}

func TestHub_AnnounceSerializedWithRouting(t *testing.T) {
	store := &memStore{}
	h := newTestHub(store)

	alice := newFakeConn("s1")
	join(t, h, alice, "alice", "General")

	lock := h.router.roomLock("General")
	lock.Lock()
	done := make(chan struct{})
	go func() {
		h.announce("General")
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("announce() completed while the room lock was held")
	case <-time.After(50 * time.Millisecond):
	}

	lock.Unlock()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("announce() did not complete after the lock was released")
	}
}

func TestHub_Disconnect(t *testing.T) {
	ctx := context.Background()
	store := &memStore{}
	h := newTestHub(store)

	alice := newFakeConn("s1")
	bob := newFakeConn("s2")
	join(t, h, alice, "alice", "General")
	join(t, h, alice, "alice", "Ventas") // same session joins a second room
	join(t, h, bob, "bob", "General")

	identity, rooms := h.Disconnect(ctx, "s1")
	if identity != "alice" {
		t.Errorf("Disconnect() identity = %q, want alice", identity)
	}
	if len(rooms) != 2 {
		t.Errorf("Disconnect() rooms = %v, want 2 rooms", rooms)
	}

	if members := h.Members("General"); len(members) != 1 || members[0] != "bob" {
		t.Errorf("Members(General) = %v, want [bob]", members)
	}
	notices := bob.messageEvents(string(KindSystem))
	found := false
	for _, n := range notices {
		if n.Text == "alice left the room" {
			found = true
		}
	}
	if !found {
		t.Errorf("bob notices = %+v, want alice left the room", notices)
	}

	// Events after disconnect are dropped silently.
	if err := h.JoinRoom(ctx, "s1", "alice", "General"); !IsSessionClosed(err) {
		t.Errorf("JoinRoom() after disconnect error = %v, want session closed", err)
	}
	if _, err := h.SendRoomMessage(ctx, "s1", "General", "ghost"); !IsSessionClosed(err) {
		t.Errorf("SendRoomMessage() after disconnect error = %v, want session closed", err)
	}
}

func TestHub_HistoryLimits(t *testing.T) {
	ctx := context.Background()
	store := &memStore{}
	h := newTestHub(store)

	tests := []struct {
		name      string
		limit     int
		wantLimit int
	}{
		{"default when zero", 0, DefaultHistoryLimit},
		{"default when negative", -5, DefaultHistoryLimit},
		{"passthrough", 20, 20},
		{"capped", 500, MaxHistoryLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := h.History(ctx, "General", tt.limit); err != nil {
				t.Fatalf("History() error: %v", err)
			}
			if store.lastLimit != tt.wantLimit {
				t.Errorf("store limit = %d, want %d", store.lastLimit, tt.wantLimit)
			}
		})
	}
}

func TestHub_CreateRoom(t *testing.T) {
	store := &memStore{}
	h := newTestHub(store)

	if err := h.CreateRoom("Random"); err != nil {
		t.Fatalf("CreateRoom() error: %v", err)
	}
	if err := h.CreateRoom("Random"); !errors.Is(err, ErrRoomExists) {
		t.Errorf("CreateRoom() duplicate error = %v, want ErrRoomExists", err)
	}
	if err := h.CreateRoom(""); !errors.Is(err, ErrInvalidRoom) {
		t.Errorf("CreateRoom() empty name error = %v, want ErrInvalidRoom", err)
	}
}

func TestHub_CloseAll(t *testing.T) {
	ctx := context.Background()
	store := &memStore{}
	h := newTestHub(store)

	alice := newFakeConn("s1")
	bob := newFakeConn("s2")
	join(t, h, alice, "alice", "General")
	join(t, h, bob, "bob", "General")

	h.CloseAll()

	if !alice.isClosed() || !bob.isClosed() {
		t.Error("CloseAll() left connections open")
	}
	if got := h.SessionCount(); got != 0 {
		t.Errorf("SessionCount() = %d, want 0", got)
	}
	if err := h.LeaveRoom(ctx, "s1", "General"); !IsSessionClosed(err) {
		t.Errorf("LeaveRoom() after CloseAll error = %v, want session closed", err)
	}
}

func contains(items []string, want string) bool {
	for _, item := range items {
		if item == want {
			return true
		}
	}
	return false
}

func BenchmarkHub_SendRoomMessage(b *testing.B) {
	ctx := context.Background()
	store := &memStore{}
	h := newTestHub(store)

	conn := newFakeConn("s1")
	h.Connect(conn)
	if err := h.JoinRoom(ctx, "s1", "alice", "General"); err != nil {
		b.Fatalf("JoinRoom() error: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = h.SendRoomMessage(ctx, "s1", "General", "benchmark message")
	}
}
