package hub

import (
	"sort"
	"sync"
)

// Membership tracks which identities are in which rooms, with a
// reverse index so a disconnect can enumerate its rooms without a
// full scan.
type Membership struct {
	mu     sync.RWMutex
	rooms  map[string]map[string]struct{} // room -> identities
	joined map[string]map[string]struct{} // identity -> rooms
}

func NewMembership() *Membership {
	return &Membership{
		rooms:  make(map[string]map[string]struct{}),
		joined: make(map[string]map[string]struct{}),
	}
}

// Join adds identity to room. Re-joining a room the identity is
// already in is a no-op; added reports whether membership changed.
func (m *Membership) Join(room, identity string) (added bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	members, ok := m.rooms[room]
	if !ok {
		members = make(map[string]struct{})
		m.rooms[room] = members
	}
	if _, present := members[identity]; present {
		return false
	}
	members[identity] = struct{}{}

	joined, ok := m.joined[identity]
	if !ok {
		joined = make(map[string]struct{})
		m.joined[identity] = joined
	}
	joined[room] = struct{}{}
	return true
}

// Leave removes identity from room. emptied reports whether the room
// has no members left after the removal.
func (m *Membership) Leave(room, identity string) (removed, emptied bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	members, ok := m.rooms[room]
	if !ok {
		return false, false
	}
	if _, present := members[identity]; !present {
		return false, false
	}
	delete(members, identity)
	if len(members) == 0 {
		delete(m.rooms, room)
		emptied = true
	}

	if joined, ok := m.joined[identity]; ok {
		delete(joined, room)
		if len(joined) == 0 {
			delete(m.joined, identity)
		}
	}
	return true, emptied
}

// Members returns a sorted snapshot of the room's members.
func (m *Membership) Members(room string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	members := m.rooms[room]
	out := make([]string, 0, len(members))
	for identity := range members {
		out = append(out, identity)
	}
	sort.Strings(out)
	return out
}

// Rooms returns a sorted snapshot of the rooms identity is in.
func (m *Membership) Rooms(identity string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	joined := m.joined[identity]
	out := make([]string, 0, len(joined))
	for room := range joined {
		out = append(out, room)
	}
	sort.Strings(out)
	return out
}

// Contains reports whether identity is a member of room.
func (m *Membership) Contains(room, identity string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	members, ok := m.rooms[room]
	if !ok {
		return false
	}
	_, present := members[identity]
	return present
}
