package analytics

import (
	"sort"
	"sync"
	"time"
)

// RoomStats holds per-room activity counters.
type RoomStats struct {
	Room     string `json:"room"`
	Messages int64  `json:"messages"`
	Joins    int64  `json:"joins"`
	Leaves   int64  `json:"leaves"`
}

// Summary is a point-in-time snapshot of relay activity.
type Summary struct {
	TotalMessages  int64       `json:"total_messages"`
	DirectMessages int64       `json:"direct_messages"`
	TotalJoins     int64       `json:"total_joins"`
	TotalLeaves    int64       `json:"total_leaves"`
	RoomsCreated   int64       `json:"rooms_created"`
	Rooms          []RoomStats `json:"rooms"`
	GeneratedAt    time.Time   `json:"generated_at"`
}

// Store accumulates activity counters in memory.
type Store struct {
	mu             sync.RWMutex
	rooms          map[string]*RoomStats
	directMessages int64
	roomsCreated   int64
}

func NewStore() *Store {
	return &Store{
		rooms: make(map[string]*RoomStats),
	}
}

func (s *Store) roomStats(room string) *RoomStats {
	stats, ok := s.rooms[room]
	if !ok {
		stats = &RoomStats{Room: room}
		s.rooms[room] = stats
	}
	return stats
}

// RecordMessage counts a routed message. Direct messages are counted
// globally, room and system messages per room.
func (s *Store) RecordMessage(scope, kind string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if kind == "direct" {
		s.directMessages++
		return
	}
	s.roomStats(scope).Messages++
}

// RecordJoin counts a room join.
func (s *Store) RecordJoin(room string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roomStats(room).Joins++
}

// RecordLeave counts a room leave.
func (s *Store) RecordLeave(room string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roomStats(room).Leaves++
}

// RecordRoomCreated counts an explicit room creation.
func (s *Store) RecordRoomCreated() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roomsCreated++
}

// GetRoomStats returns the counters for one room.
func (s *Store) GetRoomStats(room string) (RoomStats, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats, ok := s.rooms[room]
	if !ok {
		return RoomStats{}, false
	}
	return *stats, true
}

// GetSummary returns a snapshot of all counters, rooms sorted by name.
func (s *Store) GetSummary() Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary := Summary{
		DirectMessages: s.directMessages,
		RoomsCreated:   s.roomsCreated,
		Rooms:          make([]RoomStats, 0, len(s.rooms)),
		GeneratedAt:    time.Now(),
	}
	for _, stats := range s.rooms {
		summary.Rooms = append(summary.Rooms, *stats)
		summary.TotalMessages += stats.Messages
		summary.TotalJoins += stats.Joins
		summary.TotalLeaves += stats.Leaves
	}
	summary.TotalMessages += s.directMessages
	sort.Slice(summary.Rooms, func(i, j int) bool {
		return summary.Rooms[i].Room < summary.Rooms[j].Room
	})
	return summary
}
