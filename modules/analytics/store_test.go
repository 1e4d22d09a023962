package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_RecordMessage(t *testing.T) {
	store := NewStore()

	store.RecordMessage("General", "room")
	store.RecordMessage("General", "room")
	store.RecordMessage("General", "system")
	store.RecordMessage("alice--bob", "direct")

	stats, ok := store.GetRoomStats("General")
	require.True(t, ok)
	assert.Equal(t, int64(3), stats.Messages)

	summary := store.GetSummary()
	assert.Equal(t, int64(1), summary.DirectMessages)
	assert.Equal(t, int64(4), summary.TotalMessages)

	// Direct messages are not attributed to a room.
	_, ok = store.GetRoomStats("alice--bob")
	assert.False(t, ok)
}

func TestStore_RecordJoinLeave(t *testing.T) {
	store := NewStore()

	store.RecordJoin("General")
	store.RecordJoin("General")
	store.RecordLeave("General")
	store.RecordJoin("Ventas")

	general, ok := store.GetRoomStats("General")
	require.True(t, ok)
	assert.Equal(t, int64(2), general.Joins)
	assert.Equal(t, int64(1), general.Leaves)

	summary := store.GetSummary()
	assert.Equal(t, int64(3), summary.TotalJoins)
	assert.Equal(t, int64(1), summary.TotalLeaves)
}

func TestStore_RecordRoomCreated(t *testing.T) {
	store := NewStore()

	store.RecordRoomCreated()
	store.RecordRoomCreated()

	summary := store.GetSummary()
	assert.Equal(t, int64(2), summary.RoomsCreated)
}

func TestStore_SummaryRoomsSorted(t *testing.T) {
	store := NewStore()

	store.RecordJoin("Ventas")
	store.RecordJoin("General")
	store.RecordJoin("Marketing")

	summary := store.GetSummary()
	require.Len(t, summary.Rooms, 3)
	assert.Equal(t, "General", summary.Rooms[0].Room)
	assert.Equal(t, "Marketing", summary.Rooms[1].Room)
	assert.Equal(t, "Ventas", summary.Rooms[2].Room)
	assert.False(t, summary.GeneratedAt.IsZero())
}

func TestStore_EmptySummary(t *testing.T) {
	store := NewStore()

	summary := store.GetSummary()
	assert.Zero(t, summary.TotalMessages)
	assert.Empty(t, summary.Rooms)
}
