package hub

import (
	"errors"
	"sort"
	"sync"
)

// ErrRoomExists indicates an explicit create for a room that is
// already listed.
var ErrRoomExists = errors.New("room already exists")

// Directory tracks the advertised room set. Permanent rooms are
// seeded at construction and never removed; dynamic rooms appear when
// first joined or created and disappear when their last member leaves.
type Directory struct {
	mu        sync.RWMutex
	permanent map[string]struct{}
	active    map[string]struct{}
}

func NewDirectory(permanent []string) *Directory {
	d := &Directory{
		permanent: make(map[string]struct{}, len(permanent)),
		active:    make(map[string]struct{}, len(permanent)),
	}
	for _, room := range permanent {
		d.permanent[room] = struct{}{}
		d.active[room] = struct{}{}
	}
	return d
}

// ListActive returns the sorted advertised room set.
func (d *Directory) ListActive() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, 0, len(d.active))
	for room := range d.active {
		out = append(out, room)
	}
	sort.Strings(out)
	return out
}

// Create adds a room explicitly. Fails if the room is already listed.
func (d *Directory) Create(room string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.active[room]; ok {
		return ErrRoomExists
	}
	d.active[room] = struct{}{}
	return nil
}

// EnsureActive lists a room if it is not already listed; changed
// reports whether the directory was modified.
func (d *Directory) EnsureActive(room string) (changed bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.active[room]; ok {
		return false
	}
	d.active[room] = struct{}{}
	return true
}

// RemoveIfEmpty delists a dynamic room after its last member left.
// Permanent rooms are never removed.
func (d *Directory) RemoveIfEmpty(room string, emptied bool) (removed bool) {
	if !emptied {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.permanent[room]; ok {
		return false
	}
	if _, ok := d.active[room]; !ok {
		return false
	}
	delete(d.active, room)
	return true
}

// IsPermanent reports whether room is part of the permanent set.
func (d *Directory) IsPermanent(room string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.permanent[room]
	return ok
}
