package hub

import (
	"errors"
	"sync"
)

// ErrNotBound indicates no live connection holds the given identity.
var ErrNotBound = errors.New("identity not bound")

// Registry maps identities to live connections. Binding is
// last-writer-wins: a new bind for an existing identity supersedes the
// prior connection.
type Registry struct {
	mu         sync.RWMutex
	conns      map[string]Conn   // identity -> connection
	identities map[string]string // session id -> identity
}

func NewRegistry() *Registry {
	return &Registry{
		conns:      make(map[string]Conn),
		identities: make(map[string]string),
	}
}

// Bind associates identity with conn and returns the superseded
// connection, if any. The superseded session loses its reverse entry
// so its later disconnect does not unbind the new holder.
func (r *Registry) Bind(identity string, conn Conn) (Conn, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, had := r.conns[identity]
	if had {
		delete(r.identities, prev.SessionID())
	}
	r.conns[identity] = conn
	r.identities[conn.SessionID()] = identity
	if had && prev.SessionID() == conn.SessionID() {
		return nil, false
	}
	return prev, had
}

// Resolve returns the connection currently bound to identity.
func (r *Registry) Resolve(identity string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[identity]
	return conn, ok
}

// IdentityOf returns the identity bound to the given session.
func (r *Registry) IdentityOf(sessionID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	identity, ok := r.identities[sessionID]
	return identity, ok
}

// Unbind removes the identity binding, but only if sessionID still
// holds it. A stale session (one that was superseded) is a no-op.
func (r *Registry) Unbind(identity, sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[identity]
	if !ok || conn.SessionID() != sessionID {
		return false
	}
	delete(r.conns, identity)
	delete(r.identities, sessionID)
	return true
}

// Identities returns a snapshot of all bound identities.
func (r *Registry) Identities() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.conns))
	for identity := range r.conns {
		out = append(out, identity)
	}
	return out
}

// Len returns the number of bound identities.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
