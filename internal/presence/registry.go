// Package presence tracks which users currently have at least one live
// realtime connection.
package presence

import (
	"sort"
	"sync"

	"socialmart/internal/models"
)

// Registry maps connections to users. A user may hold any number of
// connections at once (tabs, devices). Safe for concurrent use.
type Registry struct {
	mu sync.RWMutex

	// connID -> userID
	connections map[string]string
	// userID -> set of connIDs
	users map[string]map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		connections: make(map[string]string),
		users:       make(map[string]map[string]struct{}),
	}
}

// Register records that connID belongs to userID. It reports whether the
// pair was new. A connection re-registering under another user is moved.
func (r *Registry) Register(userID, connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.connections[connID]; ok {
		if prev == userID {
			return false
		}
		r.removeLocked(connID)
	}

	r.connections[connID] = userID
	conns, ok := r.users[userID]
	if !ok {
		conns = make(map[string]struct{})
		r.users[userID] = conns
	}
	conns[connID] = struct{}{}
	return true
}

// Unregister removes connID whichever user it belongs to and returns that
// user. Unknown connections are ignored.
func (r *Registry) Unregister(connID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.removeLocked(connID)
}

func (r *Registry) removeLocked(connID string) (string, bool) {
	userID, ok := r.connections[connID]
	if !ok {
		return "", false
	}
	delete(r.connections, connID)

	if conns, ok := r.users[userID]; ok {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(r.users, userID)
		}
	}
	return userID, true
}

// IsOnline reports whether userID has at least one registered connection.
func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.users[userID]) > 0
}

// OnlineUsers returns the distinct online user ids, sorted.
func (r *Registry) OnlineUsers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.users))
	for id := range r.users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Snapshot returns every (user, connection) pair ordered by user then
// connection id.
func (r *Registry) Snapshot() []models.PresenceEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]models.PresenceEntry, 0, len(r.connections))
	for connID, userID := range r.connections {
		entries = append(entries, models.PresenceEntry{UserID: userID, ConnectionID: connID})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].UserID != entries[j].UserID {
			return entries[i].UserID < entries[j].UserID
		}
		return entries[i].ConnectionID < entries[j].ConnectionID
	})
	return entries
}
