// Package rooms delivers events to named groups of live connections.
package rooms

import (
	"log/slog"
	"sync"

	"socialmart/internal/models"
)

const DefaultBuffer = 100

// Router maps room keys to the connections joined to them. Every attached
// connection owns a buffered sink; emits never block and drop the event
// when a sink is full.
type Router struct {
	mu sync.RWMutex

	sinks       map[string]chan models.ServerEvent
	memberships map[string]map[string]struct{} // connID -> rooms
	rooms       map[string]map[string]struct{} // room -> connIDs
}

func NewRouter() *Router {
	return &Router{
		sinks:       make(map[string]chan models.ServerEvent),
		memberships: make(map[string]map[string]struct{}),
		rooms:       make(map[string]map[string]struct{}),
	}
}

// Attach creates the outbound sink for connID. Attaching an already attached
// connection returns its existing sink.
func (r *Router) Attach(connID string, buffer int) <-chan models.ServerEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ch, ok := r.sinks[connID]; ok {
		return ch
	}
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	ch := make(chan models.ServerEvent, buffer)
	r.sinks[connID] = ch
	r.memberships[connID] = make(map[string]struct{})
	return ch
}

// Detach removes connID from all rooms and closes its sink.
func (r *Router) Detach(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch, ok := r.sinks[connID]
	if !ok {
		return
	}
	for room := range r.memberships[connID] {
		r.leaveLocked(connID, room)
	}
	delete(r.memberships, connID)
	delete(r.sinks, connID)
	close(ch)
}

// Join adds connID to room. It returns false when connID is not attached.
func (r *Router) Join(connID, room string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	joined, ok := r.memberships[connID]
	if !ok {
		return false
	}
	joined[room] = struct{}{}

	members, ok := r.rooms[room]
	if !ok {
		members = make(map[string]struct{})
		r.rooms[room] = members
	}
	members[connID] = struct{}{}
	return true
}

func (r *Router) Leave(connID, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if joined, ok := r.memberships[connID]; ok {
		delete(joined, room)
	}
	r.leaveLocked(connID, room)
}

func (r *Router) leaveLocked(connID, room string) {
	members, ok := r.rooms[room]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(r.rooms, room)
	}
}

// EmitToRoom delivers the event to every connection joined to room and
// returns how many sinks accepted it. An empty room is not an error.
func (r *Router) EmitToRoom(room, event string, payload any) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	delivered := 0
	msg := models.ServerEvent{Event: event, Data: payload}
	for connID := range r.rooms[room] {
		if r.offer(connID, msg) {
			delivered++
		}
	}
	if delivered == 0 {
		slog.Debug("room emit not delivered", "room", room, "event", event)
	}
	return delivered
}

// BroadcastToAll delivers the event to every attached connection.
func (r *Router) BroadcastToAll(event string, payload any) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	delivered := 0
	msg := models.ServerEvent{Event: event, Data: payload}
	for connID := range r.sinks {
		if r.offer(connID, msg) {
			delivered++
		}
	}
	return delivered
}

func (r *Router) offer(connID string, msg models.ServerEvent) bool {
	select {
	case r.sinks[connID] <- msg:
		return true
	default:
		slog.Debug("dropping event for slow connection", "conn_id", connID, "event", msg.Event)
		return false
	}
}

// Members returns the number of connections joined to room.
func (r *Router) Members(room string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.rooms[room])
}
