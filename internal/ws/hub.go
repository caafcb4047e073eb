package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"socialmart/internal/content"
	"socialmart/internal/models"
	"socialmart/internal/presence"
	"socialmart/internal/rooms"

	"golang.org/x/time/rate"
)

var (
	ErrUnknownConnection = errors.New("unknown connection")
	ErrNotJoined         = errors.New("connection has not joined")
	ErrRateLimited       = errors.New("rate limited")
)

type messageLookup interface {
	GetMessage(id string) (models.Message, error)
}

// Limits caps client events per connection. Zero means unlimited.
type Limits struct {
	SendPerMinute   int
	TypingPerMinute int
}

type session struct {
	authUserID string
	userID     string // set once joined
	sendLim    *rate.Limiter
	typingLim  *rate.Limiter
}

// Hub is the realtime session gateway. It owns the presence registry and the
// room router and applies client events to them. All operations are
// serialised so presence snapshots go out in mutation order.
type Hub struct {
	mu sync.Mutex

	presence *presence.Registry
	rooms    *rooms.Router
	messages messageLookup
	limits   Limits
	sessions map[string]*session
}

// NewHub wires the gateway. messages may be nil, in which case the client's
// copy of a relayed record is used after the sender check.
func NewHub(registry *presence.Registry, router *rooms.Router, messages messageLookup, limits Limits) *Hub {
	return &Hub{
		presence: registry,
		rooms:    router,
		messages: messages,
		limits:   limits,
		sessions: make(map[string]*session),
	}
}

func newLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
}

// Connect attaches a new connection authenticated as authUserID and returns
// the channel of events destined for it. The channel is closed by
// Disconnect.
func (h *Hub) Connect(connID, authUserID string) <-chan models.ServerEvent {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.sessions[connID]; !ok {
		h.sessions[connID] = &session{
			authUserID: authUserID,
			sendLim:    newLimiter(h.limits.SendPerMinute),
			typingLim:  newLimiter(h.limits.TypingPerMinute),
		}
	}
	return h.rooms.Attach(connID, rooms.DefaultBuffer)
}

// Disconnect purges all presence and room state of connID. Safe to call for
// unknown connections.
func (h *Hub) Disconnect(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.sessions, connID)
	h.rooms.Detach(connID)
	if userID, ok := h.presence.Unregister(connID); ok {
		slog.Info("user connection left", "user_id", userID, "conn_id", connID)
		h.broadcastPresenceLocked()
	}
}

// Join registers connID as userID and subscribes it to the user's room.
func (h *Hub) Join(connID, userID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.joinLocked(connID, userID)
}

func (h *Hub) joinLocked(connID, userID string) error {
	s, ok := h.sessions[connID]
	if !ok {
		return ErrUnknownConnection
	}
	if userID == "" {
		return fmt.Errorf("%w: userId is required", models.ErrInvalidArgument)
	}
	if s.authUserID != "" && s.authUserID != userID {
		return fmt.Errorf("%w: cannot join as %s", models.ErrUnauthorized, userID)
	}
	if s.userID != "" && s.userID != userID {
		return fmt.Errorf("%w: connection already joined as %s", models.ErrInvalidArgument, s.userID)
	}

	s.userID = userID
	h.presence.Register(userID, connID)
	h.rooms.Join(connID, userID)
	slog.Info("user joined", "user_id", userID, "conn_id", connID)

	h.broadcastPresenceLocked()
	return nil
}

func (h *Hub) broadcastPresenceLocked() {
	h.rooms.BroadcastToAll(models.EventOnlineUsers, h.presence.Snapshot())
}

// Dispatch applies a client event received on connID. Returned errors
// describe rejected events; none of them are fatal to the connection.
func (h *Hub) Dispatch(connID string, ev models.ClientEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.sessions[connID]
	if !ok {
		return ErrUnknownConnection
	}

	if ev.Event == models.EventJoin {
		var userID string
		if err := json.Unmarshal(ev.Data, &userID); err != nil {
			return fmt.Errorf("%w: join expects a user id: %v", models.ErrInvalidArgument, err)
		}
		return h.joinLocked(connID, userID)
	}

	if s.userID == "" {
		return ErrNotJoined
	}

	switch ev.Event {
	case models.EventSendMessage:
		var p models.SendMessagePayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return fmt.Errorf("%w: %v", models.ErrInvalidArgument, err)
		}
		if !s.sendLim.Allow() {
			return ErrRateLimited
		}
		return h.relayMessageLocked(s.userID, p)

	case models.EventTyping:
		var p models.TypingPayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return fmt.Errorf("%w: %v", models.ErrInvalidArgument, err)
		}
		if p.ReceiverID == "" {
			return fmt.Errorf("%w: receiverId is required", models.ErrInvalidArgument)
		}
		if !s.typingLim.Allow() {
			return ErrRateLimited
		}
		h.rooms.EmitToRoom(p.ReceiverID, models.EventDisplayTyping, models.DisplayTyping{
			SenderID:   s.userID,
			SenderName: content.NormalizeName(p.SenderName),
		})
		return nil

	case models.EventStopTyping:
		var p models.StopTypingPayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return fmt.Errorf("%w: %v", models.ErrInvalidArgument, err)
		}
		if p.ReceiverID == "" {
			return fmt.Errorf("%w: receiverId is required", models.ErrInvalidArgument)
		}
		h.rooms.EmitToRoom(p.ReceiverID, models.EventHideTyping, models.HideTyping{SenderID: s.userID})
		return nil

	case models.EventMarkRead:
		var p models.MarkReadPayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return fmt.Errorf("%w: %v", models.ErrInvalidArgument, err)
		}
		if p.SenderID == "" {
			return fmt.Errorf("%w: senderId is required", models.ErrInvalidArgument)
		}
		if p.ReceiverID != "" && p.ReceiverID != s.userID {
			return fmt.Errorf("%w: cannot acknowledge for %s", models.ErrUnauthorized, p.ReceiverID)
		}
		h.rooms.EmitToRoom(p.SenderID, models.EventMessagesRead, models.MessagesRead{ReceiverID: s.userID})
		return nil
	}

	return fmt.Errorf("%w: unknown event %q", models.ErrInvalidArgument, ev.Event)
}

// relayMessageLocked forwards a persisted message to the receiver's room.
// When a message store is wired the record must exist and belong to the
// sender, so realtime delivery never carries a record the store lacks.
func (h *Hub) relayMessageLocked(senderID string, p models.SendMessagePayload) error {
	if p.ReceiverID == "" || p.Message.ID == "" {
		return fmt.Errorf("%w: receiverId and message id are required", models.ErrInvalidArgument)
	}

	msg := p.Message
	if h.messages != nil {
		stored, err := h.messages.GetMessage(p.Message.ID)
		if err != nil {
			return fmt.Errorf("relay of message %s: %w", p.Message.ID, err)
		}
		msg = stored
	}
	if msg.Sender != senderID || msg.Receiver != p.ReceiverID {
		return fmt.Errorf("%w: message %s does not belong to this conversation", models.ErrUnauthorized, msg.ID)
	}

	h.rooms.EmitToRoom(p.ReceiverID, models.EventReceiveMessage, models.ReceivedMessage{
		Message:      msg,
		SenderName:   content.NormalizeName(p.SenderName),
		SenderAvatar: p.SenderAvatar,
	})
	return nil
}

func (h *Hub) IsOnline(userID string) bool {
	return h.presence.IsOnline(userID)
}

func (h *Hub) OnlineUsers() []string {
	return h.presence.OnlineUsers()
}

func (h *Hub) Snapshot() []models.PresenceEntry {
	return h.presence.Snapshot()
}
