// Package client implements the participant side of messaging: durable
// writes over the REST API, realtime fan-out over the gateway, typing
// debounce and per-thread inbox state.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"socialmart/internal/api"
	"socialmart/internal/models"
)

const (
	DefaultTypingDelay = 2000 * time.Millisecond

	// typingRefresh keeps a steady burst at 10 typing events per minute with
	// the default delay, under the server's default typing limit.
	typingRefresh = 3
)

var ErrClosed = errors.New("coordinator is closed")

// MessageStore is the durable side of messaging.
type MessageStore interface {
	CreateMessage(ctx context.Context, req api.CreateMessageRequest) (models.Message, error)
	Conversation(ctx context.Context, counterpartID string) ([]models.Message, error)
	MarkRead(ctx context.Context, senderID string) (int, error)
}

// Emitter sends one realtime event. Emits are fire-and-forget.
type Emitter interface {
	Emit(event string, payload any) error
}

// Profile is the signed-in participant.
type Profile struct {
	UserID      string
	DisplayName string
	AvatarURL   string
}

type typingState struct {
	gen      uint64
	timer    *time.Timer
	lastEmit time.Time
}

type Coordinator struct {
	store       MessageStore
	emitter     Emitter
	profile     Profile
	typingDelay time.Duration

	mu     sync.Mutex
	typing map[string]*typingState
	closed bool
	now    func() time.Time
}

// NewCoordinator returns a coordinator. A non-positive typingDelay selects
// DefaultTypingDelay.
func NewCoordinator(store MessageStore, emitter Emitter, profile Profile, typingDelay time.Duration) *Coordinator {
	if typingDelay <= 0 {
		typingDelay = DefaultTypingDelay
	}
	return &Coordinator{
		store:       store,
		emitter:     emitter,
		profile:     profile,
		typingDelay: typingDelay,
		typing:      make(map[string]*typingState),
		now:         time.Now,
	}
}

func (c *Coordinator) Profile() Profile {
	return c.profile
}

// SendMessage persists a message and then relays it to the receiver. A
// failed write returns the error and nothing is emitted. A failed emit is
// logged only: the receiver picks the message up on its next fetch.
func (c *Coordinator) SendMessage(ctx context.Context, receiverID, text, sharedPostID string) (models.Message, error) {
	msg, err := c.store.CreateMessage(ctx, api.CreateMessageRequest{
		ReceiverID:   receiverID,
		Content:      text,
		SharedPostID: sharedPostID,
	})
	if err != nil {
		return models.Message{}, fmt.Errorf("failed to send message: %w", err)
	}

	if err := c.emitter.Emit(models.EventSendMessage, models.SendMessagePayload{
		ReceiverID:   receiverID,
		Message:      msg,
		SenderName:   c.profile.DisplayName,
		SenderAvatar: c.profile.AvatarURL,
	}); err != nil {
		slog.Warn("realtime relay failed", "message_id", msg.ID, "error", err)
	}
	return msg, nil
}

// NotifyTyping records a keystroke in the thread with receiverID. The
// receiver gets typing when a burst starts and stop_typing once no keystroke
// arrived for the typing delay. Within a burst typing is re-sent at most
// once per typingRefresh delays so late joiners still see the indicator.
func (c *Coordinator) NotifyTyping(receiverID, senderName string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}

	st, ok := c.typing[receiverID]
	if !ok {
		st = &typingState{}
		c.typing[receiverID] = st
	}
	st.gen++
	gen := st.gen
	if st.timer != nil {
		st.timer.Stop()
	}
	st.timer = time.AfterFunc(c.typingDelay, func() { c.stopTyping(receiverID, gen) })

	now := c.now()
	emit := !ok || now.Sub(st.lastEmit) >= typingRefresh*c.typingDelay
	if emit {
		st.lastEmit = now
	}
	c.mu.Unlock()

	if !emit {
		return nil
	}
	return c.emitter.Emit(models.EventTyping, models.TypingPayload{
		ReceiverID: receiverID,
		SenderName: senderName,
	})
}

// stopTyping fires from the debounce timer. A timer that was superseded by
// a later keystroke sees a newer generation and does nothing.
func (c *Coordinator) stopTyping(receiverID string, gen uint64) {
	c.mu.Lock()
	st, ok := c.typing[receiverID]
	if !ok || st.gen != gen || c.closed {
		c.mu.Unlock()
		return
	}
	delete(c.typing, receiverID)
	c.mu.Unlock()

	c.emitStopTyping(receiverID)
}

func (c *Coordinator) emitStopTyping(receiverID string) {
	if err := c.emitter.Emit(models.EventStopTyping, models.StopTypingPayload{ReceiverID: receiverID}); err != nil {
		slog.Debug("stop_typing emit failed", "receiver_id", receiverID, "error", err)
	}
}

// AcknowledgeRead marks everything senderID sent us as read and tells the
// sender about it.
func (c *Coordinator) AcknowledgeRead(ctx context.Context, senderID string) (int, error) {
	n, err := c.store.MarkRead(ctx, senderID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark messages read: %w", err)
	}

	if err := c.emitter.Emit(models.EventMarkRead, models.MarkReadPayload{
		SenderID:   senderID,
		ReceiverID: c.profile.UserID,
	}); err != nil {
		slog.Warn("realtime read receipt failed", "sender_id", senderID, "error", err)
	}
	return n, nil
}

// Close stops pending typing timers and hides any indicator still shown to
// a receiver.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	pending := make([]string, 0, len(c.typing))
	for receiverID, st := range c.typing {
		st.timer.Stop()
		pending = append(pending, receiverID)
	}
	clear(c.typing)
	c.mu.Unlock()

	for _, receiverID := range pending {
		c.emitStopTyping(receiverID)
	}
}
