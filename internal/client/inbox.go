package client

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"socialmart/internal/models"
)

// Inbox is the participant's view: the open thread, typing indicator,
// unread counters and the set of online users.
type Inbox struct {
	coord *Coordinator
	self  string

	mu         sync.Mutex
	active     string
	messages   []models.Message
	index      map[string]int
	typing     bool
	typingName string
	unread     map[string]int
	seen       map[string]map[string]struct{} // sender -> message ids already known
	online     map[string]struct{}
}

func NewInbox(coord *Coordinator) *Inbox {
	return &Inbox{
		coord:  coord,
		self:   coord.Profile().UserID,
		index:  make(map[string]int),
		unread: make(map[string]int),
		seen:   make(map[string]map[string]struct{}),
		online: make(map[string]struct{}),
	}
}

// OpenThread makes counterpartID the active thread, loads its history and
// acknowledges what the counterpart sent.
func (in *Inbox) OpenThread(ctx context.Context, counterpartID string) error {
	history, err := in.coord.store.Conversation(ctx, counterpartID)
	if err != nil {
		return fmt.Errorf("failed to load conversation: %w", err)
	}

	in.mu.Lock()
	in.active = counterpartID
	in.messages = in.messages[:0]
	clear(in.index)
	in.typing, in.typingName = false, ""
	for _, m := range history {
		in.mergeLocked(m)
		in.seenLocked(m)
	}
	in.unread[counterpartID] = 0
	in.mu.Unlock()

	return in.acknowledge(ctx, counterpartID)
}

func (in *Inbox) acknowledge(ctx context.Context, counterpartID string) error {
	if _, err := in.coord.AcknowledgeRead(ctx, counterpartID); err != nil {
		return err
	}

	in.mu.Lock()
	defer in.mu.Unlock()
	if in.active != counterpartID {
		return nil
	}
	for i := range in.messages {
		if in.messages[i].Sender == counterpartID {
			in.messages[i].Read = true
		}
	}
	return nil
}

// Send sends text to the active thread and appends the stored record.
func (in *Inbox) Send(ctx context.Context, text, sharedPostID string) (models.Message, error) {
	in.mu.Lock()
	to := in.active
	in.mu.Unlock()
	if to == "" {
		return models.Message{}, fmt.Errorf("%w: no open thread", models.ErrInvalidArgument)
	}

	msg, err := in.coord.SendMessage(ctx, to, text, sharedPostID)
	if err != nil {
		return models.Message{}, err
	}

	in.mu.Lock()
	if in.active == to {
		in.mergeLocked(msg)
	}
	in.mu.Unlock()
	return msg, nil
}

// mergeLocked inserts m keeping the thread ordered and unique by id. A
// record seen twice keeps the read flag if either copy has it.
func (in *Inbox) mergeLocked(m models.Message) {
	if i, ok := in.index[m.ID]; ok {
		in.messages[i].Read = in.messages[i].Read || m.Read
		return
	}

	pos := len(in.messages)
	for pos > 0 && in.messages[pos-1].CreatedAt.After(m.CreatedAt) {
		pos--
	}
	in.messages = slices.Insert(in.messages, pos, m)
	for i := pos; i < len(in.messages); i++ {
		in.index[in.messages[i].ID] = i
	}
}

// seenLocked records m under its sender and reports whether it was new.
func (in *Inbox) seenLocked(m models.Message) bool {
	ids, ok := in.seen[m.Sender]
	if !ok {
		ids = make(map[string]struct{})
		in.seen[m.Sender] = ids
	}
	if _, ok := ids[m.ID]; ok {
		return false
	}
	ids[m.ID] = struct{}{}
	return true
}

// HandleEvent applies one server event.
func (in *Inbox) HandleEvent(ctx context.Context, ev Event) error {
	switch ev.Name {
	case models.EventReceiveMessage:
		var m models.ReceivedMessage
		if err := ev.Decode(&m); err != nil {
			return fmt.Errorf("bad %s event: %w", ev.Name, err)
		}
		return in.receive(ctx, m.Message)

	case models.EventDisplayTyping:
		var p models.DisplayTyping
		if err := ev.Decode(&p); err != nil {
			return fmt.Errorf("bad %s event: %w", ev.Name, err)
		}
		in.mu.Lock()
		if p.SenderID == in.active {
			in.typing, in.typingName = true, p.SenderName
		}
		in.mu.Unlock()

	case models.EventHideTyping:
		var p models.HideTyping
		if err := ev.Decode(&p); err != nil {
			return fmt.Errorf("bad %s event: %w", ev.Name, err)
		}
		in.mu.Lock()
		if p.SenderID == in.active {
			in.typing, in.typingName = false, ""
		}
		in.mu.Unlock()

	case models.EventMessagesRead:
		var p models.MessagesRead
		if err := ev.Decode(&p); err != nil {
			return fmt.Errorf("bad %s event: %w", ev.Name, err)
		}
		in.mu.Lock()
		if p.ReceiverID == in.active {
			for i := range in.messages {
				if in.messages[i].Sender == in.self {
					in.messages[i].Read = true
				}
			}
		}
		in.mu.Unlock()

	case models.EventOnlineUsers:
		var entries []models.PresenceEntry
		if err := ev.Decode(&entries); err != nil {
			return fmt.Errorf("bad %s event: %w", ev.Name, err)
		}
		in.mu.Lock()
		clear(in.online)
		for _, e := range entries {
			in.online[e.UserID] = struct{}{}
		}
		in.mu.Unlock()

	default:
		slog.Debug("ignoring realtime event", "event", ev.Name)
	}
	return nil
}

func (in *Inbox) receive(ctx context.Context, m models.Message) error {
	in.mu.Lock()
	switch {
	case m.Sender == in.active:
		in.mergeLocked(m)
		in.seenLocked(m)
		in.typing, in.typingName = false, ""
		in.mu.Unlock()
		return in.acknowledge(ctx, m.Sender)
	case m.Sender == in.self && m.Receiver == in.active:
		// sent from another session of ours
		in.mergeLocked(m)
	case m.Sender != in.self:
		if in.seenLocked(m) {
			in.unread[m.Sender]++
		}
	}
	in.mu.Unlock()
	return nil
}

func (in *Inbox) Active() string {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.active
}

// Messages returns a copy of the open thread, oldest first.
func (in *Inbox) Messages() []models.Message {
	in.mu.Lock()
	defer in.mu.Unlock()
	return slices.Clone(in.messages)
}

// Typing reports whether the counterpart of the open thread is typing.
func (in *Inbox) Typing() (bool, string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.typing, in.typingName
}

func (in *Inbox) Unread(senderID string) int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.unread[senderID]
}

func (in *Inbox) IsOnline(userID string) bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	_, ok := in.online[userID]
	return ok
}
