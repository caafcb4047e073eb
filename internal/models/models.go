package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrUnauthorized    = errors.New("unauthorized")
)

// User is a participant identity. Users are created lazily the first time
// one of their tokens is verified.
type User struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"displayName"`
	AvatarURL   string    `json:"avatarUrl,omitempty"`
	Online      bool      `json:"online"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Message is a durable direct message. Everything except Read is immutable
// once created.
type Message struct {
	ID         string    `json:"id"`
	Sender     string    `json:"sender"`
	Receiver   string    `json:"receiver"`
	Content    string    `json:"content"`
	SharedPost string    `json:"sharedPost,omitempty"`
	Read       bool      `json:"read"`
	CreatedAt  time.Time `json:"createdAt"`
}

// NewMessage carries the fields a sender controls when creating a Message.
type NewMessage struct {
	Sender     string
	Receiver   string
	Content    string
	SharedPost string
}

// Validate checks the invariants of a message creation request.
func (m NewMessage) Validate() error {
	switch {
	case m.Sender == "":
		return fmt.Errorf("%w: sender is required", ErrInvalidArgument)
	case m.Receiver == "":
		return fmt.Errorf("%w: receiverId is required", ErrInvalidArgument)
	case m.Sender == m.Receiver:
		return fmt.Errorf("%w: cannot message yourself", ErrInvalidArgument)
	case m.Content == "" && m.SharedPost == "":
		return fmt.Errorf("%w: content or sharedPostId is required", ErrInvalidArgument)
	}
	return nil
}

// ConversationPreview summarises a conversation from one participant's side.
type ConversationPreview struct {
	Counterpart string  `json:"counterpart"`
	LastMessage Message `json:"lastMessage"`
	Unread      int     `json:"unread"`
}

// PresenceEntry describes one live realtime connection.
type PresenceEntry struct {
	UserID       string `json:"userId"`
	ConnectionID string `json:"socketId"`
}

type APIResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type MarkReadResponse struct {
	APIResponse
	Updated int `json:"updated"`
}

type TokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expiresAt"` // Unix timestamp (seconds)
}

// Realtime event names.
const (
	EventJoin        = "join"
	EventSendMessage = "send_message"
	EventTyping      = "typing"
	EventStopTyping  = "stop_typing"
	EventMarkRead    = "mark_read"

	EventReceiveMessage = "receive_message"
	EventDisplayTyping  = "display_typing"
	EventHideTyping     = "hide_typing"
	EventMessagesRead   = "messages_read"
	EventOnlineUsers    = "get_online_users"
)

// ClientEvent is an event sent from the client to the server. Data is
// decoded according to Event.
type ClientEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ServerEvent is an event sent from the server to the client.
type ServerEvent struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// SendMessagePayload is the data of a send_message event.
type SendMessagePayload struct {
	ReceiverID   string  `json:"receiverId"`
	Message      Message `json:"message"`
	SenderName   string  `json:"senderName,omitempty"`
	SenderAvatar string  `json:"senderAvatar,omitempty"`
}

// ReceivedMessage is the data of a receive_message event.
type ReceivedMessage struct {
	Message
	SenderName   string `json:"senderName,omitempty"`
	SenderAvatar string `json:"senderAvatar,omitempty"`
}

type TypingPayload struct {
	ReceiverID string `json:"receiverId"`
	SenderName string `json:"senderName"`
}

type StopTypingPayload struct {
	ReceiverID string `json:"receiverId"`
}

type MarkReadPayload struct {
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId"`
}

type DisplayTyping struct {
	SenderID   string `json:"senderId"`
	SenderName string `json:"senderName"`
}

type HideTyping struct {
	SenderID string `json:"senderId"`
}

type MessagesRead struct {
	ReceiverID string `json:"receiverId"`
}
