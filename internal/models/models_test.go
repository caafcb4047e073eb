package models

import (
	"errors"
	"testing"
)

func TestNewMessage_Validate(t *testing.T) {
	tests := []struct {
		name    string
		msg     NewMessage
		wantErr bool
	}{
		{"Text message", NewMessage{Sender: "a", Receiver: "b", Content: "hi"}, false},
		{"Bare post share", NewMessage{Sender: "a", Receiver: "b", SharedPost: "p1"}, false},
		{"Share with caption", NewMessage{Sender: "a", Receiver: "b", Content: "look", SharedPost: "p1"}, false},
		{"Empty", NewMessage{Sender: "a", Receiver: "b"}, true},
		{"No sender", NewMessage{Receiver: "b", Content: "hi"}, true},
		{"No receiver", NewMessage{Sender: "a", Content: "hi"}, true},
		{"Self", NewMessage{Sender: "a", Receiver: "a", Content: "hi"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("expected ErrInvalidArgument, got %v", err)
			}
		})
	}
}
