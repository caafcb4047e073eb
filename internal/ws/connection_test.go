package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"socialmart/internal/models"
)

type mockWS struct {
	readCh      chan models.ClientEvent
	writeCh     chan any
	closeCh     chan struct{}
	closeOnce   sync.Once
	closed      bool
	errToReturn error
}

func newMockWS() *mockWS {
	return &mockWS{
		readCh:  make(chan models.ClientEvent, 10),
		writeCh: make(chan any, 10),
		closeCh: make(chan struct{}),
	}
}

func (m *mockWS) Close() error {
	m.closeOnce.Do(func() {
		m.closed = true
		close(m.closeCh)
	})
	return nil
}

func (m *mockWS) WriteJSON(v any) error {
	if m.errToReturn != nil {
		return m.errToReturn
	}
	m.writeCh <- v
	return nil
}

func (m *mockWS) ReadJSON(v any) error {
	if m.errToReturn != nil {
		return m.errToReturn
	}
	select {
	case msg, ok := <-m.readCh:
		if !ok {
			return errors.New("closed")
		}
		if ptr, ok := v.(*models.ClientEvent); ok {
			*ptr = msg
		}
		return nil
	case <-m.closeCh:
		return errors.New("connection closed")
	}
}

type mockHub struct {
	connectCh    chan string
	disconnectCh chan string
	dispatchCh   chan models.ClientEvent

	mu        sync.Mutex
	userChans map[string]chan models.ServerEvent
}

func newMockHub() *mockHub {
	return &mockHub{
		connectCh:    make(chan string, 10),
		disconnectCh: make(chan string, 10),
		dispatchCh:   make(chan models.ClientEvent, 10),
		userChans:    make(map[string]chan models.ServerEvent),
	}
}

func (m *mockHub) Connect(connID, userID string) <-chan models.ServerEvent {
	m.connectCh <- userID
	ch := make(chan models.ServerEvent, 10)
	m.mu.Lock()
	m.userChans[connID] = ch
	m.mu.Unlock()
	return ch
}

func (m *mockHub) Disconnect(connID string) {
	m.disconnectCh <- connID
	m.mu.Lock()
	defer m.mu.Unlock()
	if ch, ok := m.userChans[connID]; ok {
		close(ch)
		delete(m.userChans, connID)
	}
}

func (m *mockHub) Dispatch(connID string, msg models.ClientEvent) error {
	m.dispatchCh <- msg
	return nil
}

func (m *mockHub) sink(connID string) chan models.ServerEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.userChans[connID]
}

func TestConnection_Lifecycle(t *testing.T) {
	hub := newMockHub()
	ws := newMockWS()
	userID := "user1"

	conn := NewConnection(hub, ws, userID)
	if conn == nil {
		t.Fatal("NewConnection returned nil")
	}

	select {
	case id := <-hub.connectCh:
		if id != userID {
			t.Errorf("Expected Connect with %s, got %s", userID, id)
		}
	default:
		t.Error("Connect not called on NewConnection")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error)
	go func() {
		done <- conn.Handle(ctx)
	}()

	// 1. Client -> Hub
	clientMsg := models.ClientEvent{
		Event: models.EventJoin,
		Data:  json.RawMessage(`"user1"`),
	}
	ws.readCh <- clientMsg

	select {
	case received := <-hub.dispatchCh:
		if received.Event != models.EventJoin || string(received.Data) != `"user1"` {
			t.Errorf("Hub received wrong event: %v", received)
		}
	case <-time.After(1 * time.Second):
		t.Error("Hub did not receive dispatched event")
	}

	// 2. Hub -> Client
	serverMsg := models.ServerEvent{
		Event: models.EventReceiveMessage,
		Data:  models.ReceivedMessage{Message: models.Message{Content: "hi back"}},
	}
	hub.sink(conn.ID()) <- serverMsg

	select {
	case received := <-ws.writeCh:
		sMsg, ok := received.(models.ServerEvent)
		if !ok {
			t.Fatalf("WS received wrong type: %T", received)
		}
		if rm, ok := sMsg.Data.(models.ReceivedMessage); !ok || rm.Content != "hi back" {
			t.Errorf("WS received wrong content: %v", sMsg)
		}
	case <-time.After(1 * time.Second):
		t.Error("WS did not receive server event")
	}

	// 3. Stop
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Handle returned error: %v", err)
		}
	case <-time.After(1 * time.Second):
		t.Error("Handle did not return after cancel")
	}

	select {
	case id := <-hub.disconnectCh:
		if id != conn.ID() {
			t.Errorf("Expected Disconnect with %s, got %s", conn.ID(), id)
		}
	default:
		t.Error("Disconnect not called")
	}

	if !ws.closed {
		t.Error("WS Close not called")
	}
}

func TestConnection_WSError(t *testing.T) {
	hub := newMockHub()
	ws := newMockWS()

	conn := NewConnection(hub, ws, "user2")

	ws.errToReturn = errors.New("read error")

	done := make(chan error)
	go func() {
		done <- conn.Handle(context.Background())
	}()

	select {
	case err := <-done:
		if err == nil {
			t.Error("Expected error from Handle, got nil")
		}
	case <-time.After(1 * time.Second):
		t.Error("Handle did not return on error")
	}

	if !ws.closed {
		t.Error("WS Close not called")
	}

	select {
	case <-hub.disconnectCh:
	default:
		t.Error("Disconnect not called after error")
	}
}

func TestConnection_ClientClose(t *testing.T) {
	hub := newMockHub()
	ws := newMockWS()
	conn := NewConnection(hub, ws, "user3")

	done := make(chan error)
	go func() {
		done <- conn.Handle(context.Background())
	}()

	close(ws.readCh)

	select {
	case err := <-done:
		if err == nil {
			t.Error("Expected read error from Handle")
		}
	case <-time.After(1 * time.Second):
		t.Error("Handle did not return after client close")
	}
}
