package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"socialmart/internal/models"
)

const (
	writeWait   = 10 * time.Second
	eventBuffer = 64
)

// Event is one server event as received on the wire.
type Event struct {
	Name string          `json:"event"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Decode unmarshals the event data into v.
func (e Event) Decode(v any) error {
	return json.Unmarshal(e.Data, v)
}

// Realtime is a client connection to the realtime gateway.
type Realtime struct {
	conn      *websocket.Conn
	events    chan Event
	done      chan struct{}
	closeOnce sync.Once

	writeMu sync.Mutex
	errMu   sync.Mutex
	err     error
}

// Dial connects to the gateway at wsURL authenticating with token.
func Dial(ctx context.Context, wsURL, token string) (*Realtime, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to dial %s (status %d): %w", wsURL, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to dial %s: %w", wsURL, err)
	}

	r := &Realtime{
		conn:   conn,
		events: make(chan Event, eventBuffer),
		done:   make(chan struct{}),
	}
	go r.readLoop()
	return r, nil
}

func (r *Realtime) readLoop() {
	defer close(r.events)
	for {
		var ev Event
		if err := r.conn.ReadJSON(&ev); err != nil {
			select {
			case <-r.done:
				return
			default:
			}
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				r.errMu.Lock()
				r.err = err
				r.errMu.Unlock()
			}
			return
		}
		select {
		case r.events <- ev:
		case <-r.done:
			return
		}
	}
}

// Events delivers server events in arrival order. The channel is closed
// when the connection ends or Close is called.
func (r *Realtime) Events() <-chan Event {
	return r.events
}

// Err reports why the read side stopped, if it stopped abnormally.
func (r *Realtime) Err() error {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	return r.err
}

func (r *Realtime) Emit(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", event, err)
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	_ = r.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return r.conn.WriteJSON(models.ClientEvent{Event: event, Data: data})
}

// Join announces userID on this connection. It must match the token.
func (r *Realtime) Join(userID string) error {
	return r.Emit(models.EventJoin, userID)
}

// Close ends the connection. It is safe to call more than once and does not
// require Events to be drained.
func (r *Realtime) Close() error {
	var err error
	r.closeOnce.Do(func() {
		close(r.done)

		r.writeMu.Lock()
		_ = r.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait),
		)
		r.writeMu.Unlock()
		err = r.conn.Close()
	})
	return err
}
