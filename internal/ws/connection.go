package ws

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"socialmart/internal/models"

	"github.com/google/uuid"
)

type wsConnection interface {
	Close() error
	WriteJSON(v any) error
	ReadJSON(v any) error
}

type gateway interface {
	Connect(connID, authUserID string) <-chan models.ServerEvent
	Dispatch(connID string, ev models.ClientEvent) error
	Disconnect(connID string)
}

// Connection pumps events between one websocket and the hub. Its lifecycle
// is Connecting (NewConnection) -> Joined/Active (client join, traffic) ->
// Disconnected (Handle returns).
type Connection struct {
	ws         wsConnection
	hub        gateway
	id         string
	userID     string
	fromClient chan models.ClientEvent
	fromServer <-chan models.ServerEvent
	errorCh    chan error
}

func NewConnection(
	hub gateway,
	ws wsConnection,
	userID string,
) *Connection {
	id := uuid.NewString()
	return &Connection{
		ws:         ws,
		hub:        hub,
		id:         id,
		userID:     userID,
		fromClient: make(chan models.ClientEvent),
		fromServer: hub.Connect(id, userID),
		errorCh:    make(chan error, 2),
	}
}

func (c *Connection) ID() string {
	return c.id
}

func (c *Connection) Handle(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer func() {
		close(c.errorCh)
		c.hub.Disconnect(c.id)
	}()

	var wg sync.WaitGroup
	wg.Go(func() {
		c.errorCh <- c.pumpMessages(ctx)
		cancel()
	})

	wg.Go(func() {
		c.errorCh <- c.mainLoop(ctx)
		cancel()
	})

	var err error
	select {
	case err = <-c.errorCh:
	case <-ctx.Done():
	}
	_ = c.ws.Close()
	wg.Wait()

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}

func (c *Connection) pumpMessages(ctx context.Context) error {
	for {
		var msg models.ClientEvent
		if err := c.ws.ReadJSON(&msg); err != nil {
			return err
		}
		select {
		case c.fromClient <- msg:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Connection) mainLoop(ctx context.Context) error {
	for {
		select {
		case msg := <-c.fromClient:
			if err := c.hub.Dispatch(c.id, msg); err != nil {
				slog.Warn("client event rejected",
					"conn_id", c.id,
					"user_id", c.userID,
					"event", msg.Event,
					"error", err)
			}
		case msg, ok := <-c.fromServer:
			if !ok {
				return nil
			}
			if err := c.ws.WriteJSON(msg); err != nil {
				return err
			}
		case <-ctx.Done():
			return nil
		}
	}
}
