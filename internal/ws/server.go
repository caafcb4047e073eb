package ws

import (
	"log/slog"
	"net/http"
	"slices"
	"time"

	"socialmart/internal/auth"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 16 << 10
)

type tokenVerifier interface {
	VerifyToken(token string) (auth.Identity, error)
}

type Server struct {
	auth     tokenVerifier
	hub      gateway
	upgrader *websocket.Upgrader
}

// NewServer builds the realtime endpoint. An empty allowedOrigins accepts
// any origin.
func NewServer(auth tokenVerifier, hub gateway, allowedOrigins []string) *Server {
	return &Server{
		auth: auth,
		hub:  hub,
		upgrader: &websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				if len(allowedOrigins) == 0 {
					return true
				}
				return slices.Contains(allowedOrigins, r.Header.Get("Origin"))
			},
		},
	}
}

func (s *Server) HandleConnections(w http.ResponseWriter, r *http.Request) {
	identity, err := s.auth.VerifyToken(auth.TokenFromRequest(r))
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("error upgrading to websocket", "error", err)
		return
	}

	wsConn := newDeadlineConn(conn)
	c := NewConnection(s.hub, wsConn, identity.UserID)
	slog.Info("realtime connection opened", "conn_id", c.ID(), "user_id", identity.UserID)

	done := make(chan struct{})
	go wsConn.keepalive(done)

	if err := c.Handle(r.Context()); err != nil && !isNormalClose(err) {
		slog.Warn("realtime connection closed with error", "conn_id", c.ID(), "error", err)
	}
	close(done)
	slog.Info("realtime connection closed", "conn_id", c.ID(), "user_id", identity.UserID)
}

func isNormalClose(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived)
}

// deadlineConn applies read/write deadlines and ping/pong keepalive to a
// gorilla connection.
type deadlineConn struct {
	*websocket.Conn
}

func newDeadlineConn(conn *websocket.Conn) *deadlineConn {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	return &deadlineConn{Conn: conn}
}

func (c *deadlineConn) WriteJSON(v any) error {
	if err := c.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.Conn.WriteJSON(v)
}

func (c *deadlineConn) keepalive(done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
