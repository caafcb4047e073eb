package http

import (
	"context"
	"log"
	"net"
	"net/http"
	"sync"

	"socialmart/internal/api"
	"socialmart/internal/auth"
	"socialmart/internal/config"
	"socialmart/internal/storage"
	"socialmart/internal/ws"
)

type APIServer struct {
	server *http.Server
	wg     sync.WaitGroup
}

// NewAPIServer wires the public REST API, the realtime endpoint and the
// optional static client. Realtime connections inherit ctx so they end when
// it is cancelled.
func NewAPIServer(ctx context.Context, cfg *config.Config, authService *auth.AuthService, hub *ws.Hub, storage *storage.BboltStorage) *APIServer {
	server := ws.NewServer(authService, hub, cfg.AllowedOrigins)
	apiHandlers := api.New(authService, storage, hub)
	p := cfg.APIPrefix

	mux := http.NewServeMux()

	if cfg.StaticDir != "" {
		mux.Handle("GET /", NewFileServerHandler(cfg.StaticDir))
	}

	mux.HandleFunc("POST "+p+"/messages", api.RequireSameOrigin(apiHandlers.RequireAuth(apiHandlers.CreateMessageHandler)))
	mux.HandleFunc("GET "+p+"/messages/{userId}", apiHandlers.RequireAuth(apiHandlers.ConversationHandler))
	mux.HandleFunc("POST "+p+"/messages/{userId}/read", api.RequireSameOrigin(apiHandlers.RequireAuth(apiHandlers.MarkReadHandler)))
	mux.HandleFunc("GET "+p+"/conversations", apiHandlers.RequireAuth(apiHandlers.ConversationsHandler))
	mux.HandleFunc("GET "+p+"/me", apiHandlers.RequireAuth(apiHandlers.MeHandler))
	mux.HandleFunc("GET "+p+"/users", apiHandlers.RequireAuth(apiHandlers.UsersHandler))
	mux.HandleFunc("GET "+p+"/presence", apiHandlers.RequireAuth(apiHandlers.PresenceHandler))
	mux.HandleFunc("POST "+p+"/logoff", api.RequireSameOrigin(apiHandlers.LogoffHandler))

	// Realtime endpoint
	mux.HandleFunc("GET "+cfg.RealtimePath, server.HandleConnections)

	addr := cfg.APIAddr
	if addr == "" {
		addr = ":8080"
	}

	return &APIServer{
		server: &http.Server{
			Addr:        addr,
			Handler:     mux,
			BaseContext: func(net.Listener) context.Context { return ctx },
		},
	}
}

func (s *APIServer) Start() error {
	log.Printf("Server started on %s", s.server.Addr)
	s.wg.Add(1)
	defer s.wg.Done()

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *APIServer) Shutdown(ctx context.Context) error {
	defer s.wg.Wait()
	return s.server.Shutdown(ctx)
}
