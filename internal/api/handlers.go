package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"socialmart/internal/auth"
	"socialmart/internal/content"
	"socialmart/internal/models"
)

type ctxKey int

const identityKey ctxKey = iota

type authenticator interface {
	VerifyToken(token string) (auth.Identity, error)
	Logoff(token string) error
}

type messageStore interface {
	CreateMessage(msg models.NewMessage) (models.Message, error)
	ListConversation(a, b string) ([]models.Message, error)
	MarkRead(senderID, receiverID string) (int, error)
	ListConversations(userID string) ([]models.ConversationPreview, error)
	GetUser(id string) (models.User, error)
	ListUsers() ([]models.User, error)
}

type presenceView interface {
	IsOnline(userID string) bool
	OnlineUsers() []string
}

type API struct {
	auth     authenticator
	store    messageStore
	presence presenceView
}

func New(auth authenticator, store messageStore, presence presenceView) *API {
	return &API{auth: auth, store: store, presence: presence}
}

// CreateMessageRequest is the durable write of a direct message.
type CreateMessageRequest struct {
	ReceiverID   string `json:"receiverId"`
	Content      string `json:"content"`
	SharedPostID string `json:"sharedPostId,omitempty"`
}

// RequireAuth verifies the caller's token and stores the identity in the
// request context.
func (a *API) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := a.auth.VerifyToken(auth.TokenFromRequest(r))
		if err != nil {
			writeError(w, err)
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), identityKey, id)))
	}
}

// RequireSameOrigin rejects cross-origin state-changing requests that carry
// an Origin header for a different host.
func RequireSameOrigin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" {
			if origin != "http://"+r.Host && origin != "https://"+r.Host {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
		}
		next(w, r)
	}
}

func identityFrom(r *http.Request) auth.Identity {
	id, _ := r.Context().Value(identityKey).(auth.Identity)
	return id
}

func (a *API) CreateMessageHandler(w http.ResponseWriter, r *http.Request) {
	me := identityFrom(r)

	var req CreateMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := content.ValidateID(req.ReceiverID); err != nil {
		writeError(w, fmt.Errorf("%w: receiverId: %v", models.ErrInvalidArgument, err))
		return
	}
	if req.SharedPostID != "" {
		if err := content.ValidateID(req.SharedPostID); err != nil {
			writeError(w, fmt.Errorf("%w: sharedPostId: %v", models.ErrInvalidArgument, err))
			return
		}
	}
	text := req.Content
	if content.IsBlank(text) {
		text = ""
	} else if err := content.ValidateMessage(text); err != nil {
		writeError(w, fmt.Errorf("%w: %v", models.ErrInvalidArgument, err))
		return
	}

	msg, err := a.store.CreateMessage(models.NewMessage{
		Sender:     me.UserID,
		Receiver:   req.ReceiverID,
		Content:    text,
		SharedPost: req.SharedPostID,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, msg)
}

func (a *API) ConversationHandler(w http.ResponseWriter, r *http.Request) {
	me := identityFrom(r)
	other := r.PathValue("userId")
	if err := content.ValidateID(other); err != nil {
		writeError(w, fmt.Errorf("%w: %v", models.ErrInvalidArgument, err))
		return
	}

	msgs, err := a.store.ListConversation(me.UserID, other)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

// MarkReadHandler marks every message the path user sent to the caller as
// read.
func (a *API) MarkReadHandler(w http.ResponseWriter, r *http.Request) {
	me := identityFrom(r)
	sender := r.PathValue("userId")
	if err := content.ValidateID(sender); err != nil {
		writeError(w, fmt.Errorf("%w: %v", models.ErrInvalidArgument, err))
		return
	}

	n, err := a.store.MarkRead(sender, me.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.MarkReadResponse{
		APIResponse: models.APIResponse{Success: true},
		Updated:     n,
	})
}

func (a *API) ConversationsHandler(w http.ResponseWriter, r *http.Request) {
	previews, err := a.store.ListConversations(identityFrom(r).UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, previews)
}

func (a *API) MeHandler(w http.ResponseWriter, r *http.Request) {
	user, err := a.store.GetUser(identityFrom(r).UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	user.Online = a.presence.IsOnline(user.ID)
	writeJSON(w, http.StatusOK, user)
}

func (a *API) UsersHandler(w http.ResponseWriter, r *http.Request) {
	users, err := a.store.ListUsers()
	if err != nil {
		writeError(w, err)
		return
	}
	if users == nil {
		users = []models.User{}
	}
	for i := range users {
		users[i].Online = a.presence.IsOnline(users[i].ID)
	}
	writeJSON(w, http.StatusOK, users)
}

func (a *API) PresenceHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.presence.OnlineUsers())
}

func (a *API) LogoffHandler(w http.ResponseWriter, r *http.Request) {
	if token := auth.TokenFromRequest(r); token != "" {
		_ = a.auth.Logoff(token)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "token",
		Value:    "",
		HttpOnly: true,
		Path:     "/",
		MaxAge:   -1,
	})

	writeJSON(w, http.StatusOK, models.APIResponse{Success: true})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := "internal error"
	switch {
	case errors.Is(err, models.ErrNotFound):
		status, message = http.StatusNotFound, err.Error()
	case errors.Is(err, models.ErrInvalidArgument):
		status, message = http.StatusBadRequest, err.Error()
	case errors.Is(err, models.ErrUnauthorized):
		status, message = http.StatusUnauthorized, "Unauthorized"
	default:
		slog.Error("request failed", "error", err)
	}
	writeJSON(w, status, models.APIResponse{Success: false, Message: message})
}
