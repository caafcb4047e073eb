package api

import (
	"encoding/json"
	"net/http"
	"time"

	"socialmart/internal/models"
)

type tokenIssuer interface {
	IssueToken(userID, displayName string) (string, time.Time, error)
}

type presenceSnapshot interface {
	Snapshot() []models.PresenceEntry
}

// AdminHandler serves the local-only admin API.
type AdminHandler struct {
	issuer   tokenIssuer
	presence presenceSnapshot
}

func NewAdminHandler(issuer tokenIssuer, presence presenceSnapshot) *AdminHandler {
	return &AdminHandler{issuer: issuer, presence: presence}
}

type IssueTokenRequest struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName,omitempty"`
}

func (h *AdminHandler) IssueTokenHandler(w http.ResponseWriter, r *http.Request) {
	var req IssueTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	token, expiresAt, err := h.issuer.IssueToken(req.UserID, req.DisplayName)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, models.TokenResponse{
		Token:     token,
		ExpiresAt: expiresAt.Unix(),
	})
}

func (h *AdminHandler) PresenceHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.presence.Snapshot())
}
