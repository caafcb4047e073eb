package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"socialmart/internal/api"
	"socialmart/internal/models"
)

func TestAPIClient(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/messages", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		var req api.CreateMessageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Content == "" {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(models.APIResponse{Message: "invalid argument: content or sharedPostId is required"})
			return
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(models.Message{ID: "m1", Sender: "userX", Receiver: req.ReceiverID, Content: req.Content})
	})
	mux.HandleFunc("GET /api/messages/{userId}", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]models.Message{{ID: "m1", Receiver: r.PathValue("userId")}})
	})
	mux.HandleFunc("POST /api/messages/{userId}/read", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(models.MarkReadResponse{APIResponse: models.APIResponse{Success: true}, Updated: 3})
	})
	mux.HandleFunc("GET /api/me", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewAPIClient(srv.URL+"/api/", "tok")
	ctx := context.Background()

	msg, err := c.CreateMessage(ctx, api.CreateMessageRequest{ReceiverID: "userY", Content: "hi"})
	require.NoError(t, err)
	require.Equal(t, "m1", msg.ID)
	require.Equal(t, "userY", msg.Receiver)

	_, err = c.CreateMessage(ctx, api.CreateMessageRequest{ReceiverID: "userY"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	require.Contains(t, apiErr.Message, "content or sharedPostId")

	msgs, err := c.Conversation(ctx, "userY")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, "userY", msgs[0].Receiver)

	n, err := c.MarkRead(ctx, "userY")
	require.NoError(t, err)
	require.Equal(t, 3, n)

	_, err = c.Me(ctx)
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	require.Equal(t, "boom", apiErr.Message)
}
