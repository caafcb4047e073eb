package commands

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"socialmart/internal/api"
	"socialmart/internal/config"
	"socialmart/internal/models"
)

func TestIssueToken(t *testing.T) {
	var got api.IssueTokenRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/admin/tokens", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		if got.UserID == "bad id" {
			http.Error(w, "invalid argument", http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(models.TokenResponse{Token: "signed", ExpiresAt: 1700000000})
	}))
	defer srv.Close()

	cfg := &config.Config{
		AdminAddr:    strings.TrimPrefix(srv.URL, "http://"),
		BaseURL:      "http://localhost:8080/",
		APIPrefix:    "/api",
		RealtimePath: "/api/realtime",
	}

	var out bytes.Buffer
	require.NoError(t, IssueToken(&out, "userA", "Alice", cfg))
	require.Equal(t, api.IssueTokenRequest{UserID: "userA", DisplayName: "Alice"}, got)
	require.Contains(t, out.String(), "Token:     signed")
	require.Contains(t, out.String(), "-api http://localhost:8080/api -ws ws://localhost:8080/api/realtime")

	err := IssueToken(&out, "bad id", "", cfg)
	require.ErrorContains(t, err, "Status: 400")
}
