package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"socialmart/internal/api"
	"socialmart/internal/config"
	"socialmart/internal/models"
)

// IssueToken asks the running server's admin API for a token and prints it
// to out.
func IssueToken(out io.Writer, userID, displayName string, cfg *config.Config) error {
	reqBody, err := json.Marshal(api.IssueTokenRequest{UserID: userID, DisplayName: displayName})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("http://%s/admin/tokens", cfg.AdminAddr)
	resp, err := http.Post(url, "application/json", bytes.NewBuffer(reqBody))
	if err != nil {
		return fmt.Errorf("failed to call admin API: %w. Is the server running?", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("failed to issue token (Status: %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result models.TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if out == nil {
		out = os.Stdout
	}
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	wsURL := "ws" + strings.TrimPrefix(baseURL, "http") + cfg.RealtimePath

	_, _ = fmt.Fprintf(out, "\nToken issued for %s\n", userID)
	_, _ = fmt.Fprintf(out, "Expires:   %s\n", time.Unix(result.ExpiresAt, 0).Format(time.RFC3339))
	_, _ = fmt.Fprintf(out, "Token:     %s\n\n", result.Token)
	_, _ = fmt.Fprintf(out, "Connect with:\n  smchat -api %s%s -ws %s -token %s -to <userId>\n",
		baseURL, cfg.APIPrefix, wsURL, result.Token)
	return nil
}
