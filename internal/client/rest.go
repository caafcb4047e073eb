package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"socialmart/internal/api"
	"socialmart/internal/models"
)

// APIError is a non-success response from the REST API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error (status %d)", e.StatusCode)
	}
	return fmt.Sprintf("api error (status %d): %s", e.StatusCode, e.Message)
}

// APIClient calls the REST API on behalf of one token holder.
type APIClient struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewAPIClient returns a client for the API rooted at baseURL, for example
// http://localhost:8080/api.
func NewAPIClient(baseURL, token string) *APIClient {
	return &APIClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *APIClient) CreateMessage(ctx context.Context, req api.CreateMessageRequest) (models.Message, error) {
	var msg models.Message
	err := c.do(ctx, http.MethodPost, "/messages", req, &msg)
	return msg, err
}

// Conversation returns the history with counterpartID, oldest first.
func (c *APIClient) Conversation(ctx context.Context, counterpartID string) ([]models.Message, error) {
	var msgs []models.Message
	err := c.do(ctx, http.MethodGet, "/messages/"+url.PathEscape(counterpartID), nil, &msgs)
	return msgs, err
}

func (c *APIClient) MarkRead(ctx context.Context, senderID string) (int, error) {
	var resp models.MarkReadResponse
	if err := c.do(ctx, http.MethodPost, "/messages/"+url.PathEscape(senderID)+"/read", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Updated, nil
}

func (c *APIClient) Conversations(ctx context.Context) ([]models.ConversationPreview, error) {
	var previews []models.ConversationPreview
	err := c.do(ctx, http.MethodGet, "/conversations", nil, &previews)
	return previews, err
}

func (c *APIClient) Me(ctx context.Context) (models.User, error) {
	var user models.User
	err := c.do(ctx, http.MethodGet, "/me", nil, &user)
	return user, err
}

func (c *APIClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var decoded models.APIResponse
		if json.Unmarshal(raw, &decoded) == nil && decoded.Message != "" {
			apiErr.Message = decoded.Message
		} else {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
