// Package calls retrieves conversation transcripts from the Beyond Presence
// agent vendor.
package calls

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrMissingAPIKey is returned when neither the request nor the environment
// provided a vendor API key.
var ErrMissingAPIKey = errors.New("missing Beyond Presence API key")

// StatusError carries the vendor's HTTP status so handlers can pass it
// through instead of collapsing everything into 500.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("beyond presence status %d: %s", e.StatusCode, e.Body)
}

// Message is one prior message from a call.
type Message struct {
	Message string    `json:"message"`
	SentAt  time.Time `json:"sent_at"`
	Sender  string    `json:"sender"`
}

// CallHistory is the full message list for one call.
type CallHistory struct {
	CallID   string    `json:"call_id"`
	Messages []Message `json:"messages"`
}

type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewClient builds a vendor client. apiKey may be empty; per-request keys can
// still be supplied through CallMessagesWithKey.
func NewClient(baseURL, apiKey string) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.beyondpresence.ai/v1"
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  strings.TrimSpace(apiKey),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// CallMessages fetches all prior messages for a call using the configured key.
func (c *Client) CallMessages(ctx context.Context, callID string) (CallHistory, error) {
	return c.CallMessagesWithKey(ctx, callID, "")
}

// CallMessagesWithKey fetches call messages, preferring the per-request key
// over the configured one.
func (c *Client) CallMessagesWithKey(ctx context.Context, callID, apiKey string) (CallHistory, error) {
	key := strings.TrimSpace(apiKey)
	if key == "" {
		key = c.apiKey
	}
	if key == "" {
		return CallHistory{}, ErrMissingAPIKey
	}

	url := fmt.Sprintf("%s/calls/%s/messages", c.baseURL, callID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return CallHistory{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("x-api-key", key)
	req.Header.Set("Accept", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return CallHistory{}, fmt.Errorf("beyond presence request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return CallHistory{}, &StatusError{StatusCode: res.StatusCode, Body: string(snippet)}
	}

	var messages []Message
	if err := json.NewDecoder(res.Body).Decode(&messages); err != nil {
		return CallHistory{}, fmt.Errorf("decode messages: %w", err)
	}
	return CallHistory{CallID: callID, Messages: messages}, nil
}
