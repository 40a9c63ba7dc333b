// Package slack implements the interactive-card collaborator: posting
// proposal cards, replacing them in place via response urls, and opening
// the feedback modal.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sajaddeen/readai-task-automation/internal/card"
	"github.com/sajaddeen/readai-task-automation/internal/config"
)

// Client posts and replaces cards on the messaging surface.
type Client struct {
	baseURL    string
	token      config.Secret
	channel    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a messenger client from config.
func NewClient(cfg config.SlackConfig, logger *zap.Logger) (*Client, error) {
	if !cfg.BotToken.IsSet() {
		return nil, fmt.Errorf("slack bot token required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		token:      cfg.BotToken,
		channel:    cfg.Channel,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}, nil
}

// apiResponse is the common ok/error envelope of the web API.
type apiResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

func (c *Client) post(ctx context.Context, url string, payload any, authed bool) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.Header.Set("Authorization", "Bearer "+c.token.Value())
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("messenger error (%d): %s", resp.StatusCode, string(body))
	}

	// Web API endpoints wrap errors in an ok envelope; response_url posts
	// just return "ok".
	var env apiResponse
	if err := json.Unmarshal(body, &env); err == nil && !env.OK && env.Error != "" {
		return fmt.Errorf("messenger error: %s", env.Error)
	}
	return nil
}

// postMessagePayload wraps a card for chat.postMessage.
type postMessagePayload struct {
	Channel string       `json:"channel"`
	Text    string       `json:"text"`
	Blocks  []card.Block `json:"blocks,omitempty"`
}

// PostCard sends a new card to the configured channel.
func (c *Client) PostCard(ctx context.Context, msg card.Message) error {
	return c.post(ctx, c.baseURL+"/chat.postMessage", postMessagePayload{
		Channel: c.channel,
		Text:    msg.Text,
		Blocks:  msg.Blocks,
	}, true)
}

// ReplaceCard overwrites the card the human just clicked, via the
// response url carried on the action event.
func (c *Client) ReplaceCard(ctx context.Context, responseURL string, msg card.Message) error {
	if responseURL == "" {
		return fmt.Errorf("response url required")
	}
	msg.ReplaceOriginal = true
	return c.post(ctx, responseURL, msg, false)
}

// openViewPayload wraps a modal for views.open.
type openViewPayload struct {
	TriggerID string     `json:"trigger_id"`
	View      card.Modal `json:"view"`
}

// OpenModal presents the feedback form. Trigger ids expire within seconds,
// so this must be called on the synchronous ack path.
func (c *Client) OpenModal(ctx context.Context, triggerID string, modal card.Modal) error {
	if triggerID == "" {
		return fmt.Errorf("trigger id required")
	}
	return c.post(ctx, c.baseURL+"/views.open", openViewPayload{
		TriggerID: triggerID,
		View:      modal,
	}, true)
}
