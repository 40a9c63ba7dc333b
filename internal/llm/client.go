// Package llm implements the two language-model collaborators: task
// extraction from transcript text, and the semantic create-vs-update
// comparator. Both ride one rate-limited Anthropic-style messages client.
// The core consumes their output contract; validation of the comparator's
// answer lives in the reconcile package, not here.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sajaddeen/readai-task-automation/internal/config"
)

const (
	defaultMaxRetries  = 3
	defaultBaseBackoff = 1 * time.Second

	// ~50 requests per minute, bursts of 5.
	defaultRateLimit = 50.0 / 60.0
	defaultBurst     = 5
)

// Client is a rate-limited, retrying client for the messages API.
type Client struct {
	baseURL    string
	model      string
	apiKey     config.Secret
	maxTokens  int
	httpClient *http.Client
	limiter     *rate.Limiter
	maxRetries  int
	baseBackoff time.Duration
	logger      *zap.Logger
}

// NewClient creates a client from config.
func NewClient(cfg config.LLMConfig, logger *zap.Logger) (*Client, error) {
	if !cfg.APIKey.IsSet() {
		return nil, fmt.Errorf("llm api key required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		model:      cfg.Model,
		apiKey:     cfg.APIKey,
		maxTokens:  cfg.MaxTokens,
		httpClient: &http.Client{Timeout: timeout},
		limiter:     rate.NewLimiter(rate.Limit(defaultRateLimit), defaultBurst),
		maxRetries:  defaultMaxRetries,
		baseBackoff: defaultBaseBackoff,
		logger:      logger,
	}, nil
}

type messagesRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	System      string    `json:"system,omitempty"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

type apiError struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// complete sends one system+user exchange and returns the text of the
// first content block, retrying transient failures with exponential
// backoff.
func (c *Client) complete(ctx context.Context, system, user string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	req := messagesRequest{
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		System:      system,
		Temperature: 0.2,
		Messages:    []message{{Role: "user", Content: user}},
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.baseBackoff * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		text, err := c.doRequest(ctx, req)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !isRetryable(err) {
			return "", err
		}
		c.logger.Warn("llm request failed, retrying",
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}
	return "", fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (c *Client) doRequest(ctx context.Context, req messagesRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-API-Key", c.apiKey.Value())
	httpReq.Header.Set("Anthropic-Version", "2023-06-01")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", &retryableError{err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", &retryableError{err: fmt.Errorf("rate limited (429)")}
	}
	if resp.StatusCode >= 500 {
		return "", &retryableError{err: fmt.Errorf("server error (%d)", resp.StatusCode)}
	}
	if resp.StatusCode != http.StatusOK {
		var errResp apiError
		if jsonErr := json.Unmarshal(respBody, &errResp); jsonErr == nil && errResp.Error.Message != "" {
			return "", fmt.Errorf("api error (%d): %s", resp.StatusCode, errResp.Error.Message)
		}
		return "", fmt.Errorf("api error (%d): %s", resp.StatusCode, string(respBody))
	}

	var msgResp messagesResponse
	if err := json.Unmarshal(respBody, &msgResp); err != nil {
		return "", fmt.Errorf("parsing response: %w", err)
	}
	if len(msgResp.Content) == 0 {
		return "", fmt.Errorf("empty response")
	}
	return msgResp.Content[0].Text, nil
}

// stripFences removes a markdown code fence the model sometimes wraps JSON in.
func stripFences(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}

// retryableError wraps an error to indicate it can be retried.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

func isRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}
