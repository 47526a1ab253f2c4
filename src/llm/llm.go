// Package llm is a client for OpenAI-compatible chat completion endpoints
// used as the text-recognition service.
package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type Config struct {
	APIKey    string
	Model     string
	BaseURL   string
	Providers []string
	Timeout   time.Duration
	// MaxRetries is the number of attempts per call. Zero means 3.
	MaxRetries int
	RetryDelay time.Duration
}

// Chat completion structures. Content is a list of parts so images and
// text can travel in one message.
type Message struct {
	Role    string    `json:"role"`
	Content []Content `json:"content"`
}

type Content struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

type ImageURL struct {
	URL string `json:"url"`
}

type ProviderPreferences struct {
	Order          []string `json:"order,omitempty"`
	AllowFallbacks *bool    `json:"allow_fallbacks,omitempty"`
}

type ChatRequest struct {
	Model       string               `json:"model"`
	Messages    []Message            `json:"messages"`
	Temperature float64              `json:"temperature"`
	MaxTokens   int                  `json:"max_tokens"`
	Provider    *ProviderPreferences `json:"provider,omitempty"`
}

type ChatResponse struct {
	Choices []Choice  `json:"choices"`
	Usage   *Usage    `json:"usage,omitempty"`
	Error   *APIError `json:"error,omitempty"`
}

type Choice struct {
	Message ResponseMessage `json:"message"`
}

type ResponseMessage struct {
	Content string `json:"content"`
}

// Usage is the token accounting of one call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type APIError struct {
	Message string      `json:"message"`
	Type    string      `json:"type"`
	Code    interface{} `json:"code"` // string or number depending on provider
}

// Response is the text and usage of one successful call.
type Response struct {
	Text  string
	Usage *Usage
}

var (
	ErrNotConfigured = errors.New("recognition service not configured")
	ErrEmptyResponse = errors.New("no choices in API response")
)

const (
	defaultRetries = 3
	defaultDelay   = time.Second
	defaultTimeout = 45 * time.Second
)

type Client struct {
	cfg  Config
	http *http.Client
}

func New(cfg Config) *Client {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultRetries
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultDelay
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}
}

// Model returns the configured model identifier.
func (c *Client) Model() string { return c.cfg.Model }

// Configured reports whether the client has what it needs to make calls.
func (c *Client) Configured() bool {
	return c != nil && c.cfg.APIKey != "" && c.cfg.Model != "" && c.cfg.BaseURL != ""
}

func (c *Client) providerPreferences() *ProviderPreferences {
	if len(c.cfg.Providers) == 0 {
		return nil
	}
	allowFallbacks := false
	return &ProviderPreferences{Order: c.cfg.Providers, AllowFallbacks: &allowFallbacks}
}

// QueryVision sends a PNG and an instruction in a single user message.
func (c *Client) QueryVision(ctx context.Context, png []byte, prompt string, maxTokens int) (Response, error) {
	imageURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
	return c.complete(ctx, []Content{
		{Type: "text", Text: prompt},
		{Type: "image_url", ImageURL: &ImageURL{URL: imageURL}},
	}, maxTokens)
}

// QueryText sends a text-only prompt.
func (c *Client) QueryText(ctx context.Context, prompt string, maxTokens int) (Response, error) {
	return c.complete(ctx, []Content{{Type: "text", Text: prompt}}, maxTokens)
}

func (c *Client) complete(ctx context.Context, parts []Content, maxTokens int) (Response, error) {
	if !c.Configured() {
		return Response{}, ErrNotConfigured
	}
	request := ChatRequest{
		Model:       c.cfg.Model,
		Messages:    []Message{{Role: "user", Content: parts}},
		Temperature: 0,
		MaxTokens:   maxTokens,
		Provider:    c.providerPreferences(),
	}

	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(float64(c.cfg.RetryDelay) * (1.5 * float64(attempt)))
			select {
			case <-ctx.Done():
				return Response{}, ctx.Err()
			case <-time.After(delay):
			}
		}

		response, err := c.do(ctx, request)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil || !retryable(err) {
				break
			}
			continue
		}
		if len(response.Choices) == 0 {
			lastErr = ErrEmptyResponse
			continue
		}
		text := cleanExtractedText(response.Choices[0].Message.Content)
		return Response{Text: text, Usage: response.Usage}, nil
	}

	return Response{}, fmt.Errorf("failed after %d attempts: %w", c.cfg.MaxRetries, lastErr)
}

// statusError is a non-2xx reply.
type statusError struct {
	code int
	msg  string
}

func (e *statusError) Error() string {
	if e.msg != "" {
		return fmt.Sprintf("API returned status %d: %s", e.code, e.msg)
	}
	return fmt.Sprintf("API returned status %d", e.code)
}

// retryable is false for client errors other than rate limiting.
func retryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code == http.StatusTooManyRequests || se.code >= 500
	}
	return true
}

func (c *Client) do(ctx context.Context, request ChatRequest) (*ChatResponse, error) {
	jsonData, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("X-Title", "viber-agent")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var response ChatResponse
	if err := json.Unmarshal(body, &response); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, &statusError{code: resp.StatusCode}
		}
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		se := &statusError{code: resp.StatusCode}
		if response.Error != nil {
			se.msg = response.Error.Message
		}
		return nil, se
	}
	if response.Error != nil {
		return nil, fmt.Errorf("API error: %s (type: %s, code: %v)", response.Error.Message, response.Error.Type, response.Error.Code)
	}
	return &response, nil
}

// Ping checks that the endpoint accepts our key with a minimal call.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.QueryText(ctx, "ping", 1)
	return err
}

func cleanExtractedText(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimSuffix(text, "</image>")
	return strings.TrimSpace(text)
}
