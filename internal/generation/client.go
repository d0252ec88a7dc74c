// Package generation produces grounded answers from retrieved context
// using an OpenAI-compatible chat completions API.
package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	// ErrInvalidConfig indicates invalid configuration
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrMalformedResponse indicates the API returned a body the client
	// could not interpret
	ErrMalformedResponse = errors.New("malformed completion response")
)

// APIError is a non-2xx response from the completions API. Only the
// status code is carried: provider error bodies are unstructured and
// sometimes misleading, so callers branch on the code alone.
type APIError struct {
	StatusCode int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("completion api error: status %d", e.StatusCode)
}

// ClientConfig holds configuration for the completions client.
type ClientConfig struct {
	// BaseURL is the API base URL, e.g. https://api.openai.com/v1
	BaseURL string

	// APIKey is the bearer token (optional for local servers)
	APIKey string

	// Model is the chat model to use
	Model string

	// MaxTokens caps the generated answer length
	MaxTokens int

	// Timeout bounds each completion request. Defaults to 60s.
	Timeout time.Duration
}

// Validate validates the configuration.
func (c ClientConfig) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: base URL required", ErrInvalidConfig)
	}
	if c.Model == "" {
		return fmt.Errorf("%w: model required", ErrInvalidConfig)
	}
	return nil
}

// Client calls an OpenAI-compatible /chat/completions endpoint.
type Client struct {
	config ClientConfig
	client *http.Client
}

// NewClient creates a new completions client.
func NewClient(config ClientConfig) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = 1024
	}
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}

	return &Client{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float32       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// ChatCompletion sends a system and user message pair and returns the
// model's reply. Generation is deterministic: temperature is pinned to
// zero so identical inputs produce stable answers.
func (c *Client) ChatCompletion(ctx context.Context, system, user string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.config.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		MaxTokens:   c.config.MaxTokens,
		Temperature: 0,
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &APIError{StatusCode: resp.StatusCode}
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("%w: no choices", ErrMalformedResponse)
	}

	return parsed.Choices[0].Message.Content, nil
}

// Model returns the configured chat model name.
func (c *Client) Model() string {
	return c.config.Model
}
