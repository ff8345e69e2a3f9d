package recommend

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

	"mangashelf/internal/metrics"
)

const (
	DefaultCompletionURL = "https://api.groq.com/openai/v1/chat/completions"
	DefaultModel         = "gemma2-9b-it"

	maxTokens          = 1000
	temperature        = 0.7
	defaultHTTPTimeout = 30 * time.Second
)

// Completer sends one single-turn prompt and returns the raw completion text.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

type CompletionConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// CompletionClient wraps an OpenAI-compatible chat completion endpoint.
// It never retries.
type CompletionClient struct {
	cfg        CompletionConfig
	httpClient *http.Client
}

type CompletionOption func(*CompletionClient)

func WithHTTPClient(client *http.Client) CompletionOption {
	return func(c *CompletionClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func NewCompletionClient(cfg CompletionConfig, opts ...CompletionOption) *CompletionClient {
	c := &CompletionClient{
		cfg: CompletionConfig{
			APIKey:  strings.TrimSpace(cfg.APIKey),
			BaseURL: strings.TrimSpace(cfg.BaseURL),
			Model:   strings.TrimSpace(cfg.Model),
		},
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.cfg.BaseURL == "" {
		c.cfg.BaseURL = DefaultCompletionURL
	}
	if c.cfg.Model == "" {
		c.cfg.Model = DefaultModel
	}
	return c
}

func (c *CompletionClient) Configured() bool {
	return c.cfg.APIKey != ""
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *CompletionClient) Complete(ctx context.Context, prompt string) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	encoded, err := json.Marshal(chatRequest{
		Model:       c.cfg.Model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("completion: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("completion: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.CompletionRequests.WithLabelValues("transport_error").Inc()
		return "", fmt.Errorf("completion: http error: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.CompletionRequests.WithLabelValues("transport_error").Inc()
		return "", fmt.Errorf("completion: read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		outcome := "upstream_error"
		if resp.StatusCode == http.StatusTooManyRequests {
			outcome = "rate_limited"
		}
		metrics.CompletionRequests.WithLabelValues(outcome).Inc()
		return "", &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var out chatResponse
	if err := json.Unmarshal(body, &out); err != nil {
		metrics.CompletionRequests.WithLabelValues("transport_error").Inc()
		return "", fmt.Errorf("completion: decode response: %w", err)
	}
	metrics.CompletionRequests.WithLabelValues("ok").Inc()
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", ErrNoContent
	}
	return out.Choices[0].Message.Content, nil
}

// IsUpstream reports whether err came from the completion API itself.
func IsUpstream(err error) bool {
	var se *StatusError
	return errors.As(err, &se)
}
