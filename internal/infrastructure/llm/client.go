// Package llm calls hosted chat-completion APIs.
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

	"github.com/hashicorp/go-retryablehttp"
	"github.com/taxcrm/backend/internal/domain/aiagent"
	"github.com/taxcrm/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

const anthropicVersion = "2023-06-01"

var (
	// ErrProviderNotConfigured is returned when the provider has no API key
	ErrProviderNotConfigured = errors.New("llm provider is not configured")

	// ErrEmptyReply is returned when the provider answered without text
	ErrEmptyReply = errors.New("llm returned an empty reply")
)

// APIError is a non-2xx answer from the provider
type APIError struct {
	Provider aiagent.Provider
	Status   int
	Body     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s api error: status %d: %s", e.Provider, e.Status, e.Body)
}

// Request is one completion call
type Request struct {
	Provider  aiagent.Provider
	Model     string
	System    string
	Prompt    string
	MaxTokens int
}

// Completer answers prompts
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Client talks to OpenAI chat-completions and Anthropic messages endpoints
type Client struct {
	http   *http.Client
	cfg    config.AIConfig
	logger *zap.Logger
}

// Option configures a Client
type Option func(*retryablehttp.Client)

// WithRetryWait overrides the backoff bounds
func WithRetryWait(minWait, maxWait time.Duration) Option {
	return func(c *retryablehttp.Client) {
		c.RetryWaitMin = minWait
		c.RetryWaitMax = maxWait
	}
}

// NewClient creates a Client with retry and backoff on 429 and 5xx
func NewClient(cfg config.AIConfig, l *zap.Logger, opts ...Option) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.RetryMax
	retryClient.RetryWaitMin = time.Second
	retryClient.RetryWaitMax = 10 * time.Second
	retryClient.HTTPClient.Timeout = cfg.Timeout
	retryClient.Logger = nil
	retryClient.CheckRetry = retryablehttp.DefaultRetryPolicy
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	for _, opt := range opts {
		opt(retryClient)
	}
	return &Client{
		http:   retryClient.StandardClient(),
		cfg:    cfg,
		logger: l.Named("llm"),
	}
}

// Complete sends the prompt to the requested provider
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	if req.Model == "" {
		req.Model = c.cfg.DefaultModel
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = c.cfg.MaxOutputTokens
	}
	start := time.Now()
	var (
		reply string
		err   error
	)
	switch req.Provider {
	case aiagent.ProviderAnthropic:
		reply, err = c.anthropic(ctx, req)
	case aiagent.ProviderOpenAI, "":
		req.Provider = aiagent.ProviderOpenAI
		reply, err = c.openAI(ctx, req)
	default:
		return "", fmt.Errorf("unknown llm provider %q", req.Provider)
	}
	fields := []zap.Field{
		zap.String("provider", string(req.Provider)),
		zap.String("model", req.Model),
		zap.Duration("latency", time.Since(start)),
	}
	if err != nil {
		c.logger.Warn("LLM call failed", append(fields, zap.Error(err))...)
		return "", err
	}
	c.logger.Debug("LLM call completed", append(fields, zap.Int("reply_len", len(reply)))...)
	return reply, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type openAIResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *Client) openAI(ctx context.Context, req Request) (string, error) {
	if c.cfg.OpenAIKey == "" {
		return "", fmt.Errorf("%w: openai", ErrProviderNotConfigured)
	}
	body := openAIRequest{Model: req.Model, MaxTokens: req.MaxTokens}
	if req.System != "" {
		body.Messages = append(body.Messages, chatMessage{Role: "system", Content: req.System})
	}
	body.Messages = append(body.Messages, chatMessage{Role: "user", Content: req.Prompt})

	headers := map[string]string{"Authorization": "Bearer " + c.cfg.OpenAIKey}
	var out openAIResponse
	if err := c.post(ctx, req.Provider, strings.TrimRight(c.cfg.OpenAIBaseURL, "/")+"/chat/completions", headers, body, &out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", ErrEmptyReply
	}
	return out.Choices[0].Message.Content, nil
}

type anthropicRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	System    string        `json:"system,omitempty"`
	Messages  []chatMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (c *Client) anthropic(ctx context.Context, req Request) (string, error) {
	if c.cfg.AnthropicKey == "" {
		return "", fmt.Errorf("%w: anthropic", ErrProviderNotConfigured)
	}
	body := anthropicRequest{
		Model:     req.Model,
		MaxTokens: req.MaxTokens,
		System:    req.System,
		Messages:  []chatMessage{{Role: "user", Content: req.Prompt}},
	}
	headers := map[string]string{
		"x-api-key":         c.cfg.AnthropicKey,
		"anthropic-version": anthropicVersion,
	}
	var out anthropicResponse
	if err := c.post(ctx, req.Provider, strings.TrimRight(c.cfg.AnthropicURL, "/")+"/messages", headers, body, &out); err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, block := range out.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", ErrEmptyReply
	}
	return sb.String(), nil
}

func (c *Client) post(ctx context.Context, provider aiagent.Provider, url string, headers map[string]string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := string(data)
		if len(snippet) > 512 {
			snippet = snippet[:512]
		}
		return &APIError{Provider: provider, Status: resp.StatusCode, Body: snippet}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
