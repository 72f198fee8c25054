// Package knowledge asks an external model (Perplexity's OpenAI-compatible
// API by default) how to implement a tool, or runs a free-form search.
package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://api.perplexity.ai"
	DefaultModel   = "sonar"
	DefaultTimeout = 60 * time.Second

	ideasSystemPrompt = "You are a helpful assistant that provides guidance on how to implement software tools, " +
		"given a description of the tool's desired functionality."
	ideasUserPrompt = "I want to create a tool that can %s. How can I achieve this? " +
		"Please provide code snippets and explain the steps."
)

var (
	// ErrMissingAPIKey is returned by New when no API key is configured.
	ErrMissingAPIKey = errors.New("PERPLEXITY_API_KEY environment variable not set")
	// ErrEmptyResponse is returned when the API answers without any choice.
	ErrEmptyResponse = errors.New("knowledge API returned no choices")
)

// Config holds the connection settings. Zero values fall back to the defaults above.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Client talks to a chat-completions endpoint.
type Client struct {
	completions *openai.ChatCompletionService
	model       string
	timeout     time.Duration
	limiter     *rate.Limiter
	logger      *slog.Logger
}

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
	maxRetries int
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(c *http.Client) Option {
	return func(o *clientOptions) {
		o.httpClient = c
	}
}

// WithRateLimit caps outgoing requests; callers wait for a token.
func WithRateLimit(l *rate.Limiter) Option {
	return func(o *clientOptions) {
		o.limiter = l
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *clientOptions) {
		o.logger = logger
	}
}

// WithMaxRetries sets how often the SDK retries failed requests. Defaults to 2.
func WithMaxRetries(n int) Option {
	return func(o *clientOptions) {
		o.maxRetries = n
	}
}

// New returns a Client for cfg.
func New(cfg Config, opts ...Option) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	o := clientOptions{maxRetries: 2, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
		option.WithMaxRetries(o.maxRetries),
	}
	if o.httpClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(o.httpClient))
	}
	client := openai.NewClient(reqOpts...)
	return &Client{
		completions: &client.Chat.Completions,
		model:       model,
		timeout:     timeout,
		limiter:     o.limiter,
		logger:      o.logger.With("component", "knowledge", "model", model),
	}, nil
}

// ImplementationIdeas asks how to build a tool that can do description and
// returns the first answer's text.
func (c *Client) ImplementationIdeas(ctx context.Context, description string) (string, error) {
	resp, err := c.complete(ctx, []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(ideasSystemPrompt),
		openai.UserMessage(fmt.Sprintf(ideasUserPrompt, description)),
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}

// Search sends query as a single user message and returns the raw response
// body, citations and all.
func (c *Client) Search(ctx context.Context, query string) (json.RawMessage, error) {
	resp, err := c.complete(ctx, []openai.ChatCompletionMessageParamUnion{
		openai.UserMessage(query),
	})
	if err != nil {
		return nil, err
	}
	raw := resp.RawJSON()
	if raw == "" {
		b, err := json.Marshal(resp)
		if err != nil {
			return nil, err
		}
		return b, nil
	}
	return json.RawMessage(raw), nil
}

func (c *Client) complete(ctx context.Context, msgs []openai.ChatCompletionMessageParamUnion) (*openai.ChatCompletion, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("knowledge rate limit: %w", err)
		}
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: msgs,
	})
	if err != nil {
		c.logger.WarnContext(ctx, "knowledge request failed", "duration", time.Since(start), "error", err)
		return nil, fmt.Errorf("knowledge request: %w", err)
	}
	c.logger.DebugContext(ctx, "knowledge request done", "duration", time.Since(start), "choices", len(resp.Choices))
	return resp, nil
}
