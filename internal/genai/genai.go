// Package genai wraps the OpenAI chat completion API for the assessment
// conversation, and classifies call failures so the retry handler can tell
// retryable conditions apart from fatal ones.
package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/BTreeMap/HabitAudit/internal/models"
)

// ClientInterface defines the language-model operations the orchestrator
// depends on. Implemented by Client and by test mocks.
type ClientInterface interface {
	// GenerateWithMessages returns one assistant message for the ordered,
	// role-tagged conversation.
	GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error)
}

// Opts holds configuration options for the GenAI client.
type Opts struct {
	APIKey string
	Model  string
}

// Option configures the GenAI client.
type Option func(*Opts)

// WithAPIKey overrides the API key from the environment.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel overrides the chat model.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = model }
}

// Client wraps the OpenAI chat completion service.
type Client struct {
	client openai.Client
	model  string
}

// NewClient initializes a GenAI client. The API key falls back to the
// OPENAI_API_KEY environment variable when not supplied via options.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		slog.Error("genai.NewClient: OPENAI_API_KEY not set")
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}
	model := cfg.Model
	if model == "" {
		model = openai.ChatModelGPT4oMini
	}
	slog.Debug("genai.NewClient: creating client", "model", model)
	return &Client{
		client: openai.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:  model,
	}, nil
}

// GenerateWithMessages sends the conversation and returns the assistant reply.
func (c *Client) GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	slog.Debug("genai.GenerateWithMessages: calling chat completion", "model", c.model, "messageCount", len(messages))

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    c.model,
		Messages: messages,
	})
	if err != nil {
		slog.Error("genai.GenerateWithMessages: chat completion failed", "error", err, "class", ClassifyError(err))
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		slog.Error("genai.GenerateWithMessages: no choices returned")
		return "", fmt.Errorf("no choices returned")
	}

	content := resp.Choices[0].Message.Content
	slog.Debug("genai.GenerateWithMessages: completion succeeded", "responseLength", len(content))
	return content, nil
}

// ClassifyError maps a call failure onto the engine's error taxonomy.
func ClassifyError(err error) models.ErrorClass {
	if err == nil {
		return models.ErrorClassUnknown
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == 429:
			return models.ErrorClassRateLimit
		case apiErr.StatusCode >= 500:
			return models.ErrorClassServer
		case apiErr.StatusCode == 408:
			return models.ErrorClassTimeout
		default:
			return models.ErrorClassFatal
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return models.ErrorClassTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return models.ErrorClassTimeout
	}

	return models.ErrorClassUnknown
}

// IsRetryable reports whether a failure class is worth another attempt.
// Unknown failures are retried; explicitly fatal ones are not.
func IsRetryable(class models.ErrorClass) bool {
	switch class {
	case models.ErrorClassRateLimit, models.ErrorClassServer, models.ErrorClassTimeout, models.ErrorClassUnknown:
		return true
	default:
		return false
	}
}
