// Package llm wraps an eino chat model behind a small completion interface
// shared by every LLM-backed service.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ollama"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/howell-aikit/ideaflow/internal/config"
	"go.uber.org/zap"
)

// ErrUnavailable is returned when no model is configured (for example a missing API key)
var ErrUnavailable = errors.New("llm service unavailable")

// Provider identifies the chat model backend
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderOllama Provider = "ollama"
)

// DefaultOllamaURL is used when no base URL is configured for ollama
const DefaultOllamaURL = "http://localhost:11434"

// Request is one system + user exchange
type Request struct {
	System  string
	User    string
	Timeout time.Duration
}

// Completer produces a completion for a request
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Client implements Completer over an eino chat model
type Client struct {
	model   model.BaseChatModel
	timeout time.Duration
	logger  *zap.Logger
}

// NewChatModel creates the eino chat model for the configured provider
func NewChatModel(ctx context.Context, cfg config.LLMConfig) (model.BaseChatModel, error) {
	switch Provider(cfg.Provider) {
	case ProviderOpenAI:
		apiKey := cfg.APIKey()
		if apiKey == "" {
			return nil, ErrUnavailable
		}
		return openai.NewChatModel(ctx, &openai.ChatModelConfig{
			Model:   cfg.Model,
			APIKey:  apiKey,
			BaseURL: cfg.BaseURL,
			Timeout: cfg.DocumentTimeoutDuration(),
		})

	case ProviderOllama:
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = DefaultOllamaURL
		}
		return ollama.NewChatModel(ctx, &ollama.ChatModelConfig{
			BaseURL: baseURL,
			Model:   cfg.Model,
			Timeout: cfg.DocumentTimeoutDuration(),
		})

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s (supported: openai, ollama)", cfg.Provider)
	}
}

// New creates a client. A missing API key is not an error: the client is
// returned unavailable so every service degrades to its documented fallback.
func New(ctx context.Context, cfg config.LLMConfig, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	m, err := NewChatModel(ctx, cfg)
	if errors.Is(err, ErrUnavailable) {
		logger.Warn("no API key found for LLM access, services will use fallbacks",
			zap.Strings("env", cfg.APIKeyEnvs))
		return &Client{timeout: cfg.TimeoutDuration(), logger: logger}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	return NewWithModel(m, cfg.TimeoutDuration(), logger), nil
}

// NewWithModel wraps an existing chat model
func NewWithModel(m model.BaseChatModel, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{model: m, timeout: timeout, logger: logger}
}

// Available returns true if a model is configured
func (c *Client) Available() bool {
	return c != nil && c.model != nil
}

// Complete sends the request and returns the text content of the reply
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	if !c.Available() {
		return "", ErrUnavailable
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	messages := make([]*schema.Message, 0, 2)
	if req.System != "" {
		messages = append(messages, schema.SystemMessage(req.System))
	}
	messages = append(messages, schema.UserMessage(req.User))

	start := time.Now()
	resp, err := c.model.Generate(ctx, messages)
	if err != nil {
		c.logger.Warn("completion failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return "", fmt.Errorf("failed to generate completion: %w", err)
	}

	content := strings.TrimSpace(resp.Content)
	c.logger.Debug("completion done",
		zap.Int("chars", len(content)), zap.Duration("elapsed", time.Since(start)))
	if content == "" {
		return "", errors.New("empty completion")
	}
	return content, nil
}
