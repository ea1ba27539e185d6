// Package llm wraps the remote text-generation backends used for rule
// generation and code suggestions.
package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"ngmigrate/internal/apperr"

	"github.com/sirupsen/logrus"
)

// ErrNotConfigured is returned when no backend is selected.
var ErrNotConfigured = errors.New("llm: backend not configured")

// ErrUnsupportedBackend is returned when an unknown backend is specified.
var ErrUnsupportedBackend = errors.New("llm: unsupported backend")

// Client defines the interface for LLM clients.
type Client interface {
	// Complete sends a system message and a user prompt and returns the raw reply text.
	Complete(ctx context.Context, systemMessage, userPrompt string) (string, error)

	// Model returns the model identifier being used.
	Model() string

	// Backend returns the backend name ("openai", "ollama").
	Backend() string
}

// Config holds the backend selection.
type Config struct {
	Backend         string
	Model           string
	Host            string
	APIKey          string
	Temperature     float64
	Timeout         time.Duration
	MaxPromptLength int
}

// NewClient creates a client for the configured backend.
func NewClient(cfg Config) (Client, error) {
	switch cfg.Backend {
	case "", "disabled":
		return nil, ErrNotConfigured

	case "ollama":
		host := cfg.Host
		if host == "" {
			host = "http://localhost:11434"
		}
		model := cfg.Model
		if model == "" {
			model = "llama3.2"
		}
		return NewOllamaClient(host, model, cfg.Temperature, cfg.MaxPromptLength)

	case "openai":
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("llm: OpenAI API key required (set llm.api_key or OPENAI_API_KEY)")
		}
		model := cfg.Model
		if model == "" {
			model = "gpt-4o-mini"
		}
		c := NewOpenAIClient(apiKey, model, cfg.Temperature)
		c.maxPromptLength = cfg.MaxPromptLength
		if cfg.Timeout > 0 {
			c.client.Timeout = cfg.Timeout
		}
		return c, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedBackend, cfg.Backend)
	}
}

// WithTimeout bounds a single remote call. A zero timeout leaves ctx unchanged.
func WithTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// upstreamError classifies a transport failure, mapping an expired deadline to UpstreamTimeout.
func upstreamError(ctx context.Context, op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apperr.New(apperr.UpstreamTimeout, op, err)
	}
	return apperr.New(apperr.UpstreamUnavailable, op, err)
}

// truncatePrompt caps the prompt to maxLen characters (0 disables the cap).
func truncatePrompt(prompt string, maxLen int) string {
	logrus.Debugf("Sending prompt of %d characters (max: %d)", len(prompt), maxLen)
	if maxLen > 0 && len(prompt) > maxLen {
		logrus.Warnf("Prompt is being truncated from %d to %d characters.", len(prompt), maxLen)
		return prompt[:maxLen]
	}
	return prompt
}
