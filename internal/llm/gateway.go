// Package llm wraps the chat-completion API behind a small Client
// interface so reasoning stages can be tested without a live model.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/your-org/homewatch/internal/config"
	"github.com/your-org/homewatch/internal/observability"
)

// Client generates one completion from a system and user prompt pair.
type Client interface {
	Generate(ctx context.Context, system, user string, temperature float64, maxTokens int) (string, error)
}

// ErrEmptyCompletion is returned when the model answers with no choices
// or an empty message.
var ErrEmptyCompletion = errors.New("llm: empty completion")

// OpenAIClient calls an OpenAI-compatible endpoint with bounded retry.
type OpenAIClient struct {
	client      openai.Client
	model       string
	timeout     time.Duration
	maxRetries  int
	backoffBase time.Duration
	backoffMax  time.Duration
}

func NewOpenAIClient(cfg config.LLMConfig) *OpenAIClient {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAIClient{
		client:      openai.NewClient(opts...),
		model:       cfg.Model,
		timeout:     cfg.Timeout,
		maxRetries:  cfg.MaxRetries,
		backoffBase: cfg.BackoffBase,
		backoffMax:  cfg.BackoffMax,
	}
}

// Generate submits the prompt pair and returns the completion text.
// Failed attempts back off exponentially up to the configured cap;
// context cancellation aborts between attempts.
func (c *OpenAIClient) Generate(ctx context.Context, system, user string, temperature float64, maxTokens int) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.backoffBase << (attempt - 1)
			if backoff > c.backoffMax {
				backoff = c.backoffMax
			}
			observability.LLMRequests.WithLabelValues("retry").Inc()
			slog.Warn("llm request retry", "attempt", attempt, "backoff", backoff, "error", lastErr)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		text, err := c.attempt(ctx, system, user, temperature, maxTokens)
		if err == nil {
			observability.LLMRequests.WithLabelValues("success").Inc()
			return text, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	observability.LLMRequests.WithLabelValues("failure").Inc()
	return "", fmt.Errorf("llm generate after %d attempts: %w", c.maxRetries+1, lastErr)
}

func (c *OpenAIClient) attempt(ctx context.Context, system, user string, temperature float64, maxTokens int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Temperature: openai.Float(temperature),
		MaxTokens:   openai.Int(int64(maxTokens)),
	})
	observability.LLMDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", ErrEmptyCompletion
	}
	return resp.Choices[0].Message.Content, nil
}
