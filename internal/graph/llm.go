package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"
	"golang.org/x/time/rate"
)

// LLM completes a prompt under a system message.
type LLM interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// Chat defaults.
const (
	DefaultChatModel   = "gpt-4o"
	DefaultTemperature = 0.3
	DefaultLLMTimeout  = 60 * time.Second
)

// OpenAIChat is an LLM backed by OpenAI chat completions.
type OpenAIChat struct {
	client      *openai.Client
	model       string
	temperature float64
	timeout     time.Duration
	limiter     *rate.Limiter
	logger      *slog.Logger
}

// ChatOption configures OpenAIChat.
type ChatOption func(*OpenAIChat)

// WithModel sets the chat model.
func WithModel(model string) ChatOption {
	return func(c *OpenAIChat) {
		if model != "" {
			c.model = model
		}
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) ChatOption {
	return func(c *OpenAIChat) { c.temperature = t }
}

// WithTimeout bounds each completion call.
func WithTimeout(d time.Duration) ChatOption {
	return func(c *OpenAIChat) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRateLimit limits completion requests per second.
func WithRateLimit(perSecond float64) ChatOption {
	return func(c *OpenAIChat) {
		if perSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// WithChatLogger sets the logger.
func WithChatLogger(l *slog.Logger) ChatOption {
	return func(c *OpenAIChat) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewOpenAIChat creates a chat LLM over client.
func NewOpenAIChat(client *openai.Client, opts ...ChatOption) *OpenAIChat {
	c := &OpenAIChat{
		client:      client,
		model:       DefaultChatModel,
		temperature: DefaultTemperature,
		timeout:     DefaultLLMTimeout,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete implements LLM. Rate limit responses are retried with
// exponential backoff; other errors fail immediately.
func (c *OpenAIChat) Complete(ctx context.Context, system, prompt string) (string, error) {
	var content string
	operation := func() error {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(err)
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		resp, err := c.client.Chat.Completions.New(callCtx, openai.ChatCompletionNewParams{
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.SystemMessage(system),
				openai.UserMessage(prompt),
			},
			Model:       openai.ChatModel(c.model),
			Temperature: openai.Float(c.temperature),
			ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
				OfJSONObject: &openai.ResponseFormatJSONObjectParam{
					Type: "json_object",
				},
			},
		})
		if err != nil {
			if isRateLimitError(err) {
				c.logger.Warn("chat completion rate limited, backing off")
				return err
			}
			return backoff.Permanent(fmt.Errorf("chat completion failed: %w", err))
		}
		if len(resp.Choices) == 0 {
			return backoff.Permanent(errors.New("chat completion returned no choices"))
		}
		content = resp.Choices[0].Message.Content
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return "", err
	}
	return content, nil
}

func isRateLimitError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}
