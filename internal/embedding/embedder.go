// Package embedding maps chunks to fixed-dimension vectors through an
// embedding provider, with a deterministic mock provider for tests.
package embedding

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

const (
	// EmbeddingModel is the OpenAI model used for generating embeddings.
	EmbeddingModel = "text-embedding-3-small"

	// EmbeddingDimension is the vector dimension for text-embedding-3-small.
	EmbeddingDimension = 1536

	// DefaultBatchSize keeps requests well under provider token limits.
	DefaultBatchSize = 100
)

// Embedder batches texts through a Provider. A failed batch is retried one
// text at a time, and a text that still fails gets a zero vector so one bad
// chunk does not lose the rest.
type Embedder struct {
	provider   Provider
	batchSize  int
	dimensions int
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// Option configures an Embedder.
type Option func(*Embedder)

// WithBatchSize sets how many texts go into one request.
func WithBatchSize(n int) Option {
	return func(e *Embedder) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// WithDimensions sets the expected vector dimension.
func WithDimensions(n int) Option {
	return func(e *Embedder) {
		if n > 0 {
			e.dimensions = n
		}
	}
}

// WithRateLimit limits provider requests per second.
func WithRateLimit(perSecond float64) Option {
	return func(e *Embedder) {
		if perSecond > 0 {
			e.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Embedder) { e.logger = l }
}

// NewEmbedder creates an Embedder over provider.
func NewEmbedder(provider Provider, opts ...Option) *Embedder {
	e := &Embedder{
		provider:   provider,
		batchSize:  DefaultBatchSize,
		dimensions: EmbeddingDimension,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Dimensions returns the vector dimension the embedder produces.
func (e *Embedder) Dimensions() int {
	return e.dimensions
}

// GenerateEmbeddings returns one vector per text, in order. It fails only
// when the result length would not match the input, when every text failed,
// or when the context is done. An embedder without a provider always
// returns ErrMissingAPIKey.
func (e *Embedder) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if e.provider == nil {
		return nil, ErrMissingAPIKey
	}
	all := make([][]float32, 0, len(texts))
	failed := 0
	var lastErr error

	for i := 0; i < len(texts); i += e.batchSize {
		end := min(i+e.batchSize, len(texts))
		batch := texts[i:end]

		vectors, err := e.embedBatchWithRetry(ctx, batch)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			e.logger.Warn("embedding batch failed, retrying per chunk", "from", i, "to", end, "error", err)
			vectors = make([][]float32, len(batch))
			for j, text := range batch {
				v, err := e.embedBatchWithRetry(ctx, []string{text})
				if err != nil {
					if ctx.Err() != nil {
						return nil, ctx.Err()
					}
					e.logger.Warn("embedding chunk failed, using zero vector", "chunk", i+j, "error", err)
					lastErr = err
					continue
				}
				vectors[j] = v[0]
			}
		}

		for j, v := range vectors {
			if len(v) != e.dimensions {
				if v != nil {
					lastErr = fmt.Errorf("chunk %d: got %d dimensions, want %d", i+j, len(v), e.dimensions)
					e.logger.Warn("embedding has wrong dimension, using zero vector", "chunk", i+j, "got", len(v))
				} else if lastErr == nil {
					lastErr = fmt.Errorf("chunk %d: no vector returned", i+j)
				}
				failed++
				vectors[j] = make([]float32, e.dimensions)
			}
		}
		all = append(all, vectors...)
	}

	if len(all) != len(texts) {
		return nil, fmt.Errorf("%w: %d vectors for %d texts", ErrLengthMismatch, len(all), len(texts))
	}
	if len(texts) > 0 && failed == len(texts) {
		return nil, fmt.Errorf("%w: %w", ErrAllFailed, lastErr)
	}
	return all, nil
}

// embedBatchWithRetry generates embeddings for a single batch with retry logic.
// Retries with exponential backoff on rate limit errors (HTTP 429).
// Other errors are treated as permanent and fail immediately.
func (e *Embedder) embedBatchWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var embeddings [][]float32

	operation := func() error {
		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(err)
			}
		}
		vectors, err := e.provider.Embed(ctx, texts)
		if err != nil {
			if isRateLimitError(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		if len(vectors) != len(texts) {
			return backoff.Permanent(fmt.Errorf("%w: %d vectors for %d texts", ErrLengthMismatch, len(vectors), len(texts)))
		}
		embeddings = vectors
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	err := backoff.Retry(operation, backoff.WithContext(b, ctx))
	return embeddings, err
}

// isRateLimitError checks if the error is a rate limit error (HTTP 429).
func isRateLimitError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}
