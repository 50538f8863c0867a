package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"math/rand/v2"

	"github.com/openai/openai-go"
)

// Provider turns a batch of texts into vectors, one per text, in order.
type Provider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// OpenAIProvider calls the OpenAI embeddings endpoint.
type OpenAIProvider struct {
	client *Client
	model  string
}

// NewOpenAIProvider creates a provider for model. An empty model uses
// EmbeddingModel.
func NewOpenAIProvider(client *Client, model string) *OpenAIProvider {
	if model == "" {
		model = EmbeddingModel
	}
	return &OpenAIProvider{client: client, model: model}
}

// Embed implements Provider.
func (p *OpenAIProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := p.client.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		},
		Model: openai.EmbeddingModel(p.model),
	})
	if err != nil {
		return nil, err
	}

	embeddings := make([][]float32, len(texts))
	for i, data := range resp.Data {
		idx := int(data.Index)
		if idx < 0 || idx >= len(embeddings) {
			idx = i
		}
		if idx < len(embeddings) {
			embeddings[idx] = toFloat32(data.Embedding)
		}
	}
	return embeddings, nil
}

// MockProvider produces deterministic pseudo-random unit vectors seeded by
// each text's SHA-256, for tests and offline runs.
type MockProvider struct {
	Dimensions int
}

// Embed implements Provider.
func (m MockProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = MockVector(t, m.dims())
	}
	return out, nil
}

func (m MockProvider) dims() int {
	if m.Dimensions <= 0 {
		return EmbeddingDimension
	}
	return m.Dimensions
}

// MockVector returns the L2-normalized mock embedding of text: components
// drawn uniformly from [-1, 1) by a generator seeded with the text hash.
func MockVector(text string, dims int) []float32 {
	sum := sha256.Sum256([]byte(text))
	rng := rand.New(rand.NewPCG(
		binary.LittleEndian.Uint64(sum[0:8]),
		binary.LittleEndian.Uint64(sum[8:16]),
	))

	vec := make([]float64, dims)
	var norm float64
	for i := range vec {
		vec[i] = rng.Float64()*2 - 1
		norm += vec[i] * vec[i]
	}
	norm = math.Sqrt(norm)

	out := make([]float32, dims)
	for i, v := range vec {
		if norm > 0 {
			v /= norm
		}
		out[i] = float32(v)
	}
	return out
}

// toFloat32 converts []float64 to []float32.
// OpenAI API returns float64, but storage uses float32 for memory efficiency.
func toFloat32(f64 []float64) []float32 {
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32
}
