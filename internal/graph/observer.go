package graph

import "context"

// Observer receives the LLM traffic and normalized results of each chunk.
type Observer interface {
	OnRequest(ctx context.Context, documentID string, chunkIndex int, prompt string)
	OnResponse(ctx context.Context, documentID string, chunkIndex int, response string, err error)
	OnEntities(ctx context.Context, documentID string, chunkIndex int, ext Extraction)
}

// NopObserver ignores everything.
type NopObserver struct{}

func (NopObserver) OnRequest(context.Context, string, int, string)         {}
func (NopObserver) OnResponse(context.Context, string, int, string, error) {}
func (NopObserver) OnEntities(context.Context, string, int, Extraction)    {}
