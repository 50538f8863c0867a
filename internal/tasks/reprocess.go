package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/Mekopa/AIHackathon-RAGLens/internal/documents"
)

// Outcomes of a reprocess request.
const (
	OutcomeReprocessing = "reprocessing"
	OutcomeSkipped      = "skipped"
	OutcomeNotFound     = "not_found"
)

// ReprocessResult reports what happened to one reprocess request.
type ReprocessResult struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// Reprocess resets an error document to processing and queues a fresh run
// from extraction. Documents in any other status are skipped.
func (p *Pool) Reprocess(ctx context.Context, id string) (ReprocessResult, error) {
	res, ok, err := p.reset(ctx, id)
	if !ok {
		return res, err
	}
	if err := p.Submit(id); err != nil {
		if _, merr := p.store.MarkError(ctx, id, "Could not queue document for reprocessing: "+err.Error()); merr != nil {
			p.logger.Warn("failed to record error status", "document_id", id, "error", merr)
		}
		return ReprocessResult{}, fmt.Errorf("queue %s: %w", id, err)
	}
	p.logger.Info("document queued for reprocessing", "document_id", id)
	return res, nil
}

// ReprocessNow is Reprocess with the run executed synchronously, retries
// included. The result reports the outcome of the reset; the error is the
// run's.
func (p *Pool) ReprocessNow(ctx context.Context, id string) (ReprocessResult, error) {
	res, ok, err := p.reset(ctx, id)
	if !ok {
		return res, err
	}
	return res, p.Run(ctx, id)
}

// reset moves id from error to processing. ok is false when there is
// nothing to run.
func (p *Pool) reset(ctx context.Context, id string) (ReprocessResult, bool, error) {
	_, err := p.store.Reprocess(ctx, id)
	var te *documents.TransitionError
	switch {
	case errors.Is(err, documents.ErrNotFound):
		return ReprocessResult{ID: id, Status: OutcomeNotFound}, false, nil
	case errors.As(err, &te):
		return ReprocessResult{
			ID:     id,
			Status: OutcomeSkipped,
			Reason: fmt.Sprintf("Document is not in error state (current: %s)", te.From),
		}, false, nil
	case err != nil:
		return ReprocessResult{}, false, fmt.Errorf("reprocess %s: %w", id, err)
	}
	return ReprocessResult{ID: id, Status: OutcomeReprocessing}, true, nil
}
