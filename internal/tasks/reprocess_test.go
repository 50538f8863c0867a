package tasks

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mekopa/AIHackathon-RAGLens/internal/documents"
	"github.com/Mekopa/AIHackathon-RAGLens/internal/indexer"
)

func TestReprocess_ErrorDocumentRunsAgain(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	id := createDoc(t, store, "a.txt")
	proc := &scriptedProcessor{errs: []error{indexer.ErrNoText}}
	pool := NewPool(store, proc, WithRetryDelay(0))

	require.ErrorIs(t, pool.Run(ctx, id), indexer.ErrNoText)
	require.Equal(t, documents.StatusError, getDoc(t, store, id).Status)

	res, err := pool.Reprocess(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, ReprocessResult{ID: id, Status: OutcomeReprocessing}, res)

	d := getDoc(t, store, id)
	assert.Equal(t, documents.StatusProcessing, d.Status)
	assert.Empty(t, d.ErrorMessage)
	assert.Zero(t, d.Attempts)

	pool.Start(ctx)
	defer pool.Stop()
	require.Eventually(t, func() bool {
		return getDoc(t, store, id).Status == documents.StatusReady
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 2, proc.count(id))
}

func TestReprocess_SkipsOtherStatuses(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	processing := createDoc(t, store, "a.txt")
	ready := createDoc(t, store, "b.txt")
	_, err := store.MarkReady(ctx, ready)
	require.NoError(t, err)

	pool := NewPool(store, &scriptedProcessor{})

	res, err := pool.Reprocess(ctx, ready)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, res.Status)
	assert.Equal(t, "Document is not in error state (current: ready)", res.Reason)

	res, err = pool.Reprocess(ctx, processing)
	require.NoError(t, err)
	assert.Equal(t, "Document is not in error state (current: processing)", res.Reason)

	res, err = pool.Reprocess(ctx, "missing")
	require.NoError(t, err)
	assert.Equal(t, ReprocessResult{ID: "missing", Status: OutcomeNotFound}, res)
}

func TestReprocessNow_RunsSynchronously(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	id := createDoc(t, store, "a.txt")
	_, err := store.MarkError(ctx, id, "boom")
	require.NoError(t, err)
	proc := &scriptedProcessor{}
	pool := NewPool(store, proc, WithRetryDelay(0))

	res, err := pool.ReprocessNow(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, OutcomeReprocessing, res.Status)
	assert.Equal(t, documents.StatusReady, getDoc(t, store, id).Status)
	assert.Equal(t, 1, proc.count(id))

	res, err = pool.ReprocessNow(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, res.Status)
	assert.Equal(t, 1, proc.count(id))
}
