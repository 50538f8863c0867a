package tasks

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mekopa/AIHackathon-RAGLens/internal/documents"
	"github.com/Mekopa/AIHackathon-RAGLens/internal/indexer"
)

// scriptedProcessor returns errs[i] on the i-th call for a document, then
// succeeds.
type scriptedProcessor struct {
	mu    sync.Mutex
	errs  []error
	panic bool
	calls map[string]int
}

func (p *scriptedProcessor) ProcessDocument(_ context.Context, id string) (*indexer.Result, error) {
	p.mu.Lock()
	if p.calls == nil {
		p.calls = make(map[string]int)
	}
	n := p.calls[id]
	p.calls[id]++
	p.mu.Unlock()

	if p.panic {
		panic("boom")
	}
	if n < len(p.errs) && p.errs[n] != nil {
		return nil, p.errs[n]
	}
	return &indexer.Result{DocumentID: id, Chunks: 2}, nil
}

func (p *scriptedProcessor) count(id string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[id]
}

// transitionLog records every status written through it.
type transitionLog struct {
	*documents.Store
	mu       sync.Mutex
	statuses []documents.Status
}

func (l *transitionLog) record(doc documents.Document, err error) (documents.Document, error) {
	if err == nil {
		l.mu.Lock()
		l.statuses = append(l.statuses, doc.Status)
		l.mu.Unlock()
	}
	return doc, err
}

func (l *transitionLog) MarkProcessing(ctx context.Context, id string) (documents.Document, error) {
	return l.record(l.Store.MarkProcessing(ctx, id))
}

func (l *transitionLog) MarkReady(ctx context.Context, id string) (documents.Document, error) {
	return l.record(l.Store.MarkReady(ctx, id))
}

func (l *transitionLog) MarkError(ctx context.Context, id, message string) (documents.Document, error) {
	return l.record(l.Store.MarkError(ctx, id, message))
}

func newStore(t *testing.T) *documents.Store {
	t.Helper()
	s, err := documents.NewStore(filepath.Join(t.TempDir(), "raglens.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func createDoc(t *testing.T, s *documents.Store, name string) string {
	t.Helper()
	doc := &documents.Document{Name: name, FileType: "txt"}
	require.NoError(t, s.CreateDocument(context.Background(), doc))
	return doc.ID
}

func getDoc(t *testing.T, s *documents.Store, id string) documents.Document {
	t.Helper()
	d, err := s.GetDocument(context.Background(), id)
	require.NoError(t, err)
	return d
}

func TestRun_Success(t *testing.T) {
	store := newStore(t)
	id := createDoc(t, store, "a.txt")
	proc := &scriptedProcessor{}
	pool := NewPool(store, proc, WithRetryDelay(0))

	require.NoError(t, pool.Run(context.Background(), id))

	d := getDoc(t, store, id)
	assert.Equal(t, documents.StatusReady, d.Status)
	assert.Empty(t, d.ErrorMessage)
	assert.Equal(t, 1, d.Attempts)
	assert.Equal(t, 1, proc.count(id))
}

func TestRun_RetriesTransientFailures(t *testing.T) {
	store := newStore(t)
	log := &transitionLog{Store: store}
	id := createDoc(t, store, "a.txt")
	transient := errors.New("vector store timeout")
	proc := &scriptedProcessor{errs: []error{transient, transient}}
	pool := NewPool(log, proc, WithRetryDelay(time.Millisecond))

	require.NoError(t, pool.Run(context.Background(), id))

	assert.Equal(t, 3, proc.count(id))
	d := getDoc(t, store, id)
	assert.Equal(t, documents.StatusReady, d.Status)
	assert.Equal(t, 3, d.Attempts)
	assert.Equal(t, []documents.Status{
		documents.StatusProcessing, documents.StatusError,
		documents.StatusProcessing, documents.StatusError,
		documents.StatusProcessing, documents.StatusReady,
	}, log.statuses)
}

func TestRun_GivesUpAfterMaxAttempts(t *testing.T) {
	store := newStore(t)
	id := createDoc(t, store, "a.txt")
	transient := errors.New("graph store reset")
	proc := &scriptedProcessor{errs: []error{transient, transient, transient, transient}}
	pool := NewPool(store, proc, WithRetryDelay(0), WithMaxAttempts(3))

	err := pool.Run(context.Background(), id)
	require.ErrorIs(t, err, transient)

	assert.Equal(t, 3, proc.count(id))
	d := getDoc(t, store, id)
	assert.Equal(t, documents.StatusError, d.Status)
	assert.Equal(t, "graph store reset", d.ErrorMessage)
}

func TestRun_HardFailureIsNotRetried(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		message string
	}{
		{"no text", indexer.ErrNoText, "No text extracted from document"},
		{"no chunks", indexer.ErrNoChunks, "Failed to split text into chunks"},
		{"config", fmt.Errorf("%w: missing key", indexer.ErrConfig), "configuration error: missing key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newStore(t)
			id := createDoc(t, store, "a.txt")
			proc := &scriptedProcessor{errs: []error{tt.err}}
			pool := NewPool(store, proc, WithRetryDelay(0))

			err := pool.Run(context.Background(), id)
			require.ErrorIs(t, err, tt.err)
			assert.Equal(t, 1, proc.count(id))

			d := getDoc(t, store, id)
			assert.Equal(t, documents.StatusError, d.Status)
			assert.Equal(t, tt.message, d.ErrorMessage)
		})
	}
}

func TestRun_RecoversPanic(t *testing.T) {
	store := newStore(t)
	id := createDoc(t, store, "a.txt")
	pool := NewPool(store, &scriptedProcessor{panic: true}, WithRetryDelay(0), WithMaxAttempts(2))

	err := pool.Run(context.Background(), id)
	require.ErrorIs(t, err, ErrPanic)

	d := getDoc(t, store, id)
	assert.Equal(t, documents.StatusError, d.Status)
	assert.Contains(t, d.ErrorMessage, "boom")
	assert.Equal(t, 2, d.Attempts)
}

func TestRun_ReadyDocumentIsNotRestarted(t *testing.T) {
	store := newStore(t)
	id := createDoc(t, store, "a.txt")
	proc := &scriptedProcessor{}
	pool := NewPool(store, proc, WithRetryDelay(0))
	require.NoError(t, pool.Run(context.Background(), id))

	err := pool.Run(context.Background(), id)
	require.ErrorIs(t, err, documents.ErrInvalidTransition)
	assert.Equal(t, 1, proc.count(id))
}

func TestPool_ProcessesSubmittedDocuments(t *testing.T) {
	store := newStore(t)
	proc := &scriptedProcessor{}
	pool := NewPool(store, proc, WithWorkers(3), WithRetryDelay(0))

	var ids []string
	for i := 0; i < 6; i++ {
		id := createDoc(t, store, fmt.Sprintf("doc-%d.txt", i))
		ids = append(ids, id)
		require.NoError(t, pool.Submit(id))
	}

	pool.Start(context.Background())
	defer pool.Stop()

	require.Eventually(t, func() bool {
		ready, err := store.ListByStatus(context.Background(), documents.StatusReady)
		return err == nil && len(ready) == len(ids)
	}, 5*time.Second, 10*time.Millisecond)
}

func TestPool_SubmitLimits(t *testing.T) {
	store := newStore(t)
	pool := NewPool(store, &scriptedProcessor{}, WithQueueSize(1))

	require.NoError(t, pool.Submit("a"))
	assert.ErrorIs(t, pool.Submit("b"), ErrQueueFull)

	pool.Stop()
	assert.ErrorIs(t, pool.Submit("c"), ErrStopped)
}

func TestPool_Requeue(t *testing.T) {
	store := newStore(t)
	a := createDoc(t, store, "a.txt")
	b := createDoc(t, store, "b.txt")
	_, err := store.MarkReady(context.Background(), b)
	require.NoError(t, err)

	proc := &scriptedProcessor{}
	pool := NewPool(store, proc, WithRetryDelay(0))
	n, err := pool.Requeue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	pool.Start(context.Background())
	defer pool.Stop()
	require.Eventually(t, func() bool {
		return getDoc(t, store, a).Status == documents.StatusReady
	}, 5*time.Second, 10*time.Millisecond)
	assert.Zero(t, proc.count(b))
}
