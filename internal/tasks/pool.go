// Package tasks runs document pipelines on a bounded worker pool, retries
// failed attempts and reclaims documents stuck in processing.
package tasks

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/oklog/ulid/v2"

	"github.com/Mekopa/AIHackathon-RAGLens/internal/documents"
	"github.com/Mekopa/AIHackathon-RAGLens/internal/indexer"
)

const (
	DefaultWorkers     = 4
	DefaultMaxAttempts = 3
	DefaultRetryDelay  = 30 * time.Second
	DefaultQueueSize   = 256
)

// Processor runs the pipeline for one document.
type Processor interface {
	ProcessDocument(ctx context.Context, id string) (*indexer.Result, error)
}

// StatusStore owns the document status machine. documents.Store
// implements it.
type StatusStore interface {
	GetDocument(ctx context.Context, id string) (documents.Document, error)
	ListByStatus(ctx context.Context, status documents.Status) ([]documents.Document, error)
	MarkProcessing(ctx context.Context, id string) (documents.Document, error)
	MarkReady(ctx context.Context, id string) (documents.Document, error)
	MarkError(ctx context.Context, id, message string) (documents.Document, error)
	Reprocess(ctx context.Context, id string) (documents.Document, error)
	SweepStale(ctx context.Context, olderThan time.Duration) ([]string, error)
}

// Pool processes submitted document ids, one goroutine per worker. Chunks
// of one document are processed sequentially by the pipeline; documents
// run in parallel across workers.
type Pool struct {
	store       StatusStore
	processor   Processor
	workers     int
	maxAttempts int
	retryDelay  time.Duration
	logger      *slog.Logger
	queue       chan string

	mu      sync.Mutex
	running bool
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	idMu    sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// Option configures a Pool.
type Option func(*Pool)

// WithWorkers sets the number of concurrent documents.
func WithWorkers(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithMaxAttempts bounds the attempts per document, first one included.
func WithMaxAttempts(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.maxAttempts = n
		}
	}
}

// WithRetryDelay sets the fixed delay between attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(p *Pool) {
		if d >= 0 {
			p.retryDelay = d
		}
	}
}

// WithQueueSize sets how many ids may wait for a worker.
func WithQueueSize(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.queue = make(chan string, n)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pool) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewPool creates a stopped pool.
func NewPool(store StatusStore, processor Processor, opts ...Option) *Pool {
	p := &Pool{
		store:       store,
		processor:   processor,
		workers:     DefaultWorkers,
		maxAttempts: DefaultMaxAttempts,
		retryDelay:  DefaultRetryDelay,
		logger:      slog.Default(),
		queue:       make(chan string, DefaultQueueSize),
		entropy:     ulid.Monotonic(rand.Reader, 0),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the workers. Ids submitted earlier are picked up now.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running || p.stopped {
		return
	}
	p.running = true

	ctx, p.cancel = context.WithCancel(ctx)
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.work(ctx, i)
	}
	p.logger.Info("task pool started", "workers", p.workers, "max_attempts", p.maxAttempts, "retry_delay", p.retryDelay)
}

// Stop cancels running attempts and waits for the workers. Documents left
// in processing are reclaimed by the sweep or by Requeue on next start.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	if p.cancel != nil {
		p.cancel()
	}
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Info("task pool stopped")
}

// Submit queues a document without blocking.
func (p *Pool) Submit(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return ErrStopped
	}
	select {
	case p.queue <- id:
		return nil
	default:
		return ErrQueueFull
	}
}

// Requeue submits every document currently in processing. It is used at
// startup to resume work interrupted by a restart.
func (p *Pool) Requeue(ctx context.Context) (int, error) {
	docs, err := p.store.ListByStatus(ctx, documents.StatusProcessing)
	if err != nil {
		return 0, fmt.Errorf("list processing documents: %w", err)
	}
	n := 0
	for _, d := range docs {
		if err := p.Submit(d.ID); err != nil {
			return n, fmt.Errorf("requeue %s: %w", d.ID, err)
		}
		n++
	}
	return n, nil
}

func (p *Pool) work(ctx context.Context, worker int) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case id, ok := <-p.queue:
			if !ok {
				return
			}
			if err := p.Run(ctx, id); err != nil {
				p.logger.Warn("document failed", "document_id", id, "worker", worker, "error", err)
			}
		}
	}
}

// Run processes one document synchronously with retries. Every attempt
// moves the document to processing and ends in ready or error; a failed
// attempt is recorded as error before the next one starts. Hard failures
// are not retried.
func (p *Pool) Run(ctx context.Context, id string) error {
	log := p.logger.With("document_id", id, "run_id", p.runID())
	attempt := 0

	op := func() error {
		attempt++
		alog := log.With("attempt", attempt)

		if _, err := p.store.MarkProcessing(ctx, id); err != nil {
			return backoff.Permanent(fmt.Errorf("start attempt: %w", err))
		}
		alog.Info("processing document")

		res, err := p.process(ctx, id)
		if err != nil {
			if _, merr := p.store.MarkError(ctx, id, indexer.Message(err)); merr != nil {
				alog.Warn("failed to record error status", "error", merr)
			}
			if indexer.IsPermanent(err) || errors.Is(err, documents.ErrNotFound) || ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			alog.Warn("attempt failed", "error", err, "max_attempts", p.maxAttempts)
			return err
		}

		if _, err := p.store.MarkReady(ctx, id); err != nil {
			return backoff.Permanent(fmt.Errorf("finish attempt: %w", err))
		}
		alog.Info("document ready",
			"chunks", res.Chunks, "degraded", res.Degraded, "skipped", res.Skipped,
			"entities", res.Graph.Entities, "duration", res.Duration)
		return nil
	}

	var b backoff.BackOff = backoff.NewConstantBackOff(p.retryDelay)
	b = backoff.WithMaxRetries(b, uint64(p.maxAttempts-1))
	return backoff.Retry(op, backoff.WithContext(b, ctx))
}

// process runs the pipeline, turning a panic into an attempt failure.
func (p *Pool) process(ctx context.Context, id string) (res *indexer.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()
	return p.processor.ProcessDocument(ctx, id)
}

func (p *Pool) runID() string {
	p.idMu.Lock()
	defer p.idMu.Unlock()
	return ulid.MustNew(ulid.Now(), p.entropy).String()
}
