package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"domainwatch/internal/platform/metrics"
)

// Store is the worker's view of the job queue.
type Store interface {
	Dequeue(ctx context.Context, batchSize int, retryCutoff time.Duration) ([]Job, error)
	Claim(ctx context.Context, id uuid.UUID) (bool, error)
	Complete(ctx context.Context, id uuid.UUID) error
	Fail(ctx context.Context, id uuid.UUID) error
}

// Processor reconciles one domain and returns the number of changes found.
type Processor interface {
	ReconcileDomain(ctx context.Context, domain string, userID uuid.UUID) (int, error)
}

// BatchResult summarizes one worker run. Jobs skipped because a concurrent
// worker claimed them first count in neither succeeded nor failed.
type BatchResult struct {
	Dequeued  int
	Succeeded int
	Failed    int
	Skipped   int
	Changes   int
}

// Worker drives a batch of queued jobs through the reconciliation pipeline
// with bounded parallelism. Each job is processed in total isolation: its
// failure is converted to a failed status and never interrupts the batch.
type Worker struct {
	store       Store
	processor   Processor
	lease       *Lease
	batchSize   int
	parallelism int
	retryCutoff time.Duration
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

type WorkerOption func(*Worker)

// WithLease enables the Redis claim lease.
func WithLease(lease *Lease) WorkerOption {
	return func(w *Worker) { w.lease = lease }
}

func WithParallelism(n int) WorkerOption {
	return func(w *Worker) {
		if n > 0 {
			w.parallelism = n
		}
	}
}

func WithWorkerLogger(logger *slog.Logger) WorkerOption {
	return func(w *Worker) { w.logger = logger }
}

func WithWorkerMetrics(m *metrics.Metrics) WorkerOption {
	return func(w *Worker) { w.metrics = m }
}

// NewWorker constructs a Worker.
func NewWorker(store Store, processor Processor, batchSize int, retryCutoff time.Duration, opts ...WorkerOption) *Worker {
	w := &Worker{
		store:       store,
		processor:   processor,
		batchSize:   batchSize,
		parallelism: 1,
		retryCutoff: retryCutoff,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// RunBatch dequeues up to the batch size of eligible jobs and processes
// them. The claim write happens before dispatch so concurrent runs narrow
// the double-processing window; with the lease enabled it is eliminated.
func (w *Worker) RunBatch(ctx context.Context) (BatchResult, error) {
	var result BatchResult

	batch, err := w.store.Dequeue(ctx, w.batchSize, w.retryCutoff)
	if err != nil {
		return result, err
	}
	result.Dequeued = len(batch)
	if len(batch) == 0 {
		return result, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.parallelism)

	for _, job := range batch {
		g.Go(func() error {
			outcome, changes := w.process(gctx, job)
			mu.Lock()
			defer mu.Unlock()
			switch outcome {
			case jobSucceeded:
				result.Succeeded++
				result.Changes += changes
			case jobFailed:
				result.Failed++
			default:
				result.Skipped++
			}
			// Per-job isolation: never propagate into the group.
			return nil
		})
	}
	_ = g.Wait()

	w.logger.InfoContext(ctx, "job batch finished",
		"dequeued", result.Dequeued,
		"succeeded", result.Succeeded,
		"failed", result.Failed,
		"skipped", result.Skipped,
		"changes", result.Changes,
	)
	return result, nil
}

type jobOutcome int

const (
	jobSkipped jobOutcome = iota
	jobSucceeded
	jobFailed
)

func (w *Worker) process(ctx context.Context, job Job) (jobOutcome, int) {
	if w.lease != nil {
		acquired, err := w.lease.Acquire(ctx, job.Domain)
		if err != nil {
			w.logger.ErrorContext(ctx, "lease acquire failed", "domain", job.Domain, "error", err)
			return jobSkipped, 0
		}
		if !acquired {
			w.logger.InfoContext(ctx, "domain leased by another worker", "domain", job.Domain)
			return jobSkipped, 0
		}
		defer func() {
			if err := w.lease.Release(ctx, job.Domain); err != nil {
				w.logger.ErrorContext(ctx, "lease release failed", "domain", job.Domain, "error", err)
			}
		}()
	}

	claimed, err := w.store.Claim(ctx, job.ID)
	if err != nil {
		w.logger.ErrorContext(ctx, "job claim failed", "domain", job.Domain, "error", err)
		return jobSkipped, 0
	}
	if !claimed {
		return jobSkipped, 0
	}

	changes, err := w.processor.ReconcileDomain(ctx, job.Domain, job.UserID)
	if err != nil {
		w.logger.WarnContext(ctx, "job failed", "domain", job.Domain, "error", err)
		if failErr := w.store.Fail(ctx, job.ID); failErr != nil {
			w.logger.ErrorContext(ctx, "job fail status write failed", "domain", job.Domain, "error", failErr)
		}
		w.metrics.ObserveJob("failed")
		return jobFailed, 0
	}

	if err := w.store.Complete(ctx, job.ID); err != nil {
		w.logger.ErrorContext(ctx, "job complete status write failed", "domain", job.Domain, "error", err)
	}
	w.metrics.ObserveJob("complete")
	return jobSucceeded, changes
}
