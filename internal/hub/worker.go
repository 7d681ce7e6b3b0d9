package hub

import (
	"context"
	"log/slog"
	"time"

	id "agora/pkg/domain"
)

const (
	// Two reconciliation attempts, each capped, matching the background
	// task policy for external work.
	maxAttempts    = 2
	attemptTimeout = 15 * time.Minute
	retryDelay     = 30 * time.Second
)

// Job is one queued reconciliation. Token-scoped jobs come from profile
// owners; the rest use the service credential.
type Job struct {
	OrgID id.OrgID
	Token string
}

// Worker runs reconciliations off the request path with at-least-once
// semantics and a bounded retry. Callers fire and forget.
type Worker struct {
	reconciler *Reconciler
	logger     *slog.Logger
	inbox      chan Job
}

func NewWorker(reconciler *Reconciler, logger *slog.Logger, queueSize int) *Worker {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Worker{
		reconciler: reconciler,
		logger:     logger,
		inbox:      make(chan Job, queueSize),
	}
}

// Enqueue hands a job to the worker. It never blocks: when the queue is
// full the job is dropped with a log entry; the scheduler will pick the
// organization up again on the next stale pass.
func (w *Worker) Enqueue(job Job) {
	select {
	case w.inbox <- job:
	default:
		w.logger.Warn("sync queue full, dropping job", "org_id", job.OrgID.String())
	}
}

// Run consumes the queue until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case job := <-w.inbox:
			w.process(ctx, job)
		}
	}
}

func (w *Worker) process(ctx context.Context, job Job) {
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
		_, err := w.reconciler.Reconcile(attemptCtx, job.OrgID, job.Token)
		cancel()
		if err == nil {
			return
		}
		w.logger.Warn("reconciliation failed",
			"org_id", job.OrgID.String(), "attempt", attempt, "error", err)
		if attempt < maxAttempts {
			select {
			case <-ctx.Done():
				return
			case <-time.After(retryDelay):
			}
		}
	}
}
