package hub

import (
	"context"
	"log/slog"
	"time"

	"agora/internal/org"
	id "agora/pkg/domain"
	"agora/pkg/requestcontext"
)

// StaleLister pages through organizations due for a re-sync.
type StaleLister interface {
	ListStaleSynced(ctx context.Context, cutoff time.Time, limit int) ([]org.Organization, error)
}

// Scheduler periodically re-queues registry-linked organizations whose
// last sync exceeds the staleness threshold, capped per run to bound
// external API load. Idempotent: a fresh organization never matches the
// cutoff, so re-running is a no-op.
type Scheduler struct {
	store      StaleLister
	worker     *Worker
	logger     *slog.Logger
	staleAfter time.Duration
	batchLimit int
	interval   time.Duration
}

func NewScheduler(store StaleLister, worker *Worker, logger *slog.Logger,
	staleAfter time.Duration, batchLimit int) *Scheduler {
	if staleAfter <= 0 {
		staleAfter = 7 * 24 * time.Hour
	}
	if batchLimit <= 0 {
		batchLimit = 50
	}
	return &Scheduler{
		store:      store,
		worker:     worker,
		logger:     logger,
		staleAfter: staleAfter,
		batchLimit: batchLimit,
		interval:   time.Hour,
	}
}

// Run sweeps on a fixed interval until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.logger.Warn("stale sweep failed", "error", err)
			}
		}
	}
}

// Sweep enqueues one batch of stale organizations and reports how many.
func (s *Scheduler) Sweep(ctx context.Context) (int, error) {
	cutoff := requestcontext.Now(ctx).Add(-s.staleAfter)
	stale, err := s.store.ListStaleSynced(ctx, cutoff, s.batchLimit)
	if err != nil {
		return 0, err
	}
	for _, o := range stale {
		s.worker.Enqueue(Job{OrgID: o.ID})
	}
	if len(stale) > 0 {
		s.logger.Info("stale organizations queued", "count", len(stale))
	}
	return len(stale), nil
}

// EnqueueOne queues a single organization, used by the admin trigger.
func (s *Scheduler) EnqueueOne(orgID id.OrgID, token string) {
	s.worker.Enqueue(Job{OrgID: orgID, Token: token})
}
