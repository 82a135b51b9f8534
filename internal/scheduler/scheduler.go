// Package scheduler runs the deferred broadcast for scheduled jobs: a poll
// loop that finds open jobs whose lead window has opened and have not been
// broadcast yet.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/interpretly/booking/internal/store"
	"github.com/interpretly/booking/pkg/models"
)

const batchSize = 50

// Scheduler polls for due scheduled jobs and triggers their first broadcast
// round. The store's broadcast_at marker keeps the poll idempotent: a job is
// due only while the marker is unset.
type Scheduler struct {
	store        store.Store
	dispatch     func(ctx context.Context, job *models.Job)
	pollInterval time.Duration
	leadTime     time.Duration
}

func New(s store.Store, dispatch func(ctx context.Context, job *models.Job), pollInterval, leadTime time.Duration) *Scheduler {
	return &Scheduler{
		store:        s,
		dispatch:     dispatch,
		pollInterval: pollInterval,
		leadTime:     leadTime,
	}
}

// Run blocks until ctx is cancelled, polling on every tick.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("scheduler exiting")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs one poll round. Exposed for tests and manual triggering.
func (s *Scheduler) Tick(ctx context.Context) {
	due := time.Now().Add(s.leadTime)
	jobs, err := s.store.FindDueScheduledJobs(ctx, due, batchSize)
	if err != nil {
		slog.Error("find due scheduled jobs", "error", err)
		return
	}

	for _, job := range jobs {
		slog.Info("dispatching scheduled job", "job_id", job.ID, "scheduled_at", job.ScheduledAt)
		s.dispatch(ctx, job)
	}
}
