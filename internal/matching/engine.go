// Package matching computes the set of translators eligible to receive a job
// offer. Both directions of the question — "who can take this job" and "which
// jobs could this translator take" — share one predicate so the two entry
// points can never disagree.
package matching

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/interpretly/booking/internal/store"
	"github.com/interpretly/booking/pkg/models"
)

// Engine computes candidate sets from current translator state. Results are
// never cached across rounds: eligibility depends on availability and
// assignments at the moment of the broadcast.
type Engine struct {
	store store.Store
	now   func() time.Time
}

func NewEngine(s store.Store) *Engine {
	return &Engine{store: s, now: time.Now}
}

// Candidates returns the translators eligible to receive an offer for the job,
// sorted by id for determinism. An empty result is not an error; the caller
// decides whether it is user-visible.
func (e *Engine) Candidates(ctx context.Context, job *models.Job, excluded map[uuid.UUID]bool) ([]*models.User, error) {
	translators, err := e.store.ListTranslators(ctx)
	if err != nil {
		return nil, fmt.Errorf("list translators: %w", err)
	}

	start, end := e.window(job)
	busy, err := e.store.FindBusyTranslators(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("find busy translators: %w", err)
	}

	var candidates []*models.User
	for _, t := range translators {
		if excluded[t.ID] || busy[t.ID] {
			continue
		}
		if eligible(job, t) {
			candidates = append(candidates, t)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].ID.String() < candidates[j].ID.String()
	})
	return candidates, nil
}

// PotentialJobs is the candidate-perspective inverse of Candidates: it returns
// every open job whose candidate set would include the translator. Open jobs
// are paged through in full, and the translator's committed windows are
// fetched once up front rather than per job.
func (e *Engine) PotentialJobs(ctx context.Context, translator *models.User) ([]*models.Job, error) {
	if translator.Role != models.RoleTranslator {
		return nil, nil
	}

	committed, err := e.store.FindCommittedWindows(ctx, translator.ID)
	if err != nil {
		return nil, fmt.Errorf("find committed windows: %w", err)
	}

	const pageSize = 100
	var jobs []*models.Job
	for page := 1; ; page++ {
		open, total, err := e.store.FindAll(ctx, store.JobFilter{
			Status: models.JobStatusOpen,
			Page:   page,
			Limit:  pageSize,
		})
		if err != nil {
			return nil, fmt.Errorf("find open jobs: %w", err)
		}
		for _, job := range open {
			if !eligible(job, translator) {
				continue
			}
			start, end := e.window(job)
			if overlapsAny(committed, start, end) {
				continue
			}
			jobs = append(jobs, job)
		}
		if len(open) < pageSize || page*pageSize >= total {
			break
		}
	}
	return jobs, nil
}

// overlapsAny reports whether [start, end) intersects any committed window,
// with the same strict-bound overlap as the store's busy query.
func overlapsAny(windows []store.TimeWindow, start, end time.Time) bool {
	for _, w := range windows {
		if w.Start.Before(end) && w.End.After(start) {
			return true
		}
	}
	return false
}

// eligible is the shared predicate: translator role, language capability, and
// declared availability. Time-window conflicts are layered on top via the
// store's busy query.
func eligible(job *models.Job, t *models.User) bool {
	return t.Role == models.RoleTranslator &&
		t.Available &&
		t.Speaks(job.ToLanguage)
}

// window is the job's occupancy span; immediate jobs occupy a window starting
// now rather than at creation, since dispatch happens at call time.
func (e *Engine) window(job *models.Job) (time.Time, time.Time) {
	if job.Immediate && job.ScheduledAt == nil {
		dur := job.Duration
		if dur <= 0 {
			dur = 60
		}
		start := e.now()
		return start, start.Add(time.Duration(dur) * time.Minute)
	}
	return job.Window()
}
