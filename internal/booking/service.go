// Package booking is the job lifecycle controller: it owns the state machine,
// resolves accept races through the store's conditional update, and triggers
// matching and notification fan-out on dispatching transitions.
package booking

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/interpretly/booking/internal/cache"
	"github.com/interpretly/booking/internal/notify"
	"github.com/interpretly/booking/internal/store"
	"github.com/interpretly/booking/pkg/models"
)

// Actor is the authenticated caller, resolved by the upstream layer and
// threaded explicitly into every operation.
type Actor struct {
	ID   uuid.UUID
	Role string
}

// Matcher computes candidate sets and their inverse.
type Matcher interface {
	Candidates(ctx context.Context, job *models.Job, excluded map[uuid.UUID]bool) ([]*models.User, error)
	PotentialJobs(ctx context.Context, translator *models.User) ([]*models.Job, error)
}

// Broadcaster fans offers out and voids stale ones.
type Broadcaster interface {
	Broadcast(ctx context.Context, job *models.Job, candidates []*models.User, selector string) *notify.Report
	CancelPending(ctx context.Context, jobID, winnerID uuid.UUID)
}

// Service implements every lifecycle operation. Guards run before any
// mutation; dispatch runs strictly after the state change is committed and can
// never fail the operation that triggered it.
type Service struct {
	store   store.Store
	matcher Matcher
	disp    Broadcaster
	sink    notify.Sink
	cache   cache.Cache
	now     func() time.Time
}

func NewService(s store.Store, m Matcher, d Broadcaster, sink notify.Sink, c cache.Cache) *Service {
	return &Service{store: s, matcher: m, disp: d, sink: sink, cache: c, now: time.Now}
}

// Operation names, used both for capability checks and transition errors.
const (
	opCreate         = "create"
	opUpdate         = "update"
	opAccept         = "accept"
	opStart          = "start"
	opEnd            = "end"
	opCancel         = "cancel"
	opCustomerNoShow = "customer_no_show"
	opReopen         = "reopen"
	opPotential      = "potential_jobs"
	opResend         = "resend_notifications"
	opDistance       = "distance_feed"
)

// capabilities is the single role gate for the whole controller; operations
// never re-check roles individually.
var capabilities = map[string][]string{
	opCreate:         {models.RoleCustomer, models.RoleAdmin, models.RoleSuperAdmin},
	opUpdate:         {models.RoleCustomer, models.RoleAdmin, models.RoleSuperAdmin},
	opAccept:         {models.RoleTranslator},
	opStart:          {models.RoleTranslator},
	opEnd:            {models.RoleTranslator, models.RoleAdmin, models.RoleSuperAdmin},
	opCancel:         {models.RoleCustomer, models.RoleAdmin, models.RoleSuperAdmin},
	opCustomerNoShow: {models.RoleTranslator, models.RoleAdmin, models.RoleSuperAdmin},
	opReopen:         {models.RoleAdmin, models.RoleSuperAdmin},
	opPotential:      {models.RoleTranslator},
	opResend:         {models.RoleAdmin, models.RoleSuperAdmin},
	opDistance:       {models.RoleAdmin, models.RoleSuperAdmin},
}

func (s *Service) authorize(actor Actor, op string) error {
	for _, role := range capabilities[op] {
		if actor.Role == role {
			return nil
		}
	}
	return ErrForbidden
}

func isAdmin(actor Actor) bool {
	return actor.Role == models.RoleAdmin || actor.Role == models.RoleSuperAdmin
}

// CreateParams is the payload for Create and CreateWithEmail.
type CreateParams struct {
	CustomerID   uuid.UUID // admins may book on behalf of a customer
	FromLanguage string
	ToLanguage   string
	Immediate    bool
	ScheduledAt  *time.Time
	Duration     int
}

func (s *Service) validateCreate(p *CreateParams) error {
	if p.ToLanguage == "" {
		return &ValidationError{Field: "to_language", Reason: "required"}
	}
	if p.Immediate && p.ScheduledAt != nil {
		return &ValidationError{Field: "scheduled_at", Reason: "immediate jobs cannot carry a scheduled time"}
	}
	if !p.Immediate {
		if p.ScheduledAt == nil {
			return &ValidationError{Field: "scheduled_at", Reason: "required for scheduled jobs"}
		}
		if p.ScheduledAt.Before(s.now()) {
			return &ValidationError{Field: "scheduled_at", Reason: "must be in the future"}
		}
	}
	if p.Duration < 0 {
		return &ValidationError{Field: "duration_minutes", Reason: "must not be negative"}
	}
	if p.Duration == 0 {
		p.Duration = 60
	}
	return nil
}

// Create books a new job. Immediate jobs get a broadcast round right away;
// scheduled jobs are picked up by the scheduler when their lead window opens.
func (s *Service) Create(ctx context.Context, actor Actor, p CreateParams) (*models.Job, *notify.Report, error) {
	if err := s.authorize(actor, opCreate); err != nil {
		return nil, nil, err
	}
	if err := s.validateCreate(&p); err != nil {
		return nil, nil, err
	}

	customerID := actor.ID
	if p.CustomerID != uuid.Nil {
		if !isAdmin(actor) && p.CustomerID != actor.ID {
			return nil, nil, ErrForbidden
		}
		customerID = p.CustomerID
	}

	now := s.now().UTC()
	job := &models.Job{
		ID:           uuid.New(),
		CustomerID:   customerID,
		FromLanguage: p.FromLanguage,
		ToLanguage:   p.ToLanguage,
		Immediate:    p.Immediate,
		Status:       models.JobStatusOpen,
		ScheduledAt:  p.ScheduledAt,
		Duration:     p.Duration,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, nil, err
	}

	var report *notify.Report
	if p.Immediate {
		report = s.dispatchRound(ctx, job, notify.SelectorAll, true)
	}
	return job, report, nil
}

// CreateWithEmail books an immediate job and emails a booking confirmation to
// the customer. Shares Create's validation and dispatch path.
func (s *Service) CreateWithEmail(ctx context.Context, actor Actor, p CreateParams) (*models.Job, *notify.Report, error) {
	p.Immediate = true
	p.ScheduledAt = nil

	job, report, err := s.Create(ctx, actor, p)
	if err != nil {
		return nil, nil, err
	}

	customer, err := s.store.GetUser(ctx, job.CustomerID)
	if err != nil {
		slog.Warn("load customer for confirmation email", "job_id", job.ID, "error", err)
		return job, report, nil
	}
	msg := notify.Message{
		JobID:    job.ID,
		Language: job.ToLanguage,
		Body:     "Your booking is confirmed and translators are being notified.",
	}
	if err := s.sink.Send(ctx, customer, models.ChannelEmail, msg); err != nil {
		slog.Warn("send confirmation email", "job_id", job.ID, "error", err)
	}
	return job, report, nil
}

// UpdateParams carries the patchable fields; nil fields are untouched.
type UpdateParams struct {
	FromLanguage *string
	ToLanguage   *string
	ScheduledAt  *time.Time
	Duration     *int
}

// Update patches an open job. Any other status is an invalid transition, and
// a failed attempt changes nothing. Changing the language or schedule starts a
// fresh broadcast round.
func (s *Service) Update(ctx context.Context, actor Actor, jobID uuid.UUID, p UpdateParams) (*models.Job, error) {
	if err := s.authorize(actor, opUpdate); err != nil {
		return nil, err
	}

	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !isAdmin(actor) && job.CustomerID != actor.ID {
		return nil, ErrForbidden
	}
	if job.Status != models.JobStatusOpen {
		return nil, &InvalidTransitionError{Op: opUpdate, Status: job.Status}
	}

	var opts []store.JobUpdateOption
	redispatch := false
	if p.ToLanguage != nil || p.FromLanguage != nil {
		from, to := job.FromLanguage, job.ToLanguage
		if p.FromLanguage != nil {
			from = *p.FromLanguage
		}
		if p.ToLanguage != nil {
			to = *p.ToLanguage
		}
		if to == "" {
			return nil, &ValidationError{Field: "to_language", Reason: "required"}
		}
		opts = append(opts, store.WithLanguages(from, to))
		redispatch = redispatch || to != job.ToLanguage
	}
	if p.ScheduledAt != nil {
		if p.ScheduledAt.Before(s.now()) {
			return nil, &ValidationError{Field: "scheduled_at", Reason: "must be in the future"}
		}
		opts = append(opts, store.WithScheduledAt(*p.ScheduledAt))
		redispatch = true
	}
	if p.Duration != nil {
		if *p.Duration <= 0 {
			return nil, &ValidationError{Field: "duration_minutes", Reason: "must be positive"}
		}
		opts = append(opts, store.WithDuration(*p.Duration))
	}
	if len(opts) == 0 {
		return job, nil
	}

	updated, err := s.store.UpdateJob(ctx, jobID, opts...)
	if err != nil {
		return nil, err
	}

	if redispatch {
		// Eligibility changed, so the old round's exclusions no longer apply.
		s.clearRound(ctx, jobID)
		s.dispatchRound(ctx, updated, notify.SelectorAll, true)
	}
	return updated, nil
}

// Accept resolves the first-acceptance race. Exactly one concurrent caller
// wins via the store's conditional update; everyone else gets
// store.ErrJobTaken, which is an ordinary outcome rather than a fault.
// Accepting a cancelled or no-show job is an invalid transition: the job is
// held by nobody, so no race was lost.
func (s *Service) Accept(ctx context.Context, actor Actor, jobID uuid.UUID) (*models.Job, error) {
	if err := s.authorize(actor, opAccept); err != nil {
		return nil, err
	}

	job, err := s.store.AcceptJob(ctx, jobID, actor.ID)
	if err != nil {
		if job != nil {
			return nil, &InvalidTransitionError{Op: opAccept, Status: job.Status}
		}
		return nil, err
	}

	// Winner committed; void the losers' pending offers where possible.
	s.disp.CancelPending(ctx, jobID, actor.ID)
	return job, nil
}

// Start moves an assigned job to in-progress. Only the assigned translator may
// start the session.
func (s *Service) Start(ctx context.Context, actor Actor, jobID uuid.UUID) (*models.Job, error) {
	if err := s.authorize(actor, opStart); err != nil {
		return nil, err
	}
	if err := s.requireAssignedTranslator(ctx, actor, jobID); err != nil {
		return nil, err
	}

	return s.transition(ctx, jobID, opStart, models.JobStatusInProgress,
		[]string{models.JobStatusAssigned},
		store.WithStartedAt(s.now().UTC()))
}

// End completes a job from assigned or in-progress and records the end time.
func (s *Service) End(ctx context.Context, actor Actor, jobID uuid.UUID) (*models.Job, error) {
	if err := s.authorize(actor, opEnd); err != nil {
		return nil, err
	}
	if actor.Role == models.RoleTranslator {
		if err := s.requireAssignedTranslator(ctx, actor, jobID); err != nil {
			return nil, err
		}
	}

	return s.transition(ctx, jobID, opEnd, models.JobStatusCompleted,
		[]string{models.JobStatusAssigned, models.JobStatusInProgress},
		store.WithEndedAt(s.now().UTC()))
}

// Cancel withdraws an open or assigned job. An assigned translator is released
// along the way; the job itself stays on record as cancelled.
func (s *Service) Cancel(ctx context.Context, actor Actor, jobID uuid.UUID) (*models.Job, error) {
	if err := s.authorize(actor, opCancel); err != nil {
		return nil, err
	}
	if actor.Role == models.RoleCustomer {
		job, err := s.store.GetJob(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if job.CustomerID != actor.ID {
			return nil, ErrForbidden
		}
	}

	return s.transition(ctx, jobID, opCancel, models.JobStatusCancelled,
		[]string{models.JobStatusOpen, models.JobStatusAssigned},
		store.WithTranslatorCleared())
}

// CustomerNoShow records that the customer never appeared. The translator
// assignment is deliberately kept: the translator showed up and the record
// must preserve that, unlike an ordinary cancellation.
func (s *Service) CustomerNoShow(ctx context.Context, actor Actor, jobID uuid.UUID) (*models.Job, error) {
	if err := s.authorize(actor, opCustomerNoShow); err != nil {
		return nil, err
	}
	if actor.Role == models.RoleTranslator {
		if err := s.requireAssignedTranslator(ctx, actor, jobID); err != nil {
			return nil, err
		}
	}

	return s.transition(ctx, jobID, opCustomerNoShow, models.JobStatusCustomerNoShow,
		[]string{models.JobStatusAssigned, models.JobStatusInProgress})
}

// Reopen puts a cancelled or no-show job back on the market: assignment and
// distance record cleared, status open, and a fresh broadcast round.
func (s *Service) Reopen(ctx context.Context, actor Actor, jobID uuid.UUID) (*models.Job, *notify.Report, error) {
	if err := s.authorize(actor, opReopen); err != nil {
		return nil, nil, err
	}

	job, err := s.store.ReopenJob(ctx, jobID)
	if err != nil {
		if job != nil {
			return nil, nil, &InvalidTransitionError{Op: opReopen, Status: job.Status}
		}
		return nil, nil, err
	}

	s.clearRound(ctx, jobID)
	report := s.dispatchRound(ctx, job, notify.SelectorAll, true)
	return job, report, nil
}

// PotentialJobs lists the open jobs this translator would be a candidate for.
func (s *Service) PotentialJobs(ctx context.Context, actor Actor) ([]*models.Job, error) {
	if err := s.authorize(actor, opPotential); err != nil {
		return nil, err
	}
	translator, err := s.store.GetUser(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	return s.matcher.PotentialJobs(ctx, translator)
}

// Resend runs a manual broadcast round against a freshly computed candidate
// set, ignoring round exclusions. selector is notify.SelectorAll or a single
// channel tag such as sms.
func (s *Service) Resend(ctx context.Context, actor Actor, jobID uuid.UUID, selector string) (*notify.Report, error) {
	if err := s.authorize(actor, opResend); err != nil {
		return nil, err
	}

	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != models.JobStatusOpen {
		return nil, &InvalidTransitionError{Op: opResend, Status: job.Status}
	}

	return s.dispatchRound(ctx, job, selector, false), nil
}

// DistanceFeed overwrites the job's distance record. A missing job reports
// false so the caller can answer "could not be updated" without treating it as
// a system error.
func (s *Service) DistanceFeed(ctx context.Context, actor Actor, jobID uuid.UUID, distanceKM float64, travelTimeMinutes int) (bool, error) {
	if err := s.authorize(actor, opDistance); err != nil {
		return false, err
	}
	if jobID == uuid.Nil {
		return false, &ValidationError{Field: "job_id", Reason: "required"}
	}
	return s.store.RecordDistance(ctx, jobID, distanceKM, travelTimeMinutes)
}

// DispatchScheduled runs the deferred broadcast for a scheduled job; the
// scheduler calls this when the lead window opens.
func (s *Service) DispatchScheduled(ctx context.Context, job *models.Job) *notify.Report {
	return s.dispatchRound(ctx, job, notify.SelectorAll, true)
}

// --- internals ---

func (s *Service) transition(ctx context.Context, jobID uuid.UUID, op, to string, from []string, opts ...store.JobUpdateOption) (*models.Job, error) {
	job, err := s.store.TransitionJob(ctx, jobID, to, from, opts...)
	if err != nil {
		if job != nil {
			return nil, &InvalidTransitionError{Op: op, Status: job.Status}
		}
		return nil, err
	}
	return job, nil
}

func (s *Service) requireAssignedTranslator(ctx context.Context, actor Actor, jobID uuid.UUID) error {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.TranslatorID == nil || *job.TranslatorID != actor.ID {
		return ErrForbidden
	}
	return nil
}

// dispatchRound recomputes candidates, broadcasts, and records the round. It
// never fails the caller: the authoritative state change already committed.
func (s *Service) dispatchRound(ctx context.Context, job *models.Job, selector string, useExclusions bool) *notify.Report {
	excluded := make(map[uuid.UUID]bool)
	if useExclusions {
		members, err := s.cache.SMembers(ctx, cache.RoundExclusionsKey(job.ID))
		if err != nil {
			slog.Warn("load round exclusions", "job_id", job.ID, "error", err)
		}
		for _, m := range members {
			if id, err := uuid.Parse(m); err == nil {
				excluded[id] = true
			}
		}
	}

	candidates, err := s.matcher.Candidates(ctx, job, excluded)
	if err != nil {
		slog.Error("compute candidates", "job_id", job.ID, "error", err)
		return &notify.Report{Channel: map[string]notify.ChannelCount{}}
	}
	if len(candidates) == 0 {
		slog.Info("no eligible translators", "job_id", job.ID, "language", job.ToLanguage)
	}

	report := s.disp.Broadcast(ctx, job, candidates, selector)

	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ID.String()
	}
	if err := s.cache.SAddWithExpiry(ctx, cache.RoundExclusionsKey(job.ID), ids, 24*time.Hour); err != nil {
		slog.Warn("record round exclusions", "job_id", job.ID, "error", err)
	}
	if _, err := s.store.UpdateJob(ctx, job.ID, store.WithBroadcastAt(s.now().UTC())); err != nil {
		slog.Warn("record broadcast time", "job_id", job.ID, "error", err)
	}

	slog.Info("broadcast round finished",
		"job_id", job.ID, "candidates", len(candidates),
		"sent", report.Sent, "failed", report.Failed)
	return report
}

func (s *Service) clearRound(ctx context.Context, jobID uuid.UUID) {
	if err := s.cache.Delete(ctx, cache.RoundExclusionsKey(jobID)); err != nil {
		slog.Warn("clear round exclusions", "job_id", jobID, "error", err)
	}
}
