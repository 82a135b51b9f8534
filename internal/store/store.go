package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/interpretly/booking/pkg/models"
)

var ErrNotFound = errors.New("resource not found")

// ErrJobTaken is returned when a conditional accept loses the race: the job
// exists but another translator already holds the assignment. Callers treat
// this as an expected outcome, not a system error.
var ErrJobTaken = errors.New("job already taken")

// ErrStatusConflict is returned by TransitionJob when the job exists but its
// current status is not one of the allowed source statuses. The job row is
// left untouched.
var ErrStatusConflict = errors.New("job status conflict")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
	ListTranslators(ctx context.Context) ([]*models.User, error)

	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error

	CreateJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error)
	UpdateJob(ctx context.Context, id uuid.UUID, opts ...JobUpdateOption) (*models.Job, error)

	// AcceptJob is the single atomic compare-and-set of the system: it moves an
	// open, unassigned job to assigned and sets the translator in one
	// conditional update. Exactly one concurrent caller wins; the rest get
	// ErrJobTaken. A cancelled or no-show job returns the current row with
	// ErrStatusConflict instead, since nobody holds it.
	AcceptJob(ctx context.Context, jobID, translatorID uuid.UUID) (*models.Job, error)

	// TransitionJob conditionally moves a job from one of the given source
	// statuses to the target status, applying any extra field options in the
	// same statement. On a status mismatch it returns the current job together
	// with ErrStatusConflict.
	TransitionJob(ctx context.Context, id uuid.UUID, to string, from []string, opts ...JobUpdateOption) (*models.Job, error)

	// ReopenJob moves a cancelled or no-show job back to open, clearing the
	// translator assignment, distance record, and broadcast marker.
	ReopenJob(ctx context.Context, id uuid.UUID) (*models.Job, error)

	FindJobsByCustomer(ctx context.Context, customerID uuid.UUID) ([]*models.Job, error)
	FindJobsByTranslator(ctx context.Context, translatorID uuid.UUID) ([]*models.Job, error)
	FindAll(ctx context.Context, filter JobFilter) ([]*models.Job, int, error)
	FindHistory(ctx context.Context, userID uuid.UUID, role string, filter JobFilter) ([]*models.Job, int, error)
	FindDueScheduledJobs(ctx context.Context, due time.Time, limit int) ([]*models.Job, error)
	FindBusyTranslators(ctx context.Context, start, end time.Time) (map[uuid.UUID]bool, error)

	// FindCommittedWindows returns the time windows of the translator's
	// assigned and in-progress jobs, so per-job overlap checks need only one
	// query no matter how many jobs are compared against.
	FindCommittedWindows(ctx context.Context, translatorID uuid.UUID) ([]TimeWindow, error)

	// RecordDistance overwrites the job's distance metadata. It reports whether
	// a row was modified and never fails on an unknown job id.
	RecordDistance(ctx context.Context, jobID uuid.UUID, distanceKM float64, travelTimeMinutes int) (bool, error)

	CreateNotificationAttempt(ctx context.Context, attempt *models.NotificationAttempt) error
	ListNotificationAttempts(ctx context.Context, jobID uuid.UUID) ([]*models.NotificationAttempt, error)
}

// TimeWindow is a half-open [Start, End) interval.
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

// JobFilter narrows FindAll and FindHistory queries.
type JobFilter struct {
	Status     string
	ToLanguage string
	CustomerID uuid.UUID
	Since      time.Time
	Page       int
	Limit      int
}

type jobUpdateParams struct {
	FromLanguage    *string
	ToLanguage      *string
	ScheduledAt     *time.Time
	ClearScheduled  bool
	Duration        *int
	StartedAt       *time.Time
	EndedAt         *time.Time
	BroadcastAt     *time.Time
	ClearTranslator bool
}

type JobUpdateOption func(*jobUpdateParams)

func WithLanguages(from, to string) JobUpdateOption {
	return func(p *jobUpdateParams) {
		p.FromLanguage = &from
		p.ToLanguage = &to
	}
}

func WithScheduledAt(t time.Time) JobUpdateOption {
	return func(p *jobUpdateParams) {
		p.ScheduledAt = &t
	}
}

func WithScheduleCleared() JobUpdateOption {
	return func(p *jobUpdateParams) {
		p.ClearScheduled = true
	}
}

func WithDuration(minutes int) JobUpdateOption {
	return func(p *jobUpdateParams) {
		p.Duration = &minutes
	}
}

func WithStartedAt(t time.Time) JobUpdateOption {
	return func(p *jobUpdateParams) {
		p.StartedAt = &t
	}
}

func WithEndedAt(t time.Time) JobUpdateOption {
	return func(p *jobUpdateParams) {
		p.EndedAt = &t
	}
}

func WithBroadcastAt(t time.Time) JobUpdateOption {
	return func(p *jobUpdateParams) {
		p.BroadcastAt = &t
	}
}

func WithTranslatorCleared() JobUpdateOption {
	return func(p *jobUpdateParams) {
		p.ClearTranslator = true
	}
}
