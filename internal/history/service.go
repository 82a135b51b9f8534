// Package history is the read side: job listings and the notification audit
// trail. Nothing here mutates the store or triggers notifications.
package history

import (
	"context"

	"github.com/google/uuid"
	"github.com/interpretly/booking/internal/booking"
	"github.com/interpretly/booking/internal/store"
	"github.com/interpretly/booking/pkg/models"
)

type Service struct {
	store store.Store
}

func NewService(s store.Store) *Service {
	return &Service{store: s}
}

// Job returns a single job record.
func (s *Service) Job(ctx context.Context, jobID uuid.UUID) (*models.Job, error) {
	return s.store.GetJob(ctx, jobID)
}

// UsersJobs returns the jobs a user is involved in, role-dependent: customers
// see the jobs they own, translators the jobs assigned to them.
func (s *Service) UsersJobs(ctx context.Context, userID uuid.UUID) ([]*models.Job, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if user.Role == models.RoleTranslator {
		return s.store.FindJobsByTranslator(ctx, userID)
	}
	return s.store.FindJobsByCustomer(ctx, userID)
}

// All is the unrestricted admin listing.
func (s *Service) All(ctx context.Context, actor booking.Actor, filter store.JobFilter) ([]*models.Job, int, error) {
	if actor.Role != models.RoleAdmin && actor.Role != models.RoleSuperAdmin {
		return nil, 0, booking.ErrForbidden
	}
	return s.store.FindAll(ctx, filter)
}

// UsersJobsHistory returns the user's terminal-state jobs, paginated.
func (s *Service) UsersJobsHistory(ctx context.Context, userID uuid.UUID, filter store.JobFilter) ([]*models.Job, int, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	return s.store.FindHistory(ctx, userID, user.Role, filter)
}

// Attempts exposes the append-only notification audit trail for a job.
func (s *Service) Attempts(ctx context.Context, actor booking.Actor, jobID uuid.UUID) ([]*models.NotificationAttempt, error) {
	if actor.Role != models.RoleAdmin && actor.Role != models.RoleSuperAdmin {
		return nil, booking.ErrForbidden
	}
	if _, err := s.store.GetJob(ctx, jobID); err != nil {
		return nil, err
	}
	return s.store.ListNotificationAttempts(ctx, jobID)
}
