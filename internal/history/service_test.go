package history_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/interpretly/booking/internal/booking"
	"github.com/interpretly/booking/internal/history"
	"github.com/interpretly/booking/internal/store"
	"github.com/interpretly/booking/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStore struct {
	store.Store
	users        map[uuid.UUID]*models.User
	byCustomer   []*models.Job
	byTranslator []*models.Job
	all          []*models.Job
	historyRole  string
	attempts     []*models.NotificationAttempt
	job          *models.Job
}

func (s *stubStore) GetUser(_ context.Context, id uuid.UUID) (*models.User, error) {
	if u, ok := s.users[id]; ok {
		return u, nil
	}
	return nil, store.ErrNotFound
}

func (s *stubStore) GetJob(_ context.Context, id uuid.UUID) (*models.Job, error) {
	if s.job != nil && s.job.ID == id {
		return s.job, nil
	}
	return nil, store.ErrNotFound
}

func (s *stubStore) FindJobsByCustomer(context.Context, uuid.UUID) ([]*models.Job, error) {
	return s.byCustomer, nil
}

func (s *stubStore) FindJobsByTranslator(context.Context, uuid.UUID) ([]*models.Job, error) {
	return s.byTranslator, nil
}

func (s *stubStore) FindAll(context.Context, store.JobFilter) ([]*models.Job, int, error) {
	return s.all, len(s.all), nil
}

func (s *stubStore) FindHistory(_ context.Context, _ uuid.UUID, role string, _ store.JobFilter) ([]*models.Job, int, error) {
	s.historyRole = role
	return s.all, len(s.all), nil
}

func (s *stubStore) ListNotificationAttempts(context.Context, uuid.UUID) ([]*models.NotificationAttempt, error) {
	return s.attempts, nil
}

func TestUsersJobs_RoleDependent(t *testing.T) {
	customerID, translatorID := uuid.New(), uuid.New()
	ownJob := &models.Job{ID: uuid.New()}
	assignedJob := &models.Job{ID: uuid.New()}

	s := &stubStore{
		users: map[uuid.UUID]*models.User{
			customerID:   {ID: customerID, Role: models.RoleCustomer},
			translatorID: {ID: translatorID, Role: models.RoleTranslator},
		},
		byCustomer:   []*models.Job{ownJob},
		byTranslator: []*models.Job{assignedJob},
	}
	svc := history.NewService(s)
	ctx := context.Background()

	jobs, err := svc.UsersJobs(ctx, customerID)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, ownJob.ID, jobs[0].ID)

	jobs, err = svc.UsersJobs(ctx, translatorID)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, assignedJob.ID, jobs[0].ID)
}

func TestUsersJobs_UnknownUser(t *testing.T) {
	svc := history.NewService(&stubStore{users: map[uuid.UUID]*models.User{}})
	_, err := svc.UsersJobs(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAll_AdminOnly(t *testing.T) {
	s := &stubStore{all: []*models.Job{{ID: uuid.New()}}}
	svc := history.NewService(s)
	ctx := context.Background()

	jobs, total, err := svc.All(ctx, booking.Actor{ID: uuid.New(), Role: models.RoleAdmin}, store.JobFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, jobs, 1)

	for _, role := range []string{models.RoleCustomer, models.RoleTranslator} {
		_, _, err := svc.All(ctx, booking.Actor{ID: uuid.New(), Role: role}, store.JobFilter{})
		assert.ErrorIs(t, err, booking.ErrForbidden, role)
	}
}

func TestUsersJobsHistory_PassesUserRole(t *testing.T) {
	translatorID := uuid.New()
	s := &stubStore{
		users: map[uuid.UUID]*models.User{
			translatorID: {ID: translatorID, Role: models.RoleTranslator},
		},
	}
	svc := history.NewService(s)

	_, _, err := svc.UsersJobsHistory(context.Background(), translatorID, store.JobFilter{})
	require.NoError(t, err)
	assert.Equal(t, models.RoleTranslator, s.historyRole)
}

func TestAttempts_AdminGatedAndJobChecked(t *testing.T) {
	job := &models.Job{ID: uuid.New()}
	s := &stubStore{
		job: job,
		attempts: []*models.NotificationAttempt{
			{ID: uuid.New(), JobID: job.ID, Outcome: models.AttemptOutcomeSent},
		},
	}
	svc := history.NewService(s)
	ctx := context.Background()
	admin := booking.Actor{ID: uuid.New(), Role: models.RoleSuperAdmin}

	attempts, err := svc.Attempts(ctx, admin, job.ID)
	require.NoError(t, err)
	assert.Len(t, attempts, 1)

	_, err = svc.Attempts(ctx, admin, uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = svc.Attempts(ctx, booking.Actor{ID: uuid.New(), Role: models.RoleTranslator}, job.ID)
	assert.ErrorIs(t, err, booking.ErrForbidden)
}
