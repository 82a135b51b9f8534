package matching

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/interpretly/booking/internal/store"
	"github.com/interpretly/booking/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubStore backs the engine with fixed translator and job sets.
type stubStore struct {
	store.Store
	translators []*models.User
	busy        map[uuid.UUID]bool
	committed   []store.TimeWindow
	openJobs    []*models.Job
}

func (s *stubStore) ListTranslators(context.Context) ([]*models.User, error) {
	return s.translators, nil
}

func (s *stubStore) FindBusyTranslators(context.Context, time.Time, time.Time) (map[uuid.UUID]bool, error) {
	if s.busy == nil {
		return map[uuid.UUID]bool{}, nil
	}
	return s.busy, nil
}

func (s *stubStore) FindCommittedWindows(context.Context, uuid.UUID) ([]store.TimeWindow, error) {
	return s.committed, nil
}

func (s *stubStore) FindAll(_ context.Context, f store.JobFilter) ([]*models.Job, int, error) {
	total := len(s.openJobs)
	if f.Limit <= 0 {
		return s.openJobs, total, nil
	}
	lo := (f.Page - 1) * f.Limit
	if lo < 0 {
		lo = 0
	}
	if lo >= total {
		return nil, total, nil
	}
	hi := lo + f.Limit
	if hi > total {
		hi = total
	}
	return s.openJobs[lo:hi], total, nil
}

func mkTranslator(available bool, languages ...string) *models.User {
	return &models.User{
		ID:        uuid.New(),
		Role:      models.RoleTranslator,
		Languages: languages,
		Available: available,
	}
}

func testEngine(s *stubStore) *Engine {
	return &Engine{store: s, now: time.Now}
}

func TestCandidates_Eligibility(t *testing.T) {
	speaks := mkTranslator(true, "fr", "de")
	wrongLang := mkTranslator(true, "es")
	unavailable := mkTranslator(false, "fr")
	notTranslator := &models.User{ID: uuid.New(), Role: models.RoleCustomer, Available: true, Languages: []string{"fr"}}

	s := &stubStore{translators: []*models.User{speaks, wrongLang, unavailable, notTranslator}}
	e := testEngine(s)

	job := &models.Job{ID: uuid.New(), ToLanguage: "fr", Immediate: true, Duration: 60}
	got, err := e.Candidates(context.Background(), job, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, speaks.ID, got[0].ID)
}

func TestCandidates_ExcludedAndBusyFiltered(t *testing.T) {
	a := mkTranslator(true, "fr")
	b := mkTranslator(true, "fr")
	c := mkTranslator(true, "fr")

	s := &stubStore{
		translators: []*models.User{a, b, c},
		busy:        map[uuid.UUID]bool{b.ID: true},
	}
	e := testEngine(s)

	job := &models.Job{ID: uuid.New(), ToLanguage: "fr", Immediate: true, Duration: 60}
	got, err := e.Candidates(context.Background(), job, map[uuid.UUID]bool{a.ID: true})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, c.ID, got[0].ID)
}

func TestCandidates_Deterministic(t *testing.T) {
	translators := []*models.User{
		mkTranslator(true, "fr"),
		mkTranslator(true, "fr"),
		mkTranslator(true, "fr"),
	}
	job := &models.Job{ID: uuid.New(), ToLanguage: "fr", Immediate: true, Duration: 60}

	// same inputs in a different store order give the same candidate order
	e1 := testEngine(&stubStore{translators: translators})
	e2 := testEngine(&stubStore{translators: []*models.User{translators[2], translators[0], translators[1]}})

	got1, err := e1.Candidates(context.Background(), job, nil)
	require.NoError(t, err)
	got2, err := e2.Candidates(context.Background(), job, nil)
	require.NoError(t, err)

	require.Len(t, got1, 3)
	assert.Equal(t, got1, got2)
	for i := 1; i < len(got1); i++ {
		assert.Less(t, got1[i-1].ID.String(), got1[i].ID.String())
	}
}

func TestPotentialJobs_InverseOfCandidates(t *testing.T) {
	tr := mkTranslator(true, "fr")
	fr := &models.Job{ID: uuid.New(), ToLanguage: "fr", Immediate: true, Duration: 60, Status: models.JobStatusOpen}
	de := &models.Job{ID: uuid.New(), ToLanguage: "de", Immediate: true, Duration: 60, Status: models.JobStatusOpen}

	s := &stubStore{
		translators: []*models.User{tr},
		openJobs:    []*models.Job{fr, de},
	}
	e := testEngine(s)
	ctx := context.Background()

	jobs, err := e.PotentialJobs(ctx, tr)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, fr.ID, jobs[0].ID)

	// the candidate view agrees on both jobs
	cands, err := e.Candidates(ctx, fr, nil)
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.Equal(t, tr.ID, cands[0].ID)

	cands, err = e.Candidates(ctx, de, nil)
	require.NoError(t, err)
	assert.Empty(t, cands)
}

func TestPotentialJobs_BusyTranslatorSkipsJob(t *testing.T) {
	tr := mkTranslator(true, "fr")
	now := time.Now()
	clash := &models.Job{ID: uuid.New(), ToLanguage: "fr", Immediate: true, Duration: 60, Status: models.JobStatusOpen}
	later := now.Add(3 * time.Hour)
	free := &models.Job{ID: uuid.New(), ToLanguage: "fr", ScheduledAt: &later, Duration: 60, Status: models.JobStatusOpen}

	// committed assignment covering the immediate window but not the later one
	s := &stubStore{
		translators: []*models.User{tr},
		openJobs:    []*models.Job{clash, free},
		committed:   []store.TimeWindow{{Start: now.Add(-time.Hour), End: now.Add(2 * time.Hour)}},
	}
	e := testEngine(s)

	jobs, err := e.PotentialJobs(context.Background(), tr)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, free.ID, jobs[0].ID)
}

func TestPotentialJobs_PagesThroughAllOpenJobs(t *testing.T) {
	tr := mkTranslator(true, "fr")
	open := make([]*models.Job, 250)
	for i := range open {
		open[i] = &models.Job{ID: uuid.New(), ToLanguage: "fr", Immediate: true, Duration: 60, Status: models.JobStatusOpen}
	}

	s := &stubStore{translators: []*models.User{tr}, openJobs: open}
	e := testEngine(s)

	jobs, err := e.PotentialJobs(context.Background(), tr)
	require.NoError(t, err)
	assert.Len(t, jobs, 250)
}

func TestPotentialJobs_NonTranslatorGetsNothing(t *testing.T) {
	cust := &models.User{ID: uuid.New(), Role: models.RoleCustomer, Available: true, Languages: []string{"fr"}}
	e := testEngine(&stubStore{})

	jobs, err := e.PotentialJobs(context.Background(), cust)
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestWindow_ImmediateStartsNow(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	e := &Engine{now: func() time.Time { return fixed }}

	job := &models.Job{Immediate: true, Duration: 30, CreatedAt: fixed.Add(-2 * time.Hour)}
	start, end := e.window(job)
	assert.Equal(t, fixed, start)
	assert.Equal(t, fixed.Add(30*time.Minute), end)

	// scheduled jobs use their booked slot
	at := fixed.Add(24 * time.Hour)
	job = &models.Job{ScheduledAt: &at, Duration: 45}
	start, end = e.window(job)
	assert.Equal(t, at, start)
	assert.Equal(t, at.Add(45*time.Minute), end)
}
