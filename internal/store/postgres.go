package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/interpretly/booking/pkg/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Users ---

const userCols = `id, name, email, phone, role, languages, available, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &u.Role, &u.Languages,
		&u.Available, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *PostgresStore) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userCols+` FROM users WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, user *models.User) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, name, email, phone, role, languages, available, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		user.ID, user.Name, user.Email, user.Phone, user.Role, user.Languages,
		user.Available, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListTranslators(ctx context.Context) ([]*models.User, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+userCols+` FROM users WHERE role = $1 ORDER BY id`, models.RoleTranslator)
	if err != nil {
		return nil, fmt.Errorf("list translators: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan translator: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// --- API Keys ---

func (s *PostgresStore) GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, name, key_hash, key_prefix, last_used_at, deleted_at, created_at, updated_at
		 FROM api_keys WHERE key_prefix = $1 AND deleted_at IS NULL`, prefix)
	if err != nil {
		return nil, fmt.Errorf("get api key by prefix: %w", err)
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.UserID, &k.Name, &k.KeyHash, &k.KeyPrefix,
			&k.LastUsedAt, &k.DeletedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

func (s *PostgresStore) UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET last_used_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("update api key last used: %w", err)
	}
	return nil
}

// --- Jobs ---

const jobCols = `id, customer_id, translator_id, from_language, to_language, immediate, status,
	scheduled_at, duration_minutes, distance_km, travel_time_minutes, distance_calculated_at,
	broadcast_at, started_at, ended_at, created_at, updated_at`

func scanJob(row pgx.Row) (*models.Job, error) {
	var j models.Job
	err := row.Scan(&j.ID, &j.CustomerID, &j.TranslatorID, &j.FromLanguage, &j.ToLanguage,
		&j.Immediate, &j.Status, &j.ScheduledAt, &j.Duration, &j.DistanceKM,
		&j.TravelTimeMinutes, &j.DistanceCalculatedAt, &j.BroadcastAt,
		&j.StartedAt, &j.EndedAt, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func (s *PostgresStore) CreateJob(ctx context.Context, job *models.Job) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO jobs (id, customer_id, from_language, to_language, immediate, status,
		   scheduled_at, duration_minutes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		job.ID, job.CustomerID, job.FromLanguage, job.ToLanguage, job.Immediate,
		job.Status, job.ScheduledAt, job.Duration, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	j, err := scanJob(s.pool.QueryRow(ctx,
		`SELECT `+jobCols+` FROM jobs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return j, nil
}

// buildJobSet renders the SET fragments for the configured options, starting
// at the given placeholder index. updated_at is always bumped by the caller.
func buildJobSet(params *jobUpdateParams, argIdx int) ([]string, []any, int) {
	var sets []string
	var args []any

	if params.FromLanguage != nil {
		sets = append(sets, fmt.Sprintf("from_language = $%d", argIdx))
		args = append(args, *params.FromLanguage)
		argIdx++
	}
	if params.ToLanguage != nil {
		sets = append(sets, fmt.Sprintf("to_language = $%d", argIdx))
		args = append(args, *params.ToLanguage)
		argIdx++
	}
	if params.ScheduledAt != nil {
		sets = append(sets, fmt.Sprintf("scheduled_at = $%d", argIdx))
		args = append(args, *params.ScheduledAt)
		argIdx++
	}
	if params.ClearScheduled {
		sets = append(sets, "scheduled_at = NULL")
	}
	if params.Duration != nil {
		sets = append(sets, fmt.Sprintf("duration_minutes = $%d", argIdx))
		args = append(args, *params.Duration)
		argIdx++
	}
	if params.StartedAt != nil {
		sets = append(sets, fmt.Sprintf("started_at = $%d", argIdx))
		args = append(args, *params.StartedAt)
		argIdx++
	}
	if params.EndedAt != nil {
		sets = append(sets, fmt.Sprintf("ended_at = $%d", argIdx))
		args = append(args, *params.EndedAt)
		argIdx++
	}
	if params.BroadcastAt != nil {
		sets = append(sets, fmt.Sprintf("broadcast_at = $%d", argIdx))
		args = append(args, *params.BroadcastAt)
		argIdx++
	}
	if params.ClearTranslator {
		sets = append(sets, "translator_id = NULL")
	}
	return sets, args, argIdx
}

func (s *PostgresStore) UpdateJob(ctx context.Context, id uuid.UUID, opts ...JobUpdateOption) (*models.Job, error) {
	params := &jobUpdateParams{}
	for _, opt := range opts {
		opt(params)
	}

	sets := []string{"updated_at = NOW()"}
	args := []any{id}
	extra, extraArgs, _ := buildJobSet(params, 2)
	sets = append(sets, extra...)
	args = append(args, extraArgs...)

	query := fmt.Sprintf(`UPDATE jobs SET %s WHERE id = $1 RETURNING %s`,
		strings.Join(sets, ", "), jobCols)

	j, err := scanJob(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update job: %w", err)
	}
	return j, nil
}

// AcceptJob performs the accept as one conditional update. The WHERE clause is
// the whole race story: the row is claimed only if it is still open and
// unassigned, so concurrent accepts can never both match.
func (s *PostgresStore) AcceptJob(ctx context.Context, jobID, translatorID uuid.UUID) (*models.Job, error) {
	j, err := scanJob(s.pool.QueryRow(ctx,
		`UPDATE jobs SET translator_id = $2, status = $3, updated_at = NOW()
		 WHERE id = $1 AND status = $4 AND translator_id IS NULL
		 RETURNING `+jobCols,
		jobID, translatorID, models.JobStatusAssigned, models.JobStatusOpen))
	if err == nil {
		return j, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("accept job: %w", err)
	}

	// No row matched: distinguish a missing job, a closed job, and a lost
	// race. A cancelled or no-show job is held by nobody, so accepting it is
	// a status conflict, not a lost race.
	cur, err := s.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	switch cur.Status {
	case models.JobStatusCancelled, models.JobStatusCustomerNoShow:
		return cur, ErrStatusConflict
	}
	return nil, ErrJobTaken
}

func (s *PostgresStore) TransitionJob(ctx context.Context, id uuid.UUID, to string, from []string, opts ...JobUpdateOption) (*models.Job, error) {
	params := &jobUpdateParams{}
	for _, opt := range opts {
		opt(params)
	}

	sets := []string{"status = $2", "updated_at = NOW()"}
	args := []any{id, to, from}
	extra, extraArgs, _ := buildJobSet(params, 4)
	sets = append(sets, extra...)
	args = append(args, extraArgs...)

	query := fmt.Sprintf(`UPDATE jobs SET %s WHERE id = $1 AND status = ANY($3) RETURNING %s`,
		strings.Join(sets, ", "), jobCols)

	j, err := scanJob(s.pool.QueryRow(ctx, query, args...))
	if err == nil {
		return j, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("transition job to %s: %w", to, err)
	}

	current, err := s.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	return current, ErrStatusConflict
}

func (s *PostgresStore) ReopenJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	j, err := scanJob(s.pool.QueryRow(ctx,
		`UPDATE jobs SET status = $2, translator_id = NULL, distance_km = NULL,
		   travel_time_minutes = NULL, distance_calculated_at = NULL,
		   broadcast_at = NULL, started_at = NULL, ended_at = NULL, updated_at = NOW()
		 WHERE id = $1 AND status = ANY($3)
		 RETURNING `+jobCols,
		id, models.JobStatusOpen,
		[]string{models.JobStatusCancelled, models.JobStatusCustomerNoShow}))
	if err == nil {
		return j, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("reopen job: %w", err)
	}

	current, err := s.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	return current, ErrStatusConflict
}

func (s *PostgresStore) FindJobsByCustomer(ctx context.Context, customerID uuid.UUID) ([]*models.Job, error) {
	return s.queryJobs(ctx,
		`SELECT `+jobCols+` FROM jobs WHERE customer_id = $1 ORDER BY created_at DESC`, customerID)
}

func (s *PostgresStore) FindJobsByTranslator(ctx context.Context, translatorID uuid.UUID) ([]*models.Job, error) {
	return s.queryJobs(ctx,
		`SELECT `+jobCols+` FROM jobs WHERE translator_id = $1 ORDER BY created_at DESC`, translatorID)
}

func (s *PostgresStore) FindAll(ctx context.Context, filter JobFilter) ([]*models.Job, int, error) {
	conditions := []string{"TRUE"}
	var args []any
	argIdx := 1

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, filter.Status)
		argIdx++
	}
	if filter.ToLanguage != "" {
		conditions = append(conditions, fmt.Sprintf("to_language = $%d", argIdx))
		args = append(args, filter.ToLanguage)
		argIdx++
	}
	if filter.CustomerID != uuid.Nil {
		conditions = append(conditions, fmt.Sprintf("customer_id = $%d", argIdx))
		args = append(args, filter.CustomerID)
		argIdx++
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", argIdx))
		args = append(args, filter.Since)
		argIdx++
	}

	return s.pagedJobs(ctx, strings.Join(conditions, " AND "), args, argIdx, filter)
}

func (s *PostgresStore) FindHistory(ctx context.Context, userID uuid.UUID, role string, filter JobFilter) ([]*models.Job, int, error) {
	owner := "customer_id"
	if role == models.RoleTranslator {
		owner = "translator_id"
	}

	conditions := []string{fmt.Sprintf("%s = $1", owner), "status = ANY($2)"}
	args := []any{userID, models.TerminalStatuses}
	argIdx := 3

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, filter.Status)
		argIdx++
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", argIdx))
		args = append(args, filter.Since)
		argIdx++
	}

	return s.pagedJobs(ctx, strings.Join(conditions, " AND "), args, argIdx, filter)
}

// pagedJobs runs the count + data query pair shared by FindAll and FindHistory.
func (s *PostgresStore) pagedJobs(ctx context.Context, where string, args []any, argIdx int, filter JobFilter) ([]*models.Job, int, error) {
	var total int
	countQuery := "SELECT COUNT(*) FROM jobs WHERE " + where
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count jobs: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit

	dataQuery := fmt.Sprintf(
		`SELECT %s FROM jobs WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		jobCols, where, argIdx, argIdx+1)
	args = append(args, limit, offset)

	jobs, err := s.queryJobs(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, err
	}
	return jobs, total, nil
}

func (s *PostgresStore) FindDueScheduledJobs(ctx context.Context, due time.Time, limit int) ([]*models.Job, error) {
	return s.queryJobs(ctx,
		`SELECT `+jobCols+` FROM jobs
		 WHERE status = $1 AND immediate = FALSE AND broadcast_at IS NULL
		   AND scheduled_at IS NOT NULL AND scheduled_at <= $2
		 ORDER BY scheduled_at LIMIT $3`,
		models.JobStatusOpen, due, limit)
}

func (s *PostgresStore) FindBusyTranslators(ctx context.Context, start, end time.Time) (map[uuid.UUID]bool, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT translator_id FROM jobs
		 WHERE translator_id IS NOT NULL AND status = ANY($1)
		   AND COALESCE(scheduled_at, created_at) < $3
		   AND COALESCE(scheduled_at, created_at) + make_interval(mins => duration_minutes) > $2`,
		[]string{models.JobStatusAssigned, models.JobStatusInProgress}, start, end)
	if err != nil {
		return nil, fmt.Errorf("find busy translators: %w", err)
	}
	defer rows.Close()

	busy := make(map[uuid.UUID]bool)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan translator id: %w", err)
		}
		busy[id] = true
	}
	return busy, rows.Err()
}

func (s *PostgresStore) FindCommittedWindows(ctx context.Context, translatorID uuid.UUID) ([]TimeWindow, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT COALESCE(scheduled_at, created_at),
		        COALESCE(scheduled_at, created_at) + make_interval(mins => duration_minutes)
		 FROM jobs
		 WHERE translator_id = $1 AND status = ANY($2)`,
		translatorID, []string{models.JobStatusAssigned, models.JobStatusInProgress})
	if err != nil {
		return nil, fmt.Errorf("find committed windows: %w", err)
	}
	defer rows.Close()

	var windows []TimeWindow
	for rows.Next() {
		var w TimeWindow
		if err := rows.Scan(&w.Start, &w.End); err != nil {
			return nil, fmt.Errorf("scan window: %w", err)
		}
		windows = append(windows, w)
	}
	return windows, rows.Err()
}

func (s *PostgresStore) RecordDistance(ctx context.Context, jobID uuid.UUID, distanceKM float64, travelTimeMinutes int) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET distance_km = $2, travel_time_minutes = $3,
		   distance_calculated_at = NOW(), updated_at = NOW()
		 WHERE id = $1`, jobID, distanceKM, travelTimeMinutes)
	if err != nil {
		return false, fmt.Errorf("record distance: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// --- Notification attempts ---

func (s *PostgresStore) CreateNotificationAttempt(ctx context.Context, attempt *models.NotificationAttempt) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO notification_attempts (id, job_id, translator_id, channel, outcome, detail, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		attempt.ID, attempt.JobID, attempt.TranslatorID, attempt.Channel,
		attempt.Outcome, attempt.Detail, attempt.CreatedAt)
	if err != nil {
		return fmt.Errorf("create notification attempt: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListNotificationAttempts(ctx context.Context, jobID uuid.UUID) ([]*models.NotificationAttempt, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, job_id, translator_id, channel, outcome, detail, created_at
		 FROM notification_attempts WHERE job_id = $1 ORDER BY created_at`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list notification attempts: %w", err)
	}
	defer rows.Close()

	var attempts []*models.NotificationAttempt
	for rows.Next() {
		var a models.NotificationAttempt
		if err := rows.Scan(&a.ID, &a.JobID, &a.TranslatorID, &a.Channel,
			&a.Outcome, &a.Detail, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification attempt: %w", err)
		}
		attempts = append(attempts, &a)
	}
	return attempts, rows.Err()
}

func (s *PostgresStore) queryJobs(ctx context.Context, query string, args ...any) ([]*models.Job, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}
