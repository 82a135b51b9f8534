package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	JobStatusOpen           = "open"
	JobStatusAssigned       = "assigned"
	JobStatusInProgress     = "in_progress"
	JobStatusCompleted      = "completed"
	JobStatusCancelled      = "cancelled"
	JobStatusCustomerNoShow = "customer_no_show"
)

// TerminalStatuses are the statuses a job cannot leave except via an explicit reopen.
var TerminalStatuses = []string{JobStatusCompleted, JobStatusCancelled, JobStatusCustomerNoShow}

// Job is a single translation engagement booked by a customer. The translator
// reference is set only by a successful accept and is held by at most one
// translator at any time.
type Job struct {
	ID           uuid.UUID  `db:"id"            json:"id"`
	CustomerID   uuid.UUID  `db:"customer_id"   json:"customer_id"`
	TranslatorID *uuid.UUID `db:"translator_id" json:"translator_id,omitempty"`
	FromLanguage string     `db:"from_language" json:"from_language"`
	ToLanguage   string     `db:"to_language"   json:"to_language"`
	Immediate    bool       `db:"immediate"     json:"immediate"`
	Status       string     `db:"status"        json:"status"`
	ScheduledAt  *time.Time `db:"scheduled_at"  json:"scheduled_at,omitempty"`
	Duration     int        `db:"duration_minutes" json:"duration_minutes"`

	// Distance metadata is fed by an external computation and overwritten on
	// every feed, never appended.
	DistanceKM           *float64   `db:"distance_km"            json:"distance_km,omitempty"`
	TravelTimeMinutes    *int       `db:"travel_time_minutes"    json:"travel_time_minutes,omitempty"`
	DistanceCalculatedAt *time.Time `db:"distance_calculated_at" json:"distance_calculated_at,omitempty"`

	// BroadcastAt records the most recent dispatch round; nil means no round
	// has run yet. The scheduler uses it to pick up due scheduled jobs.
	BroadcastAt *time.Time `db:"broadcast_at" json:"broadcast_at,omitempty"`

	StartedAt *time.Time `db:"started_at" json:"started_at,omitempty"`
	EndedAt   *time.Time `db:"ended_at"   json:"ended_at,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// IsTerminal reports whether the job is in a terminal status.
func (j *Job) IsTerminal() bool {
	for _, s := range TerminalStatuses {
		if j.Status == s {
			return true
		}
	}
	return false
}

// Window returns the time span the job occupies. Immediate jobs without a
// scheduled start occupy a window beginning at creation.
func (j *Job) Window() (time.Time, time.Time) {
	start := j.CreatedAt
	if j.ScheduledAt != nil {
		start = *j.ScheduledAt
	}
	dur := j.Duration
	if dur <= 0 {
		dur = 60
	}
	return start, start.Add(time.Duration(dur) * time.Minute)
}
