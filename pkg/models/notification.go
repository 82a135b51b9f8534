package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	ChannelPush  = "push"
	ChannelSMS   = "sms"
	ChannelEmail = "email"
)

const (
	AttemptOutcomeSent    = "sent"
	AttemptOutcomeFailed  = "failed"
	AttemptOutcomeSkipped = "skipped"
)

// NotificationAttempt is one delivery attempt for one (job, translator, channel)
// within a broadcast round. Attempts are append-only: the dispatcher records one
// regardless of outcome and nothing ever mutates them afterwards.
type NotificationAttempt struct {
	ID           uuid.UUID `db:"id"            json:"id"`
	JobID        uuid.UUID `db:"job_id"        json:"job_id"`
	TranslatorID uuid.UUID `db:"translator_id" json:"translator_id"`
	Channel      string    `db:"channel"       json:"channel"`
	Outcome      string    `db:"outcome"       json:"outcome"`
	Detail       *string   `db:"detail"        json:"detail,omitempty"`
	CreatedAt    time.Time `db:"created_at"    json:"created_at"`
}
