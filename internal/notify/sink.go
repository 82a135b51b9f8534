// Package notify fans job offers out to candidate translators over push and
// SMS, recording one attempt per (translator, channel) regardless of outcome.
package notify

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/interpretly/booking/pkg/models"
)

// ErrNoAddress reports that the recipient has no address for the channel.
// Sinks return it so the dispatcher records a skipped attempt instead of a
// delivery failure.
var ErrNoAddress = errors.New("recipient has no address for channel")

// Message is the channel-agnostic payload handed to the sink.
type Message struct {
	JobID    uuid.UUID `json:"job_id"`
	Language string    `json:"language"`
	Body     string    `json:"body"`
}

// Sink is the external delivery transport for one or more channels. The core
// treats all channels uniformly via the channel tag.
type Sink interface {
	Send(ctx context.Context, recipient *models.User, channel string, msg Message) error

	// Cancel voids a pending delivery where the transport supports it. Best
	// effort: transports that cannot cancel reply with an error the caller is
	// expected to ignore.
	Cancel(ctx context.Context, jobID, translatorID uuid.UUID) error
}
