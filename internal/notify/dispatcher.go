package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/interpretly/booking/internal/store"
	"github.com/interpretly/booking/pkg/models"
)

// SelectorAll broadcasts on every offer channel.
const SelectorAll = "*"

var offerChannels = []string{models.ChannelPush, models.ChannelSMS}

// ChannelCount breaks one channel's outcomes out of the round totals.
type ChannelCount struct {
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// Report aggregates one broadcast round. Failed recipients never abort the
// round; they only show up in the counts, totalled and per channel.
type Report struct {
	Sent    int                     `json:"sent"`
	Failed  int                     `json:"failed"`
	Skipped int                     `json:"skipped"`
	Channel map[string]ChannelCount `json:"per_channel"`
}

// Dispatcher delivers offers via the sink and persists an attempt per
// (candidate, channel). Per-recipient failures are isolated; each send is
// bounded by sendTimeout and recorded as failed on expiry.
type Dispatcher struct {
	store       store.Store
	sink        Sink
	sendTimeout time.Duration
}

func NewDispatcher(s store.Store, sink Sink, sendTimeout time.Duration) *Dispatcher {
	if sendTimeout <= 0 {
		sendTimeout = 5 * time.Second
	}
	return &Dispatcher{store: s, sink: sink, sendTimeout: sendTimeout}
}

// Broadcast sends the job offer to every candidate on the selected channels.
// selector is SelectorAll for both channels or a single channel tag. The job's
// authoritative state change is assumed to be committed already; nothing here
// can roll it back.
func (d *Dispatcher) Broadcast(ctx context.Context, job *models.Job, candidates []*models.User, selector string) *Report {
	channels := offerChannels
	if selector != SelectorAll {
		channels = []string{selector}
	}

	msg := Message{
		JobID:    job.ID,
		Language: job.ToLanguage,
		Body:     offerBody(job),
	}

	report := &Report{Channel: make(map[string]ChannelCount)}
	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, ch := range channels {
		for _, candidate := range candidates {
			wg.Add(1)
			go func(ch string, rec *models.User) {
				defer wg.Done()

				sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
				defer cancel()

				err := d.sink.Send(sendCtx, rec, ch, msg)

				attempt := &models.NotificationAttempt{
					ID:           uuid.New(),
					JobID:        job.ID,
					TranslatorID: rec.ID,
					Channel:      ch,
					Outcome:      models.AttemptOutcomeSent,
					CreatedAt:    time.Now().UTC(),
				}
				switch {
				case errors.Is(err, ErrNoAddress):
					detail := err.Error()
					attempt.Outcome = models.AttemptOutcomeSkipped
					attempt.Detail = &detail
				case err != nil:
					detail := err.Error()
					attempt.Outcome = models.AttemptOutcomeFailed
					attempt.Detail = &detail
					slog.Warn("offer delivery failed",
						"job_id", job.ID, "translator_id", rec.ID, "channel", ch, "error", err)
				}
				if storeErr := d.store.CreateNotificationAttempt(ctx, attempt); storeErr != nil {
					slog.Error("record notification attempt", "job_id", job.ID, "error", storeErr)
				}

				mu.Lock()
				cc := report.Channel[ch]
				switch attempt.Outcome {
				case models.AttemptOutcomeSkipped:
					report.Skipped++
					cc.Skipped++
				case models.AttemptOutcomeFailed:
					report.Failed++
					cc.Failed++
				default:
					report.Sent++
					cc.Sent++
				}
				report.Channel[ch] = cc
				mu.Unlock()
			}(ch, candidate)
		}
	}

	wg.Wait()
	return report
}

// CancelPending voids outstanding offers for everyone but the winner, where
// the transport allows it. Stale deliveries to losers are acceptable; refusal
// to cancel is not an error.
func (d *Dispatcher) CancelPending(ctx context.Context, jobID, winnerID uuid.UUID) {
	attempts, err := d.store.ListNotificationAttempts(ctx, jobID)
	if err != nil {
		slog.Warn("list attempts for cancellation", "job_id", jobID, "error", err)
		return
	}

	seen := make(map[uuid.UUID]bool)
	for _, a := range attempts {
		if a.TranslatorID == winnerID || a.Outcome != models.AttemptOutcomeSent || seen[a.TranslatorID] {
			continue
		}
		seen[a.TranslatorID] = true
		if err := d.sink.Cancel(ctx, jobID, a.TranslatorID); err != nil {
			slog.Debug("offer cancellation not honored",
				"job_id", jobID, "translator_id", a.TranslatorID, "error", err)
		}
	}
}

func offerBody(job *models.Job) string {
	when := "now"
	if job.ScheduledAt != nil {
		when = job.ScheduledAt.Format("2006-01-02 15:04")
	}
	return fmt.Sprintf("New %s job (%d min) starting %s", job.ToLanguage, job.Duration, when)
}
