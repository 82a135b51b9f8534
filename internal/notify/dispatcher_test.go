package notify_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/interpretly/booking/internal/notify"
	"github.com/interpretly/booking/internal/store"
	"github.com/interpretly/booking/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// attemptStore records notification attempts in memory.
type attemptStore struct {
	store.Store
	mu       sync.Mutex
	attempts []*models.NotificationAttempt
	listErr  error
}

func (s *attemptStore) CreateNotificationAttempt(_ context.Context, a *models.NotificationAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts = append(s.attempts, a)
	return nil
}

func (s *attemptStore) ListNotificationAttempts(_ context.Context, jobID uuid.UUID) ([]*models.NotificationAttempt, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.NotificationAttempt
	for _, a := range s.attempts {
		if a.JobID == jobID {
			out = append(out, a)
		}
	}
	return out, nil
}

type sentKey struct {
	userID  uuid.UUID
	channel string
}

// recordingSink counts sends and fails selected recipients.
type recordingSink struct {
	mu       sync.Mutex
	sent     []sentKey
	cancels  []uuid.UUID
	failFor  map[uuid.UUID]error
	blockFor map[uuid.UUID]bool // sleep past the send timeout
}

func (s *recordingSink) Send(ctx context.Context, user *models.User, channel string, _ notify.Message) error {
	if s.blockFor[user.ID] {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
		}
	}
	if err := s.failFor[user.ID]; err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentKey{user.ID, channel})
	return nil
}

func (s *recordingSink) Cancel(_ context.Context, _ uuid.UUID, translatorID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancels = append(s.cancels, translatorID)
	return nil
}

func candidates(n int) []*models.User {
	out := make([]*models.User, n)
	for i := range out {
		out[i] = &models.User{ID: uuid.New(), Role: models.RoleTranslator}
	}
	return out
}

func offerJob() *models.Job {
	return &models.Job{ID: uuid.New(), ToLanguage: "fr", Immediate: true, Duration: 60}
}

func TestBroadcast_AllChannelsAllCandidates(t *testing.T) {
	st := &attemptStore{}
	sink := &recordingSink{}
	d := notify.NewDispatcher(st, sink, time.Second)

	cands := candidates(3)
	report := d.Broadcast(context.Background(), offerJob(), cands, notify.SelectorAll)

	// 3 candidates x 2 channels
	assert.Equal(t, 6, report.Sent)
	assert.Equal(t, 0, report.Failed)
	assert.Equal(t, notify.ChannelCount{Sent: 3}, report.Channel[models.ChannelPush])
	assert.Equal(t, notify.ChannelCount{Sent: 3}, report.Channel[models.ChannelSMS])
	assert.Len(t, st.attempts, 6)
}

func TestBroadcast_FailureIsolatedPerRecipient(t *testing.T) {
	st := &attemptStore{}
	bad := candidates(1)[0]
	sink := &recordingSink{failFor: map[uuid.UUID]error{bad.ID: errors.New("device unreachable")}}
	d := notify.NewDispatcher(st, sink, time.Second)

	cands := append(candidates(2), bad)
	job := offerJob()
	report := d.Broadcast(context.Background(), job, cands, models.ChannelPush)

	assert.Equal(t, 2, report.Sent)
	assert.Equal(t, 1, report.Failed)

	// every attempt is on record, the failure with its detail
	require.Len(t, st.attempts, 3)
	var failed *models.NotificationAttempt
	for _, a := range st.attempts {
		assert.Equal(t, job.ID, a.JobID)
		if a.Outcome == models.AttemptOutcomeFailed {
			failed = a
		}
	}
	require.NotNil(t, failed)
	assert.Equal(t, bad.ID, failed.TranslatorID)
	require.NotNil(t, failed.Detail)
	assert.Contains(t, *failed.Detail, "device unreachable")
}

func TestBroadcast_FailuresCountedPerChannel(t *testing.T) {
	st := &attemptStore{}
	bad := candidates(1)[0]
	ok := candidates(1)[0]
	sink := &recordingSink{failFor: map[uuid.UUID]error{bad.ID: errors.New("device unreachable")}}
	d := notify.NewDispatcher(st, sink, time.Second)

	report := d.Broadcast(context.Background(), offerJob(), []*models.User{bad, ok}, notify.SelectorAll)

	// the failing recipient misses on both channels, and each channel's
	// counts say so on their own
	assert.Equal(t, 2, report.Sent)
	assert.Equal(t, 2, report.Failed)
	assert.Equal(t, notify.ChannelCount{Sent: 1, Failed: 1}, report.Channel[models.ChannelPush])
	assert.Equal(t, notify.ChannelCount{Sent: 1, Failed: 1}, report.Channel[models.ChannelSMS])
}

func TestBroadcast_NoAddressSkipped(t *testing.T) {
	st := &attemptStore{}
	unreachable := candidates(1)[0]
	sink := &recordingSink{failFor: map[uuid.UUID]error{
		unreachable.ID: fmt.Errorf("%w: no sms address for recipient", notify.ErrNoAddress),
	}}
	d := notify.NewDispatcher(st, sink, time.Second)

	report := d.Broadcast(context.Background(), offerJob(), []*models.User{unreachable}, models.ChannelSMS)

	assert.Zero(t, report.Sent)
	assert.Zero(t, report.Failed)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, notify.ChannelCount{Skipped: 1}, report.Channel[models.ChannelSMS])

	require.Len(t, st.attempts, 1)
	assert.Equal(t, models.AttemptOutcomeSkipped, st.attempts[0].Outcome)
	require.NotNil(t, st.attempts[0].Detail)
	assert.Contains(t, *st.attempts[0].Detail, "no sms address")
}

func TestBroadcast_SingleChannelSelector(t *testing.T) {
	st := &attemptStore{}
	sink := &recordingSink{}
	d := notify.NewDispatcher(st, sink, time.Second)

	report := d.Broadcast(context.Background(), offerJob(), candidates(2), models.ChannelSMS)

	assert.Equal(t, 2, report.Sent)
	assert.Equal(t, notify.ChannelCount{Sent: 2}, report.Channel[models.ChannelSMS])
	assert.Zero(t, report.Channel[models.ChannelPush])
	for _, k := range sink.sent {
		assert.Equal(t, models.ChannelSMS, k.channel)
	}
}

func TestBroadcast_SlowSendRecordedAsFailed(t *testing.T) {
	st := &attemptStore{}
	slow := candidates(1)[0]
	sink := &recordingSink{blockFor: map[uuid.UUID]bool{slow.ID: true}}
	d := notify.NewDispatcher(st, sink, 50*time.Millisecond)

	report := d.Broadcast(context.Background(), offerJob(), []*models.User{slow}, models.ChannelPush)

	assert.Equal(t, 0, report.Sent)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, st.attempts, 1)
	assert.Equal(t, models.AttemptOutcomeFailed, st.attempts[0].Outcome)
}

func TestBroadcast_NoCandidates(t *testing.T) {
	st := &attemptStore{}
	d := notify.NewDispatcher(st, &recordingSink{}, time.Second)

	report := d.Broadcast(context.Background(), offerJob(), nil, notify.SelectorAll)
	assert.Zero(t, report.Sent)
	assert.Zero(t, report.Failed)
	assert.Empty(t, st.attempts)
}

func TestCancelPending_SkipsWinnerAndDeduplicates(t *testing.T) {
	st := &attemptStore{}
	sink := &recordingSink{}
	d := notify.NewDispatcher(st, sink, time.Second)

	jobID := uuid.New()
	winner := uuid.New()
	loser := uuid.New()
	failure := uuid.New()
	detail := "unreachable"
	st.attempts = []*models.NotificationAttempt{
		{JobID: jobID, TranslatorID: winner, Channel: models.ChannelPush, Outcome: models.AttemptOutcomeSent},
		{JobID: jobID, TranslatorID: loser, Channel: models.ChannelPush, Outcome: models.AttemptOutcomeSent},
		{JobID: jobID, TranslatorID: loser, Channel: models.ChannelSMS, Outcome: models.AttemptOutcomeSent},
		{JobID: jobID, TranslatorID: failure, Channel: models.ChannelPush, Outcome: models.AttemptOutcomeFailed, Detail: &detail},
	}

	d.CancelPending(context.Background(), jobID, winner)

	// one cancel for the loser despite two sent attempts; nothing for the
	// winner or for deliveries that never landed
	assert.Equal(t, []uuid.UUID{loser}, sink.cancels)
}

func TestCancelPending_ListFailureIsSilent(t *testing.T) {
	st := &attemptStore{listErr: errors.New("db down")}
	sink := &recordingSink{}
	d := notify.NewDispatcher(st, sink, time.Second)

	d.CancelPending(context.Background(), uuid.New(), uuid.New())
	assert.Empty(t, sink.cancels)
}
