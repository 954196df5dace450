package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bookline/notifier/internal/channel"
	"github.com/bookline/notifier/internal/domain"
	"github.com/bookline/notifier/internal/notify"
	"github.com/bookline/notifier/internal/queue"
	"github.com/bookline/notifier/internal/queue/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSender scripts send outcomes per call.
type fakeSender struct {
	mu          sync.Mutex
	channelType domain.ChannelType
	errs        []error
	calls       int
}

func newFakeSender(channelType domain.ChannelType, errs ...error) *fakeSender {
	return &fakeSender{channelType: channelType, errs: errs}
}

func (f *fakeSender) Type() domain.ChannelType { return f.channelType }

func (f *fakeSender) Send(_ context.Context, _ domain.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var err error
	if f.calls < len(f.errs) {
		err = f.errs[f.calls]
	}
	f.calls++
	return err
}

func (f *fakeSender) HealthCheck() domain.HealthStatus {
	return domain.HealthStatus{Healthy: true}
}

func (f *fakeSender) sendCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testWorker(t *testing.T, store queue.Store, sender channel.Sender) *Worker {
	t.Helper()

	renderer, err := notify.NewRenderer()
	require.NoError(t, err)

	config := DefaultWorkerConfig()
	config.BaseDelay = time.Millisecond
	config.MaxBackoff = 10 * time.Millisecond

	return NewWorker(config, store, NewDispatcher(sender), renderer, NewRateGate(time.Microsecond))
}

func reminderJob(t *testing.T, id string, channelType domain.ChannelType, maxAttempts int) *queue.Job {
	t.Helper()

	payload, err := json.Marshal(notify.NewReminderPayload(notify.ReminderData{
		BookingID:      "booking_123",
		CustomerName:   "Alice",
		ServiceName:    "Haircut",
		ScheduledTime:  time.Now().Add(4 * time.Hour),
		ReminderNumber: 1,
	}))
	require.NoError(t, err)

	return &queue.Job{
		ID:          id,
		Kind:        queue.KindReminder,
		BookingID:   "booking_123",
		Channel:     channelType,
		Recipient:   "user@example.com",
		Payload:     payload,
		MaxAttempts: maxAttempts,
		DueAt:       time.Now().Add(-time.Second),
	}
}

func jobStatus(t *testing.T, store queue.Store, id string) queue.Status {
	t.Helper()

	stats, err := store.Stats(context.Background())
	require.NoError(t, err)

	switch {
	case stats.Sent == 1:
		return queue.StatusSent
	case stats.Dead == 1:
		return queue.StatusDead
	case stats.Pending == 1:
		return queue.StatusPending
	case stats.Processing == 1:
		return queue.StatusProcessing
	}
	t.Fatalf("job %s not found in stats", id)
	return ""
}

func TestWorker_ProcessBatch_Success(t *testing.T) {
	store := memory.NewStore()
	sender := newFakeSender(domain.ChannelTypeEmail)
	worker := testWorker(t, store, sender)

	var results []domain.DeliveryResult
	worker.OnDelivery(func(r domain.DeliveryResult) { results = append(results, r) })

	_, err := store.Enqueue(context.Background(), reminderJob(t, "booking_123-reminder-1", domain.ChannelTypeEmail, 3))
	require.NoError(t, err)

	worker.processBatch(context.Background(), 0)

	assert.Equal(t, 1, sender.sendCalls())
	assert.Equal(t, queue.StatusSent, jobStatus(t, store, "booking_123-reminder-1"))

	require.Len(t, results, 1)
	assert.True(t, results[0].Success)
	assert.Equal(t, "booking_123-reminder-1", results[0].JobID)
	assert.Equal(t, 1, results[0].Attempt)
}

func TestWorker_ProcessBatch_RetryThenSuccess(t *testing.T) {
	store := memory.NewStore()
	sender := newFakeSender(domain.ChannelTypeEmail,
		&channel.RetryableError{Channel: "email", Message: "temporary"},
	)
	worker := testWorker(t, store, sender)

	_, err := store.Enqueue(context.Background(), reminderJob(t, "booking_123-reminder-1", domain.ChannelTypeEmail, 3))
	require.NoError(t, err)

	worker.processBatch(context.Background(), 0)
	assert.Equal(t, queue.StatusPending, jobStatus(t, store, "booking_123-reminder-1"))

	// Wait out the rescheduled due time.
	time.Sleep(20 * time.Millisecond)

	worker.processBatch(context.Background(), 0)
	assert.Equal(t, 2, sender.sendCalls())
	assert.Equal(t, queue.StatusSent, jobStatus(t, store, "booking_123-reminder-1"))
}

func TestWorker_ProcessBatch_ValidationErrorNoRetry(t *testing.T) {
	store := memory.NewStore()
	sender := newFakeSender(domain.ChannelTypeWhatsApp,
		&channel.ValidationError{Field: "recipient", Message: "not E.164"},
	)
	worker := testWorker(t, store, sender)

	_, err := store.Enqueue(context.Background(), reminderJob(t, "booking_123-reminder-1", domain.ChannelTypeWhatsApp, 3))
	require.NoError(t, err)

	worker.processBatch(context.Background(), 0)

	assert.Equal(t, 1, sender.sendCalls())
	assert.Equal(t, queue.StatusDead, jobStatus(t, store, "booking_123-reminder-1"))
}

func TestWorker_ProcessBatch_ExhaustsAttempts(t *testing.T) {
	store := memory.NewStore()
	sender := newFakeSender(domain.ChannelTypeEmail,
		&channel.RetryableError{Channel: "email", Message: "temporary"},
		&channel.RetryableError{Channel: "email", Message: "temporary"},
	)
	worker := testWorker(t, store, sender)

	_, err := store.Enqueue(context.Background(), reminderJob(t, "booking_123-reminder-1", domain.ChannelTypeEmail, 2))
	require.NoError(t, err)

	worker.processBatch(context.Background(), 0)
	assert.Equal(t, queue.StatusPending, jobStatus(t, store, "booking_123-reminder-1"))

	time.Sleep(20 * time.Millisecond)

	worker.processBatch(context.Background(), 0)
	assert.Equal(t, 2, sender.sendCalls())
	assert.Equal(t, queue.StatusDead, jobStatus(t, store, "booking_123-reminder-1"))
}

func TestWorker_ProcessBatch_MalformedPayload(t *testing.T) {
	store := memory.NewStore()
	sender := newFakeSender(domain.ChannelTypeEmail)
	worker := testWorker(t, store, sender)

	job := reminderJob(t, "booking_123-reminder-1", domain.ChannelTypeEmail, 3)
	job.Payload = json.RawMessage(`{not json`)
	_, err := store.Enqueue(context.Background(), job)
	require.NoError(t, err)

	worker.processBatch(context.Background(), 0)

	assert.Equal(t, 0, sender.sendCalls())
	assert.Equal(t, queue.StatusDead, jobStatus(t, store, "booking_123-reminder-1"))
}

func TestWorker_Backoff(t *testing.T) {
	config := DefaultWorkerConfig()
	config.BaseDelay = time.Second
	config.MaxBackoff = 5 * time.Minute
	worker := &Worker{config: config}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{10, 5 * time.Minute},
		{30, 5 * time.Minute},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, worker.backoff(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, isRetryable(&channel.ValidationError{Message: "bad"}))
	assert.False(t, isRetryable(&channel.ConfigurationError{Channel: "email", Message: "disabled"}))
	assert.False(t, isRetryable(&channel.PermanentError{Channel: "sms", Code: 400, Message: "rejected"}))
	assert.True(t, isRetryable(&channel.RetryableError{Channel: "sms", Code: 500, Message: "oops"}))
	assert.True(t, isRetryable(errors.New("unclassified")))
}
