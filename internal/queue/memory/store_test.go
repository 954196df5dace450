package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bookline/notifier/internal/domain"
	"github.com/bookline/notifier/internal/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJob(id string, dueAt time.Time) *queue.Job {
	return &queue.Job{
		ID:          id,
		Kind:        queue.KindReminder,
		BookingID:   "booking_123",
		Channel:     domain.ChannelTypeEmail,
		Recipient:   "user@example.com",
		Payload:     []byte(`{}`),
		MaxAttempts: 3,
		DueAt:       dueAt,
	}
}

func TestEnqueue_Idempotent(t *testing.T) {
	store := NewStore()
	now := time.Now()

	inserted, err := store.Enqueue(context.Background(), newJob("job-1", now))
	require.NoError(t, err)
	assert.True(t, inserted)

	// Same id with a different due time is absorbed, original untouched.
	dup := newJob("job-1", now.Add(time.Hour))
	inserted, err = store.Enqueue(context.Background(), dup)
	require.NoError(t, err)
	assert.False(t, inserted)

	jobs, err := store.ActiveJobs(context.Background())
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, now, jobs[0].DueAt)
}

func TestDequeueReady_OnlyDueJobs(t *testing.T) {
	store := NewStore()
	now := time.Now()

	_, err := store.Enqueue(context.Background(), newJob("due-1", now.Add(-time.Minute)))
	require.NoError(t, err)
	_, err = store.Enqueue(context.Background(), newJob("future-1", now.Add(time.Hour)))
	require.NoError(t, err)

	claimed, err := store.DequeueReady(context.Background(), now, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, "due-1", claimed[0].ID)
	assert.Equal(t, queue.StatusProcessing, claimed[0].Status)
	assert.Equal(t, 1, claimed[0].Attempts)
}

func TestDequeueReady_DueOrderAndLimit(t *testing.T) {
	store := NewStore()
	now := time.Now()

	_, err := store.Enqueue(context.Background(), newJob("late", now.Add(-time.Minute)))
	require.NoError(t, err)
	_, err = store.Enqueue(context.Background(), newJob("earliest", now.Add(-time.Hour)))
	require.NoError(t, err)
	_, err = store.Enqueue(context.Background(), newJob("middle", now.Add(-30*time.Minute)))
	require.NoError(t, err)

	claimed, err := store.DequeueReady(context.Background(), now, 2)
	require.NoError(t, err)
	require.Len(t, claimed, 2)
	assert.Equal(t, "earliest", claimed[0].ID)
	assert.Equal(t, "middle", claimed[1].ID)
}

func TestDequeueReady_SingleClaim(t *testing.T) {
	store := NewStore()
	now := time.Now()

	for _, id := range []string{"a", "b", "c", "d"} {
		_, err := store.Enqueue(context.Background(), newJob(id, now.Add(-time.Minute)))
		require.NoError(t, err)
	}

	var mu sync.Mutex
	seen := make(map[string]int)
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claimed, err := store.DequeueReady(context.Background(), now, 2)
			require.NoError(t, err)

			mu.Lock()
			defer mu.Unlock()
			for _, job := range claimed {
				seen[job.ID]++
			}
		}()
	}
	wg.Wait()

	// Every job claimed exactly once across all consumers.
	assert.Len(t, seen, 4)
	for id, count := range seen {
		assert.Equal(t, 1, count, "job %s claimed %d times", id, count)
	}
}

func TestCancelByPrefix(t *testing.T) {
	store := NewStore()
	now := time.Now().Add(time.Hour)

	for _, id := range []string{"booking_123-reminder-1", "booking_123-reminder-2", "booking_456-reminder-1"} {
		_, err := store.Enqueue(context.Background(), newJob(id, now))
		require.NoError(t, err)
	}

	removed, err := store.CancelByPrefix(context.Background(), "booking_123-reminder-")
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	jobs, err := store.ActiveJobs(context.Background())
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "booking_456-reminder-1", jobs[0].ID)
}

func TestCancelByPrefix_SkipsClaimedJobs(t *testing.T) {
	store := NewStore()
	now := time.Now()

	_, err := store.Enqueue(context.Background(), newJob("booking_123-reminder-1", now.Add(-time.Minute)))
	require.NoError(t, err)

	claimed, err := store.DequeueReady(context.Background(), now, 1)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	removed, err := store.CancelByPrefix(context.Background(), "booking_123-")
	require.NoError(t, err)
	assert.Equal(t, int64(0), removed)
}

func TestReschedule_PreservesIdentityAndAttempts(t *testing.T) {
	store := NewStore()
	now := time.Now()

	_, err := store.Enqueue(context.Background(), newJob("job-1", now.Add(-time.Minute)))
	require.NoError(t, err)

	claimed, err := store.DequeueReady(context.Background(), now, 1)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	nextDue := now.Add(time.Minute)
	require.NoError(t, store.Reschedule(context.Background(), "job-1", nextDue, assert.AnError))

	// Not due yet.
	claimed, err = store.DequeueReady(context.Background(), now, 1)
	require.NoError(t, err)
	assert.Empty(t, claimed)

	// Due again later, attempt count carried forward.
	claimed, err = store.DequeueReady(context.Background(), nextDue, 1)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, "job-1", claimed[0].ID)
	assert.Equal(t, 2, claimed[0].Attempts)
	assert.Equal(t, assert.AnError.Error(), claimed[0].LastError)
}

func TestMarkSentAndMarkDead(t *testing.T) {
	store := NewStore()
	now := time.Now()

	_, err := store.Enqueue(context.Background(), newJob("sent-1", now.Add(-time.Minute)))
	require.NoError(t, err)
	_, err = store.Enqueue(context.Background(), newJob("dead-1", now.Add(-time.Minute)))
	require.NoError(t, err)

	_, err = store.DequeueReady(context.Background(), now, 10)
	require.NoError(t, err)

	require.NoError(t, store.MarkSent(context.Background(), "sent-1"))
	require.NoError(t, store.MarkDead(context.Background(), "dead-1", assert.AnError))

	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Sent)
	assert.Equal(t, int64(1), stats.Dead)
	assert.Equal(t, int64(0), stats.Pending)
	assert.Equal(t, int64(0), stats.Processing)

	// Terminal jobs are invisible to future dequeues.
	claimed, err := store.DequeueReady(context.Background(), now.Add(time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, claimed)
}

func TestMarkJob_NotFound(t *testing.T) {
	store := NewStore()

	assert.ErrorIs(t, store.MarkSent(context.Background(), "missing"), queue.ErrJobNotFound)
	assert.ErrorIs(t, store.MarkDead(context.Background(), "missing", nil), queue.ErrJobNotFound)
	assert.ErrorIs(t, store.Reschedule(context.Background(), "missing", time.Now(), nil), queue.ErrJobNotFound)
}

func TestReleaseStale(t *testing.T) {
	store := NewStore()
	now := time.Now()

	_, err := store.Enqueue(context.Background(), newJob("job-1", now.Add(-time.Minute)))
	require.NoError(t, err)

	claimed, err := store.DequeueReady(context.Background(), now.Add(-10*time.Minute), 1)
	require.NoError(t, err)
	require.Empty(t, claimed)

	claimed, err = store.DequeueReady(context.Background(), now, 1)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	// The claim is fresh, so nothing is released with a long cutoff.
	released, err := store.ReleaseStale(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(0), released)

	// With a zero cutoff the claim counts as stale immediately.
	released, err = store.ReleaseStale(context.Background(), -time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(1), released)

	claimed, err = store.DequeueReady(context.Background(), now, 1)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, 2, claimed[0].Attempts)
}
