// Package queue provides the durable delayed job queue the dispatch
// worker consumes from.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/bookline/notifier/internal/domain"
)

// Status represents the delivery state of a queued job.
type Status string

// Job statuses. A failed attempt returns the job to pending with a
// later due time; sent and dead are terminal.
const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusSent       Status = "sent"
	StatusDead       Status = "dead"
)

// Kind distinguishes reminder jobs from alert jobs.
type Kind string

// Job kinds.
const (
	KindReminder Kind = "reminder"
	KindAlert    Kind = "alert"
)

// Store errors.
var (
	ErrJobNotFound = errors.New("job not found")
)

// Job is a unit of future work keyed by a deterministic id.
// The id doubles as the idempotency key: enqueuing the same id twice
// leaves a single entry.
type Job struct {
	ID          string
	Kind        Kind
	BookingID   string
	Channel     domain.ChannelType
	Recipient   string
	Payload     json.RawMessage
	Status      Status
	Attempts    int
	MaxAttempts int
	DueAt       time.Time
	LastError   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	SentAt      *time.Time
}

// Stats summarizes queue depth by status.
type Stats struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Sent       int64 `json:"sent"`
	Dead       int64 `json:"dead"`
}

// Store is the delayed job queue contract. Every mutation of the
// pending/ready set is atomic with respect to concurrent enqueue,
// cancel and dequeue calls; DequeueReady is the single claim point.
type Store interface {
	// Enqueue inserts the job unless an entry with the same id already
	// exists. Returns false when the job was absorbed as a duplicate;
	// an existing entry is left untouched, including its due time.
	Enqueue(ctx context.Context, job *Job) (bool, error)

	// CancelByPrefix removes all pending jobs whose id starts with
	// prefix and returns the number removed. Jobs already claimed by
	// DequeueReady are not retractable.
	CancelByPrefix(ctx context.Context, prefix string) (int64, error)

	// DequeueReady atomically claims up to limit jobs with dueAt <= now,
	// in non-decreasing dueAt order, marking them processing and
	// incrementing their attempt counter. No two consumers receive the
	// same job.
	DequeueReady(ctx context.Context, now time.Time, limit int) ([]*Job, error)

	// Reschedule returns a claimed job to the pending set at a later
	// due time, preserving its id and attempt count.
	Reschedule(ctx context.Context, jobID string, dueAt time.Time, lastErr error) error

	// MarkSent records successful delivery. Terminal.
	MarkSent(ctx context.Context, jobID string) error

	// MarkDead records a permanent failure or exhausted retries. Terminal.
	MarkDead(ctx context.Context, jobID string, lastErr error) error

	// ReleaseStale returns processing jobs older than olderThan to the
	// pending set. Covers workers that crashed mid-delivery; the claim
	// already incremented the attempt counter, so a released job has
	// spent one attempt.
	ReleaseStale(ctx context.Context, olderThan time.Duration) (int64, error)

	// ActiveJobs returns all pending jobs in due order.
	ActiveJobs(ctx context.Context) ([]*Job, error)

	// Stats returns queue depth by status.
	Stats(ctx context.Context) (*Stats, error)
}
