// Package postgres provides the PostgreSQL implementation of the job
// queue store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bookline/notifier/internal/queue"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store implements queue.Store using PostgreSQL.
type Store struct {
	db *pgxpool.Pool
}

// NewStore creates a new PostgreSQL-backed job store.
func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Enqueue inserts the job unless the id already exists.
func (s *Store) Enqueue(ctx context.Context, job *queue.Job) (bool, error) {
	query := `
		INSERT INTO jobs (id, kind, booking_id, channel, recipient, payload, status, max_attempts, due_at)
		VALUES ($1, $2, $3, $4, $5, $6, 'pending', $7, $8)
		ON CONFLICT (id) DO NOTHING
	`
	result, err := s.db.Exec(ctx, query,
		job.ID,
		job.Kind,
		job.BookingID,
		job.Channel,
		job.Recipient,
		job.Payload,
		job.MaxAttempts,
		job.DueAt,
	)
	if err != nil {
		return false, fmt.Errorf("enqueue job: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// CancelByPrefix removes all pending jobs whose id starts with prefix.
func (s *Store) CancelByPrefix(ctx context.Context, prefix string) (int64, error) {
	query := `DELETE FROM jobs WHERE status = 'pending' AND id LIKE $1 || '%'`
	result, err := s.db.Exec(ctx, query, prefix)
	if err != nil {
		return 0, fmt.Errorf("cancel by prefix: %w", err)
	}
	return result.RowsAffected(), nil
}

// DequeueReady claims up to limit due jobs. The inner select locks rows
// with FOR UPDATE SKIP LOCKED so concurrent consumers never claim the
// same job.
func (s *Store) DequeueReady(ctx context.Context, now time.Time, limit int) ([]*queue.Job, error) {
	query := `
		UPDATE jobs
		SET status = 'processing', attempts = attempts + 1, updated_at = NOW()
		WHERE id IN (
			SELECT id FROM jobs
			WHERE status = 'pending' AND due_at <= $1
			ORDER BY due_at, id
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, kind, booking_id, channel, recipient, payload, status,
		          attempts, max_attempts, due_at, last_error, created_at, updated_at, sent_at
	`
	rows, err := s.db.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("dequeue ready: %w", err)
	}
	defer rows.Close()

	jobs := make([]*queue.Job, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// Reschedule returns a claimed job to pending at a later due time.
func (s *Store) Reschedule(ctx context.Context, jobID string, dueAt time.Time, lastErr error) error {
	query := `
		UPDATE jobs
		SET status = 'pending', due_at = $2, last_error = $3, updated_at = NOW()
		WHERE id = $1
	`
	return s.markJob(ctx, query, jobID, dueAt, errString(lastErr))
}

// MarkSent records successful delivery.
func (s *Store) MarkSent(ctx context.Context, jobID string) error {
	query := `
		UPDATE jobs
		SET status = 'sent', sent_at = NOW(), updated_at = NOW()
		WHERE id = $1
	`
	return s.markJob(ctx, query, jobID)
}

// MarkDead records a terminal failure.
func (s *Store) MarkDead(ctx context.Context, jobID string, lastErr error) error {
	query := `
		UPDATE jobs
		SET status = 'dead', last_error = $2, updated_at = NOW()
		WHERE id = $1
	`
	return s.markJob(ctx, query, jobID, errString(lastErr))
}

func (s *Store) markJob(ctx context.Context, query, jobID string, args ...any) error {
	result, err := s.db.Exec(ctx, query, append([]any{jobID}, args...)...)
	if err != nil {
		return fmt.Errorf("update job %s: %w", jobID, err)
	}
	if result.RowsAffected() == 0 {
		return queue.ErrJobNotFound
	}
	return nil
}

// ReleaseStale returns processing jobs not touched since the cutoff to
// the pending set.
func (s *Store) ReleaseStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	query := `
		UPDATE jobs
		SET status = 'pending', updated_at = NOW()
		WHERE status = 'processing' AND updated_at < NOW() - $1::interval
	`
	result, err := s.db.Exec(ctx, query, olderThan)
	if err != nil {
		return 0, fmt.Errorf("release stale jobs: %w", err)
	}
	return result.RowsAffected(), nil
}

// ActiveJobs returns all pending jobs in due order.
func (s *Store) ActiveJobs(ctx context.Context) ([]*queue.Job, error) {
	query := `
		SELECT id, kind, booking_id, channel, recipient, payload, status,
		       attempts, max_attempts, due_at, last_error, created_at, updated_at, sent_at
		FROM jobs
		WHERE status = 'pending'
		ORDER BY due_at, id
	`
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list active jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]*queue.Job, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// Stats returns queue depth by status.
func (s *Store) Stats(ctx context.Context) (*queue.Stats, error) {
	query := `SELECT status, COUNT(*) FROM jobs GROUP BY status`
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	stats := &queue.Stats{}
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		switch queue.Status(status) {
		case queue.StatusPending:
			stats.Pending = count
		case queue.StatusProcessing:
			stats.Processing = count
		case queue.StatusSent:
			stats.Sent = count
		case queue.StatusDead:
			stats.Dead = count
		}
	}
	return stats, nil
}

// GetJob retrieves a single job by id.
func (s *Store) GetJob(ctx context.Context, jobID string) (*queue.Job, error) {
	query := `
		SELECT id, kind, booking_id, channel, recipient, payload, status,
		       attempts, max_attempts, due_at, last_error, created_at, updated_at, sent_at
		FROM jobs
		WHERE id = $1
	`
	row := s.db.QueryRow(ctx, query, jobID)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, queue.ErrJobNotFound
		}
		return nil, err
	}
	return job, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*queue.Job, error) {
	var job queue.Job
	err := row.Scan(
		&job.ID,
		&job.Kind,
		&job.BookingID,
		&job.Channel,
		&job.Recipient,
		&job.Payload,
		&job.Status,
		&job.Attempts,
		&job.MaxAttempts,
		&job.DueAt,
		&job.LastError,
		&job.CreatedAt,
		&job.UpdatedAt,
		&job.SentAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan job: %w", err)
	}
	return &job, nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
