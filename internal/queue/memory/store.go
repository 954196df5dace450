// Package memory provides an in-process implementation of the job queue
// store. It backs unit tests and single-node development runs; durable
// deployments use the postgres store.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bookline/notifier/internal/queue"
)

// Store is a mutex-guarded in-memory job store.
type Store struct {
	mu   sync.Mutex
	jobs map[string]*queue.Job
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{jobs: make(map[string]*queue.Job)}
}

// Enqueue inserts the job unless the id is already present.
func (s *Store) Enqueue(_ context.Context, job *queue.Job) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.ID]; exists {
		return false, nil
	}

	now := time.Now()
	stored := *job
	stored.Status = queue.StatusPending
	stored.CreatedAt = now
	stored.UpdatedAt = now
	s.jobs[job.ID] = &stored
	return true, nil
}

// CancelByPrefix removes all pending jobs with a matching id prefix.
func (s *Store) CancelByPrefix(_ context.Context, prefix string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for id, job := range s.jobs {
		if job.Status == queue.StatusPending && strings.HasPrefix(id, prefix) {
			delete(s.jobs, id)
			removed++
		}
	}
	return removed, nil
}

// DequeueReady claims up to limit due jobs in dueAt order.
// Ties on dueAt are broken by map iteration order, which is arbitrary.
func (s *Store) DequeueReady(_ context.Context, now time.Time, limit int) ([]*queue.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ready := make([]*queue.Job, 0)
	for _, job := range s.jobs {
		if job.Status == queue.StatusPending && !job.DueAt.After(now) {
			ready = append(ready, job)
		}
	}

	sort.Slice(ready, func(i, j int) bool {
		return ready[i].DueAt.Before(ready[j].DueAt)
	})

	if limit > 0 && len(ready) > limit {
		ready = ready[:limit]
	}

	claimed := make([]*queue.Job, 0, len(ready))
	for _, job := range ready {
		job.Status = queue.StatusProcessing
		job.Attempts++
		job.UpdatedAt = now

		copied := *job
		claimed = append(claimed, &copied)
	}
	return claimed, nil
}

// Reschedule returns a claimed job to pending at a later due time.
func (s *Store) Reschedule(_ context.Context, jobID string, dueAt time.Time, lastErr error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return queue.ErrJobNotFound
	}

	job.Status = queue.StatusPending
	job.DueAt = dueAt
	job.UpdatedAt = time.Now()
	if lastErr != nil {
		job.LastError = lastErr.Error()
	}
	return nil
}

// MarkSent records successful delivery.
func (s *Store) MarkSent(_ context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return queue.ErrJobNotFound
	}

	now := time.Now()
	job.Status = queue.StatusSent
	job.UpdatedAt = now
	job.SentAt = &now
	return nil
}

// MarkDead records a terminal failure.
func (s *Store) MarkDead(_ context.Context, jobID string, lastErr error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return queue.ErrJobNotFound
	}

	job.Status = queue.StatusDead
	job.UpdatedAt = time.Now()
	if lastErr != nil {
		job.LastError = lastErr.Error()
	}
	return nil
}

// ReleaseStale returns processing jobs not touched since the cutoff to
// the pending set.
func (s *Store) ReleaseStale(_ context.Context, olderThan time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-olderThan)
	var released int64
	for _, job := range s.jobs {
		if job.Status == queue.StatusProcessing && job.UpdatedAt.Before(cutoff) {
			job.Status = queue.StatusPending
			job.UpdatedAt = time.Now()
			released++
		}
	}
	return released, nil
}

// ActiveJobs returns pending jobs ordered by due time.
func (s *Store) ActiveJobs(_ context.Context) ([]*queue.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	active := make([]*queue.Job, 0)
	for _, job := range s.jobs {
		if job.Status == queue.StatusPending {
			copied := *job
			active = append(active, &copied)
		}
	}

	sort.Slice(active, func(i, j int) bool {
		if active[i].DueAt.Equal(active[j].DueAt) {
			return active[i].ID < active[j].ID
		}
		return active[i].DueAt.Before(active[j].DueAt)
	})
	return active, nil
}

// Stats returns queue depth by status.
func (s *Store) Stats(_ context.Context) (*queue.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := &queue.Stats{}
	for _, job := range s.jobs {
		switch job.Status {
		case queue.StatusPending:
			stats.Pending++
		case queue.StatusProcessing:
			stats.Processing++
		case queue.StatusSent:
			stats.Sent++
		case queue.StatusDead:
			stats.Dead++
		}
	}
	return stats, nil
}
