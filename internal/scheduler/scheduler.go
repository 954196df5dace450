// Package scheduler turns bookings into future reminder jobs.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/bookline/notifier/internal/domain"
	"github.com/bookline/notifier/internal/notify"
	"github.com/bookline/notifier/internal/queue"
)

// Config contains reminder scheduling settings.
type Config struct {
	// Interval is the spacing between consecutive reminders.
	Interval time.Duration
	// MinLead is the shortest time-to-appointment that still gets
	// reminders. Bookings closer than this are left alone.
	MinLead time.Duration
	// MaxAttempts is the delivery attempt budget given to each job.
	MaxAttempts int
}

// DefaultConfig returns default scheduler configuration.
func DefaultConfig() Config {
	return Config{
		Interval:    2 * time.Hour,
		MinLead:     2 * time.Hour,
		MaxAttempts: 3,
	}
}

// Scheduler computes reminder cadences and enqueues the jobs.
type Scheduler struct {
	config Config
	store  queue.Store

	// now is swappable for tests.
	now func() time.Time
}

// NewScheduler creates a new reminder scheduler.
func NewScheduler(config Config, store queue.Store) *Scheduler {
	if config.Interval <= 0 {
		config.Interval = DefaultConfig().Interval
	}
	if config.MinLead <= 0 {
		config.MinLead = DefaultConfig().MinLead
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultConfig().MaxAttempts
	}
	return &Scheduler{
		config: config,
		store:  store,
		now:    time.Now,
	}
}

// reminderPrefix is the shared id prefix of all reminder jobs for a
// booking. The full id appends the reminder number, so enqueueing is
// idempotent and cancellation is a prefix delete.
func reminderPrefix(bookingID string) string {
	return fmt.Sprintf("%s-reminder-", bookingID)
}

// ScheduleReminders enqueues one reminder job per whole interval
// between now and the appointment. Reminder n fires n intervals before
// the appointment, so the cadence is anchored to the appointment time,
// not to the moment of booking. Appointments closer than one interval
// get no reminders. Returns the number of jobs newly enqueued;
// duplicates of already-queued reminders are absorbed silently.
func (s *Scheduler) ScheduleReminders(ctx context.Context, booking domain.Booking) (int, error) {
	now := s.now()
	lead := booking.ScheduledTime.Sub(now)
	if lead <= 0 {
		return 0, fmt.Errorf("booking %s is not in the future", booking.ID)
	}

	count := int(lead / s.config.Interval)
	if count < 1 || lead < s.config.MinLead {
		slog.Debug("booking too close for reminders",
			"booking_id", booking.ID,
			"lead", lead,
		)
		return 0, nil
	}

	var enqueued int
	for n := 1; n <= count; n++ {
		dueAt := booking.ScheduledTime.Add(-time.Duration(n) * s.config.Interval)
		if dueAt.Before(now) {
			continue
		}

		payload, err := json.Marshal(notify.NewReminderPayload(notify.ReminderData{
			BookingID:      booking.ID,
			CustomerName:   booking.CustomerName,
			ServiceName:    booking.ServiceName,
			ScheduledTime:  booking.ScheduledTime,
			ReminderNumber: n,
		}))
		if err != nil {
			return enqueued, fmt.Errorf("marshal reminder payload: %w", err)
		}

		job := &queue.Job{
			ID:          fmt.Sprintf("%s%d", reminderPrefix(booking.ID), n),
			Kind:        queue.KindReminder,
			BookingID:   booking.ID,
			Channel:     booking.Channel,
			Recipient:   booking.Recipient,
			Payload:     payload,
			MaxAttempts: s.config.MaxAttempts,
			DueAt:       dueAt,
		}

		inserted, err := s.store.Enqueue(ctx, job)
		if err != nil {
			return enqueued, fmt.Errorf("enqueue reminder %s: %w", job.ID, err)
		}
		if inserted {
			enqueued++
		}
	}

	slog.Info("reminders scheduled",
		"booking_id", booking.ID,
		"scheduled_time", booking.ScheduledTime,
		"enqueued", enqueued,
	)
	return enqueued, nil
}

// CancelReminders removes all not-yet-claimed reminder jobs for the
// booking and returns the number removed.
func (s *Scheduler) CancelReminders(ctx context.Context, bookingID string) (int64, error) {
	removed, err := s.store.CancelByPrefix(ctx, reminderPrefix(bookingID))
	if err != nil {
		return 0, fmt.Errorf("cancel reminders for %s: %w", bookingID, err)
	}

	slog.Info("reminders cancelled",
		"booking_id", bookingID,
		"removed", removed,
	)
	return removed, nil
}

// OnBookingConfirmed schedules reminders for a newly confirmed booking.
func (s *Scheduler) OnBookingConfirmed(ctx context.Context, booking domain.Booking) (int, error) {
	if booking.Status != domain.BookingStatusConfirmed {
		return 0, fmt.Errorf("booking %s is %s, not confirmed", booking.ID, booking.Status)
	}
	return s.ScheduleReminders(ctx, booking)
}

// OnBookingCancelled retracts pending reminders for the booking.
func (s *Scheduler) OnBookingCancelled(ctx context.Context, bookingID string) (int64, error) {
	return s.CancelReminders(ctx, bookingID)
}

// OnBookingRescheduled replaces the booking's reminder cadence with one
// computed from the new appointment time.
func (s *Scheduler) OnBookingRescheduled(ctx context.Context, booking domain.Booking) (int, error) {
	if _, err := s.CancelReminders(ctx, booking.ID); err != nil {
		return 0, err
	}
	return s.ScheduleReminders(ctx, booking)
}

// ActiveReminders returns the pending reminder jobs, across all
// bookings, in due order.
func (s *Scheduler) ActiveReminders(ctx context.Context) ([]*queue.Job, error) {
	jobs, err := s.store.ActiveJobs(ctx)
	if err != nil {
		return nil, err
	}

	reminders := make([]*queue.Job, 0, len(jobs))
	for _, job := range jobs {
		if job.Kind == queue.KindReminder {
			reminders = append(reminders, job)
		}
	}
	return reminders, nil
}
