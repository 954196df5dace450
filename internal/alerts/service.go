package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bookline/notifier/internal/domain"
	"github.com/bookline/notifier/internal/notify"
	"github.com/bookline/notifier/internal/queue"
)

// ServiceConfig contains alert service settings.
type ServiceConfig struct {
	// MaxAttempts is the delivery attempt budget per alert job.
	MaxAttempts int
}

// Service processes submitted events end to end: persist, classify,
// filter, enqueue, then claim the processed flag.
type Service struct {
	config    ServiceConfig
	processor *Processor
	repo      Repository
	store     queue.Store

	now func() time.Time
}

// NewService creates a new alert service.
func NewService(config ServiceConfig, processor *Processor, repo Repository, store queue.Store) *Service {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	return &Service{
		config:    config,
		processor: processor,
		repo:      repo,
		store:     store,
		now:       time.Now,
	}
}

// SubmitResult reports what happened to a submitted event.
type SubmitResult struct {
	EventID   string               `json:"event_id"`
	Duplicate bool                 `json:"duplicate"`
	Alerted   bool                 `json:"alerted"`
	Severity  domain.Severity      `json:"severity,omitempty"`
	Channels  []domain.ChannelType `json:"channels,omitempty"`
	Enqueued  int                  `json:"enqueued"`
}

// Submit ingests one event. A redelivered event id whose processed flag
// is already set gets a duplicate result and no second alert. The flag
// is only set after the event's outcome is durable, so a submit that
// fails mid-flight leaves the event claimable and the producer can
// redeliver it; deterministic alert job ids make the redelivered
// enqueue a no-op for any jobs the failed attempt already created.
// Suppressed and filtered-out events still count as processed.
func (s *Service) Submit(ctx context.Context, event domain.NotificationEvent) (*SubmitResult, error) {
	if event.ID == "" {
		return nil, errors.New("event id is required")
	}
	if event.Type == "" {
		return nil, errors.New("event type is required")
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}

	inserted, err := s.repo.SaveEvent(ctx, &event)
	if err != nil {
		return nil, fmt.Errorf("save event %s: %w", event.ID, err)
	}
	if !inserted {
		stored, err := s.repo.GetEvent(ctx, event.ID)
		if err != nil {
			return nil, fmt.Errorf("load event %s: %w", event.ID, err)
		}
		if stored.Processed {
			slog.Debug("event already processed", "event_id", event.ID)
			return &SubmitResult{EventID: event.ID, Duplicate: true}, nil
		}
		// Saved by an earlier submit that failed before finishing.
		// This delivery picks the work back up.
	}

	verdict := s.classify(event)
	if !verdict.ShouldAlert {
		slog.Debug("event suppressed",
			"event_id", event.ID,
			"event_type", event.Type,
		)
		return s.finish(ctx, &SubmitResult{EventID: event.ID})
	}

	prefs, err := s.repo.GetPreferences(ctx, event.UserID)
	if err != nil {
		if !errors.Is(err, ErrPreferencesNotFound) {
			return nil, fmt.Errorf("load preferences for %s: %w", event.UserID, err)
		}
		prefs = nil
	}

	channels := ResolveChannels(verdict, prefs, event.Type)
	if len(channels) == 0 {
		slog.Debug("no channels after preference filter",
			"event_id", event.ID,
			"user_id", event.UserID,
		)
		return s.finish(ctx, &SubmitResult{EventID: event.ID, Alerted: true, Severity: verdict.Severity})
	}

	enqueued, err := s.enqueueAlerts(ctx, event, verdict, prefs, channels)
	if err != nil {
		return nil, err
	}

	slog.Info("alert enqueued",
		"event_id", event.ID,
		"event_type", event.Type,
		"severity", verdict.Severity,
		"channels", channels,
	)

	return s.finish(ctx, &SubmitResult{
		EventID:  event.ID,
		Alerted:  true,
		Severity: verdict.Severity,
		Channels: channels,
		Enqueued: enqueued,
	})
}

// finish claims the processed flag once the event's outcome is durable.
// A concurrent submit that lost the claim race did the same idempotent
// work, so it is reported as a duplicate.
func (s *Service) finish(ctx context.Context, result *SubmitResult) (*SubmitResult, error) {
	claimed, err := s.repo.ClaimEvent(ctx, result.EventID)
	if err != nil {
		return nil, fmt.Errorf("claim event %s: %w", result.EventID, err)
	}
	if !claimed {
		slog.Debug("event claimed concurrently", "event_id", result.EventID)
		return &SubmitResult{EventID: result.EventID, Duplicate: true}, nil
	}
	return result, nil
}

// classify contains the processor panic boundary: a broken rule
// suppresses that one event instead of crashing the service.
func (s *Service) classify(event domain.NotificationEvent) (verdict Verdict) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic classifying event",
				"event_id", event.ID,
				"event_type", event.Type,
				"panic", r,
			)
			verdict = Verdict{}
		}
	}()
	return s.processor.Classify(event)
}

func (s *Service) enqueueAlerts(ctx context.Context, event domain.NotificationEvent, verdict Verdict, prefs *domain.UserNotificationPreferences, channels []domain.ChannelType) (int, error) {
	payload, err := json.Marshal(notify.NewAlertPayload(notify.AlertData{
		EventID:   event.ID,
		EventType: string(event.Type),
		Severity:  verdict.Severity,
		Title:     verdict.Title,
		Detail:    verdict.Detail,
		UserID:    event.UserID,
	}))
	if err != nil {
		return 0, fmt.Errorf("marshal alert payload: %w", err)
	}

	now := s.now()
	var enqueued int
	for _, ch := range channels {
		recipient := prefs.ChannelTarget(ch)
		if ch == domain.ChannelTypeInApp && recipient == "" {
			recipient = event.UserID
		}
		if recipient == "" {
			slog.Warn("channel enabled without a target, skipping",
				"event_id", event.ID,
				"user_id", event.UserID,
				"channel_type", ch,
			)
			continue
		}

		job := &queue.Job{
			ID:          fmt.Sprintf("%s-alert-%s", event.ID, ch),
			Kind:        queue.KindAlert,
			Channel:     ch,
			Recipient:   recipient,
			Payload:     payload,
			MaxAttempts: s.config.MaxAttempts,
			DueAt:       now,
		}

		inserted, err := s.store.Enqueue(ctx, job)
		if err != nil {
			return enqueued, fmt.Errorf("enqueue alert %s: %w", job.ID, err)
		}
		if inserted {
			enqueued++
		}
	}
	return enqueued, nil
}

// Preferences returns the user's stored preferences.
func (s *Service) Preferences(ctx context.Context, userID string) (*domain.UserNotificationPreferences, error) {
	return s.repo.GetPreferences(ctx, userID)
}

// SavePreferences validates and stores the user's preferences.
func (s *Service) SavePreferences(ctx context.Context, prefs *domain.UserNotificationPreferences) error {
	if prefs.UserID == "" {
		return errors.New("user id is required")
	}
	if prefs.MinPriority == "" {
		prefs.MinPriority = domain.SeverityLow
	}
	if !prefs.MinPriority.IsValid() {
		return fmt.Errorf("unknown priority %q", prefs.MinPriority)
	}
	for _, ch := range prefs.Channels {
		if !ch.Type.IsValid() {
			return fmt.Errorf("unknown channel type %q", ch.Type)
		}
	}

	prefs.UpdatedAt = s.now()
	return s.repo.SavePreferences(ctx, prefs)
}

// Event returns a stored event by id.
func (s *Service) Event(ctx context.Context, id string) (*domain.NotificationEvent, error) {
	return s.repo.GetEvent(ctx, id)
}
