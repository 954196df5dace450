// Package postgres provides the PostgreSQL implementation of the
// alerts repository.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/bookline/notifier/internal/alerts"
	"github.com/bookline/notifier/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository implements alerts.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL-backed alerts repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// SaveEvent stores the event unless the id already exists.
func (r *Repository) SaveEvent(ctx context.Context, event *domain.NotificationEvent) (bool, error) {
	query := `
		INSERT INTO notification_events (id, type, user_id, data, severity, occurred_at, processed)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE)
		ON CONFLICT (id) DO NOTHING
	`
	result, err := r.db.Exec(ctx, query,
		event.ID,
		event.Type,
		event.UserID,
		event.Data,
		event.Severity,
		event.Timestamp,
	)
	if err != nil {
		return false, fmt.Errorf("save event: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// GetEvent retrieves an event by id.
func (r *Repository) GetEvent(ctx context.Context, id string) (*domain.NotificationEvent, error) {
	query := `
		SELECT id, type, user_id, data, severity, occurred_at, processed
		FROM notification_events
		WHERE id = $1
	`
	var event domain.NotificationEvent
	err := r.db.QueryRow(ctx, query, id).Scan(
		&event.ID,
		&event.Type,
		&event.UserID,
		&event.Data,
		&event.Severity,
		&event.Timestamp,
		&event.Processed,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, alerts.ErrEventNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return &event, nil
}

// ClaimEvent flips processed from false to true. The conditional
// update makes the claim atomic: exactly one caller sees a row change.
func (r *Repository) ClaimEvent(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE notification_events
		SET processed = TRUE
		WHERE id = $1 AND processed = FALSE
	`
	result, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("claim event: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// GetPreferences retrieves a user's notification preferences.
func (r *Repository) GetPreferences(ctx context.Context, userID string) (*domain.UserNotificationPreferences, error) {
	query := `
		SELECT user_id, channels, event_types, min_priority, updated_at
		FROM user_notification_preferences
		WHERE user_id = $1
	`
	var prefs domain.UserNotificationPreferences
	var eventTypes []string
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&prefs.UserID,
		&prefs.Channels,
		&eventTypes,
		&prefs.MinPriority,
		&prefs.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, alerts.ErrPreferencesNotFound
		}
		return nil, fmt.Errorf("get preferences: %w", err)
	}

	prefs.EventTypes = make([]domain.EventType, 0, len(eventTypes))
	for _, et := range eventTypes {
		prefs.EventTypes = append(prefs.EventTypes, domain.EventType(et))
	}
	return &prefs, nil
}

// SavePreferences upserts the user's preferences.
func (r *Repository) SavePreferences(ctx context.Context, prefs *domain.UserNotificationPreferences) error {
	eventTypes := make([]string, 0, len(prefs.EventTypes))
	for _, et := range prefs.EventTypes {
		eventTypes = append(eventTypes, string(et))
	}

	query := `
		INSERT INTO user_notification_preferences (user_id, channels, event_types, min_priority, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE
		SET channels = EXCLUDED.channels,
		    event_types = EXCLUDED.event_types,
		    min_priority = EXCLUDED.min_priority,
		    updated_at = EXCLUDED.updated_at
	`
	_, err := r.db.Exec(ctx, query,
		prefs.UserID,
		prefs.Channels,
		eventTypes,
		prefs.MinPriority,
		prefs.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save preferences: %w", err)
	}
	return nil
}
