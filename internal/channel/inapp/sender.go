// Package inapp stores notifications in the database for display
// inside the application.
package inapp

import (
	"context"
	"fmt"

	"github.com/bookline/notifier/internal/channel"
	"github.com/bookline/notifier/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Sender implements in-app notification delivery backed by PostgreSQL.
// The recipient is the user id owning the notification feed.
type Sender struct {
	db *pgxpool.Pool
}

// NewSender creates a new in-app sender.
func NewSender(db *pgxpool.Pool) *Sender {
	return &Sender{db: db}
}

// Type returns the channel type.
func (s *Sender) Type() domain.ChannelType {
	return domain.ChannelTypeInApp
}

// HealthCheck reports whether the backing database is reachable.
func (s *Sender) HealthCheck() domain.HealthStatus {
	if s.db == nil {
		return domain.HealthStatus{Healthy: false, Message: "database not configured"}
	}
	if err := s.db.Ping(context.Background()); err != nil {
		return domain.HealthStatus{Healthy: false, Message: err.Error()}
	}
	return domain.HealthStatus{Healthy: true}
}

// Send inserts the notification into the user's feed.
func (s *Sender) Send(ctx context.Context, msg domain.Message) error {
	userID := msg.UserID
	if userID == "" {
		userID = msg.Recipient
	}
	if userID == "" {
		return &channel.ValidationError{Field: "recipient", Message: "user id is empty"}
	}

	query := `
		INSERT INTO in_app_notifications (id, user_id, subject, body)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := s.db.Exec(ctx, query, uuid.New(), userID, msg.Subject, msg.Body); err != nil {
		return &channel.RetryableError{Channel: "in_app", Message: fmt.Sprintf("insert notification: %v", err)}
	}
	return nil
}

// Unread returns the user's unread notification count.
func (s *Sender) Unread(ctx context.Context, userID string) (int64, error) {
	var count int64
	query := `SELECT COUNT(*) FROM in_app_notifications WHERE user_id = $1 AND is_read = FALSE`
	if err := s.db.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return count, nil
}

// MarkRead marks all of the user's notifications as read.
func (s *Sender) MarkRead(ctx context.Context, userID string) error {
	query := `UPDATE in_app_notifications SET is_read = TRUE WHERE user_id = $1 AND is_read = FALSE`
	if _, err := s.db.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}
