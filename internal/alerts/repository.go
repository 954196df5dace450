package alerts

import (
	"context"
	"errors"

	"github.com/bookline/notifier/internal/domain"
)

// Repository errors.
var (
	ErrEventNotFound       = errors.New("event not found")
	ErrPreferencesNotFound = errors.New("preferences not found")
)

// Repository persists alert events and user notification preferences.
type Repository interface {
	// SaveEvent stores the event unless one with the same id exists.
	// Returns false when the event was absorbed as a duplicate.
	SaveEvent(ctx context.Context, event *domain.NotificationEvent) (bool, error)

	// GetEvent retrieves an event by id.
	GetEvent(ctx context.Context, id string) (*domain.NotificationEvent, error)

	// ClaimEvent flips the event's processed flag from false to true.
	// Returns true only for the single caller that performed the flip.
	ClaimEvent(ctx context.Context, id string) (bool, error)

	// GetPreferences retrieves a user's notification preferences.
	// Returns ErrPreferencesNotFound for users who never saved any.
	GetPreferences(ctx context.Context, userID string) (*domain.UserNotificationPreferences, error)

	// SavePreferences stores the user's preferences, replacing any
	// previous version.
	SavePreferences(ctx context.Context, prefs *domain.UserNotificationPreferences) error
}
