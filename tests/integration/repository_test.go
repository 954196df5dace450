//go:build integration

package integration

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bookline/notifier/internal/alerts"
	alertspostgres "github.com/bookline/notifier/internal/alerts/postgres"
	"github.com/bookline/notifier/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEvent(id string) *domain.NotificationEvent {
	return &domain.NotificationEvent{
		ID:     id,
		Type:   domain.EventTypeImminentExpiration,
		UserID: "user_repo",
		Data: map[string]any{
			"item_name":             "Hair dye",
			"days_until_expiration": float64(2),
		},
		Timestamp: time.Now().UTC().Truncate(time.Microsecond),
	}
}

func TestAlertsRepository_SaveEventDeduplicates(t *testing.T) {
	repo := alertspostgres.NewRepository(testDB)
	ctx := context.Background()
	eventID := fmt.Sprintf("evt_repo_save_%d", time.Now().UnixNano())

	inserted, err := repo.SaveEvent(ctx, testEvent(eventID))
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = repo.SaveEvent(ctx, testEvent(eventID))
	require.NoError(t, err)
	assert.False(t, inserted)
}

func TestAlertsRepository_GetEventRoundtrip(t *testing.T) {
	repo := alertspostgres.NewRepository(testDB)
	ctx := context.Background()
	eventID := fmt.Sprintf("evt_repo_get_%d", time.Now().UnixNano())

	saved := testEvent(eventID)
	_, err := repo.SaveEvent(ctx, saved)
	require.NoError(t, err)

	got, err := repo.GetEvent(ctx, eventID)
	require.NoError(t, err)

	assert.Equal(t, saved.ID, got.ID)
	assert.Equal(t, saved.Type, got.Type)
	assert.Equal(t, saved.UserID, got.UserID)
	assert.Equal(t, saved.Data, got.Data)
	assert.False(t, got.Processed)
	assert.WithinDuration(t, saved.Timestamp, got.Timestamp, time.Second)
}

func TestAlertsRepository_GetEventNotFound(t *testing.T) {
	repo := alertspostgres.NewRepository(testDB)

	_, err := repo.GetEvent(context.Background(), "evt_repo_missing")
	assert.ErrorIs(t, err, alerts.ErrEventNotFound)
}

func TestAlertsRepository_ClaimEventOnce(t *testing.T) {
	repo := alertspostgres.NewRepository(testDB)
	ctx := context.Background()
	eventID := fmt.Sprintf("evt_repo_claim_%d", time.Now().UnixNano())

	_, err := repo.SaveEvent(ctx, testEvent(eventID))
	require.NoError(t, err)

	claimed, err := repo.ClaimEvent(ctx, eventID)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = repo.ClaimEvent(ctx, eventID)
	require.NoError(t, err)
	assert.False(t, claimed)

	event, err := repo.GetEvent(ctx, eventID)
	require.NoError(t, err)
	assert.True(t, event.Processed)
}

func TestAlertsRepository_PreferencesRoundtrip(t *testing.T) {
	repo := alertspostgres.NewRepository(testDB)
	ctx := context.Background()
	userID := fmt.Sprintf("user_repo_prefs_%d", time.Now().UnixNano())

	saved := &domain.UserNotificationPreferences{
		UserID: userID,
		Channels: []domain.ChannelPreference{
			{Type: domain.ChannelTypeEmail, Enabled: true, Target: "owner@example.com"},
			{Type: domain.ChannelTypeWhatsApp, Enabled: false, Target: "+14155550100"},
		},
		EventTypes:  []domain.EventType{domain.EventTypeLowStock, domain.EventTypeBookingOverload},
		MinPriority: domain.SeverityMedium,
		UpdatedAt:   time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, repo.SavePreferences(ctx, saved))

	got, err := repo.GetPreferences(ctx, userID)
	require.NoError(t, err)

	assert.Equal(t, saved.UserID, got.UserID)
	assert.Equal(t, saved.Channels, got.Channels)
	assert.Equal(t, saved.EventTypes, got.EventTypes)
	assert.Equal(t, saved.MinPriority, got.MinPriority)

	// Upsert replaces the previous version.
	saved.Channels = saved.Channels[:1]
	saved.MinPriority = domain.SeverityCritical
	require.NoError(t, repo.SavePreferences(ctx, saved))

	got, err = repo.GetPreferences(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, got.Channels, 1)
	assert.Equal(t, domain.SeverityCritical, got.MinPriority)
}

func TestAlertsRepository_PreferencesNotFound(t *testing.T) {
	repo := alertspostgres.NewRepository(testDB)

	_, err := repo.GetPreferences(context.Background(), "user_repo_missing")
	assert.ErrorIs(t, err, alerts.ErrPreferencesNotFound)
}
