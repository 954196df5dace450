package alerts

import (
	"testing"

	"github.com/bookline/notifier/internal/domain"
	"github.com/stretchr/testify/assert"
)

func allEnabledPrefs() *domain.UserNotificationPreferences {
	return &domain.UserNotificationPreferences{
		UserID: "user_1",
		Channels: []domain.ChannelPreference{
			{Type: domain.ChannelTypeEmail, Enabled: true, Target: "user@example.com"},
			{Type: domain.ChannelTypePush, Enabled: true, Target: "device-token"},
			{Type: domain.ChannelTypeInApp, Enabled: true},
		},
		MinPriority: domain.SeverityLow,
	}
}

func highVerdict() Verdict {
	return Verdict{
		ShouldAlert: true,
		Severity:    domain.SeverityHigh,
		Channels: []domain.ChannelType{
			domain.ChannelTypeInApp,
			domain.ChannelTypeEmail,
			domain.ChannelTypePush,
		},
	}
}

func TestResolveChannels_Intersection(t *testing.T) {
	prefs := allEnabledPrefs()
	prefs.Channels[1].Enabled = false // push off

	channels := ResolveChannels(highVerdict(), prefs, domain.EventTypeLowStock)

	assert.Equal(t, []domain.ChannelType{
		domain.ChannelTypeInApp,
		domain.ChannelTypeEmail,
	}, channels)
}

func TestResolveChannels_NilPrefs(t *testing.T) {
	channels := ResolveChannels(highVerdict(), nil, domain.EventTypeLowStock)
	assert.Empty(t, channels)
}

func TestResolveChannels_NoAlert(t *testing.T) {
	channels := ResolveChannels(Verdict{}, allEnabledPrefs(), domain.EventTypeLowStock)
	assert.Empty(t, channels)
}

func TestResolveChannels_EventTypeAllowList(t *testing.T) {
	prefs := allEnabledPrefs()
	prefs.EventTypes = []domain.EventType{domain.EventTypeBookingOverload}

	channels := ResolveChannels(highVerdict(), prefs, domain.EventTypeLowStock)
	assert.Empty(t, channels)

	channels = ResolveChannels(highVerdict(), prefs, domain.EventTypeBookingOverload)
	assert.NotEmpty(t, channels)
}

func TestResolveChannels_EmptyAllowListMeansAll(t *testing.T) {
	channels := ResolveChannels(highVerdict(), allEnabledPrefs(), domain.EventType("anything"))
	assert.NotEmpty(t, channels)
}

func TestResolveChannels_PriorityFloor(t *testing.T) {
	prefs := allEnabledPrefs()
	prefs.MinPriority = domain.SeverityCritical

	channels := ResolveChannels(highVerdict(), prefs, domain.EventTypeLowStock)
	assert.Empty(t, channels)

	critical := highVerdict()
	critical.Severity = domain.SeverityCritical
	channels = ResolveChannels(critical, prefs, domain.EventTypeLowStock)
	assert.NotEmpty(t, channels)
}

func TestResolveChannels_UnlistedChannelDisabled(t *testing.T) {
	prefs := &domain.UserNotificationPreferences{
		UserID: "user_1",
		Channels: []domain.ChannelPreference{
			{Type: domain.ChannelTypeEmail, Enabled: true, Target: "user@example.com"},
		},
		MinPriority: domain.SeverityLow,
	}

	channels := ResolveChannels(highVerdict(), prefs, domain.EventTypeLowStock)

	// in_app and push are absent from the preference list, so they stay off.
	assert.Equal(t, []domain.ChannelType{domain.ChannelTypeEmail}, channels)
}
