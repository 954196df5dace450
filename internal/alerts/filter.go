package alerts

import "github.com/bookline/notifier/internal/domain"

// ResolveChannels intersects a verdict's candidate channels with the
// user's preferences: the channel must be enabled, the event type must
// pass the allow-list, and the verdict severity must reach the user's
// priority floor. A user without stored preferences receives nothing.
func ResolveChannels(verdict Verdict, prefs *domain.UserNotificationPreferences, eventType domain.EventType) []domain.ChannelType {
	if prefs == nil || !verdict.ShouldAlert {
		return nil
	}

	if !prefs.AllowsEventType(eventType) {
		return nil
	}

	if !verdict.Severity.AtLeast(prefs.MinPriority) {
		return nil
	}

	channels := make([]domain.ChannelType, 0, len(verdict.Channels))
	for _, ch := range verdict.Channels {
		if prefs.ChannelEnabled(ch) {
			channels = append(channels, ch)
		}
	}
	return channels
}
