package domain

import "time"

// ChannelPreference is a single channel toggle inside a user's
// preferences. Target is the delivery address for that channel: an
// email address, a phone number, a device token. In-app delivery keys
// off the user id, so its target may stay empty.
type ChannelPreference struct {
	Type    ChannelType `json:"type"`
	Enabled bool        `json:"enabled"`
	Target  string      `json:"target,omitempty"`
}

// UserNotificationPreferences controls which alerts reach a user and how.
// An empty EventTypes list means all event types are allowed.
type UserNotificationPreferences struct {
	UserID      string              `json:"user_id"`
	Channels    []ChannelPreference `json:"channels"`
	EventTypes  []EventType         `json:"event_types"`
	MinPriority Severity            `json:"min_priority"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// ChannelEnabled reports whether the user has the given channel switched on.
func (p *UserNotificationPreferences) ChannelEnabled(t ChannelType) bool {
	for _, ch := range p.Channels {
		if ch.Type == t {
			return ch.Enabled
		}
	}
	return false
}

// ChannelTarget returns the delivery address stored for the channel.
func (p *UserNotificationPreferences) ChannelTarget(t ChannelType) string {
	for _, ch := range p.Channels {
		if ch.Type == t {
			return ch.Target
		}
	}
	return ""
}

// AllowsEventType reports whether the event type passes the allow-list.
func (p *UserNotificationPreferences) AllowsEventType(t EventType) bool {
	if len(p.EventTypes) == 0 {
		return true
	}
	for _, et := range p.EventTypes {
		if et == t {
			return true
		}
	}
	return false
}
