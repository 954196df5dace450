package domain

import "time"

// EventType identifies a class of domain alert event.
type EventType string

// Known event types. Unknown types fall through to the default
// classification rule.
const (
	EventTypeLowStock           EventType = "low_stock"
	EventTypeImminentExpiration EventType = "imminent_expiration"
	EventTypeBookingOverload    EventType = "booking_overload"
)

// NotificationEvent is a domain alert event submitted by an external
// collaborator (inventory, booking load monitor). The processed flag is
// one-way: it is claimed exactly once, so re-delivery of the same event
// id never produces a second alert.
type NotificationEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	UserID    string         `json:"user_id"`
	Data      map[string]any `json:"data"`
	Severity  Severity       `json:"severity"`
	Timestamp time.Time      `json:"timestamp"`
	Processed bool           `json:"processed"`
}
