// Package notify renders channel-specific notification text from job
// payloads.
package notify

import (
	"time"

	"github.com/bookline/notifier/internal/domain"
)

// MessageType defines the type of notification.
type MessageType string

// Message types.
const (
	MessageTypeReminder MessageType = "reminder" // Upcoming appointment reminder
	MessageTypeAlert    MessageType = "alert"    // Domain alert event
)

// Payload contains data for rendering a notification.
type Payload struct {
	MessageType MessageType   `json:"message_type"`
	Reminder    *ReminderData `json:"reminder,omitempty"`
	Alert       *AlertData    `json:"alert,omitempty"`
	GeneratedAt time.Time     `json:"generated_at"`
}

// ReminderData carries appointment information for reminder messages.
type ReminderData struct {
	BookingID      string    `json:"booking_id"`
	CustomerName   string    `json:"customer_name"`
	ServiceName    string    `json:"service_name"`
	ScheduledTime  time.Time `json:"scheduled_time"`
	ReminderNumber int       `json:"reminder_number"`
}

// AlertData carries alert event information for alert messages.
type AlertData struct {
	EventID   string          `json:"event_id"`
	EventType string          `json:"event_type"`
	Severity  domain.Severity `json:"severity"`
	Title     string          `json:"title"`
	Detail    string          `json:"detail,omitempty"`
	UserID    string          `json:"user_id"`
}

// NewReminderPayload creates a payload for a reminder notification.
func NewReminderPayload(data ReminderData) Payload {
	return Payload{
		MessageType: MessageTypeReminder,
		Reminder:    &data,
		GeneratedAt: time.Now(),
	}
}

// NewAlertPayload creates a payload for an alert notification.
func NewAlertPayload(data AlertData) Payload {
	return Payload{
		MessageType: MessageTypeAlert,
		Alert:       &data,
		GeneratedAt: time.Now(),
	}
}
