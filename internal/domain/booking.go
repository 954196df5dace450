package domain

import "time"

// BookingStatus is the lifecycle state of a booking, owned by the
// external booking service.
type BookingStatus string

// Booking statuses.
const (
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusCompleted BookingStatus = "completed"
)

// Booking is the read-only view of an appointment this engine schedules
// reminders for. The booking service owns the record; we only consume
// lifecycle notifications carrying it.
type Booking struct {
	ID            string        `json:"id"`
	CustomerID    string        `json:"customer_id"`
	CustomerName  string        `json:"customer_name"`
	ServiceName   string        `json:"service_name"`
	ScheduledTime time.Time     `json:"scheduled_time"`
	Status        BookingStatus `json:"status"`
	Channel       ChannelType   `json:"channel"`
	Recipient     string        `json:"recipient"`
}
