package scheduler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/bookline/notifier/internal/domain"
	"github.com/bookline/notifier/internal/pkg/httputil"
	"github.com/bookline/notifier/internal/queue"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// Handler handles HTTP requests for reminder scheduling.
type Handler struct {
	scheduler *Scheduler
	store     queue.Store
	validator *validator.Validate
}

// NewHandler creates a new scheduler handler.
func NewHandler(scheduler *Scheduler, store queue.Store) *Handler {
	return &Handler{
		scheduler: scheduler,
		store:     store,
		validator: validator.New(),
	}
}

// RegisterRoutes registers scheduling routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/bookings", func(r chi.Router) {
		r.Post("/confirmed", h.BookingConfirmed)
		r.Post("/rescheduled", h.BookingRescheduled)
		r.Delete("/{id}/reminders", h.BookingCancelled)
	})

	r.Get("/reminders", h.ListReminders)
	r.Get("/queue/stats", h.QueueStats)
}

// BookingRequest represents the booking carried by scheduling calls.
type BookingRequest struct {
	ID            string    `json:"id" validate:"required"`
	CustomerID    string    `json:"customer_id"`
	CustomerName  string    `json:"customer_name" validate:"required"`
	ServiceName   string    `json:"service_name" validate:"required"`
	ScheduledTime time.Time `json:"scheduled_time" validate:"required"`
	Channel       string    `json:"channel" validate:"required,oneof=email sms push in_app whatsapp"`
	Recipient     string    `json:"recipient" validate:"required"`
}

func (req BookingRequest) toBooking() domain.Booking {
	return domain.Booking{
		ID:            req.ID,
		CustomerID:    req.CustomerID,
		CustomerName:  req.CustomerName,
		ServiceName:   req.ServiceName,
		ScheduledTime: req.ScheduledTime,
		Status:        domain.BookingStatusConfirmed,
		Channel:       domain.ChannelType(req.Channel),
		Recipient:     req.Recipient,
	}
}

// ScheduleResponse reports how many jobs a scheduling call enqueued.
type ScheduleResponse struct {
	BookingID string `json:"booking_id"`
	Enqueued  int    `json:"enqueued"`
}

// CancelResponse reports how many jobs a cancellation removed.
type CancelResponse struct {
	BookingID string `json:"booking_id"`
	Removed   int64  `json:"removed"`
}

// BookingConfirmed handles POST /bookings/confirmed.
func (h *Handler) BookingConfirmed(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeBooking(w, r)
	if !ok {
		return
	}

	enqueued, err := h.scheduler.OnBookingConfirmed(r.Context(), req.toBooking())
	if err != nil {
		httputil.HandleError(r.Context(), w, err, nil)
		return
	}

	httputil.Success(w, http.StatusCreated, ScheduleResponse{BookingID: req.ID, Enqueued: enqueued})
}

// BookingRescheduled handles POST /bookings/rescheduled.
func (h *Handler) BookingRescheduled(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeBooking(w, r)
	if !ok {
		return
	}

	enqueued, err := h.scheduler.OnBookingRescheduled(r.Context(), req.toBooking())
	if err != nil {
		httputil.HandleError(r.Context(), w, err, nil)
		return
	}

	httputil.Success(w, http.StatusOK, ScheduleResponse{BookingID: req.ID, Enqueued: enqueued})
}

// BookingCancelled handles DELETE /bookings/{id}/reminders.
func (h *Handler) BookingCancelled(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "id")

	removed, err := h.scheduler.OnBookingCancelled(r.Context(), bookingID)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, nil)
		return
	}

	httputil.Success(w, http.StatusOK, CancelResponse{BookingID: bookingID, Removed: removed})
}

// ListReminders handles GET /reminders.
func (h *Handler) ListReminders(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.scheduler.ActiveReminders(r.Context())
	if err != nil {
		httputil.HandleError(r.Context(), w, err, nil)
		return
	}

	httputil.Success(w, http.StatusOK, toJobViews(jobs))
}

// QueueStats handles GET /queue/stats.
func (h *Handler) QueueStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Stats(r.Context())
	if err != nil {
		httputil.HandleError(r.Context(), w, err, nil)
		return
	}

	httputil.Success(w, http.StatusOK, stats)
}

func (h *Handler) decodeBooking(w http.ResponseWriter, r *http.Request) (BookingRequest, bool) {
	var req BookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return req, false
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return req, false
	}

	// Phone-based channels need an E.164 recipient.
	if req.Channel == string(domain.ChannelTypeSMS) || req.Channel == string(domain.ChannelTypeWhatsApp) {
		if err := h.validator.Var(req.Recipient, "e164"); err != nil {
			httputil.Error(w, http.StatusBadRequest, "recipient must be an E.164 phone number")
			return req, false
		}
	}
	return req, true
}

// JobView is the external representation of a queued job.
type JobView struct {
	ID        string             `json:"id"`
	Kind      queue.Kind         `json:"kind"`
	BookingID string             `json:"booking_id,omitempty"`
	Channel   domain.ChannelType `json:"channel"`
	Recipient string             `json:"recipient"`
	Attempts  int                `json:"attempts"`
	DueAt     time.Time          `json:"due_at"`
}

func toJobViews(jobs []*queue.Job) []JobView {
	views := make([]JobView, 0, len(jobs))
	for _, job := range jobs {
		views = append(views, JobView{
			ID:        job.ID,
			Kind:      job.Kind,
			BookingID: job.BookingID,
			Channel:   job.Channel,
			Recipient: job.Recipient,
			Attempts:  job.Attempts,
			DueAt:     job.DueAt,
		})
	}
	return views
}
