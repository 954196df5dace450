package alerts

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/bookline/notifier/internal/domain"
	"github.com/bookline/notifier/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrEventNotFound, Status: http.StatusNotFound, Message: "event not found"},
	{Error: ErrPreferencesNotFound, Status: http.StatusNotFound, Message: "preferences not found"},
}

// Handler handles HTTP requests for the alerts module.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new alerts handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterRoutes registers alert routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/events", func(r chi.Router) {
		r.Post("/", h.SubmitEvent)
		r.Get("/{id}", h.GetEvent)
	})

	r.Route("/users/{userID}/preferences", func(r chi.Router) {
		r.Get("/", h.GetPreferences)
		r.Put("/", h.SavePreferences)
	})
}

// SubmitEventRequest represents the request body for submitting an event.
type SubmitEventRequest struct {
	ID        string         `json:"id" validate:"required"`
	Type      string         `json:"type" validate:"required"`
	UserID    string         `json:"user_id" validate:"required"`
	Data      map[string]any `json:"data"`
	Severity  string         `json:"severity" validate:"omitempty,oneof=low medium high critical"`
	Timestamp time.Time      `json:"timestamp"`
}

// SubmitEvent handles POST /events.
func (h *Handler) SubmitEvent(w http.ResponseWriter, r *http.Request) {
	var req SubmitEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	result, err := h.service.Submit(r.Context(), domain.NotificationEvent{
		ID:        req.ID,
		Type:      domain.EventType(req.Type),
		UserID:    req.UserID,
		Data:      req.Data,
		Severity:  domain.Severity(req.Severity),
		Timestamp: req.Timestamp,
	})
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	status := http.StatusAccepted
	if result.Duplicate {
		status = http.StatusOK
	}
	httputil.Success(w, status, result)
}

// GetEvent handles GET /events/{id}.
func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.service.Event(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, event)
}

// PreferencesRequest represents the request body for saving preferences.
type PreferencesRequest struct {
	Channels []ChannelPreferenceRequest `json:"channels" validate:"dive"`
	// EventTypes is an allow-list; empty means all event types.
	EventTypes  []string `json:"event_types"`
	MinPriority string   `json:"min_priority" validate:"omitempty,oneof=low medium high critical"`
}

// ChannelPreferenceRequest is a single channel entry in a preferences request.
type ChannelPreferenceRequest struct {
	Type    string `json:"type" validate:"required,oneof=email sms push in_app whatsapp"`
	Enabled bool   `json:"enabled"`
	Target  string `json:"target"`
}

// GetPreferences handles GET /users/{userID}/preferences.
func (h *Handler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	prefs, err := h.service.Preferences(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, prefs)
}

// SavePreferences handles PUT /users/{userID}/preferences.
func (h *Handler) SavePreferences(w http.ResponseWriter, r *http.Request) {
	var req PreferencesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	prefs := &domain.UserNotificationPreferences{
		UserID:      chi.URLParam(r, "userID"),
		MinPriority: domain.Severity(req.MinPriority),
	}
	for _, ch := range req.Channels {
		prefs.Channels = append(prefs.Channels, domain.ChannelPreference{
			Type:    domain.ChannelType(ch.Type),
			Enabled: ch.Enabled,
			Target:  ch.Target,
		})
	}
	for _, et := range req.EventTypes {
		prefs.EventTypes = append(prefs.EventTypes, domain.EventType(et))
	}

	if err := h.service.SavePreferences(r.Context(), prefs); err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, prefs)
}
