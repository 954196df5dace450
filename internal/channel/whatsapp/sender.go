// Package whatsapp provides WhatsApp notification sending via the
// Business Cloud API.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"github.com/bookline/notifier/internal/channel"
	"github.com/bookline/notifier/internal/domain"
)

const defaultTimeout = 10 * time.Second

// e164Pattern matches international phone numbers: a plus sign, a
// non-zero leading digit and up to 14 further digits.
var e164Pattern = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)

// Config holds WhatsApp sender configuration.
type Config struct {
	Enabled       bool
	APIURL        string
	AccessToken   string
	PhoneNumberID string
	Timeout       time.Duration
}

// Sender implements WhatsApp notification sending.
type Sender struct {
	config     Config
	httpClient *http.Client
}

// NewSender creates a new WhatsApp sender.
func NewSender(config Config) *Sender {
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}

	slog.Info("whatsapp sender configured",
		"enabled", config.Enabled,
		"phone_number_id", config.PhoneNumberID,
	)

	return &Sender{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// Type returns the channel type.
func (s *Sender) Type() domain.ChannelType {
	return domain.ChannelTypeWhatsApp
}

// HealthCheck reports whether the sender is usable.
func (s *Sender) HealthCheck() domain.HealthStatus {
	if !s.config.Enabled {
		return domain.HealthStatus{Healthy: false, Message: "disabled"}
	}
	if s.config.AccessToken == "" || s.config.PhoneNumberID == "" {
		return domain.HealthStatus{Healthy: false, Message: "api credentials not configured"}
	}
	return domain.HealthStatus{Healthy: true}
}

// ValidRecipient reports whether the number is in E.164 format.
func ValidRecipient(number string) bool {
	return e164Pattern.MatchString(number)
}

type apiRequest struct {
	MessagingProduct string  `json:"messaging_product"`
	To               string  `json:"to"`
	Type             string  `json:"type"`
	Text             apiText `json:"text"`
}

type apiText struct {
	Body string `json:"body"`
}

// Send sends a WhatsApp text message. The recipient must be a phone
// number in E.164 format; anything else fails before a network call is
// made.
func (s *Sender) Send(ctx context.Context, msg domain.Message) error {
	if !s.config.Enabled {
		return &channel.ConfigurationError{Channel: "whatsapp", Message: "sender disabled"}
	}
	if s.config.AccessToken == "" || s.config.PhoneNumberID == "" {
		return &channel.ConfigurationError{Channel: "whatsapp", Message: "access token or phone number id missing"}
	}
	if !ValidRecipient(msg.Recipient) {
		return &channel.ValidationError{
			Field:   "recipient",
			Message: fmt.Sprintf("%q is not a valid E.164 phone number", msg.Recipient),
		}
	}

	body, err := json.Marshal(apiRequest{
		MessagingProduct: "whatsapp",
		To:               msg.Recipient,
		Type:             "text",
		Text:             apiText{Body: msg.Body},
	})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", s.config.APIURL, s.config.PhoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.config.AccessToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return &channel.RetryableError{Channel: "whatsapp", Message: fmt.Sprintf("send request: %v", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	return s.handleResponse(resp, msg.Recipient)
}

func (s *Sender) handleResponse(resp *http.Response, recipient string) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		slog.Debug("whatsapp message sent", "to", maskRecipient(recipient))
		return nil

	case resp.StatusCode == http.StatusUnauthorized:
		return &channel.PermanentError{
			Channel: "whatsapp",
			Code:    resp.StatusCode,
			Message: "invalid or expired access token",
		}

	case resp.StatusCode == http.StatusTooManyRequests:
		return &channel.RetryableError{
			Channel: "whatsapp",
			Code:    resp.StatusCode,
			Message: "rate limited by api",
		}

	case resp.StatusCode >= 500:
		return &channel.RetryableError{
			Channel: "whatsapp",
			Code:    resp.StatusCode,
			Message: fmt.Sprintf("server error: %s", string(body)),
		}

	default:
		return &channel.PermanentError{
			Channel: "whatsapp",
			Code:    resp.StatusCode,
			Message: fmt.Sprintf("rejected: %s", string(body)),
		}
	}
}

// maskRecipient hides the middle digits of a phone number for logging.
func maskRecipient(number string) string {
	if len(number) <= 6 {
		return number
	}
	return number[:4] + "***" + number[len(number)-2:]
}
