// Package sms provides SMS notification sending via an HTTP gateway API.
package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/bookline/notifier/internal/channel"
	"github.com/bookline/notifier/internal/domain"
)

const defaultTimeout = 10 * time.Second

// Config holds SMS sender configuration.
type Config struct {
	Enabled    bool
	APIURL     string
	APIKey     string
	FromNumber string
	Timeout    time.Duration
}

// Sender implements SMS notification sending via a gateway HTTP API.
type Sender struct {
	config     Config
	httpClient *http.Client
}

// NewSender creates a new SMS sender.
func NewSender(config Config) *Sender {
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}

	slog.Info("sms sender configured",
		"enabled", config.Enabled,
		"api_url", config.APIURL,
		"from_number", config.FromNumber,
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
	return domain.ChannelTypeSMS
}

// HealthCheck reports whether the sender is usable.
func (s *Sender) HealthCheck() domain.HealthStatus {
	if !s.config.Enabled {
		return domain.HealthStatus{Healthy: false, Message: "disabled"}
	}
	if s.config.APIURL == "" || s.config.APIKey == "" {
		return domain.HealthStatus{Healthy: false, Message: "gateway not configured"}
	}
	return domain.HealthStatus{Healthy: true}
}

type gatewayRequest struct {
	To   string `json:"to"`
	From string `json:"from,omitempty"`
	Text string `json:"text"`
}

// Send sends an SMS through the gateway API. The subject is dropped;
// SMS carries body text only.
func (s *Sender) Send(ctx context.Context, msg domain.Message) error {
	if !s.config.Enabled {
		return &channel.ConfigurationError{Channel: "sms", Message: "sender disabled"}
	}
	if s.config.APIURL == "" || s.config.APIKey == "" {
		return &channel.ConfigurationError{Channel: "sms", Message: "gateway URL or API key missing"}
	}
	if msg.Recipient == "" {
		return &channel.ValidationError{Field: "recipient", Message: "phone number is empty"}
	}

	body, err := json.Marshal(gatewayRequest{
		To:   msg.Recipient,
		From: s.config.FromNumber,
		Text: msg.Body,
	})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.config.APIKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return &channel.RetryableError{Channel: "sms", Message: fmt.Sprintf("send request: %v", err)}
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
		slog.Debug("sms sent", "to", maskRecipient(recipient))
		return nil

	case resp.StatusCode == http.StatusTooManyRequests:
		return &channel.RetryableError{
			Channel: "sms",
			Code:    resp.StatusCode,
			Message: "rate limited by gateway",
		}

	case resp.StatusCode >= 500:
		return &channel.RetryableError{
			Channel: "sms",
			Code:    resp.StatusCode,
			Message: fmt.Sprintf("gateway error: %s", string(body)),
		}

	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &channel.PermanentError{
			Channel: "sms",
			Code:    resp.StatusCode,
			Message: "invalid API key",
		}

	default:
		return &channel.PermanentError{
			Channel: "sms",
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
