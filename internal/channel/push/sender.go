// Package push provides mobile push notification sending.
package push

import (
	"context"
	"errors"
	"log/slog"

	"github.com/bookline/notifier/internal/channel"
	"github.com/bookline/notifier/internal/domain"
)

// Config holds push sender configuration.
type Config struct {
	Enabled   bool
	ServerKey string
}

// Sender implements push notification sending.
type Sender struct {
	config Config
}

// NewSender creates a new push sender.
// Returns error if enabled but required config is missing.
func NewSender(config Config) (*Sender, error) {
	if config.Enabled {
		if config.ServerKey == "" {
			return nil, errors.New("push sender: server key is required when enabled")
		}
	}

	slog.Info("push sender configured",
		"enabled", config.Enabled,
	)

	return &Sender{config: config}, nil
}

// Type returns the channel type.
func (s *Sender) Type() domain.ChannelType {
	return domain.ChannelTypePush
}

// HealthCheck reports whether the sender is usable.
func (s *Sender) HealthCheck() domain.HealthStatus {
	if !s.config.Enabled {
		return domain.HealthStatus{Healthy: false, Message: "disabled"}
	}
	return domain.HealthStatus{Healthy: true}
}

// Send sends a push notification.
// TODO: wire up the FCM HTTP v1 API once a service account is provisioned.
func (s *Sender) Send(_ context.Context, msg domain.Message) error {
	if !s.config.Enabled {
		return &channel.ConfigurationError{Channel: "push", Message: "sender disabled"}
	}
	if msg.Recipient == "" {
		return &channel.ValidationError{Field: "recipient", Message: "device token is empty"}
	}

	slog.Info("sending push notification (stub)",
		"to", msg.Recipient,
		"subject", msg.Subject,
	)

	return nil
}
