// Package channel defines the notification transport contract shared by
// all channel adapters.
package channel

import (
	"context"

	"github.com/bookline/notifier/internal/domain"
)

// Sender is the uniform send capability implemented per transport.
type Sender interface {
	// Type returns the channel type this sender handles.
	Type() domain.ChannelType

	// Send delivers a single message. Errors implement IsRetryable()
	// where the retry decision differs from the default.
	Send(ctx context.Context, msg domain.Message) error

	// HealthCheck reports whether required credentials and configuration
	// are present, independent of any send attempt.
	HealthCheck() domain.HealthStatus
}
