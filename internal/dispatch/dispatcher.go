// Package dispatch delivers queued notification jobs through channel
// senders with retry, rate limiting and per-channel circuit breaking.
package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/bookline/notifier/internal/channel"
	"github.com/bookline/notifier/internal/domain"
	"github.com/sony/gobreaker"
)

// ErrNoSender is returned when no sender is registered for a channel.
var ErrNoSender = errors.New("no sender for channel type")

// Dispatcher routes messages to the sender registered for their channel.
// Every send passes through that channel's circuit breaker.
type Dispatcher struct {
	senders  map[domain.ChannelType]channel.Sender
	breakers map[domain.ChannelType]*gobreaker.CircuitBreaker
}

// NewDispatcher creates a dispatcher over the given senders.
func NewDispatcher(senders ...channel.Sender) *Dispatcher {
	senderMap := make(map[domain.ChannelType]channel.Sender)
	breakerMap := make(map[domain.ChannelType]*gobreaker.CircuitBreaker)
	for _, s := range senders {
		senderMap[s.Type()] = s
		breakerMap[s.Type()] = newChannelBreaker(s.Type())
	}
	return &Dispatcher{
		senders:  senderMap,
		breakers: breakerMap,
	}
}

// Send delivers the message through the sender for its channel.
// An open breaker surfaces as a retryable error so the job backs off
// instead of dying.
func (d *Dispatcher) Send(ctx context.Context, msg domain.Message) error {
	sender, ok := d.senders[msg.Channel]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoSender, msg.Channel)
	}

	breaker := d.breakers[msg.Channel]
	_, err := breaker.Execute(func() (interface{}, error) {
		return nil, sender.Send(ctx, msg)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return &channel.RetryableError{
				Channel: string(msg.Channel),
				Message: fmt.Sprintf("circuit breaker: %v", err),
			}
		}
		return err
	}
	return nil
}

// HasSender reports whether a sender is registered for the channel.
func (d *Dispatcher) HasSender(channelType domain.ChannelType) bool {
	_, ok := d.senders[channelType]
	return ok
}

// HealthCheck reports health per registered channel.
func (d *Dispatcher) HealthCheck() map[domain.ChannelType]domain.HealthStatus {
	statuses := make(map[domain.ChannelType]domain.HealthStatus, len(d.senders))
	for channelType, sender := range d.senders {
		statuses[channelType] = sender.HealthCheck()
	}
	return statuses
}
