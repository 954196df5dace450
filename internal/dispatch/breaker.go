package dispatch

import (
	"log/slog"
	"time"

	"github.com/bookline/notifier/internal/domain"
	"github.com/sony/gobreaker"
)

// newChannelBreaker creates a circuit breaker guarding one channel's
// provider. The breaker opens after repeated failures so a dead
// provider does not burn retry budget across the whole queue.
func newChannelBreaker(channelType domain.ChannelType) *gobreaker.CircuitBreaker {
	settings := gobreaker.Settings{
		Name:        string(channelType),
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("channel breaker state changed",
				"channel_type", name,
				"from", from.String(),
				"to", to.String(),
			)
			recordBreakerState(name, to)
		},
	}
	return gobreaker.NewCircuitBreaker(settings)
}
