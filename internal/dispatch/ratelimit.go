package dispatch

import (
	"context"
	"time"

	"github.com/bookline/notifier/internal/domain"
	"golang.org/x/time/rate"
)

// RateGate spaces sends per channel so no provider sees a burst. Each
// channel gets its own token bucket refilled once per minInterval.
type RateGate struct {
	limiters map[domain.ChannelType]*rate.Limiter
}

// NewRateGate creates a gate for all known channel types.
func NewRateGate(minInterval time.Duration) *RateGate {
	limiters := make(map[domain.ChannelType]*rate.Limiter)
	for _, ch := range domain.AllChannelTypes() {
		limiters[ch] = rate.NewLimiter(rate.Every(minInterval), 1)
	}
	return &RateGate{limiters: limiters}
}

// Wait blocks until the channel may send again or the context ends.
// Unknown channels pass through without waiting.
func (g *RateGate) Wait(ctx context.Context, channelType domain.ChannelType) error {
	limiter, ok := g.limiters[channelType]
	if !ok {
		return nil
	}
	return limiter.Wait(ctx)
}

// Allow reports whether the channel may send immediately, consuming a
// token if so.
func (g *RateGate) Allow(channelType domain.ChannelType) bool {
	limiter, ok := g.limiters[channelType]
	if !ok {
		return true
	}
	return limiter.Allow()
}
