package dispatch

import (
	"time"

	"github.com/bookline/notifier/internal/queue"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker"
)

const namespace = "bookline_notifier"

var (
	queueSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "queue_size",
			Help:      "Number of jobs in queue by status",
		},
		[]string{"status"},
	)

	jobsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "jobs_total",
			Help:      "Total jobs processed by channel and outcome",
		},
		[]string{"channel_type", "status"},
	)

	sendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "send_duration_seconds",
			Help:      "Time to deliver a notification",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"channel_type"},
	)

	jobsClaimed = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "jobs_claimed_total",
			Help:      "Total jobs claimed from the queue before send attempt",
		},
	)

	breakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "breaker_state",
			Help:      "Circuit breaker state per channel (0 closed, 1 half-open, 2 open)",
		},
		[]string{"channel_type"},
	)
)

// recordJobProcessed records a processed job metric.
func recordJobProcessed(channelType, status string) {
	jobsProcessed.WithLabelValues(channelType, status).Inc()
}

// recordSendDuration records delivery duration.
func recordSendDuration(channelType string, duration time.Duration) {
	sendDuration.WithLabelValues(channelType).Observe(duration.Seconds())
}

// recordJobsClaimed records the number of jobs claimed from the queue.
func recordJobsClaimed(count int) {
	jobsClaimed.Add(float64(count))
}

// recordBreakerState records a breaker state transition.
func recordBreakerState(channelType string, state gobreaker.State) {
	var v float64
	switch state {
	case gobreaker.StateClosed:
		v = 0
	case gobreaker.StateHalfOpen:
		v = 1
	case gobreaker.StateOpen:
		v = 2
	}
	breakerState.WithLabelValues(channelType).Set(v)
}

// RecordQueueStats updates queue size gauges.
func RecordQueueStats(stats *queue.Stats) {
	queueSize.WithLabelValues("pending").Set(float64(stats.Pending))
	queueSize.WithLabelValues("processing").Set(float64(stats.Processing))
	queueSize.WithLabelValues("sent").Set(float64(stats.Sent))
	queueSize.WithLabelValues("dead").Set(float64(stats.Dead))
}
