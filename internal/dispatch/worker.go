package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bookline/notifier/internal/domain"
	"github.com/bookline/notifier/internal/notify"
	"github.com/bookline/notifier/internal/queue"
)

// WorkerConfig contains worker configuration.
type WorkerConfig struct {
	BatchSize    int
	PollInterval time.Duration
	NumWorkers   int
	BaseDelay    time.Duration
	MaxBackoff   time.Duration
}

// DefaultWorkerConfig returns default worker configuration.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		BatchSize:    50,
		PollInterval: 5 * time.Second,
		NumWorkers:   4,
		BaseDelay:    1 * time.Second,
		MaxBackoff:   5 * time.Minute,
	}
}

// DeliveryListener observes the outcome of every send attempt.
type DeliveryListener func(result domain.DeliveryResult)

// Worker drains due jobs from the queue and delivers them.
type Worker struct {
	config     WorkerConfig
	store      queue.Store
	dispatcher *Dispatcher
	renderer   *notify.Renderer
	gate       *RateGate
	onDelivery DeliveryListener

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewWorker creates a new dispatch worker.
func NewWorker(config WorkerConfig, store queue.Store, dispatcher *Dispatcher, renderer *notify.Renderer, gate *RateGate) *Worker {
	return &Worker{
		config:     config,
		store:      store,
		dispatcher: dispatcher,
		renderer:   renderer,
		gate:       gate,
		stopCh:     make(chan struct{}),
	}
}

// OnDelivery registers a listener invoked after every send attempt.
// Must be called before Start.
func (w *Worker) OnDelivery(listener DeliveryListener) {
	w.onDelivery = listener
}

// Start launches worker goroutines. Each claims its own batches, so
// concurrent workers never process the same job twice.
func (w *Worker) Start(ctx context.Context) {
	slog.Info("starting dispatch worker",
		"workers", w.config.NumWorkers,
		"batch_size", w.config.BatchSize,
		"poll_interval", w.config.PollInterval,
	)

	for i := 0; i < w.config.NumWorkers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i)
	}

	w.wg.Add(1)
	go w.maintenanceLoop(ctx)
}

// Stop gracefully stops all workers, waiting for in-flight jobs.
func (w *Worker) Stop() {
	close(w.stopCh)
	w.wg.Wait()
	slog.Info("dispatch worker stopped")
}

func (w *Worker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.processBatch(ctx, workerID)
		}
	}
}

// staleClaimAge is how long a job may sit in processing before it is
// assumed orphaned by a crashed worker.
const staleClaimAge = 5 * time.Minute

// maintenanceLoop refreshes queue depth gauges and releases claims
// orphaned by crashed workers.
func (w *Worker) maintenanceLoop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			if released, err := w.store.ReleaseStale(ctx, staleClaimAge); err != nil {
				slog.Error("failed to release stale claims", "error", err)
			} else if released > 0 {
				slog.Warn("released stale job claims", "count", released)
			}

			stats, err := w.store.Stats(ctx)
			if err != nil {
				slog.Error("failed to read queue stats", "error", err)
				continue
			}
			RecordQueueStats(stats)
		}
	}
}

func (w *Worker) processBatch(ctx context.Context, workerID int) {
	jobs, err := w.store.DequeueReady(ctx, time.Now(), w.config.BatchSize)
	if err != nil {
		slog.Error("failed to dequeue jobs", "worker", workerID, "error", err)
		return
	}

	if len(jobs) == 0 {
		return
	}

	slog.Debug("processing jobs", "worker", workerID, "count", len(jobs))
	recordJobsClaimed(len(jobs))

	for _, job := range jobs {
		w.processJob(ctx, job)
	}
}

// processJob delivers a single claimed job. A panic inside a sender is
// contained here so one poisoned job cannot take down the worker.
func (w *Worker) processJob(ctx context.Context, job *queue.Job) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic while processing job", "job_id", job.ID, "panic", r)
			w.handleSendError(ctx, job, fmt.Errorf("panic: %v", r))
		}
	}()

	start := time.Now()

	var payload notify.Payload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		slog.Error("malformed job payload", "job_id", job.ID, "error", err)
		w.finishDead(ctx, job, fmt.Errorf("unmarshal payload: %w", err))
		return
	}

	subject, body, err := w.renderer.Render(job.Channel, payload)
	if err != nil {
		slog.Error("failed to render", "job_id", job.ID, "error", err)
		w.finishDead(ctx, job, err)
		return
	}

	msg := domain.Message{
		Channel:   job.Channel,
		Recipient: job.Recipient,
		Subject:   subject,
		Body:      body,
	}
	if payload.Alert != nil {
		msg.UserID = payload.Alert.UserID
	}

	if err := w.gate.Wait(ctx, job.Channel); err != nil {
		// Shutdown mid-wait. The job stays claimed and is picked up
		// again once the stale-claim sweeper releases it.
		slog.Warn("rate gate interrupted", "job_id", job.ID, "error", err)
		return
	}

	err = w.dispatcher.Send(ctx, msg)
	duration := time.Since(start)

	if err != nil {
		w.notifyDelivery(job, msg, err)
		w.handleSendError(ctx, job, err)
		return
	}

	if err := w.store.MarkSent(ctx, job.ID); err != nil {
		slog.Error("failed to mark job sent", "job_id", job.ID, "error", err)
	}

	w.notifyDelivery(job, msg, nil)
	recordJobProcessed(string(job.Channel), "success")
	recordSendDuration(string(job.Channel), duration)

	slog.Debug("notification sent",
		"job_id", job.ID,
		"channel_type", job.Channel,
		"attempt", job.Attempts,
		"duration", duration,
	)
}

func (w *Worker) handleSendError(ctx context.Context, job *queue.Job, err error) {
	slog.Warn("send failed",
		"job_id", job.ID,
		"attempt", job.Attempts,
		"max_attempts", job.MaxAttempts,
		"error", err,
	)

	if !isRetryable(err) {
		w.finishDead(ctx, job, err)
		return
	}

	if job.Attempts >= job.MaxAttempts {
		w.finishDead(ctx, job, fmt.Errorf("max attempts exceeded: %w", err))
		return
	}

	nextDue := time.Now().Add(w.backoff(job.Attempts))
	if markErr := w.store.Reschedule(ctx, job.ID, nextDue, err); markErr != nil {
		slog.Error("failed to reschedule job", "job_id", job.ID, "error", markErr)
	}
	recordJobProcessed(string(job.Channel), "retry")

	slog.Info("job scheduled for retry",
		"job_id", job.ID,
		"next_due", nextDue,
	)
}

func (w *Worker) finishDead(ctx context.Context, job *queue.Job, err error) {
	if markErr := w.store.MarkDead(ctx, job.ID, err); markErr != nil {
		slog.Error("failed to mark job dead", "job_id", job.ID, "error", markErr)
	}
	recordJobProcessed(string(job.Channel), "dead")

	slog.Error("job moved to dead letter",
		"job_id", job.ID,
		"channel_type", job.Channel,
		"attempts", job.Attempts,
		"error", err,
	)
}

func (w *Worker) notifyDelivery(job *queue.Job, msg domain.Message, err error) {
	if w.onDelivery == nil {
		return
	}

	result := domain.DeliveryResult{
		JobID:     job.ID,
		Channel:   job.Channel,
		Recipient: msg.Recipient,
		Attempt:   job.Attempts,
		Success:   err == nil,
	}
	if err != nil {
		result.Error = err.Error()
	}
	w.onDelivery(result)
}

// backoff returns the delay before the next attempt, doubling per
// attempt from BaseDelay up to MaxBackoff.
func (w *Worker) backoff(attempt int) time.Duration {
	backoff := float64(w.config.BaseDelay)
	for i := 1; i < attempt; i++ {
		backoff *= 2
	}

	if backoff > float64(w.config.MaxBackoff) {
		backoff = float64(w.config.MaxBackoff)
	}
	return time.Duration(backoff)
}

// isRetryable checks if an error is retryable. Errors that do not
// classify themselves default to retryable.
func isRetryable(err error) bool {
	type retryable interface {
		IsRetryable() bool
	}
	if r, ok := err.(retryable); ok {
		return r.IsRetryable()
	}
	return true
}
