package worker

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/masjidconnect/reminder-service/internal/config"
	"github.com/masjidconnect/reminder-service/internal/domain"
	"github.com/masjidconnect/reminder-service/internal/metrics"
)

const maxBackoff = 30 * time.Second

// Deactivator marks recipients whose endpoint is permanently gone.
type Deactivator interface {
	Deactivate(ctx context.Context, ids []uuid.UUID) error
}

// Dispatcher fans one message out to many recipients with bounded
// concurrency. A failing or panicking send affects only its own recipient.
type Dispatcher struct {
	transport   domain.Transport
	rateLimiter domain.RateLimiter
	deactivator Deactivator
	logger      *slog.Logger
	metrics     *metrics.Metrics
	config      config.DispatchConfig
	retry       config.RetryConfig
}

// NewDispatcher creates a Dispatcher. rateLimiter, deactivator and m may be nil.
func NewDispatcher(
	transport domain.Transport,
	rateLimiter domain.RateLimiter,
	deactivator Deactivator,
	logger *slog.Logger,
	m *metrics.Metrics,
	dispatchConfig config.DispatchConfig,
	retryConfig config.RetryConfig,
) *Dispatcher {
	if dispatchConfig.Concurrency <= 0 {
		dispatchConfig.Concurrency = 10
	}
	if dispatchConfig.UpdateBatchSize <= 0 {
		dispatchConfig.UpdateBatchSize = 100
	}
	return &Dispatcher{
		transport:   transport,
		rateLimiter: rateLimiter,
		deactivator: deactivator,
		logger:      logger,
		metrics:     m,
		config:      dispatchConfig,
		retry:       retryConfig,
	}
}

// Dispatch attempts every recipient and waits for all of them. Recipients the
// transport reports as gone are deactivated in bulk once the pool drains.
func (d *Dispatcher) Dispatch(ctx context.Context, recipients []domain.Recipient, msg domain.Message) *domain.DispatchResult {
	results := make([]domain.RecipientResult, len(recipients))

	var g errgroup.Group
	g.SetLimit(d.config.Concurrency)
	for i, r := range recipients {
		g.Go(func() error {
			results[i] = d.sendOne(ctx, r, msg)
			return nil
		})
	}
	_ = g.Wait()

	out := &domain.DispatchResult{
		Total:     len(recipients),
		Succeeded: make([]uuid.UUID, 0, len(recipients)),
		Expired:   make([]uuid.UUID, 0),
		Results:   results,
	}
	for _, res := range results {
		switch {
		case res.Success:
			out.Successful++
			out.Succeeded = append(out.Succeeded, res.SubscriberID)
		case res.Permanent:
			out.Failed++
			out.Expired = append(out.Expired, res.SubscriberID)
		default:
			out.Failed++
		}
	}

	if len(out.Expired) > 0 {
		d.deactivate(ctx, out.Expired)
	}

	return out
}

func (d *Dispatcher) sendOne(ctx context.Context, to domain.Recipient, msg domain.Message) (res domain.RecipientResult) {
	res.SubscriberID = to.SubscriberID

	defer func() {
		if p := recover(); p != nil {
			d.logger.Error("panic during send",
				"subscriber_id", to.SubscriberID,
				"channel", to.Channel,
				"panic", p,
			)
			res.Success = false
			res.Error = fmt.Sprintf("panic: %v", p)
		}
	}()

	for attempt := 1; ; attempt++ {
		res.Attempts = attempt

		if d.rateLimiter != nil {
			if err := d.rateLimiter.Wait(ctx, to.Channel); err != nil {
				res.Error = fmt.Sprintf("rate limiter: %v", err)
				return res
			}
		}

		err := d.send(ctx, to, msg)
		if err == nil {
			res.Success = true
			res.Error = ""
			return res
		}
		res.Error = err.Error()

		if domain.IsPermanentFailure(err) {
			res.Permanent = true
			return res
		}
		if !domain.IsRetryable(err) || attempt > d.retry.MaxCount {
			d.logger.Warn("send failed",
				"subscriber_id", to.SubscriberID,
				"channel", to.Channel,
				"attempts", attempt,
				"error", err,
			)
			return res
		}

		select {
		case <-ctx.Done():
			res.Error = ctx.Err().Error()
			return res
		case <-time.After(d.calculateBackoff(attempt)):
		}
	}
}

func (d *Dispatcher) send(ctx context.Context, to domain.Recipient, msg domain.Message) error {
	if d.config.SendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.config.SendTimeout)
		defer cancel()
	}

	start := time.Now()
	_, err := d.transport.Send(ctx, to, msg)
	if d.metrics != nil {
		d.metrics.RecordSendLatency(string(to.Channel), time.Since(start))
	}
	return err
}

// calculateBackoff calculates exponential backoff delay
func (d *Dispatcher) calculateBackoff(attempt int) time.Duration {
	multiplier := math.Pow(2, float64(attempt-1))
	delay := time.Duration(float64(d.retry.BaseDelay) * multiplier)
	if delay > maxBackoff {
		delay = maxBackoff
	}
	return delay
}

func (d *Dispatcher) deactivate(ctx context.Context, ids []uuid.UUID) {
	if d.deactivator == nil {
		return
	}
	err := ForEachChunk(ids, d.config.UpdateBatchSize, func(chunk []uuid.UUID) error {
		return d.deactivator.Deactivate(ctx, chunk)
	})
	if err != nil {
		d.logger.Error("failed to deactivate expired subscribers",
			"count", len(ids),
			"error", err,
		)
		return
	}
	if d.metrics != nil {
		d.metrics.RecordDeactivated(len(ids))
	}
	d.logger.Info("deactivated expired subscribers", "count", len(ids))
}

// ForEachChunk calls fn with consecutive slices of at most size items. It
// stops at the first error.
func ForEachChunk[T any](items []T, size int, fn func([]T) error) error {
	if size <= 0 {
		size = len(items)
	}
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		if err := fn(items[start:end]); err != nil {
			return err
		}
	}
	return nil
}
