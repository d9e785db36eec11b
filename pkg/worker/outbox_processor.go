package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
	"github.com/jwalitptl/booking-api/pkg/logger"
	"github.com/jwalitptl/booking-api/pkg/messaging"
	"github.com/jwalitptl/booking-api/pkg/metrics"
)

type OutboxProcessorConfig struct {
	BatchSize     int
	PollInterval  time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
}

// OutboxProcessor relays outbox events to the broker. Each event is
// published under its event type as the topic.
type OutboxProcessor struct {
	repo    repository.OutboxRepository
	broker  messaging.Broker
	config  OutboxProcessorConfig
	logger  *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewOutboxProcessor(
	repo repository.OutboxRepository,
	broker messaging.Broker,
	config OutboxProcessorConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *OutboxProcessor {
	// Config validation instead of defaults
	if config.BatchSize <= 0 {
		panic("BatchSize must be greater than 0")
	}
	if config.PollInterval <= 0 {
		panic("PollInterval must be greater than 0")
	}
	if config.RetryAttempts <= 0 {
		panic("RetryAttempts must be greater than 0")
	}
	if config.RetryDelay <= 0 {
		panic("RetryDelay must be greater than 0")
	}

	return &OutboxProcessor{
		repo:    repo,
		broker:  broker,
		config:  config,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

func (p *OutboxProcessor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.logger.Info("Starting outbox processor", "batch_size", p.config.BatchSize, "poll_interval", p.config.PollInterval)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Shutting down outbox processor")
			return
		case <-ticker.C:
			if _, err := p.ProcessBatch(ctx); err != nil {
				p.logger.Error(err, "Failed to process events")
			}
		}
	}
}

// ProcessBatch claims one batch of due events and relays them. It returns the
// number of events published successfully.
func (p *OutboxProcessor) ProcessBatch(ctx context.Context) (int, error) {
	timer := prometheus.NewTimer(p.metrics.OutboxProcessingLatency)
	defer timer.ObserveDuration()

	events, err := p.repo.ClaimPending(ctx, p.config.BatchSize)
	if err != nil {
		p.metrics.DatabaseOperations.WithLabelValues("claim_pending_events", "error").Inc()
		return 0, fmt.Errorf("failed to claim pending events: %w", err)
	}
	p.metrics.DatabaseOperations.WithLabelValues("claim_pending_events", "success").Inc()

	published := 0
	for _, event := range events {
		if err := p.processEvent(ctx, event); err != nil {
			p.logger.Error(err, "Failed to process event",
				"event_id", event.ID.String(),
				"event_type", event.EventType,
				"retry_count", event.RetryCount)
			continue
		}
		published++
	}

	return published, nil
}

func (p *OutboxProcessor) processEvent(ctx context.Context, event *model.OutboxEvent) error {
	msg := messaging.Message{
		ID:         event.ID.String(),
		Type:       event.EventType,
		Payload:    event.Payload,
		OccurredAt: event.CreatedAt,
	}

	if err := p.broker.Publish(ctx, event.EventType, msg); err != nil {
		p.fail(ctx, event, err)
		return err
	}

	p.metrics.OutboxEventsProcessed.Inc()
	if err := p.repo.UpdateStatus(ctx, event.ID, model.OutboxStatusProcessed, nil, nil); err != nil {
		p.metrics.DatabaseOperations.WithLabelValues("update_event_status", "error").Inc()
		return fmt.Errorf("failed to mark event processed: %w", err)
	}
	p.metrics.DatabaseOperations.WithLabelValues("update_event_status", "success").Inc()
	return nil
}

// fail puts the event back to pending with a backoff until it has used up
// RetryAttempts deliveries, then marks it failed.
func (p *OutboxProcessor) fail(ctx context.Context, event *model.OutboxEvent, cause error) {
	errStr := cause.Error()
	status := model.OutboxStatusFailed
	var retryAt *time.Time

	if event.RetryCount+1 < p.config.RetryAttempts {
		at := p.now().Add(p.backoff(event.RetryCount))
		retryAt = &at
		status = model.OutboxStatusPending
		p.metrics.OutboxRetries.WithLabelValues(event.EventType).Inc()
	} else {
		p.metrics.OutboxEventsFailed.Inc()
	}

	if err := p.repo.UpdateStatus(ctx, event.ID, status, &errStr, retryAt); err != nil {
		p.metrics.DatabaseOperations.WithLabelValues("update_event_status", "error").Inc()
		p.logger.Error(err, "Failed to update event status", "event_id", event.ID.String())
		return
	}
	p.metrics.DatabaseOperations.WithLabelValues("update_event_status", "success").Inc()
}

// backoff doubles RetryDelay per previous attempt, capped at 64x.
func (p *OutboxProcessor) backoff(retries int) time.Duration {
	if retries > 6 {
		retries = 6
	}
	return p.config.RetryDelay << uint(retries)
}
