package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
	"github.com/jwalitptl/booking-api/pkg/logger"
)

const eventExpiry = 24 * time.Hour

type EventService struct {
	outboxRepo repository.OutboxRepository
	log        *logger.Logger
}

func NewEventService(outboxRepo repository.OutboxRepository, log *logger.Logger) *EventService {
	if log == nil {
		log = logger.Nop()
	}
	return &EventService{
		outboxRepo: outboxRepo,
		log:        log,
	}
}

// Emit appends the event to the outbox. Delivery is left to the outbox worker.
func (s *EventService) Emit(ctx context.Context, eventType string, payload interface{}) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	event := &model.OutboxEvent{
		EventType: eventType,
		Payload:   payloadJSON,
	}
	if err := s.outboxRepo.Create(ctx, event); err != nil {
		return fmt.Errorf("failed to create outbox event: %w", err)
	}

	s.log.Debug("event emitted", "event_id", event.ID.String(), "event_type", eventType)
	return nil
}

// CleanupProcessedEvents drops delivered events older than a day.
func (s *EventService) CleanupProcessedEvents(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-eventExpiry)
	count, err := s.outboxRepo.DeleteProcessedBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup events: %w", err)
	}
	if count > 0 {
		s.log.Info("processed events cleaned up", "deleted_count", count, "cutoff", cutoff)
	}
	return count, nil
}
