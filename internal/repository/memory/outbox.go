package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
	apperrors "github.com/jwalitptl/booking-api/pkg/errors"
)

type outboxRepository struct {
	mu     sync.Mutex
	events map[uuid.UUID]*model.OutboxEvent
}

func NewOutboxRepository() repository.OutboxRepository {
	return &outboxRepository{events: make(map[uuid.UUID]*model.OutboxEvent)}
}

func (r *outboxRepository) Create(ctx context.Context, event *model.OutboxEvent) error {
	if event == nil || event.Payload == nil {
		return apperrors.BadRequest("event payload cannot be nil", nil)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	event.ID = uuid.New()
	event.Status = model.OutboxStatusPending
	event.CreatedAt = now
	event.UpdatedAt = now

	cp := *event
	r.events[event.ID] = &cp
	return nil
}

func (r *outboxRepository) ClaimPending(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	var due []*model.OutboxEvent
	for _, evt := range r.events {
		if evt.Status != model.OutboxStatusPending {
			continue
		}
		if evt.RetryAt != nil && evt.RetryAt.After(now) {
			continue
		}
		due = append(due, evt)
	}
	sort.Slice(due, func(i, j int) bool { return due[i].CreatedAt.Before(due[j].CreatedAt) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	claimed := make([]*model.OutboxEvent, 0, len(due))
	for _, evt := range due {
		evt.Status = model.OutboxStatusProcessing
		evt.UpdatedAt = now
		cp := *evt
		claimed = append(claimed, &cp)
	}
	return claimed, nil
}

func (r *outboxRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errorMessage *string, retryAt *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	evt, ok := r.events[id]
	if !ok {
		return apperrors.NotFound("outbox event", nil)
	}
	now := time.Now()
	if retryAt != nil {
		evt.RetryCount++
	}
	evt.Status = status
	evt.ErrorMessage = errorMessage
	evt.RetryAt = retryAt
	evt.UpdatedAt = now
	if status == model.OutboxStatusProcessed {
		evt.ProcessedAt = &now
	}
	return nil
}

func (r *outboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, evt := range r.events {
		if evt.Status == model.OutboxStatusProcessed && evt.ProcessedAt != nil && evt.ProcessedAt.Before(before) {
			delete(r.events, id)
			n++
		}
	}
	return n, nil
}
