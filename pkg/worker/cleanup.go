package worker

import (
	"context"
	"time"

	"github.com/jwalitptl/booking-api/pkg/logger"
)

// Cleaner removes outbox events that no longer need to be kept.
type Cleaner interface {
	CleanupProcessedEvents(ctx context.Context) (int64, error)
}

type CleanupWorker struct {
	cleaner  Cleaner
	interval time.Duration
	logger   *logger.Logger
}

func NewCleanupWorker(cleaner Cleaner, interval time.Duration, logger *logger.Logger) *CleanupWorker {
	return &CleanupWorker{
		cleaner:  cleaner,
		interval: interval,
		logger:   logger,
	}
}

func (w *CleanupWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.cleaner.CleanupProcessedEvents(ctx); err != nil {
				w.logger.Error(err, "Failed to clean up processed events")
			}
		}
	}
}
