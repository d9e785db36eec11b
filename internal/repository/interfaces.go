package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/pkg/timerange"
)

// All repository interfaces in one file
type (
	// AvailabilityRuleRepository stores at most one rule per (doctor, day of week).
	AvailabilityRuleRepository interface {
		// Create fails with DuplicateKey when the doctor already has a rule for the day.
		Create(ctx context.Context, rule *model.AvailabilityRule) error
		Get(ctx context.Context, doctorID uuid.UUID, day time.Weekday) (*model.AvailabilityRule, error)
		ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*model.AvailabilityRule, error)
		// Replace removes the rule for oldDay and stores rule in one atomic step.
		// Nothing changes if either half fails.
		Replace(ctx context.Context, doctorID uuid.UUID, oldDay time.Weekday, rule *model.AvailabilityRule) error
		Delete(ctx context.Context, doctorID uuid.UUID, day time.Weekday) error
	}

	// AvailabilityExceptionRepository stores at most one exception per (doctor, date).
	AvailabilityExceptionRepository interface {
		Create(ctx context.Context, exc *model.AvailabilityException) error
		Get(ctx context.Context, doctorID uuid.UUID, date timerange.Date) (*model.AvailabilityException, error)
		// ListByDoctor returns exceptions in [from, to]; a zero bound is open.
		ListByDoctor(ctx context.Context, doctorID uuid.UUID, from, to timerange.Date) ([]*model.AvailabilityException, error)
		Delete(ctx context.Context, doctorID uuid.UUID, date timerange.Date) error
	}

	// BookingRepository is the booking ledger: the source of truth for slot occupancy.
	BookingRepository interface {
		// Insert is an atomic check-and-insert. It fails with SlotAlreadyBooked
		// when an active booking already holds the same (doctor, date, slot).
		Insert(ctx context.Context, booking *model.Booking) error
		Get(ctx context.Context, id uuid.UUID) (*model.Booking, error)
		// ListActive returns pending and confirmed bookings for a doctor on a date.
		ListActive(ctx context.Context, doctorID uuid.UUID, date timerange.Date) ([]*model.Booking, error)
		List(ctx context.Context, filters *model.BookingFilters) ([]*model.Booking, error)
		// TransitionStatus moves the booking to `to` only if its current status is
		// one of `from`. It fails with InvalidStateTransition otherwise.
		TransitionStatus(ctx context.Context, id uuid.UUID, from []model.BookingStatus, to model.BookingStatus, reason *string) (*model.Booking, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		// ClaimPending marks up to limit due events as processing and returns them.
		ClaimPending(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errorMessage *string, retryAt *time.Time) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}
)
