package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
	"github.com/jwalitptl/booking-api/internal/service/event"
	"github.com/jwalitptl/booking-api/internal/service/slot"
	apperrors "github.com/jwalitptl/booking-api/pkg/errors"
	"github.com/jwalitptl/booking-api/pkg/locker"
	"github.com/jwalitptl/booking-api/pkg/logger"
	"github.com/jwalitptl/booking-api/pkg/metrics"
	"github.com/jwalitptl/booking-api/pkg/timerange"
)

type BookingServicer interface {
	ListBookableSlots(ctx context.Context, doctorID uuid.UUID, date timerange.Date) ([]timerange.Range, error)
	Reserve(ctx context.Context, params ReserveParams) (*model.Booking, error)
	Cancel(ctx context.Context, id uuid.UUID, reason string) (*model.Booking, error)
	Confirm(ctx context.Context, id uuid.UUID) (*model.Booking, error)
	Complete(ctx context.Context, id uuid.UUID) (*model.Booking, error)
	GetBooking(ctx context.Context, id uuid.UUID) (*model.Booking, error)
	ListBookings(ctx context.Context, filters *model.BookingFilters) ([]*model.Booking, error)
}

// PatternResolver is the part of the availability service the coordinator needs.
type PatternResolver interface {
	EffectivePattern(ctx context.Context, doctorID uuid.UUID, date timerange.Date) (*model.EffectivePattern, error)
	FreshEffectivePattern(ctx context.Context, doctorID uuid.UUID, date timerange.Date) (*model.EffectivePattern, error)
}

type ReserveParams struct {
	DoctorID  uuid.UUID
	PatientID uuid.UUID
	Date      timerange.Date
	Slot      timerange.Range
	// PaymentCaptured is set by the payment collaborator. Captured funds
	// confirm the booking straight away; otherwise it stays pending.
	PaymentCaptured bool
}

type Config struct {
	Location *time.Location
	// LockTTL bounds how long a reservation may hold its slot lock.
	LockTTL time.Duration
	Now     func() time.Time
}

type Service struct {
	availability PatternResolver
	ledger       repository.BookingRepository
	locker       locker.Locker
	events       event.Emitter
	metrics      *metrics.Metrics
	log          *logger.Logger
	loc          *time.Location
	lockTTL      time.Duration
	now          func() time.Time
}

func NewService(
	availability PatternResolver,
	ledger repository.BookingRepository,
	lk locker.Locker,
	events event.Emitter,
	m *metrics.Metrics,
	log *logger.Logger,
	cfg Config,
) *Service {
	s := &Service{
		availability: availability,
		ledger:       ledger,
		locker:       lk,
		events:       events,
		metrics:      m,
		log:          log,
		loc:          cfg.Location,
		lockTTL:      cfg.LockTTL,
		now:          cfg.Now,
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.lockTTL <= 0 {
		s.lockTTL = 5 * time.Second
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.log == nil {
		s.log = logger.Nop()
	}
	return s
}

// ListBookableSlots returns the free, still-upcoming slots of the doctor on
// date in ascending order. It reserves nothing; a listed slot may be taken
// before the caller reserves it.
func (s *Service) ListBookableSlots(ctx context.Context, doctorID uuid.UUID, date timerange.Date) ([]timerange.Range, error) {
	return s.ListBookableSlotsAt(ctx, doctorID, date, s.now())
}

func (s *Service) ListBookableSlotsAt(ctx context.Context, doctorID uuid.UUID, date timerange.Date, now time.Time) ([]timerange.Range, error) {
	if s.metrics != nil {
		timer := prometheus.NewTimer(s.metrics.SlotListLatency)
		defer timer.ObserveDuration()
	}

	pattern, err := s.availability.EffectivePattern(ctx, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve availability: %w", err)
	}
	if !pattern.Available {
		return []timerange.Range{}, nil
	}

	candidates, err := slot.Generate(pattern.Window, pattern.SlotDurationMinutes)
	if err != nil {
		return nil, err
	}

	active, err := s.ledger.ListActive(ctx, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to load bookings: %w", err)
	}
	taken := make(map[timerange.Range]struct{}, len(active))
	for _, b := range active {
		taken[b.Slot] = struct{}{}
	}

	free := make([]timerange.Range, 0, len(candidates))
	for _, c := range candidates {
		if _, ok := taken[c]; ok {
			continue
		}
		if !s.upcoming(date, c, now) {
			continue
		}
		free = append(free, c)
	}

	if s.metrics != nil {
		s.metrics.BookableSlotsSeen.Observe(float64(len(free)))
	}
	return free, nil
}

// Reserve commits a booking for the slot. The slot must be one the doctor's
// effective pattern produces for the date, start after now and be free in
// the ledger at commit time.
func (s *Service) Reserve(ctx context.Context, params ReserveParams) (*model.Booking, error) {
	booking, err := s.reserve(ctx, params)
	s.observeReservation(err)
	return booking, err
}

func (s *Service) reserve(ctx context.Context, params ReserveParams) (*model.Booking, error) {
	if params.DoctorID == uuid.Nil || params.PatientID == uuid.Nil {
		return nil, apperrors.BadRequest("doctor and patient are required", nil)
	}
	if err := params.Slot.Validate(); err != nil {
		return nil, apperrors.InvalidTimeRange("slot start must be before end", err)
	}
	if !s.upcoming(params.Date, params.Slot, s.now()) {
		return nil, apperrors.PastDateRejected(fmt.Sprintf("slot %s on %s has already started", params.Slot, params.Date))
	}

	key := model.SlotKey{DoctorID: params.DoctorID, Date: params.Date, Slot: params.Slot}
	release, err := s.lock(ctx, key)
	if err != nil {
		return nil, err
	}
	defer release()

	pattern, err := s.availability.FreshEffectivePattern(ctx, params.DoctorID, params.Date)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve availability: %w", err)
	}
	if !pattern.Available || !slot.Contains(pattern.Window, pattern.SlotDurationMinutes, params.Slot) {
		return nil, apperrors.DoctorOrSlotNotFound(fmt.Sprintf("doctor has no slot %s on %s", params.Slot, params.Date))
	}

	booking := &model.Booking{
		DoctorID:  params.DoctorID,
		PatientID: params.PatientID,
		Date:      params.Date,
		Slot:      params.Slot,
		Status:    model.BookingStatusPending,
	}
	if params.PaymentCaptured {
		booking.Status = model.BookingStatusConfirmed
	}

	if err := s.ledger.Insert(ctx, booking); err != nil {
		if errors.Is(err, apperrors.ErrSlotAlreadyBooked) {
			s.log.Warn("slot already booked", "slot_key", key.String())
			return nil, err
		}
		return nil, fmt.Errorf("failed to insert booking: %w", err)
	}

	s.log.Info("booking reserved",
		"booking_id", booking.ID.String(),
		"slot_key", key.String(),
		"status", string(booking.Status),
	)
	s.emit(ctx, model.EventBookingReserved, booking)
	return booking, nil
}

// Cancel frees the booking's slot. A reason is mandatory and only pending or
// confirmed bookings can be cancelled.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason string) (*model.Booking, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperrors.MissingReason()
	}

	booking, err := s.ledger.TransitionStatus(ctx, id, model.ActiveBookingStatuses, model.BookingStatusCancelled, &reason)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel booking: %w", err)
	}

	if s.metrics != nil {
		s.metrics.Cancellations.Inc()
	}
	s.log.Info("booking cancelled", "booking_id", id.String(), "slot_key", booking.Key().String())
	s.emit(ctx, model.EventBookingCancelled, booking)
	return booking, nil
}

func (s *Service) Confirm(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	booking, err := s.ledger.TransitionStatus(ctx, id,
		[]model.BookingStatus{model.BookingStatusPending}, model.BookingStatusConfirmed, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to confirm booking: %w", err)
	}
	s.log.Info("booking confirmed", "booking_id", id.String())
	s.emit(ctx, model.EventBookingConfirmed, booking)
	return booking, nil
}

func (s *Service) Complete(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	booking, err := s.ledger.TransitionStatus(ctx, id,
		[]model.BookingStatus{model.BookingStatusConfirmed}, model.BookingStatusCompleted, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to complete booking: %w", err)
	}
	s.log.Info("booking completed", "booking_id", id.String())
	s.emit(ctx, model.EventBookingCompleted, booking)
	return booking, nil
}

func (s *Service) GetBooking(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	booking, err := s.ledger.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return booking, nil
}

func (s *Service) ListBookings(ctx context.Context, filters *model.BookingFilters) ([]*model.Booking, error) {
	if filters != nil && filters.Status != "" && !filters.Status.Valid() {
		return nil, apperrors.BadRequest("unknown booking status "+string(filters.Status), nil)
	}
	bookings, err := s.ledger.List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return bookings, nil
}

// upcoming reports whether the slot starts strictly after now.
func (s *Service) upcoming(date timerange.Date, r timerange.Range, now time.Time) bool {
	return r.Start.On(date, s.loc).After(now)
}

// lock takes the per-slot lock. Losing the race is reported as
// SlotAlreadyBooked. If the lock backend itself fails the reservation goes
// ahead and relies on the ledger's uniqueness check alone.
func (s *Service) lock(ctx context.Context, key model.SlotKey) (func(), error) {
	noop := func() {}
	if s.locker == nil {
		return noop, nil
	}

	acquired, value, err := s.locker.TryLock(ctx, "slot:"+key.String(), s.lockTTL)
	if err != nil {
		s.log.Error(err, "slot lock unavailable, relying on ledger", "slot_key", key.String())
		return noop, nil
	}
	if !acquired {
		s.log.Warn("slot reservation in progress elsewhere", "slot_key", key.String())
		return nil, apperrors.SlotAlreadyBooked(fmt.Sprintf("slot %s on %s is being reserved", key.Slot, key.Date), nil)
	}

	return func() {
		if err := s.locker.Unlock(context.WithoutCancel(ctx), "slot:"+key.String(), value); err != nil {
			s.log.Warn("failed to release slot lock", "slot_key", key.String(), "error", err.Error())
		}
	}, nil
}

// emit records the event after the ledger write. A failure here never undoes
// the booking.
func (s *Service) emit(ctx context.Context, eventType string, booking *model.Booking) {
	if s.events == nil {
		return
	}
	if err := s.events.Emit(ctx, eventType, event.NewBookingPayload(booking)); err != nil {
		s.log.Error(err, "failed to emit booking event", "event_type", eventType, "booking_id", booking.ID.String())
	}
}

func (s *Service) observeReservation(err error) {
	if s.metrics == nil {
		return
	}
	outcome := "success"
	switch {
	case err == nil:
	case errors.Is(err, apperrors.ErrSlotAlreadyBooked):
		outcome = "conflict"
	case errors.Is(err, apperrors.ErrDoctorOrSlotNotFound),
		errors.Is(err, apperrors.ErrPastDateRejected),
		errors.Is(err, apperrors.ErrInvalidTimeRange),
		errors.Is(err, apperrors.ErrBadRequestKind):
		outcome = "rejected"
	default:
		outcome = "error"
	}
	s.metrics.Reservations.WithLabelValues(outcome).Inc()
}
