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
	"github.com/jwalitptl/booking-api/pkg/timerange"
)

// bookingRepository keeps an index of active bookings by slot key so the
// occupancy check and the insert happen under one lock.
type bookingRepository struct {
	mu       sync.RWMutex
	bookings map[uuid.UUID]*model.Booking
	active   map[model.SlotKey]uuid.UUID
}

func NewBookingRepository() repository.BookingRepository {
	return &bookingRepository{
		bookings: make(map[uuid.UUID]*model.Booking),
		active:   make(map[model.SlotKey]uuid.UUID),
	}
}

func (r *bookingRepository) Insert(ctx context.Context, booking *model.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := booking.Key()
	if booking.Status.Active() {
		if _, taken := r.active[key]; taken {
			return apperrors.SlotAlreadyBooked("slot "+key.Slot.String()+" on "+key.Date.String()+" is already booked", nil)
		}
	}

	if booking.ID == uuid.Nil {
		booking.ID = uuid.New()
	}
	now := time.Now()
	booking.CreatedAt = now
	booking.UpdatedAt = now

	cp := *booking
	r.bookings[booking.ID] = &cp
	if booking.Status.Active() {
		r.active[key] = booking.ID
	}
	return nil
}

func (r *bookingRepository) Get(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.bookings[id]
	if !ok {
		return nil, apperrors.NotFound("booking", nil)
	}
	cp := *b
	return &cp, nil
}

func (r *bookingRepository) ListActive(ctx context.Context, doctorID uuid.UUID, date timerange.Date) ([]*model.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*model.Booking
	for key, id := range r.active {
		if key.DoctorID != doctorID || key.Date != date {
			continue
		}
		cp := *r.bookings[id]
		out = append(out, &cp)
	}
	sortBookings(out)
	return out, nil
}

func (r *bookingRepository) List(ctx context.Context, filters *model.BookingFilters) ([]*model.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if filters == nil {
		filters = &model.BookingFilters{}
	}
	var out []*model.Booking
	for _, b := range r.bookings {
		if filters.DoctorID != uuid.Nil && b.DoctorID != filters.DoctorID {
			continue
		}
		if filters.PatientID != uuid.Nil && b.PatientID != filters.PatientID {
			continue
		}
		if filters.Date != nil && b.Date != *filters.Date {
			continue
		}
		if filters.Status != "" && b.Status != filters.Status {
			continue
		}
		cp := *b
		out = append(out, &cp)
	}
	sortBookings(out)
	return out, nil
}

func (r *bookingRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from []model.BookingStatus, to model.BookingStatus, reason *string) (*model.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bookings[id]
	if !ok {
		return nil, apperrors.NotFound("booking", nil)
	}
	if !statusIn(b.Status, from) {
		return nil, apperrors.InvalidStateTransition(string(b.Status), string(to))
	}

	key := b.Key()
	if b.Status.Active() && !to.Active() {
		delete(r.active, key)
	}
	b.Status = to
	if reason != nil {
		v := *reason
		b.CancellationReason = &v
	}
	b.UpdatedAt = time.Now()

	cp := *b
	return &cp, nil
}

func statusIn(s model.BookingStatus, set []model.BookingStatus) bool {
	for _, candidate := range set {
		if s == candidate {
			return true
		}
	}
	return false
}

func sortBookings(bookings []*model.Booking) {
	sort.Slice(bookings, func(i, j int) bool {
		a, b := bookings[i], bookings[j]
		if a.Date != b.Date {
			return a.Date.Before(b.Date)
		}
		if a.Slot != b.Slot {
			return a.Slot.Less(b.Slot)
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
}
