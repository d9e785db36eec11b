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

type exceptionRepository struct {
	mu         sync.RWMutex
	exceptions map[uuid.UUID]map[timerange.Date]*model.AvailabilityException
}

func NewExceptionRepository() repository.AvailabilityExceptionRepository {
	return &exceptionRepository{exceptions: make(map[uuid.UUID]map[timerange.Date]*model.AvailabilityException)}
}

func (r *exceptionRepository) Create(ctx context.Context, exc *model.AvailabilityException) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.exceptions[exc.DoctorID][exc.Date]; exists {
		return apperrors.DuplicateKey("doctor already has an exception on "+exc.Date.String(), nil)
	}
	if exc.ID == uuid.Nil {
		exc.ID = uuid.New()
	}
	exc.CreatedAt = time.Now()

	if r.exceptions[exc.DoctorID] == nil {
		r.exceptions[exc.DoctorID] = make(map[timerange.Date]*model.AvailabilityException)
	}
	r.exceptions[exc.DoctorID][exc.Date] = cloneException(exc)
	return nil
}

func (r *exceptionRepository) Get(ctx context.Context, doctorID uuid.UUID, date timerange.Date) (*model.AvailabilityException, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exc, ok := r.exceptions[doctorID][date]
	if !ok {
		return nil, apperrors.NotFound("availability exception", nil)
	}
	return cloneException(exc), nil
}

func (r *exceptionRepository) ListByDoctor(ctx context.Context, doctorID uuid.UUID, from, to timerange.Date) ([]*model.AvailabilityException, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*model.AvailabilityException
	for date, exc := range r.exceptions[doctorID] {
		if !from.IsZero() && date.Before(from) {
			continue
		}
		if !to.IsZero() && date.After(to) {
			continue
		}
		out = append(out, cloneException(exc))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (r *exceptionRepository) Delete(ctx context.Context, doctorID uuid.UUID, date timerange.Date) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.exceptions[doctorID][date]; !ok {
		return apperrors.NotFound("availability exception", nil)
	}
	delete(r.exceptions[doctorID], date)
	return nil
}

func cloneException(exc *model.AvailabilityException) *model.AvailabilityException {
	cp := *exc
	if exc.StartTime != nil {
		v := *exc.StartTime
		cp.StartTime = &v
	}
	if exc.EndTime != nil {
		v := *exc.EndTime
		cp.EndTime = &v
	}
	if exc.SlotDurationMinutes != nil {
		v := *exc.SlotDurationMinutes
		cp.SlotDurationMinutes = &v
	}
	return &cp
}
