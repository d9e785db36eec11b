package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
	apperrors "github.com/jwalitptl/booking-api/pkg/errors"
	"github.com/jwalitptl/booking-api/pkg/logger"
	"github.com/jwalitptl/booking-api/pkg/timerange"
)

type AvailabilityServicer interface {
	AddRule(ctx context.Context, rule *model.AvailabilityRule) error
	EditRule(ctx context.Context, doctorID uuid.UUID, oldDay time.Weekday, rule *model.AvailabilityRule) error
	DeleteRule(ctx context.Context, doctorID uuid.UUID, day time.Weekday) error
	ListRules(ctx context.Context, doctorID uuid.UUID) ([]*model.AvailabilityRule, error)
	AddException(ctx context.Context, exc *model.AvailabilityException) error
	DeleteException(ctx context.Context, doctorID uuid.UUID, date timerange.Date) error
	ListExceptions(ctx context.Context, doctorID uuid.UUID, from, to timerange.Date) ([]*model.AvailabilityException, error)
	EffectivePattern(ctx context.Context, doctorID uuid.UUID, date timerange.Date) (*model.EffectivePattern, error)
	FreshEffectivePattern(ctx context.Context, doctorID uuid.UUID, date timerange.Date) (*model.EffectivePattern, error)
}

type Config struct {
	// Location is the single time zone all rules and exceptions are expressed in.
	Location *time.Location
	// CacheTTL bounds how long resolved rules and exceptions are served from
	// memory. Zero disables the cache.
	CacheTTL time.Duration
	Now      func() time.Time
}

type Service struct {
	rules      repository.AvailabilityRuleRepository
	exceptions repository.AvailabilityExceptionRepository
	cache      *cache.Cache
	loc        *time.Location
	now        func() time.Time
	log        *logger.Logger
}

func NewService(rules repository.AvailabilityRuleRepository, exceptions repository.AvailabilityExceptionRepository, cfg Config, log *logger.Logger) *Service {
	s := &Service{
		rules:      rules,
		exceptions: exceptions,
		loc:        cfg.Location,
		now:        cfg.Now,
		log:        log,
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.log == nil {
		s.log = logger.Nop()
	}
	if cfg.CacheTTL > 0 {
		s.cache = cache.New(cfg.CacheTTL, 2*cfg.CacheTTL)
	}
	return s
}

// Today returns the current calendar date in the service location.
func (s *Service) Today() timerange.Date {
	return timerange.DateOf(s.now().In(s.loc))
}

func (s *Service) AddRule(ctx context.Context, rule *model.AvailabilityRule) error {
	if err := validateRule(rule); err != nil {
		return err
	}
	if err := s.rules.Create(ctx, rule); err != nil {
		return fmt.Errorf("failed to create availability rule: %w", err)
	}
	s.invalidateRules(rule.DoctorID)

	s.log.Info("availability rule created",
		"doctor_id", rule.DoctorID.String(),
		"day_of_week", rule.DayOfWeek.String(),
		"window", rule.Window().String(),
	)
	return nil
}

// EditRule swaps the rule stored under oldDay for rule in one atomic step.
// The new rule may sit on a different day of week.
func (s *Service) EditRule(ctx context.Context, doctorID uuid.UUID, oldDay time.Weekday, rule *model.AvailabilityRule) error {
	rule.DoctorID = doctorID
	if err := validateRule(rule); err != nil {
		return err
	}
	if err := s.rules.Replace(ctx, doctorID, oldDay, rule); err != nil {
		return fmt.Errorf("failed to replace availability rule: %w", err)
	}
	s.invalidateRules(doctorID)

	s.log.Info("availability rule replaced",
		"doctor_id", doctorID.String(),
		"old_day", oldDay.String(),
		"new_day", rule.DayOfWeek.String(),
		"window", rule.Window().String(),
	)
	return nil
}

func (s *Service) DeleteRule(ctx context.Context, doctorID uuid.UUID, day time.Weekday) error {
	if err := s.rules.Delete(ctx, doctorID, day); err != nil {
		return fmt.Errorf("failed to delete availability rule: %w", err)
	}
	s.invalidateRules(doctorID)
	s.log.Info("availability rule deleted", "doctor_id", doctorID.String(), "day_of_week", day.String())
	return nil
}

func (s *Service) ListRules(ctx context.Context, doctorID uuid.UUID) ([]*model.AvailabilityRule, error) {
	rules, err := s.rules.ListByDoctor(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("failed to list availability rules: %w", err)
	}
	return rules, nil
}

func (s *Service) AddException(ctx context.Context, exc *model.AvailabilityException) error {
	if err := validateException(exc); err != nil {
		return err
	}
	if exc.Date.Before(s.Today()) {
		return apperrors.PastDateRejected("exception date " + exc.Date.String() + " is in the past")
	}
	if err := s.exceptions.Create(ctx, exc); err != nil {
		return fmt.Errorf("failed to create availability exception: %w", err)
	}
	s.invalidateException(exc.DoctorID, exc.Date)

	s.log.Info("availability exception created",
		"doctor_id", exc.DoctorID.String(),
		"date", exc.Date.String(),
		"is_available", exc.IsAvailable,
	)
	return nil
}

func (s *Service) DeleteException(ctx context.Context, doctorID uuid.UUID, date timerange.Date) error {
	if err := s.exceptions.Delete(ctx, doctorID, date); err != nil {
		return fmt.Errorf("failed to delete availability exception: %w", err)
	}
	s.invalidateException(doctorID, date)
	s.log.Info("availability exception deleted", "doctor_id", doctorID.String(), "date", date.String())
	return nil
}

func (s *Service) ListExceptions(ctx context.Context, doctorID uuid.UUID, from, to timerange.Date) ([]*model.AvailabilityException, error) {
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return nil, apperrors.BadRequest("'to' must not be before 'from'", nil)
	}
	exceptions, err := s.exceptions.ListByDoctor(ctx, doctorID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list availability exceptions: %w", err)
	}
	return exceptions, nil
}

// EffectivePattern resolves what applies to the doctor on date. An exception
// always wins over the weekly rule; with neither the doctor is unavailable.
func (s *Service) EffectivePattern(ctx context.Context, doctorID uuid.UUID, date timerange.Date) (*model.EffectivePattern, error) {
	return s.resolve(ctx, doctorID, date, true)
}

// FreshEffectivePattern is EffectivePattern with the cache bypassed.
func (s *Service) FreshEffectivePattern(ctx context.Context, doctorID uuid.UUID, date timerange.Date) (*model.EffectivePattern, error) {
	return s.resolve(ctx, doctorID, date, false)
}

func (s *Service) resolve(ctx context.Context, doctorID uuid.UUID, date timerange.Date, cached bool) (*model.EffectivePattern, error) {
	pattern := &model.EffectivePattern{
		DoctorID: doctorID,
		Date:     date,
		Source:   model.PatternSourceNone,
	}

	exc, err := s.exception(ctx, doctorID, date, cached)
	if err != nil {
		return nil, err
	}
	if exc != nil {
		if !exc.IsAvailable {
			pattern.Source = model.PatternSourceException
			return pattern, nil
		}
		if exc.HasOverride() {
			pattern.Source = model.PatternSourceException
			pattern.Available = true
			pattern.Window = exc.Window()
			pattern.SlotDurationMinutes = *exc.SlotDurationMinutes
			return pattern, nil
		}
	}

	rule, err := s.rule(ctx, doctorID, date.Weekday(), cached)
	if err != nil {
		return nil, err
	}
	if rule != nil {
		pattern.Source = model.PatternSourceRule
		pattern.Available = true
		pattern.Window = rule.Window()
		pattern.SlotDurationMinutes = rule.SlotDurationMinutes
	}
	return pattern, nil
}

func (s *Service) rule(ctx context.Context, doctorID uuid.UUID, day time.Weekday, cached bool) (*model.AvailabilityRule, error) {
	var rules []*model.AvailabilityRule
	key := rulesKey(doctorID)

	if hit, ok := s.lookup(key, cached); ok {
		rules = hit.([]*model.AvailabilityRule)
	} else {
		fetched, err := s.rules.ListByDoctor(ctx, doctorID)
		if err != nil {
			return nil, fmt.Errorf("failed to load availability rules: %w", err)
		}
		rules = fetched
		s.store(key, rules)
	}

	for _, r := range rules {
		if r.DayOfWeek == day {
			return r, nil
		}
	}
	return nil, nil
}

func (s *Service) exception(ctx context.Context, doctorID uuid.UUID, date timerange.Date, cached bool) (*model.AvailabilityException, error) {
	key := exceptionKey(doctorID, date)
	if hit, ok := s.lookup(key, cached); ok {
		return hit.(*model.AvailabilityException), nil
	}

	exc, err := s.exceptions.Get(ctx, doctorID, date)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFoundKind) {
			return nil, fmt.Errorf("failed to load availability exception: %w", err)
		}
		exc = nil
	}
	s.store(key, exc)
	return exc, nil
}

func (s *Service) lookup(key string, cached bool) (interface{}, bool) {
	if s.cache == nil || !cached {
		return nil, false
	}
	return s.cache.Get(key)
}

func (s *Service) store(key string, v interface{}) {
	if s.cache != nil {
		s.cache.SetDefault(key, v)
	}
}

func (s *Service) invalidateRules(doctorID uuid.UUID) {
	if s.cache != nil {
		s.cache.Delete(rulesKey(doctorID))
	}
}

func (s *Service) invalidateException(doctorID uuid.UUID, date timerange.Date) {
	if s.cache != nil {
		s.cache.Delete(exceptionKey(doctorID, date))
	}
}

func rulesKey(doctorID uuid.UUID) string {
	return "rules:" + doctorID.String()
}

func exceptionKey(doctorID uuid.UUID, date timerange.Date) string {
	return "exception:" + doctorID.String() + ":" + date.String()
}

func validateRule(rule *model.AvailabilityRule) error {
	if rule.DoctorID == uuid.Nil {
		return apperrors.BadRequest("doctor ID is required", nil)
	}
	if rule.DayOfWeek < time.Sunday || rule.DayOfWeek > time.Saturday {
		return apperrors.BadRequest(fmt.Sprintf("day of week %d out of range", rule.DayOfWeek), nil)
	}
	if err := rule.Window().Validate(); err != nil {
		return apperrors.InvalidTimeRange("rule start time must be before end time", err)
	}
	if err := validateDuration(rule.SlotDurationMinutes); err != nil {
		return err
	}
	return nil
}

func validateException(exc *model.AvailabilityException) error {
	if exc.DoctorID == uuid.Nil {
		return apperrors.BadRequest("doctor ID is required", nil)
	}
	if exc.Date.IsZero() {
		return apperrors.BadRequest("date is required", nil)
	}

	set := 0
	if exc.StartTime != nil {
		set++
	}
	if exc.EndTime != nil {
		set++
	}
	if exc.SlotDurationMinutes != nil {
		set++
	}
	switch {
	case set == 0:
		return nil
	case set < 3:
		return apperrors.BadRequest("start_time, end_time and slot_duration_minutes must be given together", nil)
	case !exc.IsAvailable:
		return apperrors.BadRequest("an unavailable exception cannot carry hours", nil)
	}

	if err := exc.Window().Validate(); err != nil {
		return apperrors.InvalidTimeRange("exception start time must be before end time", err)
	}
	return validateDuration(*exc.SlotDurationMinutes)
}

func validateDuration(minutes int) error {
	if minutes <= 0 || minutes > timerange.MinutesPerDay {
		return apperrors.BadRequest(fmt.Sprintf("slot duration must be between 1 and %d minutes", timerange.MinutesPerDay), nil)
	}
	return nil
}
