// Package memory holds in-process repositories. They back the service when
// storage.driver is "memory" and keep the service tests free of a database.
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

type ruleRepository struct {
	mu    sync.RWMutex
	rules map[uuid.UUID]map[time.Weekday]*model.AvailabilityRule
}

func NewRuleRepository() repository.AvailabilityRuleRepository {
	return &ruleRepository{rules: make(map[uuid.UUID]map[time.Weekday]*model.AvailabilityRule)}
}

func (r *ruleRepository) Create(ctx context.Context, rule *model.AvailabilityRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	byDay := r.rules[rule.DoctorID]
	if _, exists := byDay[rule.DayOfWeek]; exists {
		return apperrors.DuplicateKey("doctor already has a rule for "+rule.DayOfWeek.String(), nil)
	}
	r.store(rule)
	return nil
}

func (r *ruleRepository) Get(ctx context.Context, doctorID uuid.UUID, day time.Weekday) (*model.AvailabilityRule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rule, ok := r.rules[doctorID][day]
	if !ok {
		return nil, apperrors.NotFound("availability rule", nil)
	}
	cp := *rule
	return &cp, nil
}

func (r *ruleRepository) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*model.AvailabilityRule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rules := make([]*model.AvailabilityRule, 0, len(r.rules[doctorID]))
	for _, rule := range r.rules[doctorID] {
		cp := *rule
		rules = append(rules, &cp)
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].DayOfWeek < rules[j].DayOfWeek })
	return rules, nil
}

func (r *ruleRepository) Replace(ctx context.Context, doctorID uuid.UUID, oldDay time.Weekday, rule *model.AvailabilityRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	byDay := r.rules[doctorID]
	old, ok := byDay[oldDay]
	if !ok {
		return apperrors.NotFound("availability rule", nil)
	}
	if rule.DayOfWeek != oldDay {
		if _, taken := byDay[rule.DayOfWeek]; taken {
			return apperrors.DuplicateKey("doctor already has a rule for "+rule.DayOfWeek.String(), nil)
		}
	}

	rule.ID = old.ID
	rule.DoctorID = doctorID
	rule.CreatedAt = old.CreatedAt
	delete(byDay, oldDay)
	r.store(rule)
	return nil
}

func (r *ruleRepository) Delete(ctx context.Context, doctorID uuid.UUID, day time.Weekday) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rules[doctorID][day]; !ok {
		return apperrors.NotFound("availability rule", nil)
	}
	delete(r.rules[doctorID], day)
	return nil
}

// store must be called with mu held.
func (r *ruleRepository) store(rule *model.AvailabilityRule) {
	now := time.Now()
	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}
	rule.UpdatedAt = now

	if r.rules[rule.DoctorID] == nil {
		r.rules[rule.DoctorID] = make(map[time.Weekday]*model.AvailabilityRule)
	}
	cp := *rule
	r.rules[rule.DoctorID][rule.DayOfWeek] = &cp
}
