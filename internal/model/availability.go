package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/pkg/timerange"
)

// AvailabilityRule is a doctor's weekly recurring availability for one day of week.
type AvailabilityRule struct {
	ID                  uuid.UUID       `db:"id" json:"id"`
	DoctorID            uuid.UUID       `db:"doctor_id" json:"doctor_id"`
	DayOfWeek           time.Weekday    `db:"day_of_week" json:"day_of_week"`
	StartTime           timerange.Clock `db:"start_minute" json:"start_time"`
	EndTime             timerange.Clock `db:"end_minute" json:"end_time"`
	SlotDurationMinutes int             `db:"slot_duration_minutes" json:"slot_duration_minutes"`
	CreatedAt           time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time       `db:"updated_at" json:"updated_at"`
}

func (r *AvailabilityRule) Window() timerange.Range {
	return timerange.Range{Start: r.StartTime, End: r.EndTime}
}

// AvailabilityException overrides the rule for a single calendar date, either
// blocking it out or substituting its own hours.
type AvailabilityException struct {
	ID                  uuid.UUID        `db:"id" json:"id"`
	DoctorID            uuid.UUID        `db:"doctor_id" json:"doctor_id"`
	Date                timerange.Date   `db:"date" json:"date"`
	IsAvailable         bool             `db:"is_available" json:"is_available"`
	StartTime           *timerange.Clock `db:"start_minute" json:"start_time,omitempty"`
	EndTime             *timerange.Clock `db:"end_minute" json:"end_time,omitempty"`
	SlotDurationMinutes *int             `db:"slot_duration_minutes" json:"slot_duration_minutes,omitempty"`
	CreatedAt           time.Time        `db:"created_at" json:"created_at"`
}

// HasOverride reports whether the exception carries its own hours.
func (e *AvailabilityException) HasOverride() bool {
	return e.StartTime != nil && e.EndTime != nil && e.SlotDurationMinutes != nil
}

func (e *AvailabilityException) Window() timerange.Range {
	if e.StartTime == nil || e.EndTime == nil {
		return timerange.Range{}
	}
	return timerange.Range{Start: *e.StartTime, End: *e.EndTime}
}

type PatternSource string

const (
	PatternSourceException PatternSource = "exception"
	PatternSourceRule      PatternSource = "rule"
	PatternSourceNone      PatternSource = "none"
)

// EffectivePattern is the resolved availability of a doctor on one date.
type EffectivePattern struct {
	DoctorID            uuid.UUID       `json:"doctor_id"`
	Date                timerange.Date  `json:"date"`
	Available           bool            `json:"available"`
	Source              PatternSource   `json:"source"`
	Window              timerange.Range `json:"window"`
	SlotDurationMinutes int             `json:"slot_duration_minutes,omitempty"`
}

// RuleRequest is the body of rule create and edit calls.
type RuleRequest struct {
	DayOfWeek           *int   `json:"day_of_week" binding:"required,min=0,max=6"`
	StartTime           string `json:"start_time" binding:"required,clock"`
	EndTime             string `json:"end_time" binding:"required,clock"`
	SlotDurationMinutes int    `json:"slot_duration_minutes" binding:"required,min=1,max=1440"`
}

type ExceptionRequest struct {
	Date                string  `json:"date" binding:"required,date"`
	IsAvailable         *bool   `json:"is_available" binding:"required"`
	StartTime           *string `json:"start_time" binding:"omitempty,clock"`
	EndTime             *string `json:"end_time" binding:"omitempty,clock"`
	SlotDurationMinutes *int    `json:"slot_duration_minutes" binding:"omitempty,min=1,max=1440"`
}
