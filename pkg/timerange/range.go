package timerange

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidRange is returned when a range does not satisfy start < end.
var ErrInvalidRange = errors.New("start must be before end")

// Range is a half-open wall-clock interval [Start, End).
type Range struct {
	Start Clock `json:"from"`
	End   Clock `json:"to"`
}

func New(start, end Clock) (Range, error) {
	r := Range{Start: start, End: end}
	if err := r.Validate(); err != nil {
		return Range{}, err
	}
	return r, nil
}

// Parse reads the canonical "HH:MM-HH:MM" form produced by String.
func Parse(s string) (Range, error) {
	from, to, ok := strings.Cut(s, "-")
	if !ok {
		return Range{}, fmt.Errorf("invalid range %q: want HH:MM-HH:MM", s)
	}
	start, err := ParseClock(from)
	if err != nil {
		return Range{}, err
	}
	end, err := ParseClock(to)
	if err != nil {
		return Range{}, err
	}
	return New(start, end)
}

// MustParse is Parse for literals; it panics on bad input.
func MustParse(s string) Range {
	r, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return r
}

func (r Range) Validate() error {
	if !r.Start.Valid() || !r.End.Valid() {
		return fmt.Errorf("range %s: clock out of bounds", r)
	}
	if r.Start >= r.End {
		return fmt.Errorf("range %s: %w", r, ErrInvalidRange)
	}
	return nil
}

func (r Range) Empty() bool {
	return r.Start >= r.End
}

func (r Range) Minutes() int {
	if r.Empty() {
		return 0
	}
	return int(r.End - r.Start)
}

func (r Range) Overlaps(o Range) bool {
	return r.Start < o.End && o.Start < r.End
}

// Contains reports whether o lies entirely inside r.
func (r Range) Contains(o Range) bool {
	return r.Start <= o.Start && o.End <= r.End
}

// Less orders ranges by start, then by end.
func (r Range) Less(o Range) bool {
	if r.Start != o.Start {
		return r.Start < o.Start
	}
	return r.End < o.End
}

// On returns the concrete start and end instants of r on date d in loc.
func (r Range) On(d Date, loc *time.Location) (time.Time, time.Time) {
	return r.Start.On(d, loc), r.End.On(d, loc)
}

func (r Range) String() string {
	return r.Start.String() + "-" + r.End.String()
}
