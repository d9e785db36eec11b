package timerange

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MinutesPerDay is the largest valid Clock value. It is only meaningful as
// the exclusive end of a range ("24:00").
const MinutesPerDay = 24 * 60

// Clock is a wall-clock time of day at minute precision, counted in minutes
// from midnight. All rules, exceptions and bookings share a single local
// time zone, so a Clock carries no location.
type Clock int

// NewClock builds a Clock from hour and minute. 24:00 is accepted as end of day.
func NewClock(hour, minute int) (Clock, error) {
	if hour < 0 || minute < 0 || minute > 59 || hour > 24 || (hour == 24 && minute != 0) {
		return 0, fmt.Errorf("invalid clock %02d:%02d", hour, minute)
	}
	return Clock(hour*60 + minute), nil
}

// ParseClock parses "HH:MM". A trailing ":SS" is tolerated when it is zero,
// so values read back from TIME columns round-trip.
func ParseClock(s string) (Clock, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid clock %q: want HH:MM", s)
	}
	if len(parts) == 3 && parts[2] != "00" {
		return 0, fmt.Errorf("invalid clock %q: seconds are not supported", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid clock %q: %w", s, err)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid clock %q: %w", s, err)
	}
	return NewClock(h, m)
}

// MustParseClock is ParseClock for literals; it panics on bad input.
func MustParseClock(s string) Clock {
	c, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

// ClockOf returns the wall-clock minute of t in t's own location.
func ClockOf(t time.Time) Clock {
	return Clock(t.Hour()*60 + t.Minute())
}

func (c Clock) Hour() int   { return int(c) / 60 }
func (c Clock) Minute() int { return int(c) % 60 }

// Add moves the clock by the given number of minutes without wrapping.
func (c Clock) Add(minutes int) Clock {
	return c + Clock(minutes)
}

func (c Clock) Valid() bool {
	return c >= 0 && c <= MinutesPerDay
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

// On places the clock on the given calendar date in loc as wall-clock time,
// so DST transitions earlier in the day do not shift it. 24:00 is midnight
// of the following day.
func (c Clock) On(d Date, loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, c.Hour(), c.Minute(), 0, 0, loc)
}

func (c Clock) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *Clock) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("clock must be a string: %w", err)
	}
	parsed, err := ParseClock(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Value stores the clock as minutes from midnight.
func (c Clock) Value() (driver.Value, error) {
	return int64(c), nil
}

func (c *Clock) Scan(src interface{}) error {
	switch v := src.(type) {
	case int64:
		*c = Clock(v)
	case int32:
		*c = Clock(v)
	case []byte:
		n, err := strconv.Atoi(string(v))
		if err != nil {
			return fmt.Errorf("scan clock: %w", err)
		}
		*c = Clock(n)
	case nil:
		*c = 0
	default:
		return fmt.Errorf("scan clock: unsupported type %T", src)
	}
	return nil
}
