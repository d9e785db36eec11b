package availability

import (
	apperrors "github.com/jwalitptl/booking-api/pkg/errors"
	"github.com/jwalitptl/booking-api/pkg/timerange"
)

func parseClock(field, raw string) (timerange.Clock, error) {
	c, err := timerange.ParseClock(raw)
	if err != nil {
		return 0, apperrors.BadRequest("invalid "+field+", expected HH:MM", err)
	}
	return c, nil
}

// parseWindow parses both ends without ordering them; the service reports
// an inverted window as InvalidTimeRange.
func parseWindow(start, end string) (timerange.Range, error) {
	s, err := parseClock("start_time", start)
	if err != nil {
		return timerange.Range{}, err
	}
	e, err := parseClock("end_time", end)
	if err != nil {
		return timerange.Range{}, err
	}
	return timerange.Range{Start: s, End: e}, nil
}
