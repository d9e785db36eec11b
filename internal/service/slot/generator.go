// Package slot cuts an availability window into fixed-length bookable slots.
package slot

import (
	"fmt"

	apperrors "github.com/jwalitptl/booking-api/pkg/errors"
	"github.com/jwalitptl/booking-api/pkg/timerange"
)

// Generate returns the consecutive slots of length slotMinutes that fit
// entirely inside window, starting at window.Start. A trailing remainder
// shorter than one slot is dropped.
func Generate(window timerange.Range, slotMinutes int) ([]timerange.Range, error) {
	if slotMinutes <= 0 {
		return nil, apperrors.BadRequest(fmt.Sprintf("slot duration must be positive, got %d", slotMinutes), nil)
	}
	if window.Empty() || slotMinutes > window.Minutes() {
		return []timerange.Range{}, nil
	}

	slots := make([]timerange.Range, 0, window.Minutes()/slotMinutes)
	for start := window.Start; start.Add(slotMinutes) <= window.End; start = start.Add(slotMinutes) {
		slots = append(slots, timerange.Range{Start: start, End: start.Add(slotMinutes)})
	}
	return slots, nil
}

// Contains reports whether candidate is exactly one of the slots Generate
// would produce for window and slotMinutes.
func Contains(window timerange.Range, slotMinutes int, candidate timerange.Range) bool {
	if slotMinutes <= 0 || candidate.Empty() || !window.Contains(candidate) {
		return false
	}
	if candidate.Minutes() != slotMinutes {
		return false
	}
	return int(candidate.Start-window.Start)%slotMinutes == 0
}
