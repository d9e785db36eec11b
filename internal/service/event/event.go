package event

import (
	"context"

	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/pkg/timerange"
)

// Emitter records domain events for asynchronous delivery.
type Emitter interface {
	Emit(ctx context.Context, eventType string, payload interface{}) error
}

// BookingPayload is the body of every booking.* event.
type BookingPayload struct {
	BookingID          uuid.UUID           `json:"booking_id"`
	DoctorID           uuid.UUID           `json:"doctor_id"`
	PatientID          uuid.UUID           `json:"patient_id"`
	Date               timerange.Date      `json:"date"`
	Slot               timerange.Range     `json:"slot"`
	Status             model.BookingStatus `json:"status"`
	CancellationReason *string             `json:"cancellation_reason,omitempty"`
}

func NewBookingPayload(b *model.Booking) BookingPayload {
	return BookingPayload{
		BookingID:          b.ID,
		DoctorID:           b.DoctorID,
		PatientID:          b.PatientID,
		Date:               b.Date,
		Slot:               b.Slot,
		Status:             b.Status,
		CancellationReason: b.CancellationReason,
	}
}
