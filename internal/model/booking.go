package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/pkg/timerange"
)

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusCompleted BookingStatus = "completed"
)

// ActiveBookingStatuses hold their slot; at most one booking per
// (doctor, date, slot) may be in one of them.
var ActiveBookingStatuses = []BookingStatus{BookingStatusPending, BookingStatusConfirmed}

func (s BookingStatus) Active() bool {
	return s == BookingStatusPending || s == BookingStatusConfirmed
}

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingStatusPending, BookingStatusConfirmed, BookingStatusCancelled, BookingStatusCompleted:
		return true
	}
	return false
}

type Booking struct {
	ID                 uuid.UUID       `json:"id"`
	DoctorID           uuid.UUID       `json:"doctor_id"`
	PatientID          uuid.UUID       `json:"patient_id"`
	Date               timerange.Date  `json:"date"`
	Slot               timerange.Range `json:"slot"`
	Status             BookingStatus   `json:"status"`
	CancellationReason *string         `json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// SlotKey identifies the resource a reservation competes for.
type SlotKey struct {
	DoctorID uuid.UUID
	Date     timerange.Date
	Slot     timerange.Range
}

func (b *Booking) Key() SlotKey {
	return SlotKey{DoctorID: b.DoctorID, Date: b.Date, Slot: b.Slot}
}

func (k SlotKey) String() string {
	return k.DoctorID.String() + ":" + k.Date.String() + ":" + k.Slot.String()
}

type ReserveRequest struct {
	DoctorID        string `json:"doctor_id" binding:"required,uuid"`
	PatientID       string `json:"patient_id" binding:"required,uuid"`
	Date            string `json:"date" binding:"required,date"`
	From            string `json:"from" binding:"required,clock"`
	To              string `json:"to" binding:"required,clock"`
	PaymentCaptured bool   `json:"payment_captured"`
}

type CancelRequest struct {
	Reason string `json:"reason"`
}

type BookingFilters struct {
	DoctorID  uuid.UUID
	PatientID uuid.UUID
	Date      *timerange.Date
	Status    BookingStatus
}
