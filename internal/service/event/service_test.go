package event

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository/memory"
	"github.com/jwalitptl/booking-api/pkg/timerange"
)

func TestEmit_WritesOutbox(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewOutboxRepository()
	svc := NewEventService(repo, nil)

	booking := &model.Booking{
		ID:        uuid.New(),
		DoctorID:  uuid.New(),
		PatientID: uuid.New(),
		Date:      timerange.Date{Year: 2026, Month: time.October, Day: 19},
		Slot:      timerange.MustParse("09:00-09:30"),
		Status:    model.BookingStatusConfirmed,
	}
	require.NoError(t, svc.Emit(ctx, model.EventBookingReserved, NewBookingPayload(booking)))

	events, err := repo.ClaimPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, model.EventBookingReserved, events[0].EventType)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(events[0].Payload, &payload))
	assert.Equal(t, booking.ID.String(), payload["booking_id"])
	assert.Equal(t, "2026-10-19", payload["date"])
	assert.Equal(t, map[string]interface{}{"from": "09:00", "to": "09:30"}, payload["slot"])
	assert.Equal(t, "confirmed", payload["status"])
}

func TestEmit_BadPayload(t *testing.T) {
	svc := NewEventService(memory.NewOutboxRepository(), nil)
	err := svc.Emit(context.Background(), "x", make(chan int))
	assert.Error(t, err)
}
