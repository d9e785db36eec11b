package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
	apperrors "github.com/jwalitptl/booking-api/pkg/errors"
	"github.com/jwalitptl/booking-api/pkg/timerange"
)

const bookingColumns = `id, doctor_id, patient_id, date, start_minute, end_minute, status, cancellation_reason, created_at, updated_at`

// bookingRow is the flat storage shape of model.Booking.
type bookingRow struct {
	ID                 uuid.UUID           `db:"id"`
	DoctorID           uuid.UUID           `db:"doctor_id"`
	PatientID          uuid.UUID           `db:"patient_id"`
	Date               timerange.Date      `db:"date"`
	StartMinute        timerange.Clock     `db:"start_minute"`
	EndMinute          timerange.Clock     `db:"end_minute"`
	Status             model.BookingStatus `db:"status"`
	CancellationReason *string             `db:"cancellation_reason"`
	CreatedAt          time.Time           `db:"created_at"`
	UpdatedAt          time.Time           `db:"updated_at"`
}

func (row *bookingRow) toModel() *model.Booking {
	return &model.Booking{
		ID:                 row.ID,
		DoctorID:           row.DoctorID,
		PatientID:          row.PatientID,
		Date:               row.Date,
		Slot:               timerange.Range{Start: row.StartMinute, End: row.EndMinute},
		Status:             row.Status,
		CancellationReason: row.CancellationReason,
		CreatedAt:          row.CreatedAt,
		UpdatedAt:          row.UpdatedAt,
	}
}

func toModels(rows []bookingRow) []*model.Booking {
	bookings := make([]*model.Booking, 0, len(rows))
	for i := range rows {
		bookings = append(bookings, rows[i].toModel())
	}
	return bookings
}

type bookingRepository struct {
	BaseRepository
}

func NewBookingRepository(base BaseRepository) repository.BookingRepository {
	return &bookingRepository{base}
}

// Insert relies on the bookings_active_slot partial unique index: a second
// active booking for the same slot is skipped by ON CONFLICT and reported
// as SlotAlreadyBooked.
func (r *bookingRepository) Insert(ctx context.Context, booking *model.Booking) error {
	query := `
		INSERT INTO bookings (` + bookingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (doctor_id, date, start_minute, end_minute)
			WHERE status IN ('pending', 'confirmed')
			DO NOTHING`

	booking.ID = uuid.New()
	booking.CreatedAt = time.Now()
	booking.UpdatedAt = booking.CreatedAt

	result, err := r.db.ExecContext(ctx, query,
		booking.ID,
		booking.DoctorID,
		booking.PatientID,
		booking.Date,
		booking.Slot.Start,
		booking.Slot.End,
		string(booking.Status),
		booking.CancellationReason,
		booking.CreatedAt,
		booking.UpdatedAt,
	)
	if pqCode(err) == uniqueViolation {
		return apperrors.SlotAlreadyBooked(slotTakenMessage(booking), err)
	}
	if err != nil {
		return fmt.Errorf("failed to insert booking: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return apperrors.SlotAlreadyBooked(slotTakenMessage(booking), nil)
	}
	return nil
}

func (r *bookingRepository) Get(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	var row bookingRow
	err := r.db.GetContext(ctx, &row, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", notFound("booking", err))
	}
	return row.toModel(), nil
}

func (r *bookingRepository) ListActive(ctx context.Context, doctorID uuid.UUID, date timerange.Date) ([]*model.Booking, error) {
	query := `SELECT ` + bookingColumns + `
		FROM bookings
		WHERE doctor_id = $1 AND date = $2 AND status IN ('pending', 'confirmed')
		ORDER BY start_minute`

	var rows []bookingRow
	if err := r.db.SelectContext(ctx, &rows, query, doctorID, date); err != nil {
		return nil, fmt.Errorf("failed to list active bookings: %w", err)
	}
	return toModels(rows), nil
}

func (r *bookingRepository) List(ctx context.Context, filters *model.BookingFilters) ([]*model.Booking, error) {
	var (
		conditions []string
		args       []interface{}
	)
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}

	if filters != nil {
		if filters.DoctorID != uuid.Nil {
			add("doctor_id = $%d", filters.DoctorID)
		}
		if filters.PatientID != uuid.Nil {
			add("patient_id = $%d", filters.PatientID)
		}
		if filters.Date != nil {
			add("date = $%d", *filters.Date)
		}
		if filters.Status != "" {
			add("status = $%d", string(filters.Status))
		}
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY date, start_minute, created_at`

	var rows []bookingRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return toModels(rows), nil
}

// TransitionStatus is a conditional update; when no row matches it reads the
// booking back to tell a missing booking from a disallowed transition.
func (r *bookingRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from []model.BookingStatus, to model.BookingStatus, reason *string) (*model.Booking, error) {
	query := `
		UPDATE bookings
		SET status = $1,
			cancellation_reason = COALESCE($2, cancellation_reason),
			updated_at = $3
		WHERE id = $4 AND status = ANY($5)
		RETURNING ` + bookingColumns

	allowed := make([]string, 0, len(from))
	for _, s := range from {
		allowed = append(allowed, string(s))
	}

	var row bookingRow
	err := r.db.GetContext(ctx, &row, query, string(to), reason, time.Now(), id, pq.Array(allowed))
	if err == nil {
		return row.toModel(), nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to update booking status: %w", err)
	}

	current, getErr := r.Get(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	return nil, apperrors.InvalidStateTransition(string(current.Status), string(to))
}

func slotTakenMessage(b *model.Booking) string {
	return "slot " + b.Slot.String() + " on " + b.Date.String() + " is already booked"
}
