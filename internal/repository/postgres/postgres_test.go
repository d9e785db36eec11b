package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"testing/fstest"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/booking-api/internal/model"
	apperrors "github.com/jwalitptl/booking-api/pkg/errors"
	"github.com/jwalitptl/booking-api/pkg/timerange"
)

var monday = timerange.Date{Year: 2026, Month: time.October, Day: 19}

func newMock(t *testing.T) (BaseRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return NewBaseRepository(sqlx.NewDb(db, "postgres")), mock
}

var bookingCols = []string{
	"id", "doctor_id", "patient_id", "date", "start_minute", "end_minute",
	"status", "cancellation_reason", "created_at", "updated_at",
}

func newBookingModel() *model.Booking {
	return &model.Booking{
		DoctorID:  uuid.New(),
		PatientID: uuid.New(),
		Date:      monday,
		Slot:      timerange.MustParse("09:00-09:30"),
		Status:    model.BookingStatusPending,
	}
}

func TestBookingRepository_Insert(t *testing.T) {
	ctx := context.Background()

	t.Run("inserted", func(t *testing.T) {
		base, mock := newMock(t)
		b := newBookingModel()
		mock.ExpectExec("INSERT INTO bookings").
			WithArgs(sqlmock.AnyArg(), b.DoctorID, b.PatientID, "2026-10-19", 540, 570, "pending", nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, NewBookingRepository(base).Insert(ctx, b))
		assert.NotEqual(t, uuid.Nil, b.ID)
	})

	t.Run("conflict skipped by ON CONFLICT", func(t *testing.T) {
		base, mock := newMock(t)
		mock.ExpectExec("INSERT INTO bookings").WillReturnResult(sqlmock.NewResult(0, 0))

		err := NewBookingRepository(base).Insert(ctx, newBookingModel())
		assert.True(t, errors.Is(err, apperrors.ErrSlotAlreadyBooked))
	})

	t.Run("unique violation", func(t *testing.T) {
		base, mock := newMock(t)
		mock.ExpectExec("INSERT INTO bookings").WillReturnError(&pq.Error{Code: "23505"})

		err := NewBookingRepository(base).Insert(ctx, newBookingModel())
		assert.True(t, errors.Is(err, apperrors.ErrSlotAlreadyBooked))
	})
}

func TestBookingRepository_ListActive(t *testing.T) {
	ctx := context.Background()
	base, mock := newMock(t)
	doctorID := uuid.New()
	now := time.Now()

	rows := sqlmock.NewRows(bookingCols).
		AddRow(uuid.NewString(), doctorID.String(), uuid.NewString(), time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC), int64(540), int64(570), "confirmed", nil, now, now)
	mock.ExpectQuery("FROM bookings").WithArgs(doctorID, "2026-10-19").WillReturnRows(rows)

	bookings, err := NewBookingRepository(base).ListActive(ctx, doctorID, monday)
	require.NoError(t, err)
	require.Len(t, bookings, 1)
	assert.Equal(t, "09:00-09:30", bookings[0].Slot.String())
	assert.Equal(t, monday, bookings[0].Date)
	assert.Equal(t, model.BookingStatusConfirmed, bookings[0].Status)
}

func TestBookingRepository_List_BuildsFilters(t *testing.T) {
	ctx := context.Background()
	base, mock := newMock(t)
	patientID := uuid.New()

	mock.ExpectQuery(`WHERE patient_id = \$1 AND status = \$2 ORDER BY`).
		WithArgs(patientID, "cancelled").
		WillReturnRows(sqlmock.NewRows(bookingCols))

	bookings, err := NewBookingRepository(base).List(ctx, &model.BookingFilters{
		PatientID: patientID,
		Status:    model.BookingStatusCancelled,
	})
	require.NoError(t, err)
	assert.Empty(t, bookings)
}

func TestBookingRepository_TransitionStatus(t *testing.T) {
	ctx := context.Background()
	reason := "sick"

	t.Run("updated", func(t *testing.T) {
		base, mock := newMock(t)
		id := uuid.New()
		now := time.Now()
		mock.ExpectQuery("UPDATE bookings").
			WithArgs("cancelled", reason, sqlmock.AnyArg(), id, sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows(bookingCols).
				AddRow(id.String(), uuid.NewString(), uuid.NewString(), now, int64(540), int64(570), "cancelled", reason, now, now))

		b, err := NewBookingRepository(base).TransitionStatus(ctx, id, model.ActiveBookingStatuses, model.BookingStatusCancelled, &reason)
		require.NoError(t, err)
		assert.Equal(t, model.BookingStatusCancelled, b.Status)
		assert.Equal(t, reason, *b.CancellationReason)
	})

	t.Run("terminal booking", func(t *testing.T) {
		base, mock := newMock(t)
		id := uuid.New()
		now := time.Now()
		mock.ExpectQuery("UPDATE bookings").WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery("FROM bookings WHERE id").WithArgs(id).
			WillReturnRows(sqlmock.NewRows(bookingCols).
				AddRow(id.String(), uuid.NewString(), uuid.NewString(), now, int64(540), int64(570), "completed", nil, now, now))

		_, err := NewBookingRepository(base).TransitionStatus(ctx, id, model.ActiveBookingStatuses, model.BookingStatusCancelled, &reason)
		assert.True(t, errors.Is(err, apperrors.ErrInvalidStateTransition))
	})

	t.Run("missing booking", func(t *testing.T) {
		base, mock := newMock(t)
		mock.ExpectQuery("UPDATE bookings").WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery("FROM bookings WHERE id").WillReturnError(sql.ErrNoRows)

		_, err := NewBookingRepository(base).TransitionStatus(ctx, uuid.New(), model.ActiveBookingStatuses, model.BookingStatusCancelled, &reason)
		assert.True(t, errors.Is(err, apperrors.ErrNotFoundKind))
	})
}

var ruleCols = []string{"id", "doctor_id", "day_of_week", "start_minute", "end_minute", "slot_duration_minutes", "created_at", "updated_at"}

func TestRuleRepository_Get(t *testing.T) {
	ctx := context.Background()
	base, mock := newMock(t)
	doctorID := uuid.New()
	now := time.Now()

	mock.ExpectQuery("FROM availability_rules").
		WithArgs(doctorID, 1).
		WillReturnRows(sqlmock.NewRows(ruleCols).
			AddRow(uuid.NewString(), doctorID.String(), int64(1), int64(540), int64(600), int64(30), now, now))

	rule, err := NewRuleRepository(base).Get(ctx, doctorID, time.Monday)
	require.NoError(t, err)
	assert.Equal(t, time.Monday, rule.DayOfWeek)
	assert.Equal(t, "09:00-10:00", rule.Window().String())
	assert.Equal(t, 30, rule.SlotDurationMinutes)
}

func TestRuleRepository_CreateErrors(t *testing.T) {
	ctx := context.Background()
	rule := func() *model.AvailabilityRule {
		return &model.AvailabilityRule{
			DoctorID:            uuid.New(),
			DayOfWeek:           time.Monday,
			StartTime:           timerange.MustParseClock("09:00"),
			EndTime:             timerange.MustParseClock("10:00"),
			SlotDurationMinutes: 30,
		}
	}

	t.Run("duplicate day", func(t *testing.T) {
		base, mock := newMock(t)
		mock.ExpectExec("INSERT INTO availability_rules").WillReturnError(&pq.Error{Code: "23505"})
		err := NewRuleRepository(base).Create(ctx, rule())
		assert.True(t, errors.Is(err, apperrors.ErrDuplicateKey))
	})

	t.Run("check constraint", func(t *testing.T) {
		base, mock := newMock(t)
		mock.ExpectExec("INSERT INTO availability_rules").WillReturnError(&pq.Error{Code: "23514"})
		err := NewRuleRepository(base).Create(ctx, rule())
		assert.True(t, errors.Is(err, apperrors.ErrInvalidTimeRange))
	})
}

func TestRuleRepository_Replace(t *testing.T) {
	ctx := context.Background()
	doctorID := uuid.New()
	newRule := &model.AvailabilityRule{
		DayOfWeek:           time.Tuesday,
		StartTime:           timerange.MustParseClock("09:00"),
		EndTime:             timerange.MustParseClock("10:00"),
		SlotDurationMinutes: 30,
	}

	t.Run("rolls back when new day is taken", func(t *testing.T) {
		base, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectQuery("DELETE FROM availability_rules").
			WithArgs(doctorID, 1).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(uuid.NewString(), time.Now()))
		mock.ExpectExec("INSERT INTO availability_rules").WillReturnError(&pq.Error{Code: "23505"})
		mock.ExpectRollback()

		err := NewRuleRepository(base).Replace(ctx, doctorID, time.Monday, newRule)
		assert.True(t, errors.Is(err, apperrors.ErrDuplicateKey))
	})

	t.Run("old rule missing", func(t *testing.T) {
		base, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectQuery("DELETE FROM availability_rules").WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		err := NewRuleRepository(base).Replace(ctx, doctorID, time.Monday, newRule)
		assert.True(t, errors.Is(err, apperrors.ErrNotFoundKind))
	})

	t.Run("committed", func(t *testing.T) {
		base, mock := newMock(t)
		oldID := uuid.New()
		mock.ExpectBegin()
		mock.ExpectQuery("DELETE FROM availability_rules").
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(oldID.String(), time.Now()))
		mock.ExpectExec("INSERT INTO availability_rules").
			WithArgs(oldID, doctorID, 2, 540, 600, 30, sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, NewRuleRepository(base).Replace(ctx, doctorID, time.Monday, newRule))
		assert.Equal(t, oldID, newRule.ID)
	})
}

func TestExceptionRepository_Get(t *testing.T) {
	ctx := context.Background()
	base, mock := newMock(t)
	doctorID := uuid.New()

	cols := []string{"id", "doctor_id", "date", "is_available", "start_minute", "end_minute", "slot_duration_minutes", "created_at"}
	mock.ExpectQuery("FROM availability_exceptions").
		WithArgs(doctorID, "2026-10-19").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(uuid.NewString(), doctorID.String(), time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC), false, nil, nil, nil, time.Now()))

	exc, err := NewExceptionRepository(base).Get(ctx, doctorID, monday)
	require.NoError(t, err)
	assert.False(t, exc.IsAvailable)
	assert.False(t, exc.HasOverride())
	assert.Equal(t, monday, exc.Date)
}

func TestExceptionRepository_DeleteMissing(t *testing.T) {
	base, mock := newMock(t)
	mock.ExpectExec("DELETE FROM availability_exceptions").WillReturnResult(sqlmock.NewResult(0, 0))

	err := NewExceptionRepository(base).Delete(context.Background(), uuid.New(), monday)
	assert.True(t, errors.Is(err, apperrors.ErrNotFoundKind))
}

func TestOutboxRepository_ClaimPending(t *testing.T) {
	base, mock := newMock(t)
	now := time.Now()
	cols := []string{"id", "event_type", "payload", "status", "error_message", "retry_count", "retry_at", "created_at", "processed_at", "updated_at"}

	mock.ExpectQuery("FOR UPDATE SKIP LOCKED").
		WithArgs(10).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(uuid.NewString(), model.EventBookingReserved, []byte(`{"a":1}`), "processing", nil, int64(0), nil, now, nil, now))

	events, err := NewOutboxRepository(base).ClaimPending(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, model.OutboxStatusProcessing, events[0].Status)
	assert.JSONEq(t, `{"a":1}`, string(events[0].Payload))
}

func TestMigrator_Up(t *testing.T) {
	base, mock := newMock(t)
	files := fstest.MapFS{
		"001_one.sql": {Data: []byte("CREATE TABLE one (id INT);")},
		"002_two.sql": {Data: []byte("CREATE TABLE two (id INT);")},
		"README.md":   {Data: []byte("ignored")},
	}

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT version, applied_at FROM schema_migrations").
		WillReturnRows(sqlmock.NewRows([]string{"version", "applied_at"}).AddRow(int64(1), time.Now()))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE two").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO schema_migrations").WithArgs(2, "002_two.sql").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	n, err := NewMigrator(base.GetDB(), files).Up(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMigrator_LoadMigrations_DuplicateVersion(t *testing.T) {
	files := fstest.MapFS{
		"001_one.sql":   {Data: []byte("SELECT 1;")},
		"001_other.sql": {Data: []byte("SELECT 1;")},
	}
	_, err := NewMigrator(nil, files).LoadMigrations()
	assert.Error(t, err)
}
