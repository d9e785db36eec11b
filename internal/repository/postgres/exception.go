package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
	apperrors "github.com/jwalitptl/booking-api/pkg/errors"
	"github.com/jwalitptl/booking-api/pkg/timerange"
)

const exceptionColumns = `id, doctor_id, date, is_available, start_minute, end_minute, slot_duration_minutes, created_at`

type exceptionRepository struct {
	BaseRepository
}

func NewExceptionRepository(base BaseRepository) repository.AvailabilityExceptionRepository {
	return &exceptionRepository{base}
}

func (r *exceptionRepository) Create(ctx context.Context, exc *model.AvailabilityException) error {
	query := `
		INSERT INTO availability_exceptions (` + exceptionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	exc.ID = uuid.New()
	exc.CreatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		exc.ID,
		exc.DoctorID,
		exc.Date,
		exc.IsAvailable,
		exc.StartTime,
		exc.EndTime,
		exc.SlotDurationMinutes,
		exc.CreatedAt,
	)
	switch pqCode(err) {
	case uniqueViolation:
		return apperrors.DuplicateKey("doctor already has an exception on "+exc.Date.String(), err)
	case checkViolation:
		return apperrors.InvalidTimeRange("exception override is inconsistent", err)
	}
	if err != nil {
		return fmt.Errorf("failed to create availability exception: %w", err)
	}
	return nil
}

func (r *exceptionRepository) Get(ctx context.Context, doctorID uuid.UUID, date timerange.Date) (*model.AvailabilityException, error) {
	query := `SELECT ` + exceptionColumns + `
		FROM availability_exceptions
		WHERE doctor_id = $1 AND date = $2`

	var exc model.AvailabilityException
	if err := r.db.GetContext(ctx, &exc, query, doctorID, date); err != nil {
		return nil, fmt.Errorf("failed to get availability exception: %w", notFound("availability exception", err))
	}
	return &exc, nil
}

func (r *exceptionRepository) ListByDoctor(ctx context.Context, doctorID uuid.UUID, from, to timerange.Date) ([]*model.AvailabilityException, error) {
	conditions := []string{"doctor_id = $1"}
	args := []interface{}{doctorID}

	if !from.IsZero() {
		args = append(args, from)
		conditions = append(conditions, fmt.Sprintf("date >= $%d", len(args)))
	}
	if !to.IsZero() {
		args = append(args, to)
		conditions = append(conditions, fmt.Sprintf("date <= $%d", len(args)))
	}

	query := `SELECT ` + exceptionColumns + `
		FROM availability_exceptions
		WHERE ` + strings.Join(conditions, " AND ") + `
		ORDER BY date`

	exceptions := []*model.AvailabilityException{}
	if err := r.db.SelectContext(ctx, &exceptions, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list availability exceptions: %w", err)
	}
	return exceptions, nil
}

func (r *exceptionRepository) Delete(ctx context.Context, doctorID uuid.UUID, date timerange.Date) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM availability_exceptions WHERE doctor_id = $1 AND date = $2`, doctorID, date)
	if err != nil {
		return fmt.Errorf("failed to delete availability exception: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound("availability exception", nil)
	}
	return nil
}
