package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
	apperrors "github.com/jwalitptl/booking-api/pkg/errors"
)

const ruleColumns = `id, doctor_id, day_of_week, start_minute, end_minute, slot_duration_minutes, created_at, updated_at`

type ruleRepository struct {
	BaseRepository
}

func NewRuleRepository(base BaseRepository) repository.AvailabilityRuleRepository {
	return &ruleRepository{base}
}

func (r *ruleRepository) Create(ctx context.Context, rule *model.AvailabilityRule) error {
	rule.ID = uuid.New()
	rule.CreatedAt = time.Now()
	rule.UpdatedAt = rule.CreatedAt

	return r.insert(ctx, r.db, rule)
}

func (r *ruleRepository) Get(ctx context.Context, doctorID uuid.UUID, day time.Weekday) (*model.AvailabilityRule, error) {
	query := `SELECT ` + ruleColumns + `
		FROM availability_rules
		WHERE doctor_id = $1 AND day_of_week = $2`

	var rule model.AvailabilityRule
	if err := r.db.GetContext(ctx, &rule, query, doctorID, int(day)); err != nil {
		return nil, fmt.Errorf("failed to get availability rule: %w", notFound("availability rule", err))
	}
	return &rule, nil
}

func (r *ruleRepository) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*model.AvailabilityRule, error) {
	query := `SELECT ` + ruleColumns + `
		FROM availability_rules
		WHERE doctor_id = $1
		ORDER BY day_of_week`

	rules := []*model.AvailabilityRule{}
	if err := r.db.SelectContext(ctx, &rules, query, doctorID); err != nil {
		return nil, fmt.Errorf("failed to list availability rules: %w", err)
	}
	return rules, nil
}

// Replace deletes the old rule and inserts the new one in one transaction,
// keeping the rule id and creation time.
func (r *ruleRepository) Replace(ctx context.Context, doctorID uuid.UUID, oldDay time.Weekday, rule *model.AvailabilityRule) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		var old struct {
			ID        uuid.UUID `db:"id"`
			CreatedAt time.Time `db:"created_at"`
		}
		err := tx.GetContext(ctx, &old, `
			DELETE FROM availability_rules
			WHERE doctor_id = $1 AND day_of_week = $2
			RETURNING id, created_at`, doctorID, int(oldDay))
		if err != nil {
			return fmt.Errorf("failed to remove availability rule: %w", notFound("availability rule", err))
		}

		rule.ID = old.ID
		rule.DoctorID = doctorID
		rule.CreatedAt = old.CreatedAt
		rule.UpdatedAt = time.Now()
		return r.insert(ctx, tx, rule)
	})
}

func (r *ruleRepository) Delete(ctx context.Context, doctorID uuid.UUID, day time.Weekday) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM availability_rules WHERE doctor_id = $1 AND day_of_week = $2`, doctorID, int(day))
	if err != nil {
		return fmt.Errorf("failed to delete availability rule: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound("availability rule", nil)
	}
	return nil
}

func (r *ruleRepository) insert(ctx context.Context, db sqlx.ExecerContext, rule *model.AvailabilityRule) error {
	query := `
		INSERT INTO availability_rules (` + ruleColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := db.ExecContext(ctx, query,
		rule.ID,
		rule.DoctorID,
		int(rule.DayOfWeek),
		rule.StartTime,
		rule.EndTime,
		rule.SlotDurationMinutes,
		rule.CreatedAt,
		rule.UpdatedAt,
	)
	switch pqCode(err) {
	case "":
	case uniqueViolation:
		return apperrors.DuplicateKey("doctor already has a rule for "+rule.DayOfWeek.String(), err)
	case checkViolation:
		return apperrors.InvalidTimeRange("rule start time must be before end time", err)
	}
	if err != nil {
		return fmt.Errorf("failed to create availability rule: %w", err)
	}
	return nil
}
