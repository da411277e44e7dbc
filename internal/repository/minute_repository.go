package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/vigilia-api/internal/models"
)

const minuteColumns = `id, vigil_id, section_id, schedule, readings, movements, other_business, attendance_stats, finance, honoraria_detail, signatures, version, created_at, updated_at`

// MinuteBuilder turns the locked vigil into the minute to insert. Returning an error aborts the transaction.
type MinuteBuilder func(vigil *models.Vigil) (*models.Minute, error)

// MinuteRepository persists minutes (actas).
type MinuteRepository struct {
	db *sqlx.DB
}

// NewMinuteRepository constructs the repository.
func NewMinuteRepository(db *sqlx.DB) *MinuteRepository {
	return &MinuteRepository{db: db}
}

// FindByID loads a minute.
func (r *MinuteRepository) FindByID(ctx context.Context, id string) (*models.Minute, error) {
	query := `SELECT ` + minuteColumns + ` FROM minutes WHERE id = $1`
	var minute models.Minute
	if err := r.db.GetContext(ctx, &minute, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find minute: %w", err)
	}
	return &minute, nil
}

// FindByVigilID loads the minute of a vigil.
func (r *MinuteRepository) FindByVigilID(ctx context.Context, vigilID string) (*models.Minute, error) {
	query := `SELECT ` + minuteColumns + ` FROM minutes WHERE vigil_id = $1`
	var minute models.Minute
	if err := r.db.GetContext(ctx, &minute, query, vigilID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find minute by vigil: %w", err)
	}
	return &minute, nil
}

// List returns minutes newest first with the total count.
func (r *MinuteRepository) List(ctx context.Context, filter models.MinuteFilter) ([]models.Minute, int, error) {
	baseQuery := `FROM minutes`
	var args []interface{}
	if filter.SectionID != "" {
		baseQuery += ` WHERE section_id = $1`
		args = append(args, filter.SectionID)
	}
	limit, offset := pageBounds(filter.Page, filter.PageSize)
	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT %d OFFSET %d", minuteColumns, baseQuery, limit, offset)

	var minutes []models.Minute
	if err := r.db.SelectContext(ctx, &minutes, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list minutes: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+baseQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count minutes: %w", err)
	}
	return minutes, total, nil
}

// CreateForVigil locks the vigil row, builds the minute from it, inserts the minute and marks the vigil finished,
// all in one transaction. A second minute for the same vigil yields ErrDuplicate.
func (r *MinuteRepository) CreateForVigil(ctx context.Context, vigilID string, build MinuteBuilder) (minute *models.Minute, vigil *models.Vigil, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin minute generation: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var locked models.Vigil
	if err = tx.GetContext(ctx, &locked, `SELECT `+vigilColumns+` FROM vigils WHERE id = $1 FOR UPDATE`, vigilID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("lock vigil: %w", err)
	}
	if locked.MinuteID != nil {
		err = ErrDuplicate
		return nil, nil, err
	}

	minute, err = build(&locked)
	if err != nil {
		return nil, nil, err
	}
	if minute.ID == "" {
		minute.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	minute.VigilID = locked.ID
	minute.Version = 1
	minute.CreatedAt = now
	minute.UpdatedAt = now

	const insert = `INSERT INTO minutes (id, vigil_id, section_id, schedule, readings, movements, other_business, attendance_stats, finance, honoraria_detail, signatures, version, created_at, updated_at)
VALUES (:id, :vigil_id, :section_id, :schedule, :readings, :movements, :other_business, :attendance_stats, :finance, :honoraria_detail, :signatures, :version, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, insert, minute); err != nil {
		if isUniqueViolation(err) {
			err = ErrDuplicate
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("insert minute: %w", err)
	}

	locked.State = models.VigilStateFinished
	locked.MinuteID = &minute.ID
	locked.Version++
	locked.UpdatedAt = now
	if _, err = tx.ExecContext(ctx, `UPDATE vigils SET state = $2, minute_id = $3, version = $4, updated_at = $5 WHERE id = $1`,
		locked.ID, locked.State, minute.ID, locked.Version, now); err != nil {
		return nil, nil, fmt.Errorf("finish vigil: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit minute generation: %w", err)
	}
	return minute, &locked, nil
}

// UpdateSignatures stores signatures when the stored version equals minute.Version and bumps it.
func (r *MinuteRepository) UpdateSignatures(ctx context.Context, minute *models.Minute) error {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `UPDATE minutes SET signatures = $3, version = version + 1, updated_at = $4 WHERE id = $1 AND version = $2`,
		minute.ID, minute.Version, minute.Signatures, now)
	if err != nil {
		return fmt.Errorf("update minute signatures: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update minute signatures rows affected: %w", err)
	}
	if rows == 0 {
		var exists bool
		if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM minutes WHERE id = $1)`, minute.ID); err != nil {
			return fmt.Errorf("check minute existence: %w", err)
		}
		if !exists {
			return sql.ErrNoRows
		}
		return ErrStaleVersion
	}
	minute.Version++
	minute.UpdatedAt = now
	return nil
}
