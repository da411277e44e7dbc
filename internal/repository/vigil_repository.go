package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/vigilia-api/internal/models"
)

const vigilColumns = `id, section_id, parish, turn_number, starts_at, ends_at, officiant, chaplain, state, attendance, guard_blocks, special_roles, notes, minute_id, version, created_at, updated_at`

// VigilRepository persists vigil documents. Embedded collections are stored as JSONB and written whole.
type VigilRepository struct {
	db *sqlx.DB
}

// NewVigilRepository constructs the repository.
func NewVigilRepository(db *sqlx.DB) *VigilRepository {
	return &VigilRepository{db: db}
}

// List returns vigils matching the filter, newest first, with the total count.
func (r *VigilRepository) List(ctx context.Context, filter models.VigilFilter) ([]models.Vigil, int, error) {
	baseQuery := `FROM vigils WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.SectionID != "" {
		conditions = append(conditions, fmt.Sprintf("section_id = $%d", len(args)+1))
		args = append(args, filter.SectionID)
	}
	if filter.State != nil {
		conditions = append(conditions, fmt.Sprintf("state = $%d", len(args)+1))
		args = append(args, *filter.State)
	}
	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("starts_at >= $%d", len(args)+1))
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("starts_at < $%d", len(args)+1))
		args = append(args, *filter.To)
	}
	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	limit, offset := pageBounds(filter.Page, filter.PageSize)
	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY starts_at DESC LIMIT %d OFFSET %d", vigilColumns, baseQuery, limit, offset)

	var vigils []models.Vigil
	if err := r.db.SelectContext(ctx, &vigils, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list vigils: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+baseQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count vigils: %w", err)
	}
	return vigils, total, nil
}

// FindByID loads a vigil document.
func (r *VigilRepository) FindByID(ctx context.Context, id string) (*models.Vigil, error) {
	query := `SELECT ` + vigilColumns + ` FROM vigils WHERE id = $1`
	var vigil models.Vigil
	if err := r.db.GetContext(ctx, &vigil, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find vigil: %w", err)
	}
	return &vigil, nil
}

// Create inserts a vigil with version 1.
func (r *VigilRepository) Create(ctx context.Context, vigil *models.Vigil) error {
	if vigil.ID == "" {
		vigil.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	vigil.CreatedAt = now
	vigil.UpdatedAt = now
	vigil.Version = 1
	const query = `INSERT INTO vigils (id, section_id, parish, turn_number, starts_at, ends_at, officiant, chaplain, state, attendance, guard_blocks, special_roles, notes, minute_id, version, created_at, updated_at)
VALUES (:id, :section_id, :parish, :turn_number, :starts_at, :ends_at, :officiant, :chaplain, :state, :attendance, :guard_blocks, :special_roles, :notes, :minute_id, :version, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, vigil); err != nil {
		return fmt.Errorf("create vigil: %w", err)
	}
	return nil
}

// Update writes the whole document when the stored version still equals vigil.Version and bumps it.
// It returns sql.ErrNoRows when the vigil is gone and ErrStaleVersion when someone else saved first.
func (r *VigilRepository) Update(ctx context.Context, vigil *models.Vigil) error {
	expected := vigil.Version
	next := *vigil
	next.Version = expected + 1
	next.UpdatedAt = time.Now().UTC()

	const query = `UPDATE vigils SET section_id = :section_id, parish = :parish, turn_number = :turn_number, starts_at = :starts_at, ends_at = :ends_at,
officiant = :officiant, chaplain = :chaplain, state = :state, attendance = :attendance, guard_blocks = :guard_blocks, special_roles = :special_roles,
notes = :notes, version = :version, updated_at = :updated_at
WHERE id = :id AND version = :expected_version`
	args := map[string]interface{}{
		"id":               next.ID,
		"section_id":       next.SectionID,
		"parish":           next.Parish,
		"turn_number":      next.TurnNumber,
		"starts_at":        next.StartsAt,
		"ends_at":          next.EndsAt,
		"officiant":        next.Officiant,
		"chaplain":         next.Chaplain,
		"state":            next.State,
		"attendance":       next.Attendance,
		"guard_blocks":     next.GuardBlocks,
		"special_roles":    next.SpecialRoles,
		"notes":            next.Notes,
		"version":          next.Version,
		"updated_at":       next.UpdatedAt,
		"expected_version": expected,
	}
	res, err := r.db.NamedExecContext(ctx, query, args)
	if err != nil {
		return fmt.Errorf("update vigil: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update vigil rows affected: %w", err)
	}
	if rows == 0 {
		var exists bool
		if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM vigils WHERE id = $1)`, vigil.ID); err != nil {
			return fmt.Errorf("check vigil existence: %w", err)
		}
		if !exists {
			return sql.ErrNoRows
		}
		return ErrStaleVersion
	}
	*vigil = next
	return nil
}
