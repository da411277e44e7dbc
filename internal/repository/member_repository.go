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

const memberColumns = `id, full_name, section_id, member_type, member_class, vigil_order, phone, email, address, join_date, trial_date, activation_date, presented_by, badges, status_history, notes, created_at, updated_at`

// MemberRepository persists adorers.
type MemberRepository struct {
	db *sqlx.DB
}

// NewMemberRepository constructs the repository.
func NewMemberRepository(db *sqlx.DB) *MemberRepository {
	return &MemberRepository{db: db}
}

// List returns members matching the filter and the total count.
func (r *MemberRepository) List(ctx context.Context, filter models.MemberFilter) ([]models.Member, int, error) {
	baseQuery := `FROM members WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.SectionID != "" {
		conditions = append(conditions, fmt.Sprintf("section_id = $%d", len(args)+1))
		args = append(args, filter.SectionID)
	}
	if filter.Class != nil {
		conditions = append(conditions, fmt.Sprintf("member_class = $%d", len(args)+1))
		args = append(args, *filter.Class)
	}
	if filter.Type != nil {
		conditions = append(conditions, fmt.Sprintf("member_type = $%d", len(args)+1))
		args = append(args, *filter.Type)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(full_name) LIKE $%d", len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	limit, offset := pageBounds(filter.Page, filter.PageSize)
	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY vigil_order ASC NULLS LAST, full_name ASC LIMIT %d OFFSET %d", memberColumns, baseQuery, limit, offset)

	var members []models.Member
	if err := r.db.SelectContext(ctx, &members, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list members: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+baseQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count members: %w", err)
	}
	return members, total, nil
}

// ListRoster returns the members of a section expected at its vigils.
func (r *MemberRepository) ListRoster(ctx context.Context, sectionID string) ([]models.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE section_id = $1 AND member_class IN ('aspirant', 'trial', 'active', 'honorary') ORDER BY vigil_order ASC NULLS LAST, full_name ASC`
	var members []models.Member
	if err := r.db.SelectContext(ctx, &members, query, sectionID); err != nil {
		return nil, fmt.Errorf("list section roster: %w", err)
	}
	return members, nil
}

// FindByIDs loads several members at once. Ids that are not UUIDs match nothing.
func (r *MemberRepository) FindByIDs(ctx context.Context, ids []string) ([]models.Member, error) {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err == nil && len(id) == 36 {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return []models.Member{}, nil
	}
	query, args, err := sqlx.In(`SELECT `+memberColumns+` FROM members WHERE id IN (?)`, valid)
	if err != nil {
		return nil, fmt.Errorf("build find members query: %w", err)
	}
	var members []models.Member
	if err := r.db.SelectContext(ctx, &members, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("find members: %w", err)
	}
	return members, nil
}

// FindByID returns a member by id.
func (r *MemberRepository) FindByID(ctx context.Context, id string) (*models.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE id = $1`
	var member models.Member
	if err := r.db.GetContext(ctx, &member, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find member: %w", err)
	}
	return &member, nil
}

// Create inserts a member.
func (r *MemberRepository) Create(ctx context.Context, member *models.Member) error {
	if member.ID == "" {
		member.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	member.CreatedAt = now
	member.UpdatedAt = now
	if member.JoinDate.IsZero() {
		member.JoinDate = now
	}
	const query = `INSERT INTO members (id, full_name, section_id, member_type, member_class, vigil_order, phone, email, address, join_date, trial_date, activation_date, presented_by, badges, status_history, notes, created_at, updated_at)
VALUES (:id, :full_name, :section_id, :member_type, :member_class, :vigil_order, :phone, :email, :address, :join_date, :trial_date, :activation_date, :presented_by, :badges, :status_history, :notes, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, member); err != nil {
		return fmt.Errorf("create member: %w", err)
	}
	return nil
}

// Update overwrites the mutable fields including the status history.
func (r *MemberRepository) Update(ctx context.Context, member *models.Member) error {
	member.UpdatedAt = time.Now().UTC()
	const query = `UPDATE members SET full_name = :full_name, section_id = :section_id, member_type = :member_type, member_class = :member_class,
vigil_order = :vigil_order, phone = :phone, email = :email, address = :address, join_date = :join_date, trial_date = :trial_date,
activation_date = :activation_date, presented_by = :presented_by, badges = :badges, status_history = :status_history, notes = :notes, updated_at = :updated_at
WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, member)
	if err != nil {
		return fmt.Errorf("update member: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update member rows affected: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
