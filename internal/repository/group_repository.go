package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/mundodelosninos/mundo-de-los-ninos-sub001/internal/models"
)

// GroupRepository manages persistence for groups and their memberships.
type GroupRepository struct {
	db *sqlx.DB
}

// NewGroupRepository constructs a GroupRepository.
func NewGroupRepository(db *sqlx.DB) *GroupRepository {
	return &GroupRepository{db: db}
}

// List returns groups matching the provided filters.
func (r *GroupRepository) List(ctx context.Context, filter models.GroupFilter) ([]models.GroupDetail, int, error) {
	base := "FROM groups g JOIN users t ON t.id = g.teacher_id"
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("g.teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if len(filter.GroupIDs) > 0 {
		placeholders := make([]string, len(filter.GroupIDs))
		for i, id := range filter.GroupIDs {
			placeholders[i] = fmt.Sprintf("$%d", len(args)+1)
			args = append(args, id)
		}
		conditions = append(conditions, fmt.Sprintf("g.id IN (%s)", strings.Join(placeholders, ", ")))
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("g.active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(g.name) LIKE $%d", len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	column := sortColumn(filter.SortBy, map[string]string{
		"name":       "g.name",
		"created_at": "g.created_at",
	}, "g.created_at")
	order := sortOrder(filter.SortOrder)
	size, offset := pageWindow(filter.Page, filter.PageSize)

	query := fmt.Sprintf(`SELECT g.id, g.name, g.teacher_id, g.capacity, g.active, g.created_at, g.updated_at,
        t.full_name AS teacher_name, t.email AS teacher_email, t.phone AS teacher_phone,
        (SELECT COUNT(*) FROM group_students gs WHERE gs.group_id = g.id) AS member_count
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base, column, order, size, offset)

	var groups []models.GroupDetail
	if err := r.db.SelectContext(ctx, &groups, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list groups: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count groups: %w", err)
	}
	return groups, total, nil
}

// FindByID fetches a group detail by ID.
func (r *GroupRepository) FindByID(ctx context.Context, id string) (*models.GroupDetail, error) {
	const query = `SELECT g.id, g.name, g.teacher_id, g.capacity, g.active, g.created_at, g.updated_at,
        t.full_name AS teacher_name, t.email AS teacher_email, t.phone AS teacher_phone,
        (SELECT COUNT(*) FROM group_students gs WHERE gs.group_id = g.id) AS member_count
        FROM groups g
        JOIN users t ON t.id = g.teacher_id
        WHERE g.id = $1`
	var detail models.GroupDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// Create inserts a new group record.
func (r *GroupRepository) Create(ctx context.Context, group *models.Group) error {
	if group.ID == "" {
		group.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if group.CreatedAt.IsZero() {
		group.CreatedAt = now
	}
	group.UpdatedAt = now
	const query = `INSERT INTO groups (id, name, teacher_id, capacity, active, created_at, updated_at)
        VALUES (:id, :name, :teacher_id, :capacity, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, group); err != nil {
		return fmt.Errorf("create group: %w", err)
	}
	return nil
}

// Update modifies an existing group.
func (r *GroupRepository) Update(ctx context.Context, group *models.Group) error {
	group.UpdatedAt = time.Now().UTC()
	const query = `UPDATE groups SET name = :name, teacher_id = :teacher_id, capacity = :capacity, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, group); err != nil {
		return fmt.Errorf("update group: %w", err)
	}
	return nil
}

// Deactivate marks a group as inactive.
func (r *GroupRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE groups SET active = false, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate group: %w", err)
	}
	return nil
}

// MemberCount returns the current number of students in a group.
func (r *GroupRepository) MemberCount(ctx context.Context, groupID string) (int, error) {
	const query = `SELECT COUNT(*) FROM group_students WHERE group_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, groupID); err != nil {
		return 0, fmt.Errorf("member count: %w", err)
	}
	return count, nil
}

// HasMember reports whether the student already belongs to the group.
func (r *GroupRepository) HasMember(ctx context.Context, groupID, studentID string) (bool, error) {
	const query = `SELECT 1 FROM group_students WHERE group_id = $1 AND student_id = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, groupID, studentID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check membership: %w", err)
	}
	return true, nil
}

// AddStudent inserts a membership row.
func (r *GroupRepository) AddStudent(ctx context.Context, groupID, studentID string) error {
	const query = `INSERT INTO group_students (group_id, student_id, added_at) VALUES ($1, $2, $3)`
	if _, err := r.db.ExecContext(ctx, query, groupID, studentID, time.Now().UTC()); err != nil {
		return fmt.Errorf("add student to group: %w", err)
	}
	return nil
}

// RemoveStudent deletes a membership row.
func (r *GroupRepository) RemoveStudent(ctx context.Context, groupID, studentID string) error {
	const query = `DELETE FROM group_students WHERE group_id = $1 AND student_id = $2`
	if _, err := r.db.ExecContext(ctx, query, groupID, studentID); err != nil {
		return fmt.Errorf("remove student from group: %w", err)
	}
	return nil
}
