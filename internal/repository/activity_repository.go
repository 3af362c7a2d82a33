package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/mundodelosninos/mundo-de-los-ninos-sub001/internal/models"
)

// ActivityRepository manages persistence for activity rows, including batch
// operations over rows sharing a batch id.
type ActivityRepository struct {
	db *sqlx.DB
}

// NewActivityRepository constructs an ActivityRepository.
func NewActivityRepository(db *sqlx.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// List returns activities matching the provided filters.
func (r *ActivityRepository) List(ctx context.Context, filter models.ActivityFilter) ([]models.ActivityRecord, int, error) {
	base := "FROM activities a JOIN students s ON s.id = a.student_id"
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("a.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if len(filter.StudentIDs) > 0 {
		placeholders := make([]string, len(filter.StudentIDs))
		for i, id := range filter.StudentIDs {
			placeholders[i] = fmt.Sprintf("$%d", len(args)+1)
			args = append(args, id)
		}
		conditions = append(conditions, fmt.Sprintf("a.student_id IN (%s)", strings.Join(placeholders, ", ")))
	}
	if filter.BatchID != "" {
		conditions = append(conditions, fmt.Sprintf("a.batch_id = $%d", len(args)+1))
		args = append(args, filter.BatchID)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("a.status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("a.start_time >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("a.start_time <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	column := sortColumn(filter.SortBy, map[string]string{
		"start_time": "a.start_time",
		"status":     "a.status",
		"created_at": "a.created_at",
	}, "a.start_time")
	order := sortOrder(filter.SortOrder)
	size, offset := pageWindow(filter.Page, filter.PageSize)

	query := fmt.Sprintf(`SELECT a.id, a.student_id, a.assigned_by, a.title, a.type, a.status, a.start_time, a.end_time, a.notes, a.batch_id, a.created_at, a.updated_at,
        s.full_name AS student_name
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base, column, order, size, offset)

	var records []models.ActivityRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list activities: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count activities: %w", err)
	}
	return records, total, nil
}

// FindByID fetches an activity by ID.
func (r *ActivityRepository) FindByID(ctx context.Context, id string) (*models.ActivityRecord, error) {
	const query = `SELECT a.id, a.student_id, a.assigned_by, a.title, a.type, a.status, a.start_time, a.end_time, a.notes, a.batch_id, a.created_at, a.updated_at,
        s.full_name AS student_name
        FROM activities a
        JOIN students s ON s.id = a.student_id
        WHERE a.id = $1`
	var record models.ActivityRecord
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		return nil, err
	}
	return &record, nil
}

// FindByBatch returns all activities sharing a batch id.
func (r *ActivityRepository) FindByBatch(ctx context.Context, batchID string) ([]models.Activity, error) {
	const query = `SELECT id, student_id, assigned_by, title, type, status, start_time, end_time, notes, batch_id, created_at, updated_at
        FROM activities WHERE batch_id = $1`
	activities := []models.Activity{}
	if err := r.db.SelectContext(ctx, &activities, query, batchID); err != nil {
		return nil, fmt.Errorf("find batch: %w", err)
	}
	return activities, nil
}

// Create inserts a new activity row.
func (r *ActivityRepository) Create(ctx context.Context, activity *models.Activity) error {
	if activity.ID == "" {
		activity.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if activity.CreatedAt.IsZero() {
		activity.CreatedAt = now
	}
	activity.UpdatedAt = now
	const query = `INSERT INTO activities (id, student_id, assigned_by, title, type, status, start_time, end_time, notes, batch_id, created_at, updated_at)
        VALUES (:id, :student_id, :assigned_by, :title, :type, :status, :start_time, :end_time, :notes, :batch_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, activity); err != nil {
		return fmt.Errorf("create activity: %w", err)
	}
	return nil
}

// Update modifies an existing activity row.
func (r *ActivityRepository) Update(ctx context.Context, activity *models.Activity) error {
	activity.UpdatedAt = time.Now().UTC()
	const query = `UPDATE activities SET title = :title, type = :type, status = :status, start_time = :start_time, end_time = :end_time, notes = :notes, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, activity); err != nil {
		return fmt.Errorf("update activity: %w", err)
	}
	return nil
}

// UpdateBatch applies the same field changes to every row in a batch.
func (r *ActivityRepository) UpdateBatch(ctx context.Context, batchID, title, actType string, status models.ActivityStatus, start, end time.Time, notes *string) (int, error) {
	const query = `UPDATE activities SET title = $2, type = $3, status = $4, start_time = $5, end_time = $6, notes = $7, updated_at = $8 WHERE batch_id = $1`
	res, err := r.db.ExecContext(ctx, query, batchID, title, actType, status, start, end, notes, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("update batch: %w", err)
	}
	affected, _ := res.RowsAffected()
	return int(affected), nil
}

// Delete removes an activity row.
func (r *ActivityRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM activities WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete activity: %w", err)
	}
	return nil
}

// DeleteBatch removes every row in a batch and reports the count.
func (r *ActivityRepository) DeleteBatch(ctx context.Context, batchID string) (int, error) {
	const query = `DELETE FROM activities WHERE batch_id = $1`
	res, err := r.db.ExecContext(ctx, query, batchID)
	if err != nil {
		return 0, fmt.Errorf("delete batch: %w", err)
	}
	affected, _ := res.RowsAffected()
	return int(affected), nil
}
