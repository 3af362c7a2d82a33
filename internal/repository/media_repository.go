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

// MediaRepository manages uploaded media rows and their student tags.
type MediaRepository struct {
	db *sqlx.DB
}

// NewMediaRepository constructs a MediaRepository.
func NewMediaRepository(db *sqlx.DB) *MediaRepository {
	return &MediaRepository{db: db}
}

// Create inserts a media row together with its student tags.
func (r *MediaRepository) Create(ctx context.Context, media *models.StudentMedia, studentIDs []string) error {
	if media.ID == "" {
		media.ID = uuid.NewString()
	}
	if media.CreatedAt.IsZero() {
		media.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	const mediaQuery = `INSERT INTO student_media (id, file_url, storage_key, type, caption, uploaded_by, created_at)
        VALUES (:id, :file_url, :storage_key, :type, :caption, :uploaded_by, :created_at)`
	if _, err := tx.NamedExecContext(ctx, mediaQuery, media); err != nil {
		return fmt.Errorf("create media: %w", err)
	}

	const tagQuery = `INSERT INTO media_students (media_id, student_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	for _, studentID := range studentIDs {
		if _, err := tx.ExecContext(ctx, tagQuery, media.ID, studentID); err != nil {
			return fmt.Errorf("tag student: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit media: %w", err)
	}
	return nil
}

// List returns media matching the provided filters, newest first. The
// StudentIDs filter restricts results to media tagged to at least one of the
// given students.
func (r *MediaRepository) List(ctx context.Context, filter models.MediaFilter) ([]models.StudentMedia, int, error) {
	base := "FROM student_media sm"
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM media_students ms WHERE ms.media_id = sm.id AND ms.student_id = $%d)", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if len(filter.StudentIDs) > 0 {
		placeholders := make([]string, len(filter.StudentIDs))
		for i, id := range filter.StudentIDs {
			placeholders[i] = fmt.Sprintf("$%d", len(args)+1)
			args = append(args, id)
		}
		conditions = append(conditions, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM media_students ms WHERE ms.media_id = sm.id AND ms.student_id IN (%s))",
			strings.Join(placeholders, ", ")))
	}
	if filter.Type != nil {
		conditions = append(conditions, fmt.Sprintf("sm.type = $%d", len(args)+1))
		args = append(args, *filter.Type)
	}
	if filter.UploadedBy != "" {
		conditions = append(conditions, fmt.Sprintf("sm.uploaded_by = $%d", len(args)+1))
		args = append(args, filter.UploadedBy)
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))
	size, offset := pageWindow(filter.Page, filter.PageSize)

	query := fmt.Sprintf(`SELECT sm.id, sm.file_url, sm.storage_key, sm.type, sm.caption, sm.uploaded_by, sm.created_at
        %s ORDER BY sm.created_at DESC LIMIT %d OFFSET %d`, base, size, offset)

	media := []models.StudentMedia{}
	if err := r.db.SelectContext(ctx, &media, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list media: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count media: %w", err)
	}
	return media, total, nil
}

// FindByID fetches a media row with its tagged student ids.
func (r *MediaRepository) FindByID(ctx context.Context, id string) (*models.MediaDetail, error) {
	const query = `SELECT id, file_url, storage_key, type, caption, uploaded_by, created_at
        FROM student_media WHERE id = $1`
	var detail models.MediaDetail
	if err := r.db.GetContext(ctx, &detail.StudentMedia, query, id); err != nil {
		return nil, err
	}

	const tagQuery = `SELECT student_id FROM media_students WHERE media_id = $1 ORDER BY student_id`
	detail.StudentIDs = []string{}
	if err := r.db.SelectContext(ctx, &detail.StudentIDs, tagQuery, id); err != nil {
		return nil, fmt.Errorf("load media tags: %w", err)
	}
	return &detail, nil
}

// TaggedStudentIDs returns the student ids a media item is tagged to.
func (r *MediaRepository) TaggedStudentIDs(ctx context.Context, mediaID string) ([]string, error) {
	const query = `SELECT student_id FROM media_students WHERE media_id = $1`
	ids := []string{}
	if err := r.db.SelectContext(ctx, &ids, query, mediaID); err != nil {
		return nil, fmt.Errorf("tagged students: %w", err)
	}
	return ids, nil
}

// Delete removes a media row and its tags.
func (r *MediaRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM media_students WHERE media_id = $1`, id); err != nil {
		return fmt.Errorf("delete media tags: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM student_media WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete media: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete: %w", err)
	}
	return nil
}
