package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mundodelosninos/mundo-de-los-ninos-sub001/internal/authz"
	"github.com/mundodelosninos/mundo-de-los-ninos-sub001/internal/models"
	appErrors "github.com/mundodelosninos/mundo-de-los-ninos-sub001/pkg/errors"
)

type activityRepository interface {
	List(ctx context.Context, filter models.ActivityFilter) ([]models.ActivityRecord, int, error)
	FindByID(ctx context.Context, id string) (*models.ActivityRecord, error)
	FindByBatch(ctx context.Context, batchID string) ([]models.Activity, error)
	Create(ctx context.Context, activity *models.Activity) error
	Update(ctx context.Context, activity *models.Activity) error
	UpdateBatch(ctx context.Context, batchID, title, actType string, status models.ActivityStatus, start, end time.Time, notes *string) (int, error)
	Delete(ctx context.Context, id string) error
	DeleteBatch(ctx context.Context, batchID string) (int, error)
}

// CreateActivityRequest assigns one activity to one or more students. Rows
// created together share a batch id.
type CreateActivityRequest struct {
	StudentIDs []string              `json:"student_ids" validate:"required,min=1"`
	Title      string                `json:"title" validate:"required"`
	Type       string                `json:"type" validate:"required"`
	Status     models.ActivityStatus `json:"status" validate:"required"`
	StartTime  time.Time             `json:"start_time" validate:"required"`
	EndTime    time.Time             `json:"end_time" validate:"required"`
	Notes      *string               `json:"notes"`
}

// UpdateActivityRequest amends one activity or a whole batch.
type UpdateActivityRequest struct {
	Title     string                `json:"title" validate:"required"`
	Type      string                `json:"type" validate:"required"`
	Status    models.ActivityStatus `json:"status" validate:"required"`
	StartTime time.Time             `json:"start_time" validate:"required"`
	EndTime   time.Time             `json:"end_time" validate:"required"`
	Notes     *string               `json:"notes"`
}

// ActivityService handles per-student activity use-cases.
type ActivityService struct {
	repo      activityRepository
	policy    *authz.Policy
	validator *validator.Validate
	logger    *zap.Logger
}

// NewActivityService constructs the activity service.
func NewActivityService(repo activityRepository, policy *authz.Policy, validate *validator.Validate, logger *zap.Logger) *ActivityService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActivityService{repo: repo, policy: policy, validator: validate, logger: logger}
}

// List returns activities inside the principal's scope.
func (s *ActivityService) List(ctx context.Context, principal authz.Principal, filter models.ActivityFilter) ([]models.ActivityRecord, *models.Pagination, error) {
	scope, err := s.policy.ScopeStudents(ctx, principal)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve scope")
	}
	if !scope.All {
		// Lists narrow to the scope and never error: an out-of-scope
		// student filter yields the empty page.
		if filter.StudentID != "" {
			if !scope.Contains(filter.StudentID) {
				return []models.ActivityRecord{}, &models.Pagination{Page: 1, PageSize: filter.PageSize, TotalCount: 0}, nil
			}
		} else {
			if len(scope.StudentIDs) == 0 {
				return []models.ActivityRecord{}, &models.Pagination{Page: 1, PageSize: filter.PageSize, TotalCount: 0}, nil
			}
			filter.StudentIDs = scope.StudentIDs
		}
	}

	records, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list activities")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return records, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one activity.
func (s *ActivityService) Get(ctx context.Context, principal authz.Principal, id string) (*models.ActivityRecord, error) {
	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "activity not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load activity")
	}
	if err := s.policy.AuthorizeStudentRead(ctx, principal, record.StudentID); err != nil {
		return nil, err
	}
	return record, nil
}

// Create assigns an activity to every listed student. Authorization is
// all-or-nothing: one out-of-scope student rejects the whole batch.
func (s *ActivityService) Create(ctx context.Context, principal authz.Principal, req CreateActivityRequest) ([]models.Activity, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid activity payload")
	}
	if !req.Status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown activity status")
	}
	if !req.EndTime.After(req.StartTime) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end time must be after start time")
	}
	if err := s.policy.AuthorizeBatch(ctx, principal, req.StudentIDs); err != nil {
		return nil, err
	}

	var batchID *string
	if len(req.StudentIDs) > 1 {
		id := uuid.NewString()
		batchID = &id
	}

	created := make([]models.Activity, 0, len(req.StudentIDs))
	for _, studentID := range req.StudentIDs {
		activity := models.Activity{
			ID:         uuid.NewString(),
			StudentID:  studentID,
			AssignedBy: principal.ID,
			Title:      req.Title,
			Type:       req.Type,
			Status:     req.Status,
			StartTime:  req.StartTime,
			EndTime:    req.EndTime,
			Notes:      req.Notes,
			BatchID:    batchID,
		}
		if err := s.repo.Create(ctx, &activity); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create activity")
		}
		created = append(created, activity)
	}
	return created, nil
}

// Update amends a single activity row.
func (s *ActivityService) Update(ctx context.Context, principal authz.Principal, id string, req UpdateActivityRequest) (*models.Activity, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid activity payload")
	}
	if !req.Status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown activity status")
	}
	if !req.EndTime.After(req.StartTime) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end time must be after start time")
	}

	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "activity not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load activity")
	}
	if err := s.policy.AuthorizeStudentWrite(ctx, principal, record.StudentID); err != nil {
		return nil, err
	}

	updated := record.Activity
	updated.Title = req.Title
	updated.Type = req.Type
	updated.Status = req.Status
	updated.StartTime = req.StartTime
	updated.EndTime = req.EndTime
	updated.Notes = req.Notes
	if err := s.repo.Update(ctx, &updated); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update activity")
	}
	return &updated, nil
}

// UpdateBatch amends every row sharing the batch id. The caller must be in
// scope for every affected student.
func (s *ActivityService) UpdateBatch(ctx context.Context, principal authz.Principal, batchID string, req UpdateActivityRequest) (int, error) {
	if err := s.validator.Struct(req); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid activity payload")
	}
	if !req.Status.Valid() {
		return 0, appErrors.Clone(appErrors.ErrValidation, "unknown activity status")
	}
	if !req.EndTime.After(req.StartTime) {
		return 0, appErrors.Clone(appErrors.ErrValidation, "end time must be after start time")
	}

	if err := s.authorizeBatchMembers(ctx, principal, batchID); err != nil {
		return 0, err
	}

	affected, err := s.repo.UpdateBatch(ctx, batchID, req.Title, req.Type, req.Status, req.StartTime, req.EndTime, req.Notes)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update batch")
	}
	return affected, nil
}

// Delete removes a single activity row.
func (s *ActivityService) Delete(ctx context.Context, principal authz.Principal, id string) error {
	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "activity not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load activity")
	}
	if err := s.policy.AuthorizeStudentWrite(ctx, principal, record.StudentID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete activity")
	}
	return nil
}

// DeleteBatch removes every row sharing the batch id.
func (s *ActivityService) DeleteBatch(ctx context.Context, principal authz.Principal, batchID string) (int, error) {
	if err := s.authorizeBatchMembers(ctx, principal, batchID); err != nil {
		return 0, err
	}
	affected, err := s.repo.DeleteBatch(ctx, batchID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete batch")
	}
	return affected, nil
}

func (s *ActivityService) authorizeBatchMembers(ctx context.Context, principal authz.Principal, batchID string) error {
	rows, err := s.repo.FindByBatch(ctx, batchID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batch")
	}
	if len(rows) == 0 {
		return appErrors.Clone(appErrors.ErrNotFound, "batch not found")
	}
	studentIDs := make([]string, 0, len(rows))
	for _, row := range rows {
		studentIDs = append(studentIDs, row.StudentID)
	}
	return s.policy.AuthorizeBatch(ctx, principal, studentIDs)
}
