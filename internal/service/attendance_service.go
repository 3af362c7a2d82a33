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
	"github.com/mundodelosninos/mundo-de-los-ninos-sub001/internal/repository"
	appErrors "github.com/mundodelosninos/mundo-de-los-ninos-sub001/pkg/errors"
)

type attendanceRepository interface {
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, int, error)
	FindByID(ctx context.Context, id string) (*models.AttendanceRecord, error)
	ExistsForDate(ctx context.Context, studentID string, date time.Time) (bool, error)
	Create(ctx context.Context, record *models.Attendance) error
	Update(ctx context.Context, record *models.Attendance) error
	Delete(ctx context.Context, id string) error
}

// CreateAttendanceRequest holds payload for recording attendance.
type CreateAttendanceRequest struct {
	StudentID string                  `json:"student_id" validate:"required"`
	Date      time.Time               `json:"date" validate:"required"`
	Status    models.AttendanceStatus `json:"status" validate:"required"`
	Mood      *string                 `json:"mood"`
	Meal      *string                 `json:"meal"`
	Nap       *string                 `json:"nap"`
	Notes     *string                 `json:"notes"`
}

// UpdateAttendanceRequest holds payload for amending a record.
type UpdateAttendanceRequest struct {
	Status models.AttendanceStatus `json:"status" validate:"required"`
	Mood   *string                 `json:"mood"`
	Meal   *string                 `json:"meal"`
	Nap    *string                 `json:"nap"`
	Notes  *string                 `json:"notes"`
}

// BulkAttendanceRequest records attendance for many students at once.
type BulkAttendanceRequest struct {
	Date    time.Time                 `json:"date" validate:"required"`
	Records []CreateAttendanceRequest `json:"records" validate:"required,min=1,dive"`
}

// BulkAttendanceResult reports what a bulk call actually wrote.
type BulkAttendanceResult struct {
	Created  []models.Attendance            `json:"created"`
	Failures []models.AttendanceBulkFailure `json:"failures"`
}

// AttendanceService handles daily attendance use-cases.
type AttendanceService struct {
	repo      attendanceRepository
	policy    *authz.Policy
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAttendanceService constructs the attendance service.
func NewAttendanceService(repo attendanceRepository, policy *authz.Policy, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{repo: repo, policy: policy, validator: validate, logger: logger}
}

// List returns attendance records inside the principal's scope.
func (s *AttendanceService) List(ctx context.Context, principal authz.Principal, filter models.AttendanceFilter) ([]models.AttendanceRecord, *models.Pagination, error) {
	scope, err := s.policy.ScopeStudents(ctx, principal)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve scope")
	}
	if !scope.All {
		// Lists narrow to the scope and never error: an out-of-scope
		// student filter yields the empty page.
		if filter.StudentID != "" {
			if !scope.Contains(filter.StudentID) {
				return []models.AttendanceRecord{}, &models.Pagination{Page: 1, PageSize: filter.PageSize, TotalCount: 0}, nil
			}
		} else {
			if len(scope.StudentIDs) == 0 {
				return []models.AttendanceRecord{}, &models.Pagination{Page: 1, PageSize: filter.PageSize, TotalCount: 0}, nil
			}
			filter.StudentIDs = scope.StudentIDs
		}
	}

	records, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
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

// Get returns a single attendance record.
func (s *AttendanceService) Get(ctx context.Context, principal authz.Principal, id string) (*models.AttendanceRecord, error) {
	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "attendance record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}
	if err := s.policy.AuthorizeStudentRead(ctx, principal, record.StudentID); err != nil {
		return nil, err
	}
	return record, nil
}

// Create records attendance for one student and date. At most one record per
// (student, date) exists; the unique index is the final word, the pre-check
// only avoids a throwaway insert.
func (s *AttendanceService) Create(ctx context.Context, principal authz.Principal, req CreateAttendanceRequest) (*models.Attendance, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	if !req.Status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown attendance status")
	}
	if err := s.policy.AuthorizeStudentWrite(ctx, principal, req.StudentID); err != nil {
		return nil, err
	}

	date := truncateToDay(req.Date)
	exists, err := s.repo.ExistsForDate(ctx, req.StudentID, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing attendance")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "attendance already recorded for this student and date")
	}

	record := &models.Attendance{
		ID:        uuid.NewString(),
		StudentID: req.StudentID,
		Date:      date,
		Status:    req.Status,
		Mood:      req.Mood,
		Meal:      req.Meal,
		Nap:       req.Nap,
		Notes:     req.Notes,
		MarkedBy:  principal.ID,
	}
	if err := s.repo.Create(ctx, record); err != nil {
		if errors.Is(err, repository.ErrDuplicateAttendance) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "attendance already recorded for this student and date")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create attendance")
	}
	return record, nil
}

// BulkCreate records attendance for many students in one call. Every student
// must be inside the principal's write scope up front; after that, individual
// failures are collected and skipped rather than aborting the batch.
func (s *AttendanceService) BulkCreate(ctx context.Context, principal authz.Principal, req BulkAttendanceRequest) (*BulkAttendanceResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk attendance payload")
	}

	studentIDs := make([]string, 0, len(req.Records))
	for _, item := range req.Records {
		if !item.Status.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown attendance status")
		}
		studentIDs = append(studentIDs, item.StudentID)
	}
	if err := s.policy.AuthorizeBatch(ctx, principal, studentIDs); err != nil {
		return nil, err
	}

	date := truncateToDay(req.Date)
	result := &BulkAttendanceResult{Created: []models.Attendance{}, Failures: []models.AttendanceBulkFailure{}}
	for _, item := range req.Records {
		record := &models.Attendance{
			ID:        uuid.NewString(),
			StudentID: item.StudentID,
			Date:      date,
			Status:    item.Status,
			Mood:      item.Mood,
			Meal:      item.Meal,
			Nap:       item.Nap,
			Notes:     item.Notes,
			MarkedBy:  principal.ID,
		}
		if err := s.repo.Create(ctx, record); err != nil {
			reason := "write failed"
			if errors.Is(err, repository.ErrDuplicateAttendance) {
				reason = "already recorded for this date"
			}
			s.logger.Warn("bulk attendance item skipped",
				zap.String("student_id", item.StudentID),
				zap.Error(err))
			result.Failures = append(result.Failures, models.AttendanceBulkFailure{
				StudentID: item.StudentID,
				Date:      date,
				Reason:    reason,
			})
			continue
		}
		result.Created = append(result.Created, *record)
	}
	return result, nil
}

// Update amends the mutable fields of an attendance record.
func (s *AttendanceService) Update(ctx context.Context, principal authz.Principal, id string, req UpdateAttendanceRequest) (*models.Attendance, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	if !req.Status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown attendance status")
	}

	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "attendance record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}
	if err := s.policy.AuthorizeStudentWrite(ctx, principal, record.StudentID); err != nil {
		return nil, err
	}

	updated := record.Attendance
	updated.Status = req.Status
	updated.Mood = req.Mood
	updated.Meal = req.Meal
	updated.Nap = req.Nap
	updated.Notes = req.Notes
	if err := s.repo.Update(ctx, &updated); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update attendance")
	}
	return &updated, nil
}

// Delete removes an attendance record.
func (s *AttendanceService) Delete(ctx context.Context, principal authz.Principal, id string) error {
	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "attendance record not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}
	if err := s.policy.AuthorizeStudentWrite(ctx, principal, record.StudentID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete attendance")
	}
	return nil
}

func truncateToDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
