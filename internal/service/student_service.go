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

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	Deactivate(ctx context.Context, id string) error
}

// CreateStudentRequest holds payload for enrolling students.
type CreateStudentRequest struct {
	FullName  string    `json:"full_name" validate:"required"`
	BirthDate time.Time `json:"birth_date" validate:"required"`
	ParentID  string    `json:"parent_id"`
	Notes     string    `json:"notes"`
}

// UpdateStudentRequest holds payload for updating students.
type UpdateStudentRequest struct {
	FullName  string    `json:"full_name" validate:"required"`
	BirthDate time.Time `json:"birth_date" validate:"required"`
	ParentID  string    `json:"parent_id"`
	Notes     string    `json:"notes"`
	Active    bool      `json:"active"`
}

// StudentService handles student use-cases behind the visibility policy.
type StudentService struct {
	repo      studentRepository
	policy    *authz.Policy
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs the student service.
func NewStudentService(repo studentRepository, policy *authz.Policy, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, policy: policy, validator: validate, logger: logger}
}

// List returns the students inside the principal's scope. Out-of-scope
// principals get an empty page, not an error.
func (s *StudentService) List(ctx context.Context, principal authz.Principal, filter models.StudentFilter) ([]models.StudentDetail, *models.Pagination, error) {
	scope, err := s.policy.ScopeStudents(ctx, principal)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve scope")
	}
	if !scope.All {
		if len(scope.StudentIDs) == 0 {
			return []models.StudentDetail{}, &models.Pagination{Page: 1, PageSize: filter.PageSize, TotalCount: 0}, nil
		}
		filter.StudentIDs = scope.StudentIDs
	}

	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	for i := range students {
		s.attachParentView(principal, &students[i])
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return students, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one student with guardian context, redacted for the viewer.
func (s *StudentService) Get(ctx context.Context, principal authz.Principal, id string) (*models.StudentDetail, error) {
	if err := s.policy.AuthorizeStudentRead(ctx, principal, id); err != nil {
		return nil, err
	}
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	s.attachParentView(principal, student)
	return student, nil
}

// Create enrolls a new student. Admin only.
func (s *StudentService) Create(ctx context.Context, principal authz.Principal, req CreateStudentRequest) (*models.Student, error) {
	if !principal.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only administrators enroll students")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}

	student := &models.Student{
		ID:        uuid.NewString(),
		FullName:  req.FullName,
		BirthDate: req.BirthDate,
		ParentID:  req.ParentID,
		Notes:     req.Notes,
		Active:    true,
	}
	if err := s.repo.Create(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	s.logger.Info("student enrolled", zap.String("student_id", student.ID))
	return student, nil
}

// Update modifies a student record. Admins always; teachers only for students
// inside their scope.
func (s *StudentService) Update(ctx context.Context, principal authz.Principal, id string, req UpdateStudentRequest) (*models.Student, error) {
	if err := s.policy.AuthorizeStudentWrite(ctx, principal, id); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}

	detail, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	student := detail.Student
	student.FullName = req.FullName
	student.BirthDate = req.BirthDate
	student.Notes = req.Notes
	student.Active = req.Active
	// Guardian reassignment stays an admin operation.
	if req.ParentID != "" && req.ParentID != student.ParentID {
		if !principal.IsAdmin() {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "only administrators reassign guardians")
		}
		student.ParentID = req.ParentID
	}
	student.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, &student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}
	return &student, nil
}

// Deactivate soft-deletes a student. Admin only.
func (s *StudentService) Deactivate(ctx context.Context, principal authz.Principal, id string) error {
	if !principal.IsAdmin() {
		return appErrors.Clone(appErrors.ErrForbidden, "only administrators remove students")
	}
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate student")
	}
	return nil
}

// attachParentView converts the raw guardian columns into the redacted
// projection and clears the raw fields.
func (s *StudentService) attachParentView(principal authz.Principal, detail *models.StudentDetail) {
	if detail.ParentID == "" {
		return
	}
	view := models.UserView{
		ID:       detail.ParentID,
		FullName: detail.ParentName,
		Role:     models.RoleParent,
		Email:    detail.ParentEmail,
		Phone:    detail.ParentPhone,
		Active:   true,
	}
	if !principal.IsAdmin() && principal.ID != detail.ParentID {
		view.Email = ""
		view.Phone = ""
	}
	detail.Parent = &view
	detail.ParentEmail = ""
	detail.ParentPhone = ""
}
