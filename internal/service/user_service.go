package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mundodelosninos/mundo-de-los-ninos-sub001/internal/authz"
	"github.com/mundodelosninos/mundo-de-los-ninos-sub001/internal/models"
	appErrors "github.com/mundodelosninos/mundo-de-los-ninos-sub001/pkg/errors"
)

type userRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	ExistsByEmail(ctx context.Context, email string, excludeID string) (bool, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	Deactivate(ctx context.Context, id string) error
}

type userRelationRepository interface {
	ParentsOfStudentsTaughtBy(ctx context.Context, teacherID string) ([]string, error)
	TeachersOfParent(ctx context.Context, parentID string) ([]string, error)
	TeacherIDs(ctx context.Context) ([]string, error)
}

// CreateUserRequest holds payload for creating users.
type CreateUserRequest struct {
	Email    string          `json:"email" validate:"required,email"`
	Password string          `json:"password" validate:"required,min=8"`
	FullName string          `json:"full_name" validate:"required"`
	Role     models.UserRole `json:"role" validate:"required"`
	Phone    string          `json:"phone"`
}

// UpdateUserRequest holds payload for updating users.
type UpdateUserRequest struct {
	Email    string          `json:"email" validate:"required,email"`
	FullName string          `json:"full_name" validate:"required"`
	Role     models.UserRole `json:"role" validate:"required"`
	Phone    string          `json:"phone"`
	Active   bool            `json:"active"`
}

// UserService handles user directory use-cases. Every read goes through the
// redaction rules before leaving the service.
type UserService struct {
	repo      userRepository
	relations userRelationRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService constructs the user service.
func NewUserService(repo userRepository, relations userRelationRepository, validate *validator.Validate, logger *zap.Logger) *UserService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{repo: repo, relations: relations, validator: validate, logger: logger}
}

// List returns the users the principal may see. Admins see the whole
// directory; teachers see colleagues and the guardians of their students;
// parents see the teachers of their children's groups. Contact fields follow
// the redaction rules.
func (s *UserService) List(ctx context.Context, principal authz.Principal, filter models.UserFilter) ([]models.UserView, *models.Pagination, error) {
	if !principal.IsAdmin() {
		visible, err := s.visibleUserIDs(ctx, principal)
		if err != nil {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve visibility")
		}
		if len(visible) == 0 {
			return []models.UserView{}, &models.Pagination{Page: 1, PageSize: filter.PageSize, TotalCount: 0}, nil
		}
		filter.UserIDs = visible
	}

	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return authz.RedactUsers(principal, users), &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one user, redacted for the viewer. Principals outside the
// subject's visibility set get a forbidden error rather than an empty view.
func (s *UserService) Get(ctx context.Context, principal authz.Principal, id string) (*models.UserView, error) {
	if !principal.IsAdmin() && principal.ID != id {
		visible, err := s.visibleUserIDs(ctx, principal)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve visibility")
		}
		allowed := false
		for _, v := range visible {
			if v == id {
				allowed = true
				break
			}
		}
		if !allowed {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "user outside your scope")
		}
	}

	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	view := authz.RedactUser(principal, *user)
	return &view, nil
}

// Create registers a new user. Admin only.
func (s *UserService) Create(ctx context.Context, principal authz.Principal, req CreateUserRequest) (*models.User, error) {
	if !principal.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only administrators manage users")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid user payload")
	}
	if !req.Role.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown role")
	}

	exists, err := s.repo.ExistsByEmail(ctx, req.Email, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a user with this email already exists")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Email:        req.Email,
		PasswordHash: string(hash),
		FullName:     req.FullName,
		Role:         req.Role,
		Phone:        req.Phone,
		Active:       true,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}
	s.logger.Info("user created", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	return user, nil
}

// Update modifies a user record. Admin only.
func (s *UserService) Update(ctx context.Context, principal authz.Principal, id string, req UpdateUserRequest) (*models.User, error) {
	if !principal.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only administrators manage users")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid user payload")
	}
	if !req.Role.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown role")
	}

	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	exists, err := s.repo.ExistsByEmail(ctx, req.Email, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a user with this email already exists")
	}

	user.Email = req.Email
	user.FullName = req.FullName
	user.Role = req.Role
	user.Phone = req.Phone
	user.Active = req.Active
	user.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update user")
	}
	return user, nil
}

// Deactivate soft-deletes a user account. Admin only.
func (s *UserService) Deactivate(ctx context.Context, principal authz.Principal, id string) error {
	if !principal.IsAdmin() {
		return appErrors.Clone(appErrors.ErrForbidden, "only administrators manage users")
	}
	if principal.ID == id {
		return appErrors.Clone(appErrors.ErrValidation, "cannot deactivate your own account")
	}
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate user")
	}
	return nil
}

func (s *UserService) visibleUserIDs(ctx context.Context, principal authz.Principal) ([]string, error) {
	switch {
	case principal.IsTeacher():
		parents, err := s.relations.ParentsOfStudentsTaughtBy(ctx, principal.ID)
		if err != nil {
			return nil, err
		}
		colleagues, err := s.relations.TeacherIDs(ctx)
		if err != nil {
			return nil, err
		}
		seen := make(map[string]bool, len(parents)+len(colleagues)+1)
		visible := make([]string, 0, len(parents)+len(colleagues)+1)
		for _, id := range append(append(parents, colleagues...), principal.ID) {
			if seen[id] {
				continue
			}
			seen[id] = true
			visible = append(visible, id)
		}
		return visible, nil
	case principal.IsParent():
		teachers, err := s.relations.TeachersOfParent(ctx, principal.ID)
		if err != nil {
			return nil, err
		}
		return append(teachers, principal.ID), nil
	default:
		return []string{}, nil
	}
}
