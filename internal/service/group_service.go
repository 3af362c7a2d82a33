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

type groupRepository interface {
	List(ctx context.Context, filter models.GroupFilter) ([]models.GroupDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.GroupDetail, error)
	Create(ctx context.Context, group *models.Group) error
	Update(ctx context.Context, group *models.Group) error
	Deactivate(ctx context.Context, id string) error
	MemberCount(ctx context.Context, groupID string) (int, error)
	HasMember(ctx context.Context, groupID, studentID string) (bool, error)
	AddStudent(ctx context.Context, groupID, studentID string) error
	RemoveStudent(ctx context.Context, groupID, studentID string) error
}

// CreateGroupRequest holds payload for creating groups.
type CreateGroupRequest struct {
	Name      string `json:"name" validate:"required"`
	TeacherID string `json:"teacher_id" validate:"required"`
	Capacity  int    `json:"capacity" validate:"required,min=1"`
}

// UpdateGroupRequest holds payload for updating groups.
type UpdateGroupRequest struct {
	Name      string `json:"name" validate:"required"`
	TeacherID string `json:"teacher_id" validate:"required"`
	Capacity  int    `json:"capacity" validate:"required,min=1"`
	Active    bool   `json:"active"`
}

// GroupService handles classroom group use-cases.
type GroupService struct {
	repo      groupRepository
	policy    *authz.Policy
	validator *validator.Validate
	logger    *zap.Logger
}

// NewGroupService constructs the group service.
func NewGroupService(repo groupRepository, policy *authz.Policy, validate *validator.Validate, logger *zap.Logger) *GroupService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GroupService{repo: repo, policy: policy, validator: validate, logger: logger}
}

// List returns the groups inside the principal's scope.
func (s *GroupService) List(ctx context.Context, principal authz.Principal, filter models.GroupFilter) ([]models.GroupDetail, *models.Pagination, error) {
	scope, err := s.policy.ScopeGroups(ctx, principal)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve scope")
	}
	if !scope.All {
		if len(scope.StudentIDs) == 0 {
			return []models.GroupDetail{}, &models.Pagination{Page: 1, PageSize: filter.PageSize, TotalCount: 0}, nil
		}
		filter.GroupIDs = scope.StudentIDs
	}

	groups, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list groups")
	}
	for i := range groups {
		s.attachTeacherView(principal, &groups[i])
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return groups, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one group with teacher context, redacted for the viewer.
func (s *GroupService) Get(ctx context.Context, principal authz.Principal, id string) (*models.GroupDetail, error) {
	if err := s.policy.AuthorizeGroupRead(ctx, principal, id); err != nil {
		return nil, err
	}
	group, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "group not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
	}
	s.attachTeacherView(principal, group)
	return group, nil
}

// Create registers a new group. Admin only.
func (s *GroupService) Create(ctx context.Context, principal authz.Principal, req CreateGroupRequest) (*models.Group, error) {
	if !principal.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only administrators create groups")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid group payload")
	}

	group := &models.Group{
		ID:        uuid.NewString(),
		Name:      req.Name,
		TeacherID: req.TeacherID,
		Capacity:  req.Capacity,
		Active:    true,
	}
	if err := s.repo.Create(ctx, group); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create group")
	}
	s.logger.Info("group created", zap.String("group_id", group.ID), zap.String("teacher_id", group.TeacherID))
	return group, nil
}

// Update modifies a group. Admins always; the owning teacher may edit the
// group but not hand it to another teacher.
func (s *GroupService) Update(ctx context.Context, principal authz.Principal, id string, req UpdateGroupRequest) (*models.Group, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid group payload")
	}

	detail, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "group not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
	}
	if err := s.policy.AuthorizeGroupWrite(ctx, principal, detail.Group.TeacherID, req.TeacherID); err != nil {
		return nil, err
	}

	if req.Capacity < detail.MemberCount {
		return nil, appErrors.Clone(appErrors.ErrValidation, "capacity below current member count")
	}

	group := detail.Group
	group.Name = req.Name
	group.TeacherID = req.TeacherID
	group.Capacity = req.Capacity
	group.Active = req.Active
	group.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, &group); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update group")
	}
	return &group, nil
}

// Deactivate soft-deletes a group. Admin only.
func (s *GroupService) Deactivate(ctx context.Context, principal authz.Principal, id string) error {
	if !principal.IsAdmin() {
		return appErrors.Clone(appErrors.ErrForbidden, "only administrators remove groups")
	}
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "group not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate group")
	}
	return nil
}

// AddStudent enrolls a student into a group, honoring capacity.
func (s *GroupService) AddStudent(ctx context.Context, principal authz.Principal, groupID, studentID string) error {
	detail, err := s.repo.FindByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "group not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
	}
	if err := s.policy.AuthorizeGroupWrite(ctx, principal, detail.Group.TeacherID, detail.Group.TeacherID); err != nil {
		return err
	}

	member, err := s.repo.HasMember(ctx, groupID, studentID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check membership")
	}
	if member {
		return appErrors.Clone(appErrors.ErrConflict, "student already belongs to the group")
	}

	count, err := s.repo.MemberCount(ctx, groupID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count members")
	}
	if count >= detail.Group.Capacity {
		return appErrors.Clone(appErrors.ErrGroupFull, "group is at capacity")
	}

	if err := s.repo.AddStudent(ctx, groupID, studentID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add student")
	}
	return nil
}

// RemoveStudent removes a student from a group.
func (s *GroupService) RemoveStudent(ctx context.Context, principal authz.Principal, groupID, studentID string) error {
	detail, err := s.repo.FindByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "group not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
	}
	if err := s.policy.AuthorizeGroupWrite(ctx, principal, detail.Group.TeacherID, detail.Group.TeacherID); err != nil {
		return err
	}

	member, err := s.repo.HasMember(ctx, groupID, studentID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check membership")
	}
	if !member {
		return appErrors.Clone(appErrors.ErrNotFound, "student is not a member of the group")
	}

	if err := s.repo.RemoveStudent(ctx, groupID, studentID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove student")
	}
	return nil
}

func (s *GroupService) attachTeacherView(principal authz.Principal, detail *models.GroupDetail) {
	if detail.Group.TeacherID == "" {
		return
	}
	view := models.UserView{
		ID:       detail.Group.TeacherID,
		FullName: detail.TeacherName,
		Role:     models.RoleTeacher,
		Email:    detail.TeacherEmail,
		Phone:    detail.TeacherPhone,
		Active:   true,
	}
	if !principal.IsAdmin() && principal.ID != detail.Group.TeacherID {
		view.Email = ""
		view.Phone = ""
	}
	detail.Teacher = &view
	detail.TeacherEmail = ""
	detail.TeacherPhone = ""
}
