package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mundodelosninos/mundo-de-los-ninos-sub001/internal/models"
	appErrors "github.com/mundodelosninos/mundo-de-los-ninos-sub001/pkg/errors"
)

type mockUserRepo struct {
	users map[string]models.User
}

func (m *mockUserRepo) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	out := []models.User{}
	for _, u := range m.users {
		if len(filter.UserIDs) > 0 {
			found := false
			for _, id := range filter.UserIDs {
				if id == u.ID {
					found = true
					break
				}
			}
			if !found {
				continue
			}
		}
		out = append(out, u)
	}
	return out, len(out), nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return &u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) ExistsByEmail(ctx context.Context, email string, excludeID string) (bool, error) {
	for _, u := range m.users {
		if u.Email == email && u.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	m.users[user.ID] = *user
	return nil
}

func (m *mockUserRepo) Update(ctx context.Context, user *models.User) error {
	m.users[user.ID] = *user
	return nil
}

func (m *mockUserRepo) Deactivate(ctx context.Context, id string) error {
	u := m.users[id]
	u.Active = false
	m.users[id] = u
	return nil
}

type fakeUserRelations struct {
	guardians map[string][]string
	teachers  map[string][]string
	staff     []string
}

func (f *fakeUserRelations) ParentsOfStudentsTaughtBy(ctx context.Context, teacherID string) ([]string, error) {
	return orEmpty(f.guardians[teacherID]), nil
}

func (f *fakeUserRelations) TeachersOfParent(ctx context.Context, parentID string) ([]string, error) {
	return orEmpty(f.teachers[parentID]), nil
}

func (f *fakeUserRelations) TeacherIDs(ctx context.Context) ([]string, error) {
	return orEmpty(f.staff), nil
}

func fixtureUserRepo() *mockUserRepo {
	return &mockUserRepo{users: map[string]models.User{
		"admin-1":   {ID: "admin-1", Email: "admin@centro.test", FullName: "Admin Uno", Role: models.RoleAdmin, Active: true},
		"teacher-1": {ID: "teacher-1", Email: "t1@centro.test", FullName: "Maestra Uno", Role: models.RoleTeacher, Active: true},
		"teacher-2": {ID: "teacher-2", Email: "t2@centro.test", FullName: "Maestra Dos", Role: models.RoleTeacher, Active: true},
		"parent-1":  {ID: "parent-1", Email: "p1@centro.test", FullName: "Familia Uno", Role: models.RoleParent, Active: true},
		"parent-2":  {ID: "parent-2", Email: "p2@centro.test", FullName: "Familia Dos", Role: models.RoleParent, Active: true},
	}}
}

func newUserService(repo *mockUserRepo) *UserService {
	return NewUserService(repo, &fakeUserRelations{
		guardians: map[string][]string{"teacher-1": {"parent-1"}, "teacher-2": {"parent-2"}},
		teachers:  map[string][]string{"parent-1": {"teacher-1"}, "parent-2": {"teacher-2"}},
		staff:     []string{"teacher-1", "teacher-2"},
	}, nil, nil)
}

func TestUserListTeacherSeesColleaguesAndGuardians(t *testing.T) {
	svc := newUserService(fixtureUserRepo())

	views, pagination, err := svc.List(context.Background(), teacherPrincipal, models.UserFilter{})
	require.NoError(t, err)
	require.NotNil(t, pagination)

	ids := make(map[string]bool, len(views))
	for _, v := range views {
		ids[v.ID] = true
	}
	assert.True(t, ids["teacher-1"], "teacher sees themselves")
	assert.True(t, ids["teacher-2"], "teacher sees a fellow teacher")
	assert.True(t, ids["parent-1"], "teacher sees guardians of their students")
	assert.False(t, ids["parent-2"], "unrelated guardians stay hidden")
	assert.False(t, ids["admin-1"], "administrators are not listed to teachers")
}

func TestUserListParentSeesOnlyTheirTeachers(t *testing.T) {
	svc := newUserService(fixtureUserRepo())

	views, _, err := svc.List(context.Background(), parentPrincipal, models.UserFilter{})
	require.NoError(t, err)

	ids := make(map[string]bool, len(views))
	for _, v := range views {
		ids[v.ID] = true
	}
	assert.True(t, ids["teacher-1"])
	assert.True(t, ids["parent-1"])
	assert.False(t, ids["teacher-2"])
	assert.False(t, ids["parent-2"])
}

func TestUserGetOutsideVisibilityForbidden(t *testing.T) {
	svc := newUserService(fixtureUserRepo())

	_, err := svc.Get(context.Background(), parentPrincipal, "parent-2")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestUserCreateDuplicateEmailConflict(t *testing.T) {
	svc := newUserService(fixtureUserRepo())

	_, err := svc.Create(context.Background(), adminPrincipal, CreateUserRequest{
		Email:    "p1@centro.test",
		Password: "segura-123",
		FullName: "Otra Familia",
		Role:     models.RoleParent,
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}
