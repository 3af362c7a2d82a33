package authz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mundodelosninos/mundo-de-los-ninos-sub001/internal/models"
	appErrors "github.com/mundodelosninos/mundo-de-los-ninos-sub001/pkg/errors"
)

type fakeRelationships struct {
	taughtByTeacher map[string][]string
	childrenOf      map[string][]string
	groupMembers    map[string][]string
	groupsOfTeacher map[string][]string
	groupsOfParent  map[string][]string
}

func (f *fakeRelationships) StudentsTaughtBy(_ context.Context, teacherID string) ([]string, error) {
	return orEmpty(f.taughtByTeacher[teacherID]), nil
}

func (f *fakeRelationships) StudentsOf(_ context.Context, parentID string) ([]string, error) {
	return orEmpty(f.childrenOf[parentID]), nil
}

func (f *fakeRelationships) StudentsInGroup(_ context.Context, groupID string) ([]string, error) {
	return orEmpty(f.groupMembers[groupID]), nil
}

func (f *fakeRelationships) GroupsTaughtBy(_ context.Context, teacherID string) ([]string, error) {
	return orEmpty(f.groupsOfTeacher[teacherID]), nil
}

func (f *fakeRelationships) GroupsOfParent(_ context.Context, parentID string) ([]string, error) {
	return orEmpty(f.groupsOfParent[parentID]), nil
}

func orEmpty(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

var (
	admin   = Principal{ID: "admin-1", Role: models.RoleAdmin}
	teacher = Principal{ID: "teacher-1", Role: models.RoleTeacher}
	parent  = Principal{ID: "parent-1", Role: models.RoleParent}
)

func newTestPolicy() *Policy {
	return NewPolicy(&fakeRelationships{
		taughtByTeacher: map[string][]string{
			"teacher-1": {"mia", "noa"},
			"teacher-2": {"leo"},
		},
		childrenOf: map[string][]string{
			"parent-1": {"mia"},
			"parent-2": {"leo"},
			"parent-3": {"noa"},
		},
		groupsOfTeacher: map[string][]string{
			"teacher-1": {"g1"},
			"teacher-2": {"g2"},
		},
		groupsOfParent: map[string][]string{
			"parent-1": {"g1"},
			"parent-2": {"g2"},
			"parent-3": {"g1"},
		},
	})
}

func TestScopeStudentsAdminUnrestricted(t *testing.T) {
	scope, err := newTestPolicy().ScopeStudents(context.Background(), admin)
	require.NoError(t, err)
	assert.True(t, scope.All)
	assert.True(t, scope.Contains("anyone"))
}

func TestScopeStudentsTeacher(t *testing.T) {
	scope, err := newTestPolicy().ScopeStudents(context.Background(), teacher)
	require.NoError(t, err)
	assert.True(t, scope.Contains("mia"))
	assert.False(t, scope.Contains("leo"))
}

func TestScopeStudentsParent(t *testing.T) {
	scope, err := newTestPolicy().ScopeStudents(context.Background(), parent)
	require.NoError(t, err)
	assert.True(t, scope.Contains("mia"))
	assert.False(t, scope.Contains("noa"))
}

func TestScopeStudentsUnknownRoleEmpty(t *testing.T) {
	scope, err := newTestPolicy().ScopeStudents(context.Background(), Principal{ID: "x", Role: "VISITOR"})
	require.NoError(t, err)
	assert.False(t, scope.All)
	assert.NotNil(t, scope.StudentIDs)
	assert.Empty(t, scope.StudentIDs)
}

func TestAuthorizeStudentReadOutOfScopeForbidden(t *testing.T) {
	err := newTestPolicy().AuthorizeStudentRead(context.Background(), teacher, "leo")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestAuthorizeStudentWriteParentDenied(t *testing.T) {
	// Parents are read-only even on their own children's records.
	err := newTestPolicy().AuthorizeStudentWrite(context.Background(), parent, "mia")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestAuthorizeStudentWriteTeacherInScope(t *testing.T) {
	require.NoError(t, newTestPolicy().AuthorizeStudentWrite(context.Background(), teacher, "mia"))
}

func TestAuthorizeBatchAllOrNothing(t *testing.T) {
	policy := newTestPolicy()

	require.NoError(t, policy.AuthorizeBatch(context.Background(), teacher, []string{"mia", "noa"}))

	err := policy.AuthorizeBatch(context.Background(), teacher, []string{"mia", "noa", "leo"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestAuthorizeBatchAdminBypasses(t *testing.T) {
	require.NoError(t, newTestPolicy().AuthorizeBatch(context.Background(), admin, []string{"mia", "leo"}))
}

func TestAuthorizeGroupWriteTeacherCannotReassign(t *testing.T) {
	policy := newTestPolicy()

	require.NoError(t, policy.AuthorizeGroupWrite(context.Background(), teacher, "teacher-1", "teacher-1"))

	err := policy.AuthorizeGroupWrite(context.Background(), teacher, "teacher-1", "teacher-2")
	require.Error(t, err)

	err = policy.AuthorizeGroupWrite(context.Background(), teacher, "teacher-2", "")
	require.Error(t, err)

	require.NoError(t, policy.AuthorizeGroupWrite(context.Background(), admin, "teacher-1", "teacher-2"))
}

func TestCanDirectChatTeacherAndParent(t *testing.T) {
	policy := newTestPolicy()

	// teacher-1 teaches mia, parent-1 is mia's guardian.
	require.NoError(t, policy.CanDirectChat(context.Background(), teacher, parent))
	require.NoError(t, policy.CanDirectChat(context.Background(), parent, teacher))

	// teacher-2 does not teach any child of parent-1.
	t2 := Principal{ID: "teacher-2", Role: models.RoleTeacher}
	err := policy.CanDirectChat(context.Background(), t2, parent)
	require.Error(t, err)
}

func TestCanDirectChatParentsShareGroup(t *testing.T) {
	policy := newTestPolicy()

	p3 := Principal{ID: "parent-3", Role: models.RoleParent}
	require.NoError(t, policy.CanDirectChat(context.Background(), parent, p3))

	p2 := Principal{ID: "parent-2", Role: models.RoleParent}
	err := policy.CanDirectChat(context.Background(), parent, p2)
	require.Error(t, err)
	assert.Contains(t, appErrors.FromError(err).Message, "shared group")
}

func TestCanDirectChatAdminAlways(t *testing.T) {
	policy := newTestPolicy()
	p2 := Principal{ID: "parent-2", Role: models.RoleParent}
	require.NoError(t, policy.CanDirectChat(context.Background(), admin, p2))
}

func TestCanDirectChatTeachers(t *testing.T) {
	t2 := Principal{ID: "teacher-2", Role: models.RoleTeacher}
	require.NoError(t, newTestPolicy().CanDirectChat(context.Background(), teacher, t2))
}

func TestRedactUser(t *testing.T) {
	u := models.User{ID: "parent-2", FullName: "Ana", Role: models.RoleParent, Email: "ana@example.com", Phone: "555-0101", Active: true}

	adminView := RedactUser(admin, u)
	assert.Equal(t, "ana@example.com", adminView.Email)
	assert.Equal(t, "555-0101", adminView.Phone)

	teacherView := RedactUser(teacher, u)
	assert.Empty(t, teacherView.Email)
	assert.Empty(t, teacherView.Phone)

	parentView := RedactUser(parent, u)
	assert.Empty(t, parentView.Email)
	assert.Empty(t, parentView.Phone)

	selfView := RedactUser(Principal{ID: "parent-2", Role: models.RoleParent}, u)
	assert.Equal(t, "ana@example.com", selfView.Email)
}

func TestRedactContact(t *testing.T) {
	email, phone := "ana@example.com", "555-0101"
	RedactContact(teacher, "parent-2", &email, &phone)
	assert.Empty(t, email)
	assert.Empty(t, phone)

	email, phone = "ana@example.com", "555-0101"
	RedactContact(admin, "parent-2", &email, &phone)
	assert.Equal(t, "ana@example.com", email)
}
