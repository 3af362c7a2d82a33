package service

import (
	"context"

	"github.com/mundodelosninos/mundo-de-los-ninos-sub001/internal/authz"
	"github.com/mundodelosninos/mundo-de-los-ninos-sub001/internal/models"
)

// fakeRelationships backs the policy with in-memory maps.
//
// Fixture world shared by the service tests:
//
//	teacher-1 teaches g1 with students s1, s2
//	parent-1 is the guardian of s1 (so g1)
//	parent-2 is the guardian of s3 in g2 (taught by teacher-2)
//	parent-3 is the guardian of s2, sharing g1 with parent-1
type fakeRelationships struct {
	taught       map[string][]string
	children     map[string][]string
	groupMembers map[string][]string
	taughtGroups map[string][]string
	parentGroups map[string][]string
}

func (f *fakeRelationships) StudentsTaughtBy(ctx context.Context, teacherID string) ([]string, error) {
	return orEmpty(f.taught[teacherID]), nil
}

func (f *fakeRelationships) StudentsOf(ctx context.Context, parentID string) ([]string, error) {
	return orEmpty(f.children[parentID]), nil
}

func (f *fakeRelationships) StudentsInGroup(ctx context.Context, groupID string) ([]string, error) {
	return orEmpty(f.groupMembers[groupID]), nil
}

func (f *fakeRelationships) GroupsTaughtBy(ctx context.Context, teacherID string) ([]string, error) {
	return orEmpty(f.taughtGroups[teacherID]), nil
}

func (f *fakeRelationships) GroupsOfParent(ctx context.Context, parentID string) ([]string, error) {
	return orEmpty(f.parentGroups[parentID]), nil
}

func orEmpty(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

func newTestPolicy() *authz.Policy {
	return authz.NewPolicy(&fakeRelationships{
		taught:       map[string][]string{"teacher-1": {"s1", "s2"}, "teacher-2": {"s3"}},
		children:     map[string][]string{"parent-1": {"s1"}, "parent-2": {"s3"}, "parent-3": {"s2"}},
		groupMembers: map[string][]string{"g1": {"s1", "s2"}, "g2": {"s3"}},
		taughtGroups: map[string][]string{"teacher-1": {"g1"}, "teacher-2": {"g2"}},
		parentGroups: map[string][]string{"parent-1": {"g1"}, "parent-2": {"g2"}, "parent-3": {"g1"}},
	})
}

var (
	adminPrincipal   = authz.Principal{ID: "admin-1", Role: models.RoleAdmin}
	teacherPrincipal = authz.Principal{ID: "teacher-1", Role: models.RoleTeacher}
	parentPrincipal  = authz.Principal{ID: "parent-1", Role: models.RoleParent}
	parent2Principal = authz.Principal{ID: "parent-2", Role: models.RoleParent}
)
