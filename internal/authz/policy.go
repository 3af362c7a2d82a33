package authz

import (
	"context"

	appErrors "github.com/mundodelosninos/mundo-de-los-ninos-sub001/pkg/errors"
)

// Policy implements the visibility decision procedure. It is side-effect
// free: callers apply the returned decisions. DENY on a single resource
// surfaces as a forbidden error; list operations narrow their scope and
// return empty result sets instead of failing.
type Policy struct {
	rel Relationships
}

// NewPolicy constructs a Policy over the given relationship index.
func NewPolicy(rel Relationships) *Policy {
	return &Policy{rel: rel}
}

// ScopeStudents resolves the set of students the principal may read.
// Admins are unrestricted; teachers see students in groups they teach;
// parents see their own children. Unknown roles get an empty scope.
func (p *Policy) ScopeStudents(ctx context.Context, principal Principal) (StudentScope, error) {
	switch {
	case principal.IsAdmin():
		return StudentScope{All: true}, nil
	case principal.IsTeacher():
		ids, err := p.rel.StudentsTaughtBy(ctx, principal.ID)
		if err != nil {
			return StudentScope{}, err
		}
		return StudentScope{StudentIDs: ids}, nil
	case principal.IsParent():
		ids, err := p.rel.StudentsOf(ctx, principal.ID)
		if err != nil {
			return StudentScope{}, err
		}
		return StudentScope{StudentIDs: ids}, nil
	default:
		return StudentScope{StudentIDs: []string{}}, nil
	}
}

// ScopeGroups resolves the set of groups the principal may read.
func (p *Policy) ScopeGroups(ctx context.Context, principal Principal) (StudentScope, error) {
	switch {
	case principal.IsAdmin():
		return StudentScope{All: true}, nil
	case principal.IsTeacher():
		ids, err := p.rel.GroupsTaughtBy(ctx, principal.ID)
		if err != nil {
			return StudentScope{}, err
		}
		return StudentScope{StudentIDs: ids}, nil
	case principal.IsParent():
		ids, err := p.rel.GroupsOfParent(ctx, principal.ID)
		if err != nil {
			return StudentScope{}, err
		}
		return StudentScope{StudentIDs: ids}, nil
	default:
		return StudentScope{StudentIDs: []string{}}, nil
	}
}

// AuthorizeStudentRead permits reading a single student-scoped resource.
// Outside-of-scope single-resource access is a forbidden error, never an
// empty result.
func (p *Policy) AuthorizeStudentRead(ctx context.Context, principal Principal, studentID string) error {
	scope, err := p.ScopeStudents(ctx, principal)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve access scope")
	}
	if !scope.Contains(studentID) {
		return appErrors.Clone(appErrors.ErrForbidden, "student outside your scope")
	}
	return nil
}

// AuthorizeStudentWrite permits create/update/delete on student-scoped
// resources (attendance, activities, media tags, student records). Parents
// are strictly read-only on these domains.
func (p *Policy) AuthorizeStudentWrite(ctx context.Context, principal Principal, studentID string) error {
	switch {
	case principal.IsAdmin():
		return nil
	case principal.IsTeacher():
		return p.AuthorizeStudentRead(ctx, principal, studentID)
	default:
		return appErrors.Clone(appErrors.ErrForbidden, "role is read-only for this resource")
	}
}

// AuthorizeBatch evaluates the write decision for every student in the
// batch; one failure denies the whole operation.
func (p *Policy) AuthorizeBatch(ctx context.Context, principal Principal, studentIDs []string) error {
	if principal.IsAdmin() {
		return nil
	}
	if !principal.IsTeacher() {
		return appErrors.Clone(appErrors.ErrForbidden, "role is read-only for this resource")
	}
	scope, err := p.ScopeStudents(ctx, principal)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve access scope")
	}
	for _, id := range studentIDs {
		if !scope.Contains(id) {
			return appErrors.Clone(appErrors.ErrForbidden, "batch contains a student outside your scope")
		}
	}
	return nil
}

// AuthorizeGroupRead permits reading a single group.
func (p *Policy) AuthorizeGroupRead(ctx context.Context, principal Principal, groupID string) error {
	scope, err := p.ScopeGroups(ctx, principal)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve access scope")
	}
	if !scope.Contains(groupID) {
		return appErrors.Clone(appErrors.ErrForbidden, "group outside your scope")
	}
	return nil
}

// AuthorizeGroupWrite permits mutating a group. Teachers may only touch
// groups they own, and ownership reassignment is reserved for admins.
func (p *Policy) AuthorizeGroupWrite(ctx context.Context, principal Principal, ownerTeacherID, newTeacherID string) error {
	switch {
	case principal.IsAdmin():
		return nil
	case principal.IsTeacher():
		if ownerTeacherID != principal.ID {
			return appErrors.Clone(appErrors.ErrForbidden, "group outside your scope")
		}
		if newTeacherID != "" && newTeacherID != ownerTeacherID {
			return appErrors.Clone(appErrors.ErrForbidden, "only an admin may reassign a group's teacher")
		}
		return nil
	default:
		return appErrors.Clone(appErrors.ErrForbidden, "role is read-only for this resource")
	}
}

// CanDirectChat decides whether two users may open a direct chat room:
// either is admin; teacher with a parent of a taught student; two teachers;
// or two parents whose children share at least one group.
func (p *Policy) CanDirectChat(ctx context.Context, a, b Principal) error {
	if a.IsAdmin() || b.IsAdmin() {
		return nil
	}
	if a.IsTeacher() && b.IsTeacher() {
		return nil
	}
	if a.IsTeacher() && b.IsParent() {
		return p.teacherTeachesChildOf(ctx, a.ID, b.ID)
	}
	if a.IsParent() && b.IsTeacher() {
		return p.teacherTeachesChildOf(ctx, b.ID, a.ID)
	}
	if a.IsParent() && b.IsParent() {
		shared, err := p.parentsShareGroup(ctx, a.ID, b.ID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve shared groups")
		}
		if !shared {
			return appErrors.Clone(appErrors.ErrForbidden, "no shared group between the two families")
		}
		return nil
	}
	return appErrors.Clone(appErrors.ErrForbidden, "direct chat not permitted between these users")
}

func (p *Policy) teacherTeachesChildOf(ctx context.Context, teacherID, parentID string) error {
	taught, err := p.rel.StudentsTaughtBy(ctx, teacherID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve taught students")
	}
	children, err := p.rel.StudentsOf(ctx, parentID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve children")
	}
	taughtSet := make(map[string]struct{}, len(taught))
	for _, id := range taught {
		taughtSet[id] = struct{}{}
	}
	for _, id := range children {
		if _, ok := taughtSet[id]; ok {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrForbidden, "teacher does not teach any child of this parent")
}

func (p *Policy) parentsShareGroup(ctx context.Context, parentA, parentB string) (bool, error) {
	groupsA, err := p.rel.GroupsOfParent(ctx, parentA)
	if err != nil {
		return false, err
	}
	groupsB, err := p.rel.GroupsOfParent(ctx, parentB)
	if err != nil {
		return false, err
	}
	set := make(map[string]struct{}, len(groupsA))
	for _, id := range groupsA {
		set[id] = struct{}{}
	}
	for _, id := range groupsB {
		if _, ok := set[id]; ok {
			return true, nil
		}
	}
	return false, nil
}
