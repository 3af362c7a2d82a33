// Package authz centralises the role-based visibility policy applied by every
// domain service. Services resolve a Principal from the request, ask the
// Policy whether the operation is permitted, and shape responses with the
// redaction helpers before returning data.
package authz

import (
	"context"

	"github.com/mundodelosninos/mundo-de-los-ninos-sub001/internal/models"
)

// Principal is the authenticated caller on whose behalf an operation runs.
type Principal struct {
	ID   string
	Role models.UserRole
}

// FromClaims builds a Principal from verified JWT claims.
func FromClaims(claims *models.JWTClaims) Principal {
	if claims == nil {
		return Principal{}
	}
	return Principal{ID: claims.UserID, Role: claims.Role}
}

// IsAdmin reports whether the principal holds the admin role.
func (p Principal) IsAdmin() bool { return p.Role == models.RoleAdmin }

// IsTeacher reports whether the principal holds the teacher role.
func (p Principal) IsTeacher() bool { return p.Role == models.RoleTeacher }

// IsParent reports whether the principal holds the parent role.
func (p Principal) IsParent() bool { return p.Role == models.RoleParent }

// Relationships is the relationship index: derived lookups mapping teachers
// and parents to the students and groups they are entitled to see. Every
// call re-queries the store; implementations must return empty slices, never
// nil, when nothing matches.
type Relationships interface {
	StudentsTaughtBy(ctx context.Context, teacherID string) ([]string, error)
	StudentsOf(ctx context.Context, parentID string) ([]string, error)
	StudentsInGroup(ctx context.Context, groupID string) ([]string, error)
	GroupsTaughtBy(ctx context.Context, teacherID string) ([]string, error)
	GroupsOfParent(ctx context.Context, parentID string) ([]string, error)
}

// StudentScope describes which students a principal may see in listings.
// When All is true the id set is irrelevant.
type StudentScope struct {
	All        bool
	StudentIDs []string
}

// Contains reports whether the scope covers the given student.
func (s StudentScope) Contains(studentID string) bool {
	if s.All {
		return true
	}
	for _, id := range s.StudentIDs {
		if id == studentID {
			return true
		}
	}
	return false
}
