package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// RelationRepository computes the derived id sets backing the visibility
// policy. Queries run on demand with no caching layer.
type RelationRepository struct {
	db *sqlx.DB
}

// NewRelationRepository constructs a RelationRepository.
func NewRelationRepository(db *sqlx.DB) *RelationRepository {
	return &RelationRepository{db: db}
}

// StudentsTaughtBy returns distinct student ids belonging to any group whose
// teacher is teacherID.
func (r *RelationRepository) StudentsTaughtBy(ctx context.Context, teacherID string) ([]string, error) {
	const query = `SELECT DISTINCT gs.student_id
        FROM group_students gs
        JOIN groups g ON g.id = gs.group_id
        WHERE g.teacher_id = $1`
	ids := []string{}
	if err := r.db.SelectContext(ctx, &ids, query, teacherID); err != nil {
		return nil, fmt.Errorf("students taught by: %w", err)
	}
	return ids, nil
}

// StudentsOf returns student ids whose guardian is parentID.
func (r *RelationRepository) StudentsOf(ctx context.Context, parentID string) ([]string, error) {
	const query = `SELECT id FROM students WHERE parent_id = $1`
	ids := []string{}
	if err := r.db.SelectContext(ctx, &ids, query, parentID); err != nil {
		return nil, fmt.Errorf("students of parent: %w", err)
	}
	return ids, nil
}

// StudentsInGroup returns member student ids of the group.
func (r *RelationRepository) StudentsInGroup(ctx context.Context, groupID string) ([]string, error) {
	const query = `SELECT student_id FROM group_students WHERE group_id = $1`
	ids := []string{}
	if err := r.db.SelectContext(ctx, &ids, query, groupID); err != nil {
		return nil, fmt.Errorf("students in group: %w", err)
	}
	return ids, nil
}

// GroupsTaughtBy returns ids of groups owned by the teacher.
func (r *RelationRepository) GroupsTaughtBy(ctx context.Context, teacherID string) ([]string, error) {
	const query = `SELECT id FROM groups WHERE teacher_id = $1`
	ids := []string{}
	if err := r.db.SelectContext(ctx, &ids, query, teacherID); err != nil {
		return nil, fmt.Errorf("groups taught by: %w", err)
	}
	return ids, nil
}

// ParentsOfStudentsTaughtBy returns distinct guardian ids for every student
// in the teacher's groups.
func (r *RelationRepository) ParentsOfStudentsTaughtBy(ctx context.Context, teacherID string) ([]string, error) {
	const query = `SELECT DISTINCT s.parent_id
        FROM students s
        JOIN group_students gs ON gs.student_id = s.id
        JOIN groups g ON g.id = gs.group_id
        WHERE g.teacher_id = $1 AND s.parent_id != ''`
	ids := []string{}
	if err := r.db.SelectContext(ctx, &ids, query, teacherID); err != nil {
		return nil, fmt.Errorf("parents of taught students: %w", err)
	}
	return ids, nil
}

// TeachersOfParent returns distinct teacher ids owning any group a child of
// the parent belongs to.
func (r *RelationRepository) TeachersOfParent(ctx context.Context, parentID string) ([]string, error) {
	const query = `SELECT DISTINCT g.teacher_id
        FROM groups g
        JOIN group_students gs ON gs.group_id = g.id
        JOIN students s ON s.id = gs.student_id
        WHERE s.parent_id = $1`
	ids := []string{}
	if err := r.db.SelectContext(ctx, &ids, query, parentID); err != nil {
		return nil, fmt.Errorf("teachers of parent: %w", err)
	}
	return ids, nil
}

// TeacherIDs returns the ids of every active teacher account.
func (r *RelationRepository) TeacherIDs(ctx context.Context) ([]string, error) {
	const query = `SELECT id FROM users WHERE role = 'TEACHER' AND active = TRUE`
	ids := []string{}
	if err := r.db.SelectContext(ctx, &ids, query); err != nil {
		return nil, fmt.Errorf("teacher ids: %w", err)
	}
	return ids, nil
}

// GroupsOfParent returns ids of groups any child of the parent belongs to.
func (r *RelationRepository) GroupsOfParent(ctx context.Context, parentID string) ([]string, error) {
	const query = `SELECT DISTINCT gs.group_id
        FROM group_students gs
        JOIN students s ON s.id = gs.student_id
        WHERE s.parent_id = $1`
	ids := []string{}
	if err := r.db.SelectContext(ctx, &ids, query, parentID); err != nil {
		return nil, fmt.Errorf("groups of parent: %w", err)
	}
	return ids, nil
}
