package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mundodelosninos/mundo-de-los-ninos-sub001/internal/authz"
	"github.com/mundodelosninos/mundo-de-los-ninos-sub001/internal/models"
	appErrors "github.com/mundodelosninos/mundo-de-los-ninos-sub001/pkg/errors"
)

type mockStudentRepo struct {
	students   map[string]models.StudentDetail
	listFilter models.StudentFilter
}

func (m *mockStudentRepo) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error) {
	m.listFilter = filter
	out := make([]models.StudentDetail, 0, len(m.students))
	for _, d := range m.students {
		if len(filter.StudentIDs) > 0 {
			found := false
			for _, id := range filter.StudentIDs {
				if id == d.ID {
					found = true
					break
				}
			}
			if !found {
				continue
			}
		}
		out = append(out, d)
	}
	return out, len(out), nil
}

func (m *mockStudentRepo) FindByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	if d, ok := m.students[id]; ok {
		return &d, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentRepo) Create(ctx context.Context, student *models.Student) error {
	if m.students == nil {
		m.students = make(map[string]models.StudentDetail)
	}
	m.students[student.ID] = models.StudentDetail{Student: *student}
	return nil
}

func (m *mockStudentRepo) Update(ctx context.Context, student *models.Student) error {
	detail := m.students[student.ID]
	detail.Student = *student
	m.students[student.ID] = detail
	return nil
}

func (m *mockStudentRepo) Deactivate(ctx context.Context, id string) error {
	detail := m.students[id]
	detail.Active = false
	m.students[id] = detail
	return nil
}

func fixtureStudents() map[string]models.StudentDetail {
	return map[string]models.StudentDetail{
		"s1": {
			Student: models.Student{
				ID:        "s1",
				FullName:  "Lucía Fernández",
				BirthDate: time.Date(2021, 5, 4, 0, 0, 0, 0, time.UTC),
				ParentID:  "parent-1",
				Active:    true,
			},
			ParentName:  "Marta Fernández",
			ParentEmail: "marta@example.com",
			ParentPhone: "+34 600 000 001",
		},
		"s3": {
			Student: models.Student{
				ID:       "s3",
				FullName: "Diego Soto",
				ParentID: "parent-2",
				Active:   true,
			},
			ParentName:  "Inés Soto",
			ParentEmail: "ines@example.com",
			ParentPhone: "+34 600 000 002",
		},
	}
}

func newStudentService(repo *mockStudentRepo) *StudentService {
	return NewStudentService(repo, newTestPolicy(), nil, nil)
}

func TestStudentGetParentSeesOwnContact(t *testing.T) {
	svc := newStudentService(&mockStudentRepo{students: fixtureStudents()})

	detail, err := svc.Get(context.Background(), parentPrincipal, "s1")
	require.NoError(t, err)
	require.NotNil(t, detail.Parent)
	assert.Equal(t, "marta@example.com", detail.Parent.Email)
	assert.Equal(t, "+34 600 000 001", detail.Parent.Phone)
}

func TestStudentGetTeacherSeesRedactedContact(t *testing.T) {
	svc := newStudentService(&mockStudentRepo{students: fixtureStudents()})

	detail, err := svc.Get(context.Background(), teacherPrincipal, "s1")
	require.NoError(t, err)
	require.NotNil(t, detail.Parent)
	assert.Equal(t, "Marta Fernández", detail.Parent.FullName)
	assert.Empty(t, detail.Parent.Email)
	assert.Empty(t, detail.Parent.Phone)
	assert.Empty(t, detail.ParentEmail)
	assert.Empty(t, detail.ParentPhone)
}

func TestStudentGetOutOfScopeForbidden(t *testing.T) {
	svc := newStudentService(&mockStudentRepo{students: fixtureStudents()})

	_, err := svc.Get(context.Background(), teacherPrincipal, "s3")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestStudentListScopesToParentChildren(t *testing.T) {
	repo := &mockStudentRepo{students: fixtureStudents()}
	svc := newStudentService(repo)

	students, page, err := svc.List(context.Background(), parentPrincipal, models.StudentFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, repo.listFilter.StudentIDs)
	require.Len(t, students, 1)
	assert.Equal(t, 1, page.TotalCount)
}

func TestStudentListEmptyScopeReturnsEmptyPage(t *testing.T) {
	repo := &mockStudentRepo{students: fixtureStudents()}
	svc := newStudentService(repo)

	orphan := authz.Principal{ID: "parent-9", Role: models.RoleParent}
	students, page, err := svc.List(context.Background(), orphan, models.StudentFilter{})
	require.NoError(t, err)
	assert.Empty(t, students)
	assert.Equal(t, 0, page.TotalCount)
}

func TestStudentCreateTeacherForbidden(t *testing.T) {
	svc := newStudentService(&mockStudentRepo{})

	_, err := svc.Create(context.Background(), teacherPrincipal, CreateStudentRequest{
		FullName:  "Nuevo Alumno",
		BirthDate: time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestStudentUpdateGuardianReassignAdminOnly(t *testing.T) {
	repo := &mockStudentRepo{students: fixtureStudents()}
	svc := newStudentService(repo)

	req := UpdateStudentRequest{
		FullName:  "Lucía Fernández",
		BirthDate: time.Date(2021, 5, 4, 0, 0, 0, 0, time.UTC),
		ParentID:  "parent-2",
		Active:    true,
	}
	_, err := svc.Update(context.Background(), teacherPrincipal, "s1", req)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)

	updated, err := svc.Update(context.Background(), adminPrincipal, "s1", req)
	require.NoError(t, err)
	assert.Equal(t, "parent-2", updated.ParentID)
}

func TestStudentDeactivateAdminOnly(t *testing.T) {
	repo := &mockStudentRepo{students: fixtureStudents()}
	svc := newStudentService(repo)

	err := svc.Deactivate(context.Background(), teacherPrincipal, "s1")
	require.Error(t, err)

	require.NoError(t, svc.Deactivate(context.Background(), adminPrincipal, "s1"))
	assert.False(t, repo.students["s1"].Active)
}
