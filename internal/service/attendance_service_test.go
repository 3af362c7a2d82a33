package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mundodelosninos/mundo-de-los-ninos-sub001/internal/models"
	"github.com/mundodelosninos/mundo-de-los-ninos-sub001/internal/repository"
	appErrors "github.com/mundodelosninos/mundo-de-los-ninos-sub001/pkg/errors"
)

type mockAttendanceRepo struct {
	records    map[string]models.Attendance
	existing   map[string]bool
	duplicates map[string]bool
	listFilter models.AttendanceFilter
}

func attKey(studentID string, date time.Time) string {
	return studentID + "|" + date.Format("2006-01-02")
}

func (m *mockAttendanceRepo) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, int, error) {
	m.listFilter = filter
	return []models.AttendanceRecord{}, 0, nil
}

func (m *mockAttendanceRepo) FindByID(ctx context.Context, id string) (*models.AttendanceRecord, error) {
	if record, ok := m.records[id]; ok {
		return &models.AttendanceRecord{Attendance: record}, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAttendanceRepo) ExistsForDate(ctx context.Context, studentID string, date time.Time) (bool, error) {
	return m.existing[attKey(studentID, date)], nil
}

func (m *mockAttendanceRepo) Create(ctx context.Context, record *models.Attendance) error {
	if m.duplicates[attKey(record.StudentID, record.Date)] {
		return repository.ErrDuplicateAttendance
	}
	if m.records == nil {
		m.records = make(map[string]models.Attendance)
	}
	m.records[record.ID] = *record
	return nil
}

func (m *mockAttendanceRepo) Update(ctx context.Context, record *models.Attendance) error {
	m.records[record.ID] = *record
	return nil
}

func (m *mockAttendanceRepo) Delete(ctx context.Context, id string) error {
	delete(m.records, id)
	return nil
}

func newAttendanceService(repo *mockAttendanceRepo) *AttendanceService {
	return NewAttendanceService(repo, newTestPolicy(), nil, nil)
}

func TestAttendanceCreateByTeacherInScope(t *testing.T) {
	repo := &mockAttendanceRepo{}
	svc := newAttendanceService(repo)

	record, err := svc.Create(context.Background(), teacherPrincipal, CreateAttendanceRequest{
		StudentID: "s1",
		Date:      time.Date(2026, 3, 9, 8, 30, 0, 0, time.UTC),
		Status:    models.AttendanceStatusPresent,
	})
	require.NoError(t, err)
	assert.Equal(t, "teacher-1", record.MarkedBy)
	assert.Equal(t, time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC), record.Date)
}

func TestAttendanceCreateByParentDenied(t *testing.T) {
	svc := newAttendanceService(&mockAttendanceRepo{})

	_, err := svc.Create(context.Background(), parentPrincipal, CreateAttendanceRequest{
		StudentID: "s1",
		Date:      time.Now(),
		Status:    models.AttendanceStatusPresent,
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestAttendanceCreateOutOfScopeDenied(t *testing.T) {
	svc := newAttendanceService(&mockAttendanceRepo{})

	_, err := svc.Create(context.Background(), teacherPrincipal, CreateAttendanceRequest{
		StudentID: "s3",
		Date:      time.Now(),
		Status:    models.AttendanceStatusPresent,
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestAttendanceCreateDuplicateConflict(t *testing.T) {
	date := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	repo := &mockAttendanceRepo{existing: map[string]bool{attKey("s1", date): true}}
	svc := newAttendanceService(repo)

	_, err := svc.Create(context.Background(), teacherPrincipal, CreateAttendanceRequest{
		StudentID: "s1",
		Date:      date,
		Status:    models.AttendanceStatusPresent,
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestAttendanceCreateRaceMapsToConflict(t *testing.T) {
	// The pre-check passes but the insert hits the unique index anyway.
	date := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	repo := &mockAttendanceRepo{duplicates: map[string]bool{attKey("s1", date): true}}
	svc := newAttendanceService(repo)

	_, err := svc.Create(context.Background(), teacherPrincipal, CreateAttendanceRequest{
		StudentID: "s1",
		Date:      date,
		Status:    models.AttendanceStatusPresent,
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestAttendanceBulkCreateAllOrNothingAuthz(t *testing.T) {
	svc := newAttendanceService(&mockAttendanceRepo{})

	_, err := svc.BulkCreate(context.Background(), teacherPrincipal, BulkAttendanceRequest{
		Date: time.Now(),
		Records: []CreateAttendanceRequest{
			{StudentID: "s1", Date: time.Now(), Status: models.AttendanceStatusPresent},
			{StudentID: "s3", Date: time.Now(), Status: models.AttendanceStatusPresent},
		},
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestAttendanceBulkCreateSkipsDuplicates(t *testing.T) {
	date := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	repo := &mockAttendanceRepo{duplicates: map[string]bool{attKey("s2", date): true}}
	svc := newAttendanceService(repo)

	result, err := svc.BulkCreate(context.Background(), teacherPrincipal, BulkAttendanceRequest{
		Date: date,
		Records: []CreateAttendanceRequest{
			{StudentID: "s1", Date: date, Status: models.AttendanceStatusPresent},
			{StudentID: "s2", Date: date, Status: models.AttendanceStatusAbsent},
		},
	})
	require.NoError(t, err)
	assert.Len(t, result.Created, 1)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "s2", result.Failures[0].StudentID)
	assert.Equal(t, "already recorded for this date", result.Failures[0].Reason)
}

func TestAttendanceListScopesParentToChildren(t *testing.T) {
	repo := &mockAttendanceRepo{}
	svc := newAttendanceService(repo)

	_, _, err := svc.List(context.Background(), parentPrincipal, models.AttendanceFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, repo.listFilter.StudentIDs)
}

func TestAttendanceListForeignStudentFilterEmpty(t *testing.T) {
	repo := &mockAttendanceRepo{}
	svc := newAttendanceService(repo)

	records, pagination, err := svc.List(context.Background(), parentPrincipal, models.AttendanceFilter{StudentID: "s3"})
	require.NoError(t, err)
	assert.Empty(t, records)
	require.NotNil(t, pagination)
	assert.Equal(t, 0, pagination.TotalCount)
	assert.Empty(t, repo.listFilter.StudentID)
}

func TestAttendanceUpdateByParentDenied(t *testing.T) {
	repo := &mockAttendanceRepo{records: map[string]models.Attendance{
		"a1": {ID: "a1", StudentID: "s1", Status: models.AttendanceStatusPresent},
	}}
	svc := newAttendanceService(repo)

	_, err := svc.Update(context.Background(), parentPrincipal, "a1", UpdateAttendanceRequest{Status: models.AttendanceStatusLate})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestAttendanceAdminBypassesScope(t *testing.T) {
	repo := &mockAttendanceRepo{}
	svc := newAttendanceService(repo)

	_, err := svc.Create(context.Background(), adminPrincipal, CreateAttendanceRequest{
		StudentID: "s3",
		Date:      time.Now(),
		Status:    models.AttendanceStatusPresent,
	})
	require.NoError(t, err)
}
