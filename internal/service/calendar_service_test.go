package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mundodelosninos/mundo-de-los-ninos-sub001/internal/models"
	appErrors "github.com/mundodelosninos/mundo-de-los-ninos-sub001/pkg/errors"
	"github.com/mundodelosninos/mundo-de-los-ninos-sub001/pkg/jobs"
)

type mockCalendarRepo struct {
	events       map[string]models.CalendarEvent
	participants map[string][]models.EventParticipant
}

func newMockCalendarRepo() *mockCalendarRepo {
	return &mockCalendarRepo{
		events:       make(map[string]models.CalendarEvent),
		participants: make(map[string][]models.EventParticipant),
	}
}

func (m *mockCalendarRepo) List(ctx context.Context, filter models.EventFilter) ([]models.CalendarEvent, int, error) {
	out := []models.CalendarEvent{}
	for _, e := range m.events {
		out = append(out, e)
	}
	return out, len(out), nil
}

func (m *mockCalendarRepo) ListVisibleTo(ctx context.Context, userID string, studentIDs, groupIDs []string, filter models.EventFilter) ([]models.CalendarEvent, int, error) {
	studentSet := make(map[string]struct{}, len(studentIDs))
	for _, id := range studentIDs {
		studentSet[id] = struct{}{}
	}
	groupSet := make(map[string]struct{}, len(groupIDs))
	for _, id := range groupIDs {
		groupSet[id] = struct{}{}
	}
	out := []models.CalendarEvent{}
	for id, e := range m.events {
		if e.CreatedBy == userID {
			out = append(out, e)
			continue
		}
		for _, p := range m.participants[id] {
			visible := false
			switch p.ParticipantType {
			case models.ParticipantUser:
				visible = p.ParticipantID == userID
			case models.ParticipantStudent:
				_, visible = studentSet[p.ParticipantID]
			case models.ParticipantGroup:
				_, visible = groupSet[p.ParticipantID]
			}
			if visible {
				out = append(out, e)
				break
			}
		}
	}
	return out, len(out), nil
}

func (m *mockCalendarRepo) FindByID(ctx context.Context, id string) (*models.CalendarEvent, error) {
	if e, ok := m.events[id]; ok {
		return &e, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCalendarRepo) Create(ctx context.Context, event *models.CalendarEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	m.events[event.ID] = *event
	return nil
}

func (m *mockCalendarRepo) Update(ctx context.Context, event *models.CalendarEvent) error {
	m.events[event.ID] = *event
	return nil
}

func (m *mockCalendarRepo) SetExternalEventIDs(ctx context.Context, id string, googleID, outlookID *string) error {
	e := m.events[id]
	if googleID != nil {
		e.GoogleEventID = googleID
	}
	if outlookID != nil {
		e.OutlookEventID = outlookID
	}
	m.events[id] = e
	return nil
}

func (m *mockCalendarRepo) Delete(ctx context.Context, id string) error {
	delete(m.events, id)
	delete(m.participants, id)
	return nil
}

func (m *mockCalendarRepo) ListParticipants(ctx context.Context, eventID string) ([]models.EventParticipant, error) {
	return m.participants[eventID], nil
}

func (m *mockCalendarRepo) ReplaceParticipants(ctx context.Context, eventID string, participants []models.EventParticipant) error {
	for i := range participants {
		participants[i].EventID = eventID
	}
	m.participants[eventID] = participants
	return nil
}

func (m *mockCalendarRepo) FindParticipant(ctx context.Context, eventID string, pType models.ParticipantType, pID string) (*models.EventParticipant, error) {
	for _, p := range m.participants[eventID] {
		if p.ParticipantType == pType && p.ParticipantID == pID {
			return &p, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockCalendarRepo) UpdateRSVP(ctx context.Context, eventID, userID string, status models.RSVPStatus) error {
	for i, p := range m.participants[eventID] {
		if p.ParticipantType == models.ParticipantUser && p.ParticipantID == userID {
			m.participants[eventID][i].Status = status
			return nil
		}
	}
	return sql.ErrNoRows
}

type mockSyncer struct {
	googleID  *string
	outlookID *string
	err       error
	deleted   []string
}

func (m *mockSyncer) SyncEvent(ctx context.Context, event *models.CalendarEvent) (*string, *string, error) {
	if m.err != nil {
		return nil, nil, m.err
	}
	return m.googleID, m.outlookID, nil
}

func (m *mockSyncer) DeleteEvent(ctx context.Context, event *models.CalendarEvent) error {
	m.deleted = append(m.deleted, event.ID)
	return m.err
}

type mockQueue struct {
	jobs []jobs.Job
}

func (m *mockQueue) Enqueue(job jobs.Job) error {
	m.jobs = append(m.jobs, job)
	return nil
}

func eventWindow() (time.Time, time.Time) {
	start := time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC)
	return start, start.Add(time.Hour)
}

func TestCalendarCreateParentForbidden(t *testing.T) {
	svc := NewCalendarService(newMockCalendarRepo(), newTestPolicy(), nil, nil, nil, nil)

	start, end := eventWindow()
	_, err := svc.Create(context.Background(), parentPrincipal, CreateEventRequest{
		Title:     "Excursión",
		StartTime: start,
		EndTime:   end,
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestCalendarCreateEnqueuesSync(t *testing.T) {
	repo := newMockCalendarRepo()
	queue := &mockQueue{}
	svc := NewCalendarService(repo, newTestPolicy(), &mockSyncer{}, queue, nil, nil)

	start, end := eventWindow()
	detail, err := svc.Create(context.Background(), teacherPrincipal, CreateEventRequest{
		Title:     "Excursión",
		StartTime: start,
		EndTime:   end,
		Participants: []EventParticipantInput{
			{Type: models.ParticipantGroup, ID: "g1"},
			{Type: models.ParticipantGroup, ID: "g1"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, models.EventStatusScheduled, detail.Status)
	// duplicate participant entries collapse
	assert.Len(t, detail.Participants, 1)
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, SyncJobType, queue.jobs[0].Type)
}

func TestCalendarCreateEndBeforeStartRejected(t *testing.T) {
	svc := NewCalendarService(newMockCalendarRepo(), newTestPolicy(), nil, nil, nil, nil)

	start, _ := eventWindow()
	_, err := svc.Create(context.Background(), teacherPrincipal, CreateEventRequest{
		Title:     "Excursión",
		StartTime: start,
		EndTime:   start.Add(-time.Hour),
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestCalendarGetParticipantGroupVisible(t *testing.T) {
	repo := newMockCalendarRepo()
	svc := NewCalendarService(repo, newTestPolicy(), nil, nil, nil, nil)

	start, end := eventWindow()
	detail, err := svc.Create(context.Background(), teacherPrincipal, CreateEventRequest{
		Title:        "Reunión de familias",
		StartTime:    start,
		EndTime:      end,
		Participants: []EventParticipantInput{{Type: models.ParticipantGroup, ID: "g1"}},
	})
	require.NoError(t, err)

	// parent-1's group is g1, so the event is visible.
	_, err = svc.Get(context.Background(), parentPrincipal, detail.ID)
	require.NoError(t, err)

	// parent-2 has no tie to g1.
	_, err = svc.Get(context.Background(), parent2Principal, detail.ID)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestCalendarUpdateCreatorOnly(t *testing.T) {
	repo := newMockCalendarRepo()
	svc := NewCalendarService(repo, newTestPolicy(), nil, nil, nil, nil)

	start, end := eventWindow()
	detail, err := svc.Create(context.Background(), teacherPrincipal, CreateEventRequest{
		Title:     "Excursión",
		StartTime: start,
		EndTime:   end,
	})
	require.NoError(t, err)

	req := UpdateEventRequest{
		Title:     "Excursión al parque",
		Status:    models.EventStatusScheduled,
		StartTime: start,
		EndTime:   end,
	}
	_, err = svc.Update(context.Background(), parent2Principal, detail.ID, req)
	require.Error(t, err)

	updated, err := svc.Update(context.Background(), adminPrincipal, detail.ID, req)
	require.NoError(t, err)
	assert.Equal(t, "Excursión al parque", updated.Title)
}

func TestCalendarRSVPOnlyFromInvited(t *testing.T) {
	repo := newMockCalendarRepo()
	svc := NewCalendarService(repo, newTestPolicy(), nil, nil, nil, nil)

	start, end := eventWindow()
	detail, err := svc.Create(context.Background(), teacherPrincipal, CreateEventRequest{
		Title:        "Reunión",
		StartTime:    start,
		EndTime:      end,
		Participants: []EventParticipantInput{{Type: models.ParticipantUser, ID: "parent-1"}},
	})
	require.NoError(t, err)

	require.NoError(t, svc.RSVP(context.Background(), parentPrincipal, detail.ID, RSVPRequest{Status: models.RSVPAccepted}))

	err = svc.RSVP(context.Background(), parentPrincipal, detail.ID, RSVPRequest{Status: models.RSVPDeclined})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestCalendarRSVPNotInvited(t *testing.T) {
	repo := newMockCalendarRepo()
	svc := NewCalendarService(repo, newTestPolicy(), nil, nil, nil, nil)

	start, end := eventWindow()
	detail, err := svc.Create(context.Background(), teacherPrincipal, CreateEventRequest{
		Title:     "Reunión",
		StartTime: start,
		EndTime:   end,
	})
	require.NoError(t, err)

	err = svc.RSVP(context.Background(), parentPrincipal, detail.ID, RSVPRequest{Status: models.RSVPAccepted})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestCalendarRSVPInvitedStatusRejected(t *testing.T) {
	svc := NewCalendarService(newMockCalendarRepo(), newTestPolicy(), nil, nil, nil, nil)

	err := svc.RSVP(context.Background(), parentPrincipal, "e1", RSVPRequest{Status: models.RSVPInvited})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestCalendarSyncNowFailureIsIntegrationError(t *testing.T) {
	repo := newMockCalendarRepo()
	syncer := &mockSyncer{err: errors.New("provider unavailable")}
	svc := NewCalendarService(repo, newTestPolicy(), syncer, nil, nil, nil)

	start, end := eventWindow()
	detail, err := svc.Create(context.Background(), teacherPrincipal, CreateEventRequest{
		Title:     "Excursión",
		StartTime: start,
		EndTime:   end,
	})
	require.NoError(t, err)

	_, err = svc.SyncNow(context.Background(), teacherPrincipal, detail.ID)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrIntegration.Code, appErr.Code)
}

func TestCalendarSyncNowRecordsExternalIDs(t *testing.T) {
	repo := newMockCalendarRepo()
	googleID := "g-ext-1"
	syncer := &mockSyncer{googleID: &googleID}
	svc := NewCalendarService(repo, newTestPolicy(), syncer, nil, nil, nil)

	start, end := eventWindow()
	detail, err := svc.Create(context.Background(), teacherPrincipal, CreateEventRequest{
		Title:     "Excursión",
		StartTime: start,
		EndTime:   end,
	})
	require.NoError(t, err)

	synced, err := svc.SyncNow(context.Background(), teacherPrincipal, detail.ID)
	require.NoError(t, err)
	require.NotNil(t, synced.GoogleEventID)
	assert.Equal(t, "g-ext-1", *synced.GoogleEventID)
}

func TestCalendarListScopedForParent(t *testing.T) {
	repo := newMockCalendarRepo()
	svc := NewCalendarService(repo, newTestPolicy(), nil, nil, nil, nil)

	start, end := eventWindow()
	_, err := svc.Create(context.Background(), teacherPrincipal, CreateEventRequest{
		Title:        "Reunión g1",
		StartTime:    start,
		EndTime:      end,
		Participants: []EventParticipantInput{{Type: models.ParticipantGroup, ID: "g1"}},
	})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), adminPrincipal, CreateEventRequest{
		Title:     "Reunión interna",
		StartTime: start,
		EndTime:   end,
	})
	require.NoError(t, err)

	events, page, err := svc.List(context.Background(), parentPrincipal, models.EventFilter{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Reunión g1", events[0].Title)
	assert.Equal(t, 1, page.TotalCount)

	all, _, err := svc.List(context.Background(), adminPrincipal, models.EventFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestCalendarHandleSyncJobMissingEventIsNoop(t *testing.T) {
	svc := NewCalendarService(newMockCalendarRepo(), newTestPolicy(), &mockSyncer{}, nil, nil, nil)

	err := svc.HandleSyncJob(context.Background(), jobs.Job{
		ID:      "j1",
		Type:    SyncJobType,
		Payload: SyncJobPayload{EventID: "missing"},
	})
	require.NoError(t, err)
}
