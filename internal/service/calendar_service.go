package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/mundodelosninos/mundo-de-los-ninos-sub001/internal/authz"
	"github.com/mundodelosninos/mundo-de-los-ninos-sub001/internal/models"
	appErrors "github.com/mundodelosninos/mundo-de-los-ninos-sub001/pkg/errors"
	"github.com/mundodelosninos/mundo-de-los-ninos-sub001/pkg/jobs"
)

type calendarRepository interface {
	List(ctx context.Context, filter models.EventFilter) ([]models.CalendarEvent, int, error)
	ListVisibleTo(ctx context.Context, userID string, studentIDs, groupIDs []string, filter models.EventFilter) ([]models.CalendarEvent, int, error)
	FindByID(ctx context.Context, id string) (*models.CalendarEvent, error)
	Create(ctx context.Context, event *models.CalendarEvent) error
	Update(ctx context.Context, event *models.CalendarEvent) error
	SetExternalEventIDs(ctx context.Context, id string, googleID, outlookID *string) error
	Delete(ctx context.Context, id string) error
	ListParticipants(ctx context.Context, eventID string) ([]models.EventParticipant, error)
	ReplaceParticipants(ctx context.Context, eventID string, participants []models.EventParticipant) error
	FindParticipant(ctx context.Context, eventID string, pType models.ParticipantType, pID string) (*models.EventParticipant, error)
	UpdateRSVP(ctx context.Context, eventID, userID string, status models.RSVPStatus) error
}

// ExternalCalendarSyncer mirrors events to the configured external providers.
type ExternalCalendarSyncer interface {
	SyncEvent(ctx context.Context, event *models.CalendarEvent) (googleID, outlookID *string, err error)
	DeleteEvent(ctx context.Context, event *models.CalendarEvent) error
}

type syncQueue interface {
	Enqueue(job jobs.Job) error
}

// EventParticipantInput is one entry of an event's participant list.
type EventParticipantInput struct {
	Type models.ParticipantType `json:"type" validate:"required"`
	ID   string                 `json:"id" validate:"required"`
}

// CreateEventRequest holds payload for creating calendar events.
type CreateEventRequest struct {
	Title        string                  `json:"title" validate:"required"`
	Description  string                  `json:"description"`
	StartTime    time.Time               `json:"start_time" validate:"required"`
	EndTime      time.Time               `json:"end_time" validate:"required"`
	Location     *string                 `json:"location"`
	Participants []EventParticipantInput `json:"participants" validate:"dive"`
}

// UpdateEventRequest holds payload for updating calendar events.
type UpdateEventRequest struct {
	Title        string                  `json:"title" validate:"required"`
	Description  string                  `json:"description"`
	Status       models.EventStatus      `json:"status" validate:"required"`
	StartTime    time.Time               `json:"start_time" validate:"required"`
	EndTime      time.Time               `json:"end_time" validate:"required"`
	Location     *string                 `json:"location"`
	Participants []EventParticipantInput `json:"participants" validate:"dive"`
}

// RSVPRequest records an invitation response.
type RSVPRequest struct {
	Status models.RSVPStatus `json:"status" validate:"required"`
}

// SyncJobType labels background calendar sync jobs.
const SyncJobType = "calendar_sync"

// SyncJobPayload is the payload of a background sync job.
type SyncJobPayload struct {
	EventID string
	Deleted bool
}

// CalendarService handles calendar event use-cases, including mirrored sync
// to external providers.
type CalendarService struct {
	repo      calendarRepository
	policy    *authz.Policy
	syncer    ExternalCalendarSyncer
	queue     syncQueue
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCalendarService constructs the calendar service. Syncer and queue may
// be nil when external calendar sync is not configured.
func NewCalendarService(repo calendarRepository, policy *authz.Policy, syncer ExternalCalendarSyncer, queue syncQueue, validate *validator.Validate, logger *zap.Logger) *CalendarService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CalendarService{repo: repo, policy: policy, syncer: syncer, queue: queue, validator: validate, logger: logger}
}

// List returns the events visible to the principal: admins see everything,
// others see events they created or where they, their students, or their
// groups appear as participants.
func (s *CalendarService) List(ctx context.Context, principal authz.Principal, filter models.EventFilter) ([]models.CalendarEvent, *models.Pagination, error) {
	var (
		events []models.CalendarEvent
		total  int
		err    error
	)
	if principal.IsAdmin() {
		events, total, err = s.repo.List(ctx, filter)
	} else {
		studentScope, scopeErr := s.policy.ScopeStudents(ctx, principal)
		if scopeErr != nil {
			return nil, nil, appErrors.Wrap(scopeErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve scope")
		}
		groupScope, scopeErr := s.policy.ScopeGroups(ctx, principal)
		if scopeErr != nil {
			return nil, nil, appErrors.Wrap(scopeErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve scope")
		}
		events, total, err = s.repo.ListVisibleTo(ctx, principal.ID, studentScope.StudentIDs, groupScope.StudentIDs, filter)
	}
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list events")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return events, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one event with its participant list.
func (s *CalendarService) Get(ctx context.Context, principal authz.Principal, id string) (*models.EventDetail, error) {
	event, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}
	if err := s.authorizeEventRead(ctx, principal, event); err != nil {
		return nil, err
	}

	participants, err := s.repo.ListParticipants(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list participants")
	}
	return &models.EventDetail{CalendarEvent: *event, Participants: participants}, nil
}

// Create schedules a new event. Parents cannot create events.
func (s *CalendarService) Create(ctx context.Context, principal authz.Principal, req CreateEventRequest) (*models.EventDetail, error) {
	if principal.IsParent() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "parents cannot create events")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid event payload")
	}
	if !req.EndTime.After(req.StartTime) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end time must be after start time")
	}
	participants, err := buildParticipants(req.Participants)
	if err != nil {
		return nil, err
	}

	event := &models.CalendarEvent{
		Title:       req.Title,
		Description: req.Description,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Status:      models.EventStatusScheduled,
		Location:    req.Location,
		CreatedBy:   principal.ID,
	}
	if err := s.repo.Create(ctx, event); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create event")
	}
	if err := s.repo.ReplaceParticipants(ctx, event.ID, participants); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save participants")
	}

	s.enqueueSync(event.ID, false)
	return &models.EventDetail{CalendarEvent: *event, Participants: participants}, nil
}

// Update modifies an event. Creator or admin only.
func (s *CalendarService) Update(ctx context.Context, principal authz.Principal, id string, req UpdateEventRequest) (*models.EventDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid event payload")
	}
	if !req.Status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown event status")
	}
	if !req.EndTime.After(req.StartTime) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end time must be after start time")
	}

	event, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}
	if !principal.IsAdmin() && event.CreatedBy != principal.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the event creator may edit it")
	}

	participants, err := buildParticipants(req.Participants)
	if err != nil {
		return nil, err
	}

	event.Title = req.Title
	event.Description = req.Description
	event.Status = req.Status
	event.StartTime = req.StartTime
	event.EndTime = req.EndTime
	event.Location = req.Location
	if err := s.repo.Update(ctx, event); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update event")
	}

	// Replacing the list resets every RSVP to invited.
	if len(req.Participants) > 0 {
		if err := s.repo.ReplaceParticipants(ctx, id, participants); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save participants")
		}
	} else {
		participants, err = s.repo.ListParticipants(ctx, id)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list participants")
		}
	}

	s.enqueueSync(id, false)
	return &models.EventDetail{CalendarEvent: *event, Participants: participants}, nil
}

// Delete removes an event. Creator or admin only.
func (s *CalendarService) Delete(ctx context.Context, principal authz.Principal, id string) error {
	event, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}
	if !principal.IsAdmin() && event.CreatedBy != principal.ID {
		return appErrors.Clone(appErrors.ErrForbidden, "only the event creator may delete it")
	}

	hadExternal := event.GoogleEventID != nil || event.OutlookEventID != nil
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete event")
	}
	if hadExternal && s.syncer != nil {
		if err := s.syncer.DeleteEvent(ctx, event); err != nil {
			s.logger.Warn("external event removal failed",
				zap.String("event_id", id),
				zap.Error(err))
		}
	}
	return nil
}

// RSVP records an invitation response for the calling user. Only the
// invited -> accepted and invited -> declined transitions are allowed.
func (s *CalendarService) RSVP(ctx context.Context, principal authz.Principal, eventID string, req RSVPRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid rsvp payload")
	}
	if req.Status != models.RSVPAccepted && req.Status != models.RSVPDeclined {
		return appErrors.Clone(appErrors.ErrValidation, "rsvp must be accepted or declined")
	}

	participant, err := s.repo.FindParticipant(ctx, eventID, models.ParticipantUser, principal.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "you are not invited to this event")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load invitation")
	}
	if participant.Status != models.RSVPInvited {
		return appErrors.Clone(appErrors.ErrConflict, "invitation already answered")
	}

	if err := s.repo.UpdateRSVP(ctx, eventID, principal.ID, req.Status); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record rsvp")
	}
	return nil
}

// SyncNow pushes the event to the external providers immediately. Provider
// failures surface as integration errors.
func (s *CalendarService) SyncNow(ctx context.Context, principal authz.Principal, eventID string) (*models.CalendarEvent, error) {
	if s.syncer == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "external calendar sync is not configured")
	}
	event, err := s.repo.FindByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}
	if !principal.IsAdmin() && event.CreatedBy != principal.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the event creator may sync it")
	}

	googleID, outlookID, err := s.syncer.SyncEvent(ctx, event)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrIntegration.Code, appErrors.ErrIntegration.Status, "external calendar sync failed")
	}
	if err := s.repo.SetExternalEventIDs(ctx, eventID, googleID, outlookID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record external ids")
	}
	if googleID != nil {
		event.GoogleEventID = googleID
	}
	if outlookID != nil {
		event.OutlookEventID = outlookID
	}
	return event, nil
}

// HandleSyncJob is the queue handler for background sync jobs.
func (s *CalendarService) HandleSyncJob(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(SyncJobPayload)
	if !ok {
		s.logger.Warn("unexpected sync job payload", zap.String("job_id", job.ID))
		return nil
	}
	if s.syncer == nil {
		return nil
	}

	event, err := s.repo.FindByID(ctx, payload.EventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return err
	}
	googleID, outlookID, err := s.syncer.SyncEvent(ctx, event)
	if err != nil {
		return err
	}
	return s.repo.SetExternalEventIDs(ctx, payload.EventID, googleID, outlookID)
}

func (s *CalendarService) authorizeEventRead(ctx context.Context, principal authz.Principal, event *models.CalendarEvent) error {
	if principal.IsAdmin() || event.CreatedBy == principal.ID {
		return nil
	}
	participants, err := s.repo.ListParticipants(ctx, event.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list participants")
	}

	studentScope, err := s.policy.ScopeStudents(ctx, principal)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve scope")
	}
	groupScope, err := s.policy.ScopeGroups(ctx, principal)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve scope")
	}
	groups := make(map[string]struct{}, len(groupScope.StudentIDs))
	for _, id := range groupScope.StudentIDs {
		groups[id] = struct{}{}
	}

	for _, p := range participants {
		switch p.ParticipantType {
		case models.ParticipantUser:
			if p.ParticipantID == principal.ID {
				return nil
			}
		case models.ParticipantStudent:
			if studentScope.Contains(p.ParticipantID) {
				return nil
			}
		case models.ParticipantGroup:
			if _, ok := groups[p.ParticipantID]; ok {
				return nil
			}
		}
	}
	return appErrors.Clone(appErrors.ErrForbidden, "event outside your scope")
}

func (s *CalendarService) enqueueSync(eventID string, deleted bool) {
	if s.queue == nil || s.syncer == nil {
		return
	}
	job := jobs.Job{
		ID:      eventID,
		Type:    SyncJobType,
		Payload: SyncJobPayload{EventID: eventID, Deleted: deleted},
	}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Warn("failed to enqueue calendar sync", zap.String("event_id", eventID), zap.Error(err))
	}
}

func buildParticipants(inputs []EventParticipantInput) ([]models.EventParticipant, error) {
	participants := make([]models.EventParticipant, 0, len(inputs))
	seen := make(map[string]struct{}, len(inputs))
	for _, in := range inputs {
		if !in.Type.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown participant type")
		}
		key := string(in.Type) + ":" + in.ID
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		participants = append(participants, models.EventParticipant{
			ParticipantType: in.Type,
			ParticipantID:   in.ID,
			Status:          models.RSVPInvited,
		})
	}
	return participants, nil
}
