package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/mundodelosninos/mundo-de-los-ninos-sub001/internal/models"
)

// CalendarRepository manages calendar events and their participants.
type CalendarRepository struct {
	db *sqlx.DB
}

// NewCalendarRepository constructs a CalendarRepository.
func NewCalendarRepository(db *sqlx.DB) *CalendarRepository {
	return &CalendarRepository{db: db}
}

// List returns events matching the provided filters, soonest first.
func (r *CalendarRepository) List(ctx context.Context, filter models.EventFilter) ([]models.CalendarEvent, int, error) {
	base := "FROM calendar_events e"
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("e.end_time >= $%d", len(args)+1))
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("e.start_time <= $%d", len(args)+1))
		args = append(args, *filter.To)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.CreatedBy != "" {
		conditions = append(conditions, fmt.Sprintf("e.created_by = $%d", len(args)+1))
		args = append(args, filter.CreatedBy)
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))
	size, offset := pageWindow(filter.Page, filter.PageSize)

	query := fmt.Sprintf(`SELECT e.id, e.title, e.description, e.start_time, e.end_time, e.status, e.location, e.created_by, e.google_event_id, e.outlook_event_id, e.created_at, e.updated_at
        %s ORDER BY e.start_time ASC LIMIT %d OFFSET %d`, base, size, offset)

	events := []models.CalendarEvent{}
	if err := r.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list events: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count events: %w", err)
	}
	return events, total, nil
}

// ListVisibleTo returns events where the user, one of the students, or one of
// the groups appears as a participant, plus events the user created.
func (r *CalendarRepository) ListVisibleTo(ctx context.Context, userID string, studentIDs, groupIDs []string, filter models.EventFilter) ([]models.CalendarEvent, int, error) {
	base := "FROM calendar_events e"
	args := []interface{}{userID}
	visibility := []string{
		"e.created_by = $1",
		"EXISTS (SELECT 1 FROM event_participants p WHERE p.event_id = e.id AND p.participant_type = 'user' AND p.participant_id = $1)",
	}

	if len(studentIDs) > 0 {
		placeholders := make([]string, len(studentIDs))
		for i, id := range studentIDs {
			placeholders[i] = fmt.Sprintf("$%d", len(args)+1)
			args = append(args, id)
		}
		visibility = append(visibility, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM event_participants p WHERE p.event_id = e.id AND p.participant_type = 'student' AND p.participant_id IN (%s))",
			strings.Join(placeholders, ", ")))
	}
	if len(groupIDs) > 0 {
		placeholders := make([]string, len(groupIDs))
		for i, id := range groupIDs {
			placeholders[i] = fmt.Sprintf("$%d", len(args)+1)
			args = append(args, id)
		}
		visibility = append(visibility, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM event_participants p WHERE p.event_id = e.id AND p.participant_type = 'group' AND p.participant_id IN (%s))",
			strings.Join(placeholders, ", ")))
	}

	conditions := []string{fmt.Sprintf("(%s)", strings.Join(visibility, " OR "))}
	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("e.end_time >= $%d", len(args)+1))
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("e.start_time <= $%d", len(args)+1))
		args = append(args, *filter.To)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))
	size, offset := pageWindow(filter.Page, filter.PageSize)

	query := fmt.Sprintf(`SELECT e.id, e.title, e.description, e.start_time, e.end_time, e.status, e.location, e.created_by, e.google_event_id, e.outlook_event_id, e.created_at, e.updated_at
        %s ORDER BY e.start_time ASC LIMIT %d OFFSET %d`, base, size, offset)

	events := []models.CalendarEvent{}
	if err := r.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list visible events: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count visible events: %w", err)
	}
	return events, total, nil
}

// FindByID fetches an event by ID.
func (r *CalendarRepository) FindByID(ctx context.Context, id string) (*models.CalendarEvent, error) {
	const query = `SELECT id, title, description, start_time, end_time, status, location, created_by, google_event_id, outlook_event_id, created_at, updated_at
        FROM calendar_events WHERE id = $1`
	var event models.CalendarEvent
	if err := r.db.GetContext(ctx, &event, query, id); err != nil {
		return nil, err
	}
	return &event, nil
}

// Create inserts a new event row.
func (r *CalendarRepository) Create(ctx context.Context, event *models.CalendarEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now
	}
	event.UpdatedAt = now
	const query = `INSERT INTO calendar_events (id, title, description, start_time, end_time, status, location, created_by, google_event_id, outlook_event_id, created_at, updated_at)
        VALUES (:id, :title, :description, :start_time, :end_time, :status, :location, :created_by, :google_event_id, :outlook_event_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

// Update modifies an existing event row.
func (r *CalendarRepository) Update(ctx context.Context, event *models.CalendarEvent) error {
	event.UpdatedAt = time.Now().UTC()
	const query = `UPDATE calendar_events SET title = :title, description = :description, start_time = :start_time, end_time = :end_time, status = :status, location = :location, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	return nil
}

// SetExternalEventIDs records the provider-side identifiers after a sync.
func (r *CalendarRepository) SetExternalEventIDs(ctx context.Context, id string, googleID, outlookID *string) error {
	const query = `UPDATE calendar_events SET google_event_id = COALESCE($2, google_event_id), outlook_event_id = COALESCE($3, outlook_event_id), updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, googleID, outlookID, time.Now().UTC()); err != nil {
		return fmt.Errorf("set external ids: %w", err)
	}
	return nil
}

// Delete removes an event and its participants.
func (r *CalendarRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM event_participants WHERE event_id = $1`, id); err != nil {
		return fmt.Errorf("delete participants: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM calendar_events WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete: %w", err)
	}
	return nil
}

// ListParticipants returns an event's participant rows.
func (r *CalendarRepository) ListParticipants(ctx context.Context, eventID string) ([]models.EventParticipant, error) {
	const query = `SELECT event_id, participant_type, participant_id, status, updated_at
        FROM event_participants WHERE event_id = $1 ORDER BY participant_type, participant_id`
	participants := []models.EventParticipant{}
	if err := r.db.SelectContext(ctx, &participants, query, eventID); err != nil {
		return nil, fmt.Errorf("list event participants: %w", err)
	}
	return participants, nil
}

// ReplaceParticipants swaps an event's participant list atomically.
func (r *CalendarRepository) ReplaceParticipants(ctx context.Context, eventID string, participants []models.EventParticipant) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM event_participants WHERE event_id = $1`, eventID); err != nil {
		return fmt.Errorf("clear participants: %w", err)
	}

	const query = `INSERT INTO event_participants (event_id, participant_type, participant_id, status, updated_at)
        VALUES (:event_id, :participant_type, :participant_id, :status, :updated_at)`
	now := time.Now().UTC()
	for i := range participants {
		participants[i].EventID = eventID
		if participants[i].Status == "" {
			participants[i].Status = models.RSVPInvited
		}
		participants[i].UpdatedAt = now
		if _, err := tx.NamedExecContext(ctx, query, participants[i]); err != nil {
			return fmt.Errorf("insert participant: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit participants: %w", err)
	}
	return nil
}

// FindParticipant fetches one participant row for an event.
func (r *CalendarRepository) FindParticipant(ctx context.Context, eventID string, pType models.ParticipantType, pID string) (*models.EventParticipant, error) {
	const query = `SELECT event_id, participant_type, participant_id, status, updated_at
        FROM event_participants WHERE event_id = $1 AND participant_type = $2 AND participant_id = $3`
	var participant models.EventParticipant
	if err := r.db.GetContext(ctx, &participant, query, eventID, pType, pID); err != nil {
		return nil, err
	}
	return &participant, nil
}

// UpdateRSVP records an invitation response for a user participant.
func (r *CalendarRepository) UpdateRSVP(ctx context.Context, eventID, userID string, status models.RSVPStatus) error {
	const query = `UPDATE event_participants SET status = $3, updated_at = $4
        WHERE event_id = $1 AND participant_type = 'user' AND participant_id = $2`
	if _, err := r.db.ExecContext(ctx, query, eventID, userID, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update rsvp: %w", err)
	}
	return nil
}
