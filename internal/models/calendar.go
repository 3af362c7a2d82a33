package models

import "time"

// EventStatus is the calendar event status set; values are freely settable.
type EventStatus string

const (
	EventStatusScheduled  EventStatus = "scheduled"
	EventStatusInProgress EventStatus = "in_progress"
	EventStatusCompleted  EventStatus = "completed"
	EventStatusCancelled  EventStatus = "cancelled"
)

// Valid returns true when the status is a supported value.
func (s EventStatus) Valid() bool {
	switch s {
	case EventStatusScheduled, EventStatusInProgress, EventStatusCompleted, EventStatusCancelled:
		return true
	default:
		return false
	}
}

// ParticipantType tags the polymorphic participant reference.
type ParticipantType string

const (
	ParticipantUser    ParticipantType = "user"
	ParticipantStudent ParticipantType = "student"
	ParticipantGroup   ParticipantType = "group"
)

// Valid returns true when the participant type is a supported value.
func (t ParticipantType) Valid() bool {
	switch t {
	case ParticipantUser, ParticipantStudent, ParticipantGroup:
		return true
	default:
		return false
	}
}

// RSVPStatus tracks invitation responses. The only transitions are
// invited -> accepted and invited -> declined.
type RSVPStatus string

const (
	RSVPInvited  RSVPStatus = "invited"
	RSVPAccepted RSVPStatus = "accepted"
	RSVPDeclined RSVPStatus = "declined"
)

// CalendarEvent is a scheduled event, optionally mirrored to an external
// calendar provider.
type CalendarEvent struct {
	ID             string      `db:"id" json:"id"`
	Title          string      `db:"title" json:"title"`
	Description    string      `db:"description" json:"description"`
	StartTime      time.Time   `db:"start_time" json:"start_time"`
	EndTime        time.Time   `db:"end_time" json:"end_time"`
	Status         EventStatus `db:"status" json:"status"`
	Location       *string     `db:"location" json:"location,omitempty"`
	CreatedBy      string      `db:"created_by" json:"created_by"`
	GoogleEventID  *string     `db:"google_event_id" json:"google_event_id,omitempty"`
	OutlookEventID *string     `db:"outlook_event_id" json:"outlook_event_id,omitempty"`
	CreatedAt      time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time   `db:"updated_at" json:"updated_at"`
}

// EventParticipant links an event to a user, student or group.
type EventParticipant struct {
	EventID         string          `db:"event_id" json:"event_id"`
	ParticipantType ParticipantType `db:"participant_type" json:"participant_type"`
	ParticipantID   string          `db:"participant_id" json:"participant_id"`
	Status          RSVPStatus      `db:"status" json:"status"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// EventDetail bundles an event with its participant list.
type EventDetail struct {
	CalendarEvent
	Participants []EventParticipant `json:"participants"`
}

// EventFilter scopes event listings.
type EventFilter struct {
	From      *time.Time
	To        *time.Time
	Status    *EventStatus
	CreatedBy string
	Page      int
	PageSize  int
}
