package models

import "time"

// ActivityStatus is a closed but freely settable status set; transitions are
// not enforced as a state machine.
type ActivityStatus string

const (
	ActivityStatusScheduled  ActivityStatus = "scheduled"
	ActivityStatusInProgress ActivityStatus = "in_progress"
	ActivityStatusCompleted  ActivityStatus = "completed"
	ActivityStatusCancelled  ActivityStatus = "cancelled"
)

// Valid returns true when the status is a supported value.
func (s ActivityStatus) Valid() bool {
	switch s {
	case ActivityStatusScheduled, ActivityStatusInProgress, ActivityStatusCompleted, ActivityStatusCancelled:
		return true
	default:
		return false
	}
}

// Activity is a per-student activity record. Rows created from one bulk
// action share a batch id but remain independently addressable.
type Activity struct {
	ID         string         `db:"id" json:"id"`
	StudentID  string         `db:"student_id" json:"student_id"`
	AssignedBy string         `db:"assigned_by" json:"assigned_by"`
	Title      string         `db:"title" json:"title"`
	Type       string         `db:"type" json:"type"`
	Status     ActivityStatus `db:"status" json:"status"`
	StartTime  time.Time      `db:"start_time" json:"start_time"`
	EndTime    time.Time      `db:"end_time" json:"end_time"`
	Notes      *string        `db:"notes" json:"notes,omitempty"`
	BatchID    *string        `db:"batch_id" json:"batch_id,omitempty"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at" json:"updated_at"`
}

// ActivityRecord extends the activity with student metadata.
type ActivityRecord struct {
	Activity
	StudentName string `db:"student_name" json:"student_name"`
}

// ActivityFilter scopes listing queries.
type ActivityFilter struct {
	StudentID  string
	StudentIDs []string
	BatchID    string
	Status     *ActivityStatus
	DateFrom   *time.Time
	DateTo     *time.Time
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}
