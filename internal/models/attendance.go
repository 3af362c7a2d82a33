package models

import "time"

// AttendanceStatus represents the status for attendance records.
type AttendanceStatus string

const (
	AttendanceStatusPresent        AttendanceStatus = "present"
	AttendanceStatusAbsent         AttendanceStatus = "absent"
	AttendanceStatusLate           AttendanceStatus = "late"
	AttendanceStatusEarlyDeparture AttendanceStatus = "early_departure"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceStatusPresent, AttendanceStatusAbsent, AttendanceStatusLate, AttendanceStatusEarlyDeparture:
		return true
	default:
		return false
	}
}

// Attendance represents a single daily attendance row. At most one record
// exists per (student, date); the unique index is the authoritative guard.
type Attendance struct {
	ID        string           `db:"id" json:"id"`
	StudentID string           `db:"student_id" json:"student_id"`
	Date      time.Time        `db:"date" json:"date"`
	Status    AttendanceStatus `db:"status" json:"status"`
	Mood      *string          `db:"mood" json:"mood,omitempty"`
	Meal      *string          `db:"meal" json:"meal,omitempty"`
	Nap       *string          `db:"nap" json:"nap,omitempty"`
	Notes     *string          `db:"notes" json:"notes,omitempty"`
	MarkedBy  string           `db:"marked_by" json:"marked_by"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt time.Time        `db:"updated_at" json:"updated_at"`
}

// AttendanceRecord extends the row with student metadata for listings.
type AttendanceRecord struct {
	Attendance
	StudentName string `db:"student_name" json:"student_name"`
}

// AttendanceFilter defines query filters.
type AttendanceFilter struct {
	StudentID  string
	StudentIDs []string
	GroupID    string
	Status     *AttendanceStatus
	DateFrom   *time.Time
	DateTo     *time.Time
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}

// AttendanceBulkFailure captures items skipped during bulk creation.
type AttendanceBulkFailure struct {
	StudentID string    `json:"student_id"`
	Date      time.Time `json:"date"`
	Reason    string    `json:"reason"`
}
