package models

import "time"

// Group represents a classroom group with a single owning teacher and a
// bounded number of member students.
type Group struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	TeacherID string    `db:"teacher_id" json:"teacher_id"`
	Capacity  int       `db:"capacity" json:"capacity"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// GroupDetail extends the group with teacher context and member count.
type GroupDetail struct {
	Group
	TeacherName  string    `db:"teacher_name" json:"teacher_name"`
	TeacherEmail string    `db:"teacher_email" json:"-"`
	TeacherPhone string    `db:"teacher_phone" json:"-"`
	Teacher      *UserView `db:"-" json:"teacher,omitempty"`
	MemberCount  int       `db:"member_count" json:"member_count"`
}

// GroupFilter captures filtering criteria for listing groups.
type GroupFilter struct {
	TeacherID string
	GroupIDs  []string
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
