package models

import "time"

// Student represents a child enrolled at the centre. Every student has
// exactly one guardian (a user with the parent role); the relation is an
// application-level invariant, not enforced by the schema.
type Student struct {
	ID        string    `db:"id" json:"id"`
	FullName  string    `db:"full_name" json:"full_name"`
	BirthDate time.Time `db:"birth_date" json:"birth_date"`
	ParentID  string    `db:"parent_id" json:"parent_id"`
	Notes     string    `db:"notes" json:"notes"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// StudentDetail extends the student with guardian context. The embedded
// parent contact fields are subject to redaction before leaving the service.
type StudentDetail struct {
	Student
	ParentName  string    `db:"parent_name" json:"parent_name"`
	ParentEmail string    `db:"parent_email" json:"-"`
	ParentPhone string    `db:"parent_phone" json:"-"`
	Parent      *UserView `db:"-" json:"parent,omitempty"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search     string
	GroupID    string
	ParentID   string
	Active     *bool
	StudentIDs []string
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}
