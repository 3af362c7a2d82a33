package models

import "time"

// MediaType classifies uploaded files.
type MediaType string

const (
	MediaPhoto    MediaType = "photo"
	MediaDocument MediaType = "document"
)

// Valid returns true when the media type is a supported value.
func (t MediaType) Valid() bool {
	return t == MediaPhoto || t == MediaDocument
}

// StudentMedia is an uploaded photo or document tagged to students.
type StudentMedia struct {
	ID         string    `db:"id" json:"id"`
	FileURL    string    `db:"file_url" json:"file_url"`
	StorageKey string    `db:"storage_key" json:"-"`
	Type       MediaType `db:"type" json:"type"`
	Caption    *string   `db:"caption" json:"caption,omitempty"`
	UploadedBy string    `db:"uploaded_by" json:"uploaded_by"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// MediaDetail bundles a media row with its tagged student ids.
type MediaDetail struct {
	StudentMedia
	StudentIDs []string `json:"student_ids"`
}

// MediaFilter scopes media listings.
type MediaFilter struct {
	StudentID  string
	StudentIDs []string
	Type       *MediaType
	UploadedBy string
	Page       int
	PageSize   int
}
