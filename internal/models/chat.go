package models

import "time"

// ChatRoomType classifies chat rooms.
type ChatRoomType string

const (
	ChatRoomDirect       ChatRoomType = "direct"
	ChatRoomGroup        ChatRoomType = "group"
	ChatRoomAnnouncement ChatRoomType = "announcement"
)

// Valid returns true when the room type is a supported value.
func (t ChatRoomType) Valid() bool {
	switch t {
	case ChatRoomDirect, ChatRoomGroup, ChatRoomAnnouncement:
		return true
	default:
		return false
	}
}

// ChatParticipantRole is the role of a user inside a room.
type ChatParticipantRole string

const (
	ChatRoleAdmin  ChatParticipantRole = "admin"
	ChatRoleMember ChatParticipantRole = "member"
)

// ChatRoom is a conversation container.
type ChatRoom struct {
	ID        string       `db:"id" json:"id"`
	Type      ChatRoomType `db:"type" json:"type"`
	Name      string       `db:"name" json:"name"`
	CreatedBy string       `db:"created_by" json:"created_by"`
	CreatedAt time.Time    `db:"created_at" json:"created_at"`
}

// ChatRoomSummary extends a room with per-viewer metadata.
type ChatRoomSummary struct {
	ChatRoom
	UnreadCount int        `db:"unread_count" json:"unread_count"`
	LastMessage *time.Time `db:"last_message_at" json:"last_message_at,omitempty"`
}

// ChatParticipant is a room membership row.
type ChatParticipant struct {
	RoomID   string              `db:"room_id" json:"room_id"`
	UserID   string              `db:"user_id" json:"user_id"`
	Role     ChatParticipantRole `db:"role" json:"role"`
	JoinedAt time.Time           `db:"joined_at" json:"joined_at"`
}

// Message is a single chat message.
type Message struct {
	ID        string    `db:"id" json:"id"`
	RoomID    string    `db:"room_id" json:"room_id"`
	SenderID  string    `db:"sender_id" json:"sender_id"`
	Body      string    `db:"body" json:"body"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// MessageRecord extends a message with sender metadata.
type MessageRecord struct {
	Message
	SenderName string `db:"sender_name" json:"sender_name"`
}

// MessageFilter pages through a room's history.
type MessageFilter struct {
	RoomID   string
	Before   *time.Time
	Page     int
	PageSize int
}
