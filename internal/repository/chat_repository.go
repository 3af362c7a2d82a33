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

// ChatRepository manages chat rooms, participants and messages.
type ChatRepository struct {
	db *sqlx.DB
}

// NewChatRepository constructs a ChatRepository.
func NewChatRepository(db *sqlx.DB) *ChatRepository {
	return &ChatRepository{db: db}
}

// CreateRoom inserts a room together with its initial participants.
func (r *ChatRepository) CreateRoom(ctx context.Context, room *models.ChatRoom, participants []models.ChatParticipant) error {
	if room.ID == "" {
		room.ID = uuid.NewString()
	}
	if room.CreatedAt.IsZero() {
		room.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	const roomQuery = `INSERT INTO chat_rooms (id, type, name, created_by, created_at)
        VALUES (:id, :type, :name, :created_by, :created_at)`
	if _, err := tx.NamedExecContext(ctx, roomQuery, room); err != nil {
		return fmt.Errorf("create room: %w", err)
	}

	const partQuery = `INSERT INTO chat_participants (room_id, user_id, role, joined_at)
        VALUES (:room_id, :user_id, :role, :joined_at)`
	for i := range participants {
		participants[i].RoomID = room.ID
		if participants[i].JoinedAt.IsZero() {
			participants[i].JoinedAt = room.CreatedAt
		}
		if _, err := tx.NamedExecContext(ctx, partQuery, participants[i]); err != nil {
			return fmt.Errorf("add participant: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit room: %w", err)
	}
	return nil
}

// FindRoomByID fetches a room by ID.
func (r *ChatRepository) FindRoomByID(ctx context.Context, id string) (*models.ChatRoom, error) {
	const query = `SELECT id, type, name, created_by, created_at FROM chat_rooms WHERE id = $1`
	var room models.ChatRoom
	if err := r.db.GetContext(ctx, &room, query, id); err != nil {
		return nil, err
	}
	return &room, nil
}

// FindDirectRoom returns the existing direct room between two users, if any.
// Returns sql.ErrNoRows when no such room exists.
func (r *ChatRepository) FindDirectRoom(ctx context.Context, userA, userB string) (*models.ChatRoom, error) {
	const query = `SELECT r.id, r.type, r.name, r.created_by, r.created_at
        FROM chat_rooms r
        JOIN chat_participants pa ON pa.room_id = r.id AND pa.user_id = $1
        JOIN chat_participants pb ON pb.room_id = r.id AND pb.user_id = $2
        WHERE r.type = 'direct'
        LIMIT 1`
	var room models.ChatRoom
	if err := r.db.GetContext(ctx, &room, query, userA, userB); err != nil {
		return nil, err
	}
	return &room, nil
}

// ListRoomsForUser returns the rooms a user belongs to, newest activity first,
// with the viewer's unread counts.
func (r *ChatRepository) ListRoomsForUser(ctx context.Context, userID string) ([]models.ChatRoomSummary, error) {
	const query = `SELECT r.id, r.type, r.name, r.created_by, r.created_at,
        (SELECT COUNT(*) FROM messages m
            WHERE m.room_id = r.id
              AND m.sender_id != $1
              AND NOT EXISTS (SELECT 1 FROM message_reads mr WHERE mr.message_id = m.id AND mr.user_id = $1)
        ) AS unread_count,
        (SELECT MAX(m.created_at) FROM messages m WHERE m.room_id = r.id) AS last_message_at
        FROM chat_rooms r
        JOIN chat_participants p ON p.room_id = r.id
        WHERE p.user_id = $1
        ORDER BY last_message_at DESC NULLS LAST, r.created_at DESC`
	rooms := []models.ChatRoomSummary{}
	if err := r.db.SelectContext(ctx, &rooms, query, userID); err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return rooms, nil
}

// ListParticipants returns a room's membership rows.
func (r *ChatRepository) ListParticipants(ctx context.Context, roomID string) ([]models.ChatParticipant, error) {
	const query = `SELECT room_id, user_id, role, joined_at FROM chat_participants WHERE room_id = $1 ORDER BY joined_at`
	participants := []models.ChatParticipant{}
	if err := r.db.SelectContext(ctx, &participants, query, roomID); err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	return participants, nil
}

// IsParticipant reports whether a user belongs to a room.
func (r *ChatRepository) IsParticipant(ctx context.Context, roomID, userID string) (bool, error) {
	const query = `SELECT COUNT(*) FROM chat_participants WHERE room_id = $1 AND user_id = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, roomID, userID); err != nil {
		return false, fmt.Errorf("check participant: %w", err)
	}
	return count > 0, nil
}

// AddParticipant inserts a membership row, ignoring duplicates.
func (r *ChatRepository) AddParticipant(ctx context.Context, participant *models.ChatParticipant) error {
	if participant.JoinedAt.IsZero() {
		participant.JoinedAt = time.Now().UTC()
	}
	const query = `INSERT INTO chat_participants (room_id, user_id, role, joined_at)
        VALUES (:room_id, :user_id, :role, :joined_at)
        ON CONFLICT (room_id, user_id) DO NOTHING`
	if _, err := r.db.NamedExecContext(ctx, query, participant); err != nil {
		return fmt.Errorf("add participant: %w", err)
	}
	return nil
}

// RemoveParticipant deletes a membership row.
func (r *ChatRepository) RemoveParticipant(ctx context.Context, roomID, userID string) error {
	const query = `DELETE FROM chat_participants WHERE room_id = $1 AND user_id = $2`
	if _, err := r.db.ExecContext(ctx, query, roomID, userID); err != nil {
		return fmt.Errorf("remove participant: %w", err)
	}
	return nil
}

// CreateMessage inserts a message row.
func (r *ChatRepository) CreateMessage(ctx context.Context, message *models.Message) error {
	if message.ID == "" {
		message.ID = uuid.NewString()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO messages (id, room_id, sender_id, body, created_at)
        VALUES (:id, :room_id, :sender_id, :body, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, message); err != nil {
		return fmt.Errorf("create message: %w", err)
	}
	return nil
}

// FindMessageByID fetches a single message.
func (r *ChatRepository) FindMessageByID(ctx context.Context, id string) (*models.Message, error) {
	const query = `SELECT id, room_id, sender_id, body, created_at FROM messages WHERE id = $1`
	var message models.Message
	if err := r.db.GetContext(ctx, &message, query, id); err != nil {
		return nil, err
	}
	return &message, nil
}

// ListMessages pages through a room's history, newest first.
func (r *ChatRepository) ListMessages(ctx context.Context, filter models.MessageFilter) ([]models.MessageRecord, int, error) {
	base := "FROM messages m JOIN users u ON u.id = m.sender_id"
	args := []interface{}{filter.RoomID}
	conditions := []string{"m.room_id = $1"}

	if filter.Before != nil {
		conditions = append(conditions, fmt.Sprintf("m.created_at < $%d", len(args)+1))
		args = append(args, *filter.Before)
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))
	size, offset := pageWindow(filter.Page, filter.PageSize)

	query := fmt.Sprintf(`SELECT m.id, m.room_id, m.sender_id, m.body, m.created_at,
        u.full_name AS sender_name
        %s ORDER BY m.created_at DESC LIMIT %d OFFSET %d`, base, size, offset)

	messages := []models.MessageRecord{}
	if err := r.db.SelectContext(ctx, &messages, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list messages: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count messages: %w", err)
	}
	return messages, total, nil
}

// DeleteMessage removes a message row.
func (r *ChatRepository) DeleteMessage(ctx context.Context, id string) error {
	const query = `DELETE FROM messages WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

// MarkRead records read receipts for every unread message in a room up to now.
func (r *ChatRepository) MarkRead(ctx context.Context, roomID, userID string) (int, error) {
	const query = `INSERT INTO message_reads (message_id, user_id, read_at)
        SELECT m.id, $2, $3 FROM messages m
        WHERE m.room_id = $1 AND m.sender_id != $2
        ON CONFLICT (message_id, user_id) DO NOTHING`
	res, err := r.db.ExecContext(ctx, query, roomID, userID, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("mark read: %w", err)
	}
	affected, _ := res.RowsAffected()
	return int(affected), nil
}

// UnreadCount returns the viewer's unread message count for one room.
func (r *ChatRepository) UnreadCount(ctx context.Context, roomID, userID string) (int, error) {
	const query = `SELECT COUNT(*) FROM messages m
        WHERE m.room_id = $1
          AND m.sender_id != $2
          AND NOT EXISTS (SELECT 1 FROM message_reads mr WHERE mr.message_id = m.id AND mr.user_id = $2)`
	var count int
	if err := r.db.GetContext(ctx, &count, query, roomID, userID); err != nil {
		return 0, fmt.Errorf("unread count: %w", err)
	}
	return count, nil
}
