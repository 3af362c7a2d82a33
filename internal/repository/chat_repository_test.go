package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mundodelosninos/mundo-de-los-ninos-sub001/internal/models"
)

func newChatMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestChatRepositoryCreateRoom(t *testing.T) {
	db, mock, cleanup := newChatMock(t)
	defer cleanup()
	repo := NewChatRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO chat_rooms").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO chat_participants").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO chat_participants").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	room := &models.ChatRoom{Type: models.ChatRoomDirect, Name: "", CreatedBy: "u1"}
	participants := []models.ChatParticipant{
		{UserID: "u1", Role: models.ChatRoleAdmin},
		{UserID: "u2", Role: models.ChatRoleMember},
	}
	err := repo.CreateRoom(context.Background(), room, participants)
	require.NoError(t, err)
	assert.NotEmpty(t, room.ID)
	assert.Equal(t, room.ID, participants[0].RoomID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChatRepositoryFindDirectRoomMissing(t *testing.T) {
	db, mock, cleanup := newChatMock(t)
	defer cleanup()
	repo := NewChatRepository(db)

	mock.ExpectQuery(`FROM chat_rooms r`).
		WithArgs("u1", "u2").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindDirectRoom(context.Background(), "u1", "u2")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChatRepositoryUnreadCount(t *testing.T) {
	db, mock, cleanup := newChatMock(t)
	defer cleanup()
	repo := NewChatRepository(db)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM messages m`).
		WithArgs("r1", "u1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	count, err := repo.UnreadCount(context.Background(), "r1", "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChatRepositoryMarkRead(t *testing.T) {
	db, mock, cleanup := newChatMock(t)
	defer cleanup()
	repo := NewChatRepository(db)

	mock.ExpectExec("INSERT INTO message_reads").
		WithArgs("r1", "u1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 4))

	marked, err := repo.MarkRead(context.Background(), "r1", "u1")
	require.NoError(t, err)
	assert.Equal(t, 4, marked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChatRepositoryListMessages(t *testing.T) {
	db, mock, cleanup := newChatMock(t)
	defer cleanup()
	repo := NewChatRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "room_id", "sender_id", "body", "created_at", "sender_name"}).
		AddRow("m2", "r1", "u2", "hola", now, "Ana").
		AddRow("m1", "r1", "u1", "buenos dias", now.Add(-time.Minute), "Luis")
	mock.ExpectQuery(`FROM messages m JOIN users u ON u\.id = m\.sender_id WHERE m\.room_id = \$1`).
		WithArgs("r1").
		WillReturnRows(rows)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM messages m`).
		WithArgs("r1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	messages, total, err := repo.ListMessages(context.Background(), models.MessageFilter{RoomID: "r1"})
	require.NoError(t, err)
	assert.Len(t, messages, 2)
	assert.Equal(t, 2, total)
	assert.Equal(t, "Ana", messages[0].SenderName)
	assert.NoError(t, mock.ExpectationsWereMet())
}
