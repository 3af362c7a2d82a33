package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mundodelosninos/mundo-de-los-ninos-sub001/internal/models"
)

func newTokenMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestTokenRepositoryRefreshTokenRoundTrip(t *testing.T) {
	db, mock, cleanup := newTokenMock(t)
	defer cleanup()
	repo := NewTokenRepository(db)

	mock.ExpectExec("INSERT INTO refresh_tokens").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	token := &models.RefreshToken{UserID: "u1", Token: "opaque", ExpiresAt: time.Now().Add(24 * time.Hour)}
	require.NoError(t, repo.CreateRefreshToken(context.Background(), token))
	assert.NotEmpty(t, token.ID)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "user_id", "token", "expires_at", "revoked", "revoked_at", "created_at"}).
		AddRow(token.ID, "u1", "opaque", token.ExpiresAt, false, nil, now)
	mock.ExpectQuery(`FROM refresh_tokens WHERE token = \$1`).
		WithArgs("opaque").
		WillReturnRows(rows)

	found, err := repo.FindRefreshToken(context.Background(), "opaque")
	require.NoError(t, err)
	assert.Equal(t, "u1", found.UserID)
	assert.False(t, found.Revoked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepositoryRevokeAllForUser(t *testing.T) {
	db, mock, cleanup := newTokenMock(t)
	defer cleanup()
	repo := NewTokenRepository(db)

	mock.ExpectExec(`UPDATE refresh_tokens SET revoked = TRUE`).
		WithArgs("u1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, repo.RevokeAllForUser(context.Background(), "u1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepositoryMarkInvitationAccepted(t *testing.T) {
	db, mock, cleanup := newTokenMock(t)
	defer cleanup()
	repo := NewTokenRepository(db)

	mock.ExpectExec(`UPDATE parent_invitations SET accepted = TRUE`).
		WithArgs("inv-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkInvitationAccepted(context.Background(), "inv-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
