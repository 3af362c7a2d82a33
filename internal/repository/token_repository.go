package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/mundodelosninos/mundo-de-los-ninos-sub001/internal/models"
)

// TokenRepository manages refresh tokens, password reset tokens and parent
// invitations.
type TokenRepository struct {
	db *sqlx.DB
}

// NewTokenRepository constructs a TokenRepository.
func NewTokenRepository(db *sqlx.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// CreateRefreshToken inserts a refresh token row.
func (r *TokenRepository) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO refresh_tokens (id, user_id, token, expires_at, revoked, created_at)
        VALUES (:id, :user_id, :token, :expires_at, :revoked, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, token); err != nil {
		return fmt.Errorf("create refresh token: %w", err)
	}
	return nil
}

// FindRefreshToken looks a refresh token up by its opaque value.
func (r *TokenRepository) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	const query = `SELECT id, user_id, token, expires_at, revoked, revoked_at, created_at
        FROM refresh_tokens WHERE token = $1`
	var row models.RefreshToken
	if err := r.db.GetContext(ctx, &row, query, token); err != nil {
		return nil, err
	}
	return &row, nil
}

// RevokeRefreshToken marks a single token as revoked.
func (r *TokenRepository) RevokeRefreshToken(ctx context.Context, id string) error {
	const query = `UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// RevokeAllForUser revokes every active refresh token a user holds.
func (r *TokenRepository) RevokeAllForUser(ctx context.Context, userID string) error {
	const query = `UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE user_id = $1 AND revoked = FALSE`
	if _, err := r.db.ExecContext(ctx, query, userID, time.Now().UTC()); err != nil {
		return fmt.Errorf("revoke user tokens: %w", err)
	}
	return nil
}

// CreatePasswordResetToken inserts a reset token row.
func (r *TokenRepository) CreatePasswordResetToken(ctx context.Context, token *models.PasswordResetToken) error {
	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO password_reset_tokens (id, user_id, token, expires_at, used, created_at)
        VALUES (:id, :user_id, :token, :expires_at, :used, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, token); err != nil {
		return fmt.Errorf("create reset token: %w", err)
	}
	return nil
}

// FindPasswordResetToken looks a reset token up by its opaque value.
func (r *TokenRepository) FindPasswordResetToken(ctx context.Context, token string) (*models.PasswordResetToken, error) {
	const query = `SELECT id, user_id, token, expires_at, used, created_at
        FROM password_reset_tokens WHERE token = $1`
	var row models.PasswordResetToken
	if err := r.db.GetContext(ctx, &row, query, token); err != nil {
		return nil, err
	}
	return &row, nil
}

// MarkResetTokenUsed flags a reset token as consumed.
func (r *TokenRepository) MarkResetTokenUsed(ctx context.Context, id string) error {
	const query = `UPDATE password_reset_tokens SET used = TRUE WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("mark reset token used: %w", err)
	}
	return nil
}

// CreateInvitation inserts a parent invitation row.
func (r *TokenRepository) CreateInvitation(ctx context.Context, invitation *models.ParentInvitation) error {
	if invitation.ID == "" {
		invitation.ID = uuid.NewString()
	}
	if invitation.CreatedAt.IsZero() {
		invitation.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO parent_invitations (id, email, student_id, token, expires_at, accepted, invited_by, created_at)
        VALUES (:id, :email, :student_id, :token, :expires_at, :accepted, :invited_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, invitation); err != nil {
		return fmt.Errorf("create invitation: %w", err)
	}
	return nil
}

// FindInvitation looks an invitation up by its opaque token.
func (r *TokenRepository) FindInvitation(ctx context.Context, token string) (*models.ParentInvitation, error) {
	const query = `SELECT id, email, student_id, token, expires_at, accepted, invited_by, created_at
        FROM parent_invitations WHERE token = $1`
	var row models.ParentInvitation
	if err := r.db.GetContext(ctx, &row, query, token); err != nil {
		return nil, err
	}
	return &row, nil
}

// MarkInvitationAccepted flags an invitation as consumed.
func (r *TokenRepository) MarkInvitationAccepted(ctx context.Context, id string) error {
	const query = `UPDATE parent_invitations SET accepted = TRUE WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("mark invitation accepted: %w", err)
	}
	return nil
}

// DeleteExpired prunes expired reset tokens and invitations. Run from the
// background job queue.
func (r *TokenRepository) DeleteExpired(ctx context.Context) error {
	now := time.Now().UTC()
	if _, err := r.db.ExecContext(ctx, `DELETE FROM password_reset_tokens WHERE expires_at < $1`, now); err != nil {
		return fmt.Errorf("prune reset tokens: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM parent_invitations WHERE expires_at < $1 AND accepted = FALSE`, now); err != nil {
		return fmt.Errorf("prune invitations: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE expires_at < $1`, now); err != nil {
		return fmt.Errorf("prune refresh tokens: %w", err)
	}
	return nil
}
