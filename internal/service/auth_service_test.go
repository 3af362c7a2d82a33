package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mundodelosninos/mundo-de-los-ninos-sub001/internal/models"
	appErrors "github.com/mundodelosninos/mundo-de-los-ninos-sub001/pkg/errors"
	"github.com/mundodelosninos/mundo-de-los-ninos-sub001/pkg/mailer"
)

type mockAuthUsers struct {
	users map[string]models.User
}

func (m *mockAuthUsers) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthUsers) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return &u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthUsers) ExistsByEmail(ctx context.Context, email string, excludeID string) (bool, error) {
	for _, u := range m.users {
		if u.Email == email && u.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockAuthUsers) Create(ctx context.Context, user *models.User) error {
	m.users[user.ID] = *user
	return nil
}

func (m *mockAuthUsers) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	u := m.users[id]
	u.LastLogin = &ts
	m.users[id] = u
	return nil
}

func (m *mockAuthUsers) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	u := m.users[id]
	u.PasswordHash = passwordHash
	m.users[id] = u
	return nil
}

type mockAuthTokens struct {
	refresh     map[string]models.RefreshToken
	resets      map[string]models.PasswordResetToken
	invitations map[string]models.ParentInvitation
}

func newMockAuthTokens() *mockAuthTokens {
	return &mockAuthTokens{
		refresh:     make(map[string]models.RefreshToken),
		resets:      make(map[string]models.PasswordResetToken),
		invitations: make(map[string]models.ParentInvitation),
	}
}

func (m *mockAuthTokens) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	m.refresh[token.Token] = *token
	return nil
}

func (m *mockAuthTokens) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	if t, ok := m.refresh[token]; ok {
		return &t, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthTokens) RevokeRefreshToken(ctx context.Context, id string) error {
	for key, t := range m.refresh {
		if t.ID == id {
			t.Revoked = true
			m.refresh[key] = t
		}
	}
	return nil
}

func (m *mockAuthTokens) RevokeAllForUser(ctx context.Context, userID string) error {
	for key, t := range m.refresh {
		if t.UserID == userID {
			t.Revoked = true
			m.refresh[key] = t
		}
	}
	return nil
}

func (m *mockAuthTokens) CreatePasswordResetToken(ctx context.Context, token *models.PasswordResetToken) error {
	m.resets[token.Token] = *token
	return nil
}

func (m *mockAuthTokens) FindPasswordResetToken(ctx context.Context, token string) (*models.PasswordResetToken, error) {
	if t, ok := m.resets[token]; ok {
		return &t, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthTokens) MarkResetTokenUsed(ctx context.Context, id string) error {
	for key, t := range m.resets {
		if t.ID == id {
			t.Used = true
			m.resets[key] = t
		}
	}
	return nil
}

func (m *mockAuthTokens) CreateInvitation(ctx context.Context, invitation *models.ParentInvitation) error {
	m.invitations[invitation.Token] = *invitation
	return nil
}

func (m *mockAuthTokens) FindInvitation(ctx context.Context, token string) (*models.ParentInvitation, error) {
	if inv, ok := m.invitations[token]; ok {
		return &inv, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthTokens) MarkInvitationAccepted(ctx context.Context, id string) error {
	for key, inv := range m.invitations {
		if inv.ID == id {
			inv.Accepted = true
			m.invitations[key] = inv
		}
	}
	return nil
}

type mockAuthStudents struct {
	students map[string]models.StudentDetail
}

func (m *mockAuthStudents) FindByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	if s, ok := m.students[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthStudents) Update(ctx context.Context, student *models.Student) error {
	detail := m.students[student.ID]
	detail.Student = *student
	m.students[student.ID] = detail
	return nil
}

type mockMailer struct {
	sent []mailer.Email
	err  error
}

func (m *mockMailer) Send(email mailer.Email) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, email)
	return nil
}

func testAuthConfig() AuthConfig {
	return AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 7 * 24 * time.Hour,
		PasswordResetTTL:   time.Hour,
		ParentInviteTTL:    72 * time.Hour,
		BaseURL:            "http://localhost:3000",
	}
}

func authFixture(t *testing.T) (*AuthService, *mockAuthUsers, *mockAuthTokens, *mockMailer) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	require.NoError(t, err)

	users := &mockAuthUsers{users: map[string]models.User{
		"admin-1": {
			ID:           "admin-1",
			Email:        "admin@centroludico.es",
			PasswordHash: string(hash),
			FullName:     "Carmen Ruiz",
			Role:         models.RoleAdmin,
			Active:       true,
		},
	}}
	tokens := newMockAuthTokens()
	students := &mockAuthStudents{students: map[string]models.StudentDetail{
		"s1": {Student: models.Student{ID: "s1", FullName: "Lucía Fernández", Active: true}},
	}}
	mail := &mockMailer{}
	svc := NewAuthService(users, tokens, students, mail, nil, nil, testAuthConfig())
	return svc, users, tokens, mail
}

func TestLoginSuccess(t *testing.T) {
	svc, _, tokens, _ := authFixture(t)

	resp, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "admin@centroludico.es",
		Password: "correct-horse",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, models.RoleAdmin, resp.User.Role)
	assert.Len(t, tokens.refresh, 1)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "admin-1", claims.UserID)
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _, _, _ := authFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "admin@centroludico.es",
		Password: "wrong",
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErr.Code)
}

func TestLoginInactiveAccount(t *testing.T) {
	svc, users, _, _ := authFixture(t)
	u := users.users["admin-1"]
	u.Active = false
	users.users["admin-1"] = u

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "admin@centroludico.es",
		Password: "correct-horse",
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErr.Code)
}

func TestRefreshTokenRotates(t *testing.T) {
	svc, _, tokens, _ := authFixture(t)

	login, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "admin@centroludico.es",
		Password: "correct-horse",
	})
	require.NoError(t, err)

	refreshed, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)

	// the consumed token is revoked and cannot be replayed
	assert.True(t, tokens.refresh[login.RefreshToken].Revoked)
	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrTokenExpired.Code, appErr.Code)
}

func TestRequestPasswordResetUnknownEmailSilent(t *testing.T) {
	svc, _, tokens, mail := authFixture(t)

	err := svc.RequestPasswordReset(context.Background(), models.ResetPasswordRequest{Email: "nadie@example.com"})
	require.NoError(t, err)
	assert.Empty(t, tokens.resets)
	assert.Empty(t, mail.sent)
}

func TestPasswordResetFlow(t *testing.T) {
	svc, users, tokens, mail := authFixture(t)

	require.NoError(t, svc.RequestPasswordReset(context.Background(), models.ResetPasswordRequest{Email: "admin@centroludico.es"}))
	require.Len(t, mail.sent, 1)
	assert.Equal(t, "admin@centroludico.es", mail.sent[0].To)
	require.Len(t, tokens.resets, 1)

	var value string
	for token := range tokens.resets {
		value = token
	}
	require.NoError(t, svc.ConfirmPasswordReset(context.Background(), models.ConfirmResetPasswordRequest{
		Token:       value,
		NewPassword: "brand-new-pass",
	}))

	err := bcrypt.CompareHashAndPassword([]byte(users.users["admin-1"].PasswordHash), []byte("brand-new-pass"))
	assert.NoError(t, err)

	// second use is rejected
	err = svc.ConfirmPasswordReset(context.Background(), models.ConfirmResetPasswordRequest{
		Token:       value,
		NewPassword: "another-pass",
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrTokenExpired.Code, appErr.Code)
}

func TestInviteParentExistingEmailConflict(t *testing.T) {
	svc, _, _, _ := authFixture(t)

	_, err := svc.InviteParent(context.Background(), "admin-1", InviteParentRequest{
		Email:     "admin@centroludico.es",
		StudentID: "s1",
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestInvitationFlowLinksParent(t *testing.T) {
	svc, users, tokens, mail := authFixture(t)

	invitation, err := svc.InviteParent(context.Background(), "admin-1", InviteParentRequest{
		Email:     "marta@example.com",
		StudentID: "s1",
	})
	require.NoError(t, err)
	require.Len(t, mail.sent, 1)
	assert.Contains(t, mail.sent[0].TextBody, invitation.Token)

	parent, err := svc.AcceptInvitation(context.Background(), AcceptInvitationRequest{
		Token:    invitation.Token,
		FullName: "Marta Fernández",
		Password: "segura-12345",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleParent, parent.Role)
	assert.Equal(t, "marta@example.com", parent.Email)
	assert.True(t, users.users[parent.ID].Active)
	assert.True(t, tokens.invitations[invitation.Token].Accepted)

	// replay is rejected
	_, err = svc.AcceptInvitation(context.Background(), AcceptInvitationRequest{
		Token:    invitation.Token,
		FullName: "Otra Persona",
		Password: "segura-12345",
	})
	require.Error(t, err)
}

func TestLogoutForeignTokenForbidden(t *testing.T) {
	svc, _, _, _ := authFixture(t)

	login, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "admin@centroludico.es",
		Password: "correct-horse",
	})
	require.NoError(t, err)

	err = svc.Logout(context.Background(), "someone-else", login.RefreshToken)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)

	require.NoError(t, svc.Logout(context.Background(), "admin-1", login.RefreshToken))
}
