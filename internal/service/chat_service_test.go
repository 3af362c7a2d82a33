package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mundodelosninos/mundo-de-los-ninos-sub001/internal/models"
	appErrors "github.com/mundodelosninos/mundo-de-los-ninos-sub001/pkg/errors"
)

type mockChatRepo struct {
	rooms        map[string]models.ChatRoom
	participants map[string][]models.ChatParticipant
	messages     map[string]models.Message
}

func newMockChatRepo() *mockChatRepo {
	return &mockChatRepo{
		rooms:        make(map[string]models.ChatRoom),
		participants: make(map[string][]models.ChatParticipant),
		messages:     make(map[string]models.Message),
	}
}

func (m *mockChatRepo) CreateRoom(ctx context.Context, room *models.ChatRoom, participants []models.ChatParticipant) error {
	if room.ID == "" {
		room.ID = uuid.NewString()
	}
	m.rooms[room.ID] = *room
	for i := range participants {
		participants[i].RoomID = room.ID
	}
	m.participants[room.ID] = participants
	return nil
}

func (m *mockChatRepo) FindRoomByID(ctx context.Context, id string) (*models.ChatRoom, error) {
	if room, ok := m.rooms[id]; ok {
		return &room, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockChatRepo) FindDirectRoom(ctx context.Context, userA, userB string) (*models.ChatRoom, error) {
	for id, room := range m.rooms {
		if room.Type != models.ChatRoomDirect {
			continue
		}
		var hasA, hasB bool
		for _, p := range m.participants[id] {
			if p.UserID == userA {
				hasA = true
			}
			if p.UserID == userB {
				hasB = true
			}
		}
		if hasA && hasB {
			return &room, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockChatRepo) ListRoomsForUser(ctx context.Context, userID string) ([]models.ChatRoomSummary, error) {
	out := []models.ChatRoomSummary{}
	for id, room := range m.rooms {
		for _, p := range m.participants[id] {
			if p.UserID == userID {
				out = append(out, models.ChatRoomSummary{ChatRoom: room})
				break
			}
		}
	}
	return out, nil
}

func (m *mockChatRepo) ListParticipants(ctx context.Context, roomID string) ([]models.ChatParticipant, error) {
	return m.participants[roomID], nil
}

func (m *mockChatRepo) IsParticipant(ctx context.Context, roomID, userID string) (bool, error) {
	for _, p := range m.participants[roomID] {
		if p.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockChatRepo) AddParticipant(ctx context.Context, participant *models.ChatParticipant) error {
	m.participants[participant.RoomID] = append(m.participants[participant.RoomID], *participant)
	return nil
}

func (m *mockChatRepo) RemoveParticipant(ctx context.Context, roomID, userID string) error {
	kept := m.participants[roomID][:0]
	for _, p := range m.participants[roomID] {
		if p.UserID != userID {
			kept = append(kept, p)
		}
	}
	m.participants[roomID] = kept
	return nil
}

func (m *mockChatRepo) CreateMessage(ctx context.Context, message *models.Message) error {
	if message.ID == "" {
		message.ID = uuid.NewString()
	}
	m.messages[message.ID] = *message
	return nil
}

func (m *mockChatRepo) FindMessageByID(ctx context.Context, id string) (*models.Message, error) {
	if msg, ok := m.messages[id]; ok {
		return &msg, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockChatRepo) ListMessages(ctx context.Context, filter models.MessageFilter) ([]models.MessageRecord, int, error) {
	out := []models.MessageRecord{}
	for _, msg := range m.messages {
		if msg.RoomID == filter.RoomID {
			out = append(out, models.MessageRecord{Message: msg})
		}
	}
	return out, len(out), nil
}

func (m *mockChatRepo) DeleteMessage(ctx context.Context, id string) error {
	delete(m.messages, id)
	return nil
}

func (m *mockChatRepo) MarkRead(ctx context.Context, roomID, userID string) (int, error) {
	return 0, nil
}

func (m *mockChatRepo) UnreadCount(ctx context.Context, roomID, userID string) (int, error) {
	return 0, nil
}

type mockChatUsers struct {
	users map[string]models.User
}

func (m *mockChatUsers) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return &u, nil
	}
	return nil, sql.ErrNoRows
}

type capturePublisher struct {
	roomIDs  []string
	payloads [][]byte
}

func (c *capturePublisher) PublishMessage(ctx context.Context, roomID string, payload []byte) error {
	c.roomIDs = append(c.roomIDs, roomID)
	c.payloads = append(c.payloads, payload)
	return nil
}

func fixtureChatUsers() *mockChatUsers {
	return &mockChatUsers{users: map[string]models.User{
		"teacher-1": {ID: "teacher-1", Role: models.RoleTeacher, Active: true},
		"teacher-2": {ID: "teacher-2", Role: models.RoleTeacher, Active: true},
		"parent-1":  {ID: "parent-1", Role: models.RoleParent, Active: true},
		"parent-2":  {ID: "parent-2", Role: models.RoleParent, Active: true},
		"parent-3":  {ID: "parent-3", Role: models.RoleParent, Active: true},
		"admin-1":   {ID: "admin-1", Role: models.RoleAdmin, Active: true},
	}}
}

func newChatService(repo *mockChatRepo, publisher MessagePublisher) *ChatService {
	return NewChatService(repo, fixtureChatUsers(), newTestPolicy(), publisher, nil, nil)
}

func TestOpenDirectRoomTeacherToGuardianAllowed(t *testing.T) {
	repo := newMockChatRepo()
	svc := newChatService(repo, nil)

	room, err := svc.OpenDirectRoom(context.Background(), teacherPrincipal, DirectRoomRequest{UserID: "parent-1"})
	require.NoError(t, err)
	assert.Equal(t, models.ChatRoomDirect, room.Type)
	assert.Len(t, repo.participants[room.ID], 2)
}

func TestOpenDirectRoomParentToParentDenied(t *testing.T) {
	svc := newChatService(newMockChatRepo(), nil)

	_, err := svc.OpenDirectRoom(context.Background(), parentPrincipal, DirectRoomRequest{UserID: "parent-2"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestOpenDirectRoomTeacherToUnrelatedParentDenied(t *testing.T) {
	svc := newChatService(newMockChatRepo(), nil)

	// parent-2's child is in teacher-2's group, not teacher-1's.
	_, err := svc.OpenDirectRoom(context.Background(), teacherPrincipal, DirectRoomRequest{UserID: "parent-2"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestOpenDirectRoomReusesExisting(t *testing.T) {
	repo := newMockChatRepo()
	svc := newChatService(repo, nil)

	first, err := svc.OpenDirectRoom(context.Background(), teacherPrincipal, DirectRoomRequest{UserID: "parent-1"})
	require.NoError(t, err)
	second, err := svc.OpenDirectRoom(context.Background(), teacherPrincipal, DirectRoomRequest{UserID: "parent-1"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, repo.rooms, 1)
}

func TestOpenDirectRoomWithSelfRejected(t *testing.T) {
	svc := newChatService(newMockChatRepo(), nil)

	_, err := svc.OpenDirectRoom(context.Background(), teacherPrincipal, DirectRoomRequest{UserID: "teacher-1"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestCreateGroupRoomParentWithSharedGroupAllowed(t *testing.T) {
	repo := newMockChatRepo()
	svc := newChatService(repo, nil)

	// parent-3's child shares g1 with parent-1's child.
	room, err := svc.CreateRoom(context.Background(), parentPrincipal, CreateRoomRequest{
		Type:    models.ChatRoomGroup,
		Name:    "Familias Sala Azul",
		UserIDs: []string{"parent-3"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.ChatRoomGroup, room.Type)
	assert.Len(t, repo.participants[room.ID], 2)
}

func TestCreateGroupRoomParentUnrelatedParticipantForbidden(t *testing.T) {
	svc := newChatService(newMockChatRepo(), nil)

	// parent-2's family has no group in common with parent-1's.
	_, err := svc.CreateRoom(context.Background(), parentPrincipal, CreateRoomRequest{
		Type:    models.ChatRoomGroup,
		Name:    "Sala Azul",
		UserIDs: []string{"parent-3", "parent-2"},
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestCreateAnnouncementRoomAdminOnly(t *testing.T) {
	svc := newChatService(newMockChatRepo(), nil)

	_, err := svc.CreateRoom(context.Background(), teacherPrincipal, CreateRoomRequest{
		Type:    models.ChatRoomAnnouncement,
		Name:    "Avisos",
		UserIDs: []string{"parent-1"},
	})
	require.Error(t, err)

	room, err := svc.CreateRoom(context.Background(), adminPrincipal, CreateRoomRequest{
		Type:    models.ChatRoomAnnouncement,
		Name:    "Avisos",
		UserIDs: []string{"parent-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.ChatRoomAnnouncement, room.Type)
}

func TestSendMessagePublishesAfterPersist(t *testing.T) {
	repo := newMockChatRepo()
	publisher := &capturePublisher{}
	svc := newChatService(repo, publisher)

	room, err := svc.OpenDirectRoom(context.Background(), teacherPrincipal, DirectRoomRequest{UserID: "parent-1"})
	require.NoError(t, err)

	message, err := svc.SendMessage(context.Background(), teacherPrincipal, room.ID, SendMessageRequest{Body: "Hola"})
	require.NoError(t, err)
	assert.NotEmpty(t, message.ID)
	require.Len(t, publisher.roomIDs, 1)
	assert.Equal(t, room.ID, publisher.roomIDs[0])
}

func TestSendMessageAnnouncementReadOnlyForMembers(t *testing.T) {
	repo := newMockChatRepo()
	svc := newChatService(repo, nil)

	room, err := svc.CreateRoom(context.Background(), adminPrincipal, CreateRoomRequest{
		Type:    models.ChatRoomAnnouncement,
		Name:    "Avisos",
		UserIDs: []string{"parent-1"},
	})
	require.NoError(t, err)

	_, err = svc.SendMessage(context.Background(), parentPrincipal, room.ID, SendMessageRequest{Body: "Hola"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestSendMessageNonMemberForbidden(t *testing.T) {
	repo := newMockChatRepo()
	svc := newChatService(repo, nil)

	room, err := svc.OpenDirectRoom(context.Background(), teacherPrincipal, DirectRoomRequest{UserID: "parent-1"})
	require.NoError(t, err)

	_, err = svc.SendMessage(context.Background(), parent2Principal, room.ID, SendMessageRequest{Body: "Hola"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestDeleteMessageSenderOrAdmin(t *testing.T) {
	repo := newMockChatRepo()
	svc := newChatService(repo, nil)

	room, err := svc.OpenDirectRoom(context.Background(), teacherPrincipal, DirectRoomRequest{UserID: "parent-1"})
	require.NoError(t, err)
	message, err := svc.SendMessage(context.Background(), teacherPrincipal, room.ID, SendMessageRequest{Body: "Hola"})
	require.NoError(t, err)

	err = svc.DeleteMessage(context.Background(), parentPrincipal, message.ID)
	require.Error(t, err)

	require.NoError(t, svc.DeleteMessage(context.Background(), adminPrincipal, message.ID))
	assert.Empty(t, repo.messages)
}

func TestRemoveParticipantMemberMayLeave(t *testing.T) {
	repo := newMockChatRepo()
	svc := newChatService(repo, nil)

	room, err := svc.CreateRoom(context.Background(), teacherPrincipal, CreateRoomRequest{
		Type:    models.ChatRoomGroup,
		Name:    "Sala Azul",
		UserIDs: []string{"parent-1", "parent-2"},
	})
	require.NoError(t, err)

	// parent-1 leaves on their own.
	require.NoError(t, svc.RemoveParticipant(context.Background(), parentPrincipal, room.ID, "parent-1"))

	// parent-2 cannot remove someone else.
	err = svc.RemoveParticipant(context.Background(), parent2Principal, room.ID, "teacher-1")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}
