package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/mundodelosninos/mundo-de-los-ninos-sub001/internal/authz"
	"github.com/mundodelosninos/mundo-de-los-ninos-sub001/internal/models"
	appErrors "github.com/mundodelosninos/mundo-de-los-ninos-sub001/pkg/errors"
)

type chatRepository interface {
	CreateRoom(ctx context.Context, room *models.ChatRoom, participants []models.ChatParticipant) error
	FindRoomByID(ctx context.Context, id string) (*models.ChatRoom, error)
	FindDirectRoom(ctx context.Context, userA, userB string) (*models.ChatRoom, error)
	ListRoomsForUser(ctx context.Context, userID string) ([]models.ChatRoomSummary, error)
	ListParticipants(ctx context.Context, roomID string) ([]models.ChatParticipant, error)
	IsParticipant(ctx context.Context, roomID, userID string) (bool, error)
	AddParticipant(ctx context.Context, participant *models.ChatParticipant) error
	RemoveParticipant(ctx context.Context, roomID, userID string) error
	CreateMessage(ctx context.Context, message *models.Message) error
	FindMessageByID(ctx context.Context, id string) (*models.Message, error)
	ListMessages(ctx context.Context, filter models.MessageFilter) ([]models.MessageRecord, int, error)
	DeleteMessage(ctx context.Context, id string) error
	MarkRead(ctx context.Context, roomID, userID string) (int, error)
	UnreadCount(ctx context.Context, roomID, userID string) (int, error)
}

type chatUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// MessagePublisher fans a sent message out to connected gateway instances.
type MessagePublisher interface {
	PublishMessage(ctx context.Context, roomID string, payload []byte) error
}

// DirectRoomRequest opens (or reuses) a direct room with another user.
type DirectRoomRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

// CreateRoomRequest creates a group or announcement room. Admin/teacher only.
type CreateRoomRequest struct {
	Type    models.ChatRoomType `json:"type" validate:"required"`
	Name    string              `json:"name" validate:"required"`
	UserIDs []string            `json:"user_ids" validate:"required,min=1"`
}

// SendMessageRequest posts a message to a room.
type SendMessageRequest struct {
	Body string `json:"body" validate:"required,max=4000"`
}

// ChatService handles messaging use-cases. Realtime delivery goes through
// the publisher; persistence always happens first.
type ChatService struct {
	repo      chatRepository
	users     chatUserRepository
	policy    *authz.Policy
	publisher MessagePublisher
	validator *validator.Validate
	logger    *zap.Logger
}

// NewChatService constructs the chat service. The publisher may be nil when
// the realtime gateway is disabled.
func NewChatService(repo chatRepository, users chatUserRepository, policy *authz.Policy, publisher MessagePublisher, validate *validator.Validate, logger *zap.Logger) *ChatService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatService{repo: repo, users: users, policy: policy, publisher: publisher, validator: validate, logger: logger}
}

// ListRooms returns the caller's rooms with unread counts.
func (s *ChatService) ListRooms(ctx context.Context, principal authz.Principal) ([]models.ChatRoomSummary, error) {
	rooms, err := s.repo.ListRoomsForUser(ctx, principal.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list rooms")
	}
	return rooms, nil
}

// OpenDirectRoom returns the existing direct room with the target user or
// creates one, subject to the direct-chat policy.
func (s *ChatService) OpenDirectRoom(ctx context.Context, principal authz.Principal, req DirectRoomRequest) (*models.ChatRoom, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid room payload")
	}
	if req.UserID == principal.ID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cannot open a direct room with yourself")
	}

	counterpart, err := s.users.FindByID(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if !counterpart.Active {
		return nil, appErrors.Clone(appErrors.ErrValidation, "user is inactive")
	}

	target := authz.Principal{ID: counterpart.ID, Role: counterpart.Role}
	if err := s.policy.CanDirectChat(ctx, principal, target); err != nil {
		return nil, err
	}

	room, err := s.repo.FindDirectRoom(ctx, principal.ID, req.UserID)
	if err == nil {
		return room, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up direct room")
	}

	created := &models.ChatRoom{
		Type:      models.ChatRoomDirect,
		CreatedBy: principal.ID,
	}
	participants := []models.ChatParticipant{
		{UserID: principal.ID, Role: models.ChatRoleAdmin},
		{UserID: req.UserID, Role: models.ChatRoleMember},
	}
	if err := s.repo.CreateRoom(ctx, created, participants); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create direct room")
	}
	return created, nil
}

// CreateRoom creates a group or announcement room. Announcement rooms are
// admin only; a parent may open a group room when every invited participant
// is someone the direct-chat policy already lets them reach.
func (s *ChatService) CreateRoom(ctx context.Context, principal authz.Principal, req CreateRoomRequest) (*models.ChatRoom, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid room payload")
	}
	if !req.Type.Valid() || req.Type == models.ChatRoomDirect {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported room type")
	}
	if req.Type == models.ChatRoomAnnouncement && !principal.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only administrators create announcement rooms")
	}
	if principal.IsParent() {
		for _, userID := range req.UserIDs {
			if userID == principal.ID {
				continue
			}
			member, err := s.users.FindByID(ctx, userID)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
				}
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
			}
			if !member.Active {
				return nil, appErrors.Clone(appErrors.ErrValidation, "user is inactive")
			}
			if err := s.policy.CanDirectChat(ctx, principal, authz.Principal{ID: member.ID, Role: member.Role}); err != nil {
				return nil, err
			}
		}
	}

	room := &models.ChatRoom{
		Type:      req.Type,
		Name:      req.Name,
		CreatedBy: principal.ID,
	}
	participants := []models.ChatParticipant{{UserID: principal.ID, Role: models.ChatRoleAdmin}}
	for _, userID := range req.UserIDs {
		if userID == principal.ID {
			continue
		}
		participants = append(participants, models.ChatParticipant{UserID: userID, Role: models.ChatRoleMember})
	}
	if err := s.repo.CreateRoom(ctx, room, participants); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create room")
	}
	return room, nil
}

// GetRoom returns a room the caller belongs to, with its participants.
func (s *ChatService) GetRoom(ctx context.Context, principal authz.Principal, roomID string) (*models.ChatRoom, []models.ChatParticipant, error) {
	room, err := s.loadRoomForMember(ctx, principal, roomID)
	if err != nil {
		return nil, nil, err
	}
	participants, err := s.repo.ListParticipants(ctx, roomID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list participants")
	}
	return room, participants, nil
}

// SendMessage persists a message and fans it out to the gateway. In
// announcement rooms only room admins may post.
func (s *ChatService) SendMessage(ctx context.Context, principal authz.Principal, roomID string, req SendMessageRequest) (*models.Message, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid message payload")
	}

	room, err := s.loadRoomForMember(ctx, principal, roomID)
	if err != nil {
		return nil, err
	}

	if room.Type == models.ChatRoomAnnouncement && !principal.IsAdmin() {
		participants, err := s.repo.ListParticipants(ctx, roomID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list participants")
		}
		isRoomAdmin := false
		for _, p := range participants {
			if p.UserID == principal.ID && p.Role == models.ChatRoleAdmin {
				isRoomAdmin = true
				break
			}
		}
		if !isRoomAdmin {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "announcement rooms are read-only for members")
		}
	}

	message := &models.Message{
		RoomID:   roomID,
		SenderID: principal.ID,
	}
	message.Body = req.Body
	if err := s.repo.CreateMessage(ctx, message); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist message")
	}

	s.publish(ctx, roomID, message)
	return message, nil
}

// ListMessages pages through a room's history, newest first.
func (s *ChatService) ListMessages(ctx context.Context, principal authz.Principal, filter models.MessageFilter) ([]models.MessageRecord, *models.Pagination, error) {
	if _, err := s.loadRoomForMember(ctx, principal, filter.RoomID); err != nil {
		return nil, nil, err
	}

	messages, total, err := s.repo.ListMessages(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list messages")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return messages, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// MarkRead records read receipts for the caller in the room.
func (s *ChatService) MarkRead(ctx context.Context, principal authz.Principal, roomID string) (int, error) {
	if _, err := s.loadRoomForMember(ctx, principal, roomID); err != nil {
		return 0, err
	}
	marked, err := s.repo.MarkRead(ctx, roomID, principal.ID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark messages read")
	}
	return marked, nil
}

// DeleteMessage removes a message. Senders delete their own; admins any.
func (s *ChatService) DeleteMessage(ctx context.Context, principal authz.Principal, messageID string) error {
	message, err := s.repo.FindMessageByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "message not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load message")
	}
	if !principal.IsAdmin() && message.SenderID != principal.ID {
		return appErrors.Clone(appErrors.ErrForbidden, "cannot delete another user's message")
	}
	if err := s.repo.DeleteMessage(ctx, messageID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete message")
	}
	return nil
}

// AddParticipant adds a user to a group room. Room admins only.
func (s *ChatService) AddParticipant(ctx context.Context, principal authz.Principal, roomID, userID string) error {
	room, err := s.loadRoomForMember(ctx, principal, roomID)
	if err != nil {
		return err
	}
	if room.Type == models.ChatRoomDirect {
		return appErrors.Clone(appErrors.ErrValidation, "direct rooms have a fixed membership")
	}
	if !principal.IsAdmin() && room.CreatedBy != principal.ID {
		return appErrors.Clone(appErrors.ErrForbidden, "only the room owner manages participants")
	}
	participant := &models.ChatParticipant{RoomID: roomID, UserID: userID, Role: models.ChatRoleMember}
	if err := s.repo.AddParticipant(ctx, participant); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add participant")
	}
	return nil
}

// RemoveParticipant removes a user from a group room. Members may leave on
// their own; otherwise room admins only.
func (s *ChatService) RemoveParticipant(ctx context.Context, principal authz.Principal, roomID, userID string) error {
	room, err := s.loadRoomForMember(ctx, principal, roomID)
	if err != nil {
		return err
	}
	if room.Type == models.ChatRoomDirect {
		return appErrors.Clone(appErrors.ErrValidation, "direct rooms have a fixed membership")
	}
	if userID != principal.ID && !principal.IsAdmin() && room.CreatedBy != principal.ID {
		return appErrors.Clone(appErrors.ErrForbidden, "only the room owner manages participants")
	}
	if err := s.repo.RemoveParticipant(ctx, roomID, userID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove participant")
	}
	return nil
}

func (s *ChatService) loadRoomForMember(ctx context.Context, principal authz.Principal, roomID string) (*models.ChatRoom, error) {
	room, err := s.repo.FindRoomByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "room not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load room")
	}
	member, err := s.repo.IsParticipant(ctx, roomID, principal.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check membership")
	}
	if !member && !principal.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you are not a member of this room")
	}
	return room, nil
}

func (s *ChatService) publish(ctx context.Context, roomID string, message *models.Message) {
	if s.publisher == nil {
		return
	}
	payload, err := json.Marshal(message)
	if err != nil {
		s.logger.Warn("failed to encode message for fan-out", zap.Error(err))
		return
	}
	publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := s.publisher.PublishMessage(publishCtx, roomID, payload); err != nil {
		s.logger.Warn("message fan-out failed",
			zap.String("room_id", roomID),
			zap.Error(err))
	}
}
