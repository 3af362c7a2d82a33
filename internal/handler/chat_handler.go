package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mundodelosninos/mundo-de-los-ninos-sub001/internal/models"
	"github.com/mundodelosninos/mundo-de-los-ninos-sub001/internal/service"
	"github.com/mundodelosninos/mundo-de-los-ninos-sub001/internal/ws"
	appErrors "github.com/mundodelosninos/mundo-de-los-ninos-sub001/pkg/errors"
	"github.com/mundodelosninos/mundo-de-los-ninos-sub001/pkg/response"
)

// ChatHandler wires HTTP endpoints to the chat service. Realtime delivery
// lives in the ws package; these endpoints cover history and room admin.
type ChatHandler struct {
	service  *service.ChatService
	presence *ws.Presence
}

// NewChatHandler creates a new handler. Presence is nil when chat realtime
// is disabled.
func NewChatHandler(svc *service.ChatService, presence *ws.Presence) *ChatHandler {
	return &ChatHandler{service: svc, presence: presence}
}

// ListRooms godoc
// @Summary List chat rooms
// @Description List rooms the caller participates in, with unread counts
// @Tags Chat
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /chat/rooms [get]
func (h *ChatHandler) ListRooms(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	rooms, err := h.service.ListRooms(c.Request.Context(), principal)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, rooms, nil)
}

// OpenDirect godoc
// @Summary Open a direct room
// @Description Open (or reuse) a one-to-one room with another user, subject to the relationship rules
// @Tags Chat
// @Accept json
// @Produce json
// @Param payload body service.DirectRoomRequest true "Peer payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /chat/rooms/direct [post]
func (h *ChatHandler) OpenDirect(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.DirectRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid room payload"))
		return
	}

	room, err := h.service.OpenDirectRoom(c.Request.Context(), principal, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, room, nil)
}

// CreateRoom godoc
// @Summary Create a group or announcement room
// @Description Create a multi-party room. Announcement rooms are admin only; parents may invite only users they are allowed to chat with.
// @Tags Chat
// @Accept json
// @Produce json
// @Param payload body service.CreateRoomRequest true "Room payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /chat/rooms [post]
func (h *ChatHandler) CreateRoom(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid room payload"))
		return
	}

	room, err := h.service.CreateRoom(c.Request.Context(), principal, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, room)
}

// GetRoom godoc
// @Summary Get room
// @Description Get one room with its participant list. Members only.
// @Tags Chat
// @Produce json
// @Param id path string true "Room ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /chat/rooms/{id} [get]
func (h *ChatHandler) GetRoom(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	room, participants, err := h.service.GetRoom(c.Request.Context(), principal, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{"room": room, "participants": participants}, nil)
}

// SendMessage godoc
// @Summary Send message
// @Description Persist a message and publish it to connected clients
// @Tags Chat
// @Accept json
// @Produce json
// @Param id path string true "Room ID"
// @Param payload body service.SendMessageRequest true "Message payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /chat/rooms/{id}/messages [post]
func (h *ChatHandler) SendMessage(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid message payload"))
		return
	}

	message, err := h.service.SendMessage(c.Request.Context(), principal, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, message)
}

// ListMessages godoc
// @Summary List messages
// @Description Page through room history, newest first
// @Tags Chat
// @Produce json
// @Param id path string true "Room ID"
// @Param before query string false "Only messages before this RFC3339 timestamp"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /chat/rooms/{id}/messages [get]
func (h *ChatHandler) ListMessages(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var filter models.MessageFilter
	filter.RoomID = c.Param("id")
	filter.Page, filter.PageSize = parsePagination(c)
	if v := c.Query("before"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filter.Before = &t
		}
	}

	messages, pagination, err := h.service.ListMessages(c.Request.Context(), principal, filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, messages, pagination)
}

// MarkRead godoc
// @Summary Mark room as read
// @Description Move the caller's read cursor to now
// @Tags Chat
// @Produce json
// @Param id path string true "Room ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /chat/rooms/{id}/read [post]
func (h *ChatHandler) MarkRead(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	marked, err := h.service.MarkRead(c.Request.Context(), principal, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{"marked": marked}, nil)
}

// Presence godoc
// @Summary List online members
// @Description List user ids currently connected to the room's socket. Members only.
// @Tags Chat
// @Produce json
// @Param id path string true "Room ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /chat/rooms/{id}/presence [get]
func (h *ChatHandler) Presence(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	roomID := c.Param("id")
	if _, _, err := h.service.GetRoom(c.Request.Context(), principal, roomID); err != nil {
		response.Error(c, err)
		return
	}

	online := []string{}
	if h.presence != nil {
		members, err := h.presence.Online(c.Request.Context(), roomID)
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read presence"))
			return
		}
		online = members
	}

	response.JSON(c, http.StatusOK, gin.H{"online": online}, nil)
}

// DeleteMessage godoc
// @Summary Delete message
// @Description Remove a message. Sender or admin only.
// @Tags Chat
// @Produce json
// @Param messageId path string true "Message ID"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /chat/messages/{messageId} [delete]
func (h *ChatHandler) DeleteMessage(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.service.DeleteMessage(c.Request.Context(), principal, c.Param("messageId")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// AddParticipant godoc
// @Summary Add room participant
// @Description Add a user to a group or announcement room. Room admin only.
// @Tags Chat
// @Produce json
// @Param id path string true "Room ID"
// @Param userId path string true "User ID"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /chat/rooms/{id}/participants/{userId} [post]
func (h *ChatHandler) AddParticipant(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.service.AddParticipant(c.Request.Context(), principal, c.Param("id"), c.Param("userId")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// RemoveParticipant godoc
// @Summary Remove room participant
// @Description Remove a user from the room. Members may remove themselves.
// @Tags Chat
// @Produce json
// @Param id path string true "Room ID"
// @Param userId path string true "User ID"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /chat/rooms/{id}/participants/{userId} [delete]
func (h *ChatHandler) RemoveParticipant(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.service.RemoveParticipant(c.Request.Context(), principal, c.Param("id"), c.Param("userId")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}
