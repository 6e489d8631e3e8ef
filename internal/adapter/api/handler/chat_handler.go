package handler

import (
	"github.com/labstack/echo/v4"

	"helpdesk/internal/domain/entity"
	"helpdesk/internal/usecase"
	"helpdesk/pkg/errors"
	"helpdesk/pkg/response"
	"helpdesk/pkg/utils"
)

type ChatHandler struct {
	chatUseCase *usecase.ChatUseCase
}

func NewChatHandler(chatUseCase *usecase.ChatUseCase) *ChatHandler {
	return &ChatHandler{
		chatUseCase: chatUseCase,
	}
}

type sendMessageRequest struct {
	SenderRole       string `json:"sender_role" validate:"required,oneof=customer user support admin employee"`
	Text             string `json:"text" validate:"required_without_all=ImageURL VideoURL"`
	ImageURL         string `json:"image_url" validate:"omitempty,url"`
	VideoURL         string `json:"video_url" validate:"omitempty,url"`
	ReplyToMessageID *int64 `json:"reply_to_message_id"`
}

type markDeliveredRequest struct {
	DeliverToRole string `json:"deliver_to_role" validate:"required,oneof=customer user support admin employee"`
}

type markReadRequest struct {
	ReaderRole string `json:"reader_role" validate:"required,oneof=customer user support admin employee"`
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// GetMessages returns the conversation's ledger in insertion order. With
// ?limit= it returns one page of history counted back from the newest message.
func (h *ChatHandler) GetMessages(c echo.Context) error {
	id, err := conversationParam(c)
	if err != nil {
		return response.Error(c, err)
	}

	messages, err := h.chatUseCase.ListMessages(c.Request().Context(), id)
	if err != nil {
		return response.Error(c, err)
	}

	if page, ok := utils.GetPaginationParams(c); ok {
		start, end := page.Window(len(messages))
		messages = messages[start:end]
	}

	return response.Success(c, messages)
}

// SendMessage appends a message and fans it out to the room, the support
// dashboard and push subscribers.
func (h *ChatHandler) SendMessage(c echo.Context) error {
	id, err := conversationParam(c)
	if err != nil {
		return response.Error(c, err)
	}

	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}

	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	role, err := entity.ParseRole(req.SenderRole)
	if err != nil {
		return response.Error(c, errors.BadRequest(err.Error(), err))
	}

	message, err := h.chatUseCase.SendMessage(c.Request().Context(), usecase.SendMessageInput{
		ConversationID:   id,
		SenderRole:       role,
		Text:             req.Text,
		ImageURL:         req.ImageURL,
		VideoURL:         req.VideoURL,
		ReplyToMessageID: req.ReplyToMessageID,
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, message)
}

func (h *ChatHandler) MarkDelivered(c echo.Context) error {
	id, err := conversationParam(c)
	if err != nil {
		return response.Error(c, err)
	}

	var req markDeliveredRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}

	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	role, err := entity.ParseRole(req.DeliverToRole)
	if err != nil {
		return response.Error(c, errors.BadRequest(err.Error(), err))
	}

	updated, err := h.chatUseCase.MarkDelivered(c.Request().Context(), id, role)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]interface{}{
		"conversation_id": id,
		"updated":         updated,
	})
}

func (h *ChatHandler) MarkRead(c echo.Context) error {
	id, err := conversationParam(c)
	if err != nil {
		return response.Error(c, err)
	}

	var req markReadRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}

	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	role, err := entity.ParseRole(req.ReaderRole)
	if err != nil {
		return response.Error(c, errors.BadRequest(err.Error(), err))
	}

	updated, err := h.chatUseCase.MarkRead(c.Request().Context(), id, role)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]interface{}{
		"conversation_id": id,
		"updated":         updated,
	})
}

// UpdateStatus changes the complaint workflow status.
func (h *ChatHandler) UpdateStatus(c echo.Context) error {
	id, err := conversationParam(c)
	if err != nil {
		return response.Error(c, err)
	}

	var req updateStatusRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}

	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	status, err := entity.ParseConversationStatus(req.Status)
	if err != nil {
		return response.Error(c, errors.BadRequest("Status must be one of: Pending, In Progress, Resolved", err))
	}

	if err := h.chatUseCase.UpdateStatus(c.Request().Context(), id, status); err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]interface{}{
		"conversation_id": id,
		"status":          status,
	})
}

func conversationParam(c echo.Context) (entity.ConversationID, error) {
	id, err := entity.ParseConversationID(c.Param("id"))
	if err != nil {
		return entity.ConversationID{}, errors.BadRequest("Invalid conversation id", err)
	}
	return id, nil
}
