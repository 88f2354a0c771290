// internal/handlers/chat/chat_handler.go
package chat

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"segmentbook-service/internal/domain/auth"
	"segmentbook-service/internal/domain/chat"
	"segmentbook-service/internal/middleware"
	"segmentbook-service/internal/pkg/response"
)

type Service interface {
	List(ctx context.Context, userID string) ([]chat.Chat, error)
	Messages(ctx context.Context, userID, chatID string) ([]chat.Message, error)
	Participants(ctx context.Context, userID, chatID string) ([]auth.UserSummary, error)
	Send(ctx context.Context, userID, chatID string, req *chat.SendMessageRequest) (*chat.Message, error)
}

type ChatHandler struct {
	service Service
}

func NewChatHandler(service Service) *ChatHandler {
	return &ChatHandler{service: service}
}

func (h *ChatHandler) List(c *gin.Context) {
	chats, err := h.service.List(c.Request.Context(), middleware.MustGetUserID(c))
	if err != nil {
		response.FromError(c, "failed to list chats", err)
		return
	}
	response.Success(c, http.StatusOK, "chats retrieved", chats)
}

func (h *ChatHandler) Messages(c *gin.Context) {
	id, ok := middleware.ParamUUID(c, "id")
	if !ok {
		return
	}
	msgs, err := h.service.Messages(c.Request.Context(), middleware.MustGetUserID(c), id)
	if err != nil {
		response.FromError(c, "failed to load messages", err)
		return
	}
	response.Success(c, http.StatusOK, "messages retrieved", msgs)
}

func (h *ChatHandler) Participants(c *gin.Context) {
	id, ok := middleware.ParamUUID(c, "id")
	if !ok {
		return
	}
	users, err := h.service.Participants(c.Request.Context(), middleware.MustGetUserID(c), id)
	if err != nil {
		response.FromError(c, "failed to load participants", err)
		return
	}
	response.Success(c, http.StatusOK, "participants retrieved", users)
}

func (h *ChatHandler) Send(c *gin.Context) {
	id, ok := middleware.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req chat.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	msg, err := h.service.Send(c.Request.Context(), middleware.MustGetUserID(c), id, &req)
	if err != nil {
		response.FromError(c, "failed to send message", err)
		return
	}
	response.Success(c, http.StatusCreated, "message sent", msg)
}
