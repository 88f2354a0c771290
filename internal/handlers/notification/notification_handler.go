// internal/handlers/notification/notification_handler.go
package notification

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"segmentbook-service/internal/domain/notification"
	"segmentbook-service/internal/middleware"
	"segmentbook-service/internal/pkg/response"
)

type Service interface {
	List(ctx context.Context, userID string, f *notification.ListFilters) (*notification.NotificationPage, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	MarkAsRead(ctx context.Context, userID, id string) error
	MarkAllAsRead(ctx context.Context, userID string) error
}

type NotificationHandler struct {
	notificationService Service
}

func NewNotificationHandler(notificationService Service) *NotificationHandler {
	return &NotificationHandler{
		notificationService: notificationService,
	}
}

// GetNotifications retrieves paginated notifications for the current user
func (h *NotificationHandler) GetNotifications(c *gin.Context) {
	var filters notification.ListFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		response.BindError(c, err)
		return
	}

	result, err := h.notificationService.List(c.Request.Context(), middleware.MustGetUserID(c), &filters)
	if err != nil {
		response.FromError(c, "failed to get notifications", err)
		return
	}

	response.Success(c, http.StatusOK, "notifications retrieved", result)
}

func (h *NotificationHandler) GetUnreadCount(c *gin.Context) {
	count, err := h.notificationService.UnreadCount(c.Request.Context(), middleware.MustGetUserID(c))
	if err != nil {
		response.FromError(c, "failed to get unread count", err)
		return
	}

	response.Success(c, http.StatusOK, "unread count retrieved", notification.UnreadCount{Count: count})
}

func (h *NotificationHandler) MarkAsRead(c *gin.Context) {
	id, ok := middleware.ParamUUID(c, "id")
	if !ok {
		return
	}

	if err := h.notificationService.MarkAsRead(c.Request.Context(), middleware.MustGetUserID(c), id); err != nil {
		response.FromError(c, "failed to mark notification as read", err)
		return
	}

	response.Success(c, http.StatusOK, "notification marked as read", nil)
}

func (h *NotificationHandler) MarkAllAsRead(c *gin.Context) {
	if err := h.notificationService.MarkAllAsRead(c.Request.Context(), middleware.MustGetUserID(c)); err != nil {
		response.FromError(c, "failed to mark notifications as read", err)
		return
	}

	response.Success(c, http.StatusOK, "all notifications marked as read", nil)
}
