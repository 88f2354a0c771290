// internal/service/notification/service.go
package notification

import (
	"context"

	"go.uber.org/zap"

	"segmentbook-service/internal/domain/notification"
)

type Repository interface {
	GetUserNotifications(ctx context.Context, receiverID string, f *notification.ListFilters) (*notification.NotificationPage, error)
	GetUnreadCount(ctx context.Context, receiverID string) (int, error)
	MarkAsRead(ctx context.Context, id, receiverID string) error
	MarkAllAsRead(ctx context.Context, receiverID string) (int64, error)
}

// NotificationService serves a user's inbox. Notifications are written by
// the request flows and pushed by the realtime hub.
type NotificationService struct {
	repo   Repository
	logger *zap.Logger
}

func NewNotificationService(repo Repository, logger *zap.Logger) *NotificationService {
	return &NotificationService{repo: repo, logger: logger}
}

func (s *NotificationService) List(ctx context.Context, userID string, f *notification.ListFilters) (*notification.NotificationPage, error) {
	f.Params = f.Params.Normalize()
	if f.Status == "" {
		f.Status = notification.StatusAll
	}
	return s.repo.GetUserNotifications(ctx, userID, f)
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int, error) {
	return s.repo.GetUnreadCount(ctx, userID)
}

func (s *NotificationService) MarkAsRead(ctx context.Context, userID, id string) error {
	return s.repo.MarkAsRead(ctx, id, userID)
}

func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID string) error {
	n, err := s.repo.MarkAllAsRead(ctx, userID)
	if err != nil {
		return err
	}
	s.logger.Debug("notifications marked read", zap.String("user_id", userID), zap.Int64("count", n))
	return nil
}
