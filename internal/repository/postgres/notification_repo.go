// internal/repository/postgres/notification_repo.go
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"segmentbook-service/internal/domain/notification"
	xerrors "segmentbook-service/internal/pkg/errors"
)

type NotificationRepository struct {
	db *pgxpool.Pool
}

func NewNotificationRepository(db *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// insertNotification writes n through q so it can join a caller's transaction.
func insertNotification(ctx context.Context, q DBTX, n *notification.Notification) error {
	query := `
		INSERT INTO notifications (title, content, type, sender_id, receiver_id, request_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, is_read, created_at
	`
	err := q.QueryRow(ctx, query, n.Title, n.Content, n.Type, nullable(n.SenderID), n.ReceiverID, nullable(n.RequestID)).
		Scan(&n.ID, &n.IsRead, &n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// Create creates a new notification
func (r *NotificationRepository) Create(ctx context.Context, n *notification.Notification) error {
	return insertNotification(ctx, r.db, n)
}

// GetUserNotifications pages through receiverID's notifications, newest first.
func (r *NotificationRepository) GetUserNotifications(ctx context.Context, receiverID string, f *notification.ListFilters) (*notification.NotificationPage, error) {
	where := "n.receiver_id = $1"
	if f.Status == notification.StatusUnread {
		where += " AND NOT n.is_read"
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM notifications n WHERE `+where, receiverID).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count notifications: %w", err)
	}

	query := `
		SELECT n.id, n.title, n.content, n.type, n.is_read,
		       COALESCE(n.sender_id::text, ''), n.receiver_id, COALESCE(n.request_id::text, ''), n.created_at,
		       COALESCE(s.id::text, ''), COALESCE(s.full_name, ''), COALESCE(s.username, ''), COALESCE(s.avatar_url, '')
		FROM notifications n
		LEFT JOIN users s ON s.id = n.sender_id
		WHERE ` + where + `
		ORDER BY n.created_at DESC, n.id
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, receiverID, f.Limit(), f.Offset())
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	page := &notification.NotificationPage{Notifications: []notification.Notification{}, Total: total}
	for rows.Next() {
		var (
			n                          notification.Notification
			sID, sName, sUser, sAvatar string
		)
		if err := rows.Scan(&n.ID, &n.Title, &n.Content, &n.Type, &n.IsRead, &n.SenderID, &n.ReceiverID,
			&n.RequestID, &n.CreatedAt, &sID, &sName, &sUser, &sAvatar); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		n.Sender = summary(sID, sName, sUser, sAvatar)
		page.Notifications = append(page.Notifications, n)
	}
	return page, rows.Err()
}

// MarkAsRead marks one of receiverID's notifications as read.
func (r *NotificationRepository) MarkAsRead(ctx context.Context, id, receiverID string) error {
	tag, err := r.db.Exec(ctx, `UPDATE notifications SET is_read = true WHERE id = $1 AND receiver_id = $2`, id, receiverID)
	if err != nil {
		return fmt.Errorf("failed to mark notification as read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.New(xerrors.ErrNotFound, "Notification not found")
	}
	return nil
}

// MarkAllAsRead marks every unread notification of receiverID as read.
func (r *NotificationRepository) MarkAllAsRead(ctx context.Context, receiverID string) (int64, error) {
	tag, err := r.db.Exec(ctx, `UPDATE notifications SET is_read = true WHERE receiver_id = $1 AND NOT is_read`, receiverID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications as read: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *NotificationRepository) GetUnreadCount(ctx context.Context, receiverID string) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE receiver_id = $1 AND NOT is_read`, receiverID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return n, nil
}
