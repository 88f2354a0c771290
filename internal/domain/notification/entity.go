// internal/domain/notification/entity.go
package notification

import (
	"time"

	"segmentbook-service/internal/domain/auth"
	"segmentbook-service/internal/pkg/pagination"
)

type NotificationType string

const (
	TypeDonationRequest NotificationType = "DONATION_REQUEST"
	TypeRequestAccepted NotificationType = "REQUEST_ACCEPTED"
	TypeRequestRejected NotificationType = "REQUEST_REJECTED"
	TypeBookDonated     NotificationType = "BOOK_DONATED"
)

type Notification struct {
	ID         string            `json:"id" db:"id"`
	Title      string            `json:"title" db:"title"`
	Content    string            `json:"content" db:"content"`
	Type       NotificationType  `json:"type" db:"type"`
	IsRead     bool              `json:"is_read" db:"is_read"`
	SenderID   string            `json:"sender_id,omitempty" db:"sender_id"`
	ReceiverID string            `json:"receiver_id" db:"receiver_id"`
	RequestID  string            `json:"request_id,omitempty" db:"request_id"`
	CreatedAt  time.Time         `json:"created_at" db:"created_at"`
	Sender     *auth.UserSummary `json:"sender,omitempty"`
}

// DTOs

const (
	StatusAll    = "all"
	StatusUnread = "unread"
)

type ListFilters struct {
	Status string `form:"status" binding:"omitempty,oneof=all unread"`
	pagination.Params
}

type NotificationPage struct {
	Notifications []Notification `json:"notifications"`
	Total         int            `json:"total"`
}

type UnreadCount struct {
	Count int `json:"count"`
}
