// internal/domain/chat/entity.go
package chat

import (
	"time"

	"segmentbook-service/internal/domain/auth"
)

type Chat struct {
	ID          string            `json:"id" db:"id"`
	RequestID   string            `json:"request_id,omitempty" db:"request_id"`
	CreatedAt   time.Time         `json:"created_at" db:"created_at"`
	Participant *auth.UserSummary `json:"participant,omitempty"`
	LastMessage *Message          `json:"last_message,omitempty"`
}

type Message struct {
	ID        string    `json:"id" db:"id"`
	ChatID    string    `json:"chat_id" db:"chat_id"`
	SenderID  string    `json:"sender_id" db:"sender_id"`
	Content   string    `json:"content" db:"content"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type SendMessageRequest struct {
	Content string `json:"content" binding:"required,max=2000"`
}
