// internal/repository/postgres/chat_repo.go
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"segmentbook-service/internal/domain/auth"
	"segmentbook-service/internal/domain/chat"
)

type ChatRepository struct {
	db *pgxpool.Pool
}

func NewChatRepository(db *pgxpool.Pool) *ChatRepository {
	return &ChatRepository{db: db}
}

// ListForUser returns userID's chats with the other participant and the
// latest message, most recently active first.
func (r *ChatRepository) ListForUser(ctx context.Context, userID string) ([]chat.Chat, error) {
	query := `
		SELECT c.id, COALESCE(c.request_id::text, ''), c.created_at,
		       COALESCE(o.id::text, ''), COALESCE(o.full_name, ''), COALESCE(o.username, ''), COALESCE(o.avatar_url, ''),
		       COALESCE(m.id::text, ''), COALESCE(m.sender_id::text, ''), COALESCE(m.content, ''), m.created_at
		FROM chats c
		JOIN chat_participants me ON me.chat_id = c.id AND me.user_id = $1
		LEFT JOIN LATERAL (
			SELECT u.id, u.full_name, u.username, u.avatar_url
			FROM chat_participants p JOIN users u ON u.id = p.user_id
			WHERE p.chat_id = c.id AND p.user_id <> $1
			LIMIT 1
		) o ON true
		LEFT JOIN LATERAL (
			SELECT id, sender_id, content, created_at
			FROM messages WHERE chat_id = c.id
			ORDER BY created_at DESC LIMIT 1
		) m ON true
		ORDER BY COALESCE(m.created_at, c.created_at) DESC
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}
	defer rows.Close()

	chats := []chat.Chat{}
	for rows.Next() {
		var (
			c                          chat.Chat
			oID, oName, oUser, oAvatar string
			mID, mSender, mContent     string
			mAt                        *time.Time
		)
		if err := rows.Scan(&c.ID, &c.RequestID, &c.CreatedAt, &oID, &oName, &oUser, &oAvatar,
			&mID, &mSender, &mContent, &mAt); err != nil {
			return nil, fmt.Errorf("failed to scan chat: %w", err)
		}
		c.Participant = summary(oID, oName, oUser, oAvatar)
		if mID != "" && mAt != nil {
			c.LastMessage = &chat.Message{ID: mID, ChatID: c.ID, SenderID: mSender, Content: mContent, CreatedAt: *mAt}
		}
		chats = append(chats, c)
	}
	return chats, rows.Err()
}

// IsParticipant reports whether userID belongs to chatID.
func (r *ChatRepository) IsParticipant(ctx context.Context, chatID, userID string) (bool, error) {
	var ok bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM chat_participants WHERE chat_id = $1 AND user_id = $2)`,
		chatID, userID,
	).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("failed to check chat membership: %w", err)
	}
	return ok, nil
}

// Messages returns chatID's messages, oldest first.
func (r *ChatRepository) Messages(ctx context.Context, chatID string) ([]chat.Message, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, chat_id, sender_id, content, created_at FROM messages WHERE chat_id = $1 ORDER BY created_at, id`,
		chatID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	msgs := []chat.Message{}
	for rows.Next() {
		var m chat.Message
		if err := rows.Scan(&m.ID, &m.ChatID, &m.SenderID, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (r *ChatRepository) Participants(ctx context.Context, chatID string) ([]auth.UserSummary, error) {
	query := `
		SELECT u.id, u.full_name, u.username, u.avatar_url
		FROM chat_participants p JOIN users u ON u.id = p.user_id
		WHERE p.chat_id = $1
		ORDER BY u.full_name
	`
	rows, err := r.db.Query(ctx, query, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	defer rows.Close()

	out := []auth.UserSummary{}
	for rows.Next() {
		var u auth.UserSummary
		if err := rows.Scan(&u.ID, &u.FullName, &u.Username, &u.AvatarURL); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// CreateMessage inserts m and fills its id and timestamp.
func (r *ChatRepository) CreateMessage(ctx context.Context, m *chat.Message) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO messages (chat_id, sender_id, content) VALUES ($1, $2, $3) RETURNING id, created_at`,
		m.ChatID, m.SenderID, m.Content,
	).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}
