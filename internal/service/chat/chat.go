// internal/service/chat/chat.go
package chat

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"segmentbook-service/internal/domain/auth"
	"segmentbook-service/internal/domain/chat"
	xerrors "segmentbook-service/internal/pkg/errors"
)

type Repository interface {
	ListForUser(ctx context.Context, userID string) ([]chat.Chat, error)
	IsParticipant(ctx context.Context, chatID, userID string) (bool, error)
	Messages(ctx context.Context, chatID string) ([]chat.Message, error)
	Participants(ctx context.Context, chatID string) ([]auth.UserSummary, error)
	CreateMessage(ctx context.Context, m *chat.Message) error
}

var errNotParticipant = xerrors.New(xerrors.ErrForbidden, "You are not a participant in this chat")

// ChatService gates every chat read and write on membership.
type ChatService struct {
	repo   Repository
	logger *zap.Logger
}

func NewChatService(repo Repository, logger *zap.Logger) *ChatService {
	return &ChatService{repo: repo, logger: logger}
}

func (s *ChatService) List(ctx context.Context, userID string) ([]chat.Chat, error) {
	return s.repo.ListForUser(ctx, userID)
}

// IsParticipant also backs realtime subscription checks.
func (s *ChatService) IsParticipant(ctx context.Context, chatID, userID string) (bool, error) {
	return s.repo.IsParticipant(ctx, chatID, userID)
}

func (s *ChatService) requireMember(ctx context.Context, chatID, userID string) error {
	ok, err := s.repo.IsParticipant(ctx, chatID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return errNotParticipant
	}
	return nil
}

func (s *ChatService) Messages(ctx context.Context, userID, chatID string) ([]chat.Message, error) {
	if err := s.requireMember(ctx, chatID, userID); err != nil {
		return nil, err
	}
	return s.repo.Messages(ctx, chatID)
}

func (s *ChatService) Participants(ctx context.Context, userID, chatID string) ([]auth.UserSummary, error) {
	if err := s.requireMember(ctx, chatID, userID); err != nil {
		return nil, err
	}
	return s.repo.Participants(ctx, chatID)
}

func (s *ChatService) Send(ctx context.Context, userID, chatID string, req *chat.SendMessageRequest) (*chat.Message, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, xerrors.New(xerrors.ErrInvalidInput, "Message cannot be empty")
	}
	if err := s.requireMember(ctx, chatID, userID); err != nil {
		return nil, err
	}

	m := &chat.Message{ChatID: chatID, SenderID: userID, Content: content}
	if err := s.repo.CreateMessage(ctx, m); err != nil {
		return nil, err
	}
	s.logger.Debug("message sent", zap.String("chat_id", chatID), zap.String("message_id", m.ID))
	return m, nil
}
