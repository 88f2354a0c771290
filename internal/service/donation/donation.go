// internal/service/donation/donation.go
package donation

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"segmentbook-service/internal/domain/donation"
)

type Repository interface {
	RequestBook(ctx context.Context, bookID, requesterID string) (*donation.Request, error)
	MarkDonated(ctx context.Context, bookID, donorID, recipientUsername string) error
	Accept(ctx context.Context, requestID, donorID string) (*donation.AcceptResult, error)
	Reject(ctx context.Context, requestID, donorID string) error
	ActiveReceived(ctx context.Context, donorID string) ([]donation.ActiveRequest, error)
	ActiveSent(ctx context.Context, requesterID string) ([]donation.ActiveRequest, error)
	ListByRequester(ctx context.Context, requesterID string, f *donation.ListFilters) (*donation.RequestPage, error)
}

// DonationService runs the request lifecycle:
// PENDING -> ACCEPTED | REJECTED, and PENDING/ACCEPTED -> COMPLETED on donation.
type DonationService struct {
	repo   Repository
	logger *zap.Logger
}

func NewDonationService(repo Repository, logger *zap.Logger) *DonationService {
	return &DonationService{repo: repo, logger: logger}
}

func (s *DonationService) RequestBook(ctx context.Context, requesterID, bookID string) (*donation.Request, error) {
	req, err := s.repo.RequestBook(ctx, bookID, requesterID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("book requested",
		zap.String("request_id", req.ID),
		zap.String("book_id", bookID),
		zap.String("requester_id", requesterID),
	)
	return req, nil
}

// MarkDonated accepts the username with or without a leading "@".
func (s *DonationService) MarkDonated(ctx context.Context, donorID, bookID, recipientUsername string) error {
	username := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(recipientUsername), "@"))
	if err := s.repo.MarkDonated(ctx, bookID, donorID, username); err != nil {
		return err
	}
	s.logger.Info("book donated",
		zap.String("book_id", bookID),
		zap.String("donor_id", donorID),
		zap.String("recipient", username),
	)
	return nil
}

func (s *DonationService) Accept(ctx context.Context, donorID, requestID string) (*donation.AcceptResult, error) {
	res, err := s.repo.Accept(ctx, requestID, donorID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("request accepted", zap.String("request_id", requestID), zap.String("chat_id", res.ChatID))
	return res, nil
}

func (s *DonationService) Reject(ctx context.Context, donorID, requestID string) error {
	if err := s.repo.Reject(ctx, requestID, donorID); err != nil {
		return err
	}
	s.logger.Info("request rejected", zap.String("request_id", requestID))
	return nil
}

func (s *DonationService) ActiveReceived(ctx context.Context, userID string) ([]donation.ActiveRequest, error) {
	return s.repo.ActiveReceived(ctx, userID)
}

func (s *DonationService) ActiveSent(ctx context.Context, userID string) ([]donation.ActiveRequest, error) {
	return s.repo.ActiveSent(ctx, userID)
}

func (s *DonationService) ListMine(ctx context.Context, userID string, f *donation.ListFilters) (*donation.RequestPage, error) {
	f.Params = f.Params.Normalize()
	if f.Status == "" {
		f.Status = donation.FilterAll
	}
	return s.repo.ListByRequester(ctx, userID, f)
}
