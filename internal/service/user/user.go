// internal/service/user/user.go
package user

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"segmentbook-service/internal/domain/auth"
)

type Repository interface {
	FindUserByID(ctx context.Context, id string) (*auth.User, error)
	UpdateProfile(ctx context.Context, id string, req *auth.UpdateProfileRequest) (*auth.User, error)
	ListDonors(ctx context.Context) ([]auth.Donor, error)
	FindDonor(ctx context.Context, id string) (*auth.Donor, error)
}

// UserService serves profiles and the donor directory.
type UserService struct {
	repo   Repository
	logger *zap.Logger
}

func NewUserService(repo Repository, logger *zap.Logger) *UserService {
	return &UserService{repo: repo, logger: logger}
}

func (s *UserService) GetProfile(ctx context.Context, userID string) (*auth.Profile, error) {
	u, err := s.repo.FindUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return u.Profile(), nil
}

func (s *UserService) UpdateProfile(ctx context.Context, userID string, req *auth.UpdateProfileRequest) (*auth.Profile, error) {
	req.FullName = strings.TrimSpace(req.FullName)
	req.Country = strings.TrimSpace(req.Country)
	u, err := s.repo.UpdateProfile(ctx, userID, req)
	if err != nil {
		return nil, err
	}
	s.logger.Info("profile updated", zap.String("user_id", userID))
	return u.Profile(), nil
}

func (s *UserService) ListDonors(ctx context.Context) ([]auth.Donor, error) {
	return s.repo.ListDonors(ctx)
}

func (s *UserService) GetDonor(ctx context.Context, id string) (*auth.Donor, error) {
	return s.repo.FindDonor(ctx, id)
}
