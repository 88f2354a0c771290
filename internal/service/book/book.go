// internal/service/book/book.go
package book

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"segmentbook-service/internal/domain/book"
	xerrors "segmentbook-service/internal/pkg/errors"
)

type Repository interface {
	Create(ctx context.Context, b *book.Book) error
	Update(ctx context.Context, id, ownerID string, req *book.UpdateBookRequest) error
	FindByID(ctx context.Context, id string) (*book.Book, error)
	ListAvailable(ctx context.Context, f *book.ListFilters) (*book.BookPage, error)
	ListByOwner(ctx context.Context, ownerID string, f *book.OwnFilters) (*book.BookPage, error)
	ListedNotDonated(ctx context.Context, ownerID string) ([]book.Book, error)
	CountDonated(ctx context.Context, ownerID string) (int, error)
	ListReceived(ctx context.Context, requesterID string) ([]book.ReceivedBook, error)
}

type BookService struct {
	repo   Repository
	logger *zap.Logger
}

func NewBookService(repo Repository, logger *zap.Logger) *BookService {
	return &BookService{repo: repo, logger: logger}
}

// Create lists a new book owned by ownerID.
func (s *BookService) Create(ctx context.Context, ownerID string, req *book.CreateBookRequest) (*book.Book, error) {
	b := &book.Book{
		OwnerID:     ownerID,
		Title:       strings.TrimSpace(req.Title),
		Author:      strings.TrimSpace(req.Author),
		Description: strings.TrimSpace(req.Description),
		Condition:   req.Condition,
		Language:    strings.TrimSpace(req.Language),
		CoverURL:    req.CoverURL,
	}
	if b.Title == "" || b.Author == "" {
		return nil, xerrors.New(xerrors.ErrInvalidInput, "Title and author are required")
	}
	if err := s.repo.Create(ctx, b); err != nil {
		return nil, err
	}
	s.logger.Info("book listed", zap.String("book_id", b.ID), zap.String("owner_id", ownerID))
	return s.repo.FindByID(ctx, b.ID)
}

// Update edits a book; only its owner may do so, and not after donation.
func (s *BookService) Update(ctx context.Context, ownerID, id string, req *book.UpdateBookRequest) (*book.Book, error) {
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.OwnerID != ownerID {
		return nil, xerrors.New(xerrors.ErrForbidden, "You can only edit your own books")
	}
	if existing.IsDonated {
		return nil, xerrors.New(xerrors.ErrConflict, "Donated books can no longer be edited")
	}

	req.Title = strings.TrimSpace(req.Title)
	req.Author = strings.TrimSpace(req.Author)
	req.Description = strings.TrimSpace(req.Description)
	if req.Title == "" || req.Author == "" {
		return nil, xerrors.New(xerrors.ErrInvalidInput, "Title and author are required")
	}
	if err := s.repo.Update(ctx, id, ownerID, req); err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, id)
}

func (s *BookService) Get(ctx context.Context, id string) (*book.Book, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *BookService) ListAvailable(ctx context.Context, f *book.ListFilters) (*book.BookPage, error) {
	f.Params = f.Params.Normalize()
	return s.repo.ListAvailable(ctx, f)
}

func (s *BookService) ListOwn(ctx context.Context, ownerID string, f *book.OwnFilters) (*book.BookPage, error) {
	f.Params = f.Params.Normalize()
	if f.Status == "" {
		f.Status = book.StatusAll
	}
	return s.repo.ListByOwner(ctx, ownerID, f)
}

func (s *BookService) ListedNotDonated(ctx context.Context, ownerID string) ([]book.Book, error) {
	return s.repo.ListedNotDonated(ctx, ownerID)
}

func (s *BookService) TotalDonated(ctx context.Context, ownerID string) (int, error) {
	return s.repo.CountDonated(ctx, ownerID)
}

func (s *BookService) Received(ctx context.Context, userID string) ([]book.ReceivedBook, error) {
	return s.repo.ListReceived(ctx, userID)
}
