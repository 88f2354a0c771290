// internal/handlers/book/book_handler.go
package book

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"segmentbook-service/internal/domain/book"
	"segmentbook-service/internal/middleware"
	"segmentbook-service/internal/pkg/response"
)

type Service interface {
	Create(ctx context.Context, ownerID string, req *book.CreateBookRequest) (*book.Book, error)
	Update(ctx context.Context, ownerID, id string, req *book.UpdateBookRequest) (*book.Book, error)
	Get(ctx context.Context, id string) (*book.Book, error)
	ListAvailable(ctx context.Context, f *book.ListFilters) (*book.BookPage, error)
	ListOwn(ctx context.Context, ownerID string, f *book.OwnFilters) (*book.BookPage, error)
	ListedNotDonated(ctx context.Context, ownerID string) ([]book.Book, error)
	TotalDonated(ctx context.Context, ownerID string) (int, error)
	Received(ctx context.Context, userID string) ([]book.ReceivedBook, error)
}

// Donor marks books as given away.
type Donor interface {
	MarkDonated(ctx context.Context, donorID, bookID, recipientUsername string) error
}

type BookHandler struct {
	books Service
	donor Donor
}

func NewBookHandler(books Service, donor Donor) *BookHandler {
	return &BookHandler{books: books, donor: donor}
}

// ListAvailable GET /books
func (h *BookHandler) ListAvailable(c *gin.Context) {
	var f book.ListFilters
	if err := c.ShouldBindQuery(&f); err != nil {
		response.BindError(c, err)
		return
	}
	page, err := h.books.ListAvailable(c.Request.Context(), &f)
	if err != nil {
		response.FromError(c, "failed to list books", err)
		return
	}
	response.Success(c, http.StatusOK, "books retrieved", page)
}

// Get GET /books/:id
func (h *BookHandler) Get(c *gin.Context) {
	id, ok := middleware.ParamUUID(c, "id")
	if !ok {
		return
	}
	b, err := h.books.Get(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, "failed to load book", err)
		return
	}
	response.Success(c, http.StatusOK, "book retrieved", b)
}

// Create POST /books
func (h *BookHandler) Create(c *gin.Context) {
	var req book.CreateBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	b, err := h.books.Create(c.Request.Context(), middleware.MustGetUserID(c), &req)
	if err != nil {
		response.FromError(c, "failed to list book", err)
		return
	}
	response.Success(c, http.StatusCreated, "book listed", b)
}

// Update PUT /books/:id
func (h *BookHandler) Update(c *gin.Context) {
	id, ok := middleware.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req book.UpdateBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	b, err := h.books.Update(c.Request.Context(), middleware.MustGetUserID(c), id, &req)
	if err != nil {
		response.FromError(c, "failed to update book", err)
		return
	}
	response.Success(c, http.StatusOK, "book updated", b)
}

// MarkDonated POST /books/:id/mark-donated
func (h *BookHandler) MarkDonated(c *gin.Context) {
	id, ok := middleware.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req book.MarkDonatedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	if err := h.donor.MarkDonated(c.Request.Context(), middleware.MustGetUserID(c), id, req.RecipientUsername); err != nil {
		response.FromError(c, "failed to mark book as donated", err)
		return
	}
	response.Success(c, http.StatusOK, "book marked as donated", nil)
}

// ListOwn GET /users/me/books
func (h *BookHandler) ListOwn(c *gin.Context) {
	var f book.OwnFilters
	if err := c.ShouldBindQuery(&f); err != nil {
		response.BindError(c, err)
		return
	}
	page, err := h.books.ListOwn(c.Request.Context(), middleware.MustGetUserID(c), &f)
	if err != nil {
		response.FromError(c, "failed to list your books", err)
		return
	}
	response.Success(c, http.StatusOK, "books retrieved", page)
}

// ListedNotDonated GET /users/me/books/listed
func (h *BookHandler) ListedNotDonated(c *gin.Context) {
	books, err := h.books.ListedNotDonated(c.Request.Context(), middleware.MustGetUserID(c))
	if err != nil {
		response.FromError(c, "failed to list your books", err)
		return
	}
	response.Success(c, http.StatusOK, "books retrieved", books)
}

// TotalDonated GET /users/me/donations/total
func (h *BookHandler) TotalDonated(c *gin.Context) {
	total, err := h.books.TotalDonated(c.Request.Context(), middleware.MustGetUserID(c))
	if err != nil {
		response.FromError(c, "failed to count donations", err)
		return
	}
	response.Success(c, http.StatusOK, "donation total retrieved", gin.H{"total": total})
}

// Received GET /users/me/books/received
func (h *BookHandler) Received(c *gin.Context) {
	books, err := h.books.Received(c.Request.Context(), middleware.MustGetUserID(c))
	if err != nil {
		response.FromError(c, "failed to list received books", err)
		return
	}
	response.Success(c, http.StatusOK, "received books retrieved", books)
}
