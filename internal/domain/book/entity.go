// internal/domain/book/entity.go
package book

import (
	"time"

	"segmentbook-service/internal/domain/auth"
	"segmentbook-service/internal/pkg/pagination"
)

// Conditions accepted for a listing.
var Conditions = []string{"like_new", "excellent", "good", "fair", "acceptable"}

type Book struct {
	ID          string            `json:"id" db:"id"`
	Title       string            `json:"title" db:"title"`
	Author      string            `json:"author" db:"author"`
	Description string            `json:"description,omitempty" db:"description"`
	Condition   string            `json:"condition" db:"condition"`
	Language    string            `json:"language" db:"language"`
	CoverURL    string            `json:"cover_url,omitempty" db:"cover_url"`
	OwnerID     string            `json:"owner_id" db:"owner_id"`
	IsDonated   bool              `json:"is_donated" db:"is_donated"`
	CreatedAt   time.Time         `json:"created_at" db:"created_at"`
	Donor       *auth.UserSummary `json:"donor,omitempty"`
}

// ReceivedBook is a completed request seen by its requester.
type ReceivedBook struct {
	RequestID string `json:"request_id"`
	Title     string `json:"title"`
	Author    string `json:"author"`
}

// Ownership filters for the caller's own listings.
const (
	StatusAll        = "all"
	StatusDonated    = "donated"
	StatusNotDonated = "notDonated"
)

// DTOs

type CreateBookRequest struct {
	Title       string `json:"title" binding:"required,max=200"`
	Author      string `json:"author" binding:"required,max=200"`
	Description string `json:"description" binding:"max=2000"`
	Condition   string `json:"condition" binding:"required,oneof=like_new excellent good fair acceptable"`
	Language    string `json:"language" binding:"required,max=50"`
	CoverURL    string `json:"cover_url" binding:"omitempty,max=1024"`
}

type UpdateBookRequest struct {
	Title       string `json:"title" binding:"required,max=200"`
	Author      string `json:"author" binding:"required,max=200"`
	Description string `json:"description" binding:"max=2000"`
}

type MarkDonatedRequest struct {
	RecipientUsername string `json:"recipient_username" binding:"required,max=30,username"`
}

// ListFilters selects available (not donated) books.
type ListFilters struct {
	Search    string `form:"search"`
	Condition string `form:"condition" binding:"omitempty,oneof=like_new excellent good fair acceptable"`
	pagination.Params
}

// OwnFilters selects the caller's listings.
type OwnFilters struct {
	Status string `form:"status" binding:"omitempty,oneof=all donated notDonated"`
	pagination.Params
}

type BookPage struct {
	Books []Book `json:"books"`
	Total int    `json:"total"`
}
