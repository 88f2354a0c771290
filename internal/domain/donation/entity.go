// internal/domain/donation/entity.go
package donation

import (
	"time"

	"segmentbook-service/internal/domain/auth"
	"segmentbook-service/internal/domain/book"
	"segmentbook-service/internal/pkg/pagination"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusAccepted  Status = "ACCEPTED"
	StatusRejected  Status = "REJECTED"
	StatusCompleted Status = "COMPLETED"
)

type Request struct {
	ID          string            `json:"id" db:"id"`
	BookID      string            `json:"book_id" db:"book_id"`
	DonorID     string            `json:"donor_id" db:"donor_id"`
	RequesterID string            `json:"requester_id" db:"requester_id"`
	Status      Status            `json:"status" db:"status"`
	CreatedAt   time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at" db:"updated_at"`
	Book        *book.Book        `json:"book,omitempty"`
	Donor       *auth.UserSummary `json:"donor,omitempty"`
	Requester   *auth.UserSummary `json:"requester,omitempty"`
}

// ActiveRequest is a pending or accepted request, named from the caller's side.
type ActiveRequest struct {
	DonationRequestID string    `json:"donation_request_id"`
	BookTitle         string    `json:"book_title"`
	BookAuthor        string    `json:"book_author"`
	CounterpartyName  string    `json:"counterparty_name"`
	RequestDate       time.Time `json:"request_date"`
	Status            Status    `json:"status"`
}

// Filters for the caller's sent requests.
const (
	FilterAll      = "all"
	FilterAccepted = "accepted"
	FilterDeclined = "declined"
)

type ListFilters struct {
	Status string `form:"status" binding:"omitempty,oneof=all accepted declined"`
	pagination.Params
}

type RequestPage struct {
	Requests []Request `json:"requests"`
	Total    int       `json:"total"`
}

// AcceptResult is returned once a request is accepted and its chat exists.
type AcceptResult struct {
	RequestID string `json:"request_id"`
	ChatID    string `json:"chat_id"`
}
