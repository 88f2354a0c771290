// internal/client/model/model.go
package model

import "time"

// Profile is the users row for the signed-in account.
type Profile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Username  string    `json:"username"`
	Country   string    `json:"country"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// UserSummary is the embedded form of a user shown next to rows.
type UserSummary struct {
	ID        string `json:"id"`
	FullName  string `json:"full_name"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// Donor is a user with at least one listed book.
type Donor struct {
	UserSummary
	Country       string `json:"country"`
	DonationCount int    `json:"donation_count"`
	ListedCount   int    `json:"listed_count"`
}

// Book is a listed book.
type Book struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Author      string       `json:"author"`
	Description string       `json:"description,omitempty"`
	Condition   string       `json:"condition"`
	Language    string       `json:"language"`
	CoverURL    string       `json:"cover_url,omitempty"`
	OwnerID     string       `json:"owner_id"`
	IsDonated   bool         `json:"is_donated"`
	CreatedAt   time.Time    `json:"created_at"`
	Donor       *UserSummary `json:"donor,omitempty"`
}

// BookPage is one page of books plus the filtered total.
type BookPage struct {
	Books []Book `json:"books"`
	Total int    `json:"total"`
}

// ReceivedBook is a completed request on the requester side.
type ReceivedBook struct {
	RequestID string `json:"request_id"`
	Title     string `json:"title"`
	Author    string `json:"author"`
}

// ActiveRequest is a pending or accepted request, seen from either side.
type ActiveRequest struct {
	DonationRequestID string    `json:"donation_request_id"`
	BookTitle         string    `json:"book_title"`
	BookAuthor        string    `json:"book_author"`
	CounterpartyName  string    `json:"counterparty_name"`
	RequestDate       time.Time `json:"request_date"`
	Status            string    `json:"status"`
}

// DonationRequest is a requester asking a donor for a book.
type DonationRequest struct {
	ID          string       `json:"id"`
	BookID      string       `json:"book_id"`
	DonorID     string       `json:"donor_id"`
	RequesterID string       `json:"requester_id"`
	Status      string       `json:"status"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	Book        *Book        `json:"book,omitempty"`
	Donor       *UserSummary `json:"donor,omitempty"`
	Requester   *UserSummary `json:"requester,omitempty"`
}

// RequestPage is one page of requests plus the filtered total.
type RequestPage struct {
	Requests []DonationRequest `json:"requests"`
	Total    int               `json:"total"`
}

// Notification is addressed to ReceiverID.
type Notification struct {
	ID         string       `json:"id"`
	Title      string       `json:"title"`
	Content    string       `json:"content"`
	Type       string       `json:"type"`
	IsRead     bool         `json:"is_read"`
	SenderID   string       `json:"sender_id,omitempty"`
	ReceiverID string       `json:"receiver_id"`
	RequestID  string       `json:"request_id,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
	Sender     *UserSummary `json:"sender,omitempty"`
}

// NotificationPage is one page of notifications plus the filtered total.
type NotificationPage struct {
	Notifications []Notification `json:"notifications"`
	Total         int            `json:"total"`
}

// Chat is a conversation between a donor and a requester.
type Chat struct {
	ID          string       `json:"id"`
	RequestID   string       `json:"request_id,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	Participant *UserSummary `json:"participant,omitempty"`
	LastMessage *Message     `json:"last_message,omitempty"`
}

// Message is one chat message.
type Message struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chat_id"`
	SenderID  string    `json:"sender_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Book conditions accepted by the backend.
var Conditions = []string{"like_new", "excellent", "good", "fair", "acceptable"}

// Request statuses.
const (
	RequestPending   = "PENDING"
	RequestAccepted  = "ACCEPTED"
	RequestRejected  = "REJECTED"
	RequestCompleted = "COMPLETED"
)
