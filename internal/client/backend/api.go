// internal/client/backend/api.go
package backend

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"segmentbook-service/internal/client/model"
)

// PageQuery is the pagination + status filter shared by list endpoints.
type PageQuery struct {
	Status   string
	Page     int
	PageSize int
}

func (q PageQuery) values() url.Values {
	v := url.Values{}
	if q.Status != "" {
		v.Set("status", q.Status)
	}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.PageSize > 0 {
		v.Set("page_size", strconv.Itoa(q.PageSize))
	}
	return v
}

// BookQuery filters the public book listing.
type BookQuery struct {
	Search    string
	Condition string
	Page      int
	PageSize  int
}

// CreateBookInput is the payload for listing a book.
type CreateBookInput struct {
	Title       string `json:"title"`
	Author      string `json:"author"`
	Description string `json:"description,omitempty"`
	Condition   string `json:"condition"`
	Language    string `json:"language"`
	CoverURL    string `json:"cover_url,omitempty"`
}

// UpdateBookInput changes the editable fields of a book.
type UpdateBookInput struct {
	Title       string `json:"title"`
	Author      string `json:"author"`
	Description string `json:"description"`
}

// UpdateProfileInput changes the editable fields of a profile.
type UpdateProfileInput struct {
	FullName  string `json:"full_name,omitempty"`
	Country   string `json:"country,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// AcceptResult is returned when a donor accepts a request.
type AcceptResult struct {
	RequestID string `json:"request_id"`
	ChatID    string `json:"chat_id"`
}

// ---- profile and donors ----

func (c *Client) Profile(ctx context.Context) (*model.Profile, error) {
	var p model.Profile
	if err := c.get(ctx, "/users/me", nil, &p); err != nil {
		return nil, err
	}
	if p.ID == "" {
		return nil, nil
	}
	return &p, nil
}

func (c *Client) UpdateProfile(ctx context.Context, in UpdateProfileInput) (*model.Profile, error) {
	var p model.Profile
	if err := c.mutate(ctx, http.MethodPut, "/users/me", in, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) Donors(ctx context.Context) ([]model.Donor, error) {
	var out []model.Donor
	err := c.get(ctx, "/donors", nil, &out)
	return out, err
}

func (c *Client) Donor(ctx context.Context, id string) (*model.Donor, error) {
	var d model.Donor
	if err := c.get(ctx, "/donors/"+url.PathEscape(id), nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// ---- books ----

func (c *Client) AvailableBooks(ctx context.Context, q BookQuery) (model.BookPage, error) {
	v := PageQuery{Page: q.Page, PageSize: q.PageSize}.values()
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.Condition != "" {
		v.Set("condition", q.Condition)
	}
	var out model.BookPage
	err := c.get(ctx, "/books", v, &out)
	return out, err
}

func (c *Client) Book(ctx context.Context, id string) (*model.Book, error) {
	var b model.Book
	if err := c.get(ctx, "/books/"+url.PathEscape(id), nil, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (c *Client) CreateBook(ctx context.Context, in CreateBookInput) (*model.Book, error) {
	var b model.Book
	if err := c.mutate(ctx, http.MethodPost, "/books", in, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (c *Client) UpdateBook(ctx context.Context, id string, in UpdateBookInput) (*model.Book, error) {
	var b model.Book
	if err := c.mutate(ctx, http.MethodPut, "/books/"+url.PathEscape(id), in, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// DonatedBooks lists the caller's own listings filtered by donated status.
func (c *Client) DonatedBooks(ctx context.Context, q PageQuery) (model.BookPage, error) {
	var out model.BookPage
	err := c.get(ctx, "/users/me/books", q.values(), &out)
	return out, err
}

func (c *Client) ListedNotDonated(ctx context.Context) ([]model.Book, error) {
	var out []model.Book
	err := c.get(ctx, "/users/me/books/listed", nil, &out)
	return out, err
}

func (c *Client) TotalDonations(ctx context.Context) (int, error) {
	var out struct {
		Total int `json:"total"`
	}
	err := c.get(ctx, "/users/me/donations/total", nil, &out)
	return out.Total, err
}

func (c *Client) BooksReceived(ctx context.Context) ([]model.ReceivedBook, error) {
	var out []model.ReceivedBook
	err := c.get(ctx, "/users/me/books/received", nil, &out)
	return out, err
}

// MarkDonated completes the request of recipientUsername for the book.
func (c *Client) MarkDonated(ctx context.Context, bookID, recipientUsername string) error {
	body := map[string]string{"recipient_username": recipientUsername}
	return c.mutate(ctx, http.MethodPost, "/books/"+url.PathEscape(bookID)+"/mark-donated", body, nil)
}

// ---- donation requests ----

func (c *Client) RequestBook(ctx context.Context, bookID string) (*model.DonationRequest, error) {
	var r model.DonationRequest
	if err := c.mutate(ctx, http.MethodPost, "/books/"+url.PathEscape(bookID)+"/requests", nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) UserRequests(ctx context.Context, q PageQuery) (model.RequestPage, error) {
	var out model.RequestPage
	err := c.get(ctx, "/requests", q.values(), &out)
	return out, err
}

func (c *Client) ActiveRequestsReceived(ctx context.Context) ([]model.ActiveRequest, error) {
	var out []model.ActiveRequest
	err := c.get(ctx, "/requests/active/received", nil, &out)
	return out, err
}

func (c *Client) ActiveRequestsSent(ctx context.Context) ([]model.ActiveRequest, error) {
	var out []model.ActiveRequest
	err := c.get(ctx, "/requests/active/sent", nil, &out)
	return out, err
}

func (c *Client) AcceptRequest(ctx context.Context, requestID string) (AcceptResult, error) {
	var out AcceptResult
	err := c.mutate(ctx, http.MethodPost, "/requests/"+url.PathEscape(requestID)+"/accept", nil, &out)
	return out, err
}

func (c *Client) RejectRequest(ctx context.Context, requestID string) error {
	return c.mutate(ctx, http.MethodPost, "/requests/"+url.PathEscape(requestID)+"/reject", nil, nil)
}

// ---- notifications ----

func (c *Client) Notifications(ctx context.Context, q PageQuery) (model.NotificationPage, error) {
	var out model.NotificationPage
	err := c.get(ctx, "/notifications", q.values(), &out)
	return out, err
}

func (c *Client) UnreadCount(ctx context.Context) (int, error) {
	var out struct {
		Count int `json:"count"`
	}
	err := c.get(ctx, "/notifications/unread-count", nil, &out)
	return out.Count, err
}

func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	return c.mutate(ctx, http.MethodPut, "/notifications/"+url.PathEscape(id)+"/read", nil, nil)
}

func (c *Client) MarkAllNotificationsRead(ctx context.Context) error {
	return c.mutate(ctx, http.MethodPut, "/notifications/read-all", nil, nil)
}

// ---- chats ----

func (c *Client) Chats(ctx context.Context) ([]model.Chat, error) {
	var out []model.Chat
	err := c.get(ctx, "/chats", nil, &out)
	return out, err
}

func (c *Client) ChatMessages(ctx context.Context, chatID string) ([]model.Message, error) {
	var out []model.Message
	err := c.get(ctx, "/chats/"+url.PathEscape(chatID)+"/messages", nil, &out)
	return out, err
}

func (c *Client) ChatParticipants(ctx context.Context, chatID string) ([]model.UserSummary, error) {
	var out []model.UserSummary
	err := c.get(ctx, "/chats/"+url.PathEscape(chatID)+"/participants", nil, &out)
	return out, err
}

func (c *Client) SendMessage(ctx context.Context, chatID, content string) (*model.Message, error) {
	var m model.Message
	body := map[string]string{"content": content}
	if err := c.mutate(ctx, http.MethodPost, "/chats/"+url.PathEscape(chatID)+"/messages", body, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
