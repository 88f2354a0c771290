// internal/client/queries/queries.go
package queries

import (
	"context"

	"segmentbook-service/internal/client/backend"
	"segmentbook-service/internal/client/model"
	"segmentbook-service/internal/client/params"
	qc "segmentbook-service/internal/pkg/querycache"
)

// Operation names. Every key starts with one of these.
const (
	OpTotalDonations         = "total-donations"
	OpBooksReceived          = "books-received"
	OpActiveRequestsReceived = "active-requests-received"
	OpActiveRequestsSent     = "active-requests-sent"
	OpListedNotDonated       = "listed-not-donated-books"
	OpUserDonatedBooks       = "user-donated-books"
	OpUserRequests           = "user-requests"
	OpUserNotifications      = "user-notifications"
	OpUnreadCount            = "unread-count"
	OpUserChats              = "user-chats"
	OpChatMessages           = "chat-messages"
	OpChatParticipants       = "chat-participants"
	OpBookFilters            = "book-filters"
	OpBookByID               = "book-by-id"
	OpAllDonors              = "all-donors"
	OpDonorByID              = "donor-by-id"
	OpProfile                = "profile"
)

// Catalog builds the typed queries the views read.
type Catalog struct {
	api *backend.Client
}

func NewCatalog(api *backend.Client) *Catalog {
	return &Catalog{api: api}
}

// API exposes the backend client for mutations.
func (c *Catalog) API() *backend.Client {
	return c.api
}

// ---- dashboard ----

func (c *Catalog) TotalDonations(userID string) qc.Query[int] {
	return qc.Query[int]{
		Key:   qc.K(OpTotalDonations, userID),
		Fetch: c.api.TotalDonations,
	}
}

func (c *Catalog) BooksReceived(userID string) qc.Query[[]model.ReceivedBook] {
	return qc.Query[[]model.ReceivedBook]{
		Key:   qc.K(OpBooksReceived, userID),
		Fetch: c.api.BooksReceived,
	}
}

func (c *Catalog) ActiveRequestsReceived(userID string) qc.Query[[]model.ActiveRequest] {
	return qc.Query[[]model.ActiveRequest]{
		Key:   qc.K(OpActiveRequestsReceived, userID),
		Fetch: c.api.ActiveRequestsReceived,
	}
}

func (c *Catalog) ActiveRequestsSent(userID string) qc.Query[[]model.ActiveRequest] {
	return qc.Query[[]model.ActiveRequest]{
		Key:   qc.K(OpActiveRequestsSent, userID),
		Fetch: c.api.ActiveRequestsSent,
	}
}

func (c *Catalog) ListedNotDonated(userID string) qc.Query[[]model.Book] {
	return qc.Query[[]model.Book]{
		Key:   qc.K(OpListedNotDonated, userID),
		Fetch: c.api.ListedNotDonated,
	}
}

// ---- paginated lists ----

func UserDonatedBooksKey(userID string, f params.DonationFilter) qc.Key {
	return qc.K(OpUserDonatedBooks, userID, f.Page, f.PageSize, f.Status)
}

func (c *Catalog) UserDonatedBooks(userID string, f params.DonationFilter) qc.Query[model.BookPage] {
	return qc.Query[model.BookPage]{
		Key: UserDonatedBooksKey(userID, f),
		Fetch: func(ctx context.Context) (model.BookPage, error) {
			return c.api.DonatedBooks(ctx, backend.PageQuery{Status: f.Status, Page: f.Page, PageSize: f.PageSize})
		},
	}
}

func UserRequestsKey(userID string, f params.RequestFilter) qc.Key {
	return qc.K(OpUserRequests, userID, f.Page, f.PageSize, f.Status)
}

func (c *Catalog) UserRequests(userID string, f params.RequestFilter) qc.Query[model.RequestPage] {
	return qc.Query[model.RequestPage]{
		Key: UserRequestsKey(userID, f),
		Fetch: func(ctx context.Context) (model.RequestPage, error) {
			return c.api.UserRequests(ctx, backend.PageQuery{Status: f.Status, Page: f.Page, PageSize: f.PageSize})
		},
	}
}

func UserNotificationsKey(userID string, f params.NotificationFilter) qc.Key {
	return qc.K(OpUserNotifications, userID, f.Page, f.PageSize, f.Status)
}

func (c *Catalog) UserNotifications(userID string, f params.NotificationFilter) qc.Query[model.NotificationPage] {
	return qc.Query[model.NotificationPage]{
		Key: UserNotificationsKey(userID, f),
		Fetch: func(ctx context.Context) (model.NotificationPage, error) {
			return c.api.Notifications(ctx, backend.PageQuery{Status: f.Status, Page: f.Page, PageSize: f.PageSize})
		},
	}
}

func (c *Catalog) UnreadCount(userID string) qc.Query[int] {
	return qc.Query[int]{
		Key:   qc.K(OpUnreadCount, userID),
		Fetch: c.api.UnreadCount,
	}
}

// ---- chats ----

func (c *Catalog) UserChats(userID string) qc.Query[[]model.Chat] {
	return qc.Query[[]model.Chat]{
		Key:   qc.K(OpUserChats, userID),
		Fetch: c.api.Chats,
	}
}

func ChatMessagesKey(chatID string) qc.Key {
	return qc.K(OpChatMessages, chatID)
}

func (c *Catalog) ChatMessages(chatID string) qc.Query[[]model.Message] {
	return qc.Query[[]model.Message]{
		Key: ChatMessagesKey(chatID),
		Fetch: func(ctx context.Context) ([]model.Message, error) {
			return c.api.ChatMessages(ctx, chatID)
		},
	}
}

func (c *Catalog) ChatParticipants(chatID string) qc.Query[[]model.UserSummary] {
	return qc.Query[[]model.UserSummary]{
		Key: qc.K(OpChatParticipants, chatID),
		Fetch: func(ctx context.Context) ([]model.UserSummary, error) {
			return c.api.ChatParticipants(ctx, chatID)
		},
	}
}

// ---- public ----

func (c *Catalog) BookFilters(f params.BookFilter) qc.Query[model.BookPage] {
	return qc.Query[model.BookPage]{
		Key: qc.K(OpBookFilters, f.Search, f.Condition, f.Page, f.PageSize),
		Fetch: func(ctx context.Context) (model.BookPage, error) {
			return c.api.AvailableBooks(ctx, backend.BookQuery{
				Search:    f.Search,
				Condition: f.Condition,
				Page:      f.Page,
				PageSize:  f.PageSize,
			})
		},
	}
}

func BookByIDKey(bookID string) qc.Key {
	return qc.K(OpBookByID, bookID)
}

func (c *Catalog) BookByID(bookID string) qc.Query[*model.Book] {
	return qc.Query[*model.Book]{
		Key: BookByIDKey(bookID),
		Fetch: func(ctx context.Context) (*model.Book, error) {
			return c.api.Book(ctx, bookID)
		},
	}
}

func (c *Catalog) AllDonors() qc.Query[[]model.Donor] {
	return qc.Query[[]model.Donor]{
		Key:   qc.K(OpAllDonors),
		Fetch: c.api.Donors,
	}
}

func (c *Catalog) DonorByID(donorID string) qc.Query[*model.Donor] {
	return qc.Query[*model.Donor]{
		Key: qc.K(OpDonorByID, donorID),
		Fetch: func(ctx context.Context) (*model.Donor, error) {
			return c.api.Donor(ctx, donorID)
		},
	}
}

func (c *Catalog) Profile(userID string) qc.Query[*model.Profile] {
	return qc.Query[*model.Profile]{
		Key:   qc.K(OpProfile, userID),
		Fetch: c.api.Profile,
	}
}
