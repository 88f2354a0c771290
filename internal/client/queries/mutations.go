// internal/client/queries/mutations.go
package queries

import (
	"context"
	"io"
	"path"

	"github.com/google/uuid"

	"segmentbook-service/internal/client/backend"
	"segmentbook-service/internal/client/model"
	qc "segmentbook-service/internal/pkg/querycache"
)

// Invalidation groups. Each is the set of reads a write can make stale.

func MarkDonatedKeys(userID string) []qc.Key {
	return []qc.Key{
		qc.K(OpUserDonatedBooks, userID),
		qc.K(OpTotalDonations, userID),
		qc.K(OpListedNotDonated, userID),
		qc.K(OpBookFilters),
	}
}

func AcceptRequestKeys(userID string) []qc.Key {
	return []qc.Key{
		qc.K(OpUserNotifications, userID),
		qc.K(OpUserRequests, userID),
		qc.K(OpActiveRequestsReceived, userID),
		qc.K(OpActiveRequestsSent, userID),
		qc.K(OpUserChats, userID),
	}
}

func RequestChangedKeys(userID string) []qc.Key {
	return []qc.Key{
		qc.K(OpUserRequests, userID),
		qc.K(OpActiveRequestsReceived, userID),
		qc.K(OpActiveRequestsSent, userID),
		qc.K(OpBooksReceived, userID),
	}
}

func EditBookKeys(userID, bookID string) []qc.Key {
	return []qc.Key{
		qc.K(OpUserDonatedBooks, userID),
		BookByIDKey(bookID),
	}
}

func NotificationKeys(userID string) []qc.Key {
	return []qc.Key{
		qc.K(OpUserNotifications, userID),
		qc.K(OpUnreadCount, userID),
	}
}

// Mutations binds the write operations to a cache.
type Mutations struct {
	api   *backend.Client
	cache *qc.Cache
}

func NewMutations(api *backend.Client, cache *qc.Cache) *Mutations {
	return &Mutations{api: api, cache: cache}
}

// MarkDonated hands bookID to recipientUsername.
func (m *Mutations) MarkDonated(ctx context.Context, userID, bookID, recipientUsername string) error {
	return m.cache.Mutate(ctx, qc.Mutation{
		Optimistic: []qc.Patch{
			qc.PatchOf(qc.K(OpListedNotDonated, userID), func(old []model.Book) []model.Book {
				return RemoveBook(old, bookID)
			}),
		},
		Do: func(ctx context.Context) error {
			return m.api.MarkDonated(ctx, bookID, recipientUsername)
		},
		Invalidate: MarkDonatedKeys(userID),
	})
}

// AcceptRequest accepts a pending request and returns the new chat id.
func (m *Mutations) AcceptRequest(ctx context.Context, userID, requestID string) (string, error) {
	var res backend.AcceptResult
	err := m.cache.Mutate(ctx, qc.Mutation{
		Optimistic: []qc.Patch{
			qc.PatchOf(qc.K(OpActiveRequestsReceived, userID), func(old []model.ActiveRequest) []model.ActiveRequest {
				return SetRequestStatus(old, requestID, model.RequestAccepted)
			}),
		},
		Do: func(ctx context.Context) error {
			var err error
			res, err = m.api.AcceptRequest(ctx, requestID)
			return err
		},
		Invalidate: AcceptRequestKeys(userID),
	})
	return res.ChatID, err
}

func (m *Mutations) RejectRequest(ctx context.Context, userID, requestID string) error {
	return m.cache.Mutate(ctx, qc.Mutation{
		Optimistic: []qc.Patch{
			qc.PatchOf(qc.K(OpActiveRequestsReceived, userID), func(old []model.ActiveRequest) []model.ActiveRequest {
				return RemoveRequest(old, requestID)
			}),
		},
		Do: func(ctx context.Context) error {
			return m.api.RejectRequest(ctx, requestID)
		},
		Invalidate: RequestChangedKeys(userID),
	})
}

// RequestBook asks the donor of bookID for it.
func (m *Mutations) RequestBook(ctx context.Context, userID, bookID string) (*model.DonationRequest, error) {
	var req *model.DonationRequest
	err := m.cache.Mutate(ctx, qc.Mutation{
		Do: func(ctx context.Context) error {
			var err error
			req, err = m.api.RequestBook(ctx, bookID)
			return err
		},
		Invalidate: RequestChangedKeys(userID),
	})
	return req, err
}

// EditBook saves the editable fields of a listed book.
func (m *Mutations) EditBook(ctx context.Context, userID, bookID string, in backend.UpdateBookInput) error {
	return m.cache.Mutate(ctx, qc.Mutation{
		Optimistic: []qc.Patch{
			qc.PatchOf(BookByIDKey(bookID), func(old *model.Book) *model.Book {
				if old == nil {
					return nil
				}
				b := *old
				b.Title, b.Author, b.Description = in.Title, in.Author, in.Description
				return &b
			}),
		},
		Do: func(ctx context.Context) error {
			_, err := m.api.UpdateBook(ctx, bookID, in)
			return err
		},
		Invalidate: EditBookKeys(userID, bookID),
	})
}

// NewBook lists a book, uploading its cover first when one is given.
func (m *Mutations) NewBook(ctx context.Context, userID string, in backend.CreateBookInput, cover io.Reader, coverName string) (*model.Book, error) {
	var book *model.Book
	err := m.cache.Mutate(ctx, qc.Mutation{
		Do: func(ctx context.Context) error {
			if cover != nil {
				obj, err := m.api.StorageUpload(ctx, backend.BucketBookCovers, coverPath(userID, coverName), cover)
				if err != nil {
					return err
				}
				in.CoverURL = obj.URL
			}
			var err error
			book, err = m.api.CreateBook(ctx, in)
			return err
		},
		Invalidate: []qc.Key{
			qc.K(OpUserDonatedBooks, userID),
			qc.K(OpListedNotDonated, userID),
			qc.K(OpBookFilters),
		},
	})
	return book, err
}

func coverPath(userID, name string) string {
	return path.Join(userID, uuid.NewString()+path.Ext(name))
}

func (m *Mutations) MarkNotificationRead(ctx context.Context, userID, notificationID string) error {
	return m.cache.Mutate(ctx, qc.Mutation{
		Do: func(ctx context.Context) error {
			return m.api.MarkNotificationRead(ctx, notificationID)
		},
		Invalidate: NotificationKeys(userID),
	})
}

// ReadAll marks every notification read. The unread badge drops to zero at once.
func (m *Mutations) ReadAll(ctx context.Context, userID string) error {
	return m.cache.Mutate(ctx, qc.Mutation{
		Optimistic: []qc.Patch{
			qc.PatchOf(qc.K(OpUnreadCount, userID), func(int) int { return 0 }),
		},
		Do:         m.api.MarkAllNotificationsRead,
		Invalidate: NotificationKeys(userID),
	})
}

// SendMessage posts to a chat. The stored row is appended by id, so the
// realtime echo of the same insert is a no-op.
func (m *Mutations) SendMessage(ctx context.Context, userID, chatID, content string) (*model.Message, error) {
	var msg *model.Message
	err := m.cache.Mutate(ctx, qc.Mutation{
		Do: func(ctx context.Context) error {
			var err error
			msg, err = m.api.SendMessage(ctx, chatID, content)
			if err != nil {
				return err
			}
			qc.UpdateQueryData(m.cache, ChatMessagesKey(chatID), func(old []model.Message) []model.Message {
				return AppendMessage(old, *msg)
			})
			return nil
		},
		Invalidate: []qc.Key{qc.K(OpUserChats, userID)},
	})
	return msg, err
}

func (m *Mutations) UpdateProfile(ctx context.Context, userID string, in backend.UpdateProfileInput) (*model.Profile, error) {
	var p *model.Profile
	err := m.cache.Mutate(ctx, qc.Mutation{
		Do: func(ctx context.Context) error {
			var err error
			p, err = m.api.UpdateProfile(ctx, in)
			return err
		},
		Invalidate: []qc.Key{qc.K(OpProfile, userID), qc.K(OpAllDonors)},
	})
	return p, err
}
