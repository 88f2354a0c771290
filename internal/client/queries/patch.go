// internal/client/queries/patch.go
package queries

import (
	"encoding/json"
	"fmt"

	"segmentbook-service/internal/client/model"
	"segmentbook-service/internal/client/params"
	wstypes "segmentbook-service/internal/domain/websocket"
	qc "segmentbook-service/internal/pkg/querycache"
)

// Realtime delivery is at-least-once, so every patcher here checks the row id
// before inserting and leaves the cached value untouched on a repeat.

// AppendMessage adds m to the end of msgs unless a message with the same id
// is already present.
func AppendMessage(msgs []model.Message, m model.Message) []model.Message {
	for _, existing := range msgs {
		if existing.ID == m.ID {
			return msgs
		}
	}
	out := make([]model.Message, 0, len(msgs)+1)
	out = append(out, msgs...)
	return append(out, m)
}

// PrependNotification puts n at the top of a first page, trimming it to
// pageSize. Total grows only when n was not already on the page.
func PrependNotification(page model.NotificationPage, n model.Notification, pageSize int) model.NotificationPage {
	for _, existing := range page.Notifications {
		if existing.ID == n.ID {
			return page
		}
	}
	list := make([]model.Notification, 0, len(page.Notifications)+1)
	list = append(list, n)
	list = append(list, page.Notifications...)
	if pageSize > 0 && len(list) > pageSize {
		list = list[:pageSize]
	}
	return model.NotificationPage{Notifications: list, Total: page.Total + 1}
}

// SetRequestStatus updates one active request in place.
func SetRequestStatus(list []model.ActiveRequest, requestID, status string) []model.ActiveRequest {
	out := make([]model.ActiveRequest, len(list))
	copy(out, list)
	for i := range out {
		if out[i].DonationRequestID == requestID {
			out[i].Status = status
		}
	}
	return out
}

// RemoveRequest drops one active request.
func RemoveRequest(list []model.ActiveRequest, requestID string) []model.ActiveRequest {
	out := make([]model.ActiveRequest, 0, len(list))
	for _, r := range list {
		if r.DonationRequestID != requestID {
			out = append(out, r)
		}
	}
	return out
}

// RemoveBook drops one book by id.
func RemoveBook(list []model.Book, bookID string) []model.Book {
	out := make([]model.Book, 0, len(list))
	for _, b := range list {
		if b.ID != bookID {
			out = append(out, b)
		}
	}
	return out
}

func decodeRow[T any](d wstypes.ChangeData) (T, error) {
	var row T
	if len(d.New) == 0 {
		return row, fmt.Errorf("%s %s event has no row", d.Table, d.Event)
	}
	err := json.Unmarshal(d.New, &row)
	return row, err
}

// OnChatMessage returns the handler for message inserts on one chat thread.
// The row is spliced into the cached thread; the chat list is refetched for
// its last-message preview.
func OnChatMessage(cache *qc.Cache, chatID, userID string) func(wstypes.ChangeData) {
	key := ChatMessagesKey(chatID)
	return func(d wstypes.ChangeData) {
		m, err := decodeRow[model.Message](d)
		if err != nil || m.ChatID != chatID {
			cache.Invalidate(key)
			return
		}
		patched := qc.UpdateQueryData(cache, key, func(old []model.Message) []model.Message {
			return AppendMessage(old, m)
		})
		if !patched {
			cache.Invalidate(key)
		}
		cache.Invalidate(qc.K(OpUserChats, userID))
	}
}

// OnNotification returns the handler for notification inserts addressed to
// userID while f is the page on screen. Only first pages can be patched;
// anything else is refetched.
func OnNotification(cache *qc.Cache, userID string, f params.NotificationFilter) func(wstypes.ChangeData) {
	key := UserNotificationsKey(userID, f)
	return func(d wstypes.ChangeData) {
		defer cache.Invalidate(qc.K(OpUnreadCount, userID))

		n, err := decodeRow[model.Notification](d)
		if err != nil || n.ReceiverID != userID || f.Page != params.DefaultPage || d.Event != wstypes.RowInsert {
			cache.Invalidate(qc.K(OpUserNotifications, userID))
			return
		}
		patched := qc.UpdateQueryData(cache, key, func(old model.NotificationPage) model.NotificationPage {
			return PrependNotification(old, n, f.PageSize)
		})
		if !patched {
			cache.Invalidate(key)
		}
	}
}

// OnDonationRequest returns the handler for request changes involving userID.
// Active-request rows are joined views, so they are refetched rather than patched.
func OnDonationRequest(cache *qc.Cache, userID string) func(wstypes.ChangeData) {
	return func(wstypes.ChangeData) {
		for _, k := range RequestChangedKeys(userID) {
			cache.Invalidate(k)
		}
	}
}
