// internal/websocket/authorize.go
package websocket

import (
	"context"
	"fmt"

	wstypes "segmentbook-service/internal/domain/websocket"
)

// ChatMembership answers whether a user may read a chat.
type ChatMembership interface {
	IsParticipant(ctx context.Context, chatID, userID string) (bool, error)
}

// subscription is one accepted subscribe request.
type subscription struct {
	id     string
	req    wstypes.SubscribeRequest
	filter wstypes.Filter
}

func (s *subscription) wants(ev wstypes.ChangeEvent, row map[string]any) bool {
	if s.req.Table != ev.Table {
		return false
	}
	if s.req.Event != wstypes.RowAny && s.req.Event != ev.Event {
		return false
	}
	return s.filter.Matches(row)
}

// authorize validates req for userID. Every subscription must be filtered on
// a column that ties the rows to the user.
func authorize(ctx context.Context, chats ChatMembership, userID, id string, req wstypes.SubscribeRequest) (*subscription, error) {
	f, err := wstypes.ParseFilter(req.Filter)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
	}
	switch req.Event {
	case "":
		req.Event = wstypes.RowAny
	case wstypes.RowAny, wstypes.RowInsert, wstypes.RowUpdate:
	default:
		return nil, fmt.Errorf("%w: unsupported event %q", ErrInvalidFilter, req.Event)
	}

	switch req.Table {
	case wstypes.TableNotifications:
		if f.Column != "receiver_id" || f.Value != userID {
			return nil, fmt.Errorf("%w: notifications are readable by their receiver only", ErrForbidden)
		}

	case wstypes.TableDonationRequests:
		if (f.Column != "donor_id" && f.Column != "requester_id") || f.Value != userID {
			return nil, fmt.Errorf("%w: requests are readable by their donor or requester only", ErrForbidden)
		}

	case wstypes.TableMessages:
		if f.Column != "chat_id" {
			return nil, fmt.Errorf("%w: messages must be filtered by chat_id", ErrForbidden)
		}
		ok, err := chats.IsParticipant(ctx, f.Value, userID)
		if err != nil {
			return nil, fmt.Errorf("check chat membership: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: not a participant in this chat", ErrForbidden)
		}

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, req.Table)
	}

	return &subscription{id: id, req: req, filter: f}, nil
}
