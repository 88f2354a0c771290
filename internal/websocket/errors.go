// internal/websocket/errors.go
package websocket

import "errors"

var (
	ErrHubClosed     = errors.New("hub closed")
	ErrInvalidFilter = errors.New("invalid filter")
	ErrUnknownTable  = errors.New("table is not available for realtime")
	ErrForbidden     = errors.New("subscription not allowed")
)

// Error codes sent to clients in ErrorData.Code.
const (
	CodeInvalidMessage = "INVALID_MESSAGE"
	CodeInvalidFilter  = "INVALID_FILTER"
	CodeUnknownTable   = "UNKNOWN_TABLE"
	CodeForbidden      = "FORBIDDEN"
	CodeInternal       = "INTERNAL"
)

func errorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidFilter):
		return CodeInvalidFilter
	case errors.Is(err, ErrUnknownTable):
		return CodeUnknownTable
	case errors.Is(err, ErrForbidden):
		return CodeForbidden
	default:
		return CodeInternal
	}
}
