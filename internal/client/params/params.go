// internal/client/params/params.go
package params

import (
	"net/url"
	"strconv"
	"strings"

	"segmentbook-service/internal/client/model"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 10
	MaxPageSize     = 100

	StatusAll        = "all"
	StatusDonated    = "donated"
	StatusNotDonated = "notDonated"
	StatusUnread     = "unread"
	StatusAccepted   = "accepted"
	StatusDeclined   = "declined"
)

// Pagination is a validated page/pageSize pair.
type Pagination struct {
	Page     int
	PageSize int
}

// Offset is the zero-based row offset of the page.
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.PageSize
}

func (p Pagination) encode(v url.Values) {
	v.Set("page", strconv.Itoa(p.Page))
	v.Set("pageSize", strconv.Itoa(p.PageSize))
}

// TotalPages is ceil(total/pageSize), never less than 1.
func TotalPages(total, pageSize int) int {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	pages := (total + pageSize - 1) / pageSize
	if pages < 1 {
		return 1
	}
	return pages
}

// ParsePagination reads page and pageSize, falling back on anything invalid.
func ParsePagination(v url.Values) Pagination {
	return Pagination{
		Page:     positive(v.Get("page"), DefaultPage, 0),
		PageSize: positive(v.Get("pageSize"), DefaultPageSize, MaxPageSize),
	}
}

// DonationFilter drives /donations.
type DonationFilter struct {
	Status string
	Pagination
}

func ParseDonationFilter(v url.Values) DonationFilter {
	return DonationFilter{
		Status:     oneOf(v.Get("status"), StatusAll, StatusAll, StatusDonated, StatusNotDonated),
		Pagination: ParsePagination(v),
	}
}

func (f DonationFilter) Encode() url.Values {
	v := url.Values{}
	v.Set("status", f.Status)
	f.Pagination.encode(v)
	return v
}

// NotificationFilter drives /notifications.
type NotificationFilter struct {
	Status string
	Pagination
}

func ParseNotificationFilter(v url.Values) NotificationFilter {
	return NotificationFilter{
		Status:     oneOf(v.Get("status"), StatusAll, StatusAll, StatusUnread),
		Pagination: ParsePagination(v),
	}
}

func (f NotificationFilter) Encode() url.Values {
	v := url.Values{}
	v.Set("status", f.Status)
	f.Pagination.encode(v)
	return v
}

// RequestFilter drives /requests.
type RequestFilter struct {
	Status string
	Pagination
}

func ParseRequestFilter(v url.Values) RequestFilter {
	return RequestFilter{
		Status:     oneOf(v.Get("status"), StatusAll, StatusAll, StatusAccepted, StatusDeclined),
		Pagination: ParsePagination(v),
	}
}

func (f RequestFilter) Encode() url.Values {
	v := url.Values{}
	v.Set("status", f.Status)
	f.Pagination.encode(v)
	return v
}

// BookFilter drives /books. An empty Condition means any condition.
type BookFilter struct {
	Search    string
	Condition string
	Pagination
}

func ParseBookFilter(v url.Values) BookFilter {
	condition := v.Get("condition")
	if !contains(model.Conditions, condition) {
		condition = ""
	}
	return BookFilter{
		Search:     strings.TrimSpace(v.Get("search")),
		Condition:  condition,
		Pagination: ParsePagination(v),
	}
}

func (f BookFilter) Encode() url.Values {
	v := url.Values{}
	if f.Search != "" {
		v.Set("search", f.Search)
	}
	if f.Condition != "" {
		v.Set("condition", f.Condition)
	}
	f.Pagination.encode(v)
	return v
}

func positive(raw string, def, max int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return def
	}
	if max > 0 && n > max {
		return def
	}
	return n
}

func oneOf(raw, def string, allowed ...string) string {
	if contains(allowed, raw) {
		return raw
	}
	return def
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
