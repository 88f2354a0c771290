package views

import (
	"bytes"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"segmentbook-service/internal/client/model"
	"segmentbook-service/internal/client/params"
)

func golden(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func day(d, h, m int) time.Time {
	return time.Date(2025, time.March, d, h, m, 0, 0, time.UTC)
}

func TestDonationsPage(t *testing.T) {
	page := model.BookPage{
		Books: []model.Book{
			{ID: "b1", Title: "Dune", Author: "Frank Herbert", Condition: "good", IsDonated: true},
			{ID: "b2", Title: "Emma", Author: "Jane Austen", Condition: "fair"},
		},
		Total: 11,
	}
	f := params.DonationFilter{
		Status:     params.StatusDonated,
		Pagination: params.Pagination{Page: 2, PageSize: 10},
	}

	var buf bytes.Buffer
	require.NoError(t, Donations(&buf, page, f))
	golden(t).Assert(t, "donations", buf.Bytes())
}

func TestDonationsPageEmpty(t *testing.T) {
	f := params.DonationFilter{
		Status:     params.StatusAll,
		Pagination: params.Pagination{Page: 1, PageSize: 10},
	}

	var buf bytes.Buffer
	require.NoError(t, Donations(&buf, model.BookPage{}, f))
	golden(t).Assert(t, "donations_empty", buf.Bytes())
}

func TestNotificationsPage(t *testing.T) {
	page := model.NotificationPage{
		Notifications: []model.Notification{
			{ID: "n2", Title: "New book request", Content: `Ada Lovelace requested "Dune"`, CreatedAt: day(4, 10, 0)},
			{ID: "n1", Title: "Request accepted", Content: `Your request for "Emma" was accepted`, IsRead: true, CreatedAt: day(3, 8, 30)},
		},
		Total: 21,
	}
	f := params.NotificationFilter{
		Status:     params.StatusAll,
		Pagination: params.Pagination{Page: 1, PageSize: 10},
	}

	var buf bytes.Buffer
	require.NoError(t, Notifications(&buf, page, f, 1))
	golden(t).Assert(t, "notifications", buf.Bytes())
}

func TestChatThread(t *testing.T) {
	participants := []model.UserSummary{
		{ID: "u1", FullName: "Ada Lovelace"},
		{ID: "u2", FullName: "Bob Reader"},
	}
	msgs := []model.Message{
		{ID: "m1", SenderID: "u1", Content: "Is Dune still available?", CreatedAt: day(4, 9, 15)},
		{ID: "m2", SenderID: "u2", Content: "Yes, when can you pick it up?", CreatedAt: day(4, 9, 20)},
	}

	var buf bytes.Buffer
	require.NoError(t, Chat(&buf, participants, msgs, "u1"))
	golden(t).Assert(t, "chat", buf.Bytes())
}

func TestDashboard(t *testing.T) {
	d := Dashboard{
		UserName:       "Ada Lovelace",
		TotalDonations: 3,
		BooksReceived:  []model.ReceivedBook{{RequestID: "r0", Title: "Emma"}},
		Received: []model.ActiveRequest{
			{DonationRequestID: "r1", BookTitle: "Dune", CounterpartyName: "Bob Reader", RequestDate: day(4, 12, 0), Status: model.RequestPending},
		},
		Listed: []model.Book{{ID: "b1"}, {ID: "b2"}},
	}

	var buf bytes.Buffer
	require.NoError(t, DashboardPage(&buf, d))
	golden(t).Assert(t, "dashboard", buf.Bytes())
}
