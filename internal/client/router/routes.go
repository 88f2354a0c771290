// internal/client/router/routes.go
package router

import (
	"io"
	"strings"

	"segmentbook-service/internal/client/params"
	"segmentbook-service/internal/client/queries"
	"segmentbook-service/internal/client/views"
	wstypes "segmentbook-service/internal/domain/websocket"
)

// Route maps a path pattern ("/messages/:chatId") to a page.
type Route struct {
	Pattern   string
	Protected bool
	// Mount declares the page's reads and realtime subscriptions.
	Mount func(p *Page) error
	// Render reads the cache and writes the view.
	Render func(p *Page, w io.Writer) error
}

func (r *Route) match(segs []string) (map[string]string, bool) {
	pattern := splitPath(r.Pattern)
	if len(pattern) != len(segs) {
		return nil, false
	}
	params := map[string]string{}
	for i, part := range pattern {
		if name, ok := strings.CutPrefix(part, ":"); ok {
			params[name] = segs[i]
			continue
		}
		if part != segs[i] {
			return nil, false
		}
	}
	return params, true
}

// DefaultRoutes is the application's route table.
func DefaultRoutes() []*Route {
	return []*Route{
		{Pattern: "/", Mount: mountHome, Render: renderHome},
		{Pattern: "/books", Mount: mountBooks, Render: renderBooks},
		{Pattern: "/books/:id", Mount: mountBook, Render: renderBook},
		{Pattern: "/authors", Mount: mountAuthors, Render: renderAuthors},
		{Pattern: "/authors/:id", Mount: mountAuthor, Render: renderAuthor},
		{Pattern: "/sign-in", Render: func(_ *Page, w io.Writer) error { return views.SignIn(w) }},
		{Pattern: "/sign-up", Render: func(_ *Page, w io.Writer) error { return views.SignUp(w) }},

		{Pattern: "/dashboard", Protected: true, Mount: mountDashboard, Render: renderDashboard},
		{Pattern: "/donations", Protected: true, Mount: mountDonations, Render: renderDonations},
		{Pattern: "/donations/new", Protected: true, Render: func(_ *Page, w io.Writer) error { return views.NewDonation(w) }},
		{Pattern: "/requests", Protected: true, Mount: mountRequests, Render: renderRequests},
		{Pattern: "/notifications", Protected: true, Mount: mountNotifications, Render: renderNotifications},
		{Pattern: "/messages", Protected: true, Mount: mountMessages, Render: renderMessages},
		{Pattern: "/messages/:chatId", Protected: true, Mount: mountChat, Render: renderChat},
		{Pattern: "/profile", Protected: true, Mount: mountProfile, Render: renderProfile},
	}
}

func latestBooks() params.BookFilter {
	return params.BookFilter{Pagination: params.Pagination{Page: 1, PageSize: 5}}
}

// ---- public ----

func mountHome(p *Page) error {
	Use(p, p.Catalog().BookFilters(latestBooks()))
	return nil
}

func renderHome(p *Page, w io.Writer) error {
	page, err := Load(p, p.Catalog().BookFilters(latestBooks()))
	if err != nil {
		views.Failure(w, "books", err)
		return nil
	}
	return views.Home(w, page)
}

func mountBooks(p *Page) error {
	Use(p, p.Catalog().BookFilters(params.ParseBookFilter(p.Query)))
	return nil
}

func renderBooks(p *Page, w io.Writer) error {
	f := params.ParseBookFilter(p.Query)
	page, err := Load(p, p.Catalog().BookFilters(f))
	if err != nil {
		views.Failure(w, "books", err)
		return nil
	}
	return views.Books(w, page, f)
}

func mountBook(p *Page) error {
	Use(p, p.Catalog().BookByID(p.Params["id"]))
	return nil
}

func renderBook(p *Page, w io.Writer) error {
	b, err := Load(p, p.Catalog().BookByID(p.Params["id"]))
	if err != nil {
		views.Failure(w, "book", err)
		return nil
	}
	return views.BookDetail(w, b)
}

func mountAuthors(p *Page) error {
	Use(p, p.Catalog().AllDonors())
	return nil
}

func renderAuthors(p *Page, w io.Writer) error {
	donors, err := Load(p, p.Catalog().AllDonors())
	if err != nil {
		views.Failure(w, "donors", err)
		return nil
	}
	return views.Authors(w, donors)
}

func mountAuthor(p *Page) error {
	Use(p, p.Catalog().DonorByID(p.Params["id"]))
	return nil
}

func renderAuthor(p *Page, w io.Writer) error {
	d, err := Load(p, p.Catalog().DonorByID(p.Params["id"]))
	if err != nil {
		views.Failure(w, "donor", err)
		return nil
	}
	return views.Author(w, d)
}

// ---- protected ----

func mountDashboard(p *Page) error {
	c, uid := p.Catalog(), p.UserID()
	Use(p, c.TotalDonations(uid))
	Use(p, c.BooksReceived(uid))
	Use(p, c.ActiveRequestsReceived(uid))
	Use(p, c.ActiveRequestsSent(uid))
	Use(p, c.ListedNotDonated(uid))

	onChange := queries.OnDonationRequest(p.Cache(), uid)
	if err := p.Subscribe(wstypes.SubscribeRequest{
		Topic:  "requests-received-" + uid,
		Table:  wstypes.TableDonationRequests,
		Event:  wstypes.RowAny,
		Filter: wstypes.EqFilter("donor_id", uid),
	}, onChange); err != nil {
		return err
	}
	return p.Subscribe(wstypes.SubscribeRequest{
		Topic:  "requests-sent-" + uid,
		Table:  wstypes.TableDonationRequests,
		Event:  wstypes.RowAny,
		Filter: wstypes.EqFilter("requester_id", uid),
	}, onChange)
}

func renderDashboard(p *Page, w io.Writer) error {
	c, uid := p.Catalog(), p.UserID()
	d := views.Dashboard{}
	if p.Session != nil {
		d.UserName = p.Session.FullName
	}

	var err error
	if d.TotalDonations, err = Load(p, c.TotalDonations(uid)); err != nil {
		views.Failure(w, "donation total", err)
	}
	if d.BooksReceived, err = Load(p, c.BooksReceived(uid)); err != nil {
		views.Failure(w, "received books", err)
	}
	if d.Received, err = Load(p, c.ActiveRequestsReceived(uid)); err != nil {
		views.Failure(w, "received requests", err)
	}
	if d.Sent, err = Load(p, c.ActiveRequestsSent(uid)); err != nil {
		views.Failure(w, "sent requests", err)
	}
	if d.Listed, err = Load(p, c.ListedNotDonated(uid)); err != nil {
		views.Failure(w, "listed books", err)
	}
	return views.DashboardPage(w, d)
}

func mountDonations(p *Page) error {
	Use(p, p.Catalog().UserDonatedBooks(p.UserID(), params.ParseDonationFilter(p.Query)))
	return nil
}

func renderDonations(p *Page, w io.Writer) error {
	f := params.ParseDonationFilter(p.Query)
	page, err := Load(p, p.Catalog().UserDonatedBooks(p.UserID(), f))
	if err != nil {
		views.Failure(w, "donations", err)
		return nil
	}
	return views.Donations(w, page, f)
}

func mountRequests(p *Page) error {
	Use(p, p.Catalog().UserRequests(p.UserID(), params.ParseRequestFilter(p.Query)))
	return nil
}

func renderRequests(p *Page, w io.Writer) error {
	f := params.ParseRequestFilter(p.Query)
	page, err := Load(p, p.Catalog().UserRequests(p.UserID(), f))
	if err != nil {
		views.Failure(w, "requests", err)
		return nil
	}
	return views.Requests(w, page, f, p.UserID())
}

func mountNotifications(p *Page) error {
	c, uid := p.Catalog(), p.UserID()
	f := params.ParseNotificationFilter(p.Query)
	Use(p, c.UserNotifications(uid, f))
	Use(p, c.UnreadCount(uid))

	return p.Subscribe(wstypes.SubscribeRequest{
		Topic:  "notifications-" + uid,
		Table:  wstypes.TableNotifications,
		Event:  wstypes.RowInsert,
		Filter: wstypes.EqFilter("receiver_id", uid),
	}, queries.OnNotification(p.Cache(), uid, f))
}

func renderNotifications(p *Page, w io.Writer) error {
	c, uid := p.Catalog(), p.UserID()
	f := params.ParseNotificationFilter(p.Query)
	page, err := Load(p, c.UserNotifications(uid, f))
	if err != nil {
		views.Failure(w, "notifications", err)
		return nil
	}
	unread, err := Load(p, c.UnreadCount(uid))
	if err != nil {
		views.Failure(w, "unread count", err)
	}
	return views.Notifications(w, page, f, unread)
}

func mountMessages(p *Page) error {
	Use(p, p.Catalog().UserChats(p.UserID()))
	return nil
}

func renderMessages(p *Page, w io.Writer) error {
	chats, err := Load(p, p.Catalog().UserChats(p.UserID()))
	if err != nil {
		views.Failure(w, "chats", err)
		return nil
	}
	return views.Messages(w, chats)
}

func mountChat(p *Page) error {
	c, chatID := p.Catalog(), p.Params["chatId"]
	Use(p, c.ChatMessages(chatID))
	Use(p, c.ChatParticipants(chatID))

	return p.Subscribe(wstypes.SubscribeRequest{
		Topic:  "chat-" + chatID,
		Table:  wstypes.TableMessages,
		Event:  wstypes.RowInsert,
		Filter: wstypes.EqFilter("chat_id", chatID),
	}, queries.OnChatMessage(p.Cache(), chatID, p.UserID()))
}

func renderChat(p *Page, w io.Writer) error {
	c, chatID := p.Catalog(), p.Params["chatId"]
	participants, err := Load(p, c.ChatParticipants(chatID))
	if err != nil {
		views.Failure(w, "chat", err)
		return nil
	}
	msgs, err := Load(p, c.ChatMessages(chatID))
	if err != nil {
		views.Failure(w, "messages", err)
		return nil
	}
	return views.Chat(w, participants, msgs, p.UserID())
}

func mountProfile(p *Page) error {
	Use(p, p.Catalog().Profile(p.UserID()))
	return nil
}

func renderProfile(p *Page, w io.Writer) error {
	prof, err := Load(p, p.Catalog().Profile(p.UserID()))
	if err != nil {
		views.Failure(w, "profile", err)
		return nil
	}
	return views.Profile(w, prof)
}
