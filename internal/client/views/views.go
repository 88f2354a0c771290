// internal/client/views/views.go
package views

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"segmentbook-service/internal/client/model"
	"segmentbook-service/internal/client/params"
)

const dateLayout = "Jan 2, 2006"

func table(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func heading(w io.Writer, title string) {
	fmt.Fprintf(w, "%s\n%s\n", title, strings.Repeat("=", len(title)))
}

func pager(w io.Writer, p params.Pagination, total int) {
	fmt.Fprintf(w, "\nPage %d of %d (%d total)\n", p.Page, params.TotalPages(total, p.PageSize), total)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func date(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(dateLayout)
}

func donorName(u *model.UserSummary) string {
	if u == nil {
		return "-"
	}
	return u.FullName
}

// Home is the public landing page.
func Home(w io.Writer, latest model.BookPage) error {
	heading(w, "SegmentBook")
	fmt.Fprintln(w, "Give the books you have read a second life.")
	fmt.Fprintf(w, "\n%d books are waiting for a new reader.\n", latest.Total)
	if len(latest.Books) > 0 {
		fmt.Fprintln(w, "\nRecently listed:")
		for _, b := range latest.Books {
			fmt.Fprintf(w, "  - %s by %s\n", b.Title, b.Author)
		}
	}
	return nil
}

// Books is the public catalogue of available books.
func Books(w io.Writer, page model.BookPage, f params.BookFilter) error {
	heading(w, "Available books")
	if f.Search != "" || f.Condition != "" {
		fmt.Fprintf(w, "Search: %s  Condition: %s\n", orDash(f.Search), orDash(f.Condition))
	}
	if len(page.Books) == 0 {
		fmt.Fprintln(w, "No books found.")
		return nil
	}
	tw := table(w)
	fmt.Fprintln(tw, "ID\tTITLE\tAUTHOR\tCONDITION\tDONOR")
	for _, b := range page.Books {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", b.ID, b.Title, b.Author, b.Condition, donorName(b.Donor))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	pager(w, f.Pagination, page.Total)
	return nil
}

func BookDetail(w io.Writer, b *model.Book) error {
	if b == nil {
		fmt.Fprintln(w, "Book not found.")
		return nil
	}
	heading(w, b.Title)
	fmt.Fprintf(w, "Author:    %s\n", b.Author)
	fmt.Fprintf(w, "Condition: %s\n", b.Condition)
	fmt.Fprintf(w, "Language:  %s\n", b.Language)
	fmt.Fprintf(w, "Donor:     %s\n", donorName(b.Donor))
	fmt.Fprintf(w, "Donated:   %s\n", yesNo(b.IsDonated))
	if b.Description != "" {
		fmt.Fprintf(w, "\n%s\n", b.Description)
	}
	return nil
}

// Authors lists the donors, the people who author listings.
func Authors(w io.Writer, donors []model.Donor) error {
	heading(w, "Donors")
	if len(donors) == 0 {
		fmt.Fprintln(w, "No donors yet.")
		return nil
	}
	tw := table(w)
	fmt.Fprintln(tw, "ID\tNAME\tUSERNAME\tCOUNTRY\tDONATED\tLISTED")
	for _, d := range donors {
		fmt.Fprintf(tw, "%s\t%s\t@%s\t%s\t%d\t%d\n", d.ID, d.FullName, d.Username, orDash(d.Country), d.DonationCount, d.ListedCount)
	}
	return tw.Flush()
}

func Author(w io.Writer, d *model.Donor) error {
	if d == nil {
		fmt.Fprintln(w, "Donor not found.")
		return nil
	}
	heading(w, d.FullName)
	fmt.Fprintf(w, "@%s from %s\n", d.Username, orDash(d.Country))
	fmt.Fprintf(w, "%d books donated, %d listed\n", d.DonationCount, d.ListedCount)
	return nil
}

// Dashboard collects the reads shown on /dashboard.
type Dashboard struct {
	UserName       string
	TotalDonations int
	BooksReceived  []model.ReceivedBook
	Received       []model.ActiveRequest
	Sent           []model.ActiveRequest
	Listed         []model.Book
}

func DashboardPage(w io.Writer, d Dashboard) error {
	heading(w, "Welcome back, "+d.UserName)
	fmt.Fprintf(w, "Books donated:  %d\n", d.TotalDonations)
	fmt.Fprintf(w, "Books received: %d\n", len(d.BooksReceived))
	fmt.Fprintf(w, "Books listed:   %d\n", len(d.Listed))

	if err := activeRequests(w, "Requests for your books", d.Received); err != nil {
		return err
	}
	return activeRequests(w, "Your requests", d.Sent)
}

func activeRequests(w io.Writer, title string, list []model.ActiveRequest) error {
	fmt.Fprintf(w, "\n%s\n", title)
	if len(list) == 0 {
		fmt.Fprintln(w, "  none")
		return nil
	}
	tw := table(w)
	fmt.Fprintln(tw, "  REQUEST\tBOOK\tWITH\tSINCE\tSTATUS")
	for _, r := range list {
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s\n", r.DonationRequestID, r.BookTitle, r.CounterpartyName, date(r.RequestDate), r.Status)
	}
	return tw.Flush()
}

// Donations is the caller's own listings, filtered by donated status.
func Donations(w io.Writer, page model.BookPage, f params.DonationFilter) error {
	heading(w, "My donations")
	fmt.Fprintf(w, "Showing: %s\n\n", f.Status)
	if len(page.Books) == 0 {
		fmt.Fprintln(w, "No books listed.")
	} else {
		tw := table(w)
		fmt.Fprintln(tw, "ID\tTITLE\tAUTHOR\tCONDITION\tDONATED")
		for _, b := range page.Books {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", b.ID, b.Title, b.Author, b.Condition, yesNo(b.IsDonated))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	pager(w, f.Pagination, page.Total)
	return nil
}

// NewDonation describes the listing form.
func NewDonation(w io.Writer) error {
	heading(w, "List a book")
	fmt.Fprintln(w, "Use: segmentbook donate --title T --author A --condition C --language L [--description D] [--cover FILE]")
	fmt.Fprintf(w, "Conditions: %s\n", strings.Join(model.Conditions, ", "))
	return nil
}

func Requests(w io.Writer, page model.RequestPage, f params.RequestFilter, selfID string) error {
	heading(w, "My requests")
	fmt.Fprintf(w, "Showing: %s\n\n", f.Status)
	if len(page.Requests) == 0 {
		fmt.Fprintln(w, "No requests.")
	} else {
		tw := table(w)
		fmt.Fprintln(tw, "ID\tBOOK\tROLE\tSTATUS\tDATE")
		for _, r := range page.Requests {
			role := "requester"
			if r.DonorID == selfID {
				role = "donor"
			}
			title := "-"
			if r.Book != nil {
				title = r.Book.Title
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.ID, title, role, r.Status, date(r.CreatedAt))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	pager(w, f.Pagination, page.Total)
	return nil
}

func Notifications(w io.Writer, page model.NotificationPage, f params.NotificationFilter, unread int) error {
	heading(w, "Notifications")
	fmt.Fprintf(w, "Unread: %d  Showing: %s\n\n", unread, f.Status)
	if len(page.Notifications) == 0 {
		fmt.Fprintln(w, "You're all caught up.")
	} else {
		for _, n := range page.Notifications {
			marker := " "
			if !n.IsRead {
				marker = "*"
			}
			fmt.Fprintf(w, "%s [%s] %s\n    %s\n", marker, date(n.CreatedAt), n.Title, n.Content)
		}
	}
	pager(w, f.Pagination, page.Total)
	return nil
}

func Messages(w io.Writer, chats []model.Chat) error {
	heading(w, "Messages")
	if len(chats) == 0 {
		fmt.Fprintln(w, "No conversations yet.")
		return nil
	}
	tw := table(w)
	fmt.Fprintln(tw, "CHAT\tWITH\tLAST MESSAGE")
	for _, c := range chats {
		last := "-"
		if c.LastMessage != nil {
			last = c.LastMessage.Content
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", c.ID, donorName(c.Participant), last)
	}
	return tw.Flush()
}

// Chat renders one thread. Messages from selfID are labelled "you".
func Chat(w io.Writer, participants []model.UserSummary, msgs []model.Message, selfID string) error {
	names := make(map[string]string, len(participants))
	var others []string
	for _, p := range participants {
		names[p.ID] = p.FullName
		if p.ID != selfID {
			others = append(others, p.FullName)
		}
	}
	heading(w, "Chat with "+orDash(strings.Join(others, ", ")))
	if len(msgs) == 0 {
		fmt.Fprintln(w, "No messages yet. Say hello!")
		return nil
	}
	for _, m := range msgs {
		who := names[m.SenderID]
		if m.SenderID == selfID {
			who = "you"
		}
		fmt.Fprintf(w, "[%s] %s: %s\n", m.CreatedAt.Format("15:04"), orDash(who), m.Content)
	}
	return nil
}

func Profile(w io.Writer, p *model.Profile) error {
	if p == nil {
		fmt.Fprintln(w, "Profile not found.")
		return nil
	}
	heading(w, p.FullName)
	fmt.Fprintf(w, "Username: @%s\n", p.Username)
	fmt.Fprintf(w, "Email:    %s\n", p.Email)
	fmt.Fprintf(w, "Country:  %s\n", orDash(p.Country))
	fmt.Fprintf(w, "Joined:   %s\n", date(p.CreatedAt))
	return nil
}

func SignIn(w io.Writer) error {
	heading(w, "Sign in")
	fmt.Fprintln(w, "Use: segmentbook signin --email EMAIL --password PASSWORD")
	fmt.Fprintln(w, "No account yet? segmentbook signup")
	return nil
}

func SignUp(w io.Writer) error {
	heading(w, "Create an account")
	fmt.Fprintln(w, "Use: segmentbook signup --full-name NAME --username USER --email EMAIL --password PASSWORD --country COUNTRY")
	return nil
}

// Failure renders a failed read the way the page shows it inline.
func Failure(w io.Writer, what string, err error) {
	fmt.Fprintf(w, "Could not load %s: %v\n", what, err)
}
