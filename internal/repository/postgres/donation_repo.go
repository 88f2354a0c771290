// internal/repository/postgres/donation_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"segmentbook-service/internal/domain/book"
	"segmentbook-service/internal/domain/donation"
	"segmentbook-service/internal/domain/notification"
	xerrors "segmentbook-service/internal/pkg/errors"
)

type DonationRepository struct {
	db *pgxpool.Pool
}

func NewDonationRepository(db *pgxpool.Pool) *DonationRepository {
	return &DonationRepository{db: db}
}

// lockedBook is the slice of a books row the request flows need.
type lockedBook struct {
	id, ownerID, title string
	isDonated          bool
}

func lockBook(ctx context.Context, tx pgx.Tx, id string) (*lockedBook, error) {
	var b lockedBook
	err := tx.QueryRow(ctx, `SELECT id, owner_id, title, is_donated FROM books WHERE id = $1 FOR UPDATE`, id).
		Scan(&b.id, &b.ownerID, &b.title, &b.isDonated)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.New(xerrors.ErrNotFound, "Book not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock book: %w", err)
	}
	return &b, nil
}

func fullName(ctx context.Context, q DBTX, userID string) (string, error) {
	var name string
	if err := q.QueryRow(ctx, `SELECT full_name FROM users WHERE id = $1`, userID).Scan(&name); err != nil {
		return "", fmt.Errorf("failed to load user: %w", err)
	}
	return name, nil
}

// RequestBook records requesterID's request for bookID and notifies the donor.
func (r *DonationRepository) RequestBook(ctx context.Context, bookID, requesterID string) (*donation.Request, error) {
	var req *donation.Request
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		b, err := lockBook(ctx, tx, bookID)
		if err != nil {
			return err
		}
		switch {
		case b.ownerID == requesterID:
			return xerrors.New(xerrors.ErrInvalidInput, "You cannot request your own book")
		case b.isDonated:
			return xerrors.New(xerrors.ErrConflict, "This book has already been donated")
		}

		req = &donation.Request{BookID: bookID, DonorID: b.ownerID, RequesterID: requesterID}
		err = tx.QueryRow(ctx, `
			INSERT INTO donation_requests (book_id, donor_id, requester_id)
			VALUES ($1, $2, $3)
			RETURNING id, status, created_at, updated_at
		`, bookID, b.ownerID, requesterID).Scan(&req.ID, &req.Status, &req.CreatedAt, &req.UpdatedAt)
		if isUniqueViolation(err, "donation_requests_open_uniq") {
			return xerrors.New(xerrors.ErrConflict, "You have already requested this book")
		}
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}

		name, err := fullName(ctx, tx, requesterID)
		if err != nil {
			return err
		}
		return insertNotification(ctx, tx, &notification.Notification{
			Title:      "New book request",
			Content:    fmt.Sprintf("%s requested %q", name, b.title),
			Type:       notification.TypeDonationRequest,
			SenderID:   requesterID,
			ReceiverID: b.ownerID,
			RequestID:  req.ID,
		})
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// MarkDonated gives bookID to the user named recipientUsername. The
// recipient's open request completes; every other open request is rejected.
func (r *DonationRepository) MarkDonated(ctx context.Context, bookID, donorID, recipientUsername string) error {
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		b, err := lockBook(ctx, tx, bookID)
		if err != nil {
			return err
		}
		switch {
		case b.ownerID != donorID:
			return xerrors.New(xerrors.ErrForbidden, "You can only donate your own books")
		case b.isDonated:
			return xerrors.New(xerrors.ErrConflict, "This book has already been donated")
		}

		var recipientID string
		err = tx.QueryRow(ctx, `SELECT id FROM users WHERE username = $1`, recipientUsername).Scan(&recipientID)
		if errors.Is(err, pgx.ErrNoRows) {
			return xerrors.Newf(xerrors.ErrNotFound, "No user found with username %s", recipientUsername)
		}
		if err != nil {
			return fmt.Errorf("failed to find recipient: %w", err)
		}
		if recipientID == donorID {
			return xerrors.New(xerrors.ErrInvalidInput, "You cannot donate a book to yourself")
		}

		var requestID string
		err = tx.QueryRow(ctx, `
			UPDATE donation_requests SET status = 'COMPLETED', updated_at = now()
			WHERE book_id = $1 AND requester_id = $2 AND status IN ('PENDING', 'ACCEPTED')
			RETURNING id
		`, bookID, recipientID).Scan(&requestID)
		if errors.Is(err, pgx.ErrNoRows) {
			return xerrors.Newf(xerrors.ErrInvalidInput, "%s has not requested this book", recipientUsername)
		}
		if err != nil {
			return fmt.Errorf("failed to complete request: %w", err)
		}

		if _, err := tx.Exec(ctx, `
			UPDATE donation_requests SET status = 'REJECTED', updated_at = now()
			WHERE book_id = $1 AND id <> $2 AND status IN ('PENDING', 'ACCEPTED')
		`, bookID, requestID); err != nil {
			return fmt.Errorf("failed to close other requests: %w", err)
		}

		if _, err := tx.Exec(ctx, `UPDATE books SET is_donated = true, updated_at = now() WHERE id = $1`, bookID); err != nil {
			return fmt.Errorf("failed to mark book donated: %w", err)
		}

		name, err := fullName(ctx, tx, donorID)
		if err != nil {
			return err
		}
		return insertNotification(ctx, tx, &notification.Notification{
			Title:      "Book donated",
			Content:    fmt.Sprintf("%s donated %q to you", name, b.title),
			Type:       notification.TypeBookDonated,
			SenderID:   donorID,
			ReceiverID: recipientID,
			RequestID:  requestID,
		})
	})
}

// lockRequest loads a request for update and checks the donor owns it and
// it is still pending.
func lockRequest(ctx context.Context, tx pgx.Tx, requestID, donorID string) (*donation.Request, string, error) {
	var (
		req   donation.Request
		title string
	)
	err := tx.QueryRow(ctx, `
		SELECT dr.id, dr.book_id, dr.donor_id, dr.requester_id, dr.status, b.title
		FROM donation_requests dr JOIN books b ON b.id = dr.book_id
		WHERE dr.id = $1
		FOR UPDATE OF dr
	`, requestID).Scan(&req.ID, &req.BookID, &req.DonorID, &req.RequesterID, &req.Status, &title)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, "", xerrors.New(xerrors.ErrNotFound, "Request not found")
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to lock request: %w", err)
	}
	if req.DonorID != donorID {
		return nil, "", xerrors.New(xerrors.ErrForbidden, "Only the donor can answer this request")
	}
	if req.Status != donation.StatusPending {
		return nil, "", xerrors.New(xerrors.ErrConflict, "This request is no longer pending")
	}
	return &req, title, nil
}

// Accept accepts a pending request, opens a chat between donor and
// requester, and notifies the requester.
func (r *DonationRepository) Accept(ctx context.Context, requestID, donorID string) (*donation.AcceptResult, error) {
	res := &donation.AcceptResult{RequestID: requestID}
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		req, title, err := lockRequest(ctx, tx, requestID, donorID)
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `UPDATE donation_requests SET status = 'ACCEPTED', updated_at = now() WHERE id = $1`, requestID); err != nil {
			return fmt.Errorf("failed to accept request: %w", err)
		}

		err = tx.QueryRow(ctx, `
			INSERT INTO chats (request_id) VALUES ($1)
			ON CONFLICT (request_id) DO UPDATE SET request_id = EXCLUDED.request_id
			RETURNING id
		`, requestID).Scan(&res.ChatID)
		if err != nil {
			return fmt.Errorf("failed to create chat: %w", err)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO chat_participants (chat_id, user_id) VALUES ($1, $2), ($1, $3)
			ON CONFLICT DO NOTHING
		`, res.ChatID, req.DonorID, req.RequesterID); err != nil {
			return fmt.Errorf("failed to add chat participants: %w", err)
		}

		name, err := fullName(ctx, tx, donorID)
		if err != nil {
			return err
		}
		return insertNotification(ctx, tx, &notification.Notification{
			Title:      "Request accepted",
			Content:    fmt.Sprintf("%s accepted your request for %q", name, title),
			Type:       notification.TypeRequestAccepted,
			SenderID:   donorID,
			ReceiverID: req.RequesterID,
			RequestID:  requestID,
		})
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Reject declines a pending request and notifies the requester.
func (r *DonationRepository) Reject(ctx context.Context, requestID, donorID string) error {
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		req, title, err := lockRequest(ctx, tx, requestID, donorID)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `UPDATE donation_requests SET status = 'REJECTED', updated_at = now() WHERE id = $1`, requestID); err != nil {
			return fmt.Errorf("failed to reject request: %w", err)
		}

		name, err := fullName(ctx, tx, donorID)
		if err != nil {
			return err
		}
		return insertNotification(ctx, tx, &notification.Notification{
			Title:      "Request declined",
			Content:    fmt.Sprintf("%s declined your request for %q", name, title),
			Type:       notification.TypeRequestRejected,
			SenderID:   donorID,
			ReceiverID: req.RequesterID,
			RequestID:  requestID,
		})
	})
}

// ActiveReceived lists pending and accepted requests for donorID's books.
func (r *DonationRepository) ActiveReceived(ctx context.Context, donorID string) ([]donation.ActiveRequest, error) {
	return r.active(ctx, "dr.donor_id", "dr.requester_id", donorID)
}

// ActiveSent lists requesterID's pending and accepted requests.
func (r *DonationRepository) ActiveSent(ctx context.Context, requesterID string) ([]donation.ActiveRequest, error) {
	return r.active(ctx, "dr.requester_id", "dr.donor_id", requesterID)
}

func (r *DonationRepository) active(ctx context.Context, selfCol, otherCol, userID string) ([]donation.ActiveRequest, error) {
	query := `
		SELECT dr.id, b.title, b.author, u.full_name, dr.created_at, dr.status
		FROM donation_requests dr
		JOIN books b ON b.id = dr.book_id
		JOIN users u ON u.id = ` + otherCol + `
		WHERE ` + selfCol + ` = $1 AND dr.status IN ('PENDING', 'ACCEPTED')
		ORDER BY dr.created_at DESC
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list active requests: %w", err)
	}
	defer rows.Close()

	out := []donation.ActiveRequest{}
	for rows.Next() {
		var a donation.ActiveRequest
		if err := rows.Scan(&a.DonationRequestID, &a.BookTitle, &a.BookAuthor, &a.CounterpartyName, &a.RequestDate, &a.Status); err != nil {
			return nil, fmt.Errorf("failed to scan active request: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListByRequester pages through requesterID's requests, newest first.
func (r *DonationRepository) ListByRequester(ctx context.Context, requesterID string, f *donation.ListFilters) (*donation.RequestPage, error) {
	where := "dr.requester_id = $1"
	switch f.Status {
	case donation.FilterAccepted:
		where += " AND dr.status IN ('ACCEPTED', 'COMPLETED')"
	case donation.FilterDeclined:
		where += " AND dr.status = 'REJECTED'"
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM donation_requests dr WHERE `+where, requesterID).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count requests: %w", err)
	}

	query := `
		SELECT dr.id, dr.book_id, dr.donor_id, dr.requester_id, dr.status, dr.created_at, dr.updated_at,
		       b.title, b.author, b.condition, b.language, b.cover_url, b.is_donated, b.created_at,
		       d.id, d.full_name, d.username, d.avatar_url,
		       q.id, q.full_name, q.username, q.avatar_url
		FROM donation_requests dr
		JOIN books b ON b.id = dr.book_id
		JOIN users d ON d.id = dr.donor_id
		JOIN users q ON q.id = dr.requester_id
		WHERE ` + where + `
		ORDER BY dr.created_at DESC, dr.id
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, requesterID, f.Limit(), f.Offset())
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	defer rows.Close()

	page := &donation.RequestPage{Requests: []donation.Request{}, Total: total}
	for rows.Next() {
		var (
			req                        donation.Request
			b                          book.Book
			dID, dName, dUser, dAvatar string
			qID, qName, qUser, qAvatar string
		)
		if err := rows.Scan(&req.ID, &req.BookID, &req.DonorID, &req.RequesterID, &req.Status, &req.CreatedAt, &req.UpdatedAt,
			&b.Title, &b.Author, &b.Condition, &b.Language, &b.CoverURL, &b.IsDonated, &b.CreatedAt,
			&dID, &dName, &dUser, &dAvatar, &qID, &qName, &qUser, &qAvatar); err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		b.ID, b.OwnerID = req.BookID, req.DonorID
		req.Book = &b
		req.Donor = summary(dID, dName, dUser, dAvatar)
		req.Requester = summary(qID, qName, qUser, qAvatar)
		page.Requests = append(page.Requests, req)
	}
	return page, rows.Err()
}
