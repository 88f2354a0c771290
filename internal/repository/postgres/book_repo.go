// internal/repository/postgres/book_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"segmentbook-service/internal/domain/book"
	xerrors "segmentbook-service/internal/pkg/errors"
)

type BookRepository struct {
	db *pgxpool.Pool
}

func NewBookRepository(db *pgxpool.Pool) *BookRepository {
	return &BookRepository{db: db}
}

const bookSelect = `
	SELECT b.id, b.title, b.author, b.description, b.condition, b.language, b.cover_url,
	       b.owner_id, b.is_donated, b.created_at,
	       u.id, u.full_name, u.username, u.avatar_url
	FROM books b
	JOIN users u ON u.id = b.owner_id
`

func scanBook(row pgx.Row) (*book.Book, error) {
	var (
		b                          book.Book
		dID, dName, dUser, dAvatar string
	)
	err := row.Scan(&b.ID, &b.Title, &b.Author, &b.Description, &b.Condition, &b.Language, &b.CoverURL,
		&b.OwnerID, &b.IsDonated, &b.CreatedAt, &dID, &dName, &dUser, &dAvatar)
	if err != nil {
		return nil, err
	}
	b.Donor = summary(dID, dName, dUser, dAvatar)
	return &b, nil
}

func collectBooks(rows pgx.Rows) ([]book.Book, error) {
	defer rows.Close()
	books := []book.Book{}
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan book: %w", err)
		}
		books = append(books, *b)
	}
	return books, rows.Err()
}

// Create inserts b owned by b.OwnerID.
func (r *BookRepository) Create(ctx context.Context, b *book.Book) error {
	query := `
		INSERT INTO books (owner_id, title, author, description, condition, language, cover_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, is_donated, created_at
	`
	err := r.db.QueryRow(ctx, query, b.OwnerID, b.Title, b.Author, b.Description, b.Condition, b.Language, b.CoverURL).
		Scan(&b.ID, &b.IsDonated, &b.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create book: %w", err)
	}
	return nil
}

// Update edits the descriptive fields of a book the owner still holds.
func (r *BookRepository) Update(ctx context.Context, id, ownerID string, req *book.UpdateBookRequest) error {
	query := `
		UPDATE books SET title = $3, author = $4, description = $5, updated_at = now()
		WHERE id = $1 AND owner_id = $2
	`
	tag, err := r.db.Exec(ctx, query, id, ownerID, req.Title, req.Author, req.Description)
	if err != nil {
		return fmt.Errorf("failed to update book: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.New(xerrors.ErrNotFound, "Book not found")
	}
	return nil
}

func (r *BookRepository) FindByID(ctx context.Context, id string) (*book.Book, error) {
	b, err := scanBook(r.db.QueryRow(ctx, bookSelect+` WHERE b.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.New(xerrors.ErrNotFound, "Book not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find book: %w", err)
	}
	return b, nil
}

// ListAvailable pages through books not yet donated, newest first.
func (r *BookRepository) ListAvailable(ctx context.Context, f *book.ListFilters) (*book.BookPage, error) {
	where := []string{"NOT b.is_donated"}
	args := []any{}

	if s := strings.TrimSpace(f.Search); s != "" {
		args = append(args, "%"+escapeLike(s)+"%")
		where = append(where, fmt.Sprintf("(b.title ILIKE $%d OR b.author ILIKE $%d)", len(args), len(args)))
	}
	if f.Condition != "" {
		args = append(args, f.Condition)
		where = append(where, fmt.Sprintf("b.condition = $%d", len(args)))
	}
	return r.page(ctx, strings.Join(where, " AND "), args, f.Offset(), f.Limit())
}

// ListByOwner pages through ownerID's listings filtered by donated status.
func (r *BookRepository) ListByOwner(ctx context.Context, ownerID string, f *book.OwnFilters) (*book.BookPage, error) {
	where := "b.owner_id = $1"
	switch f.Status {
	case book.StatusDonated:
		where += " AND b.is_donated"
	case book.StatusNotDonated:
		where += " AND NOT b.is_donated"
	}
	return r.page(ctx, where, []any{ownerID}, f.Offset(), f.Limit())
}

func (r *BookRepository) page(ctx context.Context, where string, args []any, offset, limit int) (*book.BookPage, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM books b WHERE `+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count books: %w", err)
	}

	n := len(args)
	query := fmt.Sprintf(`%s WHERE %s ORDER BY b.created_at DESC, b.id LIMIT $%d OFFSET $%d`, bookSelect, where, n+1, n+2)
	rows, err := r.db.Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}
	books, err := collectBooks(rows)
	if err != nil {
		return nil, err
	}
	return &book.BookPage{Books: books, Total: total}, nil
}

// ListedNotDonated returns every listing the owner still holds.
func (r *BookRepository) ListedNotDonated(ctx context.Context, ownerID string) ([]book.Book, error) {
	rows, err := r.db.Query(ctx, bookSelect+` WHERE b.owner_id = $1 AND NOT b.is_donated ORDER BY b.created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}
	return collectBooks(rows)
}

// CountDonated is the owner's total donations.
func (r *BookRepository) CountDonated(ctx context.Context, ownerID string) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM books WHERE owner_id = $1 AND is_donated`, ownerID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count donations: %w", err)
	}
	return n, nil
}

// ListReceived returns books whose requests by requesterID completed.
func (r *BookRepository) ListReceived(ctx context.Context, requesterID string) ([]book.ReceivedBook, error) {
	query := `
		SELECT dr.id, b.title, b.author
		FROM donation_requests dr
		JOIN books b ON b.id = dr.book_id
		WHERE dr.requester_id = $1 AND dr.status = 'COMPLETED'
		ORDER BY dr.updated_at DESC
	`
	rows, err := r.db.Query(ctx, query, requesterID)
	if err != nil {
		return nil, fmt.Errorf("failed to list received books: %w", err)
	}
	defer rows.Close()

	out := []book.ReceivedBook{}
	for rows.Next() {
		var rb book.ReceivedBook
		if err := rows.Scan(&rb.RequestID, &rb.Title, &rb.Author); err != nil {
			return nil, fmt.Errorf("failed to scan received book: %w", err)
		}
		out = append(out, rb)
	}
	return out, rows.Err()
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
