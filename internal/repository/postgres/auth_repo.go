// internal/repository/postgres/auth_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"segmentbook-service/internal/domain/auth"
	xerrors "segmentbook-service/internal/pkg/errors"
	"segmentbook-service/internal/pkg/session"
)

type AuthRepository struct {
	db *pgxpool.Pool
}

func NewAuthRepository(db *pgxpool.Pool) *AuthRepository {
	return &AuthRepository{db: db}
}

const userColumns = `id, email, username, full_name, country, avatar_url, password_hash, created_at, updated_at`

func scanUser(row pgx.Row) (*auth.User, error) {
	var u auth.User
	err := row.Scan(&u.ID, &u.Email, &u.Username, &u.FullName, &u.Country, &u.AvatarURL,
		&u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return &u, nil
}

// ========== Users ==========

// CreateUser inserts u and fills its id and timestamps.
func (r *AuthRepository) CreateUser(ctx context.Context, u *auth.User) error {
	query := `
		INSERT INTO users (email, username, full_name, country, password_hash)
		VALUES (LOWER($1), $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query, u.Email, u.Username, u.FullName, u.Country, u.PasswordHash).
		Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	switch {
	case isUniqueViolation(err, "users_email_key"):
		return xerrors.New(xerrors.ErrDuplicateEntry, "An account with this email already exists")
	case isUniqueViolation(err, "users_username_key"):
		return xerrors.New(xerrors.ErrDuplicateEntry, "This username is already taken")
	case err != nil:
		return fmt.Errorf("failed to create user: %w", err)
	}
	u.Email = strings.ToLower(u.Email)
	return nil
}

func (r *AuthRepository) FindUserByEmail(ctx context.Context, email string) (*auth.User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = LOWER($1)`, email))
}

func (r *AuthRepository) FindUserByID(ctx context.Context, id string) (*auth.User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (r *AuthRepository) FindUserByUsername(ctx context.Context, username string) (*auth.User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username))
}

// UpdateProfile changes the non-empty fields of req.
func (r *AuthRepository) UpdateProfile(ctx context.Context, id string, req *auth.UpdateProfileRequest) (*auth.User, error) {
	query := `
		UPDATE users SET
			full_name  = COALESCE(NULLIF($2, ''), full_name),
			country    = COALESCE(NULLIF($3, ''), country),
			avatar_url = COALESCE(NULLIF($4, ''), avatar_url),
			updated_at = now()
		WHERE id = $1
		RETURNING ` + userColumns
	return scanUser(r.db.QueryRow(ctx, query, id, req.FullName, req.Country, req.AvatarURL))
}

// ========== Donors ==========

const donorSelect = `
	SELECT u.id, u.full_name, u.username, u.avatar_url, u.country,
	       COUNT(b.id) FILTER (WHERE b.is_donated) AS donation_count,
	       COUNT(b.id) AS listed_count
	FROM users u
	JOIN books b ON b.owner_id = u.id
`

// ListDonors returns users with at least one listed book, most generous first.
func (r *AuthRepository) ListDonors(ctx context.Context) ([]auth.Donor, error) {
	query := donorSelect + `
		GROUP BY u.id
		ORDER BY donation_count DESC, u.full_name
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list donors: %w", err)
	}
	defer rows.Close()

	donors := []auth.Donor{}
	for rows.Next() {
		var d auth.Donor
		if err := rows.Scan(&d.ID, &d.FullName, &d.Username, &d.AvatarURL, &d.Country,
			&d.DonationCount, &d.ListedCount); err != nil {
			return nil, fmt.Errorf("failed to scan donor: %w", err)
		}
		donors = append(donors, d)
	}
	return donors, rows.Err()
}

func (r *AuthRepository) FindDonor(ctx context.Context, id string) (*auth.Donor, error) {
	query := donorSelect + `
		WHERE u.id = $1
		GROUP BY u.id
	`
	var d auth.Donor
	err := r.db.QueryRow(ctx, query, id).Scan(&d.ID, &d.FullName, &d.Username, &d.AvatarURL, &d.Country,
		&d.DonationCount, &d.ListedCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.New(xerrors.ErrNotFound, "Donor not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find donor: %w", err)
	}
	return &d, nil
}

// ========== Sessions (session.Store) ==========

func (r *AuthRepository) CreateSession(ctx context.Context, s *session.SessionData) error {
	query := `
		INSERT INTO auth_sessions (id, user_id, access_jti, refresh_jti, ip_address, user_agent, login_at, last_activity_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.Exec(ctx, query, s.SessionID, s.UserID, s.AccessJTI, s.RefreshJTI,
		s.IPAddress, s.UserAgent, s.LoginAt, s.LastActivityAt, s.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (r *AuthRepository) FindSession(ctx context.Context, sessionID string) (*session.SessionData, error) {
	query := `
		SELECT s.id, s.user_id, u.email, s.access_jti, s.refresh_jti, s.ip_address, s.user_agent,
		       s.login_at, s.last_activity_at, s.expires_at, s.status = 'active'
		FROM auth_sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.id = $1
	`
	var s session.SessionData
	err := r.db.QueryRow(ctx, query, sessionID).Scan(&s.SessionID, &s.UserID, &s.Email, &s.AccessJTI,
		&s.RefreshJTI, &s.IPAddress, &s.UserAgent, &s.LoginAt, &s.LastActivityAt, &s.ExpiresAt, &s.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	return &s, nil
}

func (r *AuthRepository) UpdateSessionTokens(ctx context.Context, sessionID, accessJTI, refreshJTI string) error {
	query := `
		UPDATE auth_sessions
		SET access_jti = $2, refresh_jti = $3, last_activity_at = now()
		WHERE id = $1 AND status = 'active'
	`
	tag, err := r.db.Exec(ctx, query, sessionID, accessJTI, refreshJTI)
	if err != nil {
		return fmt.Errorf("failed to rotate session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrSessionExpired
	}
	return nil
}

func (r *AuthRepository) InvalidateSession(ctx context.Context, sessionID string) error {
	_, err := r.db.Exec(ctx, `UPDATE auth_sessions SET status = 'revoked' WHERE id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("failed to invalidate session: %w", err)
	}
	return nil
}
