// internal/repository/postgres/db.go
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"segmentbook-service/internal/domain/auth"
	wstypes "segmentbook-service/internal/domain/websocket"
	xerrors "segmentbook-service/internal/pkg/errors"
)

// DBTX is satisfied by both the pool and a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type DB struct {
	pool *pgxpool.Pool
}

func NewDB(pool *pgxpool.Pool) *DB {
	return &DB{pool: pool}
}

func (db *DB) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return db.pool.Begin(ctx)
}

func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

// LoadRow returns a subscribed table's row as the JSON the change triggers
// would have sent.
func (db *DB) LoadRow(ctx context.Context, table, id string) (json.RawMessage, error) {
	switch table {
	case wstypes.TableNotifications, wstypes.TableMessages, wstypes.TableDonationRequests:
	default:
		return nil, fmt.Errorf("table %q is not published", table)
	}

	var raw []byte
	err := db.pool.QueryRow(ctx, `SELECT row_to_json(t) FROM `+table+` t WHERE t.id = $1`, id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s row: %w", table, err)
	}
	return raw, nil
}

// isUniqueViolation reports a unique_violation, optionally on one constraint.
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

// nullable maps "" to SQL NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// summary builds an embedded user, or nil when the join found no one.
func summary(id, fullName, username, avatar string) *auth.UserSummary {
	if id == "" {
		return nil
	}
	return &auth.UserSummary{ID: id, FullName: fullName, Username: username, AvatarURL: avatar}
}
