// Package store persists bundles, profiles, orders and download tokens in Postgres.
package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	_ "github.com/jackc/pgx/v5/stdlib"
)

//go:embed schema.sql
var schema string

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("store: not found")
	// ErrStatusMismatch is returned when a conditional status update matched no row.
	ErrStatusMismatch = errors.New("store: status mismatch/conditional failed")
	// ErrDuplicate is returned on a unique constraint violation.
	ErrDuplicate = errors.New("store: duplicate")
	// ErrAssetUnavailable is returned when a bundle has no asset to hand out.
	ErrAssetUnavailable = errors.New("store: bundle asset unavailable")
)

// Store wraps the database handle.
type Store struct {
	db      *sqlx.DB
	nowFunc func() time.Time
}

// New returns a Store over an open handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db, nowFunc: time.Now}
}

// Connect opens a pgx-backed handle and pings it.
func Connect(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

// Migrate applies the schema. Every statement is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) now() time.Time {
	return s.nowFunc().UTC()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
