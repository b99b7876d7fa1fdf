// Package postgres is the PostgreSQL document backend, used by the HTTP
// server when a database URL is configured.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sadopc/sitelog/internal/store"
)

// migrations are applied in order and recorded in schema_migrations.
var migrations = []struct {
	version string
	ddl     string
}{
	{"001_documents", `
		CREATE TABLE IF NOT EXISTS documents (
			key         text PRIMARY KEY,
			type        text NOT NULL,
			body        jsonb NOT NULL,
			version     bigint NOT NULL DEFAULT 1,
			created_at  timestamptz NOT NULL DEFAULT now(),
			updated_at  timestamptz NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS idx_documents_type ON documents(type, created_at);
		CREATE INDEX IF NOT EXISTS idx_documents_project ON documents(type, (body->>'projectId'));
		CREATE INDEX IF NOT EXISTS idx_documents_leader ON documents(type, (body->>'leaderId'));
	`},
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is a store.Backend on a pgx pool.
type Store struct {
	pool *pgxpool.Pool
	docs
}

var _ store.Backend = (*Store)(nil)

// Open connects to databaseURL and applies pending migrations.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	return New(ctx, pool)
}

// New wraps an existing pool and applies pending migrations.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	s := &Store{pool: pool, docs: docs{q: pool}}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version text PRIMARY KEY,
			applied_at timestamptz NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	for _, m := range migrations {
		var exists bool
		err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version=$1)`, m.version).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", m.version, err)
		}
		if exists {
			continue
		}
		if _, err := s.pool.Exec(ctx, m.ddl); err != nil {
			return fmt.Errorf("apply migration %s: %w", m.version, err)
		}
		if _, err := s.pool.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, m.version); err != nil {
			return fmt.Errorf("record migration %s: %w", m.version, err)
		}
	}
	return nil
}

func (s *Store) WithTx(ctx context.Context, fn func(store.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return classify("begin tx", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&pgTx{docs: docs{q: tx}}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return classify("commit tx", err)
	}
	return nil
}

type pgTx struct {
	docs
}

func (t *pgTx) Lock(ctx context.Context, key string) error {
	var one int
	err := t.q.QueryRow(ctx, `SELECT 1 FROM documents WHERE key = $1 FOR UPDATE`, key).Scan(&one)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return classify("lock "+key, err)
	}
	return nil
}

// classify maps pgx errors onto the store's sentinel errors.
func classify(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, store.ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23505":
			return fmt.Errorf("%s: %w", op, store.ErrDuplicateKey)
		case pgErr.Code == "40001", pgErr.Code == "40P01", pgErr.Code == "57P01",
			len(pgErr.Code) == 5 && pgErr.Code[:2] == "08":
			return fmt.Errorf("%s: %w: %v", op, store.ErrUnavailable, err)
		}
	}
	if pgconn.Timeout(err) || pgconn.SafeToRetry(err) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %v", op, store.ErrUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
