package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgQuerier is the subset of *pgxpool.Pool used by PGStore.
type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGStore keeps hits in a Postgres table, one row per token.
type PGStore struct {
	db    pgQuerier
	close func()
}

// NewPGStore connects to dsn and creates the rate_limits table if needed.
func NewPGStore(ctx context.Context, dsn string) (*PGStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s := &PGStore{db: pool, close: pool.Close}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PGStore) initSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS rate_limits (
  token TEXT PRIMARY KEY,
  hits TIMESTAMPTZ[] NOT NULL DEFAULT '{}',
  updated_at TIMESTAMPTZ DEFAULT now()
);
`
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("init rate_limits schema: %w", err)
	}
	return nil
}

func (s *PGStore) Hits(ctx context.Context, token string) ([]time.Time, error) {
	var hits []time.Time
	err := s.db.QueryRow(ctx, "SELECT hits FROM rate_limits WHERE token=$1", token).Scan(&hits)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select hits: %w", err)
	}
	return hits, nil
}

func (s *PGStore) SetHits(ctx context.Context, token string, hits []time.Time) error {
	if hits == nil {
		hits = []time.Time{}
	}
	_, err := s.db.Exec(ctx, `
INSERT INTO rate_limits (token, hits, updated_at) VALUES ($1, $2, now())
ON CONFLICT (token) DO UPDATE SET hits = EXCLUDED.hits, updated_at = now()`,
		token, hits)
	if err != nil {
		return fmt.Errorf("upsert hits: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *PGStore) Close() {
	if s.close != nil {
		s.close()
	}
}
