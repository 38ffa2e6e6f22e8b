package persist

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS blueghost_documents (
    prefix     TEXT        NOT NULL,
    name       TEXT        NOT NULL,
    body       TEXT        NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (prefix, name)
)`

// Postgres stores documents in one table keyed by (prefix, name). Bodies
// are TEXT, not JSONB, so the bytes the digest covers come back unchanged.
type Postgres struct {
	pool   *pgxpool.Pool
	prefix string
}

// OpenPostgres connects with dsn and creates the table if needed.
func OpenPostgres(ctx context.Context, dsn, prefix string) (*Postgres, error) {
	if dsn == "" {
		return nil, fmt.Errorf("open postgres: dsn is required")
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	cfg.MaxConns = 4
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create postgres schema: %w", err)
	}
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Postgres{pool: pool, prefix: prefix}, nil
}

// Load implements Backend.
func (p *Postgres) Load(ctx context.Context, name string) ([]byte, error) {
	var body []byte
	err := p.pool.QueryRow(ctx,
		`SELECT body FROM blueghost_documents WHERE prefix = $1 AND name = $2`,
		p.prefix, name,
	).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoDocument
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	return body, nil
}

// Save implements Backend.
func (p *Postgres) Save(ctx context.Context, name string, data []byte) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO blueghost_documents (prefix, name, body, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (prefix, name) DO UPDATE SET body = EXCLUDED.body, updated_at = now()`,
		p.prefix, name, string(data),
	)
	if err != nil {
		return fmt.Errorf("save %s: %w", name, err)
	}
	return nil
}

// Close implements Backend.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
