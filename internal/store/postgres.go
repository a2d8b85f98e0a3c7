package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/serroba/rate-limiter-go/internal/audit"
)

const createDenialsTable = `
	CREATE TABLE IF NOT EXISTS rate_limit_denials (
		id             UUID PRIMARY KEY,
		identity       TEXT        NOT NULL,
		quota_limit    BIGINT      NOT NULL,
		window_seconds BIGINT      NOT NULL,
		request_count  BIGINT      NOT NULL,
		source         TEXT        NOT NULL,
		client_ip      TEXT,
		user_agent     TEXT,
		denied_at      TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS rate_limit_denials_identity_idx
		ON rate_limit_denials (identity, denied_at DESC);
`

// PostgresStore is a PostgreSQL implementation of audit.Store.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed audit store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the denials table when it does not exist yet.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, createDenialsTable); err != nil {
		return fmt.Errorf("migrate rate_limit_denials: %w", err)
	}

	return nil
}

// SaveDenial inserts the event. Redelivered events with a known id are ignored.
func (p *PostgresStore) SaveDenial(ctx context.Context, event *audit.DenialEvent) error {
	query := `
		INSERT INTO rate_limit_denials
			(id, identity, quota_limit, window_seconds, request_count, source, client_ip, user_agent, denied_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`

	_, err := p.pool.Exec(ctx, query,
		event.ID,
		event.Identity,
		int64(event.Limit),
		int64(event.WindowSeconds),
		event.Count,
		event.Source,
		nullableString(event.ClientIP),
		nullableString(event.UserAgent),
		event.DeniedAt,
	)

	return err
}

// CountDenials returns how many denials were recorded for identity.
func (p *PostgresStore) CountDenials(ctx context.Context, identity string) (int64, error) {
	var count int64

	err := p.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM rate_limit_denials WHERE identity = $1`,
		identity,
	).Scan(&count)

	return count, err
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}

	return &s
}

var _ audit.Store = (*PostgresStore)(nil)
