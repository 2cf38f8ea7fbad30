package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id         UUID PRIMARY KEY,
		email      TEXT NOT NULL UNIQUE,
		password   TEXT NOT NULL,
		username   TEXT NOT NULL,
		avatar_url TEXT NOT NULL DEFAULT '',
		phone      TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS users_username_idx ON users (lower(username))`,
	// the whole relationship collection is one versioned document
	`CREATE TABLE IF NOT EXISTS relationship_snapshot (
		id         SMALLINT PRIMARY KEY CHECK (id = 1),
		version    BIGINT NOT NULL,
		records    JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`INSERT INTO relationship_snapshot (id, version, records)
	 VALUES (1, 0, '[]'::jsonb)
	 ON CONFLICT (id) DO NOTHING`,
	`CREATE TABLE IF NOT EXISTS relationship_events (
		id              BIGSERIAL PRIMARY KEY,
		relationship_id UUID NOT NULL,
		op              TEXT NOT NULL,
		actor_id        UUID NOT NULL,
		peer_id         UUID NOT NULL,
		status          TEXT NOT NULL,
		version         BIGINT NOT NULL,
		occurred_at     TIMESTAMPTZ NOT NULL,
		recorded_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS relationship_events_rel_idx ON relationship_events (relationship_id)`,
}

// EnsureSchema creates the tables this service needs and seeds the empty
// relationship snapshot. It is safe to run on every start.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	return pgx.BeginTxFunc(ctx, pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, q := range schema {
			if _, err := tx.Exec(ctx, q); err != nil {
				return fmt.Errorf("failed to apply schema: %w", err)
			}
		}
		return nil
	})
}
