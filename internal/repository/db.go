package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPool creates and pings a new pgx connection pool.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS couriers (
	id             BIGSERIAL PRIMARY KEY,
	name           TEXT NOT NULL,
	status         TEXT NOT NULL DEFAULT 'available',
	transport_type TEXT NOT NULL DEFAULT 'on_foot',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS dispatch_outcomes (
	order_id       TEXT PRIMARY KEY,
	state          TEXT NOT NULL,
	candidates     BIGINT[] NOT NULL,
	offers_made    INT NOT NULL,
	accepted_by    BIGINT,
	failure_reason TEXT,
	started_at     TIMESTAMPTZ NOT NULL,
	finished_at    TIMESTAMPTZ NOT NULL,
	event_id       UUID NOT NULL
);

CREATE INDEX IF NOT EXISTS dispatch_outcomes_accepted_by_idx ON dispatch_outcomes (accepted_by);

CREATE TABLE IF NOT EXISTS order_status_history (
	event_id    UUID PRIMARY KEY,
	order_id    TEXT NOT NULL,
	status      TEXT NOT NULL,
	note        TEXT NOT NULL DEFAULT '',
	courier_id  BIGINT,
	occurred_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS order_status_history_order_idx ON order_status_history (order_id, occurred_at);
`

// EnsureSchema creates the tables used by the archive and the courier pool.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
