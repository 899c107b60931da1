package postgres

import (
	"context"
	"fmt"
)

// schema is the full DDL, idempotent so it can run on every startup.
const schema = `
CREATE TABLE IF NOT EXISTS auctions (
	id                   UUID PRIMARY KEY,
	title                TEXT NOT NULL,
	total_items          INT NOT NULL CHECK (total_items > 0),
	status               TEXT NOT NULL,
	current_round_number INT NOT NULL DEFAULT 0,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS rounds (
	id           UUID PRIMARY KEY,
	auction_id   UUID NOT NULL REFERENCES auctions(id) ON DELETE CASCADE,
	round_number INT NOT NULL CHECK (round_number >= 1),
	start_time   TIMESTAMPTZ NOT NULL,
	end_time     TIMESTAMPTZ NOT NULL,
	status       TEXT NOT NULL,
	UNIQUE (auction_id, round_number)
);

-- At most one active round per auction at any instant.
CREATE UNIQUE INDEX IF NOT EXISTS rounds_one_active_per_auction
	ON rounds (auction_id) WHERE status = 'active';

CREATE TABLE IF NOT EXISTS users (
	id             TEXT PRIMARY KEY,
	username       TEXT NOT NULL,
	wallet_address TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS wallets (
	user_id           TEXT PRIMARY KEY REFERENCES users(id),
	available_balance BIGINT NOT NULL DEFAULT 0 CHECK (available_balance >= 0),
	locked_balance    BIGINT NOT NULL DEFAULT 0 CHECK (locked_balance >= 0),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS bids (
	id         UUID PRIMARY KEY,
	auction_id UUID NOT NULL REFERENCES auctions(id),
	user_id    TEXT NOT NULL REFERENCES users(id),
	round_id   UUID NOT NULL REFERENCES rounds(id),
	amount     BIGINT NOT NULL CHECK (amount > 0),
	placed_at  TIMESTAMPTZ NOT NULL,
	seq        BIGSERIAL,
	status     TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS bids_eligible_ranked
	ON bids (auction_id, amount DESC, placed_at ASC, seq ASC)
	WHERE status IN ('active', 'outbid');

CREATE TABLE IF NOT EXISTS wallet_ledger (
	id              UUID PRIMARY KEY,
	user_id         TEXT NOT NULL REFERENCES users(id),
	available_delta BIGINT NOT NULL,
	locked_delta    BIGINT NOT NULL,
	reason          TEXT NOT NULL,
	auction_id      UUID,
	round_id        UUID,
	bid_id          UUID,
	idempotency_key TEXT,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS wallet_ledger_by_user ON wallet_ledger (user_id, created_at);

CREATE TABLE IF NOT EXISTS idempotency_keys (
	key        TEXT NOT NULL,
	scope      TEXT NOT NULL,
	status     INT NOT NULL DEFAULT 0,
	response   BYTEA,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (key, scope)
);
`

// Migrate ensures the schema exists. Safe to run concurrently with an
// already-migrated database.
func Migrate(ctx context.Context, pool Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	return nil
}
