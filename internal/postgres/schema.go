package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// The partial unique index on claimant is the at-most-one-claim invariant:
// the store, not the application, rejects a second concurrent claim.
const schema = `
CREATE TABLE IF NOT EXISTS queue_entries (
	username      text PRIMARY KEY,
	room          text NOT NULL,
	type          text NOT NULL,
	state         text NOT NULL DEFAULT 'unclaimed',
	claimant      text,
	claimant_name text,
	data          jsonb NOT NULL DEFAULT '{}'::jsonb,
	date_added    timestamptz NOT NULL DEFAULT now(),
	last_modified timestamptz NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS queue_entries_room_idx ON queue_entries (room);

CREATE UNIQUE INDEX IF NOT EXISTS queue_entries_one_claim_idx
	ON queue_entries (claimant) WHERE claimant IS NOT NULL;

CREATE OR REPLACE FUNCTION queue_entries_notify() RETURNS trigger AS $$
BEGIN
	PERFORM pg_notify('queue_entries_changes', json_build_object(
		'old', CASE WHEN TG_OP = 'INSERT' THEN NULL ELSE row_to_json(OLD) END,
		'new', CASE WHEN TG_OP = 'DELETE' THEN NULL ELSE row_to_json(NEW) END
	)::text);
	RETURN NULL;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS queue_entries_changes ON queue_entries;
CREATE TRIGGER queue_entries_changes
	AFTER INSERT OR UPDATE OR DELETE ON queue_entries
	FOR EACH ROW EXECUTE FUNCTION queue_entries_notify();
`

// EnsureSchema creates the entry table and its change-notification trigger.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, schema)
	return err
}
