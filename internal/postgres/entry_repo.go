package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/labhelp/queue-service/internal/domain"
)

// EntryRepository compiles every entry transition to a single conditional
// statement; the WHERE clause is the transition's precondition, so racing
// edits are arbitrated by the store and losers observe rows affected == 0.
type EntryRepository struct {
	db *pgxpool.Pool
}

func NewEntryRepository(db *pgxpool.Pool) *EntryRepository {
	return &EntryRepository{db: db}
}

const entryColumns = `username, room, type, state, claimant, claimant_name, data, date_added, last_modified`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*domain.Entry, error) {
	var e domain.Entry
	var claimant, claimantName *string
	if err := row.Scan(&e.Username, &e.Room, &e.Type, &e.State,
		&claimant, &claimantName, &e.Data, &e.DateAdded, &e.LastModified); err != nil {
		return nil, err
	}
	if claimant != nil {
		e.Claimant = *claimant
	}
	if claimantName != nil {
		e.ClaimantName = *claimantName
	}
	return &e, nil
}

func (r *EntryRepository) Get(ctx context.Context, username string) (*domain.Entry, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+entryColumns+` FROM queue_entries WHERE username=$1`, username)
	e, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrEntryNotFound
		}
		return nil, err
	}
	return e, nil
}

// Filter narrows ListRoom; zero fields match everything.
type Filter struct {
	Type  string
	State string
}

func (r *EntryRepository) ListRoom(ctx context.Context, room string, f Filter) ([]domain.Entry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+entryColumns+`
		FROM queue_entries
		WHERE room = $1
		  AND ($2 = '' OR type = $2)
		  AND ($3 = '' OR state = $3)
		ORDER BY date_added ASC`,
		room, f.Type, f.State)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectEntries(rows)
}

// ListAll is the startup warm-load of the entry cache and claims table.
func (r *EntryRepository) ListAll(ctx context.Context) ([]domain.Entry, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+entryColumns+` FROM queue_entries ORDER BY date_added ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectEntries(rows)
}

func collectEntries(rows pgx.Rows) ([]domain.Entry, error) {
	var list []domain.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *e)
	}
	return list, rows.Err()
}

// Upsert inserts a fresh unclaimed entry, or merges into the existing one.
// The merge never touches date_added, keeps the current claim state for a
// same-room re-add, and strips the claimant when the room changed so an
// entry cannot carry a stale cross-room claim.
func (r *EntryRepository) Upsert(ctx context.Context, username, room, typ string, data map[string]any) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO queue_entries (username, room, type, data)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (username) DO UPDATE SET
			room = EXCLUDED.room,
			type = EXCLUDED.type,
			data = queue_entries.data || EXCLUDED.data,
			state = CASE WHEN queue_entries.room = EXCLUDED.room
				THEN queue_entries.state ELSE 'unclaimed' END,
			claimant = CASE WHEN queue_entries.room = EXCLUDED.room
				THEN queue_entries.claimant ELSE NULL END,
			claimant_name = CASE WHEN queue_entries.room = EXCLUDED.room
				THEN queue_entries.claimant_name ELSE NULL END,
			last_modified = now()`,
		username, room, typ, data)
	return err
}

// Claim succeeds only if the target is unclaimed and the claimant holds no
// other claim. The second condition is the partial unique index: a racing
// second claim surfaces as a unique violation and is reported as a no-op.
func (r *EntryRepository) Claim(ctx context.Context, target, claimant, claimantName string) (bool, error) {
	cmd, err := r.db.Exec(ctx, `
		UPDATE queue_entries
		SET state='claimed', claimant=$2, claimant_name=$3, last_modified=now()
		WHERE username=$1 AND claimant IS NULL`,
		target, claimant, claimantName)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return false, nil
		}
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *EntryRepository) Disclaim(ctx context.Context, target, claimant string) (bool, error) {
	cmd, err := r.db.Exec(ctx, `
		UPDATE queue_entries
		SET state='unclaimed', claimant=NULL, claimant_name=NULL, last_modified=now()
		WHERE username=$1 AND claimant=$2`,
		target, claimant)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

// Remove deletes the entry when the actor is its owner or its claimant.
func (r *EntryRepository) Remove(ctx context.Context, target, actor string) (bool, error) {
	cmd, err := r.db.Exec(ctx, `
		DELETE FROM queue_entries
		WHERE username=$1 AND (claimant=$2 OR username=$2)`,
		target, actor)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

// DeleteIfClaimedBy is the checkoff terminal delete: it only fires while the
// caller still holds the claim.
func (r *EntryRepository) DeleteIfClaimedBy(ctx context.Context, target, claimant string) (bool, error) {
	cmd, err := r.db.Exec(ctx, `
		DELETE FROM queue_entries WHERE username=$1 AND claimant=$2`,
		target, claimant)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *EntryRepository) ClearRoom(ctx context.Context, room string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM queue_entries WHERE room=$1`, room)
	return err
}
