package postgres

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/labhelp/queue-service/internal/domain"
)

const notifyChannel = "queue_entries_changes"

// Changefeed turns the entry table's notify trigger into a stream of
// domain.Change values. It holds its own connection: LISTEN pins a session,
// which must not come out of the shared pool.
type Changefeed struct {
	dsn string
	out chan domain.Change
}

func NewChangefeed(dsn string) *Changefeed {
	return &Changefeed{
		dsn: dsn,
		out: make(chan domain.Change, 64),
	}
}

func (f *Changefeed) Changes() <-chan domain.Change {
	return f.out
}

// Run listens until the context is cancelled, reconnecting with a short
// delay when the connection drops. Changes committed while disconnected are
// lost to the stream; callers re-prime their caches on restart instead.
func (f *Changefeed) Run(ctx context.Context) error {
	defer close(f.out)

	for {
		err := f.listen(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.Warn("changefeed disconnected, reconnecting", "err", err)

		select {
		case <-time.After(time.Second):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (f *Changefeed) listen(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, f.dsn)
	if err != nil {
		return err
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		return err
	}

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}

		var payload struct {
			Old *entryRow `json:"old"`
			New *entryRow `json:"new"`
		}
		if err := json.Unmarshal([]byte(n.Payload), &payload); err != nil {
			slog.Error("changefeed: bad notification payload", "err", err)
			continue
		}

		ch := domain.Change{Old: payload.Old.toEntry(), New: payload.New.toEntry()}
		select {
		case f.out <- ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// entryRow mirrors row_to_json output for queue_entries.
type entryRow struct {
	Username     string         `json:"username"`
	Room         string         `json:"room"`
	Type         string         `json:"type"`
	State        string         `json:"state"`
	Claimant     *string        `json:"claimant"`
	ClaimantName *string        `json:"claimant_name"`
	Data         map[string]any `json:"data"`
	DateAdded    time.Time      `json:"date_added"`
	LastModified time.Time      `json:"last_modified"`
}

func (r *entryRow) toEntry() *domain.Entry {
	if r == nil {
		return nil
	}
	e := &domain.Entry{
		Username:     r.Username,
		Room:         r.Room,
		Type:         r.Type,
		State:        r.State,
		Data:         r.Data,
		DateAdded:    r.DateAdded,
		LastModified: r.LastModified,
	}
	if r.Claimant != nil {
		e.Claimant = *r.Claimant
	}
	if r.ClaimantName != nil {
		e.ClaimantName = *r.ClaimantName
	}
	return e
}
