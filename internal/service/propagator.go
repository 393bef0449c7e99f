package service

import (
	"context"
	"log/slog"

	"github.com/labhelp/queue-service/internal/domain"
	"github.com/labhelp/queue-service/internal/state"
)

// EditEnvelope is the wire shape every entry change shares; unused lists
// stay empty, never null.
type EditEnvelope struct {
	AddedEntries     []domain.Rendered `json:"added_entries"`
	EditedEntries    []domain.Rendered `json:"edited_entries"`
	DeletedUsernames []string          `json:"deleted_usernames"`
}

func emptyEnvelope() EditEnvelope {
	return EditEnvelope{
		AddedEntries:     []domain.Rendered{},
		EditedEntries:    []domain.Rendered{},
		DeletedUsernames: []string{},
	}
}

// Fanout delivers one rendering to every socket an identity holds open in a
// room. Usernames lists the distinct online identities.
type Fanout interface {
	Usernames(room string) []string
	SendEdit(room, username string, env EditEnvelope)
}

// Propagator consumes the store's change stream and turns each change into
// per-viewer envelopes. It also maintains the room-unscoped claims table by
// watching claimant transitions on every change.
type Propagator struct {
	changes  <-chan domain.Change
	rooms    *state.Rooms
	sessions *state.Sessions
	svc      *QueueService
	fan      Fanout
}

func NewPropagator(changes <-chan domain.Change, rooms *state.Rooms, sessions *state.Sessions, svc *QueueService, fan Fanout) *Propagator {
	return &Propagator{
		changes:  changes,
		rooms:    rooms,
		sessions: sessions,
		svc:      svc,
		fan:      fan,
	}
}

func (p *Propagator) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ch, ok := <-p.changes:
			if !ok {
				return
			}
			p.Apply(ctx, ch)
		}
	}
}

// Apply reconciles one change into the local index and fans the rendered
// delta out to the affected room.
func (p *Propagator) Apply(ctx context.Context, ch domain.Change) {
	p.trackClaims(ch)

	switch {
	case ch.New == nil && ch.Old == nil:
		return
	case ch.New == nil:
		p.applyDelete(ch.Old)
	case ch.Old == nil:
		p.applyInsert(ctx, ch.New)
	case ch.Old.Room != ch.New.Room:
		// a cross-room re-add leaves one room and enters another
		p.applyDelete(ch.Old)
		p.applyInsert(ctx, ch.New)
	default:
		p.applyUpdate(ctx, ch.New)
	}
}

func (p *Propagator) trackClaims(ch domain.Change) {
	if ch.Old != nil && ch.Old.Claimant != "" {
		p.sessions.RemoveClaim(ch.Old.Claimant, ch.Old.Username)
	}
	if ch.New != nil && ch.New.Claimant != "" {
		p.sessions.AddClaim(ch.New.Claimant, ch.New.Username)
	}
}

func (p *Propagator) applyDelete(old *domain.Entry) {
	e := p.rooms.DropEntry(old.Room, old.Username)
	if e == nil {
		e = old
	}

	p.fanout(old.Room, func(v domain.Viewer) EditEnvelope {
		name := e.Username
		if !e.VisibleTo(v) {
			name = domain.HashUsername(name)
		}
		env := emptyEnvelope()
		env.DeletedUsernames = []string{name}
		return env
	})
}

func (p *Propagator) applyInsert(ctx context.Context, e *domain.Entry) {
	if !p.rooms.Known(e.Room) {
		slog.Warn("change for unconfigured room dropped", "room", e.Room, "username", e.Username)
		return
	}
	p.rooms.PutEntry(e)

	group := p.svc.GroupMembers(ctx, e)
	p.fanout(e.Room, func(v domain.Viewer) EditEnvelope {
		env := emptyEnvelope()
		env.AddedEntries = []domain.Rendered{p.svc.RenderWithGroup(e, group, v)}
		return env
	})
}

func (p *Propagator) applyUpdate(ctx context.Context, e *domain.Entry) {
	if !p.rooms.Known(e.Room) {
		slog.Warn("change for unconfigured room dropped", "room", e.Room, "username", e.Username)
		return
	}
	p.rooms.PutEntry(e)

	group := p.svc.GroupMembers(ctx, e)
	p.fanout(e.Room, func(v domain.Viewer) EditEnvelope {
		env := emptyEnvelope()
		env.EditedEntries = []domain.Rendered{p.svc.RenderWithGroup(e, group, v)}
		return env
	})
}

// fanout renders once per distinct online identity and delivers that
// rendering to every socket the identity holds.
func (p *Propagator) fanout(room string, build func(v domain.Viewer) EditEnvelope) {
	for _, username := range p.fan.Usernames(room) {
		sess := p.sessions.Get(username)
		if sess == nil {
			continue
		}
		p.fan.SendEdit(room, username, build(sess.Viewer()))
	}
}
