package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/labhelp/queue-service/internal/auth"
	"github.com/labhelp/queue-service/internal/domain"
	"github.com/labhelp/queue-service/internal/postgres"
	"github.com/labhelp/queue-service/internal/state"
)

// EntryStore is the authoritative document store. Every mutating call
// carries its precondition into the store; a false result means the
// precondition did not hold and nothing changed.
type EntryStore interface {
	Get(ctx context.Context, username string) (*domain.Entry, error)
	ListRoom(ctx context.Context, room string, f postgres.Filter) ([]domain.Entry, error)
	ListAll(ctx context.Context) ([]domain.Entry, error)
	Upsert(ctx context.Context, username, room, typ string, data map[string]any) error
	Claim(ctx context.Context, target, claimant, claimantName string) (bool, error)
	Disclaim(ctx context.Context, target, claimant string) (bool, error)
	Remove(ctx context.Context, target, actor string) (bool, error)
	DeleteIfClaimedBy(ctx context.Context, target, claimant string) (bool, error)
	ClearRoom(ctx context.Context, room string) error
}

// CourseAPI is the external submission service.
type CourseAPI interface {
	MyGroup(ctx context.Context, assignment domain.Assignment, username string) ([]string, error)
	Submit(ctx context.Context, assignment domain.Assignment, member, claimant string) error
}

type QueueService struct {
	store    EntryStore
	course   CourseAPI
	rooms    *state.Rooms
	sessions *state.Sessions
	presence *state.Presence

	checkInRequired bool
	callTimeout     time.Duration

	notifyLocked func(room string, locked bool)
}

func NewQueueService(
	store EntryStore,
	course CourseAPI,
	rooms *state.Rooms,
	sessions *state.Sessions,
	presence *state.Presence,
	checkInRequired bool,
	callTimeout time.Duration,
	notifyLocked func(room string, locked bool),
) *QueueService {
	return &QueueService{
		store:           store,
		course:          course,
		rooms:           rooms,
		sessions:        sessions,
		presence:        presence,
		checkInRequired: checkInRequired,
		callTimeout:     callTimeout,
		notifyLocked:    notifyLocked,
	}
}

// Prime warm-loads the entry cache and the claims table from a full scan,
// before the changefeed starts delivering deltas.
func (s *QueueService) Prime(ctx context.Context) error {
	entries, err := s.store.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("entryStore.ListAll: %w", err)
	}
	for i := range entries {
		e := entries[i]
		if !s.rooms.Known(e.Room) {
			slog.Warn("entry in unconfigured room, not cached", "username", e.Username, "room", e.Room)
			continue
		}
		s.rooms.PutEntry(&e)
		if e.Claimant != "" {
			s.sessions.PrimeClaim(e.Claimant, e.Username)
		}
	}
	return nil
}

// Add upserts the caller's entry. A locked room rejects the add outright;
// this is the one failure the protocol reports explicitly.
func (s *QueueService) Add(ctx context.Context, sess *domain.Session, room, typ string, data map[string]any) (bool, error) {
	if s.rooms.Locked(room) {
		return false, nil
	}
	if !domain.KnownType(typ) {
		return false, domain.ErrUnknownType
	}

	if err := s.store.Upsert(ctx, sess.Username, room, typ, domain.DataSkeleton(data)); err != nil {
		return false, fmt.Errorf("entryStore.Upsert: %w", err)
	}
	return true, nil
}

type actionFunc func(ctx context.Context, s *QueueService, sess *domain.Session, e *domain.Entry) error

// actionTable dispatches (entry type, action name) to a handler. Checkoff
// supports the two terminal grading actions on top of the shared set.
var actionTable = map[string]map[string]actionFunc{
	domain.TypeHelp: {
		domain.ActionClaim:    doClaim,
		domain.ActionDisclaim: doDisclaim,
		domain.ActionRemove:   doRemove,
	},
	domain.TypeCheckoff: {
		domain.ActionClaim:          doClaim,
		domain.ActionDisclaim:       doDisclaim,
		domain.ActionRemove:         doRemove,
		domain.ActionSingleCheckoff: doSingleCheckoff,
		domain.ActionGroupCheckoff:  doGroupCheckoff,
	},
}

// Action runs a named action against the target user's entry. Unmet
// preconditions and missing capabilities resolve as silent no-ops: the
// caller learns about them from unchanged state, not from an error.
func (s *QueueService) Action(ctx context.Context, sess *domain.Session, room, action, target string) error {
	e, err := s.store.Get(ctx, target)
	if err != nil {
		if errors.Is(err, domain.ErrEntryNotFound) {
			return nil
		}
		return fmt.Errorf("entryStore.Get: %w", err)
	}
	if e.Room != room {
		return nil
	}

	fn, ok := actionTable[e.Type][action]
	if !ok {
		return domain.ErrUnknownAction
	}
	return fn(ctx, s, sess, e)
}

func doClaim(ctx context.Context, s *QueueService, sess *domain.Session, e *domain.Entry) error {
	if !sess.Permissions.Has(domain.PermClaim) {
		return nil
	}
	if s.checkInRequired && !s.sessions.Confirmed(sess.Username) {
		return nil
	}

	claimed, err := s.store.Claim(ctx, e.Username, sess.Username, sess.RealName)
	if err != nil {
		return fmt.Errorf("entryStore.Claim: %w", err)
	}
	if !claimed {
		slog.Debug("claim lost or entry already claimed", "target", e.Username, "claimant", sess.Username)
	}
	return nil
}

func doDisclaim(ctx context.Context, s *QueueService, sess *domain.Session, e *domain.Entry) error {
	if !sess.Permissions.Has(domain.PermClaim) {
		return nil
	}
	if _, err := s.store.Disclaim(ctx, e.Username, sess.Username); err != nil {
		return fmt.Errorf("entryStore.Disclaim: %w", err)
	}
	return nil
}

// doRemove is capability-independent: the entry's owner and its claimant may
// always remove it.
func doRemove(ctx context.Context, s *QueueService, sess *domain.Session, e *domain.Entry) error {
	if _, err := s.store.Remove(ctx, e.Username, sess.Username); err != nil {
		return fmt.Errorf("entryStore.Remove: %w", err)
	}
	return nil
}

func doSingleCheckoff(ctx context.Context, s *QueueService, sess *domain.Session, e *domain.Entry) error {
	if !sess.Permissions.Has(domain.PermCheckoff) {
		return nil
	}
	assignment, ok := e.Assignment()
	if !ok {
		slog.Warn("checkoff entry without assignment reference", "target", e.Username)
		return nil
	}

	s.submitOne(ctx, assignment, e.Username, sess.Username)
	return s.finishCheckoff(ctx, e, sess)
}

func doGroupCheckoff(ctx context.Context, s *QueueService, sess *domain.Session, e *domain.Entry) error {
	if !sess.Permissions.Has(domain.PermCheckoff) {
		return nil
	}
	assignment, ok := e.Assignment()
	if !ok {
		slog.Warn("checkoff entry without assignment reference", "target", e.Username)
		return nil
	}

	for _, member := range s.group(ctx, e) {
		s.submitOne(ctx, assignment, member, sess.Username)
	}
	return s.finishCheckoff(ctx, e, sess)
}

// submitOne is fire-and-forget relative to the entry's deletion: a failed
// submission is logged per member and never blocks the checkoff.
func (s *QueueService) submitOne(ctx context.Context, assignment domain.Assignment, member, claimant string) {
	ctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	if err := s.course.Submit(ctx, assignment, member, claimant); err != nil {
		slog.Error("checkoff submission failed, member needs manual credit",
			"member", member, "claimant", claimant, "assignment", assignment.Name, "err", err)
	}
}

// finishCheckoff deletes the entry behind the same guard as every terminal
// transition: only while the caller still holds the claim.
func (s *QueueService) finishCheckoff(ctx context.Context, e *domain.Entry, sess *domain.Session) error {
	if _, err := s.store.DeleteIfClaimedBy(ctx, e.Username, sess.Username); err != nil {
		return fmt.Errorf("entryStore.DeleteIfClaimedBy: %w", err)
	}
	return nil
}

// group resolves the collaborator group of a checkoff entry, degrading to
// the requester alone when the lookup fails or times out.
func (s *QueueService) group(ctx context.Context, e *domain.Entry) []string {
	assignment, ok := e.Assignment()
	if !ok {
		return []string{e.Username}
	}

	ctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	members, err := s.course.MyGroup(ctx, assignment, e.Username)
	if err != nil || len(members) == 0 {
		slog.Warn("group lookup failed, falling back to single member",
			"username", e.Username, "err", err)
		return []string{e.Username}
	}
	return members
}

// GroupMembers resolves the rendered group of an entry; nil for entries
// whose group is just the requester (Render fills that in).
func (s *QueueService) GroupMembers(ctx context.Context, e *domain.Entry) []domain.GroupMember {
	if e.Type != domain.TypeCheckoff {
		return nil
	}
	usernames := s.group(ctx, e)
	members := make([]domain.GroupMember, 0, len(usernames))
	for _, u := range usernames {
		members = append(members, domain.GroupMember{Username: u, RealName: s.sessions.RealName(u)})
	}
	return members
}

// Render produces the viewer-specific record, fetching the group only when
// the viewer may actually see it.
func (s *QueueService) Render(ctx context.Context, e *domain.Entry, v domain.Viewer) domain.Rendered {
	var group []domain.GroupMember
	if e.VisibleTo(v) {
		group = s.GroupMembers(ctx, e)
	}
	return e.Render(v, s.sessions, group)
}

// RenderWithGroup renders against an already-resolved group, so a single
// change fans out to many viewers with one group lookup.
func (s *QueueService) RenderWithGroup(e *domain.Entry, group []domain.GroupMember, v domain.Viewer) domain.Rendered {
	return e.Render(v, s.sessions, group)
}

// GetAll returns the room's entries, oldest first, rendered for the caller.
func (s *QueueService) GetAll(ctx context.Context, sess *domain.Session, room string, f postgres.Filter) ([]domain.Rendered, error) {
	entries, err := s.store.ListRoom(ctx, room, f)
	if err != nil {
		return nil, fmt.Errorf("entryStore.ListRoom: %w", err)
	}

	viewer := sess.Viewer()
	rendered := make([]domain.Rendered, 0, len(entries))
	for i := range entries {
		rendered = append(rendered, s.Render(ctx, &entries[i], viewer))
	}
	return rendered, nil
}

func (s *QueueService) Locked(room string) bool {
	return s.rooms.Locked(room)
}

// SetLocked flips the room lock and broadcasts the new state. Without the
// lock capability it is a silent no-op (the command still acks).
func (s *QueueService) SetLocked(sess *domain.Session, room string, locked bool) {
	if !sess.Permissions.Has(domain.PermLock) {
		return
	}
	s.rooms.SetLocked(room, locked)
	s.notifyLocked(room, locked)
}

func (s *QueueService) Clear(ctx context.Context, sess *domain.Session, room string) error {
	if !sess.Permissions.Has(domain.PermClear) {
		return nil
	}
	if err := s.store.ClearRoom(ctx, room); err != nil {
		return fmt.Errorf("entryStore.ClearRoom: %w", err)
	}
	return nil
}

func (s *QueueService) StaffList(room string) (confirmed, unconfirmed []string) {
	return s.presence.StaffList(room)
}

// PlaceStaff positions a freshly authenticated staff member in the room's
// presence machine. auto_check_in holders go straight to confirmed.
func (s *QueueService) PlaceStaff(sess *domain.Session, room string) {
	if !auth.IsStaff(sess.Role) {
		return
	}
	if sess.Permissions.Has(domain.PermAutoCheckIn) {
		s.CheckIn(sess.Username, room)
	} else if !s.presence.IsConfirmed(sess.Username, room) {
		s.presence.LogIn(sess.Username, room)
	}
}

// CheckIn and CheckOut act on the target named in the command, gated on the
// target being staff.
func (s *QueueService) CheckIn(target, room string) {
	role, ok := s.sessions.Role(target)
	if !ok || !auth.IsStaff(role) {
		return
	}
	s.presence.CheckIn(target, room)
	s.sessions.SetConfirmed(target, true)
}

func (s *QueueService) CheckOut(target, room string) {
	role, ok := s.sessions.Role(target)
	if !ok || !auth.IsStaff(role) {
		return
	}
	s.presence.CheckOut(target, room)
	s.sessions.SetConfirmed(target, false)
}
