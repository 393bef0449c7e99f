package state

import (
	"sort"
	"sync"

	"github.com/samber/lo"
)

// StaffDelta is the presence change broadcast to a room. At most one list is
// non-empty in common flows.
type StaffDelta struct {
	CheckedIn []string `json:"checked_in"`
	LoggedIn  []string `json:"logged_in"`
	Removed   []string `json:"removed"`
}

func emptyDelta() StaffDelta {
	return StaffDelta{CheckedIn: []string{}, LoggedIn: []string{}, Removed: []string{}}
}

type staffSet struct {
	confirmed   map[string]struct{}
	unconfirmed map[string]struct{}
}

// Presence is the per-room staff tracking machine:
// removed -> unconfirmed (log in) -> confirmed (check in) -> removed
// (check out). Every transition first force-removes the identity from all
// rooms, so an identity is staff-present in at most one room at a time.
type Presence struct {
	mu     sync.Mutex
	rooms  map[string]*staffSet
	notify func(room string, delta StaffDelta)
}

func NewPresence(rooms []string, notify func(room string, delta StaffDelta)) *Presence {
	p := &Presence{
		rooms:  make(map[string]*staffSet, len(rooms)),
		notify: notify,
	}
	for _, room := range rooms {
		p.rooms[room] = &staffSet{
			confirmed:   map[string]struct{}{},
			unconfirmed: map[string]struct{}{},
		}
	}
	return p
}

// removeFromAllRooms broadcasts the removal to every room, whether or not
// the identity was present there.
func (p *Presence) removeFromAllRooms(username string) {
	for room, set := range p.rooms {
		delete(set.unconfirmed, username)
		delete(set.confirmed, username)

		d := emptyDelta()
		d.Removed = []string{username}
		p.notify(room, d)
	}
}

func (p *Presence) LogIn(username, room string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	set, ok := p.rooms[room]
	if !ok {
		return
	}
	p.removeFromAllRooms(username)
	set.unconfirmed[username] = struct{}{}

	d := emptyDelta()
	d.LoggedIn = []string{username}
	p.notify(room, d)
}

func (p *Presence) CheckIn(username, room string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	set, ok := p.rooms[room]
	if !ok {
		return
	}
	p.removeFromAllRooms(username)
	set.confirmed[username] = struct{}{}

	d := emptyDelta()
	d.CheckedIn = []string{username}
	p.notify(room, d)
}

func (p *Presence) CheckOut(username, room string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.rooms[room]; !ok {
		return
	}
	p.removeFromAllRooms(username)
}

// IsConfirmed reports whether the identity is checked in to the room.
func (p *Presence) IsConfirmed(username, room string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	set, ok := p.rooms[room]
	if !ok {
		return false
	}
	_, ok = set.confirmed[username]
	return ok
}

// StaffList returns the room's confirmed and unconfirmed identities, sorted.
func (p *Presence) StaffList(room string) (confirmed, unconfirmed []string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	set, ok := p.rooms[room]
	if !ok {
		return []string{}, []string{}
	}
	confirmed = lo.Keys(set.confirmed)
	unconfirmed = lo.Keys(set.unconfirmed)
	sort.Strings(confirmed)
	sort.Strings(unconfirmed)
	return confirmed, unconfirmed
}
