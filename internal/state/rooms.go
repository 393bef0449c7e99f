// Package state holds the per-process projections of queue state: room
// locks, the entry cache, live sessions, and staff presence. Everything here
// is derived; the store is authoritative and the caches are rebuilt from its
// change stream.
package state

import (
	"sync"

	"github.com/labhelp/queue-service/internal/domain"
)

type Rooms struct {
	mu      sync.RWMutex
	locks   map[string]bool
	entries map[string]map[string]*domain.Entry // room -> username -> entry
}

func NewRooms(names []string) *Rooms {
	r := &Rooms{
		locks:   make(map[string]bool, len(names)),
		entries: make(map[string]map[string]*domain.Entry, len(names)),
	}
	for _, name := range names {
		r.locks[name] = false
		r.entries[name] = make(map[string]*domain.Entry)
	}
	return r
}

func (r *Rooms) Known(room string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.entries[room]
	return ok
}

func (r *Rooms) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	return names
}

func (r *Rooms) Locked(room string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.locks[room]
}

func (r *Rooms) SetLocked(room string, locked bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[room]; ok {
		r.locks[room] = locked
	}
}

func (r *Rooms) Entry(room, username string) *domain.Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.entries[room][username]
}

func (r *Rooms) PutEntry(e *domain.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m, ok := r.entries[e.Room]; ok {
		m[e.Username] = e
	}
}

// DropEntry removes and returns the cached entry, or nil if absent.
func (r *Rooms) DropEntry(room, username string) *domain.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.entries[room][username]
	delete(r.entries[room], username)
	return e
}
