package state

import (
	"testing"

	"github.com/labhelp/queue-service/internal/domain"
)

func TestRooms_KnownAndLocks(t *testing.T) {
	r := NewRooms([]string{"lab1", "lab2"})

	if !r.Known("lab1") || r.Known("nope") {
		t.Fatal("Known mismatch")
	}
	if r.Locked("lab1") {
		t.Fatal("rooms start unlocked")
	}

	r.SetLocked("lab1", true)
	if !r.Locked("lab1") || r.Locked("lab2") {
		t.Fatal("lock should be room-scoped")
	}

	// unknown room: no-op, and never reported locked
	r.SetLocked("nope", true)
	if r.Locked("nope") {
		t.Fatal("unknown room cannot be locked")
	}
}

func TestRooms_EntryCache(t *testing.T) {
	r := NewRooms([]string{"lab1"})
	e := &domain.Entry{Username: "alice", Room: "lab1", Type: domain.TypeHelp}

	r.PutEntry(e)
	if got := r.Entry("lab1", "alice"); got != e {
		t.Fatal("cached entry missing")
	}

	dropped := r.DropEntry("lab1", "alice")
	if dropped != e {
		t.Fatal("drop should return the cached entry")
	}
	if r.Entry("lab1", "alice") != nil {
		t.Fatal("entry should be gone after drop")
	}
	if r.DropEntry("lab1", "alice") != nil {
		t.Fatal("second drop should return nil")
	}
}
