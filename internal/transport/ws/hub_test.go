package ws

import (
	"sort"
	"testing"

	"github.com/labhelp/queue-service/internal/service"
)

type fakeConn struct {
	username string
	room     string
	sent     []Message
}

func (c *fakeConn) Send(msg Message) error { c.sent = append(c.sent, msg); return nil }
func (c *fakeConn) Close() error           { return nil }
func (c *fakeConn) Username() string       { return c.username }
func (c *fakeConn) Room() string           { return c.room }

func TestHub_UsernamesDistinct(t *testing.T) {
	h := NewHub()

	// carol holds two sockets in the same room
	c1 := &fakeConn{username: "carol", room: "lab1"}
	c2 := &fakeConn{username: "carol", room: "lab1"}
	c3 := &fakeConn{username: "sam", room: "lab1"}
	c4 := &fakeConn{username: "dave", room: "lab2"}
	for _, c := range []*fakeConn{c1, c2, c3, c4} {
		h.Add(c)
	}

	got := h.Usernames("lab1")
	sort.Strings(got)
	want := []string{"carol", "sam"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestHub_SendToReachesEverySocket(t *testing.T) {
	h := NewHub()
	c1 := &fakeConn{username: "carol", room: "lab1"}
	c2 := &fakeConn{username: "carol", room: "lab1"}
	c3 := &fakeConn{username: "sam", room: "lab1"}
	for _, c := range []*fakeConn{c1, c2, c3} {
		h.Add(c)
	}

	h.SendTo("lab1", "carol", Message{Type: TypeEdit})

	if len(c1.sent) != 1 || len(c2.sent) != 1 {
		t.Fatal("every socket of the identity should receive the message")
	}
	if len(c3.sent) != 0 {
		t.Fatal("other identities should not receive it")
	}
}

func TestHub_BroadcastIsRoomScoped(t *testing.T) {
	h := NewHub()
	c1 := &fakeConn{username: "carol", room: "lab1"}
	c2 := &fakeConn{username: "dave", room: "lab2"}
	h.Add(c1)
	h.Add(c2)

	h.Broadcast("lab1", Message{Type: TypeLocked, Payload: true})

	if len(c1.sent) != 1 {
		t.Fatal("lab1 socket should receive the broadcast")
	}
	if len(c2.sent) != 0 {
		t.Fatal("lab2 socket should not receive it")
	}
}

func TestHub_Remove(t *testing.T) {
	h := NewHub()
	c1 := &fakeConn{username: "carol", room: "lab1"}
	c2 := &fakeConn{username: "carol", room: "lab1"}
	h.Add(c1)
	h.Add(c2)

	h.Remove(c1)
	if got := h.Usernames("lab1"); len(got) != 1 {
		t.Fatalf("identity should survive while one socket remains, got %v", got)
	}

	h.Remove(c2)
	if got := h.Usernames("lab1"); len(got) != 0 {
		t.Fatalf("identity should vanish with its last socket, got %v", got)
	}
}

func TestHub_SendEdit(t *testing.T) {
	h := NewHub()
	c := &fakeConn{username: "carol", room: "lab1"}
	h.Add(c)

	env := service.EditEnvelope{DeletedUsernames: []string{"alice"}}
	h.SendEdit("lab1", "carol", env)

	if len(c.sent) != 1 {
		t.Fatal("edit should be delivered")
	}
	msg := c.sent[0]
	if msg.Type != TypeEdit || msg.ID != 0 {
		t.Fatalf("edits are pushed with id 0 and type edit, got %+v", msg)
	}
}
