package ws

import (
	"sync"

	"github.com/samber/lo"

	"github.com/labhelp/queue-service/internal/service"
)

type Conn interface {
	Send(msg Message) error
	Close() error
	Username() string
	Room() string
}

// Hub indexes live connections by room and identity. One identity may hold
// several sockets in the same room; a rendering computed for the identity
// goes to all of them.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[string]map[Conn]struct{} // room -> username -> conns
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[string]map[Conn]struct{})}
}

func (h *Hub) Add(c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	users, ok := h.rooms[c.Room()]
	if !ok {
		users = make(map[string]map[Conn]struct{})
		h.rooms[c.Room()] = users
	}
	conns, ok := users[c.Username()]
	if !ok {
		conns = make(map[Conn]struct{})
		users[c.Username()] = conns
	}
	conns[c] = struct{}{}
}

func (h *Hub) Remove(c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	users, ok := h.rooms[c.Room()]
	if !ok {
		return
	}
	if conns, ok := users[c.Username()]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(users, c.Username())
		}
	}
	if len(users) == 0 {
		delete(h.rooms, c.Room())
	}
}

// Usernames lists the distinct identities currently connected to the room.
func (h *Hub) Usernames(room string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return lo.Keys(h.rooms[room])
}

// SendTo delivers to every socket the identity holds in the room.
func (h *Hub) SendTo(room, username string, msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.rooms[room][username] {
		_ = c.Send(msg) // best-effort, per socket
	}
}

func (h *Hub) Broadcast(room string, msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, conns := range h.rooms[room] {
		for c := range conns {
			_ = c.Send(msg)
		}
	}
}

// SendEdit implements service.Fanout.
func (h *Hub) SendEdit(room, username string, env service.EditEnvelope) {
	h.SendTo(room, username, Message{Type: TypeEdit, Payload: env})
}
