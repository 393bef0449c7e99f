package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/labhelp/queue-service/internal/auth"
	"github.com/labhelp/queue-service/internal/domain"
	"github.com/labhelp/queue-service/internal/postgres"
	"github.com/labhelp/queue-service/internal/service"
	"github.com/labhelp/queue-service/internal/state"
)

// Identity validates credential proof against the external identity service.
type Identity interface {
	Validate(ctx context.Context, proof map[string]string) (*domain.Session, error)
}

type Server struct {
	upgrader websocket.Upgrader
	hub      *Hub
	queueSvc *service.QueueService
	identity Identity
	signer   *auth.TokenSigner
	rooms    *state.Rooms
	sessions *state.Sessions

	authTimeout time.Duration
	pingEvery   time.Duration
}

func NewServer(
	hub *Hub,
	queueSvc *service.QueueService,
	identity Identity,
	signer *auth.TokenSigner,
	rooms *state.Rooms,
	sessions *state.Sessions,
	authTimeout time.Duration,
) *Server {
	return &Server{
		hub:      hub,
		queueSvc: queueSvc,
		identity: identity,
		signer:   signer,
		rooms:    rooms,
		sessions: sessions,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		authTimeout: authTimeout,
		pingEvery:   15 * time.Second,
	}
}

// WS endpoint: GET /ws. The connection is anonymous until an authenticate
// command succeeds; every other command before that is ignored.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws upgrade failed", "err", err)
		return
	}

	c := newWsConn(conn)
	slog.Debug("socket connected", "conn", c.id)

	go s.writeLoop(r.Context(), c)
	s.readLoop(r.Context(), c)

	if c.bound() {
		s.hub.Remove(c)
	}
	if err := c.Close(); err != nil {
		slog.Debug("ws close failed", "conn", c.id, "err", err)
	}
	slog.Debug("socket disconnected", "conn", c.id)
}

func (s *Server) readLoop(ctx context.Context, c *wsConn) {
	defer func() { _ = c.Close() }()

	c.conn.SetReadLimit(1 << 20)
	c.conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		if msg.Type == TypeAuthenticate {
			// synchronous: nothing else is valid until the session exists
			s.handleAuthenticate(ctx, c, msg)
			continue
		}
		if !c.bound() {
			continue
		}

		// commands run as independent tasks; replies are serialized by the
		// connection's send lock
		go s.handleCommand(ctx, c, msg)
	}
}

func (s *Server) writeLoop(ctx context.Context, c *wsConn) {
	ticker := time.NewTicker(s.pingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
		case <-ctx.Done():
			return
		case <-c.closed:
			return
		}
	}
}

func (s *Server) handleAuthenticate(ctx context.Context, c *wsConn, msg Message) {
	var payload map[string]any
	if err := decode(msg.Payload, &payload); err != nil {
		c.reply(msg, ErrorReply{Error: "invalid authentication"})
		return
	}

	room, _ := payload["room"].(string)
	if !s.rooms.Known(room) {
		c.reply(msg, ErrorReply{Error: domain.ErrRoomUnknown.Error()})
		return
	}

	proof := make(map[string]string, len(payload))
	for k, v := range payload {
		if sv, ok := v.(string); ok && k != "room" {
			proof[k] = sv
		}
	}

	vctx, cancel := context.WithTimeout(ctx, s.authTimeout)
	defer cancel()

	sess, err := s.identity.Validate(vctx, proof)
	if err != nil {
		slog.Warn("failed authentication", "conn", c.id, "err", err)
		c.reply(msg, ErrorReply{Error: "invalid authentication"})
		return
	}

	token, err := s.signer.Sign(sess.Username, sess.Role, time.Now())
	if err != nil {
		slog.Error("token sign failed", "username", sess.Username, "err", err)
		c.reply(msg, ErrorReply{Error: "invalid authentication"})
		return
	}
	sess.Token = token
	sess = s.sessions.Attach(sess)

	// a re-authentication may move the socket between identities or rooms
	if c.bound() {
		s.hub.Remove(c)
	}
	c.bind(sess.Username, room)
	s.hub.Add(c)

	s.queueSvc.PlaceStaff(sess, room)

	slog.Info("successful authentication",
		"conn", c.id, "username", sess.Username, "role", sess.Role, "room", room)
	c.reply(msg, AuthReply{
		Username:    sess.Username,
		Token:       token,
		Permissions: sess.Permissions.List(),
	})
}

func (s *Server) handleCommand(ctx context.Context, c *wsConn, msg Message) {
	sess := s.sessions.Get(c.Username())
	if sess == nil {
		return
	}
	room := c.Room()

	switch msg.Type {
	case TypeGetAll:
		var req GetAllRequest
		_ = decode(msg.Payload, &req)
		rendered, err := s.queueSvc.GetAll(ctx, sess, room, postgres.Filter{Type: req.Type, State: req.State})
		if err != nil {
			slog.Error("get_all failed", "room", room, "err", err)
			return
		}
		c.reply(msg, rendered)

	case TypeAdd:
		var req AddRequest
		if err := decode(msg.Payload, &req); err != nil {
			c.reply(msg, AddReply{Success: false})
			return
		}
		slog.Info("new entry", "username", sess.Username, "room", room, "type", req.Type)
		ok, err := s.queueSvc.Add(ctx, sess, room, req.Type, req.Data)
		if err != nil {
			slog.Error("add failed", "username", sess.Username, "room", room, "err", err)
			return
		}
		c.reply(msg, AddReply{Success: ok})

	case TypeAction:
		var req ActionRequest
		if err := decode(msg.Payload, &req); err != nil {
			return
		}
		slog.Info("entry action",
			"action", req.Action, "target", req.Username, "actor", sess.Username, "room", room)
		if err := s.queueSvc.Action(ctx, sess, room, req.Action, req.Username); err != nil {
			slog.Error("action failed", "action", req.Action, "target", req.Username, "err", err)
			return
		}
		c.reply(msg, nil)

	case TypeLock:
		slog.Info("lock queue", "username", sess.Username, "room", room)
		s.queueSvc.SetLocked(sess, room, true)
		c.reply(msg, nil)

	case TypeUnlock:
		slog.Info("unlock queue", "username", sess.Username, "room", room)
		s.queueSvc.SetLocked(sess, room, false)
		c.reply(msg, nil)

	case TypeGetLocked:
		c.reply(msg, s.queueSvc.Locked(room))

	case TypeClear:
		slog.Info("clear queue", "username", sess.Username, "room", room)
		if err := s.queueSvc.Clear(ctx, sess, room); err != nil {
			slog.Error("clear failed", "room", room, "err", err)
			return
		}
		c.reply(msg, nil)

	case TypeGetStaffList:
		confirmed, unconfirmed := s.queueSvc.StaffList(room)
		c.reply(msg, StaffListReply{Confirmed: confirmed, Unconfirmed: unconfirmed})

	case TypeCheckIn:
		var req TargetRequest
		_ = decode(msg.Payload, &req)
		slog.Info("check_in", "target", req.Username, "actor", sess.Username, "room", room)
		s.queueSvc.CheckIn(req.Username, room)
		c.reply(msg, nil)

	case TypeCheckOut:
		var req TargetRequest
		_ = decode(msg.Payload, &req)
		slog.Info("check_out", "target", req.Username, "actor", sess.Username, "room", room)
		s.queueSvc.CheckOut(req.Username, room)
		c.reply(msg, nil)

	default:
		// unknown command, ignore
	}
}

// --- helpers ---

func decode(payload any, dst any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return json.Unmarshal(b, dst)
}

type wsConn struct {
	conn *websocket.Conn
	id   string

	mu       sync.RWMutex
	username string
	room     string

	sendMu chan struct{}
	closed chan struct{}
}

func newWsConn(c *websocket.Conn) *wsConn {
	return &wsConn{
		conn:   c,
		id:     uuid.New().String(),
		sendMu: make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
}

func (c *wsConn) bind(username, room string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.username = username
	c.room = room
}

func (c *wsConn) bound() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.username != ""
}

func (c *wsConn) reply(req Message, payload any) {
	_ = c.Send(Message{ID: req.ID, Type: req.Type, Payload: payload})
}

func (c *wsConn) Send(msg Message) error {
	c.sendMu <- struct{}{}
	defer func() { <-c.sendMu }()
	c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))

	return c.conn.WriteJSON(msg)
}

func (c *wsConn) Close() error {
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}

	return c.conn.Close()
}

func (c *wsConn) Username() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.username
}

func (c *wsConn) Room() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.room
}
