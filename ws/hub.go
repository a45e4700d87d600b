package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"landlord-server/auth"
	"landlord-server/config"
	"landlord-server/game"
	"landlord-server/gameerrors"
	"landlord-server/room"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allow all origins for development; restrict in production.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// RoomService is what the Hub needs from the room coordinator.
type RoomService interface {
	Create(name string, capacity int, creator room.Identity, settings room.Settings) (room.View, error)
	Join(roomID string, identity room.Identity) (room.View, error)
	Leave(roomID string, identity room.Identity) error
	ToggleReady(roomID string, identity room.Identity) (bool, error)
	Start(roomID string, identity room.Identity) (room.View, error)
	Bid(roomID string, identity room.Identity, amount int) error
	Play(roomID string, identity room.Identity, cardIDs []string) error
	Pass(roomID string, identity room.Identity) error
	RoomView(roomID string) (room.View, error)
	GameState(roomID, userID string) (game.StateView, error)
	RoomList(userID string) []room.View
	RoomOf(userID string) (string, bool)
	SetConnected(userID string, online bool)
}

// Hub owns every websocket client and fans room events out to them. It
// implements room.Notifier.
type Hub struct {
	Clients    map[*Client]bool
	Register   chan *Client
	Unregister chan *Client
	done       chan struct{}

	rooms    RoomService
	verifier auth.Verifier
	registry *Registry
	config   *config.Config
}

var _ room.Notifier = (*Hub)(nil)

// NewHub creates a Hub. Presence changes detected by its registry are
// reported to rooms.
func NewHub(cfg *config.Config, rooms RoomService, verifier auth.Verifier) *Hub {
	h := &Hub{
		Clients:    make(map[*Client]bool),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		done:       make(chan struct{}),
		rooms:      rooms,
		verifier:   verifier,
		config:     cfg,
	}
	grace := time.Duration(cfg.ReconnectGraceMS) * time.Millisecond
	h.registry = NewRegistry(grace, rooms.SetConnected)
	return h
}

// Registry exposes the identity registry, e.g. for presence lookups.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Run starts the hub's main loop. Should be run as a goroutine.
// When ctx is cancelled (e.g. on server shutdown), Run closes every client
// and returns.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			slog.Info("hub stopping", "tag", "ws", "clients", len(h.Clients))
			for client := range h.Clients {
				client.Close()
				delete(h.Clients, client)
			}
			h.registry.Close()
			return
		case client := <-h.Register:
			h.Clients[client] = true
			slog.Debug("client connected", "tag", "ws", "total", len(h.Clients))

		case client := <-h.Unregister:
			if _, ok := h.Clients[client]; ok {
				delete(h.Clients, client)
				client.Close()
				h.registry.Unbind(client)
				slog.Debug("client disconnected", "tag", "ws", "user", client.Identity().UserID, "total", len(h.Clients))
			}
		}
	}
}

// ServeWS handles WebSocket upgrade requests and creates a new Client.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "tag", "ws", "err", err)
		return
	}

	client := newClient(h, conn)
	select {
	case h.Register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}

// bind makes c the active client of its identity, retires a superseded
// client, and sends c everything it needs to resume.
func (h *Hub) bind(c *Client) {
	identity := c.Identity()
	roomID, inRoom := h.rooms.RoomOf(identity.UserID)
	msg := AuthenticatedMsg{Type: TypeAuthenticated, UserID: identity.UserID, Name: identity.Name}
	if inRoom {
		msg.RoomID = roomID
	}
	// authenticated precedes any notice Bind triggers.
	c.SendJSON(msg)

	if prev := h.registry.Bind(c); prev != nil {
		slog.Info("connection superseded", "tag", "ws", "user", identity.UserID)
		prev.sendError(gameerrors.ErrSessionSuperseded)
		prev.Close()
	}

	h.sendRoomList(c)
	if inRoom {
		if view, err := h.rooms.RoomView(roomID); err == nil {
			c.SendJSON(RoomUpdatedMsg{Type: room.EventRoomUpdated.String(), Room: view})
		}
		h.sendGameState(c, roomID)
	}
	slog.Info("client authenticated", "tag", "ws", "user", identity.UserID)
}

func (h *Hub) sendRoomList(c *Client) {
	c.SendJSON(RoomListUpdatedMsg{Type: TypeRoomListUpdated, Rooms: h.rooms.RoomList(c.Identity().UserID)})
}

func (h *Hub) sendGameState(c *Client, roomID string) {
	state, err := h.rooms.GameState(roomID, c.Identity().UserID)
	if err != nil {
		return
	}
	c.SendJSON(GameStateUpdatedMsg{Type: TypeGameStateUpdated, State: state})
}

// RoomEvent implements room.Notifier. It runs with the room lock held, so it
// reads the room directly and only enqueues.
func (h *Hub) RoomEvent(r *room.Room, ev room.Event) {
	recipients := r.MemberIDs()
	if ev.Kind == room.EventPlayerLeft {
		recipients = append(recipients, ev.UserID)
	}

	s := r.Session()
	if ev.Kind == room.EventGameFinished {
		s = r.LatestSession()
	}
	var sessionID string
	if s != nil {
		sessionID = s.ID
	}

	var notice []byte
	if ev.Kind != room.EventRoomUpdated {
		if msg := eventMessage(ev, sessionID); msg != nil {
			notice = mustMarshal(msg)
		}
	}
	update := mustMarshal(RoomUpdatedMsg{Type: room.EventRoomUpdated.String(), Room: room.BuildView(r), Reason: ev.Reason})

	for _, uid := range recipients {
		c, ok := h.registry.Client(uid)
		if !ok {
			continue
		}
		if notice != nil {
			c.Send(notice)
		}
		c.Send(update)
		if s != nil {
			if _, seated := s.Player(uid); seated {
				c.Send(mustMarshal(GameStateUpdatedMsg{Type: TypeGameStateUpdated, State: s.ViewFor(uid)}))
			}
		}
	}
}

// RoomListChanged implements room.Notifier by pushing each connected
// identity the rooms it can see.
func (h *Hub) RoomListChanged() {
	for _, uid := range h.registry.Identities() {
		c, ok := h.registry.Client(uid)
		if !ok {
			continue
		}
		h.sendRoomList(c)
	}
}

func mustMarshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("marshal outbound message", "tag", "ws", "err", err)
		return nil
	}
	return data
}
