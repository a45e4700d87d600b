package ws

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"landlord-server/gameerrors"
	"landlord-server/room"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096

	sendBufferSize = 256
)

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu       sync.Mutex
	closed   bool
	identity room.Identity
}

func newClient(h *Hub, conn *websocket.Conn) *Client {
	return &Client{hub: h, conn: conn, send: make(chan []byte, sendBufferSize)}
}

// Identity returns the authenticated identity, or the zero value before
// authentication.
func (c *Client) Identity() room.Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity
}

func (c *Client) setIdentity(id room.Identity) {
	c.mu.Lock()
	c.identity = id
	c.mu.Unlock()
}

func (c *Client) authenticated() bool {
	return c.Identity().UserID != ""
}

// Send enqueues data without blocking. It reports false when the client is
// closed or its buffer is full.
func (c *Client) Send(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		slog.Warn("send buffer full, dropping message", "tag", "ws", "user", c.identity.UserID)
		return false
	}
}

// SendJSON marshals v and enqueues it.
func (c *Client) SendJSON(v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("marshal outbound message", "tag", "ws", "err", err)
		return false
	}
	return c.Send(data)
}

// Close stops further sends. Queued messages are still written before the
// write pump closes the connection. Close is idempotent.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *Client) sendError(err error) {
	code, message := gameerrors.Public(err)
	c.SendJSON(ErrorMsg{Type: TypeError, Code: string(code), Message: message})
}

// ReadPump pumps messages from the websocket connection to the hub.
// It runs in its own goroutine per connection.
func (c *Client) ReadPump() {
	defer func() {
		select {
		case c.hub.Unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("websocket read error", "tag", "ws", "user", c.Identity().UserID, "err", err)
			}
			break
		}
		c.handleMessage(message)
	}
}

// WritePump pumps messages from the send channel to the websocket connection.
// It runs in its own goroutine per connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleMessage(data []byte) {
	var envelope InboundEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil || envelope.Type == "" {
		c.sendError(gameerrors.ErrInvalidMessage)
		return
	}

	if envelope.Type == TypeAuthenticate {
		c.handleAuthenticate(envelope.Raw)
		return
	}
	if !c.authenticated() {
		c.sendError(gameerrors.ErrAuthenticationRequired)
		return
	}

	var err error
	switch envelope.Type {
	case TypeCreateRoom:
		err = c.handleCreateRoom(envelope.Raw)
	case TypeJoinRoom:
		err = c.handleJoinRoom(envelope.Raw)
	case TypeLeaveRoom:
		err = c.handleLeaveRoom(envelope.Raw)
	case TypeToggleReady:
		err = c.withRoomID(envelope.Raw, func(roomID string) error {
			_, err := c.hub.rooms.ToggleReady(roomID, c.Identity())
			return err
		})
	case TypeStartGame:
		err = c.withRoomID(envelope.Raw, func(roomID string) error {
			_, err := c.hub.rooms.Start(roomID, c.Identity())
			return err
		})
	case TypeBid:
		err = c.handleBid(envelope.Raw)
	case TypePlayCards:
		err = c.handlePlayCards(envelope.Raw)
	case TypePass:
		err = c.withRoomID(envelope.Raw, func(roomID string) error {
			return c.hub.rooms.Pass(roomID, c.Identity())
		})
	case TypeRequestRoomList:
		c.hub.sendRoomList(c)
	default:
		err = gameerrors.New(gameerrors.CodeUnknownAction, "unknown message type: "+envelope.Type)
	}
	if err != nil {
		c.logRejected(envelope.Type, err)
		c.sendError(err)
	}
}

func (c *Client) logRejected(action string, err error) {
	var gerr *gameerrors.Error
	if errors.As(err, &gerr) && gerr.Code != gameerrors.CodeInternal {
		slog.Debug("action rejected", "tag", "ws", "user", c.Identity().UserID, "action", action, "code", gerr.Code)
		return
	}
	slog.Error("action failed", "tag", "ws", "user", c.Identity().UserID, "action", action, "err", err)
}

func decode[T any](raw json.RawMessage) (T, error) {
	var msg T
	if err := json.Unmarshal(raw, &msg); err != nil {
		return msg, gameerrors.ErrInvalidMessage
	}
	return msg, nil
}

func (c *Client) handleAuthenticate(raw json.RawMessage) {
	msg, err := decode[AuthMsg](raw)
	if err != nil {
		c.sendError(err)
		return
	}
	if c.authenticated() {
		c.sendError(gameerrors.New(gameerrors.CodeInvalidMessage, "connection is already authenticated"))
		return
	}
	identity, err := c.hub.verifier.Verify(msg.Token)
	if err != nil {
		slog.Info("authentication failed", "tag", "ws", "err", err)
		c.sendError(gameerrors.ErrAuthenticationRequired)
		return
	}
	c.setIdentity(identity)
	c.hub.bind(c)
}

func (c *Client) withRoomID(raw json.RawMessage, fn func(roomID string) error) error {
	msg, err := decode[RoomMsg](raw)
	if err != nil {
		return err
	}
	if msg.validate() != nil {
		return gameerrors.New(gameerrors.CodeInvalidMessage, "roomId is required")
	}
	return fn(msg.RoomID)
}

func (c *Client) handleCreateRoom(raw json.RawMessage) error {
	msg, err := decode[CreateRoomMsg](raw)
	if err != nil {
		return err
	}
	_, err = c.hub.rooms.Create(msg.Name, msg.Capacity, c.Identity(), room.Settings{
		Private:          msg.IsPrivate,
		TurnTimeLimitSec: msg.TurnTimeLimitSec,
	})
	return err
}

func (c *Client) handleJoinRoom(raw json.RawMessage) error {
	return c.withRoomID(raw, func(roomID string) error {
		view, err := c.hub.rooms.Join(roomID, c.Identity())
		if err != nil {
			return err
		}
		// A rejoin emits no room event, so answer the joiner directly.
		c.SendJSON(RoomUpdatedMsg{Type: room.EventRoomUpdated.String(), Room: view})
		c.hub.sendGameState(c, roomID)
		return nil
	})
}

func (c *Client) handleLeaveRoom(raw json.RawMessage) error {
	return c.withRoomID(raw, func(roomID string) error {
		return c.hub.rooms.Leave(roomID, c.Identity())
	})
}

func (c *Client) handleBid(raw json.RawMessage) error {
	msg, err := decode[BidMsg](raw)
	if err != nil {
		return err
	}
	if msg.validate() != nil {
		return gameerrors.New(gameerrors.CodeInvalidMessage, "roomId and amount are required")
	}
	return c.hub.rooms.Bid(msg.RoomID, c.Identity(), *msg.Amount)
}

func (c *Client) handlePlayCards(raw json.RawMessage) error {
	msg, err := decode[PlayCardsMsg](raw)
	if err != nil {
		return err
	}
	if msg.validate() != nil {
		return gameerrors.New(gameerrors.CodeInvalidMessage, "roomId and cardIds are required")
	}
	return c.hub.rooms.Play(msg.RoomID, c.Identity(), msg.CardIDs)
}
