package ws

import (
	"encoding/json"
	"errors"

	"landlord-server/game"
	"landlord-server/room"
)

// InboundEnvelope is the generic envelope for all client-to-server messages.
// The Type field is used for routing; Raw holds the full JSON payload.
type InboundEnvelope struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"-"`
}

// UnmarshalJSON implements custom unmarshaling to capture the raw payload.
func (e *InboundEnvelope) UnmarshalJSON(data []byte) error {
	type typeOnly struct {
		Type string `json:"type"`
	}
	var t typeOnly
	if err := json.Unmarshal(data, &t); err != nil {
		return err
	}
	e.Type = t.Type
	e.Raw = json.RawMessage(append([]byte(nil), data...))
	return nil
}

// Client-to-server message types.
const (
	TypeAuthenticate    = "authenticate"
	TypeCreateRoom      = "createRoom"
	TypeJoinRoom        = "joinRoom"
	TypeLeaveRoom       = "leaveRoom"
	TypeToggleReady     = "toggleReady"
	TypeStartGame       = "startGame"
	TypeBid             = "bid"
	TypePlayCards       = "playCards"
	TypePass            = "pass"
	TypeRequestRoomList = "requestRoomList"
)

// Server-to-client message types not named by a room.EventKind.
const (
	TypeAuthenticated    = "authenticated"
	TypeRoomListUpdated  = "roomListUpdated"
	TypeGameStateUpdated = "gameStateUpdated"
	TypeError            = "error"
)

// --- Client-to-Server message payloads ---

// AuthMsg must be the first message on a connection.
type AuthMsg struct {
	Token string `json:"token"`
}

// CreateRoomMsg opens a new room with the sender as creator.
type CreateRoomMsg struct {
	Name             string `json:"name"`
	Capacity         int    `json:"capacity"`
	IsPrivate        bool   `json:"isPrivate"`
	TurnTimeLimitSec int    `json:"turnTimeLimitSec"`
}

// RoomMsg carries only a room id: joinRoom, leaveRoom, toggleReady,
// startGame and pass.
type RoomMsg struct {
	RoomID string `json:"roomId"`
}

// BidMsg places a bid of 0 (pass) to 3.
type BidMsg struct {
	RoomID string `json:"roomId"`
	Amount *int   `json:"amount"`
}

// PlayCardsMsg plays the listed cards from the sender's hand.
type PlayCardsMsg struct {
	RoomID  string   `json:"roomId"`
	CardIDs []string `json:"cardIds"`
}

var errMissingField = errors.New("missing field")

func (m RoomMsg) validate() error {
	if m.RoomID == "" {
		return errMissingField
	}
	return nil
}

func (m BidMsg) validate() error {
	if m.RoomID == "" || m.Amount == nil {
		return errMissingField
	}
	return nil
}

func (m PlayCardsMsg) validate() error {
	if m.RoomID == "" || m.CardIDs == nil {
		return errMissingField
	}
	return nil
}

// --- Server-to-Client messages ---

// ErrorMsg is sent only to the connection whose action failed.
type ErrorMsg struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// AuthenticatedMsg confirms the connection's identity.
type AuthenticatedMsg struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
	Name   string `json:"name"`
	RoomID string `json:"roomId,omitempty"`
}

// RoomUpdatedMsg carries the public room snapshot.
type RoomUpdatedMsg struct {
	Type   string    `json:"type"`
	Room   room.View `json:"room"`
	Reason string    `json:"reason,omitempty"`
}

// RoomListUpdatedMsg carries the rooms visible to the recipient.
type RoomListUpdatedMsg struct {
	Type  string      `json:"type"`
	Rooms []room.View `json:"rooms"`
}

// GameStateUpdatedMsg carries the recipient's personalized game state.
type GameStateUpdatedMsg struct {
	Type  string          `json:"type"`
	State game.StateView `json:"state"`
}

// MemberMsg is used for playerJoined and playerLeft.
type MemberMsg struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
}

// ReadyChangedMsg reports a readiness toggle.
type ReadyChangedMsg struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
	Ready  bool   `json:"ready"`
}

// PresenceChangedMsg reports a member going offline or coming back.
type PresenceChangedMsg struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
	Online bool   `json:"online"`
}

// GameStartedMsg announces a new session.
type GameStartedMsg struct {
	Type      string `json:"type"`
	RoomID    string `json:"roomId"`
	SessionID string `json:"sessionId"`
	StartedBy string `json:"startedBy"`
}

// BidPlacedMsg reports an accepted bid. Restarted is set when the bid closed
// an all-pass round and bidding reopened at seat 0.
type BidPlacedMsg struct {
	Type      string `json:"type"`
	RoomID    string `json:"roomId"`
	UserID    string `json:"userId"`
	Amount    int    `json:"amount"`
	Restarted bool   `json:"restarted"`
}

// BiddingCompleteMsg names the landlord.
type BiddingCompleteMsg struct {
	Type       string `json:"type"`
	RoomID     string `json:"roomId"`
	LandlordID string `json:"landlordId"`
}

// PlayMsg is used for cardsPlayed and turnPassed.
type PlayMsg struct {
	Type   string        `json:"type"`
	RoomID string        `json:"roomId"`
	Play   game.PlayView `json:"play"`
}

// GameFinishedMsg carries the final outcome.
type GameFinishedMsg struct {
	Type      string      `json:"type"`
	RoomID    string      `json:"roomId"`
	SessionID string      `json:"sessionId"`
	Result    game.Result `json:"result"`
}

// eventMessage converts a room event into its notification. Every kind maps
// to exactly one message shape; roomUpdated is built separately because it
// needs the room snapshot.
func eventMessage(ev room.Event, sessionID string) any {
	kind := ev.Kind.String()
	switch ev.Kind {
	case room.EventPlayerJoined, room.EventPlayerLeft:
		return MemberMsg{Type: kind, RoomID: ev.RoomID, UserID: ev.UserID}
	case room.EventPlayerReadyChanged:
		return ReadyChangedMsg{Type: kind, RoomID: ev.RoomID, UserID: ev.UserID, Ready: ev.Ready}
	case room.EventPresenceChanged:
		return PresenceChangedMsg{Type: kind, RoomID: ev.RoomID, UserID: ev.UserID, Online: ev.Online}
	case room.EventGameStarted:
		return GameStartedMsg{Type: kind, RoomID: ev.RoomID, SessionID: sessionID, StartedBy: ev.UserID}
	case room.EventBidPlaced:
		return BidPlacedMsg{Type: kind, RoomID: ev.RoomID, UserID: ev.UserID, Amount: ev.Amount, Restarted: ev.Restarted}
	case room.EventBiddingComplete:
		return BiddingCompleteMsg{Type: kind, RoomID: ev.RoomID, LandlordID: ev.LandlordID}
	case room.EventCardsPlayed, room.EventTurnPassed:
		if ev.Play == nil {
			return nil
		}
		return PlayMsg{Type: kind, RoomID: ev.RoomID, Play: *ev.Play}
	case room.EventGameFinished:
		if ev.Result == nil {
			return nil
		}
		return GameFinishedMsg{Type: kind, RoomID: ev.RoomID, SessionID: sessionID, Result: *ev.Result}
	default:
		return nil
	}
}
