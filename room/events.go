package room

import "landlord-server/game"

// EventKind enumerates the notifications a room transition produces.
type EventKind int

const (
	EventRoomUpdated EventKind = iota
	EventPlayerJoined
	EventPlayerLeft
	EventPlayerReadyChanged
	EventGameStarted
	EventBidPlaced
	EventBiddingComplete
	EventCardsPlayed
	EventTurnPassed
	EventGameFinished
	EventPresenceChanged
)

// String returns the notification type sent to clients.
func (k EventKind) String() string {
	switch k {
	case EventRoomUpdated:
		return "roomUpdated"
	case EventPlayerJoined:
		return "playerJoined"
	case EventPlayerLeft:
		return "playerLeft"
	case EventPlayerReadyChanged:
		return "playerReadyChanged"
	case EventGameStarted:
		return "gameStarted"
	case EventBidPlaced:
		return "bidPlaced"
	case EventBiddingComplete:
		return "biddingComplete"
	case EventCardsPlayed:
		return "cardsPlayed"
	case EventTurnPassed:
		return "turnPassed"
	case EventGameFinished:
		return "gameFinished"
	case EventPresenceChanged:
		return "presenceChanged"
	default:
		return "unknown"
	}
}

// Event describes one accepted transition. Only the fields relevant to Kind
// are set, and none of them carries concealed cards.
type Event struct {
	Kind   EventKind
	RoomID string
	UserID string

	Ready  bool
	Online bool

	Amount    int
	Restarted bool

	LandlordID string
	Play       *game.PlayView
	Result     *game.Result

	// Reason explains a room reset, e.g. "player_left" when a live game is aborted.
	Reason string
}

// Notifier fans room events out to connected clients.
type Notifier interface {
	// RoomEvent is called with the room lock held, right after the
	// transition is applied. Implementations must not block and must not
	// call back into the Coordinator.
	RoomEvent(r *Room, ev Event)

	// RoomListChanged is called with no lock held whenever the set of
	// listed rooms may have changed.
	RoomListChanged()
}

// Persister receives write-through copies of committed state. Calls happen
// with the room lock held and must only enqueue.
type Persister interface {
	SaveRoom(v View)
	DeleteRoom(roomID string)
	RecordResult(res game.Result)
}

type nopNotifier struct{}

func (nopNotifier) RoomEvent(*Room, Event) {}
func (nopNotifier) RoomListChanged()       {}

type nopPersister struct{}

func (nopPersister) SaveRoom(View)            {}
func (nopPersister) DeleteRoom(string)        {}
func (nopPersister) RecordResult(game.Result) {}
