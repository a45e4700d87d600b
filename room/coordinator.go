package room

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"landlord-server/cards"
	"landlord-server/config"
	"landlord-server/game"
	"landlord-server/gameerrors"
)

// Coordinator owns every live room. Each room is mutated under its own lock,
// so actions on different rooms run in parallel. c.mu guards only the rooms
// map and the membership index and is always taken after a room lock, never
// before one.
type Coordinator struct {
	cfg *config.Config

	mu       sync.RWMutex
	rooms    map[string]*Room
	memberOf map[string]string // userID -> roomID

	notifier  Notifier
	persister Persister
	online    func(userID string) bool
	shuffle   cards.ShuffleFunc
	now       func() time.Time
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithNotifier sets the broadcaster for room events.
func WithNotifier(n Notifier) Option {
	return func(c *Coordinator) { c.notifier = n }
}

// WithPersister sets the write-through sink.
func WithPersister(p Persister) Option {
	return func(c *Coordinator) { c.persister = p }
}

// WithShuffle overrides the deck shuffle of new sessions.
func WithShuffle(fn cards.ShuffleFunc) Option {
	return func(c *Coordinator) { c.shuffle = fn }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// NewCoordinator creates an empty Coordinator.
func NewCoordinator(cfg *config.Config, opts ...Option) *Coordinator {
	c := &Coordinator{
		cfg:       cfg,
		rooms:     make(map[string]*Room),
		memberOf:  make(map[string]string),
		notifier:  nopNotifier{},
		persister: nopPersister{},
		online:    func(string) bool { return true },
		shuffle:   cards.Shuffle,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetNotifier installs the broadcaster. Call it during wiring, before the
// Coordinator serves any request.
func (c *Coordinator) SetNotifier(n Notifier) {
	c.notifier = n
}

// SetPresence installs the lookup used to seed a new member's online flag.
// Call it during wiring.
func (c *Coordinator) SetPresence(online func(userID string) bool) {
	c.online = online
}

func (c *Coordinator) lookup(roomID string) (*Room, error) {
	c.mu.RLock()
	r, ok := c.rooms[roomID]
	c.mu.RUnlock()
	if !ok {
		return nil, gameerrors.ErrRoomNotFound
	}
	return r, nil
}

// withRoom runs fn while holding the room's lock. Validation, mutation and
// broadcast inside fn are therefore atomic with respect to other actions on
// the same room.
func (c *Coordinator) withRoom(roomID string, fn func(r *Room) error) error {
	r, err := c.lookup(roomID)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.removed {
		return gameerrors.ErrRoomNotFound
	}
	return fn(r)
}

func (c *Coordinator) emit(r *Room, ev Event) {
	ev.RoomID = r.ID
	c.notifier.RoomEvent(r, ev)
}

func (c *Coordinator) save(r *Room) {
	c.persister.SaveRoom(BuildView(r))
}

// Create opens a new room with the creator as its sole, unready member.
func (c *Coordinator) Create(name string, capacity int, creator Identity, settings Settings) (View, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > c.cfg.MaxRoomNameLength {
		return View{}, gameerrors.New(gameerrors.CodeInvalidRoomSettings, fmt.Sprintf("room name must be between 1 and %d characters", c.cfg.MaxRoomNameLength))
	}
	if capacity == 0 {
		capacity = c.cfg.DefaultCapacity
	}
	if capacity < MinCapacity || capacity > MaxCapacity {
		return View{}, gameerrors.New(gameerrors.CodeInvalidRoomSettings, "capacity must be between 2 and 4")
	}
	if settings.TurnTimeLimitSec < 0 {
		return View{}, gameerrors.New(gameerrors.CodeInvalidRoomSettings, "turn time limit cannot be negative")
	}
	if settings.TurnTimeLimitSec == 0 {
		settings.TurnTimeLimitSec = c.cfg.TurnLimitSec
	}

	r := &Room{
		ID:        uuid.NewString(),
		Name:      name,
		Capacity:  capacity,
		CreatorID: creator.UserID,
		Settings:  settings,
		Status:    StatusWaiting,
		Members:   []*Member{{UserID: creator.UserID, Name: creator.Name, Online: c.online(creator.UserID)}},
		CreatedAt: c.now(),
	}

	r.mu.Lock()
	c.mu.Lock()
	if _, busy := c.memberOf[creator.UserID]; busy {
		c.mu.Unlock()
		r.mu.Unlock()
		return View{}, gameerrors.ErrAlreadyInRoom
	}
	c.rooms[r.ID] = r
	c.memberOf[creator.UserID] = r.ID
	c.mu.Unlock()

	view := BuildView(r)
	c.emit(r, Event{Kind: EventRoomUpdated, UserID: creator.UserID})
	c.save(r)
	r.mu.Unlock()

	slog.Info("room created", "tag", "room", "room", r.ID, "name", name, "creator", creator.UserID)
	c.notifier.RoomListChanged()
	return view, nil
}

// Join adds identity to the room. Joining a room one already belongs to is a
// successful no-op, which lets a reconnecting client replay its join.
func (c *Coordinator) Join(roomID string, identity Identity) (View, error) {
	var view View
	changed := false
	err := c.withRoom(roomID, func(r *Room) error {
		if r.IsMember(identity.UserID) {
			view = BuildView(r)
			return nil
		}
		c.mu.Lock()
		if _, busy := c.memberOf[identity.UserID]; busy {
			c.mu.Unlock()
			return gameerrors.ErrAlreadyInRoom
		}
		if r.Status != StatusWaiting {
			c.mu.Unlock()
			return gameerrors.ErrRoomNotWaiting
		}
		if r.full() {
			c.mu.Unlock()
			return gameerrors.ErrRoomFull
		}
		c.memberOf[identity.UserID] = r.ID
		c.mu.Unlock()

		r.Members = append(r.Members, &Member{UserID: identity.UserID, Name: identity.Name, Online: c.online(identity.UserID)})
		changed = true
		c.emit(r, Event{Kind: EventPlayerJoined, UserID: identity.UserID})
		c.save(r)
		view = BuildView(r)
		return nil
	})
	if err != nil {
		return View{}, err
	}
	if changed {
		slog.Info("player joined", "tag", "room", "room", roomID, "user", identity.UserID)
		c.notifier.RoomListChanged()
	}
	return view, nil
}

// Leave removes identity from the room in any status. A live game is
// aborted and the room returns to waiting; an emptied room is finished and
// dropped.
func (c *Coordinator) Leave(roomID string, identity Identity) error {
	err := c.withRoom(roomID, func(r *Room) error {
		_, idx := r.member(identity.UserID)
		if idx < 0 {
			return gameerrors.ErrNotInRoom
		}
		r.Members = append(r.Members[:idx], r.Members[idx+1:]...)

		c.mu.Lock()
		if c.memberOf[identity.UserID] == r.ID {
			delete(c.memberOf, identity.UserID)
		}
		if len(r.Members) == 0 {
			r.Status = StatusFinished
			r.removed = true
			delete(c.rooms, r.ID)
		}
		c.mu.Unlock()

		if r.removed {
			c.stopTurnTimer(r)
			r.session = nil
			c.persister.DeleteRoom(r.ID)
			slog.Info("room closed", "tag", "room", "room", r.ID)
			return nil
		}

		if r.CreatorID == identity.UserID {
			r.CreatorID = r.Members[0].UserID
		}
		if r.session != nil {
			slog.Info("game aborted", "tag", "room", "room", r.ID, "session", r.session.ID, "user", identity.UserID)
			c.resetLocked(r)
			c.emit(r, Event{Kind: EventRoomUpdated, UserID: identity.UserID, Reason: "player_left"})
		}
		c.emit(r, Event{Kind: EventPlayerLeft, UserID: identity.UserID})
		c.save(r)
		return nil
	})
	if err != nil {
		return err
	}
	c.notifier.RoomListChanged()
	return nil
}

// ToggleReady flips identity's readiness and returns the new value.
func (c *Coordinator) ToggleReady(roomID string, identity Identity) (bool, error) {
	var ready bool
	err := c.withRoom(roomID, func(r *Room) error {
		m, _ := r.member(identity.UserID)
		if m == nil {
			return gameerrors.ErrNotInRoom
		}
		if r.Status != StatusWaiting {
			return gameerrors.ErrRoomNotWaiting
		}
		m.Ready = !m.Ready
		ready = m.Ready
		c.emit(r, Event{Kind: EventPlayerReadyChanged, UserID: identity.UserID, Ready: ready})
		c.save(r)
		return nil
	})
	return ready, err
}

// CanStart reports whether the room is waiting with enough members, all
// ready. The caller must hold the room lock.
func (c *Coordinator) CanStart(r *Room) bool {
	return r.Status == StatusWaiting && len(r.Members) >= c.cfg.MinPlayers && r.allReady()
}

// Start opens a game session for the room's members, seated in join order.
func (c *Coordinator) Start(roomID string, identity Identity) (View, error) {
	var view View
	err := c.withRoom(roomID, func(r *Room) error {
		if !r.IsMember(identity.UserID) {
			return gameerrors.ErrNotInRoom
		}
		if r.Status == StatusPlaying {
			return gameerrors.ErrGameAlreadyInProgress
		}
		if r.Status != StatusWaiting {
			return gameerrors.ErrRoomNotWaiting
		}
		if !c.CanStart(r) || len(r.Members) != game.SeatCount {
			return gameerrors.ErrInsufficientOrUnready
		}

		players := make([]*game.Player, 0, len(r.Members))
		for _, m := range r.Members {
			p := game.NewPlayer(m.UserID, m.Name)
			p.Connected = m.Online
			players = append(players, p)
		}
		s := game.NewSession(uuid.NewString(), r.ID, players,
			game.WithShuffle(c.shuffle),
			game.WithScoreUnit(c.cfg.ScoreUnit),
			game.WithTurnLimit(time.Duration(r.Settings.TurnTimeLimitSec)*time.Second),
			game.WithClock(c.now),
		)
		if err := s.Start(); err != nil {
			return err
		}
		r.session = s
		r.lastSession = nil
		r.Status = StatusPlaying

		c.emit(r, Event{Kind: EventGameStarted, UserID: identity.UserID})
		c.armTurnTimer(r)
		c.save(r)
		view = BuildView(r)
		slog.Info("game started", "tag", "room", "room", r.ID, "session", s.ID)
		return nil
	})
	if err != nil {
		return View{}, err
	}
	c.notifier.RoomListChanged()
	return view, nil
}

// ResetAfterSession returns the room to waiting with readiness cleared, so
// the same members can play again.
func (c *Coordinator) ResetAfterSession(roomID string) error {
	err := c.withRoom(roomID, func(r *Room) error {
		c.resetLocked(r)
		c.emit(r, Event{Kind: EventRoomUpdated})
		c.save(r)
		return nil
	})
	if err != nil {
		return err
	}
	c.notifier.RoomListChanged()
	return nil
}

func (c *Coordinator) resetLocked(r *Room) {
	c.stopTurnTimer(r)
	if r.session != nil && r.session.Phase == game.Finished {
		r.lastSession = r.session
	}
	r.session = nil
	r.Status = StatusWaiting
	for _, m := range r.Members {
		m.Ready = false
	}
}

func (c *Coordinator) liveSession(r *Room, userID string) (*game.Session, error) {
	if !r.IsMember(userID) {
		return nil, gameerrors.ErrNotInRoom
	}
	if r.session == nil {
		return nil, gameerrors.ErrGameNotFound
	}
	return r.session, nil
}

// Bid places a bid for identity in the room's live session.
func (c *Coordinator) Bid(roomID string, identity Identity, amount int) error {
	return c.withRoom(roomID, func(r *Room) error {
		s, err := c.liveSession(r, identity.UserID)
		if err != nil {
			return err
		}
		if err := s.Bid(identity.UserID, amount); err != nil {
			return err
		}
		c.bidApplied(r, identity.UserID, amount)
		return nil
	})
}

// Play plays cardIDs for identity in the room's live session.
func (c *Coordinator) Play(roomID string, identity Identity, cardIDs []string) error {
	finished := false
	err := c.withRoom(roomID, func(r *Room) error {
		s, err := c.liveSession(r, identity.UserID)
		if err != nil {
			return err
		}
		if err := s.Play(identity.UserID, cardIDs); err != nil {
			return err
		}
		finished = c.moveApplied(r, s.History[len(s.History)-1])
		return nil
	})
	if finished {
		c.notifier.RoomListChanged()
	}
	return err
}

// Pass passes for identity in the room's live session.
func (c *Coordinator) Pass(roomID string, identity Identity) error {
	return c.withRoom(roomID, func(r *Room) error {
		s, err := c.liveSession(r, identity.UserID)
		if err != nil {
			return err
		}
		if err := s.Pass(identity.UserID); err != nil {
			return err
		}
		c.moveApplied(r, s.History[len(s.History)-1])
		return nil
	})
}

func (c *Coordinator) bidApplied(r *Room, userID string, amount int) {
	s := r.session
	// An all-pass round clears every bid and reopens at seat 0.
	restarted := s.Phase == game.Bidding && !s.Players[0].HasBid
	c.emit(r, Event{Kind: EventBidPlaced, UserID: userID, Amount: amount, Restarted: restarted})
	if s.Phase == game.Playing {
		c.emit(r, Event{Kind: EventBiddingComplete, UserID: userID, LandlordID: s.LandlordID})
	}
	c.armTurnTimer(r)
}

// moveApplied emits the events of an accepted play or pass and finalizes the
// session when it ended. It reports whether the session finished.
func (c *Coordinator) moveApplied(r *Room, m game.Move) bool {
	s := r.session
	pv := game.BuildPlayView(m)
	if m.Pass {
		c.emit(r, Event{Kind: EventTurnPassed, UserID: m.PlayerID, Play: &pv})
	} else {
		c.emit(r, Event{Kind: EventCardsPlayed, UserID: m.PlayerID, Play: &pv})
	}
	if s.Phase != game.Finished {
		c.armTurnTimer(r)
		return false
	}

	res, _ := s.Result()
	c.persister.RecordResult(res)
	c.resetLocked(r)
	c.emit(r, Event{Kind: EventGameFinished, UserID: m.PlayerID, Result: &res})
	c.save(r)
	slog.Info("game finished", "tag", "room", "room", r.ID, "session", s.ID, "landlordWon", res.LandlordWon)
	return true
}

// SetConnected records a presence change for userID in its room, if any.
func (c *Coordinator) SetConnected(userID string, online bool) {
	roomID, ok := c.RoomOf(userID)
	if !ok {
		return
	}
	_ = c.withRoom(roomID, func(r *Room) error {
		m, _ := r.member(userID)
		if m == nil || m.Online == online {
			return nil
		}
		m.Online = online
		if r.session != nil {
			r.session.SetConnected(userID, online)
		}
		c.emit(r, Event{Kind: EventPresenceChanged, UserID: userID, Online: online})
		return nil
	})
}

// RoomOf returns the room userID currently belongs to.
func (c *Coordinator) RoomOf(userID string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.memberOf[userID]
	return id, ok
}

// RoomView returns the public snapshot of a room.
func (c *Coordinator) RoomView(roomID string) (View, error) {
	var view View
	err := c.withRoom(roomID, func(r *Room) error {
		view = BuildView(r)
		return nil
	})
	return view, err
}

// GameState returns the personalized state of the room's live or most
// recent session for a member.
func (c *Coordinator) GameState(roomID, userID string) (game.StateView, error) {
	var state game.StateView
	err := c.withRoom(roomID, func(r *Room) error {
		s := r.LatestSession()
		if s == nil {
			return gameerrors.ErrGameNotFound
		}
		if _, seated := s.Player(userID); !seated && !r.IsMember(userID) {
			return gameerrors.ErrNotInRoom
		}
		state = s.ViewFor(userID)
		return nil
	})
	return state, err
}

// RoomList returns the rooms userID can see: public, waiting rooms with a
// free seat, plus userID's own room whatever its state.
func (c *Coordinator) RoomList(userID string) []View {
	c.mu.RLock()
	own := c.memberOf[userID]
	rooms := make([]*Room, 0, len(c.rooms))
	for _, r := range c.rooms {
		rooms = append(rooms, r)
	}
	c.mu.RUnlock()

	views := make([]View, 0, len(rooms))
	for _, r := range rooms {
		r.mu.Lock()
		listed := !r.removed && (r.ID == own || (!r.Settings.Private && r.Status == StatusWaiting && !r.full()))
		if listed {
			views = append(views, BuildView(r))
		}
		r.mu.Unlock()
	}
	sort.Slice(views, func(i, j int) bool {
		if !views[i].CreatedAt.Equal(views[j].CreatedAt) {
			return views[i].CreatedAt.Before(views[j].CreatedAt)
		}
		return views[i].ID < views[j].ID
	})
	return views
}

// Close stops every pending turn timer.
func (c *Coordinator) Close() {
	c.mu.RLock()
	rooms := make([]*Room, 0, len(c.rooms))
	for _, r := range c.rooms {
		rooms = append(rooms, r)
	}
	c.mu.RUnlock()
	for _, r := range rooms {
		r.mu.Lock()
		c.stopTurnTimer(r)
		r.mu.Unlock()
	}
}
