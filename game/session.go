package game

import (
	"fmt"
	"time"

	"landlord-server/cards"
	"landlord-server/gameerrors"
)

// Phase is the lifecycle phase of a Session.
type Phase int

const (
	Waiting Phase = iota
	Bidding
	Playing
	Finished
)

// String returns the protocol string for a Phase.
func (p Phase) String() string {
	switch p {
	case Waiting:
		return "waiting"
	case Bidding:
		return "bidding"
	case Playing:
		return "playing"
	case Finished:
		return "finished"
	default:
		return "unknown"
	}
}

// MarshalText encodes the phase by its protocol string.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText decodes a protocol string produced by MarshalText.
func (p *Phase) UnmarshalText(text []byte) error {
	for _, v := range []Phase{Waiting, Bidding, Playing, Finished} {
		if v.String() == string(text) {
			*p = v
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", text)
}

// SeatCount is the number of players a session is played with.
const SeatCount = 3

// MaxBid is the highest bid a player may make; 0 means pass.
const MaxBid = 3

// Play is an accepted, non-pass play.
type Play struct {
	PlayerID string
	Seat     int
	Hand     cards.Hand
}

// Move is one entry of the play history: either a play or a pass.
type Move struct {
	PlayerID string
	Seat     int
	Pass     bool
	Hand     cards.Hand
}

// Session is the state machine for one match. It holds no locks; the owning
// room serializes every call.
type Session struct {
	ID     string
	RoomID string

	Phase   Phase
	Players []*Player
	Turn    int

	LandlordID string
	Reserve    []cards.Card

	History  []Move
	LastPlay *Play

	Winners []string
	Scores  map[string]int

	TurnStartedAt time.Time
	TurnLimit     time.Duration

	// Version increments on every accepted transition.
	Version int

	scoreUnit  int
	bidsPlaced int
	shuffle    cards.ShuffleFunc
	now        func() time.Time
}

// Option configures a Session.
type Option func(*Session)

// WithShuffle replaces the deck shuffle used by Start.
func WithShuffle(fn cards.ShuffleFunc) Option {
	return func(s *Session) { s.shuffle = fn }
}

// WithScoreUnit sets the points a single farmer wins or loses.
func WithScoreUnit(unit int) Option {
	return func(s *Session) {
		if unit > 0 {
			s.scoreUnit = unit
		}
	}
}

// WithTurnLimit records the per-turn time limit shown to clients.
func WithTurnLimit(d time.Duration) Option {
	return func(s *Session) { s.TurnLimit = d }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// NewSession creates a session in the Waiting phase. Players are seated in
// the order given.
func NewSession(id, roomID string, players []*Player, opts ...Option) *Session {
	s := &Session{
		ID:        id,
		RoomID:    roomID,
		Phase:     Waiting,
		Players:   players,
		scoreUnit: 1,
		shuffle:   cards.Shuffle,
		now:       time.Now,
	}
	for i, p := range players {
		p.Seat = i
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start shuffles and deals, then opens bidding at seat 0.
func (s *Session) Start() error {
	if s.Phase != Waiting {
		return gameerrors.ErrGameAlreadyInProgress
	}
	if len(s.Players) != SeatCount {
		return gameerrors.ErrInsufficientOrUnready
	}

	deck := cards.NewDeck()
	s.shuffle(deck)
	hands, reserve := cards.Deal(deck)
	for i, p := range s.Players {
		p.Hand = hands[i]
		p.Role = Unassigned
		p.ScoreDelta = 0
		p.clearBid()
	}
	s.Reserve = reserve
	s.Phase = Bidding
	s.bidsPlaced = 0
	s.setTurn(0)
	return nil
}

// Player returns the seated player with the given user ID.
func (s *Session) Player(userID string) (*Player, bool) {
	for _, p := range s.Players {
		if p.UserID == userID {
			return p, true
		}
	}
	return nil, false
}

// Current returns the player whose turn it is.
func (s *Session) Current() *Player {
	return s.Players[s.Turn]
}

func (s *Session) checkTurn(userID string, phase Phase) (*Player, error) {
	p, ok := s.Player(userID)
	if !ok {
		return nil, gameerrors.ErrNotInRoom
	}
	if s.Phase != phase {
		return nil, gameerrors.ErrWrongPhase
	}
	if p.Seat != s.Turn {
		return nil, gameerrors.ErrNotYourTurn
	}
	return p, nil
}

func (s *Session) setTurn(seat int) {
	s.Turn = seat
	s.TurnStartedAt = s.now()
	s.Version++
}

func (s *Session) advance() {
	s.setTurn((s.Turn + 1) % SeatCount)
}

// Bid records amount for userID. After the third bid the landlord is chosen,
// or bidding restarts at seat 0 when everybody passed.
func (s *Session) Bid(userID string, amount int) error {
	p, err := s.checkTurn(userID, Bidding)
	if err != nil {
		return err
	}
	if amount < 0 || amount > MaxBid {
		return gameerrors.ErrInvalidBid
	}

	p.Bid = amount
	p.HasBid = true
	s.bidsPlaced++
	if s.bidsPlaced < SeatCount {
		s.advance()
		return nil
	}

	// Bidding always opens at seat 0, so seat order is bid order and the
	// strict comparison keeps the earliest bidder of the maximum.
	var winner *Player
	for _, candidate := range s.Players {
		if candidate.Bid > 0 && (winner == nil || candidate.Bid > winner.Bid) {
			winner = candidate
		}
	}
	if winner == nil {
		for _, other := range s.Players {
			other.clearBid()
		}
		s.bidsPlaced = 0
		s.setTurn(0)
		return nil
	}

	s.LandlordID = winner.UserID
	for _, other := range s.Players {
		if other == winner {
			other.Role = Landlord
		} else {
			other.Role = Farmer
		}
	}
	winner.Hand = append(winner.Hand, s.Reserve...)
	cards.Sort(winner.Hand)
	s.Phase = Playing
	s.setTurn(winner.Seat)
	return nil
}

// Play validates and applies a play of cardIDs by userID.
func (s *Session) Play(userID string, cardIDs []string) error {
	p, err := s.checkTurn(userID, Playing)
	if err != nil {
		return err
	}
	if len(cardIDs) == 0 {
		return gameerrors.ErrInvalidHand
	}
	seen := make(map[string]struct{}, len(cardIDs))
	for _, id := range cardIDs {
		if _, dup := seen[id]; dup {
			return gameerrors.ErrInvalidHand
		}
		seen[id] = struct{}{}
	}
	played, ok := p.holds(cardIDs)
	if !ok {
		return gameerrors.ErrCardsNotInHand
	}
	hand := cards.NewHand(played)
	if hand.Type == cards.Invalid {
		return gameerrors.ErrInvalidHand
	}
	if s.LastPlay != nil && s.LastPlay.PlayerID != userID && !cards.Beats(hand, s.LastPlay.Hand) {
		return gameerrors.ErrHandDoesNotBeatLastPlay
	}

	p.remove(played)
	s.History = append(s.History, Move{PlayerID: userID, Seat: p.Seat, Hand: hand})
	s.LastPlay = &Play{PlayerID: userID, Seat: p.Seat, Hand: hand}

	s.advance()
	if len(p.Hand) == 0 {
		s.finish(p)
	}
	return nil
}

// CanPass reports whether userID may pass right now.
func (s *Session) CanPass(userID string) bool {
	return s.Phase == Playing && s.LastPlay != nil && s.LastPlay.PlayerID != userID
}

// Pass records a pass by userID. The last play stays the benchmark.
func (s *Session) Pass(userID string) error {
	p, err := s.checkTurn(userID, Playing)
	if err != nil {
		return err
	}
	if !s.CanPass(userID) {
		return gameerrors.ErrCannotPass
	}
	s.History = append(s.History, Move{PlayerID: userID, Seat: p.Seat, Pass: true})
	s.advance()
	return nil
}

// AutoAct makes the least committal legal move for the current player: a zero
// bid while bidding, a pass when allowed, otherwise the lowest single card.
func (s *Session) AutoAct() (Move, error) {
	p := s.Current()
	switch s.Phase {
	case Bidding:
		if err := s.Bid(p.UserID, 0); err != nil {
			return Move{}, err
		}
		return Move{PlayerID: p.UserID, Seat: p.Seat, Pass: true}, nil
	case Playing:
		if s.CanPass(p.UserID) {
			if err := s.Pass(p.UserID); err != nil {
				return Move{}, err
			}
			return s.History[len(s.History)-1], nil
		}
		if err := s.Play(p.UserID, []string{p.Hand[0].ID}); err != nil {
			return Move{}, err
		}
		return s.History[len(s.History)-1], nil
	default:
		return Move{}, gameerrors.ErrWrongPhase
	}
}

// SetConnected flips a player's connectivity. Hands, turn and phase are untouched.
func (s *Session) SetConnected(userID string, connected bool) bool {
	p, ok := s.Player(userID)
	if !ok || p.Connected == connected {
		return false
	}
	p.Connected = connected
	return true
}

// LandlordWon reports whether the finished session was won by the landlord.
func (s *Session) LandlordWon() bool {
	return len(s.Winners) == 1 && s.Winners[0] == s.LandlordID
}

func (s *Session) finish(winner *Player) {
	s.Phase = Finished
	s.Version++
	unit := s.scoreUnit
	landlordWon := winner.Role == Landlord

	s.Winners = s.Winners[:0]
	s.Scores = make(map[string]int, len(s.Players))
	for _, p := range s.Players {
		switch {
		case p.Role == Landlord && landlordWon:
			p.ScoreDelta = 2 * unit
		case p.Role == Landlord:
			p.ScoreDelta = -2 * unit
		case landlordWon:
			p.ScoreDelta = -unit
		default:
			p.ScoreDelta = unit
		}
		if (p.Role == Landlord) == landlordWon {
			s.Winners = append(s.Winners, p.UserID)
		}
		s.Scores[p.UserID] = p.ScoreDelta
	}
}

// Result summarizes a finished session for persistence.
type Result struct {
	SessionID   string         `json:"sessionId"`
	RoomID      string         `json:"roomId"`
	LandlordID  string         `json:"landlordId"`
	LandlordWon bool           `json:"landlordWon"`
	Winners     []string       `json:"winners"`
	Players     []ResultPlayer `json:"players"`
	FinishedAt  time.Time      `json:"finishedAt"`
}

// ResultPlayer is one participant's outcome.
type ResultPlayer struct {
	UserID     string `json:"userId"`
	Name       string `json:"name"`
	Role       string `json:"role"`
	ScoreDelta int    `json:"scoreDelta"`
	Won        bool   `json:"won"`
}

// Result returns the outcome of a finished session.
func (s *Session) Result() (Result, bool) {
	if s.Phase != Finished {
		return Result{}, false
	}
	won := make(map[string]bool, len(s.Winners))
	for _, id := range s.Winners {
		won[id] = true
	}
	r := Result{
		SessionID:   s.ID,
		RoomID:      s.RoomID,
		LandlordID:  s.LandlordID,
		LandlordWon: s.LandlordWon(),
		Winners:     append([]string(nil), s.Winners...),
		FinishedAt:  s.now(),
	}
	for _, p := range s.Players {
		r.Players = append(r.Players, ResultPlayer{
			UserID:     p.UserID,
			Name:       p.Name,
			Role:       p.Role.String(),
			ScoreDelta: p.ScoreDelta,
			Won:        won[p.UserID],
		})
	}
	return r, true
}
