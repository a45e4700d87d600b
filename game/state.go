package game

import "landlord-server/cards"

// PlayerView is the public representation of a seated player. It never
// carries card content, only the number of cards held.
type PlayerView struct {
	Seat       int    `json:"seat"`
	UserID     string `json:"userId"`
	Name       string `json:"name"`
	Role       Role   `json:"role"`
	CardCount  int    `json:"cardCount"`
	Bid        *int   `json:"bid,omitempty"`
	Connected  bool   `json:"connected"`
	ScoreDelta int    `json:"scoreDelta"`
}

// SelfView is the recipient's own seat, including the full hand.
type SelfView struct {
	PlayerView
	Hand []cards.Card `json:"hand"`
}

// PlayView is the client-facing representation of a play or pass.
type PlayView struct {
	PlayerID string         `json:"playerId"`
	Seat     int            `json:"seat"`
	Pass     bool           `json:"pass,omitempty"`
	Cards    []cards.Card   `json:"cards,omitempty"`
	HandType cards.HandType `json:"handType,omitempty"`
}

// StateView is the personalized game state sent to one recipient.
type StateView struct {
	SessionID       string         `json:"sessionId"`
	RoomID          string         `json:"roomId"`
	Phase           Phase          `json:"phase"`
	CurrentTurn     int            `json:"currentTurn"`
	CurrentPlayerID string         `json:"currentPlayerId"`
	YourTurn        bool           `json:"yourTurn"`
	CanPass         bool           `json:"canPass"`
	LandlordID      string         `json:"landlordId,omitempty"`
	ReserveCount    int            `json:"reserveCount"`
	You             *SelfView      `json:"you,omitempty"`
	Players         []PlayerView   `json:"players"`
	LastPlay        *PlayView      `json:"lastPlay,omitempty"`
	History         []PlayView     `json:"history"`
	Winners         []string       `json:"winners,omitempty"`
	Scores          map[string]int `json:"scores,omitempty"`

	TurnStartedAtUnixMs int64 `json:"turnStartedAtUnixMs,omitempty"`
	TurnEndsAtUnixMs    int64 `json:"turnEndsAtUnixMs,omitempty"`
}

// BuildPlayerView creates a PlayerView from a Player.
func BuildPlayerView(p *Player) PlayerView {
	v := PlayerView{
		Seat:       p.Seat,
		UserID:     p.UserID,
		Name:       p.Name,
		Role:       p.Role,
		CardCount:  len(p.Hand),
		Connected:  p.Connected,
		ScoreDelta: p.ScoreDelta,
	}
	if p.HasBid {
		bid := p.Bid
		v.Bid = &bid
	}
	return v
}

// BuildPlayView converts a history entry.
func BuildPlayView(m Move) PlayView {
	v := PlayView{PlayerID: m.PlayerID, Seat: m.Seat, Pass: m.Pass}
	if !m.Pass {
		v.Cards = append([]cards.Card(nil), m.Hand.Cards...)
		v.HandType = m.Hand.Type
	}
	return v
}

// ViewFor returns the state as seen by userID. The recipient's own hand is
// copied in full; everyone else, and the landlord reserve, is represented by
// counts. A userID that is not seated gets no hand at all.
func (s *Session) ViewFor(userID string) StateView {
	v := StateView{
		SessionID:    s.ID,
		RoomID:       s.RoomID,
		Phase:        s.Phase,
		CurrentTurn:  s.Turn,
		LandlordID:   s.LandlordID,
		ReserveCount: len(s.Reserve),
		Players:      make([]PlayerView, 0, len(s.Players)),
		History:      make([]PlayView, 0, len(s.History)),
	}
	if s.Phase == Bidding || s.Phase == Playing {
		cur := s.Current()
		v.CurrentPlayerID = cur.UserID
		v.YourTurn = cur.UserID == userID
		v.CanPass = v.YourTurn && s.CanPass(userID)
		if !s.TurnStartedAt.IsZero() {
			v.TurnStartedAtUnixMs = s.TurnStartedAt.UnixMilli()
			if s.TurnLimit > 0 {
				v.TurnEndsAtUnixMs = s.TurnStartedAt.Add(s.TurnLimit).UnixMilli()
			}
		}
	}

	for _, p := range s.Players {
		pv := BuildPlayerView(p)
		v.Players = append(v.Players, pv)
		if p.UserID == userID {
			hand := make([]cards.Card, len(p.Hand))
			copy(hand, p.Hand)
			v.You = &SelfView{PlayerView: pv, Hand: hand}
		}
	}
	for _, m := range s.History {
		v.History = append(v.History, BuildPlayView(m))
	}
	if s.LastPlay != nil {
		lp := BuildPlayView(Move{PlayerID: s.LastPlay.PlayerID, Seat: s.LastPlay.Seat, Hand: s.LastPlay.Hand})
		v.LastPlay = &lp
	}
	if s.Phase == Finished {
		v.Winners = append([]string(nil), s.Winners...)
		v.Scores = make(map[string]int, len(s.Scores))
		for id, score := range s.Scores {
			v.Scores[id] = score
		}
	}
	return v
}
