package game

import (
	"fmt"

	"landlord-server/cards"
)

// Role is a player's side for the current session.
type Role int

const (
	Unassigned Role = iota
	Landlord
	Farmer
)

// String returns the protocol string for a Role.
func (r Role) String() string {
	switch r {
	case Landlord:
		return "landlord"
	case Farmer:
		return "farmer"
	default:
		return "unassigned"
	}
}

// MarshalText encodes the role by its protocol string.
func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText decodes a protocol string produced by MarshalText.
func (r *Role) UnmarshalText(text []byte) error {
	for _, v := range []Role{Unassigned, Landlord, Farmer} {
		if v.String() == string(text) {
			*r = v
			return nil
		}
	}
	return fmt.Errorf("unknown role %q", text)
}

// Player represents a seated participant in a session.
type Player struct {
	UserID string
	Name   string
	Seat   int
	Role   Role

	// Hand is kept sorted and only ever shrinks once play starts.
	Hand []cards.Card

	Bid    int
	HasBid bool

	Connected  bool
	ScoreDelta int
}

// NewPlayer creates a connected, unassigned Player.
func NewPlayer(userID, name string) *Player {
	return &Player{
		UserID:    userID,
		Name:      name,
		Connected: true,
	}
}

// holds reports whether every id is in the player's hand. The returned cards
// follow the order of ids.
func (p *Player) holds(ids []string) ([]cards.Card, bool) {
	index := make(map[string]cards.Card, len(p.Hand))
	for _, c := range p.Hand {
		index[c.ID] = c
	}
	out := make([]cards.Card, 0, len(ids))
	for _, id := range ids {
		c, ok := index[id]
		if !ok {
			return nil, false
		}
		out = append(out, c)
	}
	return out, true
}

// remove drops the given cards from the hand, preserving order.
func (p *Player) remove(played []cards.Card) {
	gone := make(map[string]struct{}, len(played))
	for _, c := range played {
		gone[c.ID] = struct{}{}
	}
	kept := p.Hand[:0:0]
	for _, c := range p.Hand {
		if _, ok := gone[c.ID]; !ok {
			kept = append(kept, c)
		}
	}
	p.Hand = kept
}

func (p *Player) clearBid() {
	p.Bid = 0
	p.HasBid = false
}
