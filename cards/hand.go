package cards

import "fmt"

// HandType is the shape of a played set of cards.
type HandType int

const (
	Invalid HandType = iota
	Single
	Pair
	Triple
	Bomb
	Rocket
	Straight
)

// MinStraightLength is the fewest cards a straight may contain.
const MinStraightLength = 5

// String returns the protocol string for a HandType.
func (t HandType) String() string {
	switch t {
	case Single:
		return "single"
	case Pair:
		return "pair"
	case Triple:
		return "triple"
	case Bomb:
		return "bomb"
	case Rocket:
		return "rocket"
	case Straight:
		return "straight"
	default:
		return "invalid"
	}
}

// MarshalText encodes the type by its protocol string.
func (t HandType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText decodes a protocol string produced by MarshalText.
func (t *HandType) UnmarshalText(text []byte) error {
	for _, v := range []HandType{Invalid, Single, Pair, Triple, Bomb, Rocket, Straight} {
		if v.String() == string(text) {
			*t = v
			return nil
		}
	}
	return fmt.Errorf("unknown hand type %q", text)
}

// Hand is a classified set of cards.
type Hand struct {
	Cards []Card   `json:"cards"`
	Type  HandType `json:"handType"`
}

// Classify returns the hand type formed by cs, or Invalid. Duplicate card IDs
// make a hand Invalid.
func Classify(cs []Card) HandType {
	n := len(cs)
	if n == 0 {
		return Invalid
	}
	seen := make(map[string]struct{}, n)
	for _, c := range cs {
		if _, dup := seen[c.ID]; dup {
			return Invalid
		}
		seen[c.ID] = struct{}{}
	}

	switch n {
	case 1:
		return Single
	case 2:
		if cs[0].IsJoker() && cs[1].IsJoker() {
			return Rocket
		}
		if sameRank(cs) {
			return Pair
		}
		return Invalid
	case 3:
		if sameRank(cs) {
			return Triple
		}
		return Invalid
	case 4:
		if sameRank(cs) {
			return Bomb
		}
		return Invalid
	}

	if n >= MinStraightLength && isStraight(cs) {
		return Straight
	}
	return Invalid
}

func sameRank(cs []Card) bool {
	for _, c := range cs[1:] {
		if c.Strength != cs[0].Strength {
			return false
		}
	}
	return true
}

// isStraight accepts twos: a run may end at strength 15 (A-2). Jokers never
// take part in a straight.
func isStraight(cs []Card) bool {
	ranks := make(map[int]struct{}, len(cs))
	lo, hi := cs[0].Strength, cs[0].Strength
	for _, c := range cs {
		if c.IsJoker() {
			return false
		}
		if _, dup := ranks[c.Strength]; dup {
			return false
		}
		ranks[c.Strength] = struct{}{}
		if c.Strength < lo {
			lo = c.Strength
		}
		if c.Strength > hi {
			hi = c.Strength
		}
	}
	return hi-lo+1 == len(cs)
}

// NewHand classifies cs and returns the hand with its cards sorted.
func NewHand(cs []Card) Hand {
	sorted := make([]Card, len(cs))
	copy(sorted, cs)
	Sort(sorted)
	return Hand{Cards: sorted, Type: Classify(sorted)}
}

// Representative is the strength a hand is compared by: the lowest card.
func (h Hand) Representative() int {
	if len(h.Cards) == 0 {
		return 0
	}
	lo := h.Cards[0].Strength
	for _, c := range h.Cards[1:] {
		if c.Strength < lo {
			lo = c.Strength
		}
	}
	return lo
}

// Beats reports whether a beats b. Hands of different non-bomb types are not
// comparable and never beat each other. A hand never beats itself.
func Beats(a, b Hand) bool {
	if a.Type == Invalid || b.Type == Invalid {
		return false
	}
	switch {
	case a.Type == Rocket:
		return b.Type != Rocket
	case b.Type == Rocket:
		return false
	case a.Type == Bomb && b.Type != Bomb:
		return true
	case b.Type == Bomb && a.Type != Bomb:
		return false
	}
	if a.Type != b.Type {
		return false
	}
	return a.Representative() > b.Representative()
}
