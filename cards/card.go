package cards

import (
	"math/rand"
	"sort"
)

// Suit is a card suit. Jokers have no suit.
type Suit string

const (
	NoSuit   Suit = ""
	Spades   Suit = "S"
	Hearts   Suit = "H"
	Clubs    Suit = "C"
	Diamonds Suit = "D"
)

var suits = []Suit{Spades, Hearts, Clubs, Diamonds}

// Rank strengths. Three is the weakest rank, the big joker the strongest.
const (
	StrengthThree      = 3
	StrengthAce        = 14
	StrengthTwo        = 15
	StrengthSmallJoker = 16
	StrengthBigJoker   = 17
)

// Joker rank labels; they double as the joker card IDs.
const (
	SmallJoker = "SJ"
	BigJoker   = "BJ"
)

var rankLabels = map[int]string{
	3: "3", 4: "4", 5: "5", 6: "6", 7: "7", 8: "8", 9: "9", 10: "10",
	11: "J", 12: "Q", 13: "K", 14: "A", 15: "2",
	StrengthSmallJoker: SmallJoker,
	StrengthBigJoker:   BigJoker,
}

var suitOrder = map[Suit]int{Spades: 0, Hearts: 1, Clubs: 2, Diamonds: 3, NoSuit: 4}

// Card is an immutable playing card.
type Card struct {
	ID       string `json:"id"`
	Suit     Suit   `json:"suit,omitempty"`
	Rank     string `json:"rank"`
	Strength int    `json:"strength"`
}

// IsJoker reports whether c is one of the two jokers.
func (c Card) IsJoker() bool {
	return c.Strength >= StrengthSmallJoker
}

func newCard(strength int, suit Suit) Card {
	rank := rankLabels[strength]
	id := rank + string(suit)
	return Card{ID: id, Suit: suit, Rank: rank, Strength: strength}
}

// DeckSize is the number of cards in a full deck.
const DeckSize = 54

// HandSize is the number of cards dealt to each player.
const HandSize = 17

// ReserveSize is the number of cards set aside for the landlord.
const ReserveSize = 3

var fullDeck = buildDeck()

func buildDeck() []Card {
	deck := make([]Card, 0, DeckSize)
	for strength := StrengthThree; strength <= StrengthTwo; strength++ {
		for _, s := range suits {
			deck = append(deck, newCard(strength, s))
		}
	}
	deck = append(deck, newCard(StrengthSmallJoker, NoSuit), newCard(StrengthBigJoker, NoSuit))
	return deck
}

var byID = func() map[string]Card {
	m := make(map[string]Card, DeckSize)
	for _, c := range fullDeck {
		m[c.ID] = c
	}
	return m
}()

// NewDeck returns the 54 cards in canonical order: threes to twos, suit by
// suit, followed by the small and big joker.
func NewDeck() []Card {
	deck := make([]Card, len(fullDeck))
	copy(deck, fullDeck)
	return deck
}

// Lookup returns the card with the given ID.
func Lookup(id string) (Card, bool) {
	c, ok := byID[id]
	return c, ok
}

// ShuffleFunc reorders a deck in place.
type ShuffleFunc func(deck []Card)

// Shuffle randomizes the order of deck using math/rand.
func Shuffle(deck []Card) {
	rand.Shuffle(len(deck), func(i, j int) {
		deck[i], deck[j] = deck[j], deck[i]
	})
}

// Deal partitions a 54-card deck into three 17-card hands and a 3-card
// reserve. Each hand is returned sorted.
func Deal(deck []Card) (hands [3][]Card, reserve []Card) {
	for i := 0; i < 3; i++ {
		hand := make([]Card, HandSize)
		copy(hand, deck[i*HandSize:(i+1)*HandSize])
		Sort(hand)
		hands[i] = hand
	}
	reserve = make([]Card, ReserveSize)
	copy(reserve, deck[3*HandSize:])
	Sort(reserve)
	return hands, reserve
}

// Sort orders cards by strength, then suit.
func Sort(cs []Card) {
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].Strength != cs[j].Strength {
			return cs[i].Strength < cs[j].Strength
		}
		return suitOrder[cs[i].Suit] < suitOrder[cs[j].Suit]
	})
}

// IDs returns the IDs of cs in order.
func IDs(cs []Card) []string {
	ids := make([]string, len(cs))
	for i, c := range cs {
		ids[i] = c.ID
	}
	return ids
}
