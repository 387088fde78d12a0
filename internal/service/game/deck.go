package game

import (
	mrand "math/rand"
	"sort"
)

const (
	HandSize       = 13
	jokersPerDeck  = 2
	MinSeatedCount = 2
)

var suits = []byte{'S', 'H', 'D', 'C'}

// NewDeck returns copies shuffled standard decks plus printed jokers.
func NewDeck(copies int) []Card {
	if copies < 1 {
		copies = 1
	}
	deck := make([]Card, 0, copies*(52+jokersPerDeck))
	for i := 0; i < copies; i++ {
		for _, suit := range suits {
			for rank := 1; rank <= 13; rank++ {
				deck = append(deck, Card{Suit: suit, Rank: rank})
			}
		}
		for j := 0; j < jokersPerDeck; j++ {
			deck = append(deck, Card{Joker: true})
		}
	}
	mrand.Shuffle(len(deck), func(i, j int) {
		deck[i], deck[j] = deck[j], deck[i]
	})
	return deck
}

// TossResult fixes the seating order for a round. The highest toss
// card seats first and takes the first turn.
type TossResult struct {
	Order []int64        // user ids in seating order
	Cards map[int64]Card // toss card shown per user
}

// Toss draws one card per player from a fresh single deck and ranks
// them ace-high with the fixed suit tie-break. joinOrder skips the
// draw entirely and seats players as given, for deterministic tests.
func Toss(players []int64, joinOrder bool) TossResult {
	result := TossResult{
		Order: make([]int64, len(players)),
		Cards: make(map[int64]Card, len(players)),
	}
	copy(result.Order, players)
	if joinOrder {
		return result
	}

	deck := NewDeck(1)
	for i, id := range players {
		result.Cards[id] = deck[i]
	}
	sort.SliceStable(result.Order, func(i, j int) bool {
		return result.Cards[result.Order[i]].TossRank() > result.Cards[result.Order[j]].TossRank()
	})
	return result
}

// deal pops n cards per seat round-robin, one at a time, in seat
// order. It never reads past the deck; the caller checks bounds via
// canDeal first.
func deal(deck []Card, seats, n int) (hands [][]Card, rest []Card) {
	hands = make([][]Card, seats)
	for i := range hands {
		hands[i] = make([]Card, 0, n)
	}
	idx := 0
	for c := 0; c < n; c++ {
		for s := 0; s < seats; s++ {
			if idx >= len(deck) {
				return hands, nil
			}
			hands[s] = append(hands[s], deck[idx])
			idx++
		}
	}
	return hands, deck[idx:]
}

// canDeal checks there are enough cards for the hands, the open pile
// seed and the wild indicator.
func canDeal(deckLen, seats, n int) bool {
	return deckLen >= seats*n+2
}

func shuffleCards(cards []Card) {
	mrand.Shuffle(len(cards), func(i, j int) {
		cards[i], cards[j] = cards[j], cards[i]
	})
}
