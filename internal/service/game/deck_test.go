package game

import "testing"

func TestNewDeckComposition(t *testing.T) {
	deck := NewDeck(2)
	if len(deck) != 108 {
		t.Fatalf("deck size = %d, want 108", len(deck))
	}

	counts := make(map[string]int)
	for _, c := range deck {
		counts[c.Code()]++
	}
	if counts[JokerCode] != 2*jokersPerDeck {
		t.Fatalf("jokers = %d, want %d", counts[JokerCode], 2*jokersPerDeck)
	}
	for _, suit := range suits {
		for rank := 1; rank <= 13; rank++ {
			code := Card{Suit: suit, Rank: rank}.Code()
			if counts[code] != 2 {
				t.Fatalf("%s appears %d times, want 2", code, counts[code])
			}
		}
	}
}

func TestNewDeckClampsCopies(t *testing.T) {
	if got := len(NewDeck(0)); got != 54 {
		t.Fatalf("deck size for zero copies = %d, want 54", got)
	}
}

func TestDealConservation(t *testing.T) {
	deck := NewDeck(2)
	hands, rest := deal(deck, 5, HandSize)

	if len(hands) != 5 {
		t.Fatalf("hands = %d, want 5", len(hands))
	}
	total := len(rest)
	for seat, hand := range hands {
		if len(hand) != HandSize {
			t.Fatalf("seat %d hand size = %d, want %d", seat, len(hand), HandSize)
		}
		total += len(hand)
	}
	if total != len(deck) {
		t.Fatalf("dealt total = %d, want %d", total, len(deck))
	}
}

func TestCanDealBounds(t *testing.T) {
	// 3 seats need 3*13 hands + open pile seed + wild indicator
	if !canDeal(41, 3, HandSize) {
		t.Fatalf("41 cards must suffice for 3 seats")
	}
	if canDeal(40, 3, HandSize) {
		t.Fatalf("40 cards must not suffice for 3 seats")
	}
}
