package game

import (
	"fmt"
	"strconv"
	"strings"
)

// Card codes are suit letter + rank number: "H1" (ace of hearts),
// "S13" (king of spades). Printed jokers are "JKR".
// Suits: S (spades), H (hearts), D (diamonds), C (clubs).
// Ranks: 1 (ace) .. 13 (king).

const JokerCode = "JKR"

type Card struct {
	Suit  byte
	Rank  int
	Joker bool
}

var suitOrder = map[byte]int{'S': 4, 'H': 3, 'D': 2, 'C': 1}

func ParseCard(code string) (Card, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == JokerCode {
		return Card{Joker: true}, nil
	}
	if len(code) < 2 {
		return Card{}, fmt.Errorf("invalid card code %q", code)
	}
	suit := code[0]
	if _, ok := suitOrder[suit]; !ok {
		return Card{}, fmt.Errorf("invalid suit in %q", code)
	}
	rank, err := strconv.Atoi(code[1:])
	if err != nil || rank < 1 || rank > 13 {
		return Card{}, fmt.Errorf("invalid rank in %q", code)
	}
	return Card{Suit: suit, Rank: rank}, nil
}

func ParseCards(codes []string) ([]Card, error) {
	cards := make([]Card, 0, len(codes))
	for _, code := range codes {
		c, err := ParseCard(code)
		if err != nil {
			return nil, err
		}
		cards = append(cards, c)
	}
	return cards, nil
}

func (c Card) Code() string {
	if c.Joker {
		return JokerCode
	}
	return string(c.Suit) + strconv.Itoa(c.Rank)
}

func (c Card) Equal(other Card) bool {
	return c.Joker == other.Joker && c.Suit == other.Suit && c.Rank == other.Rank
}

// IsWild reports whether the card substitutes freely: printed jokers
// always, plus any card of the round's wild rank.
func (c Card) IsWild(wildRank int) bool {
	return c.Joker || (wildRank > 0 && c.Rank == wildRank)
}

// PointValue scores a single card for deadwood: printed joker and
// wild-rank cards are free, face cards and aces cost 10, numeric
// cards cost their face value.
func (c Card) PointValue(wildRank int) int {
	if c.IsWild(wildRank) {
		return 0
	}
	if c.Rank == 1 || c.Rank >= 10 {
		return 10
	}
	return c.Rank
}

// TossRank orders cards for the seating toss: ace high, then a fixed
// suit tie-break (spades > hearts > diamonds > clubs). Jokers lose to
// everything.
func (c Card) TossRank() int {
	if c.Joker {
		return 0
	}
	rank := c.Rank
	if rank == 1 {
		rank = 14
	}
	return rank*10 + suitOrder[c.Suit]
}

func CardCodes(cards []Card) []string {
	codes := make([]string, len(cards))
	for i, c := range cards {
		codes[i] = c.Code()
	}
	return codes
}
