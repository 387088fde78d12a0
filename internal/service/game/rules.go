package game

import "sort"

// GroupKind classifies one declared group of cards.
type GroupKind string

const (
	GroupPureSequence   GroupKind = "pure_sequence"
	GroupImpureSequence GroupKind = "impure_sequence"
	GroupSet            GroupKind = "set"
	GroupInvalid        GroupKind = "invalid"
)

// EvaluateGroup classifies a group against the round's wild rank.
//
// A pure sequence is at least three same-suit cards with strictly
// consecutive ranks and no jokers or wild cards. A set is same-rank
// cards in distinct suits, with wilds filling duplicate-suit slots.
// An impure sequence is a single-suit run whose rank gaps are covered
// by the wilds in the group.
func EvaluateGroup(cards []Card, wildRank int) GroupKind {
	if len(cards) < 3 {
		return GroupInvalid
	}

	naturals := make([]Card, 0, len(cards))
	wilds := 0
	for _, c := range cards {
		if c.IsWild(wildRank) {
			wilds++
		} else {
			naturals = append(naturals, c)
		}
	}

	if wilds == 0 && isConsecutiveRun(naturals) {
		return GroupPureSequence
	}
	if len(naturals) == 0 {
		// nothing but wilds scores as a set
		return GroupSet
	}
	if isSet(naturals) {
		return GroupSet
	}
	if isImpureRun(naturals, wilds) {
		return GroupImpureSequence
	}
	return GroupInvalid
}

func isConsecutiveRun(cards []Card) bool {
	if len(cards) < 3 {
		return false
	}
	ranks, ok := sortedSuitRanks(cards)
	if !ok {
		return false
	}
	for i := 1; i < len(ranks); i++ {
		if ranks[i] != ranks[i-1]+1 {
			return false
		}
	}
	return true
}

func isImpureRun(naturals []Card, wilds int) bool {
	ranks, ok := sortedSuitRanks(naturals)
	if !ok {
		return false
	}
	gaps := 0
	for i := 1; i < len(ranks); i++ {
		if ranks[i] == ranks[i-1] {
			// duplicate rank can never sit in one run
			return false
		}
		gaps += ranks[i] - ranks[i-1] - 1
	}
	return gaps <= wilds
}

// sortedSuitRanks returns the sorted ranks when every card shares one
// suit, else ok=false.
func sortedSuitRanks(cards []Card) ([]int, bool) {
	suit := cards[0].Suit
	ranks := make([]int, len(cards))
	for i, c := range cards {
		if c.Suit != suit {
			return nil, false
		}
		ranks[i] = c.Rank
	}
	sort.Ints(ranks)
	return ranks, true
}

func isSet(naturals []Card) bool {
	rank := naturals[0].Rank
	seenSuits := make(map[byte]bool, 4)
	for _, c := range naturals {
		if c.Rank != rank {
			return false
		}
		if seenSuits[c.Suit] {
			return false
		}
		seenSuits[c.Suit] = true
	}
	return true
}

// DeclareVerdict is the outcome of validating a declare attempt.
type DeclareVerdict struct {
	Valid          bool        `json:"valid"`
	PureSequences  int         `json:"pureSequences"`
	TotalSequences int         `json:"totalSequences"`
	Kinds          []GroupKind `json:"kinds"`
}

// ValidateDeclare accepts a hand arrangement iff it holds at least
// one pure sequence and at least two sequences in total. Sets neither
// count toward the requirement nor break it.
func ValidateDeclare(groups [][]Card, wildRank int) DeclareVerdict {
	verdict := DeclareVerdict{Kinds: make([]GroupKind, len(groups))}
	for i, group := range groups {
		kind := EvaluateGroup(group, wildRank)
		verdict.Kinds[i] = kind
		switch kind {
		case GroupPureSequence:
			verdict.PureSequences++
			verdict.TotalSequences++
		case GroupImpureSequence:
			verdict.TotalSequences++
		}
	}
	verdict.Valid = verdict.PureSequences >= 1 && verdict.TotalSequences >= 2
	return verdict
}

// ComputeHandPoints scores a hand's deadwood. Cards covered by a
// valid group cost nothing; every other card, including the whole of
// any invalid group, scores its point value. Groups referencing cards
// not in the hand are ignored.
func ComputeHandPoints(hand []Card, groups [][]Card, wildRank int) (int, []Card) {
	remaining := make([]Card, len(hand))
	copy(remaining, hand)

	leftover := make([]Card, 0, len(hand))
	for _, group := range groups {
		taken, rest, ok := takeCards(remaining, group)
		if !ok {
			continue
		}
		remaining = rest
		if EvaluateGroup(taken, wildRank) == GroupInvalid {
			leftover = append(leftover, taken...)
		}
	}
	leftover = append(leftover, remaining...)

	points := 0
	for _, c := range leftover {
		points += c.PointValue(wildRank)
	}
	return points, leftover
}

// takeCards removes group cards from hand as a multiset, failing when
// any card is missing.
func takeCards(hand []Card, group []Card) (taken []Card, rest []Card, ok bool) {
	rest = make([]Card, len(hand))
	copy(rest, hand)
	taken = make([]Card, 0, len(group))
	for _, want := range group {
		found := -1
		for i, c := range rest {
			if c.Equal(want) {
				found = i
				break
			}
		}
		if found < 0 {
			return nil, hand, false
		}
		taken = append(taken, rest[found])
		rest = append(rest[:found], rest[found+1:]...)
	}
	return taken, rest, true
}
