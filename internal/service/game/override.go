package game

import (
	appErr "rummy-service/pkg/errors"
	"rummy-service/pkg/logger"

	"go.uber.org/zap"
)

// Operator back doors for the test interface. These reuse the normal
// round paths under the engine lock; production handlers never call
// them.

// ForceWin ends the round immediately with the given user as winner,
// bypassing declare validation.
func (s *Service) ForceWin(roundID string, userID int64) (*Settlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.store.Round(roundID)
	if !ok {
		return nil, appErr.ErrRoundNotFound
	}
	if r.Phase != PhaseStarted {
		return nil, appErr.ErrRoundNotStarted
	}
	seat := r.seatOf(userID)
	if seat < 0 {
		return nil, appErr.ErrUnauthorized
	}
	if r.Packed[seat] {
		return nil, appErr.ErrAlreadyPacked
	}
	logger.Log.Warn("operator forced round end",
		zap.String("roundID", roundID),
		zap.Int64("winnerID", userID),
	)
	return s.endRoundLocked(r, seat, "forced"), nil
}

// SetDealsRemaining overrides the deal counter of a deals match.
func (s *Service) SetDealsRemaining(tableID string, remaining int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.store.Deals(tableID)
	if !ok {
		return appErr.ErrTableNotFound
	}
	d.Remaining = remaining
	s.store.PutDeals(d)
	return nil
}

// SetPoolScore overrides a user's cumulative pool total. The
// elimination check still runs at the next settlement, not here.
func (s *Service) SetPoolScore(tableID string, userID int64, score int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.store.Pool(tableID)
	if !ok {
		return appErr.ErrTableNotFound
	}
	p.Cumulative[userID] = score
	s.store.PutPool(p)
	return nil
}

// RoundDump is the operator's full view of a round, hands included.
type RoundDump struct {
	RoundID     string             `json:"roundId"`
	TableID     string             `json:"tableId"`
	Format      Format             `json:"format"`
	Phase       Phase              `json:"phase"`
	Players     []int64            `json:"players"`
	CurrentTurn int                `json:"currentTurn"`
	WildCard    string             `json:"wildCard"`
	DeckCount   int                `json:"deckCount"`
	DiscardPile []string           `json:"discardPile"`
	Hands       map[int64][]string `json:"hands"`
	Packed      []bool             `json:"packed"`
}

// RoundInfo exposes the complete round state, private hands included.
func (s *Service) RoundInfo(roundID string) (*RoundDump, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.store.Round(roundID)
	if !ok {
		return nil, appErr.ErrRoundNotFound
	}

	hands := make(map[int64][]string, len(r.Players))
	for seat, userID := range r.Players {
		if userID == 0 {
			continue
		}
		hands[userID] = CardCodes(r.Hands[seat])
	}
	return &RoundDump{
		RoundID:     r.ID,
		TableID:     r.TableID,
		Format:      r.Format,
		Phase:       r.Phase,
		Players:     append([]int64(nil), r.Players...),
		CurrentTurn: r.CurrentTurn,
		WildCard:    r.WildCard.Code(),
		DeckCount:   len(r.DrawPile),
		DiscardPile: CardCodes(r.DiscardPile),
		Hands:       hands,
		Packed:      append([]bool(nil), r.Packed...),
	}, nil
}
