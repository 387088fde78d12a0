package game

import (
	"fmt"
	"time"

	appErr "rummy-service/pkg/errors"
	"rummy-service/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StartRound runs the toss and kicks the phase machine for a filled
// table. For deals/pool tables this is also the chaining entry for
// every subsequent round of the match.
func (s *Service) StartRound(tableID string) (*Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.store.Table(tableID)
	if !ok {
		return nil, appErr.ErrTableNotFound
	}
	return s.startRoundLocked(t)
}

func (s *Service) startRoundLocked(t *Table) (*Round, error) {
	players := s.roundPlayersLocked(t)
	if len(players) < MinSeatedCount || len(players) > t.SeatCount {
		return nil, fmt.Errorf("%w: %d players on table %s", appErr.ErrBadPlayerCount, len(players), t.ID)
	}
	if t.RoundID != "" {
		return nil, appErr.ErrRoundSettled
	}

	toss := Toss(players, s.cfg.JoinOrderToss)
	n := len(toss.Order)

	r := &Round{
		ID:            uuid.NewString(),
		TableID:       t.ID,
		Format:        t.Format,
		Phase:         PhaseToss,
		Players:       toss.Order,
		Toss:          toss,
		Hands:         make([][]Card, n),
		Groupings:     make([][][]Card, n),
		Packed:        make([]bool, n),
		EverDrawn:     make([]bool, n),
		Turn:          make([]seatTurn, n),
		forcedMaxSeat: -1,
		StartedAt:     time.Now(),
	}
	s.store.PutRound(r)
	t.RoundID = r.ID
	t.Status = TablePlaying

	logger.Log.Info("round started",
		zap.String("roundID", r.ID),
		zap.String("tableID", t.ID),
		zap.String("format", string(t.Format)),
		zap.Int("players", n),
	)

	tossCards := make(map[string]string, n)
	for userID, card := range toss.Cards {
		tossCards[fmt.Sprintf("%d", userID)] = card.Code()
	}
	s.emitter.ToTable(t.ID, "start-game", map[string]interface{}{
		"roundId":   r.ID,
		"order":     toss.Order,
		"tossCards": tossCards,
	})

	s.schedulePhaseLocked(r, s.cfg.TossDelay, s.enterDealingLocked, s.enterDealing)
	return r, nil
}

// roundPlayersLocked collects the users who take part in the next
// round: every seated user, minus pool eliminations.
func (s *Service) roundPlayersLocked(t *Table) []int64 {
	players := make([]int64, 0, t.SeatCount)
	for _, id := range t.Seats {
		if id != 0 {
			players = append(players, id)
		}
	}
	if t.Format == FormatPool {
		if pool, ok := s.store.Pool(t.ID); ok {
			players = pool.RemainingPlayers(players)
		}
	}
	return players
}

func (s *Service) enterDealing(roundID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.store.Round(roundID)
	if !ok || r.Phase != PhaseToss {
		return
	}
	s.enterDealingLocked(r)
}

func (s *Service) enterDealingLocked(r *Round) {
	r.Phase = PhaseDealing

	deck := NewDeck(s.cfg.DeckCount)
	seats := len(r.Players)
	if !canDeal(len(deck), seats, HandSize) {
		logger.Log.Error("deck too small for table, aborting round",
			zap.String("roundID", r.ID),
			zap.Int("deck", len(deck)),
			zap.Int("seats", seats),
		)
		s.abortRoundLocked(r)
		return
	}

	hands, rest := deal(deck, seats, HandSize)
	r.Hands = hands
	r.DiscardPile = []Card{rest[0]}
	r.WildCard = rest[1]
	r.WildRank = rest[1].Rank // printed joker indicator leaves rank 0: nothing extra is wild
	r.DrawPile = rest[2:]

	for seat, userID := range r.Players {
		s.emitter.ToUser(userID, "my-card", map[string]interface{}{
			"roundId": r.ID,
			"cards":   CardCodes(r.Hands[seat]),
		})
	}
	s.broadcastStatusLocked(r)

	s.schedulePhaseLocked(r, s.cfg.DealDelay, s.enterStartedLocked, s.enterStarted)
}

func (s *Service) enterStarted(roundID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.store.Round(roundID)
	if !ok || r.Phase != PhaseDealing {
		return
	}
	s.enterStartedLocked(r)
}

func (s *Service) enterStartedLocked(r *Round) {
	r.Phase = PhaseStarted
	r.CurrentTurn = 0 // toss winner opens
	s.armDeadlineLocked(r)
	s.startTickerLocked(r)
	s.broadcastStatusLocked(r)
	s.armBotLocked(r)
	s.snapshotAsync(r)
}

// guardTurnLocked gates every turn-scoped action: round started, seat
// occupied by this user, seat on turn, seat not packed.
func (s *Service) guardTurnLocked(r *Round, userID int64) (int, error) {
	if r.Phase != PhaseStarted {
		return -1, appErr.ErrRoundNotStarted
	}
	seat := r.seatOf(userID)
	if seat < 0 {
		return -1, appErr.ErrTableAccessDenied
	}
	if r.Packed[seat] {
		return -1, appErr.ErrAlreadyPacked
	}
	if seat != r.CurrentTurn {
		return -1, appErr.ErrNotYourTurn
	}
	return seat, nil
}

// DrawFromDeck draws the top card of the closed pile.
func (s *Service) DrawFromDeck(roundID string, userID int64) (Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.store.Round(roundID)
	if !ok {
		return Card{}, appErr.ErrRoundNotFound
	}
	seat, err := s.guardTurnLocked(r, userID)
	if err != nil {
		return Card{}, err
	}
	return s.drawLocked(r, seat, DrawClosed)
}

// DrawFromDiscard draws the top card of the open pile.
func (s *Service) DrawFromDiscard(roundID string, userID int64) (Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.store.Round(roundID)
	if !ok {
		return Card{}, appErr.ErrRoundNotFound
	}
	seat, err := s.guardTurnLocked(r, userID)
	if err != nil {
		return Card{}, err
	}
	return s.drawLocked(r, seat, DrawOpen)
}

func (s *Service) drawLocked(r *Round, seat int, from DrawSource) (Card, error) {
	if r.Turn[seat].DrawnThisTurn {
		return Card{}, appErr.ErrAlreadyDrawn
	}

	var card Card
	switch from {
	case DrawOpen:
		top, ok := r.discardTop()
		if !ok {
			return Card{}, appErr.ErrDeckExhausted
		}
		r.DiscardPile = r.DiscardPile[:len(r.DiscardPile)-1]
		card = top
	default:
		if len(r.DrawPile) == 0 {
			s.recycleDiscardLocked(r)
		}
		if len(r.DrawPile) == 0 {
			return Card{}, appErr.ErrDeckExhausted
		}
		card = r.DrawPile[len(r.DrawPile)-1]
		r.DrawPile = r.DrawPile[:len(r.DrawPile)-1]
	}

	r.Hands[seat] = append(r.Hands[seat], card)
	r.EverDrawn[seat] = true
	r.Turn[seat] = seatTurn{DrawnThisTurn: true, LastDrawn: card, LastDrawnFrom: from}

	s.emitter.ToUser(r.Players[seat], "my-card", map[string]interface{}{
		"roundId": r.ID,
		"cards":   CardCodes(r.Hands[seat]),
		"drawn":   card.Code(),
	})
	s.broadcastStatusLocked(r)
	return card, nil
}

// recycleDiscardLocked folds the open pile, minus its top card, back
// into a reshuffled draw pile when the closed pile runs dry.
func (s *Service) recycleDiscardLocked(r *Round) {
	if len(r.DiscardPile) <= 1 {
		return
	}
	top := r.DiscardPile[len(r.DiscardPile)-1]
	recycled := make([]Card, len(r.DiscardPile)-1)
	copy(recycled, r.DiscardPile[:len(r.DiscardPile)-1])
	shuffleCards(recycled)
	r.DrawPile = recycled
	r.DiscardPile = []Card{top}
	logger.Log.Info("discard pile recycled into draw pile",
		zap.String("roundID", r.ID),
		zap.Int("cards", len(recycled)),
	)
}

// Discard puts one card on the open pile and passes the turn.
func (s *Service) Discard(roundID string, userID int64, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.store.Round(roundID)
	if !ok {
		return appErr.ErrRoundNotFound
	}
	seat, err := s.guardTurnLocked(r, userID)
	if err != nil {
		return err
	}
	card, err := ParseCard(code)
	if err != nil {
		return fmt.Errorf("%w: %v", appErr.ErrInvalidPayload, err)
	}
	return s.discardLocked(r, seat, card)
}

func (s *Service) discardLocked(r *Round, seat int, card Card) error {
	turn := r.Turn[seat]
	if !turn.DrawnThisTurn {
		return appErr.ErrMustDrawFirst
	}
	if turn.LastDrawnFrom == DrawOpen && card.Equal(turn.LastDrawn) {
		return appErr.ErrOpenDrawCycle
	}
	hand, ok := removeCard(r.Hands[seat], card)
	if !ok {
		return appErr.ErrCardNotInHand
	}
	r.Hands[seat] = hand
	r.DiscardPile = append(r.DiscardPile, card)
	r.Turn[seat] = seatTurn{}

	r.CurrentTurn = r.nextActiveSeat(seat)
	r.Turn[r.CurrentTurn] = seatTurn{}
	s.armDeadlineLocked(r)
	s.broadcastStatusLocked(r)
	s.armBotLocked(r)
	s.snapshotAsync(r)
	return nil
}

// GroupCards stores a seat's hand arrangement. It is UI state only;
// turn logic never reads it, settlement uses it to score deadwood.
func (s *Service) GroupCards(roundID string, userID int64, groups [][]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.store.Round(roundID)
	if !ok {
		return appErr.ErrRoundNotFound
	}
	seat := r.seatOf(userID)
	if seat < 0 {
		return appErr.ErrTableAccessDenied
	}
	parsed := make([][]Card, 0, len(groups))
	for _, g := range groups {
		cards, err := ParseCards(g)
		if err != nil {
			return fmt.Errorf("%w: %v", appErr.ErrInvalidPayload, err)
		}
		parsed = append(parsed, cards)
	}
	r.Groupings[seat] = parsed
	return nil
}

// Pack folds a seat out of the round. It is the shared path for
// voluntary packs, leave-table, disconnect grace expiry and timeout.
func (s *Service) Pack(roundID string, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.store.Round(roundID)
	if !ok {
		return appErr.ErrRoundNotFound
	}
	if r.Phase != PhaseStarted {
		return appErr.ErrRoundNotStarted
	}
	seat := r.seatOf(userID)
	if seat < 0 {
		return appErr.ErrTableAccessDenied
	}
	return s.packLocked(r, seat)
}

func (s *Service) packLocked(r *Round, seat int) error {
	if r.Packed[seat] {
		return appErr.ErrAlreadyPacked
	}
	r.Packed[seat] = true
	logger.Log.Info("seat packed",
		zap.String("roundID", r.ID),
		zap.Int("seat", seat),
		zap.Int64("userID", r.Players[seat]),
	)

	active := r.activeSeats()
	if len(active) <= 1 {
		winnerSeat := seat
		if len(active) == 1 {
			winnerSeat = active[0]
		}
		s.endRoundLocked(r, winnerSeat, "last-survivor")
		return nil
	}

	if r.CurrentTurn == seat {
		r.CurrentTurn = r.nextActiveSeat(seat)
		r.Turn[r.CurrentTurn] = seatTurn{}
		s.armDeadlineLocked(r)
		s.armBotLocked(r)
	}
	s.broadcastStatusLocked(r)
	return nil
}

// Declare validates a finish attempt. A valid declare wins the round;
// an invalid one is a misdeclare: max points to the declarer and the
// first other occupied seat takes the round.
func (s *Service) Declare(roundID string, userID int64, groups [][]string, finishCode string) (*Settlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.store.Round(roundID)
	if !ok {
		return nil, appErr.ErrRoundNotFound
	}
	seat, err := s.guardTurnLocked(r, userID)
	if err != nil {
		return nil, err
	}
	turn := r.Turn[seat]
	if !turn.DrawnThisTurn {
		return nil, appErr.ErrMustDrawFirst
	}

	finish, err := ParseCard(finishCode)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", appErr.ErrInvalidPayload, err)
	}
	if turn.LastDrawnFrom == DrawOpen && finish.Equal(turn.LastDrawn) {
		return nil, appErr.ErrOpenDrawCycle
	}

	parsed := make([][]Card, 0, len(groups))
	for _, g := range groups {
		cards, err := ParseCards(g)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", appErr.ErrInvalidPayload, err)
		}
		parsed = append(parsed, cards)
	}

	rest, ok := removeCard(r.Hands[seat], finish)
	if !ok {
		return nil, appErr.ErrCardNotInHand
	}
	if !coversExactly(rest, parsed) {
		return nil, appErr.ErrIncompleteGroups
	}

	// finish card goes face down; from here the round is over either way
	r.Hands[seat] = rest
	r.DiscardPile = append(r.DiscardPile, finish)
	r.Groupings[seat] = parsed

	verdict := ValidateDeclare(parsed, r.WildRank)
	if !verdict.Valid {
		logger.Log.Info("misdeclare",
			zap.String("roundID", r.ID),
			zap.Int64("userID", userID),
			zap.Int("pureSequences", verdict.PureSequences),
			zap.Int("totalSequences", verdict.TotalSequences),
		)
		r.forcedMaxSeat = seat
		winnerSeat := firstOtherOccupiedSeat(r, seat)
		return s.endRoundLocked(r, winnerSeat, "misdeclare"), nil
	}

	return s.endRoundLocked(r, seat, "declared"), nil
}

func firstOtherOccupiedSeat(r *Round, declarer int) int {
	for seat, userID := range r.Players {
		if seat != declarer && userID != 0 {
			return seat
		}
	}
	return declarer
}

// coversExactly checks the groups are a full partition of the hand.
func coversExactly(hand []Card, groups [][]Card) bool {
	remaining := make([]Card, len(hand))
	copy(remaining, hand)
	for _, group := range groups {
		_, rest, ok := takeCards(remaining, group)
		if !ok {
			return false
		}
		remaining = rest
	}
	return len(remaining) == 0
}

// endRoundLocked is the single round teardown path. It stops every
// timer, dispatches the format strategy, broadcasts round-end,
// hands the money moves to the wallet gateway and either recycles the
// table to waiting or chains the next round of a deals/pool match.
func (s *Service) endRoundLocked(r *Round, winnerSeat int, reason string) *Settlement {
	r.Phase = PhaseCompleted
	s.stopTimers(r.ID)

	t, hasTable := s.store.Table(r.TableID)
	if !hasTable {
		s.store.DeleteRound(r.ID)
		return nil
	}

	settlement := strategyFor(r.Format).Settle(s, t, r, winnerSeat)

	logger.Log.Info("round ended",
		zap.String("roundID", r.ID),
		zap.String("tableID", t.ID),
		zap.String("reason", reason),
		zap.Int64("winnerID", settlement.WinnerID),
		zap.Int64("rake", settlement.Rake),
		zap.Bool("matchOver", settlement.MatchOver),
	)

	s.emitter.ToTable(t.ID, "round-end", map[string]interface{}{
		"roundId":    r.ID,
		"reason":     reason,
		"winnerId":   settlement.WinnerID,
		"outcomes":   settlement.Outcomes,
		"rake":       settlement.Rake,
		"matchOver":  settlement.MatchOver,
		"eliminated": settlement.Eliminated,
		"match":      settlement.Match,
	})

	s.store.DeleteRound(r.ID)
	t.RoundID = ""
	s.settleAsync(t, settlement)

	if settlement.MatchOver {
		s.store.DeleteDeals(t.ID)
		s.store.DeletePool(t.ID)
		for i := range t.Seats {
			t.Seats[i] = 0
		}
		t.Bots = make(map[int64]bool)
		t.Status = TableWaiting
		s.persistTableAsync(t)
		return settlement
	}

	// deals/pool mid-match: drop eliminated seats and chain the next round
	for _, userID := range settlement.Eliminated {
		if seat := t.SeatOf(userID); seat >= 0 {
			t.Seats[seat] = 0
		}
	}
	t.Status = TableWaiting
	if _, err := s.startRoundLocked(t); err != nil {
		logger.Log.Error("failed to chain next round, recycling table",
			zap.String("tableID", t.ID),
			zap.Error(err),
		)
		for i := range t.Seats {
			t.Seats[i] = 0
		}
		t.Status = TableWaiting
		s.store.DeleteDeals(t.ID)
		s.store.DeletePool(t.ID)
	}
	s.persistTableAsync(t)
	return settlement
}

// abortRoundLocked handles fatal setup failures (deck underflow, seat
// corruption): no settlement, holds released, table recycled.
func (s *Service) abortRoundLocked(r *Round) {
	r.Phase = PhaseCompleted
	s.stopTimers(r.ID)
	s.store.DeleteRound(r.ID)
	if t, ok := s.store.Table(r.TableID); ok {
		t.RoundID = ""
		t.Status = TableWaiting
		s.releaseHoldsAsync(t.ID)
		s.persistTableAsync(t)
	}
	s.emitter.ToTable(r.TableID, "round-end", map[string]interface{}{
		"roundId": r.ID,
		"reason":  "aborted",
	})
}

func removeCard(hand []Card, card Card) ([]Card, bool) {
	for i, c := range hand {
		if c.Equal(card) {
			out := make([]Card, 0, len(hand)-1)
			out = append(out, hand[:i]...)
			out = append(out, hand[i+1:]...)
			return out, true
		}
	}
	return hand, false
}
