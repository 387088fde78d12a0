package game

import (
	"errors"
	"testing"
	"time"

	appErr "rummy-service/pkg/errors"
)

func TestRoundStartsWhenTableFills(t *testing.T) {
	svc, _ := newTestEngine(t, testConfig())
	table := svc.CreateTable(100, 2, FormatPoints, 1)

	r := seatPlayers(t, svc, table, 11, 22)

	if r.Phase != PhaseStarted {
		t.Fatalf("phase = %s, want %s", r.Phase, PhaseStarted)
	}
	if r.CurrentTurn != 0 {
		t.Fatalf("current turn = %d, want 0", r.CurrentTurn)
	}
	if got := len(r.Hands[0]); got != HandSize {
		t.Fatalf("hand size = %d, want %d", got, HandSize)
	}
	if len(r.DiscardPile) != 1 {
		t.Fatalf("open pile seed = %d cards, want 1", len(r.DiscardPile))
	}
}

func TestCardConservation(t *testing.T) {
	cfg := testConfig()
	svc, _ := newTestEngine(t, cfg)
	table := svc.CreateTable(100, 2, FormatPoints, 1)
	r := seatPlayers(t, svc, table, 11, 22)

	// wild indicator sits outside the piles
	total := cfg.DeckCount*54 - 1
	if got := r.cardCount(); got != total {
		t.Fatalf("cards after deal = %d, want %d", got, total)
	}

	if _, err := svc.DrawFromDeck(r.ID, 11); err != nil {
		t.Fatalf("draw: %v", err)
	}
	if got := r.cardCount(); got != total {
		t.Fatalf("cards after draw = %d, want %d", got, total)
	}

	if err := svc.Discard(r.ID, 11, r.Hands[0][0].Code()); err != nil {
		t.Fatalf("discard: %v", err)
	}
	if got := r.cardCount(); got != total {
		t.Fatalf("cards after discard = %d, want %d", got, total)
	}
}

func TestTurnGating(t *testing.T) {
	svc, _ := newTestEngine(t, testConfig())
	table := svc.CreateTable(100, 2, FormatPoints, 1)
	r := seatPlayers(t, svc, table, 11, 22)

	if _, err := svc.DrawFromDeck(r.ID, 22); !errors.Is(err, appErr.ErrNotYourTurn) {
		t.Fatalf("off-turn draw err = %v, want ErrNotYourTurn", err)
	}
	if err := svc.Discard(r.ID, 11, r.Hands[0][0].Code()); !errors.Is(err, appErr.ErrMustDrawFirst) {
		t.Fatalf("discard before draw err = %v, want ErrMustDrawFirst", err)
	}
	if _, err := svc.DrawFromDeck(r.ID, 11); err != nil {
		t.Fatalf("draw: %v", err)
	}
	if _, err := svc.DrawFromDeck(r.ID, 11); !errors.Is(err, appErr.ErrAlreadyDrawn) {
		t.Fatalf("second draw err = %v, want ErrAlreadyDrawn", err)
	}

	if err := svc.Discard(r.ID, 11, r.Hands[0][0].Code()); err != nil {
		t.Fatalf("discard: %v", err)
	}
	if r.CurrentTurn != 1 {
		t.Fatalf("turn after discard = %d, want 1", r.CurrentTurn)
	}
}

func TestOpenPileDrawCannotBounceBack(t *testing.T) {
	svc, _ := newTestEngine(t, testConfig())
	table := svc.CreateTable(100, 2, FormatPoints, 1)
	r := seatPlayers(t, svc, table, 11, 22)

	top, err := svc.DrawFromDiscard(r.ID, 11)
	if err != nil {
		t.Fatalf("draw from open pile: %v", err)
	}
	if err := svc.Discard(r.ID, 11, top.Code()); !errors.Is(err, appErr.ErrOpenDrawCycle) {
		t.Fatalf("bounce-back discard err = %v, want ErrOpenDrawCycle", err)
	}

	// any other card is fine
	var other Card
	for _, c := range r.Hands[0] {
		if !c.Equal(top) {
			other = c
			break
		}
	}
	if err := svc.Discard(r.ID, 11, other.Code()); err != nil {
		t.Fatalf("discard other card: %v", err)
	}
}

func TestValidDeclareWinsRound(t *testing.T) {
	svc, wallet := newTestEngine(t, testConfig())
	table := svc.CreateTable(100, 2, FormatPoints, 1)
	r := seatPlayers(t, svc, table, 11, 22)

	if _, err := svc.DrawFromDeck(r.ID, 11); err != nil {
		t.Fatalf("draw: %v", err)
	}
	giveHand(t, r, 0,
		"H2", "H3", "H4",
		"S5", "S6", "S7",
		"D9", "D10", "D11",
		"C1", "C2", "C3", "C4",
		"S13",
	)

	groups := [][]string{
		{"H2", "H3", "H4"},
		{"S5", "S6", "S7"},
		{"D9", "D10", "D11"},
		{"C1", "C2", "C3", "C4"},
	}
	st, err := svc.Declare(r.ID, 11, groups, "S13")
	if err != nil {
		t.Fatalf("declare: %v", err)
	}
	if st.WinnerID != 11 {
		t.Fatalf("winner = %d, want 11", st.WinnerID)
	}
	if !st.MatchOver {
		t.Fatalf("points round must settle the match")
	}

	var winner, loser SeatOutcome
	for _, o := range st.Outcomes {
		if o.Winner {
			winner = o
		} else {
			loser = o
		}
	}
	if winner.Points != 0 {
		t.Fatalf("winner points = %d, want 0", winner.Points)
	}
	if loser.Points <= 0 {
		t.Fatalf("loser points = %d, want > 0", loser.Points)
	}
	if winner.Delta != st.Gross-st.Rake {
		t.Fatalf("winner delta = %d, want gross-rake = %d", winner.Delta, st.Gross-st.Rake)
	}

	// table recycles to waiting with seats cleared
	if table.Status != TableWaiting || table.RoundID != "" {
		t.Fatalf("table not recycled: status=%s roundID=%q", table.Status, table.RoundID)
	}
	for seat, id := range table.Seats {
		if id != 0 {
			t.Fatalf("seat %d still occupied by %d", seat, id)
		}
	}

	call := wallet.awaitSettle(t, st.RoundID)
	if call.WinnerID != 11 {
		t.Fatalf("settle winner = %d, want 11", call.WinnerID)
	}
	if call.Deltas[11] != st.Gross-st.Rake {
		t.Fatalf("settle delta = %d, want %d", call.Deltas[11], st.Gross-st.Rake)
	}
}

func TestMisdeclareForfeitsToFirstOtherSeat(t *testing.T) {
	cfg := testConfig()
	svc, _ := newTestEngine(t, cfg)
	table := svc.CreateTable(100, 2, FormatPoints, 1)
	r := seatPlayers(t, svc, table, 11, 22)

	if _, err := svc.DrawFromDeck(r.ID, 11); err != nil {
		t.Fatalf("draw: %v", err)
	}
	// no sequences at all
	giveHand(t, r, 0,
		"H2", "H5", "H9",
		"S2", "S5", "S9",
		"D2", "D5", "D9",
		"C2", "C5", "C9", "C12",
		"S13",
	)
	groups := [][]string{
		{"H2", "H5", "H9"},
		{"S2", "S5", "S9"},
		{"D2", "D5", "D9"},
		{"C2", "C5", "C9", "C12"},
	}
	st, err := svc.Declare(r.ID, 11, groups, "S13")
	if err != nil {
		t.Fatalf("declare: %v", err)
	}
	if st.WinnerID != 22 {
		t.Fatalf("winner = %d, want 22 (first other occupied seat)", st.WinnerID)
	}
	for _, o := range st.Outcomes {
		if o.UserID == 11 && o.Points != cfg.MaxPoints {
			t.Fatalf("misdeclarer points = %d, want max %d", o.Points, cfg.MaxPoints)
		}
	}
}

func TestDeclareRequiresFullPartition(t *testing.T) {
	svc, _ := newTestEngine(t, testConfig())
	table := svc.CreateTable(100, 2, FormatPoints, 1)
	r := seatPlayers(t, svc, table, 11, 22)

	if _, err := svc.DrawFromDeck(r.ID, 11); err != nil {
		t.Fatalf("draw: %v", err)
	}
	giveHand(t, r, 0,
		"H2", "H3", "H4",
		"S5", "S6", "S7",
		"D9", "D10", "D11",
		"C1", "C2", "C3", "C4",
		"S13",
	)
	// first group missing: 3 cards left uncovered
	groups := [][]string{
		{"S5", "S6", "S7"},
		{"D9", "D10", "D11"},
		{"C1", "C2", "C3", "C4"},
	}
	if _, err := svc.Declare(r.ID, 11, groups, "S13"); !errors.Is(err, appErr.ErrIncompleteGroups) {
		t.Fatalf("partial declare err = %v, want ErrIncompleteGroups", err)
	}
	if r.Phase != PhaseStarted {
		t.Fatalf("failed declare must not end the round, phase = %s", r.Phase)
	}
}

func TestPackToLastSurvivorEndsRound(t *testing.T) {
	svc, _ := newTestEngine(t, testConfig())
	table := svc.CreateTable(100, 2, FormatPoints, 1)
	r := seatPlayers(t, svc, table, 11, 22)

	if err := svc.Pack(r.ID, 11); err != nil {
		t.Fatalf("pack: %v", err)
	}
	if _, ok := svc.store.Round(r.ID); ok {
		t.Fatalf("round still in store after last-survivor pack")
	}
	if table.RoundID != "" || table.Status != TableWaiting {
		t.Fatalf("table not recycled: status=%s roundID=%q", table.Status, table.RoundID)
	}
}

func TestPackIsMonotonic(t *testing.T) {
	svc, _ := newTestEngine(t, testConfig())
	table := svc.CreateTable(100, 3, FormatPoints, 1)
	r := seatPlayers(t, svc, table, 11, 22, 33)

	if err := svc.Pack(r.ID, 22); err != nil {
		t.Fatalf("pack: %v", err)
	}
	if err := svc.Pack(r.ID, 22); !errors.Is(err, appErr.ErrAlreadyPacked) {
		t.Fatalf("re-pack err = %v, want ErrAlreadyPacked", err)
	}
	// packed seats lose their turn rights for the rest of the round
	if _, err := svc.DrawFromDeck(r.ID, 22); !errors.Is(err, appErr.ErrAlreadyPacked) {
		t.Fatalf("packed draw err = %v, want ErrAlreadyPacked", err)
	}
}

func TestTurnTimeoutAutoPacks(t *testing.T) {
	svc, _ := newTestEngine(t, testConfig())
	table := svc.CreateTable(100, 3, FormatPoints, 1)
	r := seatPlayers(t, svc, table, 11, 22, 33)

	svc.mu.Lock()
	r.TurnDeadline = time.Now().Add(-time.Second)
	svc.mu.Unlock()
	svc.onTurnTimeout(r.ID)

	if !r.Packed[0] {
		t.Fatalf("seat 0 not packed after timeout")
	}
	if r.CurrentTurn != 1 {
		t.Fatalf("turn after timeout = %d, want 1", r.CurrentTurn)
	}

	// a timeout for a deadline that was re-armed is ignored
	svc.onTurnTimeout(r.ID)
	if r.Packed[1] {
		t.Fatalf("fresh deadline must not auto-pack")
	}
}

func TestDealsMatchChainsRounds(t *testing.T) {
	cfg := testConfig()
	cfg.DealsPerMatch = 2
	svc, wallet := newTestEngine(t, cfg)
	table := svc.CreateTable(100, 2, FormatDeals, 1)
	r1 := seatPlayers(t, svc, table, 11, 22)

	if err := svc.Pack(r1.ID, 11); err != nil {
		t.Fatalf("pack round 1: %v", err)
	}

	// mid-match: next round chained on the same table
	if table.RoundID == "" || table.RoundID == r1.ID {
		t.Fatalf("round 2 not chained, roundID=%q", table.RoundID)
	}
	deals, ok := svc.store.Deals(table.ID)
	if !ok {
		t.Fatalf("deals state missing mid-match")
	}
	if deals.Remaining != 1 {
		t.Fatalf("remaining deals = %d, want 1", deals.Remaining)
	}
	if deals.Cumulative[11] != cfg.FirstDropPts {
		t.Fatalf("first-drop cumulative = %d, want %d", deals.Cumulative[11], cfg.FirstDropPts)
	}

	r2, _ := svc.store.Round(table.RoundID)
	if err := svc.Pack(r2.ID, 11); err != nil {
		t.Fatalf("pack round 2: %v", err)
	}

	if _, ok := svc.store.Deals(table.ID); ok {
		t.Fatalf("deals state not cleared at match end")
	}
	if table.Status != TableWaiting || table.SeatedCount() != 0 {
		t.Fatalf("table not recycled at match end")
	}

	// both rounds settle asynchronously; only the match-end one moves money
	final := wallet.awaitSettle(t, r2.ID)
	if final.WinnerID != 22 {
		t.Fatalf("match winner = %d, want 22", final.WinnerID)
	}
	if final.Deltas[22] <= 0 || final.Deltas[11] >= 0 {
		t.Fatalf("match deltas = %v", final.Deltas)
	}
}

func TestPoolEliminationAndWinner(t *testing.T) {
	cfg := testConfig()
	cfg.PoolThreshold = 30 // two first-drops cross it
	svc, wallet := newTestEngine(t, cfg)
	table := svc.CreateTable(100, 2, FormatPool, 1)
	r1 := seatPlayers(t, svc, table, 11, 22)

	if err := svc.Pack(r1.ID, 11); err != nil {
		t.Fatalf("pack round 1: %v", err)
	}
	pool, ok := svc.store.Pool(table.ID)
	if !ok {
		t.Fatalf("pool state missing mid-match")
	}
	if pool.IsEliminated(11) {
		t.Fatalf("one first-drop must not eliminate at threshold %d", cfg.PoolThreshold)
	}

	r2, _ := svc.store.Round(table.RoundID)
	if err := svc.Pack(r2.ID, 11); err != nil {
		t.Fatalf("pack round 2: %v", err)
	}

	if _, ok := svc.store.Pool(table.ID); ok {
		t.Fatalf("pool state not cleared at match end")
	}

	final := wallet.awaitSettle(t, r2.ID)
	if final.WinnerID != 22 {
		t.Fatalf("pool winner = %d, want 22", final.WinnerID)
	}
	if final.Deltas[11] != -40 {
		t.Fatalf("eliminated delta = %d, want -40", final.Deltas[11])
	}
}

func TestForceWinEndsRound(t *testing.T) {
	svc, _ := newTestEngine(t, testConfig())
	table := svc.CreateTable(100, 2, FormatPoints, 1)
	r := seatPlayers(t, svc, table, 11, 22)

	st, err := svc.ForceWin(r.ID, 22)
	if err != nil {
		t.Fatalf("force win: %v", err)
	}
	if st.WinnerID != 22 {
		t.Fatalf("winner = %d, want 22", st.WinnerID)
	}
	if _, ok := svc.store.Round(r.ID); ok {
		t.Fatalf("round still live after forced end")
	}
}
