package game

import "testing"

func TestApplyRake(t *testing.T) {
	tests := []struct {
		gross int64
		pct   float64
		want  int64
	}{
		{100, 0.10, 10},
		{15, 0.10, 2}, // rounds half away from zero
		{14, 0.10, 1},
		{0, 0.10, 0},
		{100, 0, 0},
	}
	for _, tt := range tests {
		if got := applyRake(tt.gross, tt.pct); got != tt.want {
			t.Fatalf("applyRake(%d, %v) = %d, want %d", tt.gross, tt.pct, got, tt.want)
		}
	}
}

func TestSeatPoints(t *testing.T) {
	cfg := testConfig()
	svc, _ := newTestEngine(t, cfg)
	table := svc.CreateTable(100, 4, FormatPoints, 1)
	r := seatPlayers(t, svc, table, 11, 22, 33, 44)

	giveHand(t, r, 1, "H2", "H3") // 5 deadwood
	giveHand(t, r, 2,
		"S13", "S13", "H13", "H13", "D13", "D13", "C13", "C13", "S12") // 90, capped

	r.Packed[3] = true

	if got := svc.seatPoints(r, 0, 0); got != 0 {
		t.Fatalf("winner points = %d, want 0", got)
	}
	if got := svc.seatPoints(r, 1, 0); got != 5 {
		t.Fatalf("deadwood points = %d, want 5", got)
	}
	if got := svc.seatPoints(r, 2, 0); got != cfg.MaxPoints {
		t.Fatalf("capped points = %d, want %d", got, cfg.MaxPoints)
	}
	if got := svc.seatPoints(r, 3, 0); got != cfg.FirstDropPts {
		t.Fatalf("first drop points = %d, want %d", got, cfg.FirstDropPts)
	}

	r.EverDrawn[3] = true
	if got := svc.seatPoints(r, 3, 0); got != cfg.MiddleDropPts {
		t.Fatalf("middle drop points = %d, want %d", got, cfg.MiddleDropPts)
	}

	r.forcedMaxSeat = 1
	if got := svc.seatPoints(r, 1, 0); got != cfg.MaxPoints {
		t.Fatalf("misdeclare points = %d, want %d", got, cfg.MaxPoints)
	}
}

func TestPointsStrategyMoneyMoves(t *testing.T) {
	cfg := testConfig()
	cfg.RakePercent = 0.10
	svc, _ := newTestEngine(t, cfg)
	table := svc.CreateTable(100, 3, FormatPoints, 2)
	r := seatPlayers(t, svc, table, 11, 22, 33)

	giveHand(t, r, 1, "H2", "H3") // 5 points
	r.Packed[2] = true            // never drew: first drop

	st := pointsStrategy{}.Settle(svc, table, r, 0)

	// gross = 5*2 + 20*2 = 50, rake = 5
	if st.Gross != 50 || st.Rake != 5 {
		t.Fatalf("gross/rake = %d/%d, want 50/5", st.Gross, st.Rake)
	}
	deltas := make(map[int64]int64, len(st.Outcomes))
	for _, o := range st.Outcomes {
		deltas[o.UserID] = o.Delta
	}
	if deltas[11] != 45 {
		t.Fatalf("winner delta = %d, want 45", deltas[11])
	}
	if deltas[22] != -10 || deltas[33] != -40 {
		t.Fatalf("loser deltas = %d/%d, want -10/-40", deltas[22], deltas[33])
	}
	if !st.MatchOver {
		t.Fatalf("points settlement must end the match")
	}
}

func TestMatchMoney(t *testing.T) {
	cumulative := map[int64]int{11: 30, 22: 0, 33: 10}
	m := matchMoney(22, cumulative, 2, 0.10)

	if m.Gross != 80 {
		t.Fatalf("gross = %d, want 80", m.Gross)
	}
	if m.Rake != 8 {
		t.Fatalf("rake = %d, want 8", m.Rake)
	}
	if m.Deltas[22] != 72 {
		t.Fatalf("winner delta = %d, want 72", m.Deltas[22])
	}
	if m.Deltas[11] != -60 || m.Deltas[33] != -20 {
		t.Fatalf("loser deltas = %d/%d, want -60/-20", m.Deltas[11], m.Deltas[33])
	}
}

func TestDealsWinnerByMinPoints(t *testing.T) {
	d := &DealsState{Cumulative: map[int64]int{11: 30, 22: 10, 33: 10}}
	// ties break toward the lower user id
	if got := d.WinnerByMinPoints(); got != 22 {
		t.Fatalf("winner = %d, want 22", got)
	}
}

func TestPoolWinner(t *testing.T) {
	p := &PoolState{
		Threshold:  101,
		Cumulative: map[int64]int{},
		Eliminated: map[int64]bool{},
	}
	players := []int64{11, 22, 33}

	if got := p.Winner(players); got != 0 {
		t.Fatalf("winner with all alive = %d, want 0", got)
	}
	p.Eliminate(11)
	if got := p.Winner(players); got != 0 {
		t.Fatalf("winner with two alive = %d, want 0", got)
	}
	p.Eliminate(33)
	if got := p.Winner(players); got != 22 {
		t.Fatalf("winner = %d, want 22", got)
	}
}
