package game

import "math"

// SeatOutcome is one seat's share of a round settlement. Empty seats
// never appear here.
type SeatOutcome struct {
	Seat   int   `json:"seat"`
	UserID int64 `json:"userId"`
	Points int   `json:"points"`
	Delta  int64 `json:"delta"`
	Packed bool  `json:"packed"`
	Winner bool  `json:"winner"`
}

// MatchSettlement is the money-moving result of a whole deals/pool
// match, produced once when the match concludes.
type MatchSettlement struct {
	WinnerID int64           `json:"winnerId"`
	Gross    int64           `json:"gross"`
	Rake     int64           `json:"rake"`
	Points   map[int64]int   `json:"points"`
	Deltas   map[int64]int64 `json:"deltas"`
}

// Settlement is the full outcome of one concluded round.
type Settlement struct {
	RoundID    string        `json:"roundId"`
	TableID    string        `json:"tableId"`
	Format     Format        `json:"format"`
	WinnerSeat int           `json:"winnerSeat"`
	WinnerID   int64         `json:"winnerId"`
	Gross      int64         `json:"gross"`
	Rake       int64         `json:"rake"`
	Outcomes   []SeatOutcome `json:"outcomes"`

	MatchOver  bool             `json:"matchOver"`
	Eliminated []int64          `json:"eliminated,omitempty"`
	Match      *MatchSettlement `json:"match,omitempty"`
}

// settleStrategy translates a finished round into per-seat points and
// deltas for one scoring format.
type settleStrategy interface {
	Settle(svc *Service, t *Table, r *Round, winnerSeat int) *Settlement
}

func strategyFor(format Format) settleStrategy {
	switch format {
	case FormatDeals:
		return dealsStrategy{}
	case FormatPool:
		return poolStrategy{}
	default:
		return pointsStrategy{}
	}
}

// seatPoints is the shared deadwood scoring used by every format. A
// packed seat scores the first-drop penalty when it never drew a card
// this round, else the middle-drop penalty. A misdeclared seat is
// forced to max. Everything is capped at max points.
func (svc *Service) seatPoints(r *Round, seat, winnerSeat int) int {
	if seat == winnerSeat {
		return 0
	}
	maxPts := svc.cfg.MaxPoints
	if r.forcedMaxSeat == seat {
		return maxPts
	}
	if r.Packed[seat] {
		pts := svc.cfg.MiddleDropPts
		if !r.EverDrawn[seat] {
			pts = svc.cfg.FirstDropPts
		}
		if pts > maxPts {
			pts = maxPts
		}
		return pts
	}
	pts, _ := ComputeHandPoints(r.Hands[seat], r.Groupings[seat], r.WildRank)
	if pts > maxPts {
		pts = maxPts
	}
	return pts
}

func (svc *Service) roundOutcomes(r *Round, winnerSeat int) []SeatOutcome {
	outcomes := make([]SeatOutcome, 0, len(r.Players))
	for seat, userID := range r.Players {
		if userID == 0 {
			continue
		}
		outcomes = append(outcomes, SeatOutcome{
			Seat:   seat,
			UserID: userID,
			Points: svc.seatPoints(r, seat, winnerSeat),
			Packed: r.Packed[seat],
			Winner: seat == winnerSeat,
		})
	}
	return outcomes
}

// applyRake rounds the rake off the winner's gross to whole cents.
func applyRake(gross int64, rakePercent float64) int64 {
	if gross <= 0 || rakePercent <= 0 {
		return 0
	}
	return int64(math.Round(float64(gross) * rakePercent))
}

type pointsStrategy struct{}

func (pointsStrategy) Settle(svc *Service, t *Table, r *Round, winnerSeat int) *Settlement {
	outcomes := svc.roundOutcomes(r, winnerSeat)

	var gross int64
	for i := range outcomes {
		if outcomes[i].Winner {
			continue
		}
		loss := int64(outcomes[i].Points) * t.PointValue
		outcomes[i].Delta = -loss
		gross += loss
	}
	rake := applyRake(gross, svc.cfg.RakePercent)
	for i := range outcomes {
		if outcomes[i].Winner {
			outcomes[i].Delta = gross - rake
		}
	}

	return &Settlement{
		RoundID:    r.ID,
		TableID:    t.ID,
		Format:     FormatPoints,
		WinnerSeat: winnerSeat,
		WinnerID:   r.Players[winnerSeat],
		Gross:      gross,
		Rake:       rake,
		Outcomes:   outcomes,
		MatchOver:  true,
	}
}

type dealsStrategy struct{}

func (dealsStrategy) Settle(svc *Service, t *Table, r *Round, winnerSeat int) *Settlement {
	outcomes := svc.roundOutcomes(r, winnerSeat)

	deals, ok := svc.store.Deals(t.ID)
	if !ok {
		deals = &DealsState{
			TableID:    t.ID,
			Remaining:  svc.cfg.DealsPerMatch,
			Cumulative: make(map[int64]int),
		}
		svc.store.PutDeals(deals)
	}
	for _, o := range outcomes {
		deals.Cumulative[o.UserID] += o.Points
	}
	deals.Remaining--

	settlement := &Settlement{
		RoundID:    r.ID,
		TableID:    t.ID,
		Format:     FormatDeals,
		WinnerSeat: winnerSeat,
		WinnerID:   r.Players[winnerSeat],
		Outcomes:   outcomes, // per-round deltas stay zero
	}
	if deals.Over() {
		settlement.MatchOver = true
		settlement.Match = matchMoney(deals.WinnerByMinPoints(), deals.Cumulative, t.PointValue, svc.cfg.RakePercent)
	}
	return settlement
}

type poolStrategy struct{}

func (poolStrategy) Settle(svc *Service, t *Table, r *Round, winnerSeat int) *Settlement {
	outcomes := svc.roundOutcomes(r, winnerSeat)

	pool, ok := svc.store.Pool(t.ID)
	if !ok {
		pool = &PoolState{
			TableID:    t.ID,
			Threshold:  svc.cfg.PoolThreshold,
			Cumulative: make(map[int64]int),
			Eliminated: make(map[int64]bool),
		}
		svc.store.PutPool(pool)
	}

	eliminated := make([]int64, 0)
	for _, o := range outcomes {
		pool.Cumulative[o.UserID] += o.Points
		if !pool.IsEliminated(o.UserID) && pool.Cumulative[o.UserID] >= pool.Threshold {
			pool.Eliminate(o.UserID)
			eliminated = append(eliminated, o.UserID)
		}
	}

	settlement := &Settlement{
		RoundID:    r.ID,
		TableID:    t.ID,
		Format:     FormatPool,
		WinnerSeat: winnerSeat,
		WinnerID:   r.Players[winnerSeat],
		Outcomes:   outcomes,
		Eliminated: eliminated,
	}
	if matchWinner := pool.Winner(r.Players); matchWinner != 0 {
		settlement.MatchOver = true
		settlement.Match = matchMoney(matchWinner, pool.Cumulative, t.PointValue, svc.cfg.RakePercent)
	}
	return settlement
}

// matchMoney converts cumulative match totals into deltas the same
// way the points format settles a single round.
func matchMoney(winnerID int64, cumulative map[int64]int, pointValue int64, rakePercent float64) *MatchSettlement {
	result := &MatchSettlement{
		WinnerID: winnerID,
		Points:   make(map[int64]int, len(cumulative)),
		Deltas:   make(map[int64]int64, len(cumulative)),
	}
	var gross int64
	for userID, pts := range cumulative {
		result.Points[userID] = pts
		if userID == winnerID {
			continue
		}
		loss := int64(pts) * pointValue
		result.Deltas[userID] = -loss
		gross += loss
	}
	result.Gross = gross
	result.Rake = applyRake(gross, rakePercent)
	result.Deltas[winnerID] = gross - result.Rake
	return result
}
