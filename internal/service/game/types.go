package game

import "time"

type Format string

const (
	FormatPoints Format = "points"
	FormatDeals  Format = "deals"
	FormatPool   Format = "pool"
)

func (f Format) Valid() bool {
	return f == FormatPoints || f == FormatDeals || f == FormatPool
}

type Phase string

const (
	PhaseToss      Phase = "toss"
	PhaseDealing   Phase = "dealing"
	PhaseStarted   Phase = "started"
	PhaseCompleted Phase = "completed"
)

type TableStatus string

const (
	TableWaiting TableStatus = "waiting"
	TablePlaying TableStatus = "playing"
)

// Table is a seat container that persists across rounds. Seats hold
// user ids; 0 marks an empty seat.
type Table struct {
	ID         string
	BootValue  int64
	SeatCount  int
	Format     Format
	PointValue int64
	Status     TableStatus
	Seats      []int64
	Bots       map[int64]bool
	RoundID    string
	CreatedAt  time.Time
}

func (t *Table) SeatedCount() int {
	n := 0
	for _, id := range t.Seats {
		if id != 0 {
			n++
		}
	}
	return n
}

func (t *Table) SeatOf(userID int64) int {
	for i, id := range t.Seats {
		if id != 0 && id == userID {
			return i
		}
	}
	return -1
}

func (t *Table) FreeSeat() int {
	for i, id := range t.Seats {
		if id == 0 {
			return i
		}
	}
	return -1
}

type DrawSource string

const (
	DrawClosed DrawSource = "closed"
	DrawOpen   DrawSource = "open"
)

type seatTurn struct {
	DrawnThisTurn bool
	LastDrawn     Card
	LastDrawnFrom DrawSource
}

// Round holds one deal's full state. All mutation goes through the
// Service under the engine lock; nothing else touches a live Round.
type Round struct {
	ID      string
	TableID string
	Format  Format
	Phase   Phase

	Players []int64 // seating order, fixed once the toss completes
	Toss    TossResult

	DrawPile    []Card
	DiscardPile []Card
	Hands       [][]Card
	Groupings   [][][]Card // per-seat UI arrangement, not authoritative

	WildRank int
	WildCard Card

	CurrentTurn  int
	TurnDeadline time.Time

	Packed    []bool // monotonic within a round
	EverDrawn []bool
	Turn      []seatTurn

	// forcedMaxSeat marks a misdeclared seat, charged max points at
	// settlement regardless of hand contents.
	forcedMaxSeat int

	StartedAt time.Time
}

func (r *Round) seatOf(userID int64) int {
	for i, id := range r.Players {
		if id != 0 && id == userID {
			return i
		}
	}
	return -1
}

// activeSeats lists occupied, non-packed seats.
func (r *Round) activeSeats() []int {
	seats := make([]int, 0, len(r.Players))
	for i, id := range r.Players {
		if id != 0 && !r.Packed[i] {
			seats = append(seats, i)
		}
	}
	return seats
}

// nextActiveSeat finds the next occupied non-packed seat after from,
// wrapping around. Returns -1 when none remain.
func (r *Round) nextActiveSeat(from int) int {
	n := len(r.Players)
	for step := 1; step <= n; step++ {
		seat := (from + step) % n
		if r.Players[seat] != 0 && !r.Packed[seat] {
			return seat
		}
	}
	return -1
}

// cardCount is the conservation total: draw pile + discard pile + all
// hands must equal the full shuffled deck at every transition.
func (r *Round) cardCount() int {
	n := len(r.DrawPile) + len(r.DiscardPile)
	for _, hand := range r.Hands {
		n += len(hand)
	}
	return n
}

func (r *Round) discardTop() (Card, bool) {
	if len(r.DiscardPile) == 0 {
		return Card{}, false
	}
	return r.DiscardPile[len(r.DiscardPile)-1], true
}

// DealsState tracks a deals-format match across rounds.
type DealsState struct {
	TableID    string
	Remaining  int
	Cumulative map[int64]int
}

// Over reports that the configured deal count is exhausted.
func (d *DealsState) Over() bool {
	return d.Remaining <= 0
}

// WinnerByMinPoints returns the user with the lowest cumulative total.
func (d *DealsState) WinnerByMinPoints() int64 {
	var winner int64
	best := -1
	for userID, pts := range d.Cumulative {
		if best < 0 || pts < best || (pts == best && userID < winner) {
			best = pts
			winner = userID
		}
	}
	return winner
}

// PoolState tracks a pool-format match: cumulative points per user
// and the users already eliminated at the threshold.
type PoolState struct {
	TableID    string
	Threshold  int
	Cumulative map[int64]int
	Eliminated map[int64]bool
}

func (p *PoolState) Eliminate(userID int64) {
	p.Eliminated[userID] = true
}

func (p *PoolState) IsEliminated(userID int64) bool {
	return p.Eliminated[userID]
}

// RemainingPlayers filters the given users down to survivors.
func (p *PoolState) RemainingPlayers(users []int64) []int64 {
	out := make([]int64, 0, len(users))
	for _, id := range users {
		if id != 0 && !p.Eliminated[id] {
			out = append(out, id)
		}
	}
	return out
}

// Winner returns the sole survivor, or 0 while more than one remains.
func (p *PoolState) Winner(users []int64) int64 {
	remaining := p.RemainingPlayers(users)
	if len(remaining) == 1 {
		return remaining[0]
	}
	return 0
}
