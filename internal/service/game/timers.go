package game

import (
	"time"

	"rummy-service/pkg/logger"

	"go.uber.org/zap"
)

// roundTimers bundles every scheduled callback owned by one live
// round: the phase-transition timer, the one-shot turn deadline, the
// per-second tick broadcaster and the pending bot move. Every
// callback re-fetches the round by id and no-ops on miss, so a timer
// that outlives its round cannot corrupt a reused id.
type roundTimers struct {
	phase    *time.Timer
	deadline *time.Timer
	bot      *time.Timer
	tick     *time.Ticker
	tickDone chan struct{}
}

func (s *Service) timersFor(roundID string) *roundTimers {
	s.tmu.Lock()
	defer s.tmu.Unlock()
	rt, ok := s.timers[roundID]
	if !ok {
		rt = &roundTimers{}
		s.timers[roundID] = rt
	}
	return rt
}

// stopTimers is the single teardown path for a round's timers. Round
// end, by any path, goes through here before the round leaves the
// store.
func (s *Service) stopTimers(roundID string) {
	s.tmu.Lock()
	rt, ok := s.timers[roundID]
	delete(s.timers, roundID)
	s.tmu.Unlock()
	if !ok {
		return
	}
	if rt.phase != nil {
		rt.phase.Stop()
	}
	if rt.deadline != nil {
		rt.deadline.Stop()
	}
	if rt.bot != nil {
		rt.bot.Stop()
	}
	if rt.tick != nil {
		rt.tick.Stop()
		close(rt.tickDone)
	}
}

// schedulePhaseLocked runs the transition inline when the configured
// delay is zero so tests drive the state machine synchronously.
func (s *Service) schedulePhaseLocked(r *Round, delay time.Duration, inline func(*Round), deferred func(string)) {
	if delay <= 0 {
		inline(r)
		return
	}
	roundID := r.ID
	rt := s.timersFor(roundID)
	rt.phase = time.AfterFunc(delay, func() { deferred(roundID) })
}

// armDeadlineLocked seeds the turn deadline and schedules the timeout
// auto-pack.
func (s *Service) armDeadlineLocked(r *Round) {
	turn := time.Duration(s.cfg.TurnSeconds) * time.Second
	r.TurnDeadline = time.Now().Add(turn)

	roundID := r.ID
	rt := s.timersFor(roundID)
	if rt.deadline != nil {
		rt.deadline.Stop()
	}
	rt.deadline = time.AfterFunc(turn, func() { s.onTurnTimeout(roundID) })
}

// startTickerLocked broadcasts turn-tick once per second. Remaining
// seconds are computed from the fixed deadline rather than counted
// down, so the display never drifts.
func (s *Service) startTickerLocked(r *Round) {
	roundID := r.ID
	tableID := r.TableID
	rt := s.timersFor(roundID)
	if rt.tick != nil {
		return
	}
	rt.tick = time.NewTicker(time.Second)
	rt.tickDone = make(chan struct{})

	ticker := rt.tick
	done := rt.tickDone
	go func() {
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				round, ok := s.store.Round(roundID)
				if !ok {
					return
				}
				s.mu.Lock()
				deadline := round.TurnDeadline
				phase := round.Phase
				s.mu.Unlock()
				if phase != PhaseStarted {
					continue
				}
				remaining := int(time.Until(deadline) / time.Second)
				if remaining < 0 {
					remaining = 0
				}
				s.emitter.ToTable(tableID, "turn-tick", map[string]interface{}{
					"remainingSeconds": remaining,
					"turnDeadline":     deadline.UnixMilli(),
				})
			}
		}
	}()
}

func (s *Service) newBotTimer(delay time.Duration, roundID string) *time.Timer {
	return time.AfterFunc(delay, func() { s.performBotMove(roundID) })
}

// onTurnTimeout auto-packs the seat that let its deadline lapse, then
// either ends the round or hands the turn to the next active seat.
func (s *Service) onTurnTimeout(roundID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.store.Round(roundID)
	if !ok {
		return
	}
	if r.Phase != PhaseStarted {
		return
	}
	if time.Now().Before(r.TurnDeadline) {
		// the deadline was re-armed after this timer fired
		return
	}

	seat := r.CurrentTurn
	logger.Log.Info("turn timeout auto-pack",
		zap.String("roundID", roundID),
		zap.Int("seat", seat),
		zap.Int64("userID", r.Players[seat]),
	)
	r.Packed[seat] = true

	active := r.activeSeats()
	if len(active) <= 1 {
		winnerSeat := seat
		if len(active) == 1 {
			winnerSeat = active[0]
		}
		s.endRoundLocked(r, winnerSeat, "timeout")
		return
	}

	r.CurrentTurn = r.nextActiveSeat(seat)
	r.Turn[r.CurrentTurn] = seatTurn{}
	s.armDeadlineLocked(r)
	s.broadcastStatusLocked(r)
	s.armBotLocked(r)
}
