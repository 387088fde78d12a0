package game

import (
	mrand "math/rand"

	"rummy-service/pkg/logger"

	"go.uber.org/zap"
)

// armBotLocked schedules an automatic move whenever the seat on turn
// belongs to a synthetic player. The move re-arms itself through the
// normal turn-advance path, so a table of bots keeps playing.
func (s *Service) armBotLocked(r *Round) {
	if r.Phase != PhaseStarted {
		return
	}
	t, ok := s.store.Table(r.TableID)
	if !ok {
		return
	}
	userID := r.Players[r.CurrentTurn]
	if !t.Bots[userID] {
		return
	}

	roundID := r.ID
	rt := s.timersFor(roundID)
	if rt.bot != nil {
		rt.bot.Stop()
	}
	delay := s.cfg.BotMoveDelay
	if delay <= 0 {
		// zero delay still defers to a fresh callback so the current
		// handler finishes its broadcasts first
		delay = 1
	}
	rt.bot = s.newBotTimer(delay, roundID)
}

func (s *Service) performBotMove(roundID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.store.Round(roundID)
	if !ok || r.Phase != PhaseStarted {
		return
	}
	t, ok := s.store.Table(r.TableID)
	if !ok {
		return
	}
	seat := r.CurrentTurn
	userID := r.Players[seat]
	if !t.Bots[userID] || r.Packed[seat] {
		return
	}

	if !r.Turn[seat].DrawnThisTurn {
		if _, err := s.drawLocked(r, seat, DrawClosed); err != nil {
			logger.Log.Warn("bot draw failed, packing",
				zap.String("roundID", roundID),
				zap.Int64("userID", userID),
				zap.Error(err),
			)
			_ = s.packLocked(r, seat)
			return
		}
	}

	// naive strategy: shed the most expensive discardable card
	hand := r.Hands[seat]
	turn := r.Turn[seat]
	best := -1
	bestCost := -1
	order := mrand.Perm(len(hand))
	for _, i := range order {
		c := hand[i]
		if turn.LastDrawnFrom == DrawOpen && c.Equal(turn.LastDrawn) {
			continue
		}
		if cost := c.PointValue(r.WildRank); cost > bestCost {
			best = i
			bestCost = cost
		}
	}
	if best < 0 {
		_ = s.packLocked(r, seat)
		return
	}
	if err := s.discardLocked(r, seat, hand[best]); err != nil {
		logger.Log.Warn("bot discard failed, packing",
			zap.String("roundID", roundID),
			zap.Int64("userID", userID),
			zap.Error(err),
		)
		_ = s.packLocked(r, seat)
	}
}
