package game

import (
	"time"

	appErr "rummy-service/pkg/errors"
	"rummy-service/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CreateTable registers a fresh waiting table. Seating and all later
// mutation happen under the engine lock via SeatUser/Unseat.
func (s *Service) CreateTable(boot int64, seatCount int, format Format, pointValue int64) *Table {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &Table{
		ID:         uuid.NewString(),
		BootValue:  boot,
		SeatCount:  seatCount,
		Format:     format,
		PointValue: pointValue,
		Status:     TableWaiting,
		Seats:      make([]int64, seatCount),
		Bots:       make(map[int64]bool),
		CreatedAt:  time.Now(),
	}
	s.store.PutTable(t)
	s.persistTableAsync(t)
	logger.Log.Info("table created",
		zap.String("tableID", t.ID),
		zap.Int64("boot", boot),
		zap.Int("seats", seatCount),
		zap.String("format", string(format)),
	)
	return t
}

// SeatUser places a user on the first free seat and, when the table
// fills, starts the round before returning. The table-joined
// broadcast goes out before any start-game event.
func (s *Service) SeatUser(tableID string, userID int64, isBot bool) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.store.Table(tableID)
	if !ok {
		return -1, false, appErr.ErrTableNotFound
	}
	if t.Status != TableWaiting {
		return -1, false, appErr.ErrTableFull
	}
	if t.SeatOf(userID) >= 0 {
		return -1, false, appErr.ErrAlreadySeated
	}
	seat := t.FreeSeat()
	if seat < 0 {
		return -1, false, appErr.ErrTableFull
	}
	t.Seats[seat] = userID
	if isBot {
		t.Bots[userID] = true
	}
	s.persistTableAsync(t)

	s.emitter.ToTable(t.ID, "table-joined", map[string]interface{}{
		"tableId": t.ID,
		"userId":  userID,
		"seat":    seat,
		"seats":   append([]int64(nil), t.Seats...),
	})

	full := t.SeatedCount() == t.SeatCount
	if full {
		if _, err := s.startRoundLocked(t); err != nil {
			return seat, false, err
		}
	}
	return seat, full, nil
}

// Unseat frees a user's seat on a waiting table. Live rounds go
// through Pack instead; the seat stays owned until the round ends.
func (s *Service) Unseat(tableID string, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.store.Table(tableID)
	if !ok {
		return appErr.ErrTableNotFound
	}
	seat := t.SeatOf(userID)
	if seat < 0 {
		return appErr.ErrTableAccessDenied
	}
	if t.RoundID != "" {
		return appErr.ErrRoundSettled
	}
	t.Seats[seat] = 0
	delete(t.Bots, userID)
	s.persistTableAsync(t)
	s.emitter.ToTable(t.ID, "table-joined", map[string]interface{}{
		"tableId": t.ID,
		"userId":  userID,
		"seat":    seat,
		"left":    true,
		"seats":   append([]int64(nil), t.Seats...),
	})
	return nil
}
