package game

import (
	"context"
	"encoding/json"
	"time"

	"rummy-service/internal/model"
	"rummy-service/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm/clause"
)

// External writes are fire-and-continue: the round's in-memory
// outcome is authoritative and already broadcast by the time these
// run, so failures are logged and swallowed, never retried
// synchronously. Settlement stays idempotent because the wallet
// gateway dedupes by round id.

func (s *Service) settleAsync(t *Table, settlement *Settlement) {
	if settlement == nil {
		return
	}
	tableID := t.ID
	format := string(t.Format)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.wallet.ReleaseTableHolds(ctx, tableID); err != nil {
			logger.Log.Warn("hold release failed",
				zap.String("tableID", tableID),
				zap.Error(err),
			)
		}

		deltas := make(map[int64]int64, len(settlement.Outcomes))
		rake := settlement.Rake
		winnerID := settlement.WinnerID
		for _, o := range settlement.Outcomes {
			deltas[o.UserID] = o.Delta
		}
		if settlement.Match != nil {
			// deals/pool move money once, at match end
			deltas = settlement.Match.Deltas
			rake = settlement.Match.Rake
			winnerID = settlement.Match.WinnerID
		}
		if err := s.wallet.Settle(ctx, settlement.RoundID, tableID, format, winnerID, deltas, rake); err != nil {
			logger.Log.Warn("wallet settlement failed",
				zap.String("roundID", settlement.RoundID),
				zap.Error(err),
			)
		}

		s.persistResult(ctx, settlement)
		s.deleteSnapshot(ctx, settlement.RoundID)
	}()
}

func (s *Service) releaseHoldsAsync(tableID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.wallet.ReleaseTableHolds(ctx, tableID); err != nil {
			logger.Log.Warn("hold release failed",
				zap.String("tableID", tableID),
				zap.Error(err),
			)
		}
	}()
}

// persistResult writes the round result once; a round id already on
// file is left untouched.
func (s *Service) persistResult(ctx context.Context, settlement *Settlement) {
	if s.db == nil {
		return
	}
	result := model.RoundResult{
		RoundID:    settlement.RoundID,
		TableID:    settlement.TableID,
		Format:     string(settlement.Format),
		WinnerID:   settlement.WinnerID,
		RakeAmount: settlement.Rake,
		ResultJSON: mustJSON(settlement),
		CreatedAt:  time.Now(),
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&result).Error
	if err != nil {
		logger.Log.Warn("round result write failed",
			zap.String("roundID", settlement.RoundID),
			zap.Error(err),
		)
	}
}

type roundSnapshotState struct {
	Phase       Phase   `json:"phase"`
	Players     []int64 `json:"players"`
	CurrentTurn int     `json:"currentTurn"`
	Packed      []bool  `json:"packed"`
	DeckCount   int     `json:"deckCount"`
	DiscardTop  string  `json:"discardTop,omitempty"`
	WildRank    int     `json:"wildRank"`
	Deadline    int64   `json:"deadline"`
}

// snapshotAsync upserts an advisory snapshot for crash reporting.
// In-flight hands are never reconstructed from it.
func (s *Service) snapshotAsync(r *Round) {
	if s.db == nil {
		return
	}
	state := roundSnapshotState{
		Phase:       r.Phase,
		Players:     append([]int64(nil), r.Players...),
		CurrentTurn: r.CurrentTurn,
		Packed:      append([]bool(nil), r.Packed...),
		DeckCount:   len(r.DrawPile),
		WildRank:    r.WildRank,
		Deadline:    r.TurnDeadline.UnixMilli(),
	}
	if top, ok := r.discardTop(); ok {
		state.DiscardTop = top.Code()
	}
	roundID := r.ID
	tableID := r.TableID
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		snapshot := model.RoundSnapshot{
			RoundID:   roundID,
			TableID:   tableID,
			StateJSON: mustJSON(state),
			UpdatedAt: time.Now(),
		}
		err := s.db.WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "round_id"}},
				UpdateAll: true,
			}).
			Create(&snapshot).Error
		if err != nil {
			logger.Log.Warn("round snapshot write failed",
				zap.String("roundID", roundID),
				zap.Error(err),
			)
		}
	}()
}

func (s *Service) deleteSnapshot(ctx context.Context, roundID string) {
	if s.db == nil {
		return
	}
	err := s.db.WithContext(ctx).
		Where("round_id = ?", roundID).
		Delete(&model.RoundSnapshot{}).Error
	if err != nil {
		logger.Log.Warn("round snapshot delete failed",
			zap.String("roundID", roundID),
			zap.Error(err),
		)
	}
}

func (s *Service) persistTableAsync(t *Table) {
	if s.db == nil {
		return
	}
	record := model.TableRecord{
		TableID:    t.ID,
		BootValue:  t.BootValue,
		SeatCount:  t.SeatCount,
		Format:     string(t.Format),
		Status:     string(t.Status),
		PointValue: t.PointValue,
		SeatsJSON:  mustJSON(t.Seats),
		UpdatedAt:  time.Now(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := s.db.WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "table_id"}},
				UpdateAll: true,
			}).
			Create(&record).Error
		if err != nil {
			logger.Log.Warn("table record write failed",
				zap.String("tableID", t.ID),
				zap.Error(err),
			)
		}
	}()
}

// RecoverOnStart discards snapshots a previous process left behind
// and resets their tables to waiting: an in-flight hand cannot be
// reconstructed, so the rounds are simply dropped.
func (s *Service) RecoverOnStart(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	var snapshots []model.RoundSnapshot
	if err := s.db.WithContext(ctx).Find(&snapshots).Error; err != nil {
		return err
	}
	for _, snap := range snapshots {
		logger.Log.Warn("discarding stale round snapshot",
			zap.String("roundID", snap.RoundID),
			zap.String("tableID", snap.TableID),
		)
		if err := s.db.WithContext(ctx).
			Model(&model.TableRecord{}).
			Where("table_id = ?", snap.TableID).
			Updates(map[string]interface{}{"status": string(TableWaiting), "seats_json": datatypes.JSON("[]")}).Error; err != nil {
			logger.Log.Warn("table reset failed", zap.String("tableID", snap.TableID), zap.Error(err))
		}
		if err := s.db.WithContext(ctx).
			Where("round_id = ?", snap.RoundID).
			Delete(&model.RoundSnapshot{}).Error; err != nil {
			logger.Log.Warn("snapshot delete failed", zap.String("roundID", snap.RoundID), zap.Error(err))
		}
		if err := s.wallet.ReleaseTableHolds(ctx, snap.TableID); err != nil {
			logger.Log.Warn("hold release failed", zap.String("tableID", snap.TableID), zap.Error(err))
		}
	}
	return nil
}

func mustJSON(v interface{}) datatypes.JSON {
	if v == nil {
		return datatypes.JSON("{}")
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(raw)
}
