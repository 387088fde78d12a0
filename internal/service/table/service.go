package table

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"rummy-service/internal/config"
	"rummy-service/internal/service/game"
	"rummy-service/internal/service/wallet"
	appErr "rummy-service/pkg/errors"
	"rummy-service/pkg/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	seatLockTTL   = 10 * time.Second
	seatNotifyTTL = 5 * time.Minute
	maxSeats      = 6
)

// Service matches users onto tables: find-or-create by (boot, seats,
// format), verify the wallet reserve, create the hold, then hand the
// seat mutation to the engine.
type Service struct {
	rdb    *redis.Client
	game   *game.Service
	wallet *wallet.Service
	cfg    config.GameConfig
}

func NewService(rdb *redis.Client, gameSvc *game.Service, walletSvc *wallet.Service, cfg config.GameConfig) *Service {
	return &Service{
		rdb:    rdb,
		game:   gameSvc,
		wallet: walletSvc,
		cfg:    cfg,
	}
}

// TableInfo is the get-table/join-table response payload.
type TableInfo struct {
	TableID    string      `json:"tableId"`
	BootValue  int64       `json:"bootValue"`
	SeatCount  int         `json:"seatCount"`
	Format     game.Format `json:"format"`
	PointValue int64       `json:"pointValue"`
	Seat       int         `json:"seat,omitempty"`
	Seats      []int64     `json:"seats"`
	Reserve    int64       `json:"reserve"`
}

// GetTable finds a waiting table with free capacity for the tuple, or
// creates one.
func (s *Service) GetTable(ctx context.Context, userID, boot int64, seatCount int, format game.Format) (*TableInfo, error) {
	if boot <= 0 || seatCount < game.MinSeatedCount || seatCount > maxSeats || !format.Valid() {
		return nil, appErr.ErrInvalidPayload
	}

	t := s.game.Store().FindWaitingTable(boot, seatCount, format)
	if t == nil {
		t = s.game.CreateTable(boot, seatCount, format, pointValue(boot, s.cfg.MaxPoints))
	}
	return s.info(t, -1), nil
}

// JoinTable reserves the stake and seats the user. A per-user Redis
// lock keeps double-submits from seating twice; the wallet hold is in
// place before seating completes.
func (s *Service) JoinTable(ctx context.Context, userID int64, tableID string) (*TableInfo, error) {
	t, ok := s.game.Store().Table(tableID)
	if !ok {
		return nil, appErr.ErrTableNotFound
	}

	lockKey := buildSeatLockKey(userID)
	gotLock, err := s.rdb.SetNX(ctx, lockKey, tableID, seatLockTTL).Result()
	if err != nil {
		return nil, err
	}
	if !gotLock {
		return nil, appErr.ErrSeatProcessing
	}
	defer s.rdb.Del(ctx, lockKey)

	if existing, _ := s.game.Store().TableOfUser(userID); existing != nil {
		return nil, appErr.ErrAlreadySeated
	}

	reserve := wallet.ReserveFor(string(t.Format), t.BootValue, t.PointValue, s.cfg.MaxPoints)
	w, err := s.wallet.GetWallet(ctx, userID)
	if err != nil {
		return nil, err
	}
	if w.BalanceAvailable < reserve {
		return nil, appErr.ErrInsufficientBalance
	}
	if err := s.wallet.CreateHold(ctx, userID, t.ID, reserve); err != nil {
		return nil, err
	}

	seat, full, err := s.game.SeatUser(t.ID, userID, false)
	if err != nil {
		if relErr := s.wallet.ReleaseUserHold(ctx, userID, t.ID); relErr != nil {
			logger.Log.Warn("hold rollback failed",
				zap.Int64("userID", userID),
				zap.String("tableID", t.ID),
				zap.Error(relErr),
			)
		}
		return nil, err
	}

	payload, _ := json.Marshal(map[string]interface{}{"tableId": t.ID, "seat": seat})
	s.rdb.Set(ctx, buildSeatNotifyKey(userID), payload, seatNotifyTTL)

	logger.Log.Info("user seated",
		zap.Int64("userID", userID),
		zap.String("tableID", t.ID),
		zap.Int("seat", seat),
		zap.Bool("roundStarting", full),
	)
	return s.info(t, seat), nil
}

// AddBot seats a synthetic player, used by the test interface to fill
// tables. Bots skip the wallet reserve.
func (s *Service) AddBot(ctx context.Context, botID int64, tableID string) (int, error) {
	seat, _, err := s.game.SeatUser(tableID, botID, true)
	return seat, err
}

// LeaveTable frees the user's seat. During a live round this packs
// the seat instead; the hold settles with the round.
func (s *Service) LeaveTable(ctx context.Context, userID int64) error {
	t, _ := s.game.Store().TableOfUser(userID)
	if t == nil {
		return appErr.ErrTableNotFound
	}
	s.rdb.Del(ctx, buildSeatNotifyKey(userID))

	if t.RoundID != "" {
		if err := s.game.Pack(t.RoundID, userID); err != nil && err != appErr.ErrAlreadyPacked {
			return err
		}
		return nil
	}

	if err := s.game.Unseat(t.ID, userID); err != nil {
		return err
	}
	if err := s.wallet.ReleaseUserHold(ctx, userID, t.ID); err != nil && err != appErr.ErrHoldNotFound {
		logger.Log.Warn("hold release on leave failed",
			zap.Int64("userID", userID),
			zap.String("tableID", t.ID),
			zap.Error(err),
		)
	}
	return nil
}

func (s *Service) info(t *game.Table, seat int) *TableInfo {
	info := &TableInfo{
		TableID:    t.ID,
		BootValue:  t.BootValue,
		SeatCount:  t.SeatCount,
		Format:     t.Format,
		PointValue: t.PointValue,
		Seats:      append([]int64(nil), t.Seats...),
		Reserve:    wallet.ReserveFor(string(t.Format), t.BootValue, t.PointValue, s.cfg.MaxPoints),
	}
	if seat >= 0 {
		info.Seat = seat
	}
	return info
}

// pointValue derives the per-point stake from the boot so a max-point
// loss stays in the order of the boot value.
func pointValue(boot int64, maxPoints int) int64 {
	if maxPoints <= 0 {
		return 1
	}
	pv := boot / int64(maxPoints)
	if pv < 1 {
		pv = 1
	}
	return pv
}

func buildSeatLockKey(userID int64) string {
	return fmt.Sprintf("seat:lock:%d", userID)
}

func buildSeatNotifyKey(userID int64) string {
	return fmt.Sprintf("seat:pending:%d", userID)
}
