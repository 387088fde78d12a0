package wallet

import (
	"context"
	"fmt"
	"time"

	"rummy-service/internal/model"
	appErr "rummy-service/pkg/errors"
	"rummy-service/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service is the wallet/ledger collaborator. It is the sole writer of
// balances; the engine only requests holds, releases and settlements.
type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

func (s *Service) GetWallet(ctx context.Context, userID int64) (*model.Wallet, error) {
	var wallet model.Wallet
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&wallet).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return &model.Wallet{UserID: userID}, nil
		}
		return nil, err
	}
	return &wallet, nil
}

// ReserveFor computes the stake reserved before seating: the points
// format holds the worse of boot and a max-points loss, deals holds
// the boot, pool holds boot plus a max-points loss.
func ReserveFor(format string, boot, pointValue int64, maxPoints int) int64 {
	maxLoss := int64(maxPoints) * pointValue
	switch format {
	case "deals":
		return boot
	case "pool":
		return boot + maxLoss
	default:
		if maxLoss > boot {
			return maxLoss
		}
		return boot
	}
}

// CreateHold freezes amount out of the user's available balance and
// records the hold against the table.
func (s *Service) CreateHold(ctx context.Context, userID int64, tableID string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: hold amount must be positive", appErr.ErrInvalidPayload)
	}
	now := time.Now()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var wallet model.Wallet
		err := forUpdate(tx).
			Where("user_id = ?", userID).
			First(&wallet).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return appErr.ErrInsufficientBalance
			}
			return err
		}
		if wallet.BalanceAvailable < amount {
			return appErr.ErrInsufficientBalance
		}
		wallet.BalanceAvailable -= amount
		wallet.BalanceFrozen += amount
		wallet.UpdatedAt = now
		if err := tx.Save(&wallet).Error; err != nil {
			return err
		}

		hold := model.WalletHold{
			UserID:    userID,
			TableID:   tableID,
			Amount:    amount,
			Active:    true,
			CreatedAt: now,
		}
		if err := tx.Create(&hold).Error; err != nil {
			return err
		}

		entry := model.LedgerEntry{
			UserID:       userID,
			Type:         "hold",
			Delta:        -amount,
			BalanceAfter: wallet.BalanceAvailable,
			TableID:      tableID,
			CreatedAt:    now,
		}
		return tx.Create(&entry).Error
	})
}

// ReleaseUserHold releases one user's active hold on a table, used
// when a seat is abandoned before the round starts.
func (s *Service) ReleaseUserHold(ctx context.Context, userID int64, tableID string) error {
	return s.releaseHolds(ctx, tableID, &userID)
}

// ReleaseTableHolds releases every active hold on a table at round
// end.
func (s *Service) ReleaseTableHolds(ctx context.Context, tableID string) error {
	return s.releaseHolds(ctx, tableID, nil)
}

func (s *Service) releaseHolds(ctx context.Context, tableID string, onlyUser *int64) error {
	now := time.Now()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := forUpdate(tx).
			Where("table_id = ? AND active = ?", tableID, true)
		if onlyUser != nil {
			query = query.Where("user_id = ?", *onlyUser)
		}
		var holds []model.WalletHold
		if err := query.Find(&holds).Error; err != nil {
			return err
		}
		if len(holds) == 0 && onlyUser != nil {
			return appErr.ErrHoldNotFound
		}

		for i := range holds {
			hold := &holds[i]
			var wallet model.Wallet
			err := forUpdate(tx).
				Where("user_id = ?", hold.UserID).
				First(&wallet).Error
			if err != nil {
				return err
			}
			wallet.BalanceFrozen -= hold.Amount
			wallet.BalanceAvailable += hold.Amount
			wallet.UpdatedAt = now
			if err := tx.Save(&wallet).Error; err != nil {
				return err
			}

			hold.Active = false
			hold.ReleasedAt = &now
			if err := tx.Save(hold).Error; err != nil {
				return err
			}

			entry := model.LedgerEntry{
				UserID:       hold.UserID,
				Type:         "release",
				Delta:        hold.Amount,
				BalanceAfter: wallet.BalanceAvailable,
				TableID:      tableID,
				CreatedAt:    now,
			}
			if err := tx.Create(&entry).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Settle applies a concluded round's deltas to wallets and appends
// the ledger entries, in one transaction. Settlement is idempotent by
// round id: a round already on the ledger is skipped wholesale.
func (s *Service) Settle(ctx context.Context, roundID, tableID, format string, winnerID int64, deltas map[int64]int64, rake int64) error {
	now := time.Now()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&model.LedgerEntry{}).
			Where("round_id = ? AND type IN ?", roundID, []string{"win", "lose"}).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			logger.Log.Info("settlement already applied, skipping",
				zap.String("roundID", roundID),
			)
			return nil
		}

		book := newWalletBook(tx)
		entries := make([]model.LedgerEntry, 0, len(deltas)+1)
		meta := map[string]interface{}{
			"tableId": tableID,
			"format":  format,
		}

		for userID, delta := range deltas {
			if userID == 0 || delta == 0 {
				continue
			}
			wallet, err := book.Ensure(userID)
			if err != nil {
				return err
			}
			wallet.BalanceAvailable += delta
			wallet.BalanceTotal += delta

			entryType := "lose"
			if delta > 0 {
				entryType = "win"
				wallet.TotalWin += delta
			} else {
				wallet.TotalConsume += -delta
			}
			entries = append(entries, model.LedgerEntry{
				UserID:       userID,
				Type:         entryType,
				Delta:        delta,
				BalanceAfter: wallet.BalanceAvailable,
				RoundID:      roundID,
				TableID:      tableID,
				MetaJSON:     mustJSON(meta),
				CreatedAt:    now,
			})
		}

		if rake > 0 && winnerID != 0 {
			wallet, err := book.Ensure(winnerID)
			if err != nil {
				return err
			}
			wallet.TotalRake += rake
			entries = append(entries, model.LedgerEntry{
				UserID:       winnerID,
				Type:         "rake",
				Delta:        -rake,
				BalanceAfter: wallet.BalanceAvailable,
				RoundID:      roundID,
				TableID:      tableID,
				MetaJSON:     mustJSON(meta),
				CreatedAt:    now,
			})
		}

		if err := book.SaveAll(now); err != nil {
			return err
		}
		if len(entries) > 0 {
			if err := tx.Create(&entries).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
