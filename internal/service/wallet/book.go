package wallet

import (
	"encoding/json"
	"time"

	"rummy-service/internal/model"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// walletBook caches row-locked wallets for the duration of one
// settlement transaction so each row is fetched and saved once.
type walletBook struct {
	tx      *gorm.DB
	entries map[int64]*walletEntry
}

type walletEntry struct {
	wallet *model.Wallet
	exists bool
	dirty  bool
}

func newWalletBook(tx *gorm.DB) *walletBook {
	return &walletBook{
		tx:      tx,
		entries: make(map[int64]*walletEntry),
	}
}

// forUpdate row-locks on drivers that support it. SQLite parses
// FOR UPDATE as a syntax error and serializes writes anyway.
func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

func (wb *walletBook) Ensure(userID int64) (*model.Wallet, error) {
	if entry, ok := wb.entries[userID]; ok {
		entry.dirty = true
		return entry.wallet, nil
	}

	wallet := &model.Wallet{}
	err := forUpdate(wb.tx).
		Where("user_id = ?", userID).
		First(wallet).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			return nil, err
		}
		wallet = &model.Wallet{UserID: userID}
	}

	entry := &walletEntry{
		wallet: wallet,
		exists: err == nil,
		dirty:  true,
	}
	wb.entries[userID] = entry
	return wallet, nil
}

func (wb *walletBook) SaveAll(now time.Time) error {
	for _, entry := range wb.entries {
		if !entry.dirty {
			continue
		}
		entry.wallet.UpdatedAt = now
		var err error
		if entry.exists {
			err = wb.tx.Save(entry.wallet).Error
		} else {
			err = wb.tx.Create(entry.wallet).Error
			if err == nil {
				entry.exists = true
			}
		}
		if err != nil {
			return err
		}
		entry.dirty = false
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
