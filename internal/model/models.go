package model

import (
	"time"

	"gorm.io/datatypes"
)

// 2.1 User

type User struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	Phone     string `gorm:"unique;not null"`
	Nickname  string
	Avatar    string
	IsBot     bool   `gorm:"default:false"`
	Status    string `gorm:"default:normal;not null"` // normal/banned
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Admin accounts guard the operational/test interface.
type Admin struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	Username     string `gorm:"unique;not null"`
	PasswordHash string `gorm:"not null"`
	DisplayName  string
	Status       string `gorm:"default:active;not null"` // active/disabled
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// 2.2 Wallet & Ledger
//
// The wallet ledger is the system of record for balances. The engine
// never reconciles balances itself; it only requests holds, releases
// and settlements.

type Wallet struct {
	UserID           int64 `gorm:"primaryKey"`
	BalanceTotal     int64
	BalanceAvailable int64
	BalanceFrozen    int64
	TotalWin         int64
	TotalConsume     int64
	TotalRake        int64
	UpdatedAt        time.Time
}

// WalletHold is a provisional debit reserved against a player's stake
// before a round starts, released or consumed at settlement.
type WalletHold struct {
	ID         int64  `gorm:"primaryKey;autoIncrement"`
	UserID     int64  `gorm:"index:idx_hold_user_table"`
	TableID    string `gorm:"index:idx_hold_user_table;size:64"`
	Amount     int64
	Active     bool `gorm:"default:true"`
	CreatedAt  time.Time
	ReleasedAt *time.Time
}

type LedgerEntry struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	UserID       int64  `gorm:"index"`
	Type         string // hold/release/win/lose/rake
	Delta        int64
	BalanceAfter int64
	RoundID      string         `gorm:"index;size:64"`
	TableID      string         `gorm:"size:64"`
	MetaJSON     datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt    time.Time
}

// 2.3 Table & Round persistence
//
// Tables and rounds live in memory; these rows are advisory snapshots
// for reporting and crash recovery. An in-flight hand cannot be
// reconstructed after a restart, so lingering snapshots are discarded
// on boot and their tables reset to waiting.

type TableRecord struct {
	TableID    string `gorm:"primaryKey;size:64"`
	BootValue  int64
	SeatCount  int
	Format     string // points/deals/pool
	Status     string // waiting/playing
	PointValue int64
	SeatsJSON  datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type RoundResult struct {
	ID         int64  `gorm:"primaryKey;autoIncrement"`
	RoundID    string `gorm:"uniqueIndex;size:64"`
	TableID    string `gorm:"index;size:64"`
	Format     string
	WinnerID   int64
	RakeAmount int64
	ResultJSON datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt  time.Time
}

type RoundSnapshot struct {
	RoundID   string         `gorm:"primaryKey;size:64"`
	TableID   string         `gorm:"index;size:64"`
	StateJSON datatypes.JSON `gorm:"type:jsonb"`
	UpdatedAt time.Time
}
