package wallet_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"rummy-service/internal/model"
	"rummy-service/internal/service/wallet"
	appErr "rummy-service/pkg/errors"
	"rummy-service/pkg/logger"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestMain(m *testing.M) {
	logger.InitTestLogger()
	os.Exit(m.Run())
}

func newService(t *testing.T) (*gorm.DB, *wallet.Service) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&model.Wallet{}, &model.WalletHold{}, &model.LedgerEntry{}); err != nil {
		t.Fatalf("failed to migrate wallet tables: %v", err)
	}
	return db, wallet.NewService(db)
}

func seedWallet(t *testing.T, db *gorm.DB, userID, available int64) {
	t.Helper()
	w := model.Wallet{
		UserID:           userID,
		BalanceTotal:     available,
		BalanceAvailable: available,
	}
	if err := db.Create(&w).Error; err != nil {
		t.Fatalf("failed to seed wallet: %v", err)
	}
}

func fetchWallet(t *testing.T, db *gorm.DB, userID int64) model.Wallet {
	t.Helper()
	var w model.Wallet
	if err := db.Where("user_id = ?", userID).First(&w).Error; err != nil {
		t.Fatalf("failed to fetch wallet %d: %v", userID, err)
	}
	return w
}

func TestReserveFor(t *testing.T) {
	tests := []struct {
		format     string
		boot       int64
		pointValue int64
		maxPoints  int
		want       int64
	}{
		{"points", 100, 1, 80, 100}, // boot dominates the max loss
		{"points", 100, 2, 80, 160}, // max loss dominates
		{"deals", 100, 2, 80, 100},
		{"pool", 100, 2, 80, 260},
	}
	for _, tt := range tests {
		got := wallet.ReserveFor(tt.format, tt.boot, tt.pointValue, tt.maxPoints)
		if got != tt.want {
			t.Fatalf("ReserveFor(%s, %d, %d, %d) = %d, want %d",
				tt.format, tt.boot, tt.pointValue, tt.maxPoints, got, tt.want)
		}
	}
}

func TestCreateHoldFreezesBalance(t *testing.T) {
	ctx := context.Background()
	db, svc := newService(t)
	seedWallet(t, db, 11, 1000)

	if err := svc.CreateHold(ctx, 11, "table-1", 200); err != nil {
		t.Fatalf("create hold failed: %v", err)
	}

	w := fetchWallet(t, db, 11)
	if w.BalanceAvailable != 800 || w.BalanceFrozen != 200 {
		t.Fatalf("balances = %d/%d, want 800/200", w.BalanceAvailable, w.BalanceFrozen)
	}

	var entry model.LedgerEntry
	if err := db.Where("user_id = ? AND type = ?", 11, "hold").First(&entry).Error; err != nil {
		t.Fatalf("hold ledger entry missing: %v", err)
	}
	if entry.Delta != -200 || entry.BalanceAfter != 800 {
		t.Fatalf("hold entry = %+v", entry)
	}
}

func TestCreateHoldInsufficientBalance(t *testing.T) {
	ctx := context.Background()
	db, svc := newService(t)
	seedWallet(t, db, 11, 100)

	err := svc.CreateHold(ctx, 11, "table-1", 200)
	if !errors.Is(err, appErr.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	// no wallet row at all behaves the same
	err = svc.CreateHold(ctx, 99, "table-1", 200)
	if !errors.Is(err, appErr.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance for missing wallet, got %v", err)
	}

	w := fetchWallet(t, db, 11)
	if w.BalanceAvailable != 100 || w.BalanceFrozen != 0 {
		t.Fatalf("failed hold must not touch balances: %+v", w)
	}
}

func TestReleaseUserHold(t *testing.T) {
	ctx := context.Background()
	db, svc := newService(t)
	seedWallet(t, db, 11, 1000)

	if err := svc.CreateHold(ctx, 11, "table-1", 200); err != nil {
		t.Fatalf("create hold failed: %v", err)
	}
	if err := svc.ReleaseUserHold(ctx, 11, "table-1"); err != nil {
		t.Fatalf("release failed: %v", err)
	}

	w := fetchWallet(t, db, 11)
	if w.BalanceAvailable != 1000 || w.BalanceFrozen != 0 {
		t.Fatalf("balances after release = %d/%d, want 1000/0", w.BalanceAvailable, w.BalanceFrozen)
	}

	var hold model.WalletHold
	if err := db.Where("user_id = ?", 11).First(&hold).Error; err != nil {
		t.Fatalf("hold row missing: %v", err)
	}
	if hold.Active || hold.ReleasedAt == nil {
		t.Fatalf("hold not marked released: %+v", hold)
	}

	// releasing again finds nothing to release
	err := svc.ReleaseUserHold(ctx, 11, "table-1")
	if !errors.Is(err, appErr.ErrHoldNotFound) {
		t.Fatalf("expected ErrHoldNotFound, got %v", err)
	}
}

func TestReleaseTableHolds(t *testing.T) {
	ctx := context.Background()
	db, svc := newService(t)
	seedWallet(t, db, 11, 500)
	seedWallet(t, db, 22, 500)

	for _, userID := range []int64{11, 22} {
		if err := svc.CreateHold(ctx, userID, "table-1", 100); err != nil {
			t.Fatalf("create hold for %d failed: %v", userID, err)
		}
	}
	if err := svc.ReleaseTableHolds(ctx, "table-1"); err != nil {
		t.Fatalf("release table holds failed: %v", err)
	}
	for _, userID := range []int64{11, 22} {
		w := fetchWallet(t, db, userID)
		if w.BalanceAvailable != 500 || w.BalanceFrozen != 0 {
			t.Fatalf("user %d balances = %d/%d, want 500/0", userID, w.BalanceAvailable, w.BalanceFrozen)
		}
	}

	// a table without active holds is a no-op, not an error
	if err := svc.ReleaseTableHolds(ctx, "table-1"); err != nil {
		t.Fatalf("empty release failed: %v", err)
	}
}

func TestSettleAppliesDeltas(t *testing.T) {
	ctx := context.Background()
	db, svc := newService(t)
	seedWallet(t, db, 11, 1000)
	seedWallet(t, db, 22, 1000)

	deltas := map[int64]int64{11: 90, 22: -100}
	if err := svc.Settle(ctx, "round-1", "table-1", "points", 11, deltas, 10); err != nil {
		t.Fatalf("settle failed: %v", err)
	}

	winner := fetchWallet(t, db, 11)
	if winner.BalanceAvailable != 1090 || winner.TotalWin != 90 || winner.TotalRake != 10 {
		t.Fatalf("winner wallet = %+v", winner)
	}
	loser := fetchWallet(t, db, 22)
	if loser.BalanceAvailable != 900 || loser.TotalConsume != 100 {
		t.Fatalf("loser wallet = %+v", loser)
	}

	var rakeEntries int64
	if err := db.Model(&model.LedgerEntry{}).
		Where("round_id = ? AND type = ?", "round-1", "rake").
		Count(&rakeEntries).Error; err != nil {
		t.Fatalf("count rake entries: %v", err)
	}
	if rakeEntries != 1 {
		t.Fatalf("rake entries = %d, want 1", rakeEntries)
	}
}

func TestSettleIsIdempotentByRound(t *testing.T) {
	ctx := context.Background()
	db, svc := newService(t)
	seedWallet(t, db, 11, 1000)
	seedWallet(t, db, 22, 1000)

	deltas := map[int64]int64{11: 100, 22: -100}
	for i := 0; i < 2; i++ {
		if err := svc.Settle(ctx, "round-1", "table-1", "points", 11, deltas, 0); err != nil {
			t.Fatalf("settle #%d failed: %v", i+1, err)
		}
	}

	winner := fetchWallet(t, db, 11)
	if winner.BalanceAvailable != 1100 {
		t.Fatalf("winner balance = %d, want 1100 after duplicate settle", winner.BalanceAvailable)
	}
	loser := fetchWallet(t, db, 22)
	if loser.BalanceAvailable != 900 {
		t.Fatalf("loser balance = %d, want 900 after duplicate settle", loser.BalanceAvailable)
	}
}

func TestSettleCreatesMissingWallet(t *testing.T) {
	ctx := context.Background()
	db, svc := newService(t)

	deltas := map[int64]int64{11: 50}
	if err := svc.Settle(ctx, "round-1", "table-1", "points", 11, deltas, 0); err != nil {
		t.Fatalf("settle failed: %v", err)
	}
	w := fetchWallet(t, db, 11)
	if w.BalanceAvailable != 50 {
		t.Fatalf("created wallet balance = %d, want 50", w.BalanceAvailable)
	}
}
