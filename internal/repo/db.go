package repo

import (
	"log"

	"rummy-service/internal/config"
	"rummy-service/internal/model"
	"rummy-service/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

func InitDB() {
	dsn := config.GlobalConfig.Database.DSN
	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		logger.Log.Fatal("Failed to connect to database",
			zap.Error(err),
		)
	}

	if err := Migrate(DB); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
}

// Migrate runs AutoMigrate for every model. Tests call it against an
// in-memory sqlite handle.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.User{},
		&model.Admin{},
		&model.Wallet{},
		&model.WalletHold{},
		&model.LedgerEntry{},
		&model.TableRecord{},
		&model.RoundResult{},
		&model.RoundSnapshot{},
	)
}
