package service

import (
	"context"

	"rummy-service/internal/config"
	"rummy-service/internal/service/admin"
	"rummy-service/internal/service/auth"
	"rummy-service/internal/service/game"
	"rummy-service/internal/service/session"
	"rummy-service/internal/service/table"
	"rummy-service/internal/service/wallet"
	"rummy-service/internal/ws"
	"rummy-service/pkg/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Container struct {
	Auth     *auth.Service
	Game     *game.Service
	Table    *table.Service
	Wallet   *wallet.Service
	Admin    *admin.Service
	Sessions *session.Manager
	Hub      *ws.Hub
}

func NewContainer(db *gorm.DB, rdb *redis.Client) *Container {
	cfg := config.GlobalConfig

	hub := ws.NewHub()
	walletSvc := wallet.NewService(db)
	gameSvc := game.NewService(db, game.NewStore(), walletSvc, hub, cfg.Game)
	tableSvc := table.NewService(rdb, gameSvc, walletSvc, cfg.Game)

	c := &Container{
		Auth:   auth.NewService(db, rdb),
		Game:   gameSvc,
		Table:  tableSvc,
		Wallet: walletSvc,
		Admin:  admin.NewService(db, gameSvc, tableSvc),
		Hub:    hub,
	}
	c.Sessions = session.NewManager(cfg.Guard, rdb, c.onGraceExpired)
	return c
}

// onGraceExpired surrenders the seat of a user who never reconnected:
// a live round packs the seat, a waiting table frees it.
func (c *Container) onGraceExpired(userID int64, tableID string) {
	if err := c.Table.LeaveTable(context.Background(), userID); err != nil {
		logger.Log.Warn("grace-expired leave failed",
			zap.Int64("userID", userID),
			zap.String("tableID", tableID),
			zap.Error(err),
		)
	}
}

func (c *Container) Start(ctx context.Context) error {
	if err := c.Admin.EnsureDefaultAdmin(ctx); err != nil {
		return err
	}
	return c.Game.RecoverOnStart(ctx)
}
