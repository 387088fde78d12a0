package admin

import (
	"context"
	"strings"
	"time"

	"rummy-service/internal/config"
	"rummy-service/internal/model"
	"rummy-service/internal/service/game"
	"rummy-service/internal/service/table"
	pkgAuth "rummy-service/pkg/auth"
	appErr "rummy-service/pkg/errors"
	"rummy-service/pkg/logger"
	"rummy-service/pkg/utils/random"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Service is the operational/test interface: admin login plus the
// round back doors used by integration drivers. It composes the
// engine's public ops and never branches inside game logic.
type Service struct {
	db     *gorm.DB
	game   *game.Service
	tables *table.Service
}

type LoginResult struct {
	Token    string    `json:"token"`
	ExpireAt time.Time `json:"expireAt"`
	Admin    AdminInfo `json:"admin"`
}

type AdminInfo struct {
	ID          int64      `json:"id"`
	Username    string     `json:"username"`
	DisplayName string     `json:"displayName"`
	Status      string     `json:"status"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

func NewService(db *gorm.DB, gameSvc *game.Service, tableSvc *table.Service) *Service {
	return &Service{db: db, game: gameSvc, tables: tableSvc}
}

func (s *Service) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	username = strings.TrimSpace(username)
	password = strings.TrimSpace(password)
	if username == "" || password == "" {
		return nil, appErr.ErrUnauthorized
	}

	var admin model.Admin
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&admin).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, appErr.ErrUnauthorized
		}
		return nil, err
	}
	if !strings.EqualFold(admin.Status, "active") {
		return nil, appErr.ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)); err != nil {
		return nil, appErr.ErrUnauthorized
	}

	token, err := pkgAuth.GenerateAdminToken(admin.ID)
	if err != nil {
		return nil, err
	}
	expireAt := time.Now().Add(time.Duration(config.GlobalConfig.JWT.Expire) * time.Hour)

	now := time.Now()
	if err := s.db.WithContext(ctx).
		Model(&admin).
		Updates(map[string]interface{}{
			"last_login_at": now,
			"updated_at":    now,
		}).Error; err != nil {
		return nil, err
	}

	return &LoginResult{
		Token:    token,
		ExpireAt: expireAt,
		Admin:    sanitizeAdmin(admin),
	}, nil
}

func (s *Service) EnsureDefaultAdmin(ctx context.Context) error {
	cfg := config.GlobalConfig.Admin
	if cfg.DefaultUsername == "" || cfg.DefaultPassword == "" {
		logger.Log.Warn("default admin credentials not configured; skipping bootstrap")
		return nil
	}

	var exists int64
	if err := s.db.WithContext(ctx).
		Model(&model.Admin{}).
		Where("username = ?", cfg.DefaultUsername).
		Count(&exists).Error; err != nil {
		return err
	}
	if exists > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.DefaultPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	admin := model.Admin{
		Username:     cfg.DefaultUsername,
		PasswordHash: string(hash),
		DisplayName:  cfg.DefaultUsername,
		Status:       "active",
	}
	if err := s.db.WithContext(ctx).Create(&admin).Error; err != nil {
		return err
	}
	logger.Log.Info("default admin account created",
		zap.String("username", cfg.DefaultUsername))
	return nil
}

// ForceDeclare ends a round with the given user as winner.
func (s *Service) ForceDeclare(roundID string, userID int64) (*game.Settlement, error) {
	return s.game.ForceWin(roundID, userID)
}

// SetDealsRemaining steps a deals match toward its end.
func (s *Service) SetDealsRemaining(tableID string, remaining int) error {
	return s.game.SetDealsRemaining(tableID, remaining)
}

// SetPoolScore pins a user's cumulative pool total.
func (s *Service) SetPoolScore(tableID string, userID int64, score int) error {
	return s.game.SetPoolScore(tableID, userID, score)
}

// RoundInfo dumps full round state, hands included.
func (s *Service) RoundInfo(roundID string) (*game.RoundDump, error) {
	return s.game.RoundInfo(roundID)
}

// AddBot creates a synthetic user and seats it at the table.
func (s *Service) AddBot(ctx context.Context, tableID string) (int64, int, error) {
	bot := model.User{
		Phone:    "bot-" + random.Numeric(10),
		Nickname: "bot" + random.Code(4),
		IsBot:    true,
		Status:   "normal",
	}
	if s.db != nil {
		if err := s.db.WithContext(ctx).Create(&bot).Error; err != nil {
			return 0, 0, err
		}
	} else {
		bot.ID = time.Now().UnixNano()
	}
	seat, err := s.tables.AddBot(ctx, bot.ID, tableID)
	if err != nil {
		return 0, 0, err
	}
	return bot.ID, seat, nil
}

func sanitizeAdmin(a model.Admin) AdminInfo {
	return AdminInfo{
		ID:          a.ID,
		Username:    a.Username,
		DisplayName: a.DisplayName,
		Status:      a.Status,
		LastLoginAt: a.LastLoginAt,
		CreatedAt:   a.CreatedAt,
	}
}
