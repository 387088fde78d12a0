package game

import (
	"context"
	"sync"

	"rummy-service/internal/config"

	"gorm.io/gorm"
)

// Emitter pushes engine events out to connected clients. The ws hub
// implements it; tests plug in a recorder or the no-op.
type Emitter interface {
	ToTable(tableID string, event string, data interface{})
	ToUser(userID int64, event string, data interface{})
}

type NopEmitter struct{}

func (NopEmitter) ToTable(string, string, interface{}) {}
func (NopEmitter) ToUser(int64, string, interface{})   {}

// WalletGateway is the external wallet/ledger collaborator. The
// engine requests holds, releases and settlements; it never stores or
// reconciles balances itself, and it tolerates gateway failure.
type WalletGateway interface {
	ReleaseTableHolds(ctx context.Context, tableID string) error
	Settle(ctx context.Context, roundID, tableID, format string, winnerID int64, deltas map[int64]int64, rake int64) error
}

// Service is the round controller. Every table/round mutation runs
// under the single engine lock, the Go rendition of the original
// cooperative single-threaded scheduling: two handlers never
// interleave mid-mutation, and all broadcasts for a transition are
// emitted before the lock is released.
type Service struct {
	db      *gorm.DB
	store   *Store
	wallet  WalletGateway
	emitter Emitter
	cfg     config.GameConfig

	mu sync.Mutex

	tmu    sync.Mutex
	timers map[string]*roundTimers
}

func NewService(db *gorm.DB, store *Store, wallet WalletGateway, emitter Emitter, cfg config.GameConfig) *Service {
	return &Service{
		db:      db,
		store:   store,
		wallet:  wallet,
		emitter: emitter,
		cfg:     cfg,
		timers:  make(map[string]*roundTimers),
	}
}

func (s *Service) Store() *Store {
	return s.store
}

func (s *Service) Config() config.GameConfig {
	return s.cfg
}
