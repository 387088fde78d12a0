package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"rummy-service/internal/config"
	"rummy-service/pkg/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Session maps one live connection to a user and, once seated, a
// table seat.
type Session struct {
	ConnID  string
	UserID  int64
	TableID string
	Seat    int

	lastEvent map[string]time.Time
	seenKeys  map[string]time.Time
}

// Manager is the session/protocol guard: connection bookkeeping,
// per-event rate limits, idempotency-key dedup and the reconnect
// grace that delays auto-pack after a disconnect.
type Manager struct {
	cfg config.GuardConfig
	rdb *redis.Client

	mu      sync.Mutex
	byConn  map[string]*Session
	byUser  map[int64]*Session
	grace   map[int64]*time.Timer
	pending map[int64]string // userID -> tableID awaiting reconnect

	// onGraceExpired packs the abandoned seat; wired to the engine.
	onGraceExpired func(userID int64, tableID string)

	now func() time.Time
}

func NewManager(cfg config.GuardConfig, rdb *redis.Client, onGraceExpired func(userID int64, tableID string)) *Manager {
	return &Manager{
		cfg:            cfg,
		rdb:            rdb,
		byConn:         make(map[string]*Session),
		byUser:         make(map[int64]*Session),
		grace:          make(map[int64]*time.Timer),
		pending:        make(map[int64]string),
		onGraceExpired: onGraceExpired,
		now:            time.Now,
	}
}

// Connect binds a connection to a user. A user reconnecting inside
// the grace window gets their seat back and the pending auto-pack is
// cancelled.
func (m *Manager) Connect(connID string, userID int64) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess := &Session{
		ConnID:    connID,
		UserID:    userID,
		Seat:      -1,
		lastEvent: make(map[string]time.Time),
		seenKeys:  make(map[string]time.Time),
	}

	// A second connection for the same user evicts the first; the seat
	// follows the user onto the new socket so the old socket closing
	// cannot surrender it.
	if old, ok := m.byUser[userID]; ok && old.ConnID != connID {
		sess.TableID = old.TableID
		sess.Seat = old.Seat
	}
	if timer, ok := m.grace[userID]; ok {
		timer.Stop()
		delete(m.grace, userID)
		sess.TableID = m.pending[userID]
		delete(m.pending, userID)
		logger.Log.Info("reconnect within grace, auto-pack cancelled",
			zap.Int64("userID", userID),
			zap.String("tableID", sess.TableID),
		)
	}
	if m.rdb != nil {
		m.rdb.Del(context.Background(), buildPresenceKey(userID))
	}

	m.byConn[connID] = sess
	m.byUser[userID] = sess
	return sess
}

// Disconnect drops the session immediately. If the user held a seat,
// the seat is only surrendered after the grace period, unless the
// same user reconnects first.
func (m *Manager) Disconnect(connID string) {
	m.mu.Lock()
	sess, ok := m.byConn[connID]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.byConn, connID)
	if current, ok := m.byUser[sess.UserID]; ok && current.ConnID != connID {
		// the user already reconnected on a newer socket; this is the
		// evicted connection closing, not the user leaving
		m.mu.Unlock()
		return
	}
	delete(m.byUser, sess.UserID)

	userID := sess.UserID
	tableID := sess.TableID
	if tableID == "" {
		m.mu.Unlock()
		return
	}

	m.pending[userID] = tableID
	m.grace[userID] = time.AfterFunc(m.cfg.ReconnectGrace, func() {
		m.mu.Lock()
		delete(m.grace, userID)
		delete(m.pending, userID)
		m.mu.Unlock()
		if m.onGraceExpired != nil {
			m.onGraceExpired(userID, tableID)
		}
	})
	m.mu.Unlock()

	if m.rdb != nil {
		m.rdb.Set(context.Background(), buildPresenceKey(userID), tableID, m.cfg.ReconnectGrace)
	}
	logger.Log.Info("disconnect, grace started",
		zap.Int64("userID", userID),
		zap.String("tableID", tableID),
		zap.Duration("grace", m.cfg.ReconnectGrace),
	)
}

func (m *Manager) Get(connID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.byConn[connID]
	return sess, ok
}

func (m *Manager) SetSeat(connID, tableID string, seat int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sess, ok := m.byConn[connID]; ok {
		sess.TableID = tableID
		sess.Seat = seat
	}
}

func (m *Manager) ClearSeat(connID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sess, ok := m.byConn[connID]; ok {
		sess.TableID = ""
		sess.Seat = -1
	}
}

// Allow enforces the per-connection per-event minimum inter-arrival
// time. Violations report false and are dropped silently upstream.
func (m *Manager) Allow(connID, event string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.byConn[connID]
	if !ok {
		return false
	}
	now := m.now()
	if last, seen := sess.lastEvent[event]; seen && now.Sub(last) < m.cfg.RateLimitInterval {
		return false
	}
	sess.lastEvent[event] = now
	return true
}

// Deduplicate reports whether the idempotency key was already seen
// within the dedup window. The key map is pruned by age and by a soft
// size cap. An empty key is never deduplicated.
func (m *Manager) Deduplicate(connID, key string) bool {
	if key == "" {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.byConn[connID]
	if !ok {
		return false
	}
	now := m.now()
	if seen, dup := sess.seenKeys[key]; dup && now.Sub(seen) < m.cfg.DedupWindow {
		return true
	}
	m.pruneLocked(sess, now)
	sess.seenKeys[key] = now
	return false
}

func (m *Manager) pruneLocked(sess *Session, now time.Time) {
	for k, seen := range sess.seenKeys {
		if now.Sub(seen) >= m.cfg.DedupWindow {
			delete(sess.seenKeys, k)
		}
	}
	if m.cfg.DedupMaxKeys <= 0 || len(sess.seenKeys) < m.cfg.DedupMaxKeys {
		return
	}
	// soft cap: shed the oldest entries
	for len(sess.seenKeys) >= m.cfg.DedupMaxKeys {
		var oldestKey string
		var oldest time.Time
		for k, seen := range sess.seenKeys {
			if oldestKey == "" || seen.Before(oldest) {
				oldestKey = k
				oldest = seen
			}
		}
		delete(sess.seenKeys, oldestKey)
	}
}

func buildPresenceKey(userID int64) string {
	return fmt.Sprintf("session:away:%d", userID)
}
