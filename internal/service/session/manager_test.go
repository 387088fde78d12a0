package session

import (
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"rummy-service/internal/config"
	"rummy-service/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.InitTestLogger()
	os.Exit(m.Run())
}

func newTestManager(cfg config.GuardConfig, onGraceExpired func(int64, string)) *Manager {
	return NewManager(cfg, nil, onGraceExpired)
}

func TestConnectDisconnectLifecycle(t *testing.T) {
	m := newTestManager(config.DefaultGuard(), nil)

	sess := m.Connect("conn-1", 11)
	if sess.UserID != 11 || sess.Seat != -1 || sess.TableID != "" {
		t.Fatalf("fresh session = %+v", sess)
	}
	if _, ok := m.Get("conn-1"); !ok {
		t.Fatalf("session not registered")
	}

	m.SetSeat("conn-1", "table-1", 2)
	got, _ := m.Get("conn-1")
	if got.TableID != "table-1" || got.Seat != 2 {
		t.Fatalf("seat not recorded: %+v", got)
	}

	m.ClearSeat("conn-1")
	got, _ = m.Get("conn-1")
	if got.TableID != "" || got.Seat != -1 {
		t.Fatalf("seat not cleared: %+v", got)
	}

	m.Disconnect("conn-1")
	if _, ok := m.Get("conn-1"); ok {
		t.Fatalf("session survived disconnect")
	}
}

func TestRateLimitPerEvent(t *testing.T) {
	m := newTestManager(config.DefaultGuard(), nil)
	m.Connect("conn-1", 11)

	base := time.Now()
	m.now = func() time.Time { return base }

	if !m.Allow("conn-1", "get-card") {
		t.Fatalf("first event must pass")
	}
	if m.Allow("conn-1", "get-card") {
		t.Fatalf("immediate repeat must be limited")
	}
	// a different event has its own bucket
	if !m.Allow("conn-1", "discardCard") {
		t.Fatalf("unrelated event must pass")
	}

	m.now = func() time.Time { return base.Add(config.DefaultGuard().RateLimitInterval) }
	if !m.Allow("conn-1", "get-card") {
		t.Fatalf("event after the interval must pass")
	}

	if m.Allow("ghost", "get-card") {
		t.Fatalf("unknown connection must not pass")
	}
}

func TestDeduplicate(t *testing.T) {
	m := newTestManager(config.DefaultGuard(), nil)
	m.Connect("conn-1", 11)

	base := time.Now()
	m.now = func() time.Time { return base }

	if m.Deduplicate("conn-1", "req-1") {
		t.Fatalf("first key must not be a duplicate")
	}
	if !m.Deduplicate("conn-1", "req-1") {
		t.Fatalf("repeated key must be a duplicate")
	}
	if m.Deduplicate("conn-1", "") {
		t.Fatalf("empty key must never dedupe")
	}

	// outside the window the key is forgotten
	m.now = func() time.Time { return base.Add(config.DefaultGuard().DedupWindow) }
	if m.Deduplicate("conn-1", "req-1") {
		t.Fatalf("expired key must not be a duplicate")
	}
}

func TestDeduplicateCapsKeyCount(t *testing.T) {
	cfg := config.DefaultGuard()
	cfg.DedupMaxKeys = 4
	m := newTestManager(cfg, nil)
	m.Connect("conn-1", 11)

	base := time.Now()
	for i := 0; i < 10; i++ {
		tick := base.Add(time.Duration(i) * time.Millisecond)
		m.now = func() time.Time { return tick }
		m.Deduplicate("conn-1", fmt.Sprintf("req-%d", i))
	}

	sess, _ := m.Get("conn-1")
	if len(sess.seenKeys) > cfg.DedupMaxKeys {
		t.Fatalf("seen keys = %d, cap is %d", len(sess.seenKeys), cfg.DedupMaxKeys)
	}
	// the newest key survives the shedding
	if _, ok := sess.seenKeys["req-9"]; !ok {
		t.Fatalf("newest key was shed")
	}
}

func TestGraceExpiryFiresAutoPack(t *testing.T) {
	cfg := config.DefaultGuard()
	cfg.ReconnectGrace = 20 * time.Millisecond

	var mu sync.Mutex
	var gotUser int64
	var gotTable string
	fired := make(chan struct{})
	m := newTestManager(cfg, func(userID int64, tableID string) {
		mu.Lock()
		gotUser, gotTable = userID, tableID
		mu.Unlock()
		close(fired)
	})

	m.Connect("conn-1", 11)
	m.SetSeat("conn-1", "table-1", 0)
	m.Disconnect("conn-1")

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatalf("grace expiry never fired")
	}
	mu.Lock()
	defer mu.Unlock()
	if gotUser != 11 || gotTable != "table-1" {
		t.Fatalf("expiry for user=%d table=%s", gotUser, gotTable)
	}
}

func TestReconnectWithinGraceKeepsSeat(t *testing.T) {
	cfg := config.DefaultGuard()
	cfg.ReconnectGrace = 200 * time.Millisecond

	fired := make(chan struct{}, 1)
	m := newTestManager(cfg, func(int64, string) { fired <- struct{}{} })

	m.Connect("conn-1", 11)
	m.SetSeat("conn-1", "table-1", 0)
	m.Disconnect("conn-1")

	sess := m.Connect("conn-2", 11)
	if sess.TableID != "table-1" {
		t.Fatalf("reconnect lost the seat, tableID=%q", sess.TableID)
	}

	select {
	case <-fired:
		t.Fatalf("auto-pack fired despite reconnect")
	case <-time.After(2 * cfg.ReconnectGrace):
	}
}

func TestEvictedConnectionDoesNotStartGrace(t *testing.T) {
	cfg := config.DefaultGuard()
	cfg.ReconnectGrace = 20 * time.Millisecond

	fired := make(chan struct{}, 1)
	m := newTestManager(cfg, func(int64, string) { fired <- struct{}{} })

	m.Connect("conn-1", 11)
	m.SetSeat("conn-1", "table-1", 0)

	// a second socket for the same user evicts the first; the seat
	// moves onto the new session
	sess := m.Connect("conn-2", 11)
	if sess.TableID != "table-1" || sess.Seat != 0 {
		t.Fatalf("seat did not follow the user: %+v", sess)
	}

	// the evicted socket closes only after the new one registered
	m.Disconnect("conn-1")

	select {
	case <-fired:
		t.Fatalf("auto-pack grace fired for a user with a live connection")
	case <-time.After(2 * cfg.ReconnectGrace):
	}
	got, ok := m.Get("conn-2")
	if !ok || got.TableID != "table-1" {
		t.Fatalf("live session lost after eviction: ok=%v sess=%+v", ok, got)
	}

	// the surviving socket going away still surrenders the seat
	m.Disconnect("conn-2")
	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatalf("grace expiry never fired after the last disconnect")
	}
}

func TestDisconnectWithoutSeatSkipsGrace(t *testing.T) {
	cfg := config.DefaultGuard()
	cfg.ReconnectGrace = 20 * time.Millisecond

	fired := make(chan struct{}, 1)
	m := newTestManager(cfg, func(int64, string) { fired <- struct{}{} })

	m.Connect("conn-1", 11)
	m.Disconnect("conn-1")

	select {
	case <-fired:
		t.Fatalf("grace fired for a seatless session")
	case <-time.After(2 * cfg.ReconnectGrace):
	}
}
