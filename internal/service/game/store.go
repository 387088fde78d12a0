package game

import "sync"

// Store owns the in-memory table/round registries plus the deals and
// pool cross-round state. It is injected into the Service so tests
// can run isolated instances side by side. Mutation happens only
// through the Service under the engine lock; the Store's own mutex
// just keeps lookups safe for readers outside that lock.
type Store struct {
	mu     sync.RWMutex
	tables map[string]*Table
	rounds map[string]*Round
	deals  map[string]*DealsState
	pools  map[string]*PoolState
}

func NewStore() *Store {
	return &Store{
		tables: make(map[string]*Table),
		rounds: make(map[string]*Round),
		deals:  make(map[string]*DealsState),
		pools:  make(map[string]*PoolState),
	}
}

func (st *Store) Table(id string) (*Table, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	t, ok := st.tables[id]
	return t, ok
}

func (st *Store) PutTable(t *Table) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.tables[t.ID] = t
}

// FindWaitingTable reuses an existing waiting table with free
// capacity for the same (boot, seats, format) tuple.
func (st *Store) FindWaitingTable(boot int64, seats int, format Format) *Table {
	st.mu.RLock()
	defer st.mu.RUnlock()
	for _, t := range st.tables {
		if t.Status != TableWaiting {
			continue
		}
		if t.BootValue != boot || t.SeatCount != seats || t.Format != format {
			continue
		}
		if t.SeatedCount() < t.SeatCount {
			return t
		}
	}
	return nil
}

func (st *Store) TableOfUser(userID int64) (*Table, int) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	for _, t := range st.tables {
		if seat := t.SeatOf(userID); seat >= 0 {
			return t, seat
		}
	}
	return nil, -1
}

func (st *Store) Round(id string) (*Round, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	r, ok := st.rounds[id]
	return r, ok
}

func (st *Store) PutRound(r *Round) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.rounds[r.ID] = r
}

func (st *Store) DeleteRound(id string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.rounds, id)
}

func (st *Store) Deals(tableID string) (*DealsState, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	d, ok := st.deals[tableID]
	return d, ok
}

func (st *Store) PutDeals(d *DealsState) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.deals[d.TableID] = d
}

func (st *Store) DeleteDeals(tableID string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.deals, tableID)
}

func (st *Store) Pool(tableID string) (*PoolState, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	p, ok := st.pools[tableID]
	return p, ok
}

func (st *Store) PutPool(p *PoolState) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.pools[p.TableID] = p
}

func (st *Store) DeletePool(tableID string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.pools, tableID)
}
