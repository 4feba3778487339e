package auction

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"flowerbidgo/internal/bidhistory"
	"flowerbidgo/internal/bidledger"
	"flowerbidgo/internal/catalog"
	"flowerbidgo/internal/lot"
	"flowerbidgo/internal/wallet"
)

// In-memory collaborators for engine tests.

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock(t time.Time) *testClock { return &testClock{t: t} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type memStore struct {
	mu      sync.Mutex
	lots    map[string]lot.Lot
	saveErr error
}

func newMemStore() *memStore { return &memStore{lots: map[string]lot.Lot{}} }

func (s *memStore) put(l lot.Lot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l.Version == 0 {
		l.Version = 1
	}
	s.lots[l.ID] = l
}

func (s *memStore) CreateLot(_ context.Context, l lot.Lot) error {
	s.put(l)
	return nil
}

func (s *memStore) GetLot(_ context.Context, id string) (*lot.Lot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lots[id]
	if !ok {
		return nil, catalog.ErrLotNotFound
	}
	cp := l
	return &cp, nil
}

func (s *memStore) SaveLot(_ context.Context, l *lot.Lot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	cur, ok := s.lots[l.ID]
	if !ok {
		return catalog.ErrLotNotFound
	}
	if cur.Version != l.Version {
		return catalog.ErrVersionConflict
	}
	l.Version++
	s.lots[l.ID] = *l
	return nil
}

func (s *memStore) DeleteLot(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lots[id]; !ok {
		return catalog.ErrLotNotFound
	}
	delete(s.lots, id)
	return nil
}

func (s *memStore) ListLots(_ context.Context, status string, limit, offset int) ([]lot.Lot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit == 0 {
		limit = 10
	}
	var all []lot.Lot
	for _, l := range s.lots {
		if status == "" || string(l.Status) == status {
			all = append(all, l)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (s *memStore) ListExpiredLots(_ context.Context, now time.Time) ([]lot.Lot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []lot.Lot
	for _, l := range s.lots {
		if !l.Settled && !l.EndsAt.After(now) {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type memLedger struct {
	mu         sync.Mutex
	bids       map[string][]bidledger.Bid
	appendErr  error
	winningErr error
}

func newMemLedger() *memLedger { return &memLedger{bids: map[string][]bidledger.Bid{}} }

func (m *memLedger) AppendBid(_ context.Context, b bidledger.Bid) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return m.appendErr
	}
	m.bids[b.LotID] = append(m.bids[b.LotID], b)
	return nil
}

func (m *memLedger) AppendWinning(_ context.Context, b bidledger.Bid) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	// All-or-nothing, like the transactional store.
	if m.appendErr != nil {
		return m.appendErr
	}
	if m.winningErr != nil {
		return m.winningErr
	}
	for i := range m.bids[b.LotID] {
		m.bids[b.LotID][i].IsWinning = false
	}
	b.IsWinning = true
	m.bids[b.LotID] = append(m.bids[b.LotID], b)
	return nil
}

func (m *memLedger) GetBid(_ context.Context, lotID, bidID string) (*bidledger.Bid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.bids[lotID] {
		if b.ID == bidID {
			cp := b
			return &cp, nil
		}
	}
	return nil, bidledger.ErrBidNotFound
}

func (m *memLedger) ordered(lotID string) []bidledger.Bid {
	out := append([]bidledger.Bid(nil), m.bids[lotID]...)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Amount.Equal(out[j].Amount) {
			return out[i].Amount.GreaterThan(out[j].Amount)
		}
		return out[i].PlacedAt.Before(out[j].PlacedAt)
	})
	return out
}

func (m *memLedger) ListBidsForLot(_ context.Context, lotID string) ([]bidledger.Bid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ordered(lotID), nil
}

func (m *memLedger) HighestBid(_ context.Context, lotID string) (*bidledger.Bid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bids := m.ordered(lotID)
	if len(bids) == 0 {
		return nil, bidledger.ErrNoBids
	}
	cp := bids[0]
	return &cp, nil
}

func (m *memLedger) CountForLot(_ context.Context, lotID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.bids[lotID]), nil
}

func (m *memLedger) SetWinning(_ context.Context, lotID, bidID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.winningErr != nil {
		return m.winningErr
	}
	for i := range m.bids[lotID] {
		m.bids[lotID][i].IsWinning = m.bids[lotID][i].ID == bidID
	}
	return nil
}

func (m *memLedger) PurgeLosingBids(_ context.Context, lotID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []bidledger.Bid
	var purged int64
	for _, b := range m.bids[lotID] {
		if b.IsWinning {
			kept = append(kept, b)
		} else {
			purged++
		}
	}
	m.bids[lotID] = kept
	return purged, nil
}

func (m *memLedger) winningBids(lotID string) []bidledger.Bid {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []bidledger.Bid
	for _, b := range m.bids[lotID] {
		if b.IsWinning {
			out = append(out, b)
		}
	}
	return out
}

type memWallet struct {
	mu       sync.Mutex
	balances map[string]decimal.Decimal
	debits   []string
	err      error
}

func newMemWallet() *memWallet { return &memWallet{balances: map[string]decimal.Decimal{}} }

func (w *memWallet) set(userID string, bal int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.balances[userID] = decimal.NewFromInt(bal)
}

func (w *memWallet) GetBalance(_ context.Context, userID string) (decimal.Decimal, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return decimal.Zero, w.err
	}
	bal, ok := w.balances[userID]
	if !ok {
		return decimal.Zero, wallet.ErrUserNotFound
	}
	return bal, nil
}

func (w *memWallet) Debit(_ context.Context, userID string, amount decimal.Decimal) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	bal, ok := w.balances[userID]
	if !ok {
		return wallet.ErrUserNotFound
	}
	if bal.Cmp(amount) < 0 {
		return wallet.ErrInsufficientFunds
	}
	w.balances[userID] = bal.Sub(amount)
	w.debits = append(w.debits, userID)
	return nil
}

func (w *memWallet) Credit(_ context.Context, userID string, amount decimal.Decimal) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.balances[userID] = w.balances[userID].Add(amount)
	return nil
}

func (w *memWallet) debitCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.debits)
}

type recordedEvent struct {
	lotID string
	event string
}

type recChannel struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (c *recChannel) Broadcast(_ context.Context, lotID, event string, _ any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, recordedEvent{lotID: lotID, event: event})
}

func (c *recChannel) names(lotID string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, e := range c.events {
		if e.lotID == lotID {
			out = append(out, e.event)
		}
	}
	return out
}

type memHistory struct {
	mu      sync.Mutex
	entries map[string][]bidhistory.Entry
}

func newMemHistory() *memHistory { return &memHistory{entries: map[string][]bidhistory.Entry{}} }

func (h *memHistory) Push(_ context.Context, bidderID string, e bidhistory.Entry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries[bidderID] = append([]bidhistory.Entry{e}, h.entries[bidderID]...)
}

func (h *memHistory) List(_ context.Context, bidderID string) ([]bidhistory.Entry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]bidhistory.Entry(nil), h.entries[bidderID]...), nil
}

// memCooldown honours the injected clock so tests can advance time.
type memCooldown struct {
	mu    sync.Mutex
	until map[string]time.Time
	clock *testClock
}

func newMemCooldown(clock *testClock) *memCooldown {
	return &memCooldown{until: map[string]time.Time{}, clock: clock}
}

func (c *memCooldown) InCooldown(_ context.Context, lotID, bidderID string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.until[lotID+"/"+bidderID]
	return ok && c.clock.Now().Before(t), nil
}

func (c *memCooldown) Arm(_ context.Context, lotID, bidderID string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.until[lotID+"/"+bidderID] = c.clock.Now().Add(ttl)
	return nil
}
