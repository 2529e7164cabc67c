package service

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/alanyoungcy/perpdash/internal/domain"
)

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func ptr[T any](v T) *T { return &v }

type memSetStore struct {
	mu   sync.Mutex
	sets map[string]domain.OrderSet
}

func newMemSetStore() *memSetStore { return &memSetStore{sets: map[string]domain.OrderSet{}} }

func (m *memSetStore) Create(_ context.Context, set domain.OrderSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sets[set.ID]; ok {
		return domain.ErrAlreadyExists
	}
	set.Orders = append([]domain.SubmittedOrder(nil), set.Orders...)
	m.sets[set.ID] = set
	return nil
}

func (m *memSetStore) UpdateStatus(_ context.Context, id string, status domain.SetStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.sets[id]
	if !ok {
		return domain.ErrNotFound
	}
	set.Status = status
	m.sets[id] = set
	return nil
}

func (m *memSetStore) UpdateOrder(_ context.Context, o domain.SubmittedOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.sets[o.SetID]
	if !ok {
		return domain.ErrNotFound
	}
	orders := append([]domain.SubmittedOrder(nil), set.Orders...)
	orders[o.Seq] = o
	set.Orders = orders
	m.sets[o.SetID] = set
	return nil
}

func (m *memSetStore) GetByID(_ context.Context, id string) (domain.OrderSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.sets[id]
	if !ok {
		return domain.OrderSet{}, domain.ErrNotFound
	}
	return set, nil
}

func (m *memSetStore) ListByWallet(_ context.Context, wallet string, _ domain.ListOpts) ([]domain.OrderSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.OrderSet
	for _, s := range m.sets {
		if s.Wallet == wallet {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memSetStore) ListBefore(context.Context, time.Time, int) ([]domain.OrderSet, error) {
	return nil, nil
}

func (m *memSetStore) DeleteBefore(context.Context, time.Time) (int64, error) { return 0, nil }

// stubExecutor accepts every leg except those listed in fail.
type stubExecutor struct {
	fail      map[int]bool
	submitted []string
}

func (e *stubExecutor) Submit(_ context.Context, set domain.OrderSet) (domain.OrderSet, error) {
	e.submitted = append(e.submitted, set.ID)
	failed := false
	for i := range set.Orders {
		if e.fail[i] {
			set.Orders[i].Status = domain.OrderStatusFailed
			set.Orders[i].Message = "venue down"
			failed = true
			continue
		}
		set.Orders[i].Status = domain.OrderStatusAccepted
		set.Orders[i].VenueID = "v-" + set.Orders[i].ID
	}
	if failed {
		set.Status = domain.SetStatusPartial
		return set, domain.ErrPartialSubmission
	}
	set.Status = domain.SetStatusSubmitted
	return set, nil
}

type stubLimiter struct{ deny bool }

func (l *stubLimiter) Allow(context.Context, string, int, time.Duration) (bool, error) {
	return !l.deny, nil
}

func (l *stubLimiter) Wait(context.Context, string) error { return nil }

type stubLocks struct {
	mu   sync.Mutex
	held map[string]bool
}

func (l *stubLocks) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held == nil {
		l.held = map[string]bool{}
	}
	if l.held[key] {
		return nil, domain.ErrLockHeld
	}
	l.held[key] = true
	return func() {
		l.mu.Lock()
		delete(l.held, key)
		l.mu.Unlock()
	}, nil
}

type memPrices struct {
	mu     sync.Mutex
	prices map[int]domain.OraclePrice
}

func newMemPrices(ps ...domain.OraclePrice) *memPrices {
	m := &memPrices{prices: map[int]domain.OraclePrice{}}
	for _, p := range ps {
		m.prices[p.MarketIndex] = p
	}
	return m
}

func (m *memPrices) SetPrice(_ context.Context, p domain.OraclePrice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices[p.MarketIndex] = p
	return nil
}

func (m *memPrices) GetPrice(_ context.Context, idx int) (domain.OraclePrice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.prices[idx]
	if !ok {
		return domain.OraclePrice{}, domain.ErrNotFound
	}
	return p, nil
}

func (m *memPrices) GetPrices(_ context.Context, idx []int) (map[int]domain.OraclePrice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[int]domain.OraclePrice{}
	for _, i := range idx {
		if p, ok := m.prices[i]; ok {
			out[i] = p
		}
	}
	return out, nil
}

type memBus struct {
	mu        sync.Mutex
	published map[string][][]byte
	streamed  map[string][][]byte
}

func newMemBus() *memBus {
	return &memBus{published: map[string][][]byte{}, streamed: map[string][][]byte{}}
}

func (b *memBus) Publish(_ context.Context, ch string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published[ch] = append(b.published[ch], payload)
	return nil
}

func (b *memBus) Subscribe(context.Context, string) (<-chan []byte, error) { return nil, nil }

func (b *memBus) StreamAppend(_ context.Context, stream string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.streamed[stream] = append(b.streamed[stream], payload)
	return nil
}

func (b *memBus) StreamRead(context.Context, string, string, int) ([]domain.StreamMessage, error) {
	return nil, nil
}

type memAudit struct {
	mu     sync.Mutex
	events []string
}

func (a *memAudit) Log(_ context.Context, event string, _ map[string]any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
	return nil
}

func (a *memAudit) List(context.Context, domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

type stubSizer struct {
	max int64
	err error
}

func (s stubSizer) MaxTradeSize(context.Context, string, int, domain.Direction) (int64, error) {
	return s.max, s.err
}

type stubAccounts struct {
	accounts []domain.RawAccount
	err      error
	calls    int
}

func (s *stubAccounts) Accounts(context.Context, string) ([]domain.RawAccount, error) {
	s.calls++
	return s.accounts, s.err
}

type stubOracle struct {
	prices    map[int]domain.OraclePrice
	requested [][]int
}

func (s *stubOracle) OraclePrices(_ context.Context, markets []int) (map[int]domain.OraclePrice, error) {
	s.requested = append(s.requested, markets)
	out := map[int]domain.OraclePrice{}
	for _, m := range markets {
		if p, ok := s.prices[m]; ok {
			out[m] = p
		}
	}
	return out, nil
}

type memSnapshots struct {
	mu    sync.Mutex
	cache map[string]domain.PortfolioSnapshot
	rows  []domain.PortfolioSnapshot
}

func newMemSnapshots() *memSnapshots {
	return &memSnapshots{cache: map[string]domain.PortfolioSnapshot{}}
}

func (m *memSnapshots) Set(_ context.Context, snap domain.PortfolioSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache[snap.Wallet] = snap
	return nil
}

func (m *memSnapshots) Get(_ context.Context, wallet string) (domain.PortfolioSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.cache[wallet]
	if !ok {
		return domain.PortfolioSnapshot{}, domain.ErrNotFound
	}
	return s, nil
}

func (m *memSnapshots) Insert(_ context.Context, snap domain.PortfolioSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, snap)
	return nil
}

func (m *memSnapshots) ListByWallet(_ context.Context, wallet string, _ domain.ListOpts) ([]domain.PortfolioSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.PortfolioSnapshot
	for i := len(m.rows) - 1; i >= 0; i-- {
		if m.rows[i].Wallet == wallet {
			out = append(out, m.rows[i])
		}
	}
	return out, nil
}

func (m *memSnapshots) ListBefore(context.Context, time.Time, int) ([]domain.PortfolioSnapshot, error) {
	return nil, nil
}

func (m *memSnapshots) DeleteBefore(context.Context, time.Time) (int64, error) { return 0, nil }

var (
	_ domain.OrderSetStore = (*memSetStore)(nil)
	_ domain.RateLimiter   = (*stubLimiter)(nil)
	_ domain.LockManager   = (*stubLocks)(nil)
	_ domain.PriceCache    = (*memPrices)(nil)
	_ domain.SignalBus     = (*memBus)(nil)
	_ domain.AuditStore    = (*memAudit)(nil)
	_ domain.SnapshotCache = (*memSnapshots)(nil)
	_ domain.SnapshotStore = (*memSnapshots)(nil)
	_ SetSubmitter         = (*stubExecutor)(nil)
)
