package contract

import (
	"sync"
	"testing"
	"time"

	"star_trade/model"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

var (
	registryAddr = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	escrowAddr   = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	ceoAddr      = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	cfoAddr      = common.HexToAddress("0x00000000000000000000000000000000000000c2")
	cooAddr      = common.HexToAddress("0x00000000000000000000000000000000000000c3")
	alice        = common.HexToAddress("0x000000000000000000000000000000000000a11c")
	bob          = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	carol        = common.HexToAddress("0x000000000000000000000000000000000000ca01")
)

// fakeClock 可手动推进的时钟
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// recorder 记录全部通知
type recorder struct {
	mu     sync.Mutex
	events []model.Event
}

func (r *recorder) Notify(ev model.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) kinds() []model.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]model.EventKind, 0, len(r.events))
	for _, ev := range r.events {
		kinds = append(kinds, ev.Kind)
	}
	return kinds
}

func (r *recorder) reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

type fixture struct {
	registry *Registry
	auction  *ClockAuction
	access   *RoleAccess
	stats    *SaleStats
	events   *recorder
	clock    *fakeClock
}

// setupFixture 创建注册表与拍卖引擎，平台分成375基点
func setupFixture(t testing.TB) *fixture {
	access, err := NewRoleAccess(ceoAddr, cfoAddr, cooAddr)
	require.NoError(t, err)

	events := &recorder{}
	clock := newFakeClock()

	registry, err := NewRegistry(registryAddr, access, WithNotifier(events), WithClock(clock.Now))
	require.NoError(t, err)

	stats := NewSaleStats()
	auction, err := NewClockAuction(registry, escrowAddr, 375, NewVault(),
		WithAuctionNotifier(events),
		WithAuctionClock(clock.Now),
		WithSaleStats(stats, nil))
	require.NoError(t, err)

	return &fixture{
		registry: registry,
		auction:  auction,
		access:   access,
		stats:    stats,
		events:   events,
		clock:    clock,
	}
}

func (f *fixture) mint(t testing.TB, owner common.Address) uint64 {
	id, err := f.registry.Create("star", []string{"andromeda"}, owner)
	require.NoError(t, err)
	return id
}

// deposit 为addr入金
func (f *fixture) deposit(t testing.TB, addr common.Address, amount uint64) {
	require.NoError(t, f.auction.Vault().Credit(addr, u(amount)))
}

// requireSupplyInvariant 持有数量之和等于总量
func requireSupplyInvariant(t testing.TB, r *Registry, owners ...common.Address) {
	var sum uint64
	for _, owner := range owners {
		sum += r.BalanceOf(owner)
	}
	require.Equal(t, r.TotalSupply(), sum)
}

func u(v uint64) *uint256.Int {
	return uint256.NewInt(v)
}
