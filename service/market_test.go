package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"star_trade/contract"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	registryAddr = common.HexToAddress("0x0000000000000000000000000000000000005a01")
	escrowAddr   = common.HexToAddress("0x0000000000000000000000000000000000005a02")
	ceoAddr      = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	cfoAddr      = common.HexToAddress("0x00000000000000000000000000000000000000c2")
	cooAddr      = common.HexToAddress("0x00000000000000000000000000000000000000c3")
	alice        = common.HexToAddress("0x000000000000000000000000000000000000a11c")
	bob          = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
)

// countingLocker 记录加锁key
type countingLocker struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (l *countingLocker) Lock(_ context.Context, key string) (func(), error) {
	if l.err != nil {
		return nil, l.err
	}
	l.mu.Lock()
	l.keys = append(l.keys, key)
	l.mu.Unlock()
	return func() {}, nil
}

type marketFixture struct {
	market *Market
	clock  *time.Time
	locker *countingLocker
}

func setupMarket(t testing.TB) *marketFixture {
	access, err := contract.NewRoleAccess(ceoAddr, cfoAddr, cooAddr)
	require.NoError(t, err)

	now := time.Unix(1_700_000_000, 0)
	clock := func() time.Time { return now }

	registry, err := contract.NewRegistry(registryAddr, access, contract.WithClock(clock))
	require.NoError(t, err)
	auction, err := contract.NewClockAuction(registry, escrowAddr, 375, contract.NewVault(),
		contract.WithAuctionClock(clock),
		contract.WithSaleStats(contract.NewSaleStats(), nil))
	require.NoError(t, err)

	locker := &countingLocker{}
	market := NewMarket(registry, auction, access, locker, MarketConfig{
		Gen0StartingPrice:   uint256.NewInt(1000),
		Gen0AuctionDuration: 86400,
	})
	return &marketFixture{market: market, clock: &now, locker: locker}
}

func (f *marketFixture) advance(d time.Duration) {
	*f.clock = f.clock.Add(d)
}

func TestMarket_MintPromo(t *testing.T) {
	f := setupMarket(t)
	ctx := context.Background()

	t.Run("非COO不能铸造", func(t *testing.T) {
		_, err := f.market.MintPromo(ctx, alice, "x", nil, alice)
		assert.ErrorIs(t, err, contract.ErrUnauthorized)
	})

	t.Run("owner为空时给调用者", func(t *testing.T) {
		id, err := f.market.MintPromo(ctx, cooAddr, "promo", []string{"c1"}, common.Address{})
		require.NoError(t, err)
		owner, err := f.market.Registry().OwnerOf(id)
		require.NoError(t, err)
		assert.Equal(t, cooAddr, owner)
	})

	t.Run("不能铸造给托管地址", func(t *testing.T) {
		_, err := f.market.MintPromo(ctx, cooAddr, "x", nil, registryAddr)
		assert.ErrorIs(t, err, contract.ErrInvalidRecipient)
	})

	t.Run("铸造给指定用户", func(t *testing.T) {
		id, err := f.market.MintPromo(ctx, ceoAddr, "promo", nil, alice)
		require.NoError(t, err)
		assert.Equal(t, []uint64{id}, f.market.Registry().TokensOf(alice))
	})
}

func TestMarket_PrimaryAuction(t *testing.T) {
	f := setupMarket(t)
	ctx := context.Background()

	t.Run("起拍价不低于下限", func(t *testing.T) {
		assert.Equal(t, uint64(1000), f.market.Gen0Price().Uint64())
	})

	id, err := f.market.CreatePrimaryAuction(ctx, cooAddr, "gen0", nil)
	require.NoError(t, err)

	view, err := f.market.GetAuction(id)
	require.NoError(t, err)
	assert.True(t, view.Primary)
	assert.Equal(t, registryAddr, view.Seller)
	assert.Equal(t, "1000", view.StartingPrice)
	assert.Equal(t, "0", view.EndingPrice)
	assert.Equal(t, "1000", view.CurrentPrice)
	assert.Contains(t, f.locker.keys, "star_lock_1")

	t.Run("一级成交计入统计并抬高起拍价", func(t *testing.T) {
		require.NoError(t, f.market.Deposit(ctx, cfoAddr, bob, uint256.NewInt(1_000_000)))
		f.advance(43200 * time.Second)
		price, err := f.market.Bid(ctx, bob, id, uint256.NewInt(600))
		require.NoError(t, err)
		assert.Equal(t, uint64(500), price.Uint64())
		// 扣600退100
		assert.Equal(t, uint64(999_500), f.market.PendingFunds(bob).Uint64())
		// 卖家为注册表：500-18
		assert.Equal(t, uint64(482), f.market.PendingFunds(registryAddr).Uint64())

		// 均价100，1.5倍150仍低于下限
		assert.Equal(t, uint64(1000), f.market.Gen0Price().Uint64())
		for i := 0; i < 4; i++ {
			next, err := f.market.CreatePrimaryAuction(ctx, cooAddr, "gen0", nil)
			require.NoError(t, err)
			_, err = f.market.Bid(ctx, bob, next, uint256.NewInt(2000))
			require.NoError(t, err)
		}
		// 第4笔前均价700，起拍价1050；最近5笔500,1000,1000,1000,1050均价910，起拍价1365
		assert.Equal(t, uint64(1365), f.market.Gen0Price().Uint64())
	})

	t.Run("CFO划转平台分成与一级货款", func(t *testing.T) {
		// 分成与货款之和等于成交总额 500+1000+1000+1000+1050
		amount, err := f.market.WithdrawEarnings(ctx, cfoAddr, cfoAddr)
		require.NoError(t, err)
		assert.Equal(t, uint64(4550), amount.Uint64())
		assert.True(t, f.market.PendingFunds(registryAddr).IsZero())
		assert.Equal(t, uint64(4550), f.market.PendingFunds(cfoAddr).Uint64())
	})

	t.Run("非COO不能创建", func(t *testing.T) {
		_, err := f.market.CreatePrimaryAuction(ctx, alice, "x", nil)
		assert.ErrorIs(t, err, contract.ErrUnauthorized)
	})

	t.Run("暂停时不铸造", func(t *testing.T) {
		supply := f.market.Registry().TotalSupply()
		require.NoError(t, f.market.Pause(cooAddr))
		defer func() { require.NoError(t, f.market.Unpause(ceoAddr)) }()

		_, err := f.market.CreatePrimaryAuction(ctx, cooAddr, "x", nil)
		assert.ErrorIs(t, err, contract.ErrPaused)
		assert.Equal(t, supply, f.market.Registry().TotalSupply())
	})

	t.Run("COO取消一级拍卖", func(t *testing.T) {
		next, err := f.market.CreatePrimaryAuction(ctx, cooAddr, "gen0", nil)
		require.NoError(t, err)
		assert.ErrorIs(t, f.market.CancelAuction(ctx, alice, next), contract.ErrUnauthorized)
		require.NoError(t, f.market.CancelAuction(ctx, cooAddr, next))

		owner, err := f.market.Registry().OwnerOf(next)
		require.NoError(t, err)
		assert.Equal(t, registryAddr, owner)
	})
}

func TestMarket_SaleAuction(t *testing.T) {
	f := setupMarket(t)
	ctx := context.Background()
	id, err := f.market.MintPromo(ctx, cooAddr, "star", nil, alice)
	require.NoError(t, err)

	t.Run("非所有者不能上架", func(t *testing.T) {
		err := f.market.CreateSaleAuction(ctx, bob, id, uint256.NewInt(1000), uint256.NewInt(0), 1000)
		assert.ErrorIs(t, err, contract.ErrUnauthorized)
	})

	require.NoError(t, f.market.CreateSaleAuction(ctx, alice, id, uint256.NewInt(1000), uint256.NewInt(0), 1000))
	assert.Len(t, f.market.ListAuctions(), 1)

	t.Run("重复上架", func(t *testing.T) {
		err := f.market.CreateSaleAuction(ctx, alice, id, uint256.NewInt(1000), uint256.NewInt(0), 1000)
		assert.ErrorIs(t, err, contract.ErrUnauthorized)
	})

	t.Run("成交并提取", func(t *testing.T) {
		require.NoError(t, f.market.Deposit(ctx, cfoAddr, bob, uint256.NewInt(500)))
		f.advance(500 * time.Second)
		_, err := f.market.Bid(ctx, bob, id, uint256.NewInt(499))
		assert.ErrorIs(t, err, contract.ErrInsufficientPayment)

		price, err := f.market.Bid(ctx, bob, id, uint256.NewInt(500))
		require.NoError(t, err)
		assert.Equal(t, uint64(500), price.Uint64())

		amount, err := f.market.Withdraw(ctx, alice)
		require.NoError(t, err)
		assert.Equal(t, uint64(482), amount.Uint64())
		assert.True(t, f.market.PendingFunds(alice).IsZero())
		assert.Empty(t, f.market.ListAuctions())
	})

	t.Run("CFO提取平台分成", func(t *testing.T) {
		amount, err := f.market.WithdrawEarnings(ctx, cfoAddr, cfoAddr)
		require.NoError(t, err)
		assert.Equal(t, uint64(18), amount.Uint64())
	})
}

func TestMarket_Deposit(t *testing.T) {
	f := setupMarket(t)
	ctx := context.Background()
	id, err := f.market.MintPromo(ctx, cooAddr, "star", nil, alice)
	require.NoError(t, err)
	require.NoError(t, f.market.CreateSaleAuction(ctx, alice, id, uint256.NewInt(100), uint256.NewInt(100), 0))

	t.Run("未入金的出价不能凭空产生资金", func(t *testing.T) {
		_, err := f.market.Bid(ctx, bob, id, uint256.NewInt(1_000_000))
		assert.ErrorIs(t, err, contract.ErrInsufficientPayment)
		_, err = f.market.Withdraw(ctx, bob)
		require.NoError(t, err)
		assert.True(t, f.market.PendingFunds(bob).IsZero())
		assert.True(t, f.market.PendingFunds(alice).IsZero())
	})

	t.Run("只有CFO能入金", func(t *testing.T) {
		err := f.market.Deposit(ctx, bob, bob, uint256.NewInt(100))
		assert.ErrorIs(t, err, contract.ErrUnauthorized)
		err = f.market.Deposit(ctx, cooAddr, bob, uint256.NewInt(100))
		assert.ErrorIs(t, err, contract.ErrUnauthorized)
	})

	t.Run("入金参数校验", func(t *testing.T) {
		assert.ErrorIs(t, f.market.Deposit(ctx, cfoAddr, registryAddr, uint256.NewInt(1)), contract.ErrInvalidRecipient)
		assert.ErrorIs(t, f.market.Deposit(ctx, cfoAddr, bob, uint256.NewInt(0)), contract.ErrBoundsExceeded)
	})

	t.Run("入金后出价", func(t *testing.T) {
		require.NoError(t, f.market.Deposit(ctx, cfoAddr, bob, uint256.NewInt(150)))
		_, err := f.market.Bid(ctx, bob, id, uint256.NewInt(150))
		require.NoError(t, err)
		assert.Equal(t, uint64(50), f.market.PendingFunds(bob).Uint64())
		// 100 - 100*375/10000
		assert.Equal(t, uint64(97), f.market.PendingFunds(alice).Uint64())
	})
}

func TestMarket_CancelWhenPaused(t *testing.T) {
	f := setupMarket(t)
	ctx := context.Background()
	id, err := f.market.MintPromo(ctx, cooAddr, "star", nil, alice)
	require.NoError(t, err)
	require.NoError(t, f.market.CreateSaleAuction(ctx, alice, id, uint256.NewInt(10), uint256.NewInt(1), 10))

	require.NoError(t, f.market.Pause(cooAddr))
	assert.ErrorIs(t, f.market.CancelAuction(ctx, bob, id), contract.ErrUnauthorized)
	require.NoError(t, f.market.CancelAuction(ctx, ceoAddr, id))

	owner, err := f.market.Registry().OwnerOf(id)
	require.NoError(t, err)
	assert.Equal(t, alice, owner)
}

func TestMarket_TransferFlow(t *testing.T) {
	f := setupMarket(t)
	ctx := context.Background()
	id, err := f.market.MintPromo(ctx, cooAddr, "star", nil, alice)
	require.NoError(t, err)

	require.NoError(t, f.market.Approve(ctx, alice, bob, id))
	require.NoError(t, f.market.TransferFrom(ctx, bob, alice, cooAddr, id))
	require.NoError(t, f.market.Transfer(ctx, cooAddr, bob, id))

	owner, err := f.market.Registry().OwnerOf(id)
	require.NoError(t, err)
	assert.Equal(t, bob, owner)
}

func TestMarket_LockFailure(t *testing.T) {
	f := setupMarket(t)
	ctx := context.Background()
	id, err := f.market.MintPromo(ctx, cooAddr, "star", nil, alice)
	require.NoError(t, err)

	f.locker.err = errors.New("locked")
	err = f.market.Transfer(ctx, alice, bob, id)
	require.Error(t, err)

	owner, _ := f.market.Registry().OwnerOf(id)
	assert.Equal(t, alice, owner)
}
