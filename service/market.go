package service

import (
	"context"
	"fmt"

	"star_trade/contract"
	"star_trade/model"
	"star_trade/utils"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"
)

// Locker 星体级锁，多实例部署时由RedSync实现
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// NopLocker 单实例部署使用的空锁
type NopLocker struct{}

// Lock 实现Locker
func (NopLocker) Lock(context.Context, string) (func(), error) { return func() {}, nil }

// AdminPolicy 带暂停能力的访问控制
type AdminPolicy interface {
	contract.AccessPolicy
	Pause(caller common.Address) error
	Unpause(caller common.Address) error
}

// MarketConfig 一级市场配置
type MarketConfig struct {
	Gen0StartingPrice   *uint256.Int // 一级拍卖起拍价下限
	Gen0AuctionDuration uint64       // 一级拍卖时长（秒）
}

// Market 面向调用方的市场服务：铸造、转账、拍卖、资金提取
type Market struct {
	registry *contract.Registry
	auction  *contract.ClockAuction
	access   AdminPolicy
	locker   Locker
	cfg      MarketConfig
}

// NewMarket 创建市场服务
func NewMarket(registry *contract.Registry, auction *contract.ClockAuction, access AdminPolicy, locker Locker, cfg MarketConfig) *Market {
	if locker == nil {
		locker = NopLocker{}
	}
	if cfg.Gen0StartingPrice == nil {
		cfg.Gen0StartingPrice = new(uint256.Int)
	}
	return &Market{
		registry: registry,
		auction:  auction,
		access:   access,
		locker:   locker,
		cfg:      cfg,
	}
}

// Registry 注册表
func (m *Market) Registry() *contract.Registry { return m.registry }

// Auction 拍卖引擎
func (m *Market) Auction() *contract.ClockAuction { return m.auction }

// withStarLock 在星体锁内执行fn
func (m *Market) withStarLock(ctx context.Context, id uint64, fn func() error) error {
	lockKey := fmt.Sprintf("star_lock_%d", id)
	unlock, err := m.locker.Lock(ctx, lockKey)
	if err != nil {
		utils.Logger.Error("获取分布式锁失败", zap.String("lockKey", lockKey), zap.Error(err))
		return fmt.Errorf("star %d is busy: %w", id, err)
	}
	defer unlock()
	return fn()
}

// MintPromo 铸造促销星体给owner，owner为空时给调用者（COO）
func (m *Market) MintPromo(ctx context.Context, caller common.Address, name string, collections []string, owner common.Address) (uint64, error) {
	if !m.access.IsAuthorized(caller, contract.ActionMint) {
		return 0, fmt.Errorf("%w: %s cannot mint", contract.ErrUnauthorized, caller.Hex())
	}
	if owner == (common.Address{}) {
		owner = caller
	}
	if err := m.registry.ValidRecipient(owner); err != nil {
		return 0, err
	}
	return m.registry.Create(name, collections, owner)
}

// Gen0Price 下一次一级拍卖的起拍价：最近5笔一级成交均价的1.5倍，不低于配置下限
func (m *Market) Gen0Price() *uint256.Int {
	price := new(uint256.Int)
	if stats := m.auction.Stats(); stats != nil {
		avg := stats.AveragePrice()
		price.Add(avg, new(uint256.Int).Rsh(avg, 1))
	}
	if price.Lt(m.cfg.Gen0StartingPrice) {
		price.Set(m.cfg.Gen0StartingPrice)
	}
	if price.Gt(contract.MaxPrice) {
		price.Set(contract.MaxPrice)
	}
	return price
}

// CreatePrimaryAuction 铸造星体给注册表并立即上架一级拍卖（COO）
func (m *Market) CreatePrimaryAuction(ctx context.Context, caller common.Address, name string, collections []string) (uint64, error) {
	if !m.access.IsAuthorized(caller, contract.ActionMint) {
		return 0, fmt.Errorf("%w: %s cannot mint", contract.ErrUnauthorized, caller.Hex())
	}
	// 暂停时不铸造，避免星体滞留在注册表
	if m.registry.Paused() {
		return 0, contract.ErrPaused
	}

	custody := m.registry.Address()
	id, err := m.registry.Create(name, collections, custody)
	if err != nil {
		return 0, err
	}

	price := m.Gen0Price()
	err = m.withStarLock(ctx, id, func() error {
		return m.auction.CreateAuction(custody, id, price, new(uint256.Int), m.cfg.Gen0AuctionDuration, custody)
	})
	if err != nil {
		utils.Logger.Error("一级拍卖上架失败", zap.Uint64("star_id", id), zap.Error(err))
		return id, err
	}
	return id, nil
}

// CreateSaleAuction 所有者上架二级拍卖
func (m *Market) CreateSaleAuction(ctx context.Context, caller common.Address, id uint64, startingPrice, endingPrice *uint256.Int, duration uint64) error {
	return m.withStarLock(ctx, id, func() error {
		owner, err := m.registry.OwnerOf(id)
		if err != nil {
			return err
		}
		if owner != caller {
			return fmt.Errorf("%w: %s does not own star %d", contract.ErrUnauthorized, caller.Hex(), id)
		}
		// 注册表已校验所有权，以注册表身份托管
		return m.auction.CreateAuction(m.registry.Address(), id, startingPrice, endingPrice, duration, caller)
	})
}

// Bid 出价
func (m *Market) Bid(ctx context.Context, caller common.Address, id uint64, paid *uint256.Int) (*uint256.Int, error) {
	var price *uint256.Int
	err := m.withStarLock(ctx, id, func() error {
		var err error
		price, err = m.auction.Bid(caller, id, paid)
		return err
	})
	return price, err
}

// CancelAuction 取消拍卖：卖家本人；一级拍卖由COO以注册表身份取消；暂停期间CEO可强制取消
func (m *Market) CancelAuction(ctx context.Context, caller common.Address, id uint64) error {
	return m.withStarLock(ctx, id, func() error {
		auction, err := m.auction.GetAuction(id)
		if err != nil {
			return err
		}

		switch {
		case auction.Seller == caller:
			return m.auction.CancelAuction(caller, id)
		case auction.Seller == m.registry.Address() && m.access.IsAuthorized(caller, contract.ActionMint):
			return m.auction.CancelAuction(m.registry.Address(), id)
		case m.registry.Paused():
			return m.auction.CancelWhenPaused(caller, id)
		default:
			return fmt.Errorf("%w: %s is not the seller of star %d", contract.ErrUnauthorized, caller.Hex(), id)
		}
	})
}

// Transfer 所有者转账
func (m *Market) Transfer(ctx context.Context, caller, to common.Address, id uint64) error {
	return m.withStarLock(ctx, id, func() error {
		return m.registry.Transfer(caller, to, id)
	})
}

// Approve 授权
func (m *Market) Approve(ctx context.Context, caller, to common.Address, id uint64) error {
	return m.withStarLock(ctx, id, func() error {
		return m.registry.Approve(caller, to, id)
	})
}

// TransferFrom 被授权人代转
func (m *Market) TransferFrom(ctx context.Context, caller, from, to common.Address, id uint64) error {
	return m.withStarLock(ctx, id, func() error {
		return m.registry.TransferFrom(caller, from, to, id)
	})
}

// PendingFunds 待提取资金
func (m *Market) PendingFunds(addr common.Address) *uint256.Int {
	return m.auction.Vault().BalanceOf(addr)
}

// Withdraw 提取调用者的全部待提取资金，实际打款由链下出纳完成
func (m *Market) Withdraw(ctx context.Context, caller common.Address) (*uint256.Int, error) {
	if caller == (common.Address{}) {
		return nil, fmt.Errorf("%w: empty caller", contract.ErrUnauthorized)
	}
	amount := m.auction.Vault().Withdraw(caller)
	utils.Logger.Info("资金提取", zap.String("addr", caller.Hex()), zap.String("amount", amount.Dec()))
	return amount, nil
}

// Deposit 确认链下到账后为to入金（CFO），出价只能动用已入金的余额
func (m *Market) Deposit(ctx context.Context, caller, to common.Address, amount *uint256.Int) error {
	if !m.access.IsAuthorized(caller, contract.ActionDeposit) {
		return fmt.Errorf("%w: %s cannot deposit", contract.ErrUnauthorized, caller.Hex())
	}
	if err := m.registry.ValidRecipient(to); err != nil {
		return err
	}
	if amount == nil || amount.IsZero() {
		return fmt.Errorf("%w: deposit amount is zero", contract.ErrBoundsExceeded)
	}
	if err := m.auction.Vault().Credit(to, amount); err != nil {
		return err
	}
	utils.Logger.Info("入金成功", zap.String("operator", caller.Hex()), zap.String("to", to.Hex()), zap.String("amount", amount.Dec()))
	return nil
}

// WithdrawEarnings 平台分成与一级市场货款转入to（CFO）
// 一级市场货款记在注册表托管地址名下，一并划转
func (m *Market) WithdrawEarnings(ctx context.Context, caller, to common.Address) (*uint256.Int, error) {
	earnings, err := m.auction.WithdrawEarnings(caller, to)
	if err != nil {
		return nil, err
	}

	vault := m.auction.Vault()
	custody := m.registry.Address()
	proceeds := vault.Withdraw(custody)
	if err := vault.Credit(to, proceeds); err != nil {
		if rerr := vault.Credit(custody, proceeds); rerr != nil {
			utils.Logger.Error("一级市场货款退回失败", zap.String("amount", proceeds.Dec()), zap.Error(rerr))
		}
		return earnings, err
	}
	return new(uint256.Int).Add(earnings, proceeds), nil
}

// Pause 暂停
func (m *Market) Pause(caller common.Address) error {
	if err := m.access.Pause(caller); err != nil {
		return err
	}
	utils.Logger.Warn("合约已暂停", zap.String("caller", caller.Hex()))
	return nil
}

// Unpause 恢复
func (m *Market) Unpause(caller common.Address) error {
	if err := m.access.Unpause(caller); err != nil {
		return err
	}
	utils.Logger.Info("合约已恢复", zap.String("caller", caller.Hex()))
	return nil
}

// AuctionView 拍卖查询结果
type AuctionView struct {
	StarID        uint64         `json:"star_id"`
	Seller        common.Address `json:"seller"`
	StartingPrice string         `json:"starting_price"`
	EndingPrice   string         `json:"ending_price"`
	Duration      uint64         `json:"duration"`
	StartedAt     uint64         `json:"started_at"`
	CurrentPrice  string         `json:"current_price"`
	Primary       bool           `json:"primary"`
}

// GetAuction 查询拍卖与当前价格
func (m *Market) GetAuction(id uint64) (*AuctionView, error) {
	auction, err := m.auction.GetAuction(id)
	if err != nil {
		return nil, err
	}
	price, err := m.auction.CurrentPrice(id)
	if err != nil {
		return nil, err
	}
	return newAuctionView(auction, price, m.registry.Address()), nil
}

// ListAuctions 全部进行中的拍卖
func (m *Market) ListAuctions() []AuctionView {
	auctions := m.auction.Auctions()
	views := make([]AuctionView, 0, len(auctions))
	for _, a := range auctions {
		// 列表与出价之间可能已成交
		price, err := m.auction.CurrentPrice(a.StarID)
		if err != nil {
			continue
		}
		views = append(views, *newAuctionView(a, price, m.registry.Address()))
	}
	return views
}

func newAuctionView(a model.Auction, price *uint256.Int, custody common.Address) *AuctionView {
	return &AuctionView{
		StarID:        a.StarID,
		Seller:        a.Seller,
		StartingPrice: a.StartingPrice.Dec(),
		EndingPrice:   a.EndingPrice.Dec(),
		Duration:      a.Duration,
		StartedAt:     a.StartedAt,
		CurrentPrice:  price.Dec(),
		Primary:       a.Seller == custody,
	}
}
