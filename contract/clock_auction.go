package contract

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"star_trade/model"
	"star_trade/utils"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"
)

// MaxCutBps 平台分成上限（基点）
const MaxCutBps = 10000

// MaxPrice 价格上限 2^128-1
var MaxPrice = new(uint256.Int).SubUint64(new(uint256.Int).Lsh(uint256.NewInt(1), 128), 1)

// ClockAuction 时钟拍卖引擎
// 锁顺序：ClockAuction.mu -> Registry.mu / Vault.mu，注册表与账本从不回调拍卖引擎
type ClockAuction struct {
	mu       sync.Mutex
	registry *Registry
	address  common.Address // 托管地址
	cutBps   uint64
	auctions map[uint64]*model.Auction
	vault    *Vault
	earnings *uint256.Int // 已留存的平台分成

	stats         *SaleStats
	statsCategory func(a *model.Auction) bool

	notifier Notifier
	clock    func() time.Time
}

// AuctionOption 拍卖引擎可选配置
type AuctionOption func(*ClockAuction)

// WithAuctionNotifier 设置通知接收者
func WithAuctionNotifier(n Notifier) AuctionOption {
	return func(a *ClockAuction) {
		if n != nil {
			a.notifier = n
		}
	}
}

// WithAuctionClock 设置时钟（测试用）
func WithAuctionClock(clock func() time.Time) AuctionOption {
	return func(a *ClockAuction) {
		if clock != nil {
			a.clock = clock
		}
	}
}

// WithSaleStats 记录满足category的成交价；category为空时统计注册表自售（一级市场）
func WithSaleStats(stats *SaleStats, category func(a *model.Auction) bool) AuctionOption {
	return func(a *ClockAuction) {
		a.stats = stats
		a.statsCategory = category
	}
}

// NewClockAuction 创建拍卖引擎并在注册表登记托管地址
func NewClockAuction(registry *Registry, address common.Address, cutBps uint64, vault *Vault, opts ...AuctionOption) (*ClockAuction, error) {
	if cutBps > MaxCutBps {
		return nil, fmt.Errorf("%w: cut %d bps exceeds %d", ErrBoundsExceeded, cutBps, MaxCutBps)
	}
	if address == (common.Address{}) || address == registry.Address() {
		return nil, fmt.Errorf("%w: invalid escrow address %s", ErrInvalidRecipient, address.Hex())
	}
	if vault == nil {
		vault = NewVault()
	}

	a := &ClockAuction{
		registry: registry,
		address:  address,
		cutBps:   cutBps,
		auctions: make(map[uint64]*model.Auction),
		vault:    vault,
		earnings: new(uint256.Int),
		notifier: nopNotifier{},
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.stats != nil && a.statsCategory == nil {
		registryAddr := registry.Address()
		a.statsCategory = func(auction *model.Auction) bool {
			return auction.Seller == registryAddr
		}
	}

	registry.registerEscrow(address)
	return a, nil
}

// Address 托管地址
func (a *ClockAuction) Address() common.Address {
	return a.address
}

// CutBps 平台分成（基点）
func (a *ClockAuction) CutBps() uint64 {
	return a.cutBps
}

// Vault 资金账本
func (a *ClockAuction) Vault() *Vault {
	return a.vault
}

// Stats 成交统计，可能为空
func (a *ClockAuction) Stats() *SaleStats {
	return a.stats
}

// CreateAuction 创建拍卖并托管星体
// caller必须是卖家本人，或注册表（一级市场，或注册表已校验所有权的二级市场）
func (a *ClockAuction) CreateAuction(caller common.Address, id uint64, startingPrice, endingPrice *uint256.Int, duration uint64, seller common.Address) error {
	if a.registry.Paused() {
		return ErrPaused
	}
	if err := checkPrice(startingPrice); err != nil {
		return err
	}
	if err := checkPrice(endingPrice); err != nil {
		return err
	}
	if seller == (common.Address{}) {
		return fmt.Errorf("%w: seller is empty", ErrInvalidRecipient)
	}
	if caller != seller && caller != a.registry.Address() {
		return fmt.Errorf("%w: %s is not a custody source for star %d", ErrUnauthorized, caller.Hex(), id)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.auctions[id]; ok {
		return fmt.Errorf("%w: star %d already on auction", ErrAlreadyInEscrow, id)
	}

	// 托管与写入拍卖记录在同一临界区，不会出现无拍卖记录的托管星体
	if err := a.registry.takeIntoEscrow(a.address, seller, id); err != nil {
		return err
	}

	now := a.clock()
	auction := &model.Auction{
		StarID:        id,
		Seller:        seller,
		StartingPrice: startingPrice.Clone(),
		EndingPrice:   endingPrice.Clone(),
		Duration:      duration,
		StartedAt:     unixSeconds(now),
	}
	a.auctions[id] = auction

	a.notifier.Notify(model.Event{
		Kind:          model.EventAuctionCreated,
		StarID:        id,
		From:          seller,
		StartingPrice: startingPrice.Dec(),
		EndingPrice:   endingPrice.Dec(),
		Duration:      duration,
		Time:          now,
	})

	utils.Logger.Info("拍卖创建成功",
		zap.Uint64("star_id", id),
		zap.String("seller", seller.Hex()),
		zap.String("starting_price", startingPrice.Dec()),
		zap.String("ending_price", endingPrice.Dec()),
		zap.Uint64("duration", duration))
	return nil
}

// GetAuction 查询拍卖，返回副本
func (a *ClockAuction) GetAuction(id uint64) (model.Auction, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	auction, ok := a.auctions[id]
	if !ok {
		return model.Auction{}, fmt.Errorf("%w: star %d", ErrNoActiveAuction, id)
	}
	return copyAuction(auction), nil
}

// Auctions 全部进行中的拍卖（按星体id升序）
func (a *ClockAuction) Auctions() []model.Auction {
	a.mu.Lock()
	defer a.mu.Unlock()

	list := make([]model.Auction, 0, len(a.auctions))
	for _, auction := range a.auctions {
		list = append(list, copyAuction(auction))
	}
	sort.Slice(list, func(i, j int) bool { return list[i].StarID < list[j].StarID })
	return list
}

// CurrentPrice 当前价格
func (a *ClockAuction) CurrentPrice(id uint64) (*uint256.Int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	auction, ok := a.auctions[id]
	if !ok {
		return nil, fmt.Errorf("%w: star %d", ErrNoActiveAuction, id)
	}
	return a.priceLocked(auction), nil
}

func (a *ClockAuction) priceLocked(auction *model.Auction) *uint256.Int {
	var elapsed uint64
	if now := unixSeconds(a.clock()); now > auction.StartedAt {
		elapsed = now - auction.StartedAt
	}
	return ComputeCurrentPrice(auction.StartingPrice, auction.EndingPrice, auction.Duration, elapsed)
}

// ComputeCurrentPrice 线性插值价格，elapsed>=duration时为结束价
// 价格不超过2^128-1、时长不超过2^64-1，乘积在256位内不会溢出
func ComputeCurrentPrice(startingPrice, endingPrice *uint256.Int, duration, elapsed uint64) *uint256.Int {
	if elapsed >= duration {
		return endingPrice.Clone()
	}

	t := uint256.NewInt(elapsed)
	d := uint256.NewInt(duration)
	if endingPrice.Cmp(startingPrice) >= 0 {
		delta := new(uint256.Int).Sub(endingPrice, startingPrice)
		delta.Mul(delta, t).Div(delta, d)
		return delta.Add(delta, startingPrice)
	}

	delta := new(uint256.Int).Sub(startingPrice, endingPrice)
	delta.Mul(delta, t).Div(delta, d)
	return new(uint256.Int).Sub(startingPrice, delta)
}

// Bid 出价，paid从出价人的账本余额中扣除，不低于当前价即成交，返回成交价
// 扣款、货款、退款在同一次记账中完成；拍卖记录在转移所有权之前删除，同一拍卖不会被结算两次
func (a *ClockAuction) Bid(bidder common.Address, id uint64, paid *uint256.Int) (*uint256.Int, error) {
	if paid == nil {
		paid = new(uint256.Int)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	auction, ok := a.auctions[id]
	if !ok {
		return nil, fmt.Errorf("%w: star %d", ErrNoActiveAuction, id)
	}
	if err := a.registry.ValidRecipient(bidder); err != nil {
		return nil, err
	}

	price := a.priceLocked(auction)
	if paid.Lt(price) {
		return nil, fmt.Errorf("%w: paid %s, price %s", ErrInsufficientPayment, paid.Dec(), price.Dec())
	}

	cut := a.computeCut(price)
	earnings, overflow := new(uint256.Int).AddOverflow(a.earnings, cut)
	if overflow {
		return nil, fmt.Errorf("%w: earnings overflow", ErrBoundsExceeded)
	}
	proceeds := new(uint256.Int).Sub(price, cut)
	refund := new(uint256.Int).Sub(paid, price)

	debits := []Entry{{Addr: bidder, Amount: paid}}
	credits := []Entry{{Addr: auction.Seller, Amount: proceeds}, {Addr: bidder, Amount: refund}}
	if err := a.vault.Apply(debits, credits); err != nil {
		return nil, err
	}

	delete(a.auctions, id)
	if err := a.registry.releaseFromEscrow(a.address, bidder, id); err != nil {
		a.auctions[id] = auction
		if rerr := a.vault.Apply(credits, debits); rerr != nil {
			utils.Logger.Error("出价回滚记账失败", zap.Uint64("star_id", id), zap.Error(rerr))
		}
		return nil, err
	}
	a.earnings = earnings

	if a.stats != nil && a.statsCategory(auction) {
		a.stats.RecordSettlement(price)
	}

	a.notifier.Notify(model.Event{
		Kind:   model.EventAuctionSuccessful,
		StarID: id,
		From:   auction.Seller,
		To:     bidder,
		Price:  price.Dec(),
		Time:   a.clock(),
	})

	utils.Logger.Info("拍卖成交",
		zap.Uint64("star_id", id),
		zap.String("seller", auction.Seller.Hex()),
		zap.String("winner", bidder.Hex()),
		zap.String("price", price.Dec()),
		zap.String("cut", cut.Dec()),
		zap.String("refund", refund.Dec()))
	return price, nil
}

// computeCut 平台分成 price*cutBps/10000
func (a *ClockAuction) computeCut(price *uint256.Int) *uint256.Int {
	cut := new(uint256.Int).Mul(price, uint256.NewInt(a.cutBps))
	return cut.Div(cut, uint256.NewInt(MaxCutBps))
}

// CancelAuction 卖家取消拍卖，星体退回卖家
func (a *ClockAuction) CancelAuction(caller common.Address, id uint64) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	auction, ok := a.auctions[id]
	if !ok {
		return fmt.Errorf("%w: star %d", ErrNoActiveAuction, id)
	}
	if caller != auction.Seller {
		return fmt.Errorf("%w: %s is not the seller of star %d", ErrUnauthorized, caller.Hex(), id)
	}
	return a.cancelLocked(auction)
}

// CancelWhenPaused 暂停期间由管理员强制取消，星体退回卖家
func (a *ClockAuction) CancelWhenPaused(caller common.Address, id uint64) error {
	if !a.registry.Paused() {
		return fmt.Errorf("%w: contract is not paused", ErrUnauthorized)
	}
	if !a.registry.Access().IsAuthorized(caller, ActionCancelWhenPaused) {
		return fmt.Errorf("%w: %s cannot cancel auctions", ErrUnauthorized, caller.Hex())
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	auction, ok := a.auctions[id]
	if !ok {
		return fmt.Errorf("%w: star %d", ErrNoActiveAuction, id)
	}
	return a.cancelLocked(auction)
}

func (a *ClockAuction) cancelLocked(auction *model.Auction) error {
	delete(a.auctions, auction.StarID)
	if err := a.registry.releaseFromEscrow(a.address, auction.Seller, auction.StarID); err != nil {
		a.auctions[auction.StarID] = auction
		return err
	}

	a.notifier.Notify(model.Event{
		Kind:   model.EventAuctionCancelled,
		StarID: auction.StarID,
		From:   auction.Seller,
		Time:   a.clock(),
	})

	utils.Logger.Info("拍卖已取消", zap.Uint64("star_id", auction.StarID), zap.String("seller", auction.Seller.Hex()))
	return nil
}

// Earnings 未提取的平台分成
func (a *ClockAuction) Earnings() *uint256.Int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.earnings.Clone()
}

// WithdrawEarnings 将平台分成转入to的待提取余额（CFO）
// to不能是空地址、注册表托管地址或拍卖托管地址，这些地址无人能提取
func (a *ClockAuction) WithdrawEarnings(caller, to common.Address) (*uint256.Int, error) {
	if !a.registry.Access().IsAuthorized(caller, ActionWithdraw) {
		return nil, fmt.Errorf("%w: %s cannot withdraw earnings", ErrUnauthorized, caller.Hex())
	}
	if err := a.registry.ValidRecipient(to); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	amount := a.earnings
	if err := a.vault.Credit(to, amount); err != nil {
		return nil, err
	}
	a.earnings = new(uint256.Int)

	utils.Logger.Info("平台分成已提取", zap.String("to", to.Hex()), zap.String("amount", amount.Dec()))
	return amount, nil
}

func checkPrice(price *uint256.Int) error {
	if price == nil {
		return fmt.Errorf("%w: price is empty", ErrBoundsExceeded)
	}
	if price.Gt(MaxPrice) {
		return fmt.Errorf("%w: price %s exceeds 2^128-1", ErrBoundsExceeded, price.Dec())
	}
	return nil
}

func unixSeconds(t time.Time) uint64 {
	if sec := t.Unix(); sec > 0 {
		return uint64(sec)
	}
	return 0
}

func copyAuction(auction *model.Auction) model.Auction {
	cp := *auction
	cp.StartingPrice = auction.StartingPrice.Clone()
	cp.EndingPrice = auction.EndingPrice.Clone()
	return cp
}
