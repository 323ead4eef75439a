package contract

import (
	"context"
	"fmt"
	"sync"
	"time"

	"star_trade/model"
	"star_trade/utils"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// MetadataResolver 元数据解析器，返回的字节原样透出，注册表不做任何解释
type MetadataResolver interface {
	Metadata(ctx context.Context, id uint64, hint string) ([]byte, error)
}

// Registry 星体所有权注册表（ERC-721语义）
// 所有状态变更在同一把锁内完成，每个公开操作要么全部生效要么不生效
type Registry struct {
	mu       sync.RWMutex
	store    *AssetStore
	access   AccessPolicy
	notifier Notifier
	metadata MetadataResolver
	address  common.Address          // 注册表自身的托管地址（一级市场卖家）
	escrows  map[common.Address]bool // 拍卖托管地址
	clock    func() time.Time
}

// RegistryOption 注册表可选配置
type RegistryOption func(*Registry)

// WithNotifier 设置通知接收者
func WithNotifier(n Notifier) RegistryOption {
	return func(r *Registry) {
		if n != nil {
			r.notifier = n
		}
	}
}

// WithClock 设置时钟（测试用）
func WithClock(clock func() time.Time) RegistryOption {
	return func(r *Registry) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// WithMetadataResolver 设置初始元数据解析器
func WithMetadataResolver(m MetadataResolver) RegistryOption {
	return func(r *Registry) {
		r.metadata = m
	}
}

// NewRegistry 创建注册表
func NewRegistry(address common.Address, access AccessPolicy, opts ...RegistryOption) (*Registry, error) {
	if address == (common.Address{}) {
		return nil, fmt.Errorf("%w: registry address is empty", ErrInvalidRecipient)
	}
	if access == nil {
		return nil, fmt.Errorf("access policy is nil")
	}

	r := &Registry{
		store:    NewAssetStore(),
		access:   access,
		notifier: nopNotifier{},
		address:  address,
		escrows:  make(map[common.Address]bool),
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Address 注册表托管地址
func (r *Registry) Address() common.Address {
	return r.address
}

// Paused 是否暂停
func (r *Registry) Paused() bool {
	return r.access.Paused()
}

// Access 访问控制
func (r *Registry) Access() AccessPolicy {
	return r.access
}

// registerEscrow 登记拍卖托管地址，登记后该地址不能作为普通转账的接收方
func (r *Registry) registerEscrow(addr common.Address) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.escrows[addr] = true
}

// ValidRecipient 校验接收方：不能是空地址、注册表托管地址或拍卖托管地址
func (r *Registry) ValidRecipient(to common.Address) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.validRecipientLocked(to)
}

func (r *Registry) validRecipientLocked(to common.Address) error {
	switch {
	case to == (common.Address{}):
		return fmt.Errorf("%w: empty address", ErrInvalidRecipient)
	case to == r.address:
		return fmt.Errorf("%w: registry custody address", ErrInvalidRecipient)
	case r.escrows[to]:
		return fmt.Errorf("%w: auction escrow address", ErrInvalidRecipient)
	}
	return nil
}

// BalanceOf 持有数量
func (r *Registry) BalanceOf(owner common.Address) uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.store.Count(owner)
}

// TotalSupply 已创建星体数量
func (r *Registry) TotalSupply() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.store.Total()
}

// OwnerOf 查询所有者
func (r *Registry) OwnerOf(id uint64) (common.Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.store.Exists(id) {
		return common.Address{}, fmt.Errorf("%w: id %d", ErrNoOwner, id)
	}
	owner := r.store.Owner(id)
	if owner == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%w: id %d", ErrNoOwner, id)
	}
	return owner, nil
}

// GetApproved 查询授权地址，未授权返回空地址
func (r *Registry) GetApproved(id uint64) (common.Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.store.Exists(id) {
		return common.Address{}, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return r.store.Approval(id), nil
}

// GetStar 查询星体
func (r *Registry) GetStar(id uint64) (model.Star, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.store.Get(id)
}

// TokensOf 返回owner持有的全部星体id（升序）
// 线性扫描全部星体，开销随总量增长，仅供链下索引/查询使用
func (r *Registry) TokensOf(owner common.Address) []uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := r.store.Count(owner)
	ids := make([]uint64, 0, count)
	if count == 0 {
		return ids
	}
	total := r.store.Total()
	for id := uint64(1); id <= total; id++ {
		if r.store.Owner(id) == owner {
			ids = append(ids, id)
		}
	}
	return ids
}

// Create 创建星体并转给owner（铸造权限由调用方负责校验）
func (r *Registry) Create(name string, collections []string, owner common.Address) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// 允许铸造给注册表自身（一级市场），但不能直接进入拍卖托管
	if owner == (common.Address{}) || r.escrows[owner] {
		return 0, fmt.Errorf("%w: cannot mint to %s", ErrInvalidRecipient, owner.Hex())
	}

	now := r.clock()
	id, err := r.store.Create(name, collections, now)
	if err != nil {
		return 0, err
	}

	r.notifier.Notify(model.Event{
		Kind:        model.EventBirth,
		StarID:      id,
		To:          owner,
		Name:        name,
		Collections: append([]string(nil), collections...),
		Time:        now,
	})
	r.transferLocked(common.Address{}, owner, id)

	utils.Logger.Info("星体创建成功", zap.Uint64("star_id", id), zap.String("owner", owner.Hex()))
	return id, nil
}

// Transfer 所有者直接转账
func (r *Registry) Transfer(caller, to common.Address, id uint64) error {
	if r.access.Paused() {
		return ErrPaused
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.store.Exists(id) {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	if caller == (common.Address{}) || r.store.Owner(id) != caller {
		return fmt.Errorf("%w: %s does not own star %d", ErrUnauthorized, caller.Hex(), id)
	}
	if err := r.validRecipientLocked(to); err != nil {
		return err
	}

	r.transferLocked(caller, to, id)
	return nil
}

// Approve 授权to转移id，to为空地址时清除授权
// 授权不发通知：托管流程中的授权非常频繁，避免刷屏
func (r *Registry) Approve(caller, to common.Address, id uint64) error {
	if r.access.Paused() {
		return ErrPaused
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.store.Exists(id) {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	if caller == (common.Address{}) || r.store.Owner(id) != caller {
		return fmt.Errorf("%w: %s does not own star %d", ErrUnauthorized, caller.Hex(), id)
	}

	r.store.SetApproval(id, to)
	return nil
}

// TransferFrom 被授权人代为转账
func (r *Registry) TransferFrom(caller, from, to common.Address, id uint64) error {
	if r.access.Paused() {
		return ErrPaused
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.store.Exists(id) {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	if caller == (common.Address{}) || r.store.Approval(id) != caller {
		return fmt.Errorf("%w: %s is not approved for star %d", ErrUnauthorized, caller.Hex(), id)
	}
	if r.store.Owner(id) != from {
		return fmt.Errorf("%w: %s does not own star %d", ErrNotOwner, from.Hex(), id)
	}
	if err := r.validRecipientLocked(to); err != nil {
		return err
	}

	r.transferLocked(from, to, id)
	return nil
}

// transferLocked 所有权变更，调用方需持有写锁且已完成全部校验
func (r *Registry) transferLocked(from, to common.Address, id uint64) {
	r.store.IncrementCount(to)
	if from != (common.Address{}) {
		r.store.DecrementCount(from)
	}
	r.store.SetApproval(id, common.Address{})
	r.store.SetOwner(id, to)

	r.notifier.Notify(model.Event{
		Kind:   model.EventTransfer,
		StarID: id,
		From:   from,
		To:     to,
		Time:   r.clock(),
	})
}

// takeIntoEscrow 将seller持有的星体转入拍卖托管
func (r *Registry) takeIntoEscrow(escrow, seller common.Address, id uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.escrows[escrow] {
		return fmt.Errorf("%w: %s is not an auction escrow", ErrUnauthorized, escrow.Hex())
	}
	if !r.store.Exists(id) {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	if r.store.Owner(id) != seller {
		return fmt.Errorf("%w: star %d is not held by %s", ErrAlreadyInEscrow, id, seller.Hex())
	}

	r.transferLocked(seller, escrow, id)
	return nil
}

// releaseFromEscrow 将托管中的星体转给to（成交买家或取消时的卖家）
// to可以是注册表托管地址（一级市场拍卖取消时退回）
func (r *Registry) releaseFromEscrow(escrow, to common.Address, id uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.escrows[escrow] {
		return fmt.Errorf("%w: %s is not an auction escrow", ErrUnauthorized, escrow.Hex())
	}
	if !r.store.Exists(id) || r.store.Owner(id) != escrow {
		return fmt.Errorf("%w: star %d is not in escrow", ErrNoActiveAuction, id)
	}
	if to == (common.Address{}) || r.escrows[to] {
		return fmt.Errorf("%w: cannot release to %s", ErrInvalidRecipient, to.Hex())
	}

	r.transferLocked(escrow, to, id)
	return nil
}

// SetMetadataResolver 设置元数据解析器（管理员）
func (r *Registry) SetMetadataResolver(caller common.Address, m MetadataResolver) error {
	if !r.access.IsAuthorized(caller, ActionSetMetadata) {
		return fmt.Errorf("%w: %s cannot set metadata resolver", ErrUnauthorized, caller.Hex())
	}
	r.mu.Lock()
	r.metadata = m
	r.mu.Unlock()
	return nil
}

// TokenMetadata 查询元数据，未配置解析器时返回空
func (r *Registry) TokenMetadata(ctx context.Context, id uint64, hint string) ([]byte, error) {
	r.mu.RLock()
	exists := r.store.Exists(id)
	resolver := r.metadata
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	if resolver == nil {
		return nil, nil
	}
	return resolver.Metadata(ctx, id, hint)
}
