package contract

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Entry 一笔记账
type Entry struct {
	Addr   common.Address
	Amount *uint256.Int
}

// Vault 资金账本（入金、出价扣款、卖家货款、买家退款、平台分成提取）
// 出价只能动用已入账的余额
type Vault struct {
	mu       sync.Mutex
	balances map[common.Address]*uint256.Int
}

// NewVault 创建账本
func NewVault() *Vault {
	return &Vault{balances: make(map[common.Address]*uint256.Int)}
}

// Credit 记入金额，余额超出256位时拒绝
func (v *Vault) Credit(addr common.Address, amount *uint256.Int) error {
	return v.Apply(nil, []Entry{{Addr: addr, Amount: amount}})
}

// Debit 扣减金额，余额不足时返回ErrInsufficientPayment
func (v *Vault) Debit(addr common.Address, amount *uint256.Int) error {
	return v.Apply([]Entry{{Addr: addr, Amount: amount}}, nil)
}

// Apply 先扣后记，全部成功才生效
func (v *Vault) Apply(debits, credits []Entry) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	staged := make(map[common.Address]*uint256.Int)
	balance := func(addr common.Address) *uint256.Int {
		if bal, ok := staged[addr]; ok {
			return bal
		}
		bal := new(uint256.Int)
		if cur, ok := v.balances[addr]; ok {
			bal.Set(cur)
		}
		staged[addr] = bal
		return bal
	}

	for _, e := range debits {
		if e.Amount == nil || e.Amount.IsZero() {
			continue
		}
		bal := balance(e.Addr)
		if bal.Lt(e.Amount) {
			return fmt.Errorf("%w: %s holds %s, needs %s", ErrInsufficientPayment, e.Addr.Hex(), bal.Dec(), e.Amount.Dec())
		}
		bal.Sub(bal, e.Amount)
	}
	for _, e := range credits {
		if e.Amount == nil || e.Amount.IsZero() {
			continue
		}
		bal := balance(e.Addr)
		if _, overflow := bal.AddOverflow(bal, e.Amount); overflow {
			return fmt.Errorf("%w: balance of %s overflows", ErrBoundsExceeded, e.Addr.Hex())
		}
	}

	for addr, bal := range staged {
		if bal.IsZero() {
			delete(v.balances, addr)
			continue
		}
		v.balances[addr] = bal
	}
	return nil
}

// BalanceOf 查询余额
func (v *Vault) BalanceOf(addr common.Address) *uint256.Int {
	v.mu.Lock()
	defer v.mu.Unlock()

	if bal, ok := v.balances[addr]; ok {
		return bal.Clone()
	}
	return new(uint256.Int)
}

// Withdraw 取出全部余额
func (v *Vault) Withdraw(addr common.Address) *uint256.Int {
	v.mu.Lock()
	defer v.mu.Unlock()

	bal, ok := v.balances[addr]
	if !ok {
		return new(uint256.Int)
	}
	delete(v.balances, addr)
	return bal
}
