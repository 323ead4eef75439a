package contract

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Action 受控操作
type Action string

const (
	ActionMint             Action = "mint"               // 铸造（促销/一级拍卖）
	ActionPause            Action = "pause"              // 暂停
	ActionUnpause          Action = "unpause"            // 恢复
	ActionSetMetadata      Action = "set_metadata"       // 设置元数据解析器
	ActionWithdraw         Action = "withdraw"           // 提取平台分成
	ActionDeposit          Action = "deposit"            // 确认到账后为用户入金
	ActionCancelWhenPaused Action = "cancel_when_paused" // 暂停期间强制取消拍卖
)

// AccessPolicy 访问控制
type AccessPolicy interface {
	IsAuthorized(caller common.Address, action Action) bool
	Paused() bool
}

// Role 角色
type Role string

const (
	RoleCEO Role = "ceo"
	RoleCFO Role = "cfo"
	RoleCOO Role = "coo"
)

// 角色 -> 可执行操作；CEO拥有全部权限
var rolePermissions = map[Role][]Action{
	RoleCFO: {ActionWithdraw, ActionDeposit},
	RoleCOO: {ActionMint, ActionPause},
}

// RoleAccess 基于CEO/CFO/COO三角色的访问控制
type RoleAccess struct {
	mu     sync.RWMutex
	roles  map[Role]common.Address
	paused bool
}

// NewRoleAccess 创建访问控制，ceo不能为空地址
func NewRoleAccess(ceo, cfo, coo common.Address) (*RoleAccess, error) {
	if ceo == (common.Address{}) {
		return nil, fmt.Errorf("%w: ceo address is empty", ErrInvalidRecipient)
	}
	return &RoleAccess{
		roles: map[Role]common.Address{
			RoleCEO: ceo,
			RoleCFO: cfo,
			RoleCOO: coo,
		},
	}, nil
}

// IsAuthorized 判断caller是否可执行action
func (a *RoleAccess) IsAuthorized(caller common.Address, action Action) bool {
	if caller == (common.Address{}) {
		return false
	}
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.roles[RoleCEO] == caller {
		return true
	}
	for role, actions := range rolePermissions {
		if a.roles[role] != caller {
			continue
		}
		for _, allowed := range actions {
			if allowed == action {
				return true
			}
		}
	}
	return false
}

// Paused 是否暂停
func (a *RoleAccess) Paused() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.paused
}

// Pause 暂停（CEO/COO）
func (a *RoleAccess) Pause(caller common.Address) error {
	if !a.IsAuthorized(caller, ActionPause) {
		return fmt.Errorf("%w: %s cannot pause", ErrUnauthorized, caller.Hex())
	}
	a.mu.Lock()
	a.paused = true
	a.mu.Unlock()
	return nil
}

// Unpause 恢复（仅CEO）
func (a *RoleAccess) Unpause(caller common.Address) error {
	if !a.IsAuthorized(caller, ActionUnpause) {
		return fmt.Errorf("%w: %s cannot unpause", ErrUnauthorized, caller.Hex())
	}
	a.mu.Lock()
	a.paused = false
	a.mu.Unlock()
	return nil
}

// SetRole 由CEO指派角色，CEO不能被置空
func (a *RoleAccess) SetRole(caller common.Address, role Role, addr common.Address) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if caller == (common.Address{}) || a.roles[RoleCEO] != caller {
		return fmt.Errorf("%w: only ceo can assign roles", ErrUnauthorized)
	}
	if role == RoleCEO && addr == (common.Address{}) {
		return fmt.Errorf("%w: ceo address is empty", ErrInvalidRecipient)
	}
	a.roles[role] = addr
	return nil
}
