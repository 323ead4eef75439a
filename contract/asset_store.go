package contract

import (
	"fmt"
	"math"
	"time"

	"star_trade/model"

	"github.com/ethereum/go-ethereum/common"
)

// AssetStore 星体、所有权、授权与持有数量的底层存储
// 只做存取，不做任何业务校验；跨字段的一致性由Registry在同一临界区内保证，本身非并发安全
type AssetStore struct {
	stars     []model.Star // 下标0为占位，不代表任何星体
	owners    map[uint64]common.Address
	approvals map[uint64]common.Address
	counts    map[common.Address]uint64
}

// NewAssetStore 创建空存储
func NewAssetStore() *AssetStore {
	return &AssetStore{
		stars:     make([]model.Star, 1),
		owners:    make(map[uint64]common.Address),
		approvals: make(map[uint64]common.Address),
		counts:    make(map[common.Address]uint64),
	}
}

// Create 追加星体，返回新id（从1开始）
func (s *AssetStore) Create(name string, collections []string, createdAt time.Time) (uint64, error) {
	id := uint64(len(s.stars))
	if id == math.MaxUint64 {
		return 0, fmt.Errorf("%w: star id space exhausted", ErrBoundsExceeded)
	}

	refs := make([]string, len(collections))
	copy(refs, collections)

	s.stars = append(s.stars, model.Star{
		ID:          id,
		Name:        name,
		Collections: refs,
		CreatedAt:   createdAt,
	})
	return id, nil
}

// Exists id是否对应已创建的星体
func (s *AssetStore) Exists(id uint64) bool {
	return id != 0 && id < uint64(len(s.stars))
}

// Get 查询星体，返回副本
func (s *AssetStore) Get(id uint64) (model.Star, error) {
	if !s.Exists(id) {
		return model.Star{}, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	star := s.stars[id]
	star.Collections = append([]string(nil), star.Collections...)
	return star, nil
}

// Total 已创建星体数量（不含占位）
func (s *AssetStore) Total() uint64 {
	return uint64(len(s.stars)) - 1
}

func (s *AssetStore) SetOwner(id uint64, owner common.Address) {
	s.owners[id] = owner
}

func (s *AssetStore) Owner(id uint64) common.Address {
	return s.owners[id]
}

// SetApproval 设置授权，空地址表示清除
func (s *AssetStore) SetApproval(id uint64, delegate common.Address) {
	if delegate == (common.Address{}) {
		delete(s.approvals, id)
		return
	}
	s.approvals[id] = delegate
}

func (s *AssetStore) Approval(id uint64) common.Address {
	return s.approvals[id]
}

func (s *AssetStore) IncrementCount(owner common.Address) {
	s.counts[owner]++
}

func (s *AssetStore) DecrementCount(owner common.Address) {
	if s.counts[owner] == 0 {
		return
	}
	s.counts[owner]--
	if s.counts[owner] == 0 {
		delete(s.counts, owner)
	}
}

func (s *AssetStore) Count(owner common.Address) uint64 {
	return s.counts[owner]
}
