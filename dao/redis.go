package dao

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-redis/redis/v8"
)

// MetadataKey 元数据Key
// id: 星体ID, hint: 传输提示（如ipfs/http），为空时使用默认
func MetadataKey(id uint64, hint string) string {
	if hint == "" {
		hint = "default"
	}
	return fmt.Sprintf("star:meta:%d:%s", id, hint)
}

// RedisMetadata 基于Redis的元数据解析器，值按字节原样存取
type RedisMetadata struct {
	rdb *redis.Client
}

// NewRedisMetadata 创建元数据解析器
func NewRedisMetadata(rdb *redis.Client) *RedisMetadata {
	return &RedisMetadata{rdb: rdb}
}

// Metadata 读取元数据，不存在时返回空
func (m *RedisMetadata) Metadata(ctx context.Context, id uint64, hint string) ([]byte, error) {
	data, err := m.rdb.Get(ctx, MetadataKey(id, hint)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get metadata failed: %w", err)
	}
	return data, nil
}

// SetMetadata 写入元数据
func (m *RedisMetadata) SetMetadata(ctx context.Context, id uint64, hint string, data []byte) error {
	return m.rdb.Set(ctx, MetadataKey(id, hint), data, 0).Err()
}

// NonceKey 请求随机数Key
func NonceKey(caller common.Address, nonce string) string {
	return fmt.Sprintf("star:nonce:%s:%s", caller.Hex(), nonce)
}

// RedisNonceStore 基于SETNX的请求随机数登记，防止签名请求被重放
type RedisNonceStore struct {
	rdb *redis.Client
}

// NewRedisNonceStore 创建随机数登记
func NewRedisNonceStore(rdb *redis.Client) *RedisNonceStore {
	return &RedisNonceStore{rdb: rdb}
}

// Use 登记随机数，已使用过返回false；ttl需覆盖签名有效期
func (s *RedisNonceStore) Use(ctx context.Context, caller common.Address, nonce string, ttl time.Duration) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, NonceKey(caller, nonce), 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("setnx nonce failed: %w", err)
	}
	return ok, nil
}
