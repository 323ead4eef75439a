package utils

import (
	"context"
	"errors"
	"fmt"
	"time"

	// 为原生Redis客户端添加别名，解决命名冲突
	goredis "github.com/go-redis/redis/v8"
	"github.com/go-redsync/redsync/v4"

	// 为redsync的redis接口包添加别名，避免冲突
	goredisadapter "github.com/go-redsync/redsync/v4/redis/goredis/v8"
	"go.uber.org/zap"
)

// RedisClient 全局Redis客户端（元数据存储与分布式锁共用）
var RedisClient *goredis.Client

// Redisync 全局RedSync实例（用于RedLock分布式锁）
var Redisync *redsync.Redsync

// InitRedis 初始化Redis客户端与RedSync（需在程序启动时调用）
func InitRedis(addr, password string, db int) error {
	RedisClient = goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
		PoolSize: 10,
	})

	// 校验Redis连接可用性
	if err := RedisClient.Ping(context.Background()).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}

	adapterPool := goredisadapter.NewPool(RedisClient)
	Redisync = redsync.New(adapterPool)

	return nil
}

// GetRedisLock 获取RedSync分布式锁
func GetRedisLock(ctx context.Context, key string, expire time.Duration) (*redsync.Mutex, error) {
	if Redisync == nil {
		return nil, errors.New("redsync not initialized")
	}

	mutex := Redisync.NewMutex(key, redsync.WithExpiry(expire))
	if err := mutex.LockContext(ctx); err != nil {
		return nil, fmt.Errorf("redsync lock failed: %w", err)
	}

	return mutex, nil
}

// ReleaseRedisLock 释放RedSync分布式锁
func ReleaseRedisLock(mutex *redsync.Mutex) error {
	if mutex == nil {
		return errors.New("mutex is nil")
	}

	// Unlock返回：bool(是否解锁成功)、error(执行错误)
	ok, err := mutex.Unlock()
	if err != nil {
		return fmt.Errorf("redsync unlock failed: %w", err)
	}
	if !ok {
		return errors.New("mutex has expired or not held")
	}

	return nil
}

// RedsyncLocker 基于RedSync的星体锁，多实例部署时串行化同一星体上的写操作
type RedsyncLocker struct {
	Expire time.Duration
}

// Lock 加锁，返回释放函数
func (l RedsyncLocker) Lock(ctx context.Context, key string) (func(), error) {
	mutex, err := GetRedisLock(ctx, key, l.Expire)
	if err != nil {
		return nil, err
	}
	return func() {
		if err := ReleaseRedisLock(mutex); err != nil {
			Logger.Warn("释放分布式锁失败", zap.String("lockKey", key), zap.Error(err))
		}
	}, nil
}
