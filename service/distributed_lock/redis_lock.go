/*
 * @module service/distributed_lock/redis_lock
 * @description Redis分布式运行锁，保证同一流水线在多实例部署下同一时刻只有一个运行
 * @architecture 工具层 - 提供分布式锁能力
 * @documentReference ai_docs/quality_pipeline_design.md
 * @stateFlow 触发前抢锁 -> 运行期间周期续期 -> 终态释放/TTL兜底过期
 * @rules 锁值为实例标识，释放与续期通过Lua脚本校验持有者，锁服务不可用时调用方降级为无保护运行
 * @dependencies github.com/go-redis/redis/v8
 * @refs service/init.go, service/pipeline_service.go, service/cleanup/retention_cleanup_service.go
 */

package distributed_lock

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
)

// 运行锁键前缀，键尾为流水线ID或清理任务名
const lockKeyPrefix = "pipeline_run:lock:"

// 持有者校验后删除
const unlockScript = `
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`

// 持有者校验后续期
const refreshScript = `
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("expire", KEYS[1], ARGV[2])
	else
		return 0
	end
`

// DistributedLock 分布式锁接口
type DistributedLock interface {
	// TryLock 尝试获取锁，已被持有时返回false而不是阻塞
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Unlock 释放当前实例持有的锁
	Unlock(ctx context.Context, key string) error
	// Refresh 为当前实例持有的锁续期
	Refresh(ctx context.Context, key string, ttl time.Duration) error
}

// RedisLock 基于SET NX的Redis分布式锁
type RedisLock struct {
	client     *redis.Client
	instanceID string
}

// NewRedisLock 创建Redis分布式锁，连接参数来自REDIS_*环境变量
func NewRedisLock() (*RedisLock, error) {
	client := redis.NewClient(redisOptionsFromEnv())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("Redis连接失败: %w", err)
	}

	// 实例标识用主机名加进程号，释放和续期靠它识别持有者
	hostname, _ := os.Hostname()
	lock := &RedisLock{
		client:     client,
		instanceID: fmt.Sprintf("%s:%d", hostname, os.Getpid()),
	}

	slog.Info("Redis运行锁初始化成功", "instance_id", lock.instanceID)
	return lock, nil
}

// redisOptionsFromEnv 从环境变量构建Redis连接配置
func redisOptionsFromEnv() *redis.Options {
	host := os.Getenv("REDIS_HOST")
	if host == "" {
		host = "localhost"
	}
	port := os.Getenv("REDIS_PORT")
	if port == "" {
		port = "6379"
	}
	db := 0
	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		fmt.Sscanf(dbStr, "%d", &db)
	}

	return &redis.Options{
		Addr:         fmt.Sprintf("%s:%s", host, port),
		Password:     os.Getenv("REDIS_PASSWORD"),
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	}
}

// TryLock 尝试获取锁，key不存在时写入实例标识并设置TTL
func (r *RedisLock) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	acquired, err := r.client.SetNX(ctx, lockKeyPrefix+key, r.instanceID, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("获取锁失败: %w", err)
	}

	if acquired {
		slog.Debug("运行锁已获取", "key", key, "ttl", ttl, "instance", r.instanceID)
	}
	return acquired, nil
}

// Unlock 释放锁，持有者不是当前实例时只记录告警不报错
func (r *RedisLock) Unlock(ctx context.Context, key string) error {
	result, err := r.client.Eval(ctx, unlockScript, []string{lockKeyPrefix + key}, r.instanceID).Result()
	if err != nil {
		return fmt.Errorf("释放锁失败: %w", err)
	}

	if released, ok := result.(int64); ok && released == 1 {
		slog.Debug("运行锁已释放", "key", key, "instance", r.instanceID)
	} else {
		slog.Warn("运行锁不存在或已被其他实例持有", "key", key, "instance", r.instanceID)
	}
	return nil
}

// Refresh 续期锁，锁已丢失时返回错误供调用方中止运行
func (r *RedisLock) Refresh(ctx context.Context, key string, ttl time.Duration) error {
	result, err := r.client.Eval(ctx, refreshScript,
		[]string{lockKeyPrefix + key}, r.instanceID, int(ttl.Seconds())).Result()
	if err != nil {
		return fmt.Errorf("刷新锁失败: %w", err)
	}

	if refreshed, ok := result.(int64); !ok || refreshed != 1 {
		return fmt.Errorf("锁不存在或已被其他实例持有")
	}
	return nil
}

// Close 关闭Redis客户端
func (r *RedisLock) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// LockExecutor 带锁执行器，清理等周期任务用它做实例间互斥
type LockExecutor struct {
	lock DistributedLock
}

// NewLockExecutor 创建带锁执行器
func NewLockExecutor(lock DistributedLock) *LockExecutor {
	return &LockExecutor{lock: lock}
}

// ExecuteWithLock 抢到锁则执行函数，锁被其他实例持有时静默跳过
func (e *LockExecutor) ExecuteWithLock(ctx context.Context, key string, ttl time.Duration, fn func() error) error {
	locked, err := e.lock.TryLock(ctx, key, ttl)
	if err != nil {
		return fmt.Errorf("获取锁失败: %w", err)
	}
	if !locked {
		slog.Debug("锁已被其他实例持有, 跳过执行", "key", key)
		return nil
	}

	defer func() {
		if unlockErr := e.lock.Unlock(ctx, key); unlockErr != nil {
			slog.Error("释放锁失败", "key", key, "error", unlockErr)
		}
	}()

	return fn()
}
