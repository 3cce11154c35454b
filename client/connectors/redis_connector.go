/*
 * @module RedisConnector
 * @description Redis连接器，为质量报告提供带前缀的JSON缓存，为运行事件提供频道发布
 * @architecture 适配器模式 - 封装go-redis客户端
 * @documentReference ai_docs/quality_pipeline_design.md
 * @stateFlow 连接建立 -> 缓存读写/频道发布 -> 连接关闭
 * @rules 缓存未命中返回nil不报错，值统一按JSON存取，非JSON内容按原始字符串返回
 * @dependencies github.com/go-redis/redis/v8
 * @refs service/quality_report_service.go, service/event/forwarders.go
 */
package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisConfig Redis连接器配置
type RedisConfig struct {
	Address      string        `json:"address"`
	Password     string        `json:"password"`
	Database     int           `json:"database"`
	PoolSize     int           `json:"pool_size"`
	MinIdleConns int           `json:"min_idle_conns"`
	DialTimeout  time.Duration `json:"dial_timeout"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	KeyPrefix    string        `json:"key_prefix"` // 缓存键前缀，不影响频道名
}

// RedisConnector Redis连接器
type RedisConnector struct {
	config    *RedisConfig
	client    *redis.Client
	logger    *log.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	mu        sync.RWMutex
	connected bool
}

// NewRedisConnector 创建Redis连接器，零值配置项使用内置默认
func NewRedisConnector(config *RedisConfig, logger *log.Logger) *RedisConnector {
	if config.PoolSize <= 0 {
		config.PoolSize = 10
	}
	if config.MinIdleConns <= 0 {
		config.MinIdleConns = 2
	}
	if config.DialTimeout <= 0 {
		config.DialTimeout = 5 * time.Second
	}
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = 3 * time.Second
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 3 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &RedisConnector{
		config: config,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		client: redis.NewClient(&redis.Options{
			Addr:         config.Address,
			Password:     config.Password,
			DB:           config.Database,
			PoolSize:     config.PoolSize,
			MinIdleConns: config.MinIdleConns,
			DialTimeout:  config.DialTimeout,
			ReadTimeout:  config.ReadTimeout,
			WriteTimeout: config.WriteTimeout,
		}),
	}
}

// Connect 校验Redis可达并标记连接器可用
func (rc *RedisConnector) Connect() error {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if rc.connected {
		return nil
	}

	if err := rc.client.Ping(rc.ctx).Err(); err != nil {
		return fmt.Errorf("Redis连接失败: %w", err)
	}

	rc.connected = true
	rc.logger.Printf("Redis连接器已连接: %s", rc.config.Address)
	return nil
}

// Close 关闭Redis连接器
func (rc *RedisConnector) Close() error {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if !rc.connected {
		return nil
	}

	rc.cancel()
	rc.connected = false
	if err := rc.client.Close(); err != nil {
		return fmt.Errorf("关闭Redis客户端失败: %w", err)
	}
	rc.logger.Println("Redis连接器已关闭")
	return nil
}

// IsConnected 检查连接状态
func (rc *RedisConnector) IsConnected() bool {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	return rc.connected
}

// cacheKey 拼接缓存键前缀
func (rc *RedisConnector) cacheKey(key string) string {
	if rc.config.KeyPrefix == "" {
		return key
	}
	return rc.config.KeyPrefix + ":" + key
}

// Set 写入缓存键值
func (rc *RedisConnector) Set(key string, value interface{}, expiration time.Duration) error {
	if !rc.IsConnected() {
		return fmt.Errorf("Redis客户端未连接")
	}

	payload, err := encodeRedisValue(value)
	if err != nil {
		return fmt.Errorf("序列化缓存值失败: %w", err)
	}

	if err := rc.client.Set(rc.ctx, rc.cacheKey(key), payload, expiration).Err(); err != nil {
		return fmt.Errorf("SET命令失败: %w", err)
	}
	return nil
}

// Get 读取缓存键值，键不存在时返回nil
// JSON内容解码为通用结构，其余内容按原始字符串返回
func (rc *RedisConnector) Get(key string) (interface{}, error) {
	if !rc.IsConnected() {
		return nil, fmt.Errorf("Redis客户端未连接")
	}

	raw, err := rc.client.Get(rc.ctx, rc.cacheKey(key)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("GET命令失败: %w", err)
	}

	var value interface{}
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return raw, nil
	}
	return value, nil
}

// Delete 删除缓存键
func (rc *RedisConnector) Delete(keys ...string) error {
	if !rc.IsConnected() {
		return fmt.Errorf("Redis客户端未连接")
	}
	if len(keys) == 0 {
		return nil
	}

	prefixed := make([]string, 0, len(keys))
	for _, key := range keys {
		prefixed = append(prefixed, rc.cacheKey(key))
	}

	if err := rc.client.Del(rc.ctx, prefixed...).Err(); err != nil {
		return fmt.Errorf("DEL命令失败: %w", err)
	}
	return nil
}

// Publish 把消息发布到频道，频道名不加缓存前缀
func (rc *RedisConnector) Publish(channel string, message interface{}) error {
	if !rc.IsConnected() {
		return fmt.Errorf("Redis客户端未连接")
	}

	payload, err := encodeRedisValue(message)
	if err != nil {
		return fmt.Errorf("序列化消息失败: %w", err)
	}

	if err := rc.client.Publish(rc.ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("PUBLISH命令失败: %w", err)
	}
	return nil
}

// encodeRedisValue 字符串与字节串原样存储，其余值编码为JSON
func encodeRedisValue(value interface{}) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
}
