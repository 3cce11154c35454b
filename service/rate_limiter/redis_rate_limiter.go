/*
 * @module service/rate_limiter/redis_rate_limiter
 * @description 基于Redis的分布式触发限流，按流水线、访问令牌、全局三层保护手动触发接口
 * @architecture 工具层 - 提供分布式限流能力
 * @documentReference ai_docs/quality_pipeline_design.md
 * @stateFlow 构造规则 -> 按优先级逐层检查 -> Lua原子计数 -> 超限拒绝
 * @rules 固定窗口计数，窗口编号进入键名，计数与过期设置在Lua脚本内原子完成
 * @dependencies github.com/go-redis/redis/v8
 * @refs service/pipeline_service.go
 */

package rate_limiter

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/go-redis/redis/v8"
)

// 检查优先级，数值大的先检查
var typePriority = map[string]int{
	"pipeline": 3,
	"token":    2,
	"global":   1,
}

// 限流类型的展示名
var typeDisplayName = map[string]string{
	"global":   "全局",
	"token":    "访问令牌",
	"pipeline": "流水线",
}

// 计数与过期设置的原子脚本，返回 {是否允许, 当前计数, 上限, 剩余TTL}
const rateLimitScript = `
	local key = KEYS[1]
	local max_requests = tonumber(ARGV[1])
	local window = tonumber(ARGV[2])

	local current = redis.call('GET', key)
	if current == false then
		current = 0
	else
		current = tonumber(current)
	end

	if current >= max_requests then
		local ttl = redis.call('TTL', key)
		if ttl == -1 then
			ttl = window
		end
		return {0, current, max_requests, ttl}
	end

	local new_count = redis.call('INCR', key)
	if new_count == 1 then
		redis.call('EXPIRE', key, window)
	end

	local ttl = redis.call('TTL', key)
	if ttl == -1 then
		ttl = window
	end

	return {1, new_count, max_requests, ttl}
`

// RateLimitResult 限流检查结果
type RateLimitResult struct {
	Allowed       bool   `json:"allowed"`
	Limit         int    `json:"limit"`
	Remaining     int    `json:"remaining"`
	ResetAt       int64  `json:"reset_at"`
	RateLimitType string `json:"limit_type"` // global/token/pipeline
	Message       string `json:"message"`
}

// RateLimitRule 限流规则
type RateLimitRule struct {
	Type        string // global/token/pipeline
	TargetID    string // 流水线ID或令牌ID，全局规则为空
	TimeWindow  int    // 窗口秒数
	MaxRequests int    // 窗口内最大请求数
}

// RedisRateLimiter Redis限流器
type RedisRateLimiter struct {
	client *redis.Client
}

// NewRedisRateLimiter 创建Redis限流器，连接参数来自REDIS_*环境变量
func NewRedisRateLimiter() (*RedisRateLimiter, error) {
	client := redis.NewClient(limiterOptionsFromEnv())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis连接失败: %w", err)
	}

	slog.Info("Redis触发限流器初始化成功")
	return &RedisRateLimiter{client: client}, nil
}

// limiterOptionsFromEnv 从环境变量构建Redis连接配置
func limiterOptionsFromEnv() *redis.Options {
	db := 0
	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		fmt.Sscanf(dbStr, "%d", &db)
	}

	return &redis.Options{
		Addr: fmt.Sprintf("%s:%s",
			getEnvWithDefault("REDIS_HOST", "localhost"),
			getEnvWithDefault("REDIS_PORT", "6379")),
		Password:     os.Getenv("REDIS_PASSWORD"),
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	}
}

// CheckRateLimit 按优先级逐层检查限流，流水线层优先于令牌层和全局层
func (r *RedisRateLimiter) CheckRateLimit(ctx context.Context, rules []RateLimitRule) (*RateLimitResult, error) {
	sortedRules := r.sortRulesByPriority(rules)

	var lastResult *RateLimitResult
	for _, rule := range sortedRules {
		result, err := r.checkSingleRule(ctx, rule)
		if err != nil {
			return nil, err
		}
		if !result.Allowed {
			return result, nil
		}
		lastResult = result
	}

	if lastResult != nil {
		return lastResult, nil
	}

	// 没有配置规则时放行
	return &RateLimitResult{
		Allowed:       true,
		Limit:         -1,
		Remaining:     -1,
		RateLimitType: "none",
		Message:       "无限流规则",
	}, nil
}

// checkSingleRule 单层限流检查，计数在Lua脚本内原子递增
func (r *RedisRateLimiter) checkSingleRule(ctx context.Context, rule RateLimitRule) (*RateLimitResult, error) {
	key := r.buildRateLimitKey(rule.Type, rule.TargetID, rule.TimeWindow)

	result, err := r.client.Eval(ctx, rateLimitScript, []string{key}, rule.MaxRequests, rule.TimeWindow).Result()
	if err != nil {
		return nil, fmt.Errorf("限流检查失败: %w", err)
	}

	values := result.([]interface{})
	allowed := values[0].(int64) == 1
	currentCount := int(values[1].(int64))
	maxRequests := int(values[2].(int64))
	ttl := int(values[3].(int64))

	remaining := maxRequests - currentCount
	if remaining < 0 {
		remaining = 0
	}

	message := "允许请求"
	if !allowed {
		message = fmt.Sprintf("超过%s限流限制", r.displayName(rule.Type))
	}

	return &RateLimitResult{
		Allowed:       allowed,
		Limit:         maxRequests,
		Remaining:     remaining,
		ResetAt:       time.Now().Add(time.Duration(ttl) * time.Second).Unix(),
		RateLimitType: rule.Type,
		Message:       message,
	}, nil
}

// buildRateLimitKey 构造限流键，窗口编号进入键名实现固定窗口翻转
func (r *RedisRateLimiter) buildRateLimitKey(limitType, targetID string, window int) string {
	currentWindow := time.Now().Unix() / int64(window)

	if limitType == "global" {
		return fmt.Sprintf("rate_limit:%s:%d", limitType, currentWindow)
	}
	return fmt.Sprintf("rate_limit:%s:%s:%d", limitType, targetID, currentWindow)
}

// sortRulesByPriority 按优先级排序：pipeline > token > global
func (r *RedisRateLimiter) sortRulesByPriority(rules []RateLimitRule) []RateLimitRule {
	sorted := make([]RateLimitRule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		return typePriority[sorted[i].Type] > typePriority[sorted[j].Type]
	})
	return sorted
}

// displayName 限流类型展示名
func (r *RedisRateLimiter) displayName(limitType string) string {
	if name, ok := typeDisplayName[limitType]; ok {
		return name
	}
	return "未知"
}

// GetStats 获取当前窗口的限流统计
func (r *RedisRateLimiter) GetStats(ctx context.Context, rule RateLimitRule) (map[string]interface{}, error) {
	key := r.buildRateLimitKey(rule.Type, rule.TargetID, rule.TimeWindow)

	current, err := r.client.Get(ctx, key).Int()
	if err != nil && err != redis.Nil {
		return nil, err
	}

	ttl, err := r.client.TTL(ctx, key).Result()
	if err != nil {
		return nil, err
	}

	remaining := rule.MaxRequests - current
	if remaining < 0 {
		remaining = 0
	}

	return map[string]interface{}{
		"type":        rule.Type,
		"target_id":   rule.TargetID,
		"current":     current,
		"limit":       rule.MaxRequests,
		"remaining":   remaining,
		"window":      rule.TimeWindow,
		"ttl_seconds": int(ttl.Seconds()),
		"reset_at":    time.Now().Add(ttl).Unix(),
	}, nil
}

// ResetRateLimit 清除当前窗口的限流计数，供测试和运维使用
func (r *RedisRateLimiter) ResetRateLimit(ctx context.Context, rule RateLimitRule) error {
	key := r.buildRateLimitKey(rule.Type, rule.TargetID, rule.TimeWindow)
	return r.client.Del(ctx, key).Err()
}

// Close 关闭Redis客户端
func (r *RedisRateLimiter) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// getEnvWithDefault 获取环境变量，不存在时返回默认值
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
