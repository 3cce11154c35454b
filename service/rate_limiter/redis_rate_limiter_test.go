/*
 * @module service/rate_limiter/redis_rate_limiter_test
 * @description 触发限流器测试，纯函数部分无须Redis，计数部分在Redis不可用时跳过
 * @architecture 测试层
 * @documentReference ai_docs/quality_pipeline_design.md
 */

package rate_limiter

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis 连接测试用Redis并清库，Redis不可用时跳过
func setupTestRedis(t testing.TB) *RedisRateLimiter {
	os.Setenv("REDIS_HOST", getEnvWithDefault("REDIS_HOST", "localhost"))
	os.Setenv("REDIS_PORT", getEnvWithDefault("REDIS_PORT", "6379"))

	limiter, err := NewRedisRateLimiter()
	if err != nil {
		t.Skipf("Redis不可用，跳过限流测试: %v", err)
	}
	require.NotNil(t, limiter)

	limiter.client.FlushDB(context.Background())
	return limiter
}

// TestSortRulesByPriority 排序不依赖Redis，直接构造限流器实例
func TestSortRulesByPriority(t *testing.T) {
	limiter := &RedisRateLimiter{}

	rules := []RateLimitRule{
		{Type: "global", TimeWindow: 60, MaxRequests: 1000},
		{Type: "pipeline", TargetID: "p-1", TimeWindow: 60, MaxRequests: 5},
		{Type: "token", TargetID: "t-1", TimeWindow: 60, MaxRequests: 100},
	}

	sorted := limiter.sortRulesByPriority(rules)
	assert.Equal(t, "pipeline", sorted[0].Type)
	assert.Equal(t, "token", sorted[1].Type)
	assert.Equal(t, "global", sorted[2].Type)

	// 原切片不被修改
	assert.Equal(t, "global", rules[0].Type)
}

func TestBuildRateLimitKey(t *testing.T) {
	limiter := &RedisRateLimiter{}

	// 全局键不含目标ID
	globalKey := limiter.buildRateLimitKey("global", "", 60)
	assert.Contains(t, globalKey, "rate_limit:global:")

	tokenKey := limiter.buildRateLimitKey("token", "token-123", 60)
	assert.Contains(t, tokenKey, "rate_limit:token:token-123:")

	pipelineKey := limiter.buildRateLimitKey("pipeline", "pipeline-456", 60)
	assert.Contains(t, pipelineKey, "rate_limit:pipeline:pipeline-456:")

	// 同一窗口内键名稳定
	assert.Equal(t, tokenKey, limiter.buildRateLimitKey("token", "token-123", 60))

	// 窗口长度不同则落在不同的桶
	assert.NotEqual(t, tokenKey, limiter.buildRateLimitKey("token", "token-123", 3600))
}

func TestDisplayName(t *testing.T) {
	limiter := &RedisRateLimiter{}
	assert.Equal(t, "全局", limiter.displayName("global"))
	assert.Equal(t, "访问令牌", limiter.displayName("token"))
	assert.Equal(t, "流水线", limiter.displayName("pipeline"))
	assert.Equal(t, "未知", limiter.displayName("tenant"))
}

// TestCheckSingleRuleCounting 测试固定窗口计数：配额内放行，超限拒绝
func TestCheckSingleRuleCounting(t *testing.T) {
	limiter := setupTestRedis(t)
	defer limiter.Close()

	ctx := context.Background()
	rule := RateLimitRule{
		Type:        "token",
		TargetID:    "test-token-123",
		TimeWindow:  30,
		MaxRequests: 4,
	}

	for i := 0; i < 4; i++ {
		result, err := limiter.checkSingleRule(ctx, rule)
		require.NoError(t, err)
		assert.True(t, result.Allowed, fmt.Sprintf("第%d次请求应放行", i+1))
		assert.Equal(t, 4, result.Limit)
		assert.Equal(t, 4-i-1, result.Remaining)
		assert.Equal(t, "token", result.RateLimitType)
	}

	result, err := limiter.checkSingleRule(ctx, rule)
	require.NoError(t, err)
	assert.False(t, result.Allowed, "超出配额后应拒绝")
	assert.Equal(t, 0, result.Remaining)
	assert.Contains(t, result.Message, "访问令牌限流限制")
}

// TestCheckRateLimitLayerPriority 多层规则时流水线层最先耗尽并拦截
func TestCheckRateLimitLayerPriority(t *testing.T) {
	limiter := setupTestRedis(t)
	defer limiter.Close()

	ctx := context.Background()
	rules := []RateLimitRule{
		{Type: "global", TimeWindow: 60, MaxRequests: 1000},
		{Type: "token", TargetID: "token-123", TimeWindow: 60, MaxRequests: 100},
		{Type: "pipeline", TargetID: "pipeline-456", TimeWindow: 60, MaxRequests: 3},
	}

	for i := 0; i < 3; i++ {
		result, err := limiter.CheckRateLimit(ctx, rules)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
	}

	result, err := limiter.CheckRateLimit(ctx, rules)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, "pipeline", result.RateLimitType, "应由流水线层拦截")
	assert.Contains(t, result.Message, "流水线限流限制")
}

// TestCheckRateLimitNoRules 未配置规则时直接放行
func TestCheckRateLimitNoRules(t *testing.T) {
	limiter := setupTestRedis(t)
	defer limiter.Close()

	result, err := limiter.CheckRateLimit(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, "none", result.RateLimitType)
	assert.Equal(t, -1, result.Limit)
}

// TestWindowReset 窗口过期后配额恢复
func TestWindowReset(t *testing.T) {
	if testing.Short() {
		t.Skip("短测试模式跳过窗口等待")
	}

	limiter := setupTestRedis(t)
	defer limiter.Close()

	ctx := context.Background()
	rule := RateLimitRule{
		Type:        "token",
		TargetID:    "window-token",
		TimeWindow:  1,
		MaxRequests: 2,
	}

	for i := 0; i < 2; i++ {
		result, err := limiter.checkSingleRule(ctx, rule)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
	}

	result, err := limiter.checkSingleRule(ctx, rule)
	require.NoError(t, err)
	assert.False(t, result.Allowed)

	// 跨过窗口边界
	time.Sleep(1100 * time.Millisecond)

	result, err = limiter.checkSingleRule(ctx, rule)
	require.NoError(t, err)
	assert.True(t, result.Allowed, "新窗口应恢复配额")
	assert.Equal(t, 1, result.Remaining)
}

// TestGetStatsAndReset 统计与运维重置
func TestGetStatsAndReset(t *testing.T) {
	limiter := setupTestRedis(t)
	defer limiter.Close()

	ctx := context.Background()
	rule := RateLimitRule{
		Type:        "pipeline",
		TargetID:    "stats-pipeline",
		TimeWindow:  60,
		MaxRequests: 8,
	}

	for i := 0; i < 3; i++ {
		_, err := limiter.checkSingleRule(ctx, rule)
		require.NoError(t, err)
	}

	stats, err := limiter.GetStats(ctx, rule)
	require.NoError(t, err)
	assert.Equal(t, "pipeline", stats["type"])
	assert.Equal(t, "stats-pipeline", stats["target_id"])
	assert.Equal(t, 3, stats["current"])
	assert.Equal(t, 8, stats["limit"])
	assert.Equal(t, 5, stats["remaining"])

	require.NoError(t, limiter.ResetRateLimit(ctx, rule))

	stats, err = limiter.GetStats(ctx, rule)
	require.NoError(t, err)
	assert.Equal(t, 0, stats["current"], "重置后计数应归零")
}

// TestConcurrentCounting INCR在Lua脚本内执行，并发下计数精确
func TestConcurrentCounting(t *testing.T) {
	limiter := setupTestRedis(t)
	defer limiter.Close()

	ctx := context.Background()
	rule := RateLimitRule{
		Type:        "token",
		TargetID:    "concurrent-token",
		TimeWindow:  60,
		MaxRequests: 40,
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed, denied := 0, 0

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := limiter.checkSingleRule(ctx, rule)
			if err != nil {
				return
			}
			mu.Lock()
			if result.Allowed {
				allowed++
			} else {
				denied++
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	t.Logf("并发结果: 允许=%d 拒绝=%d", allowed, denied)
	assert.Equal(t, 40, allowed, "放行数应精确等于配额")
	assert.Equal(t, 60, denied)
}

func BenchmarkCheckSingleRule(b *testing.B) {
	limiter := setupTestRedis(b)
	defer limiter.Close()

	ctx := context.Background()
	rule := RateLimitRule{
		Type:        "global",
		TimeWindow:  60,
		MaxRequests: 1 << 30,
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = limiter.checkSingleRule(ctx, rule)
	}
}
