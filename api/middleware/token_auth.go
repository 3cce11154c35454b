/*
 * @module api/middleware/token_auth
 * @description 访问令牌鉴权中间件，校验Bearer令牌并注入令牌信息到请求上下文
 * @architecture 中间件模式 - HTTP请求拦截和验证
 * @documentReference ai_docs/quality_pipeline_design.md
 * @stateFlow Token提取 -> 缓存查询/bcrypt校验 -> 上下文注入 -> 下一个处理器
 * @rules 库内只存bcrypt哈希，校验结果短时缓存以摊薄哈希比对开销，吊销最多延迟一个缓存周期生效
 * @dependencies net/http, crypto/subtle, sync
 * @refs service/access_token_service.go, api/routes.go
 */

package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"dataquality-service/service/models"

	"github.com/go-chi/render"
	"github.com/lib/pq"
)

// ContextKey 上下文键类型
type ContextKey string

const (
	// TokenKey Token明文在上下文中的键
	TokenKey ContextKey = "token"
	// TokenInfoKey 令牌记录在上下文中的键
	TokenInfoKey ContextKey = "token_info"
)

// TokenVerifier 令牌校验接口，由访问令牌服务实现
type TokenVerifier interface {
	VerifyToken(ctx context.Context, plain string) (*models.AccessToken, error)
}

// TokenAuthMiddleware 访问令牌认证中间件
type TokenAuthMiddleware struct {
	verifier TokenVerifier
	// 引导令牌，用于签发第一个正式令牌，生产环境建议签发后清空
	bootstrapToken string
	// 校验结果缓存，避免每个请求都做bcrypt比对
	cache      map[string]*cacheEntry
	cacheMutex sync.RWMutex
	cacheTTL   time.Duration
	// 白名单路径（不需要鉴权）
	whitelistPaths []string
}

// cacheEntry 缓存条目
type cacheEntry struct {
	token     *models.AccessToken
	expiresAt time.Time
}

// NewTokenAuthMiddleware 创建访问令牌认证中间件实例
func NewTokenAuthMiddleware(verifier TokenVerifier) *TokenAuthMiddleware {
	return &TokenAuthMiddleware{
		verifier:       verifier,
		bootstrapToken: os.Getenv("BOOTSTRAP_TOKEN"),
		cache:          make(map[string]*cacheEntry),
		cacheTTL:       5 * time.Minute, // 缓存5分钟
		whitelistPaths: []string{
			"/health",  // 健康检查
			"/ready",   // 就绪检查
			"/swagger", // Swagger文档
			"/metrics", // Prometheus指标
			"/sse",     // SSE事件流
		},
	}
}

// AddWhitelistPath 添加白名单路径
func (m *TokenAuthMiddleware) AddWhitelistPath(path string) {
	m.whitelistPaths = append(m.whitelistPaths, path)
}

// IsWhitelistPath 检查路径是否在白名单中
func (m *TokenAuthMiddleware) IsWhitelistPath(path string) bool {
	for _, whitelistPath := range m.whitelistPaths {
		// 支持前缀匹配
		if strings.HasPrefix(path, whitelistPath) {
			return true
		}
	}
	return false
}

// Middleware 认证中间件处理函数
func (m *TokenAuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 检查是否在白名单中
		if m.IsWhitelistPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		// 从Authorization头中提取Token
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			m.respondUnauthorized(w, r, "缺少Authorization头")
			return
		}

		// 验证Bearer格式
		if !strings.HasPrefix(authHeader, "Bearer ") {
			m.respondUnauthorized(w, r, "无效的Authorization格式，需要Bearer Token")
			return
		}

		plain := strings.TrimPrefix(authHeader, "Bearer ")
		if plain == "" {
			m.respondUnauthorized(w, r, "Token为空")
			return
		}

		// 引导令牌拥有全部权限
		if m.isBootstrapToken(plain) {
			ctx := context.WithValue(r.Context(), TokenKey, plain)
			ctx = context.WithValue(ctx, TokenInfoKey, bootstrapTokenInfo())
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		// 先检查缓存
		if token := m.getFromCache(plain); token != nil {
			ctx := context.WithValue(r.Context(), TokenKey, plain)
			ctx = context.WithValue(ctx, TokenInfoKey, token)
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		// 校验Token
		token, err := m.verifier.VerifyToken(r.Context(), plain)
		if err != nil {
			m.respondUnauthorized(w, r, "Token验证失败: "+err.Error())
			return
		}

		// 保存到缓存
		m.saveToCache(plain, token)

		// 将Token和令牌信息注入到上下文中
		ctx := context.WithValue(r.Context(), TokenKey, plain)
		ctx = context.WithValue(ctx, TokenInfoKey, token)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// isBootstrapToken 恒定时间比较引导令牌
func (m *TokenAuthMiddleware) isBootstrapToken(plain string) bool {
	if m.bootstrapToken == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(plain), []byte(m.bootstrapToken)) == 1
}

// bootstrapTokenInfo 构造引导令牌对应的令牌信息
func bootstrapTokenInfo() *models.AccessToken {
	return &models.AccessToken{
		Name:   "bootstrap",
		Scopes: pq.StringArray{"*"},
		Status: "active",
	}
}

// getFromCache 从缓存中获取令牌信息
func (m *TokenAuthMiddleware) getFromCache(plain string) *models.AccessToken {
	m.cacheMutex.RLock()
	defer m.cacheMutex.RUnlock()

	entry, exists := m.cache[plain]
	if !exists {
		return nil
	}

	// 检查是否过期
	if time.Now().After(entry.expiresAt) {
		// 异步删除过期缓存
		go m.removeFromCache(plain)
		return nil
	}

	return entry.token
}

// saveToCache 保存令牌信息到缓存
func (m *TokenAuthMiddleware) saveToCache(plain string, token *models.AccessToken) {
	m.cacheMutex.Lock()
	defer m.cacheMutex.Unlock()

	// 缓存过期时间取令牌过期时间和缓存TTL的较小值
	cacheExpiry := time.Now().Add(m.cacheTTL)
	if token.ExpiresAt != nil && token.ExpiresAt.Before(cacheExpiry) {
		cacheExpiry = *token.ExpiresAt
	}

	m.cache[plain] = &cacheEntry{
		token:     token,
		expiresAt: cacheExpiry,
	}
}

// removeFromCache 从缓存中删除Token
func (m *TokenAuthMiddleware) removeFromCache(plain string) {
	m.cacheMutex.Lock()
	defer m.cacheMutex.Unlock()

	delete(m.cache, plain)
}

// InvalidateToken 将指定令牌逐出缓存，吊销后调用立即生效
func (m *TokenAuthMiddleware) InvalidateToken(plain string) {
	m.removeFromCache(plain)
}

// ClearExpiredCache 清理过期缓存（可以定期调用）
func (m *TokenAuthMiddleware) ClearExpiredCache() int {
	m.cacheMutex.Lock()
	defer m.cacheMutex.Unlock()

	now := time.Now()
	clearedCount := 0

	for plain, entry := range m.cache {
		if now.After(entry.expiresAt) {
			delete(m.cache, plain)
			clearedCount++
		}
	}

	return clearedCount
}

// respondUnauthorized 返回401未授权响应
func (m *TokenAuthMiddleware) respondUnauthorized(w http.ResponseWriter, r *http.Request, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	render.JSON(w, r, map[string]interface{}{
		"status":  http.StatusUnauthorized,
		"message": message,
		"error":   "Unauthorized",
	})
}

// GetAccessTokenFromContext 从上下文中获取令牌信息
func GetAccessTokenFromContext(ctx context.Context) (*models.AccessToken, bool) {
	token, ok := ctx.Value(TokenInfoKey).(*models.AccessToken)
	return token, ok
}

// GetTokenFromContext 从上下文中获取Token明文
func GetTokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(TokenKey).(string)
	return token, ok
}

// RequireScope 创建一个需要特定权限范围的中间件
func RequireScope(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := GetAccessTokenFromContext(r.Context())
			if !ok {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				render.JSON(w, r, map[string]interface{}{
					"status":  http.StatusUnauthorized,
					"message": "未找到令牌信息",
					"error":   "Unauthorized",
				})
				return
			}

			if !token.HasScope(scope) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				render.JSON(w, r, map[string]interface{}{
					"status":  http.StatusForbidden,
					"message": "缺少所需权限范围: " + scope,
					"error":   "Forbidden",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
