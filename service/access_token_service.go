/*
 * @module service/access_token_service
 * @description 访问令牌服务，提供令牌签发、校验、吊销与过期管理，令牌明文只在签发时返回一次
 * @architecture 分层架构 - 业务逻辑层
 * @documentReference ai_docs/quality_pipeline_design.md
 * @stateFlow 签发(明文+bcrypt哈希) -> 接口校验(前缀预筛+哈希比对) -> 吊销/过期 -> 清理
 * @rules 库内只存bcrypt哈希，校验按前缀预筛后逐一比对，活跃令牌先吊销再删除
 * @dependencies golang.org/x/crypto/bcrypt, crypto/rand, gorm.io/gorm
 * @refs api/middleware/token_auth.go, service/cleanup/cleanup_service.go
 */

package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"dataquality-service/service/meta"
	"dataquality-service/service/models"

	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	// tokenSecretLength 令牌明文的十六进制长度
	tokenSecretLength = 64
	// tokenPrefixLength 用于预筛的前缀长度
	tokenPrefixLength = 8
)

// AccessTokenService 访问令牌服务
type AccessTokenService struct {
	db *gorm.DB
}

// NewAccessTokenService 创建访问令牌服务实例
func NewAccessTokenService(db *gorm.DB) *AccessTokenService {
	return &AccessTokenService{db: db}
}

// CreateTokenRequest 创建令牌请求
type CreateTokenRequest struct {
	Name          string   `json:"name" binding:"required"`
	Scopes        []string `json:"scopes" binding:"required"`
	Description   string   `json:"description"`
	ExpiresInDays int      `json:"expires_in_days"`
	CreatedBy     string   `json:"created_by"`
}

// CreateTokenResponse 创建令牌响应，PlainToken只在此处出现
type CreateTokenResponse struct {
	Token      *models.AccessToken `json:"token"`
	PlainToken string              `json:"plain_token"`
}

// UpdateTokenRequest 更新令牌请求，nil字段表示不修改
type UpdateTokenRequest struct {
	Name          *string  `json:"name"`
	Description   *string  `json:"description"`
	Scopes        []string `json:"scopes"`
	Status        *string  `json:"status"`
	ExpiresInDays *int     `json:"expires_in_days"`
}

// GetTokenListRequest 令牌列表查询请求
type GetTokenListRequest struct {
	Page    int    `form:"page"`
	Size    int    `form:"size"`
	Status  string `form:"status"`
	Keyword string `form:"keyword"`
}

// TokenListResponse 令牌列表响应
type TokenListResponse struct {
	Tokens     []models.AccessToken `json:"tokens"`
	Pagination *PaginationInfo      `json:"pagination"`
}

// CreateToken 签发新令牌，返回的明文此后不再可见
func (s *AccessTokenService) CreateToken(ctx context.Context, req *CreateTokenRequest) (*CreateTokenResponse, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("令牌名称不能为空")
	}
	if len(req.Scopes) == 0 {
		return nil, fmt.Errorf("令牌至少需要一个权限范围")
	}
	for _, scope := range req.Scopes {
		if !meta.IsValidTokenScope(scope) {
			return nil, fmt.Errorf("无效的权限范围: %s", scope)
		}
	}

	plain, err := generateTokenSecret()
	if err != nil {
		return nil, fmt.Errorf("生成令牌失败: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("令牌哈希失败: %w", err)
	}

	token := &models.AccessToken{
		Name:        req.Name,
		TokenPrefix: plain[:tokenPrefixLength],
		TokenHash:   string(hash),
		Scopes:      pq.StringArray(req.Scopes),
		Description: req.Description,
		Status:      "active",
		CreatedBy:   req.CreatedBy,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	if req.ExpiresInDays > 0 {
		expiresAt := time.Now().AddDate(0, 0, req.ExpiresInDays)
		token.ExpiresAt = &expiresAt
	}

	if err := s.db.WithContext(ctx).Create(token).Error; err != nil {
		return nil, fmt.Errorf("保存令牌失败: %w", err)
	}

	slog.Info("访问令牌已签发", "token_id", token.ID, "name", token.Name,
		"prefix", token.TokenPrefix, "created_by", token.CreatedBy)

	return &CreateTokenResponse{Token: token, PlainToken: plain}, nil
}

// VerifyToken 校验令牌明文，成功时更新使用统计并返回令牌记录
func (s *AccessTokenService) VerifyToken(ctx context.Context, plain string) (*models.AccessToken, error) {
	if len(plain) < tokenPrefixLength {
		return nil, fmt.Errorf("令牌格式无效")
	}

	// 前缀预筛避免对全表做bcrypt比对
	var candidates []models.AccessToken
	if err := s.db.WithContext(ctx).
		Where("token_prefix = ?", plain[:tokenPrefixLength]).
		Find(&candidates).Error; err != nil {
		return nil, fmt.Errorf("查询令牌失败: %w", err)
	}

	for i := range candidates {
		token := &candidates[i]
		if bcrypt.CompareHashAndPassword([]byte(token.TokenHash), []byte(plain)) != nil {
			continue
		}
		if !token.IsUsable(time.Now()) {
			return nil, fmt.Errorf("令牌已失效或过期")
		}
		s.touchToken(ctx, token.ID)
		return token, nil
	}

	return nil, fmt.Errorf("令牌验证失败")
}

// touchToken 更新令牌使用统计，失败只记录日志
func (s *AccessTokenService) touchToken(ctx context.Context, tokenID string) {
	now := time.Now()
	err := s.db.WithContext(ctx).Model(&models.AccessToken{}).
		Where("id = ?", tokenID).
		Updates(map[string]interface{}{
			"last_used_at": now,
			"usage_count":  gorm.Expr("usage_count + 1"),
		}).Error
	if err != nil {
		slog.Warn("更新令牌使用统计失败", "token_id", tokenID, "error", err)
	}
}

// GetTokenByID 按ID获取令牌
func (s *AccessTokenService) GetTokenByID(ctx context.Context, tokenID string) (*models.AccessToken, error) {
	var token models.AccessToken
	if err := s.db.WithContext(ctx).First(&token, "id = ?", tokenID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("令牌不存在: %s", tokenID)
		}
		return nil, fmt.Errorf("查询令牌失败: %w", err)
	}
	return &token, nil
}

// GetTokenList 分页查询令牌列表
func (s *AccessTokenService) GetTokenList(ctx context.Context, req *GetTokenListRequest) (*TokenListResponse, error) {
	page, size := normalizePage(req.Page, req.Size)

	query := s.db.WithContext(ctx).Model(&models.AccessToken{})
	if req.Status != "" {
		query = query.Where("status = ?", req.Status)
	}
	if req.Keyword != "" {
		pattern := "%" + req.Keyword + "%"
		query = query.Where("name LIKE ? OR description LIKE ?", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("统计令牌失败: %w", err)
	}

	var tokens []models.AccessToken
	if err := query.Order("created_at DESC").
		Offset((page - 1) * size).Limit(size).
		Find(&tokens).Error; err != nil {
		return nil, fmt.Errorf("查询令牌列表失败: %w", err)
	}

	return &TokenListResponse{
		Tokens: tokens,
		Pagination: &PaginationInfo{
			Page:       page,
			Size:       size,
			Total:      total,
			TotalPages: (total + int64(size) - 1) / int64(size),
		},
	}, nil
}

// UpdateToken 更新令牌属性，哈希与前缀不可变更
func (s *AccessTokenService) UpdateToken(ctx context.Context, tokenID string, req *UpdateTokenRequest) (*models.AccessToken, error) {
	token, err := s.GetTokenByID(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	if token.Status == "revoked" {
		return nil, fmt.Errorf("已吊销的令牌不允许修改")
	}

	updates := map[string]interface{}{"updated_at": time.Now()}
	if req.Name != nil {
		if *req.Name == "" {
			return nil, fmt.Errorf("令牌名称不能为空")
		}
		updates["name"] = *req.Name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Scopes != nil {
		if len(req.Scopes) == 0 {
			return nil, fmt.Errorf("令牌至少需要一个权限范围")
		}
		for _, scope := range req.Scopes {
			if !meta.IsValidTokenScope(scope) {
				return nil, fmt.Errorf("无效的权限范围: %s", scope)
			}
		}
		updates["scopes"] = pq.StringArray(req.Scopes)
	}
	if req.Status != nil {
		if !meta.IsValidTokenStatus(*req.Status) {
			return nil, fmt.Errorf("无效的令牌状态: %s", *req.Status)
		}
		updates["status"] = *req.Status
	}
	if req.ExpiresInDays != nil {
		if *req.ExpiresInDays <= 0 {
			// 非正数表示清除过期时间
			updates["expires_at"] = nil
		} else {
			updates["expires_at"] = time.Now().AddDate(0, 0, *req.ExpiresInDays)
		}
	}

	if err := s.db.WithContext(ctx).Model(&models.AccessToken{}).
		Where("id = ?", tokenID).
		Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("更新令牌失败: %w", err)
	}

	return s.GetTokenByID(ctx, tokenID)
}

// RevokeToken 吊销令牌，吊销后不可恢复
func (s *AccessTokenService) RevokeToken(ctx context.Context, tokenID string) error {
	token, err := s.GetTokenByID(ctx, tokenID)
	if err != nil {
		return err
	}
	if token.Status == "revoked" {
		return nil
	}

	err = s.db.WithContext(ctx).Model(&models.AccessToken{}).
		Where("id = ?", tokenID).
		Updates(map[string]interface{}{
			"status":     "revoked",
			"updated_at": time.Now(),
		}).Error
	if err != nil {
		return fmt.Errorf("吊销令牌失败: %w", err)
	}

	slog.Info("访问令牌已吊销", "token_id", tokenID, "name", token.Name)
	return nil
}

// DeleteToken 删除令牌，活跃令牌需要先吊销或停用
func (s *AccessTokenService) DeleteToken(ctx context.Context, tokenID string) error {
	token, err := s.GetTokenByID(ctx, tokenID)
	if err != nil {
		return err
	}
	if token.Status == "active" {
		return fmt.Errorf("活跃令牌不允许删除，请先吊销")
	}

	if err := s.db.WithContext(ctx).Delete(&models.AccessToken{}, "id = ?", tokenID).Error; err != nil {
		return fmt.Errorf("删除令牌失败: %w", err)
	}
	return nil
}

// MarkExpiredTokens 将已过期的活跃令牌置为停用，返回处理数量
func (s *AccessTokenService) MarkExpiredTokens(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).Model(&models.AccessToken{}).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at < ?", "active", time.Now()).
		Updates(map[string]interface{}{
			"status":     "inactive",
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return 0, fmt.Errorf("标记过期令牌失败: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		slog.Info("过期令牌已停用", "count", result.RowsAffected)
	}
	return result.RowsAffected, nil
}

// generateTokenSecret 生成十六进制令牌明文
func generateTokenSecret() (string, error) {
	buf := make([]byte, tokenSecretLength/2)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
