/*
 * @module service/models/access_token
 * @description 访问令牌模型，管理接口调用与流水线触发的令牌授权
 * @architecture 分层架构 - 数据模型层
 * @documentReference ai_docs/quality_pipeline_design.md
 * @stateFlow 令牌创建 -> 哈希落库 -> 请求校验 -> 使用计数更新
 * @rules 令牌明文只在创建时返回一次，库中只存 bcrypt 哈希
 * @dependencies gorm.io/gorm, github.com/google/uuid, github.com/lib/pq
 * @refs api/middleware/token_auth.go
 */

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// AccessToken 访问令牌模型
type AccessToken struct {
	ID          string         `gorm:"type:uuid;primary_key" json:"id"`
	Name        string         `gorm:"not null" json:"name"`                    // 令牌名称
	TokenPrefix string         `gorm:"not null;size:8" json:"token_prefix"`     // 令牌前缀，用于快速识别
	TokenHash   string         `gorm:"not null;unique" json:"-"`                // 存储 bcrypt 哈希后的令牌
	Scopes      pq.StringArray `gorm:"type:text[]" json:"scopes"`               // pipeline:read, pipeline:trigger, report:read
	Description string         `json:"description"`
	Status      string         `gorm:"not null;default:'active'" json:"status"` // active, inactive, revoked
	ExpiresAt   *time.Time     `json:"expires_at"`
	LastUsedAt  *time.Time     `json:"last_used_at"`
	UsageCount  int64          `gorm:"default:0" json:"usage_count"`
	CreatedBy   string         `gorm:"size:100" json:"created_by"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// TableName 指定表名
func (AccessToken) TableName() string {
	return "access_tokens"
}

// BeforeCreate 创建前钩子
func (t *AccessToken) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	return nil
}

// IsUsable 令牌当前是否可用
func (t *AccessToken) IsUsable(now time.Time) bool {
	if t.Status != "active" {
		return false
	}
	if t.ExpiresAt != nil && now.After(*t.ExpiresAt) {
		return false
	}
	return true
}

// HasScope 令牌是否具备指定权限
func (t *AccessToken) HasScope(scope string) bool {
	for _, s := range t.Scopes {
		if s == scope || s == "*" {
			return true
		}
	}
	return false
}
