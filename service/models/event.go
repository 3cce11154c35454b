/*
 * @module service/models/event
 * @description 事件管理相关模型定义，包括运行事件、SSE 推送、数据库事件监听等
 * @architecture 事件驱动架构 - 数据模型层
 * @documentReference ai_docs/quality_pipeline_design.md
 * @stateFlow 运行状态变更 -> 事件生产 -> 事件分发 -> 事件消费
 * @rules 确保事件的可靠传递和处理
 * @dependencies gorm.io/gorm, github.com/google/uuid
 * @refs service/event/
 */

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 运行事件类型
const (
	EventRunStarted     = "run_started"
	EventStageStarted   = "stage_started"
	EventStageCompleted = "stage_completed"
	EventRunSucceeded   = "run_succeeded"
	EventRunFailed      = "run_failed"
	EventRunWarning     = "run_warning" // 可恢复告警，如退化分布
)

// RunEvent 流水线运行事件模型，经 SSE 推送给订阅客户端
type RunEvent struct {
	ID         string     `gorm:"type:uuid;primary_key" json:"id"`
	EventType  string     `gorm:"not null;index" json:"event_type"`
	PipelineID string     `gorm:"not null;index" json:"pipeline_id"`
	RunID      string     `gorm:"not null;index" json:"run_id"`
	StageType  string     `json:"stage_type,omitempty"`
	Data       JSONB      `gorm:"type:jsonb" json:"data"`
	CreatedAt  time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	CreatedBy  string     `gorm:"not null;default:'system'" json:"created_by"`
	Sent       bool       `gorm:"not null;default:false" json:"sent"`
	SentAt     *time.Time `json:"sent_at"`
}

// TableName 指定表名
func (RunEvent) TableName() string {
	return "run_events"
}

// BeforeCreate 创建前钩子
func (e *RunEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedBy == "" {
		e.CreatedBy = "system"
	}
	return nil
}

// RunEventProcessor 运行事件处理器接口，由订阅方实现
type RunEventProcessor interface {
	ProcessRunEvent(event *RunEvent) error
	EventTypes() []string
}

// SSEConnection SSE连接管理模型
type SSEConnection struct {
	ID           string    `gorm:"type:uuid;primary_key" json:"id"`
	UserName     string    `gorm:"not null;index" json:"user_name"`
	ConnectionID string    `gorm:"not null;unique" json:"connection_id"`
	ClientIP     string    `gorm:"not null" json:"client_ip"`
	UserAgent    string    `json:"user_agent"`
	ConnectedAt  time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"connected_at"`
	CreatedAt    time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	LastPingAt   time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"last_ping_at"`
	IsActive     bool      `gorm:"not null;default:true" json:"is_active"`
}

// TableName 指定表名
func (SSEConnection) TableName() string {
	return "sse_connections"
}

// BeforeCreate 创建前钩子
func (s *SSEConnection) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return nil
}
