/*
 * @module service/models/pipeline_models
 * @description 质量流水线核心模型，包含流水线定义、运行记录、阶段记录等数据结构
 * @architecture 分层架构 - 数据模型层
 * @documentReference ai_docs/quality_pipeline_design.md
 * @stateFlow 流水线定义 -> 触发运行 -> 阶段执行 -> 运行完结
 * @rules 运行与阶段记录只增不改写历史，阶段要么完整落库要么整体回滚
 * @dependencies gorm.io/gorm, github.com/google/uuid, github.com/lib/pq
 * @refs service/pipeline_engine/, service/data_quality/
 */

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// 流水线运行状态
const (
	RunStatusPending   = "pending"
	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
)

// 流水线阶段类型
const (
	StageTypeProfile = "profile"
	StageTypeDedup   = "dedup"
	StageTypeOutlier = "outlier"
	StageTypeFlag    = "flag"
)

// 运行触发方式
const (
	TriggerManual   = "manual"
	TriggerSchedule = "schedule"
	TriggerAPI      = "api"
)

// PipelineDefinition 质量流水线定义模型
type PipelineDefinition struct {
	ID             string         `gorm:"type:varchar(50);primaryKey" json:"id"`
	Name           string         `gorm:"type:varchar(100);not null;uniqueIndex" json:"name"`
	Description    string         `gorm:"type:text" json:"description"`
	DatasetName    string         `gorm:"type:varchar(100);not null" json:"dataset_name"`         // 逻辑数据集名，如 watch_history
	SourceTable    string         `gorm:"type:varchar(100);not null" json:"source_table"`         // 仓库里的实际来源表
	ProfileColumns pq.StringArray `gorm:"type:text[]" json:"profile_columns"`                     // 为空时画像全部列
	KeyColumns     pq.StringArray `gorm:"type:text[];not null" json:"key_columns"`                // 去重组合键
	TieBreakOrder  JSONBArray     `gorm:"type:jsonb" json:"tie_break_order"`                      // [{column, descending}]
	OutlierColumns pq.StringArray `gorm:"type:text[]" json:"outlier_columns"`                     // 需要封顶的数值列
	QuantileMethod string         `gorm:"type:varchar(20);default:'auto'" json:"quantile_method"` // auto, exact, p2
	Schedule       string         `gorm:"type:varchar(50)" json:"schedule"`                       // cron 表达式，空则只手动触发
	IsEnabled      bool           `gorm:"not null" json:"is_enabled"` // 创建路径显式赋值；带default的bool零值在Create时会被gorm忽略
	IsBuiltIn      bool           `gorm:"default:false" json:"is_built_in"`
	CreatedBy      string         `gorm:"type:varchar(50)" json:"created_by"`
	UpdatedBy      string         `gorm:"type:varchar(50)" json:"updated_by"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`

	Rules []AnomalyRuleConfig `gorm:"foreignKey:PipelineID" json:"rules,omitempty"`
}

// TableName 指定表名
func (PipelineDefinition) TableName() string {
	return "pipeline_definitions"
}

// BeforeCreate 创建前钩子
func (p *PipelineDefinition) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return nil
}

// PipelineRun 流水线运行记录模型
type PipelineRun struct {
	ID           string     `gorm:"type:varchar(50);primaryKey" json:"id"`
	PipelineID   string     `gorm:"type:varchar(50);not null;index" json:"pipeline_id"`
	Status       string     `gorm:"type:varchar(20);not null;index" json:"status"` // pending, running, succeeded, failed
	TriggeredBy  string     `gorm:"type:varchar(20);not null" json:"triggered_by"` // manual, schedule, api
	CurrentStage string     `gorm:"type:varchar(20)" json:"current_stage"`
	StartTime    time.Time  `json:"start_time"`
	EndTime      *time.Time `json:"end_time,omitempty"`
	Duration     int64      `json:"duration"`                                      // 运行时长，毫秒
	ErrorMessage string     `gorm:"type:text" json:"error_message,omitempty"`
	Statistics   JSONB      `gorm:"type:jsonb" json:"statistics"`                  // 各阶段行数汇总
	Warnings     JSONBArray `gorm:"type:jsonb" json:"warnings"`                    // 可恢复告警，如退化分布
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`

	Stages []StageRun `gorm:"foreignKey:RunID" json:"stages,omitempty"`
}

// TableName 指定表名
func (PipelineRun) TableName() string {
	return "pipeline_runs"
}

// BeforeCreate 创建前钩子
func (r *PipelineRun) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return nil
}

// IsFinished 运行是否已经终结
func (r *PipelineRun) IsFinished() bool {
	return r.Status == RunStatusSucceeded || r.Status == RunStatusFailed
}

// StageRun 流水线阶段执行记录模型
type StageRun struct {
	ID           string     `gorm:"type:varchar(50);primaryKey" json:"id"`
	RunID        string     `gorm:"type:varchar(50);not null;index" json:"run_id"`
	StageType    string     `gorm:"type:varchar(20);not null" json:"stage_type"` // profile, dedup, outlier, flag
	Position     int        `gorm:"not null" json:"position"`                    // 阶段在流水线中的序号
	Status       string     `gorm:"type:varchar(20);not null" json:"status"`
	StartTime    time.Time  `json:"start_time"`
	EndTime      *time.Time `json:"end_time,omitempty"`
	Duration     int64      `json:"duration"`                                    // 阶段时长，毫秒
	InputRows    int64      `json:"input_rows"`
	OutputRows   int64      `json:"output_rows"`
	OutputTable  string     `gorm:"type:varchar(100)" json:"output_table,omitempty"`
	Metrics      JSONB      `gorm:"type:jsonb" json:"metrics"`                   // 阶段维度指标
	ErrorMessage string     `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// TableName 指定表名
func (StageRun) TableName() string {
	return "pipeline_stage_runs"
}

// BeforeCreate 创建前钩子
func (s *StageRun) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return nil
}

// AnomalyRuleConfig 业务异常规则配置模型
// Position 保证报告输出按声明顺序而不是名称排序
type AnomalyRuleConfig struct {
	ID            string         `gorm:"type:varchar(50);primaryKey" json:"id"`
	PipelineID    string         `gorm:"type:varchar(50);not null;index" json:"pipeline_id"`
	Name          string         `gorm:"type:varchar(100);not null" json:"name"`
	SourceDataset string         `gorm:"type:varchar(100);not null" json:"source_dataset"`
	Logic         string         `gorm:"type:varchar(10);default:'or'" json:"logic"` // and, or
	Conditions    JSONBArray     `gorm:"type:jsonb" json:"conditions"`               // [{field, operator, value}]
	Script        string         `gorm:"type:text" json:"script,omitempty"`          // 脚本谓词，优先于 Conditions
	Fields        pq.StringArray `gorm:"type:text[]" json:"fields,omitempty"`        // 脚本谓词涉及的字段
	Position      int            `gorm:"not null;default:0" json:"position"`
	Description   string         `gorm:"type:text" json:"description"`
	IsEnabled     bool           `gorm:"not null" json:"is_enabled"` // 同定义模型，禁用default以保证false能落库
	IsBuiltIn     bool           `gorm:"default:false" json:"is_built_in"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	CreatedBy     string         `gorm:"type:varchar(50)" json:"created_by"`
	UpdatedBy     string         `gorm:"type:varchar(50)" json:"updated_by"`
}

// TableName 指定表名
func (AnomalyRuleConfig) TableName() string {
	return "anomaly_rule_configs"
}

// BeforeCreate 创建前钩子
func (c *AnomalyRuleConfig) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return nil
}

// TriggerRunRequest 触发流水线运行请求
type TriggerRunRequest struct {
	PipelineID  string `json:"pipeline_id"`
	TriggeredBy string `json:"triggered_by,omitempty"` // 默认 manual
	Operator    string `json:"operator,omitempty"`
}

// PipelineRunSummary 运行摘要，用于列表查询
type PipelineRunSummary struct {
	RunID        string     `json:"run_id"`
	PipelineID   string     `json:"pipeline_id"`
	PipelineName string     `json:"pipeline_name"`
	Status       string     `json:"status"`
	TriggeredBy  string     `json:"triggered_by"`
	StartTime    time.Time  `json:"start_time"`
	EndTime      *time.Time `json:"end_time,omitempty"`
	Duration     int64      `json:"duration"`
	StageCount   int        `json:"stage_count"`
	WarningCount int        `json:"warning_count"`
}
