/*
 * @module service/models/quality_report_models
 * @description 质量报告模型，包含列画像、去重统计、分位界、异常标记等落库记录
 * @architecture 分层架构 - 数据模型层
 * @documentReference ai_docs/quality_pipeline_design.md
 * @stateFlow 阶段执行 -> 报告记录落库 -> 报告查询服务读取
 * @rules 报告记录按运行归档，分位界每次运行重新计算落库，不允许复用历史值
 * @dependencies gorm.io/gorm, github.com/google/uuid
 * @refs service/pipeline_engine/, service/quality_report_service.go
 */

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ColumnProfileRecord 列画像记录模型，每次运行每列一条
type ColumnProfileRecord struct {
	ID                string    `gorm:"type:varchar(50);primaryKey" json:"id"`
	RunID             string    `gorm:"type:varchar(50);not null;index" json:"run_id"`
	DatasetName       string    `gorm:"type:varchar(100);not null;index" json:"dataset_name"`
	ColumnName        string    `gorm:"type:varchar(100);not null" json:"column_name"`
	TotalRows         int64     `json:"total_rows"`
	MissingCount      int64     `json:"missing_count"`
	MissingPercentage float64   `json:"missing_percentage"` // 两位小数
	CreatedAt         time.Time `json:"created_at"`
}

// TableName 指定表名
func (ColumnProfileRecord) TableName() string {
	return "column_profile_records"
}

// BeforeCreate 创建前钩子
func (c *ColumnProfileRecord) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return nil
}

// DedupStatRecord 去重统计记录模型
type DedupStatRecord struct {
	ID           string    `gorm:"type:varchar(50);primaryKey" json:"id"`
	RunID        string    `gorm:"type:varchar(50);not null;index" json:"run_id"`
	DatasetName  string    `gorm:"type:varchar(100);not null" json:"dataset_name"`
	RawCount     int64     `json:"raw_count"`
	DedupCount   int64     `json:"dedup_count"`
	RemovedCount int64     `json:"removed_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// TableName 指定表名
func (DedupStatRecord) TableName() string {
	return "dedup_stat_records"
}

// BeforeCreate 创建前钩子
func (d *DedupStatRecord) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	return nil
}

// QuantileBoundsRecord 分位界与离群统计记录模型，每次运行重新拟合
type QuantileBoundsRecord struct {
	ID                string    `gorm:"type:varchar(50);primaryKey" json:"id"`
	RunID             string    `gorm:"type:varchar(50);not null;index" json:"run_id"`
	DatasetName       string    `gorm:"type:varchar(100);not null" json:"dataset_name"`
	ColumnName        string    `gorm:"type:varchar(100);not null" json:"column_name"`
	Q1                float64   `json:"q1"`
	Q3                float64   `json:"q3"`
	LowerBound        float64   `json:"lower_bound"`
	UpperBound        float64   `json:"upper_bound"`
	Degenerate        bool      `json:"degenerate"`                     // IQR 为零时界收敛到 q1
	Method            string    `gorm:"type:varchar(20)" json:"method"` // exact, p2
	OutlierCount      int64     `json:"outlier_count"`
	OutlierPercentage float64   `json:"outlier_percentage"`             // 按封顶前的原始列统计
	CappedColumn      string    `gorm:"type:varchar(100)" json:"capped_column"`
	CreatedAt         time.Time `json:"created_at"`
}

// TableName 指定表名
func (QuantileBoundsRecord) TableName() string {
	return "quantile_bounds_records"
}

// BeforeCreate 创建前钩子
func (q *QuantileBoundsRecord) BeforeCreate(tx *gorm.DB) error {
	if q.ID == "" {
		q.ID = uuid.New().String()
	}
	return nil
}

// AnomalyFlagRecord 业务异常标记记录模型，每次运行每条规则一条
type AnomalyFlagRecord struct {
	ID                string    `gorm:"type:varchar(50);primaryKey" json:"id"`
	RunID             string    `gorm:"type:varchar(50);not null;index" json:"run_id"`
	RuleName          string    `gorm:"type:varchar(100);not null" json:"rule_name"`
	SourceDataset     string    `gorm:"type:varchar(100);not null" json:"source_dataset"`
	TotalRows         int64     `json:"total_rows"`                         // 剔除空值后的有效行数
	MatchedCount      int64     `json:"matched_count"`
	MatchedPercentage float64   `json:"matched_percentage"`                 // 两位小数
	SkippedNulls      int64     `json:"skipped_nulls"`
	Position          int       `gorm:"not null;default:0" json:"position"` // 规则声明顺序
	CreatedAt         time.Time `json:"created_at"`
}

// TableName 指定表名
func (AnomalyFlagRecord) TableName() string {
	return "anomaly_flag_records"
}

// BeforeCreate 创建前钩子
func (a *AnomalyFlagRecord) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	return nil
}

// CappingVerifyRecord 封顶前后校验记录模型
type CappingVerifyRecord struct {
	ID           string           `gorm:"type:varchar(50);primaryKey" json:"id"`
	RunID        string           `gorm:"type:varchar(50);not null;index" json:"run_id"`
	DatasetName  string           `gorm:"type:varchar(100);not null" json:"dataset_name"`
	ColumnName   string           `gorm:"type:varchar(100);not null" json:"column_name"`
	BeforeMin    float64          `json:"before_min"`
	BeforeMedian float64          `json:"before_median"`
	BeforeMax    float64          `json:"before_max"`
	AfterMin     float64          `json:"after_min"`
	AfterMedian  float64          `json:"after_median"`
	AfterMax     float64          `json:"after_max"`
	Passed       bool             `json:"passed"`
	Issues       JSONBStringArray `gorm:"type:jsonb" json:"issues"`
	CreatedAt    time.Time        `json:"created_at"`
}

// TableName 指定表名
func (CappingVerifyRecord) TableName() string {
	return "capping_verify_records"
}

// BeforeCreate 创建前钩子
func (c *CappingVerifyRecord) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return nil
}

// QualityReport 一次运行的聚合报告视图
type QualityReport struct {
	Run       *PipelineRun           `json:"run"`
	Profiles  []ColumnProfileRecord  `json:"profiles"`
	Dedup     []DedupStatRecord      `json:"dedup"`
	Bounds    []QuantileBoundsRecord `json:"bounds"`
	Verify    []CappingVerifyRecord  `json:"verify"`
	Flags     []AnomalyFlagRecord    `json:"flags"`
	Generated time.Time              `json:"generated"`
}
