/*
 * @module service/monitoring/quality_alerts
 * @description 质量告警评估器，基于运行落库的报告记录评估阈值告警和连续失败告警
 * @architecture 分层架构 - 业务服务层
 * @documentReference ai_docs/quality_pipeline_design.md
 * @stateFlow 运行完结 -> 报告记录评估 -> 告警生成
 * @rules 告警只评估不落库，同一运行重复评估产生相同结论
 * @dependencies dataquality-service/service/models, gorm.io/gorm
 * @refs service/models/quality_report_models.go, service/monitoring/monitor_service.go
 */

package monitoring

import (
	"fmt"
	"time"

	"dataquality-service/service/models"

	"gorm.io/gorm"
)

// 告警类型
const (
	AlertTypeMissingRatio     = "missing_ratio"
	AlertTypeOutlierRatio     = "outlier_ratio"
	AlertTypeDegenerateBounds = "degenerate_bounds"
	AlertTypeAnomalyRatio     = "anomaly_ratio"
	AlertTypeRunFailures      = "run_failures"
)

// 告警级别
const (
	AlertSeverityWarning  = "warning"
	AlertSeverityCritical = "critical"
)

// AlertThresholds 告警阈值配置
type AlertThresholds struct {
	MissingWarnPercent float64 `json:"missing_warn_percent"` // 缺失率告警线
	MissingCritPercent float64 `json:"missing_crit_percent"` // 缺失率严重线
	OutlierWarnPercent float64 `json:"outlier_warn_percent"` // 离群率告警线
	AnomalyWarnPercent float64 `json:"anomaly_warn_percent"` // 异常命中率告警线
	FailureStreak      int     `json:"failure_streak"`       // 连续失败次数告警线
}

// DefaultAlertThresholds 默认告警阈值
func DefaultAlertThresholds() AlertThresholds {
	return AlertThresholds{
		MissingWarnPercent: 20,
		MissingCritPercent: 50,
		OutlierWarnPercent: 10,
		AnomalyWarnPercent: 30,
		FailureStreak:      3,
	}
}

// QualityAlert 质量告警实例
type QualityAlert struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Severity    string    `json:"severity"`
	PipelineID  string    `json:"pipeline_id"`
	RunID       string    `json:"run_id,omitempty"`
	Target      string    `json:"target"` // 数据集.列名 或 规则名
	Message     string    `json:"message"`
	MetricValue float64   `json:"metric_value"`
	Threshold   float64   `json:"threshold"`
	TriggeredAt time.Time `json:"triggered_at"`
}

// QualityAlertEvaluator 质量告警评估器
type QualityAlertEvaluator struct {
	db         *gorm.DB
	thresholds AlertThresholds
}

// NewQualityAlertEvaluator 创建质量告警评估器
func NewQualityAlertEvaluator(db *gorm.DB, thresholds AlertThresholds) *QualityAlertEvaluator {
	return &QualityAlertEvaluator{
		db:         db,
		thresholds: thresholds,
	}
}

// EvaluateRun 评估一次运行的报告记录，返回触发的告警
func (e *QualityAlertEvaluator) EvaluateRun(runID string) ([]*QualityAlert, error) {
	var run models.PipelineRun
	if err := e.db.First(&run, "id = ?", runID).Error; err != nil {
		return nil, fmt.Errorf("获取运行记录失败: %w", err)
	}

	var alerts []*QualityAlert
	now := time.Now()

	var profiles []models.ColumnProfileRecord
	if err := e.db.Where("run_id = ?", runID).Find(&profiles).Error; err != nil {
		return nil, fmt.Errorf("查询画像记录失败: %w", err)
	}
	for _, profile := range profiles {
		alert := e.evaluateMissing(&run, &profile, now)
		if alert != nil {
			alerts = append(alerts, alert)
		}
	}

	var bounds []models.QuantileBoundsRecord
	if err := e.db.Where("run_id = ?", runID).Find(&bounds).Error; err != nil {
		return nil, fmt.Errorf("查询分位界记录失败: %w", err)
	}
	for _, bound := range bounds {
		alerts = append(alerts, e.evaluateBounds(&run, &bound, now)...)
	}

	var flags []models.AnomalyFlagRecord
	if err := e.db.Where("run_id = ?", runID).Find(&flags).Error; err != nil {
		return nil, fmt.Errorf("查询异常标记记录失败: %w", err)
	}
	for _, flag := range flags {
		if flag.MatchedPercentage < e.thresholds.AnomalyWarnPercent {
			continue
		}
		alerts = append(alerts, &QualityAlert{
			ID:          generateAlertID(),
			Type:        AlertTypeAnomalyRatio,
			Severity:    AlertSeverityWarning,
			PipelineID:  run.PipelineID,
			RunID:       runID,
			Target:      flag.RuleName,
			Message:     fmt.Sprintf("规则 %s 命中率 %.2f%% 超过阈值 %.0f%%", flag.RuleName, flag.MatchedPercentage, e.thresholds.AnomalyWarnPercent),
			MetricValue: flag.MatchedPercentage,
			Threshold:   e.thresholds.AnomalyWarnPercent,
			TriggeredAt: now,
		})
	}

	return alerts, nil
}

// EvaluateFailureStreak 评估流水线是否连续失败达到告警线
func (e *QualityAlertEvaluator) EvaluateFailureStreak(pipelineID string) (*QualityAlert, error) {
	var statuses []string
	err := e.db.Model(&models.PipelineRun{}).
		Where("pipeline_id = ? AND status IN ?", pipelineID,
			[]string{models.RunStatusSucceeded, models.RunStatusFailed}).
		Order("start_time DESC").
		Limit(e.thresholds.FailureStreak).
		Pluck("status", &statuses).Error
	if err != nil {
		return nil, fmt.Errorf("查询运行状态失败: %w", err)
	}

	if len(statuses) < e.thresholds.FailureStreak {
		return nil, nil
	}
	for _, status := range statuses {
		if status != models.RunStatusFailed {
			return nil, nil
		}
	}

	return &QualityAlert{
		ID:          generateAlertID(),
		Type:        AlertTypeRunFailures,
		Severity:    AlertSeverityCritical,
		PipelineID:  pipelineID,
		Target:      pipelineID,
		Message:     fmt.Sprintf("流水线连续失败 %d 次", e.thresholds.FailureStreak),
		MetricValue: float64(e.thresholds.FailureStreak),
		Threshold:   float64(e.thresholds.FailureStreak),
		TriggeredAt: time.Now(),
	}, nil
}

// evaluateMissing 评估单列缺失率
func (e *QualityAlertEvaluator) evaluateMissing(run *models.PipelineRun, profile *models.ColumnProfileRecord, now time.Time) *QualityAlert {
	target := profile.DatasetName + "." + profile.ColumnName

	severity := ""
	threshold := 0.0
	switch {
	case profile.MissingPercentage >= e.thresholds.MissingCritPercent:
		severity = AlertSeverityCritical
		threshold = e.thresholds.MissingCritPercent
	case profile.MissingPercentage >= e.thresholds.MissingWarnPercent:
		severity = AlertSeverityWarning
		threshold = e.thresholds.MissingWarnPercent
	default:
		return nil
	}

	return &QualityAlert{
		ID:          generateAlertID(),
		Type:        AlertTypeMissingRatio,
		Severity:    severity,
		PipelineID:  run.PipelineID,
		RunID:       run.ID,
		Target:      target,
		Message:     fmt.Sprintf("列 %s 缺失率 %.2f%% 超过阈值 %.0f%%", target, profile.MissingPercentage, threshold),
		MetricValue: profile.MissingPercentage,
		Threshold:   threshold,
		TriggeredAt: now,
	}
}

// evaluateBounds 评估分位界记录的离群率和退化分布
func (e *QualityAlertEvaluator) evaluateBounds(run *models.PipelineRun, bound *models.QuantileBoundsRecord, now time.Time) []*QualityAlert {
	target := bound.DatasetName + "." + bound.ColumnName
	var alerts []*QualityAlert

	if bound.OutlierPercentage >= e.thresholds.OutlierWarnPercent {
		alerts = append(alerts, &QualityAlert{
			ID:          generateAlertID(),
			Type:        AlertTypeOutlierRatio,
			Severity:    AlertSeverityWarning,
			PipelineID:  run.PipelineID,
			RunID:       run.ID,
			Target:      target,
			Message:     fmt.Sprintf("列 %s 离群率 %.2f%% 超过阈值 %.0f%%", target, bound.OutlierPercentage, e.thresholds.OutlierWarnPercent),
			MetricValue: bound.OutlierPercentage,
			Threshold:   e.thresholds.OutlierWarnPercent,
			TriggeredAt: now,
		})
	}

	if bound.Degenerate {
		alerts = append(alerts, &QualityAlert{
			ID:          generateAlertID(),
			Type:        AlertTypeDegenerateBounds,
			Severity:    AlertSeverityWarning,
			PipelineID:  run.PipelineID,
			RunID:       run.ID,
			Target:      target,
			Message:     fmt.Sprintf("列 %s 分布退化，分位界收敛到单点", target),
			MetricValue: 0,
			Threshold:   0,
			TriggeredAt: now,
		})
	}

	return alerts
}

// generateAlertID 生成告警ID
func generateAlertID() string {
	return fmt.Sprintf("alert_%d", time.Now().UnixNano())
}
