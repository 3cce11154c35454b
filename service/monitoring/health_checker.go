/*
 * @module service/monitoring/health_checker
 * @description 健康检查器，负责数据库与仓库连接检查、运行状态巡检和健康评分计算
 * @architecture 分层架构 - 业务服务层
 * @documentReference ai_docs/quality_pipeline_design.md
 * @stateFlow 组件检查 -> 运行巡检 -> 评分计算 -> 摘要汇总
 * @rules 单个组件检查失败不中断整体检查，健康评分按组件均值计算
 * @dependencies dataquality-service/service/models, gorm.io/gorm
 * @refs service/warehouse/, service/monitoring/monitor_service.go
 */

package monitoring

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"dataquality-service/service/models"

	"gorm.io/gorm"
)

const (
	// 组件检查超时
	healthCheckTimeout = 5 * time.Second
	// 运行巡检回溯窗口
	healthRunWindow = 24 * time.Hour
	// 超过该时长仍处于 running 的运行视为疑似卡死
	healthStaleRunningAfter = 6 * time.Hour
	// 单流水线健康评估采样的最近完结运行数
	pipelineHealthSampleSize = 20
)

// WarehousePinger 仓库连通性探测接口
type WarehousePinger interface {
	Ping(ctx context.Context) error
}

// HealthChecker 健康检查器
type HealthChecker struct {
	db    *gorm.DB
	store WarehousePinger
	mutex sync.Mutex
}

// HealthStatus 整体健康状态
type HealthStatus struct {
	Overall    string                      `json:"overall"` // healthy, warning, critical
	Score      int                         `json:"score"`   // 健康评分 0-100
	Timestamp  time.Time                   `json:"timestamp"`
	Components map[string]*ComponentHealth `json:"components"`
	Issues     []HealthIssue               `json:"issues"`
	Summary    HealthSummary               `json:"summary"`
}

// ComponentHealth 组件健康状态
type ComponentHealth struct {
	Name         string                 `json:"name"`
	Status       string                 `json:"status"` // healthy, warning, critical
	Score        int                    `json:"score"`  // 0-100
	LastChecked  time.Time              `json:"last_checked"`
	ResponseTime time.Duration          `json:"response_time"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	Metrics      map[string]interface{} `json:"metrics"`
}

// HealthIssue 健康问题
type HealthIssue struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`     // connection, run_failures, stale_run
	Severity    string    `json:"severity"` // warning, critical
	Component   string    `json:"component"`
	Description string    `json:"description"`
	DetectedAt  time.Time `json:"detected_at"`
	Suggestion  string    `json:"suggestion"`
}

// HealthSummary 健康摘要
type HealthSummary struct {
	TotalComponents    int `json:"total_components"`
	HealthyComponents  int `json:"healthy_components"`
	WarningComponents  int `json:"warning_components"`
	CriticalComponents int `json:"critical_components"`
}

// PipelineHealth 单条流水线的健康状态
type PipelineHealth struct {
	PipelineID          string     `json:"pipeline_id"`
	PipelineName        string     `json:"pipeline_name"`
	Status              string     `json:"status"` // healthy, warning, critical
	HealthScore         int        `json:"health_score"`
	LastRunID           string     `json:"last_run_id,omitempty"`
	LastRunStatus       string     `json:"last_run_status,omitempty"`
	LastRunTime         *time.Time `json:"last_run_time,omitempty"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	SuccessRate         float64    `json:"success_rate"` // 最近完结运行的成功率
	AvgDurationMs       float64    `json:"avg_duration_ms"`
	CheckedAt           time.Time  `json:"checked_at"`
}

// NewHealthChecker 创建健康检查器，store 可为空
func NewHealthChecker(db *gorm.DB, store WarehousePinger) *HealthChecker {
	return &HealthChecker{
		db:    db,
		store: store,
	}
}

// CheckOverallHealth 检查整体健康状态
func (h *HealthChecker) CheckOverallHealth() (*HealthStatus, error) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	status := &HealthStatus{
		Timestamp:  time.Now(),
		Components: make(map[string]*ComponentHealth),
		Issues:     []HealthIssue{},
	}

	status.Components["database"] = h.checkDatabaseHealth()
	status.Components["runtime"] = h.checkRuntimeHealth()

	if h.store != nil {
		status.Components["warehouse"] = h.checkWarehouseHealth()
	}

	runsHealth, issues := h.checkPipelineRuns()
	status.Components["pipeline_runs"] = runsHealth
	status.Issues = append(status.Issues, issues...)

	// 连接类组件异常时补充问题项
	for name, component := range status.Components {
		if component.Status == "critical" && component.ErrorMessage != "" {
			status.Issues = append(status.Issues, HealthIssue{
				ID:          fmt.Sprintf("%s_%d", name, time.Now().UnixNano()),
				Type:        "connection",
				Severity:    "critical",
				Component:   name,
				Description: component.ErrorMessage,
				DetectedAt:  time.Now(),
				Suggestion:  "检查连接配置和网络连通性",
			})
		}
	}

	h.calculateOverallHealth(status)
	h.generateHealthSummary(status)

	return status, nil
}

// CheckPipelineHealth 检查指定流水线的健康状态
func (h *HealthChecker) CheckPipelineHealth(pipelineID string) (*PipelineHealth, error) {
	var definition models.PipelineDefinition
	if err := h.db.First(&definition, "id = ?", pipelineID).Error; err != nil {
		return nil, fmt.Errorf("获取流水线失败: %w", err)
	}

	health := &PipelineHealth{
		PipelineID:   pipelineID,
		PipelineName: definition.Name,
		SuccessRate:  100,
		CheckedAt:    time.Now(),
	}

	var lastRun models.PipelineRun
	err := h.db.Where("pipeline_id = ?", pipelineID).
		Order("start_time DESC").
		First(&lastRun).Error
	if err == nil {
		health.LastRunID = lastRun.ID
		health.LastRunStatus = lastRun.Status
		startTime := lastRun.StartTime
		health.LastRunTime = &startTime
	}

	// 最近完结运行按时间倒序采样，统计成功率和连续失败次数
	var statuses []string
	h.db.Model(&models.PipelineRun{}).
		Where("pipeline_id = ? AND status IN ?", pipelineID,
			[]string{models.RunStatusSucceeded, models.RunStatusFailed}).
		Order("start_time DESC").
		Limit(pipelineHealthSampleSize).
		Pluck("status", &statuses)

	if len(statuses) > 0 {
		succeeded := 0
		for _, s := range statuses {
			if s == models.RunStatusSucceeded {
				succeeded++
			}
		}
		health.SuccessRate = roundPercent(float64(succeeded) / float64(len(statuses)) * 100)

		for _, s := range statuses {
			if s != models.RunStatusFailed {
				break
			}
			health.ConsecutiveFailures++
		}

		h.db.Model(&models.PipelineRun{}).
			Where("pipeline_id = ? AND status IN ?", pipelineID,
				[]string{models.RunStatusSucceeded, models.RunStatusFailed}).
			Select("COALESCE(AVG(duration), 0)").
			Scan(&health.AvgDurationMs)
	}

	health.HealthScore = h.scorePipeline(health.SuccessRate, health.ConsecutiveFailures)
	health.Status = h.getStatusFromScore(health.HealthScore)

	return health, nil
}

// checkDatabaseHealth 检查业务数据库连接
func (h *HealthChecker) checkDatabaseHealth() *ComponentHealth {
	startTime := time.Now()
	health := &ComponentHealth{
		Name:        "database",
		LastChecked: startTime,
		Metrics:     make(map[string]interface{}),
	}

	if err := h.db.Raw("SELECT 1").Scan(new(int)).Error; err != nil {
		health.Status = "critical"
		health.Score = 0
		health.ErrorMessage = err.Error()
		return health
	}

	health.Status = "healthy"
	health.Score = 100
	health.ResponseTime = time.Since(startTime)

	if sqlDB, err := h.db.DB(); err == nil {
		stats := sqlDB.Stats()
		health.Metrics["open_connections"] = stats.OpenConnections
		health.Metrics["idle_connections"] = stats.Idle
		health.Metrics["in_use_connections"] = stats.InUse
	}

	return health
}

// checkWarehouseHealth 检查数据仓库连接
func (h *HealthChecker) checkWarehouseHealth() *ComponentHealth {
	startTime := time.Now()
	health := &ComponentHealth{
		Name:        "warehouse",
		LastChecked: startTime,
		Metrics:     make(map[string]interface{}),
	}

	ctx, cancel := context.WithTimeout(context.Background(), healthCheckTimeout)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		health.Status = "critical"
		health.Score = 0
		health.ErrorMessage = err.Error()
		return health
	}

	health.Status = "healthy"
	health.Score = 100
	health.ResponseTime = time.Since(startTime)

	return health
}

// checkRuntimeHealth 检查进程运行时状态
func (h *HealthChecker) checkRuntimeHealth() *ComponentHealth {
	health := &ComponentHealth{
		Name:        "runtime",
		LastChecked: time.Now(),
		Metrics:     make(map[string]interface{}),
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	goroutines := runtime.NumGoroutine()
	health.Metrics["goroutine_count"] = goroutines
	health.Metrics["heap_alloc_bytes"] = memStats.HeapAlloc
	health.Metrics["heap_sys_bytes"] = memStats.HeapSys
	health.Metrics["num_gc"] = memStats.NumGC

	health.Status = "healthy"
	health.Score = 100
	if goroutines > 10000 {
		health.Status = "warning"
		health.Score = 70
	}

	return health
}

// checkPipelineRuns 巡检近期运行，识别高失败率和疑似卡死的运行
func (h *HealthChecker) checkPipelineRuns() (*ComponentHealth, []HealthIssue) {
	now := time.Now()
	health := &ComponentHealth{
		Name:        "pipeline_runs",
		LastChecked: now,
		Metrics:     make(map[string]interface{}),
	}
	var issues []HealthIssue

	since := now.Add(-healthRunWindow)

	var finished, failed int64
	h.db.Model(&models.PipelineRun{}).
		Where("start_time >= ? AND status IN ?", since,
			[]string{models.RunStatusSucceeded, models.RunStatusFailed}).
		Count(&finished)
	h.db.Model(&models.PipelineRun{}).
		Where("start_time >= ? AND status = ?", since, models.RunStatusFailed).
		Count(&failed)

	var staleRunning int64
	h.db.Model(&models.PipelineRun{}).
		Where("status = ? AND start_time < ?", models.RunStatusRunning, now.Add(-healthStaleRunningAfter)).
		Count(&staleRunning)

	health.Metrics["finished_runs_24h"] = finished
	health.Metrics["failed_runs_24h"] = failed
	health.Metrics["stale_running_runs"] = staleRunning

	score := 100
	if finished > 0 {
		failureRatio := float64(failed) / float64(finished)
		health.Metrics["failure_ratio"] = roundPercent(failureRatio * 100)

		if failureRatio >= 0.5 {
			score = 40
		} else if failureRatio >= 0.2 {
			score = 70
		}

		if score < 100 {
			issues = append(issues, HealthIssue{
				ID:          fmt.Sprintf("run_failures_%d", now.UnixNano()),
				Type:        "run_failures",
				Severity:    h.severityFromScore(score),
				Component:   "pipeline_runs",
				Description: fmt.Sprintf("近24小时运行失败率 %.1f%%（%d/%d）", failureRatio*100, failed, finished),
				DetectedAt:  now,
				Suggestion:  "查看失败运行的错误信息和所在阶段",
			})
		}
	}

	if staleRunning > 0 {
		score -= 20
		issues = append(issues, HealthIssue{
			ID:          fmt.Sprintf("stale_run_%d", now.UnixNano()),
			Type:        "stale_run",
			Severity:    "warning",
			Component:   "pipeline_runs",
			Description: fmt.Sprintf("%d 个运行超过 %s 仍未完结", staleRunning, healthStaleRunningAfter),
			DetectedAt:  now,
			Suggestion:  "确认服务是否发生过中断，必要时人工终结运行",
		})
	}

	if score < 0 {
		score = 0
	}
	health.Score = score
	health.Status = h.getStatusFromScore(score)

	return health, issues
}

// scorePipeline 计算单流水线健康评分
func (h *HealthChecker) scorePipeline(successRate float64, consecutiveFailures int) int {
	score := int(successRate)
	score -= 15 * consecutiveFailures
	if score < 0 {
		score = 0
	}
	return score
}

// getStatusFromScore 根据评分获取状态
func (h *HealthChecker) getStatusFromScore(score int) string {
	if score >= 80 {
		return "healthy"
	} else if score >= 60 {
		return "warning"
	}
	return "critical"
}

// severityFromScore 评分对应的问题级别
func (h *HealthChecker) severityFromScore(score int) string {
	if score < 60 {
		return "critical"
	}
	return "warning"
}

// calculateOverallHealth 计算整体健康评分，取组件均值
func (h *HealthChecker) calculateOverallHealth(status *HealthStatus) {
	totalScore := 0
	componentCount := 0

	for _, component := range status.Components {
		totalScore += component.Score
		componentCount++
	}

	if componentCount > 0 {
		status.Score = totalScore / componentCount
	}
	status.Overall = h.getStatusFromScore(status.Score)
}

// generateHealthSummary 生成健康摘要
func (h *HealthChecker) generateHealthSummary(status *HealthStatus) {
	summary := HealthSummary{TotalComponents: len(status.Components)}

	for _, component := range status.Components {
		switch component.Status {
		case "healthy":
			summary.HealthyComponents++
		case "warning":
			summary.WarningComponents++
		case "critical":
			summary.CriticalComponents++
		}
	}

	status.Summary = summary
}

// roundPercent 百分比保留两位小数
func roundPercent(value float64) float64 {
	return float64(int(value*100+0.5)) / 100
}
