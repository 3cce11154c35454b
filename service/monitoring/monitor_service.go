/*
 * @module service/monitoring/monitor_service
 * @description 监控服务，聚合系统指标、运行活跃度、健康状态，并对接指标库与日志库查询
 * @architecture 分层架构 - 业务服务层
 * @documentReference ai_docs/quality_pipeline_design.md
 * @stateFlow 指标收集 -> 数据聚合 -> 状态评估 -> 查询输出
 * @rules 数据库聚合做实时计算，外部指标库与日志库查询透传失败原因
 * @dependencies dataquality-service/service/models, dataquality-service/monitor_client, gorm.io/gorm
 * @refs service/monitoring/health_checker.go, monitor_client/
 */

package monitoring

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"dataquality-service/monitor_client"
	"dataquality-service/service/models"

	"gorm.io/gorm"
)

// Loki 日志流上服务实例的标签值
const logAppLabel = "dataquality-service"

// MonitorService 监控服务
type MonitorService struct {
	db            *gorm.DB
	healthChecker *HealthChecker
}

// SystemMetrics 进程与连接池指标
type SystemMetrics struct {
	Timestamp          time.Time `json:"timestamp"`
	GoroutineCount     int       `json:"goroutine_count"`
	HeapAllocBytes     uint64    `json:"heap_alloc_bytes"`
	HeapSysBytes       uint64    `json:"heap_sys_bytes"`
	NumGC              uint32    `json:"num_gc"`
	DBOpenConnections  int       `json:"db_open_connections"`
	DBInUseConnections int       `json:"db_in_use_connections"`
	DBIdleConnections  int       `json:"db_idle_connections"`
}

// RunActivityMetrics 一段时间内的运行活跃度统计
type RunActivityMetrics struct {
	Timestamp        time.Time        `json:"timestamp"`
	TimeRange        string           `json:"time_range"`
	TotalRuns        int64            `json:"total_runs"`
	RunningRuns      int64            `json:"running_runs"`
	SucceededRuns    int64            `json:"succeeded_runs"`
	FailedRuns       int64            `json:"failed_runs"`
	SuccessRate      float64          `json:"success_rate"` // 按已完结运行计算
	AvgDurationMs    float64          `json:"avg_duration_ms"`
	RowsDeduplicated int64            `json:"rows_deduplicated"`
	FailuresByStage  map[string]int64 `json:"failures_by_stage"`
}

// DashboardMetrics 仪表板汇总指标，数据来自指标库
type DashboardMetrics struct {
	Timestamp     time.Time `json:"timestamp"`
	RunsSucceeded float64   `json:"runs_succeeded"`
	RunsFailed    float64   `json:"runs_failed"`
	RunsInFlight  float64   `json:"runs_in_flight"`
	WarningsTotal float64   `json:"warnings_total"`
	AnomalyRows   float64   `json:"anomaly_rows"`
}

// NewMonitorService 创建监控服务实例，store 可为空
func NewMonitorService(db *gorm.DB, store WarehousePinger) *MonitorService {
	return &MonitorService{
		db:            db,
		healthChecker: NewHealthChecker(db, store),
	}
}

// GetSystemMetrics 获取进程与连接池指标
func (m *MonitorService) GetSystemMetrics() (*SystemMetrics, error) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	metrics := &SystemMetrics{
		Timestamp:      time.Now(),
		GoroutineCount: runtime.NumGoroutine(),
		HeapAllocBytes: memStats.HeapAlloc,
		HeapSysBytes:   memStats.HeapSys,
		NumGC:          memStats.NumGC,
	}

	if sqlDB, err := m.db.DB(); err == nil {
		stats := sqlDB.Stats()
		metrics.DBOpenConnections = stats.OpenConnections
		metrics.DBInUseConnections = stats.InUse
		metrics.DBIdleConnections = stats.Idle
	}

	return metrics, nil
}

// GetRunActivity 统计时间窗口内的运行活跃度
func (m *MonitorService) GetRunActivity(timeRange string) (*RunActivityMetrics, error) {
	since := m.parseTimeRange(timeRange)

	metrics := &RunActivityMetrics{
		Timestamp:       time.Now(),
		TimeRange:       timeRange,
		FailuresByStage: make(map[string]int64),
	}

	m.db.Model(&models.PipelineRun{}).
		Where("start_time >= ?", since).
		Count(&metrics.TotalRuns)
	m.db.Model(&models.PipelineRun{}).
		Where("start_time >= ? AND status = ?", since, models.RunStatusRunning).
		Count(&metrics.RunningRuns)
	m.db.Model(&models.PipelineRun{}).
		Where("start_time >= ? AND status = ?", since, models.RunStatusSucceeded).
		Count(&metrics.SucceededRuns)
	m.db.Model(&models.PipelineRun{}).
		Where("start_time >= ? AND status = ?", since, models.RunStatusFailed).
		Count(&metrics.FailedRuns)

	finished := metrics.SucceededRuns + metrics.FailedRuns
	if finished > 0 {
		metrics.SuccessRate = roundPercent(float64(metrics.SucceededRuns) / float64(finished) * 100)

		m.db.Model(&models.PipelineRun{}).
			Where("start_time >= ? AND status IN ?", since,
				[]string{models.RunStatusSucceeded, models.RunStatusFailed}).
			Select("COALESCE(AVG(duration), 0)").
			Scan(&metrics.AvgDurationMs)
	}

	m.db.Model(&models.DedupStatRecord{}).
		Joins("JOIN pipeline_runs ON pipeline_runs.id = dedup_stat_records.run_id").
		Where("pipeline_runs.start_time >= ?", since).
		Select("COALESCE(SUM(dedup_stat_records.removed_count), 0)").
		Scan(&metrics.RowsDeduplicated)

	// 失败运行按所在阶段分布
	var failures []struct {
		CurrentStage string
		Count        int64
	}
	m.db.Model(&models.PipelineRun{}).
		Select("current_stage, COUNT(*) as count").
		Where("start_time >= ? AND status = ?", since, models.RunStatusFailed).
		Group("current_stage").
		Find(&failures)

	for _, f := range failures {
		stage := f.CurrentStage
		if stage == "" {
			stage = "unknown"
		}
		metrics.FailuresByStage[stage] = f.Count
	}

	return metrics, nil
}

// GetHealthStatus 获取整体健康状态
func (m *MonitorService) GetHealthStatus() (*HealthStatus, error) {
	return m.healthChecker.CheckOverallHealth()
}

// GetPipelineHealth 获取指定流水线的健康状态
func (m *MonitorService) GetPipelineHealth(pipelineID string) (*PipelineHealth, error) {
	return m.healthChecker.CheckPipelineHealth(pipelineID)
}

// GetDashboardMetrics 从指标库查询仪表板汇总指标
func (m *MonitorService) GetDashboardMetrics(ctx context.Context) (*DashboardMetrics, error) {
	metrics := &DashboardMetrics{Timestamp: time.Now()}

	targets := []struct {
		dest *float64
		expr string
	}{
		{&metrics.RunsSucceeded, `sum(dataquality_pipeline_runs_total{status="succeeded"})`},
		{&metrics.RunsFailed, `sum(dataquality_pipeline_runs_total{status="failed"})`},
		{&metrics.RunsInFlight, `sum(dataquality_pipeline_runs_in_flight)`},
		{&metrics.WarningsTotal, `sum(dataquality_run_warnings_total)`},
		{&metrics.AnomalyRows, `sum(dataquality_anomaly_matched_rows)`},
	}

	now := time.Now()
	for _, target := range targets {
		result, err := monitor_client.Query(ctx, target.expr, now)
		if err != nil {
			return nil, fmt.Errorf("查询指标库失败: %w", err)
		}

		value, err := result.FirstValue()
		if err != nil {
			return nil, fmt.Errorf("解析指标结果失败: %w", err)
		}
		*target.dest = value
	}

	return metrics, nil
}

// GetRecentLogs 从日志库查询本服务最近的日志行
func (m *MonitorService) GetRecentLogs(ctx context.Context, level string, limit, preHours int) ([]monitor_client.LokiLogLine, error) {
	selector := fmt.Sprintf(`{app=%q}`, logAppLabel)
	if level != "" {
		selector = fmt.Sprintf(`{app=%q, level=%q}`, logAppLabel, level)
	}

	result, err := monitor_client.LokiStreamQuery(ctx, selector, limit, preHours)
	if err != nil {
		return nil, fmt.Errorf("查询日志库失败: %w", err)
	}

	return result.Lines(), nil
}

// parseTimeRange 解析时间范围表达
func (m *MonitorService) parseTimeRange(timeRange string) time.Time {
	now := time.Now()

	switch timeRange {
	case "1h":
		return now.Add(-1 * time.Hour)
	case "24h":
		return now.Add(-24 * time.Hour)
	case "7d":
		return now.Add(-7 * 24 * time.Hour)
	case "30d":
		return now.Add(-30 * 24 * time.Hour)
	default:
		return now.Add(-24 * time.Hour) // 默认24小时
	}
}
