/*
 * @module service/quality_report_service
 * @description 质量报告服务，聚合单次运行的画像、去重、分位界、封顶校验与异常标记记录，支持Redis缓存与质量趋势查询
 * @architecture 分层架构 - 业务逻辑层
 * @documentReference ai_docs/quality_pipeline_design.md
 * @stateFlow 运行结束 -> 记录表落库 -> 报告按需聚合 -> 缓存 -> 查询/失效
 * @rules 只缓存已结束运行的报告，缓存故障降级为直查数据库，运行删除时同步失效缓存
 * @dependencies gorm.io/gorm, log/slog
 * @refs api/controllers/quality_report_controller.go, service/cleanup/cleanup_service.go, client/connectors/redis_connector.go
 */

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"dataquality-service/service/models"

	"gorm.io/gorm"
)

const (
	// reportCacheTTL 报告缓存有效期
	reportCacheTTL = 10 * time.Minute
	// reportCacheKeyPrefix 报告缓存键前缀
	reportCacheKeyPrefix = "report:run:"
	// trendMaxRuns 趋势查询最多纳入的运行数
	trendMaxRuns = 200
)

// ReportCache 报告缓存接口，由Redis连接器实现
type ReportCache interface {
	Get(key string) (interface{}, error)
	Set(key string, value interface{}, expiration time.Duration) error
	Delete(keys ...string) error
}

// QualityReportService 质量报告服务
type QualityReportService struct {
	db    *gorm.DB
	cache ReportCache
}

// NewQualityReportService 创建质量报告服务实例，cache为nil时直查数据库
func NewQualityReportService(db *gorm.DB, cache ReportCache) *QualityReportService {
	return &QualityReportService{
		db:    db,
		cache: cache,
	}
}

// RunQualityReport 单次运行的完整质量报告
type RunQualityReport struct {
	RunID         string                        `json:"run_id"`
	PipelineID    string                        `json:"pipeline_id"`
	PipelineName  string                        `json:"pipeline_name"`
	Status        string                        `json:"status"`
	TriggeredBy   string                        `json:"triggered_by"`
	StartTime     time.Time                     `json:"start_time"`
	EndTime       *time.Time                    `json:"end_time,omitempty"`
	Duration      int64                         `json:"duration"`
	ErrorMessage  string                        `json:"error_message,omitempty"`
	Statistics    models.JSONB                  `json:"statistics,omitempty"`
	Warnings      models.JSONBArray             `json:"warnings,omitempty"`
	Stages        []models.StageRun             `json:"stages"`
	Profiles      []models.ColumnProfileRecord  `json:"profiles"`
	DedupStats    []models.DedupStatRecord      `json:"dedup_stats"`
	Bounds        []models.QuantileBoundsRecord `json:"bounds"`
	CappingChecks []models.CappingVerifyRecord  `json:"capping_checks"`
	AnomalyFlags  []models.AnomalyFlagRecord    `json:"anomaly_flags"`
	GeneratedAt   time.Time                     `json:"generated_at"`
}

// ProfileQueryRequest 画像记录查询请求
type ProfileQueryRequest struct {
	Page        int    `form:"page"`
	Size        int    `form:"size"`
	RunID       string `form:"run_id"`
	DatasetName string `form:"dataset_name"`
	ColumnName  string `form:"column_name"`
}

// ProfileListResponse 画像记录列表响应
type ProfileListResponse struct {
	Profiles   []models.ColumnProfileRecord `json:"profiles"`
	Pagination *PaginationInfo              `json:"pagination"`
}

// BoundsQueryRequest 分位界记录查询请求
type BoundsQueryRequest struct {
	Page        int    `form:"page"`
	Size        int    `form:"size"`
	RunID       string `form:"run_id"`
	DatasetName string `form:"dataset_name"`
	ColumnName  string `form:"column_name"`
	Method      string `form:"method"`
}

// BoundsListResponse 分位界记录列表响应
type BoundsListResponse struct {
	Bounds     []models.QuantileBoundsRecord `json:"bounds"`
	Pagination *PaginationInfo               `json:"pagination"`
}

// FlagQueryRequest 异常标记记录查询请求
type FlagQueryRequest struct {
	Page          int    `form:"page"`
	Size          int    `form:"size"`
	RunID         string `form:"run_id"`
	RuleName      string `form:"rule_name"`
	SourceDataset string `form:"source_dataset"`
}

// FlagListResponse 异常标记记录列表响应
type FlagListResponse struct {
	Flags      []models.AnomalyFlagRecord `json:"flags"`
	Pagination *PaginationInfo            `json:"pagination"`
}

// QualityTrendPoint 质量趋势数据点，按运行聚合
type QualityTrendPoint struct {
	RunID                string    `json:"run_id"`
	StartTime            time.Time `json:"start_time"`
	Status               string    `json:"status"`
	AvgMissingPercentage float64   `json:"avg_missing_percentage"`
	RemovedCount         int64     `json:"removed_count"`
	OutlierCount         int64     `json:"outlier_count"`
	FlaggedCount         int64     `json:"flagged_count"`
}

// GetRunReport 获取单次运行的完整质量报告，已结束运行的报告走缓存
func (s *QualityReportService) GetRunReport(ctx context.Context, runID string) (*RunQualityReport, error) {
	if cached := s.loadCachedReport(runID); cached != nil {
		return cached, nil
	}

	var run models.PipelineRun
	if err := s.db.WithContext(ctx).
		Preload("Stages", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		First(&run, "id = ?", runID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("运行不存在: %s", runID)
		}
		return nil, fmt.Errorf("查询运行失败: %w", err)
	}

	report := &RunQualityReport{
		RunID:        run.ID,
		PipelineID:   run.PipelineID,
		Status:       run.Status,
		TriggeredBy:  run.TriggeredBy,
		StartTime:    run.StartTime,
		EndTime:      run.EndTime,
		Duration:     run.Duration,
		ErrorMessage: run.ErrorMessage,
		Statistics:   run.Statistics,
		Warnings:     run.Warnings,
		Stages:       run.Stages,
		GeneratedAt:  time.Now(),
	}

	// 流水线定义可能已删除，名称留空
	var definition models.PipelineDefinition
	err := s.db.WithContext(ctx).Select("id", "name").
		First(&definition, "id = ?", run.PipelineID).Error
	if err == nil {
		report.PipelineName = definition.Name
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("查询流水线定义失败: %w", err)
	}

	if err := s.db.WithContext(ctx).Where("run_id = ?", runID).
		Order("dataset_name ASC, column_name ASC").
		Find(&report.Profiles).Error; err != nil {
		return nil, fmt.Errorf("查询画像记录失败: %w", err)
	}
	if err := s.db.WithContext(ctx).Where("run_id = ?", runID).
		Order("dataset_name ASC").
		Find(&report.DedupStats).Error; err != nil {
		return nil, fmt.Errorf("查询去重统计失败: %w", err)
	}
	if err := s.db.WithContext(ctx).Where("run_id = ?", runID).
		Order("dataset_name ASC, column_name ASC").
		Find(&report.Bounds).Error; err != nil {
		return nil, fmt.Errorf("查询分位界记录失败: %w", err)
	}
	if err := s.db.WithContext(ctx).Where("run_id = ?", runID).
		Order("dataset_name ASC, column_name ASC").
		Find(&report.CappingChecks).Error; err != nil {
		return nil, fmt.Errorf("查询封顶校验记录失败: %w", err)
	}
	if err := s.db.WithContext(ctx).Where("run_id = ?", runID).
		Order("position ASC").
		Find(&report.AnomalyFlags).Error; err != nil {
		return nil, fmt.Errorf("查询异常标记记录失败: %w", err)
	}

	// 已结束的运行不再变化，报告可以缓存
	if run.IsFinished() {
		s.storeCachedReport(report)
	}

	return report, nil
}

// GetLatestReport 获取指定流水线最近一次已结束运行的报告
func (s *QualityReportService) GetLatestReport(ctx context.Context, pipelineID string) (*RunQualityReport, error) {
	var run models.PipelineRun
	err := s.db.WithContext(ctx).
		Where("pipeline_id = ? AND status IN ?", pipelineID,
			[]string{models.RunStatusSucceeded, models.RunStatusFailed}).
		Order("start_time DESC").
		First(&run).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("流水线 %s 没有已结束的运行", pipelineID)
		}
		return nil, fmt.Errorf("查询最近运行失败: %w", err)
	}

	return s.GetRunReport(ctx, run.ID)
}

// ListColumnProfiles 分页查询画像记录
func (s *QualityReportService) ListColumnProfiles(ctx context.Context, req *ProfileQueryRequest) (*ProfileListResponse, error) {
	page, size := normalizePage(req.Page, req.Size)

	query := s.db.WithContext(ctx).Model(&models.ColumnProfileRecord{})
	if req.RunID != "" {
		query = query.Where("run_id = ?", req.RunID)
	}
	if req.DatasetName != "" {
		query = query.Where("dataset_name = ?", req.DatasetName)
	}
	if req.ColumnName != "" {
		query = query.Where("column_name = ?", req.ColumnName)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("统计画像记录失败: %w", err)
	}

	var profiles []models.ColumnProfileRecord
	if err := query.Order("created_at DESC, dataset_name ASC, column_name ASC").
		Offset((page - 1) * size).Limit(size).
		Find(&profiles).Error; err != nil {
		return nil, fmt.Errorf("查询画像记录失败: %w", err)
	}

	return &ProfileListResponse{
		Profiles: profiles,
		Pagination: &PaginationInfo{
			Page:       page,
			Size:       size,
			Total:      total,
			TotalPages: (total + int64(size) - 1) / int64(size),
		},
	}, nil
}

// ListQuantileBounds 分页查询分位界记录
func (s *QualityReportService) ListQuantileBounds(ctx context.Context, req *BoundsQueryRequest) (*BoundsListResponse, error) {
	page, size := normalizePage(req.Page, req.Size)

	query := s.db.WithContext(ctx).Model(&models.QuantileBoundsRecord{})
	if req.RunID != "" {
		query = query.Where("run_id = ?", req.RunID)
	}
	if req.DatasetName != "" {
		query = query.Where("dataset_name = ?", req.DatasetName)
	}
	if req.ColumnName != "" {
		query = query.Where("column_name = ?", req.ColumnName)
	}
	if req.Method != "" {
		query = query.Where("method = ?", req.Method)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("统计分位界记录失败: %w", err)
	}

	var bounds []models.QuantileBoundsRecord
	if err := query.Order("created_at DESC, dataset_name ASC, column_name ASC").
		Offset((page - 1) * size).Limit(size).
		Find(&bounds).Error; err != nil {
		return nil, fmt.Errorf("查询分位界记录失败: %w", err)
	}

	return &BoundsListResponse{
		Bounds: bounds,
		Pagination: &PaginationInfo{
			Page:       page,
			Size:       size,
			Total:      total,
			TotalPages: (total + int64(size) - 1) / int64(size),
		},
	}, nil
}

// ListAnomalyFlags 分页查询异常标记记录
func (s *QualityReportService) ListAnomalyFlags(ctx context.Context, req *FlagQueryRequest) (*FlagListResponse, error) {
	page, size := normalizePage(req.Page, req.Size)

	query := s.db.WithContext(ctx).Model(&models.AnomalyFlagRecord{})
	if req.RunID != "" {
		query = query.Where("run_id = ?", req.RunID)
	}
	if req.RuleName != "" {
		query = query.Where("rule_name = ?", req.RuleName)
	}
	if req.SourceDataset != "" {
		query = query.Where("source_dataset = ?", req.SourceDataset)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("统计异常标记记录失败: %w", err)
	}

	var flags []models.AnomalyFlagRecord
	if err := query.Order("created_at DESC, position ASC").
		Offset((page - 1) * size).Limit(size).
		Find(&flags).Error; err != nil {
		return nil, fmt.Errorf("查询异常标记记录失败: %w", err)
	}

	return &FlagListResponse{
		Flags: flags,
		Pagination: &PaginationInfo{
			Page:       page,
			Size:       size,
			Total:      total,
			TotalPages: (total + int64(size) - 1) / int64(size),
		},
	}, nil
}

// GetQualityTrend 按运行聚合质量趋势，用于仪表盘折线图
func (s *QualityReportService) GetQualityTrend(ctx context.Context, pipelineID string, days int) ([]QualityTrendPoint, error) {
	if pipelineID == "" {
		return nil, fmt.Errorf("流水线ID不能为空")
	}
	if days <= 0 {
		days = 30
	}

	since := time.Now().AddDate(0, 0, -days)

	var runs []models.PipelineRun
	if err := s.db.WithContext(ctx).
		Select("id", "status", "start_time").
		Where("pipeline_id = ? AND start_time >= ? AND status IN ?", pipelineID, since,
			[]string{models.RunStatusSucceeded, models.RunStatusFailed}).
		Order("start_time ASC").
		Limit(trendMaxRuns).
		Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("查询趋势运行失败: %w", err)
	}

	if len(runs) == 0 {
		return []QualityTrendPoint{}, nil
	}

	runIDs := make([]string, 0, len(runs))
	points := make(map[string]*QualityTrendPoint, len(runs))
	ordered := make([]QualityTrendPoint, 0, len(runs))
	for _, run := range runs {
		runIDs = append(runIDs, run.ID)
		points[run.ID] = &QualityTrendPoint{
			RunID:     run.ID,
			StartTime: run.StartTime,
			Status:    run.Status,
		}
	}

	type runAggregate struct {
		RunID string  `gorm:"column:run_id"`
		Value float64 `gorm:"column:value"`
	}

	var missing []runAggregate
	if err := s.db.WithContext(ctx).Model(&models.ColumnProfileRecord{}).
		Select("run_id, AVG(missing_percentage) AS value").
		Where("run_id IN ?", runIDs).
		Group("run_id").
		Scan(&missing).Error; err != nil {
		return nil, fmt.Errorf("聚合缺失率失败: %w", err)
	}
	for _, row := range missing {
		if point, ok := points[row.RunID]; ok {
			point.AvgMissingPercentage = math.Round(row.Value*100) / 100
		}
	}

	var removed []runAggregate
	if err := s.db.WithContext(ctx).Model(&models.DedupStatRecord{}).
		Select("run_id, SUM(removed_count) AS value").
		Where("run_id IN ?", runIDs).
		Group("run_id").
		Scan(&removed).Error; err != nil {
		return nil, fmt.Errorf("聚合去重统计失败: %w", err)
	}
	for _, row := range removed {
		if point, ok := points[row.RunID]; ok {
			point.RemovedCount = int64(row.Value)
		}
	}

	var outliers []runAggregate
	if err := s.db.WithContext(ctx).Model(&models.QuantileBoundsRecord{}).
		Select("run_id, SUM(outlier_count) AS value").
		Where("run_id IN ?", runIDs).
		Group("run_id").
		Scan(&outliers).Error; err != nil {
		return nil, fmt.Errorf("聚合离群统计失败: %w", err)
	}
	for _, row := range outliers {
		if point, ok := points[row.RunID]; ok {
			point.OutlierCount = int64(row.Value)
		}
	}

	var flagged []runAggregate
	if err := s.db.WithContext(ctx).Model(&models.AnomalyFlagRecord{}).
		Select("run_id, SUM(matched_count) AS value").
		Where("run_id IN ?", runIDs).
		Group("run_id").
		Scan(&flagged).Error; err != nil {
		return nil, fmt.Errorf("聚合异常标记失败: %w", err)
	}
	for _, row := range flagged {
		if point, ok := points[row.RunID]; ok {
			point.FlaggedCount = int64(row.Value)
		}
	}

	for _, run := range runs {
		ordered = append(ordered, *points[run.ID])
	}
	return ordered, nil
}

// InvalidateRunReports 失效指定运行的报告缓存，清理服务删除运行前调用
func (s *QualityReportService) InvalidateRunReports(runIDs ...string) {
	if s.cache == nil || len(runIDs) == 0 {
		return
	}

	keys := make([]string, 0, len(runIDs))
	for _, runID := range runIDs {
		keys = append(keys, reportCacheKeyPrefix+runID)
	}
	if err := s.cache.Delete(keys...); err != nil {
		slog.Warn("失效报告缓存失败", "count", len(keys), "error", err)
	}
}

// loadCachedReport 读取缓存的报告，缓存故障或格式不符时返回nil
func (s *QualityReportService) loadCachedReport(runID string) *RunQualityReport {
	if s.cache == nil {
		return nil
	}

	value, err := s.cache.Get(reportCacheKeyPrefix + runID)
	if err != nil {
		slog.Warn("读取报告缓存失败", "run_id", runID, "error", err)
		return nil
	}
	if value == nil {
		return nil
	}

	// 缓存层返回通用JSON结构，重新编解码还原报告
	data, err := json.Marshal(value)
	if err != nil {
		return nil
	}
	var report RunQualityReport
	if err := json.Unmarshal(data, &report); err != nil {
		slog.Warn("解析报告缓存失败", "run_id", runID, "error", err)
		return nil
	}
	if report.RunID != runID {
		return nil
	}
	return &report
}

// storeCachedReport 写入报告缓存，失败只记录日志
func (s *QualityReportService) storeCachedReport(report *RunQualityReport) {
	if s.cache == nil {
		return
	}

	if err := s.cache.Set(reportCacheKeyPrefix+report.RunID, report, reportCacheTTL); err != nil {
		slog.Warn("写入报告缓存失败", "run_id", report.RunID, "error", err)
	}
}
