/*
 * @module service/pipeline_service
 * @description 质量流水线管理服务，负责流水线定义的增删改查、运行触发与取消、运行查询与统计
 * @architecture 分层架构 - 服务层
 * @documentReference ai_docs/quality_pipeline_design.md
 * @stateFlow 定义校验 -> 持久化 -> 触发时获取运行锁 -> 引擎后台执行 -> 运行查询与统计
 * @rules 同一流水线同一时刻最多一个运行，手动触发受限流约束；
 *        内置流水线不允许修改和删除，启停除外
 * @dependencies gorm.io/gorm, service/pipeline_engine, service/distributed_lock, service/rate_limiter
 * @refs api/controllers/pipeline_controller.go, service/scheduler/pipeline_scheduler.go
 */

package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"dataquality-service/service/distributed_lock"
	"dataquality-service/service/meta"
	"dataquality-service/service/models"
	"dataquality-service/service/pipeline_engine"
	"dataquality-service/service/rate_limiter"

	"github.com/lib/pq"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// 运行锁与手动触发限流的默认配置
// 锁的TTL要大于常规运行时长，运行期间按固定间隔续期
const (
	runLockTTL             = 30 * time.Minute
	runLockRefreshInterval = 5 * time.Minute

	triggerWindowSeconds = 60
	triggerGlobalLimit   = 100
	triggerPipelineLimit = 6
)

// PipelineService 质量流水线管理服务
type PipelineService struct {
	db          *gorm.DB
	engine      *pipeline_engine.PipelineEngine
	lock        distributed_lock.DistributedLock
	rateLimiter *rate_limiter.RedisRateLimiter

	// 本实例运行中流水线的取消句柄，键为流水线ID
	cancelMutex sync.Mutex
	runCancels  map[string]context.CancelFunc
}

// NewPipelineService 创建流水线管理服务
// lock 与 rateLimiter 允许为空，为空时跳过对应的保护
func NewPipelineService(db *gorm.DB, engine *pipeline_engine.PipelineEngine,
	lock distributed_lock.DistributedLock, rateLimiter *rate_limiter.RedisRateLimiter) *PipelineService {
	return &PipelineService{
		db:          db,
		engine:      engine,
		lock:        lock,
		rateLimiter: rateLimiter,
		runCancels:  make(map[string]context.CancelFunc),
	}
}

// RuleConfigRequest 异常规则配置请求
type RuleConfigRequest struct {
	Name          string                   `json:"name" binding:"required"`
	SourceDataset string                   `json:"source_dataset" binding:"required"`
	Logic         string                   `json:"logic,omitempty"`
	Conditions    []map[string]interface{} `json:"conditions,omitempty"`
	Script        string                   `json:"script,omitempty"`
	Fields        []string                 `json:"fields,omitempty"`
	Description   string                   `json:"description,omitempty"`
	IsEnabled     *bool                    `json:"is_enabled,omitempty"`
}

// CreatePipelineRequest 创建流水线请求
type CreatePipelineRequest struct {
	Name           string              `json:"name" binding:"required"`
	Description    string              `json:"description,omitempty"`
	DatasetName    string              `json:"dataset_name" binding:"required"`
	SourceTable    string              `json:"source_table" binding:"required"`
	ProfileColumns []string            `json:"profile_columns,omitempty"`
	KeyColumns     []string            `json:"key_columns" binding:"required"`
	TieBreakOrder  []meta.TieBreakMeta `json:"tie_break_order,omitempty"`
	OutlierColumns []string            `json:"outlier_columns,omitempty"`
	QuantileMethod string              `json:"quantile_method,omitempty"`
	Schedule       string              `json:"schedule,omitempty"`
	Rules          []RuleConfigRequest `json:"rules,omitempty"`
	CreatedBy      string              `json:"created_by"`
}

// UpdatePipelineRequest 更新流水线请求，空指针字段保持原值
// Rules 为 nil 表示不修改规则，空数组表示清空规则
type UpdatePipelineRequest struct {
	Name           *string             `json:"name,omitempty"`
	Description    *string             `json:"description,omitempty"`
	DatasetName    *string             `json:"dataset_name,omitempty"`
	SourceTable    *string             `json:"source_table,omitempty"`
	ProfileColumns []string            `json:"profile_columns,omitempty"`
	KeyColumns     []string            `json:"key_columns,omitempty"`
	TieBreakOrder  []meta.TieBreakMeta `json:"tie_break_order,omitempty"`
	OutlierColumns []string            `json:"outlier_columns,omitempty"`
	QuantileMethod *string             `json:"quantile_method,omitempty"`
	Schedule       *string             `json:"schedule,omitempty"`
	Rules          []RuleConfigRequest `json:"rules,omitempty"`
	UpdatedBy      string              `json:"updated_by"`
}

// GetPipelineListRequest 获取流水线列表请求
type GetPipelineListRequest struct {
	Page        int    `json:"page"`
	Size        int    `json:"size"`
	Keyword     string `json:"keyword,omitempty"`
	DatasetName string `json:"dataset_name,omitempty"`
	IsEnabled   *bool  `json:"is_enabled,omitempty"`
	IsBuiltIn   *bool  `json:"is_built_in,omitempty"`
}

// PipelineListResponse 流水线列表响应
type PipelineListResponse struct {
	Pipelines  []models.PipelineDefinition `json:"pipelines"`
	Pagination PaginationInfo              `json:"pagination"`
}

// GetRunListRequest 获取运行列表请求
type GetRunListRequest struct {
	Page        int    `json:"page"`
	Size        int    `json:"size"`
	PipelineID  string `json:"pipeline_id,omitempty"`
	Status      string `json:"status,omitempty"`
	TriggeredBy string `json:"triggered_by,omitempty"`
}

// RunListResponse 运行列表响应
type RunListResponse struct {
	Runs       []models.PipelineRunSummary `json:"runs"`
	Pagination PaginationInfo              `json:"pagination"`
}

// PaginationInfo 分页信息
type PaginationInfo struct {
	Page       int   `json:"page"`
	Size       int   `json:"size"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"total_pages"`
}

// TriggerRunResponse 触发运行响应
// 运行在后台执行，调用方通过运行列表或SSE跟踪进度
type TriggerRunResponse struct {
	PipelineID   string    `json:"pipeline_id"`
	PipelineName string    `json:"pipeline_name"`
	TriggeredBy  string    `json:"triggered_by"`
	Status       string    `json:"status"`
	TriggeredAt  time.Time `json:"triggered_at"`
}

// PipelineRunStatistics 运行统计信息
type PipelineRunStatistics struct {
	TotalPipelines   int64   `json:"total_pipelines"`
	EnabledPipelines int64   `json:"enabled_pipelines"`
	TotalRuns        int64   `json:"total_runs"`
	PendingRuns      int64   `json:"pending_runs"`
	RunningRuns      int64   `json:"running_runs"`
	SucceededRuns    int64   `json:"succeeded_runs"`
	FailedRuns       int64   `json:"failed_runs"`
	SuccessRate      float64 `json:"success_rate"`
}

// CreatePipeline 创建流水线定义
func (s *PipelineService) CreatePipeline(ctx context.Context, req *CreatePipelineRequest) (*models.PipelineDefinition, error) {
	if err := validatePipelineSpec(req.Name, req.DatasetName, req.SourceTable,
		req.KeyColumns, req.TieBreakOrder, req.QuantileMethod, req.Schedule); err != nil {
		return nil, err
	}
	if err := validateRuleConfigs(req.Rules); err != nil {
		return nil, err
	}

	var existing models.PipelineDefinition
	if err := s.db.Where("name = ?", req.Name).First(&existing).Error; err == nil {
		return nil, fmt.Errorf("流水线名称 %s 已存在", req.Name)
	}

	quantileMethod := req.QuantileMethod
	if quantileMethod == "" {
		quantileMethod = "auto"
	}

	definition := &models.PipelineDefinition{
		Name:           req.Name,
		Description:    req.Description,
		DatasetName:    req.DatasetName,
		SourceTable:    req.SourceTable,
		ProfileColumns: pq.StringArray(req.ProfileColumns),
		KeyColumns:     pq.StringArray(req.KeyColumns),
		TieBreakOrder:  convertTieBreakMeta(req.TieBreakOrder),
		OutlierColumns: pq.StringArray(req.OutlierColumns),
		QuantileMethod: quantileMethod,
		Schedule:       req.Schedule,
		IsEnabled:      true,
		CreatedBy:      req.CreatedBy,
		UpdatedBy:      req.CreatedBy,
	}
	for i, ruleReq := range req.Rules {
		definition.Rules = append(definition.Rules, buildRuleConfig(ruleReq, i, req.CreatedBy))
	}

	if err := s.db.Create(definition).Error; err != nil {
		return nil, fmt.Errorf("创建流水线失败: %w", err)
	}

	return definition, nil
}

// GetPipelineByID 根据ID获取流水线定义，规则按声明位置排序
func (s *PipelineService) GetPipelineByID(ctx context.Context, pipelineID string) (*models.PipelineDefinition, error) {
	var definition models.PipelineDefinition
	if err := s.db.Preload("Rules", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	}).First(&definition, "id = ?", pipelineID).Error; err != nil {
		return nil, fmt.Errorf("流水线不存在: %w", err)
	}
	return &definition, nil
}

// GetPipelineList 获取流水线列表
func (s *PipelineService) GetPipelineList(ctx context.Context, req *GetPipelineListRequest) (*PipelineListResponse, error) {
	page, size := normalizePage(req.Page, req.Size)

	query := s.db.Model(&models.PipelineDefinition{})
	if req.Keyword != "" {
		query = query.Where("name LIKE ? OR description LIKE ?",
			"%"+req.Keyword+"%", "%"+req.Keyword+"%")
	}
	if req.DatasetName != "" {
		query = query.Where("dataset_name = ?", req.DatasetName)
	}
	if req.IsEnabled != nil {
		query = query.Where("is_enabled = ?", *req.IsEnabled)
	}
	if req.IsBuiltIn != nil {
		query = query.Where("is_built_in = ?", *req.IsBuiltIn)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("获取流水线总数失败: %w", err)
	}

	offset := (page - 1) * size
	var pipelines []models.PipelineDefinition
	if err := query.Preload("Rules", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	}).Order("is_built_in DESC, created_at DESC").
		Offset(offset).Limit(size).
		Find(&pipelines).Error; err != nil {
		return nil, fmt.Errorf("查询流水线列表失败: %w", err)
	}

	totalPages := (total + int64(size) - 1) / int64(size)

	return &PipelineListResponse{
		Pipelines: pipelines,
		Pagination: PaginationInfo{
			Page:       page,
			Size:       size,
			Total:      total,
			TotalPages: totalPages,
		},
	}, nil
}

// UpdatePipeline 更新流水线定义
// 内置流水线和存在进行中运行的流水线不允许更新
func (s *PipelineService) UpdatePipeline(ctx context.Context, pipelineID string, req *UpdatePipelineRequest) (*models.PipelineDefinition, error) {
	var definition models.PipelineDefinition
	if err := s.db.First(&definition, "id = ?", pipelineID).Error; err != nil {
		return nil, fmt.Errorf("流水线不存在: %w", err)
	}
	if definition.IsBuiltIn {
		return nil, fmt.Errorf("内置流水线 %s 不允许修改", definition.Name)
	}

	running, err := s.hasActiveRun(pipelineID)
	if err != nil {
		return nil, err
	}
	if running {
		return nil, fmt.Errorf("流水线 %s 存在进行中的运行，不允许修改", definition.Name)
	}

	updates := map[string]interface{}{
		"updated_at": time.Now(),
	}
	if req.UpdatedBy != "" {
		updates["updated_by"] = req.UpdatedBy
	}

	if req.Name != nil && *req.Name != definition.Name {
		var conflict models.PipelineDefinition
		if err := s.db.Where("name = ? AND id <> ?", *req.Name, pipelineID).First(&conflict).Error; err == nil {
			return nil, fmt.Errorf("流水线名称 %s 已存在", *req.Name)
		}
		updates["name"] = *req.Name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.DatasetName != nil {
		if *req.DatasetName == "" {
			return nil, fmt.Errorf("数据集名称不能为空")
		}
		updates["dataset_name"] = *req.DatasetName
	}
	if req.SourceTable != nil {
		if *req.SourceTable == "" {
			return nil, fmt.Errorf("来源表不能为空")
		}
		updates["source_table"] = *req.SourceTable
	}
	if req.ProfileColumns != nil {
		updates["profile_columns"] = pq.StringArray(req.ProfileColumns)
	}
	if req.KeyColumns != nil {
		if len(req.KeyColumns) == 0 {
			return nil, fmt.Errorf("去重主键列不能为空")
		}
		updates["key_columns"] = pq.StringArray(req.KeyColumns)
	}
	if req.TieBreakOrder != nil {
		if err := validateTieBreakOrder(req.TieBreakOrder); err != nil {
			return nil, err
		}
		updates["tie_break_order"] = convertTieBreakMeta(req.TieBreakOrder)
	}
	if req.OutlierColumns != nil {
		updates["outlier_columns"] = pq.StringArray(req.OutlierColumns)
	}
	if req.QuantileMethod != nil {
		if !meta.IsValidQuantileMethod(*req.QuantileMethod) {
			return nil, fmt.Errorf("无效的分位数算法: %s", *req.QuantileMethod)
		}
		updates["quantile_method"] = *req.QuantileMethod
	}
	if req.Schedule != nil {
		if err := validateSchedule(*req.Schedule); err != nil {
			return nil, err
		}
		updates["schedule"] = *req.Schedule
	}
	if req.Rules != nil {
		if err := validateRuleConfigs(req.Rules); err != nil {
			return nil, err
		}
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&definition).Updates(updates).Error; err != nil {
			return fmt.Errorf("更新流水线失败: %w", err)
		}
		if req.Rules == nil {
			return nil
		}
		if err := tx.Where("pipeline_id = ?", pipelineID).
			Delete(&models.AnomalyRuleConfig{}).Error; err != nil {
			return fmt.Errorf("清除旧规则失败: %w", err)
		}
		for i, ruleReq := range req.Rules {
			rule := buildRuleConfig(ruleReq, i, req.UpdatedBy)
			rule.PipelineID = pipelineID
			if err := tx.Create(&rule).Error; err != nil {
				return fmt.Errorf("保存规则 %s 失败: %w", rule.Name, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetPipelineByID(ctx, pipelineID)
}

// DeletePipeline 删除流水线定义及其规则
// 运行历史保留，由清理服务按保留期回收
func (s *PipelineService) DeletePipeline(ctx context.Context, pipelineID string) error {
	var definition models.PipelineDefinition
	if err := s.db.First(&definition, "id = ?", pipelineID).Error; err != nil {
		return fmt.Errorf("流水线不存在: %w", err)
	}
	if definition.IsBuiltIn {
		return fmt.Errorf("内置流水线 %s 不允许删除", definition.Name)
	}

	running, err := s.hasActiveRun(pipelineID)
	if err != nil {
		return err
	}
	if running {
		return fmt.Errorf("流水线 %s 存在进行中的运行，不允许删除", definition.Name)
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("pipeline_id = ?", pipelineID).
			Delete(&models.AnomalyRuleConfig{}).Error; err != nil {
			return fmt.Errorf("删除流水线规则失败: %w", err)
		}
		if err := tx.Delete(&definition).Error; err != nil {
			return fmt.Errorf("删除流水线失败: %w", err)
		}
		return nil
	})
}

// EnablePipeline 启用流水线
func (s *PipelineService) EnablePipeline(ctx context.Context, pipelineID, updatedBy string) error {
	return s.setPipelineEnabled(pipelineID, true, updatedBy)
}

// DisablePipeline 停用流水线，停用后不再被调度和触发
func (s *PipelineService) DisablePipeline(ctx context.Context, pipelineID, updatedBy string) error {
	return s.setPipelineEnabled(pipelineID, false, updatedBy)
}

func (s *PipelineService) setPipelineEnabled(pipelineID string, enabled bool, updatedBy string) error {
	var definition models.PipelineDefinition
	if err := s.db.First(&definition, "id = ?", pipelineID).Error; err != nil {
		return fmt.Errorf("流水线不存在: %w", err)
	}

	updates := map[string]interface{}{
		"is_enabled": enabled,
		"updated_at": time.Now(),
	}
	if updatedBy != "" {
		updates["updated_by"] = updatedBy
	}
	if err := s.db.Model(&definition).Updates(updates).Error; err != nil {
		return fmt.Errorf("更新流水线启停状态失败: %w", err)
	}
	return nil
}

// TriggerRun 触发一次流水线运行
// 运行锁保证同一流水线同一时刻只有一个运行；获锁成功后在后台执行，
// 立即返回受理响应
func (s *PipelineService) TriggerRun(ctx context.Context, req *models.TriggerRunRequest) (*TriggerRunResponse, error) {
	definition, err := s.GetPipelineByID(ctx, req.PipelineID)
	if err != nil {
		return nil, err
	}
	if !definition.IsEnabled {
		return nil, fmt.Errorf("流水线 %s 已停用，不允许触发", definition.Name)
	}

	triggeredBy := req.TriggeredBy
	if triggeredBy == "" {
		triggeredBy = models.TriggerManual
	}
	if !meta.IsValidTriggerType(triggeredBy) {
		return nil, fmt.Errorf("无效的触发方式: %s", triggeredBy)
	}

	if triggeredBy == models.TriggerManual {
		if err := s.checkTriggerRateLimit(ctx, definition.ID); err != nil {
			return nil, err
		}
	}

	lockKey := definition.ID
	if s.lock != nil {
		acquired, err := s.lock.TryLock(ctx, lockKey, runLockTTL)
		if err != nil {
			return nil, fmt.Errorf("获取运行锁失败: %w", err)
		}
		if !acquired {
			return nil, fmt.Errorf("流水线 %s 已有运行在进行中", definition.Name)
		}
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.registerCancel(definition.ID, cancel)

	go s.executeRun(runCtx, cancel, definition, triggeredBy, lockKey)

	slog.Info("流水线运行已受理", "pipeline", definition.Name,
		"triggered_by", triggeredBy, "operator", req.Operator)

	return &TriggerRunResponse{
		PipelineID:   definition.ID,
		PipelineName: definition.Name,
		TriggeredBy:  triggeredBy,
		Status:       "accepted",
		TriggeredAt:  time.Now(),
	}, nil
}

// TriggerScheduledRun 供调度器触发运行
func (s *PipelineService) TriggerScheduledRun(ctx context.Context, pipelineID string) error {
	_, err := s.TriggerRun(ctx, &models.TriggerRunRequest{
		PipelineID:  pipelineID,
		TriggeredBy: models.TriggerSchedule,
		Operator:    "scheduler",
	})
	return err
}

// executeRun 在后台执行一次运行
// 运行期间周期续期运行锁，结束后按序停止续期、释放锁并移除取消句柄
func (s *PipelineService) executeRun(ctx context.Context, cancel context.CancelFunc,
	definition *models.PipelineDefinition, triggeredBy, lockKey string) {
	defer cancel()
	defer s.unregisterCancel(definition.ID)

	if s.lock != nil {
		defer func() {
			if err := s.lock.Unlock(context.Background(), lockKey); err != nil {
				slog.Error("释放运行锁失败", "pipeline_id", definition.ID, "error", err)
			}
		}()
		stopRefresh := make(chan struct{})
		defer close(stopRefresh)
		go s.refreshRunLock(lockKey, stopRefresh)
	}

	if _, err := s.engine.Execute(ctx, definition, triggeredBy); err != nil {
		slog.Error("流水线运行执行失败", "pipeline_id", definition.ID, "error", err)
	}
}

// refreshRunLock 周期续期运行锁直到收到停止信号
func (s *PipelineService) refreshRunLock(lockKey string, stop <-chan struct{}) {
	ticker := time.NewTicker(runLockRefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := s.lock.Refresh(context.Background(), lockKey, runLockTTL); err != nil {
				slog.Warn("续期运行锁失败", "lock_key", lockKey, "error", err)
			}
		}
	}
}

// checkTriggerRateLimit 手动触发限流检查，流水线级限制优先于全局限制
func (s *PipelineService) checkTriggerRateLimit(ctx context.Context, pipelineID string) error {
	if s.rateLimiter == nil {
		return nil
	}

	rules := []rate_limiter.RateLimitRule{
		{
			Type:        "pipeline",
			TargetID:    pipelineID,
			TimeWindow:  triggerWindowSeconds,
			MaxRequests: triggerPipelineLimit,
		},
		{
			Type:        "global",
			TimeWindow:  triggerWindowSeconds,
			MaxRequests: triggerGlobalLimit,
		},
	}

	result, err := s.rateLimiter.CheckRateLimit(ctx, rules)
	if err != nil {
		return fmt.Errorf("限流检查失败: %w", err)
	}
	if !result.Allowed {
		return fmt.Errorf("触发过于频繁: %s", result.Message)
	}
	return nil
}

// CancelRun 取消流水线运行
// 取消只对本实例持有的运行即时生效，运行锁保证运行只在单实例执行；
// 找不到本实例取消句柄时直接落库标记失败，覆盖实例崩溃残留的运行记录
func (s *PipelineService) CancelRun(ctx context.Context, runID string) error {
	var run models.PipelineRun
	if err := s.db.First(&run, "id = ?", runID).Error; err != nil {
		return fmt.Errorf("运行不存在: %w", err)
	}

	if !contains(meta.GetCancellableRunStatuses(), run.Status) {
		return fmt.Errorf("运行状态 %s 不允许取消", run.Status)
	}

	if cancel, ok := s.lookupCancel(run.PipelineID); ok {
		cancel()
		return nil
	}

	endTime := time.Now()
	updates := map[string]interface{}{
		"status":        models.RunStatusFailed,
		"error_message": "运行已被手动取消",
		"end_time":      endTime,
		"duration":      endTime.Sub(run.StartTime).Milliseconds(),
		"updated_at":    endTime,
	}
	if err := s.db.Model(&run).Updates(updates).Error; err != nil {
		return fmt.Errorf("取消运行失败: %w", err)
	}
	return nil
}

// GetRunByID 根据ID获取运行详情，阶段按执行位置排序
func (s *PipelineService) GetRunByID(ctx context.Context, runID string) (*models.PipelineRun, error) {
	var run models.PipelineRun
	if err := s.db.Preload("Stages", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	}).First(&run, "id = ?", runID).Error; err != nil {
		return nil, fmt.Errorf("运行不存在: %w", err)
	}
	return &run, nil
}

// GetRunList 获取运行摘要列表
func (s *PipelineService) GetRunList(ctx context.Context, req *GetRunListRequest) (*RunListResponse, error) {
	page, size := normalizePage(req.Page, req.Size)

	query := s.db.Model(&models.PipelineRun{})
	if req.PipelineID != "" {
		query = query.Where("pipeline_id = ?", req.PipelineID)
	}
	if req.Status != "" {
		query = query.Where("status = ?", req.Status)
	}
	if req.TriggeredBy != "" {
		query = query.Where("triggered_by = ?", req.TriggeredBy)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("获取运行总数失败: %w", err)
	}

	offset := (page - 1) * size
	var runs []models.PipelineRun
	if err := query.Preload("Stages").
		Order("created_at DESC").
		Offset(offset).Limit(size).
		Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("查询运行列表失败: %w", err)
	}

	names, err := s.pipelineNames(runs)
	if err != nil {
		return nil, err
	}

	summaries := make([]models.PipelineRunSummary, 0, len(runs))
	for _, run := range runs {
		summaries = append(summaries, models.PipelineRunSummary{
			RunID:        run.ID,
			PipelineID:   run.PipelineID,
			PipelineName: names[run.PipelineID],
			Status:       run.Status,
			TriggeredBy:  run.TriggeredBy,
			StartTime:    run.StartTime,
			EndTime:      run.EndTime,
			Duration:     run.Duration,
			StageCount:   len(run.Stages),
			WarningCount: len(run.Warnings),
		})
	}

	totalPages := (total + int64(size) - 1) / int64(size)

	return &RunListResponse{
		Runs: summaries,
		Pagination: PaginationInfo{
			Page:       page,
			Size:       size,
			Total:      total,
			TotalPages: totalPages,
		},
	}, nil
}

// pipelineNames 批量查询运行涉及的流水线名称
func (s *PipelineService) pipelineNames(runs []models.PipelineRun) (map[string]string, error) {
	ids := make([]string, 0, len(runs))
	seen := make(map[string]bool)
	for _, run := range runs {
		if !seen[run.PipelineID] {
			seen[run.PipelineID] = true
			ids = append(ids, run.PipelineID)
		}
	}
	names := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}

	var definitions []models.PipelineDefinition
	if err := s.db.Select("id", "name").Where("id IN ?", ids).Find(&definitions).Error; err != nil {
		return nil, fmt.Errorf("查询流水线名称失败: %w", err)
	}
	for _, definition := range definitions {
		names[definition.ID] = definition.Name
	}
	return names, nil
}

// GetPipelineStatistics 获取运行统计信息，pipelineID 为空时统计全部流水线
func (s *PipelineService) GetPipelineStatistics(ctx context.Context, pipelineID string) (*PipelineRunStatistics, error) {
	stats := &PipelineRunStatistics{}

	pipelineQuery := s.db.Model(&models.PipelineDefinition{})
	if pipelineID != "" {
		pipelineQuery = pipelineQuery.Where("id = ?", pipelineID)
	}
	if err := pipelineQuery.Count(&stats.TotalPipelines).Error; err != nil {
		return nil, fmt.Errorf("获取流水线总数失败: %w", err)
	}
	enabledQuery := s.db.Model(&models.PipelineDefinition{}).Where("is_enabled = ?", true)
	if pipelineID != "" {
		enabledQuery = enabledQuery.Where("id = ?", pipelineID)
	}
	if err := enabledQuery.Count(&stats.EnabledPipelines).Error; err != nil {
		return nil, fmt.Errorf("获取启用流水线数失败: %w", err)
	}

	runQuery := func() *gorm.DB {
		query := s.db.Model(&models.PipelineRun{})
		if pipelineID != "" {
			query = query.Where("pipeline_id = ?", pipelineID)
		}
		return query
	}

	if err := runQuery().Count(&stats.TotalRuns).Error; err != nil {
		return nil, fmt.Errorf("获取运行总数失败: %w", err)
	}
	runQuery().Where("status = ?", models.RunStatusPending).Count(&stats.PendingRuns)
	runQuery().Where("status = ?", models.RunStatusRunning).Count(&stats.RunningRuns)
	runQuery().Where("status = ?", models.RunStatusSucceeded).Count(&stats.SucceededRuns)
	runQuery().Where("status = ?", models.RunStatusFailed).Count(&stats.FailedRuns)

	if stats.TotalRuns > 0 {
		stats.SuccessRate = float64(stats.SucceededRuns) / float64(stats.TotalRuns) * 100
	}

	return stats, nil
}

// GetRuleList 获取异常规则列表，pipelineID 为空时返回全部规则
func (s *PipelineService) GetRuleList(ctx context.Context, pipelineID string) ([]models.AnomalyRuleConfig, error) {
	query := s.db.Model(&models.AnomalyRuleConfig{})
	if pipelineID != "" {
		query = query.Where("pipeline_id = ?", pipelineID)
	}

	var rules []models.AnomalyRuleConfig
	if err := query.Order("pipeline_id, position ASC").Find(&rules).Error; err != nil {
		return nil, fmt.Errorf("获取规则列表失败: %w", err)
	}
	return rules, nil
}

// GetRuleByID 获取异常规则详情
func (s *PipelineService) GetRuleByID(ctx context.Context, ruleID string) (*models.AnomalyRuleConfig, error) {
	var rule models.AnomalyRuleConfig
	if err := s.db.First(&rule, "id = ?", ruleID).Error; err != nil {
		return nil, fmt.Errorf("规则不存在: %w", err)
	}
	return &rule, nil
}

// CreateRule 向流水线追加一条异常规则，排在既有规则之后
func (s *PipelineService) CreateRule(ctx context.Context, pipelineID string, req *RuleConfigRequest, createdBy string) (*models.AnomalyRuleConfig, error) {
	var definition models.PipelineDefinition
	if err := s.db.First(&definition, "id = ?", pipelineID).Error; err != nil {
		return nil, fmt.Errorf("流水线不存在: %w", err)
	}
	if definition.IsBuiltIn {
		return nil, fmt.Errorf("内置流水线 %s 的规则不允许修改", definition.Name)
	}

	if err := validateRuleConfigs([]RuleConfigRequest{*req}); err != nil {
		return nil, err
	}

	var maxPosition int
	s.db.Model(&models.AnomalyRuleConfig{}).
		Where("pipeline_id = ?", pipelineID).
		Select("COALESCE(MAX(position), -1)").
		Scan(&maxPosition)

	rule := buildRuleConfig(*req, maxPosition+1, createdBy)
	rule.PipelineID = pipelineID
	if err := s.db.Create(&rule).Error; err != nil {
		return nil, fmt.Errorf("创建规则失败: %w", err)
	}
	return &rule, nil
}

// UpdateRule 更新异常规则
func (s *PipelineService) UpdateRule(ctx context.Context, ruleID string, req *RuleConfigRequest, updatedBy string) (*models.AnomalyRuleConfig, error) {
	var rule models.AnomalyRuleConfig
	if err := s.db.First(&rule, "id = ?", ruleID).Error; err != nil {
		return nil, fmt.Errorf("规则不存在: %w", err)
	}
	if rule.IsBuiltIn {
		return nil, fmt.Errorf("内置规则 %s 不允许修改", rule.Name)
	}

	if err := validateRuleConfigs([]RuleConfigRequest{*req}); err != nil {
		return nil, err
	}

	updated := buildRuleConfig(*req, rule.Position, updatedBy)
	updated.ID = rule.ID
	updated.PipelineID = rule.PipelineID
	updated.CreatedAt = rule.CreatedAt
	updated.CreatedBy = rule.CreatedBy
	if err := s.db.Save(&updated).Error; err != nil {
		return nil, fmt.Errorf("更新规则失败: %w", err)
	}
	return &updated, nil
}

// DeleteRule 删除异常规则
func (s *PipelineService) DeleteRule(ctx context.Context, ruleID string) error {
	var rule models.AnomalyRuleConfig
	if err := s.db.First(&rule, "id = ?", ruleID).Error; err != nil {
		return fmt.Errorf("规则不存在: %w", err)
	}
	if rule.IsBuiltIn {
		return fmt.Errorf("内置规则 %s 不允许删除", rule.Name)
	}

	if err := s.db.Delete(&rule).Error; err != nil {
		return fmt.Errorf("删除规则失败: %w", err)
	}
	return nil
}

// InitializeBuiltIns 种子化内置流水线与默认异常规则
// 按名称幂等执行，已存在时仅回刷内置字段，调度表达式和启停状态保留运维调整
func (s *PipelineService) InitializeBuiltIns() error {
	template := meta.BuiltInPipeline

	var definition models.PipelineDefinition
	result := s.db.Where("name = ? AND is_built_in = ?", template.Name, true).First(&definition)
	if result.Error != nil {
		definition = models.PipelineDefinition{
			Name:           template.Name,
			Description:    template.Description,
			DatasetName:    template.DatasetName,
			SourceTable:    template.SourceTable,
			ProfileColumns: pq.StringArray(template.ProfileColumns),
			KeyColumns:     pq.StringArray(template.KeyColumns),
			TieBreakOrder:  convertTieBreakMeta(template.TieBreakOrder),
			OutlierColumns: pq.StringArray(template.OutlierColumns),
			QuantileMethod: template.QuantileMethod,
			Schedule:       template.Schedule,
			IsEnabled:      true,
			IsBuiltIn:      true,
			CreatedBy:      "system",
			UpdatedBy:      "system",
		}
		if err := s.db.Create(&definition).Error; err != nil {
			return fmt.Errorf("创建内置流水线失败: %w", err)
		}
	} else {
		updates := map[string]interface{}{
			"description":     template.Description,
			"dataset_name":    template.DatasetName,
			"source_table":    template.SourceTable,
			"profile_columns": pq.StringArray(template.ProfileColumns),
			"key_columns":     pq.StringArray(template.KeyColumns),
			"tie_break_order": convertTieBreakMeta(template.TieBreakOrder),
			"outlier_columns": pq.StringArray(template.OutlierColumns),
			"quantile_method": template.QuantileMethod,
			"updated_at":      time.Now(),
		}
		if err := s.db.Model(&definition).Updates(updates).Error; err != nil {
			return fmt.Errorf("更新内置流水线失败: %w", err)
		}
	}

	for _, ruleTemplate := range meta.DefaultRuleTemplates {
		conditions := make(models.JSONBArray, 0, len(ruleTemplate.Conditions))
		for _, condition := range ruleTemplate.Conditions {
			conditions = append(conditions, models.JSONB{
				"field":    condition.Field,
				"operator": condition.Operator,
				"value":    condition.Value,
			})
		}

		var rule models.AnomalyRuleConfig
		result := s.db.Where("pipeline_id = ? AND name = ? AND is_built_in = ?",
			definition.ID, ruleTemplate.Name, true).First(&rule)
		if result.Error != nil {
			rule = models.AnomalyRuleConfig{
				PipelineID:    definition.ID,
				Name:          ruleTemplate.Name,
				SourceDataset: ruleTemplate.SourceDataset,
				Logic:         ruleTemplate.Logic,
				Conditions:    conditions,
				Position:      ruleTemplate.Position,
				Description:   ruleTemplate.Description,
				IsEnabled:     true,
				IsBuiltIn:     true,
				CreatedBy:     "system",
				UpdatedBy:     "system",
			}
			if err := s.db.Create(&rule).Error; err != nil {
				return fmt.Errorf("创建内置规则 %s 失败: %w", ruleTemplate.Name, err)
			}
		} else {
			updates := map[string]interface{}{
				"source_dataset": ruleTemplate.SourceDataset,
				"logic":          ruleTemplate.Logic,
				"conditions":     conditions,
				"position":       ruleTemplate.Position,
				"description":    ruleTemplate.Description,
				"updated_at":     time.Now(),
			}
			if err := s.db.Model(&rule).Updates(updates).Error; err != nil {
				return fmt.Errorf("更新内置规则 %s 失败: %w", ruleTemplate.Name, err)
			}
		}
	}

	return nil
}

// hasActiveRun 判断流水线是否存在进行中的运行
func (s *PipelineService) hasActiveRun(pipelineID string) (bool, error) {
	var count int64
	err := s.db.Model(&models.PipelineRun{}).
		Where("pipeline_id = ? AND status IN ?", pipelineID,
			[]string{models.RunStatusPending, models.RunStatusRunning}).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("查询进行中运行失败: %w", err)
	}
	return count > 0, nil
}

func (s *PipelineService) registerCancel(pipelineID string, cancel context.CancelFunc) {
	s.cancelMutex.Lock()
	defer s.cancelMutex.Unlock()
	s.runCancels[pipelineID] = cancel
}

func (s *PipelineService) unregisterCancel(pipelineID string) {
	s.cancelMutex.Lock()
	defer s.cancelMutex.Unlock()
	delete(s.runCancels, pipelineID)
}

func (s *PipelineService) lookupCancel(pipelineID string) (context.CancelFunc, bool) {
	s.cancelMutex.Lock()
	defer s.cancelMutex.Unlock()
	cancel, ok := s.runCancels[pipelineID]
	return cancel, ok
}

// validatePipelineSpec 校验流水线定义的基础字段
func validatePipelineSpec(name, datasetName, sourceTable string, keyColumns []string,
	tieBreak []meta.TieBreakMeta, quantileMethod, schedule string) error {
	if name == "" {
		return fmt.Errorf("流水线名称不能为空")
	}
	if datasetName == "" || sourceTable == "" {
		return fmt.Errorf("数据集名称和来源表不能为空")
	}
	if len(keyColumns) == 0 {
		return fmt.Errorf("去重主键列不能为空")
	}
	for _, column := range keyColumns {
		if column == "" {
			return fmt.Errorf("去重主键列包含空列名")
		}
	}
	if err := validateTieBreakOrder(tieBreak); err != nil {
		return err
	}
	if quantileMethod != "" && !meta.IsValidQuantileMethod(quantileMethod) {
		return fmt.Errorf("无效的分位数算法: %s", quantileMethod)
	}
	return validateSchedule(schedule)
}

// validateTieBreakOrder 校验平票排序配置
func validateTieBreakOrder(tieBreak []meta.TieBreakMeta) error {
	for _, item := range tieBreak {
		if item.Column == "" {
			return fmt.Errorf("平票排序包含空列名")
		}
	}
	return nil
}

// validateSchedule 校验cron调度表达式，空表示不调度
func validateSchedule(schedule string) error {
	if schedule == "" {
		return nil
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("无效的调度表达式 %s: %w", schedule, err)
	}
	return nil
}

// validateRuleConfigs 校验异常规则配置
func validateRuleConfigs(rules []RuleConfigRequest) error {
	names := make(map[string]bool)
	for _, rule := range rules {
		if rule.Name == "" {
			return fmt.Errorf("规则名称不能为空")
		}
		if names[rule.Name] {
			return fmt.Errorf("规则名称 %s 重复", rule.Name)
		}
		names[rule.Name] = true

		if rule.SourceDataset == "" {
			return fmt.Errorf("规则 %s 未指定来源数据集", rule.Name)
		}
		if rule.Logic != "" && !meta.IsValidRuleLogic(rule.Logic) {
			return fmt.Errorf("规则 %s 使用了无效的组合逻辑: %s", rule.Name, rule.Logic)
		}

		if rule.Script != "" {
			if len(rule.Fields) == 0 {
				return fmt.Errorf("脚本规则 %s 需要声明涉及字段", rule.Name)
			}
			continue
		}
		if len(rule.Conditions) == 0 {
			return fmt.Errorf("规则 %s 需要至少一个条件或脚本", rule.Name)
		}
		for _, condition := range rule.Conditions {
			field, _ := condition["field"].(string)
			operator, _ := condition["operator"].(string)
			if field == "" || operator == "" {
				return fmt.Errorf("规则 %s 的条件缺少 field 或 operator", rule.Name)
			}
			if !meta.IsValidRuleOperator(operator) {
				return fmt.Errorf("规则 %s 使用了无效的算子: %s", rule.Name, operator)
			}
			if _, exists := condition["value"]; !exists {
				return fmt.Errorf("规则 %s 的条件缺少 value", rule.Name)
			}
		}
	}
	return nil
}

// buildRuleConfig 把规则请求转换为规则模型
func buildRuleConfig(req RuleConfigRequest, position int, operator string) models.AnomalyRuleConfig {
	logic := req.Logic
	if logic == "" {
		logic = "or"
	}
	enabled := true
	if req.IsEnabled != nil {
		enabled = *req.IsEnabled
	}

	conditions := make(models.JSONBArray, 0, len(req.Conditions))
	for _, condition := range req.Conditions {
		conditions = append(conditions, models.JSONB(condition))
	}

	return models.AnomalyRuleConfig{
		Name:          req.Name,
		SourceDataset: req.SourceDataset,
		Logic:         logic,
		Conditions:    conditions,
		Script:        req.Script,
		Fields:        pq.StringArray(req.Fields),
		Position:      position,
		Description:   req.Description,
		IsEnabled:     enabled,
		CreatedBy:     operator,
		UpdatedBy:     operator,
	}
}

// convertTieBreakMeta 把平票排序配置转换为JSONB数组
func convertTieBreakMeta(tieBreak []meta.TieBreakMeta) models.JSONBArray {
	result := make(models.JSONBArray, 0, len(tieBreak))
	for _, item := range tieBreak {
		result = append(result, models.JSONB{
			"column":     item.Column,
			"descending": item.Descending,
		})
	}
	return result
}

// normalizePage 规范化分页参数
func normalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}
	if size > 100 {
		size = 100
	}
	return page, size
}

// 辅助函数
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
