/*
 * @module service/pipeline_engine/engine
 * @description 质量流水线执行引擎，按固定阶段顺序编排画像、去重、封顶、异常标记
 * @architecture 分层架构 - 业务引擎层
 * @documentReference ai_docs/quality_pipeline_design.md
 * @stateFlow 创建运行记录 -> 逐阶段执行 -> 每阶段输出与报告同事务落库 -> 运行终态
 * @rules 阶段失败立即终止且不重试，已完成阶段的落库结果保留；
 *        退化分布是可恢复告警，带塌缩界限继续执行；失败阶段记录保留在事务之外
 * @dependencies dataquality-service/service/data_quality, dataquality-service/service/warehouse, gorm.io/gorm
 * @refs service/pipeline_engine/stages.go, service/pipeline_engine/types.go
 */

package pipeline_engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"dataquality-service/service/data_quality"
	"dataquality-service/service/models"
	"dataquality-service/service/warehouse"

	"gorm.io/gorm"
)

// 流水线的阶段数，进度按已完成阶段数报告
const stageCount = 4

// PipelineEngine 质量流水线执行引擎
type PipelineEngine struct {
	db               *gorm.DB
	store            *warehouse.Store
	profiler         *data_quality.Profiler
	deduplicator     *data_quality.Deduplicator
	flagger          *data_quality.AnomalyFlagger
	publisher        EventPublisher
	progressCallback func(*RunProgress)
}

// NewPipelineEngine 创建流水线执行引擎
func NewPipelineEngine(db *gorm.DB, store *warehouse.Store) *PipelineEngine {
	return &PipelineEngine{
		db:           db,
		store:        store,
		profiler:     data_quality.NewProfiler(),
		deduplicator: data_quality.NewDeduplicator(),
		flagger:      data_quality.NewAnomalyFlagger(),
	}
}

// SetProgressCallback 设置进度回调
func (e *PipelineEngine) SetProgressCallback(callback func(*RunProgress)) {
	e.progressCallback = callback
}

// SetEventPublisher 设置运行事件发布器
func (e *PipelineEngine) SetEventPublisher(publisher EventPublisher) {
	e.publisher = publisher
}

// Execute 执行一次流水线运行
// 返回的 RunResult 汇总全部阶段记录与报告；err 非空时 Run 状态为 failed，
// 已完成阶段的输出与报告保持落库状态
func (e *PipelineEngine) Execute(ctx context.Context, definition *models.PipelineDefinition, triggeredBy string) (*RunResult, error) {
	startTime := time.Now()
	if triggeredBy == "" {
		triggeredBy = models.TriggerManual
	}

	run := &models.PipelineRun{
		PipelineID:  definition.ID,
		Status:      models.RunStatusRunning,
		TriggeredBy: triggeredBy,
		StartTime:   startTime,
		Statistics:  models.JSONB{},
		Warnings:    models.JSONBArray{},
	}
	if err := e.db.Create(run).Error; err != nil {
		return nil, fmt.Errorf("创建运行记录失败: %w", err)
	}

	progress := &RunProgress{
		RunID:          run.ID,
		PipelineID:     definition.ID,
		StagesTotal:    stageCount,
		StartTime:      startTime,
		LastUpdateTime: startTime,
	}

	e.publishEvent(models.EventRunStarted, run, "", models.JSONB{
		"pipeline_name": definition.Name,
		"triggered_by":  triggeredBy,
	})
	slog.Info("流水线运行开始", "pipeline", definition.Name, "run_id", run.ID, "triggered_by", triggeredBy)

	result := &RunResult{Run: run}
	execErr := e.executeStages(ctx, definition, run, progress, result)

	endTime := time.Now()
	run.EndTime = &endTime
	run.Duration = endTime.Sub(startTime).Milliseconds()
	for _, stage := range result.Stages {
		run.Statistics[stage.StageType] = map[string]interface{}{
			"input_rows":  stage.InputRows,
			"output_rows": stage.OutputRows,
			"duration_ms": stage.Duration,
		}
	}

	if execErr != nil {
		run.Status = models.RunStatusFailed
		run.ErrorMessage = execErr.Error()
		e.publishEvent(models.EventRunFailed, run, run.CurrentStage, models.JSONB{
			"error": execErr.Error(),
		})
		slog.Error("流水线运行失败", "pipeline", definition.Name, "run_id", run.ID,
			"stage", run.CurrentStage, "error", execErr)
	} else {
		run.Status = models.RunStatusSucceeded
		e.publishEvent(models.EventRunSucceeded, run, "", models.JSONB{
			"duration_ms": run.Duration,
		})
		slog.Info("流水线运行成功", "pipeline", definition.Name, "run_id", run.ID,
			"duration", endTime.Sub(startTime).String())
	}

	if err := e.db.Save(run).Error; err != nil {
		slog.Error("更新运行记录失败", "run_id", run.ID, "error", err)
	}

	return result, execErr
}

// executeStages 按数据依赖顺序推进全部阶段
// 阶段之间串行，阶段内部的并行由各引擎自行组织
func (e *PipelineEngine) executeStages(ctx context.Context, definition *models.PipelineDefinition,
	run *models.PipelineRun, progress *RunProgress, result *RunResult) error {

	stages := []struct {
		stageType string
		fn        stageFunc
	}{
		{models.StageTypeProfile, e.runProfileStage(definition, result)},
		{models.StageTypeDedup, e.runDedupStage(definition, result)},
		{models.StageTypeOutlier, e.runOutlierStage(definition, run, result)},
		{models.StageTypeFlag, e.runFlagStage(definition, result)},
	}

	for i, entry := range stages {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("运行被取消: %w", err)
		}

		stage, err := e.executeStage(ctx, run, progress, entry.stageType, i+1, entry.fn)
		if stage != nil {
			result.Stages = append(result.Stages, *stage)
		}
		if err != nil {
			return fmt.Errorf("阶段 %s 执行失败: %w", entry.stageType, err)
		}
	}
	return nil
}

// stageFunc 单个阶段的执行体
// 在传入的事务里完成输出表写入与报告记录落库，阶段记录由外层提交
type stageFunc func(ctx context.Context, tx *gorm.DB, stage *models.StageRun) error

// executeStage 执行单个阶段并维护阶段记录
// 成功时阶段记录与阶段产物在同一事务提交；
// 失败时事务回滚，阶段记录单独落库供诊断
func (e *PipelineEngine) executeStage(ctx context.Context, run *models.PipelineRun,
	progress *RunProgress, stageType string, position int, fn stageFunc) (*models.StageRun, error) {

	stage := &models.StageRun{
		RunID:     run.ID,
		StageType: stageType,
		Position:  position,
		Status:    models.RunStatusRunning,
		StartTime: time.Now(),
		Metrics:   models.JSONB{},
	}

	run.CurrentStage = stageType
	e.db.Model(run).Update("current_stage", stageType)
	e.updateProgress(progress, stageType, position-1, "阶段开始")
	e.publishEvent(models.EventStageStarted, run, stageType, nil)

	tx := e.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, fmt.Errorf("开启阶段事务失败: %w", tx.Error)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	err := fn(ctx, tx, stage)

	endTime := time.Now()
	stage.EndTime = &endTime
	stage.Duration = endTime.Sub(stage.StartTime).Milliseconds()

	if err != nil {
		tx.Rollback()
		stage.Status = models.RunStatusFailed
		stage.ErrorMessage = err.Error()
		if saveErr := e.db.Create(stage).Error; saveErr != nil {
			slog.Error("保存失败阶段记录失败", "run_id", run.ID, "stage", stageType, "error", saveErr)
		}
		return stage, err
	}

	stage.Status = models.RunStatusSucceeded
	if err := tx.Create(stage).Error; err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("保存阶段记录失败: %w", err)
	}
	if err := tx.Commit().Error; err != nil {
		return nil, fmt.Errorf("提交阶段事务失败: %w", err)
	}

	e.updateProgress(progress, stageType, position, "阶段完成")
	progress.RowsProcessed += stage.InputRows
	e.publishEvent(models.EventStageCompleted, run, stageType, models.JSONB{
		"input_rows":  stage.InputRows,
		"output_rows": stage.OutputRows,
		"duration_ms": stage.Duration,
		"metrics":     stage.Metrics,
	})
	slog.Info("阶段执行完成", "run_id", run.ID, "stage", stageType,
		"input_rows", stage.InputRows, "output_rows", stage.OutputRows,
		"duration", endTime.Sub(stage.StartTime).String())

	return stage, nil
}

// updateProgress 推送进度
func (e *PipelineEngine) updateProgress(progress *RunProgress, stage string, done int, message string) {
	progress.CurrentStage = stage
	progress.StagesDone = done
	progress.Message = message
	progress.LastUpdateTime = time.Now()
	if e.progressCallback != nil {
		e.progressCallback(progress)
	}
}

// publishEvent 发布运行事件，无发布器时跳过
func (e *PipelineEngine) publishEvent(eventType string, run *models.PipelineRun, stageType string, data models.JSONB) {
	if e.publisher == nil {
		return
	}
	if data == nil {
		data = models.JSONB{}
	}
	data["status"] = run.Status
	e.publisher.PublishRunEvent(&models.RunEvent{
		EventType:  eventType,
		PipelineID: run.PipelineID,
		RunID:      run.ID,
		StageType:  stageType,
		Data:       data,
	})
}

// recordWarning 记录可恢复告警并推送告警事件
func (e *PipelineEngine) recordWarning(run *models.PipelineRun, warning models.JSONB) {
	run.Warnings = append(run.Warnings, warning)
	e.publishEvent(models.EventRunWarning, run, run.CurrentStage, warning)
	slog.Warn("流水线运行告警", "run_id", run.ID, "warning", warning)
}
