/*
 * @module service/cleanup/retention_cleanup_service
 * @description 保留策略清理服务，定期删除超期的流水线运行、质量记录和运行事件，回收失效令牌与孤立派生表
 * @architecture 分层架构 - 业务服务层
 * @documentReference ai_docs/quality_pipeline_design.md
 * @stateFlow 定时触发 -> 获取分布式锁 -> 读取保留配置 -> 分批删除 -> 缓存失效
 * @rules 运行及其质量记录按运行为单位整体删除，删除在事务内完成；多实例部署时同一时刻只有一个实例执行清理
 * @dependencies dataquality-service/service/config, dataquality-service/service/distributed_lock, github.com/robfig/cron/v3, gorm.io/gorm
 * @refs service/config/config_service.go, service/pipeline_engine/stages.go, service/warehouse/store.go
 */

package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"dataquality-service/service/config"
	"dataquality-service/service/distributed_lock"
	"dataquality-service/service/models"
	"dataquality-service/service/pipeline_engine"
	"dataquality-service/service/warehouse"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

const (
	// 每天凌晨4点执行清理，避开凌晨2点的内置流水线调度窗口
	// Cron表达式：秒 分 时 日 月 周
	cleanupSchedule = "0 0 4 * * *"
	// 清理任务的分布式锁参数
	cleanupLockKey = "retention_cleanup"
	cleanupLockTTL = 10 * time.Minute
	// 单批删除的运行数上限
	cleanupBatchSize = 200
)

// TokenSweeper 负责把过期的访问令牌标记为失效
type TokenSweeper interface {
	MarkExpiredTokens(ctx context.Context) (int64, error)
}

// ReportCacheInvalidator 负责在运行记录被删除后使对应的报告缓存失效
type ReportCacheInvalidator interface {
	InvalidateRunReports(runIDs ...string)
}

// RetentionCleanupService 保留策略清理服务
type RetentionCleanupService struct {
	db            *gorm.DB
	configService *config.ConfigService
	store         *warehouse.Store
	lockExecutor  *distributed_lock.LockExecutor
	tokenSweeper  TokenSweeper
	invalidator   ReportCacheInvalidator
	cron          *cron.Cron
	ctx           context.Context
	cancel        context.CancelFunc
	started       bool
}

// NewRetentionCleanupService 创建保留策略清理服务实例
// store、lockExecutor、tokenSweeper、invalidator 均可为 nil，对应能力自动停用
func NewRetentionCleanupService(db *gorm.DB, configService *config.ConfigService, store *warehouse.Store,
	lockExecutor *distributed_lock.LockExecutor, tokenSweeper TokenSweeper, invalidator ReportCacheInvalidator) *RetentionCleanupService {
	ctx, cancel := context.WithCancel(context.Background())

	return &RetentionCleanupService{
		db:            db,
		configService: configService,
		store:         store,
		lockExecutor:  lockExecutor,
		tokenSweeper:  tokenSweeper,
		invalidator:   invalidator,
		cron:          cron.New(cron.WithSeconds()),
		ctx:           ctx,
		cancel:        cancel,
		started:       false,
	}
}

// CleanupExpiredData 执行一轮完整清理
func (s *RetentionCleanupService) CleanupExpiredData(ctx context.Context) error {
	slog.Info("开始清理过期数据")
	startTime := time.Now()

	// 1. 清理超期的流水线运行及其质量记录
	runRetentionDays, err := s.configService.GetRunRetentionDays()
	if err != nil {
		slog.Error("获取运行保留天数失败", "error", err)
		runRetentionDays = config.DefaultRunRetentionDays
	}

	runsDeleted, err := s.CleanupExpiredRuns(ctx, runRetentionDays)
	if err != nil {
		slog.Error("清理过期运行失败", "error", err)
	} else {
		slog.Info("清理过期运行完成", "deleted_count", runsDeleted, "retention_days", runRetentionDays)
	}

	// 2. 清理超期的运行事件
	eventRetentionDays, err := s.configService.GetEventRetentionDays()
	if err != nil {
		slog.Error("获取事件保留天数失败", "error", err)
		eventRetentionDays = config.DefaultEventRetentionDays
	}

	eventsDeleted, err := s.CleanupRunEvents(ctx, eventRetentionDays)
	if err != nil {
		slog.Error("清理运行事件失败", "error", err)
	} else {
		slog.Info("清理运行事件完成", "deleted_count", eventsDeleted, "retention_days", eventRetentionDays)
	}

	// 3. 标记过期令牌
	tokensMarked, err := s.SweepExpiredTokens(ctx)
	if err != nil {
		slog.Error("标记过期令牌失败", "error", err)
	} else if tokensMarked > 0 {
		slog.Info("标记过期令牌完成", "marked_count", tokensMarked)
	}

	// 4. 清理已删除流水线遗留的派生表
	tablesDropped, err := s.CleanupOrphanedDerivedTables(ctx)
	if err != nil {
		slog.Error("清理孤立派生表失败", "error", err)
	} else if tablesDropped > 0 {
		slog.Info("清理孤立派生表完成", "dropped_count", tablesDropped)
	}

	duration := time.Since(startTime)
	slog.Info("过期数据清理完成",
		"runs_deleted", runsDeleted,
		"events_deleted", eventsDeleted,
		"tokens_marked", tokensMarked,
		"tables_dropped", tablesDropped,
		"duration_ms", duration.Milliseconds())

	return nil
}

// CleanupExpiredRuns 删除超期的已结束运行及其阶段记录、质量记录和事件
// 进行中的运行不受保留策略影响，返回删除的运行数
func (s *RetentionCleanupService) CleanupExpiredRuns(ctx context.Context, retentionDays int) (int64, error) {
	cutoffDate := time.Now().AddDate(0, 0, -retentionDays)

	slog.Debug("清理过期运行", "cutoff_date", cutoffDate.Format("2006-01-02 15:04:05"), "retention_days", retentionDays)

	var totalDeleted int64
	for {
		var runIDs []string
		err := s.db.WithContext(ctx).Model(&models.PipelineRun{}).
			Where("status IN ?", []string{models.RunStatusSucceeded, models.RunStatusFailed}).
			Where("start_time < ?", cutoffDate).
			Limit(cleanupBatchSize).
			Pluck("id", &runIDs).Error
		if err != nil {
			return totalDeleted, fmt.Errorf("查询过期运行失败: %w", err)
		}
		if len(runIDs) == 0 {
			break
		}

		if err := s.deleteRunBatch(ctx, runIDs); err != nil {
			return totalDeleted, err
		}
		totalDeleted += int64(len(runIDs))

		if s.invalidator != nil {
			s.invalidator.InvalidateRunReports(runIDs...)
		}

		if len(runIDs) < cleanupBatchSize {
			break
		}
	}

	return totalDeleted, nil
}

// deleteRunBatch 在一个事务内删除一批运行及其全部关联记录
func (s *RetentionCleanupService) deleteRunBatch(ctx context.Context, runIDs []string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		related := []interface{}{
			&models.StageRun{},
			&models.ColumnProfileRecord{},
			&models.DedupStatRecord{},
			&models.QuantileBoundsRecord{},
			&models.AnomalyFlagRecord{},
			&models.CappingVerifyRecord{},
			&models.RunEvent{},
		}
		for _, model := range related {
			if err := tx.Where("run_id IN ?", runIDs).Delete(model).Error; err != nil {
				return fmt.Errorf("删除运行关联记录失败: %w", err)
			}
		}

		if err := tx.Where("id IN ?", runIDs).Delete(&models.PipelineRun{}).Error; err != nil {
			return fmt.Errorf("删除运行记录失败: %w", err)
		}
		return nil
	})
}

// CleanupRunEvents 删除超过保留期的运行事件日志
func (s *RetentionCleanupService) CleanupRunEvents(ctx context.Context, retentionDays int) (int64, error) {
	cutoffDate := time.Now().AddDate(0, 0, -retentionDays)

	slog.Debug("清理运行事件", "cutoff_date", cutoffDate.Format("2006-01-02 15:04:05"), "retention_days", retentionDays)

	result := s.db.WithContext(ctx).Where("created_at < ?", cutoffDate).Delete(&models.RunEvent{})
	if result.Error != nil {
		return 0, fmt.Errorf("删除运行事件失败: %w", result.Error)
	}

	return result.RowsAffected, nil
}

// SweepExpiredTokens 标记过期的访问令牌，未配置清扫器时返回0
func (s *RetentionCleanupService) SweepExpiredTokens(ctx context.Context) (int64, error) {
	if s.tokenSweeper == nil {
		return 0, nil
	}
	return s.tokenSweeper.MarkExpiredTokens(ctx)
}

// CleanupOrphanedDerivedTables 删除不再对应任何流水线数据集的派生表
// 流水线定义删除后其 _dedup/_robust 产出表会遗留在仓库中，未配置仓库存储时跳过
func (s *RetentionCleanupService) CleanupOrphanedDerivedTables(ctx context.Context) (int64, error) {
	if s.store == nil {
		return 0, nil
	}

	var datasets []string
	err := s.db.WithContext(ctx).Model(&models.PipelineDefinition{}).
		Distinct().Pluck("dataset_name", &datasets).Error
	if err != nil {
		return 0, fmt.Errorf("查询流水线数据集失败: %w", err)
	}

	actual, err := s.store.ListTablesWithSuffix(ctx, pipeline_engine.DerivedTableSuffixes()...)
	if err != nil {
		return 0, err
	}

	orphans := orphanedTables(actual, datasets)
	var dropped int64
	for _, table := range orphans {
		if err := s.store.DropTable(ctx, table); err != nil {
			return dropped, err
		}
		slog.Info("已删除孤立派生表", "table", table)
		dropped++
	}

	return dropped, nil
}

// orphanedTables 从实际存在的派生表中筛出不属于任何已知数据集的表
func orphanedTables(actual []string, datasets []string) []string {
	expected := make(map[string]bool)
	for _, dataset := range datasets {
		for _, table := range pipeline_engine.DerivedTableNames(dataset) {
			expected[table] = true
		}
	}

	orphans := make([]string, 0)
	for _, table := range actual {
		if !expected[table] {
			orphans = append(orphans, table)
		}
	}
	return orphans
}

// StartScheduledCleanup 启动定时清理任务
func (s *RetentionCleanupService) StartScheduledCleanup() error {
	if s.started {
		return fmt.Errorf("清理调度器已经启动")
	}

	slog.Info("启动保留策略清理调度器")

	_, err := s.cron.AddFunc(cleanupSchedule, func() {
		slog.Info("开始执行定时清理任务")
		s.runGuardedCleanup()
	})
	if err != nil {
		return fmt.Errorf("添加定时任务失败: %w", err)
	}

	s.cron.Start()
	s.started = true

	slog.Info("保留策略清理调度器启动成功，将于每天凌晨4点执行清理任务")

	// 启动时立即执行一次清理
	go func() {
		slog.Info("执行首次过期数据清理")
		s.runGuardedCleanup()
	}()

	return nil
}

// runGuardedCleanup 在分布式锁保护下执行清理，锁被其他实例持有时跳过
func (s *RetentionCleanupService) runGuardedCleanup() {
	if s.lockExecutor == nil {
		if err := s.CleanupExpiredData(s.ctx); err != nil {
			slog.Error("定时清理任务失败", "error", err)
		}
		return
	}

	err := s.lockExecutor.ExecuteWithLock(s.ctx, cleanupLockKey, cleanupLockTTL, func() error {
		return s.CleanupExpiredData(s.ctx)
	})
	if err != nil {
		slog.Error("定时清理任务失败", "error", err)
	}
}

// StopScheduledCleanup 停止定时清理任务
func (s *RetentionCleanupService) StopScheduledCleanup() {
	if !s.started {
		return
	}

	slog.Info("停止保留策略清理调度器")

	s.cancel()

	if s.cron != nil {
		s.cron.Stop()
	}

	s.started = false

	slog.Info("保留策略清理调度器已停止")
}
