/**
 * @module PipelineScheduler
 * @description 质量流水线调度器，按启用定义的Cron表达式定时触发运行，周期性对账保持调度表与定义一致
 * @architecture 基于Go协程和cron库的调度器模式
 * @documentReference ../ai_docs/quality_pipeline_design.md
 * @stateFlow 启动 -> 加载启用定义 -> 定时触发 -> 对账(新增/变更/移除) -> 停止
 * @rules 同一流水线的并发触发由运行锁兜底，调度表达式为标准五段Cron
 * @dependencies gorm, cron库
 * @refs ../pipeline_service.go, ../models/pipeline_models.go
 */

package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"dataquality-service/service/models"
)

// reconcileInterval 调度表对账周期
const reconcileInterval = 5 * time.Minute

// RunTrigger 运行触发接口，由流水线服务实现
type RunTrigger interface {
	TriggerScheduledRun(ctx context.Context, pipelineID string) error
}

// scheduledEntry 已注册的调度条目
type scheduledEntry struct {
	entryID  cron.EntryID
	schedule string
	name     string
}

// PipelineScheduler 流水线调度器
type PipelineScheduler struct {
	db      *gorm.DB
	trigger RunTrigger
	cron    *cron.Cron
	ctx     context.Context
	cancel  context.CancelFunc
	mutex   sync.Mutex
	entries map[string]scheduledEntry
}

// NewPipelineScheduler 创建流水线调度器
func NewPipelineScheduler(db *gorm.DB, trigger RunTrigger) *PipelineScheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &PipelineScheduler{
		db:      db,
		trigger: trigger,
		// 定义里的调度表达式是标准五段格式
		cron:    cron.New(),
		ctx:     ctx,
		cancel:  cancel,
		entries: make(map[string]scheduledEntry),
	}
}

// Start 启动调度器
func (s *PipelineScheduler) Start() error {
	log.Println("启动流水线调度器")

	s.cron.Start()

	if err := s.Reload(); err != nil {
		log.Printf("加载调度定义失败: %v", err)
		return err
	}

	// 定义的启停和表达式会在运行期变化，周期性对账
	go s.runReconcileLoop()

	log.Println("流水线调度器启动完成")
	return nil
}

// Stop 停止调度器
func (s *PipelineScheduler) Stop() {
	log.Println("停止流水线调度器")

	s.cancel()

	if s.cron != nil {
		s.cron.Stop()
	}

	log.Println("流水线调度器已停止")
}

// Reload 对账调度表：注册新启用的定义，更新表达式变更，移除停用或删除的定义
func (s *PipelineScheduler) Reload() error {
	var definitions []models.PipelineDefinition
	err := s.db.WithContext(s.ctx).
		Select("id", "name", "schedule", "is_enabled").
		Where("is_enabled = ?", true).
		Find(&definitions).Error
	if err != nil {
		return fmt.Errorf("查询启用定义失败: %w", err)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	seen := make(map[string]bool, len(definitions))
	added, updated := 0, 0
	for _, definition := range definitions {
		if definition.Schedule == "" {
			continue
		}
		seen[definition.ID] = true

		existing, ok := s.entries[definition.ID]
		if ok && existing.schedule == definition.Schedule {
			continue
		}
		if ok {
			s.cron.Remove(existing.entryID)
			delete(s.entries, definition.ID)
			updated++
		} else {
			added++
		}

		pipelineID := definition.ID
		entryID, err := s.cron.AddFunc(definition.Schedule, func() {
			s.runPipeline(pipelineID)
		})
		if err != nil {
			log.Printf("注册调度失败 [%s] 表达式=%s: %v", definition.ID, definition.Schedule, err)
			continue
		}

		s.entries[definition.ID] = scheduledEntry{
			entryID:  entryID,
			schedule: definition.Schedule,
			name:     definition.Name,
		}
	}

	removed := 0
	for pipelineID, entry := range s.entries {
		if !seen[pipelineID] {
			s.cron.Remove(entry.entryID)
			delete(s.entries, pipelineID)
			removed++
		}
	}

	if added > 0 || updated > 0 || removed > 0 {
		log.Printf("调度表已更新: 新增=%d 变更=%d 移除=%d 总数=%d", added, updated, removed, len(s.entries))
	}
	return nil
}

// runReconcileLoop 周期性对账
func (s *PipelineScheduler) runReconcileLoop() {
	ticker := time.NewTicker(reconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.Reload(); err != nil {
				log.Printf("调度表对账失败: %v", err)
			}
		case <-s.ctx.Done():
			return
		}
	}
}

// runPipeline 触发一次调度运行
func (s *PipelineScheduler) runPipeline(pipelineID string) {
	// 触发前重读定义，停用的定义不再触发
	var definition models.PipelineDefinition
	err := s.db.Select("id", "name", "is_enabled").
		First(&definition, "id = ?", pipelineID).Error
	if err != nil {
		log.Printf("调度触发时定义不存在 [%s]: %v", pipelineID, err)
		return
	}
	if !definition.IsEnabled {
		log.Printf("定义已停用，跳过调度触发 [%s]", pipelineID)
		return
	}

	if err := s.trigger.TriggerScheduledRun(s.ctx, pipelineID); err != nil {
		// 上一次运行未结束时触发失败属于正常情况
		log.Printf("调度触发未执行 [%s] %s: %v", pipelineID, definition.Name, err)
		return
	}

	log.Printf("调度触发已提交 [%s] %s", pipelineID, definition.Name)
}

// ScheduleEntryStatus 调度条目状态
type ScheduleEntryStatus struct {
	PipelineID   string    `json:"pipeline_id"`
	PipelineName string    `json:"pipeline_name"`
	Schedule     string    `json:"schedule"`
	NextRun      time.Time `json:"next_run"`
	PrevRun      time.Time `json:"prev_run,omitempty"`
}

// GetScheduleStatus 获取当前调度表快照，用于监控接口
func (s *PipelineScheduler) GetScheduleStatus() []ScheduleEntryStatus {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	statuses := make([]ScheduleEntryStatus, 0, len(s.entries))
	for pipelineID, entry := range s.entries {
		cronEntry := s.cron.Entry(entry.entryID)
		statuses = append(statuses, ScheduleEntryStatus{
			PipelineID:   pipelineID,
			PipelineName: entry.name,
			Schedule:     entry.schedule,
			NextRun:      cronEntry.Next,
			PrevRun:      cronEntry.Prev,
		})
	}
	return statuses
}
