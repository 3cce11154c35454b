/**
 * @module PipelineSchedulerTest
 * @description 流水线调度器的测试：调度表对账、触发门禁、无效表达式容错
 * @architecture 测试层
 * @documentReference ../ai_docs/quality_pipeline_design.md
 * @stateFlow 建定义 -> 对账 -> 断言调度表
 * @rules 只有启用且表达式合法的定义进入调度表
 * @dependencies testify, sqlite
 * @refs ./pipeline_scheduler.go
 */

package scheduler

import (
	"context"
	"sync"
	"testing"

	"dataquality-service/service/models"
	"dataquality-service/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTrigger 记录触发调用的桩实现
type fakeTrigger struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeTrigger) TriggerScheduledRun(ctx context.Context, pipelineID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, pipelineID)
	return f.err
}

func (f *fakeTrigger) triggered() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func newTestScheduler(t *testing.T) (*PipelineScheduler, *fakeTrigger, *testutil.TestDB, *testutil.TestDataFactory) {
	t.Helper()
	tdb := testutil.NewTestDB()
	t.Cleanup(tdb.Close)
	trigger := &fakeTrigger{}
	scheduler := NewPipelineScheduler(tdb.DB, trigger)
	t.Cleanup(scheduler.Stop)
	return scheduler, trigger, tdb, testutil.NewTestDataFactory(tdb.DB)
}

func TestReloadRegistersEnabledDefinitions(t *testing.T) {
	scheduler, _, _, factory := newTestScheduler(t)
	enabled := factory.CreatePipelineDefinition(func(d *models.PipelineDefinition) {
		d.Name = "nightly"
	})
	factory.CreatePipelineDefinition(func(d *models.PipelineDefinition) {
		d.Name = "disabled"
		d.IsEnabled = false
	})

	require.NoError(t, scheduler.Reload())

	statuses := scheduler.GetScheduleStatus()
	require.Len(t, statuses, 1)
	assert.Equal(t, enabled.ID, statuses[0].PipelineID)
	assert.Equal(t, "nightly", statuses[0].PipelineName)
	assert.Equal(t, "0 2 * * *", statuses[0].Schedule)
}

func TestReloadUpdatesChangedSchedule(t *testing.T) {
	scheduler, _, tdb, factory := newTestScheduler(t)
	definition := factory.CreatePipelineDefinition()
	require.NoError(t, scheduler.Reload())
	before := scheduler.entries[definition.ID]

	require.NoError(t, tdb.DB.Model(&models.PipelineDefinition{}).
		Where("id = ?", definition.ID).
		Update("schedule", "30 3 * * *").Error)
	require.NoError(t, scheduler.Reload())

	after, ok := scheduler.entries[definition.ID]
	require.True(t, ok)
	assert.Equal(t, "30 3 * * *", after.schedule)
	assert.NotEqual(t, before.entryID, after.entryID)
}

func TestReloadRemovesDisabledDefinition(t *testing.T) {
	scheduler, _, tdb, factory := newTestScheduler(t)
	definition := factory.CreatePipelineDefinition()
	require.NoError(t, scheduler.Reload())
	require.Len(t, scheduler.GetScheduleStatus(), 1)

	require.NoError(t, tdb.DB.Model(&models.PipelineDefinition{}).
		Where("id = ?", definition.ID).
		Update("is_enabled", false).Error)
	require.NoError(t, scheduler.Reload())

	assert.Empty(t, scheduler.GetScheduleStatus())
}

func TestReloadSkipsInvalidSchedule(t *testing.T) {
	scheduler, _, _, factory := newTestScheduler(t)
	factory.CreatePipelineDefinition(func(d *models.PipelineDefinition) {
		d.Schedule = "not-a-cron"
	})

	require.NoError(t, scheduler.Reload())

	assert.Empty(t, scheduler.GetScheduleStatus())
}

func TestRunPipelineTriggersEnabledDefinition(t *testing.T) {
	scheduler, trigger, _, factory := newTestScheduler(t)
	definition := factory.CreatePipelineDefinition()

	scheduler.runPipeline(definition.ID)

	assert.Equal(t, []string{definition.ID}, trigger.triggered())
}

func TestRunPipelineSkipsDisabledDefinition(t *testing.T) {
	scheduler, trigger, _, factory := newTestScheduler(t)
	definition := factory.CreatePipelineDefinition(func(d *models.PipelineDefinition) {
		d.IsEnabled = false
	})

	scheduler.runPipeline(definition.ID)

	assert.Empty(t, trigger.triggered())
}

func TestRunPipelineMissingDefinition(t *testing.T) {
	scheduler, trigger, _, _ := newTestScheduler(t)

	scheduler.runPipeline("missing")

	assert.Empty(t, trigger.triggered())
}

func TestRunPipelineToleratesTriggerFailure(t *testing.T) {
	scheduler, trigger, _, factory := newTestScheduler(t)
	trigger.err = assert.AnError
	definition := factory.CreatePipelineDefinition()

	scheduler.runPipeline(definition.ID)

	// 触发失败只记录日志，调度器继续工作
	assert.Equal(t, []string{definition.ID}, trigger.triggered())
}
