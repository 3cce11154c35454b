/*
 * @module service/monitoring/alert_processor_test
 * @description 运行告警处理器单元测试，覆盖完结事件触发的告警评估与分发
 * @architecture 测试层
 * @stateFlow 准备运行与报告记录 -> 投递运行事件 -> 断言分发的告警
 * @rules 通知渠道用内存实现记录分发结果
 * @dependencies dataquality-service/testutil, github.com/stretchr/testify
 * @refs service/monitoring/alert_processor.go
 */

package monitoring

import (
	"testing"
	"time"

	"dataquality-service/service/models"
	"dataquality-service/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAlertProcessor(t *testing.T) (*RunAlertProcessor, *recordingNotifier, *testutil.TestDataFactory) {
	t.Helper()

	tdb := testutil.NewTestDB()
	t.Cleanup(tdb.Close)

	notifier := &recordingNotifier{}
	processor := NewRunAlertProcessor(
		NewQualityAlertEvaluator(tdb.DB, DefaultAlertThresholds()),
		NewAlertDispatcher(notifier),
	)
	return processor, notifier, testutil.NewTestDataFactory(tdb.DB)
}

func TestRunAlertProcessorOnSuccess(t *testing.T) {
	processor, notifier, factory := newTestAlertProcessor(t)
	definition := factory.CreatePipelineDefinition()
	run := factory.CreatePipelineRun(definition.ID)

	factory.CreateColumnProfileRecord(run.ID, func(r *models.ColumnProfileRecord) {
		r.ColumnName = "user_id"
		r.MissingPercentage = 55.0
	})

	err := processor.ProcessRunEvent(&models.RunEvent{
		EventType:  models.EventRunSucceeded,
		PipelineID: definition.ID,
		RunID:      run.ID,
	})
	require.NoError(t, err)

	require.Len(t, notifier.received, 1)
	assert.Equal(t, AlertTypeMissingRatio, notifier.received[0].Type)
	assert.Equal(t, AlertSeverityCritical, notifier.received[0].Severity)
}

func TestRunAlertProcessorOnFailureStreak(t *testing.T) {
	processor, notifier, factory := newTestAlertProcessor(t)
	definition := factory.CreatePipelineDefinition()

	for i := 1; i <= 3; i++ {
		age := time.Duration(i) * time.Hour
		factory.CreatePipelineRun(definition.ID, func(r *models.PipelineRun) {
			r.Status = models.RunStatusFailed
			r.StartTime = time.Now().Add(-age)
		})
	}

	err := processor.ProcessRunEvent(&models.RunEvent{
		EventType:  models.EventRunFailed,
		PipelineID: definition.ID,
		RunID:      "run-latest",
	})
	require.NoError(t, err)

	require.Len(t, notifier.received, 1)
	assert.Equal(t, AlertTypeRunFailures, notifier.received[0].Type)
	assert.Equal(t, "run-latest", notifier.received[0].RunID)
}

func TestRunAlertProcessorFailureWithoutStreak(t *testing.T) {
	processor, notifier, factory := newTestAlertProcessor(t)
	definition := factory.CreatePipelineDefinition()

	factory.CreatePipelineRun(definition.ID, func(r *models.PipelineRun) {
		r.Status = models.RunStatusFailed
	})

	err := processor.ProcessRunEvent(&models.RunEvent{
		EventType:  models.EventRunFailed,
		PipelineID: definition.ID,
		RunID:      "run-1",
	})
	require.NoError(t, err)
	assert.Empty(t, notifier.received)
}

func TestRunAlertProcessorEventTypes(t *testing.T) {
	processor, _, _ := newTestAlertProcessor(t)

	assert.ElementsMatch(t,
		[]string{models.EventRunSucceeded, models.EventRunFailed},
		processor.EventTypes())
}
