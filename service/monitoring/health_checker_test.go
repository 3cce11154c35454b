/*
 * @module service/monitoring/health_checker_test
 * @description 健康检查器单元测试，覆盖组件检查、运行巡检和流水线健康评分
 * @architecture 测试层
 * @documentReference ai_docs/quality_pipeline_design.md
 * @stateFlow 构造运行数据 -> 执行检查 -> 断言评分与问题项
 * @rules 使用sqlite内存库，仓库探测用假实现替代
 * @dependencies dataquality-service/testutil, github.com/stretchr/testify
 * @refs service/monitoring/health_checker.go
 */

package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"dataquality-service/service/models"
	"dataquality-service/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePinger struct {
	err error
}

func (f *fakePinger) Ping(ctx context.Context) error {
	return f.err
}

func newTestHealthChecker(t *testing.T) (*HealthChecker, *testutil.TestDB, *testutil.TestDataFactory) {
	t.Helper()

	tdb := testutil.NewTestDB()
	t.Cleanup(tdb.Close)

	return NewHealthChecker(tdb.DB, nil), tdb, testutil.NewTestDataFactory(tdb.DB)
}

func TestCheckOverallHealth(t *testing.T) {
	checker, _, _ := newTestHealthChecker(t)

	status, err := checker.CheckOverallHealth()
	require.NoError(t, err)

	assert.Contains(t, status.Components, "database")
	assert.Contains(t, status.Components, "runtime")
	assert.Contains(t, status.Components, "pipeline_runs")
	assert.NotContains(t, status.Components, "warehouse")

	assert.Equal(t, "healthy", status.Components["database"].Status)
	assert.Equal(t, 100, status.Components["database"].Score)
	assert.Equal(t, "healthy", status.Overall)
	assert.Equal(t, 100, status.Score)
	assert.Empty(t, status.Issues)

	assert.Equal(t, 3, status.Summary.TotalComponents)
	assert.Equal(t, 3, status.Summary.HealthyComponents)
	assert.Equal(t, 0, status.Summary.CriticalComponents)
}

func TestCheckOverallHealthWithWarehouse(t *testing.T) {
	tdb := testutil.NewTestDB()
	t.Cleanup(tdb.Close)

	checker := NewHealthChecker(tdb.DB, &fakePinger{})
	status, err := checker.CheckOverallHealth()
	require.NoError(t, err)

	require.Contains(t, status.Components, "warehouse")
	assert.Equal(t, "healthy", status.Components["warehouse"].Status)
}

func TestCheckOverallHealthWarehouseDown(t *testing.T) {
	tdb := testutil.NewTestDB()
	t.Cleanup(tdb.Close)

	checker := NewHealthChecker(tdb.DB, &fakePinger{err: errors.New("connection refused")})
	status, err := checker.CheckOverallHealth()
	require.NoError(t, err)

	require.Contains(t, status.Components, "warehouse")
	assert.Equal(t, "critical", status.Components["warehouse"].Status)
	assert.Equal(t, 0, status.Components["warehouse"].Score)

	found := false
	for _, issue := range status.Issues {
		if issue.Component == "warehouse" && issue.Type == "connection" {
			found = true
			assert.Equal(t, "critical", issue.Severity)
		}
	}
	assert.True(t, found, "仓库连接失败应产生问题项")
}

func TestCheckOverallHealthHighFailureRate(t *testing.T) {
	checker, _, factory := newTestHealthChecker(t)

	definition := factory.CreatePipelineDefinition()
	for i := 0; i < 3; i++ {
		factory.CreatePipelineRun(definition.ID, func(r *models.PipelineRun) {
			r.Status = models.RunStatusFailed
			r.StartTime = time.Now().Add(-1 * time.Hour)
		})
	}
	for i := 0; i < 2; i++ {
		factory.CreatePipelineRun(definition.ID, func(r *models.PipelineRun) {
			r.StartTime = time.Now().Add(-2 * time.Hour)
		})
	}

	status, err := checker.CheckOverallHealth()
	require.NoError(t, err)

	runs := status.Components["pipeline_runs"]
	assert.Equal(t, "critical", runs.Status)
	assert.Equal(t, 40, runs.Score)
	assert.Equal(t, int64(5), runs.Metrics["finished_runs_24h"])
	assert.Equal(t, int64(3), runs.Metrics["failed_runs_24h"])

	found := false
	for _, issue := range status.Issues {
		if issue.Type == "run_failures" {
			found = true
			assert.Equal(t, "critical", issue.Severity)
		}
	}
	assert.True(t, found, "高失败率应产生问题项")
}

func TestCheckOverallHealthStaleRunning(t *testing.T) {
	checker, _, factory := newTestHealthChecker(t)

	definition := factory.CreatePipelineDefinition()
	factory.CreatePipelineRun(definition.ID, func(r *models.PipelineRun) {
		r.Status = models.RunStatusRunning
		r.StartTime = time.Now().Add(-10 * time.Hour)
		r.EndTime = nil
		r.Duration = 0
	})

	status, err := checker.CheckOverallHealth()
	require.NoError(t, err)

	runs := status.Components["pipeline_runs"]
	assert.Equal(t, 80, runs.Score)
	assert.Equal(t, int64(1), runs.Metrics["stale_running_runs"])

	found := false
	for _, issue := range status.Issues {
		if issue.Type == "stale_run" {
			found = true
			assert.Equal(t, "warning", issue.Severity)
		}
	}
	assert.True(t, found, "卡死运行应产生问题项")
}

func TestCheckPipelineHealth(t *testing.T) {
	checker, _, factory := newTestHealthChecker(t)

	definition := factory.CreatePipelineDefinition()
	for _, seed := range []struct {
		status string
		age    time.Duration
	}{
		{models.RunStatusSucceeded, 5 * time.Hour},
		{models.RunStatusSucceeded, 4 * time.Hour},
		{models.RunStatusSucceeded, 3 * time.Hour},
		{models.RunStatusFailed, 2 * time.Hour},
		{models.RunStatusFailed, 1 * time.Hour},
	} {
		seed := seed
		factory.CreatePipelineRun(definition.ID, func(r *models.PipelineRun) {
			r.Status = seed.status
			r.StartTime = time.Now().Add(-seed.age)
		})
	}

	health, err := checker.CheckPipelineHealth(definition.ID)
	require.NoError(t, err)

	assert.Equal(t, definition.ID, health.PipelineID)
	assert.Equal(t, definition.Name, health.PipelineName)
	assert.Equal(t, models.RunStatusFailed, health.LastRunStatus)
	assert.Equal(t, 2, health.ConsecutiveFailures)
	assert.Equal(t, 60.0, health.SuccessRate)
	// 60 - 15*2
	assert.Equal(t, 30, health.HealthScore)
	assert.Equal(t, "critical", health.Status)
}

func TestCheckPipelineHealthNoRuns(t *testing.T) {
	checker, _, factory := newTestHealthChecker(t)

	definition := factory.CreatePipelineDefinition()
	health, err := checker.CheckPipelineHealth(definition.ID)
	require.NoError(t, err)

	assert.Equal(t, 100.0, health.SuccessRate)
	assert.Equal(t, 0, health.ConsecutiveFailures)
	assert.Equal(t, 100, health.HealthScore)
	assert.Equal(t, "healthy", health.Status)
	assert.Empty(t, health.LastRunStatus)
}

func TestCheckPipelineHealthNotFound(t *testing.T) {
	checker, _, _ := newTestHealthChecker(t)

	_, err := checker.CheckPipelineHealth("missing")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "获取流水线失败")
}

func TestGetStatusFromScore(t *testing.T) {
	checker, _, _ := newTestHealthChecker(t)

	tests := []struct {
		score int
		want  string
	}{
		{100, "healthy"},
		{80, "healthy"},
		{79, "warning"},
		{60, "warning"},
		{59, "critical"},
		{0, "critical"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, checker.getStatusFromScore(tt.score), "score %d", tt.score)
	}
}
