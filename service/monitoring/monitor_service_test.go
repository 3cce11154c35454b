/*
 * @module service/monitoring/monitor_service_test
 * @description 监控服务单元测试，覆盖运行活跃度聚合、仪表板指标查询与日志查询
 * @architecture 测试层
 * @stateFlow 准备运行数据或模拟外部服务 -> 调用监控服务 -> 断言聚合结果
 * @rules 外部指标库与日志库用 httptest 模拟，测试结束后恢复原始地址
 * @dependencies dataquality-service/testutil, net/http/httptest, github.com/stretchr/testify
 * @refs service/monitoring/monitor_service.go
 */

package monitoring

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"dataquality-service/monitor_client"
	"dataquality-service/service/models"
	"dataquality-service/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMonitorService(t *testing.T) (*MonitorService, *testutil.TestDataFactory) {
	t.Helper()

	tdb := testutil.NewTestDB()
	t.Cleanup(tdb.Close)

	return NewMonitorService(tdb.DB, nil), testutil.NewTestDataFactory(tdb.DB)
}

func TestGetSystemMetrics(t *testing.T) {
	service, _ := newTestMonitorService(t)

	metrics, err := service.GetSystemMetrics()
	require.NoError(t, err)

	assert.False(t, metrics.Timestamp.IsZero())
	assert.Greater(t, metrics.GoroutineCount, 0)
	assert.Greater(t, metrics.HeapAllocBytes, uint64(0))
	assert.Greater(t, metrics.HeapSysBytes, uint64(0))
}

func TestGetRunActivity(t *testing.T) {
	service, factory := newTestMonitorService(t)
	definition := factory.CreatePipelineDefinition()

	recent := factory.CreatePipelineRun(definition.ID, func(r *models.PipelineRun) {
		r.StartTime = time.Now().Add(-1 * time.Hour)
		r.Duration = 2000
	})
	factory.CreatePipelineRun(definition.ID, func(r *models.PipelineRun) {
		r.StartTime = time.Now().Add(-2 * time.Hour)
		r.Duration = 4000
	})
	failed := factory.CreatePipelineRun(definition.ID, func(r *models.PipelineRun) {
		r.Status = models.RunStatusFailed
		r.CurrentStage = "dedup"
		r.StartTime = time.Now().Add(-30 * time.Minute)
		r.Duration = 1000
	})
	factory.CreatePipelineRun(definition.ID, func(r *models.PipelineRun) {
		r.Status = models.RunStatusRunning
		r.StartTime = time.Now().Add(-10 * time.Minute)
	})
	// 窗口之外的历史运行不应计入
	old := factory.CreatePipelineRun(definition.ID, func(r *models.PipelineRun) {
		r.StartTime = time.Now().Add(-48 * time.Hour)
	})

	factory.CreateDedupStatRecord(recent.ID)
	factory.CreateDedupStatRecord(failed.ID, func(rec *models.DedupStatRecord) {
		rec.RemovedCount = 5
	})
	factory.CreateDedupStatRecord(old.ID, func(rec *models.DedupStatRecord) {
		rec.RemovedCount = 999
	})

	metrics, err := service.GetRunActivity("24h")
	require.NoError(t, err)

	assert.Equal(t, "24h", metrics.TimeRange)
	assert.Equal(t, int64(4), metrics.TotalRuns)
	assert.Equal(t, int64(1), metrics.RunningRuns)
	assert.Equal(t, int64(2), metrics.SucceededRuns)
	assert.Equal(t, int64(1), metrics.FailedRuns)
	assert.InDelta(t, 66.67, metrics.SuccessRate, 0.01)
	assert.InDelta(t, 2333.33, metrics.AvgDurationMs, 0.01)
	assert.Equal(t, int64(15), metrics.RowsDeduplicated)
	assert.Equal(t, map[string]int64{"dedup": 1}, metrics.FailuresByStage)
}

func TestGetRunActivityEmptyWindow(t *testing.T) {
	service, _ := newTestMonitorService(t)

	metrics, err := service.GetRunActivity("1h")
	require.NoError(t, err)

	assert.Equal(t, int64(0), metrics.TotalRuns)
	assert.Equal(t, 0.0, metrics.SuccessRate)
	assert.Equal(t, 0.0, metrics.AvgDurationMs)
	assert.Equal(t, int64(0), metrics.RowsDeduplicated)
	assert.Empty(t, metrics.FailuresByStage)
}

func TestParseTimeRange(t *testing.T) {
	service, _ := newTestMonitorService(t)

	tests := []struct {
		timeRange string
		wantHours float64
	}{
		{"1h", 1},
		{"24h", 24},
		{"7d", 168},
		{"30d", 720},
		{"unknown", 24},
	}

	for _, tt := range tests {
		t.Run(tt.timeRange, func(t *testing.T) {
			since := service.parseTimeRange(tt.timeRange)
			assert.InDelta(t, tt.wantHours, time.Since(since).Hours(), 0.01)
		})
	}
}

func TestGetDashboardMetrics(t *testing.T) {
	values := map[string]string{
		`sum(dataquality_pipeline_runs_total{status="succeeded"})`: "12",
		`sum(dataquality_pipeline_runs_total{status="failed"})`:    "3",
		`sum(dataquality_pipeline_runs_in_flight)`:                 "1",
		`sum(dataquality_run_warnings_total)`:                      "4",
		`sum(dataquality_anomaly_matched_rows)`:                    "25",
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		value, ok := values[r.URL.Query().Get("query")]
		if !ok {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"success","data":{"resultType":"vector","result":[{"metric":{},"value":[1700000000,%q]}]}}`, value)
	}))
	defer server.Close()

	originalURL := monitor_client.GetVictoriaMetricsUrl()
	monitor_client.SetVictoriaMetricsUrl(server.URL)
	defer monitor_client.SetVictoriaMetricsUrl(originalURL)

	service, _ := newTestMonitorService(t)

	metrics, err := service.GetDashboardMetrics(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 12.0, metrics.RunsSucceeded)
	assert.Equal(t, 3.0, metrics.RunsFailed)
	assert.Equal(t, 1.0, metrics.RunsInFlight)
	assert.Equal(t, 4.0, metrics.WarningsTotal)
	assert.Equal(t, 25.0, metrics.AnomalyRows)
	assert.False(t, metrics.Timestamp.IsZero())
}

func TestGetDashboardMetricsQueryError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	originalURL := monitor_client.GetVictoriaMetricsUrl()
	monitor_client.SetVictoriaMetricsUrl(server.URL)
	defer monitor_client.SetVictoriaMetricsUrl(originalURL)

	service, _ := newTestMonitorService(t)

	_, err := service.GetDashboardMetrics(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "查询指标库失败")
}

func TestGetRecentLogs(t *testing.T) {
	var gotSelectors []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/loki/api/v1/query_range", r.URL.Path)
		gotSelectors = append(gotSelectors, r.URL.Query().Get("query"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"status":"success","data":{"resultType":"streams","result":[{"stream":{"app":"dataquality-service","level":"error"},"values":[["1700000002000000000","阶段执行失败"],["1700000001000000000","运行开始"]]}]}}`)
	}))
	defer server.Close()

	originalURL := monitor_client.GetLokiUrl()
	monitor_client.SetLokiUrl(server.URL)
	defer monitor_client.SetLokiUrl(originalURL)

	service, _ := newTestMonitorService(t)

	lines, err := service.GetRecentLogs(context.Background(), "error", 50, 1)
	require.NoError(t, err)
	require.Len(t, lines, 2)

	// 日志行按时间升序返回
	assert.Equal(t, "运行开始", lines[0].Line)
	assert.Equal(t, "阶段执行失败", lines[1].Line)
	assert.True(t, lines[0].Timestamp.Before(lines[1].Timestamp))
	assert.Equal(t, "error", lines[0].Labels["level"])

	_, err = service.GetRecentLogs(context.Background(), "", 50, 1)
	require.NoError(t, err)

	require.Len(t, gotSelectors, 2)
	assert.Equal(t, `{app="dataquality-service", level="error"}`, gotSelectors[0])
	assert.Equal(t, `{app="dataquality-service"}`, gotSelectors[1])
}
