package monitor_client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

// stubVictoriaMetrics 启动一个指标桩服务器并临时接管客户端URL
func stubVictoriaMetrics(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	original := GetVictoriaMetricsUrl()
	SetVictoriaMetricsUrl(server.URL)
	t.Cleanup(func() {
		SetVictoriaMetricsUrl(original)
		server.Close()
	})
	return server
}

func TestQueryForwardsParams(t *testing.T) {
	queryTime := time.Unix(1700000000, 0)

	var gotPath, gotQuery, gotTime string
	stubVictoriaMetrics(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query().Get("query")
		gotTime = r.URL.Query().Get("time")

		w.Write([]byte(`{
			"status": "success",
			"data": {
				"resultType": "vector",
				"result": [{"metric": {"status": "succeeded"}, "value": [1700000000, "42"]}]
			}
		}`))
	})

	result, err := Query(context.Background(), `sum(dataquality_pipeline_runs_total{status="succeeded"})`, queryTime)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}

	if gotPath != "/api/v1/query" {
		t.Errorf("请求路径 = %s", gotPath)
	}
	if gotQuery != `sum(dataquality_pipeline_runs_total{status="succeeded"})` {
		t.Errorf("query 参数 = %s", gotQuery)
	}
	if gotTime != "1700000000" {
		t.Errorf("time 参数 = %s, want 1700000000", gotTime)
	}

	v, err := result.FirstValue()
	if err != nil {
		t.Fatalf("FirstValue() error = %v", err)
	}
	if v != 42 {
		t.Errorf("FirstValue() = %v, want 42", v)
	}
}

func TestQueryZeroTimeDefaultsToNow(t *testing.T) {
	var gotTime string
	stubVictoriaMetrics(t, func(w http.ResponseWriter, r *http.Request) {
		gotTime = r.URL.Query().Get("time")
		json.NewEncoder(w).Encode(QueryResultResp{
			Status: "success",
			Data:   QueryResult{Type: "vector"},
		})
	})

	before := time.Now().Unix()
	if _, err := Query(context.Background(), "dataquality_run_duration_seconds", time.Time{}); err != nil {
		t.Fatalf("Query() error = %v", err)
	}

	ts, err := strconv.ParseFloat(gotTime, 64)
	if err != nil {
		t.Fatalf("time 参数不是Unix时间戳: %s", gotTime)
	}
	if int64(ts) < before-5 || int64(ts) > before+5 {
		t.Errorf("零时间应使用当前时间, 实际 %v", gotTime)
	}
}

func TestQueryEmptyExpr(t *testing.T) {
	if _, err := Query(context.Background(), "", time.Now()); err == nil {
		t.Error("空查询应报错")
	}
}

func TestQueryErrorStatus(t *testing.T) {
	stubVictoriaMetrics(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(QueryResultResp{Status: "error"})
	})

	if _, err := Query(context.Background(), "dataquality_pipeline_runs_total", time.Now()); err == nil {
		t.Error("status=error 应报错")
	}
}

func TestQueryRangeSendsForm(t *testing.T) {
	start := time.Unix(1700000000, 0)
	end := start.Add(time.Hour)

	var gotMethod, gotStart, gotEnd, gotStep string
	stubVictoriaMetrics(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		r.ParseForm()
		gotStart = r.FormValue("start")
		gotEnd = r.FormValue("end")
		gotStep = r.FormValue("step")

		w.Write([]byte(`{
			"status": "success",
			"data": {
				"resultType": "matrix",
				"result": [{"metric": {"pipeline_id": "p-1"}, "values": [[1700000000, "1"], [1700000060, "3"]]}]
			}
		}`))
	})

	// step 非法时落到默认15秒
	result, err := QueryRange(context.Background(), "rate(dataquality_rows_flagged_total[5m])", start, end, 0)
	if err != nil {
		t.Fatalf("QueryRange() error = %v", err)
	}

	if gotMethod != http.MethodPost {
		t.Errorf("请求方法 = %s, want POST", gotMethod)
	}
	if gotStart != "1700000000" || gotEnd != "1700003600" {
		t.Errorf("时间范围 = [%s, %s]", gotStart, gotEnd)
	}
	if gotStep != "15" {
		t.Errorf("默认 step = %s, want 15", gotStep)
	}

	mat, err := result.Matrix()
	if err != nil {
		t.Fatalf("Matrix() error = %v", err)
	}
	if len(mat) != 1 || len(mat[0].Values) != 2 {
		t.Fatalf("矩阵结构不符: %v", mat)
	}
	if float64(mat[0].Values[1].Value) != 3 {
		t.Errorf("第二个样本点值 = %v, want 3", mat[0].Values[1].Value)
	}
}

func TestQueryRangeValidation(t *testing.T) {
	now := time.Now()
	earlier := now.Add(-time.Hour)

	tests := []struct {
		name  string
		query string
		start time.Time
		end   time.Time
	}{
		{"空查询", "", earlier, now},
		{"开始时间为零", "dataquality_pipeline_runs_total", time.Time{}, now},
		{"结束时间为零", "dataquality_pipeline_runs_total", earlier, time.Time{}},
		{"开始晚于结束", "dataquality_pipeline_runs_total", now, earlier},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := QueryRange(context.Background(), tt.query, tt.start, tt.end, time.Minute); err == nil {
				t.Error("期望参数校验错误")
			}
		})
	}
}

func TestFormatTime(t *testing.T) {
	if got := formatTime(time.Unix(0, 0)); got != "0" {
		t.Errorf("formatTime(epoch) = %s, want 0", got)
	}
	if got := formatTime(time.Unix(1700000000, 0)); got != "1700000000" {
		t.Errorf("formatTime() = %s, want 1700000000", got)
	}
}

func TestQueryContextTimeout(t *testing.T) {
	stubVictoriaMetrics(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		json.NewEncoder(w).Encode(QueryResultResp{Status: "success"})
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := Query(ctx, "dataquality_pipeline_runs_total", time.Now()); err == nil {
		t.Error("上下文超时应报错")
	}
}
