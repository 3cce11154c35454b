package monitor_client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

const defaultQueryRangeStep = 15 * time.Second

var VictoriaMetricsUrl = "http://localhost:8428"

func init() {
	if envUrl := os.Getenv("VICTORIA_METRICS_URL"); envUrl != "" {
		VictoriaMetricsUrl = envUrl
	}
}

// SetVictoriaMetricsUrl 设置 VictoriaMetrics 的 URL（用于测试）
func SetVictoriaMetricsUrl(url string) {
	VictoriaMetricsUrl = url
}

// GetVictoriaMetricsUrl 获取当前 VictoriaMetrics 的 URL
func GetVictoriaMetricsUrl() string {
	return VictoriaMetricsUrl
}

// Query 执行即时查询，queryTime 为零值时查询当前时刻
func Query(ctx context.Context, query string, queryTime time.Time) (*QueryResult, error) {
	if query == "" {
		return nil, errors.New("query cannot be empty")
	}
	if queryTime.IsZero() {
		queryTime = time.Now()
	}

	params := url.Values{}
	params.Add("query", query)
	params.Add("time", formatTime(queryTime))

	var resp QueryResultResp
	if err := doGet(ctx, VictoriaMetricsUrl+"/api/v1/query", params, &resp); err != nil {
		return nil, err
	}
	if resp.Status != "success" {
		return nil, fmt.Errorf("查询失败: %s", resp.Status)
	}
	return &resp.Data, nil
}

// QueryRange 执行区间查询
func QueryRange(ctx context.Context, query string, start, end time.Time, step time.Duration) (*QueryResult, error) {
	if query == "" {
		return nil, errors.New("query cannot be empty")
	}
	if start.IsZero() || end.IsZero() {
		return nil, errors.New("start and end time cannot be zero")
	}
	if start.After(end) {
		return nil, errors.New("start time must be before end time")
	}
	if step <= 0 {
		step = defaultQueryRangeStep
	}

	form := url.Values{}
	form.Set("query", query)
	form.Set("start", formatTime(start))
	form.Set("end", formatTime(end))
	form.Set("step", strconv.FormatFloat(step.Seconds(), 'f', -1, 64))

	var resp QueryResultResp
	if err := doPostForm(ctx, VictoriaMetricsUrl+"/api/v1/query_range", form, &resp); err != nil {
		return nil, err
	}
	if resp.Status != "success" {
		return nil, fmt.Errorf("查询失败: %s", resp.Status)
	}
	return &resp.Data, nil
}

func formatTime(t time.Time) string {
	return strconv.FormatFloat(float64(t.Unix()), 'f', -1, 64)
}
