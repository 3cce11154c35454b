package monitor_client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/spf13/cast"
)

const (
	defaultLokiQueryLimit  = 100
	defaultLokiStreamLimit = 1000
)

var LokiUrl = "http://localhost:3100"

func init() {
	if envUrl := os.Getenv("LOKI_URL"); envUrl != "" {
		LokiUrl = envUrl
	}
}

// SetLokiUrl 设置 Loki 的 URL（用于测试）
func SetLokiUrl(url string) {
	LokiUrl = url
}

// GetLokiUrl 获取当前 Loki 的 URL
func GetLokiUrl() string {
	return LokiUrl
}

// LokiQuery 执行 Loki 即时查询
func LokiQuery(ctx context.Context, query string, limit int) (*QueryResult, error) {
	if query == "" {
		return nil, errors.New("query cannot be empty")
	}
	if limit <= 0 {
		limit = defaultLokiQueryLimit
	}

	params := url.Values{}
	params.Add("query", query)
	params.Add("limit", cast.ToString(limit))

	var resp QueryResultResp
	if err := doGet(ctx, LokiUrl+"/loki/api/v1/query", params, &resp); err != nil {
		return nil, err
	}
	if resp.Status != "success" {
		return nil, fmt.Errorf("查询失败: %s", resp.Status)
	}
	return &resp.Data, nil
}

// LokiStreamQuery 执行 Loki 流查询，返回最近 preHours 小时内的日志流
func LokiStreamQuery(ctx context.Context, query string, limit int, preHours int) (*LokiQueryResult, error) {
	if preHours <= 0 {
		preHours = 1
	}

	end := time.Now()
	start := end.Add(time.Duration(-preHours) * time.Hour)
	return LokiRangeQuery(ctx, query, limit, start, end)
}

// LokiRangeQuery 执行 Loki 区间查询（支持指定时间范围）
func LokiRangeQuery(ctx context.Context, query string, limit int, start, end time.Time) (*LokiQueryResult, error) {
	if query == "" {
		return nil, errors.New("query cannot be empty")
	}
	if limit <= 0 {
		limit = defaultLokiStreamLimit
	}

	params := url.Values{}
	params.Add("query", query)
	params.Add("limit", cast.ToString(limit))
	params.Add("start", cast.ToString(start.UnixNano()))
	params.Add("end", cast.ToString(end.UnixNano()))

	var resp LokiQueryResultResp
	if err := doGet(ctx, LokiUrl+"/loki/api/v1/query_range", params, &resp); err != nil {
		return nil, err
	}
	if resp.Status != "success" {
		return nil, fmt.Errorf("查询失败: %s", resp.Status)
	}
	return &resp.Data, nil
}

// LokiLabelValues 获取指定标签的所有值
func LokiLabelValues(ctx context.Context, label string) ([]string, error) {
	if label == "" {
		return nil, errors.New("label cannot be empty")
	}

	var resp LokiLabelValueResp
	if err := doGet(ctx, LokiUrl+"/loki/api/v1/label/"+label+"/values", nil, &resp); err != nil {
		return nil, err
	}
	if resp.Status != "success" {
		return nil, fmt.Errorf("查询失败: %s", resp.Status)
	}
	return resp.Data, nil
}
