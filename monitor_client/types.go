package monitor_client

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/prometheus/common/model"
	"github.com/spf13/cast"
)

// QueryResultResp 指标查询的外层响应
type QueryResultResp struct {
	Status string      `json:"status"`
	Data   QueryResult `json:"data"`
}

// QueryResult 指标查询结果，Result 按 Type 延迟解析
type QueryResult struct {
	Type   string          `json:"resultType"`
	Result json.RawMessage `json:"result,omitempty"`
}

// Vector 把即时查询结果解析为样本向量
func (r *QueryResult) Vector() (model.Vector, error) {
	if r.Type != "vector" {
		return nil, fmt.Errorf("结果类型 %s 不是 vector", r.Type)
	}
	if len(r.Result) == 0 || string(r.Result) == "null" {
		return model.Vector{}, nil
	}

	var vector model.Vector
	if err := json.Unmarshal(r.Result, &vector); err != nil {
		return nil, fmt.Errorf("解析样本向量失败: %w", err)
	}
	return vector, nil
}

// Matrix 把区间查询结果解析为时间序列矩阵
func (r *QueryResult) Matrix() (model.Matrix, error) {
	if r.Type != "matrix" {
		return nil, fmt.Errorf("结果类型 %s 不是 matrix", r.Type)
	}
	if len(r.Result) == 0 || string(r.Result) == "null" {
		return model.Matrix{}, nil
	}

	var matrix model.Matrix
	if err := json.Unmarshal(r.Result, &matrix); err != nil {
		return nil, fmt.Errorf("解析时间序列失败: %w", err)
	}
	return matrix, nil
}

// FirstValue 返回向量结果中第一个样本的值，空结果返回0
func (r *QueryResult) FirstValue() (float64, error) {
	vector, err := r.Vector()
	if err != nil {
		return 0, err
	}
	if len(vector) == 0 {
		return 0, nil
	}
	return float64(vector[0].Value), nil
}

// LokiQueryResultResp Loki查询的外层响应
type LokiQueryResultResp struct {
	Status string          `json:"status"`
	Data   LokiQueryResult `json:"data"`
}

// LokiQueryResult Loki查询结果
type LokiQueryResult struct {
	ResultType string       `json:"resultType"`
	Result     []LokiResult `json:"result"`
}

// LokiResult 单个日志流，Values 的每个元素为 [纳秒时间戳, 日志行]
type LokiResult struct {
	Stream map[string]string `json:"stream"`
	Values [][]string        `json:"values"`
}

// LokiLabelValueResp Loki标签值响应
type LokiLabelValueResp struct {
	Status string   `json:"status"`
	Data   []string `json:"data"`
}

// LokiLogLine 扁平化后的单条日志
type LokiLogLine struct {
	Timestamp time.Time         `json:"timestamp"`
	Line      string            `json:"line"`
	Labels    map[string]string `json:"labels"`
}

// Lines 把全部日志流扁平化为按时间升序的日志行
func (r *LokiQueryResult) Lines() []LokiLogLine {
	lines := make([]LokiLogLine, 0)
	for _, stream := range r.Result {
		for _, pair := range stream.Values {
			if len(pair) != 2 {
				continue
			}
			lines = append(lines, LokiLogLine{
				Timestamp: time.Unix(0, cast.ToInt64(pair[0])),
				Line:      pair[1],
				Labels:    stream.Stream,
			})
		}
	}

	sort.Slice(lines, func(i, j int) bool {
		return lines[i].Timestamp.Before(lines[j].Timestamp)
	})
	return lines
}
