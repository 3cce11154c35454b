/*
 * @module service/data_quality/profiler
 * @description 缺失度分析器，统计数据集各列的空值数量与百分比
 * @architecture 批处理引擎 - 纯读取，无副作用的全量统计
 * @documentReference ai_docs/quality_pipeline_design.md
 * @stateFlow 列校验 -> 并行按列统计 -> 百分比汇总
 * @rules 零行数据集必须返回 EmptyDatasetError 而非 NaN，百分比保留两位小数
 * @dependencies sync
 * @refs dataset.go, errors.go
 */

package data_quality

import (
	"sync"
)

// ColumnProfile 单列缺失度统计
type ColumnProfile struct {
	Column            string  `json:"column"`
	TotalRows         int64   `json:"total_rows"`
	MissingCount      int64   `json:"missing_count"`
	MissingPercentage float64 `json:"missing_percentage"`
}

// ProfileResult 缺失度分析结果，Profiles 的键为列名
type ProfileResult struct {
	Dataset  string                    `json:"dataset"`
	Columns  []string                  `json:"columns"`
	Profiles map[string]*ColumnProfile `json:"profiles"`
}

// Profiler 缺失度分析器
type Profiler struct {
	workers int
}

// NewProfiler 创建缺失度分析器
func NewProfiler() *Profiler {
	return &Profiler{workers: 4}
}

// Profile 统计指定列的缺失情况
// 各列统计相互独立，按列并行执行，结果与处理顺序无关
func (p *Profiler) Profile(dataset *Dataset, columns []string) (*ProfileResult, error) {
	if dataset.RowCount() == 0 {
		return nil, &EmptyDatasetError{Dataset: dataset.Name, Operation: "缺失度统计"}
	}
	if err := dataset.EnsureColumns(columns...); err != nil {
		return nil, err
	}

	totalRows := dataset.RowCount()
	profiles := make([]*ColumnProfile, len(columns))

	var wg sync.WaitGroup
	sem := make(chan struct{}, p.workers)

	for i, column := range columns {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, col string) {
			defer wg.Done()
			defer func() { <-sem }()

			var missing int64
			for _, record := range dataset.Rows {
				if IsMissing(record, col) {
					missing++
				}
			}

			profiles[idx] = &ColumnProfile{
				Column:            col,
				TotalRows:         totalRows,
				MissingCount:      missing,
				MissingPercentage: roundPercentage(100 * float64(missing) / float64(totalRows)),
			}
		}(i, column)
	}

	wg.Wait()

	result := &ProfileResult{
		Dataset:  dataset.Name,
		Columns:  copyColumns(columns),
		Profiles: make(map[string]*ColumnProfile, len(columns)),
	}
	for _, profile := range profiles {
		result.Profiles[profile.Column] = profile
	}

	return result, nil
}
