/*
 * @module service/data_quality/verifier
 * @description 变换前后校验，每个流水线阶段都要能给出可对照的摘要以便不重推导地验证正确性
 * @architecture 横切关注 - 摘要值对象加不变量检查，不是独立流水线阶段
 * @documentReference ai_docs/quality_pipeline_design.md
 * @stateFlow 变换前摘要 -> 执行变换 -> 变换后摘要 -> 不变量比对
 * @rules 封顶后 min>=lower 且 max<=upper（浮点容差内），中位数非离群时保持不变；去重行数不增
 * @dependencies sort, fmt, math
 * @refs outlier_capper.go, deduplicator.go
 */

package data_quality

import (
	"fmt"
	"math"
	"sort"
)

// 摘要比对的浮点容差
const verifyEpsilon = 1e-9

// ColumnSummary 列数值摘要，忽略空值
type ColumnSummary struct {
	Column string  `json:"column"`
	Count  int64   `json:"count"`
	Min    float64 `json:"min"`
	Median float64 `json:"median"`
	Max    float64 `json:"max"`
}

// CappingVerification 封顶前后校验结果
type CappingVerification struct {
	Before *ColumnSummary `json:"before"`
	After  *ColumnSummary `json:"after"`
	Issues []string       `json:"issues"`
	Passed bool           `json:"passed"`
}

// SummarizeColumn 计算列的 min/median/max 摘要
// 空值不参与统计，没有任何非空值时返回 EmptyDatasetError
func SummarizeColumn(dataset *Dataset, column string) (*ColumnSummary, error) {
	if err := dataset.EnsureColumns(column); err != nil {
		return nil, err
	}

	values := make([]float64, 0, len(dataset.Rows))
	for _, record := range dataset.Rows {
		if value := NumericValue(record, column); value != nil {
			values = append(values, *value)
		}
	}
	if len(values) == 0 {
		return nil, &EmptyDatasetError{Dataset: dataset.Name, Operation: "列摘要计算"}
	}

	sort.Float64s(values)

	return &ColumnSummary{
		Column: column,
		Count:  int64(len(values)),
		Min:    values[0],
		Median: exactQuantile(values, 0.5),
		Max:    values[len(values)-1],
	}, nil
}

// VerifyCapping 校验封顶变换的不变量
// 检查项：封顶后最小值不低于下界、最大值不高于上界（容差内）、
// 封顶前的中位数不是离群值时封顶后中位数保持不变、非空值数量不变
func VerifyCapping(before, after *ColumnSummary, bounds *QuantileBounds) *CappingVerification {
	verification := &CappingVerification{
		Before: before,
		After:  after,
		Issues: make([]string, 0),
	}

	if after.Min < bounds.Lower-verifyEpsilon {
		verification.Issues = append(verification.Issues,
			fmt.Sprintf("封顶后最小值 %v 低于下界 %v", after.Min, bounds.Lower))
	}
	if after.Max > bounds.Upper+verifyEpsilon {
		verification.Issues = append(verification.Issues,
			fmt.Sprintf("封顶后最大值 %v 高于上界 %v", after.Max, bounds.Upper))
	}
	if !bounds.IsOutlier(before.Median) && math.Abs(after.Median-before.Median) > verifyEpsilon {
		verification.Issues = append(verification.Issues,
			fmt.Sprintf("中位数 %v 不是离群值但封顶后变为 %v", before.Median, after.Median))
	}
	if before.Count != after.Count {
		verification.Issues = append(verification.Issues,
			fmt.Sprintf("封顶前后非空值数量不一致: %d -> %d", before.Count, after.Count))
	}

	verification.Passed = len(verification.Issues) == 0
	return verification
}

// VerifyDeduplication 校验去重统计的不变量
// 去重后行数不得超过原始行数，移除数必须与两者之差一致
func VerifyDeduplication(stats *DedupStatistics) error {
	if stats.DedupCount > stats.RawCount {
		return fmt.Errorf("去重后行数 %d 超过原始行数 %d", stats.DedupCount, stats.RawCount)
	}
	if stats.RemovedCount != stats.RawCount-stats.DedupCount {
		return fmt.Errorf("去重统计不自洽: raw=%d dedup=%d removed=%d",
			stats.RawCount, stats.DedupCount, stats.RemovedCount)
	}
	return nil
}

// VerifyRowCarryover 校验非删减变换前后行数一致（封顶只加列不增删行）
func VerifyRowCarryover(input, output *Dataset) error {
	if input.RowCount() != output.RowCount() {
		return fmt.Errorf("变换前后行数不一致: %s=%d %s=%d",
			input.Name, input.RowCount(), output.Name, output.RowCount())
	}
	return nil
}
