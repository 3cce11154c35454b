/*
 * @module service/data_quality/outlier_capper
 * @description 离群值封顶器，基于 Tukey 栅栏拟合分位界限并对数值列做非破坏性封顶
 * @architecture 批处理引擎 - 界限拟合与封顶变换分离，界限在阶段间显式传递
 * @documentReference ai_docs/quality_pipeline_design.md
 * @stateFlow 界限拟合 -> 离群统计 -> 封顶变换 -> 前后摘要校验
 * @rules 界限每次运行从当前数据重新计算，绝不沿用历史常量；IQR=0 时界限塌缩并返回可恢复错误；空值原样传递
 * @dependencies strings
 * @refs dataset.go, quantile.go, errors.go, verifier.go
 */

package data_quality

import (
	"strings"
)

// Tukey 栅栏系数
const tukeyFenceK = 1.5

// QuantileBounds 分位界限值对象
// lower = q1 - 1.5*IQR, upper = q3 + 1.5*IQR
type QuantileBounds struct {
	Q1         float64        `json:"q1"`
	Q3         float64        `json:"q3"`
	Lower      float64        `json:"lower"`
	Upper      float64        `json:"upper"`
	Degenerate bool           `json:"degenerate"` // IQR=0 时为 true，四个值全部等于 q1
	Method     QuantileMethod `json:"method"`     // 实际使用的分位数算法
}

// IsOutlier 判断取值是否为离群值
// 退化分布下判定退化为 value != q1
func (b *QuantileBounds) IsOutlier(value float64) bool {
	if b.Degenerate {
		return value != b.Q1
	}
	return value < b.Lower || value > b.Upper
}

// CapValue 将取值封顶到 [lower, upper] 区间
func (b *QuantileBounds) CapValue(value float64) float64 {
	if value < b.Lower {
		return b.Lower
	}
	if value > b.Upper {
		return b.Upper
	}
	return value
}

// OutlierStatistics 离群值统计，基于封顶前的原始列计算
type OutlierStatistics struct {
	Column            string  `json:"column"`
	TotalRows         int64   `json:"total_rows"`
	OutlierCount      int64   `json:"outlier_count"`
	OutlierPercentage float64 `json:"outlier_percentage"`
}

// OutlierCapper 离群值封顶器
type OutlierCapper struct {
	estimator *QuantileEstimator
}

// NewOutlierCapper 创建离群值封顶器，默认按数据规模自动选择分位数算法
func NewOutlierCapper() *OutlierCapper {
	return &OutlierCapper{estimator: NewQuantileEstimator(QuantileAuto)}
}

// NewOutlierCapperWithMethod 创建指定分位数算法的封顶器
func NewOutlierCapperWithMethod(method QuantileMethod) *OutlierCapper {
	return &OutlierCapper{estimator: NewQuantileEstimator(method)}
}

// FitBounds 从当前数据集拟合分位界限
// 分位数只对非空值计算；没有任何非空值时返回 EmptyDatasetError
// IQR=0 时返回塌缩界限和 DegenerateDistributionError，
// 调用方可携带返回的界限继续执行，但必须记录退化状况
func (oc *OutlierCapper) FitBounds(dataset *Dataset, column string) (*QuantileBounds, error) {
	if err := dataset.EnsureColumns(column); err != nil {
		return nil, err
	}

	values := oc.collectValues(dataset, column)
	if len(values) == 0 {
		return nil, &EmptyDatasetError{Dataset: dataset.Name, Operation: "分位界限拟合"}
	}

	quantiles, err := oc.estimator.Quantiles(values, []float64{0.25, 0.75})
	if err != nil {
		return nil, err
	}

	q1, q3 := quantiles[0], quantiles[1]
	iqr := q3 - q1
	bounds := &QuantileBounds{
		Q1:     q1,
		Q3:     q3,
		Lower:  q1 - tukeyFenceK*iqr,
		Upper:  q3 + tukeyFenceK*iqr,
		Method: oc.estimator.Resolve(len(values)),
	}

	if iqr == 0 {
		bounds.Degenerate = true
		bounds.Lower = q1
		bounds.Upper = q1
		return bounds, &DegenerateDistributionError{Dataset: dataset.Name, Column: column, Q1: q1}
	}

	return bounds, nil
}

// CountOutliers 统计封顶前原始列的离群值
// 空值既不计入离群也不计入分母
func (oc *OutlierCapper) CountOutliers(dataset *Dataset, column string, bounds *QuantileBounds) (*OutlierStatistics, error) {
	if err := dataset.EnsureColumns(column); err != nil {
		return nil, err
	}
	if dataset.RowCount() == 0 {
		return nil, &EmptyDatasetError{Dataset: dataset.Name, Operation: "离群值统计"}
	}

	var total, outliers int64
	for _, record := range dataset.Rows {
		value := NumericValue(record, column)
		if value == nil {
			continue
		}
		total++
		if bounds.IsOutlier(*value) {
			outliers++
		}
	}
	if total == 0 {
		return nil, &EmptyDatasetError{Dataset: dataset.Name, Operation: "离群值统计"}
	}

	return &OutlierStatistics{
		Column:            column,
		TotalRows:         total,
		OutlierCount:      outliers,
		OutlierPercentage: roundPercentage(100 * float64(outliers) / float64(total)),
	}, nil
}

// Cap 生成带封顶列的新数据集
// 新列名为 <column>_capped，原始列保留；空值进空值出；
// 所有其他列原样复制，行数与输入一致
// 事件表命名约定：输入名以 _dedup 结尾时输出替换为 _robust 后缀
func (oc *OutlierCapper) Cap(dataset *Dataset, column string, bounds *QuantileBounds) (*Dataset, error) {
	if err := dataset.EnsureColumns(column); err != nil {
		return nil, err
	}

	cappedColumn := column + "_capped"
	rows := make([]Record, 0, len(dataset.Rows))
	for _, record := range dataset.Rows {
		capped := copyRecord(record)
		value := NumericValue(record, column)
		if value == nil {
			capped[cappedColumn] = nil
		} else {
			capped[cappedColumn] = bounds.CapValue(*value)
		}
		rows = append(rows, capped)
	}

	columns := append(copyColumns(dataset.Columns), cappedColumn)

	return &Dataset{
		Name:    robustName(dataset.Name),
		Columns: columns,
		Rows:    rows,
	}, nil
}

// collectValues 收集列的全部非空数值
func (oc *OutlierCapper) collectValues(dataset *Dataset, column string) []float64 {
	values := make([]float64, 0, len(dataset.Rows))
	for _, record := range dataset.Rows {
		if value := NumericValue(record, column); value != nil {
			values = append(values, *value)
		}
	}
	return values
}

// robustName 封顶输出数据集命名
// 已经是 _robust 的名字保持不变，多列封顶时名字不再叠加后缀
func robustName(name string) string {
	if strings.HasSuffix(name, "_robust") {
		return name
	}
	if strings.HasSuffix(name, "_dedup") {
		return strings.TrimSuffix(name, "_dedup") + "_robust"
	}
	return name + "_robust"
}
