/*
 * @module service/data_quality/errors
 * @description 数据质量流水线的错误类型定义，区分致命错误与可恢复错误
 * @architecture 领域模型层 - 类型化错误
 * @documentReference ai_docs/quality_pipeline_design.md
 * @stateFlow 错误均为结构性输入问题，不做重试，阶段要么完整完成要么原子失败
 * @rules 零行分母必须显式报错而非产生 NaN/Inf，空值属正常数据不触发错误
 * @refs dataset.go, outlier_capper.go
 */

package data_quality

import "fmt"

// EmptyDatasetError 空数据集错误
// 任何针对零行（或零个有效值）的百分比或分位数计算都必须显式失败
type EmptyDatasetError struct {
	Dataset   string
	Operation string
}

func (e *EmptyDatasetError) Error() string {
	return fmt.Sprintf("数据集 %s 没有可用数据，无法执行%s", e.Dataset, e.Operation)
}

// MissingColumnError 列缺失错误，引用的列不在数据集模式中，致命错误
type MissingColumnError struct {
	Dataset string
	Column  string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("数据集 %s 缺少列 %s", e.Dataset, e.Column)
}

// InvalidKeyError 无效主键错误，复合主键引用了数据集中不存在的列
type InvalidKeyError struct {
	Dataset string
	Column  string
}

func (e *InvalidKeyError) Error() string {
	return fmt.Sprintf("数据集 %s 的复合主键引用了不存在的列 %s", e.Dataset, e.Column)
}

// DegenerateDistributionError 退化分布错误，可恢复
// IQR 为零时分位界限塌缩为 q1，离群判定退化为 value != q1
// 调用方可以携带返回的塌缩界限继续执行，但必须记录该状况
type DegenerateDistributionError struct {
	Dataset string
	Column  string
	Q1      float64
}

func (e *DegenerateDistributionError) Error() string {
	return fmt.Sprintf("数据集 %s 列 %s 的分布退化（IQR=0），界限塌缩为 %v", e.Dataset, e.Column, e.Q1)
}
