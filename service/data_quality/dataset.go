/*
 * @module service/data_quality/dataset
 * @description 数据集抽象，定义记录、数据集、复合主键与排序规则等核心类型
 * @architecture 领域模型层 - 批处理流水线共享的数据抽象
 * @documentReference ai_docs/quality_pipeline_design.md
 * @stateFlow 数据集一次创建，只读消费，任何变换产生新数据集
 * @rules 输入数据集不可变，空值(nil)是正常数据状态而非错误
 * @dependencies github.com/spf13/cast, fmt, strings
 * @refs profiler.go, deduplicator.go, outlier_capper.go, anomaly_flagger.go
 */

package data_quality

import (
	"fmt"
	"math"
	"strings"

	"github.com/spf13/cast"
)

// Record 一条数据记录，列名到标量值的映射，nil 或键缺失表示空值
type Record = map[string]interface{}

// Dataset 命名数据集，同一模式下的记录多重集合
// 流水线产出的数据集是新的只读产物，输入数据集永远不被修改
type Dataset struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Rows    []Record `json:"rows"`
}

// CompositeKey 复合主键，按顺序排列的列名元组
// 两条记录在复合主键上的投影相等即互为重复
type CompositeKey []string

// OrderColumn 排序列定义
type OrderColumn struct {
	Column     string `json:"column"`
	Descending bool   `json:"descending"`
}

// TieBreakOrder 组内决胜排序，按列顺序依次比较
type TieBreakOrder []OrderColumn

// NewDataset 创建数据集
func NewDataset(name string, columns []string, rows []Record) *Dataset {
	return &Dataset{
		Name:    name,
		Columns: columns,
		Rows:    rows,
	}
}

// RowCount 数据集行数
func (d *Dataset) RowCount() int64 {
	return int64(len(d.Rows))
}

// HasColumn 检查列是否存在于数据集模式中
func (d *Dataset) HasColumn(column string) bool {
	for _, col := range d.Columns {
		if col == column {
			return true
		}
	}
	return false
}

// EnsureColumns 校验引用的列都在模式中，缺失时返回 MissingColumnError
func (d *Dataset) EnsureColumns(columns ...string) error {
	for _, col := range columns {
		if !d.HasColumn(col) {
			return &MissingColumnError{Dataset: d.Name, Column: col}
		}
	}
	return nil
}

// IsMissing 判断记录在指定列上是否为空值
// 空值定义为 nil 或键不存在，空字符串不算缺失
func IsMissing(record Record, column string) bool {
	value, exists := record[column]
	return !exists || value == nil
}

// NumericValue 读取记录中的数值字段，空值或无法解析时返回 nil
func NumericValue(record Record, column string) *float64 {
	value, exists := record[column]
	if !exists || value == nil {
		return nil
	}
	f, err := cast.ToFloat64E(value)
	if err != nil {
		return nil
	}
	return &f
}

// copyRecord 复制记录
func copyRecord(record Record) Record {
	copied := make(Record, len(record))
	for key, value := range record {
		copied[key] = value
	}
	return copied
}

// copyColumns 复制模式列表
func copyColumns(columns []string) []string {
	copied := make([]string, len(columns))
	copy(copied, columns)
	return copied
}

// buildKeyValue 生成记录在复合主键上的投影键
// 字段值经 %q 转义后拼接，含分隔符的值不会伪造出其他字段的边界；
// 空值投影为不带引号的 <nil>，与字面量字符串 "<nil>" 不冲突
func buildKeyValue(record Record, key CompositeKey) string {
	parts := make([]string, 0, len(key))
	for _, field := range key {
		value, exists := record[field]
		if !exists || value == nil {
			parts = append(parts, field+":<nil>")
			continue
		}
		parts = append(parts, fmt.Sprintf("%s:%q", field, fmt.Sprintf("%v", value)))
	}
	return strings.Join(parts, ";")
}

// compareValues 按决胜排序比较两个字段值，返回 -1/0/1
// 两值均为数值时按数值比较，否则按字符串比较
// 空值永远排在非空值之后，不会成为保留记录的依据
func compareValues(a, b interface{}) int {
	aNil := a == nil
	bNil := b == nil
	if aNil && bNil {
		return 0
	}
	if aNil {
		return 1
	}
	if bNil {
		return -1
	}

	aNum, aErr := cast.ToFloat64E(a)
	bNum, bErr := cast.ToFloat64E(b)
	if aErr == nil && bErr == nil {
		switch {
		case aNum < bNum:
			return -1
		case aNum > bNum:
			return 1
		default:
			return 0
		}
	}

	aStr := cast.ToString(a)
	bStr := cast.ToString(b)
	switch {
	case aStr < bStr:
		return -1
	case aStr > bStr:
		return 1
	default:
		return 0
	}
}

// roundPercentage 百分比保留两位小数
func roundPercentage(value float64) float64 {
	return math.Round(value*100) / 100
}
