/*
 * @module service/data_quality/deduplicator
 * @description 数据去重器，按复合主键分组并以决胜排序保留每组一条记录
 * @architecture 批处理引擎 - 分组、组内排序、取头两步归约
 * @documentReference ai_docs/quality_pipeline_design.md
 * @stateFlow 主键校验 -> 按键分组 -> 组内决胜排序 -> 保留首条 -> 汇总统计
 * @rules 幂等：对去重结果再次去重得到相同输出；稳定排序加原始行位置保证决胜结果确定
 * @dependencies sort, fmt
 * @refs dataset.go, errors.go
 */

package data_quality

import (
	"fmt"
	"sort"
)

// DedupStatistics 去重前后统计，用于校验
type DedupStatistics struct {
	RawCount     int64 `json:"raw_count"`
	DedupCount   int64 `json:"dedup_count"`
	RemovedCount int64 `json:"removed_count"`
}

// Deduplicator 数据去重器
type Deduplicator struct{}

// NewDeduplicator 创建数据去重器
func NewDeduplicator() *Deduplicator {
	return &Deduplicator{}
}

// indexedRecord 携带原始行位置的记录，位置作为最终决胜依据
type indexedRecord struct {
	index  int
	record Record
}

// Deduplicate 按复合主键去重
// 每个主键值在输出中恰好保留一条记录：组内按决胜排序取第一条，
// 决胜列全部相等时保留原始位置靠前的记录，同一输入多次执行结果一致
// 输出数据集命名为输入名加 _dedup 后缀，模式与输入一致
func (d *Deduplicator) Deduplicate(dataset *Dataset, key CompositeKey, order TieBreakOrder) (*Dataset, *DedupStatistics, error) {
	if len(key) == 0 {
		return nil, nil, fmt.Errorf("复合主键不能为空")
	}
	for _, column := range key {
		if !dataset.HasColumn(column) {
			return nil, nil, &InvalidKeyError{Dataset: dataset.Name, Column: column}
		}
	}
	for _, oc := range order {
		if !dataset.HasColumn(oc.Column) {
			return nil, nil, &MissingColumnError{Dataset: dataset.Name, Column: oc.Column}
		}
	}

	// 分组：主键投影 -> 候选记录集合，保留原始位置
	groups := make(map[string][]indexedRecord)
	groupOrder := make([]string, 0)
	for i, record := range dataset.Rows {
		keyValue := buildKeyValue(record, key)
		if _, exists := groups[keyValue]; !exists {
			groupOrder = append(groupOrder, keyValue)
		}
		groups[keyValue] = append(groups[keyValue], indexedRecord{index: i, record: record})
	}

	// 组内决胜排序后保留首条
	survivors := make([]indexedRecord, 0, len(groups))
	for _, keyValue := range groupOrder {
		group := groups[keyValue]
		if len(group) > 1 {
			sortByTieBreak(group, order)
		}
		survivors = append(survivors, group[0])
	}

	// 按原始行位置输出，保证多次执行产生相同的行序
	sort.Slice(survivors, func(i, j int) bool {
		return survivors[i].index < survivors[j].index
	})

	rows := make([]Record, 0, len(survivors))
	for _, survivor := range survivors {
		rows = append(rows, copyRecord(survivor.record))
	}

	result := &Dataset{
		Name:    dataset.Name + "_dedup",
		Columns: copyColumns(dataset.Columns),
		Rows:    rows,
	}

	stats := &DedupStatistics{
		RawCount:     dataset.RowCount(),
		DedupCount:   result.RowCount(),
		RemovedCount: dataset.RowCount() - result.RowCount(),
	}

	return result, stats, nil
}

// sortByTieBreak 组内稳定排序
// 稳定性保证决胜列全部相等的记录维持原始相对顺序，
// 因此组内第一条即决胜胜者，且同一输入的胜者选择每次一致
// 空值不参与方向比较，无论升降序都排在非空值之后
func sortByTieBreak(group []indexedRecord, order TieBreakOrder) {
	sort.SliceStable(group, func(i, j int) bool {
		for _, oc := range order {
			a := group[i].record[oc.Column]
			b := group[j].record[oc.Column]

			aNil := a == nil
			bNil := b == nil
			if aNil || bNil {
				if aNil && bNil {
					continue
				}
				return bNil
			}

			cmp := compareValues(a, b)
			if cmp == 0 {
				continue
			}
			if oc.Descending {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}
