/*
 * @module service/data_quality/anomaly_flagger
 * @description 业务异常标记器，按配置化规则注册表评估阈值规则并输出命中计数与百分比
 * @architecture 规则引擎 - 规则是配置不是代码，增删规则不改动评估引擎
 * @documentReference ai_docs/quality_pipeline_design.md
 * @stateFlow 规则校验 -> 按规则并行评估 -> 按声明顺序汇总
 * @rules 规则相互独立；谓词涉及字段为空的行同时从分子分母中剔除；输出顺序是声明顺序而非字母序
 * @dependencies sync, fmt
 * @refs dataset.go, script_rule.go, errors.go
 */

package data_quality

import (
	"fmt"
	"sync"
)

// 条件组合逻辑
const (
	RuleLogicAnd = "and" // 全部条件满足
	RuleLogicOr  = "or"  // 任一条件满足
)

// 条件运算符
const (
	OperatorEq  = "eq"
	OperatorNe  = "ne"
	OperatorGt  = "gt"
	OperatorLt  = "lt"
	OperatorGte = "gte"
	OperatorLte = "lte"
)

// RuleCondition 规则条件，针对单个字段的比较
type RuleCondition struct {
	Field    string      `json:"field"`
	Operator string      `json:"operator"` // eq, ne, gt, lt, gte, lte
	Value    interface{} `json:"value"`
}

// AnomalyRule 业务异常规则
// 谓词由条件列表加组合逻辑表达，或者由脚本表达式表达（二选一，脚本优先）
// 脚本规则必须通过 Fields 显式声明谓词涉及的字段，用于空值剔除
type AnomalyRule struct {
	Name          string          `json:"name"`
	SourceDataset string          `json:"source_dataset"`
	Logic         string          `json:"logic"` // and / or，留空视为 or，与规则配置的落库默认一致
	Conditions    []RuleCondition `json:"conditions"`
	Script        string          `json:"script,omitempty"`
	Fields        []string        `json:"fields,omitempty"`
	Description   string          `json:"description,omitempty"`
}

// InspectedFields 谓词涉及的字段集合
func (r *AnomalyRule) InspectedFields() []string {
	if r.Script != "" {
		return r.Fields
	}
	seen := make(map[string]bool)
	fields := make([]string, 0, len(r.Conditions))
	for _, condition := range r.Conditions {
		if !seen[condition.Field] {
			seen[condition.Field] = true
			fields = append(fields, condition.Field)
		}
	}
	return fields
}

// FlagSummary 单条规则的命中汇总
// TotalRows 是剔除空值行之后的分母
type FlagSummary struct {
	RuleName          string  `json:"rule_name"`
	SourceDataset     string  `json:"source_dataset"`
	TotalRows         int64   `json:"total_rows"`
	MatchedCount      int64   `json:"matched_count"`
	MatchedPercentage float64 `json:"matched_percentage"`
	SkippedNulls      int64   `json:"skipped_nulls"`
}

// AnomalyFlagger 业务异常标记器
type AnomalyFlagger struct {
	scripts *ScriptPredicateExecutor
}

// NewAnomalyFlagger 创建业务异常标记器
func NewAnomalyFlagger() *AnomalyFlagger {
	return &AnomalyFlagger{scripts: NewScriptPredicateExecutor()}
}

// Evaluate 评估规则集合
// 各规则相互独立并行评估，结果严格按规则声明顺序返回
func (af *AnomalyFlagger) Evaluate(rules []AnomalyRule, datasets map[string]*Dataset) ([]FlagSummary, error) {
	if err := af.validateRules(rules, datasets); err != nil {
		return nil, err
	}

	summaries := make([]FlagSummary, len(rules))
	errs := make([]error, len(rules))

	var wg sync.WaitGroup
	for i := range rules {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			rule := rules[idx]
			summary, err := af.evaluateRule(rule, datasets[rule.SourceDataset])
			if err != nil {
				errs[idx] = fmt.Errorf("规则 %s 评估失败: %w", rule.Name, err)
				return
			}
			summaries[idx] = *summary
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	return summaries, nil
}

// validateRules 校验规则引用的数据集和字段
func (af *AnomalyFlagger) validateRules(rules []AnomalyRule, datasets map[string]*Dataset) error {
	seen := make(map[string]bool)
	for _, rule := range rules {
		if rule.Name == "" {
			return fmt.Errorf("规则名称不能为空")
		}
		if seen[rule.Name] {
			return fmt.Errorf("规则名称重复: %s", rule.Name)
		}
		seen[rule.Name] = true

		dataset, exists := datasets[rule.SourceDataset]
		if !exists || dataset == nil {
			return fmt.Errorf("规则 %s 引用的数据集 %s 不存在", rule.Name, rule.SourceDataset)
		}
		if rule.Script == "" && len(rule.Conditions) == 0 {
			return fmt.Errorf("规则 %s 没有任何条件或脚本", rule.Name)
		}
		if rule.Script != "" && len(rule.Fields) == 0 {
			return fmt.Errorf("脚本规则 %s 必须声明涉及的字段", rule.Name)
		}
		if err := dataset.EnsureColumns(rule.InspectedFields()...); err != nil {
			return fmt.Errorf("规则 %s 校验失败: %w", rule.Name, err)
		}
	}
	return nil
}

// evaluateRule 评估单条规则
// 谓词涉及字段任一为空的行计入 SkippedNulls，不进入分子和分母
func (af *AnomalyFlagger) evaluateRule(rule AnomalyRule, dataset *Dataset) (*FlagSummary, error) {
	if dataset.RowCount() == 0 {
		return nil, &EmptyDatasetError{Dataset: dataset.Name, Operation: "异常规则评估"}
	}

	fields := rule.InspectedFields()
	var total, matched, skipped int64

	for _, record := range dataset.Rows {
		if hasMissingField(record, fields) {
			skipped++
			continue
		}

		hit, err := af.matches(rule, record)
		if err != nil {
			return nil, err
		}

		total++
		if hit {
			matched++
		}
	}

	if total == 0 {
		return nil, &EmptyDatasetError{Dataset: dataset.Name, Operation: "异常规则评估（有效行为零）"}
	}

	return &FlagSummary{
		RuleName:          rule.Name,
		SourceDataset:     rule.SourceDataset,
		TotalRows:         total,
		MatchedCount:      matched,
		MatchedPercentage: roundPercentage(100 * float64(matched) / float64(total)),
		SkippedNulls:      skipped,
	}, nil
}

// matches 评估谓词，脚本规则优先于条件规则
func (af *AnomalyFlagger) matches(rule AnomalyRule, record Record) (bool, error) {
	if rule.Script != "" {
		return af.scripts.Match(rule.Script, record)
	}

	if rule.Logic == RuleLogicOr || rule.Logic == "" {
		for _, condition := range rule.Conditions {
			if matchesCondition(record, condition) {
				return true, nil
			}
		}
		return false, nil
	}

	for _, condition := range rule.Conditions {
		if !matchesCondition(record, condition) {
			return false, nil
		}
	}
	return true, nil
}

// matchesCondition 评估单个条件
// 空值行在上游已经剔除，这里按值比较
func matchesCondition(record Record, condition RuleCondition) bool {
	fieldValue := record[condition.Field]

	switch condition.Operator {
	case OperatorEq:
		return compareValues(fieldValue, condition.Value) == 0
	case OperatorNe:
		return compareValues(fieldValue, condition.Value) != 0
	case OperatorGt:
		return compareValues(fieldValue, condition.Value) > 0
	case OperatorLt:
		return compareValues(fieldValue, condition.Value) < 0
	case OperatorGte:
		return compareValues(fieldValue, condition.Value) >= 0
	case OperatorLte:
		return compareValues(fieldValue, condition.Value) <= 0
	default:
		return false
	}
}

// hasMissingField 检查记录在给定字段上是否存在空值
func hasMissingField(record Record, fields []string) bool {
	for _, field := range fields {
		if IsMissing(record, field) {
			return true
		}
	}
	return false
}
