/*
 * @module service/pipeline_engine/types_test
 * @description 规则配置与决胜排序转换的单元测试
 * @architecture 测试层
 * @documentReference ai_docs/quality_pipeline_design.md
 * @stateFlow 构造落库配置 -> 转换 -> 断言引擎侧结构
 * @rules 转换保持声明顺序，停用规则跳过，缺字段的条件报错
 * @dependencies testify
 * @refs service/pipeline_engine/types.go
 */

package pipeline_engine

import (
	"testing"

	"dataquality-service/service/data_quality"
	"dataquality-service/service/models"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertTieBreakOrder(t *testing.T) {
	raw := models.JSONBArray{
		models.JSONB{"column": "updated_at", "descending": true},
		models.JSONB{"column": "id"},
	}

	order := convertTieBreakOrder(raw)

	require.Len(t, order, 2)
	assert.Equal(t, "updated_at", order[0].Column)
	assert.True(t, order[0].Descending)
	assert.Equal(t, "id", order[1].Column)
	assert.False(t, order[1].Descending)
}

func TestConvertTieBreakOrderSkipsEmptyColumn(t *testing.T) {
	raw := models.JSONBArray{
		models.JSONB{"descending": true},
		models.JSONB{"column": "updated_at"},
	}

	order := convertTieBreakOrder(raw)

	require.Len(t, order, 1)
	assert.Equal(t, "updated_at", order[0].Column)
}

func TestConvertTieBreakOrderEmpty(t *testing.T) {
	assert.Empty(t, convertTieBreakOrder(nil))
	assert.Empty(t, convertTieBreakOrder(models.JSONBArray{}))
}

func TestConvertRuleConfigsKeepsOrder(t *testing.T) {
	configs := []models.AnomalyRuleConfig{
		{Name: "binge_watching", SourceDataset: "watch_history_robust", Logic: "and", IsEnabled: true,
			Conditions: models.JSONBArray{
				models.JSONB{"field": "watch_duration_minutes_capped", "operator": "gt", "value": 480},
			}},
		{Name: "age_extreme", SourceDataset: "users", Logic: "or", IsEnabled: true,
			Conditions: models.JSONBArray{
				models.JSONB{"field": "age", "operator": "lt", "value": 10},
				models.JSONB{"field": "age", "operator": "gt", "value": 100},
			}},
	}

	rules, err := convertRuleConfigs(configs)

	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "binge_watching", rules[0].Name)
	assert.Equal(t, "age_extreme", rules[1].Name)
	assert.Equal(t, data_quality.RuleLogicOr, rules[1].Logic)
	require.Len(t, rules[1].Conditions, 2)
	assert.Equal(t, "age", rules[1].Conditions[0].Field)
	assert.Equal(t, "lt", rules[1].Conditions[0].Operator)
}

func TestConvertRuleConfigsSkipsDisabled(t *testing.T) {
	configs := []models.AnomalyRuleConfig{
		{Name: "enabled_rule", SourceDataset: "users", IsEnabled: true,
			Conditions: models.JSONBArray{
				models.JSONB{"field": "age", "operator": "gt", "value": 100},
			}},
		{Name: "disabled_rule", SourceDataset: "users", IsEnabled: false,
			Conditions: models.JSONBArray{
				models.JSONB{"field": "age", "operator": "lt", "value": 10},
			}},
	}

	rules, err := convertRuleConfigs(configs)

	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "enabled_rule", rules[0].Name)
}

func TestConvertRuleConfigsDefaultsLogic(t *testing.T) {
	configs := []models.AnomalyRuleConfig{
		{Name: "no_logic", SourceDataset: "users", IsEnabled: true,
			Conditions: models.JSONBArray{
				models.JSONB{"field": "age", "operator": "gt", "value": 100},
			}},
	}

	rules, err := convertRuleConfigs(configs)

	require.NoError(t, err)
	assert.Equal(t, data_quality.RuleLogicOr, rules[0].Logic)
}

func TestConvertRuleConfigsScriptRule(t *testing.T) {
	configs := []models.AnomalyRuleConfig{
		{Name: "script_rule", SourceDataset: "users", IsEnabled: true,
			Script: `age, ok := record["age"].(int)
if !ok {
	return false, nil
}
return age > 100, nil`,
			Fields: pq.StringArray{"age"}},
	}

	rules, err := convertRuleConfigs(configs)

	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.NotEmpty(t, rules[0].Script)
	assert.Equal(t, []string{"age"}, rules[0].Fields)
	assert.Empty(t, rules[0].Conditions)
}

func TestConvertRuleConfigsMissingField(t *testing.T) {
	configs := []models.AnomalyRuleConfig{
		{Name: "broken_rule", SourceDataset: "users", IsEnabled: true,
			Conditions: models.JSONBArray{
				models.JSONB{"operator": "gt", "value": 100},
			}},
	}

	_, err := convertRuleConfigs(configs)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "缺少 field 或 operator")
}
