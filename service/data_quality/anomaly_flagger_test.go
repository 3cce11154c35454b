/*
 * @module service/data_quality/anomaly_flagger_test
 * @description 业务异常标记器单元测试
 * @architecture 测试架构 - 规则引擎单元测试
 * @documentReference anomaly_flagger.go
 * @stateFlow 构造规则与数据集 -> 评估 -> 断言命中统计与输出顺序
 * @rules 覆盖空值剔除、声明顺序、规则独立性、脚本谓词等场景
 * @dependencies testing, github.com/stretchr/testify
 * @refs dataset.go, script_rule.go
 */

package data_quality

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ageExtremeRule 年龄极端值规则
func ageExtremeRule() AnomalyRule {
	return AnomalyRule{
		Name:          "flag_age_extreme",
		SourceDataset: "users",
		Logic:         RuleLogicOr,
		Conditions: []RuleCondition{
			{Field: "age", Operator: OperatorLt, Value: 10},
			{Field: "age", Operator: OperatorGt, Value: 100},
		},
	}
}

// bingeRule 超长观看规则
func bingeRule() AnomalyRule {
	return AnomalyRule{
		Name:          "flag_binge",
		SourceDataset: "watch_history_robust",
		Conditions: []RuleCondition{
			{Field: "watch_duration_minutes_capped", Operator: OperatorGt, Value: 480},
		},
	}
}

// durationAnomalyRule 片长异常规则
func durationAnomalyRule() AnomalyRule {
	return AnomalyRule{
		Name:          "flag_duration_anomaly",
		SourceDataset: "movies",
		Logic:         RuleLogicOr,
		Conditions: []RuleCondition{
			{Field: "duration_minutes", Operator: OperatorLt, Value: 15},
			{Field: "duration_minutes", Operator: OperatorGt, Value: 480},
		},
	}
}

func TestFlagAgeExtremeExcludesNulls(t *testing.T) {
	// 100 行用户，8 行年龄为空，92 行有效中有 5 行极端年龄
	// 百分比 = 5/92*100 = 5.43，空值行同时从分子分母剔除
	rows := make([]Record, 0, 100)
	for i := 0; i < 8; i++ {
		rows = append(rows, Record{"user_id": fmt.Sprintf("null_%d", i), "age": nil})
	}
	extremeAges := []int{5, 8, 105, 120, 9}
	for i, age := range extremeAges {
		rows = append(rows, Record{"user_id": fmt.Sprintf("extreme_%d", i), "age": age})
	}
	for i := 0; i < 87; i++ {
		rows = append(rows, Record{"user_id": fmt.Sprintf("normal_%d", i), "age": 20 + i%60})
	}
	require.Len(t, rows, 100)

	users := NewDataset("users", []string{"user_id", "age"}, rows)

	flagger := NewAnomalyFlagger()
	summaries, err := flagger.Evaluate([]AnomalyRule{ageExtremeRule()},
		map[string]*Dataset{"users": users})
	require.NoError(t, err)
	require.Len(t, summaries, 1)

	summary := summaries[0]
	assert.Equal(t, "flag_age_extreme", summary.RuleName)
	assert.Equal(t, int64(92), summary.TotalRows)
	assert.Equal(t, int64(5), summary.MatchedCount)
	assert.Equal(t, int64(8), summary.SkippedNulls)
	assert.InDelta(t, 5.43, summary.MatchedPercentage, 0.001)
}

func TestFlagBingeOnCappedDuration(t *testing.T) {
	rows := []Record{
		{"event_id": 1, "watch_duration_minutes_capped": 500.0},
		{"event_id": 2, "watch_duration_minutes_capped": 480.0}, // 等于阈值不算
		{"event_id": 3, "watch_duration_minutes_capped": 120.0},
		{"event_id": 4, "watch_duration_minutes_capped": 600.0},
	}
	robust := NewDataset("watch_history_robust",
		[]string{"event_id", "watch_duration_minutes_capped"}, rows)

	flagger := NewAnomalyFlagger()
	summaries, err := flagger.Evaluate([]AnomalyRule{bingeRule()},
		map[string]*Dataset{"watch_history_robust": robust})
	require.NoError(t, err)

	assert.Equal(t, int64(4), summaries[0].TotalRows)
	assert.Equal(t, int64(2), summaries[0].MatchedCount)
	assert.Equal(t, 50.0, summaries[0].MatchedPercentage)
}

func TestFlagDurationAnomalyBothTails(t *testing.T) {
	rows := []Record{
		{"movie_id": "m1", "duration_minutes": 10},  // 过短
		{"movie_id": "m2", "duration_minutes": 90},  // 正常
		{"movie_id": "m3", "duration_minutes": 500}, // 过长
		{"movie_id": "m4", "duration_minutes": nil}, // 空值剔除
		{"movie_id": "m5", "duration_minutes": 15},  // 边界值正常
	}
	movies := NewDataset("movies", []string{"movie_id", "duration_minutes"}, rows)

	flagger := NewAnomalyFlagger()
	summaries, err := flagger.Evaluate([]AnomalyRule{durationAnomalyRule()},
		map[string]*Dataset{"movies": movies})
	require.NoError(t, err)

	assert.Equal(t, int64(4), summaries[0].TotalRows)
	assert.Equal(t, int64(2), summaries[0].MatchedCount)
	assert.Equal(t, int64(1), summaries[0].SkippedNulls)
	assert.Equal(t, 50.0, summaries[0].MatchedPercentage)
}

func TestEmptyLogicDefaultsToOr(t *testing.T) {
	// 未声明 logic 的多条件规则按 or 评估，只命中单个条件的行也计入
	rule := AnomalyRule{
		Name:          "flag_duration_anomaly",
		SourceDataset: "movies",
		Conditions: []RuleCondition{
			{Field: "duration_minutes", Operator: OperatorLt, Value: 15},
			{Field: "duration_minutes", Operator: OperatorGt, Value: 480},
		},
	}
	movies := NewDataset("movies", []string{"movie_id", "duration_minutes"}, []Record{
		{"movie_id": "m1", "duration_minutes": 10},
		{"movie_id": "m2", "duration_minutes": 90},
		{"movie_id": "m3", "duration_minutes": 500},
	})

	flagger := NewAnomalyFlagger()
	summaries, err := flagger.Evaluate([]AnomalyRule{rule},
		map[string]*Dataset{"movies": movies})
	require.NoError(t, err)

	// and 语义下两个条件互斥，命中数会是 0
	assert.Equal(t, int64(2), summaries[0].MatchedCount)
}

func TestEvaluateDeclarationOrder(t *testing.T) {
	// 输出顺序是声明顺序，不是字母序
	users := NewDataset("users", []string{"user_id", "age"}, []Record{
		{"user_id": "u1", "age": 30},
	})
	movies := NewDataset("movies", []string{"movie_id", "duration_minutes"}, []Record{
		{"movie_id": "m1", "duration_minutes": 90},
	})
	robust := NewDataset("watch_history_robust",
		[]string{"event_id", "watch_duration_minutes_capped"}, []Record{
			{"event_id": 1, "watch_duration_minutes_capped": 100.0},
		})

	datasets := map[string]*Dataset{
		"users": users, "movies": movies, "watch_history_robust": robust,
	}
	rules := []AnomalyRule{bingeRule(), ageExtremeRule(), durationAnomalyRule()}

	flagger := NewAnomalyFlagger()
	for i := 0; i < 3; i++ {
		summaries, err := flagger.Evaluate(rules, datasets)
		require.NoError(t, err)
		require.Len(t, summaries, 3)
		assert.Equal(t, "flag_binge", summaries[0].RuleName)
		assert.Equal(t, "flag_age_extreme", summaries[1].RuleName)
		assert.Equal(t, "flag_duration_anomaly", summaries[2].RuleName)
	}
}

func TestRuleIndependence(t *testing.T) {
	// 增删规则不影响其他规则的统计结果
	users := NewDataset("users", []string{"user_id", "age"}, []Record{
		{"user_id": "u1", "age": 5},
		{"user_id": "u2", "age": 30},
	})
	movies := NewDataset("movies", []string{"movie_id", "duration_minutes"}, []Record{
		{"movie_id": "m1", "duration_minutes": 10},
	})
	datasets := map[string]*Dataset{"users": users, "movies": movies}

	flagger := NewAnomalyFlagger()
	both, err := flagger.Evaluate([]AnomalyRule{ageExtremeRule(), durationAnomalyRule()}, datasets)
	require.NoError(t, err)

	only, err := flagger.Evaluate([]AnomalyRule{ageExtremeRule()}, datasets)
	require.NoError(t, err)

	assert.Equal(t, both[0], only[0])
}

func TestMatchedCountNeverExceedsTotal(t *testing.T) {
	users := NewDataset("users", []string{"user_id", "age"}, []Record{
		{"user_id": "u1", "age": 5},
		{"user_id": "u2", "age": 120},
		{"user_id": "u3", "age": 200},
	})

	flagger := NewAnomalyFlagger()
	summaries, err := flagger.Evaluate([]AnomalyRule{ageExtremeRule()},
		map[string]*Dataset{"users": users})
	require.NoError(t, err)

	assert.LessOrEqual(t, summaries[0].MatchedCount, summaries[0].TotalRows)
	assert.Equal(t, 100.0, summaries[0].MatchedPercentage)
}

func TestEvaluateUnknownDataset(t *testing.T) {
	flagger := NewAnomalyFlagger()
	_, err := flagger.Evaluate([]AnomalyRule{ageExtremeRule()}, map[string]*Dataset{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "users")
}

func TestEvaluateEmptyDataset(t *testing.T) {
	users := NewDataset("users", []string{"user_id", "age"}, nil)

	flagger := NewAnomalyFlagger()
	_, err := flagger.Evaluate([]AnomalyRule{ageExtremeRule()},
		map[string]*Dataset{"users": users})
	require.Error(t, err)

	var emptyErr *EmptyDatasetError
	assert.True(t, errors.As(err, &emptyErr))
}

func TestEvaluateMissingRuleField(t *testing.T) {
	users := NewDataset("users", []string{"user_id"}, []Record{
		{"user_id": "u1"},
	})

	flagger := NewAnomalyFlagger()
	_, err := flagger.Evaluate([]AnomalyRule{ageExtremeRule()},
		map[string]*Dataset{"users": users})
	require.Error(t, err)

	var missingErr *MissingColumnError
	assert.True(t, errors.As(err, &missingErr))
}

func TestScriptRulePredicate(t *testing.T) {
	// 脚本谓词与条件规则等价时统计结果一致，空值同样剔除
	rule := AnomalyRule{
		Name:          "flag_scripted",
		SourceDataset: "users",
		Script: `
	age, ok := record["age"].(int)
	if !ok {
		return false, nil
	}
	return age < 10 || age > 100, nil`,
		Fields: []string{"age"},
	}

	users := NewDataset("users", []string{"user_id", "age"}, []Record{
		{"user_id": "u1", "age": 5},
		{"user_id": "u2", "age": 30},
		{"user_id": "u3", "age": nil},
		{"user_id": "u4", "age": 105},
	})

	flagger := NewAnomalyFlagger()
	summaries, err := flagger.Evaluate([]AnomalyRule{rule},
		map[string]*Dataset{"users": users})
	require.NoError(t, err)

	assert.Equal(t, int64(3), summaries[0].TotalRows)
	assert.Equal(t, int64(2), summaries[0].MatchedCount)
	assert.Equal(t, int64(1), summaries[0].SkippedNulls)
}

func TestScriptRuleRequiresFields(t *testing.T) {
	rule := AnomalyRule{
		Name:          "flag_no_fields",
		SourceDataset: "users",
		Script:        `return true, nil`,
	}
	users := NewDataset("users", []string{"user_id"}, []Record{{"user_id": "u1"}})

	flagger := NewAnomalyFlagger()
	_, err := flagger.Evaluate([]AnomalyRule{rule}, map[string]*Dataset{"users": users})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "必须声明涉及的字段")
}
