/*
 * @module service/meta/pipeline_defaults
 * @description 内置观影历史流水线模板、默认异常规则模板与元数据合法性校验函数
 * @architecture 元数据层
 * @documentReference ai_docs/quality_pipeline_design.md
 * @stateFlow 静态模板定义 -> 服务启动时由 PipelineService 幂等种子化入库
 * @rules 内置模板按名称幂等覆盖，用户自建的流水线与规则不受种子化影响
 * @dependencies 无
 * @refs service/pipeline_service.go, service/meta/pipeline_meta.go
 */

package meta

// BuiltInPipelineName 内置观影历史质量流水线名称，种子化与查找都以该名称为准
const BuiltInPipelineName = "watch_history_quality"

// TieBreakMeta 去重平票排序的一项，多项按声明顺序逐级比较
type TieBreakMeta struct {
	Column     string `json:"column"`
	Descending bool   `json:"descending"`
}

// BuiltInPipelineMeta 内置流水线定义模板
type BuiltInPipelineMeta struct {
	Name           string
	Description    string
	DatasetName    string
	SourceTable    string
	ProfileColumns []string
	KeyColumns     []string
	TieBreakOrder  []TieBreakMeta
	OutlierColumns []string
	QuantileMethod string
	Schedule       string
}

// BuiltInPipeline 内置观影历史质量流水线
// 组合键是一次观影行为的自然键，平票时保留观看进度最高的记录
var BuiltInPipeline = BuiltInPipelineMeta{
	Name:        BuiltInPipelineName,
	Description: "观影历史仓库表的标准质量流水线，覆盖缺失画像、组合键去重、观影时长封顶与业务异常标记",
	DatasetName: "watch_history",
	SourceTable: "watch_history_raw",
	ProfileColumns: []string{
		"user_id", "movie_id", "watch_date", "device_type",
		"progress_percentage", "watch_duration_minutes",
	},
	KeyColumns: []string{"user_id", "movie_id", "watch_date", "device_type"},
	TieBreakOrder: []TieBreakMeta{
		{Column: "progress_percentage", Descending: true},
		{Column: "watch_duration_minutes", Descending: true},
	},
	OutlierColumns: []string{"watch_duration_minutes"},
	QuantileMethod: "auto",
	Schedule:       "0 2 * * *",
}

// RuleConditionMeta 默认规则的单个比较条件
type RuleConditionMeta struct {
	Field    string      `json:"field"`
	Operator string      `json:"operator"`
	Value    interface{} `json:"value"`
}

// RuleTemplateMeta 默认异常规则模板
type RuleTemplateMeta struct {
	Name          string
	SourceDataset string
	Logic         string
	Conditions    []RuleConditionMeta
	Position      int
	Description   string
}

// DefaultRuleTemplates 内置流水线的默认异常规则
// 三条规则相互独立，分别检查封顶后观影时长、用户年龄与影片时长
var DefaultRuleTemplates = []RuleTemplateMeta{
	{
		Name:          "flag_binge",
		SourceDataset: "watch_history_robust",
		Logic:         "or",
		Conditions: []RuleConditionMeta{
			{Field: "watch_duration_minutes_capped", Operator: "gt", Value: 480},
		},
		Position:    0,
		Description: "封顶后单次观影时长超过480分钟视为刷剧异常",
	},
	{
		Name:          "flag_age_extreme",
		SourceDataset: "users",
		Logic:         "or",
		Conditions: []RuleConditionMeta{
			{Field: "age", Operator: "lt", Value: 10},
			{Field: "age", Operator: "gt", Value: 100},
		},
		Position:    1,
		Description: "用户年龄小于10岁或大于100岁视为档案异常",
	},
	{
		Name:          "flag_duration_anomaly",
		SourceDataset: "movies",
		Logic:         "or",
		Conditions: []RuleConditionMeta{
			{Field: "duration_minutes", Operator: "lt", Value: 15},
			{Field: "duration_minutes", Operator: "gt", Value: 480},
		},
		Position:    2,
		Description: "影片时长小于15分钟或大于480分钟视为片库数据异常",
	},
}

// IsValidStageType 校验阶段类型编码
func IsValidStageType(stageType string) bool {
	for _, s := range StageTypes {
		if s.Code == stageType {
			return true
		}
	}
	return false
}

// IsValidRunStatus 校验运行状态编码
func IsValidRunStatus(status string) bool {
	for _, s := range RunStatuses {
		if s.Code == status {
			return true
		}
	}
	return false
}

// IsValidQuantileMethod 校验分位数算法编码
func IsValidQuantileMethod(method string) bool {
	for _, m := range QuantileMethods {
		if m.Code == method {
			return true
		}
	}
	return false
}

// IsValidRuleOperator 校验规则比较算子编码
func IsValidRuleOperator(operator string) bool {
	for _, o := range RuleOperators {
		if o.Code == operator {
			return true
		}
	}
	return false
}

// IsValidRuleLogic 校验多条件组合逻辑编码
func IsValidRuleLogic(logic string) bool {
	for _, l := range RuleLogics {
		if l.Code == logic {
			return true
		}
	}
	return false
}

// IsValidTriggerType 校验触发方式编码
func IsValidTriggerType(triggerType string) bool {
	for _, t := range TriggerTypes {
		if t.Code == triggerType {
			return true
		}
	}
	return false
}

// GetCancellableRunStatuses 获取允许取消的运行状态
func GetCancellableRunStatuses() []string {
	return []string{"pending", "running"}
}
