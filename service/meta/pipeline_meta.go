/*
 * @module service/meta/pipeline_meta
 * @description 质量流水线相关元数据定义，包括阶段类型、运行状态、分位算法、规则算子等常量
 * @architecture 元数据层
 * @documentReference ai_docs/quality_pipeline_design.md
 * @stateFlow 静态元数据定义
 * @rules 提供标准化的流水线元数据定义，确保系统一致性
 * @dependencies 无
 * @refs service/models/pipeline_models.go
 */

package meta

// StageTypeMeta 流水线阶段类型定义
type StageTypeMeta struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Position    int    `json:"position"`
}

// StageTypes 流水线阶段类型元数据，Position 是标准执行顺序
var StageTypes = []StageTypeMeta{
	{
		Code:        "profile",
		Name:        "缺失画像",
		Description: "统计各列缺失数量与缺失百分比",
		Position:    1,
	},
	{
		Code:        "dedup",
		Name:        "组合键去重",
		Description: "按组合键去重，平票按保留优先级排序后取首行",
		Position:    2,
	},
	{
		Code:        "outlier",
		Name:        "离群值封顶",
		Description: "按 Tukey 围栏拟合分位界并生成封顶列",
		Position:    3,
	},
	{
		Code:        "flag",
		Name:        "业务异常标记",
		Description: "按配置规则统计业务异常占比",
		Position:    4,
	},
}

// RunStatusMeta 运行状态定义
type RunStatusMeta struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Color       string `json:"color"`
}

// RunStatuses 运行状态元数据
var RunStatuses = []RunStatusMeta{
	{
		Code:        "pending",
		Name:        "等待中",
		Description: "运行已创建但尚未开始",
		Color:       "#8c8c8c",
	},
	{
		Code:        "running",
		Name:        "执行中",
		Description: "流水线正在执行",
		Color:       "#1890ff",
	},
	{
		Code:        "succeeded",
		Name:        "成功",
		Description: "全部阶段执行完成",
		Color:       "#52c41a",
	},
	{
		Code:        "failed",
		Name:        "失败",
		Description: "某个阶段执行失败，已完成阶段的结果保留",
		Color:       "#f5222d",
	},
}

// QuantileMethodMeta 分位数算法定义
type QuantileMethodMeta struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// QuantileMethods 分位数算法元数据
var QuantileMethods = []QuantileMethodMeta{
	{
		Code:        "auto",
		Name:        "自动",
		Description: "小数据集精确计算，超过阈值切换流式估计",
	},
	{
		Code:        "exact",
		Name:        "精确",
		Description: "全量排序后线性插值，结果确定",
	},
	{
		Code:        "p2",
		Name:        "P² 估计",
		Description: "五标记流式估计，常数内存，误差随样本量收敛",
	},
}

// RuleOperatorMeta 规则比较算子定义
type RuleOperatorMeta struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// RuleOperators 规则比较算子元数据
var RuleOperators = []RuleOperatorMeta{
	{Code: "eq", Name: "等于", Description: "字段值等于阈值"},
	{Code: "ne", Name: "不等于", Description: "字段值不等于阈值"},
	{Code: "gt", Name: "大于", Description: "字段值严格大于阈值"},
	{Code: "lt", Name: "小于", Description: "字段值严格小于阈值"},
	{Code: "gte", Name: "大于等于", Description: "字段值不小于阈值"},
	{Code: "lte", Name: "小于等于", Description: "字段值不大于阈值"},
}

// RuleLogicMeta 多条件组合逻辑定义
type RuleLogicMeta struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// RuleLogics 多条件组合逻辑元数据
var RuleLogics = []RuleLogicMeta{
	{Code: "or", Name: "任一满足", Description: "任一条件命中即标记"},
	{Code: "and", Name: "全部满足", Description: "全部条件命中才标记"},
}

// TriggerTypeMeta 触发方式定义
type TriggerTypeMeta struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// TriggerTypes 触发方式元数据
var TriggerTypes = []TriggerTypeMeta{
	{Code: "manual", Name: "手动", Description: "控制台或命令行手动触发"},
	{Code: "schedule", Name: "调度", Description: "按 cron 表达式定时触发"},
	{Code: "api", Name: "接口", Description: "外部系统经 API 触发"},
}
