package controllers

import (
	"net/http"

	"dataquality-service/service/meta"

	"github.com/go-chi/render"
)

type MetaController struct {
}

func NewMetaController() *MetaController {
	return &MetaController{}
}

// @Summary 获取流水线阶段类型元数据
// @Description 获取流水线阶段类型元数据，含各阶段的输入输出数据集命名
// @Tags 元数据
// @Produce json
// @Success 200 {object} APIResponse{data=[]meta.StageTypeMeta}
// @Failure 500 {object} APIResponse
// @Router /meta/pipelines/stage-types [get]
func (c *MetaController) GetStageTypes(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, SuccessResponse("获取阶段类型元数据成功", meta.StageTypes))
}

// @Summary 获取运行状态元数据
// @Description 获取流水线运行状态元数据，含状态流转说明
// @Tags 元数据
// @Produce json
// @Success 200 {object} APIResponse{data=[]meta.RunStatusMeta}
// @Failure 500 {object} APIResponse
// @Router /meta/pipelines/run-statuses [get]
func (c *MetaController) GetRunStatuses(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, SuccessResponse("获取运行状态元数据成功", meta.RunStatuses))
}

// @Summary 获取分位数算法元数据
// @Description 获取分位数算法元数据，exact为精确插值，p2为大数据集流式估计
// @Tags 元数据
// @Produce json
// @Success 200 {object} APIResponse{data=[]meta.QuantileMethodMeta}
// @Failure 500 {object} APIResponse
// @Router /meta/pipelines/quantile-methods [get]
func (c *MetaController) GetQuantileMethods(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, SuccessResponse("获取分位数算法元数据成功", meta.QuantileMethods))
}

// @Summary 获取触发类型元数据
// @Description 获取流水线触发类型元数据
// @Tags 元数据
// @Produce json
// @Success 200 {object} APIResponse{data=[]meta.TriggerTypeMeta}
// @Failure 500 {object} APIResponse
// @Router /meta/pipelines/trigger-types [get]
func (c *MetaController) GetTriggerTypes(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, SuccessResponse("获取触发类型元数据成功", meta.TriggerTypes))
}

// @Summary 获取异常规则比较算子元数据
// @Description 获取异常规则条件支持的比较算子元数据
// @Tags 元数据
// @Produce json
// @Success 200 {object} APIResponse{data=[]meta.RuleOperatorMeta}
// @Failure 500 {object} APIResponse
// @Router /meta/rules/operators [get]
func (c *MetaController) GetRuleOperators(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, SuccessResponse("获取规则算子元数据成功", meta.RuleOperators))
}

// @Summary 获取异常规则逻辑类型元数据
// @Description 获取异常规则逻辑类型元数据，支持条件组合与跨行脚本规则
// @Tags 元数据
// @Produce json
// @Success 200 {object} APIResponse{data=[]meta.RuleLogicMeta}
// @Failure 500 {object} APIResponse
// @Router /meta/rules/logics [get]
func (c *MetaController) GetRuleLogics(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, SuccessResponse("获取规则逻辑类型元数据成功", meta.RuleLogics))
}

// @Summary 获取默认异常规则模板
// @Description 获取内置流水线携带的默认异常规则模板
// @Tags 元数据
// @Produce json
// @Success 200 {object} APIResponse{data=[]meta.RuleTemplateMeta}
// @Failure 500 {object} APIResponse
// @Router /meta/rules/templates [get]
func (c *MetaController) GetDefaultRuleTemplates(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, SuccessResponse("获取默认规则模板成功", meta.DefaultRuleTemplates))
}

// @Summary 获取内置流水线定义元数据
// @Description 获取观影记录内置流水线的定义元数据，迁移时自动落库
// @Tags 元数据
// @Produce json
// @Success 200 {object} APIResponse{data=meta.BuiltInPipelineMeta}
// @Failure 500 {object} APIResponse
// @Router /meta/pipelines/built-in [get]
func (c *MetaController) GetBuiltInPipeline(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, SuccessResponse("获取内置流水线元数据成功", meta.BuiltInPipeline))
}

// @Summary 获取令牌权限范围元数据
// @Description 获取访问令牌支持的权限范围元数据
// @Tags 元数据
// @Produce json
// @Success 200 {object} APIResponse{data=[]meta.TokenScopeMeta}
// @Failure 500 {object} APIResponse
// @Router /meta/tokens/scopes [get]
func (c *MetaController) GetTokenScopes(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, SuccessResponse("获取令牌权限范围元数据成功", meta.TokenScopes))
}

// @Summary 获取令牌状态元数据
// @Description 获取访问令牌状态元数据
// @Tags 元数据
// @Produce json
// @Success 200 {object} APIResponse{data=[]meta.TokenStatusMeta}
// @Failure 500 {object} APIResponse
// @Router /meta/tokens/statuses [get]
func (c *MetaController) GetTokenStatuses(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, SuccessResponse("获取令牌状态元数据成功", meta.TokenStatuses))
}

// PipelineMetadataResponse 流水线完整元数据响应结构
type PipelineMetadataResponse struct {
	StageTypes      []meta.StageTypeMeta      `json:"stage_types"`
	RunStatuses     []meta.RunStatusMeta      `json:"run_statuses"`
	QuantileMethods []meta.QuantileMethodMeta `json:"quantile_methods"`
	TriggerTypes    []meta.TriggerTypeMeta    `json:"trigger_types"`
	RuleOperators   []meta.RuleOperatorMeta   `json:"rule_operators"`
	RuleLogics      []meta.RuleLogicMeta      `json:"rule_logics"`
	RuleTemplates   []meta.RuleTemplateMeta   `json:"rule_templates"`
	BuiltInPipeline meta.BuiltInPipelineMeta  `json:"built_in_pipeline"`
}

// @Summary 获取流水线完整元数据
// @Description 获取流水线相关的所有元数据，包括阶段类型、运行状态、算法、规则算子与默认模板
// @Tags 元数据
// @Produce json
// @Success 200 {object} APIResponse{data=PipelineMetadataResponse} "获取成功"
// @Failure 500 {object} APIResponse "服务器内部错误"
// @Router /meta/pipelines/all [get]
func (c *MetaController) GetPipelineAllMetadata(w http.ResponseWriter, r *http.Request) {
	response := PipelineMetadataResponse{
		StageTypes:      meta.StageTypes,
		RunStatuses:     meta.RunStatuses,
		QuantileMethods: meta.QuantileMethods,
		TriggerTypes:    meta.TriggerTypes,
		RuleOperators:   meta.RuleOperators,
		RuleLogics:      meta.RuleLogics,
		RuleTemplates:   meta.DefaultRuleTemplates,
		BuiltInPipeline: meta.BuiltInPipeline,
	}

	render.JSON(w, r, SuccessResponse("获取流水线完整元数据成功", response))
}
