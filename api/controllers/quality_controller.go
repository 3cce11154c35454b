/*
 * @module api/controllers/quality_controller
 * @description 质量数据控制器，提供画像、分位界、异常标记记录查询、质量趋势与异常规则管理API
 * @architecture 分层架构 - 控制器层
 * @documentReference ai_docs/quality_pipeline_design.md
 * @stateFlow HTTP请求 -> 参数验证 -> 服务调用 -> 响应返回
 * @rules 质量记录只读，规则管理对内置规则只读，规则变更在下次运行生效
 * @dependencies service/quality_report_service, service/pipeline_service, service/meta
 * @refs api/routes.go
 */

package controllers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"dataquality-service/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

// QualityController 质量数据控制器
type QualityController struct {
	reportService   *service.QualityReportService
	pipelineService *service.PipelineService
}

// NewQualityController 创建质量数据控制器
func NewQualityController() *QualityController {
	return &QualityController{
		reportService:   service.GlobalReportService,
		pipelineService: service.GlobalPipelineService,
	}
}

// CreateRuleRequest 创建异常规则请求
type CreateRuleRequest struct {
	service.RuleConfigRequest
	PipelineID string `json:"pipeline_id" binding:"required" example:"550e8400-e29b-41d4-a716-446655440000"`
	CreatedBy  string `json:"created_by" example:"admin"`
}

// UpdateRuleRequest 更新异常规则请求
type UpdateRuleRequest struct {
	service.RuleConfigRequest
	UpdatedBy string `json:"updated_by" example:"admin"`
}

// ListColumnProfiles 获取列画像记录列表
// @Summary 获取列画像记录列表
// @Description 分页获取列画像记录，支持按运行、数据集、列名过滤
// @Tags 质量数据
// @Accept json
// @Produce json
// @Param page query int false "页码" default(1)
// @Param size query int false "每页大小" default(10)
// @Param run_id query string false "运行ID"
// @Param dataset_name query string false "数据集名称"
// @Param column_name query string false "列名"
// @Success 200 {object} APIResponse{data=service.ProfileListResponse} "获取成功"
// @Failure 500 {object} APIResponse "服务器内部错误"
// @Router /quality/profiles [get]
func (c *QualityController) ListColumnProfiles(w http.ResponseWriter, r *http.Request) {
	req := &service.ProfileQueryRequest{
		RunID:       r.URL.Query().Get("run_id"),
		DatasetName: r.URL.Query().Get("dataset_name"),
		ColumnName:  r.URL.Query().Get("column_name"),
	}
	req.Page, req.Size = parsePageQuery(r)

	response, err := c.reportService.ListColumnProfiles(r.Context(), req)
	if err != nil {
		render.JSON(w, r, InternalErrorResponse("获取画像记录失败", err))
		return
	}

	render.JSON(w, r, SuccessResponse("获取画像记录成功", response))
}

// ListQuantileBounds 获取分位界记录列表
// @Summary 获取分位界记录列表
// @Description 分页获取IQR分位界记录，含退化分布标记与封顶列名
// @Tags 质量数据
// @Accept json
// @Produce json
// @Param page query int false "页码" default(1)
// @Param size query int false "每页大小" default(10)
// @Param run_id query string false "运行ID"
// @Param dataset_name query string false "数据集名称"
// @Param column_name query string false "列名"
// @Param method query string false "分位数算法" Enums(exact,p2)
// @Success 200 {object} APIResponse{data=service.BoundsListResponse} "获取成功"
// @Failure 500 {object} APIResponse "服务器内部错误"
// @Router /quality/bounds [get]
func (c *QualityController) ListQuantileBounds(w http.ResponseWriter, r *http.Request) {
	req := &service.BoundsQueryRequest{
		RunID:       r.URL.Query().Get("run_id"),
		DatasetName: r.URL.Query().Get("dataset_name"),
		ColumnName:  r.URL.Query().Get("column_name"),
		Method:      r.URL.Query().Get("method"),
	}
	req.Page, req.Size = parsePageQuery(r)

	response, err := c.reportService.ListQuantileBounds(r.Context(), req)
	if err != nil {
		render.JSON(w, r, InternalErrorResponse("获取分位界记录失败", err))
		return
	}

	render.JSON(w, r, SuccessResponse("获取分位界记录成功", response))
}

// ListAnomalyFlags 获取异常标记记录列表
// @Summary 获取异常标记记录列表
// @Description 分页获取异常规则标记统计，支持按运行、规则名、源数据集过滤
// @Tags 质量数据
// @Accept json
// @Produce json
// @Param page query int false "页码" default(1)
// @Param size query int false "每页大小" default(10)
// @Param run_id query string false "运行ID"
// @Param rule_name query string false "规则名"
// @Param source_dataset query string false "源数据集"
// @Success 200 {object} APIResponse{data=service.FlagListResponse} "获取成功"
// @Failure 500 {object} APIResponse "服务器内部错误"
// @Router /quality/flags [get]
func (c *QualityController) ListAnomalyFlags(w http.ResponseWriter, r *http.Request) {
	req := &service.FlagQueryRequest{
		RunID:         r.URL.Query().Get("run_id"),
		RuleName:      r.URL.Query().Get("rule_name"),
		SourceDataset: r.URL.Query().Get("source_dataset"),
	}
	req.Page, req.Size = parsePageQuery(r)

	response, err := c.reportService.ListAnomalyFlags(r.Context(), req)
	if err != nil {
		render.JSON(w, r, InternalErrorResponse("获取异常标记记录失败", err))
		return
	}

	render.JSON(w, r, SuccessResponse("获取异常标记记录成功", response))
}

// GetQualityTrend 获取质量趋势
// @Summary 获取质量趋势
// @Description 按运行聚合指定流水线近若干天的缺失率、去重量、离群值与异常标记趋势
// @Tags 质量数据
// @Accept json
// @Produce json
// @Param pipeline_id query string true "流水线ID"
// @Param days query int false "统计天数" default(30)
// @Success 200 {object} APIResponse{data=[]service.QualityTrendPoint} "获取成功"
// @Failure 400 {object} APIResponse "请求参数错误"
// @Failure 500 {object} APIResponse "服务器内部错误"
// @Router /quality/trends [get]
func (c *QualityController) GetQualityTrend(w http.ResponseWriter, r *http.Request) {
	pipelineID := r.URL.Query().Get("pipeline_id")
	if pipelineID == "" {
		render.JSON(w, r, BadRequestResponse("流水线ID不能为空", nil))
		return
	}

	days := 0
	if d, err := strconv.Atoi(r.URL.Query().Get("days")); err == nil && d > 0 && d <= 365 {
		days = d
	}

	points, err := c.reportService.GetQualityTrend(r.Context(), pipelineID, days)
	if err != nil {
		render.JSON(w, r, InternalErrorResponse("获取质量趋势失败", err))
		return
	}

	render.JSON(w, r, SuccessResponse("获取质量趋势成功", points))
}

// GetRuleList 获取异常规则列表
// @Summary 获取异常规则列表
// @Description 获取异常规则配置列表，可按流水线过滤，按流水线与位置排序
// @Tags 质量数据
// @Accept json
// @Produce json
// @Param pipeline_id query string false "流水线ID"
// @Success 200 {object} APIResponse{data=[]models.AnomalyRuleConfig} "获取成功"
// @Failure 500 {object} APIResponse "服务器内部错误"
// @Router /quality/rules [get]
func (c *QualityController) GetRuleList(w http.ResponseWriter, r *http.Request) {
	pipelineID := r.URL.Query().Get("pipeline_id")

	rules, err := c.pipelineService.GetRuleList(r.Context(), pipelineID)
	if err != nil {
		render.JSON(w, r, InternalErrorResponse("获取规则列表失败", err))
		return
	}

	render.JSON(w, r, SuccessResponse("获取规则列表成功", rules))
}

// GetRule 获取异常规则详情
// @Summary 获取异常规则详情
// @Description 根据ID获取异常规则配置
// @Tags 质量数据
// @Accept json
// @Produce json
// @Param id path string true "规则ID"
// @Success 200 {object} APIResponse{data=models.AnomalyRuleConfig} "获取成功"
// @Failure 400 {object} APIResponse "请求参数错误"
// @Failure 404 {object} APIResponse "规则不存在"
// @Router /quality/rules/{id} [get]
func (c *QualityController) GetRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "id")
	if ruleID == "" {
		render.JSON(w, r, BadRequestResponse("规则ID不能为空", nil))
		return
	}

	rule, err := c.pipelineService.GetRuleByID(r.Context(), ruleID)
	if err != nil {
		render.JSON(w, r, NotFoundResponse("获取规则失败", err))
		return
	}

	render.JSON(w, r, SuccessResponse("获取规则成功", rule))
}

// CreateRule 创建异常规则
// @Summary 创建异常规则
// @Description 为指定流水线追加异常规则，规则位置排在现有规则之后，内置流水线不允许追加
// @Tags 质量数据
// @Accept json
// @Produce json
// @Param rule body CreateRuleRequest true "规则创建信息"
// @Success 200 {object} APIResponse{data=models.AnomalyRuleConfig} "创建成功"
// @Failure 400 {object} APIResponse "请求参数错误"
// @Failure 500 {object} APIResponse "服务器内部错误"
// @Router /quality/rules [post]
func (c *QualityController) CreateRule(w http.ResponseWriter, r *http.Request) {
	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		render.JSON(w, r, BadRequestResponse("请求参数解析失败", err))
		return
	}

	if req.PipelineID == "" {
		render.JSON(w, r, BadRequestResponse("流水线ID不能为空", nil))
		return
	}

	rule, err := c.pipelineService.CreateRule(r.Context(), req.PipelineID, &req.RuleConfigRequest, req.CreatedBy)
	if err != nil {
		render.JSON(w, r, InternalErrorResponse("创建规则失败", err))
		return
	}

	render.JSON(w, r, SuccessResponse("创建规则成功", rule))
}

// UpdateRule 更新异常规则
// @Summary 更新异常规则
// @Description 更新异常规则配置，规则位置保持不变，内置规则不允许修改
// @Tags 质量数据
// @Accept json
// @Produce json
// @Param id path string true "规则ID"
// @Param rule body UpdateRuleRequest true "规则更新信息"
// @Success 200 {object} APIResponse{data=models.AnomalyRuleConfig} "更新成功"
// @Failure 400 {object} APIResponse "请求参数错误"
// @Failure 500 {object} APIResponse "服务器内部错误"
// @Router /quality/rules/{id} [put]
func (c *QualityController) UpdateRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "id")
	if ruleID == "" {
		render.JSON(w, r, BadRequestResponse("规则ID不能为空", nil))
		return
	}

	var req UpdateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		render.JSON(w, r, BadRequestResponse("请求参数解析失败", err))
		return
	}

	rule, err := c.pipelineService.UpdateRule(r.Context(), ruleID, &req.RuleConfigRequest, req.UpdatedBy)
	if err != nil {
		render.JSON(w, r, InternalErrorResponse("更新规则失败", err))
		return
	}

	render.JSON(w, r, SuccessResponse("更新规则成功", rule))
}

// DeleteRule 删除异常规则
// @Summary 删除异常规则
// @Description 删除指定异常规则，内置规则不允许删除
// @Tags 质量数据
// @Accept json
// @Produce json
// @Param id path string true "规则ID"
// @Success 200 {object} APIResponse "删除成功"
// @Failure 400 {object} APIResponse "请求参数错误"
// @Failure 500 {object} APIResponse "服务器内部错误"
// @Router /quality/rules/{id} [delete]
func (c *QualityController) DeleteRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "id")
	if ruleID == "" {
		render.JSON(w, r, BadRequestResponse("规则ID不能为空", nil))
		return
	}

	if err := c.pipelineService.DeleteRule(r.Context(), ruleID); err != nil {
		render.JSON(w, r, InternalErrorResponse("删除规则失败", err))
		return
	}

	render.JSON(w, r, SuccessResponse("删除规则成功", nil))
}

// parsePageQuery 解析分页查询参数，返回页码与每页大小
func parsePageQuery(r *http.Request) (int, int) {
	page, size := 1, 10
	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && p > 0 {
		page = p
	}
	if s, err := strconv.Atoi(r.URL.Query().Get("size")); err == nil && s > 0 && s <= 100 {
		size = s
	}
	return page, size
}
