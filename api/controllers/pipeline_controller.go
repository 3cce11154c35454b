/*
 * @module api/controllers/pipeline_controller
 * @description 质量流水线控制器，提供流水线定义的增删改查、启停与手动触发API
 * @architecture 分层架构 - 控制器层
 * @documentReference ai_docs/quality_pipeline_design.md
 * @stateFlow HTTP请求 -> 参数验证 -> 服务调用 -> 响应返回
 * @rules 内置流水线的修改与删除由服务层拦截，触发接口立即返回，运行进度走SSE
 * @dependencies service/pipeline_service, service/models, service/meta
 * @refs api/routes.go
 */

package controllers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"dataquality-service/service"
	"dataquality-service/service/meta"
	"dataquality-service/service/models"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

// PipelineController 质量流水线控制器
type PipelineController struct {
	pipelineService *service.PipelineService
}

// NewPipelineController 创建流水线控制器
func NewPipelineController() *PipelineController {
	return &PipelineController{
		pipelineService: service.GlobalPipelineService,
	}
}

// CreatePipeline 创建流水线
// @Summary 创建质量流水线
// @Description 创建新的数据质量流水线，各阶段按 画像 -> 去重 -> 封顶 -> 异常标记 顺序执行
// @Description
// @Description **阶段说明:**
// @Description - profile: 列画像，统计每列缺失率
// @Description - dedup: 按关键列去重，tie_break_order决定保留哪条
// @Description - cap: IQR分位界封顶，产出 *_capped 列
// @Description - flag: 异常规则标记，产出 flag_* 列
// @Tags 流水线管理
// @Accept json
// @Produce json
// @Param pipeline body service.CreatePipelineRequest true "流水线创建信息"
// @Success 200 {object} APIResponse{data=models.PipelineDefinition} "创建成功"
// @Failure 400 {object} APIResponse "请求参数错误"
// @Failure 500 {object} APIResponse "服务器内部错误"
// @Router /pipelines [post]
func (c *PipelineController) CreatePipeline(w http.ResponseWriter, r *http.Request) {
	var req service.CreatePipelineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		render.JSON(w, r, BadRequestResponse("请求参数解析失败", err))
		return
	}

	if req.QuantileMethod != "" && !meta.IsValidQuantileMethod(req.QuantileMethod) {
		render.JSON(w, r, BadRequestResponse("无效的分位数算法", nil))
		return
	}

	pipeline, err := c.pipelineService.CreatePipeline(r.Context(), &req)
	if err != nil {
		render.JSON(w, r, InternalErrorResponse("创建流水线失败", err))
		return
	}

	render.JSON(w, r, SuccessResponse("创建流水线成功", pipeline))
}

// GetPipelineList 获取流水线列表
// @Summary 获取流水线列表
// @Description 分页获取流水线列表，支持按名称关键字、数据集、启用状态过滤
// @Tags 流水线管理
// @Accept json
// @Produce json
// @Param page query int false "页码" default(1)
// @Param size query int false "每页大小" default(10)
// @Param keyword query string false "名称关键字"
// @Param dataset_name query string false "数据集名称"
// @Param is_enabled query bool false "启用状态过滤"
// @Param is_built_in query bool false "内置流水线过滤"
// @Success 200 {object} APIResponse{data=service.PipelineListResponse} "获取成功"
// @Failure 500 {object} APIResponse "服务器内部错误"
// @Router /pipelines [get]
func (c *PipelineController) GetPipelineList(w http.ResponseWriter, r *http.Request) {
	req := &service.GetPipelineListRequest{
		Page:        1,
		Size:        10,
		Keyword:     r.URL.Query().Get("keyword"),
		DatasetName: r.URL.Query().Get("dataset_name"),
		IsEnabled:   parseBoolQuery(r, "is_enabled"),
		IsBuiltIn:   parseBoolQuery(r, "is_built_in"),
	}

	if page, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && page > 0 {
		req.Page = page
	}
	if size, err := strconv.Atoi(r.URL.Query().Get("size")); err == nil && size > 0 && size <= 100 {
		req.Size = size
	}

	response, err := c.pipelineService.GetPipelineList(r.Context(), req)
	if err != nil {
		render.JSON(w, r, InternalErrorResponse("获取流水线列表失败", err))
		return
	}

	render.JSON(w, r, SuccessResponse("获取流水线列表成功", response))
}

// GetPipeline 获取流水线详情
// @Summary 获取流水线详情
// @Description 根据ID获取流水线定义，包含关联的异常规则配置
// @Tags 流水线管理
// @Accept json
// @Produce json
// @Param id path string true "流水线ID"
// @Success 200 {object} APIResponse{data=models.PipelineDefinition} "获取成功"
// @Failure 400 {object} APIResponse "请求参数错误"
// @Failure 404 {object} APIResponse "流水线不存在"
// @Router /pipelines/{id} [get]
func (c *PipelineController) GetPipeline(w http.ResponseWriter, r *http.Request) {
	pipelineID := chi.URLParam(r, "id")
	if pipelineID == "" {
		render.JSON(w, r, BadRequestResponse("流水线ID不能为空", nil))
		return
	}

	pipeline, err := c.pipelineService.GetPipelineByID(r.Context(), pipelineID)
	if err != nil {
		render.JSON(w, r, NotFoundResponse("获取流水线失败", err))
		return
	}

	render.JSON(w, r, SuccessResponse("获取流水线成功", pipeline))
}

// UpdatePipeline 更新流水线
// @Summary 更新流水线
// @Description 更新流水线定义，空字段保持原值，Rules为null表示不修改规则
// @Tags 流水线管理
// @Accept json
// @Produce json
// @Param id path string true "流水线ID"
// @Param pipeline body service.UpdatePipelineRequest true "更新信息"
// @Success 200 {object} APIResponse{data=models.PipelineDefinition} "更新成功"
// @Failure 400 {object} APIResponse "请求参数错误"
// @Failure 500 {object} APIResponse "服务器内部错误"
// @Router /pipelines/{id} [put]
func (c *PipelineController) UpdatePipeline(w http.ResponseWriter, r *http.Request) {
	pipelineID := chi.URLParam(r, "id")
	if pipelineID == "" {
		render.JSON(w, r, ErrorResponse(http.StatusBadRequest, "流水线ID不能为空", nil))
		return
	}

	var req service.UpdatePipelineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		render.JSON(w, r, ErrorResponse(http.StatusBadRequest, "请求参数解析失败", err))
		return
	}

	if req.QuantileMethod != nil && !meta.IsValidQuantileMethod(*req.QuantileMethod) {
		render.JSON(w, r, ErrorResponse(http.StatusBadRequest, "无效的分位数算法", nil))
		return
	}

	pipeline, err := c.pipelineService.UpdatePipeline(r.Context(), pipelineID, &req)
	if err != nil {
		render.JSON(w, r, ErrorResponse(http.StatusInternalServerError, "更新流水线失败", err))
		return
	}

	render.JSON(w, r, SuccessResponse("更新流水线成功", pipeline))
}

// DeletePipeline 删除流水线
// @Summary 删除流水线
// @Description 删除指定流水线及其规则配置，内置流水线和有活跃运行的流水线不允许删除
// @Tags 流水线管理
// @Accept json
// @Produce json
// @Param id path string true "流水线ID"
// @Success 200 {object} APIResponse "删除成功"
// @Failure 400 {object} APIResponse "请求参数错误"
// @Failure 500 {object} APIResponse "服务器内部错误"
// @Router /pipelines/{id} [delete]
func (c *PipelineController) DeletePipeline(w http.ResponseWriter, r *http.Request) {
	pipelineID := chi.URLParam(r, "id")
	if pipelineID == "" {
		render.JSON(w, r, ErrorResponse(http.StatusBadRequest, "流水线ID不能为空", nil))
		return
	}

	if err := c.pipelineService.DeletePipeline(r.Context(), pipelineID); err != nil {
		render.JSON(w, r, ErrorResponse(http.StatusInternalServerError, "删除流水线失败", err))
		return
	}

	render.JSON(w, r, SuccessResponse("删除流水线成功", nil))
}

// TriggerPipeline 手动触发流水线运行
// @Summary 手动触发流水线运行
// @Description 触发一次流水线运行，接口立即返回，运行在后台执行
// @Description 同一流水线同时只允许一次运行，触发受频率限制保护
// @Tags 流水线管理
// @Accept json
// @Produce json
// @Param id path string true "流水线ID"
// @Param request body models.TriggerRunRequest false "触发参数，可为空"
// @Success 200 {object} APIResponse{data=service.TriggerRunResponse} "触发成功"
// @Failure 400 {object} APIResponse "请求参数错误"
// @Failure 500 {object} APIResponse "触发失败"
// @Router /pipelines/{id}/trigger [post]
func (c *PipelineController) TriggerPipeline(w http.ResponseWriter, r *http.Request) {
	pipelineID := chi.URLParam(r, "id")
	if pipelineID == "" {
		render.JSON(w, r, BadRequestResponse("流水线ID不能为空", nil))
		return
	}

	var req models.TriggerRunRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			render.JSON(w, r, BadRequestResponse("请求参数解析失败", err))
			return
		}
	}
	req.PipelineID = pipelineID

	response, err := c.pipelineService.TriggerRun(r.Context(), &req)
	if err != nil {
		render.JSON(w, r, InternalErrorResponse("触发流水线运行失败", err))
		return
	}

	render.JSON(w, r, SuccessResponse("触发流水线运行成功", response))
}

// EnablePipeline 启用流水线
// @Summary 启用流水线
// @Description 启用指定流水线，启用后调度计划生效
// @Tags 流水线管理
// @Accept json
// @Produce json
// @Param id path string true "流水线ID"
// @Param operator query string false "操作人"
// @Success 200 {object} APIResponse "启用成功"
// @Failure 400 {object} APIResponse "请求参数错误"
// @Failure 500 {object} APIResponse "服务器内部错误"
// @Router /pipelines/{id}/enable [post]
func (c *PipelineController) EnablePipeline(w http.ResponseWriter, r *http.Request) {
	pipelineID := chi.URLParam(r, "id")
	if pipelineID == "" {
		render.JSON(w, r, BadRequestResponse("流水线ID不能为空", nil))
		return
	}

	operator := r.URL.Query().Get("operator")
	if err := c.pipelineService.EnablePipeline(r.Context(), pipelineID, operator); err != nil {
		render.JSON(w, r, InternalErrorResponse("启用流水线失败", err))
		return
	}

	render.JSON(w, r, SuccessResponse("启用流水线成功", nil))
}

// DisablePipeline 停用流水线
// @Summary 停用流水线
// @Description 停用指定流水线，停用后不再被调度，手动触发也会被拒绝
// @Tags 流水线管理
// @Accept json
// @Produce json
// @Param id path string true "流水线ID"
// @Param operator query string false "操作人"
// @Success 200 {object} APIResponse "停用成功"
// @Failure 400 {object} APIResponse "请求参数错误"
// @Failure 500 {object} APIResponse "服务器内部错误"
// @Router /pipelines/{id}/disable [post]
func (c *PipelineController) DisablePipeline(w http.ResponseWriter, r *http.Request) {
	pipelineID := chi.URLParam(r, "id")
	if pipelineID == "" {
		render.JSON(w, r, BadRequestResponse("流水线ID不能为空", nil))
		return
	}

	operator := r.URL.Query().Get("operator")
	if err := c.pipelineService.DisablePipeline(r.Context(), pipelineID, operator); err != nil {
		render.JSON(w, r, InternalErrorResponse("停用流水线失败", err))
		return
	}

	render.JSON(w, r, SuccessResponse("停用流水线成功", nil))
}

// GetPipelineStatistics 获取流水线运行统计
// @Summary 获取流水线运行统计
// @Description 获取流水线与运行的汇总统计，pipeline_id为空时统计全部流水线
// @Tags 流水线管理
// @Accept json
// @Produce json
// @Param pipeline_id query string false "流水线ID"
// @Success 200 {object} APIResponse{data=service.PipelineRunStatistics} "获取成功"
// @Failure 500 {object} APIResponse "服务器内部错误"
// @Router /pipelines/statistics [get]
func (c *PipelineController) GetPipelineStatistics(w http.ResponseWriter, r *http.Request) {
	pipelineID := r.URL.Query().Get("pipeline_id")

	stats, err := c.pipelineService.GetPipelineStatistics(r.Context(), pipelineID)
	if err != nil {
		render.JSON(w, r, InternalErrorResponse("获取运行统计失败", err))
		return
	}

	render.JSON(w, r, SuccessResponse("获取运行统计成功", stats))
}

// parseBoolQuery 解析布尔查询参数，未提供或非法时返回nil
func parseBoolQuery(r *http.Request, name string) *bool {
	switch r.URL.Query().Get(name) {
	case "true":
		val := true
		return &val
	case "false":
		val := false
		return &val
	}
	return nil
}
