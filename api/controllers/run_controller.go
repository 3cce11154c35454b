/*
 * @module api/controllers/run_controller
 * @description 流水线运行控制器，提供运行记录查询、取消与质量报告API
 * @architecture 分层架构 - 控制器层
 * @documentReference ai_docs/quality_pipeline_design.md
 * @stateFlow HTTP请求 -> 参数验证 -> 服务调用 -> 响应返回
 * @rules 运行报告只读，已结束运行的报告走缓存，取消只对pending/running状态生效
 * @dependencies service/pipeline_service, service/quality_report_service, service/meta
 * @refs api/routes.go
 */

package controllers

import (
	"net/http"
	"strconv"

	"dataquality-service/service"
	"dataquality-service/service/meta"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

// RunController 流水线运行控制器
type RunController struct {
	pipelineService *service.PipelineService
	reportService   *service.QualityReportService
}

// NewRunController 创建运行控制器
func NewRunController() *RunController {
	return &RunController{
		pipelineService: service.GlobalPipelineService,
		reportService:   service.GlobalReportService,
	}
}

// GetRunList 获取运行列表
// @Summary 获取运行列表
// @Description 分页获取流水线运行记录，支持按流水线、状态、触发方式过滤
// @Tags 运行管理
// @Accept json
// @Produce json
// @Param page query int false "页码" default(1)
// @Param size query int false "每页大小" default(10)
// @Param pipeline_id query string false "流水线ID"
// @Param status query string false "运行状态" Enums(pending,running,succeeded,failed)
// @Param triggered_by query string false "触发方式" Enums(manual,schedule,api)
// @Success 200 {object} APIResponse{data=service.RunListResponse} "获取成功"
// @Failure 400 {object} APIResponse "请求参数错误"
// @Failure 500 {object} APIResponse "服务器内部错误"
// @Router /runs [get]
func (c *RunController) GetRunList(w http.ResponseWriter, r *http.Request) {
	req := &service.GetRunListRequest{
		Page:        1,
		Size:        10,
		PipelineID:  r.URL.Query().Get("pipeline_id"),
		Status:      r.URL.Query().Get("status"),
		TriggeredBy: r.URL.Query().Get("triggered_by"),
	}

	if req.Status != "" && !meta.IsValidRunStatus(req.Status) {
		render.JSON(w, r, BadRequestResponse("无效的运行状态", nil))
		return
	}

	if page, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && page > 0 {
		req.Page = page
	}
	if size, err := strconv.Atoi(r.URL.Query().Get("size")); err == nil && size > 0 && size <= 100 {
		req.Size = size
	}

	response, err := c.pipelineService.GetRunList(r.Context(), req)
	if err != nil {
		render.JSON(w, r, InternalErrorResponse("获取运行列表失败", err))
		return
	}

	render.JSON(w, r, SuccessResponse("获取运行列表成功", response))
}

// GetRun 获取运行详情
// @Summary 获取运行详情
// @Description 根据ID获取运行记录，包含各阶段执行明细
// @Tags 运行管理
// @Accept json
// @Produce json
// @Param id path string true "运行ID"
// @Success 200 {object} APIResponse{data=models.PipelineRun} "获取成功"
// @Failure 400 {object} APIResponse "请求参数错误"
// @Failure 404 {object} APIResponse "运行不存在"
// @Router /runs/{id} [get]
func (c *RunController) GetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")
	if runID == "" {
		render.JSON(w, r, BadRequestResponse("运行ID不能为空", nil))
		return
	}

	run, err := c.pipelineService.GetRunByID(r.Context(), runID)
	if err != nil {
		render.JSON(w, r, NotFoundResponse("获取运行记录失败", err))
		return
	}

	render.JSON(w, r, SuccessResponse("获取运行记录成功", run))
}

// CancelRun 取消运行
// @Summary 取消运行
// @Description 取消待执行或正在执行的运行，已结束的运行不允许取消
// @Tags 运行管理
// @Accept json
// @Produce json
// @Param id path string true "运行ID"
// @Success 200 {object} APIResponse "取消成功"
// @Failure 400 {object} APIResponse "请求参数错误"
// @Failure 500 {object} APIResponse "取消失败"
// @Router /runs/{id}/cancel [post]
func (c *RunController) CancelRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")
	if runID == "" {
		render.JSON(w, r, BadRequestResponse("运行ID不能为空", nil))
		return
	}

	if err := c.pipelineService.CancelRun(r.Context(), runID); err != nil {
		render.JSON(w, r, InternalErrorResponse("取消运行失败", err))
		return
	}

	render.JSON(w, r, SuccessResponse("取消运行成功", nil))
}

// GetRunReport 获取运行质量报告
// @Summary 获取运行质量报告
// @Description 获取单次运行的完整质量报告，汇总画像、去重、分位界、封顶核对与异常标记结果
// @Tags 运行管理
// @Accept json
// @Produce json
// @Param id path string true "运行ID"
// @Success 200 {object} APIResponse{data=service.RunQualityReport} "获取成功"
// @Failure 400 {object} APIResponse "请求参数错误"
// @Failure 404 {object} APIResponse "运行不存在"
// @Router /runs/{id}/report [get]
func (c *RunController) GetRunReport(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")
	if runID == "" {
		render.JSON(w, r, BadRequestResponse("运行ID不能为空", nil))
		return
	}

	report, err := c.reportService.GetRunReport(r.Context(), runID)
	if err != nil {
		render.JSON(w, r, NotFoundResponse("获取质量报告失败", err))
		return
	}

	render.JSON(w, r, SuccessResponse("获取质量报告成功", report))
}

// GetLatestPipelineReport 获取流水线最近一次报告
// @Summary 获取流水线最近一次质量报告
// @Description 获取指定流水线最近一次运行的质量报告
// @Tags 运行管理
// @Accept json
// @Produce json
// @Param id path string true "流水线ID"
// @Success 200 {object} APIResponse{data=service.RunQualityReport} "获取成功"
// @Failure 400 {object} APIResponse "请求参数错误"
// @Failure 404 {object} APIResponse "流水线尚无运行记录"
// @Router /pipelines/{id}/report [get]
func (c *RunController) GetLatestPipelineReport(w http.ResponseWriter, r *http.Request) {
	pipelineID := chi.URLParam(r, "id")
	if pipelineID == "" {
		render.JSON(w, r, BadRequestResponse("流水线ID不能为空", nil))
		return
	}

	report, err := c.reportService.GetLatestReport(r.Context(), pipelineID)
	if err != nil {
		render.JSON(w, r, NotFoundResponse("获取最近质量报告失败", err))
		return
	}

	render.JSON(w, r, SuccessResponse("获取最近质量报告成功", report))
}
