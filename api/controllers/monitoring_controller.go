/*
 * @module api/controllers/monitoring_controller
 * @description 监控控制器，提供系统指标、运行活跃度、健康检查、指标看板与日志查询API
 * @architecture MVC架构 - 控制器层
 * @documentReference ai_docs/quality_pipeline_design.md
 * @stateFlow 请求接收 -> 业务逻辑处理 -> 响应返回
 * @rules 看板指标查VictoriaMetrics，日志查Loki，其余指标直查业务库
 * @dependencies service/monitoring, github.com/go-chi/render
 * @refs service/monitoring/monitor_service.go, service/monitoring/quality_alerts.go
 */

package controllers

import (
	"net/http"
	"strconv"

	"dataquality-service/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

// MonitoringController 监控控制器
type MonitoringController struct {
}

// NewMonitoringController 创建监控控制器实例
func NewMonitoringController() *MonitoringController {
	return &MonitoringController{}
}

// GetSystemMetrics 获取系统指标
// @Summary 获取系统指标
// @Description 获取服务进程的运行时指标，包括内存、协程数与GC情况
// @Tags 系统监控
// @Accept json
// @Produce json
// @Success 200 {object} APIResponse{data=monitoring.SystemMetrics}
// @Failure 500 {object} APIResponse
// @Router /monitoring/system/metrics [get]
func (c *MonitoringController) GetSystemMetrics(w http.ResponseWriter, r *http.Request) {
	metrics, err := service.GlobalMonitorService.GetSystemMetrics()
	if err != nil {
		render.JSON(w, r, InternalErrorResponse("获取系统指标失败", err))
		return
	}

	render.JSON(w, r, SuccessResponse("获取系统指标成功", metrics))
}

// GetRunActivity 获取运行活跃度指标
// @Summary 获取运行活跃度指标
// @Description 获取指定时间窗口内的运行统计，包括成功率、平均耗时、去重量与失败阶段分布
// @Tags 系统监控
// @Accept json
// @Produce json
// @Param time_range query string false "时间窗口" Enums(1h,24h,7d,30d) default(24h)
// @Success 200 {object} APIResponse{data=monitoring.RunActivityMetrics}
// @Failure 500 {object} APIResponse
// @Router /monitoring/runs/activity [get]
func (c *MonitoringController) GetRunActivity(w http.ResponseWriter, r *http.Request) {
	timeRange := r.URL.Query().Get("time_range")
	if timeRange == "" {
		timeRange = "24h"
	}

	activity, err := service.GlobalMonitorService.GetRunActivity(timeRange)
	if err != nil {
		render.JSON(w, r, InternalErrorResponse("获取运行活跃度失败", err))
		return
	}

	render.JSON(w, r, SuccessResponse("获取运行活跃度成功", activity))
}

// GetDashboardMetrics 获取指标看板数据
// @Summary 获取指标看板数据
// @Description 从指标库汇总流水线运行计数、在途运行、告警与异常行数，用于看板展示
// @Tags 系统监控
// @Accept json
// @Produce json
// @Success 200 {object} APIResponse{data=monitoring.DashboardMetrics}
// @Failure 500 {object} APIResponse
// @Router /monitoring/dashboard [get]
func (c *MonitoringController) GetDashboardMetrics(w http.ResponseWriter, r *http.Request) {
	metrics, err := service.GlobalMonitorService.GetDashboardMetrics(r.Context())
	if err != nil {
		render.JSON(w, r, InternalErrorResponse("获取看板指标失败", err))
		return
	}

	render.JSON(w, r, SuccessResponse("获取看板指标成功", metrics))
}

// GetHealthStatus 获取系统健康状态
// @Summary 获取系统健康状态
// @Description 获取数据库、数据仓库、运行时与流水线运行的整体健康评估
// @Tags 健康检查
// @Accept json
// @Produce json
// @Success 200 {object} APIResponse{data=monitoring.HealthStatus}
// @Failure 500 {object} APIResponse
// @Router /monitoring/health [get]
func (c *MonitoringController) GetHealthStatus(w http.ResponseWriter, r *http.Request) {
	status, err := service.GlobalMonitorService.GetHealthStatus()
	if err != nil {
		render.JSON(w, r, InternalErrorResponse("获取健康状态失败", err))
		return
	}

	render.JSON(w, r, SuccessResponse("获取健康状态成功", status))
}

// GetPipelineHealth 获取流水线健康状态
// @Summary 获取流水线健康状态
// @Description 根据近期运行的成功率与连续失败次数评估单条流水线的健康分
// @Tags 健康检查
// @Accept json
// @Produce json
// @Param id path string true "流水线ID"
// @Success 200 {object} APIResponse{data=monitoring.PipelineHealth}
// @Failure 400 {object} APIResponse
// @Failure 404 {object} APIResponse
// @Router /monitoring/health/pipelines/{id} [get]
func (c *MonitoringController) GetPipelineHealth(w http.ResponseWriter, r *http.Request) {
	pipelineID := chi.URLParam(r, "id")
	if pipelineID == "" {
		render.JSON(w, r, BadRequestResponse("流水线ID不能为空", nil))
		return
	}

	health, err := service.GlobalMonitorService.GetPipelineHealth(pipelineID)
	if err != nil {
		render.JSON(w, r, NotFoundResponse("获取流水线健康状态失败", err))
		return
	}

	render.JSON(w, r, SuccessResponse("获取流水线健康状态成功", health))
}

// GetRecentLogs 获取服务日志
// @Summary 获取服务日志
// @Description 从日志库查询服务近期日志，支持按级别过滤
// @Tags 系统监控
// @Accept json
// @Produce json
// @Param level query string false "日志级别" Enums(debug,info,warn,error)
// @Param limit query int false "返回条数" default(100)
// @Param pre_hours query int false "向前查询小时数" default(1)
// @Success 200 {object} APIResponse{data=[]monitor_client.LokiLogLine}
// @Failure 500 {object} APIResponse
// @Router /monitoring/logs [get]
func (c *MonitoringController) GetRecentLogs(w http.ResponseWriter, r *http.Request) {
	level := r.URL.Query().Get("level")

	limit := 100
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 && l <= 1000 {
		limit = l
	}
	preHours := 1
	if h, err := strconv.Atoi(r.URL.Query().Get("pre_hours")); err == nil && h > 0 && h <= 168 {
		preHours = h
	}

	lines, err := service.GlobalMonitorService.GetRecentLogs(r.Context(), level, limit, preHours)
	if err != nil {
		render.JSON(w, r, InternalErrorResponse("获取服务日志失败", err))
		return
	}

	render.JSON(w, r, SuccessResponse("获取服务日志成功", lines))
}

// GetRunAlerts 获取运行质量告警
// @Summary 获取运行质量告警
// @Description 按告警阈值即时评估指定运行的质量告警，包括缺失率、离群率、退化分布与异常命中率
// @Tags 系统监控
// @Accept json
// @Produce json
// @Param id path string true "运行ID"
// @Success 200 {object} APIResponse{data=[]monitoring.QualityAlert}
// @Failure 400 {object} APIResponse
// @Failure 500 {object} APIResponse
// @Router /monitoring/runs/{id}/alerts [get]
func (c *MonitoringController) GetRunAlerts(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")
	if runID == "" {
		render.JSON(w, r, BadRequestResponse("运行ID不能为空", nil))
		return
	}

	alerts, err := service.GlobalAlertEvaluator.EvaluateRun(runID)
	if err != nil {
		render.JSON(w, r, InternalErrorResponse("评估运行告警失败", err))
		return
	}

	render.JSON(w, r, SuccessResponse("评估运行告警成功", alerts))
}

// GetScheduleStatus 获取调度状态
// @Summary 获取调度状态
// @Description 获取当前加载的流水线调度计划与下次执行时间
// @Tags 系统监控
// @Accept json
// @Produce json
// @Success 200 {object} APIResponse{data=[]scheduler.ScheduleEntryStatus}
// @Failure 500 {object} APIResponse
// @Router /monitoring/schedules [get]
func (c *MonitoringController) GetScheduleStatus(w http.ResponseWriter, r *http.Request) {
	entries := service.GlobalSchedulerService.GetScheduleStatus()
	render.JSON(w, r, SuccessResponse("获取调度状态成功", entries))
}
