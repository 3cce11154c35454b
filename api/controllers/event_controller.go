/*
 * @module api/controllers/event_controller
 * @description 事件管理控制器，提供SSE连接与运行事件历史查询API
 * @architecture RESTful API架构 - 控制器层
 * @documentReference ai_docs/quality_pipeline_design.md
 * @stateFlow HTTP请求 -> 业务逻辑处理 -> 响应返回
 * @rules 运行事件由流水线引擎产出，API侧只读，SSE连接断开时自动清理
 * @dependencies dataquality-service/service/event, github.com/go-chi/chi/v5, github.com/go-chi/render
 * @refs service/event/event_service.go
 */

package controllers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"dataquality-service/service"
	"dataquality-service/service/event"
	"dataquality-service/service/models"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
)

// EventController 事件管理控制器
type EventController struct {
	eventService *event.EventService
}

// NewEventController 创建事件控制器实例
func NewEventController() *EventController {
	return &EventController{
		eventService: service.GlobalEventService,
	}
}

// === SSE连接处理 ===

// HandleSSE 处理SSE连接
// @Summary 建立SSE连接
// @Description 前端页面通过此接口建立SSE连接，接收流水线运行事件实时推送
// @Tags 事件管理
// @Param user_name path string true "用户名"
// @Success 200 {string} string "SSE事件流"
// @Router /sse/{user_name} [get]
func (c *EventController) HandleSSE(w http.ResponseWriter, r *http.Request) {
	userName := chi.URLParam(r, "user_name")
	if userName == "" {
		http.Error(w, "用户名不能为空", http.StatusBadRequest)
		return
	}

	// 设置SSE响应头
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Cache-Control")

	// 生成连接ID
	connectionID := uuid.New().String()
	clientIP := r.RemoteAddr
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		clientIP = forwarded
	}

	// 添加SSE连接
	client := c.eventService.AddSSEConnection(userName, connectionID, clientIP)
	defer c.eventService.RemoveSSEConnection(userName, connectionID)

	flusher, _ := w.(http.Flusher)
	flush := func() {
		if flusher != nil {
			flusher.Flush()
		}
	}

	// 发送连接成功事件
	hello := map[string]string{
		"type":          "connected",
		"connection_id": connectionID,
		"timestamp":     time.Now().Format(time.RFC3339),
	}
	fmt.Fprintf(w, "data: %s\n\n", toJSON(hello))
	flush()

	// 心跳注释行防止中间代理断开空闲连接
	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case runEvent := <-client.Channel:
			fmt.Fprintf(w, "data: %s\n\n", toJSON(runEvent))
			flush()

		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flush()

		case <-client.Done:
			return

		case <-r.Context().Done():
			return
		}
	}
}

// GetSSEConnectionList 获取SSE连接列表
// @Summary 获取SSE连接列表
// @Description 分页获取SSE连接列表，支持多种过滤条件
// @Tags 事件管理
// @Accept json
// @Produce json
// @Param page query int false "页码" default(1)
// @Param size query int false "每页大小" default(10)
// @Param user_name query string false "用户名过滤"
// @Param is_active query bool false "连接状态过滤"
// @Param client_ip query string false "客户端IP过滤"
// @Success 200 {object} APIResponse{data=SSEConnectionListResponse} "获取成功"
// @Failure 400 {object} APIResponse "请求参数错误"
// @Failure 500 {object} APIResponse "服务器内部错误"
// @Router /events/connections [get]
func (c *EventController) GetSSEConnectionList(w http.ResponseWriter, r *http.Request) {
	// 解析查询参数
	page := 1
	size := 10
	userName := r.URL.Query().Get("user_name")
	clientIP := r.URL.Query().Get("client_ip")
	isActive := parseBoolQuery(r, "is_active")

	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && p > 0 {
		page = p
	}
	if s, err := strconv.Atoi(r.URL.Query().Get("size")); err == nil && s > 0 && s <= 100 {
		size = s
	}

	// 调用服务层方法
	connections, total, err := c.eventService.GetSSEConnectionList(page, size, userName, clientIP, isActive)
	if err != nil {
		render.Render(w, r, ErrorResponse(http.StatusInternalServerError, "获取SSE连接列表失败", err))
		return
	}

	// 构建响应
	response := SSEConnectionListResponse{
		List:  connections,
		Total: total,
		Page:  page,
		Size:  size,
	}

	render.Render(w, r, SuccessResponse("获取SSE连接列表成功", response))
}

// GetRunEventList 获取运行事件历史列表
// @Summary 获取运行事件历史列表
// @Description 分页获取流水线运行事件历史，支持按流水线、运行、事件类型过滤
// @Tags 事件管理
// @Accept json
// @Produce json
// @Param page query int false "页码" default(1)
// @Param size query int false "每页大小" default(10)
// @Param pipeline_id query string false "流水线ID过滤"
// @Param run_id query string false "运行ID过滤"
// @Param event_type query string false "事件类型过滤" Enums(run_started,stage_started,stage_completed,run_succeeded,run_failed,run_warning)
// @Success 200 {object} APIResponse{data=RunEventListResponse} "获取成功"
// @Failure 400 {object} APIResponse "请求参数错误"
// @Failure 500 {object} APIResponse "服务器内部错误"
// @Router /events/runs [get]
func (c *EventController) GetRunEventList(w http.ResponseWriter, r *http.Request) {
	// 解析查询参数
	page := 1
	size := 10
	pipelineID := r.URL.Query().Get("pipeline_id")
	runID := r.URL.Query().Get("run_id")
	eventType := r.URL.Query().Get("event_type")

	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && p > 0 {
		page = p
	}
	if s, err := strconv.Atoi(r.URL.Query().Get("size")); err == nil && s > 0 && s <= 100 {
		size = s
	}

	// 调用服务层方法
	events, total, err := c.eventService.GetRunEventList(page, size, pipelineID, runID, eventType)
	if err != nil {
		render.Render(w, r, ErrorResponse(http.StatusInternalServerError, "获取运行事件列表失败", err))
		return
	}

	// 构建响应
	response := RunEventListResponse{
		List:  events,
		Total: total,
		Page:  page,
		Size:  size,
	}

	render.Render(w, r, SuccessResponse("获取运行事件列表成功", response))
}

// === 请求和响应结构体 ===

// SSEConnectionListResponse SSE连接列表响应结构
type SSEConnectionListResponse struct {
	List  []models.SSEConnection `json:"list"`
	Total int64                  `json:"total"`
	Page  int                    `json:"page"`
	Size  int                    `json:"size"`
}

// RunEventListResponse 运行事件列表响应结构
type RunEventListResponse struct {
	List  []models.RunEvent `json:"list"`
	Total int64             `json:"total"`
	Page  int               `json:"page"`
	Size  int               `json:"size"`
}

// toJSON 将对象转换为JSON字符串
func toJSON(v interface{}) string {
	data, _ := json.Marshal(v)
	return string(data)
}
