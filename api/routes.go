/*
 * @module api/routes
 * @description API路由配置模块，负责初始化和配置所有HTTP路由
 * @architecture RESTful API架构
 * @documentReference ai_docs/quality_pipeline_design.md
 * @stateFlow 无状态HTTP请求处理，写操作经过令牌鉴权中间件
 * @rules 遵循RESTful API设计规范，统一错误处理和响应格式；查询接口开放，变更接口按权限范围鉴权
 * @dependencies github.com/go-chi/chi/v5, github.com/go-chi/cors, github.com/go-chi/render
 * @refs api/middleware/token_auth.go, ai_docs/quality_pipeline_design.md
 */

package api

import (
	"dataquality-service/api/controllers"
	apimiddleware "dataquality-service/api/middleware"
	"dataquality-service/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
)

// InitRoute 初始化所有API路由
func InitRoute(r *chi.Mux) {
	// 基础中间件
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(render.SetContentType(render.ContentTypeJSON))

	// CORS配置
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// 令牌鉴权中间件，仅挂载在变更类路由上
	auth := apimiddleware.NewTokenAuthMiddleware(service.GlobalAccessTokenService)

	// 健康检查
	healthController := controllers.NewHealthController()
	r.Get("/health", healthController.Health)
	r.Get("/ready", healthController.Ready)

	// SSE事件订阅
	eventController := controllers.NewEventController()
	r.Get("/sse/{user_name}", eventController.HandleSSE)

	// 事件管理
	r.Route("/events", func(r chi.Router) {
		r.Get("/connections", eventController.GetSSEConnectionList)
		r.Get("/runs", eventController.GetRunEventList)
	})

	// 元数据管理
	r.Route("/meta", func(r chi.Router) {
		metaController := controllers.NewMetaController()
		r.Get("/pipelines/stage-types", metaController.GetStageTypes)
		r.Get("/pipelines/run-statuses", metaController.GetRunStatuses)
		r.Get("/pipelines/quantile-methods", metaController.GetQuantileMethods)
		r.Get("/pipelines/trigger-types", metaController.GetTriggerTypes)
		r.Get("/pipelines/built-in", metaController.GetBuiltInPipeline)
		r.Get("/pipelines/all", metaController.GetPipelineAllMetadata)
		r.Get("/rules/operators", metaController.GetRuleOperators)
		r.Get("/rules/logics", metaController.GetRuleLogics)
		r.Get("/rules/templates", metaController.GetDefaultRuleTemplates)
		r.Get("/tokens/scopes", metaController.GetTokenScopes)
		r.Get("/tokens/statuses", metaController.GetTokenStatuses)
	})

	// 流水线与运行管理
	pipelineController := controllers.NewPipelineController()
	runController := controllers.NewRunController()

	r.Route("/pipelines", func(r chi.Router) {
		// 查询接口
		r.Get("/", pipelineController.GetPipelineList)
		r.Get("/statistics", pipelineController.GetPipelineStatistics)
		r.Get("/{id}", pipelineController.GetPipeline)
		r.Get("/{id}/report", runController.GetLatestPipelineReport)

		// 定义变更，需要 pipeline:write 权限
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware)
			r.Use(apimiddleware.RequireScope("pipeline:write"))
			r.Post("/", pipelineController.CreatePipeline)
			r.Put("/{id}", pipelineController.UpdatePipeline)
			r.Delete("/{id}", pipelineController.DeletePipeline)
			r.Post("/{id}/enable", pipelineController.EnablePipeline)
			r.Post("/{id}/disable", pipelineController.DisablePipeline)
		})

		// 手动触发，需要 pipeline:trigger 权限
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware)
			r.Use(apimiddleware.RequireScope("pipeline:trigger"))
			r.Post("/{id}/trigger", pipelineController.TriggerPipeline)
		})
	})

	r.Route("/runs", func(r chi.Router) {
		r.Get("/", runController.GetRunList)
		r.Get("/{id}", runController.GetRun)
		r.Get("/{id}/report", runController.GetRunReport)

		// 取消运行，需要 pipeline:trigger 权限
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware)
			r.Use(apimiddleware.RequireScope("pipeline:trigger"))
			r.Post("/{id}/cancel", runController.CancelRun)
		})
	})

	// 质量结果查询与异常规则管理
	r.Route("/quality", func(r chi.Router) {
		qualityController := controllers.NewQualityController()

		r.Get("/profiles", qualityController.ListColumnProfiles)
		r.Get("/bounds", qualityController.ListQuantileBounds)
		r.Get("/flags", qualityController.ListAnomalyFlags)
		r.Get("/trends", qualityController.GetQualityTrend)

		// 异常规则管理
		r.Route("/rules", func(r chi.Router) {
			r.Get("/", qualityController.GetRuleList)
			r.Get("/{id}", qualityController.GetRule)

			// 规则变更，需要 pipeline:write 权限
			r.Group(func(r chi.Router) {
				r.Use(auth.Middleware)
				r.Use(apimiddleware.RequireScope("pipeline:write"))
				r.Post("/", qualityController.CreateRule)
				r.Put("/{id}", qualityController.UpdateRule)
				r.Delete("/{id}", qualityController.DeleteRule)
			})
		})
	})

	// 访问令牌管理，全部需要管理令牌
	r.Route("/tokens", func(r chi.Router) {
		tokenController := controllers.NewTokenController()

		r.Use(auth.Middleware)
		r.Use(apimiddleware.RequireScope("*"))
		r.Post("/", tokenController.CreateToken)
		r.Get("/", tokenController.GetTokenList)
		r.Get("/{id}", tokenController.GetToken)
		r.Put("/{id}", tokenController.UpdateToken)
		r.Delete("/{id}", tokenController.DeleteToken)
		r.Post("/{id}/revoke", tokenController.RevokeToken)
	})

	// 监控管理
	r.Route("/monitoring", func(r chi.Router) {
		monitoringController := controllers.NewMonitoringController()

		r.Get("/system/metrics", monitoringController.GetSystemMetrics)
		r.Get("/runs/activity", monitoringController.GetRunActivity)
		r.Get("/runs/{id}/alerts", monitoringController.GetRunAlerts)
		r.Get("/dashboard", monitoringController.GetDashboardMetrics)
		r.Get("/health", monitoringController.GetHealthStatus)
		r.Get("/health/pipelines/{id}", monitoringController.GetPipelineHealth)
		r.Get("/logs", monitoringController.GetRecentLogs)
		r.Get("/schedules", monitoringController.GetScheduleStatus)
	})

	// 系统配置管理
	r.Route("/config", func(r chi.Router) {
		configController := controllers.NewConfigController()

		r.Get("/", configController.GetAllConfigs)
		r.Get("/{key}", configController.GetConfig)

		// 配置变更，需要管理令牌
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware)
			r.Use(apimiddleware.RequireScope("*"))
			r.Put("/{key}", configController.UpdateConfig)
			r.Post("/batch", configController.BatchUpdateConfigs)
		})
	})
}
