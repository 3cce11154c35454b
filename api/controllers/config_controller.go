/*
 * @module api/controllers/config_controller
 * @description 系统配置控制器，提供保留策略等运行参数的查询与调整接口
 * @architecture MVC架构 - 控制器层
 * @documentReference ai_docs/quality_pipeline_design.md
 * @stateFlow HTTP请求 -> 控制器 -> 配置服务 -> 数据库/缓存
 * @rules 保留天数类配置在落库前校验为正整数，配置变更后立即清除进程内缓存
 * @dependencies github.com/go-chi/chi/v5, github.com/go-chi/render
 * @refs service/config/config_service.go
 */

package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"dataquality-service/service"
	"dataquality-service/service/config"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

// 取值必须为正整数的配置键
var positiveIntConfigKeys = map[string]bool{
	config.ConfigKeyRunRetentionDays:   true,
	config.ConfigKeyEventRetentionDays: true,
}

var (
	errEmptyConfigKey       = errors.New("配置键不能为空")
	errInvalidRetentionDays = errors.New("保留天数必须为正整数")
)

// ConfigController 系统配置控制器
type ConfigController struct{}

// NewConfigController 创建系统配置控制器实例
func NewConfigController() *ConfigController {
	return &ConfigController{}
}

// GetAllConfigs 获取所有配置
// @Summary 获取所有系统配置
// @Description 获取全部配置项，数据库未覆盖的键返回内置默认值
// @Tags 系统配置
// @Produce json
// @Success 200 {object} APIResponse
// @Failure 500 {object} APIResponse
// @Router /config [get]
func (c *ConfigController) GetAllConfigs(w http.ResponseWriter, r *http.Request) {
	configs, err := service.GlobalConfigService.GetAllSystemConfigs()
	if err != nil {
		render.Render(w, r, InternalErrorResponse("获取配置失败", err))
		return
	}

	render.JSON(w, r, SuccessResponse("获取配置成功", configs))
}

// GetConfig 获取单个配置
// @Summary 获取单个配置
// @Description 根据键名获取配置值
// @Tags 系统配置
// @Produce json
// @Param key path string true "配置键"
// @Success 200 {object} APIResponse
// @Failure 404 {object} APIResponse
// @Router /config/{key} [get]
func (c *ConfigController) GetConfig(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	value, err := service.GlobalConfigService.GetSystemConfig(key)
	if err != nil {
		render.Render(w, r, NotFoundResponse("配置项不存在", err))
		return
	}

	render.JSON(w, r, SuccessResponse("获取配置成功", map[string]interface{}{
		"key":   key,
		"value": value,
	}))
}

// UpdateConfigRequest 更新配置请求
type UpdateConfigRequest struct {
	Value       string `json:"value"`
	Description string `json:"description"`
}

// UpdateConfig 更新配置
// @Summary 更新配置
// @Description 更新指定键的配置值，保留天数类配置要求正整数
// @Tags 系统配置
// @Accept json
// @Produce json
// @Param key path string true "配置键"
// @Param request body UpdateConfigRequest true "更新配置请求"
// @Success 200 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Failure 500 {object} APIResponse
// @Router /config/{key} [put]
func (c *ConfigController) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	var req UpdateConfigRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.Render(w, r, BadRequestResponse("请求参数错误", err))
		return
	}

	if err := validateConfigValue(key, req.Value); err != nil {
		render.Render(w, r, BadRequestResponse("配置值无效", err))
		return
	}

	if err := service.GlobalConfigService.SetSystemConfig(key, req.Value, req.Description); err != nil {
		render.Render(w, r, InternalErrorResponse("更新配置失败", err))
		return
	}
	service.GlobalConfigService.ClearCache()

	render.JSON(w, r, SuccessResponse("更新配置成功", map[string]interface{}{
		"key":   key,
		"value": req.Value,
	}))
}

// BatchConfigEntry 批量更新配置条目
type BatchConfigEntry struct {
	Key         string `json:"key"`
	Value       string `json:"value"`
	Description string `json:"description"`
}

// BatchUpdateConfigsRequest 批量更新配置请求
type BatchUpdateConfigsRequest struct {
	Configs []BatchConfigEntry `json:"configs"`
}

// BatchUpdateConfigs 批量更新配置
// @Summary 批量更新配置
// @Description 逐项更新多个配置，单项失败不中断其余更新
// @Tags 系统配置
// @Accept json
// @Produce json
// @Param request body BatchUpdateConfigsRequest true "批量更新配置请求"
// @Success 200 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Router /config/batch [post]
func (c *ConfigController) BatchUpdateConfigs(w http.ResponseWriter, r *http.Request) {
	var req BatchUpdateConfigsRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.Render(w, r, BadRequestResponse("请求参数错误", err))
		return
	}
	if len(req.Configs) == 0 {
		render.Render(w, r, BadRequestResponse("配置列表不能为空", nil))
		return
	}

	successCount := 0
	failures := make([]string, 0)
	for _, entry := range req.Configs {
		if err := validateConfigValue(entry.Key, entry.Value); err != nil {
			failures = append(failures, entry.Key+": "+err.Error())
			continue
		}
		if err := service.GlobalConfigService.SetSystemConfig(entry.Key, entry.Value, entry.Description); err != nil {
			failures = append(failures, entry.Key+": "+err.Error())
			continue
		}
		successCount++
	}
	if successCount > 0 {
		service.GlobalConfigService.ClearCache()
	}

	render.JSON(w, r, SuccessResponse("批量更新完成", map[string]interface{}{
		"success_count": successCount,
		"failed_count":  len(failures),
		"errors":        failures,
	}))
}

// validateConfigValue 校验配置值，保留天数类键要求正整数
func validateConfigValue(key, value string) error {
	if key == "" {
		return errEmptyConfigKey
	}
	if !positiveIntConfigKeys[key] {
		return nil
	}

	days, err := strconv.Atoi(value)
	if err != nil || days <= 0 {
		return errInvalidRetentionDays
	}
	return nil
}
