/*
 * @module api/controllers/meta_controller_test
 * @description 元数据控制器单元测试
 * @architecture 测试层
 * @documentReference ai_docs/quality_pipeline_design.md
 * @stateFlow 请求构建 -> 处理器调用 -> 响应验证
 * @rules 元数据接口返回静态定义，校验编码集合与顺序
 * @dependencies testing, net/http/httptest, stretchr/testify
 */

package controllers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// decodeAPIResponse 解码统一响应结构
func decodeAPIResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var response APIResponse
	err := json.NewDecoder(w.Body).Decode(&response)
	require.NoError(t, err)
	return response
}

// metaCodes 提取元数据列表的code字段
func metaCodes(t *testing.T, data interface{}) []string {
	t.Helper()
	list, ok := data.([]interface{})
	require.True(t, ok, "响应数据应该是列表类型")

	codes := make([]string, 0, len(list))
	for _, item := range list {
		entry, ok := item.(map[string]interface{})
		require.True(t, ok)
		code, ok := entry["code"].(string)
		require.True(t, ok)
		codes = append(codes, code)
	}
	return codes
}

// TestGetStageTypes 测试获取阶段类型元数据
func TestGetStageTypes(t *testing.T) {
	controller := NewMetaController()

	req := httptest.NewRequest(http.MethodGet, "/meta/pipelines/stage-types", nil)
	w := httptest.NewRecorder()
	controller.GetStageTypes(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	response := decodeAPIResponse(t, w)
	assert.Equal(t, 0, response.Status)

	// 顺序即标准执行顺序
	assert.Equal(t, []string{"profile", "dedup", "outlier", "flag"}, metaCodes(t, response.Data))
}

// TestGetRunStatuses 测试获取运行状态元数据
func TestGetRunStatuses(t *testing.T) {
	controller := NewMetaController()

	req := httptest.NewRequest(http.MethodGet, "/meta/pipelines/run-statuses", nil)
	w := httptest.NewRecorder()
	controller.GetRunStatuses(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	response := decodeAPIResponse(t, w)
	assert.Equal(t, 0, response.Status)
	assert.Equal(t, []string{"pending", "running", "succeeded", "failed"}, metaCodes(t, response.Data))
}

// TestGetQuantileMethods 测试获取分位数算法元数据
func TestGetQuantileMethods(t *testing.T) {
	controller := NewMetaController()

	req := httptest.NewRequest(http.MethodGet, "/meta/pipelines/quantile-methods", nil)
	w := httptest.NewRecorder()
	controller.GetQuantileMethods(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	response := decodeAPIResponse(t, w)
	assert.Equal(t, 0, response.Status)
	assert.Equal(t, []string{"auto", "exact", "p2"}, metaCodes(t, response.Data))
}

// TestGetTriggerTypes 测试获取触发方式元数据
func TestGetTriggerTypes(t *testing.T) {
	controller := NewMetaController()

	req := httptest.NewRequest(http.MethodGet, "/meta/pipelines/trigger-types", nil)
	w := httptest.NewRecorder()
	controller.GetTriggerTypes(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	response := decodeAPIResponse(t, w)
	assert.Equal(t, 0, response.Status)
	assert.Equal(t, []string{"manual", "schedule", "api"}, metaCodes(t, response.Data))
}

// TestGetRuleOperators 测试获取规则算子元数据
func TestGetRuleOperators(t *testing.T) {
	controller := NewMetaController()

	req := httptest.NewRequest(http.MethodGet, "/meta/rules/operators", nil)
	w := httptest.NewRecorder()
	controller.GetRuleOperators(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	response := decodeAPIResponse(t, w)
	assert.Equal(t, 0, response.Status)
	assert.Equal(t, []string{"eq", "ne", "gt", "lt", "gte", "lte"}, metaCodes(t, response.Data))
}

// TestGetRuleLogics 测试获取规则组合逻辑元数据
func TestGetRuleLogics(t *testing.T) {
	controller := NewMetaController()

	req := httptest.NewRequest(http.MethodGet, "/meta/rules/logics", nil)
	w := httptest.NewRecorder()
	controller.GetRuleLogics(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	response := decodeAPIResponse(t, w)
	assert.Equal(t, 0, response.Status)
	assert.Equal(t, []string{"or", "and"}, metaCodes(t, response.Data))
}

// TestGetDefaultRuleTemplates 测试获取默认规则模板
func TestGetDefaultRuleTemplates(t *testing.T) {
	controller := NewMetaController()

	req := httptest.NewRequest(http.MethodGet, "/meta/rules/templates", nil)
	w := httptest.NewRecorder()
	controller.GetDefaultRuleTemplates(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	response := decodeAPIResponse(t, w)
	assert.Equal(t, 0, response.Status)

	list, ok := response.Data.([]interface{})
	require.True(t, ok)
	require.Len(t, list, 3)

	first, ok := list[0].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "flag_binge", first["Name"])
	assert.Equal(t, "watch_history_robust", first["SourceDataset"])

	conditions, ok := first["Conditions"].([]interface{})
	require.True(t, ok)
	require.Len(t, conditions, 1)
	condition, ok := conditions[0].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "watch_duration_minutes_capped", condition["field"])
	assert.Equal(t, "gt", condition["operator"])
}

// TestGetBuiltInPipeline 测试获取内置流水线定义
func TestGetBuiltInPipeline(t *testing.T) {
	controller := NewMetaController()

	req := httptest.NewRequest(http.MethodGet, "/meta/pipelines/built-in", nil)
	w := httptest.NewRecorder()
	controller.GetBuiltInPipeline(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	response := decodeAPIResponse(t, w)
	assert.Equal(t, 0, response.Status)

	data, ok := response.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "watch_history_quality", data["Name"])
	assert.Equal(t, "watch_history_raw", data["SourceTable"])
	assert.Equal(t, "0 2 * * *", data["Schedule"])

	keyColumns, ok := data["KeyColumns"].([]interface{})
	require.True(t, ok)
	assert.Len(t, keyColumns, 4)
}

// TestGetTokenScopes 测试获取令牌权限范围元数据
func TestGetTokenScopes(t *testing.T) {
	controller := NewMetaController()

	req := httptest.NewRequest(http.MethodGet, "/meta/tokens/scopes", nil)
	w := httptest.NewRecorder()
	controller.GetTokenScopes(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	response := decodeAPIResponse(t, w)
	assert.Equal(t, 0, response.Status)

	codes := metaCodes(t, response.Data)
	assert.Contains(t, codes, "pipeline:write")
	assert.Contains(t, codes, "pipeline:trigger")
	assert.Contains(t, codes, "*")
}

// TestGetTokenStatuses 测试获取令牌状态元数据
func TestGetTokenStatuses(t *testing.T) {
	controller := NewMetaController()

	req := httptest.NewRequest(http.MethodGet, "/meta/tokens/statuses", nil)
	w := httptest.NewRecorder()
	controller.GetTokenStatuses(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	response := decodeAPIResponse(t, w)
	assert.Equal(t, 0, response.Status)
	assert.Equal(t, []string{"active", "inactive", "revoked"}, metaCodes(t, response.Data))
}

// TestGetPipelineAllMetadata 测试获取流水线完整元数据
func TestGetPipelineAllMetadata(t *testing.T) {
	controller := NewMetaController()

	req := httptest.NewRequest(http.MethodGet, "/meta/pipelines/all", nil)
	w := httptest.NewRecorder()
	controller.GetPipelineAllMetadata(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	response := decodeAPIResponse(t, w)
	assert.Equal(t, 0, response.Status)

	data, ok := response.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, data, "stage_types")
	assert.Contains(t, data, "run_statuses")
	assert.Contains(t, data, "quantile_methods")
	assert.Contains(t, data, "trigger_types")
	assert.Contains(t, data, "rule_operators")
	assert.Contains(t, data, "rule_logics")
	assert.Contains(t, data, "rule_templates")
	assert.Contains(t, data, "built_in_pipeline")
}
