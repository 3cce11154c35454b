/*
 * @module api/controllers/health_controller_test
 * @description 健康检查控制器单元测试
 * @architecture 测试层
 * @documentReference ai_docs/quality_pipeline_design.md
 * @stateFlow 请求构建 -> 处理器调用 -> 响应验证
 * @rules 健康检查不依赖数据库连接，就绪检查在无数据库时直接返回就绪
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

// TestHealth 测试健康检查接口
func TestHealth(t *testing.T) {
	controller := NewHealthController()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	controller.Health(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response HealthResponse
	err := json.NewDecoder(w.Body).Decode(&response)
	require.NoError(t, err)

	assert.Equal(t, "ok", response.Status)
	assert.Equal(t, "dataquality-service", response.Service)
	assert.Equal(t, "1.0.0", response.Version)
	assert.False(t, response.Timestamp.IsZero())
}

// TestReady 测试就绪检查接口
func TestReady(t *testing.T) {
	controller := NewHealthController()

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	w := httptest.NewRecorder()
	controller.Ready(w, req)

	// 未初始化数据库时直接就绪
	assert.Equal(t, http.StatusOK, w.Code)

	var response HealthResponse
	err := json.NewDecoder(w.Body).Decode(&response)
	require.NoError(t, err)
	assert.Equal(t, "ready", response.Status)
}
