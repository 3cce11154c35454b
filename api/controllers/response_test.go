package controllers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSuccessResponse 测试成功响应构造
func TestSuccessResponse(t *testing.T) {
	response := SuccessResponse("操作成功", map[string]string{"id": "abc"})

	assert.Equal(t, 0, response.Status)
	assert.Equal(t, "操作成功", response.Msg)
	assert.NotNil(t, response.Data)
}

// TestErrorResponse 测试错误响应构造
func TestErrorResponse(t *testing.T) {
	t.Run("附加错误详情", func(t *testing.T) {
		response := ErrorResponse(http.StatusInternalServerError, "保存失败", errors.New("连接超时"))

		assert.Equal(t, http.StatusInternalServerError, response.Status)
		assert.Equal(t, "保存失败: 连接超时", response.Msg)
		assert.Nil(t, response.Data)
	})

	t.Run("无错误对象", func(t *testing.T) {
		response := ErrorResponse(http.StatusBadRequest, "参数无效", nil)

		assert.Equal(t, http.StatusBadRequest, response.Status)
		assert.Equal(t, "参数无效", response.Msg)
	})
}

// TestResponseShortcuts 测试快捷错误构造函数
func TestResponseShortcuts(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, BadRequestResponse("参数错误", nil).Status)
	assert.Equal(t, http.StatusNotFound, NotFoundResponse("资源不存在", nil).Status)
	assert.Equal(t, http.StatusInternalServerError, InternalErrorResponse("内部错误", nil).Status)
}

// TestAPIResponseRender 测试错误响应写入HTTP状态码
func TestAPIResponseRender(t *testing.T) {
	t.Run("错误响应写入状态码", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		w := httptest.NewRecorder()

		err := render.Render(w, req, NotFoundResponse("流水线不存在", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("成功响应保持200", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		w := httptest.NewRecorder()

		err := render.Render(w, req, SuccessResponse("操作成功", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}
