/*
 * @module api/controllers/token_controller
 * @description 访问令牌控制器，提供令牌签发、查询、更新、吊销与删除API
 * @architecture 分层架构 - 控制器层
 * @documentReference ai_docs/quality_pipeline_design.md
 * @stateFlow HTTP请求 -> 参数验证 -> 服务调用 -> 响应返回
 * @rules 令牌明文只在签发响应中出现一次，活跃令牌需先吊销才能删除
 * @dependencies service/access_token_service, service/meta
 * @refs api/middleware/token_auth.go
 */

package controllers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"dataquality-service/service"
	"dataquality-service/service/meta"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

// TokenController 访问令牌控制器
type TokenController struct {
	tokenService *service.AccessTokenService
}

// NewTokenController 创建令牌控制器实例
func NewTokenController() *TokenController {
	return &TokenController{
		tokenService: service.GlobalAccessTokenService,
	}
}

// CreateToken 签发访问令牌
// @Summary 签发访问令牌
// @Description 签发新的访问令牌，明文只在本次响应返回，库内仅存哈希
// @Tags 访问令牌
// @Accept json
// @Produce json
// @Param token body service.CreateTokenRequest true "令牌签发信息"
// @Success 200 {object} APIResponse{data=service.CreateTokenResponse} "签发成功"
// @Failure 400 {object} APIResponse "请求参数错误"
// @Failure 500 {object} APIResponse "服务器内部错误"
// @Router /tokens [post]
func (c *TokenController) CreateToken(w http.ResponseWriter, r *http.Request) {
	var req service.CreateTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		render.JSON(w, r, BadRequestResponse("请求参数解析失败", err))
		return
	}

	response, err := c.tokenService.CreateToken(r.Context(), &req)
	if err != nil {
		render.JSON(w, r, BadRequestResponse("签发令牌失败", err))
		return
	}

	render.JSON(w, r, SuccessResponse("签发令牌成功", response))
}

// GetTokenList 获取令牌列表
// @Summary 获取令牌列表
// @Description 分页获取访问令牌列表，支持按状态与名称关键字过滤
// @Tags 访问令牌
// @Accept json
// @Produce json
// @Param page query int false "页码" default(1)
// @Param size query int false "每页大小" default(10)
// @Param status query string false "令牌状态" Enums(active,inactive,revoked)
// @Param keyword query string false "名称关键字"
// @Success 200 {object} APIResponse{data=service.TokenListResponse} "获取成功"
// @Failure 400 {object} APIResponse "请求参数错误"
// @Failure 500 {object} APIResponse "服务器内部错误"
// @Router /tokens [get]
func (c *TokenController) GetTokenList(w http.ResponseWriter, r *http.Request) {
	req := &service.GetTokenListRequest{
		Page:    1,
		Size:    10,
		Status:  r.URL.Query().Get("status"),
		Keyword: r.URL.Query().Get("keyword"),
	}

	if req.Status != "" && !meta.IsValidTokenStatus(req.Status) {
		render.JSON(w, r, BadRequestResponse("无效的令牌状态", nil))
		return
	}

	if page, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && page > 0 {
		req.Page = page
	}
	if size, err := strconv.Atoi(r.URL.Query().Get("size")); err == nil && size > 0 && size <= 100 {
		req.Size = size
	}

	response, err := c.tokenService.GetTokenList(r.Context(), req)
	if err != nil {
		render.JSON(w, r, InternalErrorResponse("获取令牌列表失败", err))
		return
	}

	render.JSON(w, r, SuccessResponse("获取令牌列表成功", response))
}

// GetToken 获取令牌详情
// @Summary 获取令牌详情
// @Description 根据ID获取访问令牌信息，不含令牌明文
// @Tags 访问令牌
// @Accept json
// @Produce json
// @Param id path string true "令牌ID"
// @Success 200 {object} APIResponse{data=models.AccessToken} "获取成功"
// @Failure 400 {object} APIResponse "请求参数错误"
// @Failure 404 {object} APIResponse "令牌不存在"
// @Router /tokens/{id} [get]
func (c *TokenController) GetToken(w http.ResponseWriter, r *http.Request) {
	tokenID := chi.URLParam(r, "id")
	if tokenID == "" {
		render.JSON(w, r, BadRequestResponse("令牌ID不能为空", nil))
		return
	}

	token, err := c.tokenService.GetTokenByID(r.Context(), tokenID)
	if err != nil {
		render.JSON(w, r, NotFoundResponse("获取令牌失败", err))
		return
	}

	render.JSON(w, r, SuccessResponse("获取令牌成功", token))
}

// UpdateToken 更新令牌
// @Summary 更新令牌
// @Description 更新令牌名称、描述、权限范围或有效期，nil字段保持原值
// @Tags 访问令牌
// @Accept json
// @Produce json
// @Param id path string true "令牌ID"
// @Param token body service.UpdateTokenRequest true "令牌更新信息"
// @Success 200 {object} APIResponse{data=models.AccessToken} "更新成功"
// @Failure 400 {object} APIResponse "请求参数错误"
// @Failure 500 {object} APIResponse "服务器内部错误"
// @Router /tokens/{id} [put]
func (c *TokenController) UpdateToken(w http.ResponseWriter, r *http.Request) {
	tokenID := chi.URLParam(r, "id")
	if tokenID == "" {
		render.JSON(w, r, BadRequestResponse("令牌ID不能为空", nil))
		return
	}

	var req service.UpdateTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		render.JSON(w, r, BadRequestResponse("请求参数解析失败", err))
		return
	}

	token, err := c.tokenService.UpdateToken(r.Context(), tokenID, &req)
	if err != nil {
		render.JSON(w, r, InternalErrorResponse("更新令牌失败", err))
		return
	}

	render.JSON(w, r, SuccessResponse("更新令牌成功", token))
}

// RevokeToken 吊销令牌
// @Summary 吊销令牌
// @Description 吊销指定令牌，吊销后的令牌立即不可用于接口鉴权
// @Tags 访问令牌
// @Accept json
// @Produce json
// @Param id path string true "令牌ID"
// @Success 200 {object} APIResponse "吊销成功"
// @Failure 400 {object} APIResponse "请求参数错误"
// @Failure 500 {object} APIResponse "服务器内部错误"
// @Router /tokens/{id}/revoke [post]
func (c *TokenController) RevokeToken(w http.ResponseWriter, r *http.Request) {
	tokenID := chi.URLParam(r, "id")
	if tokenID == "" {
		render.JSON(w, r, BadRequestResponse("令牌ID不能为空", nil))
		return
	}

	if err := c.tokenService.RevokeToken(r.Context(), tokenID); err != nil {
		render.JSON(w, r, InternalErrorResponse("吊销令牌失败", err))
		return
	}

	render.JSON(w, r, SuccessResponse("吊销令牌成功", nil))
}

// DeleteToken 删除令牌
// @Summary 删除令牌
// @Description 删除指定令牌，活跃令牌需先吊销
// @Tags 访问令牌
// @Accept json
// @Produce json
// @Param id path string true "令牌ID"
// @Success 200 {object} APIResponse "删除成功"
// @Failure 400 {object} APIResponse "请求参数错误"
// @Failure 500 {object} APIResponse "服务器内部错误"
// @Router /tokens/{id} [delete]
func (c *TokenController) DeleteToken(w http.ResponseWriter, r *http.Request) {
	tokenID := chi.URLParam(r, "id")
	if tokenID == "" {
		render.JSON(w, r, BadRequestResponse("令牌ID不能为空", nil))
		return
	}

	if err := c.tokenService.DeleteToken(r.Context(), tokenID); err != nil {
		render.JSON(w, r, InternalErrorResponse("删除令牌失败", err))
		return
	}

	render.JSON(w, r, SuccessResponse("删除令牌成功", nil))
}
