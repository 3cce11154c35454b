/*
 * @module service/meta/access_token_meta
 * @description 访问令牌相关元数据定义，包括权限范围与令牌状态
 * @architecture 元数据层
 * @documentReference ai_docs/quality_pipeline_design.md
 * @stateFlow 静态元数据定义
 * @rules 权限范围用于接口鉴权，星号范围拥有全部权限
 * @dependencies 无
 * @refs service/models/access_token.go, service/access_token_service.go
 */

package meta

// TokenScopeMeta 令牌权限范围定义
type TokenScopeMeta struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// TokenScopes 令牌权限范围元数据
var TokenScopes = []TokenScopeMeta{
	{Code: "pipeline:read", Name: "流水线只读", Description: "查询流水线定义、运行与统计"},
	{Code: "pipeline:write", Name: "流水线管理", Description: "创建、修改、启停、删除流水线定义"},
	{Code: "pipeline:trigger", Name: "流水线触发", Description: "手动触发与取消流水线运行"},
	{Code: "report:read", Name: "报告只读", Description: "查询质量报告与记录明细"},
	{Code: "*", Name: "全部权限", Description: "不受范围限制的管理令牌"},
}

// TokenStatusMeta 令牌状态定义
type TokenStatusMeta struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Color       string `json:"color"`
}

// TokenStatuses 令牌状态元数据
var TokenStatuses = []TokenStatusMeta{
	{Code: "active", Name: "启用", Description: "令牌可正常使用", Color: "#52c41a"},
	{Code: "inactive", Name: "停用", Description: "令牌暂时停用，可重新启用", Color: "#8c8c8c"},
	{Code: "revoked", Name: "已吊销", Description: "令牌已吊销，不可恢复", Color: "#f5222d"},
}

// IsValidTokenScope 检查权限范围是否有效
func IsValidTokenScope(scope string) bool {
	for _, s := range TokenScopes {
		if s.Code == scope {
			return true
		}
	}
	return false
}

// IsValidTokenStatus 检查令牌状态是否有效
func IsValidTokenStatus(status string) bool {
	for _, s := range TokenStatuses {
		if s.Code == status {
			return true
		}
	}
	return false
}
