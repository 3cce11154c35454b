/*
 * @module service/access_token_service_test
 * @description 访问令牌服务的测试：签发与校验、状态门禁、使用统计、过期处理
 * @architecture 测试层
 * @documentReference ai_docs/quality_pipeline_design.md
 * @stateFlow 签发令牌 -> 明文校验 -> 状态流转断言
 * @rules 明文只在签发响应中出现，库内哈希不可逆
 * @dependencies testify, sqlite
 * @refs service/access_token_service.go
 */

package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"dataquality-service/service/models"
	"dataquality-service/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTokenService(t *testing.T) (*AccessTokenService, *testutil.TestDB, *testutil.TestDataFactory) {
	t.Helper()
	tdb := testutil.NewTestDB()
	t.Cleanup(tdb.Close)
	return NewAccessTokenService(tdb.DB), tdb, testutil.NewTestDataFactory(tdb.DB)
}

func TestCreateTokenAndVerify(t *testing.T) {
	service, tdb, _ := newTestTokenService(t)

	resp, err := service.CreateToken(context.Background(), &CreateTokenRequest{
		Name:      "ci_token",
		Scopes:    []string{"pipeline:read", "pipeline:trigger"},
		CreatedBy: "admin",
	})

	require.NoError(t, err)
	assert.Len(t, resp.PlainToken, 64)
	assert.Equal(t, resp.PlainToken[:8], resp.Token.TokenPrefix)
	assert.Equal(t, "active", resp.Token.Status)

	// 库内只有哈希，没有明文
	var saved models.AccessToken
	require.NoError(t, tdb.DB.First(&saved, "id = ?", resp.Token.ID).Error)
	assert.NotEqual(t, resp.PlainToken, saved.TokenHash)
	assert.NotContains(t, saved.TokenHash, resp.PlainToken)

	verified, err := service.VerifyToken(context.Background(), resp.PlainToken)
	require.NoError(t, err)
	assert.Equal(t, resp.Token.ID, verified.ID)
	assert.True(t, verified.HasScope("pipeline:trigger"))
	assert.False(t, verified.HasScope("report:read"))

	// 校验成功后使用统计更新
	require.NoError(t, tdb.DB.First(&saved, "id = ?", resp.Token.ID).Error)
	assert.Equal(t, int64(1), saved.UsageCount)
	require.NotNil(t, saved.LastUsedAt)
}

func TestCreateTokenValidation(t *testing.T) {
	service, _, _ := newTestTokenService(t)

	_, err := service.CreateToken(context.Background(), &CreateTokenRequest{
		Scopes: []string{"pipeline:read"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "名称不能为空")

	_, err = service.CreateToken(context.Background(), &CreateTokenRequest{Name: "t"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "至少需要一个权限范围")

	_, err = service.CreateToken(context.Background(), &CreateTokenRequest{
		Name:   "t",
		Scopes: []string{"pipeline:delete"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "无效的权限范围")
}

func TestCreateTokenWithExpiry(t *testing.T) {
	service, _, _ := newTestTokenService(t)

	resp, err := service.CreateToken(context.Background(), &CreateTokenRequest{
		Name:          "short_lived",
		Scopes:        []string{"report:read"},
		ExpiresInDays: 7,
	})

	require.NoError(t, err)
	require.NotNil(t, resp.Token.ExpiresAt)
	expected := time.Now().AddDate(0, 0, 7)
	assert.WithinDuration(t, expected, *resp.Token.ExpiresAt, time.Minute)
}

func TestVerifyTokenRejectsWrongSecret(t *testing.T) {
	service, _, _ := newTestTokenService(t)
	resp, err := service.CreateToken(context.Background(), &CreateTokenRequest{
		Name:   "t",
		Scopes: []string{"pipeline:read"},
	})
	require.NoError(t, err)

	// 前缀相同但其余部分不同
	forged := resp.PlainToken[:8] + strings.Repeat("0", 56)
	_, err = service.VerifyToken(context.Background(), forged)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "令牌验证失败")
}

func TestVerifyTokenRejectsShortInput(t *testing.T) {
	service, _, _ := newTestTokenService(t)

	_, err := service.VerifyToken(context.Background(), "abc")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "令牌格式无效")
}

func TestVerifyTokenRejectsRevoked(t *testing.T) {
	service, _, _ := newTestTokenService(t)
	resp, err := service.CreateToken(context.Background(), &CreateTokenRequest{
		Name:   "t",
		Scopes: []string{"pipeline:read"},
	})
	require.NoError(t, err)
	require.NoError(t, service.RevokeToken(context.Background(), resp.Token.ID))

	_, err = service.VerifyToken(context.Background(), resp.PlainToken)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "已失效或过期")
}

func TestVerifyTokenRejectsExpired(t *testing.T) {
	service, tdb, _ := newTestTokenService(t)
	resp, err := service.CreateToken(context.Background(), &CreateTokenRequest{
		Name:   "t",
		Scopes: []string{"pipeline:read"},
	})
	require.NoError(t, err)

	past := time.Now().Add(-time.Hour)
	require.NoError(t, tdb.DB.Model(&models.AccessToken{}).
		Where("id = ?", resp.Token.ID).
		Update("expires_at", past).Error)

	_, err = service.VerifyToken(context.Background(), resp.PlainToken)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "已失效或过期")
}

func TestUpdateToken(t *testing.T) {
	service, _, _ := newTestTokenService(t)
	resp, err := service.CreateToken(context.Background(), &CreateTokenRequest{
		Name:          "t",
		Scopes:        []string{"pipeline:read"},
		ExpiresInDays: 7,
	})
	require.NoError(t, err)

	updated, err := service.UpdateToken(context.Background(), resp.Token.ID, &UpdateTokenRequest{
		Name:          strPtr("renamed"),
		Scopes:        []string{"*"},
		Status:        strPtr("inactive"),
		ExpiresInDays: intPtr(0),
	})

	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Name)
	assert.Equal(t, []string{"*"}, []string(updated.Scopes))
	assert.Equal(t, "inactive", updated.Status)
	assert.Nil(t, updated.ExpiresAt)
}

func TestUpdateTokenRejectsRevoked(t *testing.T) {
	service, _, _ := newTestTokenService(t)
	resp, err := service.CreateToken(context.Background(), &CreateTokenRequest{
		Name:   "t",
		Scopes: []string{"pipeline:read"},
	})
	require.NoError(t, err)
	require.NoError(t, service.RevokeToken(context.Background(), resp.Token.ID))

	_, err = service.UpdateToken(context.Background(), resp.Token.ID, &UpdateTokenRequest{
		Name: strPtr("renamed"),
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "已吊销的令牌不允许修改")
}

func TestRevokeTokenIdempotent(t *testing.T) {
	service, _, _ := newTestTokenService(t)
	resp, err := service.CreateToken(context.Background(), &CreateTokenRequest{
		Name:   "t",
		Scopes: []string{"pipeline:read"},
	})
	require.NoError(t, err)

	require.NoError(t, service.RevokeToken(context.Background(), resp.Token.ID))
	require.NoError(t, service.RevokeToken(context.Background(), resp.Token.ID))

	token, err := service.GetTokenByID(context.Background(), resp.Token.ID)
	require.NoError(t, err)
	assert.Equal(t, "revoked", token.Status)
}

func TestDeleteTokenRequiresNonActive(t *testing.T) {
	service, _, _ := newTestTokenService(t)
	resp, err := service.CreateToken(context.Background(), &CreateTokenRequest{
		Name:   "t",
		Scopes: []string{"pipeline:read"},
	})
	require.NoError(t, err)

	err = service.DeleteToken(context.Background(), resp.Token.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "活跃令牌不允许删除")

	require.NoError(t, service.RevokeToken(context.Background(), resp.Token.ID))
	require.NoError(t, service.DeleteToken(context.Background(), resp.Token.ID))

	_, err = service.GetTokenByID(context.Background(), resp.Token.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "令牌不存在")
}

func TestGetTokenList(t *testing.T) {
	service, _, factory := newTestTokenService(t)
	factory.CreateAccessToken(func(token *models.AccessToken) {
		token.Name = "生产环境令牌"
	})
	factory.CreateAccessToken(func(token *models.AccessToken) {
		token.Name = "测试环境令牌"
		token.Status = "revoked"
	})

	resp, err := service.GetTokenList(context.Background(), &GetTokenListRequest{
		Page: 1, Size: 10, Status: "active",
	})
	require.NoError(t, err)
	require.Len(t, resp.Tokens, 1)
	assert.Equal(t, "生产环境令牌", resp.Tokens[0].Name)

	resp, err = service.GetTokenList(context.Background(), &GetTokenListRequest{
		Page: 1, Size: 10, Keyword: "测试",
	})
	require.NoError(t, err)
	require.Len(t, resp.Tokens, 1)
	assert.Equal(t, "测试环境令牌", resp.Tokens[0].Name)
}

func TestMarkExpiredTokens(t *testing.T) {
	service, tdb, factory := newTestTokenService(t)
	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)
	expired := factory.CreateAccessToken(func(token *models.AccessToken) {
		token.ExpiresAt = &past
	})
	living := factory.CreateAccessToken(func(token *models.AccessToken) {
		token.ExpiresAt = &future
	})
	factory.CreateAccessToken(func(token *models.AccessToken) {
		token.Status = "revoked"
		token.ExpiresAt = &past
	})

	count, err := service.MarkExpiredTokens(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	var saved models.AccessToken
	require.NoError(t, tdb.DB.First(&saved, "id = ?", expired.ID).Error)
	assert.Equal(t, "inactive", saved.Status)
	// First 的目标结构体带上次查询的主键时会被 GORM 当作附加条件，换新变量查询
	var savedLiving models.AccessToken
	require.NoError(t, tdb.DB.First(&savedLiving, "id = ?", living.ID).Error)
	assert.Equal(t, "active", savedLiving.Status)
}

func intPtr(v int) *int { return &v }
