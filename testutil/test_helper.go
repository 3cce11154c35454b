/*
 * @module testutil/test_helper
 * @description 测试工具和辅助函数
 * @architecture 测试基础设施 - 提供测试通用工具和数据工厂
 * @documentReference .specify/memory/test_plan.md
 * @stateFlow 测试环境初始化 -> 测试数据创建 -> 测试执行 -> 清理资源
 * @rules 提供可重用的测试工具，确保测试环境的一致性
 * @dependencies gorm, sqlite, testify, time
 * @refs service/models
 */

package testutil

import (
	"bytes"
	"dataquality-service/service/models"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestDB 测试数据库配置
type TestDB struct {
	DB *gorm.DB
}

// testDBSequence 给每个测试数据库生成唯一名字
var testDBSequence int64

// NewTestDB 创建测试数据库
func NewTestDB() *TestDB {
	// :memory: 为连接池里每个连接各建一个独立的内存库，会导致跨连接看不到数据；
	// 这里用带唯一名字的共享缓存内存库，同一测试库的所有连接共享数据，测试之间仍相互隔离
	dsn := fmt.Sprintf("file:testdb_%d?mode=memory&cache=shared", atomic.AddInt64(&testDBSequence, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		panic(fmt.Sprintf("failed to connect test database: %v", err))
	}

	// 自动迁移所有模型
	err = db.AutoMigrate(
		&models.PipelineDefinition{},
		&models.PipelineRun{},
		&models.StageRun{},
		&models.AnomalyRuleConfig{},
		&models.ColumnProfileRecord{},
		&models.DedupStatRecord{},
		&models.QuantileBoundsRecord{},
		&models.AnomalyFlagRecord{},
		&models.CappingVerifyRecord{},
		&models.AccessToken{},
		&models.RunEvent{},
		&models.SystemConfig{},
	)
	if err != nil {
		panic(fmt.Sprintf("failed to migrate test database: %v", err))
	}

	return &TestDB{DB: db}
}

// CleanDB 清理数据库
func (tdb *TestDB) CleanDB() {
	// 清空所有表的数据
	tables := []string{
		"pipeline_definitions",
		"pipeline_runs",
		"pipeline_stage_runs",
		"anomaly_rule_configs",
		"column_profile_records",
		"dedup_stat_records",
		"quantile_bounds_records",
		"anomaly_flag_records",
		"capping_verify_records",
		"access_tokens",
		"run_events",
	}

	for _, table := range tables {
		tdb.DB.Exec(fmt.Sprintf("DELETE FROM %s", table))
	}
}

// Close 关闭数据库连接
func (tdb *TestDB) Close() {
	if db, err := tdb.DB.DB(); err == nil {
		db.Close()
	}
}

// TestDataFactory 测试数据工厂
type TestDataFactory struct {
	DB *gorm.DB
}

// NewTestDataFactory 创建测试数据工厂
func NewTestDataFactory(db *gorm.DB) *TestDataFactory {
	return &TestDataFactory{DB: db}
}

// PipelineDefinitionOption 流水线定义选项函数类型
type PipelineDefinitionOption func(*models.PipelineDefinition)

// CreatePipelineDefinition 创建测试流水线定义
func (f *TestDataFactory) CreatePipelineDefinition(opts ...PipelineDefinitionOption) *models.PipelineDefinition {
	definition := &models.PipelineDefinition{
		ID:             generateID("pd"),
		Name:           "test_pipeline_" + generateSuffix(),
		Description:    "这是一个测试流水线",
		DatasetName:    "watch_history",
		SourceTable:    "watch_history_raw",
		ProfileColumns: pq.StringArray{"user_id", "movie_id", "watched_at", "watch_duration_minutes", "rating"},
		KeyColumns:     pq.StringArray{"user_id", "movie_id", "watched_at"},
		TieBreakOrder: models.JSONBArray{
			models.JSONB{"column": "updated_at", "descending": true},
		},
		OutlierColumns: pq.StringArray{"watch_duration_minutes"},
		QuantileMethod: "auto",
		Schedule:       "0 2 * * *",
		IsEnabled:      true,
		CreatedBy:      "test",
		UpdatedBy:      "test",
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}

	// 应用选项
	for _, opt := range opts {
		opt(definition)
	}

	err := f.DB.Create(definition).Error
	if err != nil {
		panic(fmt.Sprintf("failed to create test pipeline definition: %v", err))
	}

	return definition
}

// AnomalyRuleConfigOption 异常规则配置选项函数类型
type AnomalyRuleConfigOption func(*models.AnomalyRuleConfig)

// CreateAnomalyRuleConfig 创建测试异常规则配置
func (f *TestDataFactory) CreateAnomalyRuleConfig(pipelineID string, opts ...AnomalyRuleConfigOption) *models.AnomalyRuleConfig {
	rule := &models.AnomalyRuleConfig{
		ID:            generateID("arc"),
		PipelineID:    pipelineID,
		Name:          "test_rule_" + generateSuffix(),
		SourceDataset: "users",
		Logic:         "or",
		Conditions: models.JSONBArray{
			models.JSONB{"field": "age", "operator": "lt", "value": 10},
			models.JSONB{"field": "age", "operator": "gt", "value": 100},
		},
		Position:    0,
		Description: "这是一个测试异常规则",
		IsEnabled:   true,
		CreatedBy:   "test",
		UpdatedBy:   "test",
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	// 应用选项
	for _, opt := range opts {
		opt(rule)
	}

	err := f.DB.Create(rule).Error
	if err != nil {
		panic(fmt.Sprintf("failed to create test anomaly rule config: %v", err))
	}

	return rule
}

// PipelineRunOption 流水线运行选项函数类型
type PipelineRunOption func(*models.PipelineRun)

// CreatePipelineRun 创建测试流水线运行
func (f *TestDataFactory) CreatePipelineRun(pipelineID string, opts ...PipelineRunOption) *models.PipelineRun {
	now := time.Now()
	endTime := now.Add(3 * time.Second)
	run := &models.PipelineRun{
		ID:          generateID("pr"),
		PipelineID:  pipelineID,
		Status:      models.RunStatusSucceeded,
		TriggeredBy: models.TriggerManual,
		StartTime:   now,
		EndTime:     &endTime,
		Duration:    3000,
		Statistics:  models.JSONB{},
		Warnings:    models.JSONBArray{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	// 应用选项
	for _, opt := range opts {
		opt(run)
	}

	err := f.DB.Create(run).Error
	if err != nil {
		panic(fmt.Sprintf("failed to create test pipeline run: %v", err))
	}

	return run
}

// StageRunOption 阶段运行选项函数类型
type StageRunOption func(*models.StageRun)

// CreateStageRun 创建测试阶段运行
func (f *TestDataFactory) CreateStageRun(runID string, opts ...StageRunOption) *models.StageRun {
	now := time.Now()
	endTime := now.Add(time.Second)
	stage := &models.StageRun{
		ID:         generateID("sr"),
		RunID:      runID,
		StageType:  models.StageTypeProfile,
		Position:   1,
		Status:     models.RunStatusSucceeded,
		StartTime:  now,
		EndTime:    &endTime,
		Duration:   1000,
		InputRows:  100,
		OutputRows: 100,
		Metrics:    models.JSONB{},
		CreatedAt:  now,
	}

	// 应用选项
	for _, opt := range opts {
		opt(stage)
	}

	err := f.DB.Create(stage).Error
	if err != nil {
		panic(fmt.Sprintf("failed to create test stage run: %v", err))
	}

	return stage
}

// AccessTokenOption 访问令牌选项函数类型
type AccessTokenOption func(*models.AccessToken)

// CreateAccessToken 创建测试访问令牌
func (f *TestDataFactory) CreateAccessToken(opts ...AccessTokenOption) *models.AccessToken {
	token := &models.AccessToken{
		ID:          generateID("at"),
		Name:        "测试访问令牌",
		TokenPrefix: "testpref",
		TokenHash:   "test_token_hash_" + generateSuffix(),
		Scopes:      pq.StringArray{"pipeline:read", "report:read"},
		Description: "这是一个测试访问令牌",
		Status:      "active",
		CreatedBy:   "test",
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	// 应用选项
	for _, opt := range opts {
		opt(token)
	}

	err := f.DB.Create(token).Error
	if err != nil {
		panic(fmt.Sprintf("failed to create test access token: %v", err))
	}

	return token
}

// ColumnProfileRecordOption 画像记录选项函数类型
type ColumnProfileRecordOption func(*models.ColumnProfileRecord)

// CreateColumnProfileRecord 创建测试画像记录
func (f *TestDataFactory) CreateColumnProfileRecord(runID string, opts ...ColumnProfileRecordOption) *models.ColumnProfileRecord {
	record := &models.ColumnProfileRecord{
		ID:                generateID("cpr"),
		RunID:             runID,
		DatasetName:       "watch_history",
		ColumnName:        "rating",
		TotalRows:         100,
		MissingCount:      5,
		MissingPercentage: 5.0,
		CreatedAt:         time.Now(),
	}

	// 应用选项
	for _, opt := range opts {
		opt(record)
	}

	err := f.DB.Create(record).Error
	if err != nil {
		panic(fmt.Sprintf("failed to create test column profile record: %v", err))
	}

	return record
}

// DedupStatRecordOption 去重统计记录选项函数类型
type DedupStatRecordOption func(*models.DedupStatRecord)

// CreateDedupStatRecord 创建测试去重统计记录
func (f *TestDataFactory) CreateDedupStatRecord(runID string, opts ...DedupStatRecordOption) *models.DedupStatRecord {
	record := &models.DedupStatRecord{
		ID:           generateID("dsr"),
		RunID:        runID,
		DatasetName:  "watch_history",
		RawCount:     100,
		DedupCount:   90,
		RemovedCount: 10,
		CreatedAt:    time.Now(),
	}

	// 应用选项
	for _, opt := range opts {
		opt(record)
	}

	err := f.DB.Create(record).Error
	if err != nil {
		panic(fmt.Sprintf("failed to create test dedup stat record: %v", err))
	}

	return record
}

// QuantileBoundsRecordOption 分位界记录选项函数类型
type QuantileBoundsRecordOption func(*models.QuantileBoundsRecord)

// CreateQuantileBoundsRecord 创建测试分位界记录
func (f *TestDataFactory) CreateQuantileBoundsRecord(runID string, opts ...QuantileBoundsRecordOption) *models.QuantileBoundsRecord {
	record := &models.QuantileBoundsRecord{
		ID:                generateID("qbr"),
		RunID:             runID,
		DatasetName:       "watch_history_dedup",
		ColumnName:        "watch_duration_minutes",
		Q1:                30,
		Q3:                120,
		LowerBound:        -105,
		UpperBound:        255,
		Method:            "exact",
		OutlierCount:      3,
		OutlierPercentage: 3.33,
		CappedColumn:      "watch_duration_minutes_capped",
		CreatedAt:         time.Now(),
	}

	// 应用选项
	for _, opt := range opts {
		opt(record)
	}

	err := f.DB.Create(record).Error
	if err != nil {
		panic(fmt.Sprintf("failed to create test quantile bounds record: %v", err))
	}

	return record
}

// AnomalyFlagRecordOption 异常标记记录选项函数类型
type AnomalyFlagRecordOption func(*models.AnomalyFlagRecord)

// CreateAnomalyFlagRecord 创建测试异常标记记录
func (f *TestDataFactory) CreateAnomalyFlagRecord(runID string, opts ...AnomalyFlagRecordOption) *models.AnomalyFlagRecord {
	record := &models.AnomalyFlagRecord{
		ID:                generateID("afr"),
		RunID:             runID,
		RuleName:          "flag_binge",
		SourceDataset:     "watch_history_robust",
		TotalRows:         90,
		MatchedCount:      9,
		MatchedPercentage: 10.0,
		SkippedNulls:      2,
		Position:          0,
		CreatedAt:         time.Now(),
	}

	// 应用选项
	for _, opt := range opts {
		opt(record)
	}

	err := f.DB.Create(record).Error
	if err != nil {
		panic(fmt.Sprintf("failed to create test anomaly flag record: %v", err))
	}

	return record
}

// CappingVerifyRecordOption 封顶校验记录选项函数类型
type CappingVerifyRecordOption func(*models.CappingVerifyRecord)

// CreateCappingVerifyRecord 创建测试封顶校验记录
func (f *TestDataFactory) CreateCappingVerifyRecord(runID string, opts ...CappingVerifyRecordOption) *models.CappingVerifyRecord {
	record := &models.CappingVerifyRecord{
		ID:           generateID("cvr"),
		RunID:        runID,
		DatasetName:  "watch_history_robust",
		ColumnName:   "watch_duration_minutes",
		BeforeMin:    1,
		BeforeMedian: 60,
		BeforeMax:    900,
		AfterMin:     1,
		AfterMedian:  60,
		AfterMax:     255,
		Passed:       true,
		Issues:       models.JSONBStringArray{},
		CreatedAt:    time.Now(),
	}

	// 应用选项
	for _, opt := range opts {
		opt(record)
	}

	err := f.DB.Create(record).Error
	if err != nil {
		panic(fmt.Sprintf("failed to create test capping verify record: %v", err))
	}

	return record
}

// 辅助函数
func generateID(prefix string) string {
	return fmt.Sprintf("%s_%d_%s", prefix, time.Now().UnixNano(), generateSuffix())
}

func generateSuffix() string {
	return fmt.Sprintf("%d", time.Now().UnixNano()%100000)
}

// MockRunEventProcessor Mock运行事件处理器
type MockRunEventProcessor struct {
	mock.Mock
}

func (m *MockRunEventProcessor) ProcessRunEvent(event *models.RunEvent) error {
	args := m.Called(event)
	return args.Error(0)
}

func (m *MockRunEventProcessor) EventTypes() []string {
	args := m.Called()
	return args.Get(0).([]string)
}

// HTTPTestHelper HTTP测试辅助工具
type HTTPTestHelper struct{}

// NewHTTPTestHelper 创建HTTP测试辅助工具
func NewHTTPTestHelper() *HTTPTestHelper {
	return &HTTPTestHelper{}
}

// CreateJSONRequest 创建JSON请求
func (h *HTTPTestHelper) CreateJSONRequest(method, url string, body interface{}) (*http.Request, error) {
	var reqBody io.Reader

	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return nil, err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return req, nil
}

// AssertJSONResponse 断言JSON响应
func (h *HTTPTestHelper) AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedBody interface{}) {
	assert.Equal(t, expectedStatus, w.Code)

	if expectedBody != nil {
		var actualBody interface{}
		err := json.Unmarshal(w.Body.Bytes(), &actualBody)
		assert.NoError(t, err)

		expectedJSON, _ := json.Marshal(expectedBody)
		actualJSON, _ := json.Marshal(actualBody)

		assert.JSONEq(t, string(expectedJSON), string(actualJSON))
	}
}
