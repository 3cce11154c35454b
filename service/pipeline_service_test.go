/*
 * @module service/pipeline_service_test
 * @description 流水线管理服务的测试：定义CRUD校验、触发与取消保护、运行查询、统计与内置种子化
 * @architecture 测试层
 * @documentReference ai_docs/quality_pipeline_design.md
 * @stateFlow 内存数据库建模 -> 服务调用 -> 断言落库状态
 * @rules 内置流水线不允许修改删除，进行中的运行阻塞定义变更，种子化幂等
 * @dependencies testify, sqlite
 * @refs service/pipeline_service.go
 */

package service

import (
	"context"
	"testing"

	"dataquality-service/service/meta"
	"dataquality-service/service/models"
	"dataquality-service/service/pipeline_engine"
	"dataquality-service/service/warehouse"
	"dataquality-service/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPipelineService(t *testing.T) (*PipelineService, *testutil.TestDB, *testutil.TestDataFactory) {
	t.Helper()
	tdb := testutil.NewTestDB()
	t.Cleanup(tdb.Close)
	engine := pipeline_engine.NewPipelineEngine(tdb.DB, warehouse.NewStore(tdb.DB, "main"))
	service := NewPipelineService(tdb.DB, engine, nil, nil)
	return service, tdb, testutil.NewTestDataFactory(tdb.DB)
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func validCreateRequest() *CreatePipelineRequest {
	return &CreatePipelineRequest{
		Name:           "nightly_watch_history",
		Description:    "观影历史夜间质量流水线",
		DatasetName:    "watch_history",
		SourceTable:    "watch_history_raw",
		ProfileColumns: []string{"user_id", "watch_duration_minutes"},
		KeyColumns:     []string{"user_id", "movie_id", "watch_date", "device_type"},
		TieBreakOrder: []meta.TieBreakMeta{
			{Column: "progress_percentage", Descending: true},
		},
		OutlierColumns: []string{"watch_duration_minutes"},
		QuantileMethod: "exact",
		Schedule:       "0 2 * * *",
		Rules: []RuleConfigRequest{
			{
				Name:          "flag_binge",
				SourceDataset: "watch_history_robust",
				Conditions: []map[string]interface{}{
					{"field": "watch_duration_minutes_capped", "operator": "gt", "value": 480},
				},
			},
			{
				Name:          "flag_age_extreme",
				SourceDataset: "users",
				Logic:         "or",
				Conditions: []map[string]interface{}{
					{"field": "age", "operator": "lt", "value": 10},
					{"field": "age", "operator": "gt", "value": 100},
				},
			},
		},
		CreatedBy: "tester",
	}
}

func TestCreatePipeline(t *testing.T) {
	service, tdb, _ := newTestPipelineService(t)

	definition, err := service.CreatePipeline(context.Background(), validCreateRequest())

	require.NoError(t, err)
	require.NotEmpty(t, definition.ID)
	assert.True(t, definition.IsEnabled)
	assert.False(t, definition.IsBuiltIn)
	assert.Equal(t, "exact", definition.QuantileMethod)

	// 规则随定义一并落库，位置按声明顺序
	var rules []models.AnomalyRuleConfig
	require.NoError(t, tdb.DB.Where("pipeline_id = ?", definition.ID).
		Order("position ASC").Find(&rules).Error)
	require.Len(t, rules, 2)
	assert.Equal(t, "flag_binge", rules[0].Name)
	assert.Equal(t, 0, rules[0].Position)
	assert.Equal(t, "or", rules[0].Logic)
	assert.True(t, rules[0].IsEnabled)
	assert.Equal(t, "flag_age_extreme", rules[1].Name)
	assert.Equal(t, 1, rules[1].Position)
}

func TestCreatePipelineDisabledStatePersists(t *testing.T) {
	service, tdb, factory := newTestPipelineService(t)

	// 创建即停用的规则重新读出后必须仍是停用状态
	req := validCreateRequest()
	req.Rules[0].IsEnabled = boolPtr(false)
	definition, err := service.CreatePipeline(context.Background(), req)
	require.NoError(t, err)

	var rule models.AnomalyRuleConfig
	require.NoError(t, tdb.DB.Where("pipeline_id = ? AND name = ?", definition.ID, "flag_binge").
		First(&rule).Error)
	assert.False(t, rule.IsEnabled)

	// 定义级的停用状态同样不能在落库时被翻转
	disabled := factory.CreatePipelineDefinition(func(d *models.PipelineDefinition) {
		d.IsEnabled = false
	})
	var reloaded models.PipelineDefinition
	require.NoError(t, tdb.DB.First(&reloaded, "id = ?", disabled.ID).Error)
	assert.False(t, reloaded.IsEnabled)
}

func TestCreatePipelineDefaultsQuantileMethod(t *testing.T) {
	service, _, _ := newTestPipelineService(t)
	req := validCreateRequest()
	req.QuantileMethod = ""
	req.Rules = nil

	definition, err := service.CreatePipeline(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, "auto", definition.QuantileMethod)
}

func TestCreatePipelineDuplicateName(t *testing.T) {
	service, _, _ := newTestPipelineService(t)
	_, err := service.CreatePipeline(context.Background(), validCreateRequest())
	require.NoError(t, err)

	_, err = service.CreatePipeline(context.Background(), validCreateRequest())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "已存在")
}

func TestCreatePipelineValidation(t *testing.T) {
	service, _, _ := newTestPipelineService(t)

	tests := []struct {
		name    string
		mutate  func(*CreatePipelineRequest)
		wantErr string
	}{
		{
			name:    "缺少主键列",
			mutate:  func(r *CreatePipelineRequest) { r.KeyColumns = nil },
			wantErr: "去重主键列不能为空",
		},
		{
			name:    "无效分位数算法",
			mutate:  func(r *CreatePipelineRequest) { r.QuantileMethod = "histogram" },
			wantErr: "无效的分位数算法",
		},
		{
			name:    "无效调度表达式",
			mutate:  func(r *CreatePipelineRequest) { r.Schedule = "every 5m" },
			wantErr: "无效的调度表达式",
		},
		{
			name: "无效规则算子",
			mutate: func(r *CreatePipelineRequest) {
				r.Rules = []RuleConfigRequest{{
					Name:          "bad_rule",
					SourceDataset: "users",
					Conditions: []map[string]interface{}{
						{"field": "age", "operator": "between", "value": 10},
					},
				}}
			},
			wantErr: "无效的算子",
		},
		{
			name: "条件缺少阈值",
			mutate: func(r *CreatePipelineRequest) {
				r.Rules = []RuleConfigRequest{{
					Name:          "bad_rule",
					SourceDataset: "users",
					Conditions: []map[string]interface{}{
						{"field": "age", "operator": "lt"},
					},
				}}
			},
			wantErr: "缺少 value",
		},
		{
			name: "脚本规则缺少字段声明",
			mutate: func(r *CreatePipelineRequest) {
				r.Rules = []RuleConfigRequest{{
					Name:          "script_rule",
					SourceDataset: "users",
					Script:        `age < 10`,
				}}
			},
			wantErr: "需要声明涉及字段",
		},
		{
			name: "规则名称重复",
			mutate: func(r *CreatePipelineRequest) {
				rule := RuleConfigRequest{
					Name:          "dup_rule",
					SourceDataset: "users",
					Conditions: []map[string]interface{}{
						{"field": "age", "operator": "lt", "value": 10},
					},
				}
				r.Rules = []RuleConfigRequest{rule, rule}
			},
			wantErr: "重复",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validCreateRequest()
			tt.mutate(req)

			_, err := service.CreatePipeline(context.Background(), req)

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGetPipelineByIDOrdersRules(t *testing.T) {
	service, _, factory := newTestPipelineService(t)
	definition := factory.CreatePipelineDefinition()
	factory.CreateAnomalyRuleConfig(definition.ID, func(r *models.AnomalyRuleConfig) {
		r.Name = "second"
		r.Position = 1
	})
	factory.CreateAnomalyRuleConfig(definition.ID, func(r *models.AnomalyRuleConfig) {
		r.Name = "first"
		r.Position = 0
	})

	loaded, err := service.GetPipelineByID(context.Background(), definition.ID)

	require.NoError(t, err)
	require.Len(t, loaded.Rules, 2)
	assert.Equal(t, "first", loaded.Rules[0].Name)
	assert.Equal(t, "second", loaded.Rules[1].Name)
}

func TestGetPipelineByIDNotFound(t *testing.T) {
	service, _, _ := newTestPipelineService(t)

	_, err := service.GetPipelineByID(context.Background(), "missing")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "流水线不存在")
}

func TestGetPipelineListFilters(t *testing.T) {
	service, _, factory := newTestPipelineService(t)
	factory.CreatePipelineDefinition(func(d *models.PipelineDefinition) {
		d.Name = "watch_history_nightly"
	})
	factory.CreatePipelineDefinition(func(d *models.PipelineDefinition) {
		d.Name = "users_weekly"
		d.DatasetName = "users"
		d.IsEnabled = false
	})

	resp, err := service.GetPipelineList(context.Background(), &GetPipelineListRequest{
		Page: 1, Size: 10, IsEnabled: boolPtr(true),
	})
	require.NoError(t, err)
	require.Len(t, resp.Pipelines, 1)
	assert.Equal(t, "watch_history_nightly", resp.Pipelines[0].Name)
	assert.Equal(t, int64(1), resp.Pagination.Total)

	resp, err = service.GetPipelineList(context.Background(), &GetPipelineListRequest{
		Page: 1, Size: 10, Keyword: "weekly",
	})
	require.NoError(t, err)
	require.Len(t, resp.Pipelines, 1)
	assert.Equal(t, "users_weekly", resp.Pipelines[0].Name)
}

func TestGetPipelineListPagination(t *testing.T) {
	service, _, factory := newTestPipelineService(t)
	for i := 0; i < 3; i++ {
		factory.CreatePipelineDefinition()
	}

	resp, err := service.GetPipelineList(context.Background(), &GetPipelineListRequest{Page: 2, Size: 2})

	require.NoError(t, err)
	assert.Len(t, resp.Pipelines, 1)
	assert.Equal(t, int64(3), resp.Pagination.Total)
	assert.Equal(t, int64(2), resp.Pagination.TotalPages)
}

func TestUpdatePipeline(t *testing.T) {
	service, tdb, factory := newTestPipelineService(t)
	definition := factory.CreatePipelineDefinition()
	factory.CreateAnomalyRuleConfig(definition.ID)

	updated, err := service.UpdatePipeline(context.Background(), definition.ID, &UpdatePipelineRequest{
		Name:        strPtr("renamed_pipeline"),
		Description: strPtr("更新后的描述"),
		Rules: []RuleConfigRequest{
			{
				Name:          "only_rule",
				SourceDataset: "movies",
				Conditions: []map[string]interface{}{
					{"field": "duration_minutes", "operator": "lt", "value": 15},
				},
			},
		},
		UpdatedBy: "editor",
	})

	require.NoError(t, err)
	assert.Equal(t, "renamed_pipeline", updated.Name)
	assert.Equal(t, "更新后的描述", updated.Description)
	assert.Equal(t, "editor", updated.UpdatedBy)

	// 规则整体替换
	var ruleCount int64
	tdb.DB.Model(&models.AnomalyRuleConfig{}).Where("pipeline_id = ?", definition.ID).Count(&ruleCount)
	assert.Equal(t, int64(1), ruleCount)
	require.Len(t, updated.Rules, 1)
	assert.Equal(t, "only_rule", updated.Rules[0].Name)
}

func TestUpdatePipelineNameConflict(t *testing.T) {
	service, _, factory := newTestPipelineService(t)
	factory.CreatePipelineDefinition(func(d *models.PipelineDefinition) { d.Name = "taken" })
	definition := factory.CreatePipelineDefinition()

	_, err := service.UpdatePipeline(context.Background(), definition.ID, &UpdatePipelineRequest{
		Name: strPtr("taken"),
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "已存在")
}

func TestUpdatePipelineRejectsBuiltIn(t *testing.T) {
	service, _, factory := newTestPipelineService(t)
	definition := factory.CreatePipelineDefinition(func(d *models.PipelineDefinition) {
		d.IsBuiltIn = true
	})

	_, err := service.UpdatePipeline(context.Background(), definition.ID, &UpdatePipelineRequest{
		Description: strPtr("篡改"),
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "内置流水线")
}

func TestUpdatePipelineRejectsActiveRun(t *testing.T) {
	service, _, factory := newTestPipelineService(t)
	definition := factory.CreatePipelineDefinition()
	factory.CreatePipelineRun(definition.ID, func(r *models.PipelineRun) {
		r.Status = models.RunStatusRunning
		r.EndTime = nil
	})

	_, err := service.UpdatePipeline(context.Background(), definition.ID, &UpdatePipelineRequest{
		Description: strPtr("不应生效"),
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "进行中的运行")
}

func TestDeletePipeline(t *testing.T) {
	service, tdb, factory := newTestPipelineService(t)
	definition := factory.CreatePipelineDefinition()
	factory.CreateAnomalyRuleConfig(definition.ID)
	factory.CreatePipelineRun(definition.ID)

	require.NoError(t, service.DeletePipeline(context.Background(), definition.ID))

	var definitionCount, ruleCount, runCount int64
	tdb.DB.Model(&models.PipelineDefinition{}).Where("id = ?", definition.ID).Count(&definitionCount)
	tdb.DB.Model(&models.AnomalyRuleConfig{}).Where("pipeline_id = ?", definition.ID).Count(&ruleCount)
	tdb.DB.Model(&models.PipelineRun{}).Where("pipeline_id = ?", definition.ID).Count(&runCount)
	assert.Equal(t, int64(0), definitionCount)
	assert.Equal(t, int64(0), ruleCount)
	// 运行历史保留，由清理服务按保留期回收
	assert.Equal(t, int64(1), runCount)
}

func TestDeletePipelineRejectsBuiltIn(t *testing.T) {
	service, _, factory := newTestPipelineService(t)
	definition := factory.CreatePipelineDefinition(func(d *models.PipelineDefinition) {
		d.IsBuiltIn = true
	})

	err := service.DeletePipeline(context.Background(), definition.ID)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "不允许删除")
}

func TestEnableDisablePipeline(t *testing.T) {
	service, _, factory := newTestPipelineService(t)
	definition := factory.CreatePipelineDefinition()

	require.NoError(t, service.DisablePipeline(context.Background(), definition.ID, "ops"))
	loaded, err := service.GetPipelineByID(context.Background(), definition.ID)
	require.NoError(t, err)
	assert.False(t, loaded.IsEnabled)
	assert.Equal(t, "ops", loaded.UpdatedBy)

	require.NoError(t, service.EnablePipeline(context.Background(), definition.ID, "ops"))
	loaded, err = service.GetPipelineByID(context.Background(), definition.ID)
	require.NoError(t, err)
	assert.True(t, loaded.IsEnabled)
}

func TestTriggerRunRejectsDisabledPipeline(t *testing.T) {
	service, _, factory := newTestPipelineService(t)
	definition := factory.CreatePipelineDefinition(func(d *models.PipelineDefinition) {
		d.IsEnabled = false
	})

	_, err := service.TriggerRun(context.Background(), &models.TriggerRunRequest{
		PipelineID: definition.ID,
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "已停用")
}

func TestTriggerRunRejectsInvalidTriggerType(t *testing.T) {
	service, _, factory := newTestPipelineService(t)
	definition := factory.CreatePipelineDefinition()

	_, err := service.TriggerRun(context.Background(), &models.TriggerRunRequest{
		PipelineID:  definition.ID,
		TriggeredBy: "webhook",
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "无效的触发方式")
}

func TestTriggerRunMissingPipeline(t *testing.T) {
	service, _, _ := newTestPipelineService(t)

	_, err := service.TriggerRun(context.Background(), &models.TriggerRunRequest{
		PipelineID: "missing",
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "流水线不存在")
}

func TestExecuteRunRecordsFailureAndReleasesCancel(t *testing.T) {
	service, tdb, factory := newTestPipelineService(t)
	// 内存库里没有来源表，运行必然在画像阶段失败
	definition := factory.CreatePipelineDefinition()
	ctx, cancel := context.WithCancel(context.Background())
	service.registerCancel(definition.ID, cancel)

	service.executeRun(ctx, cancel, definition, models.TriggerManual, definition.ID)

	_, ok := service.lookupCancel(definition.ID)
	assert.False(t, ok)

	var run models.PipelineRun
	require.NoError(t, tdb.DB.Where("pipeline_id = ?", definition.ID).First(&run).Error)
	assert.Equal(t, models.RunStatusFailed, run.Status)
	assert.Equal(t, models.TriggerManual, run.TriggeredBy)
	assert.True(t, run.IsFinished())
}

func TestCancelRunRejectsFinishedRun(t *testing.T) {
	service, _, factory := newTestPipelineService(t)
	definition := factory.CreatePipelineDefinition()
	run := factory.CreatePipelineRun(definition.ID)

	err := service.CancelRun(context.Background(), run.ID)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "不允许取消")
}

func TestCancelRunMarksOrphanRunFailed(t *testing.T) {
	service, tdb, factory := newTestPipelineService(t)
	definition := factory.CreatePipelineDefinition()
	run := factory.CreatePipelineRun(definition.ID, func(r *models.PipelineRun) {
		r.Status = models.RunStatusRunning
		r.EndTime = nil
		r.Duration = 0
	})

	require.NoError(t, service.CancelRun(context.Background(), run.ID))

	var saved models.PipelineRun
	require.NoError(t, tdb.DB.First(&saved, "id = ?", run.ID).Error)
	assert.Equal(t, models.RunStatusFailed, saved.Status)
	assert.Equal(t, "运行已被手动取消", saved.ErrorMessage)
	require.NotNil(t, saved.EndTime)
}

func TestCancelRunUsesLocalHandle(t *testing.T) {
	service, tdb, factory := newTestPipelineService(t)
	definition := factory.CreatePipelineDefinition()
	run := factory.CreatePipelineRun(definition.ID, func(r *models.PipelineRun) {
		r.Status = models.RunStatusRunning
		r.EndTime = nil
	})

	cancelled := false
	service.registerCancel(definition.ID, func() { cancelled = true })
	t.Cleanup(func() { service.unregisterCancel(definition.ID) })

	require.NoError(t, service.CancelRun(context.Background(), run.ID))

	assert.True(t, cancelled)
	// 本实例持有运行时不直接改库，终态由引擎落库
	var saved models.PipelineRun
	require.NoError(t, tdb.DB.First(&saved, "id = ?", run.ID).Error)
	assert.Equal(t, models.RunStatusRunning, saved.Status)
}

func TestGetRunByIDOrdersStages(t *testing.T) {
	service, _, factory := newTestPipelineService(t)
	definition := factory.CreatePipelineDefinition()
	run := factory.CreatePipelineRun(definition.ID)
	factory.CreateStageRun(run.ID, func(s *models.StageRun) {
		s.StageType = models.StageTypeDedup
		s.Position = 2
	})
	factory.CreateStageRun(run.ID, func(s *models.StageRun) {
		s.StageType = models.StageTypeProfile
		s.Position = 1
	})

	loaded, err := service.GetRunByID(context.Background(), run.ID)

	require.NoError(t, err)
	require.Len(t, loaded.Stages, 2)
	assert.Equal(t, models.StageTypeProfile, loaded.Stages[0].StageType)
	assert.Equal(t, models.StageTypeDedup, loaded.Stages[1].StageType)
}

func TestGetRunListSummaries(t *testing.T) {
	service, _, factory := newTestPipelineService(t)
	definition := factory.CreatePipelineDefinition(func(d *models.PipelineDefinition) {
		d.Name = "summary_pipeline"
	})
	run := factory.CreatePipelineRun(definition.ID, func(r *models.PipelineRun) {
		r.Warnings = models.JSONBArray{
			models.JSONB{"type": "degenerate_distribution"},
		}
	})
	factory.CreateStageRun(run.ID)
	factory.CreateStageRun(run.ID, func(s *models.StageRun) {
		s.StageType = models.StageTypeDedup
		s.Position = 2
	})

	resp, err := service.GetRunList(context.Background(), &GetRunListRequest{Page: 1, Size: 10})

	require.NoError(t, err)
	require.Len(t, resp.Runs, 1)
	summary := resp.Runs[0]
	assert.Equal(t, run.ID, summary.RunID)
	assert.Equal(t, "summary_pipeline", summary.PipelineName)
	assert.Equal(t, models.RunStatusSucceeded, summary.Status)
	assert.Equal(t, 2, summary.StageCount)
	assert.Equal(t, 1, summary.WarningCount)
}

func TestGetRunListFiltersByStatus(t *testing.T) {
	service, _, factory := newTestPipelineService(t)
	definition := factory.CreatePipelineDefinition()
	factory.CreatePipelineRun(definition.ID)
	failed := factory.CreatePipelineRun(definition.ID, func(r *models.PipelineRun) {
		r.Status = models.RunStatusFailed
	})

	resp, err := service.GetRunList(context.Background(), &GetRunListRequest{
		Page: 1, Size: 10, Status: models.RunStatusFailed,
	})

	require.NoError(t, err)
	require.Len(t, resp.Runs, 1)
	assert.Equal(t, failed.ID, resp.Runs[0].RunID)
}

func TestGetPipelineStatistics(t *testing.T) {
	service, _, factory := newTestPipelineService(t)
	definition := factory.CreatePipelineDefinition()
	other := factory.CreatePipelineDefinition(func(d *models.PipelineDefinition) {
		d.IsEnabled = false
	})
	factory.CreatePipelineRun(definition.ID)
	factory.CreatePipelineRun(definition.ID)
	factory.CreatePipelineRun(definition.ID, func(r *models.PipelineRun) {
		r.Status = models.RunStatusFailed
	})
	factory.CreatePipelineRun(other.ID, func(r *models.PipelineRun) {
		r.Status = models.RunStatusRunning
		r.EndTime = nil
	})

	stats, err := service.GetPipelineStatistics(context.Background(), "")

	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalPipelines)
	assert.Equal(t, int64(1), stats.EnabledPipelines)
	assert.Equal(t, int64(4), stats.TotalRuns)
	assert.Equal(t, int64(2), stats.SucceededRuns)
	assert.Equal(t, int64(1), stats.FailedRuns)
	assert.Equal(t, int64(1), stats.RunningRuns)
	assert.InDelta(t, 50.0, stats.SuccessRate, 0.01)

	scoped, err := service.GetPipelineStatistics(context.Background(), definition.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), scoped.TotalRuns)
	assert.InDelta(t, 66.67, scoped.SuccessRate, 0.01)
}

func TestCreateRuleAppendsAtEnd(t *testing.T) {
	service, _, factory := newTestPipelineService(t)
	definition := factory.CreatePipelineDefinition()
	factory.CreateAnomalyRuleConfig(definition.ID, func(r *models.AnomalyRuleConfig) {
		r.Position = 3
	})

	rule, err := service.CreateRule(context.Background(), definition.ID, &RuleConfigRequest{
		Name:          "flag_duration_anomaly",
		SourceDataset: "movies",
		Conditions: []map[string]interface{}{
			{"field": "duration_minutes", "operator": "lt", "value": 15},
			{"field": "duration_minutes", "operator": "gt", "value": 480},
		},
	}, "editor")

	require.NoError(t, err)
	assert.Equal(t, 4, rule.Position)
	assert.Equal(t, "or", rule.Logic)
	assert.True(t, rule.IsEnabled)
	assert.Equal(t, "editor", rule.CreatedBy)
}

func TestCreateRuleRejectsBuiltInPipeline(t *testing.T) {
	service, _, factory := newTestPipelineService(t)
	definition := factory.CreatePipelineDefinition(func(d *models.PipelineDefinition) {
		d.IsBuiltIn = true
	})

	_, err := service.CreateRule(context.Background(), definition.ID, &RuleConfigRequest{
		Name:          "extra_rule",
		SourceDataset: "users",
		Conditions: []map[string]interface{}{
			{"field": "age", "operator": "lt", "value": 10},
		},
	}, "editor")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "不允许修改")
}

func TestCreateRuleMissingPipeline(t *testing.T) {
	service, _, _ := newTestPipelineService(t)

	_, err := service.CreateRule(context.Background(), "missing", &RuleConfigRequest{
		Name:          "orphan_rule",
		SourceDataset: "users",
		Conditions: []map[string]interface{}{
			{"field": "age", "operator": "lt", "value": 10},
		},
	}, "editor")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "流水线不存在")
}

func TestCreateRuleValidation(t *testing.T) {
	service, _, factory := newTestPipelineService(t)
	definition := factory.CreatePipelineDefinition()

	_, err := service.CreateRule(context.Background(), definition.ID, &RuleConfigRequest{
		Name:          "bad_rule",
		SourceDataset: "users",
		Conditions: []map[string]interface{}{
			{"field": "age", "operator": "between", "value": 10},
		},
	}, "editor")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "无效的算子")
}

func TestUpdateRulePreservesAudit(t *testing.T) {
	service, _, factory := newTestPipelineService(t)
	definition := factory.CreatePipelineDefinition()
	rule := factory.CreateAnomalyRuleConfig(definition.ID, func(r *models.AnomalyRuleConfig) {
		r.Position = 2
	})

	updated, err := service.UpdateRule(context.Background(), rule.ID, &RuleConfigRequest{
		Name:          "renamed_rule",
		SourceDataset: "movies",
		Logic:         "and",
		Conditions: []map[string]interface{}{
			{"field": "duration_minutes", "operator": "gte", "value": 600},
		},
	}, "editor")

	require.NoError(t, err)
	assert.Equal(t, "renamed_rule", updated.Name)
	assert.Equal(t, "and", updated.Logic)
	assert.Equal(t, 2, updated.Position)
	assert.Equal(t, definition.ID, updated.PipelineID)
	assert.Equal(t, "test", updated.CreatedBy)
	assert.Equal(t, "editor", updated.UpdatedBy)
}

func TestUpdateRuleRejectsBuiltIn(t *testing.T) {
	service, _, factory := newTestPipelineService(t)
	definition := factory.CreatePipelineDefinition()
	rule := factory.CreateAnomalyRuleConfig(definition.ID, func(r *models.AnomalyRuleConfig) {
		r.IsBuiltIn = true
	})

	_, err := service.UpdateRule(context.Background(), rule.ID, &RuleConfigRequest{
		Name:          "tampered",
		SourceDataset: "users",
		Conditions: []map[string]interface{}{
			{"field": "age", "operator": "lt", "value": 10},
		},
	}, "editor")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "不允许修改")
}

func TestDeleteRule(t *testing.T) {
	service, tdb, factory := newTestPipelineService(t)
	definition := factory.CreatePipelineDefinition()
	rule := factory.CreateAnomalyRuleConfig(definition.ID)

	require.NoError(t, service.DeleteRule(context.Background(), rule.ID))

	var count int64
	tdb.DB.Model(&models.AnomalyRuleConfig{}).Where("id = ?", rule.ID).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestDeleteRuleRejectsBuiltIn(t *testing.T) {
	service, _, factory := newTestPipelineService(t)
	definition := factory.CreatePipelineDefinition()
	rule := factory.CreateAnomalyRuleConfig(definition.ID, func(r *models.AnomalyRuleConfig) {
		r.IsBuiltIn = true
	})

	err := service.DeleteRule(context.Background(), rule.ID)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "不允许删除")
}

func TestGetRuleListFiltersByPipeline(t *testing.T) {
	service, _, factory := newTestPipelineService(t)
	first := factory.CreatePipelineDefinition()
	second := factory.CreatePipelineDefinition()
	factory.CreateAnomalyRuleConfig(first.ID, func(r *models.AnomalyRuleConfig) {
		r.Name = "late"
		r.Position = 1
	})
	factory.CreateAnomalyRuleConfig(first.ID, func(r *models.AnomalyRuleConfig) {
		r.Name = "early"
		r.Position = 0
	})
	factory.CreateAnomalyRuleConfig(second.ID)

	rules, err := service.GetRuleList(context.Background(), first.ID)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "early", rules[0].Name)
	assert.Equal(t, "late", rules[1].Name)

	all, err := service.GetRuleList(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestGetRuleByIDNotFound(t *testing.T) {
	service, _, _ := newTestPipelineService(t)

	_, err := service.GetRuleByID(context.Background(), "missing")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "规则不存在")
}

func TestInitializeBuiltIns(t *testing.T) {
	service, tdb, _ := newTestPipelineService(t)

	require.NoError(t, service.InitializeBuiltIns())

	var definition models.PipelineDefinition
	require.NoError(t, tdb.DB.Where("name = ?", meta.BuiltInPipelineName).First(&definition).Error)
	assert.True(t, definition.IsBuiltIn)
	assert.True(t, definition.IsEnabled)
	assert.Equal(t, "watch_history", definition.DatasetName)
	assert.Equal(t, "watch_history_raw", definition.SourceTable)
	assert.Equal(t, []string{"user_id", "movie_id", "watch_date", "device_type"},
		[]string(definition.KeyColumns))
	require.Len(t, definition.TieBreakOrder, 2)
	assert.Equal(t, "progress_percentage", definition.TieBreakOrder[0]["column"])
	assert.Equal(t, true, definition.TieBreakOrder[0]["descending"])

	var rules []models.AnomalyRuleConfig
	require.NoError(t, tdb.DB.Where("pipeline_id = ?", definition.ID).
		Order("position ASC").Find(&rules).Error)
	require.Len(t, rules, 3)
	assert.Equal(t, "flag_binge", rules[0].Name)
	assert.Equal(t, "watch_history_robust", rules[0].SourceDataset)
	assert.Equal(t, "flag_age_extreme", rules[1].Name)
	assert.Equal(t, "users", rules[1].SourceDataset)
	assert.Equal(t, "flag_duration_anomaly", rules[2].Name)
	assert.Equal(t, "movies", rules[2].SourceDataset)
	require.Len(t, rules[0].Conditions, 1)
	assert.EqualValues(t, 480, rules[0].Conditions[0]["value"])
}

func TestInitializeBuiltInsIdempotent(t *testing.T) {
	service, tdb, _ := newTestPipelineService(t)
	require.NoError(t, service.InitializeBuiltIns())

	// 运维调整的调度表达式和启停状态在重复种子化后保留
	require.NoError(t, tdb.DB.Model(&models.PipelineDefinition{}).
		Where("name = ?", meta.BuiltInPipelineName).
		Updates(map[string]interface{}{"schedule": "0 3 * * *", "description": "手改描述"}).Error)

	require.NoError(t, service.InitializeBuiltIns())

	var definitionCount, ruleCount int64
	tdb.DB.Model(&models.PipelineDefinition{}).Where("is_built_in = ?", true).Count(&definitionCount)
	tdb.DB.Model(&models.AnomalyRuleConfig{}).Where("is_built_in = ?", true).Count(&ruleCount)
	assert.Equal(t, int64(1), definitionCount)
	assert.Equal(t, int64(3), ruleCount)

	var definition models.PipelineDefinition
	require.NoError(t, tdb.DB.Where("name = ?", meta.BuiltInPipelineName).First(&definition).Error)
	assert.Equal(t, "0 3 * * *", definition.Schedule)
	// 内置字段回刷为模板内容
	assert.Equal(t, meta.BuiltInPipeline.Description, definition.Description)
}

func TestNormalizePage(t *testing.T) {
	page, size := normalizePage(0, 0)
	assert.Equal(t, 1, page)
	assert.Equal(t, 20, size)

	page, size = normalizePage(3, 500)
	assert.Equal(t, 3, page)
	assert.Equal(t, 100, size)
}
