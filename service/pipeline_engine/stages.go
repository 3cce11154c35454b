/*
 * @module service/pipeline_engine/stages
 * @description 流水线四个阶段的执行体：缺失度画像、去重、离群值封顶、业务异常标记
 * @architecture 分层架构 - 业务引擎层
 * @documentReference ai_docs/quality_pipeline_design.md
 * @stateFlow 画像读源表 -> 去重产出 _dedup 表 -> 封顶产出 _robust 表 -> 标记读多数据集
 * @rules 每个阶段的输出表与报告记录在同一事务内写入；
 *        封顶校验不通过视为阶段失败，退化分布仅记告警
 * @dependencies dataquality-service/service/data_quality, dataquality-service/service/warehouse
 * @refs service/pipeline_engine/engine.go
 */

package pipeline_engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"dataquality-service/service/data_quality"
	"dataquality-service/service/models"

	"gorm.io/gorm"
)

// 派生数据集的命名后缀，去重输出加 _dedup，封顶输出换成 _robust
const (
	dedupSuffix  = "_dedup"
	robustSuffix = "_robust"
)

// resolveTable 把数据集名解析为仓库表名
// 主数据集读定义里配置的来源表，辅助数据集与派生数据集的表名即数据集名
func resolveTable(definition *models.PipelineDefinition, datasetName string) string {
	if datasetName == definition.DatasetName {
		return definition.SourceTable
	}
	return datasetName
}

// isDerivedDataset 判断数据集名是否为流水线派生产物
func isDerivedDataset(name string) bool {
	return strings.HasSuffix(name, dedupSuffix) || strings.HasSuffix(name, robustSuffix)
}

// DerivedTableSuffixes 返回引擎产出的派生表后缀
func DerivedTableSuffixes() []string {
	return []string{dedupSuffix, robustSuffix}
}

// DerivedTableNames 返回数据集对应的全部派生表名
func DerivedTableNames(datasetName string) []string {
	return []string{datasetName + dedupSuffix, datasetName + robustSuffix}
}

// profileTarget 画像阶段的一个目标数据集
type profileTarget struct {
	datasetName string
	columns     []string
}

// profileTargets 列出画像阶段的目标
// 主数据集按定义的列清单画像（清单为空时画像全部列），
// 规则引用的辅助数据集画像规则涉及的字段；派生数据集此时尚未生成，跳过
func profileTargets(definition *models.PipelineDefinition) []profileTarget {
	targets := []profileTarget{{
		datasetName: definition.DatasetName,
		columns:     []string(definition.ProfileColumns),
	}}

	seen := map[string][]string{}
	order := make([]string, 0)
	for _, rule := range definition.Rules {
		if !rule.IsEnabled || rule.SourceDataset == definition.DatasetName || isDerivedDataset(rule.SourceDataset) {
			continue
		}
		if _, exists := seen[rule.SourceDataset]; !exists {
			order = append(order, rule.SourceDataset)
		}
		seen[rule.SourceDataset] = appendUniqueColumns(seen[rule.SourceDataset], ruleFields(rule))
	}
	for _, datasetName := range order {
		targets = append(targets, profileTarget{datasetName: datasetName, columns: seen[datasetName]})
	}
	return targets
}

// ruleFields 提取规则谓词涉及的字段
func ruleFields(rule models.AnomalyRuleConfig) []string {
	if rule.Script != "" {
		return []string(rule.Fields)
	}
	fields := make([]string, 0, len(rule.Conditions))
	for _, condition := range rule.Conditions {
		if field, ok := condition["field"].(string); ok && field != "" {
			fields = append(fields, field)
		}
	}
	return fields
}

// appendUniqueColumns 追加去重后的列名
func appendUniqueColumns(existing []string, columns []string) []string {
	for _, column := range columns {
		found := false
		for _, have := range existing {
			if have == column {
				found = true
				break
			}
		}
		if !found {
			existing = append(existing, column)
		}
	}
	return existing
}

// runProfileStage 缺失度画像阶段
// 只读阶段，不产出数据表，每个目标数据集每列落一条画像记录
func (e *PipelineEngine) runProfileStage(definition *models.PipelineDefinition, result *RunResult) stageFunc {
	return func(ctx context.Context, tx *gorm.DB, stage *models.StageRun) error {
		targets := profileTargets(definition)
		columnsProfiled := 0

		for i, target := range targets {
			table := resolveTable(definition, target.datasetName)
			dataset, err := e.store.LoadDataset(ctx, target.datasetName, table, target.columns)
			if err != nil {
				return fmt.Errorf("加载数据集 %s 失败: %w", target.datasetName, err)
			}
			if i == 0 {
				stage.InputRows = dataset.RowCount()
				stage.OutputRows = dataset.RowCount()
			}

			columns := target.columns
			if len(columns) == 0 {
				columns = dataset.Columns
			}
			profiled, err := e.profiler.Profile(dataset, columns)
			if err != nil {
				return fmt.Errorf("画像数据集 %s 失败: %w", target.datasetName, err)
			}

			for _, column := range profiled.Columns {
				profile := profiled.Profiles[column]
				record := models.ColumnProfileRecord{
					RunID:             stage.RunID,
					DatasetName:       target.datasetName,
					ColumnName:        profile.Column,
					TotalRows:         profile.TotalRows,
					MissingCount:      profile.MissingCount,
					MissingPercentage: profile.MissingPercentage,
				}
				if err := tx.Create(&record).Error; err != nil {
					return fmt.Errorf("保存列画像记录失败: %w", err)
				}
				result.Profiles = append(result.Profiles, record)
				columnsProfiled++
			}
		}

		stage.Metrics = models.JSONB{
			"datasets_profiled": len(targets),
			"columns_profiled":  columnsProfiled,
		}
		return nil
	}
}

// runDedupStage 去重阶段
// 按组合键去重并写出 _dedup 表，去重统计先自洽校验再落库
func (e *PipelineEngine) runDedupStage(definition *models.PipelineDefinition, result *RunResult) stageFunc {
	return func(ctx context.Context, tx *gorm.DB, stage *models.StageRun) error {
		table := resolveTable(definition, definition.DatasetName)
		dataset, err := e.store.LoadDataset(ctx, definition.DatasetName, table, nil)
		if err != nil {
			return fmt.Errorf("加载数据集 %s 失败: %w", definition.DatasetName, err)
		}
		stage.InputRows = dataset.RowCount()

		key := data_quality.CompositeKey(definition.KeyColumns)
		order := convertTieBreakOrder(definition.TieBreakOrder)
		deduped, stats, err := e.deduplicator.Deduplicate(dataset, key, order)
		if err != nil {
			return fmt.Errorf("去重失败: %w", err)
		}
		if err := data_quality.VerifyDeduplication(stats); err != nil {
			return fmt.Errorf("去重统计校验失败: %w", err)
		}

		if err := e.store.SaveDatasetTx(tx, deduped, deduped.Name); err != nil {
			return fmt.Errorf("写出去重结果表失败: %w", err)
		}

		record := models.DedupStatRecord{
			RunID:        stage.RunID,
			DatasetName:  definition.DatasetName,
			RawCount:     stats.RawCount,
			DedupCount:   stats.DedupCount,
			RemovedCount: stats.RemovedCount,
		}
		if err := tx.Create(&record).Error; err != nil {
			return fmt.Errorf("保存去重统计记录失败: %w", err)
		}
		result.Dedup = &record

		stage.OutputRows = deduped.RowCount()
		stage.OutputTable = deduped.Name
		stage.Metrics = models.JSONB{
			"removed_count": stats.RemovedCount,
			"key_columns":   strings.Join([]string(definition.KeyColumns), ","),
		}
		return nil
	}
}

// runOutlierStage 离群值封顶阶段
// 逐列拟合分位界并链式封顶，产出 _robust 表；
// 退化分布记入运行告警后带塌缩界继续，封顶校验不通过直接失败
func (e *PipelineEngine) runOutlierStage(definition *models.PipelineDefinition,
	run *models.PipelineRun, result *RunResult) stageFunc {
	return func(ctx context.Context, tx *gorm.DB, stage *models.StageRun) error {
		dedupName := definition.DatasetName + dedupSuffix
		dataset, err := e.store.LoadDataset(ctx, dedupName, resolveTable(definition, dedupName), nil)
		if err != nil {
			return fmt.Errorf("加载数据集 %s 失败: %w", dedupName, err)
		}
		stage.InputRows = dataset.RowCount()

		capper := data_quality.NewOutlierCapperWithMethod(
			data_quality.QuantileMethod(definition.QuantileMethod))

		current := dataset
		capped := 0
		for _, column := range definition.OutlierColumns {
			bounds, err := capper.FitBounds(current, column)
			if err != nil {
				var degenerate *data_quality.DegenerateDistributionError
				if !errors.As(err, &degenerate) {
					return fmt.Errorf("拟合列 %s 的分位界失败: %w", column, err)
				}
				e.recordWarning(run, models.JSONB{
					"type":    "degenerate_distribution",
					"dataset": current.Name,
					"column":  column,
					"q1":      bounds.Q1,
					"message": err.Error(),
				})
			}

			outlierStats, err := capper.CountOutliers(current, column, bounds)
			if err != nil {
				return fmt.Errorf("统计列 %s 的离群值失败: %w", column, err)
			}

			next, err := capper.Cap(current, column, bounds)
			if err != nil {
				return fmt.Errorf("封顶列 %s 失败: %w", column, err)
			}
			cappedColumn := column + "_capped"

			before, err := data_quality.SummarizeColumn(current, column)
			if err != nil {
				return fmt.Errorf("汇总封顶前列 %s 失败: %w", column, err)
			}
			after, err := data_quality.SummarizeColumn(next, cappedColumn)
			if err != nil {
				return fmt.Errorf("汇总封顶后列 %s 失败: %w", cappedColumn, err)
			}
			verification := data_quality.VerifyCapping(before, after, bounds)

			boundsRecord := models.QuantileBoundsRecord{
				RunID:             stage.RunID,
				DatasetName:       dedupName,
				ColumnName:        column,
				Q1:                bounds.Q1,
				Q3:                bounds.Q3,
				LowerBound:        bounds.Lower,
				UpperBound:        bounds.Upper,
				Degenerate:        bounds.Degenerate,
				Method:            string(bounds.Method),
				OutlierCount:      outlierStats.OutlierCount,
				OutlierPercentage: outlierStats.OutlierPercentage,
				CappedColumn:      cappedColumn,
			}
			if err := tx.Create(&boundsRecord).Error; err != nil {
				return fmt.Errorf("保存分位界记录失败: %w", err)
			}
			result.Bounds = append(result.Bounds, boundsRecord)

			verifyRecord := models.CappingVerifyRecord{
				RunID:        stage.RunID,
				DatasetName:  dedupName,
				ColumnName:   column,
				BeforeMin:    before.Min,
				BeforeMedian: before.Median,
				BeforeMax:    before.Max,
				AfterMin:     after.Min,
				AfterMedian:  after.Median,
				AfterMax:     after.Max,
				Passed:       verification.Passed,
				Issues:       models.JSONBStringArray(verification.Issues),
			}
			if err := tx.Create(&verifyRecord).Error; err != nil {
				return fmt.Errorf("保存封顶校验记录失败: %w", err)
			}
			result.Verify = append(result.Verify, verifyRecord)

			if !verification.Passed {
				return fmt.Errorf("列 %s 封顶校验未通过: %s", column,
					strings.Join(verification.Issues, "; "))
			}

			current = next
			capped++
		}

		if err := data_quality.VerifyRowCarryover(dataset, current); err != nil {
			return fmt.Errorf("封顶行数校验失败: %w", err)
		}

		// 没有配置封顶列时 _robust 表仍要产出，内容与 _dedup 一致
		robustName := definition.DatasetName + robustSuffix
		if current.Name != robustName {
			current = data_quality.NewDataset(robustName, current.Columns, current.Rows)
		}
		if err := e.store.SaveDatasetTx(tx, current, robustName); err != nil {
			return fmt.Errorf("写出封顶结果表失败: %w", err)
		}

		stage.OutputRows = current.RowCount()
		stage.OutputTable = robustName
		stage.Metrics = models.JSONB{
			"columns_capped":  capped,
			"quantile_method": definition.QuantileMethod,
		}
		return nil
	}
}

// runFlagStage 业务异常标记阶段
// 加载全部规则引用的数据集后整体求值，汇总按规则声明顺序落库
func (e *PipelineEngine) runFlagStage(definition *models.PipelineDefinition, result *RunResult) stageFunc {
	return func(ctx context.Context, tx *gorm.DB, stage *models.StageRun) error {
		rules, err := convertRuleConfigs(definition.Rules)
		if err != nil {
			return fmt.Errorf("解析规则配置失败: %w", err)
		}
		if len(rules) == 0 {
			stage.Metrics = models.JSONB{"rules_evaluated": 0}
			return nil
		}

		datasets := make(map[string]*data_quality.Dataset)
		for _, rule := range rules {
			if _, loaded := datasets[rule.SourceDataset]; loaded {
				continue
			}
			table := resolveTable(definition, rule.SourceDataset)
			dataset, err := e.store.LoadDataset(ctx, rule.SourceDataset, table, nil)
			if err != nil {
				return fmt.Errorf("加载数据集 %s 失败: %w", rule.SourceDataset, err)
			}
			datasets[rule.SourceDataset] = dataset
			stage.InputRows += dataset.RowCount()
		}

		summaries, err := e.flagger.Evaluate(rules, datasets)
		if err != nil {
			return fmt.Errorf("规则求值失败: %w", err)
		}

		for i, summary := range summaries {
			record := models.AnomalyFlagRecord{
				RunID:             stage.RunID,
				RuleName:          summary.RuleName,
				SourceDataset:     summary.SourceDataset,
				TotalRows:         summary.TotalRows,
				MatchedCount:      summary.MatchedCount,
				MatchedPercentage: summary.MatchedPercentage,
				SkippedNulls:      summary.SkippedNulls,
				Position:          i,
			}
			if err := tx.Create(&record).Error; err != nil {
				return fmt.Errorf("保存异常标记记录失败: %w", err)
			}
			result.Flags = append(result.Flags, record)
		}

		stage.OutputRows = stage.InputRows
		stage.Metrics = models.JSONB{
			"rules_evaluated": len(rules),
			"datasets_loaded": len(datasets),
		}
		return nil
	}
}
