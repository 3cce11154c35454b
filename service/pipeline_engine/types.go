/*
 * @module service/pipeline_engine/types
 * @description 流水线引擎的请求、进度、结果类型与规则配置转换
 * @architecture 分层架构 - 业务引擎层
 * @documentReference ai_docs/quality_pipeline_design.md
 * @stateFlow 运行请求 -> 阶段推进 -> 进度回调 -> 运行结果
 * @rules 规则转换保持声明顺序，Position 相同按创建时间
 * @dependencies dataquality-service/service/data_quality, dataquality-service/service/models
 * @refs service/pipeline_engine/engine.go
 */

package pipeline_engine

import (
	"fmt"
	"time"

	"dataquality-service/service/data_quality"
	"dataquality-service/service/models"

	"github.com/spf13/cast"
)

// RunProgress 运行进度，经回调推给事件服务
type RunProgress struct {
	RunID          string    `json:"run_id"`
	PipelineID     string    `json:"pipeline_id"`
	CurrentStage   string    `json:"current_stage"`
	StagesTotal    int       `json:"stages_total"`
	StagesDone     int       `json:"stages_done"`
	RowsProcessed  int64     `json:"rows_processed"`
	Message        string    `json:"message"`
	StartTime      time.Time `json:"start_time"`
	LastUpdateTime time.Time `json:"last_update_time"`
}

// RunResult 一次运行的完整结果
type RunResult struct {
	Run      *models.PipelineRun           `json:"run"`
	Stages   []models.StageRun             `json:"stages"`
	Profiles []models.ColumnProfileRecord  `json:"profiles"`
	Dedup    *models.DedupStatRecord       `json:"dedup,omitempty"`
	Bounds   []models.QuantileBoundsRecord `json:"bounds"`
	Verify   []models.CappingVerifyRecord  `json:"verify"`
	Flags    []models.AnomalyFlagRecord    `json:"flags"`
}

// EventPublisher 运行事件发布接口，由事件服务实现
type EventPublisher interface {
	PublishRunEvent(event *models.RunEvent)
}

// convertTieBreakOrder 把定义里的 JSONB 排序配置转成引擎排序键
func convertTieBreakOrder(raw models.JSONBArray) data_quality.TieBreakOrder {
	order := make(data_quality.TieBreakOrder, 0, len(raw))
	for _, item := range raw {
		column := cast.ToString(item["column"])
		if column == "" {
			continue
		}
		order = append(order, data_quality.OrderColumn{
			Column:     column,
			Descending: cast.ToBool(item["descending"]),
		})
	}
	return order
}

// convertRuleConfigs 把落库的规则配置转成引擎规则，保持 Position 声明顺序
// 停用的规则被跳过
func convertRuleConfigs(configs []models.AnomalyRuleConfig) ([]data_quality.AnomalyRule, error) {
	rules := make([]data_quality.AnomalyRule, 0, len(configs))
	for _, config := range configs {
		if !config.IsEnabled {
			continue
		}

		rule := data_quality.AnomalyRule{
			Name:          config.Name,
			SourceDataset: config.SourceDataset,
			Logic:         config.Logic,
			Script:        config.Script,
			Fields:        []string(config.Fields),
			Description:   config.Description,
		}
		if rule.Logic == "" {
			rule.Logic = data_quality.RuleLogicOr
		}

		for _, raw := range config.Conditions {
			field := cast.ToString(raw["field"])
			operator := cast.ToString(raw["operator"])
			if field == "" || operator == "" {
				return nil, fmt.Errorf("规则 %s 的条件缺少 field 或 operator", config.Name)
			}
			rule.Conditions = append(rule.Conditions, data_quality.RuleCondition{
				Field:    field,
				Operator: operator,
				Value:    raw["value"],
			})
		}

		rules = append(rules, rule)
	}
	return rules, nil
}
