/*
 * @module service/database/views/pipeline_definitions_view
 * @description 流水线定义相关视图，聚合定义、异常规则与最近一次运行信息
 * @architecture 数据库视图层 - 基于PostgreSQL视图实现数据聚合
 * @documentReference docs/database_design.md
 * @stateFlow 流水线定义生命周期视图管理
 * @rules 遵循PostgreSQL视图设计规范，使用json_agg聚合关联数据，确保数据完整性
 * @dependencies PostgreSQL JSONB支持, GORM模型定义
 * @refs service/models/pipeline_models.go, docs/api_design.md
 */

package views

var PipelineDefinitionViews = map[string]string{
	// 流水线定义详细信息视图 - 包含定义的完整配置、异常规则和最近运行概况
	"pipeline_definitions_info": `
		DROP VIEW IF EXISTS pipeline_definitions_info;
		CREATE VIEW pipeline_definitions_info AS
		SELECT
			pd.id,
			pd.name,
			pd.description,
			pd.dataset_name,
			pd.source_table,
			pd.profile_columns,
			pd.key_columns,
			pd.tie_break_order,
			pd.outlier_columns,
			pd.quantile_method,
			pd.schedule,
			pd.is_enabled,
			pd.is_built_in,
			pd.created_at,
			pd.created_by,
			pd.updated_at,
			pd.updated_by,
			-- 异常规则JSON数组，来源：anomaly_rule_configs表，按声明顺序排列
			COALESCE(
				json_agg(
					jsonb_build_object(
						'id', arc.id,
						'name', arc.name,
						'source_dataset', arc.source_dataset,
						'logic', arc.logic,
						'conditions', arc.conditions,
						'script', arc.script,
						'fields', arc.fields,
						'position', arc.position,
						'is_enabled', arc.is_enabled
					) ORDER BY arc.position, arc.created_at
				) FILTER (WHERE arc.id IS NOT NULL),
				'[]'::json
			) as rules,
			-- 最近一次运行信息对象，来源：pipeline_runs表
			(
				SELECT jsonb_build_object(
					'id', pr.id,
					'status', pr.status,
					'triggered_by', pr.triggered_by,
					'start_time', pr.start_time,
					'end_time', pr.end_time,
					'duration', pr.duration,
					'error_message', pr.error_message
				)
				FROM pipeline_runs pr
				WHERE pr.pipeline_id = pd.id
				ORDER BY pr.start_time DESC
				LIMIT 1
			) as last_run,
			-- 累计运行次数
			(
				SELECT COUNT(*)
				FROM pipeline_runs pr
				WHERE pr.pipeline_id = pd.id
			) as run_count,
			-- 累计失败次数
			(
				SELECT COUNT(*)
				FROM pipeline_runs pr
				WHERE pr.pipeline_id = pd.id AND pr.status = 'failed'
			) as failed_count
		FROM pipeline_definitions pd
		LEFT JOIN anomaly_rule_configs arc ON arc.pipeline_id = pd.id
		GROUP BY pd.id;

		COMMENT ON VIEW pipeline_definitions_info IS '{
			"description": "流水线定义详细信息视图：聚合定义配置、异常规则列表和最近运行概况",
			"fields": {
				"id": {"type": "string", "source": "pipeline_definitions.id", "description": "流水线ID"},
				"name": {"type": "string", "source": "pipeline_definitions.name", "description": "流水线名称"},
				"description": {"type": "string", "source": "pipeline_definitions.description", "description": "流水线描述"},
				"dataset_name": {"type": "string", "source": "pipeline_definitions.dataset_name", "description": "主数据集名"},
				"source_table": {"type": "string", "source": "pipeline_definitions.source_table", "description": "仓库来源表"},
				"profile_columns": {"type": "Array", "source": "pipeline_definitions.profile_columns", "description": "画像列清单，空为全部列"},
				"key_columns": {"type": "Array", "source": "pipeline_definitions.key_columns", "description": "去重组合键"},
				"tie_break_order": {"type": "Array", "source": "pipeline_definitions.tie_break_order", "description": "组内决胜排序"},
				"outlier_columns": {"type": "Array", "source": "pipeline_definitions.outlier_columns", "description": "需要封顶的数值列"},
				"quantile_method": {"type": "string", "source": "pipeline_definitions.quantile_method", "description": "分位数算法：auto, exact, p2"},
				"schedule": {"type": "string", "source": "pipeline_definitions.schedule", "description": "调度Cron表达式"},
				"is_enabled": {"type": "boolean", "source": "pipeline_definitions.is_enabled", "description": "是否启用"},
				"is_built_in": {"type": "boolean", "source": "pipeline_definitions.is_built_in", "description": "是否内置流水线"},
				"rules": {
					"type": "Array",
					"source": "anomaly_rule_configs",
					"description": "异常规则列表，按声明顺序排列",
					"schema": {
						"id": {"type": "string", "description": "规则ID"},
						"name": {"type": "string", "description": "规则名称"},
						"source_dataset": {"type": "string", "description": "规则作用的数据集"},
						"logic": {"type": "string", "description": "条件组合逻辑：or, and"},
						"conditions": {"type": "Array", "description": "条件列表"},
						"script": {"type": "string", "description": "脚本谓词"},
						"fields": {"type": "Array", "description": "脚本谓词涉及的字段"},
						"position": {"type": "number", "description": "声明顺序"},
						"is_enabled": {"type": "boolean", "description": "是否启用"}
					}
				},
				"last_run": {"type": "Object | null", "source": "pipeline_runs", "description": "最近一次运行概况"},
				"run_count": {"type": "number", "description": "累计运行次数", "computed": true},
				"failed_count": {"type": "number", "description": "累计失败次数", "computed": true}
			}
		}';
	`,
}
