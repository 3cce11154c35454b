/*
 * @module service/database/views/pipeline_runs_view
 * @description 流水线运行相关视图定义，聚合运行记录、阶段明细与所属流水线信息
 * @architecture 数据库视图层 - 基于PostgreSQL视图实现数据聚合
 * @documentReference docs/database_design.md
 * @stateFlow 流水线运行生命周期视图管理
 * @rules 遵循PostgreSQL视图设计规范，使用json_agg聚合关联数据，确保数据完整性
 * @dependencies PostgreSQL JSONB支持, GORM模型定义
 * @refs service/models/pipeline_models.go, docs/api_design.md
 */

package views

var PipelineRunViews = map[string]string{
	// 运行详细信息视图 - 包含运行的所有字段、所属流水线信息和阶段明细
	"pipeline_runs_info": `
		DROP VIEW IF EXISTS pipeline_runs_info;
		CREATE VIEW pipeline_runs_info AS
		SELECT
			pr.id,
			pr.pipeline_id,
			pr.status,
			pr.triggered_by,
			pr.current_stage,
			pr.start_time,
			pr.end_time,
			pr.duration,
			pr.error_message,
			pr.statistics,
			pr.warnings,
			pr.created_at,
			pr.updated_at,
			-- 计算执行时长（秒），运行中的按当前时间推算
			CASE
				WHEN pr.start_time IS NOT NULL AND pr.end_time IS NOT NULL
				THEN EXTRACT(EPOCH FROM (pr.end_time - pr.start_time))
				WHEN pr.start_time IS NOT NULL AND pr.end_time IS NULL AND pr.status = 'running'
				THEN EXTRACT(EPOCH FROM (NOW() - pr.start_time))
				ELSE NULL
			END as duration_seconds,
			-- 所属流水线信息对象，来源：pipeline_definitions表
			jsonb_build_object(
				'id', pd.id,
				'name', pd.name,
				'dataset_name', pd.dataset_name,
				'source_table', pd.source_table,
				'schedule', pd.schedule,
				'is_enabled', pd.is_enabled
			) as pipeline,
			-- 阶段明细JSON数组，来源：pipeline_stage_runs表，按阶段序号排列
			COALESCE(
				json_agg(
					jsonb_build_object(
						'id', sr.id,
						'stage_type', sr.stage_type,
						'position', sr.position,
						'status', sr.status,
						'start_time', sr.start_time,
						'end_time', sr.end_time,
						'duration', sr.duration,
						'input_rows', sr.input_rows,
						'output_rows', sr.output_rows,
						'output_table', sr.output_table,
						'metrics', sr.metrics,
						'error_message', sr.error_message
					) ORDER BY sr.position
				) FILTER (WHERE sr.id IS NOT NULL),
				'[]'::json
			) as stages,
			-- 已完成阶段数
			COUNT(sr.id) FILTER (WHERE sr.status = 'succeeded') as stages_succeeded
		FROM pipeline_runs pr
		INNER JOIN pipeline_definitions pd ON pr.pipeline_id = pd.id
		LEFT JOIN pipeline_stage_runs sr ON sr.run_id = pr.id
		GROUP BY pr.id, pd.id;

		COMMENT ON VIEW pipeline_runs_info IS '{
			"description": "流水线运行详细信息视图：聚合运行基本信息、所属流水线信息和阶段执行明细",
			"fields": {
				"id": {"type": "string", "source": "pipeline_runs.id", "description": "运行ID"},
				"pipeline_id": {"type": "string", "source": "pipeline_runs.pipeline_id", "description": "流水线ID"},
				"status": {"type": "string", "source": "pipeline_runs.status", "description": "运行状态：pending, running, succeeded, failed"},
				"triggered_by": {"type": "string", "source": "pipeline_runs.triggered_by", "description": "触发方式：manual, schedule, api"},
				"current_stage": {"type": "string", "source": "pipeline_runs.current_stage", "description": "当前阶段：profile, dedup, outlier, flag"},
				"start_time": {"type": "Date", "source": "pipeline_runs.start_time", "description": "开始时间"},
				"end_time": {"type": "Date | null", "source": "pipeline_runs.end_time", "description": "结束时间"},
				"duration": {"type": "number", "source": "pipeline_runs.duration", "description": "运行时长（毫秒）"},
				"error_message": {"type": "string", "source": "pipeline_runs.error_message", "description": "失败原因"},
				"statistics": {"type": "Object", "source": "pipeline_runs.statistics", "description": "各阶段行数汇总"},
				"warnings": {"type": "Array", "source": "pipeline_runs.warnings", "description": "可恢复告警列表，如退化分布"},
				"duration_seconds": {"type": "number | null", "description": "执行时长（秒）", "computed": true},
				"pipeline": {
					"type": "Object",
					"source": "pipeline_definitions",
					"description": "所属流水线信息",
					"schema": {
						"id": {"type": "string", "description": "流水线ID"},
						"name": {"type": "string", "description": "流水线名称"},
						"dataset_name": {"type": "string", "description": "主数据集名"},
						"source_table": {"type": "string", "description": "来源表"},
						"schedule": {"type": "string", "description": "调度Cron表达式"},
						"is_enabled": {"type": "boolean", "description": "是否启用"}
					}
				},
				"stages": {
					"type": "Array",
					"source": "pipeline_stage_runs",
					"description": "阶段执行明细，按阶段序号排列",
					"schema": {
						"id": {"type": "string", "description": "阶段记录ID"},
						"stage_type": {"type": "string", "description": "阶段类型：profile, dedup, outlier, flag"},
						"position": {"type": "number", "description": "阶段序号"},
						"status": {"type": "string", "description": "阶段状态"},
						"start_time": {"type": "Date", "description": "开始时间"},
						"end_time": {"type": "Date | null", "description": "结束时间"},
						"duration": {"type": "number", "description": "阶段时长（毫秒）"},
						"input_rows": {"type": "number", "description": "输入行数"},
						"output_rows": {"type": "number", "description": "输出行数"},
						"output_table": {"type": "string", "description": "输出表名"},
						"metrics": {"type": "Object", "description": "阶段维度指标"},
						"error_message": {"type": "string", "description": "失败原因"}
					}
				},
				"stages_succeeded": {"type": "number", "description": "已成功阶段数", "computed": true}
			}
		}';
	`,
}
