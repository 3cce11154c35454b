/*
 * @module service/monitoring/pipeline_metrics
 * @description 流水线运行指标导出器，订阅运行事件累计 Prometheus 指标，并在运行完结后刷新各流水线的质量水位
 * @architecture 事件驱动架构 - 业务服务层
 * @documentReference ai_docs/quality_pipeline_design.md
 * @stateFlow 运行事件 -> 指标累加 -> Prometheus 抓取；run_succeeded -> 质量水位重算
 * @rules 计数器只增不减，质量水位按流水线覆盖更新，事件处理失败不阻断事件分发
 * @dependencies dataquality-service/service/models, github.com/prometheus/client_golang, gorm.io/gorm
 * @refs service/event/, service/pipeline_engine/
 */

package monitoring

import (
	"dataquality-service/service/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gorm.io/gorm"
)

// Prometheus 指标名前缀
const metricsNamespace = "dataquality"

// PipelineMetrics 流水线指标导出器，实现 models.RunEventProcessor 接入事件服务
type PipelineMetrics struct {
	db *gorm.DB

	runsTotal     *prometheus.CounterVec
	runsInFlight  prometheus.Gauge
	runDuration   prometheus.Histogram
	stageDuration *prometheus.HistogramVec
	stageRows     *prometheus.CounterVec
	warningsTotal prometheus.Counter

	missingPercentage *prometheus.GaugeVec
	outlierPercentage *prometheus.GaugeVec
	anomalyRows       *prometheus.GaugeVec
}

// NewPipelineMetrics 创建流水线指标导出器
// db 为空时跳过质量水位刷新，reg 为空时创建的指标不注册
func NewPipelineMetrics(db *gorm.DB, reg prometheus.Registerer) *PipelineMetrics {
	factory := promauto.With(reg)

	return &PipelineMetrics{
		db: db,
		runsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "pipeline_runs_total",
			Help:      "已完结的流水线运行次数",
		}, []string{"status"}),
		runsInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "pipeline_runs_in_flight",
			Help:      "正在执行的流水线运行数",
		}),
		runDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "pipeline_run_duration_seconds",
			Help:      "流水线运行耗时分布",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
		}),
		stageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "stage_duration_seconds",
			Help:      "各阶段执行耗时分布",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"stage_type"}),
		stageRows: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "stage_rows_total",
			Help:      "各阶段处理的数据行数",
		}, []string{"stage_type", "direction"}),
		warningsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "run_warnings_total",
			Help:      "运行过程中产生的可恢复告警次数",
		}),
		missingPercentage: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "dataset_missing_percentage",
			Help:      "最近一次成功运行的平均缺失率",
		}, []string{"pipeline_id"}),
		outlierPercentage: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "dataset_outlier_percentage",
			Help:      "最近一次成功运行的平均离群率",
		}, []string{"pipeline_id"}),
		anomalyRows: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "anomaly_matched_rows",
			Help:      "最近一次成功运行命中业务异常规则的行数",
		}, []string{"pipeline_id"}),
	}
}

// EventTypes 订阅的运行事件类型
func (p *PipelineMetrics) EventTypes() []string {
	return []string{
		models.EventRunStarted,
		models.EventStageCompleted,
		models.EventRunSucceeded,
		models.EventRunFailed,
		models.EventRunWarning,
	}
}

// ProcessRunEvent 消费运行事件并更新指标
func (p *PipelineMetrics) ProcessRunEvent(event *models.RunEvent) error {
	switch event.EventType {
	case models.EventRunStarted:
		p.runsInFlight.Inc()
	case models.EventStageCompleted:
		p.observeStage(event)
	case models.EventRunSucceeded:
		p.runsInFlight.Dec()
		p.runsTotal.WithLabelValues(models.RunStatusSucceeded).Inc()
		if ms, ok := eventNumber(event.Data, "duration_ms"); ok {
			p.runDuration.Observe(ms / 1000)
		}
		p.refreshQualityGauges(event.PipelineID, event.RunID)
	case models.EventRunFailed:
		p.runsInFlight.Dec()
		p.runsTotal.WithLabelValues(models.RunStatusFailed).Inc()
	case models.EventRunWarning:
		p.warningsTotal.Inc()
	}

	return nil
}

// observeStage 记录阶段耗时与数据行数
func (p *PipelineMetrics) observeStage(event *models.RunEvent) {
	if event.StageType == "" {
		return
	}

	if ms, ok := eventNumber(event.Data, "duration_ms"); ok {
		p.stageDuration.WithLabelValues(event.StageType).Observe(ms / 1000)
	}
	if rows, ok := eventNumber(event.Data, "input_rows"); ok {
		p.stageRows.WithLabelValues(event.StageType, "input").Add(rows)
	}
	if rows, ok := eventNumber(event.Data, "output_rows"); ok {
		p.stageRows.WithLabelValues(event.StageType, "output").Add(rows)
	}
}

// refreshQualityGauges 按本次运行落库的报告记录重算质量水位
func (p *PipelineMetrics) refreshQualityGauges(pipelineID, runID string) {
	if p.db == nil || pipelineID == "" || runID == "" {
		return
	}

	var avgMissing float64
	p.db.Model(&models.ColumnProfileRecord{}).
		Where("run_id = ?", runID).
		Select("COALESCE(AVG(missing_percentage), 0)").
		Scan(&avgMissing)
	p.missingPercentage.WithLabelValues(pipelineID).Set(avgMissing)

	var avgOutlier float64
	p.db.Model(&models.QuantileBoundsRecord{}).
		Where("run_id = ?", runID).
		Select("COALESCE(AVG(outlier_percentage), 0)").
		Scan(&avgOutlier)
	p.outlierPercentage.WithLabelValues(pipelineID).Set(avgOutlier)

	var matchedRows int64
	p.db.Model(&models.AnomalyFlagRecord{}).
		Where("run_id = ?", runID).
		Select("COALESCE(SUM(matched_count), 0)").
		Scan(&matchedRows)
	p.anomalyRows.WithLabelValues(pipelineID).Set(float64(matchedRows))
}

// eventNumber 从事件负载里取数值字段，兼容进程内事件和落库后解码的两种取值类型
func eventNumber(data models.JSONB, key string) (float64, bool) {
	if data == nil {
		return 0, false
	}

	switch v := data[key].(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	}
	return 0, false
}
