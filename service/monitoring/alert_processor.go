/*
 * @module service/monitoring/alert_processor
 * @description 运行事件告警处理器，在运行完结事件上评估质量告警并分发通知
 * @architecture 分层架构 - 业务服务层
 * @documentReference ai_docs/quality_pipeline_design.md
 * @stateFlow 运行完结事件 -> 告警评估 -> 渠道分发
 * @rules 评估失败返回错误交由事件服务记录，不中断其他处理器
 * @dependencies dataquality-service/service/models
 * @refs service/monitoring/quality_alerts.go, service/event/event_service.go
 */

package monitoring

import (
	"dataquality-service/service/models"
)

// RunAlertProcessor 订阅运行完结事件，触发质量告警评估与分发
type RunAlertProcessor struct {
	evaluator  *QualityAlertEvaluator
	dispatcher *AlertDispatcher
}

// NewRunAlertProcessor 创建运行告警处理器
func NewRunAlertProcessor(evaluator *QualityAlertEvaluator, dispatcher *AlertDispatcher) *RunAlertProcessor {
	return &RunAlertProcessor{
		evaluator:  evaluator,
		dispatcher: dispatcher,
	}
}

// EventTypes 订阅的事件类型
func (p *RunAlertProcessor) EventTypes() []string {
	return []string{models.EventRunSucceeded, models.EventRunFailed}
}

// ProcessRunEvent 按事件类型评估告警
func (p *RunAlertProcessor) ProcessRunEvent(event *models.RunEvent) error {
	switch event.EventType {
	case models.EventRunSucceeded:
		alerts, err := p.evaluator.EvaluateRun(event.RunID)
		if err != nil {
			return err
		}
		p.dispatcher.Dispatch(alerts)
	case models.EventRunFailed:
		alert, err := p.evaluator.EvaluateFailureStreak(event.PipelineID)
		if err != nil {
			return err
		}
		if alert != nil {
			alert.RunID = event.RunID
			p.dispatcher.Dispatch([]*QualityAlert{alert})
		}
	}

	return nil
}
