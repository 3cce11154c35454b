/*
 * @module service/monitoring/alert_notifier
 * @description 告警通知渠道，把质量告警推送到外部接收端或本地日志
 * @architecture 分层架构 - 业务服务层
 * @documentReference ai_docs/quality_pipeline_design.md
 * @stateFlow 告警评估 -> 渠道分发 -> 发送结果记录
 * @rules 单个渠道发送失败不影响其他渠道，失败只记日志不重试
 * @dependencies log/slog, net/http
 * @refs service/monitoring/quality_alerts.go
 */

package monitoring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// AlertNotifier 告警通知渠道接口
type AlertNotifier interface {
	Notify(alert *QualityAlert) error
	ChannelType() string
}

// LogNotifier 日志通知渠道，把告警写入结构化日志
type LogNotifier struct{}

// Notify 记录告警日志
func (n *LogNotifier) Notify(alert *QualityAlert) error {
	slog.Warn("质量告警",
		"alert_id", alert.ID,
		"type", alert.Type,
		"severity", alert.Severity,
		"pipeline_id", alert.PipelineID,
		"run_id", alert.RunID,
		"target", alert.Target,
		"message", alert.Message,
	)
	return nil
}

// ChannelType 渠道类型
func (n *LogNotifier) ChannelType() string {
	return "log"
}

// WebhookNotifier Webhook通知渠道，把告警POST到外部接收端
type WebhookNotifier struct {
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`

	client *http.Client
}

// NewWebhookNotifier 创建Webhook通知渠道
func NewWebhookNotifier(url string, headers map[string]string) *WebhookNotifier {
	return &WebhookNotifier{
		URL:     url,
		Headers: headers,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Notify 发送告警到Webhook接收端
func (n *WebhookNotifier) Notify(alert *QualityAlert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("序列化告警失败: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, n.URL, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("创建HTTP请求失败: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range n.Headers {
		req.Header.Set(k, v)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("发送Webhook通知失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("Webhook通知响应错误: %d", resp.StatusCode)
	}

	return nil
}

// ChannelType 渠道类型
func (n *WebhookNotifier) ChannelType() string {
	return "webhook"
}

// AlertDispatcher 告警分发器，把告警扇出到全部通知渠道
type AlertDispatcher struct {
	notifiers []AlertNotifier
}

// NewAlertDispatcher 创建告警分发器
func NewAlertDispatcher(notifiers ...AlertNotifier) *AlertDispatcher {
	return &AlertDispatcher{notifiers: notifiers}
}

// AddNotifier 追加通知渠道
func (d *AlertDispatcher) AddNotifier(notifier AlertNotifier) {
	d.notifiers = append(d.notifiers, notifier)
}

// Dispatch 分发告警到全部渠道，失败只记日志
func (d *AlertDispatcher) Dispatch(alerts []*QualityAlert) {
	for _, alert := range alerts {
		for _, notifier := range d.notifiers {
			if err := notifier.Notify(alert); err != nil {
				slog.Error("告警通知发送失败",
					"channel", notifier.ChannelType(),
					"alert_id", alert.ID,
					"error", err)
			}
		}
	}
}
