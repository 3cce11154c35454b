/*
 * @module service/event/forwarders
 * @description 运行事件转发器，把流水线运行事件外发到Kafka、MQTT、Redis等外部通道
 * @architecture 事件驱动架构 - 事件处理器
 * @documentReference ai_docs/quality_pipeline_design.md
 * @stateFlow 事件落库 -> 处理器分发 -> 外部通道发布
 * @rules 转发失败由事件服务记录日志，不重试也不阻塞流水线
 * @dependencies dataquality-service/client/connectors, dataquality-service/service/models
 * @refs service/event/event_service.go
 */

package event

import (
	"dataquality-service/client/connectors"
	"dataquality-service/service/models"
	"fmt"
)

// allRunEventTypes 全部运行事件类型
func allRunEventTypes() []string {
	return []string{
		models.EventRunStarted,
		models.EventStageStarted,
		models.EventStageCompleted,
		models.EventRunSucceeded,
		models.EventRunFailed,
		models.EventRunWarning,
	}
}

// === Kafka转发器 ===

// KafkaEventForwarder 把运行事件发布到Kafka主题，消息键为运行ID保证同一运行的事件有序
type KafkaEventForwarder struct {
	connector *connectors.KafkaConnector
	topic     string
}

// NewKafkaEventForwarder 创建Kafka运行事件转发器
func NewKafkaEventForwarder(connector *connectors.KafkaConnector, topic string) *KafkaEventForwarder {
	return &KafkaEventForwarder{
		connector: connector,
		topic:     topic,
	}
}

// EventTypes 订阅全部运行事件类型
func (f *KafkaEventForwarder) EventTypes() []string {
	return allRunEventTypes()
}

// ProcessRunEvent 把事件写入Kafka主题
func (f *KafkaEventForwarder) ProcessRunEvent(event *models.RunEvent) error {
	return f.connector.ProduceMessage(&connectors.KafkaMessage{
		Topic: f.topic,
		Key:   event.RunID,
		Value: event,
		Headers: map[string]string{
			"event_type":  event.EventType,
			"pipeline_id": event.PipelineID,
		},
		Timestamp: event.CreatedAt,
	})
}

// === MQTT转发器 ===

// MQTTEventForwarder 把运行级事件作为运维通知发布到MQTT主题
// 阶段级事件噪声大，不进运维通道
type MQTTEventForwarder struct {
	connector   *connectors.MQTTConnector
	topicPrefix string
	qos         byte
}

// NewMQTTEventForwarder 创建MQTT运行通知转发器
func NewMQTTEventForwarder(connector *connectors.MQTTConnector, topicPrefix string, qos byte) *MQTTEventForwarder {
	if topicPrefix == "" {
		topicPrefix = "quality/runs"
	}
	return &MQTTEventForwarder{
		connector:   connector,
		topicPrefix: topicPrefix,
		qos:         qos,
	}
}

// EventTypes 只订阅运行级事件
func (f *MQTTEventForwarder) EventTypes() []string {
	return []string{
		models.EventRunStarted,
		models.EventRunSucceeded,
		models.EventRunFailed,
		models.EventRunWarning,
	}
}

// runTopic 按流水线拆分通知主题
func (f *MQTTEventForwarder) runTopic(event *models.RunEvent) string {
	return fmt.Sprintf("%s/%s/%s", f.topicPrefix, event.PipelineID, event.EventType)
}

// ProcessRunEvent 把事件作为JSON通知发布
func (f *MQTTEventForwarder) ProcessRunEvent(event *models.RunEvent) error {
	return f.connector.PublishJSON(f.runTopic(event), f.qos, false, event)
}

// === Redis转发器 ===

// RedisEventForwarder 把运行事件发布到Redis频道，供站内其它服务订阅
type RedisEventForwarder struct {
	connector *connectors.RedisConnector
	channel   string
}

// NewRedisEventForwarder 创建Redis运行事件转发器
func NewRedisEventForwarder(connector *connectors.RedisConnector, channel string) *RedisEventForwarder {
	if channel == "" {
		channel = "quality:run_events"
	}
	return &RedisEventForwarder{
		connector: connector,
		channel:   channel,
	}
}

// EventTypes 订阅全部运行事件类型
func (f *RedisEventForwarder) EventTypes() []string {
	return allRunEventTypes()
}

// ProcessRunEvent 把事件发布到Redis频道
func (f *RedisEventForwarder) ProcessRunEvent(event *models.RunEvent) error {
	return f.connector.Publish(f.channel, event)
}
