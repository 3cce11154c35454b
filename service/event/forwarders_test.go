/*
 * @module service/event/forwarders_test
 * @description 运行事件转发器测试，验证订阅类型和主题拆分规则
 * @architecture 单元测试
 * @documentReference ai_docs/quality_pipeline_design.md
 * @stateFlow 构造转发器 -> 校验订阅与主题
 * @rules 不依赖外部消息中间件
 * @dependencies github.com/stretchr/testify/assert
 * @refs service/event/forwarders.go
 */

package event

import (
	"testing"

	"dataquality-service/service/models"

	"github.com/stretchr/testify/assert"
)

func TestKafkaEventForwarderSubscribesAllTypes(t *testing.T) {
	forwarder := NewKafkaEventForwarder(nil, "quality-run-events")

	types := forwarder.EventTypes()
	assert.Len(t, types, 6)
	assert.Contains(t, types, models.EventStageCompleted)
	assert.Contains(t, types, models.EventRunWarning)
}

func TestMQTTEventForwarderSkipsStageEvents(t *testing.T) {
	forwarder := NewMQTTEventForwarder(nil, "", 1)

	types := forwarder.EventTypes()
	assert.NotContains(t, types, models.EventStageStarted)
	assert.NotContains(t, types, models.EventStageCompleted)
	assert.Contains(t, types, models.EventRunStarted)
	assert.Contains(t, types, models.EventRunFailed)
}

func TestMQTTEventForwarderTopicPerPipeline(t *testing.T) {
	forwarder := NewMQTTEventForwarder(nil, "", 1)

	event := &models.RunEvent{
		PipelineID: "pipeline-1",
		EventType:  models.EventRunFailed,
	}
	assert.Equal(t, "quality/runs/pipeline-1/run_failed", forwarder.runTopic(event))

	custom := NewMQTTEventForwarder(nil, "ops/quality", 0)
	assert.Equal(t, "ops/quality/pipeline-1/run_failed", custom.runTopic(event))
}

func TestRedisEventForwarderDefaultChannel(t *testing.T) {
	forwarder := NewRedisEventForwarder(nil, "")
	assert.Equal(t, "quality:run_events", forwarder.channel)

	named := NewRedisEventForwarder(nil, "quality:events")
	assert.Equal(t, "quality:events", named.channel)
}
