/*
 * @module service/monitoring/alert_notifier_test
 * @description 告警通知渠道单元测试，覆盖Webhook发送、失败处理和多渠道分发
 * @architecture 测试层
 * @stateFlow 构造告警 -> 调用通知渠道 -> 断言发送行为
 * @rules Webhook接收端用 httptest 模拟
 * @dependencies net/http/httptest, github.com/stretchr/testify
 * @refs service/monitoring/alert_notifier.go
 */

package monitoring

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingNotifier 记录收到的告警，按需返回失败
type recordingNotifier struct {
	received []*QualityAlert
	err      error
}

func (n *recordingNotifier) Notify(alert *QualityAlert) error {
	if n.err != nil {
		return n.err
	}
	n.received = append(n.received, alert)
	return nil
}

func (n *recordingNotifier) ChannelType() string {
	return "recording"
}

func sampleAlert() *QualityAlert {
	return &QualityAlert{
		ID:          "alert_1",
		Type:        AlertTypeMissingRatio,
		Severity:    AlertSeverityCritical,
		PipelineID:  "pipeline-1",
		RunID:       "run-1",
		Target:      "watch_history.user_id",
		Message:     "列 watch_history.user_id 缺失率 55.00% 超过阈值 50%",
		MetricValue: 55.0,
		Threshold:   50.0,
		TriggeredAt: time.Now(),
	}
}

func TestWebhookNotifier(t *testing.T) {
	var received QualityAlert
	var gotContentType, gotToken string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		gotToken = r.Header.Get("X-Alert-Token")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	notifier := NewWebhookNotifier(server.URL, map[string]string{"X-Alert-Token": "secret"})
	require.NoError(t, notifier.Notify(sampleAlert()))

	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "secret", gotToken)
	assert.Equal(t, "alert_1", received.ID)
	assert.Equal(t, AlertTypeMissingRatio, received.Type)
	assert.Equal(t, AlertSeverityCritical, received.Severity)
	assert.Equal(t, "watch_history.user_id", received.Target)
	assert.Equal(t, 55.0, received.MetricValue)
}

func TestWebhookNotifierServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	notifier := NewWebhookNotifier(server.URL, nil)
	err := notifier.Notify(sampleAlert())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "Webhook通知响应错误: 500")
}

func TestWebhookNotifierChannelType(t *testing.T) {
	assert.Equal(t, "webhook", NewWebhookNotifier("http://localhost", nil).ChannelType())
	assert.Equal(t, "log", (&LogNotifier{}).ChannelType())
}

func TestLogNotifier(t *testing.T) {
	notifier := &LogNotifier{}
	assert.NoError(t, notifier.Notify(sampleAlert()))
}

func TestAlertDispatcherFanOut(t *testing.T) {
	first := &recordingNotifier{}
	second := &recordingNotifier{}
	dispatcher := NewAlertDispatcher(first, second)

	alerts := []*QualityAlert{sampleAlert(), sampleAlert()}
	dispatcher.Dispatch(alerts)

	assert.Len(t, first.received, 2)
	assert.Len(t, second.received, 2)
}

func TestAlertDispatcherContinuesOnFailure(t *testing.T) {
	failing := &recordingNotifier{err: errors.New("接收端不可用")}
	healthy := &recordingNotifier{}

	dispatcher := NewAlertDispatcher(failing)
	dispatcher.AddNotifier(healthy)

	dispatcher.Dispatch([]*QualityAlert{sampleAlert()})

	// 失败渠道不阻断后续渠道
	assert.Empty(t, failing.received)
	assert.Len(t, healthy.received, 1)
}
