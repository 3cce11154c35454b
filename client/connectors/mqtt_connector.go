/*
 * @module MQTTConnector
 * @description MQTT连接器，封装paho客户端，负责把运行通知发布到运维消息通道
 * @architecture 适配器模式 - 封装第三方MQTT客户端，提供统一的接口
 * @documentReference ai_docs/quality_pipeline_design.md
 * @stateFlow 连接建立 -> 通知发布 -> 连接断开
 * @rules 支持自动重连、QoS控制、遗嘱消息，发布失败计入统计
 * @dependencies github.com/eclipse/paho.mqtt.golang, encoding/json
 * @refs service/models/connector_models.go, service/event/forwarders.go
 */
package connectors

import (
	"dataquality-service/service/models"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTConnector MQTT连接器结构体
type MQTTConnector struct {
	config      *models.MQTTConfig
	client      mqtt.Client
	logger      *log.Logger
	mutex       sync.RWMutex
	isConnected bool
	stats       *MQTTStats
}

// MQTTStats MQTT连接器统计信息
type MQTTStats struct {
	ConnectedAt    time.Time `json:"connected_at"`    // 连接时间
	MessagesSent   int64     `json:"messages_sent"`   // 发送消息数
	BytesSent      int64     `json:"bytes_sent"`      // 发送字节数
	ReconnectCount int       `json:"reconnect_count"` // 重连次数
	ErrorCount     int64     `json:"error_count"`     // 错误计数
	LastError      string    `json:"last_error"`      // 最后错误信息
	mutex          sync.RWMutex
}

// NewMQTTConnector 创建新的MQTT连接器
func NewMQTTConnector(config *models.MQTTConfig, logger *log.Logger) *MQTTConnector {
	connector := &MQTTConnector{
		config:      config,
		logger:      logger,
		isConnected: false,
		stats:       &MQTTStats{},
	}

	// 配置MQTT客户端选项
	opts := mqtt.NewClientOptions()
	opts.AddBroker(config.Broker)
	opts.SetClientID(config.ClientID)

	if config.Username != "" {
		opts.SetUsername(config.Username)
		opts.SetPassword(config.Password)
	}

	opts.SetCleanSession(config.CleanSession)
	if config.KeepAlive > 0 {
		opts.SetKeepAlive(config.KeepAlive)
	}
	opts.SetAutoReconnect(config.AutoReconnect)
	if config.MaxReconnectInterval > 0 {
		opts.SetMaxReconnectInterval(config.MaxReconnectInterval)
	}

	// 遗嘱消息让运维侧能感知服务离线
	if config.WillConfig != nil {
		opts.SetWill(config.WillConfig.Topic, config.WillConfig.Payload,
			config.WillConfig.QoS, config.WillConfig.Retain)
	}

	// 设置连接处理器
	opts.SetOnConnectHandler(connector.onConnected)
	opts.SetConnectionLostHandler(connector.onConnectionLost)

	connector.client = mqtt.NewClient(opts)
	return connector
}

// Connect 建立MQTT连接
func (mc *MQTTConnector) Connect() error {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	if mc.isConnected {
		return nil
	}

	mc.logger.Printf("正在连接MQTT broker: %s", mc.config.Broker)

	// 连接到MQTT broker
	if token := mc.client.Connect(); token.Wait() && token.Error() != nil {
		mc.updateError(fmt.Sprintf("MQTT连接失败: %v", token.Error()))
		return fmt.Errorf("MQTT连接失败: %v", token.Error())
	}

	mc.isConnected = true
	mc.stats.ConnectedAt = time.Now()
	mc.logger.Printf("MQTT连接器已连接到broker: %s", mc.config.Broker)

	return nil
}

// Disconnect 断开MQTT连接
func (mc *MQTTConnector) Disconnect() error {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	if !mc.isConnected {
		return nil
	}

	mc.logger.Println("正在断开MQTT连接...")

	// 等待250ms让在途消息发送完成
	mc.client.Disconnect(250)

	mc.isConnected = false
	mc.logger.Println("MQTT连接器已断开连接")

	return nil
}

// Publish 发布消息
func (mc *MQTTConnector) Publish(message *models.MQTTMessage) error {
	mc.mutex.RLock()
	isConnected := mc.isConnected
	mc.mutex.RUnlock()

	if !isConnected {
		return fmt.Errorf("MQTT客户端未连接")
	}

	// 发布消息
	token := mc.client.Publish(message.Topic, message.QoS, message.Retained, message.Payload)
	if token.Wait() && token.Error() != nil {
		mc.updateError(fmt.Sprintf("发布消息失败: %v", token.Error()))
		return fmt.Errorf("发布消息失败: %v", token.Error())
	}

	// 更新统计信息
	mc.stats.mutex.Lock()
	mc.stats.MessagesSent++
	mc.stats.BytesSent += int64(len(message.Payload))
	mc.stats.mutex.Unlock()

	mc.logger.Printf("消息已发布到主题: %s (QoS: %d, Retained: %t)",
		message.Topic, message.QoS, message.Retained)
	return nil
}

// PublishJSON 把任意值序列化为JSON后发布
func (mc *MQTTConnector) PublishJSON(topic string, qos byte, retained bool, value interface{}) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("序列化消息载荷失败: %v", err)
	}

	return mc.Publish(&models.MQTTMessage{
		Topic:     topic,
		Payload:   payload,
		QoS:       qos,
		Retained:  retained,
		Timestamp: time.Now(),
	})
}

// PublishBatch 批量发布消息
func (mc *MQTTConnector) PublishBatch(messages []*models.MQTTMessage) error {
	if len(messages) == 0 {
		return nil
	}

	mc.mutex.RLock()
	isConnected := mc.isConnected
	mc.mutex.RUnlock()

	if !isConnected {
		return fmt.Errorf("MQTT客户端未连接")
	}

	var publishErrors []error
	sentCount := 0
	totalBytes := int64(0)

	for _, message := range messages {
		token := mc.client.Publish(message.Topic, message.QoS, message.Retained, message.Payload)
		if token.Wait() && token.Error() != nil {
			publishErrors = append(publishErrors,
				fmt.Errorf("发布消息失败 topic=%s: %v", message.Topic, token.Error()))
			continue
		}

		sentCount++
		totalBytes += int64(len(message.Payload))
	}

	// 更新统计信息
	mc.stats.mutex.Lock()
	mc.stats.MessagesSent += int64(sentCount)
	mc.stats.BytesSent += totalBytes
	mc.stats.mutex.Unlock()

	mc.logger.Printf("批量发布完成: 成功=%d, 失败=%d", sentCount, len(publishErrors))

	if len(publishErrors) > 0 {
		return fmt.Errorf("批量发布部分失败: %d个错误", len(publishErrors))
	}

	return nil
}

// onConnected 连接建立处理器
func (mc *MQTTConnector) onConnected(client mqtt.Client) {
	mc.mutex.Lock()
	mc.isConnected = true
	mc.stats.ConnectedAt = time.Now()
	mc.mutex.Unlock()

	mc.logger.Printf("MQTT连接已建立")
}

// onConnectionLost 连接丢失处理器
func (mc *MQTTConnector) onConnectionLost(client mqtt.Client, err error) {
	mc.mutex.Lock()
	mc.isConnected = false
	mc.stats.ReconnectCount++
	mc.mutex.Unlock()

	mc.updateError(fmt.Sprintf("MQTT连接丢失: %v", err))
	mc.logger.Printf("MQTT连接丢失: %v", err)
}

// updateError 更新错误信息
func (mc *MQTTConnector) updateError(errMsg string) {
	mc.stats.mutex.Lock()
	mc.stats.ErrorCount++
	mc.stats.LastError = errMsg
	mc.stats.mutex.Unlock()
}

// IsConnected 检查连接状态
func (mc *MQTTConnector) IsConnected() bool {
	mc.mutex.RLock()
	defer mc.mutex.RUnlock()
	return mc.isConnected
}

// GetStatistics 获取连接器统计信息
func (mc *MQTTConnector) GetStatistics() *models.ConnectorStatistics {
	mc.stats.mutex.RLock()
	defer mc.stats.mutex.RUnlock()

	mc.mutex.RLock()
	defer mc.mutex.RUnlock()

	status := "disconnected"
	var uptime time.Duration
	if mc.isConnected {
		status = "connected"
		uptime = time.Since(mc.stats.ConnectedAt)
	}

	return &models.ConnectorStatistics{
		ConnectorType:    "mqtt",
		ConnectionStatus: status,
		MessagesProduced: mc.stats.MessagesSent,
		ErrorCount:       mc.stats.ErrorCount,
		LastError:        mc.stats.LastError,
		Uptime:           uptime,
		Details: map[string]interface{}{
			"broker":          mc.config.Broker,
			"client_id":       mc.config.ClientID,
			"bytes_sent":      mc.stats.BytesSent,
			"reconnect_count": mc.stats.ReconnectCount,
		},
	}
}
