/*
 * @module KafkaConnector
 * @description Kafka连接器，封装kafka-go生产者，负责把流水线运行事件发布到外部消息总线
 * @architecture 适配器模式 - 封装第三方Kafka客户端，提供统一的接口
 * @documentReference ai_docs/quality_pipeline_design.md
 * @stateFlow 连接建立 -> 事件发布 -> 连接断开
 * @rules 发布失败只记录日志并计入统计，不阻塞流水线执行
 * @dependencies github.com/segmentio/kafka-go, encoding/json
 * @refs service/models/connector_models.go, service/event/forwarders.go
 */
package connectors

import (
	"context"
	"dataquality-service/service/models"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaConnector Kafka连接器结构体
type KafkaConnector struct {
	config      *KafkaConfig
	writers     map[string]*kafka.Writer // 按topic分组的生产者
	mutex       sync.RWMutex
	logger      *log.Logger
	ctx         context.Context
	cancel      context.CancelFunc
	isConnected bool
	connectedAt time.Time
	sentCount   int64
	errorCount  int64
	lastError   string
}

// 使用models包中定义的类型
type KafkaConfig = models.KafkaConfig
type SecurityConfig = models.SecurityConfig
type ProducerConfig = models.ProducerConfig
type KafkaMessage = models.KafkaMessage

// NewKafkaConnector 创建新的Kafka连接器
func NewKafkaConnector(config *KafkaConfig, logger *log.Logger) *KafkaConnector {
	ctx, cancel := context.WithCancel(context.Background())

	if config.ConnectionTimeout <= 0 {
		config.ConnectionTimeout = 10 * time.Second
	}
	if config.ProducerConfig == nil {
		config.ProducerConfig = &ProducerConfig{RequiredAcks: 1}
	}

	return &KafkaConnector{
		config:      config,
		writers:     make(map[string]*kafka.Writer),
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
		isConnected: false,
	}
}

// Connect 建立Kafka连接
func (kc *KafkaConnector) Connect() error {
	kc.mutex.Lock()
	defer kc.mutex.Unlock()

	if kc.isConnected {
		return nil
	}

	if len(kc.config.Brokers) == 0 {
		return fmt.Errorf("未配置Kafka broker地址")
	}

	// 初始化生产者
	for _, topic := range kc.config.Topics {
		writer := &kafka.Writer{
			Addr:         kafka.TCP(kc.config.Brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequiredAcks(kc.config.ProducerConfig.RequiredAcks),
			Async:        kc.config.ProducerConfig.Async,
		}

		if kc.config.ProducerConfig.BatchSize > 0 {
			writer.BatchSize = kc.config.ProducerConfig.BatchSize
		}
		if kc.config.ProducerConfig.BatchTimeout > 0 {
			writer.BatchTimeout = kc.config.ProducerConfig.BatchTimeout
		}

		kc.writers[topic] = writer
	}

	kc.isConnected = true
	kc.connectedAt = time.Now()
	kc.logger.Printf("Kafka连接器已连接到brokers: %v", kc.config.Brokers)
	return nil
}

// Disconnect 断开Kafka连接
func (kc *KafkaConnector) Disconnect() error {
	kc.mutex.Lock()
	defer kc.mutex.Unlock()

	if !kc.isConnected {
		return nil
	}

	// 关闭所有生产者
	for topic, writer := range kc.writers {
		if err := writer.Close(); err != nil {
			kc.logger.Printf("关闭生产者失败 topic=%s: %v", topic, err)
		}
	}

	kc.cancel()
	kc.isConnected = false
	kc.logger.Println("Kafka连接器已断开连接")
	return nil
}

// ProduceMessage 发送消息
func (kc *KafkaConnector) ProduceMessage(message *KafkaMessage) error {
	kc.mutex.RLock()
	writer, exists := kc.writers[message.Topic]
	kc.mutex.RUnlock()

	if !exists {
		return fmt.Errorf("找不到topic的生产者: %s", message.Topic)
	}

	// 序列化消息值
	valueBytes, err := kc.serializeValue(message.Value)
	if err != nil {
		kc.recordError(fmt.Sprintf("序列化消息值失败: %v", err))
		return fmt.Errorf("序列化消息值失败: %v", err)
	}

	// 构建Kafka消息
	kafkaMsg := kafka.Message{
		Key:   []byte(message.Key),
		Value: valueBytes,
		Time:  message.Timestamp,
	}

	// 添加消息头
	if message.Headers != nil {
		for key, value := range message.Headers {
			kafkaMsg.Headers = append(kafkaMsg.Headers, kafka.Header{
				Key:   key,
				Value: []byte(value),
			})
		}
	}

	// 添加自定义头部
	if kc.config.CustomHeaders != nil {
		for key, value := range kc.config.CustomHeaders {
			kafkaMsg.Headers = append(kafkaMsg.Headers, kafka.Header{
				Key:   key,
				Value: []byte(value),
			})
		}
	}

	// 发送消息
	ctx, cancel := context.WithTimeout(kc.ctx, kc.config.ConnectionTimeout)
	defer cancel()

	if err := writer.WriteMessages(ctx, kafkaMsg); err != nil {
		kc.recordError(fmt.Sprintf("发送消息失败: %v", err))
		return fmt.Errorf("发送消息失败: %v", err)
	}

	kc.mutex.Lock()
	kc.sentCount++
	kc.mutex.Unlock()

	kc.logger.Printf("消息已发送到topic: %s, key: %s", message.Topic, message.Key)
	return nil
}

// ProduceBatchMessages 批量发送消息
func (kc *KafkaConnector) ProduceBatchMessages(messages []*KafkaMessage) error {
	if len(messages) == 0 {
		return nil
	}

	// 按topic分组消息
	topicMessages := make(map[string][]kafka.Message)

	for _, message := range messages {
		valueBytes, err := kc.serializeValue(message.Value)
		if err != nil {
			kc.logger.Printf("序列化消息值失败 topic=%s key=%s: %v",
				message.Topic, message.Key, err)
			continue
		}

		kafkaMsg := kafka.Message{
			Key:   []byte(message.Key),
			Value: valueBytes,
			Time:  message.Timestamp,
		}

		// 添加消息头
		if message.Headers != nil {
			for key, value := range message.Headers {
				kafkaMsg.Headers = append(kafkaMsg.Headers, kafka.Header{
					Key:   key,
					Value: []byte(value),
				})
			}
		}

		topicMessages[message.Topic] = append(topicMessages[message.Topic], kafkaMsg)
	}

	// 按topic批量发送
	for topic, msgs := range topicMessages {
		kc.mutex.RLock()
		writer, exists := kc.writers[topic]
		kc.mutex.RUnlock()

		if !exists {
			kc.logger.Printf("找不到topic的生产者: %s", topic)
			continue
		}

		ctx, cancel := context.WithTimeout(kc.ctx, kc.config.ConnectionTimeout)
		err := writer.WriteMessages(ctx, msgs...)
		cancel()

		if err != nil {
			kc.recordError(fmt.Sprintf("批量发送消息失败 topic=%s: %v", topic, err))
		} else {
			kc.mutex.Lock()
			kc.sentCount += int64(len(msgs))
			kc.mutex.Unlock()
			kc.logger.Printf("批量发送 %d 条消息到topic: %s", len(msgs), topic)
		}
	}

	return nil
}

// serializeValue 序列化消息值
func (kc *KafkaConnector) serializeValue(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return json.Marshal(v)
	}
}

// recordError 记录错误信息
func (kc *KafkaConnector) recordError(errMsg string) {
	kc.mutex.Lock()
	kc.errorCount++
	kc.lastError = errMsg
	kc.mutex.Unlock()
}

// IsConnected 检查连接状态
func (kc *KafkaConnector) IsConnected() bool {
	kc.mutex.RLock()
	defer kc.mutex.RUnlock()
	return kc.isConnected
}

// GetConnectedTopics 获取已连接的主题列表
func (kc *KafkaConnector) GetConnectedTopics() []string {
	kc.mutex.RLock()
	defer kc.mutex.RUnlock()

	topics := make([]string, 0, len(kc.writers))
	for topic := range kc.writers {
		topics = append(topics, topic)
	}
	return topics
}

// GetStatistics 获取连接器统计信息
func (kc *KafkaConnector) GetStatistics() *models.ConnectorStatistics {
	kc.mutex.RLock()
	defer kc.mutex.RUnlock()

	status := "disconnected"
	var uptime time.Duration
	if kc.isConnected {
		status = "connected"
		uptime = time.Since(kc.connectedAt)
	}

	return &models.ConnectorStatistics{
		ConnectorType:    "kafka",
		ConnectionStatus: status,
		MessagesProduced: kc.sentCount,
		ErrorCount:       kc.errorCount,
		LastError:        kc.lastError,
		Uptime:           uptime,
		Details: map[string]interface{}{
			"brokers":           kc.config.Brokers,
			"configured_topics": kc.config.Topics,
			"writer_count":      len(kc.writers),
		},
	}
}
