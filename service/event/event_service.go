/*
 * @module service/event_service
 * @description 运行事件管理服务，提供SSE事件推送和数据库变更监听功能
 * @architecture 事件驱动架构 - 业务服务层
 * @documentReference ai_docs/patch_db_event.md
 * @stateFlow 运行事件落库 -> 处理器分发 -> SSE推送；跨实例事件经 pg_notify 转发
 * @rules 事件先持久化再分发，分发失败不阻塞流水线执行
 * @dependencies dataquality-service/service/models, gorm.io/gorm, github.com/lib/pq
 * @refs ai_docs/requirements.md
 */

package event

import (
	"context"
	"dataquality-service/service/models"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// getEnvWithDefault 获取环境变量，如果不存在则返回默认值
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// EventService 运行事件管理服务
type EventService struct {
	db              *gorm.DB
	connections     map[string]map[string]*SSEClient // userName -> connectionID -> client
	mu              sync.RWMutex
	processors      map[string][]models.RunEventProcessor // eventType -> processors
	dbListener      *pq.Listener
	ctx             context.Context
	cancel          context.CancelFunc
	functionCreated bool   // 标记通知函数是否已创建
	instance        string // 实例标识，用于跳过自己写入的跨实例通知
}

// SSEClient SSE客户端连接
type SSEClient struct {
	ID       string
	UserName string
	Channel  chan *models.RunEvent
	Done     chan bool
	ClientIP string
}

// NewEventService 创建事件服务实例
func NewEventService(db *gorm.DB) *EventService {
	ctx, cancel := context.WithCancel(context.Background())

	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "dataquality"
	}

	service := &EventService{
		db:          db,
		connections: make(map[string]map[string]*SSEClient),
		processors:  make(map[string][]models.RunEventProcessor),
		ctx:         ctx,
		cancel:      cancel,
		instance:    hostname,
	}

	// 启动数据库监听器
	go service.startDBListener()

	// 定期清理断开的连接
	go service.startConnectionCleanup()

	// 补建运行事件表的通知触发器
	go service.ensureRunEventTrigger()

	return service
}

// === SSE连接管理 ===

// AddSSEConnection 添加SSE连接
func (s *EventService) AddSSEConnection(userName, connectionID, clientIP string) *SSEClient {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connections[userName] == nil {
		s.connections[userName] = make(map[string]*SSEClient)
	}

	client := &SSEClient{
		ID:       connectionID,
		UserName: userName,
		Channel:  make(chan *models.RunEvent, 100), // 缓冲100个事件
		Done:     make(chan bool),
		ClientIP: clientIP,
	}

	s.connections[userName][connectionID] = client

	// 记录连接到数据库
	connection := &models.SSEConnection{
		UserName:     userName,
		ConnectionID: connectionID,
		ClientIP:     clientIP,
		ConnectedAt:  time.Now(),
		LastPingAt:   time.Now(),
		IsActive:     true,
	}
	s.db.Create(connection)

	log.Printf("SSE连接已建立: 用户=%s, 连接ID=%s, IP=%s", userName, connectionID, clientIP)
	return client
}

// RemoveSSEConnection 移除SSE连接
func (s *EventService) RemoveSSEConnection(userName, connectionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if userConnections, exists := s.connections[userName]; exists {
		if client, exists := userConnections[connectionID]; exists {
			close(client.Done)
			delete(userConnections, connectionID)

			if len(userConnections) == 0 {
				delete(s.connections, userName)
			}

			// 更新数据库连接状态
			s.db.Model(&models.SSEConnection{}).
				Where("connection_id = ?", connectionID).
				Update("is_active", false)

			log.Printf("SSE连接已断开: 用户=%s, 连接ID=%s", userName, connectionID)
		}
	}
}

// === 运行事件发布 ===

// PublishRunEvent 发布流水线运行事件
// 由流水线引擎在阶段推进时调用，事件先落库，再分发给处理器并推送到SSE客户端
func (s *EventService) PublishRunEvent(event *models.RunEvent) {
	if event.CreatedBy == "" {
		event.CreatedBy = s.instance
	}

	if err := s.db.Create(event).Error; err != nil {
		log.Printf("保存运行事件失败: %v", err)
		return
	}

	s.dispatchToProcessors(event)
	s.broadcastToClients(event)

	now := time.Now()
	if err := s.db.Model(event).Updates(map[string]interface{}{
		"sent":    true,
		"sent_at": now,
	}).Error; err != nil {
		log.Printf("更新事件发送状态失败: %v", err)
	}
}

// RegisterRunEventProcessor 注册运行事件处理器
// 处理器按 EventTypes 声明订阅的事件类型
func (s *EventService) RegisterRunEventProcessor(processor models.RunEventProcessor) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, eventType := range processor.EventTypes() {
		s.processors[eventType] = append(s.processors[eventType], processor)
	}

	log.Printf("运行事件处理器已注册: 订阅类型=%v", processor.EventTypes())
}

// dispatchToProcessors 把事件分发给订阅的处理器
// 处理器失败只记录日志，不影响其它处理器与流水线执行
func (s *EventService) dispatchToProcessors(event *models.RunEvent) {
	s.mu.RLock()
	processors := s.processors[event.EventType]
	s.mu.RUnlock()

	for _, processor := range processors {
		if err := processor.ProcessRunEvent(event); err != nil {
			log.Printf("事件处理器执行失败: 类型=%s, 运行=%s, 错误=%v",
				event.EventType, event.RunID, err)
		}
	}
}

// broadcastToClients 把事件推送给全部SSE客户端
func (s *EventService) broadcastToClients(event *models.RunEvent) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for userName, userConnections := range s.connections {
		for _, client := range userConnections {
			select {
			case client.Channel <- event:
			default:
				log.Printf("用户 %s 的连接 %s 事件队列已满，跳过推送", userName, client.ID)
			}
		}
	}
}

// === 数据库监听实现 ===

// startDBListener 启动数据库监听器
// 其它实例写入的运行事件经 pg_notify 转发到本实例的SSE客户端
func (s *EventService) startDBListener() {
	// 获取数据库连接信息
	connStr := os.Getenv("DATABASE_URL")
	if connStr == "" {
		// 从环境变量构建连接字符串
		host := getEnvWithDefault("DB_HOST", "localhost")
		port := getEnvWithDefault("DB_PORT", "5432")
		user := getEnvWithDefault("DB_USER", "postgres")
		password := getEnvWithDefault("DB_PASSWORD", "things2024")
		dbname := getEnvWithDefault("DB_NAME", "postgres")
		sslmode := getEnvWithDefault("DB_SSLMODE", "disable")

		connStr = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			host, port, user, password, dbname, sslmode)
	}

	// 创建PostgreSQL监听器
	s.dbListener = pq.NewListener(connStr, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			log.Printf("PostgreSQL监听器事件: %v, 错误: %v", ev, err)
		}
	})

	// 监听数据库通知
	if err := s.dbListener.Listen("quality_run_events"); err != nil {
		log.Printf("监听数据库通知失败: %v", err)
		return
	}

	log.Println("数据库监听器已启动")

	// 处理数据库通知
	for {
		select {
		case notification := <-s.dbListener.Notify:
			if notification != nil {
				s.handleDBNotification(notification)
			}
		case <-s.ctx.Done():
			log.Println("数据库监听器已停止")
			return
		}
	}
}

// handleDBNotification 处理数据库通知
// 只转发其它实例产生的事件，本实例的事件在发布时已直接推送
func (s *EventService) handleDBNotification(notification *pq.Notification) {
	var changeData map[string]interface{}
	if err := json.Unmarshal([]byte(notification.Extra), &changeData); err != nil {
		log.Printf("解析数据库通知失败: %v", err)
		return
	}

	tableName, _ := changeData["table"].(string)
	eventType, _ := changeData["type"].(string)
	if tableName != "run_events" || eventType != "INSERT" {
		return
	}

	newData, ok := changeData["new_data"].(map[string]interface{})
	if !ok {
		return
	}
	if createdBy, _ := newData["created_by"].(string); createdBy == s.instance {
		return
	}

	raw, err := json.Marshal(newData)
	if err != nil {
		log.Printf("序列化通知数据失败: %v", err)
		return
	}
	var event models.RunEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		log.Printf("还原运行事件失败: %v", err)
		return
	}

	log.Printf("收到跨实例运行事件: 类型=%s, 运行=%s, 来源=%s",
		event.EventType, event.RunID, event.CreatedBy)
	s.broadcastToClients(&event)
}

// startConnectionCleanup 周期清理已断开的SSE连接
func (s *EventService) startConnectionCleanup() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanupInactiveConnections()
		case <-s.ctx.Done():
			log.Println("连接清理任务已停止")
			return
		}
	}
}

// cleanupInactiveConnections 清理不活跃的连接
func (s *EventService) cleanupInactiveConnections() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for userName, userConnections := range s.connections {
		for connectionID, client := range userConnections {
			select {
			case <-client.Done:
				delete(userConnections, connectionID)
				log.Printf("清理已断开的连接: 用户=%s, 连接ID=%s", userName, connectionID)
			default:
				// 连接仍然活跃
			}
		}

		if len(userConnections) == 0 {
			delete(s.connections, userName)
		}
	}
}

// Stop 停止事件服务
func (s *EventService) Stop() {
	s.cancel()

	if s.dbListener != nil {
		s.dbListener.Close()
	}

	// 关闭所有SSE连接
	s.mu.Lock()
	for _, userConnections := range s.connections {
		for _, client := range userConnections {
			close(client.Done)
		}
	}
	s.connections = make(map[string]map[string]*SSEClient)
	s.mu.Unlock()

	log.Println("事件服务已停止")
}

// ensureRunEventTrigger 补建运行事件表的通知触发器
// INSERT通知是跨实例SSE推送的基础，缺失时自动创建
func (s *EventService) ensureRunEventTrigger() {
	if err := s.ensureTableTrigger("run_events"); err != nil {
		log.Printf("检查表 run_events 的触发器失败: %v", err)
	}
}

// ensureTableTrigger 检查指定表的通知触发器，不存在则创建
func (s *EventService) ensureTableTrigger(tableName string) error {
	triggerName := tableName + "_notify"

	var count int64
	err := s.db.Raw(
		`SELECT COUNT(*) FROM information_schema.triggers
		 WHERE trigger_name = ? AND event_object_table = ?`,
		triggerName, tableName).Scan(&count).Error
	if err != nil {
		return fmt.Errorf("查询触发器失败: %w", err)
	}

	if count > 0 {
		log.Printf("表 %s 的触发器 %s 已存在", tableName, triggerName)
		return nil
	}

	log.Printf("表 %s 缺少触发器 %s，正在创建", tableName, triggerName)
	if err := s.createTableTrigger(tableName, triggerName); err != nil {
		return fmt.Errorf("创建表 %s 的触发器失败: %w", tableName, err)
	}
	log.Printf("表 %s 的触发器 %s 创建完成", tableName, triggerName)
	return nil
}

// createTableTrigger 为指定表创建BEFORE INSERT通知触发器
func (s *EventService) createTableTrigger(tableName, triggerName string) error {
	if err := s.createNotifyFunction(); err != nil {
		return fmt.Errorf("创建通知函数失败: %w", err)
	}

	createTriggerSQL := fmt.Sprintf(`
		CREATE OR REPLACE TRIGGER %s
		BEFORE INSERT ON %s
		FOR EACH ROW
		EXECUTE FUNCTION notify_quality_run_events();
	`, triggerName, tableName)

	if err := s.db.Exec(createTriggerSQL).Error; err != nil {
		return fmt.Errorf("执行创建触发器SQL失败: %w", err)
	}

	return nil
}

// createNotifyFunction 创建数据库通知函数
func (s *EventService) createNotifyFunction() error {
	if s.functionCreated {
		return nil
	}

	createFunctionSQL := `
CREATE OR REPLACE FUNCTION notify_quality_run_events()
RETURNS TRIGGER AS $$
DECLARE
    payload JSON;
BEGIN
    payload := json_build_object(
        'table', TG_TABLE_NAME,
        'type', TG_OP,
        'record_id', NEW.id,
        'new_data', row_to_json(NEW),
        'timestamp', extract(epoch from now())
    );

    -- 发送通知
    PERFORM pg_notify('quality_run_events', payload::text);

    RETURN NEW;
END;
$$ LANGUAGE plpgsql;`

	if err := s.db.Exec(createFunctionSQL).Error; err != nil {
		return fmt.Errorf("执行创建函数SQL失败: %v", err)
	}

	log.Println("数据库通知函数 notify_quality_run_events() 已创建")
	s.functionCreated = true
	return nil
}

// GetSSEConnectionList 获取SSE连接列表
func (s *EventService) GetSSEConnectionList(page, pageSize int, userName, clientIP string, isActive *bool) ([]models.SSEConnection, int64, error) {
	var connections []models.SSEConnection
	var total int64

	query := s.db.Model(&models.SSEConnection{})

	// 添加过滤条件
	if userName != "" {
		query = query.Where("user_name = ?", userName)
	}
	if clientIP != "" {
		query = query.Where("client_ip = ?", clientIP)
	}
	if isActive != nil {
		query = query.Where("is_active = ?", *isActive)
	}

	// 获取总数
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// 分页查询
	offset := (page - 1) * pageSize
	err := query.Order("connected_at DESC").
		Offset(offset).Limit(pageSize).Find(&connections).Error

	return connections, total, err
}

// GetRunEventList 获取运行事件历史列表
func (s *EventService) GetRunEventList(page, pageSize int, pipelineID, runID, eventType string) ([]models.RunEvent, int64, error) {
	var events []models.RunEvent
	var total int64

	query := s.db.Model(&models.RunEvent{})

	// 添加过滤条件
	if pipelineID != "" {
		query = query.Where("pipeline_id = ?", pipelineID)
	}
	if runID != "" {
		query = query.Where("run_id = ?", runID)
	}
	if eventType != "" {
		query = query.Where("event_type = ?", eventType)
	}

	// 获取总数
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// 分页查询
	offset := (page - 1) * pageSize
	err := query.Order("created_at DESC").
		Offset(offset).Limit(pageSize).Find(&events).Error

	return events, total, err
}
