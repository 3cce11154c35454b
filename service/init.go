/*
 * @module service/init
 * @description 服务初始化模块，负责数据库连接、迁移、内置流水线种子化与各业务服务装配
 * @architecture 分层架构 - 服务层
 * @documentReference ai_docs/quality_pipeline_design.md
 * @stateFlow 应用启动时执行初始化流程
 * @rules 确保所有依赖服务正常启动后才提供API服务，外部组件不可用时降级运行
 * @dependencies gorm.io/gorm, gorm.io/driver/postgres
 * @refs service/database/migrate.go, service/pipeline_service.go
 */

package service

import (
	"fmt"
	"log"
	"os"
	"strings"

	"dataquality-service/client/connectors"
	"dataquality-service/service/cleanup"
	"dataquality-service/service/config"
	"dataquality-service/service/database"
	"dataquality-service/service/distributed_lock"
	"dataquality-service/service/event"
	"dataquality-service/service/models"
	"dataquality-service/service/monitoring"
	"dataquality-service/service/pipeline_engine"
	"dataquality-service/service/rate_limiter"
	"dataquality-service/service/scheduler"
	"dataquality-service/service/warehouse"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var (
	DB                       *gorm.DB
	GlobalConfigService      *config.ConfigService
	GlobalEventService       *event.EventService
	GlobalWarehouseStore     *warehouse.Store
	GlobalPipelineEngine     *pipeline_engine.PipelineEngine
	GlobalPipelineService    *PipelineService
	GlobalReportService      *QualityReportService
	GlobalAccessTokenService *AccessTokenService
	GlobalSchedulerService   *scheduler.PipelineScheduler
	GlobalCleanupService     *cleanup.RetentionCleanupService
	GlobalMonitorService     *monitoring.MonitorService
	GlobalPipelineMetrics    *monitoring.PipelineMetrics
	GlobalAlertEvaluator     *monitoring.QualityAlertEvaluator
	GlobalAlertDispatcher    *monitoring.AlertDispatcher
)

// Init 执行服务初始化，由入口在提供API服务前调用
func Init() {
	initDatabase()
	runMigrations()
	initServices()
}

// initDatabase 初始化数据库连接
func initDatabase() {
	var dsn string

	// 优先使用DATABASE_URL环境变量
	if databaseURL := os.Getenv("DATABASE_URL"); databaseURL != "" {
		dsn = databaseURL
	} else {
		// 使用分离的环境变量构建连接字符串
		host := getEnvWithDefault("DB_HOST", "localhost")
		port := getEnvWithDefault("DB_PORT", "5432")
		user := getEnvWithDefault("DB_USER", "postgres")
		password := getEnvWithDefault("DB_PASSWORD", "things2024")
		dbname := getEnvWithDefault("DB_NAME", "postgres")
		sslmode := getEnvWithDefault("DB_SSLMODE", "disable")
		schema := getEnvWithDefault("DB_SCHEMA", "public")

		dsn = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s search_path=%s TimeZone=Asia/Shanghai",
			host, port, user, password, dbname, sslmode, schema)
	}

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("数据库连接失败: %v", err)
	}

	log.Println("数据库连接成功")
}

// getEnvWithDefault 获取环境变量，如果不存在则返回默认值
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// runMigrations 运行数据库迁移
func runMigrations() {
	log.Println("开始运行数据库迁移...")

	if err := database.AutoMigrate(DB); err != nil {
		log.Fatalf("数据库迁移失败: %v", err)
	}
	log.Println("数据库表结构迁移完成")

	if err := database.InitializeData(DB); err != nil {
		log.Fatalf("基础数据初始化失败: %v", err)
	}
	log.Println("基础数据初始化完成")

	if err := database.AutoMigrateView(DB); err != nil {
		log.Fatalf("视图迁移失败: %v", err)
	}
	log.Println("视图迁移完成")

	log.Println("所有数据库迁移任务完成")
}

// initServices 初始化服务
func initServices() {
	// 配置服务优先初始化，其他服务依赖其中的保留策略等配置
	GlobalConfigService = config.NewConfigService(DB)
	if seedFile := os.Getenv("DATAQUALITY_CONFIG_FILE"); seedFile != "" {
		if count, err := GlobalConfigService.LoadSeedFile(seedFile); err != nil {
			log.Printf("导入配置种子文件失败: %v", err)
		} else {
			log.Printf("配置种子文件导入完成, 新增配置项=%d", count)
		}
	}

	// 事件服务与数据仓库
	GlobalEventService = event.NewEventService(DB)
	GlobalWarehouseStore = warehouse.NewStore(DB, getEnvWithDefault("DB_SCHEMA", "public"))

	// 流水线引擎，运行事件通过事件服务广播
	GlobalPipelineEngine = pipeline_engine.NewPipelineEngine(DB, GlobalWarehouseStore)
	GlobalPipelineEngine.SetEventPublisher(GlobalEventService)

	// Redis分布式锁与限流器不可用时降级为无保护运行
	var runLock distributed_lock.DistributedLock
	var lockExecutor *distributed_lock.LockExecutor
	if redisLock, err := distributed_lock.NewRedisLock(); err != nil {
		log.Printf("初始化Redis分布式锁失败, 并发运行保护停用: %v", err)
	} else {
		runLock = redisLock
		lockExecutor = distributed_lock.NewLockExecutor(redisLock)
	}

	rateLimiter, err := rate_limiter.NewRedisRateLimiter()
	if err != nil {
		log.Printf("初始化限流器失败, 触发限流停用: %v", err)
		rateLimiter = nil
	}

	GlobalPipelineService = NewPipelineService(DB, GlobalPipelineEngine, runLock, rateLimiter)
	if err := GlobalPipelineService.InitializeBuiltIns(); err != nil {
		log.Fatalf("内置流水线初始化失败: %v", err)
	}
	log.Println("内置流水线初始化完成")

	// 报告缓存与事件转发按外部组件可用性装配
	reportCache := initRedisCache()
	GlobalReportService = NewQualityReportService(DB, reportCache)
	GlobalAccessTokenService = NewAccessTokenService(DB)

	initEventForwarders()

	// 监控与告警
	GlobalPipelineMetrics = monitoring.NewPipelineMetrics(DB, prometheus.DefaultRegisterer)
	GlobalEventService.RegisterRunEventProcessor(GlobalPipelineMetrics)

	GlobalMonitorService = monitoring.NewMonitorService(DB, GlobalWarehouseStore)
	GlobalAlertEvaluator = monitoring.NewQualityAlertEvaluator(DB, monitoring.DefaultAlertThresholds())
	GlobalAlertDispatcher = monitoring.NewAlertDispatcher(&monitoring.LogNotifier{})
	if webhookURL := os.Getenv("ALERT_WEBHOOK_URL"); webhookURL != "" {
		GlobalAlertDispatcher.AddNotifier(monitoring.NewWebhookNotifier(webhookURL, nil))
	}
	GlobalEventService.RegisterRunEventProcessor(
		monitoring.NewRunAlertProcessor(GlobalAlertEvaluator, GlobalAlertDispatcher))

	// 调度器按定义表注册定时触发
	GlobalSchedulerService = scheduler.NewPipelineScheduler(DB, GlobalPipelineService)
	if err := GlobalSchedulerService.Start(); err != nil {
		log.Printf("启动流水线调度器失败: %v", err)
	}

	// 保留策略清理
	GlobalCleanupService = cleanup.NewRetentionCleanupService(DB, GlobalConfigService, GlobalWarehouseStore,
		lockExecutor, GlobalAccessTokenService, GlobalReportService)
	if err := GlobalCleanupService.StartScheduledCleanup(); err != nil {
		log.Printf("启动保留策略清理服务失败: %v", err)
	}

	log.Println("服务初始化完成")
}

// initRedisCache 初始化报告缓存用的Redis连接器，失败时返回nil以降级为直查数据库
func initRedisCache() ReportCache {
	connector := connectors.NewRedisConnector(&connectors.RedisConfig{
		Address:  fmt.Sprintf("%s:%s", getEnvWithDefault("REDIS_HOST", "localhost"), getEnvWithDefault("REDIS_PORT", "6379")),
		Password: os.Getenv("REDIS_PASSWORD"),
	}, log.Default())

	if err := connector.Connect(); err != nil {
		log.Printf("连接Redis失败, 报告缓存停用: %v", err)
		return nil
	}

	log.Println("报告缓存已启用")
	return connector
}

// initEventForwarders 按环境变量装配运行事件的外发通道
func initEventForwarders() {
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		topic := getEnvWithDefault("KAFKA_RUN_EVENTS_TOPIC", "quality.run_events")
		connector := connectors.NewKafkaConnector(&connectors.KafkaConfig{
			Brokers: strings.Split(brokers, ","),
			Topics:  []string{topic},
		}, log.Default())

		if err := connector.Connect(); err != nil {
			log.Printf("连接Kafka失败, 运行事件Kafka转发停用: %v", err)
		} else {
			GlobalEventService.RegisterRunEventProcessor(event.NewKafkaEventForwarder(connector, topic))
			log.Printf("运行事件Kafka转发已启用, topic=%s", topic)
		}
	}

	if broker := os.Getenv("MQTT_BROKER"); broker != "" {
		connector := connectors.NewMQTTConnector(&models.MQTTConfig{
			Broker:        broker,
			ClientID:      fmt.Sprintf("dataquality-service-%d", os.Getpid()),
			Username:      os.Getenv("MQTT_USERNAME"),
			Password:      os.Getenv("MQTT_PASSWORD"),
			AutoReconnect: true,
		}, log.Default())

		if err := connector.Connect(); err != nil {
			log.Printf("连接MQTT失败, 运行事件MQTT转发停用: %v", err)
		} else {
			GlobalEventService.RegisterRunEventProcessor(
				event.NewMQTTEventForwarder(connector, os.Getenv("MQTT_TOPIC_PREFIX"), 1))
			log.Println("运行事件MQTT转发已启用")
		}
	}

	if os.Getenv("REDIS_EVENTS_ENABLED") == "true" {
		connector := connectors.NewRedisConnector(&connectors.RedisConfig{
			Address:  fmt.Sprintf("%s:%s", getEnvWithDefault("REDIS_HOST", "localhost"), getEnvWithDefault("REDIS_PORT", "6379")),
			Password: os.Getenv("REDIS_PASSWORD"),
		}, log.Default())

		if err := connector.Connect(); err != nil {
			log.Printf("连接Redis失败, 运行事件Redis转发停用: %v", err)
		} else {
			GlobalEventService.RegisterRunEventProcessor(
				event.NewRedisEventForwarder(connector, os.Getenv("REDIS_EVENTS_CHANNEL")))
			log.Println("运行事件Redis转发已启用")
		}
	}
}
