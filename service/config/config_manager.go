/*
 * @module service/config/config_manager
 * @description 配置管理器，按 环境变量 > 进程内缓存 > 数据库 的顺序解析配置，并支持从YAML种子文件导入缺省配置
 * @architecture 分层架构 - 业务服务层
 * @documentReference ai_docs/quality_pipeline_design.md
 * @stateFlow 配置读取 -> 环境变量覆盖 -> 缓存命中 -> 数据库加载 -> 缓存回填
 * @rules 环境变量优先级最高且不落库，数据库配置按 key+environment 唯一，缓存过期后重新加载
 * @dependencies dataquality-service/service/models, gorm.io/gorm, gopkg.in/yaml.v3
 * @refs service/config/config_service.go, service/models/system_config.go
 */

package config

import (
	"dataquality-service/service/models"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

const (
	// 环境变量覆盖前缀，配置键 run_retention_days 对应 DATAQUALITY_RUN_RETENTION_DAYS
	envPrefix = "DATAQUALITY_"
	// 数据库配置统一存放在 default 环境下
	defaultEnvironment = "default"
	// 数据库配置的进程内缓存时长
	configCacheTTL = 5 * time.Minute
)

// cachedValue 带过期时间的配置缓存项
type cachedValue struct {
	value     string
	expiresAt time.Time
}

// ConfigManager 配置管理器
type ConfigManager struct {
	db         *gorm.DB
	cache      map[string]cachedValue
	cacheMutex sync.RWMutex
}

// NewConfigManager 创建配置管理器实例
func NewConfigManager(db *gorm.DB) *ConfigManager {
	return &ConfigManager{
		db:    db,
		cache: make(map[string]cachedValue),
	}
}

// GetConfig 读取配置值，优先级为 环境变量 > 缓存 > 数据库
func (m *ConfigManager) GetConfig(key string) (string, error) {
	if value, ok := os.LookupEnv(EnvKeyFor(key)); ok {
		return value, nil
	}

	m.cacheMutex.RLock()
	entry, ok := m.cache[key]
	m.cacheMutex.RUnlock()
	if ok && time.Now().Before(entry.expiresAt) {
		return entry.value, nil
	}

	var config models.SystemConfig
	err := m.db.Where("key = ? AND environment = ?", key, defaultEnvironment).First(&config).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("配置 %s 不存在", key)
		}
		return "", fmt.Errorf("查询配置失败: %w", err)
	}

	m.storeCache(key, config.Value)
	return config.Value, nil
}

// SetConfig 写入配置并刷新缓存，已存在的键按 key+environment 更新
func (m *ConfigManager) SetConfig(key, value, description string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("配置键不能为空")
	}

	var config models.SystemConfig
	err := m.db.Where("key = ? AND environment = ?", key, defaultEnvironment).First(&config).Error
	switch {
	case err == nil:
		updates := map[string]interface{}{"value": value}
		if description != "" {
			updates["description"] = description
		}
		if err := m.db.Model(&config).Updates(updates).Error; err != nil {
			return fmt.Errorf("更新配置失败: %w", err)
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		config = models.SystemConfig{
			Key:         key,
			Value:       value,
			Environment: defaultEnvironment,
			Description: description,
		}
		if err := m.db.Create(&config).Error; err != nil {
			return fmt.Errorf("创建配置失败: %w", err)
		}
	default:
		return fmt.Errorf("查询配置失败: %w", err)
	}

	m.storeCache(key, value)
	return nil
}

// ClearCache 清空配置缓存，下次读取时重新加载数据库
func (m *ConfigManager) ClearCache() {
	m.cacheMutex.Lock()
	m.cache = make(map[string]cachedValue)
	m.cacheMutex.Unlock()
}

// seedFile 配置种子文件结构
type seedFile struct {
	Configs []seedEntry `yaml:"configs"`
}

// seedEntry 单条配置种子
type seedEntry struct {
	Key         string `yaml:"key"`
	Value       string `yaml:"value"`
	Description string `yaml:"description"`
}

// LoadSeedFile 从YAML种子文件导入配置，只补充数据库中不存在的键，返回导入条数
func (m *ConfigManager) LoadSeedFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("读取配置种子文件失败: %w", err)
	}

	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return 0, fmt.Errorf("解析配置种子文件失败: %w", err)
	}

	applied := 0
	for _, entry := range seed.Configs {
		if strings.TrimSpace(entry.Key) == "" {
			continue
		}

		var count int64
		if err := m.db.Model(&models.SystemConfig{}).
			Where("key = ? AND environment = ?", entry.Key, defaultEnvironment).
			Count(&count).Error; err != nil {
			return applied, fmt.Errorf("检查配置 %s 失败: %w", entry.Key, err)
		}
		if count > 0 {
			continue
		}

		config := models.SystemConfig{
			Key:         entry.Key,
			Value:       entry.Value,
			Environment: defaultEnvironment,
			Description: entry.Description,
		}
		if err := m.db.Create(&config).Error; err != nil {
			return applied, fmt.Errorf("导入配置 %s 失败: %w", entry.Key, err)
		}
		applied++
	}

	return applied, nil
}

// EnvKeyFor 返回配置键对应的环境变量名
func EnvKeyFor(key string) string {
	normalized := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
	return envPrefix + normalized
}

func (m *ConfigManager) storeCache(key, value string) {
	m.cacheMutex.Lock()
	m.cache[key] = cachedValue{
		value:     value,
		expiresAt: time.Now().Add(configCacheTTL),
	}
	m.cacheMutex.Unlock()
}
