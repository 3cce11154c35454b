/*
 * @module service/config/config_service
 * @description 配置服务，提供业务层的配置读写和保留策略参数解析
 * @architecture 分层架构 - 业务服务层
 * @documentReference ai_docs/quality_pipeline_design.md
 * @stateFlow 服务调用 -> 配置管理器 -> 环境变量/缓存/数据库 -> 默认值兜底
 * @rules 保留天数配置非法或缺失时回退内置默认值，避免清理任务误删数据
 * @dependencies dataquality-service/service/models, gorm.io/gorm
 * @refs service/config/config_manager.go, service/cleanup/
 */

package config

import (
	"dataquality-service/service/models"
	"fmt"
	"strconv"

	"gorm.io/gorm"
)

// 系统配置键
const (
	// ConfigKeyRunRetentionDays 已结束流水线运行及其质量记录的保留天数
	ConfigKeyRunRetentionDays = "run_retention_days"
	// ConfigKeyEventRetentionDays 运行事件日志的保留天数
	ConfigKeyEventRetentionDays = "event_retention_days"
)

// 内置默认值
const (
	DefaultRunRetentionDays   = 90
	DefaultEventRetentionDays = 30
)

// ConfigService 配置服务
type ConfigService struct {
	db      *gorm.DB
	manager *ConfigManager
}

// NewConfigService 创建配置服务实例
func NewConfigService(db *gorm.DB) *ConfigService {
	return &ConfigService{
		db:      db,
		manager: NewConfigManager(db),
	}
}

// GetSystemConfig 获取系统配置
func (s *ConfigService) GetSystemConfig(key string) (string, error) {
	return s.manager.GetConfig(key)
}

// SetSystemConfig 设置系统配置
func (s *ConfigService) SetSystemConfig(key, value, description string) error {
	return s.manager.SetConfig(key, value, description)
}

// GetAllSystemConfigs 获取所有系统配置，数据库未覆盖的键补充内置默认值
func (s *ConfigService) GetAllSystemConfigs() ([]models.SystemConfigItem, error) {
	var configs []models.SystemConfig
	err := s.db.Where("environment = ?", defaultEnvironment).Order("key ASC").Find(&configs).Error
	if err != nil {
		return nil, fmt.Errorf("查询配置失败: %w", err)
	}

	items := make([]models.SystemConfigItem, 0, len(configs)+2)
	existingKeys := make(map[string]bool)
	for _, config := range configs {
		items = append(items, models.SystemConfigItem{
			Key:         config.Key,
			Value:       config.Value,
			Description: config.Description,
			ValueType:   "string", // 简化处理，都当字符串
		})
		existingKeys[config.Key] = true
	}

	if !existingKeys[ConfigKeyRunRetentionDays] {
		items = append(items, models.SystemConfigItem{
			Key:         ConfigKeyRunRetentionDays,
			Value:       strconv.Itoa(DefaultRunRetentionDays),
			Description: "已结束流水线运行及质量记录的保存天数",
			ValueType:   "int",
		})
	}

	if !existingKeys[ConfigKeyEventRetentionDays] {
		items = append(items, models.SystemConfigItem{
			Key:         ConfigKeyEventRetentionDays,
			Value:       strconv.Itoa(DefaultEventRetentionDays),
			Description: "运行事件日志的保存天数",
			ValueType:   "int",
		})
	}

	return items, nil
}

// GetRunRetentionDays 获取运行记录保留天数，配置缺失或非法时返回默认值
func (s *ConfigService) GetRunRetentionDays() (int, error) {
	return s.getRetentionDays(ConfigKeyRunRetentionDays, DefaultRunRetentionDays)
}

// GetEventRetentionDays 获取运行事件保留天数，配置缺失或非法时返回默认值
func (s *ConfigService) GetEventRetentionDays() (int, error) {
	return s.getRetentionDays(ConfigKeyEventRetentionDays, DefaultEventRetentionDays)
}

// LoadSeedFile 从YAML种子文件导入缺失的配置项，返回导入条数
func (s *ConfigService) LoadSeedFile(path string) (int, error) {
	return s.manager.LoadSeedFile(path)
}

// ClearCache 清除配置缓存
func (s *ConfigService) ClearCache() {
	s.manager.ClearCache()
}

func (s *ConfigService) getRetentionDays(key string, defaultDays int) (int, error) {
	valueStr, err := s.manager.GetConfig(key)
	if err != nil {
		return defaultDays, nil // 返回默认值
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultDays, nil // 解析失败返回默认值
	}
	if value <= 0 {
		return defaultDays, nil // 非法值返回默认值
	}

	return value, nil
}
