/*
 * @module service/database/migrate
 * @description 数据库迁移模块，负责创建和更新数据库表结构
 * @architecture 数据访问层 - 迁移管理
 * @documentReference dev_docs/model.md
 * @stateFlow 应用启动时执行数据库迁移
 * @rules 确保数据库结构与模型定义保持一致
 * @dependencies dataquality-service/service/models, gorm.io/gorm
 * @refs dev_docs/backend_requirements.md, service/models/pipeline_models.go
 */

package database

import (
	"dataquality-service/service/models"
	"log"

	"gorm.io/gorm"
)

// AutoMigrate 自动迁移数据库表结构
func AutoMigrate(db *gorm.DB) error {
	log.Println("开始数据库迁移...")

	// 流水线定义与运行相关表
	err := db.AutoMigrate(
		&models.PipelineDefinition{},
		&models.AnomalyRuleConfig{},
		&models.PipelineRun{},
		&models.StageRun{},
	)
	if err != nil {
		return err
	}

	// 质量报告相关表
	err = db.AutoMigrate(
		&models.ColumnProfileRecord{},
		&models.DedupStatRecord{},
		&models.QuantileBoundsRecord{},
		&models.CappingVerifyRecord{},
		&models.AnomalyFlagRecord{},
	)
	if err != nil {
		return err
	}

	// 访问控制相关表
	err = db.AutoMigrate(
		&models.AccessToken{},
	)
	if err != nil {
		return err
	}

	// 系统配置表
	err = db.AutoMigrate(
		&models.SystemConfig{},
	)
	if err != nil {
		return err
	}

	// 事件管理相关表
	err = db.AutoMigrate(
		&models.RunEvent{},
		&models.SSEConnection{},
	)
	if err != nil {
		return err
	}

	log.Println("数据库迁移完成")
	return nil
}

// InitializeData 初始化基础数据
func InitializeData(db *gorm.DB) error {
	log.Println("开始初始化基础数据...")

	// 流水线阶段类型，固定顺序执行
	stageTypes := []string{
		models.StageTypeProfile, // 缺失度画像
		models.StageTypeDedup,   // 组合键去重
		models.StageTypeOutlier, // 离群值封顶
		models.StageTypeFlag,    // 业务异常标记
	}

	// 支持的分位数算法
	quantileMethods := []string{
		"auto",  // 按数据规模自动选择
		"exact", // 精确排序计算
		"p2",    // P² 流式估计
	}

	// 规则条件支持的比较运算符
	ruleOperators := []string{
		"eq", "ne", "gt", "lt", "gte", "lte",
	}

	log.Printf("支持的流水线阶段: %v", stageTypes)
	log.Printf("支持的分位数算法: %v", quantileMethods)
	log.Printf("支持的规则运算符: %v", ruleOperators)

	log.Println("基础数据初始化完成")
	return nil
}
