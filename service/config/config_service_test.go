/*
 * @module service/config/config_service_test
 * @description 配置服务单元测试，覆盖分层读取、缓存、种子文件导入和保留天数解析
 * @architecture 测试层
 * @documentReference ai_docs/quality_pipeline_design.md
 * @stateFlow 构造内存数据库 -> 写入配置 -> 验证读取优先级与默认值兜底
 * @rules 使用sqlite内存库，环境变量覆盖通过t.Setenv隔离
 * @dependencies dataquality-service/testutil, github.com/stretchr/testify
 * @refs service/config/config_service.go, service/config/config_manager.go
 */

package config

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"dataquality-service/service/models"
	"dataquality-service/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConfigService(t *testing.T) (*ConfigService, *testutil.TestDB) {
	t.Helper()

	tdb := testutil.NewTestDB()
	t.Cleanup(tdb.Close)

	return NewConfigService(tdb.DB), tdb
}

func TestGetSystemConfigMissing(t *testing.T) {
	service, _ := newTestConfigService(t)

	_, err := service.GetSystemConfig("no_such_key")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "不存在")
}

func TestSetSystemConfigCreatesAndUpdates(t *testing.T) {
	service, tdb := newTestConfigService(t)

	require.NoError(t, service.SetSystemConfig("run_retention_days", "45", "运行保留天数"))

	value, err := service.GetSystemConfig("run_retention_days")
	require.NoError(t, err)
	assert.Equal(t, "45", value)

	// 再次写入同一键应更新而非新增
	require.NoError(t, service.SetSystemConfig("run_retention_days", "60", ""))

	var count int64
	require.NoError(t, tdb.DB.Model(&models.SystemConfig{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	var config models.SystemConfig
	require.NoError(t, tdb.DB.Where("key = ?", "run_retention_days").First(&config).Error)
	assert.Equal(t, "60", config.Value)
	assert.Equal(t, "运行保留天数", config.Description, "空描述不应覆盖已有描述")
	assert.NotEmpty(t, config.ID)
	assert.Equal(t, "default", config.Environment)
}

func TestSetSystemConfigRejectsEmptyKey(t *testing.T) {
	service, _ := newTestConfigService(t)

	err := service.SetSystemConfig("  ", "value", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "配置键不能为空")
}

func TestGetSystemConfigEnvOverride(t *testing.T) {
	service, _ := newTestConfigService(t)

	require.NoError(t, service.SetSystemConfig("event_retention_days", "30", ""))
	t.Setenv(EnvKeyFor("event_retention_days"), "7")

	value, err := service.GetSystemConfig("event_retention_days")
	require.NoError(t, err)
	assert.Equal(t, "7", value, "环境变量应优先于数据库取值")
}

func TestGetSystemConfigUsesCache(t *testing.T) {
	service, tdb := newTestConfigService(t)

	require.NoError(t, service.SetSystemConfig("cached_key", "v1", ""))

	value, err := service.GetSystemConfig("cached_key")
	require.NoError(t, err)
	assert.Equal(t, "v1", value)

	// 直接清空数据库后缓存仍应命中
	require.NoError(t, tdb.DB.Exec("DELETE FROM system_configs").Error)

	value, err = service.GetSystemConfig("cached_key")
	require.NoError(t, err)
	assert.Equal(t, "v1", value)

	// 清除缓存后回源数据库，键已不存在
	service.ClearCache()
	_, err = service.GetSystemConfig("cached_key")
	require.Error(t, err)
}

func TestLoadSeedFile(t *testing.T) {
	service, tdb := newTestConfigService(t)

	seedPath := filepath.Join(t.TempDir(), "seed.yaml")
	seedContent := `configs:
  - key: run_retention_days
    value: "120"
    description: 运行保留天数
  - key: event_retention_days
    value: "14"
  - key: ""
    value: ignored
`
	require.NoError(t, os.WriteFile(seedPath, []byte(seedContent), 0o644))

	applied, err := service.LoadSeedFile(seedPath)
	require.NoError(t, err)
	assert.Equal(t, 2, applied, "空键应被跳过")

	value, err := service.GetSystemConfig("run_retention_days")
	require.NoError(t, err)
	assert.Equal(t, "120", value)

	// 重复导入不覆盖已有配置
	require.NoError(t, service.SetSystemConfig("run_retention_days", "90", ""))
	applied, err = service.LoadSeedFile(seedPath)
	require.NoError(t, err)
	assert.Equal(t, 0, applied)

	var config models.SystemConfig
	require.NoError(t, tdb.DB.Where("key = ?", "run_retention_days").First(&config).Error)
	assert.Equal(t, "90", config.Value, "种子文件不应覆盖数据库中已有的值")
}

func TestLoadSeedFileMissingFile(t *testing.T) {
	service, _ := newTestConfigService(t)

	_, err := service.LoadSeedFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "读取配置种子文件失败")
}

func TestGetRunRetentionDays(t *testing.T) {
	service, _ := newTestConfigService(t)

	tests := []struct {
		name  string
		value string
		want  int
	}{
		{name: "缺失时返回默认值", value: "", want: DefaultRunRetentionDays},
		{name: "正常值", value: "45", want: 45},
		{name: "非数字返回默认值", value: "abc", want: DefaultRunRetentionDays},
		{name: "非正数返回默认值", value: "-5", want: DefaultRunRetentionDays},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value != "" {
				require.NoError(t, service.SetSystemConfig(ConfigKeyRunRetentionDays, tt.value, ""))
			}
			service.ClearCache()

			days, err := service.GetRunRetentionDays()
			require.NoError(t, err)
			assert.Equal(t, tt.want, days)
		})
	}
}

func TestGetEventRetentionDays(t *testing.T) {
	service, _ := newTestConfigService(t)

	days, err := service.GetEventRetentionDays()
	require.NoError(t, err)
	assert.Equal(t, DefaultEventRetentionDays, days)

	require.NoError(t, service.SetSystemConfig(ConfigKeyEventRetentionDays, "10", ""))
	days, err = service.GetEventRetentionDays()
	require.NoError(t, err)
	assert.Equal(t, 10, days)
}

func TestGetAllSystemConfigsMergesDefaults(t *testing.T) {
	service, _ := newTestConfigService(t)

	items, err := service.GetAllSystemConfigs()
	require.NoError(t, err)
	require.Len(t, items, 2)

	byKey := make(map[string]models.SystemConfigItem)
	for _, item := range items {
		byKey[item.Key] = item
	}
	assert.Equal(t, strconv.Itoa(DefaultRunRetentionDays), byKey[ConfigKeyRunRetentionDays].Value)
	assert.Equal(t, "int", byKey[ConfigKeyRunRetentionDays].ValueType)
	assert.Equal(t, strconv.Itoa(DefaultEventRetentionDays), byKey[ConfigKeyEventRetentionDays].Value)

	// 数据库中的配置优先于默认值
	require.NoError(t, service.SetSystemConfig(ConfigKeyRunRetentionDays, "45", "自定义保留天数"))
	require.NoError(t, service.SetSystemConfig("custom_key", "custom", ""))

	items, err = service.GetAllSystemConfigs()
	require.NoError(t, err)
	require.Len(t, items, 3)

	byKey = make(map[string]models.SystemConfigItem)
	for _, item := range items {
		byKey[item.Key] = item
	}
	assert.Equal(t, "45", byKey[ConfigKeyRunRetentionDays].Value)
	assert.Equal(t, "string", byKey[ConfigKeyRunRetentionDays].ValueType)
	assert.Equal(t, "custom", byKey["custom_key"].Value)
}

func TestEnvKeyFor(t *testing.T) {
	assert.Equal(t, "DATAQUALITY_RUN_RETENTION_DAYS", EnvKeyFor("run_retention_days"))
	assert.Equal(t, "DATAQUALITY_CLEANUP_BATCH_SIZE", EnvKeyFor("cleanup.batch_size"))
}
