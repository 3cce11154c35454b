/*
 * @module service/utils/data_converter
 * @description 数据转换工具，为暂存区装载提供编码转换、单元格规整与类型转换能力
 * @architecture 工具函数模式 - 无状态转换方法集合
 * @documentReference ai_docs/quality_pipeline_design.md
 * @stateFlow 无状态转换：输入 -> 转换逻辑 -> 输出
 * @rules 遗留导出文件按GBK转码为UTF-8后入库，类型转换失败返回错误而不是静默截断
 * @dependencies github.com/spf13/cast, golang.org/x/text/encoding/simplifiedchinese
 * @refs service/warehouse/staging_loader.go
 */

package utils

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

// DataConverter 数据转换器
type DataConverter struct{}

// NewDataConverter 创建数据转换器实例
func NewDataConverter() *DataConverter {
	return &DataConverter{}
}

// ToString 转换为字符串，时间统一输出RFC3339，复合结构输出JSON
func (dc *DataConverter) ToString(value interface{}) string {
	if t, ok := value.(time.Time); ok {
		return t.Format(time.RFC3339)
	}
	if s, err := cast.ToStringE(value); err == nil {
		return s
	}
	if data, err := json.Marshal(value); err == nil {
		return string(data)
	}
	return fmt.Sprintf("%v", value)
}

// ToInt 转换为整数，浮点输入截断小数部分
// 字符串输入按严格整数解析，"123.45" 这类带小数的字符串返回错误而不是静默截断
func (dc *DataConverter) ToInt(value interface{}) (int, error) {
	if value == nil {
		return 0, fmt.Errorf("nil值无法转换为整数")
	}
	if s, ok := value.(string); ok {
		n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("无法将 %v (%T) 转换为整数", value, value)
		}
		return int(n), nil
	}
	n, err := cast.ToIntE(value)
	if err != nil {
		return 0, fmt.Errorf("无法将 %v (%T) 转换为整数", value, value)
	}
	return n, nil
}

// ToFloat 转换为浮点数
func (dc *DataConverter) ToFloat(value interface{}) (float64, error) {
	if value == nil {
		return 0, fmt.Errorf("nil值无法转换为浮点数")
	}
	f, err := cast.ToFloat64E(value)
	if err != nil {
		return 0, fmt.Errorf("无法将 %v (%T) 转换为浮点数", value, value)
	}
	return f, nil
}

// ToBool 转换为布尔值，数值按非零即真处理
func (dc *DataConverter) ToBool(value interface{}) (bool, error) {
	if value == nil {
		return false, fmt.Errorf("nil值无法转换为布尔值")
	}
	b, err := cast.ToBoolE(value)
	if err != nil {
		return false, fmt.Errorf("无法将 %v (%T) 转换为布尔值", value, value)
	}
	return b, nil
}

// ConvertType 按目标类型名做通用类型转换，不支持的类型保持原样
func (dc *DataConverter) ConvertType(value interface{}, targetType string) (interface{}, error) {
	if value == nil {
		return nil, nil
	}

	switch strings.ToLower(targetType) {
	case "string", "varchar", "text":
		return dc.ToString(value), nil
	case "int", "integer", "int32":
		return dc.ToInt(value)
	case "int64", "bigint":
		intVal, err := dc.ToInt(value)
		if err != nil {
			return nil, err
		}
		return int64(intVal), nil
	case "float64", "double", "numeric":
		return dc.ToFloat(value)
	case "bool", "boolean":
		return dc.ToBool(value)
	default:
		return value, nil
	}
}

// ConvertEncoding 编码转换，目前覆盖遗留导出常见的GBK/GB2312与UTF-8互转
func (dc *DataConverter) ConvertEncoding(data []byte, fromEncoding, toEncoding string) ([]byte, error) {
	switch strings.ToLower(fromEncoding) {
	case "gbk", "gb2312":
		if strings.ToLower(toEncoding) == "utf-8" {
			decoder := simplifiedchinese.GBK.NewDecoder()
			result, _, err := transform.Bytes(decoder, data)
			return result, err
		}
	case "utf-8":
		if strings.ToLower(toEncoding) == "gbk" || strings.ToLower(toEncoding) == "gb2312" {
			encoder := simplifiedchinese.GBK.NewEncoder()
			result, _, err := transform.Bytes(encoder, data)
			return result, err
		}
	}

	// 不需要转换或不支持的编码返回原数据
	return data, nil
}

// NormalizeString 规整字符串，去除首尾空白并压缩连续空格
func (dc *DataConverter) NormalizeString(str string) string {
	str = strings.TrimSpace(str)
	str = strings.Join(strings.Fields(str), " ")
	return str
}

// ParseTime 按常见格式解析时间字符串，自定义格式优先
func (dc *DataConverter) ParseTime(timeStr string, layouts []string) (time.Time, error) {
	if timeStr == "" {
		return time.Time{}, fmt.Errorf("时间字符串为空")
	}

	defaultLayouts := []string{
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02",
		"2006/01/02 15:04:05",
		"2006/01/02",
	}

	allLayouts := append(layouts, defaultLayouts...)
	for _, layout := range allLayouts {
		if t, err := time.Parse(layout, timeStr); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("无法解析时间字符串: %s", timeStr)
}

// FormatTime 格式化时间，空布局时使用RFC3339
func (dc *DataConverter) FormatTime(t time.Time, layout string) string {
	if layout == "" {
		layout = time.RFC3339
	}
	return t.Format(layout)
}
