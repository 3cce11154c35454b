/*
 * @module logger
 * @description 全局日志初始化，安装JSON格式的slog处理器并注入服务标识
 * @architecture 基础设施层
 * @documentReference ai_docs/quality_pipeline_design.md
 * @stateFlow 进程启动时安装一次，此后全局slog调用走该处理器
 * @rules 日志级别由LOG_LEVEL环境变量控制，默认debug，输出到stdout由采集端收集
 * @dependencies log/slog
 * @refs main.go
 */

package logger

import (
	"log/slog"
	"os"
	"strings"
)

// InitLogger 初始化全局日志记录器
// 创建JSON格式的日志处理器输出到stdout，并附加service字段便于日志检索
func InitLogger() {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(os.Getenv("LOG_LEVEL")),
	})
	logger := slog.New(handler).With("service", "dataquality-service")
	slog.SetDefault(logger)
}

// parseLevel 解析日志级别，未识别时回落到debug
func parseLevel(raw string) slog.Level {
	switch strings.ToLower(raw) {
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelDebug
	}
}
