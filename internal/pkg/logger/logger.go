package logger

import (
	"log/slog"
	"os"
	"strings"
)

// ParseLevel 把配置中的字符串日志级别转换为 slog.Level, 无法识别时回退到 Info
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewDefault 创建默认的结构化日志器, 输出到 stdout
//
// 参数:
//   - level: 日志级别字符串 (debug/info/warn/error)
//
// 返回值:
//   - *slog.Logger: 文本格式的结构化日志器
func NewDefault(level string) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: ParseLevel(level),
	}))
}
