package store

import (
	"context"
	"fmt"
	"log/slog"

	"reselldash/internal/model"
)

// Logs 集成事件日志表的存取。
type Logs struct {
	c      *Client
	logger *slog.Logger
}

// NewLogs 创建日志存取器
func NewLogs(c *Client, logger *slog.Logger) *Logs {
	return &Logs{c: c, logger: logger}
}

// LogEvent 写入一条集成事件。
//
// 事件日志是业务操作的旁路记录, 写入失败只告警, 不影响被记录的操作本身。
func (l *Logs) LogEvent(ctx context.Context, eventType, status, message string, data map[string]any) {
	row := model.IntegrationLog{
		EventType: eventType,
		Status:    status,
		Message:   message,
		Data:      data,
	}
	if err := l.c.From("vinted_integration_logs").Insert(ctx, row, nil); err != nil {
		l.logger.Warn("failed to write integration log",
			slog.String("event_type", eventType),
			slog.String("error", err.Error()))
	}
}

// Recent 返回最近的集成事件, 默认 100 条
func (l *Logs) Recent(ctx context.Context, limit int) ([]model.IntegrationLog, error) {
	if limit <= 0 {
		limit = 100
	}

	var rows []model.IntegrationLog
	if err := l.c.From("vinted_integration_logs").Select("*").Order("created_at", true).Limit(limit).Get(ctx, &rows); err != nil {
		return nil, fmt.Errorf("list integration logs: %w", err)
	}
	return rows, nil
}
