package taskqueue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// Producer 同步任务生产者。
//
// 由 API 服务和调度器使用，将保存查询的同步任务发布到 Redis Streams。
type Producer struct {
	queue  *SyncQueue
	logger *slog.Logger
}

// NewProducer 创建一个新的生产者。
//
// 参数:
//   - rdb: Redis 客户端
//   - logger: 日志记录器
//   - streamName: Stream 名称, 为空时使用默认值
//
// 返回值:
//   - *Producer: 生产者实例
func NewProducer(rdb *redis.Client, logger *slog.Logger, streamName string) *Producer {
	return &Producer{
		queue:  NewSyncQueue(rdb, logger, streamName),
		logger: logger,
	}
}

// SubmitSync 提交一个保存查询的同步任务。
//
// 用于用户手动触发或周期调度时调用。
//
// 参数:
//   - ctx: 上下文
//   - queryID: 保存查询 ID, 手动指定 URL 同步时可为空
//   - queryURL: 目录搜索 URL
//   - limit: 单次同步的商品上限
//   - source: 任务来源 ("manual" 或 "periodic")
//
// 返回值:
//   - error: 提交失败时返回错误
func (p *Producer) SubmitSync(ctx context.Context, queryID, queryURL string, limit int, source string) error {
	if queryURL == "" {
		return fmt.Errorf("query url is required")
	}

	msg := NewSyncMessage(queryID, queryURL, limit, source)
	if err := p.queue.Publish(ctx, msg); err != nil {
		p.logger.Error("submit sync failed",
			slog.String("query_id", queryID),
			slog.String("source", msg.Source),
			slog.String("error", err.Error()))
		return err
	}

	p.logger.Info("sync job submitted",
		slog.String("query_id", queryID),
		slog.String("source", msg.Source))

	return nil
}

// QueueLength 获取当前队列长度。
func (p *Producer) QueueLength(ctx context.Context) (int64, error) {
	return p.queue.StreamInfo(ctx)
}
