package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"reselldash/internal/integration"
	"reselldash/internal/pkg/notify"
	"reselldash/internal/pkg/queue"
	"reselldash/internal/pkg/taskqueue"
)

// 消费循环出错后的退避时间
const readBackoff = time.Second

// 关闭时等待在途同步完成的上限
const shutdownTimeout = 30 * time.Second

// Adapter 抽象市场同步执行器。
type Adapter interface {
	SyncQuery(ctx context.Context, queryURL, queryID string, limit int) integration.SyncResult
}

// Deduper 抽象防重窗口, 同步失败时清除标记让下一轮重试。
type Deduper interface {
	Delete(ctx context.Context, queryID string) error
}

// Consumer 抽象 Stream 消费端。
type Consumer interface {
	Read(ctx context.Context) ([]*taskqueue.MessageWithID, error)
	Ack(ctx context.Context, msgID string) error
	HandleFailure(ctx context.Context, msg *taskqueue.MessageWithID, cause error) (taskqueue.FailureAction, error)
}

// Service 把队列消息转成浏览器抓取任务。
//
// 消费循环从 Stream 读消息, 丢进内存 worker pool 执行。
// pool 默认单 worker: 一个浏览器实例, 同步任务顺序执行。
type Service struct {
	consumer Consumer
	pool     *queue.Queue
	adapter  Adapter
	deduper  Deduper
	notifier notify.Notifier
	toEmail  string
	logger   *slog.Logger
}

// New 创建 syncer 服务。
//
// 参数:
//
//	consumer: Stream 消费端
//	pool: 内存任务队列 (调用方负责配置 worker 数)
//	adapter: 市场同步执行器
//	deduper: 防重窗口
//	notifier: 邮件通知器, 可为 nil
//	toEmail: 同步摘要收件人, 为空时不发通知
//	logger: 日志记录器
//
// 返回值:
//
//	*Service: 服务实例
func New(consumer Consumer, pool *queue.Queue, adapter Adapter, deduper Deduper, notifier notify.Notifier, toEmail string, logger *slog.Logger) *Service {
	return &Service{
		consumer: consumer,
		pool:     pool,
		adapter:  adapter,
		deduper:  deduper,
		notifier: notifier,
		toEmail:  toEmail,
		logger:   logger,
	}
}

// Run 启动消费循环, 阻塞直到 ctx 取消。
//
// 取消后等待在途任务完成再返回。
func (s *Service) Run(ctx context.Context) error {
	s.pool.Start(ctx)
	s.logger.Info("syncer worker started")

	for {
		select {
		case <-ctx.Done():
			return s.shutdown()
		default:
		}

		msgs, err := s.consumer.Read(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return s.shutdown()
			}
			s.logger.Error("read sync queue failed", slog.String("error", err.Error()))
			select {
			case <-ctx.Done():
				return s.shutdown()
			case <-time.After(readBackoff):
			}
			continue
		}

		for _, msg := range msgs {
			m := msg
			job := func(jobCtx context.Context) error {
				return s.process(jobCtx, m)
			}
			if err := s.pool.EnqueueBlocking(ctx, job); err != nil {
				s.logger.Error("enqueue sync job failed",
					slog.String("msg_id", m.ID),
					slog.String("error", err.Error()))
			}
		}
	}
}

// process 执行一条同步消息并决定 Ack 或重试。
func (s *Service) process(ctx context.Context, msg *taskqueue.MessageWithID) error {
	m := msg.Message
	start := time.Now()

	s.logger.Info("processing sync job",
		slog.String("msg_id", msg.ID),
		slog.String("query_id", m.QueryID),
		slog.String("source", m.Source),
		slog.Int("retry", m.Retry))

	result := s.adapter.SyncQuery(ctx, m.QueryURL, m.QueryID, m.Limit)

	if result.Success {
		if err := s.consumer.Ack(ctx, msg.ID); err != nil {
			s.logger.Warn("ack failed", slog.String("msg_id", msg.ID), slog.String("error", err.Error()))
		}
		s.notifySummary(ctx, m, result, time.Since(start))
		return nil
	}

	// 集成被关掉时直接确认, 重试没有意义
	if result.Message == "Integration disabled" {
		s.logger.Info("sync skipped, integration disabled", slog.String("query_id", m.QueryID))
		if err := s.consumer.Ack(ctx, msg.ID); err != nil {
			s.logger.Warn("ack failed", slog.String("msg_id", msg.ID), slog.String("error", err.Error()))
		}
		return nil
	}

	cause := fmt.Errorf("sync query %s: %s", m.QueryID, result.Message)

	// 清掉防重标记, 调度器下一轮可以重新投递
	if m.QueryID != "" {
		if err := s.deduper.Delete(ctx, m.QueryID); err != nil {
			s.logger.Warn("clear dedup mark failed",
				slog.String("query_id", m.QueryID),
				slog.String("error", err.Error()))
		}
	}

	action, err := s.consumer.HandleFailure(ctx, msg, cause)
	if err != nil {
		s.logger.Error("handle failure failed",
			slog.String("msg_id", msg.ID),
			slog.String("error", err.Error()))
		return cause
	}

	s.logger.Warn("sync job failed",
		slog.String("msg_id", msg.ID),
		slog.String("query_id", m.QueryID),
		slog.String("action", string(action)),
		slog.String("cause", cause.Error()))
	return cause
}

// notifySummary 同步有新商品时发邮件摘要。
func (s *Service) notifySummary(ctx context.Context, m *taskqueue.SyncMessage, result integration.SyncResult, elapsed time.Duration) {
	if s.notifier == nil || s.toEmail == "" || result.Imported == 0 {
		return
	}

	summary := notify.SyncSummary{
		QueryLabel: m.QueryID,
		QueryURL:   m.QueryURL,
		Imported:   result.Imported,
		Skipped:    result.Skipped,
		Errors:     result.Errors,
		Elapsed:    elapsed.Round(time.Millisecond).String(),
	}
	if err := s.notifier.SendSyncSummary(ctx, summary, s.toEmail); err != nil {
		s.logger.Warn("send sync summary failed", slog.String("error", err.Error()))
	}
}

func (s *Service) shutdown() error {
	s.logger.Info("syncer worker draining")
	if err := s.pool.ShutdownWithTimeout(shutdownTimeout); err != nil {
		return err
	}
	s.logger.Info("syncer worker stopped")
	return nil
}
