package scheduler

import (
	"context"
	"log/slog"
	"time"

	"reselldash/internal/model"
	"reselldash/internal/pkg/metrics"
	"reselldash/internal/pkg/taskqueue"
)

// 队列深度指标的采样间隔
const monitorInterval = 15 * time.Second

// QueryLister 抽象已保存搜索的读取。
type QueryLister interface {
	List(ctx context.Context, enabledOnly bool) ([]model.SavedQuery, error)
}

// Deduper 抽象同步防重窗口检查。
type Deduper interface {
	IsDuplicate(ctx context.Context, queryID string) (bool, error)
}

// JobProducer 抽象同步任务投递。
type JobProducer interface {
	SubmitSync(ctx context.Context, queryID, queryURL string, limit int, source string) error
	QueueLength(ctx context.Context) (int64, error)
}

// Dispatcher 周期性把启用的已保存搜索投递到同步队列。
//
// 它只负责投递, 真正的抓取由 syncer 进程消费执行。
// 防重窗口用 Redis SETNX 实现, 避免重启或多实例下重复投递。
type Dispatcher struct {
	queries      QueryLister
	deduper      Deduper
	producer     JobProducer
	logger       *slog.Logger
	interval     time.Duration
	defaultLimit int
}

// NewDispatcher 创建调度器。
//
// 参数:
//
//	queries: 已保存搜索存取
//	deduper: 防重窗口
//	producer: 队列生产者
//	logger: 日志记录器
//	interval: 调度轮询间隔, <=0 时取 1 分钟
//	defaultLimit: 搜索未配置上限时的抓取数量
//
// 返回值:
//
//	*Dispatcher: 调度器实例
func NewDispatcher(queries QueryLister, deduper Deduper, producer JobProducer, logger *slog.Logger, interval time.Duration, defaultLimit int) *Dispatcher {
	if interval <= 0 {
		interval = time.Minute
	}
	if defaultLimit <= 0 {
		defaultLimit = 20
	}
	return &Dispatcher{
		queries:      queries,
		deduper:      deduper,
		producer:     producer,
		logger:       logger,
		interval:     interval,
		defaultLimit: defaultLimit,
	}
}

// Run 启动调度循环, 阻塞直到 ctx 取消。
//
// 启动时立即调度一轮, 之后按配置间隔轮询。
func (d *Dispatcher) Run(ctx context.Context) {
	d.logger.Info("dispatcher started",
		slog.String("interval", d.interval.String()),
		slog.Int("default_limit", d.defaultLimit))

	go d.monitorQueueDepth(ctx)

	d.dispatchOnce(ctx)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("dispatcher stopped")
			return
		case <-ticker.C:
			d.dispatchOnce(ctx)
		}
	}
}

// dispatchOnce 调度一轮: 列出启用的搜索, 过防重窗口后投递。
func (d *Dispatcher) dispatchOnce(ctx context.Context) {
	queries, err := d.queries.List(ctx, true)
	if err != nil {
		d.logger.Error("list enabled queries failed", slog.String("error", err.Error()))
		return
	}
	if len(queries) == 0 {
		return
	}

	pushed, skipped := 0, 0
	for _, q := range queries {
		dup, err := d.deduper.IsDuplicate(ctx, q.ID)
		if err != nil {
			// 防重检查失败时照常投递, 宁可重复同步也不漏
			d.logger.Warn("dedup check failed",
				slog.String("query_id", q.ID),
				slog.String("error", err.Error()))
		} else if dup {
			skipped++
			metrics.SchedulerJobsSkippedTotal.Inc()
			d.logger.Debug("query skipped by dedup window", slog.String("query_id", q.ID))
			continue
		}

		limit := q.Limit
		if limit <= 0 {
			limit = d.defaultLimit
		}

		if err := d.producer.SubmitSync(ctx, q.ID, q.QueryURL, limit, taskqueue.SourcePeriodic); err != nil {
			d.logger.Error("submit sync job failed",
				slog.String("query_id", q.ID),
				slog.String("error", err.Error()))
			continue
		}
		pushed++
		metrics.SchedulerJobsPushedTotal.Inc()
	}

	d.logger.Info("dispatch cycle finished",
		slog.Int("total", len(queries)),
		slog.Int("pushed", pushed),
		slog.Int("skipped", skipped))
}

// monitorQueueDepth 周期性上报 Stream 长度指标。
func (d *Dispatcher) monitorQueueDepth(ctx context.Context) {
	ticker := time.NewTicker(monitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			depth, err := d.producer.QueueLength(ctx)
			if err != nil {
				d.logger.Warn("read queue depth failed", slog.String("error", err.Error()))
				continue
			}
			metrics.SyncQueueDepth.Set(float64(depth))
		}
	}
}
