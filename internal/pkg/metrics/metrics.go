package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 同步与导入相关指标
var (
	// SyncRunsTotal 按结果统计同步执行次数 (status: ok/disabled/fetch_error)
	SyncRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_runs_total",
		Help: "Total sync runs by outcome",
	}, []string{"status"})

	// SyncDuration 单次同步耗时分布
	SyncDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sync_duration_seconds",
		Help:    "Duration of a single query sync",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	})

	// ItemsImportedTotal 成功导入的商品数
	ItemsImportedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "items_imported_total",
		Help: "Items imported from the marketplace",
	})

	// ItemsSkippedTotal 按原因统计跳过的商品数 (reason: banned/duplicate)
	ItemsSkippedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "items_skipped_total",
		Help: "Items skipped during sync by reason",
	}, []string{"reason"})

	// SyncItemErrorsTotal 单条商品处理失败数
	SyncItemErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sync_item_errors_total",
		Help: "Per-item failures during sync",
	})
)

// 调度与队列指标
var (
	// SyncQueueDepth 流中待处理的同步任务数
	SyncQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sync_queue_depth",
		Help: "Pending sync jobs in the stream",
	})

	// SchedulerJobsPushedTotal 调度器成功入队的任务数
	SchedulerJobsPushedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_jobs_pushed_total",
		Help: "Sync jobs pushed by the dispatcher",
	})

	// SchedulerJobsSkippedTotal 因防重守卫而跳过的任务数
	SchedulerJobsSkippedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_jobs_skipped_total",
		Help: "Sync jobs skipped by the dedup guard",
	})

	// JobAutoClaimTotal 从悬挂状态回收的消息数
	JobAutoClaimTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "job_autoclaim_total",
		Help: "Messages reclaimed from the pending entries list",
	})

	// JobDLQTotal 投入死信流的消息数
	JobDLQTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "job_dlq_total",
		Help: "Messages moved to the dead letter stream",
	})
)

// 外部依赖指标
var (
	// StoreRequestDuration 按表和操作统计存储请求耗时
	StoreRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "store_request_duration_seconds",
		Help:    "Hosted store request duration by table and operation",
		Buckets: prometheus.DefBuckets,
	}, []string{"table", "op"})

	// StoreRequestErrorsTotal 按表统计存储请求失败数
	StoreRequestErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "store_request_errors_total",
		Help: "Hosted store request failures by table",
	}, []string{"table"})

	// SearchFailuresTotal 按原因统计的市场搜索失败次数
	SearchFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "search_failures_total",
		Help: "Failed marketplace searches by reason",
	}, []string{"reason"})

	// RateLimitWaitDuration 页面抓取限流等待时间
	RateLimitWaitDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ratelimit_wait_duration_seconds",
		Help:    "Time spent waiting for a rate limit token",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	})

	// RateLimitTimeoutTotal 限流等待超时次数
	RateLimitTimeoutTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ratelimit_timeout_total",
		Help: "Rate limit waits that hit their deadline",
	})
)
