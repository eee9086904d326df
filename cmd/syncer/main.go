package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"reselldash/internal/config"
	"reselldash/internal/integration"
	"reselldash/internal/pkg/dedup"
	"reselldash/internal/pkg/logger"
	"reselldash/internal/pkg/notify"
	"reselldash/internal/pkg/queue"
	"reselldash/internal/pkg/taskqueue"
	"reselldash/internal/store"
	"reselldash/internal/syncer"
	"reselldash/internal/vinted"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

// main 是 syncer 服务的入口函数。
//
// 它负责：
// 1. 加载配置并初始化日志
// 2. 连接 Redis 与 Supabase
// 3. 启动浏览器抓取客户端
// 4. 启动队列消费循环与 Metrics 服务
// 5. 优雅关闭
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	appLogger := logger.NewDefault(cfg.App.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       0,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		appLogger.Error("connect redis failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	client, err := store.New(cfg.Supabase, appLogger)
	if err != nil {
		appLogger.Error("init store failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	browser, err := vinted.NewClient(ctx, cfg, rdb, appLogger)
	if err != nil {
		appLogger.Error("init browser client failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	adapter := integration.NewAdapter(
		browser,
		store.NewSettings(client),
		store.NewItems(client),
		store.NewLogs(client, appLogger),
		appLogger,
	)

	consumer, err := taskqueue.NewConsumer(rdb, appLogger, cfg.App.SyncQueueStream, cfg.App.SyncQueueGroup, "")
	if err != nil {
		appLogger.Error("init consumer failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	pool := queue.NewQueue(appLogger, cfg.App.WorkerPoolSize, cfg.App.QueueCapacity)
	deduper := dedup.NewDeduplicator(rdb, time.Duration(cfg.App.DedupWindow)*time.Second)
	notifier := notify.NewEmailNotifier(&cfg.Email, appLogger)

	svc := syncer.New(consumer, pool, adapter, deduper, notifier, cfg.Email.ToEmail, appLogger)

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		defer func() {
			if r := recover(); r != nil {
				appLogger.Error("PANIC in syncer loop", slog.Any("panic", r))
				os.Exit(1)
			}
		}()

		if err := svc.Run(ctx); err != nil {
			appLogger.Error("syncer loop stopped", slog.String("error", err.Error()))
		}
	}()

	metricsAddr := ":2112"
	if v := os.Getenv("SYNCER_METRICS_ADDR"); v != "" {
		metricsAddr = v
	}
	metricsServer := &http.Server{
		Addr:    metricsAddr,
		Handler: promhttp.Handler(),
	}
	go func() {
		appLogger.Info("syncer metrics server started", slog.String("addr", metricsAddr))
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("metrics server stopped with error", slog.String("error", err.Error()))
		}
	}()

	<-ctx.Done()
	appLogger.Info("shutting down syncer service...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("metrics shutdown error", slog.String("error", err.Error()))
	}

	// 等消费循环排空在途任务
	select {
	case <-runDone:
	case <-shutdownCtx.Done():
		appLogger.Warn("syncer loop did not drain in time")
	}

	if err := browser.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("browser shutdown error", slog.String("error", err.Error()))
	}
	if err := rdb.Close(); err != nil {
		appLogger.Error("close redis failed", slog.String("error", err.Error()))
	}

	appLogger.Info("syncer service stopped gracefully")
}
