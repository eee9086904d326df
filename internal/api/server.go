package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"reselldash/internal/api/auth"
	"reselldash/internal/api/middleware"
	"reselldash/internal/api/scheduler"
	"reselldash/internal/config"
	"reselldash/internal/integration"
	"reselldash/internal/pkg/dedup"
	"reselldash/internal/pkg/taskqueue"
	"reselldash/internal/store"
	"reselldash/internal/vinted"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

// 连通性测试走普通 HTTP, 不需要浏览器级超时
const probeTimeout = 20 * time.Second

// Server 封装了 API 服务所需的依赖和路由处理。
//
// 它持有 Supabase 仓库、Redis 客户端、队列生产者、调度器和 Gin 路由引擎。
// 浏览器抓取在 syncer 进程里执行, API 进程只负责投递同步任务。
type Server struct {
	cfg        *config.Config
	logger     *slog.Logger
	rdb        *redis.Client
	router     *gin.Engine
	dispatcher *scheduler.Dispatcher
	auth       *auth.Handler
	producer   *taskqueue.Producer

	items     *store.Items
	sales     *store.Sales
	shipments *store.Shipments
	returns   *store.Returns
	tasks     *store.Tasks
	settings  *store.Settings
	queries   *store.SavedQueries
	logs      *store.Logs

	adapter *integration.Adapter
}

// NewServer 初始化 API 服务器。
//
// 它负责：
// 1. 创建 Supabase REST 客户端与各资源仓库
// 2. 连接 Redis 并创建队列生产者
// 3. 初始化集成适配器与调度器
// 4. 初始化 Gin 路由引擎
//
// 参数:
//
//	ctx: 上下文
//	cfg: 配置对象
//	logger: 日志记录器
//
// 返回值:
//
//	*Server: 初始化完成的服务器实例
//	error: 初始化失败返回错误
func NewServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	client, err := store.New(cfg.Supabase, logger)
	if err != nil {
		return nil, err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       0,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	items := store.NewItems(client)
	settings := store.NewSettings(client)
	queries := store.NewSavedQueries(client)
	logs := store.NewLogs(client, logger)

	producer := taskqueue.NewProducer(rdb, logger, cfg.App.SyncQueueStream)
	deduper := dedup.NewDeduplicator(rdb, time.Duration(cfg.App.DedupWindow)*time.Second)

	// API 进程用无浏览器的轻量探测做连通性测试
	searcher := vinted.NewHTTPSearcher(probeTimeout, logger)
	adapter := integration.NewAdapter(searcher, settings, items, logs, logger)

	dispatcher := scheduler.NewDispatcher(queries, deduper, producer,
		logger, cfg.App.ScheduleInterval, cfg.App.SyncItemsLimit)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))

	s := &Server{
		cfg:        cfg,
		logger:     logger,
		rdb:        rdb,
		router:     r,
		dispatcher: dispatcher,
		auth:       auth.NewHandler(cfg.Security.JWTSecret, cfg.Security.AdminEmail, cfg.Security.AdminPasswordHash, logger),
		producer:   producer,
		items:      items,
		sales:      store.NewSales(client),
		shipments:  store.NewShipments(client),
		returns:    store.NewReturns(client),
		tasks:      store.NewTasks(client),
		settings:   settings,
		queries:    queries,
		logs:       logs,
		adapter:    adapter,
	}
	s.registerRoutes()
	return s, nil
}

// Router 返回 HTTP 路由处理器。
//
// 监听、优雅关闭和调度器启动都由 cmd/api 的 main 负责。
func (s *Server) Router() http.Handler {
	return s.router
}

// StartScheduler 启动调度器。
func (s *Server) StartScheduler(ctx context.Context) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("PANIC in dispatcher", slog.Any("panic", r))
			}
		}()
		s.dispatcher.Run(ctx)
	}()
}

// Close 关闭缓存连接。
func (s *Server) Close() error {
	if s.rdb != nil {
		return s.rdb.Close()
	}
	return nil
}

// registerRoutes 注册所有的 API 路由。
func (s *Server) registerRoutes() {
	// Prometheus metrics 端点
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.GET("/healthz", s.handleHealthz)

	s.router.POST("/login", s.auth.Login)

	authed := s.router.Group("/")
	authed.Use(middleware.AuthMiddleware(s.cfg.Security.JWTSecret))
	authed.POST("/logout", s.auth.Logout)

	authed.GET("/items", s.handleListItems)
	authed.POST("/items", s.handleCreateItem)
	authed.GET("/items/stats", s.handleItemStats)
	authed.GET("/items/:id", s.handleGetItem)
	authed.PATCH("/items/:id", s.handleUpdateItem)
	authed.DELETE("/items/:id", s.handleDeleteItem)

	authed.GET("/sales", s.handleListSales)
	authed.POST("/sales", s.handleCreateSale)
	authed.GET("/sales/stats", s.handleSaleStats)
	authed.GET("/sales/:id", s.handleGetSale)
	authed.PATCH("/sales/:id", s.handleUpdateSale)

	authed.GET("/shipments", s.handleListShipments)
	authed.POST("/shipments", s.handleCreateShipment)
	authed.PATCH("/shipments/:id", s.handleUpdateShipment)

	authed.GET("/returns", s.handleListReturns)
	authed.POST("/returns", s.handleCreateReturn)
	authed.PATCH("/returns/:id", s.handleUpdateReturn)

	authed.GET("/tasks", s.handleListTasks)
	authed.POST("/tasks", s.handleCreateTask)
	authed.PATCH("/tasks/:id", s.handleUpdateTask)
	authed.DELETE("/tasks/:id", s.handleDeleteTask)

	authed.GET("/settings", s.handleListSettings)
	authed.PUT("/settings/:key", s.handlePutSetting)

	authed.GET("/queries", s.handleListQueries)
	authed.POST("/queries", s.handleCreateQuery)
	authed.DELETE("/queries/:id", s.handleDeleteQuery)

	authed.GET("/integration/status", s.handleIntegrationStatus)
	authed.POST("/integration/enable", s.handleIntegrationEnable)
	authed.POST("/integration/disable", s.handleIntegrationDisable)
	authed.POST("/integration/test", s.handleIntegrationTest)
	authed.GET("/integration/logs", s.handleIntegrationLogs)
	authed.POST("/integration/sync", s.handleIntegrationSync)
}

func (s *Server) handleHealthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := s.rdb.Ping(ctx).Err(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error"})
		return
	}
	// 任意正常响应 (包括键不存在) 都说明存储可达
	if _, err := s.settings.Get(ctx, "health"); err != nil && !errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// writeStoreError 按错误类型映射 HTTP 状态码。
func (s *Server) writeStoreError(c *gin.Context, action string, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, store.ErrDuplicate):
		c.JSON(http.StatusConflict, gin.H{"error": "duplicate"})
	case store.IsTransient(err):
		s.logger.Warn(action+" temporarily failed", slog.String("error", err.Error()))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": action + " temporarily unavailable"})
	default:
		s.logger.Error(action+" failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": action + " failed"})
	}
}

// sanitizePatch 去掉不允许客户端改写的字段, 返回是否仍有内容。
func sanitizePatch(patch map[string]any) bool {
	delete(patch, "id")
	delete(patch, "created_at")
	delete(patch, "updated_at")
	return len(patch) > 0
}

// parseQueryInt 解析查询参数中的整数值。
//
// 参数:
//
//	c: Gin 上下文
//	key: 参数名
//	def: 默认值
//
// 返回值:
//
//	int: 解析后的整数或默认值
func parseQueryInt(c *gin.Context, key string, def int) int {
	val := c.Query(key)
	if val == "" {
		return def
	}
	iv, err := strconv.Atoi(val)
	if err != nil {
		return def
	}
	return iv
}
