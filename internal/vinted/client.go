package vinted

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"reselldash/internal/config"
	"reselldash/internal/pkg/metrics"
	"reselldash/internal/pkg/ratelimit"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/redis/go-redis/v9"
)

const (
	rateLimitKey = "reselldash:ratelimit:vinted"

	// 超时常量
	browserInitTimeout    = 30 * time.Second       // 浏览器初始化超时
	browserHealthInterval = 30 * time.Second       // 浏览器健康检查间隔
	browserHealthTimeout  = 5 * time.Second        // 健康检查单次超时
	pageTimeout           = 60 * time.Second       // 页面操作超时
	pageCreateTimeout     = 10 * time.Second       // 页面创建超时
	stealthScriptTimeout  = 5 * time.Second        // Stealth 脚本应用超时
	rateLimitCheckTimeout = 5 * time.Second        // 速率限制检查超时
	rateLimitMaxWait      = 30 * time.Second       // 速率限制最大等待时间
	elementCountTimeout   = 5 * time.Second        // 元素计数超时
	pageTextCheckTimeout  = 2 * time.Second        // 页面文本检查超时
	scrollWaitInterval    = 500 * time.Millisecond // 滚动后等待间隔
)

// Client 负责浏览器调度与目录页解析。
//
// 它维护一个 rod.Browser 实例, 并发页面数由信号量限制。
type Client struct {
	browser     *rod.Browser
	rateLimiter *ratelimit.RateLimiter
	logger      *slog.Logger
	cfg         *config.Config
	defaultUA   string
	sem         chan struct{}
	mu          sync.RWMutex

	// 后台任务控制
	bgCtx    context.Context
	bgCancel context.CancelFunc

	// 统计信息
	stats searchStats
}

// searchStats 抓取统计信息
type searchStats struct {
	TotalSearches atomic.Int64
	TotalFailed   atomic.Int64
	TotalListings atomic.Int64
}

// NewClient 启动浏览器实例并创建搜索客户端。
//
// 参数:
//
//	ctx: 上下文
//	cfg: 配置对象, 包含浏览器路径、并发数、限流等设置
//	rdb: Redis 客户端, 为 nil 时不启用限流
//	logger: 日志记录器
//
// 返回值:
//
//	*Client: 初始化完成的客户端
//	error: 浏览器启动失败返回错误
func NewClient(ctx context.Context, cfg *config.Config, rdb *redis.Client, logger *slog.Logger) (*Client, error) {
	initCtx, cancel := context.WithTimeout(ctx, browserInitTimeout)
	defer cancel()

	browser, err := startBrowser(initCtx, cfg, logger)
	if err != nil {
		return nil, err
	}

	var limiter *ratelimit.RateLimiter
	if rdb != nil && cfg.App.RateLimit > 0 && cfg.App.RateBurst > 0 {
		limiter = ratelimit.NewRedisRateLimiter(rdb)
		logger.Info("rate limiter enabled",
			slog.Float64("rate", cfg.App.RateLimit),
			slog.Float64("burst", cfg.App.RateBurst))
	}

	concurrency := cfg.Browser.MaxConcurrency
	if concurrency < 1 {
		concurrency = 1
	}

	bgCtx, bgCancel := context.WithCancel(context.Background())

	c := &Client{
		browser:     browser,
		rateLimiter: limiter,
		logger:      logger,
		cfg:         cfg,
		defaultUA:   "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/118.0.0.0 Safari/537.36",
		sem:         make(chan struct{}, concurrency),
		bgCtx:       bgCtx,
		bgCancel:    bgCancel,
	}

	go c.startBrowserHealthCheck(bgCtx)

	logger.Info("vinted client initialized",
		slog.Int("max_concurrency", concurrency))
	return c, nil
}

// startBrowser 根据配置启动浏览器。
//
// 针对容器环境做了适配 (NoSandbox, 禁用 /dev/shm)。
func startBrowser(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*rod.Browser, error) {
	bin := cfg.Browser.BinPath
	if bin == "" {
		logger.Info("no browser binary specified, downloading default...")
		path, err := launcher.NewBrowser().Get()
		if err != nil {
			return nil, fmt.Errorf("download browser: %w", err)
		}
		bin = path
	}

	l := launcher.New().
		Headless(cfg.Browser.Headless).
		Bin(bin).
		NoSandbox(true).
		// 禁用 /dev/shm，防止容器内内存崩溃
		Set("disable-dev-shm-usage", "true").
		Set("disable-gpu", "true").
		Set("disable-software-rasterizer", "true").
		Set("remote-allow-origins", "*").
		// 缓存与内存优化，减少磁盘写入压力
		Set("disk-cache-size", "1").
		Set("media-cache-size", "1").
		Set("disable-application-cache", "true").
		Set("js-flags", "--max_old_space_size=512")

	var proxyUser, proxyPass string
	if cfg.Browser.ProxyURL != "" {
		parsed, err := url.Parse(cfg.Browser.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("parse proxy url: %w", err)
		}
		if parsed.Scheme == "" || parsed.Host == "" {
			return nil, fmt.Errorf("invalid proxy url: %s", cfg.Browser.ProxyURL)
		}
		l = l.Proxy(fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host))
		if parsed.User != nil {
			proxyUser = parsed.User.Username()
			if pass, ok := parsed.User.Password(); ok {
				proxyPass = pass
			}
		}
		logger.Info("using http proxy", slog.String("server", parsed.Host))
	}

	wsURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().Context(ctx).ControlURL(wsURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	if proxyUser != "" {
		go browser.MustHandleAuth(proxyUser, proxyPass)()
	}

	logger.Info("browser started", slog.String("bin", bin))
	return browser, nil
}

// startBrowserHealthCheck 定期检查浏览器健康状态, 无响应时重启实例。
func (c *Client) startBrowserHealthCheck(ctx context.Context) {
	ticker := time.NewTicker(browserHealthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !c.checkBrowserHealth(ctx) {
				c.logger.Warn("browser health check failed, restarting browser instance")
				if err := c.restartBrowserInstance(ctx); err != nil {
					c.logger.Error("failed to restart browser instance", slog.String("error", err.Error()))
				} else {
					c.logger.Info("browser instance restarted successfully")
				}
			}
		}
	}
}

// checkBrowserHealth 通过创建空白页验证浏览器是否响应
func (c *Client) checkBrowserHealth(ctx context.Context) bool {
	c.mu.RLock()
	browser := c.browser
	c.mu.RUnlock()

	if browser == nil {
		return false
	}

	healthCtx, cancel := context.WithTimeout(ctx, browserHealthTimeout)
	defer cancel()

	page, err := browser.Context(healthCtx).Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return false
	}
	defer func() {
		if page != nil {
			_ = page.Close()
		}
	}()

	_, err = page.Eval("() => document.title")
	return err == nil
}

// restartBrowserInstance 重启浏览器实例。
func (c *Client) restartBrowserInstance(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.browser != nil {
		if err := c.browser.Close(); err != nil {
			c.logger.Warn("close old browser failed", slog.String("error", err.Error()))
		}
		c.browser = nil
	}

	newBrowser, err := startBrowser(ctx, c.cfg, c.logger)
	if err != nil {
		return fmt.Errorf("start new browser: %w", err)
	}
	c.browser = newBrowser
	return nil
}

// waitRateLimit 在页面导航前申请限流令牌。
//
// Redis 异常或等待超限时放行请求, 限流只降级不阻断。
func (c *Client) waitRateLimit(ctx context.Context) error {
	if c.rateLimiter == nil {
		return nil
	}

	waitStart := time.Now()
	deadline := time.After(rateLimitMaxWait)
	for {
		checkCtx, cancel := context.WithTimeout(ctx, rateLimitCheckTimeout)
		allowed, err := c.rateLimiter.Allow(checkCtx, rateLimitKey,
			int(c.cfg.App.RateLimit), int(c.cfg.App.RateBurst))
		cancel()

		if err != nil {
			c.logger.Warn("rate limit degraded, allowing request", slog.String("error", err.Error()))
			return nil
		}
		if allowed {
			metrics.RateLimitWaitDuration.Observe(time.Since(waitStart).Seconds())
			return nil
		}

		select {
		case <-ctx.Done():
			metrics.RateLimitWaitDuration.Observe(time.Since(waitStart).Seconds())
			metrics.RateLimitTimeoutTotal.Inc()
			return fmt.Errorf("rate limit wait timeout: %w", ctx.Err())
		case <-deadline:
			c.logger.Warn("rate limit max wait exceeded, allowing request")
			metrics.RateLimitWaitDuration.Observe(time.Since(waitStart).Seconds())
			return nil
		case <-time.After(50 * time.Millisecond):
		}
	}
}

// Shutdown 优雅关闭客户端。
func (c *Client) Shutdown(ctx context.Context) error {
	c.logger.Info("shutting down vinted client...")

	if c.bgCancel != nil {
		c.bgCancel()
	}

	c.mu.Lock()
	browser := c.browser
	c.browser = nil
	c.mu.Unlock()
	if browser != nil {
		if err := browser.Close(); err != nil {
			c.logger.Error("close browser failed", slog.String("error", err.Error()))
		}
	}

	c.logger.Info("vinted client shutdown completed",
		slog.Int64("total_searches", c.stats.TotalSearches.Load()),
		slog.Int64("total_failed", c.stats.TotalFailed.Load()),
		slog.Int64("total_listings", c.stats.TotalListings.Load()),
	)
	return nil
}

// Stats 抓取统计信息快照
type Stats struct {
	TotalSearches int64
	TotalFailed   int64
	TotalListings int64
}

// SearchStats 返回客户端统计信息。
func (c *Client) SearchStats() Stats {
	return Stats{
		TotalSearches: c.stats.TotalSearches.Load(),
		TotalFailed:   c.stats.TotalFailed.Load(),
		TotalListings: c.stats.TotalListings.Load(),
	}
}
