package vinted

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"reselldash/internal/pkg/metrics"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// 商品卡片选择器: 目录网格里带链接的卡片才算有效
const (
	cellSelector      = `[data-testid^="grid-item"]:has(a)`
	cellReadySelector = `[data-testid^="grid-item"] a`
	emptySelector     = `[data-testid="catalog-empty-state"]`
)

// 资源屏蔽列表, 降低带宽并避免追踪脚本干扰
var blockedURLs = []string{
	"*.png", "*.jpg", "*.jpeg", "*.gif", "*.webp", "*.svg", "*.ico",
	"*.avif", "*.apng", "*.heic", "*.heif", "*.bmp", "*.tif", "*.tiff",
	"*.woff", "*.woff2", "*.ttf", "*.eot", "*.otf",
	"*.mp4", "*.webm", "*.m4v", "*.mov", "*.avi",
	"*.mp3", "*.aac", "*.m4a", "*.ogg", "*.wav", "*.flac",

	"*google-analytics*",
	"*googletagmanager*",
	"*doubleclick*",
	"*facebook*",
	"*appsflyer*",
	"*braze*",
	"*sentry*",
	"*hotjar*",
}

// Search 打开目录搜索页并提取商品列表。
//
// 流程:
// 1. 申请限流令牌与并发信号量
// 2. 打开新标签页 (Stealth 模式)
// 3. 导航并等待商品网格或空状态出现
// 4. 滚动加载直到数量达标或不再增长
// 5. 逐卡片提取商品
//
// 参数:
//
//	ctx: 上下文
//	queryURL: 目录搜索页 URL
//	limit: 返回商品数上限, <=0 时取 20
//
// 返回值:
//
//	[]Listing: 提取到的商品, 空结果页返回空切片
//	error: 页面被拦截或超时返回错误
func (c *Client) Search(ctx context.Context, queryURL string, limit int) (listings []Listing, err error) {
	if limit <= 0 {
		limit = 20
	}

	select {
	case c.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-c.sem }()

	// 提取阶段触达大量 DOM, panic 统一转为 error
	defer func() {
		if r := recover(); r != nil {
			c.stats.TotalFailed.Add(1)
			metrics.SearchFailuresTotal.WithLabelValues(errTypeUnknown.String()).Inc()
			c.logger.Error("search panic recovered", slog.Any("panic", r))
			listings = nil
			err = fmt.Errorf("search panic: %v", r)
		}
	}()

	c.stats.TotalSearches.Add(1)
	start := time.Now()

	if err := c.waitRateLimit(ctx); err != nil {
		c.stats.TotalFailed.Add(1)
		metrics.SearchFailuresTotal.WithLabelValues(classifyError(err).String()).Inc()
		return nil, err
	}

	listings, err = c.searchOnce(ctx, queryURL, limit)
	if err != nil {
		c.stats.TotalFailed.Add(1)
		reason := classifyError(err)
		metrics.SearchFailuresTotal.WithLabelValues(reason.String()).Inc()
		c.logger.Error("search failed",
			slog.String("url", queryURL),
			slog.String("reason", reason.String()),
			slog.String("error", err.Error()),
			slog.Duration("duration", time.Since(start)))
		return nil, err
	}

	c.stats.TotalListings.Add(int64(len(listings)))
	c.logger.Info("search completed",
		slog.String("url", queryURL),
		slog.Int("count", len(listings)),
		slog.Duration("duration", time.Since(start)))
	return listings, nil
}

func (c *Client) searchOnce(ctx context.Context, queryURL string, limit int) ([]Listing, error) {
	c.mu.RLock()
	browser := c.browser
	c.mu.RUnlock()
	if browser == nil {
		return nil, fmt.Errorf("browser not initialized")
	}

	// 页面创建使用任务的完整 context, 短超时只在外层 select 保护,
	// 避免页面对象绑定一个很快过期的 context
	type pageResult struct {
		page *rod.Page
		err  error
	}
	pageResultCh := make(chan pageResult, 1)
	go func() {
		page, pageErr := browser.Context(ctx).Page(proto.TargetCreateTarget{URL: ""})
		select {
		case pageResultCh <- pageResult{page: page, err: pageErr}:
		default:
			if page != nil {
				_ = page.Close()
			}
			c.logger.Warn("page creation completed after timeout, cleaned up")
		}
	}()

	pageCreateTimer := time.NewTimer(pageCreateTimeout)
	defer pageCreateTimer.Stop()

	var page *rod.Page
	select {
	case result := <-pageResultCh:
		if result.err != nil {
			return nil, fmt.Errorf("create page failed: %w", result.err)
		}
		page = result.page
	case <-pageCreateTimer.C:
		return nil, fmt.Errorf("create page timeout after %v", pageCreateTimeout)
	case <-ctx.Done():
		return nil, fmt.Errorf("context cancelled during page creation: %w", ctx.Err())
	}

	// Stealth 脚本应用, 同样只用 select 做超时保护
	stealthTimer := time.NewTimer(stealthScriptTimeout)
	defer stealthTimer.Stop()
	stealthDone := make(chan error, 1)
	go func() {
		_, evalErr := page.EvalOnNewDocument(stealth.JS)
		stealthDone <- evalErr
	}()

	select {
	case err := <-stealthDone:
		if err != nil {
			_ = page.Close()
			return nil, fmt.Errorf("apply stealth script: %w", err)
		}
	case <-stealthTimer.C:
		_ = page.Close()
		return nil, fmt.Errorf("apply stealth script timeout after %v", stealthScriptTimeout)
	case <-ctx.Done():
		_ = page.Close()
		return nil, fmt.Errorf("context cancelled during stealth script: %w", ctx.Err())
	}

	if err := (proto.NetworkSetBlockedURLs{Urls: blockedURLs}).Call(page); err != nil {
		c.logger.Warn("set blocked urls failed", slog.String("error", err.Error()))
	}
	defer func() { _ = page.Close() }()

	page = page.Timeout(pageTimeout)
	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: c.defaultUA}); err != nil {
		c.logger.Warn("set user agent failed", slog.String("error", err.Error()))
	}

	c.logger.Info("loading page", slog.String("url", queryURL))

	navigateCtx, navigateCancel := context.WithTimeout(ctx, pageTimeout)
	defer navigateCancel()

	navigateErrCh := make(chan error, 1)
	go func() {
		navigateErrCh <- page.Navigate(queryURL)
	}()

	select {
	case navErr := <-navigateErrCh:
		if navErr != nil {
			return nil, fmt.Errorf("navigate: %w", navErr)
		}
	case <-navigateCtx.Done():
		return nil, fmt.Errorf("navigate timeout: %w", navigateCtx.Err())
	}

	if c.isBlockedPage(page) {
		return nil, fmt.Errorf("blocked_page")
	}

	// 等待商品卡片内部出现 <a>, 避开骨架屏阶段
	raceCtx, raceCancel := context.WithTimeout(ctx, pageTimeout)
	defer raceCancel()

	raceErrCh := make(chan error, 1)
	go func() {
		_, raceErr := page.Race().
			Element(cellReadySelector).Handle(func(e *rod.Element) error {
			return nil
		}).
			Element(emptySelector).Handle(func(e *rod.Element) error {
			return fmt.Errorf("no_items_state")
		}).
			Do()
		raceErrCh <- raceErr
	}()

	var err error
	select {
	case err = <-raceErrCh:
	case <-raceCtx.Done():
		err = fmt.Errorf("race timeout: %w", raceCtx.Err())
	}

	if err != nil {
		// 空状态或超时后通过页面文本兜底确认
		if err.Error() == "no_items_state" || c.isNoItemsPage(page) {
			c.logger.Info("no items found", slog.String("url", queryURL))
			return []Listing{}, nil
		}
		if c.isBlockedPage(page) {
			return nil, fmt.Errorf("blocked_page")
		}
		return nil, fmt.Errorf("wait for items: %w", err)
	}

	c.scrollUntil(ctx, page, limit)

	elements, err := c.collectCells(ctx, page)
	if err != nil {
		return nil, err
	}
	if len(elements) == 0 {
		return []Listing{}, nil
	}

	listings := make([]Listing, 0, limit)
	skipCount := 0
	for i, el := range elements {
		if len(listings) >= limit {
			break
		}
		l, err := extractListing(el)
		if err != nil {
			skipCount++
			if skipCount <= 3 {
				c.logger.Warn("extract listing failed",
					slog.Int("index", i),
					slog.String("error", err.Error()))
			}
			continue
		}
		listings = append(listings, l)
	}

	c.logger.Info("found listings",
		slog.Int("count", len(listings)),
		slog.Int("skipped", skipCount))
	return listings, nil
}

// scrollUntil 逐屏向下滚动触发懒加载, 直到卡片数达标或连续三轮无增长。
func (c *Client) scrollUntil(ctx context.Context, page *rod.Page, limit int) {
	timeout := time.After(pageTimeout)
	noGrowthAttempts := 0

	countCells := func() (int, error) {
		countCtx, countCancel := context.WithTimeout(ctx, elementCountTimeout)
		defer countCancel()

		type countResult struct {
			count int
			err   error
		}
		countResultCh := make(chan countResult, 1)
		go func() {
			elems, elemErr := page.Elements(cellSelector)
			if elemErr != nil {
				countResultCh <- countResult{err: elemErr}
				return
			}
			countResultCh <- countResult{count: len(elems)}
		}()

		select {
		case result := <-countResultCh:
			return result.count, result.err
		case <-countCtx.Done():
			return 0, fmt.Errorf("count cells timeout: %w", countCtx.Err())
		}
	}

	for {
		currentCount, err := countCells()
		if err != nil || currentCount >= limit {
			return
		}

		_, _ = page.Eval(`() => window.scrollBy(0, window.innerHeight)`)

		select {
		case <-timeout:
			return
		case <-ctx.Done():
			return
		default:
			time.Sleep(scrollWaitInterval)
		}

		afterCount, err := countCells()
		if err != nil {
			return
		}
		if afterCount <= currentCount {
			noGrowthAttempts++
			if noGrowthAttempts >= 3 && currentCount > 0 {
				return
			}
		} else {
			noGrowthAttempts = 0
		}
	}
}

// collectCells 抓取全部商品卡片元素, 带超时保护。
func (c *Client) collectCells(ctx context.Context, page *rod.Page) (rod.Elements, error) {
	elementsCtx, elementsCancel := context.WithTimeout(ctx, pageTimeout)
	defer elementsCancel()

	type elementsResult struct {
		elements rod.Elements
		err      error
	}
	resultCh := make(chan elementsResult, 1)
	go func() {
		elems, elemErr := page.Elements(cellSelector)
		resultCh <- elementsResult{elements: elems, err: elemErr}
	}()

	select {
	case result := <-resultCh:
		if result.err != nil {
			if errors.Is(result.err, context.DeadlineExceeded) ||
				strings.Contains(result.err.Error(), "timeout") {
				return nil, fmt.Errorf("get elements timeout: %w", result.err)
			}
			return nil, fmt.Errorf("get elements: %w", result.err)
		}
		return result.elements, nil
	case <-elementsCtx.Done():
		return nil, fmt.Errorf("get elements timeout: %w", elementsCtx.Err())
	}
}
