package vinted

import (
	"context"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"reselldash/internal/pkg/metrics"
)

// 只读服务端渲染的 HTML, 限制读取量防止异常响应撑爆内存
const probeBodyLimit = 2 << 20

var itemHrefRe = regexp.MustCompile(`href="([^"]*/items/[0-9]+[^"]*)"`)

// HTTPSearcher 不依赖浏览器的轻量搜索实现。
//
// api 进程用它做连通性测试: 发一个普通 GET 请求, 在服务端渲染的
// HTML 里找商品链接。拿不到价格和标题等字段, 不能替代浏览器抓取。
type HTTPSearcher struct {
	client *http.Client
	logger *slog.Logger
}

// NewHTTPSearcher 创建轻量搜索客户端
func NewHTTPSearcher(timeout time.Duration, logger *slog.Logger) *HTTPSearcher {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &HTTPSearcher{
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Search 抓取目录页 HTML 并提取商品链接。
//
// 参数:
//   - queryURL: 目录搜索页 URL
//   - limit: 返回商品数上限, <=0 时取 20
//
// 返回值:
//   - []Listing: 只填充 ID 和 URL 的商品列表, 空结果页返回空切片
//   - error: 请求失败或页面被拦截返回错误
func (s *HTTPSearcher) Search(ctx context.Context, queryURL string, limit int) ([]Listing, error) {
	if limit <= 0 {
		limit = 20
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, queryURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "en-GB,en;q=0.9")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, s.fail(fmt.Errorf("fetch catalog page: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests {
		return nil, s.fail(fmt.Errorf("blocked_page: http status %d", resp.StatusCode))
	}
	if resp.StatusCode >= 400 {
		return nil, s.fail(fmt.Errorf("fetch catalog page: http status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, probeBodyLimit))
	if err != nil {
		return nil, s.fail(fmt.Errorf("read catalog page: %w", err))
	}

	lower := strings.ToLower(string(body))
	if containsAny(lower, blockedHints) {
		return nil, s.fail(fmt.Errorf("blocked_page: challenge detected"))
	}
	if containsAny(lower, noItemsHints) {
		return []Listing{}, nil
	}

	listings := extractProbeListings(string(body), limit)
	s.logger.Debug("probe fetch finished",
		slog.String("query_url", queryURL),
		slog.Int("found", len(listings)))
	return listings, nil
}

// fail 按失败原因计数后原样返回错误
func (s *HTTPSearcher) fail(err error) error {
	metrics.SearchFailuresTotal.WithLabelValues(classifyError(err).String()).Inc()
	return err
}

// extractProbeListings 从 HTML 源码中提取去重后的商品链接
func extractProbeListings(body string, limit int) []Listing {
	listings := make([]Listing, 0, limit)
	seen := make(map[string]struct{})

	for _, m := range itemHrefRe.FindAllStringSubmatch(body, -1) {
		href := html.UnescapeString(m[1])
		id := extractItemID(href)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		listings = append(listings, Listing{
			ID:  id,
			URL: normalizeItemURL(href),
		})
		if len(listings) >= limit {
			break
		}
	}
	return listings
}
