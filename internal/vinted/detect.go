package vinted

import (
	"context"
	"errors"
	"strings"

	"github.com/go-rod/rod"
)

// 页面检测关键词
var (
	noItemsHints = []string{
		"no results found",
		"no items found",
		"we couldn't find anything",
		"try adjusting your search",
	}
	blockedHints = []string{
		"cloudflare",
		"attention required",
		"verify you are human",
		"access denied",
		"just a moment",
		"checking your browser",
		"datadome",
		"recaptcha",
		"hcaptcha",
		"captcha",
		"403 forbidden",
		"429 too many requests",
		"rate limited",
		"too many requests",
	}
)

// containsAny 检查文本是否包含任意一个关键词
func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// getPageBodyText 获取页面 body 文本（带超时保护）
func (c *Client) getPageBodyText(page *rod.Page) string {
	pWithTimeout := page.Timeout(pageTextCheckTimeout)
	body, err := pWithTimeout.Element("body")
	if err != nil {
		return ""
	}
	text, err := body.Text()
	if err != nil {
		return ""
	}
	return text
}

func (c *Client) isNoItemsPage(page *rod.Page) bool {
	// 先检查空状态 DOM 元素
	if elems, err := page.Elements(`[data-testid="catalog-empty-state"]`); err == nil && len(elems) > 0 {
		return true
	}
	text := strings.ToLower(c.getPageBodyText(page))
	return text != "" && containsAny(text, noItemsHints)
}

func (c *Client) isBlockedPage(page *rod.Page) bool {
	text := strings.ToLower(c.getPageBodyText(page))
	return text != "" && containsAny(text, blockedHints)
}

// crawlErrorType 抓取错误类型
type crawlErrorType int

const (
	errTypeUnknown crawlErrorType = iota
	errTypeTimeout
	errTypeBlocked
	errTypeNetwork
	errTypeParseError
)

// String 返回用作日志字段和指标标签的原因名
func (t crawlErrorType) String() string {
	switch t {
	case errTypeTimeout:
		return "timeout"
	case errTypeBlocked:
		return "blocked"
	case errTypeNetwork:
		return "network"
	case errTypeParseError:
		return "parse"
	default:
		return "unknown"
	}
}

// classifyError 统一的错误分类函数
func classifyError(err error) crawlErrorType {
	if err == nil {
		return errTypeUnknown
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errTypeTimeout
	}

	msg := strings.ToLower(err.Error())

	blockedKeywords := []string{
		"blocked_page", "cloudflare", "datadome", "attention required",
		"access denied", "403", "429", "forbidden", "too many requests",
	}
	for _, kw := range blockedKeywords {
		if strings.Contains(msg, kw) {
			return errTypeBlocked
		}
	}

	if strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded") {
		return errTypeTimeout
	}

	networkKeywords := []string{"net::", "connection", "navigate"}
	for _, kw := range networkKeywords {
		if strings.Contains(msg, kw) {
			return errTypeNetwork
		}
	}

	if strings.Contains(msg, "parse") || strings.Contains(msg, "extract") {
		return errTypeParseError
	}

	return errTypeUnknown
}
