package vinted

import (
	"net/url"
	"strconv"
	"strings"
)

const catalogBase = "https://www.vinted.co.uk/catalog"

// SearchOptions 搜索页 URL 的可选参数, 零值字段不出现在 URL 中。
type SearchOptions struct {
	PriceFrom float64
	PriceTo   float64
	BrandIDs  []int
	Order     string // newest_first / price_low_to_high / price_high_to_low
}

// BuildSearchURL 构造目录搜索页 URL。
//
// 抓取数量上限由客户端内部控制, 不作为 URL 参数传递。
//
// 参数:
//
//	text: 搜索关键词
//	opts: 可选过滤条件
//
// 返回值:
//
//	string: 完整的目录搜索 URL
func BuildSearchURL(text string, opts SearchOptions) string {
	values := url.Values{}

	if text != "" {
		values.Set("search_text", text)
	}
	if opts.PriceFrom > 0 {
		values.Set("price_from", strconv.FormatFloat(opts.PriceFrom, 'f', -1, 64))
	}
	if opts.PriceTo > 0 {
		values.Set("price_to", strconv.FormatFloat(opts.PriceTo, 'f', -1, 64))
	}
	for _, id := range opts.BrandIDs {
		values.Add("brand_ids[]", strconv.Itoa(id))
	}
	if opts.Order != "" {
		values.Set("order", opts.Order)
	}

	qs := values.Encode()
	if qs == "" {
		return catalogBase
	}
	qs = strings.ReplaceAll(qs, "+", "%20")
	return catalogBase + "?" + qs
}
