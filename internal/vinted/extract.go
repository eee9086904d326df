package vinted

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-rod/rod"
)

var (
	itemPathRe = regexp.MustCompile(`/items/([0-9]+)`)
	priceRe    = regexp.MustCompile(`([0-9]+(?:[.,][0-9]{1,2})?)`)
)

// extractListing 从单个商品卡片元素中提取商品信息。
//
// 链接是唯一的硬性要求, 图片被资源屏蔽移除后其余字段按可用性提取。
func extractListing(el *rod.Element) (Listing, error) {
	link, err := el.Element("a")
	if err != nil {
		return Listing{}, fmt.Errorf("link: %w", err)
	}

	itemURL := ""
	if href, _ := link.Attribute("href"); href != nil {
		itemURL = normalizeItemURL(*href)
	}

	id := extractItemID(itemURL)
	if id == "" {
		return Listing{}, fmt.Errorf("no item id in %q", itemURL)
	}

	// 覆盖层链接的 title 属性带完整描述, 是最稳的标题来源
	title := ""
	if t, _ := link.Attribute("title"); t != nil {
		title = firstSegment(*t)
	}
	if title == "" {
		if titleEl, err := el.Element(`[data-testid$="--description-title"]`); err == nil {
			title, _ = titleEl.Text()
		}
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return Listing{}, fmt.Errorf("no title for item %s", id)
	}

	price := 0.0
	if priceEl, err := el.Element(`[data-testid$="--price-text"]`); err == nil {
		if txt, err := priceEl.Text(); err == nil {
			if v, err := ParsePrice(txt); err == nil {
				price = v
			}
		}
	}

	brand := ""
	if brandEl, err := el.Element(`[data-testid$="--description-title"]`); err == nil {
		brand, _ = brandEl.Text()
		brand = strings.TrimSpace(brand)
	}

	size := ""
	if sizeEl, err := el.Element(`[data-testid$="--description-subtitle"]`); err == nil {
		size, _ = sizeEl.Text()
		size = strings.TrimSpace(size)
	}

	photo := ""
	if img, err := el.Element("img"); err == nil {
		if src, _ := img.Attribute("src"); src != nil {
			photo = *src
		}
	}

	return Listing{
		ID:         id,
		Title:      title,
		Price:      price,
		BrandTitle: brand,
		SizeTitle:  size,
		URL:        itemURL,
		Photo:      photo,
	}, nil
}

// ParsePrice 解析价格文本。
//
// 兼容 "£24.99"、"24,99 €"、"£1,299.00" 这几类写法。
//
// 参数:
//
//	txt: 原始价格字符串
//
// 返回值:
//
//	float64: 解析后的数值
//	error: 文本中没有数字时返回错误
func ParsePrice(txt string) (float64, error) {
	txt = strings.TrimSpace(txt)
	if txt == "" {
		return 0, fmt.Errorf("empty price")
	}

	// 千位分隔: 逗号后跟三位数字且含小数点时视为千位分隔符
	cleaned := txt
	if strings.Contains(cleaned, ".") {
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	}

	match := priceRe.FindString(cleaned)
	if match == "" {
		return 0, fmt.Errorf("no digits in %q", txt)
	}
	// 欧陆写法的小数逗号
	match = strings.ReplaceAll(match, ",", ".")

	val, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, fmt.Errorf("parse price %q: %w", txt, err)
	}
	return val, nil
}

// extractItemID 从商品详情页链接中提取平台商品 ID
func extractItemID(itemURL string) string {
	if m := itemPathRe.FindStringSubmatch(itemURL); len(m) > 1 {
		return m[1]
	}
	return ""
}

// normalizeItemURL 将相对或协议省略的链接补全为完整 URL
func normalizeItemURL(u string) string {
	if u == "" {
		return u
	}
	if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
		return u
	}
	if strings.HasPrefix(u, "//") {
		return "https:" + u
	}
	if strings.HasPrefix(u, "/") {
		return "https://www.vinted.co.uk" + u
	}
	return "https://www.vinted.co.uk/" + u
}

// firstSegment 取 title 属性里逗号前的第一段作为标题
func firstSegment(s string) string {
	if i := strings.Index(s, ","); i > 0 {
		return s[:i]
	}
	return s
}
