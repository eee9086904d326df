package integration

import (
	"fmt"
	"math"
	"strings"
	"time"

	"reselldash/internal/model"
	"reselldash/internal/vinted"
)

// 导入商品的固定取值
const (
	importedCondition = "Good"
	importedPlatform  = "Vinted"
	defaultBrand      = "Unknown"
	feeRate           = 0.10
)

// GenerateSKU 为导入商品生成确定性货号。
//
// 有品牌时取品牌前三个字符, 转大写并去掉空格作为前缀:
// GenerateSKU("123", "Nike") == "VINT-NIK-123"。
// 品牌为空时退化为 "VINT-<id>"。
func GenerateSKU(id, brand string) string {
	brand = strings.TrimSpace(brand)
	if brand == "" {
		return "VINT-" + id
	}

	runes := []rune(brand)
	if len(runes) > 3 {
		runes = runes[:3]
	}
	prefix := strings.ReplaceAll(strings.ToUpper(string(runes)), " ", "")
	if prefix == "" {
		return "VINT-" + id
	}
	return "VINT-" + prefix + "-" + id
}

// Normalize 把市场商品转换为库存商品记录。
//
// 转换要么完整成功, 要么返回 error, 不产生半成品记录。
//
// 参数:
//   - l: 搜索结果中的商品
//   - queryID: 触发导入的已保存搜索 ID (可为空)
//
// 返回值:
//   - *model.Item: 待入库的商品记录
//   - error: 商品缺少必要字段时返回错误
func Normalize(l vinted.Listing, queryID string) (*model.Item, error) {
	if l.ID == "" {
		return nil, fmt.Errorf("normalize: listing has no id")
	}
	if l.Title == "" {
		return nil, fmt.Errorf("normalize: listing %s has no title", l.ID)
	}
	if l.Price < 0 {
		return nil, fmt.Errorf("normalize: listing %s has negative price", l.ID)
	}

	brand := l.BrandTitle
	if strings.TrimSpace(brand) == "" {
		brand = defaultBrand
	}

	fees := round2(l.Price * feeRate)
	salePrice := l.Price
	externalID := l.ID

	item := &model.Item{
		SKU:            GenerateSKU(l.ID, l.BrandTitle),
		ItemName:       l.Title,
		Condition:      importedCondition,
		Brand:          brand,
		Platforms:      []string{importedPlatform},
		ListingStatus:  model.ListingStatusDraft,
		SalePrice:      &salePrice,
		FeesEstimate:   &fees,
		ShippingPaidBy: "Buyer",
		ShippingCost:   0,
		Notes:          "Imported from Vinted. Original URL: " + l.URL,
		Photos:         []string{},
		VintedItemID:   &externalID,
	}

	if l.SizeTitle != "" {
		size := l.SizeTitle
		item.Size = &size
	}
	if l.Photo != "" {
		item.Photos = []string{l.Photo}
	}
	if l.CreatedAtTS > 0 {
		listed := time.Unix(l.CreatedAtTS, 0).UTC()
		item.DateListed = &listed
	}
	if queryID != "" {
		qid := queryID
		item.VintedQueryID = &qid
	}

	return item, nil
}

// CanImport 检查商品标题是否命中禁用词。
//
// 匹配大小写不敏感的子串。禁用词列表为空时一律放行。
//
// 返回值:
//   - bool: 是否允许导入
//   - string: 拒绝原因 (允许时为空)
func CanImport(l vinted.Listing, banWords []string) (bool, string) {
	title := strings.ToLower(l.Title)
	for _, w := range banWords {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		if strings.Contains(title, w) {
			return false, "banned word: " + w
		}
	}
	return true, ""
}

// ParseBanWords 解析竖线分隔的禁用词配置。
//
// 空段会被丢弃, 因此 "a|b" 与 "a|||b" 的解析结果一致。
func ParseBanWords(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, "|")
	words := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			words = append(words, p)
		}
	}
	return words
}

// round2 四舍五入保留两位小数
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
