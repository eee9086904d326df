package vinted

// Listing 表示从市场搜索结果页提取的一件商品。
//
// ID 是平台侧的唯一标识, 下游用它做导入去重。
type Listing struct {
	ID          string  // 平台商品 ID
	Title       string  // 商品标题
	Price       float64 // 标价
	BrandTitle  string  // 品牌名 (可能为空)
	SizeTitle   string  // 尺码 (可能为空)
	URL         string  // 商品详情页链接
	Photo       string  // 主图链接 (可能为空)
	CreatedAtTS int64   // 上架时间 (Unix 秒, 0 表示未知)
}
