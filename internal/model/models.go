package model

import "time"

// 商品上架状态
const (
	ListingStatusDraft  = "Draft"
	ListingStatusListed = "Listed"
	ListingStatusSold   = "Sold"
)

// 回款状态
const (
	PayoutPending = "Pending"
	PayoutPaid    = "Paid"
)

// 待办任务状态与优先级
const (
	TaskStatusTodo       = "Todo"
	TaskStatusInProgress = "In Progress"
	TaskStatusDone       = "Done"

	TaskPriorityHigh   = "High"
	TaskPriorityMedium = "Medium"
	TaskPriorityLow    = "Low"
)

// 集成事件日志状态
const (
	LogStatusSuccess = "Success"
	LogStatusWarning = "Warning"
	LogStatusError   = "Error"
)

// Item 表示一件库存商品。
//
// VintedItemID 是商品在源平台的唯一标识，用于导入去重（存储端唯一约束）。
type Item struct {
	ID        string    `json:"id,omitempty"` // 存储端生成的唯一标识
	CreatedAt time.Time `json:"created_at,omitzero"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`

	SKU           string   `json:"sku"`       // 内部货号
	ItemName      string   `json:"item_name"` // 商品名称
	Category      *string  `json:"category"`
	Size          *string  `json:"size"`
	Condition     string   `json:"condition"`
	Brand         string   `json:"brand"`
	Platforms     []string `json:"platforms"`      // 商品所在平台列表
	ListingStatus string   `json:"listing_status"` // Draft / Listed / Sold

	PurchasePrice  *float64 `json:"purchase_price"` // 进货价 (导入时未知)
	SalePrice      *float64 `json:"sale_price"`
	FeesEstimate   *float64 `json:"fees_estimate"` // 平台费用估算
	Profit         *float64 `json:"profit"`        // 已售出商品的实际利润
	ShippingPaidBy string   `json:"shipping_paid_by"`
	ShippingCost   float64  `json:"shipping_cost"`

	Location *string  `json:"location"` // 仓储位置
	Notes    string   `json:"notes"`
	Photos   []string `json:"photos"`

	DateListed *time.Time `json:"date_listed"`
	DateSold   *time.Time `json:"date_sold"`

	VintedItemID  *string `json:"vinted_item_id"`  // 源平台商品 ID (唯一索引)
	VintedQueryID *string `json:"vinted_query_id"` // 导入来源的搜索 ID
}

// ItemFilter 商品列表查询条件, 零值字段表示不过滤
type ItemFilter struct {
	ListingStatus string
	Category      string
	Brand         string // 模糊匹配
	Limit         int
}

// ItemStats 库存统计汇总
type ItemStats struct {
	TotalItems  int     `json:"total_items"`
	Listed      int     `json:"listed"`
	Sold        int     `json:"sold"`
	Draft       int     `json:"draft"`
	TotalProfit float64 `json:"total_profit"` // 已售出商品利润合计, 保留两位小数
}

// Sale 表示一笔销售订单。
type Sale struct {
	ID        string    `json:"id,omitempty"`
	CreatedAt time.Time `json:"created_at,omitzero"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`

	OrderID  string  `json:"order_id"`
	Platform string  `json:"platform"`
	ItemID   *string `json:"item_id"` // 关联的库存商品
	ItemName string  `json:"item_name"`

	SalePrice         float64 `json:"sale_price"`
	Fees              float64 `json:"fees"`
	ShippingCost      float64 `json:"shipping_cost"`
	BuyerPaidShipping bool    `json:"buyer_paid_shipping"`
	NetProfit         float64 `json:"net_profit"`

	DateSold       *time.Time `json:"date_sold"`
	DateShipped    *time.Time `json:"date_shipped"`
	TrackingNumber string     `json:"tracking_number"`
	PayoutStatus   string     `json:"payout_status"` // Pending / Paid
	BuyerName      string     `json:"buyer_name"`
	Notes          string     `json:"notes"`
}

// SaleFilter 销售列表查询条件
type SaleFilter struct {
	Platform     string
	PayoutStatus string
	Limit        int
}

// SaleStats 销售统计汇总
type SaleStats struct {
	TotalSales   int     `json:"total_sales"`
	TotalRevenue float64 `json:"total_revenue"` // 成交价合计
	TotalProfit  float64 `json:"total_profit"`  // 净利润合计
	AvgProfit    float64 `json:"avg_profit"`
}

// Shipment 表示一条发货记录。
type Shipment struct {
	ID        string    `json:"id,omitempty"`
	CreatedAt time.Time `json:"created_at,omitzero"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`

	SaleID       *string `json:"sale_id"`
	ItemName     string  `json:"item_name"`
	Platform     string  `json:"platform"`
	BuyerName    string  `json:"buyer_name"`
	BuyerAddress string  `json:"buyer_address"`

	Status         string     `json:"status"` // Created / Shipped / Delivered / Lost / Returned
	TrackingNumber string     `json:"tracking_number"`
	Carrier        string     `json:"carrier"`
	ShippedAt      *time.Time `json:"shipped_at"`
	DeliveredAt    *time.Time `json:"delivered_at"`
}

// ReturnCase 表示一条退货工单。
type ReturnCase struct {
	ID        string    `json:"id,omitempty"`
	CreatedAt time.Time `json:"created_at,omitzero"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`

	ItemName string `json:"item_name"`
	Platform string `json:"platform"`
	Reason   string `json:"reason"`

	Status       string     `json:"status"`  // Open / Resolved
	Outcome      string     `json:"outcome"` // Refunded / Rejected / ...
	RefundAmount *float64   `json:"refund_amount"`
	OpenedAt     *time.Time `json:"opened_at"`
	ResolvedAt   *time.Time `json:"resolved_at"`
	Notes        string     `json:"notes"`
}

// Task 表示一条团队待办任务。
type Task struct {
	ID        string    `json:"id,omitempty"`
	CreatedAt time.Time `json:"created_at,omitzero"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`

	Title       string     `json:"title"`
	Description string     `json:"description"`
	Priority    string     `json:"priority"` // High / Medium / Low
	Status      string     `json:"status"`   // Todo / In Progress / Done
	DueDate     *time.Time `json:"due_date"`
}

// Setting 键值配置项, key 为主键
type Setting struct {
	Key         string    `json:"key"`
	Value       string    `json:"value"`
	Description *string   `json:"description,omitempty"` // 配置项用途说明, 可选
	UpdatedAt   time.Time `json:"updated_at,omitzero"`
}

// SavedQuery 表示一条已保存的市场搜索。
//
// 调度器按启用状态定期为其入队同步任务。
type SavedQuery struct {
	ID        string    `json:"id,omitempty"`
	CreatedAt time.Time `json:"created_at,omitzero"`

	Label    string `json:"label"`
	QueryURL string `json:"query_url"`
	Limit    int    `json:"items_limit"` // 单次同步抓取上限
	Enabled  bool   `json:"enabled"`
}

// IntegrationLog 集成事件日志记录
type IntegrationLog struct {
	ID        string    `json:"id,omitempty"`
	CreatedAt time.Time `json:"created_at,omitzero"`

	EventType string         `json:"event_type"` // query_sync / item_imported / ...
	Status    string         `json:"status"`     // Success / Warning / Error
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
}
