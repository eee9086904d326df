package store

import (
	"context"
	"fmt"

	"reselldash/internal/model"
)

// Sales 销售订单表的存取。
type Sales struct {
	c *Client
}

// NewSales 创建销售存取器
func NewSales(c *Client) *Sales {
	return &Sales{c: c}
}

// List 按过滤条件返回订单, 成交日期倒序
func (r *Sales) List(ctx context.Context, f model.SaleFilter) ([]model.Sale, error) {
	q := r.c.From("sales").Select("*")
	if f.Platform != "" {
		q = q.Eq("platform", f.Platform)
	}
	if f.PayoutStatus != "" {
		q = q.Eq("payout_status", f.PayoutStatus)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	var rows []model.Sale
	if err := q.Order("date_sold", true).Limit(limit).Get(ctx, &rows); err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	return rows, nil
}

// Get 按 ID 查询单笔订单
func (r *Sales) Get(ctx context.Context, id string) (*model.Sale, error) {
	var rows []model.Sale
	if err := r.c.From("sales").Select("*").Eq("id", id).Limit(1).Get(ctx, &rows); err != nil {
		return nil, fmt.Errorf("get sale %s: %w", id, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("get sale %s: %w", id, ErrNotFound)
	}
	return &rows[0], nil
}

// Create 插入订单
func (r *Sales) Create(ctx context.Context, sale *model.Sale) (*model.Sale, error) {
	var rows []model.Sale
	if err := r.c.From("sales").Insert(ctx, sale, &rows); err != nil {
		return nil, fmt.Errorf("create sale: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("create sale: %w", ErrNotFound)
	}
	return &rows[0], nil
}

// Update 按 ID 局部更新并刷新 updated_at
func (r *Sales) Update(ctx context.Context, id string, patch map[string]any) (*model.Sale, error) {
	patch["updated_at"] = nowUTC()

	var rows []model.Sale
	if err := r.c.From("sales").Eq("id", id).Update(ctx, patch, &rows); err != nil {
		return nil, fmt.Errorf("update sale %s: %w", id, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("update sale %s: %w", id, ErrNotFound)
	}
	return &rows[0], nil
}

// Stats 汇总销售统计。
//
// 营收累计成交价, 利润累计净利润, 均值为利润合计除以单数, 全部保留两位小数。
// 没有订单时返回全零统计。
func (r *Sales) Stats(ctx context.Context) (*model.SaleStats, error) {
	var rows []model.Sale
	if err := r.c.From("sales").Select("sale_price,net_profit").Get(ctx, &rows); err != nil {
		return nil, fmt.Errorf("sale stats: %w", err)
	}

	stats := &model.SaleStats{TotalSales: len(rows)}
	for _, s := range rows {
		stats.TotalRevenue += s.SalePrice
		stats.TotalProfit += s.NetProfit
	}
	if stats.TotalSales > 0 {
		stats.AvgProfit = round2(stats.TotalProfit / float64(stats.TotalSales))
	}
	stats.TotalRevenue = round2(stats.TotalRevenue)
	stats.TotalProfit = round2(stats.TotalProfit)
	return stats, nil
}
