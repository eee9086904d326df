package store

import (
	"context"
	"fmt"

	"reselldash/internal/model"
)

const defaultListLimit = 50

// Items 库存商品表的存取。
type Items struct {
	c *Client
}

// NewItems 创建商品存取器
func NewItems(c *Client) *Items {
	return &Items{c: c}
}

// List 按过滤条件返回商品, 创建时间倒序
func (r *Items) List(ctx context.Context, f model.ItemFilter) ([]model.Item, error) {
	q := r.c.From("items").Select("*")
	if f.ListingStatus != "" {
		q = q.Eq("listing_status", f.ListingStatus)
	}
	if f.Category != "" {
		q = q.Eq("category", f.Category)
	}
	if f.Brand != "" {
		q = q.ILike("brand", "*"+f.Brand+"*")
	}
	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	var rows []model.Item
	if err := q.Order("created_at", true).Limit(limit).Get(ctx, &rows); err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return rows, nil
}

// Get 按内部 ID 查询单个商品
func (r *Items) Get(ctx context.Context, id string) (*model.Item, error) {
	return r.getBy(ctx, "id", id)
}

// GetBySKU 按货号查询单个商品
func (r *Items) GetBySKU(ctx context.Context, sku string) (*model.Item, error) {
	return r.getBy(ctx, "sku", sku)
}

// GetByVintedID 按源平台商品 ID 精确查询, 用于导入去重
func (r *Items) GetByVintedID(ctx context.Context, vintedID string) (*model.Item, error) {
	return r.getBy(ctx, "vinted_item_id", vintedID)
}

func (r *Items) getBy(ctx context.Context, col, val string) (*model.Item, error) {
	var rows []model.Item
	if err := r.c.From("items").Select("*").Eq(col, val).Limit(1).Get(ctx, &rows); err != nil {
		return nil, fmt.Errorf("get item by %s: %w", col, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("get item by %s: %w", col, ErrNotFound)
	}
	return &rows[0], nil
}

// Create 插入商品。
//
// 带 vinted_item_id 的商品走存储端唯一约束上的 insert-or-ignore,
// 并发导入同一外部商品时只会落库一条, 冲突方收到 ErrDuplicate。
func (r *Items) Create(ctx context.Context, item *model.Item) (*model.Item, error) {
	var rows []model.Item
	var err error
	if item.VintedItemID != nil && *item.VintedItemID != "" {
		err = r.c.From("items").InsertIgnore(ctx, "vinted_item_id", item, &rows)
	} else {
		err = r.c.From("items").Insert(ctx, item, &rows)
	}
	if err != nil {
		return nil, fmt.Errorf("create item: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("create item: %w", ErrNotFound)
	}
	return &rows[0], nil
}

// Update 按 ID 局部更新并刷新 updated_at
func (r *Items) Update(ctx context.Context, id string, patch map[string]any) (*model.Item, error) {
	patch["updated_at"] = nowUTC()

	var rows []model.Item
	if err := r.c.From("items").Eq("id", id).Update(ctx, patch, &rows); err != nil {
		return nil, fmt.Errorf("update item %s: %w", id, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("update item %s: %w", id, ErrNotFound)
	}
	return &rows[0], nil
}

// Delete 按 ID 删除商品
func (r *Items) Delete(ctx context.Context, id string) error {
	if err := r.c.From("items").Eq("id", id).Delete(ctx); err != nil {
		return fmt.Errorf("delete item %s: %w", id, err)
	}
	return nil
}

// Stats 汇总库存统计。
//
// 利润只累计已售出商品, 结果保留两位小数。
func (r *Items) Stats(ctx context.Context) (*model.ItemStats, error) {
	var rows []model.Item
	if err := r.c.From("items").Select("listing_status,profit").Get(ctx, &rows); err != nil {
		return nil, fmt.Errorf("item stats: %w", err)
	}

	stats := &model.ItemStats{TotalItems: len(rows)}
	for _, it := range rows {
		switch it.ListingStatus {
		case model.ListingStatusListed:
			stats.Listed++
		case model.ListingStatusSold:
			stats.Sold++
			if it.Profit != nil {
				stats.TotalProfit += *it.Profit
			}
		case model.ListingStatusDraft:
			stats.Draft++
		}
	}
	stats.TotalProfit = round2(stats.TotalProfit)
	return stats, nil
}
