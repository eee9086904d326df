package store

import (
	"context"
	"fmt"

	"reselldash/internal/model"
)

// Shipments 发货记录表的存取。
type Shipments struct {
	c *Client
}

// NewShipments 创建发货存取器
func NewShipments(c *Client) *Shipments {
	return &Shipments{c: c}
}

// List 按状态过滤返回发货记录, 创建时间倒序
func (r *Shipments) List(ctx context.Context, status string, limit int) ([]model.Shipment, error) {
	q := r.c.From("shipments").Select("*")
	if status != "" {
		q = q.Eq("status", status)
	}
	if limit <= 0 {
		limit = defaultListLimit
	}

	var rows []model.Shipment
	if err := q.Order("created_at", true).Limit(limit).Get(ctx, &rows); err != nil {
		return nil, fmt.Errorf("list shipments: %w", err)
	}
	return rows, nil
}

// Create 插入发货记录
func (r *Shipments) Create(ctx context.Context, sh *model.Shipment) (*model.Shipment, error) {
	var rows []model.Shipment
	if err := r.c.From("shipments").Insert(ctx, sh, &rows); err != nil {
		return nil, fmt.Errorf("create shipment: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("create shipment: %w", ErrNotFound)
	}
	return &rows[0], nil
}

// Update 按 ID 局部更新并刷新 updated_at
func (r *Shipments) Update(ctx context.Context, id string, patch map[string]any) (*model.Shipment, error) {
	patch["updated_at"] = nowUTC()

	var rows []model.Shipment
	if err := r.c.From("shipments").Eq("id", id).Update(ctx, patch, &rows); err != nil {
		return nil, fmt.Errorf("update shipment %s: %w", id, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("update shipment %s: %w", id, ErrNotFound)
	}
	return &rows[0], nil
}
