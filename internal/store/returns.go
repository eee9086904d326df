package store

import (
	"context"
	"fmt"

	"reselldash/internal/model"
)

// Returns 退货工单表的存取。
type Returns struct {
	c *Client
}

// NewReturns 创建退货存取器
func NewReturns(c *Client) *Returns {
	return &Returns{c: c}
}

// List 按状态过滤返回退货工单, 创建时间倒序
func (r *Returns) List(ctx context.Context, status string, limit int) ([]model.ReturnCase, error) {
	q := r.c.From("return_cases").Select("*")
	if status != "" {
		q = q.Eq("status", status)
	}
	if limit <= 0 {
		limit = defaultListLimit
	}

	var rows []model.ReturnCase
	if err := q.Order("created_at", true).Limit(limit).Get(ctx, &rows); err != nil {
		return nil, fmt.Errorf("list return cases: %w", err)
	}
	return rows, nil
}

// Create 插入退货工单
func (r *Returns) Create(ctx context.Context, rc *model.ReturnCase) (*model.ReturnCase, error) {
	var rows []model.ReturnCase
	if err := r.c.From("return_cases").Insert(ctx, rc, &rows); err != nil {
		return nil, fmt.Errorf("create return case: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("create return case: %w", ErrNotFound)
	}
	return &rows[0], nil
}

// Update 按 ID 局部更新并刷新 updated_at
func (r *Returns) Update(ctx context.Context, id string, patch map[string]any) (*model.ReturnCase, error) {
	patch["updated_at"] = nowUTC()

	var rows []model.ReturnCase
	if err := r.c.From("return_cases").Eq("id", id).Update(ctx, patch, &rows); err != nil {
		return nil, fmt.Errorf("update return case %s: %w", id, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("update return case %s: %w", id, ErrNotFound)
	}
	return &rows[0], nil
}
