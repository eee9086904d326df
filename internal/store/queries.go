package store

import (
	"context"
	"fmt"

	"reselldash/internal/model"
)

// SavedQueries 已保存搜索表的存取, 调度器的任务来源。
type SavedQueries struct {
	c *Client
}

// NewSavedQueries 创建搜索存取器
func NewSavedQueries(c *Client) *SavedQueries {
	return &SavedQueries{c: c}
}

// List 返回已保存的搜索, enabledOnly 为 true 时只返回启用项
func (r *SavedQueries) List(ctx context.Context, enabledOnly bool) ([]model.SavedQuery, error) {
	q := r.c.From("saved_queries").Select("*")
	if enabledOnly {
		q = q.Eq("enabled", "true")
	}

	var rows []model.SavedQuery
	if err := q.Order("created_at", false).Get(ctx, &rows); err != nil {
		return nil, fmt.Errorf("list saved queries: %w", err)
	}
	return rows, nil
}

// Create 插入搜索
func (r *SavedQueries) Create(ctx context.Context, sq *model.SavedQuery) (*model.SavedQuery, error) {
	var rows []model.SavedQuery
	if err := r.c.From("saved_queries").Insert(ctx, sq, &rows); err != nil {
		return nil, fmt.Errorf("create saved query: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("create saved query: %w", ErrNotFound)
	}
	return &rows[0], nil
}

// Delete 按 ID 删除搜索
func (r *SavedQueries) Delete(ctx context.Context, id string) error {
	if err := r.c.From("saved_queries").Eq("id", id).Delete(ctx); err != nil {
		return fmt.Errorf("delete saved query %s: %w", id, err)
	}
	return nil
}
