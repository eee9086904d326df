package store

import (
	"context"
	"fmt"

	"reselldash/internal/model"
)

// Tasks 待办任务表的存取。
type Tasks struct {
	c *Client
}

// NewTasks 创建任务存取器
func NewTasks(c *Client) *Tasks {
	return &Tasks{c: c}
}

// List 按状态过滤返回任务, 创建时间倒序
func (r *Tasks) List(ctx context.Context, status string, limit int) ([]model.Task, error) {
	q := r.c.From("tasks").Select("*")
	if status != "" {
		q = q.Eq("status", status)
	}
	if limit <= 0 {
		limit = defaultListLimit
	}

	var rows []model.Task
	if err := q.Order("created_at", true).Limit(limit).Get(ctx, &rows); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return rows, nil
}

// Create 插入任务
func (r *Tasks) Create(ctx context.Context, t *model.Task) (*model.Task, error) {
	var rows []model.Task
	if err := r.c.From("tasks").Insert(ctx, t, &rows); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("create task: %w", ErrNotFound)
	}
	return &rows[0], nil
}

// Update 按 ID 局部更新并刷新 updated_at
func (r *Tasks) Update(ctx context.Context, id string, patch map[string]any) (*model.Task, error) {
	patch["updated_at"] = nowUTC()

	var rows []model.Task
	if err := r.c.From("tasks").Eq("id", id).Update(ctx, patch, &rows); err != nil {
		return nil, fmt.Errorf("update task %s: %w", id, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("update task %s: %w", id, ErrNotFound)
	}
	return &rows[0], nil
}

// Delete 按 ID 删除任务
func (r *Tasks) Delete(ctx context.Context, id string) error {
	if err := r.c.From("tasks").Eq("id", id).Delete(ctx); err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	return nil
}
