package store

import (
	"context"
	"fmt"

	"reselldash/internal/model"
)

// Settings 键值配置表的存取。
type Settings struct {
	c *Client
}

// NewSettings 创建配置存取器
func NewSettings(c *Client) *Settings {
	return &Settings{c: c}
}

// Get 读取一个配置项的值, 不存在时返回 ErrNotFound
func (s *Settings) Get(ctx context.Context, key string) (string, error) {
	var rows []model.Setting
	if err := s.c.From("settings").Select("key,value").Eq("key", key).Limit(1).Get(ctx, &rows); err != nil {
		return "", fmt.Errorf("get setting %q: %w", key, err)
	}
	if len(rows) == 0 {
		return "", fmt.Errorf("get setting %q: %w", key, ErrNotFound)
	}
	return rows[0].Value, nil
}

// Set 写入配置项, 已存在时覆盖并刷新 updated_at
func (s *Settings) Set(ctx context.Context, key, value string) error {
	return s.upsert(ctx, model.Setting{Key: key, Value: value, UpdatedAt: nowUTC()})
}

// SetWithDescription 写入配置项并附带用途说明
func (s *Settings) SetWithDescription(ctx context.Context, key, value, description string) error {
	row := model.Setting{Key: key, Value: value, Description: &description, UpdatedAt: nowUTC()}
	return s.upsert(ctx, row)
}

func (s *Settings) upsert(ctx context.Context, row model.Setting) error {
	if err := s.c.From("settings").Upsert(ctx, "key", row, nil); err != nil {
		return fmt.Errorf("set setting %q: %w", row.Key, err)
	}
	return nil
}

// All 返回全部配置项
func (s *Settings) All(ctx context.Context) ([]model.Setting, error) {
	var rows []model.Setting
	if err := s.c.From("settings").Select("*").Order("key", false).Get(ctx, &rows); err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	return rows, nil
}
