package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "reselldash:dedup:query:"

// Deduplicator 基于 Redis SETNX 的同步任务去重器。
//
// 调度器在入队前打标记, 窗口期内同一查询不会被重复投递。
// Worker 处理失败时可删除标记, 让下一轮调度立即重试。
type Deduplicator struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewDeduplicator 创建去重器。
//
// 参数:
//
//	rdb: Redis 客户端
//	ttl: 标记存活时间, 非正值时回退为一小时
func NewDeduplicator(rdb *redis.Client, ttl time.Duration) *Deduplicator {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Deduplicator{
		rdb: rdb,
		ttl: ttl,
	}
}

// IsDuplicate 原子判定并打标记。
//
// 返回 true 表示窗口期内已投递过该查询。
func (d *Deduplicator) IsDuplicate(ctx context.Context, queryID string) (bool, error) {
	if d == nil || d.rdb == nil || queryID == "" {
		return false, nil
	}
	ok, err := d.rdb.SetNX(ctx, keyPrefix+queryID, "1", d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedup setnx: %w", err)
	}
	return !ok, nil
}

// Delete 移除查询的去重标记
func (d *Deduplicator) Delete(ctx context.Context, queryID string) error {
	if d == nil || d.rdb == nil || queryID == "" {
		return nil
	}
	if err := d.rdb.Del(ctx, keyPrefix+queryID).Err(); err != nil {
		return fmt.Errorf("dedup del: %w", err)
	}
	return nil
}
