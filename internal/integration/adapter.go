package integration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"reselldash/internal/model"
	"reselldash/internal/pkg/metrics"
	"reselldash/internal/store"
	"reselldash/internal/vinted"
)

// 集成相关的配置键
const (
	SettingEnabled      = "vinted_integration_enabled"
	SettingLastSync     = "vinted_last_sync"
	SettingSyncInterval = "vinted_sync_interval"
	SettingBanWords     = "vinted_ban_words"
)

// 默认同步间隔 (分钟), 仅作为状态展示的建议值
const defaultSyncIntervalMinutes = 60

// 连通性测试使用的固定搜索
const testConnectionURL = "https://www.vinted.co.uk/catalog?search_text=nike"

// Searcher 抽象市场搜索客户端。
type Searcher interface {
	Search(ctx context.Context, queryURL string, limit int) ([]vinted.Listing, error)
}

// SettingsStore 抽象配置项存取。
type SettingsStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// ItemStore 抽象商品存取, 同步只需要去重查询和创建。
type ItemStore interface {
	GetByVintedID(ctx context.Context, vintedID string) (*model.Item, error)
	Create(ctx context.Context, item *model.Item) (*model.Item, error)
}

// EventLogger 抽象集成事件日志。
type EventLogger interface {
	LogEvent(ctx context.Context, eventType, status, message string, data map[string]any)
}

// Adapter 封装市场集成的全部业务流程。
//
// 所有协作方都通过构造函数注入, 不持有任何全局状态。
// Adapter 本身不做调度, 同步节奏由调用方控制。
type Adapter struct {
	searcher Searcher
	settings SettingsStore
	items    ItemStore
	events   EventLogger
	logger   *slog.Logger
}

// NewAdapter 创建集成适配器
func NewAdapter(searcher Searcher, settings SettingsStore, items ItemStore, events EventLogger, logger *slog.Logger) *Adapter {
	return &Adapter{
		searcher: searcher,
		settings: settings,
		items:    items,
		events:   events,
		logger:   logger,
	}
}

// SyncResult 一次同步的汇总结果。
type SyncResult struct {
	Success  bool   `json:"success"`
	Imported int    `json:"imported"`
	Skipped  int    `json:"skipped"`
	Errors   int    `json:"errors"`
	Message  string `json:"message"`
}

// Status 集成当前状态。
type Status struct {
	Enabled             bool       `json:"enabled"`
	LastSync            *time.Time `json:"last_sync"`
	SyncIntervalMinutes int        `json:"sync_interval_minutes"`
}

// Enabled 检查集成开关是否打开, 配置缺失视为关闭
func (a *Adapter) Enabled(ctx context.Context) bool {
	v, err := a.settings.Get(ctx, SettingEnabled)
	if err != nil {
		return false
	}
	return v == "true"
}

// GetStatus 返回集成状态 (开关、上次同步时间、建议同步间隔)
func (a *Adapter) GetStatus(ctx context.Context) Status {
	st := Status{
		Enabled:             a.Enabled(ctx),
		SyncIntervalMinutes: defaultSyncIntervalMinutes,
	}

	if v, err := a.settings.Get(ctx, SettingLastSync); err == nil {
		if epoch, err := strconv.ParseInt(v, 10, 64); err == nil && epoch > 0 {
			ts := time.Unix(epoch, 0).UTC()
			st.LastSync = &ts
		}
	}
	if v, err := a.settings.Get(ctx, SettingSyncInterval); err == nil {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			st.SyncIntervalMinutes = n
		}
	}
	return st
}

// SyncQuery 执行一次搜索同步, 把结果导入库存。
//
// 整体抓取失败会中止同步, 单个商品的失败只计数不中止。
// 除中止路径外, 每次同步都会刷新 last_sync 并写入汇总事件。
//
// 参数:
//   - queryURL: 市场搜索页 URL
//   - queryID: 已保存搜索的 ID (可为空)
//   - limit: 抓取上限, <=0 时取 20
//
// 返回值:
//   - SyncResult: 导入/跳过/失败计数与结果消息
func (a *Adapter) SyncQuery(ctx context.Context, queryURL, queryID string, limit int) SyncResult {
	if !a.Enabled(ctx) {
		metrics.SyncRunsTotal.WithLabelValues("disabled").Inc()
		return SyncResult{Success: false, Message: "Integration disabled"}
	}

	if limit <= 0 {
		limit = 20
	}

	start := time.Now()
	defer func() {
		metrics.SyncDuration.Observe(time.Since(start).Seconds())
	}()

	a.logger.Info("starting query sync",
		slog.String("query_id", queryID),
		slog.String("query_url", queryURL),
		slog.Int("limit", limit))

	listings, err := a.searcher.Search(ctx, queryURL, limit)
	if err != nil {
		metrics.SyncRunsTotal.WithLabelValues("fetch_error").Inc()
		a.logger.Error("query fetch failed",
			slog.String("query_id", queryID),
			slog.String("error", err.Error()))
		a.events.LogEvent(ctx, "query_sync", model.LogStatusError,
			fmt.Sprintf("Sync failed: %v", err),
			map[string]any{"query_id": queryID, "query_url": queryURL})
		return SyncResult{Success: false, Message: fmt.Sprintf("fetch failed: %v", err)}
	}

	banWords := a.banWords(ctx)

	var result SyncResult
	for _, l := range listings {
		if ok, reason := CanImport(l, banWords); !ok {
			result.Skipped++
			metrics.ItemsSkippedTotal.WithLabelValues("banned").Inc()
			a.logger.Debug("listing rejected",
				slog.String("listing_id", l.ID),
				slog.String("reason", reason))
			continue
		}

		if _, err := a.items.GetByVintedID(ctx, l.ID); err == nil {
			result.Skipped++
			metrics.ItemsSkippedTotal.WithLabelValues("duplicate").Inc()
			continue
		} else if !errors.Is(err, store.ErrNotFound) {
			result.Errors++
			metrics.SyncItemErrorsTotal.Inc()
			a.logger.Warn("duplicate lookup failed",
				slog.String("listing_id", l.ID),
				slog.String("error", err.Error()))
			continue
		}

		item, err := Normalize(l, queryID)
		if err != nil {
			result.Errors++
			metrics.SyncItemErrorsTotal.Inc()
			a.logger.Warn("listing normalization failed",
				slog.String("listing_id", l.ID),
				slog.String("error", err.Error()))
			continue
		}

		created, err := a.items.Create(ctx, item)
		if err != nil {
			// 并发同步撞上唯一约束时按重复处理
			if errors.Is(err, store.ErrDuplicate) {
				result.Skipped++
				metrics.ItemsSkippedTotal.WithLabelValues("duplicate").Inc()
				continue
			}
			result.Errors++
			metrics.SyncItemErrorsTotal.Inc()
			a.logger.Warn("item create failed",
				slog.String("listing_id", l.ID),
				slog.String("error", err.Error()))
			continue
		}

		result.Imported++
		metrics.ItemsImportedTotal.Inc()
		a.events.LogEvent(ctx, "item_imported", model.LogStatusSuccess,
			fmt.Sprintf("Imported %q as %s", item.ItemName, item.SKU),
			map[string]any{"item_id": created.ID, "vinted_item_id": l.ID, "query_id": queryID})
	}

	// 同步完成后无条件刷新时间戳并写汇总事件
	if err := a.settings.Set(ctx, SettingLastSync, strconv.FormatInt(time.Now().Unix(), 10)); err != nil {
		a.logger.Warn("failed to stamp last sync", slog.String("error", err.Error()))
	}
	a.events.LogEvent(ctx, "query_sync", model.LogStatusSuccess,
		fmt.Sprintf("Sync complete: %d imported, %d skipped, %d errors",
			result.Imported, result.Skipped, result.Errors),
		map[string]any{
			"query_id": queryID,
			"imported": result.Imported,
			"skipped":  result.Skipped,
			"errors":   result.Errors,
		})

	metrics.SyncRunsTotal.WithLabelValues("ok").Inc()
	result.Success = true
	result.Message = fmt.Sprintf("Imported %d, skipped %d, errors %d",
		result.Imported, result.Skipped, result.Errors)

	a.logger.Info("query sync finished",
		slog.String("query_id", queryID),
		slog.Int("imported", result.Imported),
		slog.Int("skipped", result.Skipped),
		slog.Int("errors", result.Errors))
	return result
}

// Enable 打开集成开关并记录事件
func (a *Adapter) Enable(ctx context.Context) error {
	if err := a.settings.Set(ctx, SettingEnabled, "true"); err != nil {
		return fmt.Errorf("enable integration: %w", err)
	}
	a.events.LogEvent(ctx, "integration_enabled", model.LogStatusSuccess, "Integration enabled", nil)
	return nil
}

// Disable 关闭集成开关并记录事件
func (a *Adapter) Disable(ctx context.Context) error {
	if err := a.settings.Set(ctx, SettingEnabled, "false"); err != nil {
		return fmt.Errorf("disable integration: %w", err)
	}
	a.events.LogEvent(ctx, "integration_disabled", model.LogStatusSuccess, "Integration disabled", nil)
	return nil
}

// TestConnection 用固定搜索验证市场可达性。
//
// 能取到商品算成功, 取到空结果算连通但告警, 抓取报错算失败。
func (a *Adapter) TestConnection(ctx context.Context) SyncResult {
	listings, err := a.searcher.Search(ctx, testConnectionURL, 1)
	if err != nil {
		a.events.LogEvent(ctx, "connection_test", model.LogStatusError,
			fmt.Sprintf("Connection test failed: %v", err), nil)
		return SyncResult{Success: false, Message: fmt.Sprintf("connection test failed: %v", err)}
	}

	if len(listings) == 0 {
		a.events.LogEvent(ctx, "connection_test", model.LogStatusWarning,
			"Connected but no items returned", nil)
		return SyncResult{Success: true, Message: "Connected but no items returned"}
	}

	a.events.LogEvent(ctx, "connection_test", model.LogStatusSuccess,
		"Connection test successful", map[string]any{"items_found": len(listings)})
	return SyncResult{Success: true, Message: "Connection test successful"}
}

func (a *Adapter) banWords(ctx context.Context) []string {
	raw, err := a.settings.Get(ctx, SettingBanWords)
	if err != nil {
		return nil
	}
	return ParseBanWords(raw)
}
