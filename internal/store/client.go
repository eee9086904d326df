package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"reselldash/internal/config"
	"reselldash/internal/pkg/metrics"
)

// Client 是托管数据存储的 HTTP 客户端。
//
// 所有实体表都通过它读写，请求走 PostgREST 风格的 REST 接口。
type Client struct {
	baseURL string
	key     string
	http    *http.Client
	logger  *slog.Logger
}

// New 创建存储客户端。
//
// URL 和访问密钥缺失属于部署错误，直接返回 error 由入口处置为致命。
//
// 参数:
//   - cfg: 存储配置 (URL / AnonKey / Timeout)
//   - logger: 结构化日志器
//
// 返回值:
//   - *Client: 就绪的客户端
//   - error: 凭证缺失时返回错误
func New(cfg config.SupabaseConfig, logger *slog.Logger) (*Client, error) {
	if cfg.URL == "" || cfg.AnonKey == "" {
		return nil, errors.New("store: SUPABASE_URL and SUPABASE_ANON_KEY must be set")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/") + "/rest/v1",
		key:     cfg.AnonKey,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}, nil
}

// From 开始针对某张表的查询构建。
func (c *Client) From(table string) *Query {
	return &Query{
		c:      c,
		table:  table,
		params: url.Values{},
	}
}

// Query 是单表请求的流式构建器。
type Query struct {
	c      *Client
	table  string
	params url.Values
}

// Select 指定返回列, 默认 "*"
func (q *Query) Select(cols string) *Query {
	q.params.Set("select", cols)
	return q
}

// Eq 精确匹配过滤
func (q *Query) Eq(col, val string) *Query {
	q.params.Add(col, "eq."+val)
	return q
}

// ILike 大小写不敏感的模糊匹配, pat 中使用 * 通配
func (q *Query) ILike(col, pat string) *Query {
	q.params.Add(col, "ilike."+pat)
	return q
}

// Order 排序, desc 为 true 时倒序
func (q *Query) Order(col string, desc bool) *Query {
	dir := "asc"
	if desc {
		dir = "desc"
	}
	q.params.Set("order", col+"."+dir)
	return q
}

// Limit 限制返回行数
func (q *Query) Limit(n int) *Query {
	q.params.Set("limit", strconv.Itoa(n))
	return q
}

// Get 执行查询, dest 必须是指向切片的指针
func (q *Query) Get(ctx context.Context, dest any) error {
	return q.do(ctx, http.MethodGet, "select", nil, nil, dest)
}

// Insert 插入一行并把存储端生成的行解码到 dest (可为 nil)
func (q *Query) Insert(ctx context.Context, body, dest any) error {
	headers := map[string]string{"Prefer": "return=representation"}
	return q.do(ctx, http.MethodPost, "insert", headers, body, dest)
}

// InsertIgnore 插入一行, 与 conflictCol 上的唯一约束冲突时由存储端静默忽略。
//
// 被忽略时返回 ErrDuplicate, 调用方据此区分新增与重复。
func (q *Query) InsertIgnore(ctx context.Context, conflictCol string, body, dest any) error {
	q.params.Set("on_conflict", conflictCol)
	headers := map[string]string{
		"Prefer": "resolution=ignore-duplicates,return=representation",
	}
	var rows json.RawMessage
	if err := q.do(ctx, http.MethodPost, "insert", headers, body, &rows); err != nil {
		return err
	}
	var probe []json.RawMessage
	if err := json.Unmarshal(rows, &probe); err != nil {
		return fmt.Errorf("store: decode %s insert response: %w", q.table, err)
	}
	if len(probe) == 0 {
		return ErrDuplicate
	}
	if dest != nil {
		if err := json.Unmarshal(rows, dest); err != nil {
			return fmt.Errorf("store: decode %s insert response: %w", q.table, err)
		}
	}
	return nil
}

// Upsert 按 conflictCol 合并写入 (存在则更新)
func (q *Query) Upsert(ctx context.Context, conflictCol string, body, dest any) error {
	q.params.Set("on_conflict", conflictCol)
	headers := map[string]string{
		"Prefer": "resolution=merge-duplicates,return=representation",
	}
	return q.do(ctx, http.MethodPost, "upsert", headers, body, dest)
}

// Update 按当前过滤条件批量更新, body 为要修改的列
func (q *Query) Update(ctx context.Context, body, dest any) error {
	headers := map[string]string{"Prefer": "return=representation"}
	return q.do(ctx, http.MethodPatch, "update", headers, body, dest)
}

// Delete 按当前过滤条件删除
func (q *Query) Delete(ctx context.Context) error {
	return q.do(ctx, http.MethodDelete, "delete", nil, nil, nil)
}

func (q *Query) do(ctx context.Context, method, op string, headers map[string]string, body, dest any) error {
	endpoint := q.c.baseURL + "/" + q.table
	if len(q.params) > 0 {
		endpoint += "?" + q.params.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("store: marshal %s body: %w", q.table, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("store: build %s request: %w", q.table, err)
	}
	req.Header.Set("apikey", q.c.key)
	req.Header.Set("Authorization", "Bearer "+q.c.key)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := q.c.http.Do(req)
	metrics.StoreRequestDuration.WithLabelValues(q.table, op).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.StoreRequestErrorsTotal.WithLabelValues(q.table).Inc()
		return fmt.Errorf("store: %s %s: %w", op, q.table, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("store: read %s response: %w", q.table, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.StoreRequestErrorsTotal.WithLabelValues(q.table).Inc()
		q.c.logger.Warn("store request failed",
			slog.String("table", q.table),
			slog.String("op", op),
			slog.Int("status", resp.StatusCode))
		return &StatusError{Code: resp.StatusCode, Table: q.table, Body: truncate(string(data), 200)}
	}

	if dest == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("store: decode %s response: %w", q.table, err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// round2 四舍五入保留两位小数 (远离零方向)
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// nowUTC 写回存储端的时间戳统一使用 UTC
func nowUTC() time.Time {
	return time.Now().UTC()
}
