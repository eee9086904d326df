package taskqueue

import "time"

// 消息来源
const (
	SourceManual   = "manual"   // 用户在面板上手动触发
	SourcePeriodic = "periodic" // 调度器周期投递
)

// SyncMessage 表示同步队列中的消息结构。
//
// 用于在 Redis Streams 中传递保存查询的同步调度信息。
type SyncMessage struct {
	QueryID   string    `json:"query_id"`  // 保存查询 ID
	QueryURL  string    `json:"query_url"` // 目录搜索 URL
	Limit     int       `json:"limit"`     // 单次同步的商品上限
	Timestamp time.Time `json:"timestamp"` // 消息创建时间
	Retry     int       `json:"retry"`     // 重试次数
	Source    string    `json:"source"`    // 消息来源: "manual" 或 "periodic"
}

// NewSyncMessage 创建一条同步消息。
func NewSyncMessage(queryID, queryURL string, limit int, source string) *SyncMessage {
	if source == "" {
		source = SourceManual
	}
	return &SyncMessage{
		QueryID:   queryID,
		QueryURL:  queryURL,
		Limit:     limit,
		Timestamp: time.Now(),
		Retry:     0,
		Source:    source,
	}
}
