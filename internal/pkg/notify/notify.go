package notify

import "context"

// SyncSummary 一次查询同步的结果摘要。
type SyncSummary struct {
	QueryLabel string // 保存查询的名称
	QueryURL   string // 目录搜索 URL
	Imported   int    // 导入数
	Skipped    int    // 跳过数
	Errors     int    // 单条失败数
	Elapsed    string // 耗时描述
}

// Notifier 定义通知接口。
type Notifier interface {
	// SendSyncSummary 发送同步结果摘要。
	//
	// 参数:
	//   ctx: 上下文
	//   summary: 同步摘要
	//   toEmail: 接收邮箱
	SendSyncSummary(ctx context.Context, summary SyncSummary, toEmail string) error
}
