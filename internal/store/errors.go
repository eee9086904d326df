package store

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrNotFound 查询目标行不存在
var ErrNotFound = errors.New("store: row not found")

// ErrDuplicate 插入与唯一约束冲突且被存储端忽略
var ErrDuplicate = errors.New("store: duplicate row")

// StatusError 表示存储端返回的非 2xx 响应。
type StatusError struct {
	Code  int
	Table string
	Body  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("store: %s returned %d: %s", e.Table, e.Code, e.Body)
}

// IsTransient 判断错误是否值得重试。
//
// 存储端 5xx、408、429 以及网络超时视为瞬时错误，其余（含 4xx）视为永久错误。
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var se *StatusError
	if errors.As(err, &se) {
		if se.Code >= 500 {
			return true
		}
		return se.Code == 408 || se.Code == 429
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}

	return errors.Is(err, context.DeadlineExceeded)
}
