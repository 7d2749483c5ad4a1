package checkpoint

import (
	"context"
	"errors"
	"math/rand"
	"time"

	sqlite3 "modernc.org/sqlite/lib"
)

// retryConfig SQLite 瞬时错误的重试参数
type retryConfig struct {
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// defaultRetryConfig 所有写操作使用的默认参数
var defaultRetryConfig = retryConfig{
	maxRetries: 3,
	baseDelay:  50 * time.Millisecond,
	maxDelay:   500 * time.Millisecond,
}

// isTransient 是否为可重试的 SQLite 错误
// 多个单元并发写同一个库时 WAL 模式会偶发 BUSY/LOCKED/IOERR_SHORT_READ，
// 按驱动返回的结果码判断，*sqlite.Error 满足 Code() 接口
func isTransient(err error) bool {
	var coded interface{ Code() int }
	if !errors.As(err, &coded) {
		return false
	}
	code := coded.Code()
	switch code & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return true
	}
	return code == sqlite3.SQLITE_IOERR_SHORT_READ
}

// retryOp 对瞬时错误指数退避重试，其他错误立即返回
func retryOp(ctx context.Context, cfg retryConfig, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= cfg.maxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil || !isTransient(lastErr) {
			return lastErr
		}
		if attempt == cfg.maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoffDelay(cfg, attempt)):
		}
	}
	return lastErr
}

// backoffDelay baseDelay * 2^attempt，上限 maxDelay，再加 [0, baseDelay) 的抖动
func backoffDelay(cfg retryConfig, attempt int) time.Duration {
	delay := min(cfg.baseDelay<<uint(attempt), cfg.maxDelay)
	return delay + time.Duration(rand.Int63n(int64(cfg.baseDelay)))
}
