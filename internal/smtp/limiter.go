package smtp

import (
	"sync"
	"time"
)

// ConnectionLimiter SMTP 连接限流器
//
// 同时限制并发连接数与每秒新建连接速率（令牌桶）。
type ConnectionLimiter struct {
	maxConns int
	current  int
	mu       sync.Mutex

	rate       int
	tokens     int
	lastRefill time.Time
}

// NewConnectionLimiter 创建连接限流器
//
// 参数:
//   - maxConns: 最大并发连接数
//   - maxRate: 每秒最大新建连接数
func NewConnectionLimiter(maxConns, maxRate int) *ConnectionLimiter {
	return &ConnectionLimiter{
		maxConns:   maxConns,
		rate:       maxRate,
		tokens:     maxRate,
		lastRefill: time.Now(),
	}
}

// Acquire 获取连接许可
func (l *ConnectionLimiter) Acquire() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.current >= l.maxConns {
		return false
	}

	// 补充令牌
	now := time.Now()
	refill := int(now.Sub(l.lastRefill).Seconds() * float64(l.rate))
	if refill > 0 {
		l.tokens = min(l.rate, l.tokens+refill)
		l.lastRefill = now
	}

	if l.tokens <= 0 {
		return false
	}

	l.tokens--
	l.current++
	return true
}

// Release 释放连接
func (l *ConnectionLimiter) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.current > 0 {
		l.current--
	}
}

// Current 当前连接数
func (l *ConnectionLimiter) Current() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}
