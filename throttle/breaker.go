/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-06-22 09:40:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-07-15 11:08:33
 * @FilePath: \slayer\throttle\breaker.go
 * @Description: 熔断器 - 连续失败后阻断放行，超时后半开试探恢复
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package throttle

import (
	"time"

	"github.com/kamalyes/go-logger"
	"github.com/kamalyes/go-toolbox/pkg/syncx"
)

// BreakerState 熔断器状态
type BreakerState string

const (
	BreakerClosed   BreakerState = "closed"    // 关闭：正常放行
	BreakerOpen     BreakerState = "open"      // 打开：拒绝放行，等待冷却
	BreakerHalfOpen BreakerState = "half_open" // 半开：放行试探请求
)

// CircuitBreaker 熔断器
// 关闭态连续失败达到阈值后打开；打开态冷却结束后由 CanExecute 切到半开；
// 半开态连续成功达到阈值后关闭，任一失败立即重新打开
type CircuitBreaker struct {
	mu     syncx.Locker
	logger logger.ILogger

	failureThreshold int
	recoveryTimeout  time.Duration
	successThreshold int

	state        BreakerState
	failureCount int // 连续失败计数
	successCount int // 半开态连续成功计数
	lastFailure  time.Time

	now func() time.Time
}

// NewCircuitBreaker 创建熔断器
func NewCircuitBreaker(failureThreshold int, recoveryTimeout time.Duration, successThreshold int, log logger.ILogger) *CircuitBreaker {
	if log == nil {
		log = logger.NewLogger(nil)
	}
	return &CircuitBreaker{
		mu:               syncx.NewLock(),
		logger:           log,
		failureThreshold: failureThreshold,
		recoveryTimeout:  recoveryTimeout,
		successThreshold: successThreshold,
		state:            BreakerClosed,
		now:              time.Now,
	}
}

// WithClock 注入时钟（测试用），返回自身便于链式调用
func (b *CircuitBreaker) WithClock(now func() time.Time) *CircuitBreaker {
	b.now = now
	return b
}

// State 当前熔断器状态
func (b *CircuitBreaker) State() BreakerState {
	return syncx.WithLockReturnValue(b.mu, func() BreakerState {
		return b.state
	})
}

// CanExecute 是否允许放行请求
// 打开态冷却结束时会切换到半开态并放行（状态转换是本次检查的副作用）
func (b *CircuitBreaker) CanExecute() bool {
	return syncx.WithLockReturnValue(b.mu, func() bool {
		switch b.state {
		case BreakerOpen:
			if b.now().Sub(b.lastFailure) >= b.recoveryTimeout {
				b.halfOpen()
				return true
			}
			return false
		default: // closed / half_open
			return true
		}
	})
}

// RecordSuccess 记录一次成功请求
func (b *CircuitBreaker) RecordSuccess() {
	syncx.WithLock(b.mu, func() {
		if b.state == BreakerHalfOpen {
			b.successCount++
			if b.successCount >= b.successThreshold {
				b.close()
			}
			return
		}
		// 关闭态成功即清零连续失败计数
		b.failureCount = 0
	})
}

// RecordFailure 记录一次失败请求
func (b *CircuitBreaker) RecordFailure() {
	syncx.WithLock(b.mu, func() {
		switch b.state {
		case BreakerClosed:
			b.failureCount++
			if b.failureCount >= b.failureThreshold {
				b.open()
			}
		case BreakerHalfOpen:
			// 试探失败，重新打开
			b.open()
		}
	})
}

// open 打开熔断（调用方需持有锁）
func (b *CircuitBreaker) open() {
	b.state = BreakerOpen
	b.lastFailure = b.now()
	b.successCount = 0
	b.logger.Warnf("⛔ 熔断器打开，停止放行请求（连续失败 %d 次）", b.failureCount)
}

// close 关闭熔断（调用方需持有锁）
func (b *CircuitBreaker) close() {
	b.state = BreakerClosed
	b.failureCount = 0
	b.successCount = 0
	b.logger.Infof("✅ 熔断器关闭，恢复正常放行")
}

// halfOpen 半开试探（调用方需持有锁）
func (b *CircuitBreaker) halfOpen() {
	b.state = BreakerHalfOpen
	b.successCount = 0
	b.logger.Infof("🔍 熔断器半开，开始试探恢复")
}
