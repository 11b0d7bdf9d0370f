/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-06-22 14:30:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-07-18 17:25:41
 * @FilePath: \slayer\throttle\breaker_test.go
 * @Description: 熔断器测试
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package throttle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sudoinstallopsecc/slayer/logger"
)

// fakeClock 可手动推进的测试时钟
type fakeClock struct {
	at time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{at: time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.at }

func (c *fakeClock) Advance(d time.Duration) { c.at = c.at.Add(d) }

// TestCircuitBreakerOpensAfterThreshold 测试连续失败达到阈值后打开
func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	b := NewCircuitBreaker(3, 30*time.Second, 2, logger.New())

	b.RecordFailure()
	b.RecordFailure()
	assert.Equal(t, BreakerClosed, b.State())
	assert.True(t, b.CanExecute())

	b.RecordFailure()
	assert.Equal(t, BreakerOpen, b.State())
	assert.False(t, b.CanExecute())
}

// TestCircuitBreakerSuccessResetsFailures 测试成功清零连续失败计数
func TestCircuitBreakerSuccessResetsFailures(t *testing.T) {
	b := NewCircuitBreaker(3, 30*time.Second, 2, logger.New())

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()

	// 计数已清零，再失败2次不触发熔断
	b.RecordFailure()
	b.RecordFailure()
	assert.Equal(t, BreakerClosed, b.State())

	b.RecordFailure()
	assert.Equal(t, BreakerOpen, b.State())
}

// TestCircuitBreakerHalfOpenAfterTimeout 测试冷却结束后半开试探
func TestCircuitBreakerHalfOpenAfterTimeout(t *testing.T) {
	clock := newFakeClock()
	b := NewCircuitBreaker(2, 30*time.Second, 2, logger.New()).WithClock(clock.Now)

	b.RecordFailure()
	b.RecordFailure()
	assert.Equal(t, BreakerOpen, b.State())

	// 冷却未结束，仍然拒绝
	clock.Advance(29 * time.Second)
	assert.False(t, b.CanExecute())
	assert.Equal(t, BreakerOpen, b.State())

	// 冷却结束，放行并切到半开
	clock.Advance(time.Second)
	assert.True(t, b.CanExecute())
	assert.Equal(t, BreakerHalfOpen, b.State())
}

// TestCircuitBreakerClosesAfterSuccesses 测试半开态连续成功后关闭
func TestCircuitBreakerClosesAfterSuccesses(t *testing.T) {
	clock := newFakeClock()
	b := NewCircuitBreaker(2, 30*time.Second, 2, logger.New()).WithClock(clock.Now)

	b.RecordFailure()
	b.RecordFailure()
	clock.Advance(30 * time.Second)
	assert.True(t, b.CanExecute())

	b.RecordSuccess()
	assert.Equal(t, BreakerHalfOpen, b.State())

	b.RecordSuccess()
	assert.Equal(t, BreakerClosed, b.State())
	assert.True(t, b.CanExecute())
}

// TestCircuitBreakerReopensOnHalfOpenFailure 测试半开态失败立即重新打开
func TestCircuitBreakerReopensOnHalfOpenFailure(t *testing.T) {
	clock := newFakeClock()
	b := NewCircuitBreaker(2, 30*time.Second, 3, logger.New()).WithClock(clock.Now)

	b.RecordFailure()
	b.RecordFailure()
	clock.Advance(30 * time.Second)
	assert.True(t, b.CanExecute())
	b.RecordSuccess()

	// 试探期一次失败即重新打开，且重新计时
	b.RecordFailure()
	assert.Equal(t, BreakerOpen, b.State())
	assert.False(t, b.CanExecute())

	clock.Advance(30 * time.Second)
	assert.True(t, b.CanExecute())
	assert.Equal(t, BreakerHalfOpen, b.State())
}
