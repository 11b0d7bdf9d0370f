/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-06-22 16:40:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-07-21 19:12:08
 * @FilePath: \slayer\throttle\throttle_test.go
 * @Description: 自适应限流器测试
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package throttle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sudoinstallopsecc/slayer/logger"
	"github.com/sudoinstallopsecc/slayer/types"
)

func newTestThrottle(clock *fakeClock) *AdaptiveThrottle {
	cfg := DefaultConfig()
	cfg.MaxRPS = 200
	cfg.InitialRPS = 100
	return NewAdaptiveThrottle(cfg, logger.New()).WithClock(clock.Now)
}

// TestAdaptiveThrottleDefaults 测试默认配置下的初始状态
func TestAdaptiveThrottleDefaults(t *testing.T) {
	th := NewAdaptiveThrottle(nil, logger.New())

	assert.Equal(t, StateNormal, th.State())
	assert.InDelta(t, 10.0, th.CurrentRate(), 0.01)

	status := th.GetStatus()
	assert.Equal(t, StateNormal, status.State)
	assert.InDelta(t, 10.0, status.TargetRPS, 0.01)
	assert.Equal(t, 0, status.BackoffAttempt)
	assert.Equal(t, BreakerClosed, status.BreakerState)
	assert.False(t, status.EmergencyStop)
	assert.Equal(t, 0, status.HealthSamples)
}

// TestThrottleDispatchInterval 测试按RPS控制放行间隔
func TestThrottleDispatchInterval(t *testing.T) {
	clock := newFakeClock()
	cfg := DefaultConfig() // InitialRPS=10 -> 间隔100ms
	th := NewAdaptiveThrottle(cfg, logger.New()).WithClock(clock.Now)

	allowed, wait := th.ShouldDispatch()
	assert.True(t, allowed)
	assert.Equal(t, time.Duration(0), wait)

	// 间隔未到，返回剩余等待时长
	allowed, wait = th.ShouldDispatch()
	assert.False(t, allowed)
	assert.Equal(t, 100*time.Millisecond, wait)

	clock.Advance(50 * time.Millisecond)
	allowed, wait = th.ShouldDispatch()
	assert.False(t, allowed)
	assert.Equal(t, 50*time.Millisecond, wait)

	clock.Advance(50 * time.Millisecond)
	allowed, _ = th.ShouldDispatch()
	assert.True(t, allowed)
}

// TestThrottleBackoffOnSlowResponse 测试慢响应触发退避并减半速率
func TestThrottleBackoffOnSlowResponse(t *testing.T) {
	clock := newFakeClock()
	th := newTestThrottle(clock)

	th.RecordResult(6*time.Second, 200, types.ErrorKindNone)

	assert.Equal(t, StateBackingOff, th.State())
	assert.InDelta(t, 50.0, th.CurrentRate(), 0.01)
	assert.Equal(t, 1, th.GetStatus().BackoffAttempt)

	// 退避期内再次触发不叠加
	th.RecordResult(6*time.Second, 200, types.ErrorKindNone)
	assert.InDelta(t, 50.0, th.CurrentRate(), 0.01)
	assert.Equal(t, 1, th.GetStatus().BackoffAttempt)
}

// TestThrottleBackoffOnConnectionError 测试连接类错误触发退避
func TestThrottleBackoffOnConnectionError(t *testing.T) {
	clock := newFakeClock()
	th := newTestThrottle(clock)

	th.RecordResult(10*time.Millisecond, 0, types.ErrorKindConnection)
	assert.Equal(t, StateBackingOff, th.State())

	th2 := newTestThrottle(clock)
	th2.RecordResult(10*time.Millisecond, 0, types.ErrorKindTimeout)
	assert.Equal(t, StateBackingOff, th2.State())

	// 普通4xx不触发退避
	th3 := newTestThrottle(clock)
	th3.RecordResult(10*time.Millisecond, 404, types.ErrorKindNone)
	assert.Equal(t, StateNormal, th3.State())
}

// TestThrottleBackoffRecovery 测试退避结束后进入恢复期
func TestThrottleBackoffRecovery(t *testing.T) {
	clock := newFakeClock()
	th := newTestThrottle(clock)

	th.RecordResult(6*time.Second, 200, types.ErrorKindNone)
	assert.Equal(t, StateBackingOff, th.State())

	// 指数退避第1次延迟2秒，未到期仍以降速放行
	clock.Advance(time.Second)
	allowed, _ := th.ShouldDispatch()
	assert.True(t, allowed)
	assert.Equal(t, StateBackingOff, th.State())

	clock.Advance(time.Second)
	allowed, _ = th.ShouldDispatch()
	assert.True(t, allowed)
	assert.Equal(t, StateRecovery, th.State())
	assert.Equal(t, 0, th.GetStatus().BackoffAttempt)
}

// TestThrottleRecoveryRampUp 测试恢复期逐步提速直至回到正常态
func TestThrottleRecoveryRampUp(t *testing.T) {
	clock := newFakeClock()
	th := newTestThrottle(clock)

	th.RecordResult(6*time.Second, 200, types.ErrorKindNone)
	clock.Advance(2 * time.Second)
	th.ShouldDispatch()
	assert.Equal(t, StateRecovery, th.State())
	assert.InDelta(t, 50.0, th.CurrentRate(), 0.01)

	// 凑够3个快照后首次健康评估提速10%
	th.RecordResult(100*time.Millisecond, 200, types.ErrorKindNone)
	th.RecordResult(100*time.Millisecond, 200, types.ErrorKindNone)
	clock.Advance(3 * time.Second)
	th.RecordResult(100*time.Millisecond, 200, types.ErrorKindNone)
	assert.InDelta(t, 55.0, th.CurrentRate(), 0.01)
	assert.Equal(t, StateRecovery, th.State())

	// 持续健康，最终达到目标的90%回到正常态
	for i := 0; i < 10; i++ {
		clock.Advance(5 * time.Second)
		th.RecordResult(100*time.Millisecond, 200, types.ErrorKindNone)
	}
	assert.Equal(t, StateNormal, th.State())
	assert.GreaterOrEqual(t, th.CurrentRate(), 90.0)
}

// TestThrottleEmergencyStop 测试持续高错误率触发紧急停止
func TestThrottleEmergencyStop(t *testing.T) {
	clock := newFakeClock()
	cfg := DefaultConfig()
	cfg.MaxRPS = 200
	cfg.InitialRPS = 100
	cfg.EmergencyStopErrorRate = 5
	th := NewAdaptiveThrottle(cfg, logger.New()).WithClock(clock.Now)

	for i := 0; i < 3; i++ {
		th.RecordResult(100*time.Millisecond, 503, types.ErrorKindNone)
	}
	clock.Advance(5 * time.Second)
	th.RecordResult(100*time.Millisecond, 503, types.ErrorKindNone)

	assert.Equal(t, StateEmergencyStop, th.State())
	assert.InDelta(t, 0.0, th.CurrentRate(), 0.01)
	assert.True(t, th.GetStatus().EmergencyStop)

	// 紧急停止态拒绝放行
	allowed, _ := th.ShouldDispatch()
	assert.False(t, allowed)

	// 后续结果不改变紧急停止状态
	th.RecordResult(100*time.Millisecond, 503, types.ErrorKindNone)
	assert.Equal(t, StateEmergencyStop, th.State())
}

// TestThrottleResetEmergencyStop 测试手动复位后以最低速率恢复
func TestThrottleResetEmergencyStop(t *testing.T) {
	// 未触发时复位是空操作
	th0 := NewAdaptiveThrottle(nil, logger.New())
	th0.ResetEmergencyStop()
	assert.Equal(t, StateNormal, th0.State())

	clock := newFakeClock()
	cfg := DefaultConfig()
	cfg.MaxRPS = 200
	cfg.InitialRPS = 100
	cfg.EmergencyStopErrorRate = 5
	th := NewAdaptiveThrottle(cfg, logger.New()).WithClock(clock.Now)

	for i := 0; i < 3; i++ {
		th.RecordResult(100*time.Millisecond, 503, types.ErrorKindNone)
	}
	clock.Advance(5 * time.Second)
	th.RecordResult(100*time.Millisecond, 503, types.ErrorKindNone)
	assert.Equal(t, StateEmergencyStop, th.State())

	th.ResetEmergencyStop()
	assert.Equal(t, StateRecovery, th.State())
	assert.InDelta(t, cfg.MinRPS, th.CurrentRate(), 0.01)
	assert.False(t, th.GetStatus().EmergencyStop)

	allowed, _ := th.ShouldDispatch()
	assert.True(t, allowed)
}

// TestThrottleSetTargetRate 测试目标速率受安全边界约束
func TestThrottleSetTargetRate(t *testing.T) {
	th := NewAdaptiveThrottle(nil, logger.New()) // MaxRPS=100

	th.SetTargetRate(500)
	status := th.GetStatus()
	assert.InDelta(t, 100.0, status.TargetRPS, 0.01)
	assert.InDelta(t, 100.0, status.CurrentRPS, 0.01) // 正常态立即生效

	th.SetTargetRate(0.2)
	assert.InDelta(t, 1.0, th.GetStatus().TargetRPS, 0.01)

	// 配置上限高于硬上限时以硬上限为准
	cfg := DefaultConfig()
	cfg.MaxRPS = 5000
	th2 := NewAdaptiveThrottle(cfg, logger.New())
	th2.SetTargetRate(2000)
	assert.InDelta(t, 1000.0, th2.GetStatus().TargetRPS, 0.01)
}

// TestThrottleCircuitBreakerFlow 测试熔断打开、冷却、半开到关闭的完整流转
func TestThrottleCircuitBreakerFlow(t *testing.T) {
	clock := newFakeClock()
	cfg := DefaultConfig()
	cfg.MaxRPS = 200
	cfg.InitialRPS = 100
	cfg.CircuitFailureThreshold = 3
	th := NewAdaptiveThrottle(cfg, logger.New()).WithClock(clock.Now)

	for i := 0; i < 3; i++ {
		th.RecordResult(10*time.Millisecond, 500, types.ErrorKindNone)
	}
	assert.Equal(t, BreakerOpen, th.Breaker().State())

	// 熔断打开时拒绝放行并给出冷却建议
	allowed, wait := th.ShouldDispatch()
	assert.False(t, allowed)
	assert.Equal(t, cfg.CircuitTimeout.D(), wait)
	assert.Equal(t, StateCircuitOpen, th.State())

	// 冷却结束后半开放行，限流器进入恢复期
	clock.Advance(cfg.CircuitTimeout.D())
	allowed, _ = th.ShouldDispatch()
	assert.True(t, allowed)
	assert.Equal(t, BreakerHalfOpen, th.Breaker().State())
	assert.Equal(t, StateRecovery, th.State())

	// 试探成功3次后熔断关闭
	for i := 0; i < 3; i++ {
		th.RecordResult(10*time.Millisecond, 200, types.ErrorKindNone)
	}
	assert.Equal(t, BreakerClosed, th.Breaker().State())
}

// TestThrottleStandardSLOs 测试标准SLO规则集生成
func TestThrottleStandardSLOs(t *testing.T) {
	th := NewAdaptiveThrottle(nil, logger.New())

	rules := th.StandardSLOs()
	assert.Len(t, rules, 3)

	names := make([]string, 0, len(rules))
	for _, r := range rules {
		assert.NoError(t, r.Validate())
		names = append(names, r.Name)
	}
	assert.Contains(t, names, "response_time_p95")
	assert.Contains(t, names, "error_rate")
	assert.Contains(t, names, "min_rps")

	assert.InDelta(t, 2000.0, rules[0].Threshold, 0.01)
	assert.InDelta(t, 5.0, rules[1].Threshold, 0.01)
	assert.InDelta(t, 1.0, rules[2].Threshold, 0.01)
}
