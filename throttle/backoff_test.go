/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-06-22 15:10:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-07-18 18:02:17
 * @FilePath: \slayer\throttle\backoff_test.go
 * @Description: 退避策略计算器测试
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package throttle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sudoinstallopsecc/slayer/types"
)

func healthySnapshot() types.HealthSnapshot {
	return types.HealthSnapshot{AvgLatency: 100, P95Latency: 120, ErrorRate: 0}
}

func snapshotWithP95(p95 float64) types.HealthSnapshot {
	return types.HealthSnapshot{AvgLatency: p95 / 1.2, P95Latency: p95}
}

// TestNewCalculatorSelection 测试策略工厂选择
func TestNewCalculatorSelection(t *testing.T) {
	tests := []struct {
		name     string
		strategy Strategy
		check    func(Calculator) bool
	}{
		{"指数", StrategyExponential, func(c Calculator) bool { _, ok := c.(*ExponentialBackoff); return ok }},
		{"线性", StrategyLinear, func(c Calculator) bool { _, ok := c.(*LinearBackoff); return ok }},
		{"斐波那契", StrategyFibonacci, func(c Calculator) bool { _, ok := c.(*FibonacciBackoff); return ok }},
		{"自适应", StrategyAdaptive, func(c Calculator) bool { _, ok := c.(*AdaptiveBackoff); return ok }},
		{"未知回落指数", Strategy("unknown"), func(c Calculator) bool { _, ok := c.(*ExponentialBackoff); return ok }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.BackoffStrategy = tt.strategy
			assert.True(t, tt.check(NewCalculator(cfg)))
		})
	}
}

// TestExponentialBackoffDelay 测试指数退避延迟
func TestExponentialBackoffDelay(t *testing.T) {
	e := NewExponentialBackoff(2.0, 60*time.Second)

	assert.Equal(t, time.Second, e.Delay(0, time.Second))
	assert.Equal(t, 2*time.Second, e.Delay(1, time.Second))
	assert.Equal(t, 8*time.Second, e.Delay(3, time.Second))
	// 超过上限封顶
	assert.Equal(t, 60*time.Second, e.Delay(10, time.Second))
}

// TestExponentialBackoffRecommendRate 测试指数策略速率推荐
func TestExponentialBackoffRecommendRate(t *testing.T) {
	e := NewExponentialBackoff(2.0, 60*time.Second)

	// 错误率过高，按倍数降速
	assert.InDelta(t, 50.0, e.RecommendRate(100, types.HealthSnapshot{ErrorRate: 20}), 0.01)
	// 延迟过高，降30%
	assert.InDelta(t, 70.0, e.RecommendRate(100, types.HealthSnapshot{P95Latency: 6000}), 0.01)
	// 健康时维持不变
	assert.InDelta(t, 100.0, e.RecommendRate(100, healthySnapshot()), 0.01)
	// 降速不低于1
	assert.InDelta(t, 1.0, e.RecommendRate(1.5, types.HealthSnapshot{ErrorRate: 20}), 0.01)
}

// TestLinearBackoffDelay 测试线性退避延迟
func TestLinearBackoffDelay(t *testing.T) {
	l := NewLinearBackoff(1.0, 10*time.Second)

	assert.Equal(t, time.Second, l.Delay(0, time.Second))
	assert.Equal(t, 4*time.Second, l.Delay(3, time.Second))
	assert.Equal(t, 10*time.Second, l.Delay(30, time.Second))
}

// TestLinearBackoffRecommendRate 测试线性策略速率推荐
func TestLinearBackoffRecommendRate(t *testing.T) {
	l := NewLinearBackoff(1.0, 10*time.Second)

	assert.InDelta(t, 95.0, l.RecommendRate(100, types.HealthSnapshot{ErrorRate: 20}), 0.01)
	assert.InDelta(t, 98.0, l.RecommendRate(100, types.HealthSnapshot{P95Latency: 6000}), 0.01)
	assert.InDelta(t, 100.0, l.RecommendRate(100, healthySnapshot()), 0.01)
	assert.InDelta(t, 1.0, l.RecommendRate(3, types.HealthSnapshot{ErrorRate: 20}), 0.01)
}

// TestFibonacciBackoffDelay 测试斐波那契退避延迟
func TestFibonacciBackoffDelay(t *testing.T) {
	f := NewFibonacciBackoff(60 * time.Second)

	// fib: 1,1,2,3,5,8...
	assert.Equal(t, time.Second, f.Delay(0, time.Second))
	assert.Equal(t, time.Second, f.Delay(1, time.Second))
	assert.Equal(t, 2*time.Second, f.Delay(2, time.Second))
	assert.Equal(t, 5*time.Second, f.Delay(4, time.Second))
	assert.Equal(t, 8*time.Second, f.Delay(5, time.Second))
	// 大次数封顶到上限
	assert.Equal(t, 60*time.Second, f.Delay(25, time.Second))
}

// TestFibonacciBackoffRecommendRate 测试斐波那契策略速率推荐
func TestFibonacciBackoffRecommendRate(t *testing.T) {
	f := NewFibonacciBackoff(60 * time.Second)

	// fib(3)=3，错误率过高时降到1/3
	assert.InDelta(t, 30.0, f.RecommendRate(90, types.HealthSnapshot{ErrorRate: 20}), 0.01)
	assert.InDelta(t, 90.0, f.RecommendRate(90, healthySnapshot()), 0.01)
}

// TestAdaptiveBackoffDelayFallback 测试样本不足时回落指数退避
func TestAdaptiveBackoffDelayFallback(t *testing.T) {
	a := NewAdaptiveBackoff(DefaultConfig())

	assert.Equal(t, time.Second, a.Delay(0, time.Second))
	assert.Equal(t, 4*time.Second, a.Delay(2, time.Second))
}

// TestAdaptiveBackoffDelayStress 测试压力因子放大延迟
func TestAdaptiveBackoffDelayStress(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PerformanceTargetP95 = 2000
	a := NewAdaptiveBackoff(cfg)

	// 喂入5个平均延迟4000ms的快照（目标2000ms -> 压力因子2.0）
	for i := 0; i < 5; i++ {
		a.RecommendRate(100, types.HealthSnapshot{AvgLatency: 4000, P95Latency: 4800})
	}

	assert.Equal(t, time.Second, a.Delay(0, time.Second))
	assert.Equal(t, 4*time.Second, a.Delay(2, time.Second))
	// 压力延迟同样受上限约束
	cfgShort := DefaultConfig()
	cfgShort.PerformanceTargetP95 = 2000
	cfgShort.BackoffMaxDelay = types.Duration(3 * time.Second)
	short := NewAdaptiveBackoff(cfgShort)
	for i := 0; i < 5; i++ {
		short.RecommendRate(100, types.HealthSnapshot{AvgLatency: 4000, P95Latency: 4800})
	}
	assert.Equal(t, 3*time.Second, short.Delay(2, time.Second))
}

// TestAdaptiveBackoffRecommendRateTrend 测试三点趋势调速
func TestAdaptiveBackoffRecommendRateTrend(t *testing.T) {
	newCfg := func() *Config {
		cfg := DefaultConfig()
		cfg.MinRPS = 1
		cfg.MaxRPS = 200
		cfg.InitialRPS = 100
		cfg.AdaptationSensitivity = 0.3
		cfg.PerformanceTargetP95 = 2000
		return cfg
	}

	t.Run("样本不足维持不变", func(t *testing.T) {
		a := NewAdaptiveBackoff(newCfg())
		assert.InDelta(t, 100.0, a.RecommendRate(100, snapshotWithP95(200)), 0.01)
		assert.InDelta(t, 100.0, a.RecommendRate(100, snapshotWithP95(200)), 0.01)
	})

	t.Run("恶化趋势降速", func(t *testing.T) {
		a := NewAdaptiveBackoff(newCfg())
		a.RecommendRate(100, snapshotWithP95(200))  // score 0.1
		a.RecommendRate(100, snapshotWithP95(2000)) // score 1.0
		got := a.RecommendRate(100, snapshotWithP95(4000)) // score 2.0, trend 0.63
		assert.InDelta(t, 70.0, got, 0.01)
	})

	t.Run("好转趋势提速", func(t *testing.T) {
		a := NewAdaptiveBackoff(newCfg())
		a.RecommendRate(100, snapshotWithP95(4000))
		a.RecommendRate(100, snapshotWithP95(2000))
		got := a.RecommendRate(100, snapshotWithP95(200)) // trend -0.63
		assert.InDelta(t, 115.0, got, 0.01)
	})

	t.Run("平稳良好小步上探", func(t *testing.T) {
		a := NewAdaptiveBackoff(newCfg())
		for i := 0; i < 2; i++ {
			a.RecommendRate(100, snapshotWithP95(1000)) // score 0.5
		}
		got := a.RecommendRate(100, snapshotWithP95(1000))
		assert.InDelta(t, 110.0, got, 0.01)
	})

	t.Run("平稳但较差维持不变", func(t *testing.T) {
		a := NewAdaptiveBackoff(newCfg())
		for i := 0; i < 2; i++ {
			a.RecommendRate(100, snapshotWithP95(4000)) // score 2.0
		}
		got := a.RecommendRate(100, snapshotWithP95(4000))
		assert.InDelta(t, 100.0, got, 0.01)
	})
}

// TestAdaptiveBackoffOptimalCap 测试推荐速率不超过已知最优的120%
func TestAdaptiveBackoffOptimalCap(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxRPS = 200
	cfg.InitialRPS = 10 // 初始最优估计
	a := NewAdaptiveBackoff(cfg)

	// score 1.2 平稳且低于1.5会上探，但不足以更新最优估计
	for i := 0; i < 2; i++ {
		a.RecommendRate(100, snapshotWithP95(2400))
	}
	// 上探意愿110，被最优估计10*1.2封顶
	got := a.RecommendRate(100, snapshotWithP95(2400))
	assert.InDelta(t, 12.0, got, 0.01)
}

// TestAdaptiveBackoffLearnsOptimal 测试表现优秀时更新最优估计
func TestAdaptiveBackoffLearnsOptimal(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxRPS = 500
	cfg.InitialRPS = 100
	a := NewAdaptiveBackoff(cfg)

	// score 0.25 < 1.0，当前150超过最优100，学习到150
	for i := 0; i < 2; i++ {
		a.RecommendRate(150, snapshotWithP95(500))
	}
	got := a.RecommendRate(150, snapshotWithP95(500))
	// 上探165，封顶150*1.2=180不生效
	assert.InDelta(t, 165.0, got, 0.01)
}
