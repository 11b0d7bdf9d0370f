/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-06-22 10:05:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-07-18 14:21:09
 * @FilePath: \slayer\throttle\backoff.go
 * @Description: 退避策略计算器 - 指数/线性/斐波那契/自适应
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package throttle

import (
	"math"
	"time"

	"github.com/kamalyes/go-toolbox/pkg/syncx"

	"github.com/sudoinstallopsecc/slayer/types"
)

// adaptiveHistoryCap 自适应策略保留的健康快照数量上限
const adaptiveHistoryCap = 100

// Calculator 退避策略计算器
// Delay 计算第 attempt 次退避的等待时间；
// RecommendRate 根据最新健康快照推荐新的调度速率
type Calculator interface {
	Delay(attempt int, base time.Duration) time.Duration
	RecommendRate(current float64, latest types.HealthSnapshot) float64
}

// NewCalculator 根据配置创建退避计算器，未知策略回落到指数退避
func NewCalculator(cfg *Config) Calculator {
	switch cfg.BackoffStrategy {
	case StrategyLinear:
		return NewLinearBackoff(1.0, cfg.BackoffMaxDelay.D())
	case StrategyFibonacci:
		return NewFibonacciBackoff(cfg.BackoffMaxDelay.D())
	case StrategyAdaptive:
		return NewAdaptiveBackoff(cfg)
	default:
		return NewExponentialBackoff(cfg.BackoffMultiplier, cfg.BackoffMaxDelay.D())
	}
}

// capDelay 秒数转 Duration 并封顶
func capDelay(seconds float64, maxDelay time.Duration) time.Duration {
	d := time.Duration(seconds * float64(time.Second))
	if d > maxDelay {
		return maxDelay
	}
	return d
}

// ExponentialBackoff 指数退避：delay = base * multiplier^attempt
type ExponentialBackoff struct {
	multiplier float64
	maxDelay   time.Duration
}

// NewExponentialBackoff 创建指数退避计算器
func NewExponentialBackoff(multiplier float64, maxDelay time.Duration) *ExponentialBackoff {
	return &ExponentialBackoff{multiplier: multiplier, maxDelay: maxDelay}
}

func (e *ExponentialBackoff) Delay(attempt int, base time.Duration) time.Duration {
	return capDelay(base.Seconds()*math.Pow(e.multiplier, float64(attempt)), e.maxDelay)
}

func (e *ExponentialBackoff) RecommendRate(current float64, latest types.HealthSnapshot) float64 {
	if latest.ErrorRate > 10.0 {
		return math.Max(current/e.multiplier, 1)
	}
	if latest.P95Latency > 5000 {
		return math.Max(current*0.7, 1)
	}
	return current
}

// LinearBackoff 线性退避：delay = base + attempt * increment
type LinearBackoff struct {
	increment float64
	maxDelay  time.Duration
}

// NewLinearBackoff 创建线性退避计算器
func NewLinearBackoff(increment float64, maxDelay time.Duration) *LinearBackoff {
	return &LinearBackoff{increment: increment, maxDelay: maxDelay}
}

func (l *LinearBackoff) Delay(attempt int, base time.Duration) time.Duration {
	return capDelay(base.Seconds()+float64(attempt)*l.increment, l.maxDelay)
}

func (l *LinearBackoff) RecommendRate(current float64, latest types.HealthSnapshot) float64 {
	if latest.ErrorRate > 10.0 {
		return math.Max(current-5, 1)
	}
	if latest.P95Latency > 5000 {
		return math.Max(current-2, 1)
	}
	return current
}

// FibonacciBackoff 斐波那契退避：delay = base * fib(attempt)
type FibonacciBackoff struct {
	mu       syncx.Locker
	maxDelay time.Duration
	cache    []int64
}

// NewFibonacciBackoff 创建斐波那契退避计算器
func NewFibonacciBackoff(maxDelay time.Duration) *FibonacciBackoff {
	return &FibonacciBackoff{
		mu:       syncx.NewLock(),
		maxDelay: maxDelay,
		cache:    []int64{1, 1},
	}
}

// fib 第 n 个斐波那契数（缓存递推）
func (f *FibonacciBackoff) fib(n int) int64 {
	return syncx.WithLockReturnValue(f.mu, func() int64 {
		for len(f.cache) <= n {
			f.cache = append(f.cache, f.cache[len(f.cache)-1]+f.cache[len(f.cache)-2])
		}
		return f.cache[n]
	})
}

func (f *FibonacciBackoff) Delay(attempt int, base time.Duration) time.Duration {
	if attempt > 20 {
		attempt = 20 // 封顶第20个斐波那契数
	}
	return capDelay(base.Seconds()*float64(f.fib(attempt)), f.maxDelay)
}

func (f *FibonacciBackoff) RecommendRate(current float64, latest types.HealthSnapshot) float64 {
	if latest.ErrorRate > 10.0 {
		return math.Max(current/float64(f.fib(3)), 1)
	}
	return current
}

// AdaptiveBackoff 自适应退避：根据历史健康快照学习目标服务承受能力
type AdaptiveBackoff struct {
	mu      syncx.Locker
	cfg     *Config
	history []types.HealthSnapshot
	optimal float64 // 已知最优RPS估计
}

// NewAdaptiveBackoff 创建自适应退避计算器
func NewAdaptiveBackoff(cfg *Config) *AdaptiveBackoff {
	return &AdaptiveBackoff{
		mu:      syncx.NewLock(),
		cfg:     cfg,
		optimal: cfg.InitialRPS,
	}
}

func (a *AdaptiveBackoff) Delay(attempt int, base time.Duration) time.Duration {
	return syncx.WithLockReturnValue(a.mu, func() time.Duration {
		if len(a.history) < 5 {
			// 样本不足时回落到指数退避
			return time.Duration(base.Seconds() * math.Pow(2, float64(attempt)) * float64(time.Second))
		}

		recent := a.history[len(a.history)-5:]
		var sumLatency, sumErrRate float64
		for _, m := range recent {
			sumLatency += m.AvgLatency
			sumErrRate += m.ErrorRate
		}
		avgLatency := sumLatency / float64(len(recent))
		avgErrRate := sumErrRate / float64(len(recent))

		// 目标服务压力因子
		stress := 1.0
		if avgLatency > a.cfg.PerformanceTargetP95 {
			stress *= avgLatency / a.cfg.PerformanceTargetP95
		}
		if avgErrRate > 1.0 {
			stress *= 1 + avgErrRate/10.0
		}

		return capDelay(base.Seconds()*math.Pow(stress, float64(attempt)), a.cfg.BackoffMaxDelay.D())
	})
}

// score 综合性能得分（越低越好）：P95占比 + 错误率项 + 连接错误惩罚
func (a *AdaptiveBackoff) score(m types.HealthSnapshot) float64 {
	score := m.P95Latency / a.cfg.PerformanceTargetP95
	score += m.ErrorRate / 100.0
	if m.ConnectionErrors > 0 {
		score += 1.0
	}
	return score
}

func (a *AdaptiveBackoff) RecommendRate(current float64, latest types.HealthSnapshot) float64 {
	return syncx.WithLockReturnValue(a.mu, func() float64 {
		a.history = append(a.history, latest)
		if len(a.history) > adaptiveHistoryCap {
			a.history = a.history[1:]
		}
		if len(a.history) < 3 {
			return current // 样本不足
		}

		recent := a.history[len(a.history)-3:]
		scores := make([]float64, len(recent))
		for i, m := range recent {
			scores[i] = a.score(m)
		}

		// 三点趋势：正值表示性能恶化
		trend := (scores[len(scores)-1] - scores[0]) / float64(len(scores))
		latestScore := scores[len(scores)-1]

		var newRate float64
		switch {
		case trend > 0.2:
			newRate = current * (1 - a.cfg.AdaptationSensitivity)
		case trend < -0.2:
			newRate = current * (1 + a.cfg.AdaptationSensitivity*0.5)
		case latestScore < 1.5:
			// 表现平稳且良好，小步上探
			newRate = current * 1.1
		default:
			newRate = current
		}

		// 表现优秀时更新最优估计
		if latestScore < 1.0 && current > a.optimal {
			a.optimal = current
		}

		newRate = math.Max(a.cfg.MinRPS, math.Min(newRate, a.cfg.MaxRPS))
		// 不超过已知最优的120%
		return math.Min(newRate, a.optimal*1.2)
	})
}
