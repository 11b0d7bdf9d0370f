/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-06-22 10:50:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-07-21 18:03:46
 * @FilePath: \slayer\throttle\throttle.go
 * @Description: 自适应限流器 - 根据目标服务健康状况自动调整调度速率
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package throttle

import (
	"fmt"
	"math"
	"time"

	"github.com/kamalyes/go-logger"
	"github.com/kamalyes/go-toolbox/pkg/mathx"
	"github.com/kamalyes/go-toolbox/pkg/syncx"

	"github.com/sudoinstallopsecc/slayer/metrics"
	"github.com/sudoinstallopsecc/slayer/types"
)

// dispatchWindowCap 放行时间滚动窗口上限（观测速率计算用）
const dispatchWindowCap = 1000

// AdaptiveThrottle 自适应限流器
// 组合熔断器与退避计算器，在 Normal/BackingOff/CircuitOpen/Recovery/EmergencyStop
// 五个状态间流转；EmergencyStop 为终态，仅 ResetEmergencyStop 可退出
type AdaptiveThrottle struct {
	mu     syncx.Locker
	logger logger.ILogger
	cfg    *Config

	sm    *syncx.StateMachine[State]
	state State

	currentRPS float64
	targetRPS  float64

	backoffAttempt  int
	lastBackoffTime time.Time

	history         []types.HealthSnapshot // 健康快照滚动窗口
	lastHealthCheck time.Time

	breaker    *CircuitBreaker
	calculator Calculator

	dispatchTimes []time.Time // 最近放行时间
	lastDispatch  time.Time

	emergency bool

	now func() time.Time
}

// Status 限流器当前状态快照（监控/上报用）
type Status struct {
	State           State        `json:"state"`
	CurrentRPS      float64      `json:"current_rps"`
	TargetRPS       float64      `json:"target_rps"`
	BackoffAttempt  int          `json:"backoff_attempt"`
	BreakerState    BreakerState `json:"breaker_state"`
	EmergencyStop   bool         `json:"emergency_stop"`
	HealthSamples   int          `json:"health_samples"`
	LastHealthCheck time.Time    `json:"last_health_check"`
}

// newThrottleStateMachine 声明限流状态机的合法转换
func newThrottleStateMachine() *syncx.StateMachine[State] {
	sm := syncx.NewStateMachine(StateNormal, syncx.WithTrackHistory[State](100))
	sm.AllowTransition(StateNormal, StateBackingOff)
	sm.AllowTransition(StateNormal, StateCircuitOpen)
	sm.AllowTransition(StateNormal, StateEmergencyStop)
	sm.AllowTransition(StateBackingOff, StateRecovery)
	sm.AllowTransition(StateBackingOff, StateCircuitOpen)
	sm.AllowTransition(StateBackingOff, StateEmergencyStop)
	sm.AllowTransition(StateRecovery, StateNormal)
	sm.AllowTransition(StateRecovery, StateBackingOff)
	sm.AllowTransition(StateRecovery, StateCircuitOpen)
	sm.AllowTransition(StateRecovery, StateEmergencyStop)
	sm.AllowTransition(StateCircuitOpen, StateRecovery)
	sm.AllowTransition(StateCircuitOpen, StateBackingOff)
	sm.AllowTransition(StateCircuitOpen, StateEmergencyStop)
	sm.AllowTransition(StateEmergencyStop, StateRecovery)
	return sm
}

// NewAdaptiveThrottle 创建自适应限流器
func NewAdaptiveThrottle(cfg *Config, log logger.ILogger) *AdaptiveThrottle {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfg.Normalize()
	if log == nil {
		log = logger.NewLogger(nil)
	}

	t := &AdaptiveThrottle{
		mu:         syncx.NewLock(),
		logger:     log,
		cfg:        cfg,
		sm:         newThrottleStateMachine(),
		state:      StateNormal,
		currentRPS: cfg.InitialRPS,
		targetRPS:  cfg.InitialRPS,
		breaker:    NewCircuitBreaker(cfg.CircuitFailureThreshold, cfg.CircuitTimeout.D(), cfg.RecoverySuccessThreshold, log),
		calculator: NewCalculator(cfg),
		now:        time.Now,
	}
	t.lastHealthCheck = t.now()

	log.Infof("🚦 自适应限流器就绪: 初始RPS=%.1f, 退避策略=%s", cfg.InitialRPS, cfg.BackoffStrategy)
	return t
}

// WithClock 注入时钟（测试用），同时注入内部熔断器
func (t *AdaptiveThrottle) WithClock(now func() time.Time) *AdaptiveThrottle {
	t.now = now
	t.breaker.WithClock(now)
	t.lastHealthCheck = now()
	return t
}

// transitionTo 执行状态转换（调用方需持有锁）
func (t *AdaptiveThrottle) transitionTo(next State) {
	if t.state == next {
		return
	}
	if err := t.sm.TransitionTo(next); err != nil {
		t.logger.WarnKV("非法限流状态转换", "from", string(t.state), "to", string(next), "error", err.Error())
		return
	}
	t.state = next
}

// ShouldDispatch 判断当前是否允许放行一次请求
// 返回 (是否放行, 建议等待时长)；允许放行时等待时长为 0
func (t *AdaptiveThrottle) ShouldDispatch() (bool, time.Duration) {
	// 熔断检查优先
	if !t.breaker.CanExecute() {
		syncx.WithLock(t.mu, func() {
			if t.state != StateEmergencyStop {
				t.transitionTo(StateCircuitOpen)
			}
		})
		return false, t.cfg.CircuitTimeout.D()
	}

	var allowed bool
	var wait time.Duration
	syncx.WithLock(t.mu, func() {
		now := t.now()

		if t.emergency {
			return
		}

		// 熔断恢复放行后进入恢复期
		if t.state == StateCircuitOpen {
			t.transitionTo(StateRecovery)
			t.backoffAttempt = 0
		}

		// 退避期结束后进入恢复期
		if t.state == StateBackingOff {
			delay := t.calculator.Delay(t.backoffAttempt, time.Second)
			if now.Sub(t.lastBackoffTime) >= delay {
				t.transitionTo(StateRecovery)
				t.backoffAttempt = 0
				t.logger.Infof("🔄 退避结束，进入恢复期")
			}
		}

		if t.currentRPS <= 0 {
			wait = time.Second
			return
		}

		// 按当前RPS控制最小放行间隔
		interval := time.Duration(float64(time.Second) / t.currentRPS)
		if !t.lastDispatch.IsZero() {
			if since := now.Sub(t.lastDispatch); since < interval {
				wait = interval - since
				return
			}
		}

		t.lastDispatch = now
		t.dispatchTimes = append(t.dispatchTimes, now)
		if len(t.dispatchTimes) > dispatchWindowCap {
			t.dispatchTimes = t.dispatchTimes[1:]
		}
		allowed = true
	})
	return allowed, wait
}

// RecordResult 记录一次请求结果，驱动熔断、退避与周期健康评估
// errKind 非空视为失败（传输失败或验证失败），与状态码判定并行生效
func (t *AdaptiveThrottle) RecordResult(latency time.Duration, statusCode int, errKind types.ErrorKind) {
	if statusCode >= 200 && statusCode < 400 && errKind == types.ErrorKindNone {
		t.breaker.RecordSuccess()
	} else {
		t.breaker.RecordFailure()
	}

	syncx.WithLock(t.mu, func() {
		now := t.now()
		latencyMS := float64(latency) / float64(time.Millisecond)

		t.collectSnapshot(now, latencyMS, statusCode, errKind)

		if t.shouldTriggerBackoff(latencyMS, statusCode, errKind) {
			t.triggerBackoff()
		}

		if now.Sub(t.lastHealthCheck) >= t.cfg.HealthCheckInterval.D() {
			t.assessHealth()
			t.lastHealthCheck = now
		}
	})
}

// collectSnapshot 追加一条近似健康快照（调用方需持有锁）
// P95 用单次延迟×1.2 近似，仅供快速退避决策；精确分位数由指标采集器计算
func (t *AdaptiveThrottle) collectSnapshot(now time.Time, latencyMS float64, statusCode int, errKind types.ErrorKind) {
	// 最近10秒的实际放行速率
	cutoff := now.Add(-10 * time.Second)
	observed := 0
	for _, ts := range t.dispatchTimes {
		if ts.After(cutoff) {
			observed++
		}
	}

	errorRate := 0.0
	failure := 0
	success := 0
	if statusCode >= 400 || errKind != types.ErrorKindNone {
		errorRate = 100.0
		failure = 1
	} else if statusCode >= 200 {
		success = 1
	}

	conn := 0
	if errKind.IsConnection() {
		conn = 1
	}

	snap := types.HealthSnapshot{
		Timestamp:        now,
		AvgLatency:       latencyMS,
		P95Latency:       latencyMS * 1.2,
		ErrorRate:        errorRate,
		ConnectionErrors: conn,
		SuccessCount:     success,
		FailureCount:     failure,
		ObservedRate:     float64(observed) / 10.0,
	}

	t.history = append(t.history, snap)
	if len(t.history) > t.cfg.HealthCheckWindow {
		t.history = t.history[1:]
	}
}

// shouldTriggerBackoff 判断是否需要立即退避（调用方需持有锁）
func (t *AdaptiveThrottle) shouldTriggerBackoff(latencyMS float64, statusCode int, errKind types.ErrorKind) bool {
	if latencyMS > t.cfg.ResponseTimeThreshold {
		t.logger.Warnf("🐌 响应时间过高: %.0fms", latencyMS)
		return true
	}
	if errKind.IsConnection() {
		t.logger.Warnf("🔌 连接类错误: %s", errKind)
		return true
	}
	if statusCode >= 500 {
		t.logger.Warnf("💥 服务端错误: %d", statusCode)
		return true
	}
	return false
}

// triggerBackoff 进入退避态并立即减速（调用方需持有锁）
func (t *AdaptiveThrottle) triggerBackoff() {
	if t.state == StateBackingOff || t.state == StateEmergencyStop {
		return
	}
	t.transitionTo(StateBackingOff)
	t.backoffAttempt++
	t.lastBackoffTime = t.now()
	t.currentRPS = math.Max(t.currentRPS*0.5, t.cfg.MinRPS)
	t.logger.Warnf("⚠️ 触发退避（第 %d 次），RPS降至 %.1f", t.backoffAttempt, t.currentRPS)
}

// assessHealth 周期健康评估（调用方需持有锁）
func (t *AdaptiveThrottle) assessHealth() {
	if len(t.history) < 3 {
		return
	}

	recent := t.history
	if len(recent) > 5 {
		recent = recent[len(recent)-5:]
	}

	latencies := make([]float64, 0, len(recent))
	errRates := make([]float64, 0, len(recent))
	for _, m := range recent {
		latencies = append(latencies, m.AvgLatency)
		errRates = append(errRates, m.ErrorRate)
	}
	avgLatency := mathx.Mean(latencies)
	avgErrRate := mathx.Mean(errRates)

	// 紧急停止检查
	if avgErrRate > t.cfg.EmergencyStopErrorRate {
		t.triggerEmergencyStop(fmt.Sprintf("平均错误率过高: %.1f%%", avgErrRate))
		return
	}

	latest := recent[len(recent)-1]

	switch t.state {
	case StateNormal:
		newRate := t.calculator.RecommendRate(t.currentRPS, latest)
		newRate = math.Max(t.cfg.MinRPS, math.Min(newRate, t.cfg.MaxRPS))
		newRate = math.Min(newRate, t.cfg.AbsoluteMaxRPS)
		if newRate != t.currentRPS {
			t.logger.Infof("📊 根据健康状况调整RPS: %.1f -> %.1f", t.currentRPS, newRate)
			t.currentRPS = newRate
		}

	case StateRecovery:
		// 指标良好时逐步提速
		if avgErrRate < 2.0 && avgLatency < t.cfg.PerformanceTargetP95 {
			newRate := math.Min(t.currentRPS*1.1, t.targetRPS)
			t.currentRPS = newRate
			t.logger.Infof("📈 恢复中: RPS提升至 %.1f", newRate)
			if newRate >= t.targetRPS*t.cfg.RecoveryTargetRatio {
				t.transitionTo(StateNormal)
				t.logger.Infof("✅ 恢复完成，回到正常状态")
			}
		}
	}
}

// triggerEmergencyStop 触发紧急停止（调用方需持有锁）
func (t *AdaptiveThrottle) triggerEmergencyStop(reason string) {
	if t.emergency {
		return
	}
	t.emergency = true
	t.transitionTo(StateEmergencyStop)
	t.currentRPS = 0
	t.logger.Errorf("🚨 紧急停止: %s", reason)
}

// SetTargetRate 设置目标RPS（受安全边界约束），正常态下立即生效
func (t *AdaptiveThrottle) SetTargetRate(rate float64) {
	syncx.WithLock(t.mu, func() {
		rate = math.Max(t.cfg.MinRPS, math.Min(rate, t.cfg.MaxRPS))
		rate = math.Min(rate, t.cfg.AbsoluteMaxRPS)

		t.targetRPS = rate
		if !t.emergency && t.state == StateNormal {
			t.currentRPS = rate
		}
		// 调度器逐派发提案速率，高频路径降为调试日志
		t.logger.Debugf("🎯 目标RPS设为 %.1f", rate)
	})
}

// ResetEmergencyStop 手动复位紧急停止，以最低速率进入恢复期
// 这是退出 EmergencyStop 的唯一途径
func (t *AdaptiveThrottle) ResetEmergencyStop() {
	syncx.WithLock(t.mu, func() {
		if !t.emergency {
			return
		}
		t.emergency = false
		t.transitionTo(StateRecovery)
		t.currentRPS = t.cfg.MinRPS
		t.backoffAttempt = 0
		t.logger.Infof("🔧 紧急停止已复位，进入恢复模式")
	})
}

// State 当前限流状态
func (t *AdaptiveThrottle) State() State {
	return syncx.WithLockReturnValue(t.mu, func() State {
		return t.state
	})
}

// CurrentRate 当前调度速率（RPS）
func (t *AdaptiveThrottle) CurrentRate() float64 {
	return syncx.WithLockReturnValue(t.mu, func() float64 {
		return t.currentRPS
	})
}

// RecommendedDelay 按当前速率推荐的请求间隔
func (t *AdaptiveThrottle) RecommendedDelay() time.Duration {
	return syncx.WithLockReturnValue(t.mu, func() time.Duration {
		if t.currentRPS <= 0 {
			return time.Second
		}
		return time.Duration(float64(time.Second) / t.currentRPS)
	})
}

// Breaker 内部熔断器（状态上报用）
func (t *AdaptiveThrottle) Breaker() *CircuitBreaker {
	return t.breaker
}

// GetStatus 当前限流器完整状态
func (t *AdaptiveThrottle) GetStatus() Status {
	return syncx.WithLockReturnValue(t.mu, func() Status {
		return Status{
			State:           t.state,
			CurrentRPS:      t.currentRPS,
			TargetRPS:       t.targetRPS,
			BackoffAttempt:  t.backoffAttempt,
			BreakerState:    t.breaker.State(),
			EmergencyStop:   t.emergency,
			HealthSamples:   len(t.history),
			LastHealthCheck: t.lastHealthCheck,
		}
	})
}

// StandardSLOs 基于限流配置生成标准SLO规则集
func (t *AdaptiveThrottle) StandardSLOs() []metrics.SLORule {
	return []metrics.SLORule{
		{
			Name:          "response_time_p95",
			MetricName:    metrics.MetricResponseTimeP95,
			Threshold:     t.cfg.PerformanceTargetP95,
			Operator:      metrics.OperatorLT,
			WindowSeconds: 60,
			Description:   "P95响应时间应低于性能目标",
		},
		{
			Name:          "error_rate",
			MetricName:    metrics.MetricErrorRate,
			Threshold:     t.cfg.ErrorRateThreshold,
			Operator:      metrics.OperatorLT,
			WindowSeconds: 30,
			Description:   "错误率应低于阈值",
		},
		{
			Name:          "min_rps",
			MetricName:    metrics.MetricCurrentRPS,
			Threshold:     t.cfg.MinRPS,
			Operator:      metrics.OperatorGE,
			WindowSeconds: 10,
			Description:   "RPS不应低于下限",
		},
	}
}
