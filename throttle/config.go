/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-06-22 09:15:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-07-11 16:42:18
 * @FilePath: \slayer\throttle\config.go
 * @Description: 自适应限流配置
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package throttle

import (
	"time"

	"github.com/sudoinstallopsecc/slayer/types"
)

// Strategy 退避策略类型
type Strategy string

const (
	StrategyExponential Strategy = "exponential" // 指数退避 | EN Exponential backoff
	StrategyLinear      Strategy = "linear"      // 线性退避 | EN Linear backoff
	StrategyFibonacci   Strategy = "fibonacci"   // 斐波那契退避 | EN Fibonacci backoff
	StrategyAdaptive    Strategy = "adaptive"    // 自适应退避（基于历史表现） | EN Adaptive backoff
)

// State 限流器状态
type State string

const (
	StateNormal        State = "normal"         // 正常调度
	StateBackingOff    State = "backing_off"    // 退避中（速率已减半）
	StateCircuitOpen   State = "circuit_open"   // 熔断打开，拒绝放行
	StateRecovery      State = "recovery"       // 恢复中（逐步提速）
	StateEmergencyStop State = "emergency_stop" // 紧急停止（需手动复位）
)

// Config 自适应限流配置
// 所有阈值均针对目标服务的健康表现，零值字段由 Normalize 填充默认值
type Config struct {
	// 速率边界
	MaxRPS     float64 `json:"max_rps" yaml:"max_rps"`         // 允许的最大RPS
	MinRPS     float64 `json:"min_rps" yaml:"min_rps"`         // 退避时的速率下限
	InitialRPS float64 `json:"initial_rps" yaml:"initial_rps"` // 初始RPS

	// 退避触发阈值
	ErrorRateThreshold       float64 `json:"error_rate_threshold" yaml:"error_rate_threshold"`             // 错误率阈值（百分比）
	ResponseTimeThreshold    float64 `json:"response_time_threshold" yaml:"response_time_threshold"`       // 响应时间阈值（毫秒）
	ConnectionErrorThreshold int     `json:"connection_error_threshold" yaml:"connection_error_threshold"` // 连续连接错误阈值

	// 退避策略
	BackoffStrategy   Strategy       `json:"backoff_strategy" yaml:"backoff_strategy"`     // exponential/linear/fibonacci/adaptive
	BackoffMultiplier float64        `json:"backoff_multiplier" yaml:"backoff_multiplier"` // 指数退避倍数
	BackoffMaxDelay   types.Duration `json:"backoff_max_delay" yaml:"backoff_max_delay"`   // 单次退避延迟上限

	// 恢复参数
	RecoveryTestInterval     types.Duration `json:"recovery_test_interval" yaml:"recovery_test_interval"`         // 恢复试探间隔
	RecoverySuccessThreshold int            `json:"recovery_success_threshold" yaml:"recovery_success_threshold"` // 半开态连续成功次数
	RecoveryTargetRatio      float64        `json:"recovery_target_ratio" yaml:"recovery_target_ratio"`           // 恢复到目标速率的比例后回到正常态

	// 熔断器
	CircuitFailureThreshold int            `json:"circuit_failure_threshold" yaml:"circuit_failure_threshold"` // 连续失败打开熔断
	CircuitTimeout          types.Duration `json:"circuit_timeout" yaml:"circuit_timeout"`                     // 熔断打开后的冷却时间

	// 健康监控
	HealthCheckInterval types.Duration `json:"health_check_interval" yaml:"health_check_interval"` // 周期评估间隔
	HealthCheckWindow   int            `json:"health_check_window" yaml:"health_check_window"`     // 健康快照滚动窗口大小

	// 安全上限
	AbsoluteMaxRPS         float64 `json:"absolute_max_rps" yaml:"absolute_max_rps"`                 // 硬上限，任何情况下不可突破
	EmergencyStopErrorRate float64 `json:"emergency_stop_error_rate" yaml:"emergency_stop_error_rate"` // 平均错误率超过此值触发紧急停止

	// 自适应参数
	AdaptationSensitivity float64 `json:"adaptation_sensitivity" yaml:"adaptation_sensitivity"` // 调整敏感度（0.1慢 ~ 0.9快）
	PerformanceTargetP95  float64 `json:"performance_target_p95" yaml:"performance_target_p95"` // P95响应时间目标（毫秒）
}

// DefaultConfig 返回默认限流配置
func DefaultConfig() *Config {
	return &Config{
		MaxRPS:                   100,
		MinRPS:                   1,
		InitialRPS:               10,
		ErrorRateThreshold:       5.0,
		ResponseTimeThreshold:    5000.0,
		ConnectionErrorThreshold: 5,
		BackoffStrategy:          StrategyExponential,
		BackoffMultiplier:        2.0,
		BackoffMaxDelay:          types.Duration(60 * time.Second),
		RecoveryTestInterval:     types.Duration(10 * time.Second),
		RecoverySuccessThreshold: 3,
		RecoveryTargetRatio:      0.9,
		CircuitFailureThreshold:  10,
		CircuitTimeout:           types.Duration(30 * time.Second),
		HealthCheckInterval:      types.Duration(5 * time.Second),
		HealthCheckWindow:        20,
		AbsoluteMaxRPS:           1000,
		EmergencyStopErrorRate:   50.0,
		AdaptationSensitivity:    0.3,
		PerformanceTargetP95:     2000.0,
	}
}

// Normalize 用默认值填充零值字段，返回自身便于链式调用
func (c *Config) Normalize() *Config {
	def := DefaultConfig()
	if c.MaxRPS <= 0 {
		c.MaxRPS = def.MaxRPS
	}
	if c.MinRPS <= 0 {
		c.MinRPS = def.MinRPS
	}
	if c.InitialRPS <= 0 {
		c.InitialRPS = def.InitialRPS
	}
	if c.ErrorRateThreshold <= 0 {
		c.ErrorRateThreshold = def.ErrorRateThreshold
	}
	if c.ResponseTimeThreshold <= 0 {
		c.ResponseTimeThreshold = def.ResponseTimeThreshold
	}
	if c.ConnectionErrorThreshold <= 0 {
		c.ConnectionErrorThreshold = def.ConnectionErrorThreshold
	}
	if c.BackoffStrategy == "" {
		c.BackoffStrategy = def.BackoffStrategy
	}
	if c.BackoffMultiplier <= 0 {
		c.BackoffMultiplier = def.BackoffMultiplier
	}
	if c.BackoffMaxDelay <= 0 {
		c.BackoffMaxDelay = def.BackoffMaxDelay
	}
	if c.RecoveryTestInterval <= 0 {
		c.RecoveryTestInterval = def.RecoveryTestInterval
	}
	if c.RecoverySuccessThreshold <= 0 {
		c.RecoverySuccessThreshold = def.RecoverySuccessThreshold
	}
	if c.RecoveryTargetRatio <= 0 || c.RecoveryTargetRatio > 1 {
		c.RecoveryTargetRatio = def.RecoveryTargetRatio
	}
	if c.CircuitFailureThreshold <= 0 {
		c.CircuitFailureThreshold = def.CircuitFailureThreshold
	}
	if c.CircuitTimeout <= 0 {
		c.CircuitTimeout = def.CircuitTimeout
	}
	if c.HealthCheckInterval <= 0 {
		c.HealthCheckInterval = def.HealthCheckInterval
	}
	if c.HealthCheckWindow <= 0 {
		c.HealthCheckWindow = def.HealthCheckWindow
	}
	if c.AbsoluteMaxRPS <= 0 {
		c.AbsoluteMaxRPS = def.AbsoluteMaxRPS
	}
	if c.EmergencyStopErrorRate <= 0 {
		c.EmergencyStopErrorRate = def.EmergencyStopErrorRate
	}
	if c.AdaptationSensitivity <= 0 {
		c.AdaptationSensitivity = def.AdaptationSensitivity
	}
	if c.PerformanceTargetP95 <= 0 {
		c.PerformanceTargetP95 = def.PerformanceTargetP95
	}
	return c
}
