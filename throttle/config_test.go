/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-06-22 13:50:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-07-11 17:20:55
 * @FilePath: \slayer\throttle\config_test.go
 * @Description: 限流配置测试
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package throttle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestNormalizeFillsZeroValues 测试零值字段填充默认值
func TestNormalizeFillsZeroValues(t *testing.T) {
	cfg := (&Config{MaxRPS: 50}).Normalize()

	assert.InDelta(t, 50.0, cfg.MaxRPS, 0.01)
	assert.InDelta(t, 1.0, cfg.MinRPS, 0.01)
	assert.InDelta(t, 10.0, cfg.InitialRPS, 0.01)
	assert.Equal(t, StrategyExponential, cfg.BackoffStrategy)
	assert.Equal(t, 60*time.Second, cfg.BackoffMaxDelay.D())
	assert.Equal(t, 10, cfg.CircuitFailureThreshold)
	assert.InDelta(t, 0.9, cfg.RecoveryTargetRatio, 0.01)
}

// TestNormalizeInvalidRatio 测试非法恢复比例回落默认值
func TestNormalizeInvalidRatio(t *testing.T) {
	cfg := (&Config{RecoveryTargetRatio: 1.5}).Normalize()
	assert.InDelta(t, 0.9, cfg.RecoveryTargetRatio, 0.01)

	cfg = (&Config{RecoveryTargetRatio: -0.2}).Normalize()
	assert.InDelta(t, 0.9, cfg.RecoveryTargetRatio, 0.01)
}

// TestDefaultConfigBounds 测试默认配置的安全边界关系
func TestDefaultConfigBounds(t *testing.T) {
	cfg := DefaultConfig()

	assert.Greater(t, cfg.MaxRPS, cfg.MinRPS)
	assert.GreaterOrEqual(t, cfg.AbsoluteMaxRPS, cfg.MaxRPS)
	assert.GreaterOrEqual(t, cfg.InitialRPS, cfg.MinRPS)
	assert.LessOrEqual(t, cfg.InitialRPS, cfg.MaxRPS)
	assert.Greater(t, cfg.EmergencyStopErrorRate, cfg.ErrorRateThreshold)
}
