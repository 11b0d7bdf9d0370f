/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-06-23 15:05:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-07-22 16:10:33
 * @FilePath: \slayer\metrics\collector_test.go
 * @Description: 指标收集器测试
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sudoinstallopsecc/slayer/logger"
	"github.com/sudoinstallopsecc/slayer/types"
)

func successResult(duration time.Duration, size float64) *types.RequestResult {
	return &types.RequestResult{
		Success:    true,
		StatusCode: 200,
		Duration:   duration,
		Size:       size,
	}
}

func failedResult(statusCode int, kind types.ErrorKind) *types.RequestResult {
	return &types.RequestResult{
		Success:    false,
		StatusCode: statusCode,
		Duration:   50 * time.Millisecond,
		Error:      errors.New("请求失败"),
		ErrorKind:  kind,
	}
}

// TestCollectorRecordCounts 测试基础计数
func TestCollectorRecordCounts(t *testing.T) {
	c := NewCollector(logger.New())

	for i := 0; i < 8; i++ {
		c.Record(successResult(20*time.Millisecond, 128))
	}
	c.Record(failedResult(500, types.ErrorKindProtocol))
	c.Record(failedResult(0, types.ErrorKindTimeout))

	summary := c.Summary()
	assert.Equal(t, uint64(10), summary.TotalRequests)
	assert.Equal(t, uint64(8), summary.SuccessfulRequests)
	assert.Equal(t, uint64(2), summary.FailedRequests)
	assert.InDelta(t, 20.0, summary.ErrorRate, 0.01)
	assert.InDelta(t, 8*128.0, summary.BytesReceived, 0.01)

	assert.Equal(t, uint64(8), summary.StatusCodeCounts[200])
	assert.Equal(t, uint64(1), summary.StatusCodeCounts[500])
	// 状态码0（传输层失败）不计入状态码分布
	_, hasZero := summary.StatusCodeCounts[0]
	assert.False(t, hasZero)

	assert.Equal(t, uint64(1), summary.ErrorCounts[string(types.ErrorKindProtocol)])
	assert.Equal(t, uint64(1), summary.ErrorCounts[string(types.ErrorKindTimeout)])
}

// TestCollectorNilResult 测试空结果安全跳过
func TestCollectorNilResult(t *testing.T) {
	c := NewCollector(logger.New())
	c.Record(nil)

	summary := c.Summary()
	assert.Equal(t, uint64(0), summary.TotalRequests)
}

// TestCollectorResponseTimes 测试窗口响应时间统计
func TestCollectorResponseTimes(t *testing.T) {
	c := NewCollector(logger.New())

	// 1ms..100ms 各一次
	for i := 1; i <= 100; i++ {
		c.Record(successResult(time.Duration(i)*time.Millisecond, 0))
	}

	rt := c.Summary().ResponseTimes
	assert.Equal(t, 100, rt.Count)
	assert.InDelta(t, 1.0, rt.Min, 0.01)
	assert.InDelta(t, 100.0, rt.Max, 0.01)
	assert.InDelta(t, 50.5, rt.Avg, 0.5)
	assert.InDelta(t, 50.0, rt.P50, 2.0)
	assert.InDelta(t, 95.0, rt.P95, 2.0)
	assert.InDelta(t, 99.0, rt.P99, 2.0)
}

// TestCollectorWindowEviction 测试响应时间窗口淘汰最旧样本
func TestCollectorWindowEviction(t *testing.T) {
	c := NewCollector(logger.New())

	for i := 0; i < 200; i++ {
		c.Record(successResult(10*time.Millisecond, 0))
	}
	for i := 0; i < latencyWindowCap; i++ {
		c.Record(successResult(100*time.Millisecond, 0))
	}

	rt := c.Summary().ResponseTimes
	// 窗口只保留最近1000个样本，早期10ms样本已全部被覆盖
	assert.Equal(t, latencyWindowCap, rt.Count)
	assert.InDelta(t, 100.0, rt.Min, 0.01)
	assert.InDelta(t, 100.0, rt.Max, 0.01)

	// 计数器不受窗口影响
	assert.Equal(t, uint64(200+latencyWindowCap), c.Summary().TotalRequests)
}

// TestCollectorCurrentRPS 测试1秒滑动窗口RPS
func TestCollectorCurrentRPS(t *testing.T) {
	clock := newFakeClock()
	c := NewCollector(logger.New()).WithClock(clock.Now)

	for i := 0; i < 5; i++ {
		c.Record(successResult(10*time.Millisecond, 0))
	}
	assert.InDelta(t, 5.0, c.Summary().CurrentRPS, 0.01)

	// 2秒后旧时间戳滑出窗口
	clock.Advance(2 * time.Second)
	assert.InDelta(t, 0.0, c.Summary().CurrentRPS, 0.01)

	for i := 0; i < 3; i++ {
		c.Record(successResult(10*time.Millisecond, 0))
	}
	assert.InDelta(t, 3.0, c.Summary().CurrentRPS, 0.01)
}

// TestCollectorAverageRPS 测试全程平均RPS
func TestCollectorAverageRPS(t *testing.T) {
	clock := newFakeClock()
	c := NewCollector(logger.New()).WithClock(clock.Now)

	for i := 0; i < 30; i++ {
		c.Record(successResult(5*time.Millisecond, 0))
		clock.Advance(200 * time.Millisecond)
	}

	summary := c.Summary()
	// 30个请求耗时6秒
	assert.Equal(t, 6*time.Second, summary.Duration)
	assert.InDelta(t, 5.0, summary.AverageRPS, 0.01)
}

// TestCollectorReset 测试重置
func TestCollectorReset(t *testing.T) {
	clock := newFakeClock()
	c := NewCollector(logger.New()).WithClock(clock.Now)

	for i := 0; i < 10; i++ {
		c.Record(successResult(10*time.Millisecond, 64))
	}
	clock.Advance(5 * time.Second)
	c.Reset()

	summary := c.Summary()
	assert.Equal(t, uint64(0), summary.TotalRequests)
	assert.Equal(t, 0, summary.ResponseTimes.Count)
	assert.InDelta(t, 0.0, summary.BytesReceived, 0.01)
	assert.InDelta(t, 0.0, summary.CurrentRPS, 0.01)
	assert.Empty(t, summary.StatusCodeCounts)
	assert.Equal(t, time.Duration(0), summary.Duration)
}

// TestCollectorSLOIntegration 测试收集器与SLO监控联动
func TestCollectorSLOIntegration(t *testing.T) {
	clock := newFakeClock()
	c := NewCollector(logger.New()).WithClock(clock.Now)
	assert.NoError(t, c.AddSLO(SLORule{
		Name:          "error_rate",
		MetricName:    MetricErrorRate,
		Threshold:     5,
		Operator:      OperatorLT,
		WindowSeconds: 60,
	}))

	for i := 0; i < 10; i++ {
		c.Record(failedResult(500, types.ErrorKindProtocol))
	}

	// 第一轮只攒样本，第二轮窗口凑齐后报违规
	assert.Empty(t, c.CheckSLOs())
	clock.Advance(time.Second)
	violations := c.CheckSLOs()
	assert.Len(t, violations, 1)
	assert.Equal(t, "error_rate", violations[0].SLOName)
	assert.Equal(t, SeverityCritical, violations[0].Severity) // 100/5 = 20

	summary := c.Summary()
	assert.NotNil(t, summary.SLOSummary)
	assert.Equal(t, 1, summary.SLOSummary.TotalViolations)
	assert.Equal(t, 1, summary.SLOSummary.BySLO["error_rate"])
}

// TestLatencyRing 测试环形缓冲行为
func TestLatencyRing(t *testing.T) {
	r := newLatencyRing(3)
	assert.Equal(t, 0, r.size())
	assert.Empty(t, r.values())

	r.push(1)
	r.push(2)
	assert.Equal(t, 2, r.size())
	assert.Equal(t, []float64{1, 2}, r.values())

	r.push(3)
	r.push(4) // 覆盖最旧的1
	assert.Equal(t, 3, r.size())
	assert.Equal(t, []float64{2, 3, 4}, r.values())

	r.reset()
	assert.Equal(t, 0, r.size())
}
