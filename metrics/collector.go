/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-06-23 10:15:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-07-22 11:03:46
 * @FilePath: \slayer\metrics\collector.go
 * @Description: 实时指标收集器（滑动窗口响应时间 + RPS + SLO联动）
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package metrics

import (
	"time"

	"github.com/kamalyes/go-logger"
	"github.com/kamalyes/go-toolbox/pkg/mathx"
	"github.com/kamalyes/go-toolbox/pkg/syncx"

	"github.com/sudoinstallopsecc/slayer/types"
)

const (
	latencyWindowCap = 1000            // 响应时间滑动窗口容量
	rpsWindowCap     = 1000            // RPS时间戳窗口容量
	rpsWindow        = 1 * time.Second // 瞬时RPS统计窗口
)

// latencyRing 固定容量环形缓冲，写满后覆盖最旧样本
type latencyRing struct {
	buf  []float64
	next int
	full bool
}

func newLatencyRing(capacity int) *latencyRing {
	return &latencyRing{buf: make([]float64, capacity)}
}

func (r *latencyRing) push(v float64) {
	r.buf[r.next] = v
	r.next++
	if r.next == len(r.buf) {
		r.next = 0
		r.full = true
	}
}

func (r *latencyRing) size() int {
	if r.full {
		return len(r.buf)
	}
	return r.next
}

// values 按时间顺序返回窗口内样本的副本
func (r *latencyRing) values() []float64 {
	if !r.full {
		out := make([]float64, r.next)
		copy(out, r.buf[:r.next])
		return out
	}
	out := make([]float64, 0, len(r.buf))
	out = append(out, r.buf[r.next:]...)
	out = append(out, r.buf[:r.next]...)
	return out
}

func (r *latencyRing) reset() {
	r.next = 0
	r.full = false
}

// Collector 实时指标收集器
// 计数器全程累计，响应时间和RPS基于滑动窗口，SLO检查由内置监控器联动
type Collector struct {
	mu     *syncx.RWLock
	logger logger.ILogger

	totalRequests   *syncx.Uint64
	successRequests *syncx.Uint64
	failedRequests  *syncx.Uint64

	errorKinds  *syncx.Map[string, uint64]
	statusCodes *syncx.Map[int, uint64]

	window        *latencyRing // 响应时间窗口（毫秒）
	bytesReceived float64
	rpsTimes      []time.Time // 最近请求完成时间戳
	startTime     time.Time

	monitor *SLOMonitor

	now func() time.Time
}

// NewCollector 创建指标收集器（内置SLO监控器共用同一日志器）
func NewCollector(log logger.ILogger) *Collector {
	if log == nil {
		log = logger.NewLogger(nil)
	}
	return &Collector{
		mu:              syncx.NewRWLock(),
		logger:          log,
		totalRequests:   syncx.NewUint64(0),
		successRequests: syncx.NewUint64(0),
		failedRequests:  syncx.NewUint64(0),
		errorKinds:      syncx.NewMap[string, uint64](),
		statusCodes:     syncx.NewMap[int, uint64](),
		window:          newLatencyRing(latencyWindowCap),
		rpsTimes:        make([]time.Time, 0, rpsWindowCap),
		startTime:       time.Now(),
		monitor:         NewSLOMonitor(log),
		now:             time.Now,
	}
}

// WithClock 注入时钟并重置起始时间（测试用），同步注入SLO监控器
func (c *Collector) WithClock(now func() time.Time) *Collector {
	c.now = now
	c.startTime = now()
	c.monitor.WithClock(now)
	return c
}

// Monitor 内置SLO监控器
func (c *Collector) Monitor() *SLOMonitor {
	return c.monitor
}

// AddSLO 注册SLO规则
func (c *Collector) AddSLO(rule SLORule) error {
	return c.monitor.AddRule(rule)
}

// Record 记录一次请求结果
func (c *Collector) Record(result *types.RequestResult) {
	if result == nil {
		c.logger.Warn("⚠️  收到空的请求结果，跳过收集")
		return
	}

	// 原子操作，无需加锁
	c.totalRequests.Add(1)

	if result.Success {
		c.successRequests.Add(1)
	} else {
		c.failedRequests.Add(1)

		// 失败原因按错误类别归类计数
		if result.ErrorKind != "" {
			key := string(result.ErrorKind)
			old, _ := c.errorKinds.LoadOrStore(key, 0)
			c.errorKinds.Store(key, old+1)
		}
	}

	// 统计状态码
	if result.StatusCode > 0 {
		old, _ := c.statusCodes.LoadOrStore(result.StatusCode, 0)
		c.statusCodes.Store(result.StatusCode, old+1)
	}

	at := result.Timestamp
	if at.IsZero() {
		at = c.now()
	}

	syncx.WithLock(c.mu, func() {
		c.window.push(float64(result.Duration) / float64(time.Millisecond))
		c.bytesReceived += result.Size

		c.rpsTimes = append(c.rpsTimes, at)
		if len(c.rpsTimes) > rpsWindowCap {
			c.rpsTimes = c.rpsTimes[len(c.rpsTimes)-rpsWindowCap:]
		}
		c.trimRPSLocked(at)
	})
}

// trimRPSLocked 裁掉1秒窗口之外的时间戳，须在写锁内调用
func (c *Collector) trimRPSLocked(now time.Time) {
	cutoff := now.Add(-rpsWindow)
	idx := 0
	for idx < len(c.rpsTimes) && c.rpsTimes[idx].Before(cutoff) {
		idx++
	}
	if idx > 0 {
		c.rpsTimes = c.rpsTimes[idx:]
	}
}

// currentRPSLocked 统计1秒窗口内完成的请求数，须在锁内调用
func (c *Collector) currentRPSLocked(now time.Time) float64 {
	cutoff := now.Add(-rpsWindow)
	count := 0
	for _, t := range c.rpsTimes {
		if !t.Before(cutoff) {
			count++
		}
	}
	return float64(count)
}

// responseTimesLocked 基于滑动窗口计算响应时间统计，须在锁内调用
func (c *Collector) responseTimesLocked() types.ResponseTimes {
	values := c.window.values()
	if len(values) == 0 {
		return types.ResponseTimes{}
	}

	mn, mx := values[0], values[0]
	for _, v := range values[1:] {
		mn = mathx.Min(mn, v)
		mx = mathx.Max(mx, v)
	}

	percentiles := mathx.Percentiles(values, 50, 95, 99)

	return types.ResponseTimes{
		Min:   mn,
		Avg:   mathx.Mean(values),
		P50:   percentiles[50],
		P95:   percentiles[95],
		P99:   percentiles[99],
		Max:   mx,
		Count: len(values),
	}
}

// Snapshot 当前窗口统计（不含SLO摘要，供高频轮询）
func (c *Collector) Snapshot() *types.TestSummary {
	return c.buildSummary(false)
}

// Summary 完整测试摘要（含最近5分钟SLO违规摘要）
func (c *Collector) Summary() *types.TestSummary {
	return c.buildSummary(true)
}

func (c *Collector) buildSummary(withSLO bool) *types.TestSummary {
	total := c.totalRequests.Load()
	success := c.successRequests.Load()
	failed := c.failedRequests.Load()
	now := c.now()

	summary := syncx.WithRLockReturnValue(c.mu, func() *types.TestSummary {
		duration := now.Sub(c.startTime)

		s := &types.TestSummary{
			TotalRequests:      total,
			SuccessfulRequests: success,
			FailedRequests:     failed,
			CurrentRPS:         c.currentRPSLocked(now),
			ResponseTimes:      c.responseTimesLocked(),
			StatusCodeCounts:   c.statusCodes.ToMap(),
			ErrorCounts:        c.errorKinds.ToMap(),
			BytesReceived:      c.bytesReceived,
			Duration:           duration,
		}

		if total > 0 {
			s.ErrorRate = mathx.Percentage(failed, total)
		}
		if duration > 0 {
			s.AverageRPS = float64(total) / duration.Seconds()
		}
		return s
	})

	if withSLO {
		summary.SLOSummary = c.monitor.Summary()
	}
	return summary
}

// CheckSLOs 用当前快照评估全部SLO规则，返回本轮新增违规
func (c *Collector) CheckSLOs() []SLOViolation {
	return c.monitor.Check(c.Snapshot())
}

// Reset 清空全部统计（调用方需保证此刻无并发写入）
func (c *Collector) Reset() {
	c.totalRequests = syncx.NewUint64(0)
	c.successRequests = syncx.NewUint64(0)
	c.failedRequests = syncx.NewUint64(0)
	c.errorKinds = syncx.NewMap[string, uint64]()
	c.statusCodes = syncx.NewMap[int, uint64]()

	syncx.WithLock(c.mu, func() {
		c.window.reset()
		c.bytesReceived = 0
		c.rpsTimes = c.rpsTimes[:0]
		c.startTime = c.now()
	})

	c.logger.Info("🔄 统计指标已重置")
}
