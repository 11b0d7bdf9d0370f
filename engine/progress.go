/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-06-26 09:10:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-07-23 10:18:52
 * @FilePath: \slayer\engine\progress.go
 * @Description: 运行进度表格输出
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kamalyes/go-logger"
	"github.com/kamalyes/go-toolbox/pkg/mathx"
	"github.com/kamalyes/go-toolbox/pkg/syncx"

	"github.com/sudoinstallopsecc/slayer/metrics"
	"github.com/sudoinstallopsecc/slayer/throttle"
)

// progressTracker 每秒打印一行运行状态
type progressTracker struct {
	startTime     time.Time
	collector     *metrics.Collector
	throttle      *throttle.AdaptiveThrottle
	headerPrinted *syncx.Bool // 标记是否已打印表头（打印协程与完成方并发访问）
	logger        logger.ILogger
}

// newProgressTracker 创建进度跟踪器
func newProgressTracker(collector *metrics.Collector, thr *throttle.AdaptiveThrottle, log logger.ILogger) *progressTracker {
	return &progressTracker{
		startTime:     time.Now(),
		collector:     collector,
		throttle:      thr,
		headerPrinted: syncx.NewBool(false),
		logger:        log,
	}
}

// Start 启动进度显示 - 使用 EventLoop
func (pt *progressTracker) Start(ctx context.Context) {
	pt.logger.Info("🚀 压测进行中...")
	// 使用 EventLoop 统一管理定时任务
	syncx.NewEventLoop(ctx).
		OnTicker(time.Second, func() {
			elapsed := time.Since(pt.startTime)
			if elapsed >= time.Second {
				pt.printProgress(elapsed)
			}
		}).
		Run()
}

// printProgress 打印进度行
func (pt *progressTracker) printProgress(elapsed time.Duration) {
	snapshot := pt.collector.Snapshot()
	status := pt.throttle.GetStatus()

	// 构建状态码统计字符串
	statusStr := mathx.IfEmpty(buildStatusStr(snapshot.StatusCodeCounts), "-")

	// 第一次显示时打印表头
	if pt.headerPrinted.CAS(false, true) {
		pt.logger.Info("")
		pt.logger.Info("┌──────┬────────────────┬─────────┬─────────┬────────┬────────┬────────┬──────────┬──────────┬────────┐")
		pt.logger.Info("│ 耗时 │ 限流状态       │ 限速RPS │ 实际RPS │ 成功数 │ 失败数 │ 错误率 │ 平均耗时 │ P95耗时  │ 状态码 │")
		pt.logger.Info("├──────┼────────────────┼─────────┼─────────┼────────┼────────┼────────┼──────────┼──────────┼────────┤")
	}

	// 格式化每个字段
	timeStr := fmt.Sprintf("%-4s", fmt.Sprintf("%ds", int(elapsed.Seconds())))
	stateStr := fmt.Sprintf("%-14s", string(status.State))
	limitRPSStr := fmt.Sprintf("%7.1f", status.CurrentRPS)
	realRPSStr := fmt.Sprintf("%7.1f", snapshot.CurrentRPS)
	successStr := fmt.Sprintf("%-6d", snapshot.SuccessfulRequests)
	failedStr := fmt.Sprintf("%-6d", snapshot.FailedRequests)
	errRateStr := fmt.Sprintf("%5.1f%%", snapshot.ErrorRate)
	avgLatencyStr := fmt.Sprintf("%-8s", formatMillis(snapshot.ResponseTimes.Avg))
	p95LatencyStr := fmt.Sprintf("%-8s", formatMillis(snapshot.ResponseTimes.P95))
	statusCodeStr := fmt.Sprintf("%-6s", statusStr)

	// 只打印数据行，不打印底部边框（底部边框在 Complete() 中打印）
	pt.logger.Info("│ %s │ %s │ %s │ %s │ %s │ %s │ %s │ %s │ %s │ %s │",
		timeStr, stateStr, limitRPSStr, realRPSStr, successStr,
		failedStr, errRateStr, avgLatencyStr, p95LatencyStr, statusCodeStr)
}

// Complete 完成并打印底部边框
func (pt *progressTracker) Complete() {
	// 如果显示过表头，打印表格底部
	if pt.headerPrinted.Load() {
		pt.logger.Info("└──────┴────────────────┴─────────┴─────────┴────────┴────────┴────────┴──────────┴──────────┴────────┘")
	}
	pt.logger.Info("🎉 压测完成！")
}

// buildStatusStr 构建状态码统计字符串
func buildStatusStr(statusCodes map[int]uint64) string {
	if len(statusCodes) == 0 {
		return ""
	}

	var parts []string
	for code, count := range statusCodes {
		parts = append(parts, fmt.Sprintf("%d:%d", code, count))
	}
	return strings.Join(parts, " ")
}

// formatMillis 格式化毫秒耗时
func formatMillis(ms float64) string {
	return mathx.WhenValue[string](ms > 0).
		ThenReturn(fmt.Sprintf("%.2fms", ms)).
		ElseReturn("-").
		Get()
}
