/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-06-26 09:10:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-07-25 16:40:21
 * @FilePath: \slayer\engine\report.go
 * @Description: 压测结果报告输出
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package engine

import (
	"fmt"

	"github.com/kamalyes/go-logger"
	"github.com/kamalyes/go-toolbox/pkg/units"

	"github.com/sudoinstallopsecc/slayer/types"
)

// PrintReport 打印压测统计报告（使用单个多列表格）
func PrintReport(log logger.ILogger, summary *types.TestSummary) {
	if summary == nil {
		return
	}

	log.Info("")
	log.Info("📊 压测统计报告")
	log.Info("")

	rt := summary.ResponseTimes

	// 构建单个统一表格
	reportData := []map[string]interface{}{
		{
			"分类":  "📈 基础统计",
			"指标":  "总请求数",
			"值":   fmt.Sprintf("%d", summary.TotalRequests),
			"分类2": "⏱️  响应时间",
			"指标2": "最小耗时",
			"值2":  formatMillis(rt.Min),
		},
		{
			"分类":  "📈 基础统计",
			"指标":  "成功请求",
			"值":   fmt.Sprintf("%d", summary.SuccessfulRequests),
			"分类2": "⏱️  响应时间",
			"指标2": "最大耗时",
			"值2":  formatMillis(rt.Max),
		},
		{
			"分类":  "📈 基础统计",
			"指标":  "失败请求",
			"值":   fmt.Sprintf("%d", summary.FailedRequests),
			"分类2": "⏱️  响应时间",
			"指标2": "平均耗时",
			"值2":  formatMillis(rt.Avg),
		},
		{
			"分类":  "📈 基础统计",
			"指标":  "错误率",
			"值":   fmt.Sprintf("%.2f%%", summary.ErrorRate),
			"分类2": "⏱️  响应时间",
			"指标2": "P50",
			"值2":  formatMillis(rt.P50),
		},
		{
			"分类":  "⚡ 性能指标",
			"指标":  "总耗时",
			"值":   summary.Duration.String(),
			"分类2": "⏱️  响应时间",
			"指标2": "P95",
			"值2":  formatMillis(rt.P95),
		},
		{
			"分类":  "⚡ 性能指标",
			"指标":  "平均RPS",
			"值":   fmt.Sprintf("%.2f", summary.AverageRPS),
			"分类2": "⏱️  响应时间",
			"指标2": "P99",
			"值2":  formatMillis(rt.P99),
		},
		{
			"分类":  "⚡ 性能指标",
			"指标":  "传输数据",
			"值":   units.BytesSize(summary.BytesReceived),
			"分类2": "⏱️  响应时间",
			"指标2": "样本数",
			"值2":  fmt.Sprintf("%d", rt.Count),
		},
	}

	log.ConsoleTable(reportData)

	// 状态码统计（如果有）
	if len(summary.StatusCodeCounts) > 0 {
		log.Info("")
		log.Info("📦 状态码统计")
		statusStats := make([]map[string]interface{}, 0, len(summary.StatusCodeCounts))
		for code, count := range summary.StatusCodeCounts {
			statusStats = append(statusStats, map[string]interface{}{
				"状态码": code,
				"次数":  count,
			})
		}
		log.ConsoleTable(statusStats)
	}

	// 错误统计（按失败类别）
	if len(summary.ErrorCounts) > 0 {
		log.Info("")
		log.Info("❌ 错误统计")
		errorStats := make([]map[string]interface{}, 0, len(summary.ErrorCounts))
		for kind, count := range summary.ErrorCounts {
			errorStats = append(errorStats, map[string]interface{}{
				"错误类别": kind,
				"次数":   count,
			})
		}
		log.ConsoleTable(errorStats)
	}

	// SLO 违规明细（如果有）
	if slo := summary.SLOSummary; slo != nil && slo.TotalViolations > 0 {
		log.Info("")
		log.Info("🚨 SLO违规 (近 %.0f 分钟共 %d 条)", slo.WindowMinutes, slo.TotalViolations)
		sloStats := make([]map[string]interface{}, 0, len(slo.Details))
		for _, v := range slo.Details {
			sloStats = append(sloStats, map[string]interface{}{
				"SLO名称": v.SLOName,
				"严重度":   v.Severity,
				"实测值":   fmt.Sprintf("%.2f", v.Value),
				"阈值":    fmt.Sprintf("%.2f", v.Threshold),
			})
		}
		log.ConsoleTable(sloStats)
	}

	log.Info("")
}

// SummaryLine 返回简短摘要
func SummaryLine(summary *types.TestSummary) string {
	if summary == nil {
		return "无统计数据"
	}
	return fmt.Sprintf(
		"请求: %d | 错误率: %.2f%% | RPS: %.2f | 平均耗时: %s",
		summary.TotalRequests,
		summary.ErrorRate,
		summary.AverageRPS,
		formatMillis(summary.ResponseTimes.Avg),
	)
}
