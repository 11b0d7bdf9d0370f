/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-06-21 10:12:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-07-08 15:27:54
 * @FilePath: \slayer\types\health.go
 * @Description: 目标健康快照类型定义
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package types

import "time"

// HealthSnapshot 目标服务健康快照（限流决策输入）
// 由 throttle 在记录请求结果时追加，窗口满后淘汰最旧一条
type HealthSnapshot struct {
	Timestamp        time.Time `json:"timestamp"`         // 采样时间
	AvgLatency       float64   `json:"avg_latency"`       // 平均响应时间（毫秒）
	P95Latency       float64   `json:"p95_latency"`       // 近似P95（毫秒），快速路径估算值
	ErrorRate        float64   `json:"error_rate"`        // 错误率（0-100）
	ConnectionErrors int       `json:"connection_errors"` // 连接类错误数
	SuccessCount     int       `json:"success_count"`     // 成功请求数
	FailureCount     int       `json:"failure_count"`     // 失败请求数
	ObservedRate     float64   `json:"observed_rate"`     // 实际观测速率（RPS）
}
