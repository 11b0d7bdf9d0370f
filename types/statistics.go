/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-06-20 11:30:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-07-15 10:06:33
 * @FilePath: \slayer\types\statistics.go
 * @Description: 统计相关类型定义
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package types

import (
	"time"

	"github.com/kamalyes/go-toolbox/pkg/validator"
)

// RequestResult 请求结果（用于统计和存储）
type RequestResult struct {
	ID         string        `json:"id"`                    // 唯一ID（UUID）
	NodeID     string        `json:"node_id,omitempty"`     // 节点ID（分布式模式下标识数据来源，单机模式为"local"）
	SequenceID uint64        `json:"sequence_id"`           // 调度序号（来自 ScheduledDispatch）
	Success    bool          `json:"success"`               // 是否成功
	StatusCode int           `json:"status_code"`           // HTTP 状态码
	Duration   time.Duration `json:"duration"`              // 请求耗时
	Size       float64       `json:"size"`                  // 响应大小
	Error      error         `json:"-"`                     // 错误信息（不序列化）
	ErrorMsg   string        `json:"error,omitempty"`       // 错误消息（用于存储和序列化）
	ErrorKind  ErrorKind     `json:"error_kind,omitempty"`  // 失败类别
	Timestamp  time.Time     `json:"timestamp"`             // 时间戳

	// 请求详情
	URL    string `json:"url,omitempty"`    // 请求URL
	Method string `json:"method,omitempty"` // 请求方法
	Body   string `json:"body,omitempty"`   // 请求体

	// 验证信息
	Verifications []VerificationResult `json:"verifications,omitempty"` // 验证结果列表
}

// VerificationResult 验证结果
type VerificationResult struct {
	Type        VerifyType `json:"type"`                  // 验证类型：STATUS_CODE, JSONPATH 等
	Success     bool       `json:"success"`               // 验证是否成功
	Message     string     `json:"message"`               // 验证消息（成功或失败原因）
	Expect      string     `json:"expect"`                // 期望值
	Actual      string     `json:"actual"`                // 实际值
	Field       string     `json:"field,omitempty"`       // 验证的字段（JSONPath路径/响应头名）
	Operator    string     `json:"operator,omitempty"`    // 操作符（eq, ne, contains等）
	Description string     `json:"description,omitempty"` // 配置中的描述
}

// NewVerificationResultFromCompare 从 validator.CompareResult 创建 VerificationResult
// 用于将 go-toolbox/validator 的结果转换为 slayer 的结果类型
func NewVerificationResultFromCompare(verifyType VerifyType, cr validator.CompareResult) VerificationResult {
	return VerificationResult{
		Type:    verifyType,
		Success: cr.Success,
		Message: cr.Message,
		Expect:  cr.Expect,
		Actual:  cr.Actual,
	}
}

// ResponseTimes 响应时间统计（秒/毫秒单位由调用方约定，内部为毫秒）
type ResponseTimes struct {
	Min   float64 `json:"min"`
	Avg   float64 `json:"avg"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
	Max   float64 `json:"max"`
	Count int     `json:"count"`
}

// TestSummary 测试结果摘要（核心对外返回的统一结构）
type TestSummary struct {
	TotalRequests      uint64           `json:"total_requests"`
	SuccessfulRequests uint64           `json:"successful_requests"`
	FailedRequests     uint64           `json:"failed_requests"`
	ErrorRate          float64          `json:"error_rate"`       // 0-100
	AverageRPS         float64          `json:"average_rps"`      // 全程平均
	CurrentRPS         float64          `json:"current_rps"`      // 1秒滑动窗口
	ResponseTimes      ResponseTimes    `json:"response_times"`   // 毫秒
	StatusCodeCounts   map[int]uint64   `json:"status_code_counts"`
	ErrorCounts        map[string]uint64 `json:"error_counts,omitempty"`
	BytesReceived      float64          `json:"bytes_received"`
	Duration           time.Duration    `json:"duration"`
	SLOSummary         *SLOSummary      `json:"slo_summary,omitempty"`
}

// SLOSummary SLO 检查摘要
type SLOSummary struct {
	TotalViolations int               `json:"total_violations"`
	BySeverity      map[string]int    `json:"by_severity"`
	BySLO           map[string]int    `json:"by_slo"`
	WindowMinutes   float64           `json:"window_minutes"`
	Details         []SLOViolationRef `json:"details,omitempty"`
}

// SLOViolationRef SLO 违规摘要条目
type SLOViolationRef struct {
	SLOName   string    `json:"slo_name"`
	Severity  string    `json:"severity"`
	Value     float64   `json:"value"`
	Threshold float64   `json:"threshold"`
	Timestamp time.Time `json:"timestamp"`
}
