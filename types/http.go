/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-06-20 11:30:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-07-09 10:21:34
 * @FilePath: \slayer\types\http.go
 * @Description: HTTP 请求/响应类型定义
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package types

import (
	"context"
	"time"
)

// Request 一次待执行的HTTP请求（执行层入参）
type Request struct {
	Method  string            `json:"method"`            // 请求方法
	URL     string            `json:"url"`               // 目标URL
	Headers map[string]string `json:"headers,omitempty"` // 请求头
	Body    string            `json:"body,omitempty"`    // 请求体
	Timeout time.Duration     `json:"timeout"`           // 单次请求超时
}

// Response 执行层返回的响应
type Response struct {
	StatusCode int               `json:"status_code"` // HTTP 状态码
	Body       []byte            `json:"-"`           // 响应体
	Headers    map[string]string `json:"-"`           // 响应头
	Duration   time.Duration     `json:"duration"`    // 耗时
	Size       int64             `json:"size"`        // 响应字节数

	// 传输层失败信息（请求未到达或未完成时填充）
	Error     error     `json:"-"`
	ErrorKind ErrorKind `json:"error_kind,omitempty"`

	// 验证结果（由验证器追加）
	Verifications []VerificationResult `json:"verifications,omitempty"`

	// 请求回显（用于验证和明细记录）
	RequestURL    string `json:"request_url,omitempty"`
	RequestMethod string `json:"request_method,omitempty"`
	RequestBody   string `json:"request_body,omitempty"`
}

// IsStatusSuccess 2xx/3xx 视为协议层成功
func (r *Response) IsStatusSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 400
}

// Client 协议客户端接口
type Client interface {
	// Connect 建立连接（HTTP等无状态协议可为空实现）
	Connect(ctx context.Context) error
	// Send 发送请求；传输层失败时仍返回带耗时与错误分类的响应
	Send(ctx context.Context, req *Request) (*Response, error)
	// Close 关闭连接
	Close() error
}
