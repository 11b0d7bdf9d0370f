/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-06-20 11:30:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-07-09 10:24:08
 * @FilePath: \slayer\types\enums.go
 * @Description: 枚举类型定义
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package types

import "github.com/kamalyes/go-toolbox/pkg/validator"

// HTTPMethod HTTP请求方法
type HTTPMethod string

const (
	MethodGet     HTTPMethod = "GET"
	MethodPost    HTTPMethod = "POST"
	MethodPut     HTTPMethod = "PUT"
	MethodDelete  HTTPMethod = "DELETE"
	MethodPatch   HTTPMethod = "PATCH"
	MethodHead    HTTPMethod = "HEAD"
	MethodOptions HTTPMethod = "OPTIONS"
)

// RunMode 运行模式
type RunMode string

const (
	RunModeStandalone  RunMode = "standalone"  // 单机模式 | EN Standalone mode
	RunModeCoordinator RunMode = "coordinator" // 协调器模式 | EN Coordinator (master) mode
	RunModeWorker      RunMode = "worker"      // 工作节点模式 | EN Worker mode
)

// RunMode 实现 flag.Value 接口
func (s *RunMode) String() string {
	if s == nil {
		return string(RunModeStandalone)
	}
	return string(*s)
}

func (s *RunMode) Set(value string) error {
	*s = RunMode(value)
	return nil
}

// ErrorKind 请求失败类别
type ErrorKind string

const (
	ErrorKindNone         ErrorKind = ""             // 无错误 | EN No error
	ErrorKindTimeout      ErrorKind = "timeout"      // 超时 | EN Timeout
	ErrorKindConnection   ErrorKind = "connection"   // 连接类错误（拒绝/重置/DNS） | EN Connection-class error
	ErrorKindProtocol     ErrorKind = "protocol"     // 协议/其他错误 | EN Protocol or other error
	ErrorKindVerification ErrorKind = "verification" // 响应验证失败 | EN Response verification failure
)

// IsConnection 是否连接类错误（连接类错误会触发立即退避）
func (k ErrorKind) IsConnection() bool {
	return k == ErrorKindConnection || k == ErrorKindTimeout
}

// VerifyType 验证类型
type VerifyType string

const (
	VerifyTypeStatusCode VerifyType = "STATUS_CODE" // 状态码验证（支持操作符：=, !=, >, <, >=, <=）
	VerifyTypeJSONPath   VerifyType = "JSONPATH"    // JSONPath验证（支持操作符：=, !=, >, <, >=, <=, contains）
	VerifyTypeContains   VerifyType = "CONTAINS"    // 包含字符串验证
	VerifyTypeRegex      VerifyType = "REGEX"       // 正则表达式验证
	VerifyTypeJSONValid  VerifyType = "JSON_VALID"  // JSON 格式验证

	VerifyTypeHeader       VerifyType = "HEADER"        // HTTP 响应头验证
	VerifyTypeResponseTime VerifyType = "RESPONSE_TIME" // 响应时间验证（毫秒）
)

// ToString
func (vt VerifyType) ToString() string {
	return string(vt)
}

// ExpectOperator 比较操作符（用于 STATUS_CODE/JSONPATH/SLO 等）
// 使用 go-toolbox/validator 提供的 CompareOperator
type ExpectOperator = validator.CompareOperator

// 操作符常量 - 直接引用 validator 中的定义
const (
	OpEQ          = validator.OpEqual
	OpNE          = validator.OpNotEqual
	OpGT          = validator.OpGreaterThan
	OpGTE         = validator.OpGreaterThanOrEqual
	OpLT          = validator.OpLessThan
	OpLTE         = validator.OpLessThanOrEqual
	OpContains    = validator.OpContains
	OpNotContains = validator.OpNotContains
	OpRegex       = validator.OpRegex
)

// Verifier 验证器接口
type Verifier interface {
	// Verify 验证响应
	Verify(resp *Response) (bool, error)
}

// ContentType 内容类型
type ContentType string

const (
	ContentTypeJSON ContentType = "application/json"
	ContentTypeForm ContentType = "application/x-www-form-urlencoded"
	ContentTypeText ContentType = "text/plain"
)

// StorageMode 请求明细存储模式
type StorageMode string

const (
	// StorageModeMemory 内存模式 - 数据存储在内存中，速度快但程序退出后丢失
	StorageModeMemory StorageMode = "memory"

	// StorageModeSQLite 文件模式 - 数据持久化到SQLite，支持海量数据
	StorageModeSQLite StorageMode = "sqlite"

	// StorageModeBadger KV模式 - 数据写入 BadgerDB，高吞吐写入
	StorageModeBadger StorageMode = "badger"
)

// StorageMode 实现 flag.Value 接口
func (s *StorageMode) String() string {
	if s == nil {
		return string(StorageModeMemory)
	}
	return string(*s)
}

func (s *StorageMode) Set(value string) error {
	*s = StorageMode(value)
	return nil
}
