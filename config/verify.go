/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-07-09 14:50:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-07-09 15:08:12
 * @FilePath: \slayer\config\verify.go
 * @Description: 响应验证配置
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package config

import (
	"github.com/sudoinstallopsecc/slayer/types"
)

// VerifyConfig 响应验证配置
type VerifyConfig struct {
	Type        types.VerifyType     `json:"type" yaml:"type"`                                   // 验证类型
	Expect      interface{}          `json:"expect,omitempty" yaml:"expect,omitempty"`           // 期望值
	JSONPath    string               `json:"jsonpath,omitempty" yaml:"jsonpath,omitempty"`       // JSONPath 表达式（JSONPATH 类型）
	Header      string               `json:"header,omitempty" yaml:"header,omitempty"`           // 响应头名称（HEADER 类型）
	Operator    types.ExpectOperator `json:"operator,omitempty" yaml:"operator,omitempty"`       // 比较操作符
	Regex       bool                 `json:"regex,omitempty" yaml:"regex,omitempty"`             // JSONPath 期望值按正则匹配
	Description string               `json:"description,omitempty" yaml:"description,omitempty"` // 描述（附加到验证消息）
}
