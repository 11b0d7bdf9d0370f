/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-06-22 10:05:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-07-10 09:35:20
 * @FilePath: \slayer\verify\aliases.go
 * @Description: verify 模块类型别名
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package verify

import (
	"github.com/sudoinstallopsecc/slayer/types"
)

// 类型别名 - 从 types 包导入
type (
	Response           = types.Response
	VerifyType         = types.VerifyType
	VerificationResult = types.VerificationResult
)

// 常量别名
const (
	VerifyTypeStatusCode   = types.VerifyTypeStatusCode
	VerifyTypeJSONPath     = types.VerifyTypeJSONPath
	VerifyTypeContains     = types.VerifyTypeContains
	VerifyTypeRegex        = types.VerifyTypeRegex
	VerifyTypeJSONValid    = types.VerifyTypeJSONValid
	VerifyTypeHeader       = types.VerifyTypeHeader
	VerifyTypeResponseTime = types.VerifyTypeResponseTime
)

// 函数别名
var NewVerificationResultFromCompare = types.NewVerificationResultFromCompare
