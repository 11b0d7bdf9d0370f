/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-06-22 10:05:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-14 15:47:21
 * @FilePath: \slayer\verify\builtin.go
 * @Description: 内置验证器实现 - 比较逻辑统一使用 go-toolbox/validator
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package verify

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kamalyes/go-toolbox/pkg/validator"
	"github.com/oliveagle/jsonpath"
	"github.com/sudoinstallopsecc/slayer/config"
)

// HTTPVerifier HTTP验证器
type HTTPVerifier struct {
	config *config.VerifyConfig
}

// NewHTTPVerifier 创建HTTP验证器
func NewHTTPVerifier(cfg *config.VerifyConfig) *HTTPVerifier {
	if cfg == nil {
		cfg = &config.VerifyConfig{
			Type:   VerifyTypeStatusCode,
			Expect: 200,
		}
	}
	return &HTTPVerifier{config: cfg}
}

// Verify 验证HTTP响应
func (v *HTTPVerifier) Verify(resp *Response) (bool, error) {
	if resp.Error != nil {
		return false, resp.Error
	}

	// 初始化验证结果列表
	if resp.Verifications == nil {
		resp.Verifications = make([]VerificationResult, 0)
	}

	// 依赖响应体的验证要求请求已成功返回
	switch v.config.Type {
	case VerifyTypeJSONPath, VerifyTypeContains, VerifyTypeRegex, VerifyTypeJSONValid:
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return v.failHTTPStatus(resp)
		}
	}

	switch v.config.Type {
	case VerifyTypeStatusCode:
		return v.verifyStatusCode(resp)
	case VerifyTypeJSONPath:
		return v.verifyJSONPath(resp)
	case VerifyTypeContains:
		return v.verifyContains(resp)
	case VerifyTypeRegex:
		return v.verifyRegex(resp)
	case VerifyTypeJSONValid:
		return v.verifyJSONValid(resp)
	case VerifyTypeHeader:
		return v.verifyHeader(resp)
	case VerifyTypeResponseTime:
		return v.verifyResponseTime(resp)
	default:
		return true, nil
	}
}

// failHTTPStatus 请求未成功时体类验证直接判负
func (v *HTTPVerifier) failHTTPStatus(resp *Response) (bool, error) {
	result := VerificationResult{
		Type:    v.config.Type,
		Success: false,
		Message: fmt.Sprintf("HTTP请求失败，状态码: %d", resp.StatusCode),
		Expect:  "2xx",
		Actual:  fmt.Sprintf("%d", resp.StatusCode),
	}
	resp.Verifications = append(resp.Verifications, result)
	return false, fmt.Errorf("HTTP请求失败: %s", result.Message)
}

// finish 记录验证结果，失败时返回错误
func (v *HTTPVerifier) finish(resp *Response, result VerificationResult) (bool, error) {
	result.Description = v.config.Description
	resp.Verifications = append(resp.Verifications, result)
	if !result.Success {
		return false, fmt.Errorf("%s", result.Message)
	}
	return true, nil
}

// operatorOr 取配置的操作符，未配置时使用默认值
func (v *HTTPVerifier) operatorOr(def validator.CompareOperator) validator.CompareOperator {
	if v.config.Operator == "" {
		return def
	}
	return v.config.Operator
}

// verifyStatusCode 验证状态码 - validator.ValidateStatusCode
func (v *HTTPVerifier) verifyStatusCode(resp *Response) (bool, error) {
	expectedCode := 200 // 默认期望200

	// Expect 支持 int/float64/string（JSON解析的数字是float64）
	switch exp := v.config.Expect.(type) {
	case int:
		expectedCode = exp
	case float64:
		expectedCode = int(exp)
	case string:
		if parsed, err := strconv.Atoi(strings.TrimSpace(exp)); err == nil {
			expectedCode = parsed
		}
	}

	operator := v.operatorOr(validator.OpEqual)
	compareResult := validator.ValidateStatusCode(resp.StatusCode, expectedCode, operator)

	result := NewVerificationResultFromCompare(v.config.Type, compareResult)
	result.Operator = operator.String()
	return v.finish(resp, result)
}

// verifyJSONPath 验证JSON路径 - jsonpath 取值后用 validator 比较
func (v *HTTPVerifier) verifyJSONPath(resp *Response) (bool, error) {
	var data interface{}
	if err := json.Unmarshal(resp.Body, &data); err != nil {
		return v.finish(resp, VerificationResult{
			Type:    v.config.Type,
			Success: false,
			Message: fmt.Sprintf("解析JSON失败: %v", err),
			Field:   v.config.JSONPath,
			Expect:  v.config.JSONPath,
			Actual:  "解析失败",
		})
	}

	value, err := jsonpath.JsonPathLookup(data, v.config.JSONPath)
	if err != nil {
		return v.finish(resp, VerificationResult{
			Type:    v.config.Type,
			Success: false,
			Message: fmt.Sprintf("JSON路径查询失败: %v", err),
			Field:   v.config.JSONPath,
			Expect:  v.config.JSONPath,
			Actual:  "查询失败",
		})
	}

	// 没有期望值时仅验证路径存在
	if v.config.Expect == nil {
		return v.finish(resp, VerificationResult{
			Type:    v.config.Type,
			Success: true,
			Message: "JSON路径验证通过",
			Field:   v.config.JSONPath,
			Expect:  v.config.JSONPath,
			Actual:  fmt.Sprintf("%v", value),
		})
	}

	operator := v.operatorOr(validator.OpEqual)
	if v.config.Regex {
		operator = validator.OpRegex
	}

	result := NewVerificationResultFromCompare(v.config.Type, v.compareExtracted(value, operator))
	result.Field = v.config.JSONPath
	result.Operator = operator.String()
	return v.finish(resp, result)
}

// compareExtracted 提取值与期望值比较：数值操作符按浮点数比较，其余按字符串
func (v *HTTPVerifier) compareExtracted(value interface{}, operator validator.CompareOperator) validator.CompareResult {
	switch operator {
	case validator.OpGreaterThan, validator.OpGreaterThanOrEqual,
		validator.OpLessThan, validator.OpLessThanOrEqual:
		actual, aErr := expectAsFloat(value)
		expect, eErr := expectAsFloat(v.config.Expect)
		if aErr == nil && eErr == nil {
			return validator.CompareNumbers(actual, expect, operator)
		}
	}

	actualStr := fmt.Sprintf("%v", value)
	expectStr := fmt.Sprintf("%v", v.config.Expect)
	return validator.ValidateString(actualStr, expectStr, operator)
}

// verifyContains 验证响应体包含字符串 - validator.ValidateContains
func (v *HTTPVerifier) verifyContains(resp *Response) (bool, error) {
	containsStr, ok := v.config.Expect.(string)
	if !ok {
		return v.finish(resp, VerificationResult{
			Type:    v.config.Type,
			Success: false,
			Message: "contains 验证需要字符串类型的 expect 值",
			Expect:  fmt.Sprintf("%v", v.config.Expect),
			Actual:  "类型错误",
		})
	}

	compareResult := validator.ValidateContains(resp.Body, containsStr)
	return v.finish(resp, NewVerificationResultFromCompare(v.config.Type, compareResult))
}

// verifyRegex 验证响应体匹配正则 - validator.ValidateRegex
func (v *HTTPVerifier) verifyRegex(resp *Response) (bool, error) {
	pattern, ok := v.config.Expect.(string)
	if !ok {
		return v.finish(resp, VerificationResult{
			Type:    v.config.Type,
			Success: false,
			Message: "regex 验证需要字符串类型的 expect 值",
			Expect:  fmt.Sprintf("%v", v.config.Expect),
			Actual:  "类型错误",
		})
	}

	compareResult := validator.ValidateRegex(resp.Body, pattern)
	return v.finish(resp, NewVerificationResultFromCompare(v.config.Type, compareResult))
}

// verifyJSONValid 验证响应体为合法JSON - validator.ValidateJSON
func (v *HTTPVerifier) verifyJSONValid(resp *Response) (bool, error) {
	err := validator.ValidateJSON(resp.Body)
	result := VerificationResult{
		Type:    v.config.Type,
		Success: err == nil,
		Expect:  "valid JSON",
		Actual:  "JSON response",
	}
	if err != nil {
		result.Message = fmt.Sprintf("JSON 格式验证失败: %s", err.Error())
	} else {
		result.Message = "JSON 格式验证通过"
	}
	return v.finish(resp, result)
}

// verifyHeader 验证HTTP响应头 - validator.ValidateString
func (v *HTTPVerifier) verifyHeader(resp *Response) (bool, error) {
	headerName := v.config.Header
	if headerName == "" {
		return v.finish(resp, VerificationResult{
			Type:    v.config.Type,
			Success: false,
			Message: "Header 验证需要指定 header 名称",
			Expect:  "header name",
			Actual:  "未指定",
		})
	}

	expectStr, ok := v.config.Expect.(string)
	if !ok {
		expectStr = fmt.Sprintf("%v", v.config.Expect)
	}

	operator := v.operatorOr(validator.OpEqual)
	compareResult := validator.ValidateString(resp.Headers[headerName], expectStr, operator)
	compareResult.Message = fmt.Sprintf("Header[%s] %s", headerName, compareResult.Message)

	result := NewVerificationResultFromCompare(v.config.Type, compareResult)
	result.Field = headerName
	result.Operator = operator.String()
	return v.finish(resp, result)
}

// verifyResponseTime 验证响应时间（毫秒）- validator.CompareNumbers
func (v *HTTPVerifier) verifyResponseTime(resp *Response) (bool, error) {
	threshold, err := expectAsFloat(v.config.Expect)
	if err != nil {
		return v.finish(resp, VerificationResult{
			Type:    v.config.Type,
			Success: false,
			Message: "响应时间验证需要数值类型的 expect 值（毫秒）",
			Expect:  fmt.Sprintf("%v", v.config.Expect),
			Actual:  "类型错误",
		})
	}

	// 默认验证响应时间不超过期望值
	operator := v.operatorOr(validator.OpLessThanOrEqual)
	actualMS := float64(resp.Duration) / float64(time.Millisecond)
	compareResult := validator.CompareNumbers(actualMS, threshold, operator)
	compareResult.Message = fmt.Sprintf("响应时间 %s", compareResult.Message)

	result := NewVerificationResultFromCompare(v.config.Type, compareResult)
	result.Operator = operator.String()
	return v.finish(resp, result)
}

// expectAsFloat 期望值转数值（JSON解析的数字是float64）
func expectAsFloat(expect interface{}) (float64, error) {
	switch val := expect.(type) {
	case float64:
		return val, nil
	case int:
		return float64(val), nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(val), 64)
	default:
		return 0, fmt.Errorf("不支持的数值类型: %T", expect)
	}
}
