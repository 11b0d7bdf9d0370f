/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-07-10 10:30:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-07-10 14:22:37
 * @FilePath: \slayer\verify\verify_test.go
 * @Description: 验证器测试
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package verify

import (
	"errors"
	"testing"
	"time"

	"github.com/kamalyes/go-logger"
	"github.com/stretchr/testify/assert"
	"github.com/sudoinstallopsecc/slayer/config"
	"github.com/sudoinstallopsecc/slayer/types"
)

// okResp 构造一个成功响应
func okResp(body string) *Response {
	return &Response{
		StatusCode: 200,
		Body:       []byte(body),
		Headers:    map[string]string{"Content-Type": "application/json"},
		Duration:   150 * time.Millisecond,
	}
}

// 测试状态码验证
func TestVerifyStatusCode(t *testing.T) {
	tests := []struct {
		name   string
		expect interface{}
		code   int
		want   bool
	}{
		{"整数期望匹配", 200, 200, true},
		{"浮点期望匹配", float64(404), 404, true},
		{"字符串期望匹配", "201", 201, true},
		{"状态码不匹配", 200, 500, false},
		{"空期望默认200", nil, 200, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewHTTPVerifier(&config.VerifyConfig{
				Type:   VerifyTypeStatusCode,
				Expect: tt.expect,
			})
			resp := okResp("")
			resp.StatusCode = tt.code

			ok, err := v.Verify(resp)
			assert.Equal(t, tt.want, ok)
			if tt.want {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
			assert.Len(t, resp.Verifications, 1)
			assert.Equal(t, tt.want, resp.Verifications[0].Success)
		})
	}
}

// 测试状态码验证 - nil 配置使用默认值
func TestVerifyStatusCodeDefaultConfig(t *testing.T) {
	v := NewHTTPVerifier(nil)

	ok, err := v.Verify(okResp(""))
	assert.True(t, ok)
	assert.NoError(t, err)
}

// 测试JSONPath验证 - 值匹配
func TestVerifyJSONPath(t *testing.T) {
	body := `{"data":{"user_id":"12345","count":3}}`

	v := NewHTTPVerifier(&config.VerifyConfig{
		Type:     VerifyTypeJSONPath,
		JSONPath: "$.data.user_id",
		Expect:   "12345",
	})
	resp := okResp(body)

	ok, err := v.Verify(resp)
	assert.True(t, ok)
	assert.NoError(t, err)
	assert.Len(t, resp.Verifications, 1)
	assert.Equal(t, "$.data.user_id", resp.Verifications[0].Field)
}

// 测试JSONPath验证 - 数值比较操作符
func TestVerifyJSONPathNumericOperator(t *testing.T) {
	body := `{"data":{"count":3}}`

	v := NewHTTPVerifier(&config.VerifyConfig{
		Type:     VerifyTypeJSONPath,
		JSONPath: "$.data.count",
		Expect:   2,
		Operator: types.OpGT,
	})

	ok, err := v.Verify(okResp(body))
	assert.True(t, ok)
	assert.NoError(t, err)
}

// 测试JSONPath验证 - 仅验证路径存在
func TestVerifyJSONPathExistsOnly(t *testing.T) {
	body := `{"data":{"user_id":"12345"}}`

	v := NewHTTPVerifier(&config.VerifyConfig{
		Type:     VerifyTypeJSONPath,
		JSONPath: "$.data.user_id",
	})
	ok, err := v.Verify(okResp(body))
	assert.True(t, ok)
	assert.NoError(t, err)

	v2 := NewHTTPVerifier(&config.VerifyConfig{
		Type:     VerifyTypeJSONPath,
		JSONPath: "$.data.missing",
	})
	ok, err = v2.Verify(okResp(body))
	assert.False(t, ok)
	assert.Error(t, err)
}

// 测试JSONPath验证 - 正则匹配模式
func TestVerifyJSONPathRegex(t *testing.T) {
	body := `{"data":{"user_id":"12345"}}`

	v := NewHTTPVerifier(&config.VerifyConfig{
		Type:     VerifyTypeJSONPath,
		JSONPath: "$.data.user_id",
		Expect:   `^\d+$`,
		Regex:    true,
	})

	ok, err := v.Verify(okResp(body))
	assert.True(t, ok)
	assert.NoError(t, err)
}

// 测试JSONPath验证 - HTTP请求失败短路
func TestVerifyJSONPathHTTPFailure(t *testing.T) {
	v := NewHTTPVerifier(&config.VerifyConfig{
		Type:     VerifyTypeJSONPath,
		JSONPath: "$.data.user_id",
		Expect:   "12345",
	})
	resp := okResp(`{"data":{"user_id":"12345"}}`)
	resp.StatusCode = 500

	ok, err := v.Verify(resp)
	assert.False(t, ok)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP请求失败")
	assert.Len(t, resp.Verifications, 1)
	assert.Equal(t, "2xx", resp.Verifications[0].Expect)
}

// 测试包含字符串验证
func TestVerifyContains(t *testing.T) {
	v := NewHTTPVerifier(&config.VerifyConfig{
		Type:   VerifyTypeContains,
		Expect: "ok",
	})
	ok, err := v.Verify(okResp(`{"status":"ok"}`))
	assert.True(t, ok)
	assert.NoError(t, err)

	ok, err = v.Verify(okResp(`{"status":"error"}`))
	assert.False(t, ok)
	assert.Error(t, err)
}

// 测试包含字符串验证 - 非字符串期望值
func TestVerifyContainsTypeError(t *testing.T) {
	v := NewHTTPVerifier(&config.VerifyConfig{
		Type:   VerifyTypeContains,
		Expect: 123,
	})

	resp := okResp("123")
	ok, err := v.Verify(resp)
	assert.False(t, ok)
	assert.Error(t, err)
	assert.Equal(t, "类型错误", resp.Verifications[0].Actual)
}

// 测试正则验证
func TestVerifyRegex(t *testing.T) {
	v := NewHTTPVerifier(&config.VerifyConfig{
		Type:   VerifyTypeRegex,
		Expect: `token=\w+`,
	})

	ok, err := v.Verify(okResp("session token=abcd1234"))
	assert.True(t, ok)
	assert.NoError(t, err)

	ok, err = v.Verify(okResp("no credentials here"))
	assert.False(t, ok)
	assert.Error(t, err)
}

// 测试JSON格式验证
func TestVerifyJSONValid(t *testing.T) {
	v := NewHTTPVerifier(&config.VerifyConfig{Type: VerifyTypeJSONValid})

	ok, err := v.Verify(okResp(`{"valid":true}`))
	assert.True(t, ok)
	assert.NoError(t, err)

	ok, err = v.Verify(okResp(`{invalid`))
	assert.False(t, ok)
	assert.Error(t, err)
}

// 测试响应头验证
func TestVerifyHeader(t *testing.T) {
	v := NewHTTPVerifier(&config.VerifyConfig{
		Type:   VerifyTypeHeader,
		Header: "Content-Type",
		Expect: "application/json",
	})
	resp := okResp("")

	ok, err := v.Verify(resp)
	assert.True(t, ok)
	assert.NoError(t, err)
	assert.Equal(t, "Content-Type", resp.Verifications[0].Field)
}

// 测试响应头验证 - contains 操作符
func TestVerifyHeaderContains(t *testing.T) {
	v := NewHTTPVerifier(&config.VerifyConfig{
		Type:     VerifyTypeHeader,
		Header:   "Content-Type",
		Expect:   "json",
		Operator: types.OpContains,
	})

	ok, err := v.Verify(okResp(""))
	assert.True(t, ok)
	assert.NoError(t, err)
}

// 测试响应头验证 - 未指定header名
func TestVerifyHeaderMissingName(t *testing.T) {
	v := NewHTTPVerifier(&config.VerifyConfig{
		Type:   VerifyTypeHeader,
		Expect: "application/json",
	})

	ok, err := v.Verify(okResp(""))
	assert.False(t, ok)
	assert.Error(t, err)
}

// 测试响应时间验证
func TestVerifyResponseTime(t *testing.T) {
	tests := []struct {
		name   string
		expect interface{}
		want   bool
	}{
		{"低于阈值通过", 200, true},
		{"字符串阈值通过", "200", true},
		{"超过阈值失败", 100, false},
		{"非数值类型失败", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewHTTPVerifier(&config.VerifyConfig{
				Type:   VerifyTypeResponseTime,
				Expect: tt.expect,
			})

			// okResp 的耗时固定为 150ms
			ok, err := v.Verify(okResp(""))
			assert.Equal(t, tt.want, ok)
			if tt.want {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

// 测试传输层错误直接失败
func TestVerifyTransportError(t *testing.T) {
	v := NewHTTPVerifier(&config.VerifyConfig{
		Type:   VerifyTypeStatusCode,
		Expect: 200,
	})
	resp := &Response{Error: errors.New("connection refused")}

	ok, err := v.Verify(resp)
	assert.False(t, ok)
	assert.Error(t, err)
	assert.Empty(t, resp.Verifications)
}

// 测试验证描述附加到结果
func TestVerifyDescription(t *testing.T) {
	v := NewHTTPVerifier(&config.VerifyConfig{
		Type:        VerifyTypeJSONPath,
		JSONPath:    "$.status",
		Expect:      "ok",
		Description: "状态字段检查",
	})
	resp := okResp(`{"status":"ok"}`)

	ok, err := v.Verify(resp)
	assert.True(t, ok)
	assert.NoError(t, err)
	assert.Equal(t, "状态字段检查", resp.Verifications[0].Description)
	assert.Contains(t, resp.Verifications[0].Message, "状态字段检查")
}

// alwaysPassVerifier 自定义验证器
type alwaysPassVerifier struct{}

func (alwaysPassVerifier) Verify(resp *types.Response) (bool, error) { return true, nil }

// 测试注册中心 - 内置类型与未知类型
func TestRegistryGet(t *testing.T) {
	r := NewRegistry(logger.New())

	v, err := r.Get(VerifyTypeStatusCode, &config.VerifyConfig{Type: VerifyTypeStatusCode})
	assert.NoError(t, err)
	assert.NotNil(t, v)

	_, err = r.Get("UNKNOWN", &config.VerifyConfig{Type: "UNKNOWN"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "验证器不存在")
}

// 测试注册中心 - 注册自定义验证器
func TestRegistryRegisterCustom(t *testing.T) {
	r := NewRegistry(logger.New())
	r.Register("CUSTOM", func(cfg *config.VerifyConfig) types.Verifier {
		return alwaysPassVerifier{}
	})

	v, err := r.Get("CUSTOM", &config.VerifyConfig{Type: "CUSTOM"})
	assert.NoError(t, err)

	ok, err := v.Verify(okResp(""))
	assert.True(t, ok)
	assert.NoError(t, err)
}

// 测试注册中心 - 批量执行验证
func TestRegistryRun(t *testing.T) {
	r := NewRegistry(logger.New())
	resp := okResp(`{"status":"ok"}`)

	ok, err := r.Run(resp, []config.VerifyConfig{
		{Type: VerifyTypeStatusCode, Expect: 200},
		{Type: VerifyTypeJSONPath, JSONPath: "$.status", Expect: "ok"},
	})
	assert.True(t, ok)
	assert.NoError(t, err)
	assert.Len(t, resp.Verifications, 2)
}

// 测试注册中心 - 批量执行快速失败
func TestRegistryRunFailFast(t *testing.T) {
	r := NewRegistry(logger.New())
	resp := okResp(`{"status":"error"}`)

	ok, err := r.Run(resp, []config.VerifyConfig{
		{Type: VerifyTypeStatusCode, Expect: 500},
		{Type: VerifyTypeJSONPath, JSONPath: "$.status", Expect: "error"},
	})
	assert.False(t, ok)
	assert.Error(t, err)
	// 第一个验证失败即停止
	assert.Len(t, resp.Verifications, 1)
}

// 测试注册中心 - 空配置列表通过
func TestRegistryRunEmpty(t *testing.T) {
	r := NewRegistry(logger.New())

	ok, err := r.Run(okResp(""), nil)
	assert.True(t, ok)
	assert.NoError(t, err)
}
