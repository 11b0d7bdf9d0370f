/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-06-25 10:02:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-07-13 14:21:36
 * @FilePath: \slayer\config\variable.go
 * @Description: 变量解析器 - 载荷模板的动态值来源
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package config

import (
	"bytes"
	"crypto/md5"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math"
	"net/url"
	"os"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/kamalyes/go-toolbox/pkg/convert"
	"github.com/kamalyes/go-toolbox/pkg/mathx"
	"github.com/kamalyes/go-toolbox/pkg/netx"
	"github.com/kamalyes/go-toolbox/pkg/osx"
	"github.com/kamalyes/go-toolbox/pkg/random"
	"github.com/kamalyes/go-toolbox/pkg/stringx"
	"github.com/kamalyes/go-toolbox/pkg/syncx"
)

// VariableResolver 变量解析器
// 解析 {{...}} 模板语法，用户变量展开到根级别
type VariableResolver struct {
	variables map[string]any
	sequence  *syncx.Uint64
	funcMap   template.FuncMap
}

// NewVariableResolver 创建变量解析器
func NewVariableResolver() *VariableResolver {
	v := &VariableResolver{
		variables: make(map[string]any),
		sequence:  syncx.NewUint64(0),
	}

	v.funcMap = template.FuncMap{
		// 环境变量
		"env": func(key string) string {
			return os.Getenv(key)
		},

		// 序列号
		"seq": func() uint64 {
			return v.sequence.Add(1)
		},

		// 时间函数
		"now": func() time.Time {
			return time.Now()
		},
		"unix": func() int64 {
			return time.Now().Unix()
		},
		"unixNano": func() int64 {
			return time.Now().UnixNano()
		},
		"timestamp": func() int64 {
			return time.Now().UnixMilli()
		},
		"date": func(format string) string {
			return time.Now().Format(format)
		},
		"dateAdd": func(duration string) time.Time {
			d, _ := time.ParseDuration(duration)
			return time.Now().Add(d)
		},

		// 随机函数
		"randomInt": func(min, max int) int {
			return random.RandInt(min, max)
		},
		"randomFloat": func(min, max float64) float64 {
			return random.RandFloat(min, max)
		},
		"randomString": func(length int) string {
			return random.RandString(length, random.LOWERCASE|random.CAPITAL|random.NUMBER)
		},
		"randomAlpha": func(length int) string {
			return random.RandString(length, random.LOWERCASE|random.CAPITAL)
		},
		"randomNumber": func(length int) string {
			return random.RandString(length, random.NUMBER)
		},
		"uuid": func() string {
			return random.UUID()
		},
		"randomBool": func() bool {
			return random.FRandBool()
		},
		"randomEmail": func() string {
			return fmt.Sprintf("user_%s@example.com", random.RandString(8, random.LOWERCASE|random.NUMBER))
		},
		"randomPhone": func() string {
			return fmt.Sprintf("1%s", random.RandString(10, random.NUMBER))
		},
		"randomIP": func() string {
			return fmt.Sprintf("%d.%d.%d.%d",
				random.RandInt(1, 255),
				random.RandInt(0, 255),
				random.RandInt(0, 255),
				random.RandInt(1, 255))
		},
		"randomUserAgent": func() string {
			agents := []string{
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
				"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
				"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
				"Mozilla/5.0 (iPhone; CPU iPhone OS 14_6 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.0 Mobile/15E148 Safari/604.1",
			}
			return agents[random.RandInt(0, len(agents)-1)]
		},

		// 字符串函数
		"upper": func(s string) string {
			return stringx.ToUpper(s)
		},
		"lower": func(s string) string {
			return stringx.ToLower(s)
		},
		"title": func(s string) string {
			return stringx.ToTitle(s)
		},
		"trim": func(s string) string {
			return strings.TrimSpace(s)
		},
		"substr": func(s string, start, length int) string {
			return stringx.SubString(s, start, length)
		},
		"replace": func(s, old, new string) string {
			return strings.ReplaceAll(s, old, new)
		},
		"split": func(s, sep string) []string {
			return strings.Split(s, sep)
		},
		"join": func(arr []string, sep string) string {
			return strings.Join(arr, sep)
		},
		"contains": func(s, substr string) bool {
			return strings.Contains(s, substr)
		},
		"hasPrefix": func(s, prefix string) bool {
			return strings.HasPrefix(s, prefix)
		},
		"hasSuffix": func(s, suffix string) bool {
			return strings.HasSuffix(s, suffix)
		},
		"repeat": func(s string, count int) string {
			return strings.Repeat(s, count)
		},
		"reverse": func(s string) string {
			return stringx.Reverse(s)
		},

		// 哈希/编码函数
		"md5": func(s string) string {
			h := md5.Sum([]byte(s))
			return hex.EncodeToString(h[:])
		},
		"sha256": func(s string) string {
			h := sha256.Sum256([]byte(s))
			return hex.EncodeToString(h[:])
		},
		"base64": func(s string) string {
			return base64.StdEncoding.EncodeToString([]byte(s))
		},
		"base64Decode": func(s string) string {
			b, _ := base64.StdEncoding.DecodeString(s)
			return string(b)
		},
		"urlEncode": func(s string) string {
			return url.QueryEscape(s)
		},
		"urlDecode": func(s string) string {
			decoded, _ := url.QueryUnescape(s)
			return decoded
		},
		"hexEncode": func(s string) string {
			return hex.EncodeToString([]byte(s))
		},
		"hexDecode": func(s string) string {
			b, _ := hex.DecodeString(s)
			return string(b)
		},

		// 数学函数
		"add": func(a, b int) int {
			return a + b
		},
		"sub": func(a, b int) int {
			return a - b
		},
		"mul": func(a, b int) int {
			return a * b
		},
		"div": func(a, b int) int {
			if b == 0 {
				return 0
			}
			return a / b
		},
		"mod": func(a, b int) int {
			if b == 0 {
				return 0
			}
			return a % b
		},
		"max": func(a, b int) int {
			return mathx.Max(a, b)
		},
		"min": func(a, b int) int {
			return mathx.Min(a, b)
		},
		"abs": func(n int) int {
			return mathx.Abs(n)
		},
		"ceil": func(x float64) float64 {
			return math.Ceil(x)
		},
		"floor": func(x float64) float64 {
			return math.Floor(x)
		},
		"round": func(x float64) float64 {
			return math.Round(x)
		},

		// 网络函数
		"localIP": func() string {
			ip, err := netx.GetPrivateIP()
			if err != nil {
				return "127.0.0.1"
			}
			return ip
		},
		"hostname": func() string {
			return osx.SafeGetHostName()
		},

		// 条件函数
		"ternary": func(condition bool, trueVal, falseVal any) any {
			if condition {
				return trueVal
			}
			return falseVal
		},
		"default": func(value, defaultValue any) any {
			if value == nil || value == "" {
				return defaultValue
			}
			return value
		},

		// 类型转换
		"toString": func(v any) string {
			return fmt.Sprintf("%v", v)
		},
		"toInt": func(s string) int {
			result, _ := convert.MustIntT[int](s, nil)
			return result
		},
		"toFloat": func(s string) float64 {
			result, _ := convert.MustIntT[float64](s, nil)
			return result
		},

		// 变量引用
		"var": func(key string) any {
			if val, ok := v.variables[key]; ok {
				return val
			}
			return ""
		},
	}

	return v
}

// SetVariables 批量设置变量
func (v *VariableResolver) SetVariables(vars map[string]any) {
	for k, val := range vars {
		v.variables[k] = val
	}
}

// SetVariable 设置单个变量
func (v *VariableResolver) SetVariable(key string, value any) {
	v.variables[key] = value
}

// VariableCount 返回当前变量数量
func (v *VariableResolver) VariableCount() int {
	return len(v.variables)
}

const (
	templateOpen  = "{{"
	templateClose = "}}"
)

// Resolve 解析输入中的模板语法
// 支持：{{.varname}} 用户变量、{{randomString 8}} 模板函数、
// {{.Env.PATH}} / {{.Time.Unix}} 特殊命名空间
func (v *VariableResolver) Resolve(input string) (string, error) {
	// 快速路径：不含模板语法直接返回
	if len(input) == 0 || !strings.Contains(input, templateOpen) || !strings.Contains(input, templateClose) {
		return input, nil
	}

	tmpl, err := template.New("resolver").Funcs(v.funcMap).Parse(input)
	if err != nil {
		return "", fmt.Errorf("解析模板失败: %w", err)
	}

	ctx := v.buildContext()
	// 用户变量展开到根级别，{{.user_id}} 可直接访问
	for k, val := range v.variables {
		if k != "Env" && k != "Variables" && k != "Seq" && k != "Time" {
			ctx[k] = val
		}
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, ctx); err != nil {
		return "", fmt.Errorf("执行模板失败: %w", err)
	}

	return buf.String(), nil
}

// buildContext 构建模板上下文
func (v *VariableResolver) buildContext() map[string]any {
	return map[string]any{
		"Env":       envMap(),
		"Variables": v.variables,
		"Seq":       v.sequence.Add(1),
		"Time": map[string]any{
			"Unix":      time.Now().Unix(),
			"Timestamp": time.Now().UnixMilli(),
			"Now":       time.Now(),
		},
	}
}

// envMap 获取环境变量映射
func envMap() map[string]string {
	env := make(map[string]string)
	for _, e := range os.Environ() {
		if i := strings.IndexByte(e, '='); i >= 0 {
			env[e[:i]] = e[i+1:]
		}
	}
	return env
}

// ResolveToInt 解析为整数
func (v *VariableResolver) ResolveToInt(input string) (int, error) {
	resolved, err := v.Resolve(input)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(resolved)
}

// ResolveToBool 解析为布尔值
func (v *VariableResolver) ResolveToBool(input string) (bool, error) {
	resolved, err := v.Resolve(input)
	if err != nil {
		return false, err
	}
	return strconv.ParseBool(resolved)
}
