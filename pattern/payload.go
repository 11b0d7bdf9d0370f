/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-06-23 14:20:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-07-30 09:55:12
 * @FilePath: \slayer\pattern\payload.go
 * @Description: 请求方法加权选择与载荷模板填充
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package pattern

import (
	"strings"

	"github.com/kamalyes/go-toolbox/pkg/random"
)

// methodPicker HTTP方法加权选择器
type methodPicker struct {
	methods []string
	weights []float64
	total   float64
}

// newMethodPicker 创建方法选择器，缺省方法为 GET，缺省权重为均匀分布
func newMethodPicker(p *RequestPattern) *methodPicker {
	methods := p.Methods
	if len(methods) == 0 {
		methods = []string{"GET"}
	}

	weights := p.MethodWeights
	if len(weights) != len(methods) {
		weights = make([]float64, len(methods))
		for i := range weights {
			weights[i] = 1.0
		}
	}

	var total float64
	for _, w := range weights {
		total += w
	}

	return &methodPicker{methods: methods, weights: weights, total: total}
}

// Pick 按权重随机选择一个方法
func (m *methodPicker) Pick() string {
	if len(m.methods) == 1 {
		return m.methods[0]
	}
	if m.total <= 0 {
		return m.methods[random.RandInt(0, len(m.methods)-1)]
	}

	r := random.RandFloat(0, m.total)
	for i, w := range m.weights {
		r -= w
		if r <= 0 {
			return m.methods[i]
		}
	}
	return m.methods[len(m.methods)-1]
}

// payloadFiller 载荷模板填充器
// 随机选择一个模板，${var} 占位符从变量池随机取值，
// 取值内含 {{fn}} 模板时交给 Resolver 解析动态值
type payloadFiller struct {
	templates []map[string]any
	variables map[string][]string
	resolver  Resolver
}

// newPayloadFiller 创建载荷填充器
func newPayloadFiller(p *RequestPattern) *payloadFiller {
	return &payloadFiller{
		templates: p.PayloadTemplates,
		variables: p.PayloadVariables,
		resolver:  p.Resolver,
	}
}

// Fill 生成一份载荷，没有模板时返回 nil
func (f *payloadFiller) Fill() map[string]any {
	if len(f.templates) == 0 {
		return nil
	}

	template := f.templates[random.RandInt(0, len(f.templates)-1)]
	payload := make(map[string]any, len(template))

	for key, value := range template {
		payload[key] = f.fillValue(value)
	}
	return payload
}

// fillValue 填充单个模板值
func (f *payloadFiller) fillValue(value any) any {
	s, ok := value.(string)
	if !ok {
		return value
	}

	// ${var} 整值占位符：从变量池随机取
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		name := s[2 : len(s)-1]
		if pool, exists := f.variables[name]; exists && len(pool) > 0 {
			s = pool[random.RandInt(0, len(pool)-1)]
		}
	}

	// 动态值模板 {{fn}}
	if f.resolver != nil && strings.Contains(s, "{{") {
		if resolved, err := f.resolver.Resolve(s); err == nil {
			s = resolved
		}
	}

	return s
}
