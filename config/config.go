/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-06-25 09:12:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-07-13 10:40:27
 * @FilePath: \slayer\config\config.go
 * @Description: 压测引擎配置定义
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/sudoinstallopsecc/slayer/metrics"
	"github.com/sudoinstallopsecc/slayer/pattern"
	"github.com/sudoinstallopsecc/slayer/protocol"
	"github.com/sudoinstallopsecc/slayer/throttle"
	"github.com/sudoinstallopsecc/slayer/types"
)

// StorageSection 请求详情存储配置
type StorageSection struct {
	Mode types.StorageMode `json:"mode" yaml:"mode"`                     // memory/sqlite/badger
	Path string            `json:"path,omitempty" yaml:"path,omitempty"` // 存储路径（sqlite/badger 必填）
}

// EngineConfig 压测引擎完整配置
// 单模式：target_rps + duration_seconds [+ pattern]
// 多阶段：patterns 列表按顺序执行，忽略顶层 target_rps
type EngineConfig struct {
	// 目标
	TargetURL string            `json:"target_url" yaml:"target_url"`
	Method    string            `json:"method,omitempty" yaml:"method,omitempty"`
	Headers   map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Body      string            `json:"body,omitempty" yaml:"body,omitempty"`
	Timeout   types.Duration    `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// 负载参数
	TargetRPS       float64 `json:"target_rps" yaml:"target_rps"`
	DurationSeconds int     `json:"duration_seconds" yaml:"duration_seconds"`
	Concurrency     int     `json:"concurrency" yaml:"concurrency"`

	// 流量模式
	Pattern  *pattern.RequestPattern  `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Patterns []pattern.RequestPattern `json:"patterns,omitempty" yaml:"patterns,omitempty"`

	// 自适应限流
	Throttle *throttle.Config `json:"throttle,omitempty" yaml:"throttle,omitempty"`

	// SLO 规则
	SLOs []metrics.SLORule `json:"slos,omitempty" yaml:"slos,omitempty"`

	// 响应验证规则
	Verify []VerifyConfig `json:"verify,omitempty" yaml:"verify,omitempty"`

	// HTTP 客户端选项
	Client *protocol.ClientOptions `json:"client,omitempty" yaml:"client,omitempty"`

	// 请求详情存储
	Storage *StorageSection `json:"storage,omitempty" yaml:"storage,omitempty"`

	// 变量池（载荷模板函数可引用）
	Variables map[string]any `json:"variables,omitempty" yaml:"variables,omitempty"`

	// 变量解析器（加载时注入，不参与序列化）
	VarResolver *VariableResolver `json:"-" yaml:"-"`
}

// DefaultEngineConfig 返回带默认值的配置
func DefaultEngineConfig() *EngineConfig {
	return &EngineConfig{
		Method:          "GET",
		TargetRPS:       10,
		DurationSeconds: 60,
		Concurrency:     10,
		Timeout:         types.Duration(30 * time.Second),
		Headers:         make(map[string]string),
		Variables:       make(map[string]any),
		Storage: &StorageSection{
			Mode: types.StorageModeMemory,
		},
	}
}

// Normalize 填充零值字段，返回自身便于链式调用
func (c *EngineConfig) Normalize() *EngineConfig {
	c.Method = strings.ToUpper(strings.TrimSpace(c.Method))
	if c.Method == "" {
		c.Method = "GET"
	}
	if c.Timeout <= 0 {
		c.Timeout = types.Duration(30 * time.Second)
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 10
	}
	if c.Headers == nil {
		c.Headers = make(map[string]string)
	}
	if c.Storage == nil {
		c.Storage = &StorageSection{Mode: types.StorageModeMemory}
	}
	if c.Storage.Mode == "" {
		c.Storage.Mode = types.StorageModeMemory
	}
	if c.Throttle != nil {
		c.Throttle.Normalize()
	}
	return c
}

// Validate 验证配置
func (c *EngineConfig) Validate() error {
	if c.TargetURL == "" {
		return fmt.Errorf("target_url 不能为空")
	}

	if !strings.HasPrefix(c.TargetURL, "http://") && !strings.HasPrefix(c.TargetURL, "https://") {
		return fmt.Errorf("target_url 必须以 http:// 或 https:// 开头: %s", c.TargetURL)
	}

	if c.Concurrency <= 0 {
		return fmt.Errorf("并发数必须大于0")
	}

	// 多阶段模式：校验每个阶段
	if len(c.Patterns) > 0 {
		for i := range c.Patterns {
			if err := c.Patterns[i].Validate(); err != nil {
				return fmt.Errorf("第%d个流量模式无效: %w", i+1, err)
			}
		}
		return nil
	}

	// 单模式：target_rps 与 duration_seconds 必填（pattern 块可覆盖）
	if c.Pattern == nil {
		if c.TargetRPS <= 0 {
			return fmt.Errorf("target_rps 必须大于0")
		}
		if c.DurationSeconds <= 0 {
			return fmt.Errorf("duration_seconds 必须大于0")
		}
		return nil
	}

	c.inheritPatternDefaults(c.Pattern)
	if err := c.Pattern.Validate(); err != nil {
		return fmt.Errorf("流量模式无效: %w", err)
	}
	return nil
}

// inheritPatternDefaults 用顶层负载参数填充模式的缺省字段
func (c *EngineConfig) inheritPatternDefaults(p *pattern.RequestPattern) {
	if p.Type == "" {
		p.Type = pattern.TypeConstant
	}
	if p.TargetRPS <= 0 {
		p.TargetRPS = int(c.TargetRPS)
	}
	if p.DurationSeconds <= 0 {
		p.DurationSeconds = c.DurationSeconds
	}
	if p.Name == "" {
		p.Name = string(p.Type)
	}
}

// BuildPatterns 归一化出待执行的模式序列
// 优先级：patterns 列表 > pattern 块 > 顶层 target_rps/duration_seconds 合成恒定模式
func (c *EngineConfig) BuildPatterns() ([]*pattern.RequestPattern, error) {
	var result []*pattern.RequestPattern

	switch {
	case len(c.Patterns) > 0:
		for i := range c.Patterns {
			p := &c.Patterns[i]
			c.inheritPatternDefaults(p)
			result = append(result, p)
		}

	case c.Pattern != nil:
		c.inheritPatternDefaults(c.Pattern)
		result = append(result, c.Pattern)

	default:
		result = append(result, &pattern.RequestPattern{
			Name:            "constant",
			Type:            pattern.TypeConstant,
			TargetRPS:       int(c.TargetRPS),
			DurationSeconds: c.DurationSeconds,
		})
	}

	for _, p := range result {
		if p.Resolver == nil && c.VarResolver != nil {
			p.Resolver = c.VarResolver
		}
		if err := p.Validate(); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// TotalDuration 返回全部阶段的总时长
func (c *EngineConfig) TotalDuration() time.Duration {
	if len(c.Patterns) > 0 {
		var total time.Duration
		for i := range c.Patterns {
			total += c.Patterns[i].Duration()
		}
		return total
	}
	if c.Pattern != nil && c.Pattern.DurationSeconds > 0 {
		return c.Pattern.Duration()
	}
	return time.Duration(c.DurationSeconds) * time.Second
}

// ThrottleConfig 返回限流配置（未配置时给默认值）
func (c *EngineConfig) ThrottleConfig() *throttle.Config {
	if c.Throttle == nil {
		cfg := throttle.DefaultConfig()
		// 顶层 target_rps 作为限流初始参考
		if c.TargetRPS > 0 {
			cfg.InitialRPS = c.TargetRPS
			if cfg.MaxRPS < c.TargetRPS {
				cfg.MaxRPS = c.TargetRPS
			}
		}
		return cfg
	}
	return c.Throttle.Normalize()
}
