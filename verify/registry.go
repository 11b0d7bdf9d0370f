/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-06-22 10:05:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-07-10 10:14:56
 * @FilePath: \slayer\verify\registry.go
 * @Description: 验证器注册中心
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package verify

import (
	"fmt"

	"github.com/kamalyes/go-logger"
	"github.com/kamalyes/go-toolbox/pkg/syncx"
	"github.com/sudoinstallopsecc/slayer/config"
	"github.com/sudoinstallopsecc/slayer/types"
)

// VerifierFactory 验证器工厂函数
type VerifierFactory func(cfg *config.VerifyConfig) types.Verifier

// Registry 验证器注册中心
// 每个实例独立持有注册表，内置验证器在构造时注册
type Registry struct {
	mu        *syncx.RWLock
	logger    logger.ILogger
	factories map[types.VerifyType]VerifierFactory
}

// NewRegistry 创建注册中心并注册内置验证器
func NewRegistry(log logger.ILogger) *Registry {
	if log == nil {
		log = logger.NewLogger(nil)
	}

	r := &Registry{
		mu:        syncx.NewRWLock(),
		logger:    log,
		factories: make(map[types.VerifyType]VerifierFactory),
	}
	r.registerBuiltins()
	return r
}

// registerBuiltins 注册所有内置验证类型
func (r *Registry) registerBuiltins() {
	builtinTypes := []types.VerifyType{
		types.VerifyTypeStatusCode,
		types.VerifyTypeJSONPath,
		types.VerifyTypeContains,
		types.VerifyTypeRegex,
		types.VerifyTypeJSONValid,
		types.VerifyTypeHeader,
		types.VerifyTypeResponseTime,
	}

	// 内置类型统一由 HTTPVerifier 实现
	factory := func(cfg *config.VerifyConfig) types.Verifier {
		return NewHTTPVerifier(cfg)
	}

	for _, vType := range builtinTypes {
		r.Register(vType, factory)
	}
}

// Register 注册验证器工厂
func (r *Registry) Register(vType types.VerifyType, factory VerifierFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[vType] = factory
}

// Get 获取验证器（通过工厂创建）
func (r *Registry) Get(vType types.VerifyType, cfg *config.VerifyConfig) (types.Verifier, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[vType]
	if !ok {
		return nil, fmt.Errorf("验证器不存在: %s", vType)
	}
	return factory(cfg), nil
}

// Run 按配置逐个执行验证，全部通过返回 true
// 任一验证失败立即返回；验证结果已追加到 resp.Verifications
func (r *Registry) Run(resp *types.Response, cfgs []config.VerifyConfig) (bool, error) {
	for i := range cfgs {
		cfg := &cfgs[i]

		verifier, err := r.Get(cfg.Type, cfg)
		if err != nil {
			r.logger.Warnf("🔍 未知验证类型: %s", cfg.Type)
			return false, err
		}

		ok, err := verifier.Verify(resp)
		if !ok {
			if err != nil {
				return false, fmt.Errorf("响应验证失败: %w", err)
			}
			return false, fmt.Errorf("响应验证失败")
		}
	}
	return true, nil
}
