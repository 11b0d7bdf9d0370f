/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-06-25 09:40:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-07-13 11:05:49
 * @FilePath: \slayer\config\loader.go
 * @Description: 配置加载器
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kamalyes/go-logger"
	"gopkg.in/yaml.v3"
)

// Loader 配置加载器
type Loader struct {
	varResolver *VariableResolver
	logger      logger.ILogger
}

// NewLoader 创建配置加载器
func NewLoader(log logger.ILogger) *Loader {
	if log == nil {
		log = logger.NewLogger(nil)
	}
	return &Loader{
		varResolver: NewVariableResolver(),
		logger:      log,
	}
}

// LoadFromFile 从文件加载配置
func (l *Loader) LoadFromFile(path string) (*EngineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	// filepath.Ext 返回 ".yaml" / ".yml" / ".json"，去掉前缀点号
	ext := filepath.Ext(path)
	if len(ext) > 0 {
		ext = ext[1:]
	}
	return l.LoadFromBytes(data, ext)
}

// LoadFromBytes 从字节数据加载配置（支持 YAML 和 JSON）
func (l *Loader) LoadFromBytes(data []byte, format string) (*EngineConfig, error) {
	config := DefaultEngineConfig()

	switch format {
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("解析YAML配置失败: %w", err)
		}
	case "json":
		if err := json.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("解析JSON配置失败: %w", err)
		}
	default:
		return nil, fmt.Errorf("不支持的配置格式: %s (仅支持yaml/yml/json)", format)
	}

	return l.processConfig(config)
}

// processConfig 处理配置（变量注入、归一化、验证）
func (l *Loader) processConfig(config *EngineConfig) (*EngineConfig, error) {
	// 注入变量解析器
	l.varResolver.SetVariables(config.Variables)
	config.VarResolver = l.varResolver

	config.Normalize()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}

	if len(config.Patterns) > 0 {
		l.logger.Infof("📋 配置了 %d 个流量阶段:", len(config.Patterns))
		for i := range config.Patterns {
			p := &config.Patterns[i]
			l.logger.Infof("  [%d] %s: %s %ds @ %d RPS", i+1, p.Name, p.Type, p.DurationSeconds, p.TargetRPS)
		}
	} else {
		l.logger.Infof("📋 目标: %s %s (%.0f RPS, %ds, 并发 %d)",
			config.Method, config.TargetURL, config.TargetRPS, config.DurationSeconds, config.Concurrency)
	}

	return config, nil
}

// GetVariableResolver 获取变量解析器
func (l *Loader) GetVariableResolver() *VariableResolver {
	return l.varResolver
}
