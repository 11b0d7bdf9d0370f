/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-06-24 15:05:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-07-11 16:12:05
 * @FilePath: \slayer\storage\factory.go
 * @Description: 存储工厂 - 统一创建不同类型的存储适配器
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package storage

import (
	"fmt"

	"github.com/kamalyes/go-logger"
)

// StorageConfig 存储配置
type StorageConfig struct {
	Type   StorageMode // 存储类型
	Path   string      // 存储路径（sqlite/badger）
	NodeID string      // 节点ID
}

// StorageFactory 存储工厂
type StorageFactory struct {
	logger logger.ILogger
}

// NewStorageFactory 创建存储工厂
func NewStorageFactory(log logger.ILogger) *StorageFactory {
	if log == nil {
		log = logger.NewLogger(nil)
	}
	return &StorageFactory{
		logger: log,
	}
}

// CreateStorage 创建存储实例
func (f *StorageFactory) CreateStorage(config *StorageConfig) (Interface, error) {
	if err := f.ValidateConfig(config); err != nil {
		return nil, err
	}

	f.logger.Infof("📦 创建存储实例: type=%s, nodeID=%s, path=%s",
		config.Type, config.NodeID, config.Path)

	switch config.Type {
	case StorageModeMemory:
		return f.createMemoryStorage(config)

	case StorageModeSQLite:
		return f.createSQLiteStorage(config)

	case StorageModeBadger:
		return f.createBadgerStorage(config)

	default:
		return nil, fmt.Errorf("不支持的存储类型: %s (支持: memory, sqlite, badger)", config.Type)
	}
}

// createMemoryStorage 创建内存存储
func (f *StorageFactory) createMemoryStorage(config *StorageConfig) (Interface, error) {
	storage := NewMemoryStorage(config.NodeID, f.logger)

	f.logger.Infof("✅ 内存存储创建成功 (节点: %s)", config.NodeID)
	return storage, nil
}

// createSQLiteStorage 创建 SQLite 存储
func (f *StorageFactory) createSQLiteStorage(config *StorageConfig) (Interface, error) {
	f.logger.Infof("🗄️  创建 SQLite 存储: %s", config.Path)

	storage, err := NewDetailStorage(config.Path, config.NodeID, f.logger)
	if err != nil {
		return nil, fmt.Errorf("创建 SQLite 存储失败: %w", err)
	}

	f.logger.Infof("✅ SQLite 存储创建成功 (节点: %s, 路径: %s)", config.NodeID, config.Path)
	return storage, nil
}

// createBadgerStorage 创建 BadgerDB 存储
func (f *StorageFactory) createBadgerStorage(config *StorageConfig) (Interface, error) {
	f.logger.Infof("🗄️  创建 BadgerDB 存储: %s", config.Path)

	storage, err := NewBadgerStorage(config.Path, config.NodeID, f.logger)
	if err != nil {
		return nil, fmt.Errorf("创建 BadgerDB 存储失败: %w", err)
	}

	f.logger.Infof("✅ BadgerDB 存储创建成功 (节点: %s, 路径: %s)", config.NodeID, config.Path)
	return storage, nil
}

// ValidateConfig 验证存储配置
func (f *StorageFactory) ValidateConfig(config *StorageConfig) error {
	if config == nil {
		return fmt.Errorf("存储配置不能为空")
	}

	if config.NodeID == "" {
		return fmt.Errorf("节点ID不能为空")
	}

	switch config.Type {
	case StorageModeMemory:
		// 内存存储不需要额外验证
		return nil

	case StorageModeSQLite, StorageModeBadger:
		if config.Path == "" {
			return fmt.Errorf("%s 存储需要指定 path 参数", config.Type)
		}
		return nil

	default:
		return fmt.Errorf("不支持的存储类型: %s", config.Type)
	}
}

// GetSupportedTypes 返回支持的存储类型列表
func (f *StorageFactory) GetSupportedTypes() []StorageMode {
	return []StorageMode{
		StorageModeMemory,
		StorageModeSQLite,
		StorageModeBadger,
	}
}
