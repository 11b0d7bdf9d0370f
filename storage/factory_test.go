/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-06-24 16:30:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-07-11 17:22:18
 * @FilePath: \slayer\storage\factory_test.go
 * @Description: 存储工厂与存储后端测试
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package storage

import (
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/kamalyes/go-logger"
	"github.com/stretchr/testify/assert"
)

func TestStorageFactory(t *testing.T) {
	log := logger.NewLogger(nil)
	factory := NewStorageFactory(log)

	t.Run("GetSupportedTypes", func(t *testing.T) {
		types := factory.GetSupportedTypes()
		assert.Equal(t, 3, len(types))
		assert.Contains(t, types, StorageModeMemory)
		assert.Contains(t, types, StorageModeSQLite)
		assert.Contains(t, types, StorageModeBadger)
	})

	t.Run("ValidateConfig", func(t *testing.T) {
		// nil 配置
		err := factory.ValidateConfig(nil)
		assert.Error(t, err)

		// 缺少 NodeID
		err = factory.ValidateConfig(&StorageConfig{
			Type: StorageModeMemory,
		})
		assert.Error(t, err)

		// SQLite 缺少 Path
		err = factory.ValidateConfig(&StorageConfig{
			Type:   StorageModeSQLite,
			NodeID: "test",
		})
		assert.Error(t, err)

		// 正确的 Memory 配置
		err = factory.ValidateConfig(&StorageConfig{
			Type:   StorageModeMemory,
			NodeID: "test",
		})
		assert.NoError(t, err)

		// 正确的 SQLite 配置
		err = factory.ValidateConfig(&StorageConfig{
			Type:   StorageModeSQLite,
			NodeID: "test",
			Path:   "./test.db",
		})
		assert.NoError(t, err)
	})

	t.Run("CreateMemoryStorage", func(t *testing.T) {
		storage, err := factory.CreateStorage(&StorageConfig{
			Type:   StorageModeMemory,
			NodeID: "test-memory",
		})

		assert.NoError(t, err)
		assert.NotNil(t, storage)
		defer storage.Close()

		// 写入测试数据
		detail := &RequestResult{
			ID:        "test-1",
			NodeID:    "test-memory",
			Success:   true,
			Timestamp: time.Now(),
		}
		storage.Write(detail)

		// 查询
		results, err := storage.Query(0, 10, StatusFilterAll, "")
		assert.NoError(t, err)
		assert.Equal(t, 1, len(results))

		// 统计
		count, err := storage.Count(StatusFilterAll, "")
		assert.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("CreateSQLiteStorage", func(t *testing.T) {
		dbPath := "./test-storage.db"
		defer os.Remove(dbPath)

		storage, err := factory.CreateStorage(&StorageConfig{
			Type:   StorageModeSQLite,
			NodeID: "test-sqlite",
			Path:   dbPath,
		})

		assert.NoError(t, err)
		assert.NotNil(t, storage)
		defer storage.Close()

		// 写入测试数据
		detail := &RequestResult{
			ID:        "test-2",
			NodeID:    "test-sqlite",
			Success:   false,
			ErrorMsg:  "connection reset",
			Timestamp: time.Now(),
		}
		storage.Write(detail)

		// 等待异步写入
		time.Sleep(2 * time.Second)

		// 查询
		results, err := storage.Query(0, 10, StatusFilterAll, "")
		assert.NoError(t, err)
		assert.GreaterOrEqual(t, len(results), 1)
	})

	t.Run("CreateBadgerStorage", func(t *testing.T) {
		dbPath := "./test-badger-data"
		defer os.RemoveAll(dbPath)

		storage, err := factory.CreateStorage(&StorageConfig{
			Type:   StorageModeBadger,
			NodeID: "test-badger",
			Path:   dbPath,
		})

		assert.NoError(t, err)
		assert.NotNil(t, storage)
		defer storage.Close()

		// 写入测试数据
		detail := &RequestResult{
			ID:        "test-3",
			NodeID:    "test-badger",
			Success:   true,
			Timestamp: time.Now(),
		}
		storage.Write(detail)

		// 等待异步写入
		time.Sleep(2 * time.Second)

		// 查询
		results, err := storage.Query(0, 10, StatusFilterAll, "")
		assert.NoError(t, err)
		assert.GreaterOrEqual(t, len(results), 1)

		// 统计
		count, err := storage.Count(StatusFilterSuccess, "")
		assert.NoError(t, err)
		assert.GreaterOrEqual(t, count, 1)
	})

	t.Run("UnsupportedStorageType", func(t *testing.T) {
		storage, err := factory.CreateStorage(&StorageConfig{
			Type:   "redis",
			NodeID: "test",
		})

		assert.Error(t, err)
		assert.Nil(t, storage)
		assert.Contains(t, err.Error(), "不支持的存储类型")
	})
}

func TestStorageFilter(t *testing.T) {
	log := logger.NewLogger(nil)
	factory := NewStorageFactory(log)

	// 创建 BadgerDB 存储用于过滤测试
	dbPath := "./test-filter-badger"
	defer os.RemoveAll(dbPath)

	storage, err := factory.CreateStorage(&StorageConfig{
		Type:   StorageModeBadger,
		NodeID: "filter-test",
		Path:   dbPath,
	})
	assert.NoError(t, err)
	defer storage.Close()

	// 写入测试数据（键包含节点ID，时间戳区分顺序）
	base := time.Now()
	testData := []*RequestResult{
		{ID: "1", NodeID: "node-1", Success: true, Timestamp: base},
		{ID: "2", NodeID: "node-1", Success: false, Timestamp: base.Add(time.Millisecond)},
		{ID: "3", NodeID: "node-2", Success: true, Timestamp: base.Add(2 * time.Millisecond)},
		{ID: "4", NodeID: "node-2", Success: false, Timestamp: base.Add(3 * time.Millisecond)},
	}

	for _, data := range testData {
		storage.Write(data)
	}

	// 等待写入
	time.Sleep(2 * time.Second)

	t.Run("FilterByNodeID", func(t *testing.T) {
		count, err := storage.Count(StatusFilterAll, "node-1")
		assert.NoError(t, err)
		assert.Equal(t, 2, count)
	})

	t.Run("FilterByStatus", func(t *testing.T) {
		count, err := storage.Count(StatusFilterSuccess, "")
		assert.NoError(t, err)
		assert.Equal(t, 2, count)

		count, err = storage.Count(StatusFilterFailed, "")
		assert.NoError(t, err)
		assert.Equal(t, 2, count)
	})

	t.Run("FilterByNodeAndStatus", func(t *testing.T) {
		count, err := storage.Count(StatusFilterFailed, "node-2")
		assert.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("QueryByNodeID", func(t *testing.T) {
		results, err := storage.Query(0, 10, StatusFilterAll, "node-2")
		assert.NoError(t, err)
		assert.Equal(t, 2, len(results))
		for _, r := range results {
			assert.Equal(t, "node-2", r.NodeID)
		}
	})

	t.Run("QueryNewestFirst", func(t *testing.T) {
		results, err := storage.Query(0, 10, StatusFilterAll, "node-1")
		assert.NoError(t, err)
		assert.Equal(t, 2, len(results))
		// 按时间戳键倒序，最新的在前
		assert.Equal(t, "2", results[0].ID)
		assert.Equal(t, "1", results[1].ID)
	})
}

func TestMemoryStorageOrdering(t *testing.T) {
	log := logger.NewLogger(nil)
	storage := NewMemoryStorage("order-test", log)
	defer storage.Close()

	// 按顺序写入5条记录
	for i := 0; i < 5; i++ {
		storage.Write(&RequestResult{
			ID:        fmt.Sprintf("r-%d", i),
			NodeID:    "order-test",
			Success:   true,
			Timestamp: time.Now(),
		})
	}

	// 第一页：最新的在前
	results, err := storage.Query(0, 3, StatusFilterAll, "")
	assert.NoError(t, err)
	assert.Equal(t, 3, len(results))
	assert.Equal(t, "r-4", results[0].ID)
	assert.Equal(t, "r-3", results[1].ID)
	assert.Equal(t, "r-2", results[2].ID)

	// 第二页
	results, err = storage.Query(3, 3, StatusFilterAll, "")
	assert.NoError(t, err)
	assert.Equal(t, 2, len(results))
	assert.Equal(t, "r-1", results[0].ID)
	assert.Equal(t, "r-0", results[1].ID)

	// 越界偏移
	results, err = storage.Query(10, 3, StatusFilterAll, "")
	assert.NoError(t, err)
	assert.Equal(t, 0, len(results))

	// 非法 limit
	results, err = storage.Query(0, 0, StatusFilterAll, "")
	assert.NoError(t, err)
	assert.Equal(t, 0, len(results))
}

func TestMemoryStorageNodeFilter(t *testing.T) {
	log := logger.NewLogger(nil)
	storage := NewMemoryStorage("node-a", log)
	defer storage.Close()

	storage.Write(&RequestResult{ID: "r-1", NodeID: "node-a", Success: true, Timestamp: time.Now()})
	storage.Write(&RequestResult{ID: "r-2", NodeID: "node-a", Success: false, Timestamp: time.Now()})

	// 本节点查询
	results, err := storage.Query(0, 10, StatusFilterAll, "node-a")
	assert.NoError(t, err)
	assert.Equal(t, 2, len(results))

	// 其他节点查询返回空
	results, err = storage.Query(0, 10, StatusFilterAll, "node-b")
	assert.NoError(t, err)
	assert.Equal(t, 0, len(results))

	count, err := storage.Count(StatusFilterAll, "node-b")
	assert.NoError(t, err)
	assert.Equal(t, 0, count)

	// 状态过滤
	count, err = storage.Count(StatusFilterFailed, "")
	assert.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestParseStatusFilter(t *testing.T) {
	// 测试状态过滤器解析 - 字符串与枚举互转
	tests := []struct {
		name   string
		input  string
		expect StatusFilter
	}{
		{"成功过滤器", "success", StatusFilterSuccess},
		{"失败过滤器", "failed", StatusFilterFailed},
		{"全部过滤器", "all", StatusFilterAll},
		{"空字符串默认全部", "", StatusFilterAll},
		{"未知值默认全部", "bogus", StatusFilterAll},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, ParseStatusFilter(tt.input))
		})
	}

	assert.Equal(t, "success", StatusFilterSuccess.String())
	assert.Equal(t, "failed", StatusFilterFailed.String())
	assert.Equal(t, "all", StatusFilterAll.String())
}
