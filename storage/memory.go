/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-06-24 10:10:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-07-11 10:03:21
 * @FilePath: \slayer\storage\memory.go
 * @Description: 内存存储层 - 高速存储，进程退出即丢失
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package storage

import (
	"github.com/kamalyes/go-logger"
	"github.com/kamalyes/go-toolbox/pkg/syncx"
)

// MemoryStorage 内存存储（按状态分类存储）
// 写入按到达顺序追加，查询从尾部向前取，最新的在前
type MemoryStorage struct {
	allDetails     []*RequestResult // 全部记录（按写入顺序）
	successDetails []*RequestResult // 成功记录
	failedDetails  []*RequestResult // 失败记录

	mu     *syncx.RWLock
	nodeID string
	logger logger.ILogger
	closed bool

	// 实时计数器（O(1) 查询）
	totalCount   *syncx.Uint64
	successCount *syncx.Uint64
	failedCount  *syncx.Uint64
}

// NewMemoryStorage 创建内存存储
func NewMemoryStorage(nodeID string, log logger.ILogger) *MemoryStorage {
	if log == nil {
		log = logger.NewLogger(nil)
	}
	log.Infof("💾 内存存储已启用 (节点: %s)", nodeID)

	return &MemoryStorage{
		allDetails:     make([]*RequestResult, 0, 10000),
		successDetails: make([]*RequestResult, 0, 8000),
		failedDetails:  make([]*RequestResult, 0, 1000),
		mu:             syncx.NewRWLock(),
		nodeID:         nodeID,
		logger:         log,
		totalCount:     syncx.NewUint64(0),
		successCount:   syncx.NewUint64(0),
		failedCount:    syncx.NewUint64(0),
	}
}

// Write 写入详情（实现 Interface）
func (m *MemoryStorage) Write(detail *RequestResult) {
	if detail == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}

	m.allDetails = append(m.allDetails, detail)
	m.totalCount.Add(1)

	if detail.Success {
		m.successDetails = append(m.successDetails, detail)
		m.successCount.Add(1)
	} else {
		m.failedDetails = append(m.failedDetails, detail)
		m.failedCount.Add(1)
	}

	// 每写入10000条输出一次统计
	count := m.totalCount.Load()
	if count%10000 == 0 {
		m.logger.Debugf("📊 内存已存储 %d 条记录 (成功:%d, 失败:%d)",
			count, m.successCount.Load(), m.failedCount.Load())
	}
}

// sourceFor 按状态选择存储切片
func (m *MemoryStorage) sourceFor(statusFilter StatusFilter) []*RequestResult {
	switch statusFilter {
	case StatusFilterSuccess:
		return m.successDetails
	case StatusFilterFailed:
		return m.failedDetails
	default:
		return m.allDetails
	}
}

// Query 分页查询详情，最新的在前（实现 Interface）
func (m *MemoryStorage) Query(offset, limit int, statusFilter StatusFilter, nodeID string) ([]*RequestResult, error) {
	// 单节点存储，过滤其他节点直接返回空
	if nodeID != "" && nodeID != m.nodeID {
		return []*RequestResult{}, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	source := m.sourceFor(statusFilter)
	if offset < 0 || limit <= 0 || offset >= len(source) {
		return []*RequestResult{}, nil
	}

	// 写入按顺序追加，从尾部向前读即为最新在前
	end := len(source) - offset
	start := end - limit
	if start < 0 {
		start = 0
	}

	results := make([]*RequestResult, 0, end-start)
	for i := end - 1; i >= start; i-- {
		results = append(results, source[i])
	}
	return results, nil
}

// Count 统计总数（O(1) 原子读取，实现 Interface）
func (m *MemoryStorage) Count(statusFilter StatusFilter, nodeID string) (int, error) {
	if nodeID != "" && nodeID != m.nodeID {
		return 0, nil
	}

	switch statusFilter {
	case StatusFilterSuccess:
		return int(m.successCount.Load()), nil
	case StatusFilterFailed:
		return int(m.failedCount.Load()), nil
	default:
		return int(m.totalCount.Load()), nil
	}
}

// Close 关闭存储（实现 Interface）
func (m *MemoryStorage) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	m.logger.Infof("✅ 内存存储已关闭 (总记录: %d 条, 成功:%d, 失败:%d)",
		m.totalCount.Load(), m.successCount.Load(), m.failedCount.Load())
	return nil
}

// GetNodeID 获取节点ID（实现 Interface）
func (m *MemoryStorage) GetNodeID() string {
	return m.nodeID
}

// GetStats 获取存储统计信息
func (m *MemoryStorage) GetStats() (total, success, failed uint64) {
	return m.totalCount.Load(), m.successCount.Load(), m.failedCount.Load()
}
