/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-06-24 14:20:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-07-11 15:49:52
 * @FilePath: \slayer\storage\badger.go
 * @Description: BadgerDB 存储适配器 - 高吞吐 LSM-Tree 存储
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package storage

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/kamalyes/go-logger"
	"github.com/kamalyes/go-toolbox/pkg/syncx"
)

// BadgerStorage BadgerDB 存储（实现 Interface）
type BadgerStorage struct {
	db        *badger.DB
	writeChan chan *RequestResult
	batchSize int
	done      chan struct{}
	wg        sync.WaitGroup
	mu        sync.Mutex
	nodeID    string
	logger    logger.ILogger
	closed    bool

	// 实时计数器
	totalCount   *syncx.Uint64
	successCount *syncx.Uint64
	failedCount  *syncx.Uint64
}

// NewBadgerStorage 创建 BadgerDB 存储
func NewBadgerStorage(dbPath, nodeID string, log logger.ILogger) (*BadgerStorage, error) {
	if log == nil {
		log = logger.NewLogger(nil)
	}
	log.Infof("🗄️  初始化 BadgerDB 存储: %s (节点: %s)", dbPath, nodeID)

	opts := badger.DefaultOptions(dbPath).
		WithLoggingLevel(badger.WARNING). // 减少日志
		WithNumVersionsToKeep(1).         // 只保留最新版本
		WithCompactL0OnClose(true).       // 关闭时压缩
		WithValueThreshold(256).          // 大值单独存储
		WithValueLogFileSize(64 << 20).   // 64MB value log
		WithBlockCacheSize(64 << 20).     // 64MB block cache
		WithIndexCacheSize(32 << 20).     // 32MB index cache
		WithSyncWrites(false).            // 异步写入（性能优先）
		WithDetectConflicts(false)        // 单写者，禁用冲突检测

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("打开 BadgerDB 失败: %w", err)
	}

	log.Infof("✅ BadgerDB 已启动 (节点: %s, 路径: %s)", nodeID, dbPath)

	storage := &BadgerStorage{
		db:           db,
		writeChan:    make(chan *RequestResult, 10000), // 1万缓冲
		batchSize:    500,                              // 每批 500 条
		done:         make(chan struct{}),
		nodeID:       nodeID,
		logger:       log,
		totalCount:   syncx.NewUint64(0),
		successCount: syncx.NewUint64(0),
		failedCount:  syncx.NewUint64(0),
	}

	storage.wg.Add(1)
	go storage.batchWriter()

	storage.wg.Add(1)
	go storage.runGC()

	return storage, nil
}

// Write 异步写入请求详情（实现 Interface）
func (s *BadgerStorage) Write(detail *RequestResult) {
	if detail == nil {
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	select {
	case s.writeChan <- detail:
		// 成功入队
	default:
		// 队列满，同步写入避免丢数据
		s.logger.Warnf("⚠️  写入队列已满，同步写入: %s", detail.ID)
		if err := s.writeOne(detail); err != nil {
			s.logger.Errorf("❌ 同步写入失败: %v", err)
		}
	}
}

// batchWriter 批量写入协程
func (s *BadgerStorage) batchWriter() {
	defer s.wg.Done()

	batch := make([]*RequestResult, 0, s.batchSize)
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}

		if err := s.writeBatch(batch); err != nil {
			s.logger.Errorf("❌ BadgerDB 批量写入失败: %v", err)
		}

		batch = batch[:0] // 清空但保留容量
	}

	for {
		select {
		case detail, ok := <-s.writeChan:
			if !ok {
				flush()
				return
			}

			batch = append(batch, detail)
			if len(batch) >= s.batchSize {
				flush()
			}

		case <-ticker.C:
			flush()
		}
	}
}

// writeOne 同步写入单条
func (s *BadgerStorage) writeOne(detail *RequestResult) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		value, err := json.Marshal(detail)
		if err != nil {
			return err
		}
		return txn.Set(s.makeKey(detail), value)
	})
	if err == nil {
		s.countWrite(detail)
	}
	return err
}

// writeBatch 批量写入
func (s *BadgerStorage) writeBatch(batch []*RequestResult) error {
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for _, detail := range batch {
		value, err := json.Marshal(detail)
		if err != nil {
			s.logger.Errorf("❌ 序列化失败: %v", err)
			continue
		}

		if err := wb.Set(s.makeKey(detail), value); err != nil {
			s.logger.Errorf("❌ 写入失败: %v", err)
			continue
		}
		s.countWrite(detail)
	}

	return wb.Flush()
}

// countWrite 更新计数器
func (s *BadgerStorage) countWrite(detail *RequestResult) {
	s.totalCount.Add(1)
	if detail.Success {
		s.successCount.Add(1)
	} else {
		s.failedCount.Add(1)
	}
}

// makeKey 生成存储键
// 格式: req:{nodeID}:{unixnano:019d}:{id}，零填充保证按时间字典序
func (s *BadgerStorage) makeKey(detail *RequestResult) []byte {
	return []byte(fmt.Sprintf("req:%s:%019d:%s",
		detail.NodeID,
		detail.Timestamp.UnixNano(),
		detail.ID,
	))
}

// makePrefix 生成查询前缀
func (s *BadgerStorage) makePrefix(nodeID string) string {
	if nodeID == "" {
		return "req:"
	}
	return fmt.Sprintf("req:%s:", nodeID)
}

// matchFilter 匹配状态过滤器
func (s *BadgerStorage) matchFilter(detail *RequestResult, filter StatusFilter) bool {
	switch filter {
	case StatusFilterSuccess:
		return detail.Success
	case StatusFilterFailed:
		return !detail.Success
	default:
		return true
	}
}

// Query 分页查询请求详情，最新的在前（实现 Interface）
func (s *BadgerStorage) Query(offset, limit int, statusFilter StatusFilter, nodeID string) ([]*RequestResult, error) {
	results := make([]*RequestResult, 0, limit)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchSize = limit * 2
		opts.Reverse = true // 倒序（最新的在前）

		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := s.makePrefix(nodeID)
		skipped := 0

		// 倒序迭代从前缀区间的末尾开始
		for it.Seek([]byte(prefix + "\xff")); it.ValidForPrefix([]byte(prefix)); it.Next() {
			var detail RequestResult
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &detail)
			})
			if err != nil {
				s.logger.Errorf("❌ 反序列化失败: %v", err)
				continue
			}

			if !s.matchFilter(&detail, statusFilter) {
				continue
			}

			if skipped < offset {
				skipped++
				continue
			}

			if len(results) >= limit {
				break
			}
			results = append(results, &detail)
		}

		return nil
	})

	return results, err
}

// Count 统计总数（实现 Interface）
func (s *BadgerStorage) Count(statusFilter StatusFilter, nodeID string) (int, error) {
	// 无节点过滤时直接读取计数器
	if nodeID == "" {
		switch statusFilter {
		case StatusFilterSuccess:
			return int(s.successCount.Load()), nil
		case StatusFilterFailed:
			return int(s.failedCount.Load()), nil
		default:
			return int(s.totalCount.Load()), nil
		}
	}

	// 有过滤条件时遍历统计
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = statusFilter != StatusFilterAll

		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(s.makePrefix(nodeID))
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if statusFilter == StatusFilterAll {
				count++
				continue
			}

			var detail RequestResult
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &detail)
			})
			if err != nil {
				continue
			}
			if s.matchFilter(&detail, statusFilter) {
				count++
			}
		}

		return nil
	})

	return count, err
}

// runGC 后台回收 value log 空间
func (s *BadgerStorage) runGC() {
	defer s.wg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			err := s.db.RunValueLogGC(0.5) // 回收空间占比超过50%的日志文件
			if err != nil && !strings.Contains(err.Error(), "nothing to GC") {
				s.logger.Warnf("⚠️  BadgerDB GC 警告: %v", err)
			}
		}
	}
}

// Close 关闭存储，刷新未落盘数据（实现 Interface）
func (s *BadgerStorage) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.logger.Info("🔒 关闭 BadgerDB 存储...")

	close(s.done)
	close(s.writeChan)
	s.wg.Wait()

	s.logger.Infof("✅ BadgerDB 存储已关闭 (总写入: %d 条)", s.totalCount.Load())
	return s.db.Close()
}

// GetNodeID 获取节点ID（实现 Interface）
func (s *BadgerStorage) GetNodeID() string {
	return s.nodeID
}

// GetStats 获取存储统计信息
func (s *BadgerStorage) GetStats() map[string]interface{} {
	lsm, vlog := s.db.Size()

	return map[string]interface{}{
		"type":          "badger",
		"node_id":       s.nodeID,
		"total_count":   s.totalCount.Load(),
		"success_count": s.successCount.Load(),
		"failed_count":  s.failedCount.Load(),
		"lsm_size":      lsm,
		"vlog_size":     vlog,
		"total_size":    lsm + vlog,
	}
}
