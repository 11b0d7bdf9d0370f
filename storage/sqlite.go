/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-06-24 10:50:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-07-11 11:27:08
 * @FilePath: \slayer\storage\sqlite.go
 * @Description: SQLite存储层 - 持久化请求详情
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/kamalyes/go-logger"
	"github.com/kamalyes/go-toolbox/pkg/syncx"
	_ "github.com/mattn/go-sqlite3"
)

const tableRequestDetails = "request_details"

// DetailStorage SQLite持久化存储（实现 Interface）
type DetailStorage struct {
	db          *sql.DB
	writeChan   chan *RequestResult
	batchSize   int
	flushTicker *time.Ticker
	wg          sync.WaitGroup
	closed      bool
	mu          sync.Mutex
	nodeID      string
	logger      logger.ILogger

	// 统计信息
	writeCount *syncx.Uint64 // 写入总数
	flushCount *syncx.Uint64 // 刷新次数
	dropCount  *syncx.Uint64 // 丢弃数（通道满）
}

// NewDetailStorage 创建存储实例
func NewDetailStorage(dbPath, nodeID string, log logger.ILogger) (*DetailStorage, error) {
	if log == nil {
		log = logger.NewLogger(nil)
	}

	// 非内存模式时确保目录存在
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("创建目录失败: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}

	// SQLite 仅支持单写多读
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// 性能优化
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = 10000",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			log.Warnf("⚠️  执行 %s 失败: %v", pragma, err)
		}
	}

	schema := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		id TEXT PRIMARY KEY,
		node_id TEXT NOT NULL,
		sequence_id INTEGER NOT NULL,
		timestamp INTEGER NOT NULL,
		url TEXT,
		method TEXT,
		body TEXT,
		duration INTEGER NOT NULL,
		status_code INTEGER,
		success INTEGER NOT NULL,
		error_kind TEXT,
		error TEXT,
		size REAL,
		verifications TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_node_id ON %s(node_id);
	CREATE INDEX IF NOT EXISTS idx_timestamp ON %s(timestamp);
	CREATE INDEX IF NOT EXISTS idx_success ON %s(success);
	`, tableRequestDetails, tableRequestDetails, tableRequestDetails, tableRequestDetails)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("创建表失败: %w", err)
	}

	if dbPath != ":memory:" {
		log.Infof("💾 SQLite 存储已启用: %s (节点: %s)", dbPath, nodeID)
	} else {
		log.Infof("💾 SQLite 内存模式已启用 (节点: %s)", nodeID)
	}

	storage := &DetailStorage{
		db:          db,
		writeChan:   make(chan *RequestResult, 10000), // 1万缓冲
		batchSize:   100,                              // 每100条批量写入
		flushTicker: time.NewTicker(1 * time.Second),  // 每秒强制刷新
		nodeID:      nodeID,
		logger:      log,
		writeCount:  syncx.NewUint64(0),
		flushCount:  syncx.NewUint64(0),
		dropCount:   syncx.NewUint64(0),
	}

	// 异步写入协程
	storage.wg.Add(1)
	go storage.batchWriter()

	return storage, nil
}

// Write 异步写入请求详情（实现 Interface）
func (s *DetailStorage) Write(detail *RequestResult) {
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
		// 写入成功
	default:
		// 通道满，丢弃以避免阻塞压测主流程
		dropped := s.dropCount.Add(1)
		if dropped%1000 == 1 {
			s.logger.Warnf("⚠️  写入通道已满，已丢弃 %d 条记录", dropped)
		}
	}
}

// batchWriter 批量写入协程
func (s *DetailStorage) batchWriter() {
	defer s.wg.Done()

	batch := make([]*RequestResult, 0, s.batchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}

		if err := s.insertBatch(batch); err != nil {
			s.logger.Errorf("❌ 批量写入 %d 条记录失败: %v", len(batch), err)
		} else {
			total := s.writeCount.Add(uint64(len(batch)))
			s.flushCount.Add(1)
			if total%10000 == 0 {
				s.logger.Debugf("📊 已写入 %d 条记录", total)
			}
		}

		batch = batch[:0] // 清空但保留容量
	}

	for {
		select {
		case detail, ok := <-s.writeChan:
			if !ok {
				// 通道关闭，刷新剩余数据
				flush()
				return
			}

			batch = append(batch, detail)
			if len(batch) >= s.batchSize {
				flush()
			}

		case <-s.flushTicker.C:
			flush()
		}
	}
}

// insertBatch 批量插入
func (s *DetailStorage) insertBatch(batch []*RequestResult) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(fmt.Sprintf(`
		INSERT OR REPLACE INTO %s (
			id, node_id, sequence_id, timestamp, url, method, body,
			duration, status_code, success, error_kind, error, size, verifications
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, tableRequestDetails))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, detail := range batch {
		verificationsJSON, _ := json.Marshal(detail.Verifications)

		_, err := stmt.Exec(
			detail.ID,
			detail.NodeID,
			detail.SequenceID,
			detail.Timestamp.UnixNano(),
			detail.URL,
			detail.Method,
			detail.Body,
			detail.Duration.Microseconds(),
			detail.StatusCode,
			boolToInt(detail.Success),
			string(detail.ErrorKind),
			detail.ErrorMsg,
			detail.Size,
			string(verificationsJSON),
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// buildWhere 组装过滤条件（参数化，避免拼接注入）
func buildWhere(statusFilter StatusFilter, nodeID string) (string, []interface{}) {
	where := []string{}
	args := []interface{}{}

	switch statusFilter {
	case StatusFilterSuccess:
		where = append(where, "success = 1")
	case StatusFilterFailed:
		where = append(where, "success = 0")
	}

	if nodeID != "" {
		where = append(where, "node_id = ?")
		args = append(args, nodeID)
	}

	if len(where) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(where, " AND "), args
}

// Query 分页查询请求详情，最新的在前（实现 Interface）
func (s *DetailStorage) Query(offset, limit int, statusFilter StatusFilter, nodeID string) ([]*RequestResult, error) {
	whereClause, args := buildWhere(statusFilter, nodeID)

	query := fmt.Sprintf(`
		SELECT id, node_id, sequence_id, timestamp, url, method, body,
		       duration, status_code, success, error_kind, error, size, verifications
		FROM %s%s
		ORDER BY timestamp DESC, sequence_id DESC LIMIT ? OFFSET ?
	`, tableRequestDetails, whereClause)
	args = append(args, limit, offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*RequestResult
	for rows.Next() {
		detail, err := s.scanDetail(rows)
		if err != nil {
			s.logger.Warnf("⚠️  扫描行失败: %v", err)
			continue
		}
		results = append(results, detail)
	}

	return results, rows.Err()
}

// Count 统计总数（实现 Interface）
func (s *DetailStorage) Count(statusFilter StatusFilter, nodeID string) (int, error) {
	whereClause, args := buildWhere(statusFilter, nodeID)
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s%s", tableRequestDetails, whereClause)

	var count int
	err := s.db.QueryRow(query, args...).Scan(&count)
	return count, err
}

// scanDetail 扫描行数据
func (s *DetailStorage) scanDetail(rows *sql.Rows) (*RequestResult, error) {
	var (
		detail              RequestResult
		timestamp, duration int64
		success             int
		errorKind           string
		verificationsJSON   string
	)

	err := rows.Scan(
		&detail.ID, &detail.NodeID, &detail.SequenceID, &timestamp,
		&detail.URL, &detail.Method, &detail.Body,
		&duration, &detail.StatusCode, &success, &errorKind, &detail.ErrorMsg,
		&detail.Size, &verificationsJSON,
	)
	if err != nil {
		return nil, err
	}

	detail.Timestamp = time.Unix(0, timestamp)
	detail.Duration = time.Duration(duration) * time.Microsecond
	detail.Success = success == 1
	detail.ErrorKind = ErrorKind(errorKind)
	json.Unmarshal([]byte(verificationsJSON), &detail.Verifications)

	return &detail, nil
}

// Close 关闭存储，刷新未落盘数据（实现 Interface）
func (s *DetailStorage) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	// 关闭写入通道，batchWriter 会刷新剩余数据后退出
	close(s.writeChan)
	s.flushTicker.Stop()
	s.wg.Wait()

	s.logger.Infof("✅ SQLite 存储已关闭 (总写入: %d 条, 刷新: %d 次)",
		s.writeCount.Load(), s.flushCount.Load())
	if dropped := s.dropCount.Load(); dropped > 0 {
		s.logger.Warnf("⚠️  丢弃记录: %d 条", dropped)
	}

	return s.db.Close()
}

// GetNodeID 获取节点ID（实现 Interface）
func (s *DetailStorage) GetNodeID() string {
	return s.nodeID
}

// GetStats 获取存储统计信息
func (s *DetailStorage) GetStats() (writeCount, flushCount, dropCount uint64) {
	return s.writeCount.Load(), s.flushCount.Load(), s.dropCount.Load()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
