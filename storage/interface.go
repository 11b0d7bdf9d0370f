/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-06-24 09:40:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-07-11 09:15:44
 * @FilePath: \slayer\storage\interface.go
 * @Description: 存储接口定义
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package storage

// StatusFilter 状态过滤器枚举
type StatusFilter int

const (
	StatusFilterAll     StatusFilter = iota // 全部
	StatusFilterSuccess                     // 成功
	StatusFilterFailed                      // 失败
)

// String 返回状态过滤器的字符串表示
func (s StatusFilter) String() string {
	switch s {
	case StatusFilterSuccess:
		return "success"
	case StatusFilterFailed:
		return "failed"
	default:
		return "all"
	}
}

// ParseStatusFilter 从字符串解析状态过滤器
func ParseStatusFilter(s string) StatusFilter {
	switch s {
	case "success":
		return StatusFilterSuccess
	case "failed":
		return StatusFilterFailed
	default:
		return StatusFilterAll
	}
}

// Interface 存储接口（统一所有存储实现）
type Interface interface {
	// Write 写入请求详情（非阻塞，实现内部异步落盘）
	Write(detail *RequestResult)

	// Query 分页查询请求详情，最新的在前（支持 nodeID 过滤）
	Query(offset, limit int, statusFilter StatusFilter, nodeID string) ([]*RequestResult, error)

	// Count 统计总数（支持 nodeID 过滤）
	Count(statusFilter StatusFilter, nodeID string) (int, error)

	// Close 关闭存储并刷新未落盘数据
	Close() error

	// GetNodeID 获取节点ID（用于分布式场景）
	GetNodeID() string
}
