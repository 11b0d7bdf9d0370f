/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-07-02 14:20:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-08 17:33:06
 * @FilePath: \slayer\distributed\cluster\models.go
 * @Description: 集群数据模型：节点档案、速率分配、指标快照与聚合结果
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package cluster

import (
	"encoding/json"
	"time"
)

// NodeRecord 集群节点档案
// 握手时创建，之后随每条入站消息更新；心跳超时或连接关闭只标记
// Disconnected 并保留档案，供状态查询与事后排查
type NodeRecord struct {
	NodeID        string                 `json:"node_id"`
	Role          NodeRole               `json:"role"`
	Status        NodeStatus             `json:"status"`
	Address       string                 `json:"address"`
	Port          int                    `json:"port,omitempty"`
	Capabilities  map[string]interface{} `json:"capabilities,omitempty"`
	Connected     bool                   `json:"connected"`
	LastHeartbeat time.Time              `json:"last_heartbeat"`
	ConnectedAt   time.Time              `json:"connected_at"`
	Metrics       *NodeMetrics           `json:"metrics,omitempty"`
	Resources     *ResourceUsage         `json:"resources,omitempty"`
}

// NodeAssignment 单节点的速率分配
type NodeAssignment struct {
	NodeID       string `json:"node_id"`
	AssignedRate int    `json:"assigned_rate"` // 每秒请求数
	NodeIndex    int    `json:"node_index"`
	TotalNodes   int    `json:"total_nodes"`
}

// CoordinationData 多节点同步数据：约定的未来启动时刻与同步间隔
// 所有节点在同一时刻起跑，避免先到的节点提前冲击目标
type CoordinationData struct {
	StartTime    float64 `json:"start_time"`    // Unix 秒
	SyncInterval float64 `json:"sync_interval"` // 秒
}

// StartAt 约定的启动时刻
func (cd *CoordinationData) StartAt() time.Time {
	sec := int64(cd.StartTime)
	nsec := int64((cd.StartTime - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec)
}

// SyncEvery 同步间隔
func (cd *CoordinationData) SyncEvery() time.Duration {
	return time.Duration(cd.SyncInterval * float64(time.Second))
}

// TestCommand 主节点侧的活跃测试记录，停止即移除
type TestCommand struct {
	CommandID       string            `json:"command_id"`
	TargetURL       string            `json:"target_url"`
	AssignedNodes   []string          `json:"assigned_nodes"`
	TotalRate       int               `json:"total_rate"`
	DurationSeconds int               `json:"duration_seconds"`
	PatternSpec     json.RawMessage   `json:"pattern_spec,omitempty"`
	Coordination    *CoordinationData `json:"coordination_data,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
}

// NodeMetrics 单节点指标快照
// 节点每个指标周期推送一次完整快照，主节点后写覆盖先写
type NodeMetrics struct {
	NodeID             string  `json:"node_id,omitempty"`
	TotalRequests      uint64  `json:"total_requests"`
	SuccessfulRequests uint64  `json:"successful_requests"`
	FailedRequests     uint64  `json:"failed_requests"`
	ErrorRate          float64 `json:"error_rate"`        // 0-100
	AvgResponseTime    float64 `json:"avg_response_time"` // 毫秒
	P95ResponseTime    float64 `json:"p95_response_time"` // 毫秒
	CurrentRPS         float64 `json:"current_rps"`
	Timestamp          float64 `json:"timestamp,omitempty"` // 主节点接收时刻，Unix 秒
}

// ClusterSummary 集群聚合指标
// 请求数直接求和；平均时延按各节点请求数加权；错误率 = (总数-成功)/总数
type ClusterSummary struct {
	TotalRequests      uint64                  `json:"total_requests"`
	SuccessfulRequests uint64                  `json:"successful_requests"`
	FailedRequests     uint64                  `json:"failed_requests"`
	ErrorRate          float64                 `json:"error_rate"` // 0-100
	AvgResponseTime    float64                 `json:"avg_response_time"`
	CurrentRPS         float64                 `json:"current_rps"`
	ActiveNodes        int                     `json:"active_nodes"`
	LastUpdate         time.Time               `json:"last_update"`
	ByNode             map[string]*NodeMetrics `json:"by_node,omitempty"`
}

// ResourceUsage 节点资源占用快照
type ResourceUsage struct {
	CPUPercent     float64   `json:"cpu_percent"`    // 0-100
	MemoryPercent  float64   `json:"memory_percent"` // 0-100
	MemoryUsed     int64     `json:"memory_used"`    // 字节
	MemoryTotal    int64     `json:"memory_total"`   // 字节
	LoadAverage    float64   `json:"load_average"`   // 1分钟平均负载
	Goroutines     int       `json:"goroutines"`
	NetworkInMbps  float64   `json:"network_in_mbps"`
	NetworkOutMbps float64   `json:"network_out_mbps"`
	Timestamp      time.Time `json:"timestamp"`
}

// ClusterConfig 主节点在握手应答中下发的集群参数
type ClusterConfig struct {
	CoordinatorID     string  `json:"coordinator_id"`
	HeartbeatInterval float64 `json:"heartbeat_interval"` // 秒
	MetricsInterval   float64 `json:"metrics_interval"`   // 秒
	MaxRPSPerNode     float64 `json:"max_rps_per_node"`
	SecurityEnabled   bool    `json:"security_enabled"`
}

// HeartbeatEvery 心跳间隔，非法值回退10秒
func (cc *ClusterConfig) HeartbeatEvery() time.Duration {
	if cc == nil || cc.HeartbeatInterval <= 0 {
		return 10 * time.Second
	}
	return time.Duration(cc.HeartbeatInterval * float64(time.Second))
}

// MetricsEvery 指标推送间隔，非法值回退5秒
func (cc *ClusterConfig) MetricsEvery() time.Duration {
	if cc == nil || cc.MetricsInterval <= 0 {
		return 5 * time.Second
	}
	return time.Duration(cc.MetricsInterval * float64(time.Second))
}

// ClusterStatus 集群状态查询结果：节点表、活跃测试与聚合指标
type ClusterStatus struct {
	CoordinatorID string          `json:"coordinator_id"`
	Status        NodeStatus      `json:"status"`
	Nodes         []*NodeRecord   `json:"nodes"`
	ActiveTests   []string        `json:"active_tests"`
	Metrics       *ClusterSummary `json:"metrics"`
}
