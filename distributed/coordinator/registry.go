/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-07-04 10:30:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-07 14:19:22
 * @FilePath: \slayer\distributed\coordinator\registry.go
 * @Description: 集群节点注册表 - 使用 syncx.Map 实现线程安全
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package coordinator

import (
	"sort"
	"time"

	"github.com/kamalyes/go-toolbox/pkg/syncx"
	"github.com/sudoinstallopsecc/slayer/distributed/cluster"
)

// NodeRegistry 节点注册表
// 档案只增不删：断开的节点标记为 Disconnected 并保留，
// 读取方法返回副本，避免与并发更新共享可变状态
type NodeRegistry struct {
	nodes *syncx.Map[string, *cluster.NodeRecord]
}

// NewNodeRegistry 创建节点注册表
func NewNodeRegistry() *NodeRegistry {
	return &NodeRegistry{
		nodes: syncx.NewMap[string, *cluster.NodeRecord](),
	}
}

// Register 注册节点（重复注册视为重连，档案整体替换）
func (nr *NodeRegistry) Register(rec *cluster.NodeRecord) {
	now := time.Now()
	rec.Status = cluster.NodeStatusReady
	rec.Connected = true
	rec.ConnectedAt = now
	rec.LastHeartbeat = now
	nr.nodes.Store(rec.NodeID, rec)
}

// Get 获取指定节点档案副本
func (nr *NodeRegistry) Get(nodeID string) (*cluster.NodeRecord, bool) {
	rec, ok := nr.nodes.Load(nodeID)
	if !ok {
		return nil, false
	}
	return cloneRecord(rec), true
}

// All 获取全部节点档案副本，按接入时间（再按节点ID）稳定排序
func (nr *NodeRegistry) All() []*cluster.NodeRecord {
	records := make([]*cluster.NodeRecord, 0, nr.nodes.Size())
	nr.nodes.Range(func(_ string, rec *cluster.NodeRecord) bool {
		records = append(records, cloneRecord(rec))
		return true
	})
	sort.Slice(records, func(i, j int) bool {
		if !records[i].ConnectedAt.Equal(records[j].ConnectedAt) {
			return records[i].ConnectedAt.Before(records[j].ConnectedAt)
		}
		return records[i].NodeID < records[j].NodeID
	})
	return records
}

// Touch 刷新节点心跳时间，status 非空时同步更新状态
func (nr *NodeRegistry) Touch(nodeID string, status cluster.NodeStatus) bool {
	now := time.Now()
	return nr.nodes.Update(nodeID, func(rec *cluster.NodeRecord) *cluster.NodeRecord {
		if now.After(rec.LastHeartbeat) {
			rec.LastHeartbeat = now
		}
		if status != "" && status.Valid() {
			rec.Status = status
		}
		return rec
	})
}

// UpdateStatus 更新节点状态
func (nr *NodeRegistry) UpdateStatus(nodeID string, status cluster.NodeStatus) bool {
	return nr.nodes.Update(nodeID, func(rec *cluster.NodeRecord) *cluster.NodeRecord {
		rec.Status = status
		return rec
	})
}

// MergeCapabilities 合并节点能力声明（同名键覆盖）
func (nr *NodeRegistry) MergeCapabilities(nodeID string, caps map[string]interface{}) bool {
	if len(caps) == 0 {
		_, ok := nr.nodes.Load(nodeID)
		return ok
	}
	return nr.nodes.Update(nodeID, func(rec *cluster.NodeRecord) *cluster.NodeRecord {
		if rec.Capabilities == nil {
			rec.Capabilities = make(map[string]interface{}, len(caps))
		}
		for k, v := range caps {
			rec.Capabilities[k] = v
		}
		return rec
	})
}

// SetMetrics 记录节点最新指标快照
func (nr *NodeRegistry) SetMetrics(nodeID string, m *cluster.NodeMetrics) bool {
	return nr.nodes.Update(nodeID, func(rec *cluster.NodeRecord) *cluster.NodeRecord {
		rec.Metrics = m
		return rec
	})
}

// SetResources 记录节点最新资源占用
func (nr *NodeRegistry) SetResources(nodeID string, r *cluster.ResourceUsage) bool {
	return nr.nodes.Update(nodeID, func(rec *cluster.NodeRecord) *cluster.NodeRecord {
		rec.Resources = r
		return rec
	})
}

// MarkDisconnected 标记节点断开（档案保留）
func (nr *NodeRegistry) MarkDisconnected(nodeID string) bool {
	return nr.nodes.Update(nodeID, func(rec *cluster.NodeRecord) *cluster.NodeRecord {
		rec.Status = cluster.NodeStatusDisconnected
		rec.Connected = false
		return rec
	})
}

// Count 节点档案总数（含已断开）
func (nr *NodeRegistry) Count() int {
	return nr.nodes.Size()
}

// cloneRecord 复制节点档案，Capabilities 深拷贝，指标/资源指针为整体替换语义可直接共享
func cloneRecord(rec *cluster.NodeRecord) *cluster.NodeRecord {
	cp := *rec
	if rec.Capabilities != nil {
		caps := make(map[string]interface{}, len(rec.Capabilities))
		for k, v := range rec.Capabilities {
			caps[k] = v
		}
		cp.Capabilities = caps
	}
	return &cp
}
