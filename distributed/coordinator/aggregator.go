/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-07-04 11:40:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-08 16:27:51
 * @FilePath: \slayer\distributed\coordinator\aggregator.go
 * @Description: 集群指标聚合器 - 按节点后写覆盖，每次推送后全量重算
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package coordinator

import (
	"time"

	"github.com/kamalyes/go-toolbox/pkg/syncx"
	"github.com/sudoinstallopsecc/slayer/distributed/cluster"
)

// ClusterAggregator 集群指标聚合器
// 每个节点保留最新一份完整快照（后写覆盖先写），聚合值每次推送后
// 从所有在档快照全量重算，节点断开时将其快照移出聚合
type ClusterAggregator struct {
	mu      *syncx.RWLock // 使用 syncx.RWLock 替代 sync.RWMutex
	byNode  map[string]*cluster.NodeMetrics
	summary cluster.ClusterSummary
}

// NewClusterAggregator 创建聚合器
func NewClusterAggregator() *ClusterAggregator {
	return &ClusterAggregator{
		mu:     syncx.NewRWLock(),
		byNode: make(map[string]*cluster.NodeMetrics),
	}
}

// Update 录入节点指标快照并重算聚合值
func (ca *ClusterAggregator) Update(nodeID string, m *cluster.NodeMetrics) {
	if m == nil {
		return
	}
	syncx.WithLock(ca.mu, func() {
		m.NodeID = nodeID
		// 接收时刻以主节点时钟为准
		m.Timestamp = float64(time.Now().UnixNano()) / float64(time.Second)
		ca.byNode[nodeID] = m
		ca.recalcLocked()
	})
}

// Remove 将节点快照移出聚合（节点断开时调用）
func (ca *ClusterAggregator) Remove(nodeID string) {
	syncx.WithLock(ca.mu, func() {
		if _, ok := ca.byNode[nodeID]; !ok {
			return
		}
		delete(ca.byNode, nodeID)
		ca.recalcLocked()
	})
}

// Summary 获取当前聚合结果副本
func (ca *ClusterAggregator) Summary() *cluster.ClusterSummary {
	return syncx.WithRLockReturnValue(ca.mu, func() *cluster.ClusterSummary {
		out := ca.summary
		out.ByNode = make(map[string]*cluster.NodeMetrics, len(ca.byNode))
		for id, m := range ca.byNode {
			cp := *m
			out.ByNode[id] = &cp
		}
		return &out
	})
}

// NodeSnapshot 获取指定节点的最新快照副本
func (ca *ClusterAggregator) NodeSnapshot(nodeID string) (*cluster.NodeMetrics, bool) {
	return syncx.WithRLockReturnWithE(ca.mu, func() (*cluster.NodeMetrics, bool) {
		m, ok := ca.byNode[nodeID]
		if !ok {
			return nil, false
		}
		cp := *m
		return &cp, true
	})
}

// recalcLocked 从全部在档快照重算聚合值，调用方需持有写锁
// 请求数直接求和；平均时延按各节点请求数加权（权重为0的节点跳过）；
// 错误率 = (总数-成功)/总数 × 100
func (ca *ClusterAggregator) recalcLocked() {
	var s cluster.ClusterSummary
	var weightedSum, weightTotal float64

	for _, m := range ca.byNode {
		s.TotalRequests += m.TotalRequests
		s.SuccessfulRequests += m.SuccessfulRequests
		s.FailedRequests += m.FailedRequests
		s.CurrentRPS += m.CurrentRPS
		if m.TotalRequests > 0 {
			weightedSum += m.AvgResponseTime * float64(m.TotalRequests)
			weightTotal += float64(m.TotalRequests)
		}
	}

	if weightTotal > 0 {
		s.AvgResponseTime = weightedSum / weightTotal
	}
	if s.TotalRequests > 0 {
		s.ErrorRate = float64(s.TotalRequests-s.SuccessfulRequests) / float64(s.TotalRequests) * 100
	}
	s.ActiveNodes = len(ca.byNode)
	s.LastUpdate = time.Now()

	ca.summary = s
}
