/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-07-04 14:15:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-08 16:55:40
 * @FilePath: \slayer\distributed\coordinator\aggregator_test.go
 * @Description: 集群指标聚合器测试
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package coordinator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sudoinstallopsecc/slayer/distributed/cluster"
)

// 测试 聚合计算 - 求和、请求数加权平均与错误率
func TestAggregatorRecalc(t *testing.T) {
	ca := NewClusterAggregator()

	ca.Update("worker-a", &cluster.NodeMetrics{
		TotalRequests:      100,
		SuccessfulRequests: 90,
		FailedRequests:     10,
		AvgResponseTime:    200,
		CurrentRPS:         10,
	})
	ca.Update("worker-b", &cluster.NodeMetrics{
		TotalRequests:      300,
		SuccessfulRequests: 300,
		AvgResponseTime:    100,
		CurrentRPS:         30,
	})

	s := ca.Summary()
	assert.Equal(t, uint64(400), s.TotalRequests)
	assert.Equal(t, uint64(390), s.SuccessfulRequests)
	assert.Equal(t, uint64(10), s.FailedRequests)
	// (400-390)/400*100
	assert.InDelta(t, 2.5, s.ErrorRate, 0.001)
	// (200*100 + 100*300) / 400
	assert.InDelta(t, 125, s.AvgResponseTime, 0.001)
	assert.InDelta(t, 40, s.CurrentRPS, 0.001)
	assert.Equal(t, 2, s.ActiveNodes)
	assert.False(t, s.LastUpdate.IsZero())
	assert.Len(t, s.ByNode, 2)
}

// 测试 后写覆盖 - 同节点重复推送只保留最新快照
func TestAggregatorLastWriteWins(t *testing.T) {
	ca := NewClusterAggregator()

	ca.Update("worker-a", &cluster.NodeMetrics{TotalRequests: 100, SuccessfulRequests: 100, CurrentRPS: 10})
	ca.Update("worker-b", &cluster.NodeMetrics{TotalRequests: 300, SuccessfulRequests: 300, CurrentRPS: 30})
	// worker-a 的新快照覆盖旧值，而不是累加
	ca.Update("worker-a", &cluster.NodeMetrics{TotalRequests: 150, SuccessfulRequests: 150, CurrentRPS: 15})

	s := ca.Summary()
	assert.Equal(t, uint64(450), s.TotalRequests)
	assert.InDelta(t, 45, s.CurrentRPS, 0.001)
	assert.Equal(t, 2, s.ActiveNodes)

	snap, ok := ca.NodeSnapshot("worker-a")
	assert.True(t, ok)
	assert.Equal(t, uint64(150), snap.TotalRequests)
	assert.Equal(t, "worker-a", snap.NodeID)
	assert.Greater(t, snap.Timestamp, float64(0))
}

// 测试 Remove - 断开节点移出聚合
func TestAggregatorRemove(t *testing.T) {
	ca := NewClusterAggregator()
	ca.Update("worker-a", &cluster.NodeMetrics{TotalRequests: 100, SuccessfulRequests: 100})
	ca.Update("worker-b", &cluster.NodeMetrics{TotalRequests: 300, SuccessfulRequests: 290})

	ca.Remove("worker-a")
	s := ca.Summary()
	assert.Equal(t, uint64(300), s.TotalRequests)
	assert.Equal(t, 1, s.ActiveNodes)
	assert.Len(t, s.ByNode, 1)

	_, ok := ca.NodeSnapshot("worker-a")
	assert.False(t, ok)

	// 重复移除与移除未知节点都安全
	ca.Remove("worker-a")
	ca.Remove("worker-missing")
	assert.Equal(t, 1, ca.Summary().ActiveNodes)
}

// 测试 空聚合 - 无节点时各值为零且无 NaN
func TestAggregatorEmpty(t *testing.T) {
	ca := NewClusterAggregator()
	s := ca.Summary()
	assert.Zero(t, s.TotalRequests)
	assert.Zero(t, s.ErrorRate)
	assert.Zero(t, s.AvgResponseTime)
	assert.Zero(t, s.ActiveNodes)
	assert.Empty(t, s.ByNode)
}

// 测试 零权重跳过 - 无请求的节点不参与时延加权
func TestAggregatorZeroWeightSkipped(t *testing.T) {
	ca := NewClusterAggregator()
	ca.Update("worker-a", &cluster.NodeMetrics{TotalRequests: 200, SuccessfulRequests: 200, AvgResponseTime: 80})
	// 刚起步的节点：有时延样本字段但请求数为0
	ca.Update("worker-b", &cluster.NodeMetrics{TotalRequests: 0, AvgResponseTime: 500})

	s := ca.Summary()
	assert.InDelta(t, 80, s.AvgResponseTime, 0.001)
	assert.Equal(t, 2, s.ActiveNodes)
}
