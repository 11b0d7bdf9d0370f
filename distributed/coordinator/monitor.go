/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-07-05 10:25:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-09 15:36:40
 * @FilePath: \slayer\distributed\coordinator\monitor.go
 * @Description: 心跳监测 - 使用 syncx.PeriodicTask 周期巡检节点存活
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package coordinator

import (
	"context"
	"time"

	"github.com/kamalyes/go-logger"
	"github.com/kamalyes/go-toolbox/pkg/syncx"
	"github.com/sudoinstallopsecc/slayer/distributed/cluster"
)

// HeartbeatMonitor 心跳监测器
// 周期巡检全部节点档案，超时未收到任何消息的节点标记断开、
// 移出指标聚合并关闭其连接
type HeartbeatMonitor struct {
	registry    *NodeRegistry
	hub         *Hub
	aggregator  *ClusterAggregator
	interval    time.Duration
	timeout     time.Duration
	logger      logger.ILogger
	taskManager *syncx.PeriodicTaskManager // 使用 syncx.PeriodicTaskManager
}

// NewHeartbeatMonitor 创建心跳监测器
func NewHeartbeatMonitor(registry *NodeRegistry, hub *Hub, aggregator *ClusterAggregator,
	interval, timeout time.Duration, log logger.ILogger) *HeartbeatMonitor {
	return &HeartbeatMonitor{
		registry:    registry,
		hub:         hub,
		aggregator:  aggregator,
		interval:    interval,
		timeout:     timeout,
		logger:      log,
		taskManager: syncx.NewPeriodicTaskManager(),
	}
}

// Start 启动心跳巡检，随上下文结束
func (hm *HeartbeatMonitor) Start(ctx context.Context) {
	task := syncx.NewPeriodicTask("heartbeat-monitor", hm.interval, func(taskCtx context.Context) error {
		hm.checkAll()
		return nil
	}).
		SetOnError(func(name string, err error) {
			hm.logger.ErrorKV("心跳巡检任务异常", "task", name, "error", err.Error())
		}).
		SetOnStart(func(name string) {
			hm.logger.InfoKV("🔍 心跳监测已启动", "interval", hm.interval.String(), "timeout", hm.timeout.String())
		}).
		SetOnStop(func(name string) {
			hm.logger.Info("心跳监测已停止")
		})

	hm.taskManager.AddTask(task)
	hm.taskManager.StartWithContext(ctx)
}

// checkAll 并行巡检全部节点
func (hm *HeartbeatMonitor) checkAll() {
	nodes := hm.registry.All()

	syncx.ParallelForEachSlice(nodes, func(_ int, rec *cluster.NodeRecord) {
		hm.checkNode(rec)
	})
}

// checkNode 巡检单个节点
func (hm *HeartbeatMonitor) checkNode(rec *cluster.NodeRecord) {
	if rec.Status == cluster.NodeStatusDisconnected {
		return
	}
	elapsed := time.Since(rec.LastHeartbeat)
	if elapsed <= hm.timeout {
		return
	}

	hm.logger.WarnKV("⚠️ 节点心跳超时，标记断开",
		"node_id", rec.NodeID,
		"elapsed", elapsed.String(),
		"timeout", hm.timeout.String())

	hm.registry.MarkDisconnected(rec.NodeID)
	hm.aggregator.Remove(rec.NodeID)
	hm.hub.Close(rec.NodeID)
}
