/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-07-07 09:40:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-08 10:17:25
 * @FilePath: \slayer\distributed\worker\monitor.go
 * @Description: 工作节点资源采集 - CPU/内存/负载/网络吞吐
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package worker

import (
	"runtime"
	"time"

	"github.com/kamalyes/go-logger"
	"github.com/kamalyes/go-toolbox/pkg/syncx"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"
	"github.com/sudoinstallopsecc/slayer/distributed/cluster"
)

// ResourceMonitor 资源采集器
// 随心跳周期采集一次，网络吞吐按两次采集间的字节差计算
type ResourceMonitor struct {
	mu            *syncx.RWLock // 使用 syncx.RWLock 替代 sync.RWMutex
	logger        logger.ILogger
	lastNetIO     *net.IOCountersStat
	lastNetIOTime time.Time
}

// NewResourceMonitor 创建资源采集器
func NewResourceMonitor(log logger.ILogger) *ResourceMonitor {
	return &ResourceMonitor{
		mu:            syncx.NewRWLock(),
		logger:        log,
		lastNetIOTime: time.Now(),
	}
}

// Collect 采集一次资源占用快照
// 单项采集失败保持零值不报错，资源采集不得中断心跳
func (rm *ResourceMonitor) Collect() *cluster.ResourceUsage {
	usage := &cluster.ResourceUsage{
		Goroutines: runtime.NumGoroutine(),
		Timestamp:  time.Now(),
	}

	// 非阻塞采样：返回自上次调用以来的CPU占用
	if cpuPercents, err := cpu.Percent(0, false); err == nil && len(cpuPercents) > 0 {
		usage.CPUPercent = cpuPercents[0]
	}

	if vmStat, err := mem.VirtualMemory(); err == nil {
		usage.MemoryPercent = vmStat.UsedPercent
		usage.MemoryUsed = int64(vmStat.Used)
		usage.MemoryTotal = int64(vmStat.Total)
	}

	if loadAvg, err := load.Avg(); err == nil {
		usage.LoadAverage = loadAvg.Load1
	}

	syncx.WithLock(rm.mu, func() {
		netIO, err := net.IOCounters(false)
		if err != nil || len(netIO) == 0 {
			return
		}
		current := &netIO[0]
		now := time.Now()

		if rm.lastNetIO != nil {
			duration := now.Sub(rm.lastNetIOTime).Seconds()
			if duration > 0 {
				bytesInDiff := float64(current.BytesRecv - rm.lastNetIO.BytesRecv)
				bytesOutDiff := float64(current.BytesSent - rm.lastNetIO.BytesSent)
				usage.NetworkInMbps = (bytesInDiff * 8) / (1024 * 1024 * duration)
				usage.NetworkOutMbps = (bytesOutDiff * 8) / (1024 * 1024 * duration)
			}
		}

		rm.lastNetIO = current
		rm.lastNetIOTime = now
	})

	return usage
}
