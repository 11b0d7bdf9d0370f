/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-07-07 16:05:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-05 10:12:33
 * @FilePath: \slayer\distributed\worker\monitor_test.go
 * @Description: 资源采集测试
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package worker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sudoinstallopsecc/slayer/logger"
)

// 测试 资源采集 - 关键字段就绪且连续采集可计算网络速率
func TestResourceMonitorCollect(t *testing.T) {
	m := NewResourceMonitor(logger.New())

	first := m.Collect()
	assert.NotNil(t, first)
	assert.True(t, first.Goroutines > 0)
	assert.True(t, first.Timestamp > 0)
	assert.True(t, first.CPUPercent >= 0)
	assert.True(t, first.MemoryPercent >= 0)

	time.Sleep(50 * time.Millisecond)
	second := m.Collect()
	assert.NotNil(t, second)
	assert.True(t, second.NetworkInMbps >= 0)
	assert.True(t, second.NetworkOutMbps >= 0)
	assert.True(t, second.Timestamp > first.Timestamp)
}
