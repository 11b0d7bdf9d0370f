/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-07-02 09:00:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-07-30 11:24:18
 * @FilePath: \slayer\distributed\cluster\states.go
 * @Description: 集群节点角色与状态枚举定义
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package cluster

// NodeRole 节点角色 | EN Node Role
type NodeRole string

const (
	NodeRoleMaster   NodeRole = "master"   // 主节点，负责任务分发与指标聚合 | EN Master role
	NodeRoleWorker   NodeRole = "worker"   // 工作节点，执行压测任务 | EN Worker role
	NodeRoleObserver NodeRole = "observer" // 观察节点，只读集群状态 | EN Observer role
)

// Valid 角色是否合法
func (r NodeRole) Valid() bool {
	switch r {
	case NodeRoleMaster, NodeRoleWorker, NodeRoleObserver:
		return true
	}
	return false
}

// NodeStatus 节点状态 | EN Node Status
type NodeStatus string

const (
	NodeStatusInitializing NodeStatus = "initializing" // 初始化中 | EN Initializing
	NodeStatusReady        NodeStatus = "ready"        // 就绪，可接受任务 | EN Ready
	NodeStatusRunning      NodeStatus = "running"      // 执行任务中 | EN Running
	NodeStatusPaused       NodeStatus = "paused"       // 已暂停 | EN Paused
	NodeStatusError        NodeStatus = "error"        // 错误状态 | EN Error
	NodeStatusDisconnected NodeStatus = "disconnected" // 已断开（档案保留，不删除） | EN Disconnected
)

// Valid 状态是否合法
func (s NodeStatus) Valid() bool {
	switch s {
	case NodeStatusInitializing, NodeStatusReady, NodeStatusRunning,
		NodeStatusPaused, NodeStatusError, NodeStatusDisconnected:
		return true
	}
	return false
}

// TestState 测试生命周期状态 | EN Test State
type TestState string

const (
	TestStateRunning   TestState = "running"   // 运行中 | EN Running
	TestStateCompleted TestState = "completed" // 正常完成 | EN Completed
	TestStateFailed    TestState = "failed"    // 执行失败 | EN Failed
	TestStateStopped   TestState = "stopped"   // 被主动停止 | EN Stopped
)
