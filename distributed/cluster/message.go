/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-07-02 09:30:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-04 15:02:37
 * @FilePath: \slayer\distributed\cluster\message.go
 * @Description: 集群消息信封与各类载荷定义
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package cluster

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MessageType 集群消息类型（封闭枚举，新增类型须同步更新 Valid） | EN Cluster message type
type MessageType string

const (
	MessageTypeHandshake    MessageType = "handshake"     // 握手 | EN Handshake
	MessageTypeHeartbeat    MessageType = "heartbeat"     // 心跳 | EN Heartbeat
	MessageTypeCommand      MessageType = "command"       // 测试指令 | EN Command
	MessageTypeStatusUpdate MessageType = "status_update" // 状态上报 | EN Status update
	MessageTypeMetrics      MessageType = "metrics"       // 指标上报 | EN Metrics
	MessageTypeError        MessageType = "error"         // 错误上报 | EN Error
	MessageTypeShutdown     MessageType = "shutdown"      // 关闭通知 | EN Shutdown
)

// Valid 消息类型是否合法
func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeHandshake, MessageTypeHeartbeat, MessageTypeCommand,
		MessageTypeStatusUpdate, MessageTypeMetrics, MessageTypeError, MessageTypeShutdown:
		return true
	}
	return false
}

// 测试指令名
const (
	CommandStartTest = "start_test"
	CommandStopTest  = "stop_test"
)

// HandshakeAccepted 握手应答中的接受状态值
const HandshakeAccepted = "accepted"

// ErrEmptyPayload 消息不携带载荷
var ErrEmptyPayload = errors.New("消息载荷为空")

// ClusterMessage 集群消息信封
// 节点间所有通信统一使用该结构，序列化后经对称加密在 WebSocket 上传输
type ClusterMessage struct {
	MessageID string          `json:"message_id"`
	Type      MessageType     `json:"message_type"`
	SenderID  string          `json:"sender_id"`
	Timestamp float64         `json:"timestamp"` // Unix 秒
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage 构造一条消息：自动生成消息ID与时间戳，payload 序列化进 Data
func NewMessage(msgType MessageType, senderID string, payload interface{}) (*ClusterMessage, error) {
	msg := &ClusterMessage{
		MessageID: uuid.NewString(),
		Type:      msgType,
		SenderID:  senderID,
		Timestamp: float64(time.Now().UnixNano()) / float64(time.Second),
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("序列化消息载荷失败: %w", err)
		}
		msg.Data = data
	}
	return msg, nil
}

// DecodePayload 将 Data 解析到目标结构
func (m *ClusterMessage) DecodePayload(v interface{}) error {
	if len(m.Data) == 0 {
		return ErrEmptyPayload
	}
	if err := json.Unmarshal(m.Data, v); err != nil {
		return fmt.Errorf("解析消息载荷失败: %w", err)
	}
	return nil
}

// Time 消息发送时刻
func (m *ClusterMessage) Time() time.Time {
	sec := int64(m.Timestamp)
	nsec := int64((m.Timestamp - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec)
}

// HandshakePayload 握手请求载荷（工作节点 → 主节点）
type HandshakePayload struct {
	NodeID       string                 `json:"node_id"`
	Role         NodeRole               `json:"role"`
	Address      string                 `json:"address,omitempty"`
	Port         int                    `json:"port,omitempty"`
	Capabilities map[string]interface{} `json:"capabilities,omitempty"`
}

// HandshakeReply 握手应答载荷（主节点 → 工作节点）
type HandshakeReply struct {
	Status        string         `json:"status"`
	CoordinatorID string         `json:"coordinator_id"`
	SessionToken  string         `json:"session_token,omitempty"`
	ClusterConfig *ClusterConfig `json:"cluster_config,omitempty"`
}

// HeartbeatPayload 心跳载荷，可附带当前状态与资源占用
type HeartbeatPayload struct {
	Status    NodeStatus     `json:"status,omitempty"`
	Resources *ResourceUsage `json:"resources,omitempty"`
}

// StatusUpdatePayload 状态上报载荷
type StatusUpdatePayload struct {
	Status       NodeStatus             `json:"status"`
	TestID       string                 `json:"test_id,omitempty"`
	Capabilities map[string]interface{} `json:"capabilities,omitempty"`
}

// CommandPayload 测试指令载荷
// Config 携带完整引擎配置的JSON，由工作节点自行解析；
// Assignment 指定该节点的速率份额，工作节点据此覆盖配置中的目标速率
type CommandPayload struct {
	Command      string            `json:"command"`
	TestID       string            `json:"test_id"`
	Config       json.RawMessage   `json:"config,omitempty"`
	Assignment   *NodeAssignment   `json:"assignment,omitempty"`
	Coordination *CoordinationData `json:"coordination,omitempty"`
}

// ErrorPayload 错误上报载荷
type ErrorPayload struct {
	TestID  string `json:"test_id,omitempty"`
	Message string `json:"message"`
}

// ShutdownPayload 关闭通知载荷
type ShutdownPayload struct {
	Reason string `json:"reason,omitempty"`
}
