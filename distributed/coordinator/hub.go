/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-07-05 09:10:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-09 11:52:14
 * @FilePath: \slayer\distributed\coordinator\hub.go
 * @Description: 节点连接枢纽 - 维护活跃 WebSocket 连接并负责加密收发
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package coordinator

import (
	"errors"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/kamalyes/go-logger"
	"github.com/kamalyes/go-toolbox/pkg/syncx"
	"github.com/sudoinstallopsecc/slayer/distributed/cluster"
)

// ErrNodeNotConnected 目标节点当前无活跃连接
var ErrNodeNotConnected = errors.New("节点未连接")

// nodeConn 单节点连接，写帧经互斥锁串行化
type nodeConn struct {
	nodeID string
	conn   *websocket.Conn
	mu     sync.Mutex
}

func (nc *nodeConn) write(data []byte) error {
	nc.mu.Lock()
	defer nc.mu.Unlock()
	return nc.conn.WriteMessage(websocket.TextMessage, data)
}

// Hub 节点连接枢纽
// 每个节点ID最多持有一条活跃连接，重连时旧连接被关闭顶替；
// 出站消息统一在此加密后写出
type Hub struct {
	conns  *syncx.Map[string, *nodeConn]
	crypto *cluster.MessageCrypto
	logger logger.ILogger
}

// NewHub 创建连接枢纽
func NewHub(crypto *cluster.MessageCrypto, log logger.ILogger) *Hub {
	return &Hub{
		conns:  syncx.NewMap[string, *nodeConn](),
		crypto: crypto,
		logger: log,
	}
}

// Attach 登记节点连接，同节点旧连接被关闭
func (h *Hub) Attach(nodeID string, conn *websocket.Conn) {
	nc := &nodeConn{nodeID: nodeID, conn: conn}
	if old, ok := h.conns.Load(nodeID); ok && old.conn != conn {
		h.logger.WarnKV("🔄 节点重连，关闭旧连接", "node_id", nodeID)
		_ = old.conn.Close()
	}
	h.conns.Store(nodeID, nc)
}

// Detach 移除节点连接；仅当登记的仍是同一条连接时生效，
// 避免重连后的新连接被旧连接的清理逻辑误删
func (h *Hub) Detach(nodeID string, conn *websocket.Conn) bool {
	nc, ok := h.conns.Load(nodeID)
	if !ok || nc.conn != conn {
		return false
	}
	h.conns.Delete(nodeID)
	return true
}

// Send 加密并发送一条消息到指定节点
func (h *Hub) Send(nodeID string, msg *cluster.ClusterMessage) error {
	nc, ok := h.conns.Load(nodeID)
	if !ok {
		return ErrNodeNotConnected
	}
	data, err := h.crypto.Seal(msg)
	if err != nil {
		return err
	}
	return nc.write(data)
}

// Broadcast 并行广播同一条消息到多个节点，返回成功数
// 单节点失败仅记录，不中断其余节点
func (h *Hub) Broadcast(nodeIDs []string, msg *cluster.ClusterMessage) int {
	if len(nodeIDs) == 0 {
		return 0
	}
	data, err := h.crypto.Seal(msg)
	if err != nil {
		h.logger.ErrorKV("❌ 广播消息加密失败", "error", err.Error())
		return 0
	}

	sent := syncx.NewInt32(0)
	syncx.ParallelForEachSlice(nodeIDs, func(_ int, nodeID string) {
		nc, ok := h.conns.Load(nodeID)
		if !ok {
			h.logger.WarnKV("⏭️ 广播跳过未连接节点", "node_id", nodeID)
			return
		}
		if err := nc.write(data); err != nil {
			h.logger.ErrorKV("❌ 广播发送失败", "node_id", nodeID, "error", err.Error())
			return
		}
		sent.Add(1)
	})
	return int(sent.Load())
}

// IsConnected 节点是否持有活跃连接
func (h *Hub) IsConnected(nodeID string) bool {
	_, ok := h.conns.Load(nodeID)
	return ok
}

// Close 关闭指定节点连接（触发其读循环退出与清理）
func (h *Hub) Close(nodeID string) {
	if nc, ok := h.conns.Load(nodeID); ok {
		_ = nc.conn.Close()
	}
}

// CloseAll 关闭全部连接
func (h *Hub) CloseAll() {
	h.conns.Range(func(_ string, nc *nodeConn) bool {
		_ = nc.conn.Close()
		return true
	})
}

// ConnectedCount 活跃连接数
func (h *Hub) ConnectedCount() int {
	return h.conns.Size()
}
