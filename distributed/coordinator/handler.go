/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-07-06 09:35:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-10 19:21:47
 * @FilePath: \slayer\distributed\coordinator\handler.go
 * @Description: 集群接入处理 - WebSocket 握手、读循环与入站消息分发
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package coordinator

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kamalyes/go-toolbox/pkg/mathx"
	"github.com/kamalyes/go-toolbox/pkg/sign"
	"github.com/sudoinstallopsecc/slayer/distributed/cluster"
)

// ErrInvalidHandshake 首条消息不是合法的握手消息
var ErrInvalidHandshake = errors.New("无效的握手消息")

// 握手失败使用自定义关闭码，便于对端区分失败原因
const (
	closeInvalidHandshake = 4000 // 首条消息类型不是握手
	closeHandshakeFailed  = 4001 // 解密失败或握手内容非法
)

// handleCluster 集群接入端点：升级为 WebSocket 后进入节点会话
func (c *Coordinator) handleCluster(w http.ResponseWriter, r *http.Request) {
	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.WarnKV("WebSocket 升级失败", "remote", r.RemoteAddr, "error", err.Error())
		return
	}
	c.serveConn(conn)
}

// serveConn 单节点会话：握手成功后登记连接并进入读循环，
// 会话结束时标记断开、移出聚合
func (c *Coordinator) serveConn(conn *websocket.Conn) {
	nodeID, err := c.performHandshake(conn)
	if err != nil {
		code := closeHandshakeFailed
		reason := "Handshake failed"
		if errors.Is(err, ErrInvalidHandshake) {
			code = closeInvalidHandshake
			reason = "Invalid handshake"
		}
		c.logger.WarnKV("🚫 节点握手失败",
			"remote", conn.RemoteAddr().String(),
			"code", code,
			"error", err.Error())
		deadline := time.Now().Add(time.Second)
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
		_ = conn.Close()
		return
	}

	c.hub.Attach(nodeID, conn)
	c.logger.InfoKV("🔗 节点已接入", "node_id", nodeID, "remote", conn.RemoteAddr().String())

	defer func() {
		_ = conn.Close()
		// 重连顶替后旧会话的清理不得波及新连接
		if c.hub.Detach(nodeID, conn) {
			c.registry.MarkDisconnected(nodeID)
			c.aggregator.Remove(nodeID)
			c.logger.InfoKV("🔌 节点连接断开", "node_id", nodeID)
		}
	}()

	c.readLoop(nodeID, conn)
}

// performHandshake 等待并校验首条握手消息，成功则注册节点并回发应答
func (c *Coordinator) performHandshake(conn *websocket.Conn) (string, error) {
	_ = conn.SetReadDeadline(time.Now().Add(c.opts.HandshakeTimeout))

	_, data, err := conn.ReadMessage()
	if err != nil {
		return "", fmt.Errorf("读取握手消息失败: %w", err)
	}
	msg, err := c.crypto.Open(data)
	if err != nil {
		return "", fmt.Errorf("握手消息解密失败: %w", err)
	}
	if msg.Type != cluster.MessageTypeHandshake {
		return "", fmt.Errorf("%w: 首条消息类型为 %s", ErrInvalidHandshake, msg.Type)
	}

	var hs cluster.HandshakePayload
	if err := msg.DecodePayload(&hs); err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidHandshake, err.Error())
	}
	if hs.NodeID == "" {
		return "", fmt.Errorf("%w: 节点ID为空", ErrInvalidHandshake)
	}
	if !hs.Role.Valid() {
		return "", fmt.Errorf("%w: 非法角色 %q", ErrInvalidHandshake, hs.Role)
	}

	reply := &cluster.HandshakeReply{
		Status:        cluster.HandshakeAccepted,
		CoordinatorID: c.nodeID,
		SessionToken:  c.mintSessionToken(hs.NodeID),
		ClusterConfig: c.clusterConfig(),
	}
	replyMsg, err := cluster.NewMessage(cluster.MessageTypeHandshake, c.nodeID, reply)
	if err != nil {
		return "", err
	}
	sealed, err := c.crypto.Seal(replyMsg)
	if err != nil {
		return "", err
	}
	if err := conn.WriteMessage(websocket.TextMessage, sealed); err != nil {
		return "", fmt.Errorf("发送握手应答失败: %w", err)
	}
	_ = conn.SetReadDeadline(time.Time{})

	address := mathx.IfEmpty(hs.Address, conn.RemoteAddr().String())
	c.registry.Register(&cluster.NodeRecord{
		NodeID:       hs.NodeID,
		Role:         hs.Role,
		Address:      address,
		Port:         hs.Port,
		Capabilities: hs.Capabilities,
	})

	c.logger.InfoKV("🤝 节点握手成功",
		"node_id", hs.NodeID,
		"role", string(hs.Role),
		"address", address)
	return hs.NodeID, nil
}

// readLoop 持续读取节点消息直至连接关闭
func (c *Coordinator) readLoop(nodeID string, conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure) {
				c.logger.DebugKV("节点连接关闭", "node_id", nodeID, "reason", err.Error())
			} else {
				c.logger.WarnKV("节点连接读取失败", "node_id", nodeID, "error", err.Error())
			}
			return
		}
		c.handleMessage(nodeID, data)
	}
}

// handleMessage 解密并分发一条入站消息
// 解密失败的消息直接丢弃；任何解密成功的消息都等价于一次心跳
func (c *Coordinator) handleMessage(nodeID string, data []byte) {
	msg, err := c.crypto.Open(data)
	if err != nil {
		c.logger.WarnKV("🔒 收到无法解密的消息，已丢弃", "node_id", nodeID, "error", err.Error())
		return
	}

	c.registry.Touch(nodeID, "")

	switch msg.Type {
	case cluster.MessageTypeHeartbeat:
		// 心跳载荷可选
		var hb cluster.HeartbeatPayload
		if err := msg.DecodePayload(&hb); err == nil {
			if hb.Status != "" {
				c.registry.Touch(nodeID, hb.Status)
			}
			if hb.Resources != nil {
				c.registry.SetResources(nodeID, hb.Resources)
			}
		}
		c.logger.DebugKV("心跳", "node_id", nodeID)

	case cluster.MessageTypeStatusUpdate:
		var su cluster.StatusUpdatePayload
		if err := msg.DecodePayload(&su); err != nil {
			c.logger.WarnKV("状态上报载荷非法", "node_id", nodeID, "error", err.Error())
			return
		}
		if su.Status.Valid() {
			c.registry.UpdateStatus(nodeID, su.Status)
		}
		c.registry.MergeCapabilities(nodeID, su.Capabilities)
		c.logger.DebugKV("📝 节点状态更新", "node_id", nodeID, "status", string(su.Status))

	case cluster.MessageTypeMetrics:
		var nm cluster.NodeMetrics
		if err := msg.DecodePayload(&nm); err != nil {
			c.logger.WarnKV("指标载荷非法", "node_id", nodeID, "error", err.Error())
			return
		}
		c.aggregator.Update(nodeID, &nm)
		c.registry.SetMetrics(nodeID, &nm)

	case cluster.MessageTypeError:
		var ep cluster.ErrorPayload
		if err := msg.DecodePayload(&ep); err != nil {
			ep.Message = "未知错误"
		}
		c.logger.ErrorKV("💥 节点上报错误", "node_id", nodeID, "test_id", ep.TestID, "message", ep.Message)
		c.registry.UpdateStatus(nodeID, cluster.NodeStatusError)

	case cluster.MessageTypeShutdown:
		c.logger.InfoKV("👋 节点主动下线", "node_id", nodeID)
		c.hub.Close(nodeID)

	case cluster.MessageTypeHandshake:
		c.logger.WarnKV("收到重复握手消息，已忽略", "node_id", nodeID)

	default:
		c.logger.WarnKV("未知消息类型", "node_id", nodeID, "type", string(msg.Type))
	}
}

// mintSessionToken 为接入节点签发会话令牌
// 使用 HMAC-SHA256 签名并带过期时间，签发异常时降级为简单格式
func (c *Coordinator) mintSessionToken(nodeID string) string {
	type tokenPayload struct {
		NodeID string `json:"node_id"`
	}

	client := sign.NewSignerClient[tokenPayload]().
		WithSecretKey([]byte(c.opts.Secret)).
		WithExpiration(c.opts.TokenExpiration).
		WithIssuer(c.opts.TokenIssuer)

	if _, err := client.WithAlgorithm(sign.AlgorithmSHA256); err != nil {
		return fmt.Sprintf("token-%s-%d", nodeID, time.Now().Unix())
	}

	token, err := client.Create(tokenPayload{NodeID: nodeID})
	if err != nil {
		return fmt.Sprintf("token-%s-%d", nodeID, time.Now().Unix())
	}
	return token
}

// handleStatus 集群状态查询接口
func (c *Coordinator) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(c.Status()); err != nil {
		c.logger.WarnKV("状态查询响应写出失败", "error", err.Error())
	}
}
