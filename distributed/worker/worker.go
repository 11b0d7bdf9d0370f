/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-07-07 10:30:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-12 16:44:12
 * @FilePath: \slayer\distributed\worker\worker.go
 * @Description: 集群工作节点 - 接入主节点、承接测试指令并回报心跳与指标
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/kamalyes/go-logger"
	"github.com/kamalyes/go-toolbox/pkg/mathx"
	"github.com/kamalyes/go-toolbox/pkg/netx"
	"github.com/kamalyes/go-toolbox/pkg/osx"
	"github.com/kamalyes/go-toolbox/pkg/syncx"
	"github.com/sudoinstallopsecc/slayer/config"
	"github.com/sudoinstallopsecc/slayer/distributed/cluster"
	"github.com/sudoinstallopsecc/slayer/engine"
)

var (
	// ErrMissingMasterURL 未配置主节点地址
	ErrMissingMasterURL = errors.New("必须配置主节点地址")
	// ErrMissingKey 集群密钥必须由外部显式提供
	ErrMissingKey = errors.New("必须配置集群密钥")
	// ErrNotConnected 当前没有与主节点的活跃连接
	ErrNotConnected = errors.New("未连接到主节点")
)

// Options 工作节点配置
type Options struct {
	NodeID string // 节点标识，缺省自动生成

	// MasterURL 主节点地址，如 ws://host:8765/cluster。
	// http/https 自动转换为 ws/wss，未带路径时默认接 /cluster
	MasterURL string

	// Key 集群对称密钥（16/24/32字节），必填：
	// 工作节点没有密钥无法完成任何握手，不提供临时生成
	Key []byte

	Role         cluster.NodeRole       // 缺省 worker
	Address      string                 // 上报地址，缺省取本机内网IP
	Port         int                    // 上报端口，可选
	Capabilities map[string]interface{} // 能力声明，缺省附带CPU核数与主机名

	HandshakeTimeout  time.Duration // 握手等待上限，缺省10秒
	HeartbeatInterval time.Duration // 心跳间隔；为0时采用主节点下发值
	MetricsInterval   time.Duration // 指标推送间隔；为0时采用主节点下发值

	Logger logger.ILogger
}

// testRun 工作节点上的单次测试会话
type testRun struct {
	id     string
	eng    *engine.Engine
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func (r *testRun) markDone() {
	r.once.Do(func() { close(r.done) })
}

// Worker 集群工作节点
// 与主节点维持一条加密 WebSocket 会话：承接测试指令驱动本地引擎，
// 周期回报心跳（含资源占用）与指标快照。会话断开即结束，不自动重连
type Worker struct {
	opts   Options
	nodeID string
	logger logger.ILogger

	crypto *cluster.MessageCrypto
	dialer *websocket.Dialer
	url    string

	conn    *websocket.Conn
	writeMu sync.Mutex // 串行化写帧，兼作 conn 指针保护

	mu           sync.Mutex // 保护以下会话态
	current      *testRun
	status       cluster.NodeStatus
	clusterCfg   *cluster.ClusterConfig
	sessionToken string
	done         chan struct{}

	monitor *ResourceMonitor
	tasks   *syncx.PeriodicTaskManager
	running *syncx.Bool
	cancel  context.CancelFunc
}

// NewWorker 创建工作节点
func NewWorker(opts Options) (*Worker, error) {
	if opts.MasterURL == "" {
		return nil, ErrMissingMasterURL
	}
	if len(opts.Key) == 0 {
		return nil, ErrMissingKey
	}
	crypto, err := cluster.NewMessageCrypto(opts.Key)
	if err != nil {
		return nil, err
	}

	opts.NodeID = mathx.IfEmpty(opts.NodeID, "worker-"+uuid.NewString()[:8])
	if opts.Role == "" {
		opts.Role = cluster.NodeRoleWorker
	}
	if !opts.Role.Valid() {
		return nil, fmt.Errorf("非法节点角色: %q", opts.Role)
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewLogger(nil)
	}
	if opts.Address == "" {
		ip, err := netx.GetPrivateIP()
		if err != nil {
			ip = "127.0.0.1"
		}
		opts.Address = ip
	}
	if opts.Capabilities == nil {
		opts.Capabilities = map[string]interface{}{}
	}
	if _, ok := opts.Capabilities["cpu_cores"]; !ok {
		opts.Capabilities["cpu_cores"] = runtime.NumCPU()
	}
	if _, ok := opts.Capabilities["hostname"]; !ok {
		opts.Capabilities["hostname"] = osx.SafeGetHostName()
	}

	endpoint, err := normalizeMasterURL(opts.MasterURL)
	if err != nil {
		return nil, err
	}

	return &Worker{
		opts:   opts,
		nodeID: opts.NodeID,
		logger: opts.Logger,
		crypto: crypto,
		dialer: &websocket.Dialer{
			HandshakeTimeout: opts.HandshakeTimeout,
			Proxy:            http.ProxyFromEnvironment,
		},
		url:     endpoint,
		status:  cluster.NodeStatusInitializing,
		monitor: NewResourceMonitor(opts.Logger),
		running: syncx.NewBool(false),
	}, nil
}

// normalizeMasterURL 校验主节点地址并归一化协议与路径
func normalizeMasterURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("非法的主节点地址: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("非法的主节点地址协议: %s（需要 ws 或 wss）", u.Scheme)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/cluster"
	}
	return u.String(), nil
}

// Start 接入集群：建连握手成功后开启心跳/指标任务与读循环
func (w *Worker) Start(ctx context.Context) error {
	if !w.running.CAS(false, true) {
		return fmt.Errorf("工作节点已在运行")
	}

	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	if err := w.connect(ctx); err != nil {
		w.running.Store(false)
		cancel()
		return err
	}

	w.mu.Lock()
	w.done = make(chan struct{})
	w.mu.Unlock()

	w.startTasks(ctx)
	go w.readLoop(ctx)

	w.logger.InfoKV("🚀 工作节点已启动",
		"node_id", w.nodeID,
		"master", w.url,
		"heartbeat", w.heartbeatEvery().String(),
		"metrics", w.metricsEvery().String())
	return nil
}

// Stop 主动退出集群：通知主节点后关断会话
func (w *Worker) Stop() error {
	if !w.running.Load() {
		return fmt.Errorf("工作节点未在运行")
	}
	w.teardown(true)
	w.logger.InfoKV("👋 工作节点已停止", "node_id", w.nodeID)
	return nil
}

// teardown 收束会话：通知、取消任务与测试、关闭连接
func (w *Worker) teardown(sendNotice bool) {
	if !w.running.CAS(true, false) {
		return
	}
	if sendNotice {
		_ = w.send(cluster.MessageTypeShutdown, &cluster.ShutdownPayload{Reason: "worker stopping"})
	}
	if w.cancel != nil {
		w.cancel()
	}
	w.writeMu.Lock()
	if w.conn != nil {
		_ = w.conn.Close()
	}
	w.writeMu.Unlock()
	w.setStatus(cluster.NodeStatusDisconnected)
}

// Done 当前会话结束信号；未启动时永不触发
func (w *Worker) Done() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.done
}

// NodeID 节点标识
func (w *Worker) NodeID() string {
	return w.nodeID
}

// IsRunning 会话是否存活
func (w *Worker) IsRunning() bool {
	return w.running.Load()
}

// Status 节点当前状态
func (w *Worker) Status() cluster.NodeStatus {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

// SessionToken 握手取得的会话令牌
func (w *Worker) SessionToken() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sessionToken
}

// ClusterConfig 主节点下发的集群参数
func (w *Worker) ClusterConfig() *cluster.ClusterConfig {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.clusterCfg
}

// CurrentTestID 正在执行的测试ID，空闲时为空串
func (w *Worker) CurrentTestID() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.current == nil {
		return ""
	}
	return w.current.id
}

func (w *Worker) setStatus(status cluster.NodeStatus) {
	w.mu.Lock()
	w.status = status
	w.mu.Unlock()
}

func (w *Worker) currentRun() *testRun {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// connect 建立连接并完成加密握手
func (w *Worker) connect(ctx context.Context) error {
	conn, httpResp, err := w.dialer.DialContext(ctx, w.url, nil)
	if err != nil {
		return fmt.Errorf("连接主节点失败: %w", err)
	}
	if httpResp != nil {
		httpResp.Body.Close()
	}

	hs, err := cluster.NewMessage(cluster.MessageTypeHandshake, w.nodeID, &cluster.HandshakePayload{
		NodeID:       w.nodeID,
		Role:         w.opts.Role,
		Address:      w.opts.Address,
		Port:         w.opts.Port,
		Capabilities: w.opts.Capabilities,
	})
	if err != nil {
		conn.Close()
		return err
	}
	sealed, err := w.crypto.Seal(hs)
	if err != nil {
		conn.Close()
		return err
	}
	if err := conn.WriteMessage(websocket.TextMessage, sealed); err != nil {
		conn.Close()
		return fmt.Errorf("发送握手消息失败: %w", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(w.opts.HandshakeTimeout))
	_, data, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		return fmt.Errorf("等待握手应答失败: %w", err)
	}
	reply, err := w.crypto.Open(data)
	if err != nil {
		conn.Close()
		return fmt.Errorf("握手应答解密失败: %w", err)
	}
	if reply.Type != cluster.MessageTypeHandshake {
		conn.Close()
		return fmt.Errorf("握手应答类型异常: %s", reply.Type)
	}
	var hr cluster.HandshakeReply
	if err := reply.DecodePayload(&hr); err != nil {
		conn.Close()
		return fmt.Errorf("解析握手应答失败: %w", err)
	}
	if hr.Status != cluster.HandshakeAccepted {
		conn.Close()
		return fmt.Errorf("主节点拒绝接入: %s", hr.Status)
	}
	_ = conn.SetReadDeadline(time.Time{})

	w.writeMu.Lock()
	w.conn = conn
	w.writeMu.Unlock()

	w.mu.Lock()
	w.sessionToken = hr.SessionToken
	w.clusterCfg = hr.ClusterConfig
	w.status = cluster.NodeStatusReady
	w.mu.Unlock()

	w.logger.InfoKV("🤝 已接入集群",
		"node_id", w.nodeID,
		"coordinator", hr.CoordinatorID,
		"role", string(w.opts.Role))
	return nil
}

// heartbeatEvery 心跳间隔：本地配置优先，其次采用集群下发值
func (w *Worker) heartbeatEvery() time.Duration {
	if w.opts.HeartbeatInterval > 0 {
		return w.opts.HeartbeatInterval
	}
	return w.ClusterConfig().HeartbeatEvery()
}

// metricsEvery 指标推送间隔：本地配置优先，其次采用集群下发值
func (w *Worker) metricsEvery() time.Duration {
	if w.opts.MetricsInterval > 0 {
		return w.opts.MetricsInterval
	}
	return w.ClusterConfig().MetricsEvery()
}

// startTasks 启动心跳与指标推送周期任务，随上下文结束
func (w *Worker) startTasks(ctx context.Context) {
	w.tasks = syncx.NewPeriodicTaskManager()

	heartbeat := syncx.NewPeriodicTask("cluster-heartbeat", w.heartbeatEvery(), func(taskCtx context.Context) error {
		return w.sendHeartbeat()
	}).SetOnError(func(name string, err error) {
		w.logger.WarnKV("心跳发送失败", "task", name, "error", err.Error())
	})

	metricsPush := syncx.NewPeriodicTask("cluster-metrics", w.metricsEvery(), func(taskCtx context.Context) error {
		return w.pushMetrics()
	}).SetOnError(func(name string, err error) {
		w.logger.WarnKV("指标推送失败", "task", name, "error", err.Error())
	})

	w.tasks.AddTask(heartbeat)
	w.tasks.AddTask(metricsPush)
	w.tasks.StartWithContext(ctx)
}

// sendHeartbeat 上报当前状态与资源占用
func (w *Worker) sendHeartbeat() error {
	payload := &cluster.HeartbeatPayload{
		Status:    w.Status(),
		Resources: w.monitor.Collect(),
	}
	return w.send(cluster.MessageTypeHeartbeat, payload)
}

// pushMetrics 推送运行中测试的指标快照，空闲时跳过
func (w *Worker) pushMetrics() error {
	run := w.currentRun()
	if run == nil {
		return nil
	}
	s := run.eng.Collector().Snapshot()
	return w.send(cluster.MessageTypeMetrics, &cluster.NodeMetrics{
		TotalRequests:      s.TotalRequests,
		SuccessfulRequests: s.SuccessfulRequests,
		FailedRequests:     s.FailedRequests,
		ErrorRate:          s.ErrorRate,
		AvgResponseTime:    s.ResponseTimes.Avg,
		P95ResponseTime:    s.ResponseTimes.P95,
		CurrentRPS:         s.CurrentRPS,
	})
}

// send 加密并写出一条消息
func (w *Worker) send(msgType cluster.MessageType, payload interface{}) error {
	msg, err := cluster.NewMessage(msgType, w.nodeID, payload)
	if err != nil {
		return err
	}
	data, err := w.crypto.Seal(msg)
	if err != nil {
		return err
	}
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	if w.conn == nil {
		return ErrNotConnected
	}
	return w.conn.WriteMessage(websocket.TextMessage, data)
}

// readLoop 持续读取主节点消息；连接断开即结束会话
func (w *Worker) readLoop(ctx context.Context) {
	w.writeMu.Lock()
	conn := w.conn
	w.writeMu.Unlock()
	w.mu.Lock()
	done := w.done
	w.mu.Unlock()
	defer close(done)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || !w.running.Load() {
				return
			}
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure) {
				w.logger.InfoKV("🔌 主节点已关闭连接", "node_id", w.nodeID)
			} else {
				w.logger.WarnKV("与主节点的连接中断", "node_id", w.nodeID, "error", err.Error())
			}
			w.teardown(false)
			return
		}
		w.handleMessage(ctx, data)
	}
}

// handleMessage 解密并分发一条入站消息，解密失败直接丢弃
func (w *Worker) handleMessage(ctx context.Context, data []byte) {
	msg, err := w.crypto.Open(data)
	if err != nil {
		w.logger.WarnKV("🔒 收到无法解密的消息，已丢弃", "error", err.Error())
		return
	}

	switch msg.Type {
	case cluster.MessageTypeCommand:
		var cp cluster.CommandPayload
		if err := msg.DecodePayload(&cp); err != nil {
			w.logger.WarnKV("指令载荷非法", "error", err.Error())
			return
		}
		w.handleCommand(ctx, &cp)

	case cluster.MessageTypeShutdown:
		w.logger.InfoKV("👋 收到主节点下线通知", "node_id", w.nodeID)

	case cluster.MessageTypeError:
		var ep cluster.ErrorPayload
		if err := msg.DecodePayload(&ep); err == nil {
			w.logger.ErrorKV("💥 主节点上报错误", "message", ep.Message)
		}

	default:
		w.logger.WarnKV("未知消息类型", "type", string(msg.Type))
	}
}

// handleCommand 分发测试指令
func (w *Worker) handleCommand(ctx context.Context, cp *cluster.CommandPayload) {
	switch cp.Command {
	case cluster.CommandStartTest:
		w.startLocalTest(ctx, cp)
	case cluster.CommandStopTest:
		w.stopLocalTest(cp.TestID)
	default:
		w.logger.WarnKV("未知测试指令", "command", cp.Command, "test_id", cp.TestID)
	}
}

// startLocalTest 按指令在本地启动压测引擎
// 单节点同一时刻只承接一个测试；分配速率覆盖配置中的目标速率
func (w *Worker) startLocalTest(ctx context.Context, cp *cluster.CommandPayload) {
	w.mu.Lock()
	if w.current != nil {
		runningID := w.current.id
		w.mu.Unlock()
		w.logger.WarnKV("⏭️ 已有测试在运行，拒绝新指令", "running_test", runningID, "test_id", cp.TestID)
		w.reportError(cp.TestID, "节点正忙，已有测试在运行")
		return
	}
	w.mu.Unlock()

	var cfg config.EngineConfig
	if err := json.Unmarshal(cp.Config, &cfg); err != nil {
		w.logger.ErrorKV("❌ 解析测试配置失败", "test_id", cp.TestID, "error", err.Error())
		w.reportError(cp.TestID, fmt.Sprintf("解析测试配置失败: %v", err))
		return
	}
	if cp.Assignment != nil && cp.Assignment.AssignedRate > 0 {
		cfg.TargetRPS = float64(cp.Assignment.AssignedRate)
	}

	eng, err := engine.NewEngine(&cfg, engine.Options{NodeID: w.nodeID, Logger: w.logger})
	if err != nil {
		w.logger.ErrorKV("❌ 创建压测引擎失败", "test_id", cp.TestID, "error", err.Error())
		w.reportError(cp.TestID, fmt.Sprintf("创建压测引擎失败: %v", err))
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	run := &testRun{
		id:     cp.TestID,
		eng:    eng,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	w.mu.Lock()
	w.current = run
	w.status = cluster.NodeStatusRunning
	w.mu.Unlock()
	w.sendStatusUpdate(cluster.NodeStatusRunning, cp.TestID)

	var rate float64
	if cp.Assignment != nil {
		rate = float64(cp.Assignment.AssignedRate)
		w.logger.InfoKV("🎯 收到测试指令",
			"test_id", cp.TestID,
			"assigned_rate", cp.Assignment.AssignedRate,
			"node_index", cp.Assignment.NodeIndex,
			"total_nodes", cp.Assignment.TotalNodes)
	} else {
		rate = cfg.TargetRPS
		w.logger.InfoKV("🎯 收到测试指令", "test_id", cp.TestID, "rate", rate)
	}

	coordination := cp.Coordination
	syncx.Go().
		OnError(func(err error) {
			w.logger.ErrorKV("测试协程异常", "test_id", run.id, "error", err.Error())
		}).
		OnPanic(func(r interface{}) {
			w.logger.ErrorKV("💥 测试协程崩溃", "test_id", run.id, "panic", fmt.Sprintf("%v", r))
			w.finishTest(run, fmt.Errorf("panic: %v", r))
		}).
		ExecWithContext(func(_ context.Context) error {
			// 等待约定起跑时刻，确保各节点同时开始
			if coordination != nil {
				if wait := time.Until(coordination.StartAt()); wait > 0 {
					w.logger.Infof("等待同步起跑，%s 后开始", wait.Round(time.Millisecond))
					select {
					case <-time.After(wait):
					case <-runCtx.Done():
						w.finishTest(run, context.Canceled)
						return nil
					}
				}
			}
			w.logger.InfoKV("🏁 测试起跑", "test_id", run.id)
			_, runErr := eng.Run(runCtx)
			w.finishTest(run, runErr)
			return nil
		})
}

// stopLocalTest 停止当前测试；无匹配测试时仅记录
func (w *Worker) stopLocalTest(testID string) {
	run := w.currentRun()
	if run == nil || (testID != "" && run.id != testID) {
		w.logger.WarnKV("收到停止指令但无匹配测试", "test_id", testID)
		return
	}
	w.logger.InfoKV("⛔ 按指令停止测试", "test_id", run.id)
	run.cancel()
}

// finishTest 测试收尾：补推最终指标、恢复就绪并上报结果
func (w *Worker) finishTest(run *testRun, runErr error) {
	// 清理 current 之前补推一次，主节点拿到最终快照
	if err := w.pushMetrics(); err != nil {
		w.logger.DebugKV("最终指标推送失败", "test_id", run.id, "error", err.Error())
	}

	w.mu.Lock()
	if w.current == run {
		w.current = nil
		if w.status == cluster.NodeStatusRunning {
			w.status = cluster.NodeStatusReady
		}
	}
	w.mu.Unlock()
	run.cancel()
	run.markDone()

	switch {
	case runErr == nil:
		w.logger.InfoKV("🎉 测试完成", "test_id", run.id)
	case errors.Is(runErr, context.Canceled):
		w.logger.InfoKV("⛔ 测试已停止", "test_id", run.id)
	default:
		w.logger.ErrorKV("❌ 测试失败", "test_id", run.id, "error", runErr.Error())
		w.reportError(run.id, runErr.Error())
	}
	w.sendStatusUpdate(w.Status(), run.id)
}

// sendStatusUpdate 上报状态变化，失败仅记录
func (w *Worker) sendStatusUpdate(status cluster.NodeStatus, testID string) {
	if err := w.send(cluster.MessageTypeStatusUpdate, &cluster.StatusUpdatePayload{
		Status: status,
		TestID: testID,
	}); err != nil {
		w.logger.DebugKV("状态上报失败", "status", string(status), "error", err.Error())
	}
}

// reportError 上报执行错误，失败仅记录
func (w *Worker) reportError(testID, message string) {
	if err := w.send(cluster.MessageTypeError, &cluster.ErrorPayload{
		TestID:  testID,
		Message: message,
	}); err != nil {
		w.logger.DebugKV("错误上报失败", "test_id", testID, "error", err.Error())
	}
}
