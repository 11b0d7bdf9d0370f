/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-07-05 14:50:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-10 18:05:29
 * @FilePath: \slayer\distributed\coordinator\coordinator.go
 * @Description: 集群协调器主控 - 节点接入、测试下发与集群状态
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/kamalyes/go-logger"
	"github.com/kamalyes/go-toolbox/pkg/mathx"
	"github.com/kamalyes/go-toolbox/pkg/syncx"
	"github.com/sudoinstallopsecc/slayer/config"
	"github.com/sudoinstallopsecc/slayer/distributed/cluster"
)

var (
	// ErrNoWorkers 当前没有可分配测试的工作节点
	ErrNoWorkers = errors.New("没有可用的工作节点")
	// ErrUnknownTest 指定的测试不存在或已停止
	ErrUnknownTest = errors.New("未知的测试")
)

// Options 协调器配置
type Options struct {
	NodeID string // 协调器标识，缺省自动生成
	Addr   string // 监听地址，缺省 ":8765"，支持 ":0" 随机端口

	// Key 集群对称密钥（16/24/32字节）。缺省时本进程生成一把临时
	// 随机密钥并在日志中公布编码值，工作节点凭该值接入
	Key []byte

	Secret          string        // 会话令牌签发密钥
	TokenExpiration time.Duration // 会话令牌有效期，缺省24小时
	TokenIssuer     string        // 会话令牌签发者

	HandshakeTimeout  time.Duration // 握手等待上限，缺省10秒
	HeartbeatInterval time.Duration // 下发给节点的心跳间隔，缺省10秒
	HeartbeatTimeout  time.Duration // 心跳超时判定，缺省30秒
	MonitorInterval   time.Duration // 心跳巡检周期，缺省10秒
	MetricsInterval   time.Duration // 指标推送与聚合刷新周期，缺省5秒
	StartDelay        time.Duration // 测试起跑延迟，缺省10秒
	SyncInterval      time.Duration // 多节点同步间隔，缺省5秒
	MaxRPSPerNode     float64       // 单节点速率上限（超出仅告警），缺省1000

	Logger logger.ILogger
}

func (o *Options) normalize() {
	o.NodeID = mathx.IfEmpty(o.NodeID, "master-"+uuid.NewString()[:8])
	o.Addr = mathx.IfEmpty(o.Addr, ":8765")
	o.Secret = mathx.IfEmpty(o.Secret, "slayer-master-default-secret-key")
	o.TokenIssuer = mathx.IfEmpty(o.TokenIssuer, "slayer-master")
	if o.TokenExpiration <= 0 {
		o.TokenExpiration = 24 * time.Hour
	}
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = 10 * time.Second
	}
	if o.HeartbeatInterval <= 0 {
		o.HeartbeatInterval = 10 * time.Second
	}
	if o.HeartbeatTimeout <= 0 {
		o.HeartbeatTimeout = 30 * time.Second
	}
	if o.MonitorInterval <= 0 {
		o.MonitorInterval = 10 * time.Second
	}
	if o.MetricsInterval <= 0 {
		o.MetricsInterval = 5 * time.Second
	}
	if o.StartDelay <= 0 {
		o.StartDelay = 10 * time.Second
	}
	if o.SyncInterval <= 0 {
		o.SyncInterval = 5 * time.Second
	}
	if o.MaxRPSPerNode <= 0 {
		o.MaxRPSPerNode = 1000
	}
	if o.Logger == nil {
		o.Logger = logger.NewLogger(nil)
	}
}

// Coordinator 集群协调器
// 通过加密 WebSocket 接入工作节点，维护节点注册表与指标聚合，
// 将测试目标速率整除分配后下发执行
type Coordinator struct {
	opts   Options
	nodeID string
	logger logger.ILogger

	crypto     *cluster.MessageCrypto
	registry   *NodeRegistry
	hub        *Hub
	aggregator *ClusterAggregator
	monitor    *HeartbeatMonitor

	activeTests *syncx.Map[string, *cluster.TestCommand]

	upgrader websocket.Upgrader
	server   *http.Server
	listener net.Listener

	tasks   *syncx.PeriodicTaskManager
	running *syncx.Bool
	cancel  context.CancelFunc
}

// NewCoordinator 创建协调器
func NewCoordinator(opts Options) (*Coordinator, error) {
	opts.normalize()

	key := opts.Key
	if len(key) == 0 {
		fresh, err := cluster.NewRandomKey()
		if err != nil {
			return nil, err
		}
		key = fresh
		opts.Logger.Warnf("⚠️  未配置集群密钥，已生成临时密钥（仅本进程有效）: %s", cluster.EncodeKey(key))
	}
	crypto, err := cluster.NewMessageCrypto(key)
	if err != nil {
		return nil, err
	}

	registry := NewNodeRegistry()
	hub := NewHub(crypto, opts.Logger)
	aggregator := NewClusterAggregator()

	return &Coordinator{
		opts:        opts,
		nodeID:      opts.NodeID,
		logger:      opts.Logger,
		crypto:      crypto,
		registry:    registry,
		hub:         hub,
		aggregator:  aggregator,
		monitor:     NewHeartbeatMonitor(registry, hub, aggregator, opts.MonitorInterval, opts.HeartbeatTimeout, opts.Logger),
		activeTests: syncx.NewMap[string, *cluster.TestCommand](),
		upgrader: websocket.Upgrader{
			HandshakeTimeout: opts.HandshakeTimeout,
			CheckOrigin:      func(r *http.Request) bool { return true },
		},
		tasks:   syncx.NewPeriodicTaskManager(),
		running: syncx.NewBool(false),
	}, nil
}

// Start 启动协调器：监听集群端口并开启心跳巡检与聚合刷新
func (c *Coordinator) Start(ctx context.Context) error {
	if !c.running.CAS(false, true) {
		return fmt.Errorf("协调器已在运行")
	}

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	ln, err := net.Listen("tcp", c.opts.Addr)
	if err != nil {
		c.running.Store(false)
		cancel()
		return fmt.Errorf("监听集群端口失败: %w", err)
	}
	c.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc("/cluster", c.handleCluster)
	mux.HandleFunc("/status", c.handleStatus)
	c.server = &http.Server{Handler: mux}

	go func() {
		if err := c.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			c.logger.ErrorKV("集群服务异常退出", "error", err.Error())
		}
	}()

	c.monitor.Start(ctx)
	c.startSummaryTask(ctx)

	c.logger.InfoKV("🚀 协调器已启动",
		"node_id", c.nodeID,
		"addr", c.Addr(),
		"heartbeat_timeout", c.opts.HeartbeatTimeout.String())
	return nil
}

// Stop 停止协调器：广播关闭通知后关断全部连接与监听
func (c *Coordinator) Stop() error {
	if !c.running.CAS(true, false) {
		return fmt.Errorf("协调器未在运行")
	}

	// 尽力通知在线节点，失败不阻塞停机
	if msg, err := cluster.NewMessage(cluster.MessageTypeShutdown, c.nodeID,
		&cluster.ShutdownPayload{Reason: "coordinator stopping"}); err == nil {
		c.hub.Broadcast(c.connectedNodeIDs(), msg)
	}

	if c.cancel != nil {
		c.cancel()
	}
	c.hub.CloseAll()

	if c.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.server.Shutdown(ctx); err != nil {
			c.logger.WarnKV("集群服务关闭超时", "error", err.Error())
		}
	}

	c.logger.InfoKV("👋 协调器已停止", "node_id", c.nodeID)
	return nil
}

// Addr 实际监听地址（":0" 启动后可据此取得随机端口）
func (c *Coordinator) Addr() string {
	if c.listener != nil {
		return c.listener.Addr().String()
	}
	return c.opts.Addr
}

// NodeID 协调器标识
func (c *Coordinator) NodeID() string {
	return c.nodeID
}

// IsRunning 是否运行中
func (c *Coordinator) IsRunning() bool {
	return c.running.Load()
}

// Registry 节点注册表（状态查询与测试编排用）
func (c *Coordinator) Registry() *NodeRegistry {
	return c.registry
}

// Aggregator 集群指标聚合器
func (c *Coordinator) Aggregator() *ClusterAggregator {
	return c.aggregator
}

// StartTest 将测试拆分下发到全部就绪的工作节点
// 目标速率整除分配（余数给第一个节点），分得0速率的节点不参与；
// 单节点下发失败仅记录，测试照常推进
func (c *Coordinator) StartTest(cfg *config.EngineConfig) (string, error) {
	if !c.running.Load() {
		return "", fmt.Errorf("协调器未在运行")
	}
	if cfg == nil {
		return "", fmt.Errorf("测试配置不能为空")
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return "", fmt.Errorf("测试配置验证失败: %w", err)
	}

	eligible := c.eligibleWorkers()
	if len(eligible) == 0 {
		return "", ErrNoWorkers
	}

	totalRate := int(math.Round(cfg.TargetRPS))
	shares := SplitRate(totalRate, len(eligible))

	baseCfg, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("序列化测试配置失败: %w", err)
	}

	testID := uuid.NewString()
	coordination := &cluster.CoordinationData{
		StartTime:    float64(time.Now().Add(c.opts.StartDelay).UnixNano()) / float64(time.Second),
		SyncInterval: c.opts.SyncInterval.Seconds(),
	}

	// 剔除分得0速率的节点后重排序号
	included := make([]*cluster.NodeRecord, 0, len(eligible))
	rates := make([]int, 0, len(eligible))
	for i, rec := range eligible {
		if shares[i] <= 0 {
			c.logger.WarnKV("⏭️ 节点分得速率为0，跳过", "node_id", rec.NodeID, "total_rate", totalRate)
			continue
		}
		if float64(shares[i]) > c.opts.MaxRPSPerNode {
			c.logger.Warnf("⚠️  节点 %s 分得速率 %d 超过单节点上限 %.0f", rec.NodeID, shares[i], c.opts.MaxRPSPerNode)
		}
		included = append(included, rec)
		rates = append(rates, shares[i])
	}
	if len(included) == 0 {
		return "", ErrNoWorkers
	}

	cmd := &cluster.TestCommand{
		CommandID:       testID,
		TargetURL:       cfg.TargetURL,
		AssignedNodes:   make([]string, len(included)),
		TotalRate:       totalRate,
		DurationSeconds: cfg.DurationSeconds,
		PatternSpec:     marshalPatternSpec(cfg),
		Coordination:    coordination,
		CreatedAt:       time.Now(),
	}
	for i, rec := range included {
		cmd.AssignedNodes[i] = rec.NodeID
	}
	// 先登记再下发：即使个别节点下发失败，测试也已在册可停
	c.activeTests.Store(testID, cmd)

	for i, rec := range included {
		payload := &cluster.CommandPayload{
			Command: cluster.CommandStartTest,
			TestID:  testID,
			Config:  baseCfg,
			Assignment: &cluster.NodeAssignment{
				NodeID:       rec.NodeID,
				AssignedRate: rates[i],
				NodeIndex:    i,
				TotalNodes:   len(included),
			},
			Coordination: coordination,
		}
		msg, err := cluster.NewMessage(cluster.MessageTypeCommand, c.nodeID, payload)
		if err != nil {
			c.logger.ErrorKV("❌ 构造测试指令失败", "node_id", rec.NodeID, "error", err.Error())
			continue
		}
		if err := c.hub.Send(rec.NodeID, msg); err != nil {
			c.logger.ErrorKV("❌ 测试指令下发失败", "test_id", testID, "node_id", rec.NodeID, "error", err.Error())
		}
	}

	c.logger.InfoKV("🎯 测试已下发",
		"test_id", testID,
		"nodes", len(included),
		"total_rate", totalRate,
		"start_at", coordination.StartAt().Format(time.RFC3339))
	return testID, nil
}

// StopTest 通知参与节点停止测试并移除在册记录
// 广播为尽力而为，无论通知结果如何记录都会移除
func (c *Coordinator) StopTest(testID string) error {
	cmd, ok := c.activeTests.Load(testID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTest, testID)
	}

	notified := 0
	if msg, err := cluster.NewMessage(cluster.MessageTypeCommand, c.nodeID,
		&cluster.CommandPayload{Command: cluster.CommandStopTest, TestID: testID}); err == nil {
		notified = c.hub.Broadcast(cmd.AssignedNodes, msg)
	}
	c.activeTests.Delete(testID)

	c.logger.InfoKV("⛔ 测试已停止", "test_id", testID, "notified", notified)
	return nil
}

// ActiveTests 在册测试ID列表（升序）
func (c *Coordinator) ActiveTests() []string {
	ids := make([]string, 0, c.activeTests.Size())
	c.activeTests.Range(func(id string, _ *cluster.TestCommand) bool {
		ids = append(ids, id)
		return true
	})
	sort.Strings(ids)
	return ids
}

// Status 集群状态快照：节点表、在册测试与聚合指标
func (c *Coordinator) Status() *cluster.ClusterStatus {
	status := cluster.NodeStatusInitializing
	if c.running.Load() {
		status = cluster.NodeStatusReady
	}
	return &cluster.ClusterStatus{
		CoordinatorID: c.nodeID,
		Status:        status,
		Nodes:         c.registry.All(),
		ActiveTests:   c.ActiveTests(),
		Metrics:       c.aggregator.Summary(),
	}
}

// eligibleWorkers 可承接测试的节点：worker 角色、就绪且持有活跃连接
func (c *Coordinator) eligibleWorkers() []*cluster.NodeRecord {
	all := c.registry.All()
	eligible := make([]*cluster.NodeRecord, 0, len(all))
	for _, rec := range all {
		if rec.Role != cluster.NodeRoleWorker || rec.Status != cluster.NodeStatusReady {
			continue
		}
		if !rec.Connected || !c.hub.IsConnected(rec.NodeID) {
			continue
		}
		eligible = append(eligible, rec)
	}
	return eligible
}

// connectedNodeIDs 当前持有活跃连接的节点ID
func (c *Coordinator) connectedNodeIDs() []string {
	ids := make([]string, 0, c.hub.ConnectedCount())
	for _, rec := range c.registry.All() {
		if rec.Connected && c.hub.IsConnected(rec.NodeID) {
			ids = append(ids, rec.NodeID)
		}
	}
	return ids
}

// startSummaryTask 周期输出集群聚合摘要，随上下文结束
func (c *Coordinator) startSummaryTask(ctx context.Context) {
	task := syncx.NewPeriodicTask("cluster-summary", c.opts.MetricsInterval, func(taskCtx context.Context) error {
		s := c.aggregator.Summary()
		if s.ActiveNodes == 0 {
			return nil
		}
		c.logger.DebugKV("📊 集群聚合指标",
			"nodes", s.ActiveNodes,
			"total", s.TotalRequests,
			"error_rate", fmt.Sprintf("%.2f%%", s.ErrorRate),
			"avg_rt", fmt.Sprintf("%.2fms", s.AvgResponseTime),
			"rps", fmt.Sprintf("%.1f", s.CurrentRPS))
		return nil
	}).SetOnError(func(name string, err error) {
		c.logger.WarnKV("聚合摘要任务异常", "task", name, "error", err.Error())
	})
	c.tasks.AddTask(task)
	c.tasks.StartWithContext(ctx)
}

// clusterConfig 握手应答中下发的集群参数
func (c *Coordinator) clusterConfig() *cluster.ClusterConfig {
	return &cluster.ClusterConfig{
		CoordinatorID:     c.nodeID,
		HeartbeatInterval: c.opts.HeartbeatInterval.Seconds(),
		MetricsInterval:   c.opts.MetricsInterval.Seconds(),
		MaxRPSPerNode:     c.opts.MaxRPSPerNode,
		SecurityEnabled:   true,
	}
}

// marshalPatternSpec 提取测试的负载模式描述（仅存档用）
func marshalPatternSpec(cfg *config.EngineConfig) json.RawMessage {
	switch {
	case len(cfg.Patterns) > 0:
		if data, err := json.Marshal(cfg.Patterns); err == nil {
			return data
		}
	case cfg.Pattern != nil:
		if data, err := json.Marshal(cfg.Pattern); err == nil {
			return data
		}
	}
	return nil
}
