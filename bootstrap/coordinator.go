/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-07-08 10:15:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-13 14:02:31
 * @FilePath: \slayer\bootstrap\coordinator.go
 * @Description: Coordinator 集群协调器启动器
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kamalyes/go-logger"
	"github.com/sudoinstallopsecc/slayer/config"
	"github.com/sudoinstallopsecc/slayer/distributed/cluster"
	"github.com/sudoinstallopsecc/slayer/distributed/coordinator"
)

// CoordinatorOptions Coordinator 启动选项
type CoordinatorOptions struct {
	NodeID     string
	Addr       string // 集群监听地址,默认 ":8765"
	ClusterKey string // 编码后的集群密钥,为空时本进程生成临时密钥
	Secret     string // 会话令牌签发密钥

	TokenExpiration time.Duration // Token 过期时间,默认 24h
	TokenIssuer     string        // Token 签发者,默认 "slayer-master"

	HeartbeatInterval time.Duration // 下发给工作节点的心跳间隔,默认 10s
	HeartbeatTimeout  time.Duration // 心跳超时判定,默认 30s
	MonitorInterval   time.Duration // 心跳巡检周期,默认 10s
	MetricsInterval   time.Duration // 指标推送周期,默认 5s
	StartDelay        time.Duration // 同步起跑延迟,默认 10s
	SyncInterval      time.Duration // 多节点同步间隔,默认 5s
	MaxRPSPerNode     float64       // 单节点速率上限,默认 1000

	// 自动下发：给定配置后等工作节点就绪即开始测试
	ConfigFile  string
	ConfigFunc  func() *config.EngineConfig
	MinWorkers  int           // 下发前最少就绪节点数,默认 1
	WaitTimeout time.Duration // 等待就绪上限,默认 2m

	Logger logger.ILogger
}

// RunCoordinator 运行协调器节点
func RunCoordinator(opts CoordinatorOptions) error {
	opts.Logger.Info("🎯 启动协调器节点...")

	var key []byte
	if opts.ClusterKey != "" {
		decoded, err := cluster.DecodeKey(opts.ClusterKey)
		if err != nil {
			return fmt.Errorf("集群密钥无效: %w", err)
		}
		key = decoded
	}

	c, err := coordinator.NewCoordinator(coordinator.Options{
		NodeID:            opts.NodeID,
		Addr:              opts.Addr,
		Key:               key,
		Secret:            opts.Secret,
		TokenExpiration:   opts.TokenExpiration,
		TokenIssuer:       opts.TokenIssuer,
		HeartbeatInterval: opts.HeartbeatInterval,
		HeartbeatTimeout:  opts.HeartbeatTimeout,
		MonitorInterval:   opts.MonitorInterval,
		MetricsInterval:   opts.MetricsInterval,
		StartDelay:        opts.StartDelay,
		SyncInterval:      opts.SyncInterval,
		MaxRPSPerNode:     opts.MaxRPSPerNode,
		Logger:            opts.Logger,
	})
	if err != nil {
		return fmt.Errorf("创建协调器失败: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 监听信号
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		opts.Logger.Warn("\n\n⚠️  收到中断信号，正在停止...")
		cancel()
		c.Stop()
	}()

	if err := c.Start(ctx); err != nil {
		return fmt.Errorf("启动协调器失败: %w", err)
	}

	opts.Logger.Info("✅ 协调器运行中...")
	opts.Logger.Infof("   节点ID: %s", c.NodeID())
	opts.Logger.Infof("   集群接入点: ws://%s/cluster", c.Addr())
	opts.Logger.Infof("   状态查询: http://%s/status", c.Addr())
	opts.Logger.Info("\n💡 使用以下命令接入工作节点:")
	opts.Logger.Infof("   slayer -mode worker -master ws://<主机>:%s/cluster -cluster-key <密钥>", portOf(c.Addr()))

	// 携带配置时自动下发：等足量工作节点就绪后开始测试
	if opts.ConfigFile != "" || opts.ConfigFunc != nil {
		if err := submitTest(ctx, c, &opts); err != nil && !errors.Is(err, context.Canceled) {
			c.Stop()
			return err
		}
	}

	// 等待退出
	<-ctx.Done()
	opts.Logger.Info("👋 协调器已停止")
	return nil
}

// submitTest 加载配置并在工作节点就绪后下发测试
func submitTest(ctx context.Context, c *coordinator.Coordinator, opts *CoordinatorOptions) error {
	var cfg *config.EngineConfig
	var err error

	if opts.ConfigFile != "" {
		opts.Logger.Infof("📄 加载配置文件: %s", opts.ConfigFile)
		cfg, err = config.NewLoader(opts.Logger).LoadFromFile(opts.ConfigFile)
		if err != nil {
			return fmt.Errorf("加载配置文件失败: %w", err)
		}
	} else {
		cfg = opts.ConfigFunc()
	}

	minWorkers := opts.MinWorkers
	if minWorkers <= 0 {
		minWorkers = 1
	}
	if err := waitForWorkers(ctx, c, minWorkers, opts.WaitTimeout, opts.Logger); err != nil {
		return err
	}

	testID, err := c.StartTest(cfg)
	if err != nil {
		return fmt.Errorf("下发测试失败: %w", err)
	}
	opts.Logger.Infof("🚀 测试已下发: %s", testID)
	return nil
}

// waitForWorkers 轮询等待就绪工作节点数达标
func waitForWorkers(ctx context.Context, c *coordinator.Coordinator, min int, timeout time.Duration, log logger.ILogger) error {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	log.Infof("⏳ 等待至少 %d 个工作节点就绪（最长 %s）...", min, timeout)

	deadline := time.After(timeout)
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return fmt.Errorf("等待工作节点超时: %s 内就绪数未达到 %d", timeout, min)
		case <-ticker.C:
			if ready := readyWorkers(c); ready >= min {
				log.Infof("✅ 工作节点已就绪: %d 个", ready)
				return nil
			}
		}
	}
}

// readyWorkers 统计就绪且在线的工作节点数
func readyWorkers(c *coordinator.Coordinator) int {
	count := 0
	for _, rec := range c.Status().Nodes {
		if rec.Role == cluster.NodeRoleWorker && rec.Status == cluster.NodeStatusReady && rec.Connected {
			count++
		}
	}
	return count
}

// portOf 从 host:port 中取端口展示用，取不到时原样返回
func portOf(addr string) string {
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			return addr[i+1:]
		}
	}
	return addr
}
