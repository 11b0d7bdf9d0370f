/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-07-08 10:45:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-13 14:40:09
 * @FilePath: \slayer\bootstrap\worker.go
 * @Description: Worker 工作节点启动器
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kamalyes/go-logger"
	"github.com/sudoinstallopsecc/slayer/distributed/cluster"
	"github.com/sudoinstallopsecc/slayer/distributed/worker"
)

// WorkerOptions Worker 启动选项
type WorkerOptions struct {
	NodeID            string
	MasterURL         string // 主节点接入地址,ws/wss/http/https
	ClusterKey        string // 编码后的集群密钥,必填
	Address           string // 对外声明的地址,缺省自动探测内网IP
	Port              int
	Region            string
	HeartbeatInterval time.Duration // 缺省采用主节点下发值
	MetricsInterval   time.Duration // 缺省采用主节点下发值
	Logger            logger.ILogger
}

// RunWorker 运行工作节点
func RunWorker(opts WorkerOptions) error {
	opts.Logger.Info("🤖 启动工作节点...")

	if opts.MasterURL == "" {
		return fmt.Errorf("工作节点必须指定主节点地址 (-master)")
	}
	// 密钥必须显式下发，不回退到任何临时密钥
	if opts.ClusterKey == "" {
		return fmt.Errorf("工作节点必须显式提供集群密钥 (-cluster-key)")
	}
	key, err := cluster.DecodeKey(opts.ClusterKey)
	if err != nil {
		return fmt.Errorf("集群密钥无效: %w", err)
	}

	var caps map[string]interface{}
	if opts.Region != "" {
		caps = map[string]interface{}{"region": opts.Region}
	}

	w, err := worker.NewWorker(worker.Options{
		NodeID:            opts.NodeID,
		MasterURL:         opts.MasterURL,
		Key:               key,
		Address:           opts.Address,
		Port:              opts.Port,
		Capabilities:      caps,
		HeartbeatInterval: opts.HeartbeatInterval,
		MetricsInterval:   opts.MetricsInterval,
		Logger:            opts.Logger,
	})
	if err != nil {
		return fmt.Errorf("创建工作节点失败: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 监听信号
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		opts.Logger.Warn("\n\n⚠️  收到中断信号，正在停止...")
		w.Stop()
		cancel()
	}()

	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("启动工作节点失败: %w", err)
	}

	opts.Logger.Info("✅ 工作节点运行中...")
	opts.Logger.Infof("   节点ID: %s", w.NodeID())
	opts.Logger.Infof("   主节点: %s", opts.MasterURL)
	if opts.Region != "" {
		opts.Logger.Infof("   区域: %s", opts.Region)
	}

	// 会话结束（主节点关闭连接或本地 Stop）即退出
	select {
	case <-w.Done():
		opts.Logger.Warn("🔌 与主节点的会话已结束")
	case <-ctx.Done():
	}

	opts.Logger.Info("👋 工作节点已停止")
	return nil
}
