/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-06-26 09:10:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-07-25 16:22:18
 * @FilePath: \slayer\engine\engine.go
 * @Description: 压测引擎 - 串联调度器、限流器、执行客户端与指标收集
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kamalyes/go-logger"
	"github.com/kamalyes/go-toolbox/pkg/idgen"
	"github.com/kamalyes/go-toolbox/pkg/mathx"
	"github.com/kamalyes/go-toolbox/pkg/syncx"

	"github.com/sudoinstallopsecc/slayer/config"
	"github.com/sudoinstallopsecc/slayer/metrics"
	"github.com/sudoinstallopsecc/slayer/pattern"
	"github.com/sudoinstallopsecc/slayer/protocol"
	"github.com/sudoinstallopsecc/slayer/storage"
	"github.com/sudoinstallopsecc/slayer/throttle"
	"github.com/sudoinstallopsecc/slayer/types"
	"github.com/sudoinstallopsecc/slayer/verify"
)

var (
	// ErrNilConfig 配置为空
	ErrNilConfig = errors.New("引擎配置不能为空")
	// ErrAlreadyRunning 引擎已在运行
	ErrAlreadyRunning = errors.New("引擎已在运行中")
	// ErrEmergencyStopped 限流器触发紧急停止，测试提前终止
	ErrEmergencyStopped = errors.New("限流器已紧急停止")
)

// sloCheckInterval SLO周期评估间隔
const sloCheckInterval = 5 * time.Second

// ResultReporter 结果外发回调（分布式模式下由工作节点注入，向主节点上报）
type ResultReporter func(result *types.RequestResult)

// Options 引擎装配选项
// 零值可用：缺省时使用本地节点ID、默认日志器、按配置新建收集器与HTTP客户端
type Options struct {
	NodeID    string             // 节点标识，缺省 "local"
	Logger    logger.ILogger     // 日志器
	Collector *metrics.Collector // 外部收集器（分布式模式复用）
	Client    types.Client       // 自定义执行客户端（默认按配置创建 HTTP 客户端）
	Sink      storage.Interface  // 请求明细落盘（可选，生命周期由调用方管理）
	Reporter  ResultReporter     // 结果外发回调（可选）
}

// Engine 单节点压测引擎
// 每个派发事件经限流器裁决后交由工作协程执行，
// 结果同时写入指标收集器、限流器健康窗口、明细存储与外发回调
type Engine struct {
	cfg    *config.EngineConfig
	nodeID string
	logger logger.ILogger

	throttle  *throttle.AdaptiveThrottle
	collector *metrics.Collector
	client    types.Client
	verifier  *verify.Registry
	sink      storage.Interface
	reporter  ResultReporter

	idGen   *idgen.SnowflakeGenerator
	running *syncx.Bool
	dropped *syncx.Uint64 // 被限流丢弃的派发数
}

// NewEngine 创建压测引擎
// 配置会先归一化再校验，非法配置直接拒绝
func NewEngine(cfg *config.EngineConfig, opts Options) (*Engine, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewLogger(nil)
	}

	thr := throttle.NewAdaptiveThrottle(cfg.ThrottleConfig(), log)

	collector := opts.Collector
	if collector == nil {
		collector = metrics.NewCollector(log)
	}

	// 标准SLO先注册，配置中的同名规则覆盖
	for _, rule := range thr.StandardSLOs() {
		if err := collector.AddSLO(rule); err != nil {
			log.Warnf("⚠️  标准SLO注册失败 [%s]: %v", rule.Name, err)
		}
	}
	for _, rule := range cfg.SLOs {
		if err := collector.AddSLO(rule); err != nil {
			log.Warnf("⚠️  SLO注册失败 [%s]: %v", rule.Name, err)
		}
	}

	client := opts.Client
	if client == nil {
		client = protocol.NewHTTPClient(clientOptions(cfg))
	}

	return &Engine{
		cfg:       cfg,
		nodeID:    mathx.IfEmpty(opts.NodeID, "local"),
		logger:    log,
		throttle:  thr,
		collector: collector,
		client:    client,
		verifier:  verify.NewRegistry(log),
		sink:      opts.Sink,
		reporter:  opts.Reporter,
		idGen:     idgen.NewSnowflakeGenerator(1, 1),
		running:   syncx.NewBool(false),
		dropped:   syncx.NewUint64(0),
	}, nil
}

// clientOptions 从引擎配置提取HTTP客户端选项
func clientOptions(cfg *config.EngineConfig) protocol.ClientOptions {
	if cfg.Client != nil {
		opts := *cfg.Client
		if opts.Timeout <= 0 {
			opts.Timeout = cfg.Timeout
		}
		return opts
	}
	return protocol.ClientOptions{Timeout: cfg.Timeout}
}

// Run 执行完整压测流程：逐阶段派发、限流裁决、并发执行、汇总报告
// 被中断或紧急停止时仍返回尽力而为的统计摘要
func (e *Engine) Run(ctx context.Context) (*types.TestSummary, error) {
	if !e.running.CAS(false, true) {
		return nil, ErrAlreadyRunning
	}
	defer e.running.Store(false)

	patterns, err := e.cfg.BuildPatterns()
	if err != nil {
		return nil, fmt.Errorf("构建流量模式失败: %w", err)
	}

	e.printStartInfo(patterns)

	if err := e.client.Connect(ctx); err != nil {
		return nil, fmt.Errorf("建立连接失败: %w", err)
	}
	defer e.client.Close()

	// 初始目标速率由配置给出，此后调度器逐派发提案
	e.throttle.SetTargetRate(e.cfg.TargetRPS)

	loopCtx, cancelLoops := context.WithCancel(ctx)
	defer cancelLoops()

	tracker := newProgressTracker(e.collector, e.throttle, e.logger)
	go tracker.Start(loopCtx)
	e.startSLOChecks(loopCtx)

	startTime := time.Now()

	// 工作协程池：派发与执行解耦，在途请求数受并发数约束
	jobs := make(chan *pattern.ScheduledDispatch, e.cfg.Concurrency)
	var wg sync.WaitGroup
	for i := 0; i < e.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.runWorker(ctx, jobs)
		}()
	}

	runErr := e.runPatterns(ctx, patterns, jobs)
	close(jobs)
	wg.Wait()

	cancelLoops()
	tracker.Complete()

	totalDuration := time.Since(startTime)
	summary := e.collector.Summary()

	if dropped := e.dropped.Load(); dropped > 0 {
		e.logger.Warnf("⏭️  共 %d 个派发被限流丢弃", dropped)
	}

	if runErr != nil {
		switch {
		case errors.Is(runErr, context.Canceled):
			e.logger.Warn("⚠️  压测已被中断，输出当前统计")
		case errors.Is(runErr, ErrEmergencyStopped):
			e.logger.Errorf("🚨 压测因紧急停止提前终止（%s）", totalDuration.Round(time.Second))
		}
		return summary, runErr
	}

	e.logger.Infof("✅ 压测完成，总耗时 %s", totalDuration.Round(time.Second))
	return summary, nil
}

// runPatterns 顺序执行各个流量阶段
func (e *Engine) runPatterns(ctx context.Context, patterns []*pattern.RequestPattern, jobs chan<- *pattern.ScheduledDispatch) error {
	for i, p := range patterns {
		e.logger.Infof("📋 阶段 %d/%d [%s]: %s 模式，时长 %ds", i+1, len(patterns), p.Name, p.Type, p.DurationSeconds)

		gen, err := pattern.CreateGenerator(p.Type)
		if err != nil {
			return fmt.Errorf("创建流量生成器失败: %w", err)
		}
		sched, err := gen.Schedule(p, time.Now())
		if err != nil {
			return fmt.Errorf("生成派发计划失败: %w", err)
		}

		if err := e.runSchedule(ctx, sched, jobs); err != nil {
			return err
		}
		e.logger.Infof("📋 阶段 [%s] 派发完成", p.Name)
	}
	return nil
}

// startSLOChecks 启动SLO周期评估任务，随上下文结束
func (e *Engine) startSLOChecks(ctx context.Context) {
	manager := syncx.NewPeriodicTaskManager()
	task := syncx.NewPeriodicTask("slo-check", sloCheckInterval, func(taskCtx context.Context) error {
		for _, v := range e.collector.CheckSLOs() {
			e.logger.Warnf("⚠️  SLO违规 [%s] 严重度=%s: 实测 %.2f, 阈值 %.2f",
				v.SLOName, v.Severity, v.Value, v.Threshold)
		}
		return nil
	}).SetOnError(func(name string, err error) {
		e.logger.WarnKV("SLO检查任务异常", "task", name, "error", err.Error())
	})
	manager.AddTask(task)
	manager.StartWithContext(ctx)
}

// Collector 指标收集器（分布式上报与查询用）
func (e *Engine) Collector() *metrics.Collector {
	return e.collector
}

// Throttle 自适应限流器（外部速率控制与状态查询用）
func (e *Engine) Throttle() *throttle.AdaptiveThrottle {
	return e.throttle
}

// NodeID 节点标识
func (e *Engine) NodeID() string {
	return e.nodeID
}

// IsRunning 引擎是否正在执行
func (e *Engine) IsRunning() bool {
	return e.running.Load()
}

// DroppedDispatches 被限流丢弃的派发总数
func (e *Engine) DroppedDispatches() uint64 {
	return e.dropped.Load()
}

// printStartInfo 打印启动信息
func (e *Engine) printStartInfo(patterns []*pattern.RequestPattern) {
	e.logger.Info("")
	e.logger.Info("🚀 开始压测...")
	e.logger.Infof("🎯 目标: %s", e.cfg.TargetURL)
	e.logger.Infof("📊 目标RPS: %.1f, 总时长: %s", e.cfg.TargetRPS, e.cfg.TotalDuration())
	e.logger.Infof("🔢 并发数: %d, 超时: %s", e.cfg.Concurrency, e.cfg.Timeout)

	for _, p := range patterns {
		maxRate := 0
		for _, pt := range pattern.Preview(p, p.DurationSeconds) {
			maxRate = mathx.Max(maxRate, pt.RPS)
		}
		e.logger.Infof("📈 模式 [%s] %s: 预计派发 %d 次, 峰值 %d RPS",
			p.Name, p.Type, pattern.ExpectedDispatches(p), maxRate)
	}
	e.logger.Info("")
}
