/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-07-08 09:30:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-13 11:26:54
 * @FilePath: \slayer\bootstrap\standalone.go
 * @Description: Standalone 单机压测启动器
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
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/kamalyes/go-logger"
	"github.com/kamalyes/go-toolbox/pkg/mathx"
	"github.com/kamalyes/go-toolbox/pkg/osx"
	"github.com/kamalyes/go-toolbox/pkg/units"
	"github.com/sudoinstallopsecc/slayer/config"
	"github.com/sudoinstallopsecc/slayer/engine"
	"github.com/sudoinstallopsecc/slayer/pattern"
	"github.com/sudoinstallopsecc/slayer/storage"
	"github.com/sudoinstallopsecc/slayer/types"
)

// StandaloneOptions Standalone 模式选项
type StandaloneOptions struct {
	ConfigFile      string
	CurlFile        string
	TargetRPS       float64
	DurationSeconds int
	Concurrency     int
	Timeout         time.Duration
	StorageMode     types.StorageMode // 空值时沿用配置文件，最终缺省内存
	StorageDir      string
	MaxMemory       string
	DryRun          bool
	NodeID          string
	Logger          logger.ILogger
	ConfigFunc      func() *config.EngineConfig // 从命令行构建配置的函数
}

// RunStandalone 运行单机模式
func RunStandalone(opts StandaloneOptions) error {
	var cfg *config.EngineConfig
	var err error

	// 从curl文件加载
	if opts.CurlFile != "" {
		opts.Logger.Infof("📄 解析curl文件: %s", opts.CurlFile)
		cfg, err = config.ParseCurlFile(opts.CurlFile)
		if err != nil {
			return fmt.Errorf("解析curl文件失败: %w", err)
		}
		// curl文件不携带负载参数，命令行指定的部分覆盖进去
		if opts.TargetRPS > 0 {
			cfg.TargetRPS = opts.TargetRPS
		}
		if opts.DurationSeconds > 0 {
			cfg.DurationSeconds = opts.DurationSeconds
		}
		if opts.Concurrency > 0 {
			cfg.Concurrency = opts.Concurrency
		}
		if opts.Timeout > 0 {
			cfg.Timeout = types.Duration(opts.Timeout)
		}
	} else if opts.ConfigFile != "" {
		// 从配置文件加载
		opts.Logger.Infof("📄 加载配置文件: %s", opts.ConfigFile)
		loader := config.NewLoader(opts.Logger)
		cfg, err = loader.LoadFromFile(opts.ConfigFile)
		if err != nil {
			return fmt.Errorf("加载配置文件失败: %w", err)
		}
	} else if opts.ConfigFunc != nil {
		// 使用命令行参数
		cfg = opts.ConfigFunc()
	} else {
		return fmt.Errorf("必须提供配置文件、curl文件或命令行参数")
	}

	if err := cfg.Normalize().Validate(); err != nil {
		return fmt.Errorf("配置验证失败: %w", err)
	}

	// Dry-Run 只预估速率曲线，不建存储、不发请求
	if opts.DryRun {
		return previewRun(cfg, opts.Logger)
	}

	nodeID := mathx.IfEmpty(opts.NodeID, "local")

	// 创建请求明细存储（根据存储模式选择）
	sink, err := buildSink(cfg, &opts, nodeID)
	if err != nil {
		return err
	}
	defer func() {
		if count, cErr := sink.Count(storage.StatusFilterAll, ""); cErr == nil && count > 0 {
			opts.Logger.Infof("💾 请求明细已记录 %d 条", count)
		}
		if cErr := sink.Close(); cErr != nil {
			opts.Logger.Warnf("⚠️  关闭存储失败: %v", cErr)
		}
	}()

	eng, err := engine.NewEngine(cfg, engine.Options{
		NodeID: nodeID,
		Logger: opts.Logger,
		Sink:   sink,
	})
	if err != nil {
		return fmt.Errorf("创建压测引擎失败: %w", err)
	}

	// 创建context，支持Ctrl+C中断
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 监听信号
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigCh
		opts.Logger.Warn("\n\n⚠️  收到中断信号，正在停止...")
		cancel()
	}()

	// 启动内存监控（如果配置了阈值）
	if opts.MaxMemory != "" {
		if err := startMemoryMonitor(ctx, opts.MaxMemory, cancel, opts.Logger); err != nil {
			opts.Logger.Warnf("⚠️  %v", err)
		}
	}

	// 执行压测
	summary, err := eng.Run(ctx)
	if err != nil {
		switch {
		case errors.Is(err, context.Canceled):
			// 用户中断不视为错误，照常输出已有统计
			opts.Logger.Warn("⚠️  用户已中断压测")
		case errors.Is(err, engine.ErrEmergencyStopped):
			opts.Logger.Warn("🚨 压测已被熔断紧急停止，输出中断前统计")
		default:
			return fmt.Errorf("压测执行失败: %w", err)
		}
	}

	// 打印报告
	if summary != nil {
		engine.PrintReport(opts.Logger, summary)
	}

	return nil
}

// buildSink 按存储模式构建请求明细存储
// 命令行模式优先，其次配置文件，最终缺省内存
func buildSink(cfg *config.EngineConfig, opts *StandaloneOptions, nodeID string) (storage.Interface, error) {
	mode := opts.StorageMode
	if mode == "" && cfg.Storage != nil && cfg.Storage.Mode != "" {
		mode = cfg.Storage.Mode
	}
	if mode == "" {
		mode = types.StorageModeMemory
	}

	var path string
	switch mode {
	case types.StorageModeMemory:
		opts.Logger.Info("💾 存储模式: 内存 (高速、环形缓冲、不持久化)")

	case types.StorageModeSQLite:
		path = storagePath(cfg, opts.StorageDir, "details.db")
		if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
			return nil, fmt.Errorf("创建存储目录失败: %w", err)
		}
		opts.Logger.Info("💾 存储模式: SQLite (持久化、可查询)")
		opts.Logger.Infof("💾 数据库路径: %s", path)

	case types.StorageModeBadger:
		path = storagePath(cfg, opts.StorageDir, "badger")
		if err := os.MkdirAll(path, os.ModePerm); err != nil {
			return nil, fmt.Errorf("创建存储目录失败: %w", err)
		}
		opts.Logger.Info("💾 存储模式: Badger (持久化、高写入吞吐)")
		opts.Logger.Infof("💾 数据目录: %s", path)

	default:
		return nil, fmt.Errorf("未知的存储模式: %s (支持: %s, %s, %s)",
			mode, types.StorageModeMemory, types.StorageModeSQLite, types.StorageModeBadger)
	}

	factory := storage.NewStorageFactory(opts.Logger)
	return factory.CreateStorage(&storage.StorageConfig{
		Type:   mode,
		Path:   path,
		NodeID: nodeID,
	})
}

// storagePath 解析存储落点：配置显式指定的路径优先，否则按时间戳建目录
func storagePath(cfg *config.EngineConfig, dir, name string) string {
	if cfg.Storage != nil && cfg.Storage.Path != "" {
		return cfg.Storage.Path
	}
	return filepath.Join(dir, fmt.Sprintf("%d", time.Now().Unix()), name)
}

// previewRun 输出各阶段速率曲线与派发量预估，不发送任何请求
func previewRun(cfg *config.EngineConfig, log logger.ILogger) error {
	patterns, err := cfg.BuildPatterns()
	if err != nil {
		return fmt.Errorf("构建流量模式失败: %w", err)
	}

	log.Info("🔍 Dry-Run: 仅预估负载曲线，不发送请求")
	log.Infof("🎯 目标: %s %s", cfg.Method, cfg.TargetURL)

	totalSeconds := 0
	totalDispatches := 0
	for i, p := range patterns {
		expected := pattern.ExpectedDispatches(p)
		totalSeconds += p.DurationSeconds
		totalDispatches += expected

		log.Infof("📊 阶段 %d/%d: %s [%s] 时长 %ds，预计派发 %d 次",
			i+1, len(patterns), mathx.IfEmpty(p.Name, string(p.Type)), p.Type, p.DurationSeconds, expected)

		points := pattern.Preview(p, p.DurationSeconds)
		peak := 0
		for _, pt := range points {
			if pt.RPS > peak {
				peak = pt.RPS
			}
		}

		// 最多抽样展示10个点，避免长阶段刷屏
		step := len(points) / 10
		if step < 1 {
			step = 1
		}
		for j := 0; j < len(points); j += step {
			pt := points[j]
			log.Infof("   t=%4ds %6d rps %s", pt.OffsetSeconds, pt.RPS, rateBar(pt.RPS, peak))
		}
	}

	log.Infof("📋 共 %d 个阶段，总时长 %ds，预计总派发 %d 次", len(patterns), totalSeconds, totalDispatches)
	return nil
}

// rateBar 把速率画成定宽条形，峰值占满30格
func rateBar(rps, peak int) string {
	const width = 30
	if peak <= 0 {
		return ""
	}
	n := rps * width / peak
	return strings.Repeat("█", n)
}

// startMemoryMonitor 启动内存监控
func startMemoryMonitor(ctx context.Context, maxMemory string, cancel context.CancelFunc, log logger.ILogger) error {
	threshold, err := units.ParseBytes(maxMemory)
	if err != nil {
		return fmt.Errorf("内存阈值格式错误: %w,将忽略内存监控", err)
	}

	log.Infof("🔍 启动内存监控，阈值: %s (%d MB)", maxMemory, threshold/(1024*1024))

	monitor := osx.NewAdvancedMonitor().
		AddThreshold(osx.LevelWarning, threshold*80/100).
		AddThreshold(osx.LevelCritical, threshold).
		SetMetricType(osx.MetricAlloc).
		SetCheckOnce(false).
		SetMaxHistory(200).
		EnableGrowthCheck(20.0, 30*time.Second).
		OnWarning(func(snapshot osx.Snapshot) {
			log.Warnf("[⚠️  警告] 内存使用: %s / %s (%.1f%%), Goroutines: %d",
				units.FormatBytes(snapshot.Alloc),
				maxMemory,
				float64(snapshot.Alloc)/float64(threshold)*100,
				snapshot.Goroutines)
		}).
		OnCritical(func(snapshot osx.Snapshot) {
			log.Warnf("\n[🚨 严重] 内存使用超过阈值: %s / %s (%.1f%%)",
				units.FormatBytes(snapshot.Alloc),
				maxMemory,
				float64(snapshot.Alloc)/float64(threshold)*100)
			log.Warnf("  GC次数: %d, Goroutines: %d", snapshot.NumGC, snapshot.Goroutines)
			log.Warn("🛑 自动停止测试任务...")
			cancel()
		}).
		OnGrowthAlert(func(rate osx.GrowthRate, snapshot osx.Snapshot) {
			log.Warnf("[📈 增长告警] 增长率: %.2f%%, 绝对增长: %s, 时间窗口: %v",
				rate.Percentage,
				units.FormatBytes(uint64(rate.Absolute)),
				rate.Duration)
		}).
		OnCheck(func(snapshot osx.Snapshot) {
			log.Debugf("📊 内存监控 - Alloc: %s, Sys: %s, Goroutines: %d, GC: %d",
				units.FormatBytes(snapshot.Alloc),
				units.FormatBytes(snapshot.Sys),
				snapshot.Goroutines,
				snapshot.NumGC)
		})

	go monitor.Start(ctx, 5*time.Second)
	return nil
}
