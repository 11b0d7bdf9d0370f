/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-07-06 15:10:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-11 10:48:33
 * @FilePath: \slayer\distributed\coordinator\local.go
 * @Description: 本地协调器 - 单进程内的测试启停与生命周期跟踪
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kamalyes/go-logger"
	"github.com/kamalyes/go-toolbox/pkg/mathx"
	"github.com/kamalyes/go-toolbox/pkg/syncx"
	"github.com/sudoinstallopsecc/slayer/config"
	"github.com/sudoinstallopsecc/slayer/distributed/cluster"
	"github.com/sudoinstallopsecc/slayer/engine"
	"github.com/sudoinstallopsecc/slayer/types"
)

// LocalCoordinator 本地协调器
// 不依赖集群，在当前进程内启停压测引擎并跟踪测试生命周期，
// 测试记录保留至进程退出，便于事后查询
type LocalCoordinator struct {
	nodeID string
	logger logger.ILogger
	tests  *syncx.Map[string, *localRun]
}

// localRun 单个本地测试的运行时记录
type localRun struct {
	mu        sync.Mutex
	id        string
	state     cluster.TestState
	startedAt time.Time
	endedAt   time.Time
	summary   *types.TestSummary
	err       error
	cancel    context.CancelFunc
	done      chan struct{}
}

// finish 落定终态，重复调用只有第一次生效
func (r *localRun) finish(state cluster.TestState, summary *types.TestSummary, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != cluster.TestStateRunning {
		return
	}
	r.state = state
	r.summary = summary
	r.err = err
	r.endedAt = time.Now()
	close(r.done)
}

// LocalTestStatus 本地测试状态快照
type LocalTestStatus struct {
	TestID    string             `json:"test_id"`
	State     cluster.TestState  `json:"state"`
	StartedAt time.Time          `json:"started_at"`
	EndedAt   time.Time          `json:"ended_at,omitempty"`
	Summary   *types.TestSummary `json:"summary,omitempty"`
	Error     string             `json:"error,omitempty"`
}

// NewLocalCoordinator 创建本地协调器
func NewLocalCoordinator(nodeID string, log logger.ILogger) *LocalCoordinator {
	if log == nil {
		log = logger.NewLogger(nil)
	}
	return &LocalCoordinator{
		nodeID: mathx.IfEmpty(nodeID, "local"),
		logger: log,
		tests:  syncx.NewMap[string, *localRun](),
	}
}

// StartTest 在后台启动一次压测，返回测试ID
// 配置非法时直接拒绝，不产生测试记录
func (lc *LocalCoordinator) StartTest(ctx context.Context, cfg *config.EngineConfig) (string, error) {
	eng, err := engine.NewEngine(cfg, engine.Options{NodeID: lc.nodeID, Logger: lc.logger})
	if err != nil {
		return "", err
	}

	testID := uuid.NewString()
	runCtx, cancel := context.WithCancel(ctx)
	run := &localRun{
		id:        testID,
		state:     cluster.TestStateRunning,
		startedAt: time.Now(),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	lc.tests.Store(testID, run)
	lc.logger.InfoKV("🎯 本地测试已启动", "test_id", testID, "target", cfg.TargetURL)

	syncx.Go().
		OnError(func(err error) {
			lc.logger.ErrorKV("本地测试协程异常", "test_id", testID, "error", err.Error())
		}).
		OnPanic(func(r interface{}) {
			run.finish(cluster.TestStateFailed, nil, fmt.Errorf("panic: %v", r))
			lc.logger.ErrorKV("💥 本地测试协程崩溃", "test_id", testID, "panic", fmt.Sprintf("%v", r))
		}).
		ExecWithContext(func(_ context.Context) error {
			summary, runErr := eng.Run(runCtx)
			switch {
			case runErr == nil:
				run.finish(cluster.TestStateCompleted, summary, nil)
				lc.logger.InfoKV("🎉 本地测试完成", "test_id", testID)
			case errors.Is(runErr, context.Canceled):
				// 主动停止不算失败，保留尽力而为的统计
				run.finish(cluster.TestStateStopped, summary, nil)
				lc.logger.InfoKV("⛔ 本地测试已停止", "test_id", testID)
			default:
				run.finish(cluster.TestStateFailed, summary, runErr)
				lc.logger.ErrorKV("❌ 本地测试失败", "test_id", testID, "error", runErr.Error())
			}
			return nil
		})

	return testID, nil
}

// StopTest 请求停止指定测试；对已结束的测试无副作用
func (lc *LocalCoordinator) StopTest(testID string) error {
	run, ok := lc.tests.Load(testID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTest, testID)
	}
	run.cancel()
	return nil
}

// Wait 阻塞等待测试结束，返回最终统计摘要
func (lc *LocalCoordinator) Wait(testID string) (*types.TestSummary, error) {
	run, ok := lc.tests.Load(testID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTest, testID)
	}
	<-run.done
	run.mu.Lock()
	defer run.mu.Unlock()
	return run.summary, run.err
}

// TestStatus 查询测试状态快照
func (lc *LocalCoordinator) TestStatus(testID string) (*LocalTestStatus, bool) {
	run, ok := lc.tests.Load(testID)
	if !ok {
		return nil, false
	}
	run.mu.Lock()
	defer run.mu.Unlock()
	st := &LocalTestStatus{
		TestID:    run.id,
		State:     run.state,
		StartedAt: run.startedAt,
		EndedAt:   run.endedAt,
		Summary:   run.summary,
	}
	if run.err != nil {
		st.Error = run.err.Error()
	}
	return st, true
}

// ActiveTests 运行中的测试ID列表（升序）
func (lc *LocalCoordinator) ActiveTests() []string {
	ids := make([]string, 0)
	lc.tests.Range(func(id string, run *localRun) bool {
		run.mu.Lock()
		running := run.state == cluster.TestStateRunning
		run.mu.Unlock()
		if running {
			ids = append(ids, id)
		}
		return true
	})
	sort.Strings(ids)
	return ids
}
