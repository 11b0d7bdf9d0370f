/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-06-23 09:30:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-07-22 10:14:52
 * @FilePath: \slayer\metrics\slo.go
 * @Description: SLO 规则定义与违规监控
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package metrics

import (
	"fmt"
	"math"
	"time"

	"github.com/kamalyes/go-logger"
	"github.com/kamalyes/go-toolbox/pkg/mathx"
	"github.com/kamalyes/go-toolbox/pkg/syncx"
	"github.com/kamalyes/go-toolbox/pkg/validator"

	"github.com/sudoinstallopsecc/slayer/types"
)

// MetricName SLO 可监控的指标名
type MetricName string

const (
	MetricResponseTimeP95 MetricName = "response_time_p95" // P95响应时间（毫秒）
	MetricResponseTimeP99 MetricName = "response_time_p99" // P99响应时间（毫秒）
	MetricErrorRate       MetricName = "error_rate"        // 错误率（0-100）
	MetricCurrentRPS      MetricName = "current_rps"       // 1秒滑动窗口RPS
	MetricAvgResponseTime MetricName = "avg_response_time" // 平均响应时间（毫秒）
)

// Operator SLO 达标条件操作符
// 操作符表达的是指标【应满足】的条件，窗口均值不满足即判定违规
type Operator string

const (
	OperatorLT Operator = "lt" // 应小于阈值
	OperatorLE Operator = "le" // 应小于等于阈值
	OperatorGT Operator = "gt" // 应大于阈值
	OperatorGE Operator = "ge" // 应大于等于阈值
	OperatorEQ Operator = "eq" // 应等于阈值（容差0.001）
)

// compareOp 映射到 validator 的比较操作符
func (o Operator) compareOp() (types.ExpectOperator, error) {
	switch o {
	case OperatorLT:
		return types.OpLT, nil
	case OperatorLE:
		return types.OpLTE, nil
	case OperatorGT:
		return types.OpGT, nil
	case OperatorGE:
		return types.OpGTE, nil
	case OperatorEQ:
		return types.OpEQ, nil
	default:
		return types.OpEQ, fmt.Errorf("未知的SLO操作符: %s", o)
	}
}

// satisfied 判断指标值是否满足达标条件
func (o Operator) satisfied(value, threshold float64) (bool, error) {
	if o == OperatorEQ {
		// 浮点等值比较带容差
		return math.Abs(value-threshold) < 0.001, nil
	}
	op, err := o.compareOp()
	if err != nil {
		return false, err
	}
	return validator.CompareNumbers(value, threshold, op).Success, nil
}

// Severity 违规严重度
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// severityOf 按偏离比例评定严重度：比例 ≥2.0 critical，≥1.5 high，≥1.2 medium，否则 low
func severityOf(op Operator, value, threshold float64) Severity {
	var ratio float64
	switch op {
	case OperatorLT, OperatorLE:
		// 指标应低于阈值，违规时值偏高
		if threshold <= 0 {
			ratio = math.Inf(1)
		} else {
			ratio = value / threshold
		}
	case OperatorGT, OperatorGE:
		// 指标应高于阈值，违规时值偏低
		if value <= 0 {
			ratio = math.Inf(1)
		} else {
			ratio = threshold / value
		}
	default:
		if value <= 0 || threshold <= 0 {
			ratio = math.Inf(1)
		} else {
			ratio = math.Max(value/threshold, threshold/value)
		}
	}

	switch {
	case ratio >= 2.0:
		return SeverityCritical
	case ratio >= 1.5:
		return SeverityHigh
	case ratio >= 1.2:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// SLORule SLO 规则定义，测试生命周期内静态不变
type SLORule struct {
	Name          string     `json:"name" yaml:"name"`                                 // 规则名（唯一）
	MetricName    MetricName `json:"metric_name" yaml:"metric_name"`                   // 监控指标
	Threshold     float64    `json:"threshold" yaml:"threshold"`                       // 阈值
	Operator      Operator   `json:"operator" yaml:"operator"`                         // 达标条件
	WindowSeconds int        `json:"window_seconds" yaml:"window_seconds"`             // 评估窗口（秒）
	Description   string     `json:"description,omitempty" yaml:"description,omitempty"` // 描述
}

// Validate 校验规则合法性
func (r *SLORule) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("SLO规则缺少名称")
	}
	if _, err := extractMetric(&types.TestSummary{}, r.MetricName); err != nil {
		return fmt.Errorf("SLO规则 %s: %w", r.Name, err)
	}
	if _, err := r.Operator.compareOp(); err != nil {
		return fmt.Errorf("SLO规则 %s: %w", r.Name, err)
	}
	if r.WindowSeconds <= 0 {
		return fmt.Errorf("SLO规则 %s: 窗口必须为正", r.Name)
	}
	return nil
}

// SLOViolation 一次SLO违规记录
type SLOViolation struct {
	SLOName       string     `json:"slo_name"`
	Description   string     `json:"slo_description,omitempty"`
	MetricName    MetricName `json:"metric_name"`
	ActualValue   float64    `json:"actual_value"` // 窗口均值
	Threshold     float64    `json:"threshold"`
	Operator      Operator   `json:"operator"`
	WindowSeconds int        `json:"window_seconds"`
	Timestamp     time.Time  `json:"timestamp"`
	Severity      Severity   `json:"severity"`
}

// metricPoint 指标历史点
type metricPoint struct {
	at    time.Time
	value float64
}

const (
	sloHistoryCap      = 10000           // 每条规则的指标历史上限
	sloViolationCap    = 10000           // 违规记录保留上限
	sloSummaryWindow   = 5 * time.Minute // 摘要统计的回看窗口
	sloMinWindowPoints = 2               // 窗口内最少样本数，不足不评估
)

// SLOMonitor SLO 监控器
// 按规则维护时间序列历史，对窗口均值做达标检查并累计违规
type SLOMonitor struct {
	mu     *syncx.RWLock
	logger logger.ILogger

	rules      []SLORule
	history    map[string][]metricPoint // 规则名 -> 指标历史
	violations []SLOViolation

	now func() time.Time
}

// NewSLOMonitor 创建SLO监控器
func NewSLOMonitor(log logger.ILogger) *SLOMonitor {
	if log == nil {
		log = logger.NewLogger(nil)
	}
	return &SLOMonitor{
		mu:      syncx.NewRWLock(),
		logger:  log,
		history: make(map[string][]metricPoint),
		now:     time.Now,
	}
}

// WithClock 注入时钟（测试用）
func (m *SLOMonitor) WithClock(now func() time.Time) *SLOMonitor {
	m.now = now
	return m
}

// AddRule 注册SLO规则，同名规则覆盖
func (m *SLOMonitor) AddRule(rule SLORule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	syncx.WithLock(m.mu, func() {
		for i := range m.rules {
			if m.rules[i].Name == rule.Name {
				m.rules[i] = rule
				return
			}
		}
		m.rules = append(m.rules, rule)
	})
	m.logger.InfoKV("📋 注册SLO规则", "name", rule.Name, "metric", string(rule.MetricName),
		"operator", string(rule.Operator), "threshold", rule.Threshold)
	return nil
}

// Rules 当前注册的规则
func (m *SLOMonitor) Rules() []SLORule {
	return syncx.WithRLockReturnValue(m.mu, func() []SLORule {
		out := make([]SLORule, len(m.rules))
		copy(out, m.rules)
		return out
	})
}

// extractMetric 从测试摘要中取出指定指标
func extractMetric(s *types.TestSummary, name MetricName) (float64, error) {
	switch name {
	case MetricResponseTimeP95:
		return s.ResponseTimes.P95, nil
	case MetricResponseTimeP99:
		return s.ResponseTimes.P99, nil
	case MetricErrorRate:
		return s.ErrorRate, nil
	case MetricCurrentRPS:
		return s.CurrentRPS, nil
	case MetricAvgResponseTime:
		return s.ResponseTimes.Avg, nil
	default:
		return 0, fmt.Errorf("未知的SLO指标: %s", name)
	}
}

// Check 用当前测试摘要评估全部规则，返回本轮新增违规
// 每条规则先追加历史再过滤窗口，窗口内样本少于2个不评估
func (m *SLOMonitor) Check(summary *types.TestSummary) []SLOViolation {
	now := m.now()
	var found []SLOViolation

	syncx.WithLock(m.mu, func() {
		for _, rule := range m.rules {
			value, err := extractMetric(summary, rule.MetricName)
			if err != nil {
				m.logger.Errorf("❌ SLO %s 取指标失败: %v", rule.Name, err)
				continue
			}

			points := append(m.history[rule.Name], metricPoint{at: now, value: value})
			if len(points) > sloHistoryCap {
				points = points[len(points)-sloHistoryCap:]
			}
			m.history[rule.Name] = points

			// 过滤到规则窗口
			window := make([]float64, 0, len(points))
			cutoff := now.Add(-time.Duration(rule.WindowSeconds) * time.Second)
			for _, p := range points {
				if !p.at.Before(cutoff) {
					window = append(window, p.value)
				}
			}
			if len(window) < sloMinWindowPoints {
				continue
			}

			avg := mathx.Mean(window)
			ok, err := rule.Operator.satisfied(avg, rule.Threshold)
			if err != nil {
				m.logger.Errorf("❌ SLO %s 比较失败: %v", rule.Name, err)
				continue
			}
			if ok {
				continue
			}

			v := SLOViolation{
				SLOName:       rule.Name,
				Description:   rule.Description,
				MetricName:    rule.MetricName,
				ActualValue:   avg,
				Threshold:     rule.Threshold,
				Operator:      rule.Operator,
				WindowSeconds: rule.WindowSeconds,
				Timestamp:     now,
				Severity:      severityOf(rule.Operator, avg, rule.Threshold),
			}
			found = append(found, v)
			m.violations = append(m.violations, v)
			if len(m.violations) > sloViolationCap {
				m.violations = m.violations[len(m.violations)-sloViolationCap:]
			}

			m.logger.Warnf("⚠️ SLO违规: %s 窗口均值 %.2f 未满足 %s %.2f（严重度 %s）",
				rule.Name, avg, rule.Operator, rule.Threshold, v.Severity)
		}
	})

	return found
}

// RecentViolations 最近一段时间内的违规记录
func (m *SLOMonitor) RecentViolations(within time.Duration) []SLOViolation {
	cutoff := m.now().Add(-within)
	return syncx.WithRLockReturnValue(m.mu, func() []SLOViolation {
		out := make([]SLOViolation, 0)
		for _, v := range m.violations {
			if !v.Timestamp.Before(cutoff) {
				out = append(out, v)
			}
		}
		return out
	})
}

// Summary 最近5分钟的违规摘要（按严重度和规则分组）
func (m *SLOMonitor) Summary() *types.SLOSummary {
	recent := m.RecentViolations(sloSummaryWindow)

	bySeverity := map[string]int{
		string(SeverityLow):      0,
		string(SeverityMedium):   0,
		string(SeverityHigh):     0,
		string(SeverityCritical): 0,
	}
	bySLO := make(map[string]int)
	details := make([]types.SLOViolationRef, 0, len(recent))

	for _, v := range recent {
		bySeverity[string(v.Severity)]++
		bySLO[v.SLOName]++
		details = append(details, types.SLOViolationRef{
			SLOName:   v.SLOName,
			Severity:  string(v.Severity),
			Value:     v.ActualValue,
			Threshold: v.Threshold,
			Timestamp: v.Timestamp,
		})
	}

	return &types.SLOSummary{
		TotalViolations: len(recent),
		BySeverity:      bySeverity,
		BySLO:           bySLO,
		WindowMinutes:   sloSummaryWindow.Minutes(),
		Details:         details,
	}
}
