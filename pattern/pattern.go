/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-06-22 09:30:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-07-19 11:42:18
 * @FilePath: \slayer\pattern\pattern.go
 * @Description: 流量模式定义
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package pattern

import (
	"fmt"
	"time"
)

// Type 流量模式类型
type Type string

const (
	TypeConstant      Type = "constant"       // 恒定速率
	TypeRampUp        Type = "ramp_up"        // 线性爬升
	TypeRampDown      Type = "ramp_down"      // 线性下降
	TypeBurst         Type = "burst"          // 周期性突发
	TypeWave          Type = "wave"           // 正弦波动
	TypeStep          Type = "step"           // 阶梯递增
	TypeSpike         Type = "spike"          // 单次尖峰
	TypeRealisticUser Type = "realistic_user" // 真实用户行为模拟
)

// String 实现 fmt.Stringer
func (t Type) String() string {
	return string(t)
}

// 突发/尖峰窗口长度（秒）
const burstWindowSeconds = 5.0

// 速率为0时的空转步进（秒）
const idleStepSeconds = 0.1

// RequestPattern 单个压测阶段的流量模式配置
// 调度开始后不可再修改
type RequestPattern struct {
	Name            string `yaml:"name" json:"name"`
	Type            Type   `yaml:"type" json:"type"`
	DurationSeconds int    `yaml:"duration" json:"duration"`
	TargetRPS       int    `yaml:"target_rps" json:"target_rps"`

	// 渐变参数（ramp_up/ramp_down/step）
	RampStartRPS int `yaml:"ramp_start_rps,omitempty" json:"ramp_start_rps,omitempty"`
	RampEndRPS   int `yaml:"ramp_end_rps,omitempty" json:"ramp_end_rps,omitempty"`

	// 突发参数（burst）
	BurstIntervalSeconds float64 `yaml:"burst_interval,omitempty" json:"burst_interval,omitempty"`
	BurstMultiplier      float64 `yaml:"burst_multiplier,omitempty" json:"burst_multiplier,omitempty"`

	// 波动参数（wave）
	WaveAmplitude     float64 `yaml:"wave_amplitude,omitempty" json:"wave_amplitude,omitempty"`
	WavePeriodSeconds float64 `yaml:"wave_period,omitempty" json:"wave_period,omitempty"`

	// 阶梯参数（step）
	Steps int `yaml:"steps,omitempty" json:"steps,omitempty"`

	// 尖峰参数（spike），SpikeOffsetSeconds 为0时取测试中点
	SpikeMultiplier      float64 `yaml:"spike_multiplier,omitempty" json:"spike_multiplier,omitempty"`
	SpikeOffsetSeconds   float64 `yaml:"spike_offset,omitempty" json:"spike_offset,omitempty"`
	SpikeDurationSeconds float64 `yaml:"spike_duration,omitempty" json:"spike_duration,omitempty"`

	// 真实用户行为参数（realistic_user）
	UserArrivalRate float64   `yaml:"user_arrival_rate,omitempty" json:"user_arrival_rate,omitempty"` // 用户到达速率（个/秒）
	SessionDuration []int     `yaml:"session_duration,omitempty" json:"session_duration,omitempty"`   // [最短,最长] 会话时长（秒）
	ThinkTime       []float64 `yaml:"think_time,omitempty" json:"think_time,omitempty"`               // [最短,最长] 思考时间（秒）

	// 请求方法分布（权重与方法一一对应，缺省时均匀分布）
	Methods       []string  `yaml:"methods,omitempty" json:"methods,omitempty"`
	MethodWeights []float64 `yaml:"method_weights,omitempty" json:"method_weights,omitempty"`

	// 载荷模板与变量池（${var} 占位符从变量池随机取值）
	PayloadTemplates []map[string]any    `yaml:"payload_templates,omitempty" json:"payload_templates,omitempty"`
	PayloadVariables map[string][]string `yaml:"payload_variables,omitempty" json:"payload_variables,omitempty"`

	// 动态值解析器（可选，解析载荷中的 {{fn}} 模板函数）
	Resolver Resolver `yaml:"-" json:"-"`
}

// Resolver 动态值解析器（由 config.VariableResolver 实现）
type Resolver interface {
	Resolve(input string) (string, error)
}

// ScheduledDispatch 一次已调度的请求派发事件
// 生成后不再修改，恰好被消费一次
type ScheduledDispatch struct {
	Time        time.Time      `json:"time"`                  // 计划派发时间
	Method      string         `json:"method"`                // HTTP 方法
	Payload     map[string]any `json:"payload,omitempty"`     // 请求载荷（可为空）
	SequenceID  uint64         `json:"sequence_id"`           // 本阶段内的派发序号
	CurrentRate float64        `json:"current_rate"`          // 派发时刻的计算速率
	SessionID   int64          `json:"session_id,omitempty"`  // 用户会话ID（realistic_user 模式，0表示无会话）
	Burst       bool           `json:"burst,omitempty"`       // 是否处于突发窗口内
}

// Duration 返回模式时长
func (p *RequestPattern) Duration() time.Duration {
	return time.Duration(p.DurationSeconds) * time.Second
}

// Validate 校验模式配置
func (p *RequestPattern) Validate() error {
	if p.DurationSeconds <= 0 {
		return fmt.Errorf("模式 [%s] 时长必须大于0秒", p.Name)
	}

	if len(p.Methods) > 0 && len(p.MethodWeights) > 0 && len(p.Methods) != len(p.MethodWeights) {
		return fmt.Errorf("模式 [%s] 方法数量(%d)与权重数量(%d)不一致", p.Name, len(p.Methods), len(p.MethodWeights))
	}

	switch p.Type {
	case TypeConstant:
		if p.TargetRPS <= 0 {
			return fmt.Errorf("模式 [%s] constant 需要 target_rps > 0", p.Name)
		}

	case TypeRampUp, TypeRampDown:
		if p.RampStartRPS < 0 || p.RampEndRPS < 0 {
			return fmt.Errorf("模式 [%s] 爬坡速率不能为负", p.Name)
		}
		if p.RampEndRPS == 0 && p.TargetRPS <= 0 {
			return fmt.Errorf("模式 [%s] 需要 ramp_end_rps 或 target_rps", p.Name)
		}

	case TypeBurst:
		if p.TargetRPS <= 0 {
			return fmt.Errorf("模式 [%s] burst 需要 target_rps > 0", p.Name)
		}
		if p.BurstIntervalSeconds < 0 || p.BurstMultiplier < 0 {
			return fmt.Errorf("模式 [%s] burst 参数不能为负", p.Name)
		}

	case TypeWave:
		if p.TargetRPS <= 0 {
			return fmt.Errorf("模式 [%s] wave 需要 target_rps > 0", p.Name)
		}

	case TypeStep:
		if p.Steps < 0 {
			return fmt.Errorf("模式 [%s] steps 不能为负", p.Name)
		}
		if p.RampEndRPS == 0 && p.TargetRPS <= 0 {
			return fmt.Errorf("模式 [%s] 需要 ramp_end_rps 或 target_rps", p.Name)
		}

	case TypeSpike:
		if p.TargetRPS <= 0 {
			return fmt.Errorf("模式 [%s] spike 需要 target_rps > 0", p.Name)
		}
		if p.SpikeOffsetSeconds < 0 || p.SpikeOffsetSeconds >= float64(p.DurationSeconds) {
			return fmt.Errorf("模式 [%s] spike_offset 必须在 [0, %d) 秒内", p.Name, p.DurationSeconds)
		}

	case TypeRealisticUser:
		if p.UserArrivalRate < 0 {
			return fmt.Errorf("模式 [%s] user_arrival_rate 不能为负", p.Name)
		}
		if len(p.SessionDuration) != 0 && len(p.SessionDuration) != 2 {
			return fmt.Errorf("模式 [%s] session_duration 需要 [最短,最长] 两个值", p.Name)
		}
		if len(p.ThinkTime) != 0 && len(p.ThinkTime) != 2 {
			return fmt.Errorf("模式 [%s] think_time 需要 [最短,最长] 两个值", p.Name)
		}

	default:
		return fmt.Errorf("未知的流量模式类型: %s", p.Type)
	}

	return nil
}
