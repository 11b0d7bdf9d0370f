/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-06-22 10:40:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-02 17:31:26
 * @FilePath: \slayer\pattern\shapes.go
 * @Description: 速率曲线类生成器（constant/ramp/burst/wave/step/spike）
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package pattern

import (
	"math"
	"time"

	"github.com/kamalyes/go-toolbox/pkg/mathx"
)

// ConstantGenerator 恒定速率生成器
type ConstantGenerator struct{}

// NewConstantGenerator 创建恒定速率生成器
func NewConstantGenerator() *ConstantGenerator {
	return &ConstantGenerator{}
}

// Schedule 固定间隔 1/target_rps 派发
func (g *ConstantGenerator) Schedule(p *RequestPattern, start time.Time) (*Schedule, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	target := float64(p.TargetRPS)
	return newRateSchedule(p, start, func(elapsed float64) float64 {
		return target
	}, nil), nil
}

// RampGenerator 线性渐变生成器（爬升/下降由起止速率决定）
type RampGenerator struct{}

// NewRampGenerator 创建线性渐变生成器
func NewRampGenerator() *RampGenerator {
	return &RampGenerator{}
}

// Schedule 速率按进度线性插值：rate(f) = start + (end-start)*f
func (g *RampGenerator) Schedule(p *RequestPattern, start time.Time) (*Schedule, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	startRPS := float64(p.RampStartRPS)
	endRPS := float64(mathx.IfNotZero(p.RampEndRPS, p.TargetRPS))
	duration := float64(p.DurationSeconds)

	return newRateSchedule(p, start, func(elapsed float64) float64 {
		progress := elapsed / duration
		return startRPS + (endRPS-startRPS)*progress
	}, nil), nil
}

// BurstGenerator 周期突发生成器
type BurstGenerator struct{}

// NewBurstGenerator 创建周期突发生成器
func NewBurstGenerator() *BurstGenerator {
	return &BurstGenerator{}
}

// Schedule 每 burst_interval 秒打开一个5秒突发窗口，窗口内速率乘以 burst_multiplier
// 窗口判定：elapsed mod burst_interval < 5
func (g *BurstGenerator) Schedule(p *RequestPattern, start time.Time) (*Schedule, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	base := float64(p.TargetRPS)
	interval := p.BurstIntervalSeconds
	if interval == 0 {
		interval = 30.0
	}
	multiplier := p.BurstMultiplier
	if multiplier == 0 {
		multiplier = 3.0
	}

	inBurst := func(elapsed float64) bool {
		return math.Mod(elapsed, interval) < burstWindowSeconds
	}

	return newRateSchedule(p, start, func(elapsed float64) float64 {
		if inBurst(elapsed) {
			return base * multiplier
		}
		return base
	}, func(d *ScheduledDispatch, elapsed float64) {
		d.Burst = inBurst(elapsed)
	}), nil
}

// WaveGenerator 正弦波动生成器
type WaveGenerator struct{}

// NewWaveGenerator 创建正弦波动生成器
func NewWaveGenerator() *WaveGenerator {
	return &WaveGenerator{}
}

// Schedule 速率 = base + amplitude*sin(2π*elapsed/period)，下限1
func (g *WaveGenerator) Schedule(p *RequestPattern, start time.Time) (*Schedule, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	base := float64(p.TargetRPS)
	amplitude := p.WaveAmplitude
	if amplitude == 0 {
		amplitude = base * 0.5
	}
	period := p.WavePeriodSeconds
	if period == 0 {
		period = 60.0
	}

	return newRateSchedule(p, start, func(elapsed float64) float64 {
		factor := math.Sin(2 * math.Pi * elapsed / period)
		return math.Max(base+amplitude*factor, 1)
	}, nil), nil
}

// StepGenerator 阶梯生成器
type StepGenerator struct{}

// NewStepGenerator 创建阶梯生成器
func NewStepGenerator() *StepGenerator {
	return &StepGenerator{}
}

// Schedule 时长均分为 steps 段，速率从起点到终点阶梯插值
// 第i段速率 = start + (end-start)*i/(steps-1)，首段为起点、末段为终点
func (g *StepGenerator) Schedule(p *RequestPattern, start time.Time) (*Schedule, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	steps := mathx.IfNotZero(p.Steps, 5)
	startRPS := float64(p.RampStartRPS)
	endRPS := float64(mathx.IfNotZero(p.RampEndRPS, p.TargetRPS))
	duration := float64(p.DurationSeconds)
	segment := duration / float64(steps)

	return newRateSchedule(p, start, func(elapsed float64) float64 {
		index := int(elapsed / segment)
		if index >= steps {
			index = steps - 1
		}
		if steps == 1 {
			return endRPS
		}
		return startRPS + (endRPS-startRPS)*float64(index)/float64(steps-1)
	}, nil), nil
}

// SpikeGenerator 单次尖峰生成器
type SpikeGenerator struct{}

// NewSpikeGenerator 创建单次尖峰生成器
func NewSpikeGenerator() *SpikeGenerator {
	return &SpikeGenerator{}
}

// Schedule 偏移 spike_offset 处打开一个 spike_duration 秒的尖峰窗口
// 窗口内速率乘以 spike_multiplier；offset 为0时取测试中点
func (g *SpikeGenerator) Schedule(p *RequestPattern, start time.Time) (*Schedule, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	base := float64(p.TargetRPS)
	multiplier := p.SpikeMultiplier
	if multiplier == 0 {
		multiplier = 5.0
	}
	offset := p.SpikeOffsetSeconds
	if offset == 0 {
		offset = float64(p.DurationSeconds) / 2
	}
	window := p.SpikeDurationSeconds
	if window == 0 {
		window = burstWindowSeconds
	}

	inSpike := func(elapsed float64) bool {
		return elapsed >= offset && elapsed < offset+window
	}

	return newRateSchedule(p, start, func(elapsed float64) float64 {
		if inSpike(elapsed) {
			return base * multiplier
		}
		return base
	}, func(d *ScheduledDispatch, elapsed float64) {
		d.Burst = inSpike(elapsed)
	}), nil
}
