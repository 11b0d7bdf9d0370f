/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-06-24 08:45:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-03 16:22:07
 * @FilePath: \slayer\pattern\preview.go
 * @Description: 模式预览与标准模式集
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package pattern

import (
	"math"

	"github.com/kamalyes/go-toolbox/pkg/mathx"
)

// RatePoint 速率曲线上的一个采样点
type RatePoint struct {
	OffsetSeconds int `json:"offset"` // 相对起点的偏移（秒）
	RPS           int `json:"rps"`    // 该时刻的目标速率
}

// Preview 按1秒粒度采样模式的速率曲线，不执行任何派发
// 用于 dry-run 预估负载形状
func Preview(p *RequestPattern, sampleSeconds int) []RatePoint {
	if sampleSeconds <= 0 {
		return nil
	}

	points := make([]RatePoint, 0, sampleSeconds)
	for t := 0; t < sampleSeconds; t++ {
		points = append(points, RatePoint{
			OffsetSeconds: t,
			RPS:           int(rateAt(p, float64(t), float64(sampleSeconds))),
		})
	}
	return points
}

// ExpectedDispatches 预估模式在全时长内的派发总数
func ExpectedDispatches(p *RequestPattern) int {
	var total float64
	duration := float64(p.DurationSeconds)
	for t := 0.0; t < duration; t++ {
		total += rateAt(p, t, duration)
	}
	return int(math.Ceil(total))
}

// rateAt 闭式计算 elapsed 时刻的速率（与各生成器的速率函数保持一致）
func rateAt(p *RequestPattern, elapsed, duration float64) float64 {
	target := float64(p.TargetRPS)

	switch p.Type {
	case TypeConstant:
		return target

	case TypeRampUp, TypeRampDown:
		startRPS := float64(p.RampStartRPS)
		endRPS := float64(mathx.IfNotZero(p.RampEndRPS, p.TargetRPS))
		return startRPS + (endRPS-startRPS)*(elapsed/duration)

	case TypeBurst:
		interval := p.BurstIntervalSeconds
		if interval == 0 {
			interval = 30.0
		}
		multiplier := p.BurstMultiplier
		if multiplier == 0 {
			multiplier = 3.0
		}
		if math.Mod(elapsed, interval) < burstWindowSeconds {
			return target * multiplier
		}
		return target

	case TypeWave:
		amplitude := p.WaveAmplitude
		if amplitude == 0 {
			amplitude = target * 0.5
		}
		period := p.WavePeriodSeconds
		if period == 0 {
			period = 60.0
		}
		return math.Max(target+amplitude*math.Sin(2*math.Pi*elapsed/period), 1)

	case TypeStep:
		steps := mathx.IfNotZero(p.Steps, 5)
		startRPS := float64(p.RampStartRPS)
		endRPS := float64(mathx.IfNotZero(p.RampEndRPS, p.TargetRPS))
		if steps == 1 {
			return endRPS
		}
		index := int(elapsed / (duration / float64(steps)))
		if index >= steps {
			index = steps - 1
		}
		return startRPS + (endRPS-startRPS)*float64(index)/float64(steps-1)

	case TypeSpike:
		multiplier := p.SpikeMultiplier
		if multiplier == 0 {
			multiplier = 5.0
		}
		offset := p.SpikeOffsetSeconds
		if offset == 0 {
			offset = duration / 2
		}
		window := p.SpikeDurationSeconds
		if window == 0 {
			window = burstWindowSeconds
		}
		if elapsed >= offset && elapsed < offset+window {
			return target * multiplier
		}
		return target

	case TypeRealisticUser:
		// 稳态估算：活跃会话数 ≈ 到达速率×平均会话时长，每会话每平均思考时间发一次
		arrival := p.UserArrivalRate
		if arrival == 0 {
			arrival = 1.0
		}
		sessionMin, sessionMax := 60.0, 300.0
		if len(p.SessionDuration) == 2 {
			sessionMin, sessionMax = float64(p.SessionDuration[0]), float64(p.SessionDuration[1])
		}
		thinkMin, thinkMax := 1.0, 10.0
		if len(p.ThinkTime) == 2 {
			thinkMin, thinkMax = p.ThinkTime[0], p.ThinkTime[1]
		}
		avgSession := (sessionMin + sessionMax) / 2
		avgThink := (thinkMin + thinkMax) / 2
		active := math.Min(arrival*avgSession, arrival*elapsed)
		return active / avgThink

	default:
		return target
	}
}

// StandardPatterns 标准测试模式集
func StandardPatterns() map[string]*RequestPattern {
	return map[string]*RequestPattern{
		"quick_constant": {
			Name:            "Quick Constant Load",
			Type:            TypeConstant,
			DurationSeconds: 60,
			TargetRPS:       50,
		},
		"ramp_up_test": {
			Name:            "Gradual Ramp Up",
			Type:            TypeRampUp,
			DurationSeconds: 300,
			TargetRPS:       100,
			RampStartRPS:    10,
			RampEndRPS:      100,
		},
		"spike_test": {
			Name:                 "Spike Test",
			Type:                 TypeBurst,
			DurationSeconds:      120,
			TargetRPS:            50,
			BurstIntervalSeconds: 30,
			BurstMultiplier:      5,
		},
		"realistic_users": {
			Name:            "Realistic User Behavior",
			Type:            TypeRealisticUser,
			DurationSeconds: 600,
			UserArrivalRate: 2.0,
			SessionDuration: []int{30, 120},
			ThinkTime:       []float64{2.0, 8.0},
		},
	}
}
