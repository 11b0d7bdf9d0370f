/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-06-22 10:05:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-07-26 14:09:51
 * @FilePath: \slayer\pattern\generator.go
 * @Description: 流量生成器接口与工厂
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package pattern

import (
	"fmt"
	"time"
)

// Generator 流量生成器接口
// 每种流量模式一个实现，只能通过 CreateGenerator 或类型化构造函数创建
type Generator interface {
	// Schedule 生成按时间严格有序的有限派发序列
	// 序列受模式时长约束，重新调度需再次调用
	Schedule(p *RequestPattern, start time.Time) (*Schedule, error)
}

// Schedule 惰性派发序列（拉取式迭代器）
type Schedule struct {
	next func() (ScheduledDispatch, bool)
}

// Next 取下一个派发事件，序列耗尽时返回 false
func (s *Schedule) Next() (ScheduledDispatch, bool) {
	return s.next()
}

// Drain 取出剩余全部派发事件（测试和预览用，长序列慎用）
func (s *Schedule) Drain() []ScheduledDispatch {
	var all []ScheduledDispatch
	for {
		d, ok := s.next()
		if !ok {
			return all
		}
		all = append(all, d)
	}
}

// CreateGenerator 根据模式类型创建生成器
func CreateGenerator(t Type) (Generator, error) {
	switch t {
	case TypeConstant:
		return NewConstantGenerator(), nil
	case TypeRampUp, TypeRampDown:
		return NewRampGenerator(), nil
	case TypeBurst:
		return NewBurstGenerator(), nil
	case TypeWave:
		return NewWaveGenerator(), nil
	case TypeStep:
		return NewStepGenerator(), nil
	case TypeSpike:
		return NewSpikeGenerator(), nil
	case TypeRealisticUser:
		return NewRealisticUserGenerator(), nil
	default:
		return nil, fmt.Errorf("未知的流量模式类型: %s", t)
	}
}

// rateFunc 返回 elapsed 秒时刻的目标速率（RPS）
type rateFunc func(elapsed float64) float64

// annotateFunc 给派发事件追加模式特有的注解
type annotateFunc func(d *ScheduledDispatch, elapsed float64)

// newRateSchedule 基于速率函数构造派发序列
// 速率 <= 0 时按固定小步进推进时间而不产生派发
func newRateSchedule(p *RequestPattern, start time.Time, rate rateFunc, annotate annotateFunc) *Schedule {
	var (
		elapsed  float64
		seq      uint64
		picker   = newMethodPicker(p)
		filler   = newPayloadFiller(p)
		duration = float64(p.DurationSeconds)
	)

	return &Schedule{next: func() (ScheduledDispatch, bool) {
		for elapsed < duration {
			rps := rate(elapsed)
			if rps <= 0 {
				elapsed += idleStepSeconds
				continue
			}

			d := ScheduledDispatch{
				Time:        start.Add(time.Duration(elapsed * float64(time.Second))),
				Method:      picker.Pick(),
				Payload:     filler.Fill(),
				SequenceID:  seq,
				CurrentRate: rps,
			}
			if annotate != nil {
				annotate(&d, elapsed)
			}

			seq++
			elapsed += 1.0 / rps
			return d, true
		}
		return ScheduledDispatch{}, false
	}}
}
