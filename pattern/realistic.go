/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-06-23 09:10:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-05 10:18:40
 * @FilePath: \slayer\pattern\realistic.go
 * @Description: 真实用户行为生成器（会话+思考时间）
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package pattern

import (
	"time"

	"github.com/kamalyes/go-toolbox/pkg/random"
)

// RealisticUserGenerator 真实用户行为生成器
// 用户按到达速率进场，每个会话在随机时长内按随机思考间隔发请求，
// 会话相互交错，全局按派发时间排序
type RealisticUserGenerator struct{}

// NewRealisticUserGenerator 创建真实用户行为生成器
func NewRealisticUserGenerator() *RealisticUserGenerator {
	return &RealisticUserGenerator{}
}

// userSession 单个模拟用户会话
type userSession struct {
	id       int64
	endAt    float64 // 会话结束时间（相对秒）
	nextEmit float64 // 下一次请求时间（相对秒）
	requests int
}

// Schedule 以固定小步进推进模拟时钟，逐出到期会话的请求
func (g *RealisticUserGenerator) Schedule(p *RequestPattern, start time.Time) (*Schedule, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	arrivalRate := p.UserArrivalRate
	if arrivalRate == 0 {
		arrivalRate = 1.0
	}
	sessionMin, sessionMax := 60, 300
	if len(p.SessionDuration) == 2 {
		sessionMin, sessionMax = p.SessionDuration[0], p.SessionDuration[1]
	}
	thinkMin, thinkMax := 1.0, 10.0
	if len(p.ThinkTime) == 2 {
		thinkMin, thinkMax = p.ThinkTime[0], p.ThinkTime[1]
	}

	var (
		elapsed       float64
		lastArrival   float64
		nextSessionID int64
		seq           uint64
		sessions      []*userSession
		pending       []ScheduledDispatch
		picker        = newMethodPicker(p)
		filler        = newPayloadFiller(p)
		duration      = float64(p.DurationSeconds)
	)

	avgThink := (thinkMin + thinkMax) / 2

	sampleThink := func() float64 {
		return random.RandFloat(thinkMin, thinkMax)
	}

	// tick 推进一个模拟步，收集本步到期的派发事件
	tick := func() {
		// 按到达速率创建新会话
		if elapsed-lastArrival >= 1.0/arrivalRate {
			nextSessionID++
			sessions = append(sessions, &userSession{
				id:       nextSessionID,
				endAt:    elapsed + float64(random.RandInt(sessionMin, sessionMax)),
				nextEmit: elapsed + sampleThink(),
			})
			lastArrival = elapsed
		}

		// 逐出到期请求并淘汰过期会话
		alive := sessions[:0]
		for _, s := range sessions {
			if elapsed >= s.endAt {
				continue
			}
			if elapsed >= s.nextEmit {
				rate := float64(len(sessions)) / avgThink
				pending = append(pending, ScheduledDispatch{
					Time:        start.Add(time.Duration(elapsed * float64(time.Second))),
					Method:      picker.Pick(),
					Payload:     filler.Fill(),
					SequenceID:  seq,
					CurrentRate: rate,
					SessionID:   s.id,
				})
				seq++
				s.nextEmit = elapsed + sampleThink()
				s.requests++
			}
			alive = append(alive, s)
		}
		sessions = alive

		elapsed += idleStepSeconds
	}

	return &Schedule{next: func() (ScheduledDispatch, bool) {
		for len(pending) == 0 {
			if elapsed >= duration {
				return ScheduledDispatch{}, false
			}
			tick()
		}
		d := pending[0]
		pending = pending[1:]
		return d, true
	}}, nil
}
