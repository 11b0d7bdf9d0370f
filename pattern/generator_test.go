/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-06-24 10:30:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-06 18:03:29
 * @FilePath: \slayer\pattern\generator_test.go
 * @Description: 流量生成器测试
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package pattern

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConstantGenerator(t *testing.T) {
	start := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	t.Run("派发数量等于速率乘时长", func(t *testing.T) {
		p := &RequestPattern{Name: "c", Type: TypeConstant, DurationSeconds: 10, TargetRPS: 5}
		gen := NewConstantGenerator()
		schedule, err := gen.Schedule(p, start)
		assert.NoError(t, err)

		all := schedule.Drain()
		// ⌈5*10⌉ ± 1
		assert.InDelta(t, 50, len(all), 1)
	})

	t.Run("时间戳单调不减且在时长内", func(t *testing.T) {
		p := &RequestPattern{Name: "c", Type: TypeConstant, DurationSeconds: 3, TargetRPS: 20}
		gen := NewConstantGenerator()
		schedule, err := gen.Schedule(p, start)
		assert.NoError(t, err)

		end := start.Add(p.Duration())
		prev := start.Add(-time.Second)
		for {
			d, ok := schedule.Next()
			if !ok {
				break
			}
			assert.False(t, d.Time.Before(prev), "时间戳必须单调不减")
			assert.False(t, d.Time.Before(start))
			assert.True(t, d.Time.Before(end))
			prev = d.Time
		}
	})

	t.Run("序号连续递增", func(t *testing.T) {
		p := &RequestPattern{Name: "c", Type: TypeConstant, DurationSeconds: 2, TargetRPS: 10}
		gen := NewConstantGenerator()
		schedule, err := gen.Schedule(p, start)
		assert.NoError(t, err)

		for i, d := range schedule.Drain() {
			assert.Equal(t, uint64(i), d.SequenceID)
		}
	})

	t.Run("非法配置拒绝", func(t *testing.T) {
		gen := NewConstantGenerator()
		_, err := gen.Schedule(&RequestPattern{Name: "bad", Type: TypeConstant, DurationSeconds: 10}, start)
		assert.Error(t, err)

		_, err = gen.Schedule(&RequestPattern{Name: "bad", Type: TypeConstant, TargetRPS: 10}, start)
		assert.Error(t, err)
	})
}

func TestRampGenerator(t *testing.T) {
	start := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	t.Run("速率按进度线性插值", func(t *testing.T) {
		p := &RequestPattern{
			Name: "ramp", Type: TypeRampUp,
			DurationSeconds: 100, TargetRPS: 100,
			RampStartRPS: 10, RampEndRPS: 100,
		}
		gen := NewRampGenerator()
		schedule, err := gen.Schedule(p, start)
		assert.NoError(t, err)

		all := schedule.Drain()
		assert.NotEmpty(t, all)

		// 起点速率 ≈ 10
		assert.InDelta(t, 10, all[0].CurrentRate, 0.5)

		// 任意事件的速率满足 start + (end-start)*f
		for _, d := range all {
			f := d.Time.Sub(start).Seconds() / 100.0
			expected := 10 + (100-10)*f
			assert.InDelta(t, expected, d.CurrentRate, 0.5)
		}

		// 爬升方向单调不减
		for i := 1; i < len(all); i++ {
			assert.GreaterOrEqual(t, all[i].CurrentRate, all[i-1].CurrentRate)
		}
	})

	t.Run("下降方向单调不增", func(t *testing.T) {
		p := &RequestPattern{
			Name: "down", Type: TypeRampDown,
			DurationSeconds: 30, TargetRPS: 5,
			RampStartRPS: 50, RampEndRPS: 5,
		}
		gen := NewRampGenerator()
		schedule, err := gen.Schedule(p, start)
		assert.NoError(t, err)

		all := schedule.Drain()
		for i := 1; i < len(all); i++ {
			assert.LessOrEqual(t, all[i].CurrentRate, all[i-1].CurrentRate)
		}
	})

	t.Run("零起点速率不产生除零", func(t *testing.T) {
		p := &RequestPattern{
			Name: "zero", Type: TypeRampUp,
			DurationSeconds: 10, TargetRPS: 20,
			RampStartRPS: 0,
		}
		gen := NewRampGenerator()
		schedule, err := gen.Schedule(p, start)
		assert.NoError(t, err)

		all := schedule.Drain()
		assert.NotEmpty(t, all)
		for _, d := range all {
			assert.Greater(t, d.CurrentRate, 0.0)
		}
	})
}

func TestBurstGenerator(t *testing.T) {
	start := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	t.Run("突发窗口内速率乘以倍数", func(t *testing.T) {
		p := &RequestPattern{
			Name: "burst", Type: TypeBurst,
			DurationSeconds: 65, TargetRPS: 10,
			BurstIntervalSeconds: 30, BurstMultiplier: 3,
		}
		gen := NewBurstGenerator()
		schedule, err := gen.Schedule(p, start)
		assert.NoError(t, err)

		var burstCount, normalCount int
		for {
			d, ok := schedule.Next()
			if !ok {
				break
			}
			elapsed := d.Time.Sub(start).Seconds()
			inWindow := int(elapsed)%30 < 5

			if d.Burst {
				burstCount++
				assert.InDelta(t, 30, d.CurrentRate, 0.01, "窗口内速率应为 base*multiplier")
				assert.True(t, inWindow, "突发标记应落在 elapsed mod interval < 5 的窗口内")
			} else {
				normalCount++
				assert.InDelta(t, 10, d.CurrentRate, 0.01)
			}
			// 调度级速率上限
			assert.LessOrEqual(t, d.CurrentRate, 30.0)
		}

		assert.Greater(t, burstCount, 0)
		assert.Greater(t, normalCount, 0)
	})
}

func TestWaveGenerator(t *testing.T) {
	start := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	t.Run("速率围绕基线波动且不低于1", func(t *testing.T) {
		p := &RequestPattern{
			Name: "wave", Type: TypeWave,
			DurationSeconds: 120, TargetRPS: 20,
			WaveAmplitude: 25, WavePeriodSeconds: 60,
		}
		gen := NewWaveGenerator()
		schedule, err := gen.Schedule(p, start)
		assert.NoError(t, err)

		var sawAboveBase, sawBelowBase bool
		for {
			d, ok := schedule.Next()
			if !ok {
				break
			}
			assert.GreaterOrEqual(t, d.CurrentRate, 1.0, "波谷速率下限为1")
			assert.LessOrEqual(t, d.CurrentRate, 45.0+0.01)
			if d.CurrentRate > 20 {
				sawAboveBase = true
			}
			if d.CurrentRate < 20 {
				sawBelowBase = true
			}
		}
		assert.True(t, sawAboveBase)
		assert.True(t, sawBelowBase)
	})
}

func TestStepGenerator(t *testing.T) {
	start := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	t.Run("阶梯从起点递增到终点", func(t *testing.T) {
		p := &RequestPattern{
			Name: "step", Type: TypeStep,
			DurationSeconds: 50, TargetRPS: 50,
			RampStartRPS: 10, RampEndRPS: 50, Steps: 5,
		}
		gen := NewStepGenerator()
		schedule, err := gen.Schedule(p, start)
		assert.NoError(t, err)

		all := schedule.Drain()
		assert.NotEmpty(t, all)

		// 首段速率为起点，末段速率为终点
		assert.InDelta(t, 10, all[0].CurrentRate, 0.01)
		assert.InDelta(t, 50, all[len(all)-1].CurrentRate, 0.01)

		// 只出现5个离散速率档位
		levels := make(map[float64]bool)
		for _, d := range all {
			levels[d.CurrentRate] = true
			assert.GreaterOrEqual(t, d.CurrentRate, 10.0)
			assert.LessOrEqual(t, d.CurrentRate, 50.0)
		}
		assert.LessOrEqual(t, len(levels), 5)
	})
}

func TestSpikeGenerator(t *testing.T) {
	start := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	t.Run("尖峰只在配置的偏移窗口出现", func(t *testing.T) {
		p := &RequestPattern{
			Name: "spike", Type: TypeSpike,
			DurationSeconds: 60, TargetRPS: 10,
			SpikeMultiplier: 4, SpikeOffsetSeconds: 20, SpikeDurationSeconds: 5,
		}
		gen := NewSpikeGenerator()
		schedule, err := gen.Schedule(p, start)
		assert.NoError(t, err)

		var spikeCount int
		for {
			d, ok := schedule.Next()
			if !ok {
				break
			}
			elapsed := d.Time.Sub(start).Seconds()
			if d.Burst {
				spikeCount++
				assert.InDelta(t, 40, d.CurrentRate, 0.01)
				assert.GreaterOrEqual(t, elapsed, 20.0)
				assert.Less(t, elapsed, 25.0)
			} else {
				assert.InDelta(t, 10, d.CurrentRate, 0.01)
			}
		}
		assert.Greater(t, spikeCount, 0)
	})
}

func TestRealisticUserGenerator(t *testing.T) {
	start := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	t.Run("会话交错且全局按时间有序", func(t *testing.T) {
		p := &RequestPattern{
			Name: "users", Type: TypeRealisticUser,
			DurationSeconds: 30,
			UserArrivalRate: 2.0,
			SessionDuration: []int{5, 15},
			ThinkTime:       []float64{0.5, 2.0},
		}
		gen := NewRealisticUserGenerator()
		schedule, err := gen.Schedule(p, start)
		assert.NoError(t, err)

		all := schedule.Drain()
		assert.NotEmpty(t, all)

		end := start.Add(p.Duration())
		sessions := make(map[int64]bool)
		prev := start.Add(-time.Second)
		for _, d := range all {
			assert.False(t, d.Time.Before(prev), "全局时间有序")
			assert.True(t, d.Time.Before(end))
			assert.Greater(t, d.SessionID, int64(0), "每个派发都属于一个会话")
			sessions[d.SessionID] = true
			prev = d.Time
		}
		// 30秒内到达速率2.0应产生多个会话
		assert.Greater(t, len(sessions), 1)
	})
}

func TestCreateGenerator(t *testing.T) {
	cases := []struct {
		name    string
		ptype   Type
		wantErr bool
	}{
		{"constant", TypeConstant, false},
		{"ramp_up", TypeRampUp, false},
		{"ramp_down", TypeRampDown, false},
		{"burst", TypeBurst, false},
		{"wave", TypeWave, false},
		{"step", TypeStep, false},
		{"spike", TypeSpike, false},
		{"realistic_user", TypeRealisticUser, false},
		{"unknown", Type("nope"), true},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			gen, err := CreateGenerator(c.ptype)
			if c.wantErr {
				assert.Error(t, err)
				assert.Nil(t, gen)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, gen)
			}
		})
	}
}

func TestMethodPicker(t *testing.T) {
	t.Run("单方法直接返回", func(t *testing.T) {
		picker := newMethodPicker(&RequestPattern{Methods: []string{"POST"}})
		for i := 0; i < 10; i++ {
			assert.Equal(t, "POST", picker.Pick())
		}
	})

	t.Run("缺省方法为GET", func(t *testing.T) {
		picker := newMethodPicker(&RequestPattern{})
		assert.Equal(t, "GET", picker.Pick())
	})

	t.Run("权重为零的方法不被选中", func(t *testing.T) {
		picker := newMethodPicker(&RequestPattern{
			Methods:       []string{"GET", "DELETE"},
			MethodWeights: []float64{1.0, 0.0},
		})
		for i := 0; i < 100; i++ {
			assert.Equal(t, "GET", picker.Pick())
		}
	})
}

func TestPayloadFiller(t *testing.T) {
	t.Run("无模板返回nil", func(t *testing.T) {
		filler := newPayloadFiller(&RequestPattern{})
		assert.Nil(t, filler.Fill())
	})

	t.Run("占位符从变量池取值", func(t *testing.T) {
		filler := newPayloadFiller(&RequestPattern{
			PayloadTemplates: []map[string]any{
				{"user": "${username}", "count": 3},
			},
			PayloadVariables: map[string][]string{
				"username": {"alice", "bob"},
			},
		})

		for i := 0; i < 20; i++ {
			payload := filler.Fill()
			assert.NotNil(t, payload)
			assert.Contains(t, []any{"alice", "bob"}, payload["user"])
			assert.Equal(t, 3, payload["count"])
		}
	})

	t.Run("未知变量保留原文", func(t *testing.T) {
		filler := newPayloadFiller(&RequestPattern{
			PayloadTemplates: []map[string]any{{"k": "${missing}"}},
		})
		payload := filler.Fill()
		assert.Equal(t, "${missing}", payload["k"])
	})

	t.Run("模板不被修改", func(t *testing.T) {
		template := map[string]any{"user": "${username}"}
		filler := newPayloadFiller(&RequestPattern{
			PayloadTemplates: []map[string]any{template},
			PayloadVariables: map[string][]string{"username": {"alice"}},
		})
		filler.Fill()
		assert.Equal(t, "${username}", template["user"])
	})
}

func TestPreview(t *testing.T) {
	t.Run("恒定模式曲线平直", func(t *testing.T) {
		p := &RequestPattern{Name: "c", Type: TypeConstant, DurationSeconds: 60, TargetRPS: 50}
		points := Preview(p, 10)
		assert.Len(t, points, 10)
		for _, pt := range points {
			assert.Equal(t, 50, pt.RPS)
		}
	})

	t.Run("爬升模式曲线递增", func(t *testing.T) {
		p := &RequestPattern{
			Name: "r", Type: TypeRampUp,
			DurationSeconds: 60, TargetRPS: 100, RampStartRPS: 10, RampEndRPS: 100,
		}
		points := Preview(p, 60)
		assert.Equal(t, 10, points[0].RPS)
		for i := 1; i < len(points); i++ {
			assert.GreaterOrEqual(t, points[i].RPS, points[i-1].RPS)
		}
	})

	t.Run("预估派发总数与恒定速率一致", func(t *testing.T) {
		p := &RequestPattern{Name: "c", Type: TypeConstant, DurationSeconds: 10, TargetRPS: 5}
		assert.Equal(t, 50, ExpectedDispatches(p))
	})
}

func TestStandardPatterns(t *testing.T) {
	patterns := StandardPatterns()
	assert.Len(t, patterns, 4)

	for name, p := range patterns {
		t.Run(name, func(t *testing.T) {
			assert.NoError(t, p.Validate())
			gen, err := CreateGenerator(p.Type)
			assert.NoError(t, err)
			assert.NotNil(t, gen)
		})
	}
}
