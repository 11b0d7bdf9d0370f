/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-06-26 09:10:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-07-25 17:40:09
 * @FilePath: \slayer\engine\dispatch.go
 * @Description: 派发循环与请求执行
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sudoinstallopsecc/slayer/pattern"
	"github.com/sudoinstallopsecc/slayer/throttle"
	"github.com/sudoinstallopsecc/slayer/types"
)

// 丢弃派发后的停顿边界：下限防止积压事件空转，上限保证派发流不被长熔断等待阻塞
const (
	minDenyPause = 10 * time.Millisecond
	maxDenyPause = 100 * time.Millisecond
)

// runSchedule 消费派发序列：等到计划时间，限流裁决后投递给工作协程
// 被限流否决的派发直接丢弃（停顿片刻后继续），不重试
func (e *Engine) runSchedule(ctx context.Context, sched *pattern.Schedule, jobs chan<- *pattern.ScheduledDispatch) error {
	var proposed float64

	for {
		d, ok := sched.Next()
		if !ok {
			return nil
		}

		if err := sleepUntil(ctx, d.Time); err != nil {
			return err
		}

		// 调度器提案当前计算速率，限流器裁决实际放行节奏
		if d.CurrentRate != proposed {
			e.throttle.SetTargetRate(d.CurrentRate)
			proposed = d.CurrentRate
		}

		allowed, wait := e.throttle.ShouldDispatch()
		if !allowed {
			if e.throttle.State() == throttle.StateEmergencyStop {
				return ErrEmergencyStopped
			}
			e.dropped.Add(1)
			e.logger.Debugf("⏭️  派发 #%d 被限流丢弃，建议等待 %s", d.SequenceID, wait)
			if wait < minDenyPause {
				wait = minDenyPause
			} else if wait > maxDenyPause {
				wait = maxDenyPause
			}
			if err := sleepFor(ctx, wait); err != nil {
				return err
			}
			continue
		}

		job := d
		select {
		case jobs <- &job:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// runWorker 工作协程：执行派发的请求并记录结果
// 运行取消后只排空队列不再执行；在途请求由客户端超时自然收束
func (e *Engine) runWorker(ctx context.Context, jobs <-chan *pattern.ScheduledDispatch) {
	sendCtx := context.WithoutCancel(ctx)
	for d := range jobs {
		if ctx.Err() != nil {
			continue
		}
		e.execute(sendCtx, d)
	}
}

// execute 执行单次请求：发送、验证、四路记录（指标/限流/存储/外发）
func (e *Engine) execute(ctx context.Context, d *pattern.ScheduledDispatch) {
	req := e.buildRequest(d)
	resp, err := e.client.Send(ctx, req)
	if resp == nil {
		resp = &types.Response{Error: err, ErrorKind: types.ErrorKindProtocol}
	}

	result := e.buildResult(d, req, resp, err)

	// 验证通过与否细化成功判定，失败回馈给限流器
	if err == nil && len(e.cfg.Verify) > 0 {
		if ok, verr := e.verifier.Run(resp, e.cfg.Verify); !ok {
			result.Success = false
			result.ErrorKind = types.ErrorKindVerification
			if verr != nil {
				result.Error = verr
				result.ErrorMsg = verr.Error()
			}
		}
		result.Verifications = resp.Verifications
	}

	e.collector.Record(result)
	e.throttle.RecordResult(result.Duration, result.StatusCode, result.ErrorKind)
	if e.sink != nil {
		e.sink.Write(result)
	}
	if e.reporter != nil {
		e.reporter(result)
	}
}

// buildRequest 由派发事件和配置组装请求
// 配置中的模板变量每次派发重新解析；载荷模板在调度期已填充
func (e *Engine) buildRequest(d *pattern.ScheduledDispatch) *types.Request {
	url := e.resolve(e.cfg.TargetURL)
	body := e.resolve(e.cfg.Body)
	headers := e.cfg.Headers

	if len(d.Payload) > 0 {
		if data, err := json.Marshal(d.Payload); err == nil {
			body = string(data)
			headers = withContentType(headers, string(types.ContentTypeJSON))
		} else {
			e.logger.Warnf("⚠️  载荷序列化失败，改用配置请求体: %v", err)
		}
	}

	method := d.Method
	if method == "" {
		method = e.cfg.Method
	}

	return &types.Request{
		Method:  method,
		URL:     url,
		Headers: headers,
		Body:    body,
		Timeout: e.cfg.Timeout.D(),
	}
}

// resolve 解析配置值中的模板函数，失败时保留原文
func (e *Engine) resolve(raw string) string {
	if e.cfg.VarResolver == nil || !strings.Contains(raw, "{{") {
		return raw
	}
	resolved, err := e.cfg.VarResolver.Resolve(raw)
	if err != nil {
		e.logger.Debugf("变量解析失败，保留原文: %v", err)
		return raw
	}
	return resolved
}

// withContentType 在不修改原始头表的前提下补充 Content-Type
func withContentType(headers map[string]string, contentType string) map[string]string {
	for k := range headers {
		if strings.EqualFold(k, "Content-Type") {
			return headers
		}
	}
	merged := make(map[string]string, len(headers)+1)
	for k, v := range headers {
		merged[k] = v
	}
	merged["Content-Type"] = contentType
	return merged
}

// buildResult 组装请求结果记录
func (e *Engine) buildResult(d *pattern.ScheduledDispatch, req *types.Request, resp *types.Response, err error) *types.RequestResult {
	result := &types.RequestResult{
		ID:         e.idGen.GenerateRequestID(),
		NodeID:     e.nodeID,
		SequenceID: d.SequenceID,
		StatusCode: resp.StatusCode,
		Duration:   resp.Duration,
		Size:       float64(resp.Size),
		Timestamp:  time.Now(),
		URL:        req.URL,
		Method:     req.Method,
		Body:       req.Body,
	}

	if err != nil {
		result.Error = err
		result.ErrorMsg = err.Error()
		result.ErrorKind = resp.ErrorKind
		return result
	}

	result.Success = resp.IsStatusSuccess()
	if !result.Success {
		result.ErrorMsg = fmt.Sprintf("HTTP %d", resp.StatusCode)
	}
	return result
}

// sleepUntil 睡到指定时刻，上下文取消时提前返回
func sleepUntil(ctx context.Context, at time.Time) error {
	return sleepFor(ctx, time.Until(at))
}

// sleepFor 可取消的睡眠
func sleepFor(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
