/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-07-11 10:00:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-14 09:32:45
 * @FilePath: \slayer\testserver\test_server.go
 * @Description: 压测目标模拟服务器 - 可注入延迟、随机错误与过载降级
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

var (
	addr      = flag.String("addr", ":3000", "监听地址")
	baseDelay = flag.Duration("latency", 20*time.Millisecond, "基础响应延迟")
	jitter    = flag.Duration("jitter", 30*time.Millisecond, "延迟抖动上限")
	errorRate = flag.Float64("error-rate", 0.05, "随机错误概率 (0-1)")
	capacity  = flag.Int64("capacity", 200, "过载阈值: 在途请求超过后返回503")
)

// inflight 当前在途请求数，/api/overload 据此模拟容量耗尽
var inflight atomic.Int64

type apiResponse struct {
	Code      int         `json:"code"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

type createUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

func main() {
	flag.Parse()

	http.HandleFunc("/api/ping", handlePing)
	http.HandleFunc("/api/health", handleHealth)
	http.HandleFunc("/api/users", handleCreateUser)
	http.HandleFunc("/api/orders", handleListOrders)
	http.HandleFunc("/api/slow", handleSlow)
	http.HandleFunc("/api/flaky", handleFlaky)
	http.HandleFunc("/api/overload", handleOverload)

	fmt.Printf("🚀 压测目标服务器启动在 http://localhost%s\n", *addr)
	fmt.Println("📡 可用端点:")
	fmt.Println("   - GET  /api/ping      快速响应")
	fmt.Println("   - GET  /api/health    健康检查")
	fmt.Println("   - POST /api/users     创建用户 (JSONPath: $.data.user_id)")
	fmt.Println("   - GET  /api/orders    订单列表")
	fmt.Printf("   - GET  /api/slow      延迟 %v±%v，?delay=500ms 可覆盖\n", *baseDelay, *jitter)
	fmt.Printf("   - GET  /api/flaky     随机错误，概率 %.0f%%\n", *errorRate*100)
	fmt.Printf("   - GET  /api/overload  在途超过 %d 返回503，延迟随负载上升\n", *capacity)
	log.Fatal(http.ListenAndServe(*addr, nil))
}

func writeJSON(w http.ResponseWriter, status int, resp apiResponse) {
	resp.Timestamp = time.Now().Unix()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

// simulateLatency 按基础延迟加随机抖动挂起当前请求
func simulateLatency() time.Duration {
	delay := *baseDelay
	if *jitter > 0 {
		delay += time.Duration(rand.Int63n(int64(*jitter)))
	}
	time.Sleep(delay)
	return delay
}

func handlePing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, apiResponse{Code: 0, Message: "pong"})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, apiResponse{
		Code:    0,
		Message: "healthy",
		Data: map[string]interface{}{
			"service":  "slayer-testserver",
			"inflight": inflight.Load(),
		},
	})
}

func handleCreateUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, apiResponse{Code: 1, Message: "仅支持POST"})
		return
	}

	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("❌ JSON解析失败: %v", err)
		writeJSON(w, http.StatusBadRequest, apiResponse{Code: 1, Message: "无效的请求体"})
		return
	}

	simulateLatency()

	userID := uuid.New().String()
	log.Printf("✅ 创建用户: userID=%s, username=%s", userID, req.Username)
	writeJSON(w, http.StatusOK, apiResponse{
		Code:    0,
		Message: "created",
		Data: map[string]interface{}{
			"user_id":    userID,
			"username":   req.Username,
			"email":      req.Email,
			"created_at": time.Now().Format(time.RFC3339),
		},
	})
}

func handleListOrders(w http.ResponseWriter, r *http.Request) {
	simulateLatency()

	orders := make([]map[string]interface{}, 0, 3)
	for i := 0; i < 3; i++ {
		orders = append(orders, map[string]interface{}{
			"order_id": uuid.New().String(),
			"amount":   rand.Intn(9000) + 1000,
			"status":   "paid",
		})
	}

	writeJSON(w, http.StatusOK, apiResponse{
		Code:    0,
		Message: "ok",
		Data: map[string]interface{}{
			"total":  len(orders),
			"orders": orders,
		},
	})
}

func handleSlow(w http.ResponseWriter, r *http.Request) {
	// ?delay=500ms 覆盖基础延迟，用于针对性验证超时与退避
	delay := *baseDelay + *jitter
	if q := r.URL.Query().Get("delay"); q != "" {
		if parsed, err := time.ParseDuration(q); err == nil {
			delay = parsed
		}
	}
	time.Sleep(delay)

	writeJSON(w, http.StatusOK, apiResponse{
		Code:    0,
		Message: "ok",
		Data:    map[string]interface{}{"delayed_ms": delay.Milliseconds()},
	})
}

func handleFlaky(w http.ResponseWriter, r *http.Request) {
	simulateLatency()

	if rand.Float64() < *errorRate {
		log.Printf("💥 注入错误: %s", r.RemoteAddr)
		writeJSON(w, http.StatusInternalServerError, apiResponse{Code: 1, Message: "内部错误(注入)"})
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Code: 0, Message: "ok"})
}

// handleOverload 容量模型：在途数超过阈值直接503，未超限时延迟随负载线性上升
// 用于观察自适应限流的退避与恢复行为
func handleOverload(w http.ResponseWriter, r *http.Request) {
	n := inflight.Add(1)
	defer inflight.Add(-1)

	if n > *capacity {
		log.Printf("🐌 过载拒绝: inflight=%d > capacity=%d", n, *capacity)
		writeJSON(w, http.StatusServiceUnavailable, apiResponse{Code: 1, Message: "服务过载"})
		return
	}

	// 负载越高响应越慢，最高放大到基础延迟的5倍
	factor := 1.0 + 4.0*float64(n)/float64(*capacity)
	time.Sleep(time.Duration(float64(*baseDelay) * factor))

	writeJSON(w, http.StatusOK, apiResponse{
		Code:    0,
		Message: "ok",
		Data:    map[string]interface{}{"inflight": n},
	})
}
