/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-07-09 11:20:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-07-09 14:36:19
 * @FilePath: \slayer\protocol\http_test.go
 * @Description: HTTP 客户端测试
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package protocol

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/sudoinstallopsecc/slayer/types"
)

// 测试 HTTP 客户端 - GET 请求成功
func TestHTTPClientSendSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Request-Id", "req-001")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	client := NewHTTPClient(ClientOptions{Timeout: types.Duration(5 * time.Second)})
	defer client.Close()

	resp, err := client.Send(context.Background(), &types.Request{
		Method: "get",
		URL:    server.URL,
	})

	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []byte(`{"status":"ok"}`), resp.Body)
	assert.Equal(t, int64(len(`{"status":"ok"}`)), resp.Size)
	assert.Greater(t, resp.Duration, time.Duration(0))
	assert.Equal(t, "req-001", resp.Headers["X-Request-Id"])
	assert.Equal(t, types.ErrorKindNone, resp.ErrorKind)
	assert.Equal(t, "GET", resp.RequestMethod) // 方法名被规范化为大写
	assert.True(t, resp.IsStatusSuccess())
}

// 测试 HTTP 客户端 - POST 请求体与请求头透传
func TestHTTPClientSendPost(t *testing.T) {
	var gotMethod, gotBody, gotHeader string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		gotHeader = r.Header.Get("X-Token")
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client := NewHTTPClient(ClientOptions{
		Headers: map[string]string{"X-Token": "client-level"},
	})
	defer client.Close()

	resp, err := client.Send(context.Background(), &types.Request{
		Method:  "POST",
		URL:     server.URL,
		Body:    `{"name":"slayer"}`,
		Headers: map[string]string{"X-Token": "request-level"},
	})

	assert.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "POST", gotMethod)
	assert.Equal(t, `{"name":"slayer"}`, gotBody)
	// 请求级头覆盖客户端级头
	assert.Equal(t, "request-level", gotHeader)
}

// 测试 HTTP 客户端 - 默认方法为 GET
func TestHTTPClientDefaultMethod(t *testing.T) {
	var gotMethod string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewHTTPClient(ClientOptions{})
	defer client.Close()

	_, err := client.Send(context.Background(), &types.Request{URL: server.URL})
	assert.NoError(t, err)
	assert.Equal(t, "GET", gotMethod)
}

// 测试 HTTP 客户端 - 非 2xx 状态码不算传输错误
func TestHTTPClientSendServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer server.Close()

	client := NewHTTPClient(ClientOptions{})
	defer client.Close()

	resp, err := client.Send(context.Background(), &types.Request{Method: "GET", URL: server.URL})
	assert.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, types.ErrorKindNone, resp.ErrorKind)
	assert.False(t, resp.IsStatusSuccess())
}

// 测试 HTTP 客户端 - 单请求超时归类为 timeout
func TestHTTPClientSendTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewHTTPClient(ClientOptions{})
	defer client.Close()

	start := time.Now()
	resp, err := client.Send(context.Background(), &types.Request{
		Method:  "GET",
		URL:     server.URL,
		Timeout: 50 * time.Millisecond,
	})

	assert.Error(t, err)
	assert.NotNil(t, resp.Error)
	assert.Equal(t, types.ErrorKindTimeout, resp.ErrorKind)
	assert.Greater(t, resp.Duration, time.Duration(0))
	// 未等待服务端完整响应即返回
	assert.Less(t, time.Since(start), 250*time.Millisecond)
}

// 测试 HTTP 客户端 - 连接拒绝归类为 connection
func TestHTTPClientSendConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close() // 关闭后端口不可达

	client := NewHTTPClient(ClientOptions{Timeout: types.Duration(2 * time.Second)})
	defer client.Close()

	resp, err := client.Send(context.Background(), &types.Request{Method: "GET", URL: url})
	assert.Error(t, err)
	assert.Equal(t, types.ErrorKindConnection, resp.ErrorKind)
}

// 测试 HTTP 客户端 - Connect 为空实现
func TestHTTPClientConnect(t *testing.T) {
	client := NewHTTPClient(ClientOptions{})
	assert.NoError(t, client.Connect(context.Background()))
	assert.NoError(t, client.Close())
}

// fakeTimeoutError 实现 net.Error 的超时错误
type fakeTimeoutError struct{}

func (fakeTimeoutError) Error() string   { return "i/o timeout" }
func (fakeTimeoutError) Timeout() bool   { return true }
func (fakeTimeoutError) Temporary() bool { return true }

// 测试错误分类
func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want types.ErrorKind
	}{
		{"无错误", nil, types.ErrorKindNone},
		{"上下文超时", context.DeadlineExceeded, types.ErrorKindTimeout},
		{"网络超时", fakeTimeoutError{}, types.ErrorKindTimeout},
		{"包裹的网络超时", &net.OpError{Op: "read", Err: fakeTimeoutError{}}, types.ErrorKindTimeout},
		{"连接拒绝", &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, types.ErrorKindConnection},
		{"连接重置", &net.OpError{Op: "read", Err: syscall.ECONNRESET}, types.ErrorKindConnection},
		{"DNS失败", &net.DNSError{Err: "no such host", Name: "nowhere.invalid"}, types.ErrorKindConnection},
		{"连接中断", io.ErrUnexpectedEOF, types.ErrorKindConnection},
		{"其他错误", errors.New("malformed response"), types.ErrorKindProtocol},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyError(tt.err))
		})
	}
}
