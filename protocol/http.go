/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-06-21 09:15:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-07-09 11:02:47
 * @FilePath: \slayer\protocol\http.go
 * @Description: HTTP 协议客户端实现（resty）
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package protocol

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sudoinstallopsecc/slayer/types"
)

// ClientOptions HTTP 客户端选项
type ClientOptions struct {
	Timeout             types.Duration    `json:"timeout" yaml:"timeout"`                             // 默认请求超时（请求未单独指定时生效）
	Headers             map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`         // 公共请求头
	InsecureSkipVerify  bool              `json:"insecure_skip_verify" yaml:"insecure_skip_verify"`   // 跳过TLS证书校验
	DisableKeepAlives   bool              `json:"disable_keep_alives" yaml:"disable_keep_alives"`     // 禁用连接复用（模拟短连接压测）
	MaxIdleConnsPerHost int               `json:"max_idle_conns_per_host" yaml:"max_idle_conns_per_host"` // 每主机最大空闲连接
}

// HTTPClient HTTP 客户端（基于 resty）
type HTTPClient struct {
	client *resty.Client
	opts   ClientOptions
}

// NewHTTPClient 创建 HTTP 客户端
func NewHTTPClient(opts ClientOptions) *HTTPClient {
	maxIdle := opts.MaxIdleConnsPerHost
	if maxIdle <= 0 {
		maxIdle = 100
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        maxIdle * 2,
		MaxIdleConnsPerHost: maxIdle,
		IdleConnTimeout:     90 * time.Second,
		DisableKeepAlives:   opts.DisableKeepAlives,
	}
	if opts.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	client := resty.New().SetTransport(transport)
	if opts.Timeout > 0 {
		client.SetTimeout(opts.Timeout.D())
	}
	if len(opts.Headers) > 0 {
		client.SetHeaders(opts.Headers)
	}

	return &HTTPClient{client: client, opts: opts}
}

// Connect HTTP 无需预建连接，传输层按需建立并复用
func (c *HTTPClient) Connect(ctx context.Context) error {
	return nil
}

// Send 发送 HTTP 请求
// 传输层失败时返回的响应仍携带耗时与错误分类，供统计与退避使用
func (c *HTTPClient) Send(ctx context.Context, req *types.Request) (*types.Response, error) {
	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = http.MethodGet
	}

	// 单请求超时优先于客户端默认超时
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	r := c.client.R().SetContext(ctx)
	if len(req.Headers) > 0 {
		r.SetHeaders(req.Headers)
	}
	if req.Body != "" {
		r.SetBody(req.Body)
	}

	start := time.Now()
	restyResp, err := r.Execute(method, req.URL)
	elapsed := time.Since(start)

	resp := &types.Response{
		Duration:      elapsed,
		RequestURL:    req.URL,
		RequestMethod: method,
		RequestBody:   req.Body,
	}

	if err != nil {
		resp.Error = err
		resp.ErrorKind = ClassifyError(err)
		return resp, err
	}

	resp.StatusCode = restyResp.StatusCode()
	resp.Body = restyResp.Body()
	resp.Size = restyResp.Size()
	if resp.Size <= 0 {
		resp.Size = int64(len(resp.Body))
	}
	resp.Headers = flattenHeader(restyResp.Header())

	return resp, nil
}

// Close 释放空闲连接
func (c *HTTPClient) Close() error {
	if t, ok := c.client.GetClient().Transport.(*http.Transport); ok {
		t.CloseIdleConnections()
	}
	return nil
}

// flattenHeader 取每个响应头的首个值
func flattenHeader(h http.Header) map[string]string {
	if len(h) == 0 {
		return nil
	}
	out := make(map[string]string, len(h))
	for k, vs := range h {
		if len(vs) > 0 {
			out[k] = vs[0]
		}
	}
	return out
}

// ClassifyError 将传输层错误归类为 timeout / connection / protocol
// 超时判定优先于连接类判定（超时错误通常也包裹在 OpError 中）
func ClassifyError(err error) types.ErrorKind {
	if err == nil {
		return types.ErrorKindNone
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return types.ErrorKindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return types.ErrorKindTimeout
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) {
		return types.ErrorKindConnection
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return types.ErrorKindConnection
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return types.ErrorKindConnection
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return types.ErrorKindConnection
	}

	return types.ErrorKindProtocol
}
