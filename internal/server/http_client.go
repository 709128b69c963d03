package server

import (
	"net"
	"net/http"
	"time"

	"github.com/pattmehta/AsyncImage/internal/config"
)

const (
	defaultConnectTimeout = 15 * time.Second
	defaultReadTimeout    = 15 * time.Second
)

// newTransport 返回连接/握手受 connect 超时约束、响应头受 read 超时约束的 Transport。
func newTransport(connect, read time.Duration) *http.Transport {
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   connect,
		ResponseHeaderTimeout: read,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
		DialContext: (&net.Dialer{
			Timeout:   connect,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}
}

// NewUpstreamClient 返回共享 http.Client，用于所有图片请求。
// 不设置整体 Timeout：正文的读超时由 fetch 包按“两次读取间隔”计算。
func NewUpstreamClient(cfg *config.Config) *http.Client {
	connect := defaultConnectTimeout
	read := defaultReadTimeout
	if cfg != nil {
		if d := cfg.ConnectTimeout.DurationValue(); d > 0 {
			connect = d
		}
		if d := cfg.ReadTimeout.DurationValue(); d > 0 {
			read = d
		}
	}

	return &http.Client{
		Transport: newTransport(connect, read),
	}
}
