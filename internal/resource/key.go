package resource

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ErrInvalidKey 表示输入不是可用的绝对 http/https URL。
var ErrInvalidKey = errors.New("invalid resource key")

// Key 是规范化后的资源 URL，零值不可用，应通过 Parse 构造。
type Key struct {
	u *url.URL
}

// Parse 校验并规范化 URL：scheme/host 小写、去掉默认端口与 fragment、空路径补 "/"。
func Parse(raw string) (Key, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Key{}, fmt.Errorf("%w: empty url", ErrInvalidKey)
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return Key{}, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return Key{}, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidKey, parsed.Scheme)
	}
	if parsed.Hostname() == "" {
		return Key{}, fmt.Errorf("%w: missing host in %s", ErrInvalidKey, trimmed)
	}
	if parsed.User != nil {
		return Key{}, fmt.Errorf("%w: credentials are not supported", ErrInvalidKey)
	}

	canonical := *parsed
	canonical.Scheme = scheme
	canonical.Host = canonicalHost(scheme, parsed)
	canonical.Fragment = ""
	canonical.RawFragment = ""
	if canonical.Path == "" {
		canonical.Path = "/"
		canonical.RawPath = ""
	}
	return Key{u: &canonical}, nil
}

// MustParse 仅用于测试与常量初始化，解析失败直接 panic。
func MustParse(raw string) Key {
	key, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return key
}

func canonicalHost(scheme string, u *url.URL) string {
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		port = ""
	}
	if strings.Contains(host, ":") {
		// IPv6 字面量需要重新加上方括号
		if port == "" {
			return "[" + host + "]"
		}
		return net.JoinHostPort(host, port)
	}
	if port == "" {
		return host
	}
	return net.JoinHostPort(host, port)
}

// String 返回规范化的 URL 字符串。
func (k Key) String() string {
	if k.u == nil {
		return ""
	}
	return k.u.String()
}

// URL 返回规范化 URL 的副本，调用方可以自由修改。
func (k Key) URL() *url.URL {
	if k.u == nil {
		return nil
	}
	clone := *k.u
	return &clone
}

// IsZero 表示 Key 未经 Parse 构造。
func (k Key) IsZero() bool {
	return k.u == nil
}
