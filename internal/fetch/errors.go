package fetch

import (
	"errors"
	"fmt"
)

// ErrReadTimeout 表示正文读取在 ReadTimeout 内没有任何进展。
var ErrReadTimeout = errors.New("read timeout")

// HTTPStatusError 表示上游返回了非 2xx 状态码。
type HTTPStatusError struct {
	Code    int
	Message string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("upstream status %d: %s", e.Code, e.Message)
}

// TransportError 包装域名解析、连接、超时或流读取等传输层失败。
type TransportError struct {
	Cause error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %v", e.Cause)
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}
