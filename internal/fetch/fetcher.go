package fetch

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pattmehta/AsyncImage/internal/logging"
	"github.com/pattmehta/AsyncImage/internal/resource"
)

// Options 控制 Fetcher 的读取超时与诊断输出。
type Options struct {
	ReadTimeout time.Duration
	Verbose     *logging.Verbose
}

// Fetcher 每次调用只发起一次 GET，除 http.Client 配置外不持有任何状态。
type Fetcher struct {
	client      *http.Client
	logger      *logrus.Logger
	readTimeout time.Duration
	verbose     *logging.Verbose
}

// New 基于共享 client 构造 Fetcher；client 会被浅拷贝，原实例不受影响。
func New(client *http.Client, logger *logrus.Logger, opts Options) *Fetcher {
	if client == nil {
		client = &http.Client{}
	}
	if logger == nil {
		logger = logging.Discard()
	}

	base := client.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	wrapped := *client
	wrapped.Transport = &dumpTransport{
		next:    base,
		logger:  logger,
		verbose: opts.Verbose,
	}

	return &Fetcher{
		client:      &wrapped,
		logger:      logger,
		readTimeout: opts.ReadTimeout,
		verbose:     opts.Verbose,
	}
}

// Fetch 对 key 发起一次 GET 并返回完整正文。
func (f *Fetcher) Fetch(ctx context.Context, key resource.Key) ([]byte, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, key.String(), nil)
	if err != nil {
		return nil, &TransportError{Cause: err}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &TransportError{Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4*1024))
		return nil, &HTTPStatusError{Code: resp.StatusCode, Message: statusMessage(resp)}
	}

	body, err := f.readBody(resp.Body, cancel)
	if err != nil {
		return nil, &TransportError{Cause: err}
	}
	if f.verbose.Enabled() {
		f.logger.WithFields(logrus.Fields{
			"action":     "fetch_dump",
			"url":        req.URL.String(),
			"size_bytes": len(body),
		}).WithField("body", string(body)).Info("fetch_body")
	}
	return body, nil
}

// readBody 读取完整正文；任意两次读取之间超过 readTimeout 即取消请求。
func (f *Fetcher) readBody(body io.Reader, cancel context.CancelFunc) ([]byte, error) {
	if f.readTimeout <= 0 {
		return io.ReadAll(body)
	}

	var timedOut atomic.Bool
	timer := time.AfterFunc(f.readTimeout, func() {
		timedOut.Store(true)
		cancel()
	})
	defer timer.Stop()

	var buf bytes.Buffer
	chunk := make([]byte, 32*1024)
	for {
		n, err := body.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
			timer.Reset(f.readTimeout)
		}
		if err == io.EOF {
			return buf.Bytes(), nil
		}
		if err != nil {
			if timedOut.Load() {
				return nil, ErrReadTimeout
			}
			return nil, err
		}
	}
}

// statusMessage 从 "404 Not Found" 这类 Status 中取出原因短语。
func statusMessage(resp *http.Response) string {
	prefix := strconv.Itoa(resp.StatusCode) + " "
	if msg := strings.TrimPrefix(resp.Status, prefix); msg != "" && msg != resp.Status {
		return msg
	}
	return http.StatusText(resp.StatusCode)
}
