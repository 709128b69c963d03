package fetch

import (
	"net/http"
	"net/http/httputil"

	"github.com/sirupsen/logrus"

	"github.com/pattmehta/AsyncImage/internal/logging"
)

// dumpTransport 在 verbose 开启时记录请求与响应头，关闭时直接透传。
// 响应正文由 Fetcher 在带超时的读取完成后记录。
type dumpTransport struct {
	next    http.RoundTripper
	logger  *logrus.Logger
	verbose *logging.Verbose
}

func (t *dumpTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !t.verbose.Enabled() {
		return t.next.RoundTrip(req)
	}

	fields := logrus.Fields{"action": "fetch_dump", "url": req.URL.String()}
	if dump, err := httputil.DumpRequestOut(req, true); err == nil {
		t.logger.WithFields(fields).WithField("request", string(dump)).Info("fetch_request")
	}

	resp, err := t.next.RoundTrip(req)
	if err != nil {
		t.logger.WithFields(fields).WithError(err).Info("fetch_failed")
		return nil, err
	}

	if dump, err := httputil.DumpResponse(resp, false); err == nil {
		t.logger.WithFields(fields).WithField("response", string(dump)).Info("fetch_response")
	}
	return resp, nil
}
