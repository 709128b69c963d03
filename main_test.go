package main

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
)

func TestParseCLIFlagsPriority(t *testing.T) {
	t.Setenv("ASYNCIMAGE_CONFIG", "/tmp/env.toml")

	opts, err := parseCLIFlags([]string{})
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if opts.configPath != "/tmp/env.toml" || !opts.explicitConfig {
		t.Fatalf("应优先使用环境变量，得到 %s", opts.configPath)
	}

	opts, err = parseCLIFlags([]string{"--config", "/tmp/flag.toml"})
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if opts.configPath != "/tmp/flag.toml" {
		t.Fatalf("flag 应高于环境变量，得到 %s", opts.configPath)
	}
}

func TestParseCLIFlagsDefaultsAndURLs(t *testing.T) {
	t.Setenv("ASYNCIMAGE_CONFIG", "")

	opts, err := parseCLIFlags([]string{"-debug", "https://example.com/a.png", "https://example.com/b.png"})
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if opts.configPath != "config.toml" || opts.explicitConfig {
		t.Fatalf("未指定时应使用默认 config.toml，得到 %s", opts.configPath)
	}
	if !opts.debug || len(opts.urls) != 2 {
		t.Fatalf("debug/urls 解析错误: %+v", opts)
	}

	if _, err := parseCLIFlags([]string{"-unknown"}); err == nil {
		t.Fatalf("未知参数应返回错误")
	}
}

func TestRunCheckConfigSuccess(t *testing.T) {
	useBufferWriters(t)
	code := run(cliOptions{configPath: configFixture(t, "valid.toml"), explicitConfig: true, checkOnly: true})
	if code != 0 {
		t.Fatalf("期望退出码 0，得到 %d", code)
	}
}

func TestRunCheckConfigFailure(t *testing.T) {
	useBufferWriters(t)
	code := run(cliOptions{configPath: configFixture(t, "missing.toml"), explicitConfig: true, checkOnly: true})
	if code == 0 {
		t.Fatalf("无效配置应返回非零退出码")
	}
}

func TestRunExplicitConfigMustExist(t *testing.T) {
	useBufferWriters(t)
	code := run(cliOptions{configPath: filepath.Join(t.TempDir(), "nope.toml"), explicitConfig: true, checkOnly: true})
	if code == 0 {
		t.Fatalf("显式指定的配置文件不存在时应失败")
	}
}

func TestRunVersionOutput(t *testing.T) {
	useBufferWriters(t)
	code := run(cliOptions{showVersion: true})
	if code != 0 {
		t.Fatalf("version 模式应成功退出，得到 %d", code)
	}
	if !strings.Contains(stdOutBuffer().String(), "asyncimage") {
		t.Fatalf("version 输出应包含 asyncimage 标识")
	}
}

func TestRunLoadsURLsOnce(t *testing.T) {
	var hits atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path == "/gone.png" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("image-bytes"))
	}))
	defer upstream.Close()

	configPath := writeConfigFile(t, fmt.Sprintf(`
LogLevel = "error"
CacheRoot = "%s"
PrefetchConcurrency = 2
`, filepath.ToSlash(t.TempDir())))

	useBufferWriters(t)
	code := run(cliOptions{
		configPath:     configPath,
		explicitConfig: true,
		urls:           []string{upstream.URL + "/a.png", upstream.URL + "/b.png"},
	})
	if code != 0 {
		t.Fatalf("期望退出码 0，得到 %d (stderr=%s)", code, stdErrBuffer().String())
	}
	if got := strings.Count(stdOutBuffer().String(), "network\t11\t"); got != 2 {
		t.Fatalf("两次回源应各输出一行，得到:\n%s", stdOutBuffer().String())
	}

	useBufferWriters(t)
	code = run(cliOptions{configPath: configPath, explicitConfig: true, urls: []string{upstream.URL + "/a.png"}})
	if code != 0 {
		t.Fatalf("期望退出码 0，得到 %d", code)
	}
	if !strings.HasPrefix(stdOutBuffer().String(), "cache_hit\t11\t") {
		t.Fatalf("第二次应命中缓存，得到 %s", stdOutBuffer().String())
	}
	if hits.Load() != 2 {
		t.Fatalf("缓存命中不应回源，上游请求数 %d", hits.Load())
	}
}

func TestRunLoadOnceReportsFailures(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer upstream.Close()

	configPath := writeConfigFile(t, fmt.Sprintf(`
LogLevel = "error"
CacheRoot = "%s"
`, filepath.ToSlash(t.TempDir())))

	useBufferWriters(t)
	code := run(cliOptions{
		configPath:     configPath,
		explicitConfig: true,
		urls:           []string{upstream.URL + "/x.png", "not-a-url"},
	})
	if code != 1 {
		t.Fatalf("占位图或非法 URL 应返回 1，得到 %d", code)
	}
	if !strings.HasPrefix(stdOutBuffer().String(), "fallback\t") {
		t.Fatalf("应输出 fallback 行，得到 %s", stdOutBuffer().String())
	}
	if !bytes.Contains(stdErrBuffer().Bytes(), []byte("invalid\tnot-a-url")) {
		t.Fatalf("非法 URL 应写入 stderr，得到 %s", stdErrBuffer().String())
	}
}
