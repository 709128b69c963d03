package config

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 解析 "15s"、"500ms"、整数秒（含 0x 十六进制）与小数秒，
// 也是 durationDecodeHook 处理字符串时唯一的解析路径。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	if seconds, err := strconv.ParseFloat(raw, 64); err == nil {
		*d = Duration(time.Duration(seconds * float64(time.Second)))
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// Config 是 TOML 文件映射的整体结构，进程启动时构造一次后显式传给各组件。
type Config struct {
	ListenPort    int    `mapstructure:"ListenPort"`
	LogLevel      string `mapstructure:"LogLevel"`
	LogFilePath   string `mapstructure:"LogFilePath"`
	LogMaxSize    int    `mapstructure:"LogMaxSize"`
	LogMaxBackups int    `mapstructure:"LogMaxBackups"`
	LogCompress   bool   `mapstructure:"LogCompress"`

	// CacheRoot 对应应用私有缓存根目录，图片缓存位于 CacheRoot/CacheDirName。
	CacheRoot    string `mapstructure:"CacheRoot"`
	CacheDirName string `mapstructure:"CacheDirName"`

	ConnectTimeout           Duration `mapstructure:"ConnectTimeout"`
	ReadTimeout              Duration `mapstructure:"ReadTimeout"`
	RetryOnConnectionFailure bool     `mapstructure:"RetryOnConnectionFailure"`

	Debug               bool     `mapstructure:"Debug"`
	PacingDelay         Duration `mapstructure:"PacingDelay"`
	PlaceholderPath     string   `mapstructure:"PlaceholderPath"`
	DedupeInflight      bool     `mapstructure:"DedupeInflight"`
	PrefetchConcurrency int      `mapstructure:"PrefetchConcurrency"`
}

// CacheDir 返回图片缓存目录的完整路径。
func (c Config) CacheDir() string {
	return filepath.Join(c.CacheRoot, c.CacheDirName)
}
