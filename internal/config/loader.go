package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const (
	defaultListenPort     = 5000
	defaultCacheDirName   = "ImageCache"
	defaultConnectTimeout = 15 * time.Second
	defaultReadTimeout    = 15 * time.Second
)

// Load 读取并解析 TOML 配置文件，同时注入默认值与校验逻辑。
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.toml"
	}

	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	absRoot, err := filepath.Abs(cfg.CacheRoot)
	if err != nil {
		return nil, fmt.Errorf("无法解析缓存目录: %w", err)
	}
	cfg.CacheRoot = absRoot

	return &cfg, nil
}

// Default 返回未读取任何文件时的配置，CLI 的一次性加载模式在缺少配置文件时使用。
func Default() *Config {
	cfg := Config{
		LogLevel:      "info",
		LogMaxSize:    100,
		LogMaxBackups: 10,
		LogCompress:   true,
	}
	applyDefaults(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ListenPort", defaultListenPort)
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
	v.SetDefault("CacheDirName", defaultCacheDirName)
	v.SetDefault("ConnectTimeout", "15s")
	v.SetDefault("ReadTimeout", "15s")
	v.SetDefault("RetryOnConnectionFailure", false)
	v.SetDefault("Debug", false)
	v.SetDefault("PacingDelay", "0s")
	v.SetDefault("DedupeInflight", false)
	v.SetDefault("PrefetchConcurrency", 4)
}

func applyDefaults(c *Config) {
	if c.ListenPort == 0 {
		c.ListenPort = defaultListenPort
	}
	if c.CacheRoot == "" {
		c.CacheRoot = defaultCacheRoot()
	}
	c.CacheDirName = strings.TrimSpace(c.CacheDirName)
	if c.CacheDirName == "" {
		c.CacheDirName = defaultCacheDirName
	}
	if c.ConnectTimeout.DurationValue() == 0 {
		c.ConnectTimeout = Duration(defaultConnectTimeout)
	}
	if c.ReadTimeout.DurationValue() == 0 {
		c.ReadTimeout = Duration(defaultReadTimeout)
	}
	if c.PrefetchConcurrency == 0 {
		c.PrefetchConcurrency = 4
	}
}

// defaultCacheRoot 优先使用系统用户缓存目录，不可用时退回工作目录。
func defaultCacheRoot() string {
	if dir, err := os.UserCacheDir(); err == nil && dir != "" {
		return filepath.Join(dir, "asyncimage")
	}
	return "./cache"
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			var d Duration
			if err := d.UnmarshalText([]byte(v)); err != nil {
				return nil, fmt.Errorf("无法解析 Duration 字段: %w", err)
			}
			return d, nil
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Duration 类型: %T", v)
		}
	}
}
