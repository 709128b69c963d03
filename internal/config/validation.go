package config

import (
	"errors"
	"strings"
)

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	if c.ListenPort <= 0 || c.ListenPort > 65535 {
		return newFieldError("ListenPort", "必须在 1-65535")
	}
	if strings.TrimSpace(c.CacheRoot) == "" {
		return newFieldError("CacheRoot", "不能为空")
	}
	if err := validateDirName(c.CacheDirName); err != nil {
		return err
	}
	if c.ConnectTimeout.DurationValue() <= 0 {
		return newFieldError("ConnectTimeout", "必须大于 0")
	}
	if c.ReadTimeout.DurationValue() <= 0 {
		return newFieldError("ReadTimeout", "必须大于 0")
	}
	if c.RetryOnConnectionFailure {
		return newFieldError("RetryOnConnectionFailure", "不支持自动重试，必须为 false")
	}
	if c.PacingDelay.DurationValue() < 0 {
		return newFieldError("PacingDelay", "不能为负数")
	}
	if c.PrefetchConcurrency < 1 {
		return newFieldError("PrefetchConcurrency", "必须大于 0")
	}
	if c.LogMaxSize < 0 || c.LogMaxBackups < 0 {
		return newFieldError("LogMaxSize/LogMaxBackups", "不能为负数")
	}
	return nil
}

func validateDirName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return newFieldError("CacheDirName", "不能为空")
	}
	if trimmed != name {
		return newFieldError("CacheDirName", "不能包含首尾空白")
	}
	if trimmed == "." || trimmed == ".." {
		return newFieldError("CacheDirName", "不能是 . 或 ..")
	}
	if strings.ContainsAny(trimmed, `/\`) {
		return newFieldError("CacheDirName", "只能是单级目录名")
	}
	return nil
}
