package logging

import "sync/atomic"

// Verbose 是运行期可切换的诊断开关，Store/Fetcher/Loader 共享同一实例，
// 默认关闭，避免把响应正文写进日志。
type Verbose struct {
	enabled atomic.Bool
}

// NewVerbose 以给定初始值构造开关。
func NewVerbose(enabled bool) *Verbose {
	v := &Verbose{}
	v.enabled.Store(enabled)
	return v
}

// Enabled 对 nil 接收者返回 false，调用方无需判空。
func (v *Verbose) Enabled() bool {
	if v == nil {
		return false
	}
	return v.enabled.Load()
}

// Set 更新开关并返回旧值。
func (v *Verbose) Set(enabled bool) bool {
	if v == nil {
		return false
	}
	return v.enabled.Swap(enabled)
}
