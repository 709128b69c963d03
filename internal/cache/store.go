package cache

import (
	"errors"
	"time"
)

// Entry 描述一次成功写入或命中的缓存文件。
type Entry struct {
	Key       string    `json:"key"`
	Filename  string    `json:"filename"`
	FilePath  string    `json:"file_path"`
	SizeBytes int64     `json:"size_bytes"`
	ModTime   time.Time `json:"mod_time"`
}

// ErrNotFound 表示缓存不存在，属于正常控制流而非故障。
var ErrNotFound = errors.New("cache entry not found")

// ErrEntryMissing 表示写入流程结束后目标文件仍不存在。
var ErrEntryMissing = errors.New("cache entry missing after write")
