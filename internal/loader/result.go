package loader

import (
	"time"

	"github.com/pattmehta/AsyncImage/internal/resource"
)

// Outcome 是一次加载的终态。
type Outcome string

const (
	OutcomeCacheHit Outcome = "cache_hit"
	OutcomeNetwork  Outcome = "network"
	OutcomeFallback Outcome = "fallback"
)

// Result 是发布给 Sink 的唯一结果；Err 保存被吸收的失败原因，仅 fallback 时非空。
type Result struct {
	Key     resource.Key
	Outcome Outcome
	Data    []byte
	Err     error
}

// Sink 接收一次加载的结果，可能在任意 goroutine 上被调用，线程安全由实现方负责。
type Sink interface {
	Publish(Result)
}

// SinkFunc 让普通函数满足 Sink。
type SinkFunc func(Result)

// Publish makes SinkFunc satisfy Sink.
func (f SinkFunc) Publish(r Result) {
	f(r)
}

// Stage 标识 Observer 事件发生的阶段。
type Stage string

const (
	StageCacheRead  Stage = "cache_read"
	StageFetch      Stage = "fetch"
	StageCacheWrite Stage = "cache_write"
	StageComplete   Stage = "complete"
)

// Event 描述被吸收的错误或终态，供 Observer 观测。
type Event struct {
	Key      resource.Key
	Stage    Stage
	Outcome  Outcome
	Err      error
	Duration time.Duration
}

// Observer 在每个被吸收的错误与每次终态时被同步调用。
type Observer func(Event)
