package loader

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/pattmehta/AsyncImage/internal/cache"
	"github.com/pattmehta/AsyncImage/internal/logging"
	"github.com/pattmehta/AsyncImage/internal/metrics"
	"github.com/pattmehta/AsyncImage/internal/resource"
)

// Store 是 Loader 依赖的缓存能力，*cache.Store 满足该接口。
type Store interface {
	Read(ctx context.Context, key resource.Key) ([]byte, error)
	Write(ctx context.Context, key resource.Key, data []byte) (*cache.Entry, error)
	List() ([]string, error)
	Dir() string
}

// Fetcher 是 Loader 依赖的网络能力，*fetch.Fetcher 满足该接口。
type Fetcher interface {
	Fetch(ctx context.Context, key resource.Key) ([]byte, error)
}

// Options 在构造时一次性注入，取代进程级可变单例。
type Options struct {
	// PacingDelay 在读缓存前、回源前、写缓存前各等待一次，0 表示不等待。
	PacingDelay time.Duration
	// Placeholder 为 nil 时使用 DefaultPlaceholder。
	Placeholder []byte
	// Dedupe 开启后，同一 key 的并发加载合并为一次缓存查找/回源。
	Dedupe   bool
	Verbose  *logging.Verbose
	Observer Observer
	Metrics  *metrics.Registry
}

// Loader 负责单次加载的“读缓存 → 回源 → 写缓存 → 发布”流程，本身不持有缓存或网络资源。
type Loader struct {
	store       Store
	fetcher     Fetcher
	logger      *logrus.Logger
	pacing      time.Duration
	placeholder []byte
	dedupe      bool
	verbose     *logging.Verbose
	observer    Observer
	metrics     *metrics.Registry

	group singleflight.Group
}

// New 构造 Loader，store 与 fetcher 不能为空。
func New(store Store, fetcher Fetcher, logger *logrus.Logger, opts Options) (*Loader, error) {
	if store == nil {
		return nil, errors.New("cache store is required")
	}
	if fetcher == nil {
		return nil, errors.New("fetcher is required")
	}
	if opts.PacingDelay < 0 {
		return nil, errors.New("pacing delay cannot be negative")
	}
	if logger == nil {
		logger = logging.Discard()
	}
	placeholder := opts.Placeholder
	if len(placeholder) == 0 {
		placeholder = DefaultPlaceholder()
	}
	verbose := opts.Verbose
	if verbose == nil {
		verbose = logging.NewVerbose(false)
	}

	return &Loader{
		store:       store,
		fetcher:     fetcher,
		logger:      logger,
		pacing:      opts.PacingDelay,
		placeholder: placeholder,
		dedupe:      opts.Dedupe,
		verbose:     verbose,
		observer:    opts.Observer,
		metrics:     opts.Metrics,
	}, nil
}

// Load 在独立 goroutine 中执行加载并把结果发布到 sink（可为 nil，由调用方 Wait）。
// ctx 被取消后不会再发布。
func (l *Loader) Load(ctx context.Context, key resource.Key, sink Sink) *Task {
	ctx, cancel := context.WithCancel(ctx)
	task := newTask(cancel)

	go func() {
		defer cancel()

		result, err := l.Resolve(ctx, key)
		if err == nil {
			err = task.publish(ctx, sink, result)
		}
		if err != nil {
			l.logger.WithFields(logging.LoadFields("load_cancelled", key.String(), false)).
				WithError(err).
				Debug("load_cancelled")
			task.finish(Result{}, err, false)
			return
		}
		task.finish(result, nil, sink != nil)
	}()

	return task
}

// Resolve 同步执行一次完整加载。只有 ctx 被取消时才返回错误，其余失败都被吸收为 fallback。
func (l *Loader) Resolve(ctx context.Context, key resource.Key) (Result, error) {
	if key.IsZero() {
		return Result{}, resource.ErrInvalidKey
	}
	if !l.dedupe {
		return l.resolve(ctx, key)
	}

	// 共享的加载不随单个调用方取消，各调用方只在自己的 ctx 上等待。
	shared := context.WithoutCancel(ctx)
	ch := l.group.DoChan(key.String(), func() (interface{}, error) {
		return l.resolve(shared, key)
	})
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Result{}, res.Err
		}
		result := res.Val.(Result)
		result.Data = append([]byte(nil), result.Data...)
		return result, nil
	}
}

func (l *Loader) resolve(ctx context.Context, key resource.Key) (Result, error) {
	started := time.Now()

	if err := l.pace(ctx); err != nil {
		return Result{}, err
	}
	data, err := l.store.Read(ctx, key)
	switch {
	case err == nil:
		return l.complete(key, OutcomeCacheHit, data, nil, started), nil
	case errors.Is(err, cache.ErrNotFound):
		// miss, continue
	default:
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
		l.absorb(key, StageCacheRead, err)
	}

	if err := l.pace(ctx); err != nil {
		return Result{}, err
	}
	fetchStarted := time.Now()
	data, err = l.fetcher.Fetch(ctx, key)
	if err != nil {
		l.metrics.ObserveFetch("error", time.Since(fetchStarted))
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
		l.absorb(key, StageFetch, err)
		return l.complete(key, OutcomeFallback, l.placeholderCopy(), err, started), nil
	}
	l.metrics.ObserveFetch("ok", time.Since(fetchStarted))

	if err := l.pace(ctx); err != nil {
		return Result{}, err
	}
	if _, err := l.store.Write(ctx, key, data); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
		// 写缓存失败时即使已取得正文也发布占位图
		l.absorb(key, StageCacheWrite, err)
		return l.complete(key, OutcomeFallback, l.placeholderCopy(), err, started), nil
	}
	return l.complete(key, OutcomeNetwork, data, nil, started), nil
}

// SetDebug 切换 verbose 开关；开启时同步列出缓存目录并写入日志，返回列出的文件名。
func (l *Loader) SetDebug(enabled bool) ([]string, error) {
	l.verbose.Set(enabled)
	if !enabled {
		return nil, nil
	}

	files, err := l.store.List()
	fields := logrus.Fields{
		"action": "cache_listing",
		"dir":    l.store.Dir(),
	}
	if err != nil {
		l.logger.WithFields(fields).WithError(err).Warn("cache_listing_failed")
		return nil, err
	}
	fields["files"] = files
	fields["count"] = len(files)
	l.logger.WithFields(fields).Info("cache_listing")
	return files, nil
}

// Debug 返回当前 verbose 状态。
func (l *Loader) Debug() bool {
	return l.verbose.Enabled()
}

func (l *Loader) pace(ctx context.Context) error {
	if l.pacing <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(l.pacing)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (l *Loader) absorb(key resource.Key, stage Stage, err error) {
	l.metrics.ObserveAbsorbed(string(stage))

	entry := l.logger.WithFields(logging.LoadFields(string(stage)+"_failed", key.String(), false)).WithError(err)
	if l.verbose.Enabled() {
		entry.Warn(string(stage) + "_failed")
	} else {
		entry.Debug(string(stage) + "_failed")
	}

	if l.observer != nil {
		l.observer(Event{Key: key, Stage: stage, Err: err})
	}
}

func (l *Loader) complete(key resource.Key, outcome Outcome, data []byte, cause error, started time.Time) Result {
	elapsed := time.Since(started)
	l.metrics.ObserveLoad(string(outcome), elapsed)

	entry := l.logger.WithFields(logging.LoadFields("load_complete", key.String(), outcome == OutcomeCacheHit)).
		WithFields(logrus.Fields{
			"outcome":     string(outcome),
			"size_bytes":  len(data),
			"duration_ms": elapsed.Milliseconds(),
		})
	if l.verbose.Enabled() {
		entry.Info("load_complete")
	} else {
		entry.Debug("load_complete")
	}

	if l.observer != nil {
		l.observer(Event{Key: key, Stage: StageComplete, Outcome: outcome, Err: cause, Duration: elapsed})
	}
	return Result{Key: key, Outcome: outcome, Data: data, Err: cause}
}

func (l *Loader) placeholderCopy() []byte {
	return append([]byte(nil), l.placeholder...)
}
